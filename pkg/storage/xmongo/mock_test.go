package xmongo

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/mock/gomock"

	"github.com/omeyang/docdemo/pkg/observability/xmetrics"
)

// =============================================================================
// MockdatabaseOperations - gomock 风格的 databaseOperations mock
// =============================================================================

type MockdatabaseOperations struct {
	ctrl     *gomock.Controller
	recorder *MockdatabaseOperationsMockRecorder
}

type MockdatabaseOperationsMockRecorder struct {
	mock *MockdatabaseOperations
}

func NewMockdatabaseOperations(ctrl *gomock.Controller) *MockdatabaseOperations {
	mock := &MockdatabaseOperations{ctrl: ctrl}
	mock.recorder = &MockdatabaseOperationsMockRecorder{mock}
	return mock
}

func (m *MockdatabaseOperations) EXPECT() *MockdatabaseOperationsMockRecorder {
	return m.recorder
}

func (m *MockdatabaseOperations) Name() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Name")
	ret0, _ := ret[0].(string)
	return ret0
}

func (mr *MockdatabaseOperationsMockRecorder) Name() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Name", reflect.TypeOf((*MockdatabaseOperations)(nil).Name))
}

func (m *MockdatabaseOperations) ListCollectionNames(ctx context.Context, filter any, opts ...options.Lister[options.ListCollectionsOptions]) ([]string, error) {
	m.ctrl.T.Helper()
	varargs := []any{ctx, filter}
	for _, a := range opts {
		varargs = append(varargs, a)
	}
	ret := m.ctrl.Call(m, "ListCollectionNames", varargs...)
	ret0, _ := ret[0].([]string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockdatabaseOperationsMockRecorder) ListCollectionNames(ctx, filter any, opts ...any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	varargs := append([]any{ctx, filter}, opts...)
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListCollectionNames", reflect.TypeOf((*MockdatabaseOperations)(nil).ListCollectionNames), varargs...)
}

func (m *MockdatabaseOperations) CreateCollection(ctx context.Context, name string, opts ...options.Lister[options.CreateCollectionOptions]) error {
	m.ctrl.T.Helper()
	varargs := []any{ctx, name}
	for _, a := range opts {
		varargs = append(varargs, a)
	}
	ret := m.ctrl.Call(m, "CreateCollection", varargs...)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockdatabaseOperationsMockRecorder) CreateCollection(ctx, name any, opts ...any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	varargs := append([]any{ctx, name}, opts...)
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateCollection", reflect.TypeOf((*MockdatabaseOperations)(nil).CreateCollection), varargs...)
}

func (m *MockdatabaseOperations) CreateIndexes(ctx context.Context, collection string, models []mongo.IndexModel) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateIndexes", ctx, collection, models)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockdatabaseOperationsMockRecorder) CreateIndexes(ctx, collection, models any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateIndexes", reflect.TypeOf((*MockdatabaseOperations)(nil).CreateIndexes), ctx, collection, models)
}

func (m *MockdatabaseOperations) Collection(name string) collectionOperations {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Collection", name)
	ret0, _ := ret[0].(collectionOperations)
	return ret0
}

func (mr *MockdatabaseOperationsMockRecorder) Collection(name any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Collection", reflect.TypeOf((*MockdatabaseOperations)(nil).Collection), name)
}

// =============================================================================
// 客户端与集合的手写桩
// =============================================================================

type stubClientOps struct {
	pingErr       error
	pings         int
	disconnectErr error
	disconnected  bool
	sessions      int
}

func (s *stubClientOps) Ping(context.Context, *readpref.ReadPref) error {
	s.pings++
	return s.pingErr
}

func (s *stubClientOps) Disconnect(context.Context) error {
	s.disconnected = true
	return s.disconnectErr
}

func (s *stubClientOps) NumberSessionsInProgress() int { return s.sessions }

// stubCollOps 按字段返回预设结果，并记录收到的参数。
type stubCollOps struct {
	mu sync.Mutex

	name    string
	docs    []any // Find / Aggregate 的结果
	one     any   // FindOne 的结果，nil 表示未命中
	count   int64
	matched int64
	deleted int64
	err     error
	delay   time.Duration

	// InsertMany：第 failBatch 批（从 1 开始）返回 batchErr，并只插入 partial 条
	failBatch int
	partial   int
	batchErr  error

	inserted   []any
	batches    [][]any
	lastFilter any
}

func (s *stubCollOps) Name() string { return s.name }

func (s *stubCollOps) record(filter any) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	s.lastFilter = filter
	s.mu.Unlock()
	return s.err
}

func (s *stubCollOps) InsertOne(_ context.Context, doc any, _ ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error) {
	if err := s.record(nil); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.inserted = append(s.inserted, doc)
	s.mu.Unlock()
	return &mongo.InsertOneResult{InsertedID: bson.NewObjectID()}, nil
}

func (s *stubCollOps) InsertMany(_ context.Context, docs []any, _ ...options.Lister[options.InsertManyOptions]) (*mongo.InsertManyResult, error) {
	if err := s.record(nil); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, docs)
	n := len(docs)
	var err error
	if len(s.batches) == s.failBatch {
		n, err = s.partial, s.batchErr
	}
	ids := make([]any, n)
	for i := range ids {
		ids[i] = bson.NewObjectID()
	}
	return &mongo.InsertManyResult{InsertedIDs: ids}, err
}

func (s *stubCollOps) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) *mongo.SingleResult {
	if err := s.record(filter); err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
	}
	if s.one == nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(s.one, nil, nil)
}

func (s *stubCollOps) Find(_ context.Context, filter any, _ ...options.Lister[options.FindOptions]) (*mongo.Cursor, error) {
	if err := s.record(filter); err != nil {
		return nil, err
	}
	return mongo.NewCursorFromDocuments(s.docs, nil, nil)
}

func (s *stubCollOps) ReplaceOne(_ context.Context, filter, _ any, _ ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error) {
	if err := s.record(filter); err != nil {
		return nil, err
	}
	return &mongo.UpdateResult{MatchedCount: s.matched, ModifiedCount: s.matched}, nil
}

func (s *stubCollOps) DeleteOne(_ context.Context, filter any, _ ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error) {
	if err := s.record(filter); err != nil {
		return nil, err
	}
	return &mongo.DeleteResult{DeletedCount: s.deleted}, nil
}

func (s *stubCollOps) CountDocuments(_ context.Context, filter any, _ ...options.Lister[options.CountOptions]) (int64, error) {
	if err := s.record(filter); err != nil {
		return 0, err
	}
	return s.count, nil
}

func (s *stubCollOps) Aggregate(_ context.Context, pipeline any, _ ...options.Lister[options.AggregateOptions]) (*mongo.Cursor, error) {
	if err := s.record(pipeline); err != nil {
		return nil, err
	}
	return mongo.NewCursorFromDocuments(s.docs, nil, nil)
}

// =============================================================================
// 观测桩
// =============================================================================

type recordingObserver struct {
	mu    sync.Mutex
	spans []recordedSpan
}

type recordedSpan struct {
	opts   xmetrics.SpanOptions
	result xmetrics.Result
}

type recordingSpan struct {
	obs  *recordingObserver
	opts xmetrics.SpanOptions
}

func (o *recordingObserver) Start(ctx context.Context, opts xmetrics.SpanOptions) (context.Context, xmetrics.Span) {
	return ctx, &recordingSpan{obs: o, opts: opts}
}

func (s *recordingSpan) End(result xmetrics.Result) {
	s.obs.mu.Lock()
	defer s.obs.mu.Unlock()
	s.obs.spans = append(s.obs.spans, recordedSpan{opts: s.opts, result: result})
}

func (o *recordingObserver) last() recordedSpan {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.spans) == 0 {
		return recordedSpan{}
	}
	return o.spans[len(o.spans)-1]
}

// =============================================================================
// 辅助
// =============================================================================

func newTestWrapper(client *stubClientOps, opts ...Option) *mongoWrapper {
	return newWrapper(nil, client, opts...)
}

func newTestCollection(w *mongoWrapper, ops *stubCollOps) *collection {
	return &collection{w: w, db: "SampleDB", ops: ops}
}

var (
	errStubPing       = errors.New("stub ping error")
	errStubDisconnect = errors.New("stub disconnect error")
	errStubDriver     = errors.New("stub driver error")
)
