package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omeyang/docdemo/internal/storageopt"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/storage/xmongo"
)

// NoteService 笔记读写，ID 为 ObjectID。
type NoteService struct {
	guard *CollectionGuard
	opts  *options
	log   xlog.Logger
}

func NewNoteService(guard *CollectionGuard, opts ...Option) (*NoteService, error) {
	if guard == nil {
		return nil, errNilGuard
	}
	o := applyOptions(opts)
	return &NoteService{
		guard: guard,
		opts:  o,
		log:   o.logger.With(xlog.Component("catalog"), xlog.Resource(guard.Name())),
	}, nil
}

var noteProjection = bson.D{{Key: "_id", Value: 1}, {Key: "content", Value: 1}}

// List 全部笔记，按 ID（即创建时间）排序。
func (s *NoteService) List(ctx context.Context) ([]Note, error) {
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	notes := []Note{}
	err = coll.Find(ctx, nil, &notes, xmongo.FindOptions{
		Sort:       bson.D{{Key: "_id", Value: 1}},
		Projection: noteProjection,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: list notes: %w", err)
	}
	return notes, nil
}

// Page 分页列出笔记。
func (s *NoteService) Page(ctx context.Context, page, pageSize int64) ([]Note, *xmongo.Page, error) {
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, nil, err
	}
	notes := []Note{}
	p, err := coll.FindPage(ctx, nil, &notes, xmongo.PageOptions{
		Page:       page,
		PageSize:   int64(storageopt.ClampLimit(int(pageSize), DefaultMaxItems, MaxItemsLimit)),
		Sort:       bson.D{{Key: "_id", Value: 1}},
		Projection: noteProjection,
	})
	if err != nil {
		if errors.Is(err, xmongo.ErrInvalidPage) || errors.Is(err, xmongo.ErrInvalidPageSize) ||
			errors.Is(err, xmongo.ErrPageOverflow) {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return nil, nil, fmt.Errorf("catalog: page notes: %w", err)
	}
	return notes, p, nil
}

// Get 未命中返回 nil, nil；hexID 不合法返回 ErrInvalidID。
func (s *NoteService) Get(ctx context.Context, hexID string) (*Note, error) {
	id, err := parseNoteID(hexID)
	if err != nil {
		return nil, err
	}
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	var n Note
	err = coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}, &n)
	if errors.Is(err, xmongo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get note: %w", err)
	}
	return &n, nil
}

// Create 写入一条笔记，ID 在客户端生成。
func (s *NoteService) Create(ctx context.Context, content string) (*Note, error) {
	if err := requireArgs("content", content); err != nil {
		return nil, err
	}
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	n := Note{ID: bson.NewObjectID(), Content: content}
	if err := coll.InsertOne(ctx, n); err != nil {
		s.log.Error(ctx, "create note failed", xlog.Operation("create"), xlog.Err(err))
		return nil, fmt.Errorf("catalog: create note: %w", err)
	}
	return &n, nil
}

// Delete 没有删除任何文档时返回 ErrNoteNotFound。
func (s *NoteService) Delete(ctx context.Context, hexID string) error {
	id, err := parseNoteID(hexID)
	if err != nil {
		return err
	}
	coll, err := s.guard.EnsureReady(ctx)
	if err != nil {
		return err
	}
	ok, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("catalog: delete note: %w", err)
	}
	if !ok {
		return ErrNoteNotFound
	}
	return nil
}

func parseNoteID(hexID string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(hexID)
	if err != nil {
		return bson.ObjectID{}, fmt.Errorf("%w: %q", ErrInvalidID, hexID)
	}
	return id, nil
}
