package catalog

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omeyang/docdemo/internal/catalog/catalogtest"
	"github.com/omeyang/docdemo/pkg/observability/xlog"
	"github.com/omeyang/docdemo/pkg/resource/xinit"
	"github.com/omeyang/docdemo/pkg/storage/xmongo"
	"github.com/omeyang/docdemo/pkg/util/xid"
)

// =============================================================================
// 测试夹具
// =============================================================================

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

type fixture struct {
	db        *catalogtest.MemDB
	clock     *fakeClock
	products  *ProductService
	customers *CustomerService
	orders    *OrderService
	notes     *NoteService
	guards    map[string]*CollectionGuard
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func guardOpts() []xinit.Option {
	return []xinit.Option{
		xinit.WithMaxRetries(3),
		xinit.WithRetryDelay(0),
		xinit.WithLogger(xlog.Discard()),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := catalogtest.NewMemDB()
	clock := &fakeClock{now: fixedNow}
	ids, err := xid.NewGenerator(xid.WithMachineID(7))
	require.NoError(t, err)
	opts := []Option{WithLogger(xlog.Discard()), WithClock(clock.Now), WithIDGenerator(ids)}

	f := &fixture{db: db, clock: clock, guards: make(map[string]*CollectionGuard)}
	for _, spec := range []xmongo.CollectionSpec{ProductsSpec, CustomersSpec, OrdersSpec, NotesSpec} {
		g, err := NewCollectionGuard(db, spec, guardOpts()...)
		require.NoError(t, err)
		f.guards[spec.Name] = g
	}
	f.products, err = NewProductService(f.guards[ProductsSpec.Name], opts...)
	require.NoError(t, err)
	f.customers, err = NewCustomerService(f.guards[CustomersSpec.Name], opts...)
	require.NoError(t, err)
	f.orders, err = NewOrderService(f.guards[OrdersSpec.Name], opts...)
	require.NoError(t, err)
	f.notes, err = NewNoteService(f.guards[NotesSpec.Name], opts...)
	require.NoError(t, err)
	return f
}

func ptr[T any](v T) *T { return &v }
