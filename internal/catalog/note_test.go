package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestNoteService_CRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.notes.Create(ctx, "first")
	require.NoError(t, err)
	assert.False(t, n.ID.IsZero())

	got, err := f.notes.Get(ctx, n.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Content)

	_, err = f.notes.Create(ctx, "second")
	require.NoError(t, err)

	list, err := f.notes.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, noteProjection, f.db.Coll("notes").LastFind.Projection)

	require.NoError(t, f.notes.Delete(ctx, n.ID.Hex()))
	assert.ErrorIs(t, f.notes.Delete(ctx, n.ID.Hex()), ErrNoteNotFound)

	got, err = f.notes.Get(ctx, n.ID.Hex())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNoteService_InvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.notes.Get(ctx, "not-hex")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.ErrorIs(t, f.notes.Delete(ctx, "123"), ErrInvalidID)

	_, err = f.notes.Create(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// 参数错误不触发集合预置
	assert.Zero(t, f.db.EnsureCalls)
}

func TestNoteService_Page(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, c := range []string{"a", "b", "c", "d", "e"} {
		_, err := f.notes.Create(ctx, c)
		require.NoError(t, err)
	}

	notes, page, err := f.notes.Page(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, int64(3), page.TotalPages)
	require.Len(t, notes, 2)

	_, _, err = f.notes.Page(ctx, 0, 2)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// 页大小为 0 时取默认值
	_, page, err = f.notes.Page(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultMaxItems), page.PageSize)
}

func TestNote_JSON(t *testing.T) {
	id := bson.NewObjectID()
	b, err := json.Marshal(Note{ID: id, Content: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"`+id.Hex()+`","content":"hi"}`, string(b))
}
