//go:build integration

package xmongo

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// =============================================================================
// 测试环境
// =============================================================================

func setupMongo(t *testing.T) Mongo {
	t.Helper()

	uri := os.Getenv("DOCDEMO_MONGO_URI")
	if uri == "" {
		uri = startMongoContainer(t)
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		t.Fatalf("mongo ping failed: %v", err)
	}

	m, err := New(client, WithSlowQueryThreshold(time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func startMongoContainer(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not found in PATH, skipping integration test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7.0",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("mongo container not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port())
}

// =============================================================================
// 集合预置
// =============================================================================

func TestEnsureCollection_Integration(t *testing.T) {
	m := setupMongo(t)
	ctx := context.Background()
	db := m.Database(fmt.Sprintf("it_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = m.Client().Database(db.Name()).Drop(context.Background()) })

	spec := CollectionSpec{Name: "Products", PartitionKey: "category"}

	ok, err := db.CollectionExists(ctx, "Products")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = db.EnsureCollection(ctx, spec)
	require.NoError(t, err)

	// 第二次调用是幂等的
	coll, err := db.EnsureCollection(ctx, spec)
	require.NoError(t, err)

	ok, err = db.CollectionExists(ctx, "Products")
	require.NoError(t, err)
	assert.True(t, ok)

	// 外部删除后存活检查失败
	require.NoError(t, m.Client().Database(db.Name()).Collection("Products").Drop(ctx))
	ok, err = db.CollectionExists(ctx, coll.Name())
	require.NoError(t, err)
	assert.False(t, ok)
}

// =============================================================================
// CRUD
// =============================================================================

type product struct {
	ID       string  `bson:"_id"`
	Name     string  `bson:"name"`
	Category string  `bson:"category"`
	Price    float64 `bson:"price"`
}

func TestCollection_CRUD_Integration(t *testing.T) {
	m := setupMongo(t)
	ctx := context.Background()
	db := m.Database(fmt.Sprintf("it_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = m.Client().Database(db.Name()).Drop(context.Background()) })

	coll, err := db.EnsureCollection(ctx, CollectionSpec{Name: "Products", PartitionKey: "category"})
	require.NoError(t, err)

	require.NoError(t, coll.InsertOne(ctx, product{ID: "p1", Name: "Laptop", Category: "Electronics", Price: 999.99}))

	docs := []any{
		product{ID: "p2", Name: "Mug", Category: "Home", Price: 12.99},
		product{ID: "p3", Name: "Phone", Category: "Electronics", Price: 699.99},
	}
	res, err := coll.InsertMany(ctx, docs, BulkOptions{Ordered: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.InsertedCount)

	var got product
	require.NoError(t, coll.FindOne(ctx, bson.D{{Key: "_id", Value: "p1"}, {Key: "category", Value: "Electronics"}}, &got))
	assert.Equal(t, "Laptop", got.Name)

	err = coll.FindOne(ctx, bson.D{{Key: "_id", Value: "p1"}, {Key: "category", Value: "Home"}}, &got)
	assert.ErrorIs(t, err, ErrNotFound, "分区键不匹配视为未命中")

	var list []product
	require.NoError(t, coll.Find(ctx, bson.D{{Key: "category", Value: "Electronics"}}, &list, FindOptions{
		Sort: bson.D{{Key: "price", Value: -1}},
	}))
	require.Len(t, list, 2)
	assert.Equal(t, "p1", list[0].ID)

	var page []product
	p, err := coll.FindPage(ctx, nil, &page, PageOptions{Page: 2, PageSize: 2, Sort: bson.D{{Key: "_id", Value: 1}}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Total)
	assert.Equal(t, int64(2), p.TotalPages)
	require.Len(t, page, 1)
	assert.Equal(t, "p3", page[0].ID)

	matched, err := coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: "p2"}}, product{ID: "p2", Name: "Big Mug", Category: "Home", Price: 15})
	require.NoError(t, err)
	assert.True(t, matched)

	var groups []struct {
		Category string `bson:"_id"`
		Count    int64  `bson:"count"`
	}
	require.NoError(t, coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$category"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}, &groups))
	require.Len(t, groups, 2)
	assert.Equal(t, int64(2), groups[0].Count)

	deleted, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: "p2"}})
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: "p2"}})
	require.NoError(t, err)
	assert.False(t, deleted)

	n, err := coll.CountDocuments(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, m.Health(ctx))
	st := m.Stats()
	assert.Positive(t, st.Operations)
	assert.Equal(t, int64(1), st.Pings)
}
