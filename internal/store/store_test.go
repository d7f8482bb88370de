package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/chevai-chat/internal/catalog"
	"github.com/soyeahso/chevai-chat/internal/domain"
	"github.com/soyeahso/chevai-chat/internal/logging"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", logging.New(nil, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var t0 = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func msg(room, body string, at time.Time) domain.Message {
	return domain.Message{
		ConversationID: room,
		SenderID:       "c1",
		SenderName:     "Lan",
		SenderRole:     domain.RoleCustomer,
		Body:           body,
		CreatedAt:      at,
	}
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db.SQL())
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chat.db")
	db, err := Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.FileExists(t, path)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.migrate())

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"chat_messages", "products"} {
		var name string
		err := db.sql.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestRegexpFunction(t *testing.T) {
	db := testDB(t)

	var match int
	require.NoError(t, db.sql.QueryRow("SELECT 'Áo thun trắng' REGEXP '(?i)áo|quần'").Scan(&match))
	assert.Equal(t, 1, match)
	require.NoError(t, db.sql.QueryRow("SELECT 'Hoodie' REGEXP 'jogger'").Scan(&match))
	assert.Equal(t, 0, match)

	err := db.sql.QueryRow("SELECT 'x' REGEXP '('").Scan(&match)
	assert.Error(t, err)
}

// --- Message store, run against both implementations ---

type messageStore interface {
	Append(ctx context.Context, msg domain.Message) (domain.Message, error)
	History(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	Rooms(ctx context.Context) ([]domain.RoomSummary, error)
	DeleteRoom(ctx context.Context, roomID string) (int, error)
}

func eachMessageStore(t *testing.T, fn func(t *testing.T, s messageStore)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, NewMessageStore(testDB(t))) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryMessageStore()) })
}

func TestOpen_RegistrationErrorPersists(t *testing.T) {
	testDB(t)
	registerErr = errors.New("register failed")
	t.Cleanup(func() { registerErr = nil })

	for i := 0; i < 2; i++ {
		_, err := Open(":memory:", logging.New(nil, "silent"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "register failed")
	}
}

func TestAppend_AssignsIDAndDropsTempID(t *testing.T) {
	eachMessageStore(t, func(t *testing.T, s messageStore) {
		m := msg("user_1", "xin chào", time.Time{})
		m.TempID = "temp-1"

		saved, err := s.Append(context.Background(), m)
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Empty(t, saved.TempID)
		assert.False(t, saved.CreatedAt.IsZero())
	})
}

func TestAppend_RequiresRoom(t *testing.T) {
	eachMessageStore(t, func(t *testing.T, s messageStore) {
		_, err := s.Append(context.Background(), msg("", "hi", t0))
		assert.ErrorIs(t, err, ErrEmptyRoom)
	})
}

func TestHistory_ChronologicalMostRecent(t *testing.T) {
	eachMessageStore(t, func(t *testing.T, s messageStore) {
		ctx := context.Background()
		for i := 0; i < 60; i++ {
			_, err := s.Append(ctx, msg("user_1", fmt.Sprintf("m%02d", i), t0.Add(time.Duration(i)*time.Second)))
			require.NoError(t, err)
		}
		_, err := s.Append(ctx, msg("user_2", "other room", t0))
		require.NoError(t, err)

		hist, err := s.History(ctx, "user_1", 50)
		require.NoError(t, err)
		require.Len(t, hist, 50)
		assert.Equal(t, "m10", hist[0].Body)
		assert.Equal(t, "m59", hist[49].Body)
		for i := 1; i < len(hist); i++ {
			assert.False(t, hist[i].CreatedAt.Before(hist[i-1].CreatedAt))
		}
	})
}

func TestHistory_TiesKeepInsertOrder(t *testing.T) {
	eachMessageStore(t, func(t *testing.T, s messageStore) {
		ctx := context.Background()
		for _, body := range []string{"a", "b", "c"} {
			_, err := s.Append(ctx, msg("user_1", body, t0))
			require.NoError(t, err)
		}

		hist, err := s.History(ctx, "user_1", 50)
		require.NoError(t, err)
		require.Len(t, hist, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{hist[0].Body, hist[1].Body, hist[2].Body})
	})
}

func TestHistory_EmptyRoom(t *testing.T) {
	eachMessageStore(t, func(t *testing.T, s messageStore) {
		hist, err := s.History(context.Background(), "nobody", 50)
		require.NoError(t, err)
		assert.Empty(t, hist)
	})
}

func TestRoomsAndDelete(t *testing.T) {
	eachMessageStore(t, func(t *testing.T, s messageStore) {
		ctx := context.Background()
		_, _ = s.Append(ctx, msg("user_1", "first", t0))
		_, _ = s.Append(ctx, msg("user_1", "second", t0.Add(time.Minute)))
		_, _ = s.Append(ctx, msg("user_2", "hello", t0.Add(2*time.Minute)))

		rooms, err := s.Rooms(ctx)
		require.NoError(t, err)
		require.Len(t, rooms, 2)
		assert.Equal(t, "user_2", rooms[0].ConversationID)
		assert.Equal(t, "user_1", rooms[1].ConversationID)
		assert.Equal(t, 2, rooms[1].MessageCount)
		assert.Equal(t, "second", rooms[1].LastMessage)
		assert.Equal(t, domain.RoleCustomer, rooms[1].LastSenderRole)

		n, err := s.DeleteRoom(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		hist, err := s.History(ctx, "user_1", 50)
		require.NoError(t, err)
		assert.Empty(t, hist)
	})
}

// --- Product store ---

func seedProducts(t *testing.T, s *ProductStore) {
	t.Helper()
	items := []domain.CatalogItem{
		{ID: "t1", Name: "Áo thun basic", Price: 199000, Type: "T-shirt", Sizes: []string{"S", "M"}, CreatedAt: t0},
		{ID: "t2", Name: "Áo thun oversize", Price: 249000, Type: "T-shirt", Bestseller: true, CreatedAt: t0.Add(-time.Hour)},
		{ID: "h1", Name: "Hoodie nỉ", Price: 399000, Type: "Hoodie", Bestseller: true, CreatedAt: t0.Add(time.Hour)},
		{ID: "j1", Name: "Quần jogger", Price: 299000, Type: "Jogger", CreatedAt: t0.Add(2 * time.Hour)},
	}
	for _, it := range items {
		require.NoError(t, s.Upsert(context.Background(), it))
	}
}

func TestProductStore_FindByName(t *testing.T) {
	s := NewProductStore(testDB(t))
	seedProducts(t, s)

	items, err := s.Find(context.Background(), catalog.Filter{NamePattern: "áo|thun", Sort: catalog.SortBestsellerRecent, Limit: 20})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "t2", items[0].ID)
	assert.Equal(t, "t1", items[1].ID)
	assert.Equal(t, []string{"S", "M"}, items[1].Sizes)
	assert.Equal(t, int64(199000), items[1].Price)
}

func TestProductStore_FindByTypesAndBestseller(t *testing.T) {
	s := NewProductStore(testDB(t))
	seedProducts(t, s)
	ctx := context.Background()

	items, err := s.Find(ctx, catalog.Filter{Types: []string{"Hoodie", "Jogger"}, Sort: catalog.SortRecent})
	require.NoError(t, err)
	assert.Equal(t, []string{"j1", "h1"}, []string{items[0].ID, items[1].ID})

	items, err = s.Find(ctx, catalog.Filter{BestsellerOnly: true, Sort: catalog.SortRecent, Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "h1", items[0].ID)
}

func TestProductStore_DistinctTypesAndUpsert(t *testing.T) {
	s := NewProductStore(testDB(t))
	seedProducts(t, s)
	ctx := context.Background()

	types, err := s.DistinctTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hoodie", "Jogger", "T-shirt"}, types)

	require.NoError(t, s.Upsert(ctx, domain.CatalogItem{ID: "h1", Name: "Hoodie nỉ xám", Type: "Hoodie", CreatedAt: t0}))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Error(t, s.Upsert(ctx, domain.CatalogItem{Name: "no id"}))
}

func TestProductStore_WithLookup(t *testing.T) {
	s := NewProductStore(testDB(t))
	seedProducts(t, s)

	res := catalog.NewLookup(s, logging.New(nil, "silent")).Find(context.Background(), "áo thun")
	assert.Equal(t, catalog.TierName, res.Tier)
	assert.Len(t, res.Items, 2)
}
