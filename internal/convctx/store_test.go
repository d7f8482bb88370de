package convctx

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/chevai-chat/internal/domain"
)

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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now), WithSweepInterval(0)}, opts...)
	s, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, clock
}

func hoodie() domain.CatalogItem {
	return domain.CatalogItem{ID: "p1", Name: "Ringer Hoodie", Price: 350000, Type: "Hoodie"}
}

func TestGetMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, ok := s.Get("user_1")
	assert.False(t, ok)
	_, ok = s.Get("")
	assert.False(t, ok)
}

func TestSetThenGetWithinTTL(t *testing.T) {
	s, clock := newTestStore(t)

	s.Set("user_1", Context{
		Items:      []domain.CatalogItem{hoodie()},
		LastAction: ActionOfferedMedia,
		LastQuery:  "hoodie",
		Provider:   "gemini",
	})

	clock.Advance(9 * time.Minute)
	got, ok := s.Get("user_1")
	require.True(t, ok)
	assert.Equal(t, ActionOfferedMedia, got.LastAction)
	assert.Equal(t, "hoodie", got.LastQuery)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "p1", got.Items[0].ID)
}

func TestExpiresAfterTTL(t *testing.T) {
	s, clock := newTestStore(t)
	s.Set("user_1", Context{Items: []domain.CatalogItem{hoodie()}, LastAction: ActionMentionedItem})

	clock.Advance(10*time.Minute + time.Second)
	_, ok := s.Get("user_1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestWriteSlidesExpiry(t *testing.T) {
	s, clock := newTestStore(t)
	s.Set("user_1", Context{LastAction: ActionMentionedItem})

	clock.Advance(8 * time.Minute)
	s.Set("user_1", Context{LastAction: ActionOfferedMedia})

	clock.Advance(8 * time.Minute)
	got, ok := s.Get("user_1")
	require.True(t, ok)
	assert.Equal(t, ActionOfferedMedia, got.LastAction)
}

func TestReadDoesNotSlideExpiry(t *testing.T) {
	s, clock := newTestStore(t)
	s.Set("user_1", Context{LastAction: ActionMentionedItem})

	clock.Advance(6 * time.Minute)
	_, ok := s.Get("user_1")
	require.True(t, ok)

	clock.Advance(6 * time.Minute)
	_, ok = s.Get("user_1")
	assert.False(t, ok)
}

func TestSetReplacesWholesale(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set("user_1", Context{Items: []domain.CatalogItem{hoodie()}, LastQuery: "hoodie", LastAction: ActionOfferedMedia})
	s.Set("user_1", Context{})

	got, ok := s.Get("user_1")
	require.True(t, ok)
	assert.Empty(t, got.Items)
	assert.Empty(t, got.LastQuery)
	assert.Equal(t, ActionNone, got.LastAction)
}

func TestSetCopiesItems(t *testing.T) {
	s, _ := newTestStore(t)
	items := []domain.CatalogItem{hoodie()}
	s.Set("user_1", Context{Items: items})
	items[0].Name = "changed"

	got, _ := s.Get("user_1")
	assert.Equal(t, "Ringer Hoodie", got.Items[0].Name)
}

func TestClear(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set("user_1", Context{LastAction: ActionMentionedItem})
	s.Set("user_2", Context{LastAction: ActionMentionedItem})

	s.Clear("user_1")
	_, ok := s.Get("user_1")
	assert.False(t, ok)
	_, ok = s.Get("user_2")
	assert.True(t, ok)
}

func TestSweep(t *testing.T) {
	s, clock := newTestStore(t)
	s.Set("old_1", Context{})
	s.Set("old_2", Context{})
	clock.Advance(7 * time.Minute)
	s.Set("fresh", Context{})
	clock.Advance(4 * time.Minute)

	assert.Equal(t, 2, s.Sweep())
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("fresh")
	assert.True(t, ok)
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	s, _ := newTestStore(t, WithMaxEntries(2))
	s.Set("a", Context{})
	s.Set("b", Context{})
	s.Set("c", Context{})

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestCustomTTL(t *testing.T) {
	s, clock := newTestStore(t, WithTTL(time.Minute))
	s.Set("user_1", Context{})
	clock.Advance(2 * time.Minute)
	_, ok := s.Get("user_1")
	assert.False(t, ok)
}

func TestRecentAction(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	c := Context{LastAction: ActionOfferedMedia, UpdatedAt: now.Add(-2 * time.Minute)}
	assert.True(t, c.RecentAction(now, 5*time.Minute))
	assert.False(t, c.RecentAction(now, time.Minute))

	c.LastAction = ActionNone
	assert.False(t, c.RecentAction(now, 5*time.Minute))
}

func TestCloseIdempotent(t *testing.T) {
	s, err := New(WithSweepInterval(time.Millisecond))
	require.NoError(t, err)
	s.Close()
	s.Close()
}
