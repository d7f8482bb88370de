// Package convctx holds short-lived per-conversation state used by the
// automated responder to resolve follow-up references.
package convctx

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/soyeahso/chevai-chat/internal/domain"
	"github.com/soyeahso/chevai-chat/internal/logging"
	"github.com/soyeahso/chevai-chat/internal/metrics"
)

// Action is the last thing the responder did in a conversation.
type Action string

const (
	ActionNone          Action = "none"
	ActionOfferedMedia  Action = "offered_media"
	ActionMentionedItem Action = "mentioned_item"
)

const (
	DefaultTTL           = 10 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
	DefaultMaxEntries    = 10000
)

// Context is the topical state of one conversation.
type Context struct {
	Items      []domain.CatalogItem `json:"items"`
	LastAction Action               `json:"lastAction"`
	LastQuery  string               `json:"lastQuery,omitempty"`
	Provider   string               `json:"provider,omitempty"`
	UpdatedAt  time.Time            `json:"updatedAt"`
	ExpiresAt  time.Time            `json:"expiresAt"`
}

// RecentAction reports whether the last action was an offer or a mention
// made within window of now.
func (c Context) RecentAction(now time.Time, window time.Duration) bool {
	if c.LastAction != ActionOfferedMedia && c.LastAction != ActionMentionedItem {
		return false
	}
	return now.Sub(c.UpdatedAt) < window
}

// Store is a TTL cache of Context keyed by conversation id. Expiry is checked
// on every read and a background sweep bounds memory. Writes replace the
// whole entry and slide its expiry.
type Store struct {
	mu    sync.Mutex
	cache *lru.Cache

	ttl        time.Duration
	sweepEvery time.Duration
	maxEntries int
	now        func() time.Time
	log        *logging.Logger

	done   chan struct{}
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the sliding expiry window.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// WithSweepInterval sets the background sweep period. Zero disables the sweeper.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) { s.sweepEvery = d }
}

// WithMaxEntries caps the number of conversations held; the least recently
// used one is evicted first.
func WithMaxEntries(n int) Option {
	return func(s *Store) { s.maxEntries = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger attaches a logger.
func WithLogger(log *logging.Logger) Option {
	return func(s *Store) { s.log = log.Sub("convctx") }
}

// New creates a Store and starts its sweeper.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		ttl:        DefaultTTL,
		sweepEvery: DefaultSweepInterval,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		log:        logging.New(nil, "silent"),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	cache, err := lru.New(s.maxEntries)
	if err != nil {
		return nil, err
	}
	s.cache = cache

	if s.sweepEvery > 0 {
		go s.sweepLoop()
	}
	return s, nil
}

// Get returns the context for a conversation. Expired entries are evicted
// and reported as absent.
func (s *Store) Get(conversationID string) (Context, bool) {
	if conversationID == "" {
		return Context{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(conversationID)
	if !ok {
		return Context{}, false
	}
	c := v.(Context)
	if s.now().After(c.ExpiresAt) {
		s.cache.Remove(conversationID)
		metrics.ContextEntries.Set(float64(s.cache.Len()))
		return Context{}, false
	}
	return c, true
}

// Set replaces the context for a conversation and resets its expiry.
// The stored value is returned with its timestamps filled in.
func (s *Store) Set(conversationID string, c Context) Context {
	if conversationID == "" {
		return c
	}
	if c.LastAction == "" {
		c.LastAction = ActionNone
	}
	c.Items = append([]domain.CatalogItem(nil), c.Items...)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c.UpdatedAt = now
	c.ExpiresAt = now.Add(s.ttl)
	s.cache.Add(conversationID, c)
	metrics.ContextEntries.Set(float64(s.cache.Len()))
	return c
}

// Clear drops the context for a conversation.
func (s *Store) Clear(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(conversationID)
	metrics.ContextEntries.Set(float64(s.cache.Len()))
}

// Len returns the number of held entries, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// Sweep removes every expired entry and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, key := range s.cache.Keys() {
		v, ok := s.cache.Peek(key)
		if !ok {
			continue
		}
		if now.After(v.(Context).ExpiresAt) {
			s.cache.Remove(key)
			removed++
		}
	}
	metrics.ContextEntries.Set(float64(s.cache.Len()))
	return removed
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Debug().Int("removed", n).Msg("swept expired conversation contexts")
			}
		case <-s.done:
			return
		}
	}
}

// Close stops the sweeper. It is safe to call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.done)
		s.closed = true
	}
}
