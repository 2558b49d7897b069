// Package inventory holds the store listing, the liked-store set, filters and
// the selected time slot, and derives the sorted view shown to the user.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"buynow/internal/events"
	"buynow/internal/metrics"
	"buynow/internal/models"
	"buynow/internal/storage"
)

// Storage keys owned by the inventory.
const (
	KeyLikedIDs = "inventory.liked_ids"
	KeyFilters  = "inventory.filters"
	KeySnapshot = "inventory.snapshot"
	KeyAddress  = "inventory.address"
)

// ErrLikeNotFound is returned when unliking a store whose like record is
// missing on the server.
var ErrLikeNotFound = errors.New("like record not found")

// API is the part of the gateway the inventory needs.
type API interface {
	FetchStores(ctx context.Context, hour int, category string) ([]models.Store, error)
	FetchUserLikes(ctx context.Context, hour int, category string) ([]models.Like, error)
	CreateLike(ctx context.Context, storeID int64) (models.Like, error)
	DeleteLike(ctx context.Context, likeID int64) error
	UpdateUserAddress(ctx context.Context, address string) (models.User, error)
}

// Filters is the user's listing selection. Time is a display value
// ("HH:00"); empty means not yet chosen.
type Filters struct {
	Categories []string          `json:"categories"`
	Sort       models.SortOption `json:"sort"`
	Time       string            `json:"time"`
}

// Category returns the selected category or "".
func (f Filters) Category() string {
	if len(f.Categories) == 0 {
		return ""
	}
	return f.Categories[0]
}

type Option func(*Store)

// WithClock replaces the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// Store owns the inventory state. All mutation goes through its methods and
// no lock is held across API calls.
type Store struct {
	api    API
	state  storage.Store
	bus    *events.Bus
	logger *zerolog.Logger
	clock  func() time.Time

	mu          sync.RWMutex
	stores      []models.Store
	liked       map[int64]struct{}
	filters     Filters
	address     string
	loading     bool
	likeLoading bool
	seq         uint64
}

// New builds an empty inventory. It resets itself when bus reports a logout.
// state and bus may be nil.
func New(api API, state storage.Store, bus *events.Bus, logger *zerolog.Logger, opts ...Option) *Store {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Store{
		api:     api,
		state:   state,
		bus:     bus,
		logger:  logger,
		clock:   time.Now,
		liked:   make(map[int64]struct{}),
		filters: Filters{Sort: models.SortDiscount},
	}
	for _, opt := range opts {
		opt(s)
	}
	if bus != nil {
		bus.Subscribe(events.SessionLoggedOut, func(events.Event) { s.reset() })
	}
	return s
}

// Restore reloads persisted liked IDs, filters, address and the last listing.
func (s *Store) Restore(ctx context.Context) error {
	if s.state == nil {
		return nil
	}
	var (
		liked    []int64
		filters  Filters
		snapshot []models.Store
		address  string
	)
	for key, out := range map[string]any{
		KeyLikedIDs: &liked,
		KeyFilters:  &filters,
		KeySnapshot: &snapshot,
		KeyAddress:  &address,
	} {
		if err := s.state.Get(ctx, key, out); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("restore %s: %w", key, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.liked = make(map[int64]struct{}, len(liked))
	for _, id := range liked {
		s.liked[id] = struct{}{}
	}
	if filters.Sort != "" {
		filters.Sort = models.ParseSortOption(string(filters.Sort))
		s.filters = filters
	}
	s.address = address
	s.stores = snapshot
	s.overlayLocked()
	return nil
}

func (s *Store) reset() {
	s.mu.Lock()
	s.seq++
	s.stores = nil
	s.liked = make(map[int64]struct{})
	s.filters = Filters{Sort: models.SortDiscount}
	s.address = ""
	s.loading = false
	s.likeLoading = false
	s.mu.Unlock()
	s.logger.Debug().Msg("inventory reset")
}

// Stores returns a copy of the listing in fetch order.
func (s *Store) Stores() []models.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Store(nil), s.stores...)
}

// LikedIDs returns the liked store IDs in ascending order.
func (s *Store) LikedIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.likedIDsLocked()
}

func (s *Store) likedIDsLocked() []int64 {
	ids := make([]int64, 0, len(s.liked))
	for id := range s.liked {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsLiked reports the displayed like state of a store.
func (s *Store) IsLiked(storeID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLikedLocked(storeID)
}

// isLikedLocked prefers the listing flag, which carries optimistic state.
func (s *Store) isLikedLocked(storeID int64) bool {
	for _, st := range s.stores {
		if st.ID == storeID {
			return st.IsLiked
		}
	}
	_, ok := s.liked[storeID]
	return ok
}

// Loading reports whether a listing fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LikeLoading reports whether a like toggle is waiting on the server.
func (s *Store) LikeLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.likeLoading
}

// FetchStores replaces the listing with the stores for hour and category and
// overlays the liked set. It reports false when a newer fetch was issued
// while this one was in flight; that response is dropped.
func (s *Store) FetchStores(ctx context.Context, hour int, category string) (bool, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.loading = true
	s.mu.Unlock()

	stores, err := s.api.FetchStores(ctx, hour, category)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		metrics.IncListingFetch("superseded")
		s.logger.Debug().Int("hour", hour).Str("category", category).Msg("dropped superseded listing")
		return false, err
	}
	s.loading = false
	if err != nil {
		s.mu.Unlock()
		metrics.IncListingFetch("error")
		s.logger.Warn().Err(err).Int("hour", hour).Msg("fetch stores failed")
		return false, err
	}
	s.stores = stores
	s.overlayLocked()
	snapshot := append([]models.Store(nil), s.stores...)
	s.mu.Unlock()

	metrics.IncListingFetch("applied")
	s.save(ctx, KeySnapshot, snapshot)
	return true, nil
}

// Reload fetches the listing for the current filters and time.
func (s *Store) Reload(ctx context.Context) (bool, error) {
	f := s.Filters()
	return s.FetchStores(ctx, s.hourFor(f.Time), f.Category())
}

// SyncLikes replaces the liked set with the server's likes for the current
// window and reapplies the overlay.
func (s *Store) SyncLikes(ctx context.Context) error {
	f := s.Filters()
	likes, err := s.api.FetchUserLikes(ctx, s.hourFor(f.Time), f.Category())
	if err != nil {
		s.logger.Warn().Err(err).Msg("sync likes failed")
		return err
	}

	s.mu.Lock()
	s.liked = make(map[int64]struct{}, len(likes))
	for _, l := range likes {
		s.liked[l.StoreID] = struct{}{}
	}
	s.overlayLocked()
	ids := s.likedIDsLocked()
	s.mu.Unlock()

	s.save(ctx, KeyLikedIDs, ids)
	return nil
}

func (s *Store) overlayLocked() {
	for i := range s.stores {
		_, ok := s.liked[s.stores[i].ID]
		s.stores[i].IsLiked = ok
	}
}

func (s *Store) save(ctx context.Context, key string, value any) {
	if s.state == nil {
		return
	}
	if err := s.state.Set(ctx, key, value); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("persist inventory state")
	}
}
