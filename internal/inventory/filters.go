package inventory

import (
	"context"
	"fmt"

	"buynow/internal/hours"
	"buynow/internal/models"
)

const addressDisplayRunes = 7

// Filters returns a copy of the current filters.
func (s *Store) Filters() Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.filters
	f.Categories = append([]string(nil), f.Categories...)
	return f
}

func (s *Store) SetSortOption(ctx context.Context, option models.SortOption) {
	s.updateFilters(ctx, func(f *Filters) { f.Sort = models.ParseSortOption(string(option)) })
}

// SetCategory selects a single category. Selecting the active category
// again clears the selection.
func (s *Store) SetCategory(ctx context.Context, category string) {
	s.updateFilters(ctx, func(f *Filters) {
		if f.Category() == category || category == "" {
			f.Categories = nil
			return
		}
		f.Categories = []string{category}
	})
}

// SetTime selects a time slot given as "HH:MM" or "HH".
func (s *Store) SetTime(ctx context.Context, display string) error {
	h, err := hours.ToCanonical(display, s.clock().Hour())
	if err != nil {
		return fmt.Errorf("set time: %w", err)
	}
	s.updateFilters(ctx, func(f *Filters) { f.Time = hours.Display(h) })
	return nil
}

// ResetFilters clears category and time and restores the default sort.
func (s *Store) ResetFilters(ctx context.Context) {
	s.updateFilters(ctx, func(f *Filters) { *f = Filters{Sort: models.SortDiscount} })
}

func (s *Store) updateFilters(ctx context.Context, fn func(*Filters)) {
	s.mu.Lock()
	fn(&s.filters)
	f := s.filters
	s.mu.Unlock()
	s.save(ctx, KeyFilters, f)
}

// TimeOptions lists the selectable hourly slots starting at the next full hour.
func (s *Store) TimeOptions() []string {
	return hours.Options(s.clock())
}

// ActiveHour is the canonical hour for the current selection, falling back
// to the next full hour when none is selected.
func (s *Store) ActiveHour() int {
	return s.hourFor(s.Filters().Time)
}

func (s *Store) hourFor(display string) int {
	now := s.clock()
	if display == "" {
		display = hours.NextFullHourAt(now)
	}
	h, err := hours.ToCanonical(display, now.Hour())
	if err != nil {
		h, _ = hours.ToCanonical(hours.NextFullHourAt(now), now.Hour())
	}
	return h
}

// CheckAndUpdateTimeIfExpired initialises the time slot to the next full
// hour, or replaces a selection that has rolled into the past. It reports
// whether the selection changed.
//
// The selection is kept as a display hour and converted against the
// current hour on every check, so "09:00" picked in the evening stays
// tomorrow morning after midnight.
func (s *Store) CheckAndUpdateTimeIfExpired(ctx context.Context) bool {
	now := s.clock()
	next := hours.NextFullHourAt(now)
	fresh, _ := hours.ToCanonical(next, now.Hour())

	s.mu.Lock()
	current := s.filters.Time
	expired := current == ""
	if !expired {
		selected, err := hours.ToCanonical(current, now.Hour())
		expired = err != nil || selected < fresh
	}
	if !expired {
		s.mu.Unlock()
		return false
	}
	s.filters.Time = next
	f := s.filters
	s.mu.Unlock()

	s.logger.Info().Str("from", current).Str("to", next).Msg("time slot updated")
	s.save(ctx, KeyFilters, f)
	return true
}

// Address returns the current address.
func (s *Store) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

// DisplayAddress shortens long addresses for compact display.
func (s *Store) DisplayAddress() string {
	r := []rune(s.Address())
	if len(r) <= addressDisplayRunes {
		return string(r)
	}
	return string(r[:addressDisplayRunes]) + "..."
}

// SetAddress replaces the local address without contacting the server.
func (s *Store) SetAddress(ctx context.Context, address string) {
	s.mu.Lock()
	s.address = address
	s.mu.Unlock()
	s.save(ctx, KeyAddress, address)
}

// UpdateAddress sets the address locally and then on the server. A server
// rejection is returned but the local value is kept.
func (s *Store) UpdateAddress(ctx context.Context, address string) error {
	s.SetAddress(ctx, address)
	if _, err := s.api.UpdateUserAddress(ctx, address); err != nil {
		s.logger.Warn().Err(err).Msg("update address failed")
		return err
	}
	return nil
}
