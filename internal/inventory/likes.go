package inventory

import (
	"context"

	"buynow/internal/events"
	"buynow/internal/metrics"
	"buynow/internal/optimistic"
)

// LikeToggled is the payload of events.LikeToggled.
type LikeToggled struct {
	StoreID int64
	Liked   bool
}

// ToggleLike flips a store's like state optimistically and reconciles it
// with the server. Unliking looks the like record up first because the
// server deletes by like ID. Any failure restores the previous state.
func (s *Store) ToggleLike(ctx context.Context, storeID int64) error {
	s.mu.Lock()
	wasLiked := s.isLikedLocked(storeID)
	s.likeLoading = true
	filters := s.filters
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.likeLoading = false
		s.mu.Unlock()
	}()

	action := "like"
	if wasLiked {
		action = "unlike"
	}
	target := !wasLiked

	change := optimistic.Change[bool]{
		Read:  func() bool { return s.IsLiked(storeID) },
		Write: func(v bool) { s.setFlag(storeID, v) },
	}
	err := optimistic.Do(ctx, change, target, func(ctx context.Context, _ bool) error {
		if wasLiked {
			return s.unlike(ctx, storeID, s.hourFor(filters.Time), filters.Category())
		}
		_, err := s.api.CreateLike(ctx, storeID)
		return err
	})
	if err != nil {
		metrics.IncLikeToggle(action, "reverted")
		s.logger.Warn().Err(err).Int64("store_id", storeID).Str("action", action).Msg("like toggle reverted")
		return err
	}

	s.mu.Lock()
	if target {
		s.liked[storeID] = struct{}{}
	} else {
		delete(s.liked, storeID)
	}
	s.setFlagLocked(storeID, target)
	ids := s.likedIDsLocked()
	s.mu.Unlock()

	metrics.IncLikeToggle(action, "ok")
	s.save(ctx, KeyLikedIDs, ids)
	s.bus.Publish(events.LikeToggled, LikeToggled{StoreID: storeID, Liked: target})
	return nil
}

func (s *Store) unlike(ctx context.Context, storeID int64, hour int, category string) error {
	likes, err := s.api.FetchUserLikes(ctx, hour, category)
	if err != nil {
		return err
	}
	for _, l := range likes {
		if l.StoreID == storeID {
			return s.api.DeleteLike(ctx, l.ID)
		}
	}
	return ErrLikeNotFound
}

func (s *Store) setFlag(storeID int64, liked bool) {
	s.mu.Lock()
	s.setFlagLocked(storeID, liked)
	s.mu.Unlock()
}

func (s *Store) setFlagLocked(storeID int64, liked bool) {
	for i := range s.stores {
		if s.stores[i].ID == storeID {
			s.stores[i].IsLiked = liked
		}
	}
}
