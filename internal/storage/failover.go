package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverStore serves from primary and switches to fallback while primary
// is failing. Primary is retried once recoveryInterval has passed.
type FailoverStore struct {
	primary  Store
	fallback Store
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

// NewFailoverStore combines a primary and a fallback store.
func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverStore{primary: primary, fallback: fallback, logger: logger}
}

func (f *FailoverStore) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) >= recoveryInterval {
		f.lastCheck = time.Now()
		return true
	}
	return false
}

func (f *FailoverStore) markDown(op string, err error) {
	if !f.isDown.Swap(true) {
		f.logger.Warn().Err(err).Str("op", op).Msg("primary state store failed, using fallback")
	}
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *FailoverStore) markUp() {
	if f.isDown.Swap(false) {
		f.logger.Info().Msg("primary state store recovered")
	}
}

// run executes op on primary, falling back when primary returns an error
// other than ErrNotFound.
func (f *FailoverStore) run(name string, op func(Store) error) error {
	if f.usePrimary() {
		err := op(f.primary)
		if err == nil || errors.Is(err, ErrNotFound) {
			f.markUp()
			return err
		}
		f.markDown(name, err)
	}
	return op(f.fallback)
}

func (f *FailoverStore) Get(ctx context.Context, key string, out any) error {
	return f.run("get", func(s Store) error { return s.Get(ctx, key, out) })
}

func (f *FailoverStore) Set(ctx context.Context, key string, value any) error {
	return f.run("set", func(s Store) error { return s.Set(ctx, key, value) })
}

func (f *FailoverStore) Remove(ctx context.Context, key string) error {
	return f.run("remove", func(s Store) error { return s.Remove(ctx, key) })
}

func (f *FailoverStore) Take(ctx context.Context, key string, out any) error {
	return f.run("take", func(s Store) error { return s.Take(ctx, key, out) })
}

// Clear wipes both stores so stale values cannot resurface on either
// side. Primary is always attempted, even while it is marked down, and its
// error is returned.
func (f *FailoverStore) Clear(ctx context.Context) error {
	perr := f.primary.Clear(ctx)
	if perr == nil {
		f.markUp()
	} else {
		f.markDown("clear", perr)
	}
	return errors.Join(perr, f.fallback.Clear(ctx))
}

func (f *FailoverStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := f.run("keys", func(s Store) error {
		var err error
		keys, err = s.Keys(ctx)
		return err
	})
	return keys, err
}

func (f *FailoverStore) Close() error {
	return errors.Join(f.primary.Close(), f.fallback.Close())
}
