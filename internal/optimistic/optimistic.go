// Package optimistic applies a tentative local change before a remote call
// settles and either keeps it or restores the prior value.
package optimistic

import "context"

// Change is one optimistic mutation of a value of type T.
//
// Read returns the current value, Write replaces it. Both are called with
// whatever locking the owner needs; Change itself holds no lock while the
// remote call is in flight.
type Change[T any] struct {
	Read  func() T
	Write func(T)
}

// Tx is an applied but unsettled change.
type Tx[T any] struct {
	change  Change[T]
	prior   T
	settled bool
}

// Apply snapshots the current value and writes the tentative one.
func (c Change[T]) Apply(tentative T) *Tx[T] {
	tx := &Tx[T]{change: c, prior: c.Read()}
	c.Write(tentative)
	return tx
}

// Prior returns the value captured before the tentative write.
func (tx *Tx[T]) Prior() T {
	return tx.prior
}

// Commit keeps the tentative value. Settling twice is a no-op.
func (tx *Tx[T]) Commit() {
	tx.settled = true
}

// Rollback restores the prior value unless the change was already settled.
func (tx *Tx[T]) Rollback() {
	if tx.settled {
		return
	}
	tx.settled = true
	tx.change.Write(tx.prior)
}

// Settle commits when err is nil and rolls back otherwise. It returns err.
func (tx *Tx[T]) Settle(err error) error {
	if err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

// Do applies tentative, runs remote and settles on its result.
func Do[T any](ctx context.Context, c Change[T], tentative T, remote func(ctx context.Context, prior T) error) error {
	tx := c.Apply(tentative)
	return tx.Settle(remote(ctx, tx.Prior()))
}
