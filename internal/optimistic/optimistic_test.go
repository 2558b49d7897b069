package optimistic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolChange(v *bool) Change[bool] {
	return Change[bool]{
		Read:  func() bool { return *v },
		Write: func(b bool) { *v = b },
	}
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("Commit", func(t *testing.T) {
		liked := false
		var seen bool
		err := Do(ctx, boolChange(&liked), true, func(_ context.Context, prior bool) error {
			seen = liked
			assert.False(t, prior)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, seen, "tentative value visible during remote call")
		assert.True(t, liked)
	})

	t.Run("Rollback", func(t *testing.T) {
		liked := false
		boom := errors.New("boom")
		err := Do(ctx, boolChange(&liked), true, func(context.Context, bool) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.False(t, liked)
	})
}

func TestTx_SettleOnce(t *testing.T) {
	v := 1
	c := Change[int]{Read: func() int { return v }, Write: func(n int) { v = n }}

	tx := c.Apply(2)
	assert.Equal(t, 1, tx.Prior())
	tx.Commit()
	v = 5
	tx.Rollback()
	assert.Equal(t, 5, v, "rollback after commit must not restore")

	tx = c.Apply(7)
	tx.Rollback()
	assert.Equal(t, 5, v)
	tx.Rollback()
	assert.Equal(t, 5, v)
}
