package hours

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCanonical(t *testing.T) {
	tests := []struct {
		name    string
		display string
		now     int
		want    int
	}{
		{"morning while afternoon wraps", "09:00", 14, 33},
		{"afternoon stays", "16:00", 14, 16},
		{"midnight while evening wraps", "00:00", 23, 24},
		{"noon boundary does not wrap", "09:00", 12, 9},
		{"morning while morning stays", "10:00", 8, 10},
		{"hour only", "11", 20, 35},
		{"empty uses now", "", 17, 17},
		{"already canonical passes through", "30:00", 14, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToCanonical(tt.display, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToCanonical_Invalid(t *testing.T) {
	for _, in := range []string{"ab:00", "12:xx", "36:00", "-1:00"} {
		_, err := ToCanonical(in, 10)
		assert.Error(t, err, in)
	}
}

func TestFromCanonical(t *testing.T) {
	for _, h := range []int{0, 9, 33, 35} {
		got, err := FromCanonical(h)
		require.NoError(t, err)
		assert.Equal(t, h, got, "numeric hour passes through")
	}
	_, err := FromCanonical(36)
	assert.Error(t, err)
	_, err = FromCanonical(-1)
	assert.Error(t, err)

	wrapped, err := ToCanonical("9", 14)
	require.NoError(t, err)
	assert.Equal(t, 33, wrapped, "string input is a display value")
}

func TestNextFullHour(t *testing.T) {
	tests := map[string]string{
		"14:00": "15:00",
		"14:37": "15:00",
		"23:00": "00:00",
		"23:59": "00:00",
		"00:00": "01:00",
	}
	for in, want := range tests {
		got, err := NextFullHour(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestNextFullHourAt(t *testing.T) {
	now := time.Date(2026, 10, 16, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, "15:00", NextFullHourAt(now))
	assert.Equal(t, "00:00", NextFullHourAt(now.Add(9*time.Hour+59*time.Minute)))
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "00:00", Display(24))
	assert.Equal(t, "11:00", Display(35))
	assert.Equal(t, "07:00", Display(7))
	assert.Equal(t, 9, Fold(33))
}

func TestOptions(t *testing.T) {
	now := time.Date(2026, 10, 16, 18, 20, 0, 0, time.UTC)
	opts := Options(now)
	require.Len(t, opts, OptionCount)
	assert.Equal(t, "19:00", opts[0])
	assert.Equal(t, "00:00", opts[5])
	assert.Equal(t, "06:00", opts[11])
}

func TestCanonicalProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("canonical hour is in range", prop.ForAll(
		func(h, now int) bool {
			c, err := ToCanonical(fmt.Sprintf("%02d:00", h), now)
			return err == nil && c >= 0 && c < MaxCanonical
		},
		gen.IntRange(0, 23), gen.IntRange(0, 23),
	))

	properties.Property("folding recovers the display hour", prop.ForAll(
		func(h, now int) bool {
			c, err := ToCanonical(fmt.Sprintf("%02d:00", h), now)
			return err == nil && Fold(c) == h%24 && Display(c) == fmt.Sprintf("%02d:00", h)
		},
		gen.IntRange(0, 23), gen.IntRange(0, 23),
	))

	properties.Property("next full hour never equals the current hour", prop.ForAll(
		func(h, m int) bool {
			next, err := NextFullHour(fmt.Sprintf("%02d:%02d", h, m))
			return err == nil && next != fmt.Sprintf("%02d:00", h)
		},
		gen.IntRange(0, 23), gen.IntRange(0, 59),
	))

	properties.Property("numeric canonical hours pass through", prop.ForAll(
		func(h int) bool {
			c, err := FromCanonical(h)
			return err == nil && c == h
		},
		gen.IntRange(0, MaxCanonical-1),
	))

	properties.TestingRun(t)
}
