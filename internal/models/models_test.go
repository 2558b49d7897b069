package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_MenuScope(t *testing.T) {
	plain := Store{
		Menus: []Menu{
			{ID: 1, DiscountRate: 10, DiscountPrice: 9000},
			{ID: 2, DiscountRate: 30, DiscountPrice: 7000},
		},
	}
	grouped := Store{
		Menus: []Menu{{ID: 9, DiscountRate: 90, DiscountPrice: 100}},
		Designers: []Designer{
			{ID: 1, Menus: []Menu{{ID: 3, DiscountRate: 15, DiscountPrice: 12000}}},
			{ID: 2, Menus: []Menu{{ID: 4, DiscountRate: 40, DiscountPrice: 15000}}},
		},
	}

	t.Run("MaxDiscountRate", func(t *testing.T) {
		assert.Equal(t, 30, plain.MaxDiscountRate())
		assert.Equal(t, 40, grouped.MaxDiscountRate())
		assert.Equal(t, 0, Store{}.MaxDiscountRate())
	})

	t.Run("MinDiscountPrice", func(t *testing.T) {
		p, ok := plain.MinDiscountPrice()
		assert.True(t, ok)
		assert.Equal(t, 7000, p)

		p, ok = grouped.MinDiscountPrice()
		assert.True(t, ok)
		assert.Equal(t, 12000, p)

		_, ok = Store{}.MinDiscountPrice()
		assert.False(t, ok)
	})

	t.Run("FindMenu", func(t *testing.T) {
		m, ok := grouped.FindMenu(4)
		assert.True(t, ok)
		assert.Equal(t, 40, m.DiscountRate)

		_, ok = plain.FindMenu(99)
		assert.False(t, ok)
	})
}

func TestParseSortOption(t *testing.T) {
	assert.Equal(t, SortPrice, ParseSortOption("price"))
	assert.Equal(t, SortDistance, ParseSortOption(" Distance "))
	assert.Equal(t, SortName, ParseSortOption("name"))
	assert.Equal(t, SortDiscount, ParseSortOption(""))
	assert.Equal(t, SortDiscount, ParseSortOption("bogus"))
}
