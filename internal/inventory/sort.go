package inventory

import (
	"math"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"buynow/internal/models"
)

// SortedStores returns the listing ordered by the current sort option. Ties
// are broken by name in locale order and then by ID. Category is not
// filtered here; the server already narrowed the listing.
func (s *Store) SortedStores() []models.Store {
	s.mu.RLock()
	option := s.filters.Sort
	stores := append([]models.Store(nil), s.stores...)
	s.mu.RUnlock()

	SortStores(stores, option)
	return stores
}

// SortStores orders stores in place.
func SortStores(stores []models.Store, option models.SortOption) {
	col := collate.New(language.Und, collate.Loose)
	byName := func(a, b models.Store) int {
		if c := col.CompareString(a.Name, b.Name); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	}

	primary := func(a, b models.Store) int { return 0 }
	switch option {
	case models.SortDiscount:
		primary = func(a, b models.Store) int {
			return compareInt(b.MaxDiscountRate(), a.MaxDiscountRate())
		}
	case models.SortPrice:
		primary = func(a, b models.Store) int {
			return compareInt(minPrice(a), minPrice(b))
		}
	case models.SortDistance:
		primary = func(a, b models.Store) int {
			return compareInt(a.Distance, b.Distance)
		}
	}

	sort.SliceStable(stores, func(i, j int) bool {
		if c := primary(stores[i], stores[j]); c != 0 {
			return c < 0
		}
		return byName(stores[i], stores[j]) < 0
	})
}

// minPrice places stores without menus after every priced store.
func minPrice(s models.Store) int {
	if p, ok := s.MinDiscountPrice(); ok {
		return p
	}
	return math.MaxInt
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
