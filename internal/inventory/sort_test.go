package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"buynow/internal/models"
)

func store(id int64, name string, distance int, menus ...models.Menu) models.Store {
	return models.Store{ID: id, Name: name, Distance: distance, Menus: menus}
}

func rate(r int) models.Menu { return models.Menu{DiscountRate: r} }

func price(p int) models.Menu { return models.Menu{DiscountPrice: p} }

func names(ss []models.Store) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.Name)
	}
	return out
}

func TestSortStores(t *testing.T) {
	tests := []struct {
		name   string
		option models.SortOption
		stores []models.Store
		want   []string
	}{
		{
			name:   "discount uses the max rate",
			option: models.SortDiscount,
			stores: []models.Store{store(2, "B", 0, rate(20)), store(1, "A", 0, rate(10), rate(30))},
			want:   []string{"A", "B"},
		},
		{
			name:   "discount ties break by name",
			option: models.SortDiscount,
			stores: []models.Store{store(1, "charlie", 0, rate(20)), store(2, "Bravo", 0, rate(20)), store(3, "alpha", 0, rate(20))},
			want:   []string{"alpha", "Bravo", "charlie"},
		},
		{
			name:   "price uses the min discounted price",
			option: models.SortPrice,
			stores: []models.Store{
				store(1, "A", 0, price(9000)),
				store(2, "B", 0, price(12000), price(3000)),
				store(3, "C", 0),
			},
			want: []string{"B", "A", "C"},
		},
		{
			name:   "distance ascending",
			option: models.SortDistance,
			stores: []models.Store{store(1, "A", 900), store(2, "B", 100), store(3, "C", 500)},
			want:   []string{"B", "C", "A"},
		},
		{
			name:   "name only",
			option: models.SortName,
			stores: []models.Store{store(1, "Éclair", 0, rate(90)), store(2, "Donut", 0), store(3, "Fig", 0)},
			want:   []string{"Donut", "Éclair", "Fig"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SortStores(tt.stores, tt.option)
			assert.Equal(t, tt.want, names(tt.stores))
		})
	}
}

func TestSortStoresDesignerMenus(t *testing.T) {
	withDesigners := models.Store{
		ID:        1,
		Name:      "Salon",
		Menus:     []models.Menu{rate(5)},
		Designers: []models.Designer{{Menus: []models.Menu{rate(40)}}, {Menus: []models.Menu{rate(15)}}},
	}
	plain := store(2, "Barber", 0, rate(30))

	stores := []models.Store{plain, withDesigners}
	SortStores(stores, models.SortDiscount)
	assert.Equal(t, []string{"Salon", "Barber"}, names(stores))
}

func TestSortedStoresDeterministic(t *testing.T) {
	inv := New(nil, nil, nil, nil)
	inv.stores = []models.Store{
		store(1, "Zeta", 0, rate(20)),
		store(2, "Eta", 0, rate(20)),
		store(3, "Theta", 0, rate(20)),
	}

	first := names(inv.SortedStores())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, names(inv.SortedStores()))
	}
	assert.Equal(t, []string{"Eta", "Theta", "Zeta"}, first)
	assert.Equal(t, "Zeta", inv.Stores()[0].Name, "listing order untouched")
}
