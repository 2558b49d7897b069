package models

import "strings"

// Menu is a discounted menu slot offered by a store.
type Menu struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	DiscountRate  int    `json:"discount_rate"` // percent
	OriginalPrice int    `json:"original_price"`
	DiscountPrice int    `json:"discount_price"`
	Available     bool   `json:"available"`
}

// Designer groups menus under a bookable person or space.
type Designer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Menus []Menu `json:"menus"`
}

// Store is a listing entry as the client keeps it.
type Store struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	MenuSummary string     `json:"menu_summary"`
	Distance    int        `json:"distance"`  // meters
	WalkTime    int        `json:"walk_time"` // minutes
	ImageURL    *string    `json:"image_url,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Hour        int        `json:"hour"` // canonical hour the listing was fetched under
	Menus       []Menu     `json:"menus"`
	Designers   []Designer `json:"designers,omitempty"`
	IsLiked     bool       `json:"is_liked"`
}

// HasDesigners reports whether menus are grouped under designers.
func (s Store) HasDesigners() bool {
	return len(s.Designers) > 0
}

// AllMenus returns the menu scope used for sorting: designer menus when
// the store has designers, otherwise the store's own menus.
func (s Store) AllMenus() []Menu {
	if !s.HasDesigners() {
		return s.Menus
	}
	var out []Menu
	for _, d := range s.Designers {
		out = append(out, d.Menus...)
	}
	return out
}

// MaxDiscountRate returns the highest discount rate in the menu scope, 0 if empty.
func (s Store) MaxDiscountRate() int {
	best := 0
	for i, m := range s.AllMenus() {
		if i == 0 || m.DiscountRate > best {
			best = m.DiscountRate
		}
	}
	return best
}

// MinDiscountPrice returns the lowest discounted price in the menu scope.
// The boolean is false when the store has no menus.
func (s Store) MinDiscountPrice() (int, bool) {
	menus := s.AllMenus()
	if len(menus) == 0 {
		return 0, false
	}
	best := menus[0].DiscountPrice
	for _, m := range menus[1:] {
		if m.DiscountPrice < best {
			best = m.DiscountPrice
		}
	}
	return best, true
}

// FindMenu looks a menu up by ID in the store's menus and designer menus.
func (s Store) FindMenu(menuID int64) (Menu, bool) {
	for _, m := range s.Menus {
		if m.ID == menuID {
			return m, true
		}
	}
	for _, d := range s.Designers {
		for _, m := range d.Menus {
			if m.ID == menuID {
				return m, true
			}
		}
	}
	return Menu{}, false
}

// SortOption selects the listing order.
type SortOption string

const (
	SortDiscount SortOption = "discount"
	SortPrice    SortOption = "price"
	SortDistance SortOption = "distance"
	SortName     SortOption = "name"
)

// ParseSortOption maps user input to a SortOption, defaulting to discount.
func ParseSortOption(s string) SortOption {
	switch SortOption(strings.ToLower(strings.TrimSpace(s))) {
	case SortPrice:
		return SortPrice
	case SortDistance:
		return SortDistance
	case SortName:
		return SortName
	default:
		return SortDiscount
	}
}

// Like is a server-side like record.
type Like struct {
	ID      int64 `json:"like_id"`
	StoreID int64 `json:"store_id"`
}
