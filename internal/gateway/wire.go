package gateway

import "buynow/internal/models"

// storeRecordV1 is the store record served by the /v1/stores endpoints.
// Listing responses carry max_discount_menu; detail responses carry menus
// and designers.
type storeRecordV1 struct {
	StoreID         int64              `json:"store_id"`
	StoreName       string             `json:"store_name"`
	StoreCategory   *string            `json:"store_category"`
	StoreImageURL   *string            `json:"store_image_url"`
	Distance        int                `json:"distance"`
	OnFoot          int                `json:"on_foot"`
	MenuName        string             `json:"menu_name"`
	MaxDiscountMenu *menuRecordV1      `json:"max_discount_menu"`
	Menus           []menuRecordV1     `json:"menus"`
	Designers       []designerRecordV1 `json:"designers"`
}

type menuRecordV1 struct {
	MenuID        int64  `json:"menu_id"`
	MenuName      string `json:"menu_name"`
	DiscountRate  int    `json:"discount_rate"`
	MenuPrice     int    `json:"menu_price"`
	DiscountPrice int    `json:"discount_price"`
	IsAvailable   *bool  `json:"is_available"`
}

type designerRecordV1 struct {
	DesignerID   int64          `json:"designer_id"`
	DesignerName string         `json:"designer_name"`
	Menus        []menuRecordV1 `json:"menus"`
}

// translateStoreV1 maps a wire record into the client model. It never fails.
//
// Defaulting rules:
//   - an absent or empty image URL or category becomes nil
//   - max_discount_menu, when present, is appended to menus as a single entry
//     unless a menu with the same ID is already there
//   - an absent availability flag means available
//   - the menu summary falls back to the max discount menu's name
//   - numeric fields that are absent stay zero
func translateStoreV1(rec storeRecordV1, hour int) models.Store {
	s := models.Store{
		ID:          rec.StoreID,
		Name:        rec.StoreName,
		MenuSummary: rec.MenuName,
		Distance:    rec.Distance,
		WalkTime:    rec.OnFoot,
		ImageURL:    nonEmpty(rec.StoreImageURL),
		Category:    nonEmpty(rec.StoreCategory),
		Hour:        hour,
		Menus:       translateMenusV1(rec.Menus),
	}

	if m := rec.MaxDiscountMenu; m != nil {
		if _, dup := s.FindMenu(m.MenuID); !dup || m.MenuID == 0 {
			s.Menus = append(s.Menus, translateMenuV1(*m))
		}
		if s.MenuSummary == "" {
			s.MenuSummary = m.MenuName
		}
	}
	if s.Menus == nil {
		s.Menus = []models.Menu{}
	}

	for _, d := range rec.Designers {
		s.Designers = append(s.Designers, models.Designer{
			ID:    d.DesignerID,
			Name:  d.DesignerName,
			Menus: translateMenusV1(d.Menus),
		})
	}
	return s
}

func translateMenusV1(recs []menuRecordV1) []models.Menu {
	if len(recs) == 0 {
		return nil
	}
	out := make([]models.Menu, 0, len(recs))
	for _, m := range recs {
		out = append(out, translateMenuV1(m))
	}
	return out
}

func translateMenuV1(m menuRecordV1) models.Menu {
	return models.Menu{
		ID:            m.MenuID,
		Name:          m.MenuName,
		DiscountRate:  m.DiscountRate,
		OriginalPrice: m.MenuPrice,
		DiscountPrice: m.DiscountPrice,
		Available:     m.IsAvailable == nil || *m.IsAvailable,
	}
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
