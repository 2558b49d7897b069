package gateway

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateStoreV1(t *testing.T) {
	img := "https://img.example.test/a.png"
	unavailable := false

	t.Run("listing record", func(t *testing.T) {
		s := translateStoreV1(storeRecordV1{
			StoreID:       3,
			StoreName:     "Nail Bar",
			StoreImageURL: &img,
			MaxDiscountMenu: &menuRecordV1{
				MenuID: 9, MenuName: "Gel", DiscountRate: 40, MenuPrice: 30000, DiscountPrice: 18000, IsAvailable: &unavailable,
			},
		}, 20)

		require.NotNil(t, s.ImageURL)
		assert.Equal(t, img, *s.ImageURL)
		assert.Nil(t, s.Category)
		require.Len(t, s.Menus, 1)
		assert.False(t, s.Menus[0].Available)
		assert.Equal(t, 30000, s.Menus[0].OriginalPrice)
		assert.Equal(t, "Gel", s.MenuSummary)
		assert.Equal(t, 20, s.Hour)
	})

	t.Run("detail record keeps menus without duplicating max discount", func(t *testing.T) {
		menu := menuRecordV1{MenuID: 1, MenuName: "Cut", DiscountRate: 10}
		s := translateStoreV1(storeRecordV1{
			StoreID:         4,
			MenuName:        "Cut and more",
			Menus:           []menuRecordV1{menu, {MenuID: 2, DiscountRate: 5}},
			MaxDiscountMenu: &menu,
			Designers: []designerRecordV1{{
				DesignerID: 8, DesignerName: "Jun", Menus: []menuRecordV1{{MenuID: 3, DiscountRate: 50}},
			}},
		}, 9)

		assert.Len(t, s.Menus, 2)
		assert.Equal(t, "Cut and more", s.MenuSummary)
		require.Len(t, s.Designers, 1)
		assert.Equal(t, 50, s.MaxDiscountRate())
	})

	t.Run("empty record", func(t *testing.T) {
		s := translateStoreV1(storeRecordV1{}, 0)
		assert.NotNil(t, s.Menus)
		assert.Empty(t, s.Menus)
		assert.Nil(t, s.ImageURL)
		assert.False(t, s.HasDesigners())
	})
}

func TestNewAPIError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		wantCode string
	}{
		{"message and errorCode", 400, `{"message":"bad","errorCode":"INVALID_ADDRESS"}`, "bad", "INVALID_ADDRESS"},
		{"error and code", 403, `{"error":"nope","code":" FORBIDDEN "}`, "nope", "FORBIDDEN"},
		{"not json", 502, `<html>`, http.StatusText(502), ""},
		{"empty", 404, ``, http.StatusText(404), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newAPIError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.wantMsg, e.Message)
			assert.Equal(t, tt.wantCode, e.Code)
		})
	}
}

func TestCancelErrorPassthrough(t *testing.T) {
	api := &APIError{Status: http.StatusBadRequest, Code: "OTHER"}
	err := cancelError(api)
	assert.Same(t, api, err)
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
}
