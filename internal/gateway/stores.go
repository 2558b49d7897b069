package gateway

import (
	"context"
	"fmt"
	"net/http"

	"buynow/internal/models"
)

// FetchStores lists stores for a canonical hour, optionally narrowed to a
// category. The access token is attached when present but not required.
func (c *Client) FetchStores(ctx context.Context, hour int, category string) ([]models.Store, error) {
	cacheKey := fmt.Sprintf("stores:%d:%s", hour, category)

	var records []storeRecordV1
	if !c.readCache(ctx, cacheKey, &records) {
		err := c.call(ctx, request{
			op:     "fetch_stores",
			method: http.MethodGet,
			path:   "/v1/stores/",
			query:  timeQuery(hour, category),
			auth:   true,
		}, &records)
		if err != nil {
			return nil, err
		}
		c.writeCache(ctx, cacheKey, records)
	}

	stores := make([]models.Store, 0, len(records))
	for _, rec := range records {
		stores = append(stores, translateStoreV1(rec, hour))
	}
	return stores, nil
}

// FetchStore returns a store's detail record including designers.
func (c *Client) FetchStore(ctx context.Context, storeID int64, hour int) (models.Store, error) {
	var rec storeRecordV1
	err := c.call(ctx, request{
		op:     "fetch_store",
		method: http.MethodGet,
		path:   fmt.Sprintf("/v1/stores/%d/", storeID),
		query:  timeQuery(hour, ""),
		auth:   true,
	}, &rec)
	if err != nil {
		return models.Store{}, err
	}
	return translateStoreV1(rec, hour), nil
}

// FetchMenu returns the current detail of a single menu.
func (c *Client) FetchMenu(ctx context.Context, menuID int64) (models.Menu, error) {
	var rec menuRecordV1
	err := c.call(ctx, request{
		op:     "fetch_menu",
		method: http.MethodGet,
		path:   fmt.Sprintf("/v1/stores/menus/%d/", menuID),
		auth:   true,
	}, &rec)
	if err != nil {
		return models.Menu{}, err
	}
	if rec.MenuID == 0 {
		rec.MenuID = menuID
	}
	return translateMenuV1(rec), nil
}
