package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"buynow/internal/models"
)

// CancelResult is the outcome of a cancellation. A 204 response yields a
// synthetic successful result.
type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// FetchUserLikes lists the caller's likes for a canonical hour and category.
func (c *Client) FetchUserLikes(ctx context.Context, hour int, category string) ([]models.Like, error) {
	var likes []models.Like
	err := c.call(ctx, request{
		op:     "fetch_user_likes",
		method: http.MethodGet,
		path:   "/v1/reservations/userlikes/",
		query:  timeQuery(hour, category),
		auth:   true,
	}, &likes)
	if err != nil {
		return nil, err
	}
	return likes, nil
}

// CreateLike likes a store.
func (c *Client) CreateLike(ctx context.Context, storeID int64) (models.Like, error) {
	var like models.Like
	err := c.call(ctx, request{
		op:     "create_like",
		method: http.MethodPost,
		path:   "/v1/reservations/userlikes/",
		body:   map[string]int64{"store_id": storeID},
		auth:   true,
	}, &like)
	if err != nil {
		return models.Like{}, err
	}
	if like.StoreID == 0 {
		like.StoreID = storeID
	}
	return like, nil
}

// DeleteLike removes a like by its like ID, not the store ID.
func (c *Client) DeleteLike(ctx context.Context, likeID int64) error {
	return c.call(ctx, request{
		op:     "delete_like",
		method: http.MethodDelete,
		path:   "/v1/reservations/userlikes/",
		body:   map[string]int64{"like_id": likeID},
		auth:   true,
	}, nil)
}

// FetchUserReservations lists the caller's reservations.
func (c *Client) FetchUserReservations(ctx context.Context) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := c.call(ctx, request{
		op:     "fetch_user_reservations",
		method: http.MethodGet,
		path:   "/v1/reservations/me/",
		auth:   true,
	}, &reservations)
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// CreateReservation books a menu slot.
func (c *Client) CreateReservation(ctx context.Context, req models.ReservationRequest) (models.Reservation, error) {
	var reservation models.Reservation
	err := c.call(ctx, request{
		op:     "create_reservation",
		method: http.MethodPost,
		path:   "/v1/reservations/",
		body:   req,
		auth:   true,
	}, &reservation)
	if err != nil {
		return models.Reservation{}, err
	}
	if reservation.MenuID == 0 {
		reservation.MenuID = req.MenuID
	}
	return reservation, nil
}

// CancelReservation cancels one of the caller's reservations. Rejections map
// to ErrCancellationNotAllowed, ErrUnauthorized, ErrNotOwner and
// ErrReservationNotFound.
func (c *Client) CancelReservation(ctx context.Context, reservationID int64) (CancelResult, error) {
	var result CancelResult
	err := c.call(ctx, request{
		op:     "cancel_reservation",
		method: http.MethodDelete,
		path:   fmt.Sprintf("/v1/reservations/%d/", reservationID),
		auth:   true,
	}, &result)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return CancelResult{}, fmt.Errorf("cancel reservation %d: %w", reservationID, cancelError(apiErr))
		}
		return CancelResult{}, err
	}
	result.Success = true
	if result.Message == "" {
		result.Message = "reservation cancelled"
	}
	return result, nil
}
