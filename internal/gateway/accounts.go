package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"buynow/internal/models"
)

// LoginResponse is returned by the identity-token exchange.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserEmail    string `json:"user_email"`
	UserImageURL string `json:"user_image_url"`
	UserRole     string `json:"user_role"`
}

// RefreshResponse is returned by the refresh endpoint. RefreshToken is set
// only when the server rotated it.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Login exchanges an identity-provider token for a session token pair.
func (c *Client) Login(ctx context.Context, idToken string) (LoginResponse, error) {
	if strings.TrimSpace(idToken) == "" {
		return LoginResponse{}, errors.New("login: empty identity token")
	}
	var resp LoginResponse
	err := c.call(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   "/v1/accounts/login/",
		body:   map[string]string{"id_token": idToken},
	}, &resp)
	if err != nil {
		return LoginResponse{}, err
	}
	if resp.AccessToken == "" {
		return LoginResponse{}, errors.New("login: response has no access token")
	}
	return resp, nil
}

// RefreshToken exchanges a refresh token for a new access token. It never
// goes through the retry protocol.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (RefreshResponse, error) {
	var resp RefreshResponse
	err := c.call(ctx, request{
		op:     "refresh_token",
		method: http.MethodPost,
		path:   "/v1/accounts/login/refresh/",
		body:   map[string]string{"refresh_token": refreshToken},
	}, &resp)
	if err != nil {
		return RefreshResponse{}, err
	}
	if resp.AccessToken == "" {
		return RefreshResponse{}, errors.New("refresh_token: response has no access token")
	}
	return resp, nil
}

// FetchUserInfo returns the caller's profile.
func (c *Client) FetchUserInfo(ctx context.Context) (models.User, error) {
	var user models.User
	err := c.call(ctx, request{
		op:     "fetch_user_info",
		method: http.MethodGet,
		path:   "/v1/accounts/user/me/",
		auth:   true,
	}, &user)
	return user, err
}

// UpdateUserAddress changes the caller's address. Validation failures are
// reported as ErrInvalidAddress and ErrUnauthorized.
func (c *Client) UpdateUserAddress(ctx context.Context, address string) (models.User, error) {
	var user models.User
	err := c.call(ctx, request{
		op:     "update_user_address",
		method: http.MethodPatch,
		path:   "/v1/accounts/user/me/",
		body:   map[string]string{"user_address": address},
		auth:   true,
	}, &user)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return models.User{}, fmt.Errorf("update address: %w", addressError(apiErr))
		}
		return models.User{}, err
	}
	if user.Address == "" {
		user.Address = address
	}
	return user, nil
}
