// Package session owns the access/refresh token pair and the single-flight
// refresh protocol used by the gateway.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"buynow/internal/events"
	"buynow/internal/gateway"
	"buynow/internal/identity"
	"buynow/internal/metrics"
	"buynow/internal/models"
	"buynow/internal/storage"
)

// Storage keys owned by the session.
const (
	KeyAccessToken  = "session.access_token"
	KeyRefreshToken = "session.refresh_token"
	KeyProfile      = "session.profile"
)

var (
	ErrNotAuthenticated = errors.New("session: not authenticated")
	ErrNoRefreshToken   = errors.New("session: no refresh token")
)

// State is the session lifecycle state.
type State int

const (
	Anonymous State = iota
	Authenticated
	Refreshing
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return "anonymous"
	}
}

// API is the part of the gateway the session needs.
type API interface {
	Login(ctx context.Context, idToken string) (gateway.LoginResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (gateway.RefreshResponse, error)
}

// Manager holds the session tokens. It satisfies gateway.TokenSource and
// oauth2.TokenSource.
type Manager struct {
	api    API
	store  storage.Store
	bus    *events.Bus
	logger *zerolog.Logger

	mu           sync.RWMutex
	accessToken  string
	refreshToken string

	refreshing atomic.Bool
	group      singleflight.Group
}

// NewManager creates an anonymous session. store and bus may be nil.
func NewManager(api API, store storage.Store, bus *events.Bus, logger *zerolog.Logger) *Manager {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Manager{api: api, store: store, bus: bus, logger: logger}
}

// Restore loads a persisted token pair. A missing pair leaves the session
// anonymous.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	var access, refresh string
	if err := m.store.Get(ctx, KeyAccessToken, &access); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("restore session: %w", err)
	}
	if err := m.store.Get(ctx, KeyRefreshToken, &refresh); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("restore session: %w", err)
	}

	m.mu.Lock()
	m.accessToken = access
	m.refreshToken = refresh
	m.mu.Unlock()
	m.logger.Debug().Bool("has_refresh_token", refresh != "").Msg("session restored")
	return nil
}

// SignIn runs the identity provider and exchanges its assertion for a
// session token pair.
func (m *Manager) SignIn(ctx context.Context, provider identity.Provider) (gateway.LoginResponse, error) {
	assertion, err := provider.SignIn(ctx)
	if err != nil {
		return gateway.LoginResponse{}, fmt.Errorf("identity sign-in: %w", err)
	}
	resp, err := m.api.Login(ctx, assertion.IDToken)
	if err != nil {
		m.logger.Warn().Err(err).Msg("login failed")
		return gateway.LoginResponse{}, err
	}
	if err := m.SetTokensFromLoginResponse(ctx, resp); err != nil {
		return gateway.LoginResponse{}, err
	}
	return resp, nil
}

// SetTokensFromLoginResponse stores the token pair unconditionally and
// caches the profile that came with it.
func (m *Manager) SetTokensFromLoginResponse(ctx context.Context, resp gateway.LoginResponse) error {
	m.mu.Lock()
	m.accessToken = resp.AccessToken
	m.refreshToken = resp.RefreshToken
	m.mu.Unlock()

	if err := m.persist(ctx); err != nil {
		return err
	}
	profile := models.User{Email: resp.UserEmail, ImageURL: resp.UserImageURL, Role: resp.UserRole}
	if m.store != nil {
		if err := m.store.Set(ctx, KeyProfile, profile); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
	}

	m.logger.Info().Str("email", resp.UserEmail).Msg("signed in")
	m.bus.Publish(events.SessionLoggedIn, profile)
	return nil
}

// Profile returns the cached profile from the last sign-in.
func (m *Manager) Profile(ctx context.Context) (models.User, bool) {
	if m.store == nil {
		return models.User{}, false
	}
	var u models.User
	if err := m.store.Get(ctx, KeyProfile, &u); err != nil {
		return models.User{}, false
	}
	return u, true
}

// IsValid reports whether an access token is present. Expiry is enforced by
// the server.
func (m *Manager) IsValid() bool {
	return m.AccessToken() != ""
}

// AccessToken returns the current access token or "".
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

// State reports Refreshing while a refresh runs, otherwise whether an
// access token is held.
func (m *Manager) State() State {
	if m.refreshing.Load() {
		return Refreshing
	}
	if m.IsValid() {
		return Authenticated
	}
	return Anonymous
}

// Token implements oauth2.TokenSource.
func (m *Manager) Token() (*oauth2.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.accessToken == "" {
		return nil, ErrNotAuthenticated
	}
	return &oauth2.Token{
		AccessToken:  m.accessToken,
		RefreshToken: m.refreshToken,
		TokenType:    "Bearer",
	}, nil
}

// Refresh obtains a new access token after rejected was refused.
//
// Concurrent callers share one refresh call and its outcome. A caller whose
// rejected token has already been replaced gets true without a new call.
// A failed refresh logs the session out and publishes
// events.SessionLoginRequired.
func (m *Manager) Refresh(ctx context.Context, rejected string) bool {
	if m.replaced(rejected) {
		return true
	}
	// The shared call must not die with whichever caller started it.
	shared := context.WithoutCancel(ctx)
	v, _, _ := m.group.Do("refresh", func() (any, error) {
		if m.replaced(rejected) {
			return true, nil
		}
		return m.refresh(shared), nil
	})
	return v.(bool)
}

func (m *Manager) replaced(rejected string) bool {
	current := m.AccessToken()
	return rejected != "" && current != "" && current != rejected
}

func (m *Manager) refresh(ctx context.Context) bool {
	m.refreshing.Store(true)
	defer m.refreshing.Store(false)

	m.mu.RLock()
	refreshToken := m.refreshToken
	m.mu.RUnlock()

	if refreshToken == "" {
		m.logger.Warn().Err(ErrNoRefreshToken).Msg("cannot refresh session")
		metrics.IncTokenRefresh("no_refresh_token")
		m.expire(ctx)
		return false
	}

	m.logger.Debug().Msg("refreshing access token")
	resp, err := m.api.RefreshToken(ctx, refreshToken)
	if err != nil {
		m.logger.Warn().Err(err).Msg("token refresh failed")
		metrics.IncTokenRefresh("failure")
		m.expire(ctx)
		return false
	}

	m.mu.Lock()
	m.accessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		m.refreshToken = resp.RefreshToken
	}
	m.mu.Unlock()

	if err := m.persist(ctx); err != nil {
		m.logger.Error().Err(err).Msg("persist refreshed tokens")
	}
	metrics.IncTokenRefresh("success")
	m.logger.Info().Bool("rotated", resp.RefreshToken != "").Msg("access token refreshed")
	return true
}

// expire ends the session after an unrecoverable refresh failure.
func (m *Manager) expire(ctx context.Context) {
	if err := m.Logout(ctx); err != nil {
		m.logger.Error().Err(err).Msg("logout after refresh failure")
	}
	m.bus.Publish(events.SessionLoginRequired, nil)
}

// Logout clears the tokens and every persisted piece of client state.
// It is idempotent.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.accessToken = ""
	m.refreshToken = ""
	m.mu.Unlock()

	var err error
	if m.store != nil {
		if err = m.store.Clear(ctx); err != nil {
			err = fmt.Errorf("clear client state: %w", err)
		}
	}
	m.logger.Info().Msg("logged out")
	m.bus.Publish(events.SessionLoggedOut, nil)
	return err
}

func (m *Manager) persist(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	m.mu.RLock()
	access, refresh := m.accessToken, m.refreshToken
	m.mu.RUnlock()

	if err := m.store.Set(ctx, KeyAccessToken, access); err != nil {
		return fmt.Errorf("save access token: %w", err)
	}
	if refresh == "" {
		if err := m.store.Remove(ctx, KeyRefreshToken); err != nil {
			return fmt.Errorf("remove refresh token: %w", err)
		}
		return nil
	}
	if err := m.store.Set(ctx, KeyRefreshToken, refresh); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}
