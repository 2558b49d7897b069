// Package apitest runs an in-process fake of the storefront REST API for
// package tests. It counts calls per route, records the bearer tokens each
// route saw, and can be told to expire tokens or fail routes.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// Route names used by Calls, Tokens, Fail and Delay.
const (
	RouteLogin              = "login"
	RouteRefresh            = "refresh"
	RouteMe                 = "me"
	RouteUpdateAddress      = "update_address"
	RouteStores             = "stores"
	RouteStore              = "store"
	RouteMenu               = "menu"
	RouteLikes              = "likes"
	RouteCreateLike         = "create_like"
	RouteDeleteLike         = "delete_like"
	RouteReservations       = "reservations"
	RouteCreateReservation  = "create_reservation"
	RouteCancelReservation  = "cancel_reservation"
	DefaultUser             = "user@example.test"
	defaultRefreshToken     = "refresh-1"
	invalidAddressSubstring = "invalid"
)

type MenuRecord struct {
	MenuID        int64  `json:"menu_id"`
	MenuName      string `json:"menu_name"`
	DiscountRate  int    `json:"discount_rate"`
	MenuPrice     int    `json:"menu_price"`
	DiscountPrice int    `json:"discount_price"`
	IsAvailable   *bool  `json:"is_available,omitempty"`
}

type DesignerRecord struct {
	DesignerID   int64        `json:"designer_id"`
	DesignerName string       `json:"designer_name"`
	Menus        []MenuRecord `json:"menus"`
}

type StoreRecord struct {
	StoreID         int64            `json:"store_id"`
	StoreName       string           `json:"store_name"`
	StoreCategory   *string          `json:"store_category,omitempty"`
	StoreImageURL   *string          `json:"store_image_url,omitempty"`
	Distance        int              `json:"distance"`
	OnFoot          int              `json:"on_foot"`
	MenuName        string           `json:"menu_name,omitempty"`
	MaxDiscountMenu *MenuRecord      `json:"max_discount_menu,omitempty"`
	Menus           []MenuRecord     `json:"menus,omitempty"`
	Designers       []DesignerRecord `json:"designers,omitempty"`
}

type LikeRecord struct {
	LikeID    int64  `json:"like_id"`
	StoreID   int64  `json:"store_id"`
	StoreName string `json:"store_name,omitempty"`
}

type ReservationRecord struct {
	ReservationID   int64  `json:"reservation_id"`
	StoreID         int64  `json:"store_id"`
	StoreName       string `json:"store_name"`
	MenuID          int64  `json:"menu_id"`
	MenuName        string `json:"menu_name"`
	DesignerName    string `json:"designer_name,omitempty"`
	ReservationTime string `json:"reservation_time"`
	DiscountPrice   int    `json:"discount_price"`
	Status          string `json:"reservation_status"`

	Owner       string `json:"-"`
	Cancellable bool   `json:"-"`
}

type failure struct {
	status  int
	code    string
	message string
}

type claims struct {
	Generation int `json:"gen"`
	jwt.RegisteredClaims
}

// Server is a fake backend. Its zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	secret       []byte
	generation   int
	issued       int
	refreshToken string
	address      string

	stores       []StoreRecord
	likes        map[int64]LikeRecord
	nextLikeID   int64
	reservations map[int64]ReservationRecord
	nextResID    int64

	calls    map[string]int
	tokens   map[string][]string
	failures map[string]failure
	delays   map[string]time.Duration
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		secret:       []byte("apitest-secret"),
		refreshToken: defaultRefreshToken,
		likes:        make(map[int64]LikeRecord),
		nextLikeID:   100,
		reservations: make(map[int64]ReservationRecord),
		nextResID:    500,
		calls:        make(map[string]int),
		tokens:       make(map[string][]string),
		failures:     make(map[string]failure),
		delays:       make(map[string]time.Duration),
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.track)

	r.HandleFunc("/v1/accounts/login/", s.handleLogin).Methods(http.MethodPost).Name(RouteLogin)
	r.HandleFunc("/v1/accounts/login/refresh/", s.handleRefresh).Methods(http.MethodPost).Name(RouteRefresh)
	r.HandleFunc("/v1/accounts/user/me/", s.authed(s.handleMe)).Methods(http.MethodGet).Name(RouteMe)
	r.HandleFunc("/v1/accounts/user/me/", s.authed(s.handleUpdateAddress)).Methods(http.MethodPatch).Name(RouteUpdateAddress)

	r.HandleFunc("/v1/stores/", s.optionalAuth(s.handleStores)).Methods(http.MethodGet).Name(RouteStores)
	r.HandleFunc("/v1/stores/menus/{id:[0-9]+}/", s.authed(s.handleMenu)).Methods(http.MethodGet).Name(RouteMenu)
	r.HandleFunc("/v1/stores/{id:[0-9]+}/", s.optionalAuth(s.handleStore)).Methods(http.MethodGet).Name(RouteStore)

	r.HandleFunc("/v1/reservations/userlikes/", s.authed(s.handleLikes)).Methods(http.MethodGet).Name(RouteLikes)
	r.HandleFunc("/v1/reservations/userlikes/", s.authed(s.handleCreateLike)).Methods(http.MethodPost).Name(RouteCreateLike)
	r.HandleFunc("/v1/reservations/userlikes/", s.authed(s.handleDeleteLike)).Methods(http.MethodDelete).Name(RouteDeleteLike)
	r.HandleFunc("/v1/reservations/me/", s.authed(s.handleReservations)).Methods(http.MethodGet).Name(RouteReservations)
	r.HandleFunc("/v1/reservations/", s.authed(s.handleCreateReservation)).Methods(http.MethodPost).Name(RouteCreateReservation)
	r.HandleFunc("/v1/reservations/{id:[0-9]+}/", s.authed(s.handleCancel)).Methods(http.MethodDelete).Name(RouteCancelReservation)
	return r
}

// track counts the call, records its token and applies configured delays
// and failures before the handler runs.
func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}

		s.mu.Lock()
		s.calls[name]++
		s.tokens[name] = append(s.tokens[name], bearer(r))
		delay := s.delays[name]
		f, failing := s.failures[name]
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if failing {
			writeError(w, f.status, f.code, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.validToken(bearer(r)) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token is expired or invalid")
			return
		}
		h(w, r)
	}
}

func (s *Server) optionalAuth(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tok := bearer(r); tok != "" && !s.validToken(tok) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token is expired or invalid")
			return
		}
		h(w, r)
	}
}

func (s *Server) validToken(raw string) bool {
	if raw == "" {
		return false
	}
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.Generation == s.generation
}

// IssueAccessToken mints a token valid for the current generation.
func (s *Server) IssueAccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked()
}

func (s *Server) issueLocked() string {
	s.issued++
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Generation: s.generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  DefaultUser,
			ID:       strconv.Itoa(s.issued),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	return signed
}

// RefreshToken returns the refresh token the server currently accepts.
func (s *Server) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// Fail makes route answer with status and an error envelope until Recover.
func (s *Server) Fail(route string, status int, code, message string) {
	s.mu.Lock()
	s.failures[route] = failure{status: status, code: code, message: message}
	s.mu.Unlock()
}

// Recover clears a failure set with Fail.
func (s *Server) Recover(route string) {
	s.mu.Lock()
	delete(s.failures, route)
	s.mu.Unlock()
}

// Delay holds every call to route for d before answering.
func (s *Server) Delay(route string, d time.Duration) {
	s.mu.Lock()
	s.delays[route] = d
	s.mu.Unlock()
}

// Calls returns how many requests route has received.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Tokens returns the bearer tokens route received, in arrival order.
func (s *Server) Tokens(route string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens[route]...)
}

// ResetCalls clears call counters and recorded tokens.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	s.calls = make(map[string]int)
	s.tokens = make(map[string][]string)
	s.mu.Unlock()
}

func (s *Server) AddStore(rec StoreRecord) {
	s.mu.Lock()
	s.stores = append(s.stores, rec)
	s.mu.Unlock()
}

// AddLike seeds a server-side like and returns its like ID.
func (s *Server) AddLike(storeID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLikeID++
	s.likes[s.nextLikeID] = LikeRecord{LikeID: s.nextLikeID, StoreID: storeID}
	return s.nextLikeID
}

// LikedStores returns the liked store IDs in ascending order.
func (s *Server) LikedStores() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.likes))
	for _, l := range s.likes {
		out = append(out, l.StoreID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddReservation seeds a reservation. An empty owner means DefaultUser.
func (s *Server) AddReservation(rec ReservationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Owner == "" {
		rec.Owner = DefaultUser
	}
	if rec.Status == "" {
		rec.Status = "confirmed"
	}
	s.reservations[rec.ReservationID] = rec
}

func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IDToken == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ID_TOKEN", "id_token is required")
		return
	}
	s.mu.Lock()
	access := s.issueLocked()
	refresh := s.refreshToken
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token":   access,
		"refresh_token":  refresh,
		"user_email":     DefaultUser,
		"user_image_url": "https://img.example.test/me.png",
		"user_role":      "customer",
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()
	if body.RefreshToken == "" || body.RefreshToken != s.refreshToken {
		writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "refresh token is invalid")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": s.issueLocked()})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"user_email":     DefaultUser,
		"user_image_url": "https://img.example.test/me.png",
		"user_role":      "customer",
		"user_address":   s.Address(),
	})
}

func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserAddress string `json:"user_address"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if strings.TrimSpace(body.UserAddress) == "" || strings.Contains(body.UserAddress, invalidAddressSubstring) {
		writeError(w, http.StatusBadRequest, "INVALID_ADDRESS", "address is not valid")
		return
	}
	s.mu.Lock()
	s.address = body.UserAddress
	s.mu.Unlock()
	s.handleMe(w, r)
}

func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	if _, err := strconv.Atoi(r.URL.Query().Get("time")); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_TIME", "time is required")
		return
	}
	category := r.URL.Query().Get("store_category")

	s.mu.Lock()
	out := make([]StoreRecord, 0, len(s.stores))
	for _, st := range s.stores {
		if category != "" && (st.StoreCategory == nil || *st.StoreCategory != category) {
			continue
		}
		out = append(out, st)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stores {
		if st.StoreID == id {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "store not found")
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if m, ok := s.findMenu(id); ok {
		writeJSON(w, http.StatusOK, m)
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "menu not found")
}

func (s *Server) findMenu(id int64) (MenuRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stores {
		menus := append([]MenuRecord(nil), st.Menus...)
		if st.MaxDiscountMenu != nil {
			menus = append(menus, *st.MaxDiscountMenu)
		}
		for _, d := range st.Designers {
			menus = append(menus, d.Menus...)
		}
		for _, m := range menus {
			if m.MenuID == id {
				return m, true
			}
		}
	}
	return MenuRecord{}, false
}

func (s *Server) storeName(id int64) string {
	for _, st := range s.stores {
		if st.StoreID == id {
			return st.StoreName
		}
	}
	return ""
}

func (s *Server) handleLikes(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]LikeRecord, 0, len(s.likes))
	for _, l := range s.likes {
		l.StoreName = s.storeName(l.StoreID)
		out = append(out, l)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].LikeID < out[j].LikeID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateLike(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StoreID int64 `json:"store_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.StoreID == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_STORE", "store_id is required")
		return
	}
	s.mu.Lock()
	s.nextLikeID++
	rec := LikeRecord{LikeID: s.nextLikeID, StoreID: body.StoreID, StoreName: s.storeName(body.StoreID)}
	s.likes[rec.LikeID] = rec
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleDeleteLike(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LikeID int64 `json:"like_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	_, ok := s.likes[body.LikeID]
	delete(s.likes, body.LikeID)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "like not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReservations(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]ReservationRecord, 0, len(s.reservations))
	for _, rec := range s.reservations {
		if rec.Owner == DefaultUser {
			out = append(out, rec)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ReservationID < out[j].ReservationID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MenuID     int64  `json:"menu_id"`
		DesignerID *int64 `json:"designer_id"`
		Time       int    `json:"time"`
		Agreed     bool   `json:"agreed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if !body.Agreed {
		writeError(w, http.StatusBadRequest, "AGREEMENT_REQUIRED", "consent is required")
		return
	}
	menu, ok := s.findMenu(body.MenuID)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "menu not found")
		return
	}

	s.mu.Lock()
	s.nextResID++
	rec := ReservationRecord{
		ReservationID:   s.nextResID,
		MenuID:          menu.MenuID,
		MenuName:        menu.MenuName,
		ReservationTime: fmt.Sprintf("%02d:00", body.Time%24),
		DiscountPrice:   menu.DiscountPrice,
		Status:          "confirmed",
		Owner:           DefaultUser,
		Cancellable:     true,
	}
	s.reservations[rec.ReservationID] = rec
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.reservations[id]
	switch {
	case !ok:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "reservation not found")
	case rec.Owner != DefaultUser:
		writeError(w, http.StatusForbidden, "FORBIDDEN", "not your reservation")
	case !rec.Cancellable:
		writeError(w, http.StatusBadRequest, "CANCELLATION_NOT_ALLOWED", "cancellation window has passed")
	default:
		delete(s.reservations, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"message": message, "errorCode": code})
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
