package reservation

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buynow/internal/apitest"
	"buynow/internal/events"
	"buynow/internal/gateway"
	"buynow/internal/identity"
	"buynow/internal/models"
	"buynow/internal/session"
	"buynow/internal/storage"
)

var (
	hairLab = models.Store{ID: 1, Name: "Hair Lab"}
	mina    = &models.Designer{ID: 4, Name: "Mina"}
	cut     = models.Menu{ID: 40, Name: "Cut", DiscountPrice: 1}
)

type fixture struct {
	ctrl  *Controller
	srv   *apitest.Server
	sess  *session.Manager
	state storage.Store
	bus   *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New(t)
	srv.AddStore(apitest.StoreRecord{
		StoreID:   1,
		StoreName: "Hair Lab",
		Designers: []apitest.DesignerRecord{{
			DesignerID: 4, DesignerName: "Mina",
			Menus: []apitest.MenuRecord{{MenuID: 40, MenuName: "Cut", DiscountRate: 20, MenuPrice: 20000, DiscountPrice: 16000}},
		}},
	})

	client := gateway.NewClient(srv.URL, 2*time.Second, nil)
	state := storage.NewMemoryStore()
	bus := events.NewBus()
	sess := session.NewManager(client, state, bus, nil)
	client.UseTokens(sess)
	_, err := sess.SignIn(context.Background(), identity.StaticProvider{IDToken: "id"})
	require.NoError(t, err)

	return &fixture{
		ctrl:  NewController(client, state, bus, nil),
		srv:   srv,
		sess:  sess,
		state: state,
		bus:   bus,
	}
}

func TestDraftLifecycle(t *testing.T) {
	c := NewController(nil, nil, nil, nil)
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.IsReserving())
	assert.ErrorIs(t, c.SetAgreed(true), ErrNoDraft)
	assert.NoError(t, c.Cancel(), "cancel when idle is a no-op")
	assert.Error(t, c.StartReservation(hairLab, cut, nil, 36), "hour outside the canonical range")
	assert.Equal(t, StateIdle, c.State())

	require.NoError(t, c.StartReservation(hairLab, cut, mina, 15))
	assert.True(t, c.IsReserving())
	assert.False(t, c.CanSubmit())

	require.NoError(t, c.TogglePiAgreement())
	require.NoError(t, c.SetAgreed(true))
	d, ok := c.Draft()
	require.True(t, ok)
	assert.True(t, d.AgreementVisible)
	assert.True(t, c.CanSubmit())

	require.NoError(t, c.SelectDesigner(&models.Designer{ID: 5, Name: "Jun"}))
	d, _ = c.Draft()
	assert.Zero(t, d.Menu.ID, "designer change resets the menu")
	assert.False(t, d.Agreed, "designer change resets the agreement")
	assert.False(t, c.CanSubmit())

	require.NoError(t, c.SelectMenu(cut))
	require.NoError(t, c.Cancel())
	_, ok = c.Draft()
	assert.False(t, ok)
	assert.Equal(t, StateIdle, c.State())
}

func TestSubmitPreconditions(t *testing.T) {
	ctx := context.Background()
	c := NewController(nil, nil, nil, nil)

	_, err := c.Submit(ctx)
	assert.ErrorIs(t, err, ErrNoDraft)

	require.NoError(t, c.StartReservation(hairLab, cut, nil, 15))
	_, err = c.Submit(ctx)
	assert.ErrorIs(t, err, ErrNotAgreed)
	assert.Equal(t, StateDrafting, c.State())

	require.NoError(t, c.SelectDesigner(mina))
	require.NoError(t, c.SetAgreed(true))
	_, err = c.Submit(ctx)
	assert.ErrorIs(t, err, ErrNoMenu)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var completed []models.Reservation
	f.bus.Subscribe(events.ReservationCompleted, func(e events.Event) {
		completed = append(completed, e.Payload.(models.Reservation))
	})

	require.NoError(t, f.ctrl.StartReservation(hairLab, cut, mina, 33))
	require.NoError(t, f.ctrl.SetAgreed(true))

	res, err := f.ctrl.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(40), res.MenuID)
	assert.Equal(t, 16000, res.DiscountPrice, "price comes from the fresh menu record")
	assert.Equal(t, "09:00", res.ReservationTime)
	assert.Equal(t, "Hair Lab", res.StoreName)
	assert.Equal(t, "Mina", res.DesignerName)

	assert.Equal(t, StateIdle, f.ctrl.State())
	_, ok := f.ctrl.Draft()
	assert.False(t, ok)
	assert.Equal(t, 1, f.srv.Calls(apitest.RouteMenu))
	require.Len(t, completed, 1)

	handed, ok, err := f.ctrl.TakeCompleted(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.ID, handed.ID)

	_, ok, err = f.ctrl.TakeCompleted(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "hand-off is read once")

	list, err := f.ctrl.MyReservations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.ID, list[0].ID)
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.srv.Fail(apitest.RouteCreateReservation, http.StatusBadRequest, "SLOT_TAKEN",
		`{"message":"This slot was just booked by someone else."}`)

	require.NoError(t, f.ctrl.StartReservation(hairLab, cut, mina, 15))
	require.NoError(t, f.ctrl.SetAgreed(true))

	_, err := f.ctrl.Submit(ctx)
	require.Error(t, err)
	var submitErr *SubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.Equal(t, "This slot was just booked by someone else.", submitErr.Message)
	assert.Equal(t, http.StatusBadRequest, gateway.StatusOf(err))

	assert.Equal(t, StateDrafting, f.ctrl.State())
	assert.Equal(t, submitErr.Message, f.ctrl.LastError())
	d, ok := f.ctrl.Draft()
	require.True(t, ok)
	assert.True(t, d.Agreed)
	assert.Equal(t, cut.ID, d.Menu.ID)

	_, ok, err = f.ctrl.TakeCompleted(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancelReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.srv.AddReservation(apitest.ReservationRecord{ReservationID: 1, Cancellable: true})
	f.srv.AddReservation(apitest.ReservationRecord{ReservationID: 2})

	res, err := f.ctrl.CancelReservation(ctx, 1)
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = f.ctrl.CancelReservation(ctx, 2)
	require.Error(t, err)
	assert.Equal(t, "This reservation can no longer be cancelled.", UserMessage(err))
}

func TestLogoutDropsDraft(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.StartReservation(hairLab, cut, nil, 15))
	require.NoError(t, f.sess.Logout(context.Background()))
	assert.Equal(t, StateIdle, f.ctrl.State())
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"login required", errors.Join(errors.New("op"), gateway.ErrLoginRequired), "Your session has expired. Please log in again."},
		{"not owner", gateway.ErrNotOwner, "You can only cancel your own reservations."},
		{"plain api message", &gateway.APIError{Status: 409, Message: "Already reserved"}, "Already reserved"},
		{"nested api message", &gateway.APIError{Status: 400, Message: `{"error":"Menu sold out"}`}, "Menu sold out"},
		{"broken nested message", &gateway.APIError{Status: 400, Message: `{"error":`}, `{"error":`},
		{"unknown", errors.New("dial tcp: refused"), genericMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

// gatedAPI holds FetchMenu until release is closed.
type gatedAPI struct {
	entered chan struct{}
	release chan struct{}
	created int
}

func newGatedAPI() *gatedAPI {
	return &gatedAPI{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedAPI) FetchMenu(ctx context.Context, menuID int64) (models.Menu, error) {
	close(g.entered)
	<-g.release
	return models.Menu{ID: menuID, Name: "Cut", DiscountPrice: 16000}, nil
}

func (g *gatedAPI) CreateReservation(_ context.Context, req models.ReservationRequest) (models.Reservation, error) {
	g.created++
	return models.Reservation{ID: 7, MenuID: req.MenuID, ReservationTime: "15:00"}, nil
}

func (g *gatedAPI) FetchUserReservations(context.Context) ([]models.Reservation, error) {
	return nil, nil
}

func (g *gatedAPI) CancelReservation(context.Context, int64) (gateway.CancelResult, error) {
	return gateway.CancelResult{}, nil
}

func TestCancelDuringSubmitRejected(t *testing.T) {
	api := newGatedAPI()
	c := NewController(api, nil, nil, nil)
	require.NoError(t, c.StartReservation(hairLab, cut, nil, 15))
	require.NoError(t, c.SetAgreed(true))

	type outcome struct {
		res models.Reservation
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := c.Submit(context.Background())
		done <- outcome{res, err}
	}()
	<-api.entered

	assert.Equal(t, StateSubmitting, c.State())
	assert.ErrorIs(t, c.Cancel(), ErrSubmitting)
	assert.ErrorIs(t, c.StartReservation(hairLab, cut, mina, 16), ErrSubmitting)
	assert.ErrorIs(t, c.SetAgreed(false), ErrSubmitting)
	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitting)

	d, ok := c.Draft()
	require.True(t, ok, "draft survives the rejected cancel")
	assert.Nil(t, d.Designer)

	close(api.release)
	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, int64(7), out.res.ID)
	assert.Equal(t, 1, api.created)
	assert.Equal(t, StateIdle, c.State())
}

func TestLogoutDuringSubmitKeepsNewDraft(t *testing.T) {
	api := newGatedAPI()
	bus := events.NewBus()
	c := NewController(api, nil, bus, nil)
	require.NoError(t, c.StartReservation(hairLab, cut, nil, 15))
	require.NoError(t, c.SetAgreed(true))

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-api.entered

	bus.Publish(events.SessionLoggedOut, nil)
	assert.Equal(t, StateIdle, c.State())
	require.NoError(t, c.StartReservation(hairLab, cut, mina, 16))

	close(api.release)
	require.NoError(t, <-done)

	d, ok := c.Draft()
	require.True(t, ok, "finished submission leaves the newer draft alone")
	assert.Equal(t, mina, d.Designer)
	assert.Equal(t, StateDrafting, c.State())
}
