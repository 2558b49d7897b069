// Package reservation drives the booking flow from menu selection through
// submission and hands the result to the schedule view.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"buynow/internal/events"
	"buynow/internal/gateway"
	"buynow/internal/hours"
	"buynow/internal/metrics"
	"buynow/internal/models"
	"buynow/internal/storage"
)

// KeyCompleted holds the last completed reservation until it is taken.
const KeyCompleted = "reservation.completed"

var (
	ErrNoDraft           = errors.New("no reservation in progress")
	ErrNoMenu            = errors.New("no menu selected")
	ErrNotAgreed         = errors.New("personal information agreement required")
	ErrSubmitting        = errors.New("reservation is being submitted")
	ErrInvalidTransition = errors.New("invalid reservation state transition")
)

// API is the part of the gateway the reservation flow needs.
type API interface {
	FetchMenu(ctx context.Context, menuID int64) (models.Menu, error)
	CreateReservation(ctx context.Context, req models.ReservationRequest) (models.Reservation, error)
	FetchUserReservations(ctx context.Context) ([]models.Reservation, error)
	CancelReservation(ctx context.Context, reservationID int64) (gateway.CancelResult, error)
}

// Draft is the reservation being prepared.
type Draft struct {
	StoreID          int64
	StoreName        string
	Menu             models.Menu
	Designer         *models.Designer
	Hour             int
	Agreed           bool
	AgreementVisible bool
}

// SubmitError is returned when the server rejects a submission. Message is
// the text to show next to the form.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit reservation: %s", e.Message)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Controller owns the reservation draft.
type Controller struct {
	api    API
	state  storage.Store
	bus    *events.Bus
	logger *zerolog.Logger

	mu      sync.Mutex
	current State
	draft   Draft
	lastErr string
	// attempt identifies the running submission. Logout bumps it.
	attempt uint64
}

// NewController creates an idle controller. The draft is dropped on logout.
func NewController(api API, state storage.Store, bus *events.Bus, logger *zerolog.Logger) *Controller {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	c := &Controller{api: api, state: state, bus: bus, logger: logger, current: StateIdle}
	if bus != nil {
		bus.Subscribe(events.SessionLoggedOut, func(events.Event) {
			c.mu.Lock()
			c.attempt++
			c.current = StateIdle
			c.draft = Draft{}
			c.lastErr = ""
			c.mu.Unlock()
		})
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// IsReserving reports whether a reservation flow is open. Other reserve
// controls should be hidden while it is.
func (c *Controller) IsReserving() bool {
	return c.State() != StateIdle
}

// Draft returns the current draft and whether one exists.
func (c *Controller) Draft() (Draft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == StateIdle {
		return Draft{}, false
	}
	return c.draft, true
}

// LastError is the message from the most recent failed submission.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) transitionLocked(to State) error {
	if !CanTransition(c.current, to) {
		if c.current == StateSubmitting {
			return ErrSubmitting
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.current, to)
	}
	c.current = to
	return nil
}

// StartReservation opens a draft for menu at a canonical hour, replacing
// any existing draft.
func (c *Controller) StartReservation(store models.Store, menu models.Menu, designer *models.Designer, hour int) error {
	hour, err := hours.FromCanonical(hour)
	if err != nil {
		return fmt.Errorf("start reservation: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transitionLocked(StateDrafting); err != nil {
		return err
	}
	c.draft = Draft{StoreID: store.ID, StoreName: store.Name, Menu: menu, Designer: designer, Hour: hour}
	c.lastErr = ""
	return nil
}

// SelectDesigner switches the designer. The menu and agreement are reset
// because menus belong to a designer.
func (c *Controller) SelectDesigner(designer *models.Designer) error {
	return c.edit(func(d *Draft) {
		d.Designer = designer
		d.Menu = models.Menu{}
		d.Agreed = false
	})
}

// SelectMenu picks the menu to reserve.
func (c *Controller) SelectMenu(menu models.Menu) error {
	return c.edit(func(d *Draft) { d.Menu = menu })
}

// TogglePiAgreement shows or hides the personal information terms.
func (c *Controller) TogglePiAgreement() error {
	return c.edit(func(d *Draft) { d.AgreementVisible = !d.AgreementVisible })
}

func (c *Controller) SetAgreed(agreed bool) error {
	return c.edit(func(d *Draft) { d.Agreed = agreed })
}

func (c *Controller) edit(fn func(*Draft)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.current {
	case StateIdle:
		return ErrNoDraft
	case StateSubmitting:
		return ErrSubmitting
	}
	fn(&c.draft)
	return nil
}

// CanSubmit reports whether Submit's preconditions hold.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == StateDrafting && c.draft.Agreed && c.draft.Menu.ID != 0
}

// Cancel drops the draft. It is a no-op when idle and fails with
// ErrSubmitting while a submission is running.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == StateIdle {
		return nil
	}
	if err := c.transitionLocked(StateIdle); err != nil {
		return err
	}
	c.draft = Draft{}
	c.lastErr = ""
	return nil
}

// Submit books the draft. The menu is fetched fresh first. On success the
// reservation is stored for TakeCompleted, the draft is cleared and the
// controller returns to idle. On failure the draft is kept and the error's
// user message is available from LastError.
func (c *Controller) Submit(ctx context.Context) (models.Reservation, error) {
	c.mu.Lock()
	switch {
	case c.current == StateSubmitting:
		c.mu.Unlock()
		return models.Reservation{}, ErrSubmitting
	case c.current != StateDrafting:
		c.mu.Unlock()
		return models.Reservation{}, ErrNoDraft
	case c.draft.Menu.ID == 0:
		c.mu.Unlock()
		return models.Reservation{}, ErrNoMenu
	case !c.draft.Agreed:
		c.mu.Unlock()
		return models.Reservation{}, ErrNotAgreed
	}
	c.current = StateSubmitting
	c.attempt++
	attempt := c.attempt
	draft := c.draft
	c.mu.Unlock()

	res, err := c.submit(ctx, draft)
	if err != nil {
		msg := UserMessage(err)
		c.mu.Lock()
		if c.attempt == attempt {
			c.current = StateDrafting
			c.lastErr = msg
		}
		c.mu.Unlock()

		metrics.IncReservationSubmit("failed")
		c.logger.Warn().Err(err).Int64("menu_id", draft.Menu.ID).Msg("reservation failed")
		return models.Reservation{}, &SubmitError{Message: msg, Err: err}
	}

	if c.state != nil {
		if err := c.state.Set(ctx, KeyCompleted, res); err != nil {
			c.logger.Error().Err(err).Msg("store completed reservation")
		}
	}

	c.mu.Lock()
	if c.attempt == attempt {
		c.current = StateIdle
		c.draft = Draft{}
		c.lastErr = ""
	}
	c.mu.Unlock()

	metrics.IncReservationSubmit("ok")
	c.logger.Info().Int64("reservation_id", res.ID).Int64("menu_id", res.MenuID).Msg("reservation created")
	c.bus.Publish(events.ReservationCompleted, res)
	return res, nil
}

func (c *Controller) submit(ctx context.Context, draft Draft) (models.Reservation, error) {
	menu, err := c.api.FetchMenu(ctx, draft.Menu.ID)
	if err != nil {
		return models.Reservation{}, fmt.Errorf("fetch menu %d: %w", draft.Menu.ID, err)
	}

	req := models.ReservationRequest{MenuID: menu.ID, Time: draft.Hour, Agreed: true}
	if draft.Designer != nil {
		id := draft.Designer.ID
		req.DesignerID = &id
	}
	res, err := c.api.CreateReservation(ctx, req)
	if err != nil {
		return models.Reservation{}, err
	}
	if res.StoreID == 0 {
		res.StoreID = draft.StoreID
	}
	if res.StoreName == "" {
		res.StoreName = draft.StoreName
	}
	if res.DesignerName == "" && draft.Designer != nil {
		res.DesignerName = draft.Designer.Name
	}
	return res, nil
}

// TakeCompleted returns the last completed reservation once. Later calls
// report false until another reservation completes.
func (c *Controller) TakeCompleted(ctx context.Context) (models.Reservation, bool, error) {
	if c.state == nil {
		return models.Reservation{}, false, nil
	}
	var res models.Reservation
	if err := c.state.Take(ctx, KeyCompleted, &res); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Reservation{}, false, nil
		}
		return models.Reservation{}, false, err
	}
	return res, true, nil
}

// MyReservations lists the caller's reservations.
func (c *Controller) MyReservations(ctx context.Context) ([]models.Reservation, error) {
	return c.api.FetchUserReservations(ctx)
}

// CancelReservation cancels a booked reservation. Use UserMessage on the
// returned error for display.
func (c *Controller) CancelReservation(ctx context.Context, reservationID int64) (gateway.CancelResult, error) {
	res, err := c.api.CancelReservation(ctx, reservationID)
	if err != nil {
		c.logger.Warn().Err(err).Int64("reservation_id", reservationID).Msg("cancel reservation failed")
		return gateway.CancelResult{}, err
	}
	c.logger.Info().Int64("reservation_id", reservationID).Msg("reservation cancelled")
	return res, nil
}
