package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/oauth2"

	"buynow/internal/export"
	"buynow/internal/gateway"
	"buynow/internal/hours"
	"buynow/internal/identity"
	"buynow/internal/metrics"
	"buynow/internal/models"
)

var errUsage = errors.New("invalid arguments")

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.session.Logout(ctx)
	case "me":
		return a.me(ctx)
	case "token":
		return a.token(args)
	case "address":
		return a.address(ctx, args)
	case "stores":
		return a.stores(ctx, args)
	case "like":
		return a.like(ctx, args)
	case "likes":
		return a.likes(ctx)
	case "reserve":
		return a.reserve(ctx, args)
	case "reservations":
		return a.reservations(ctx)
	case "cancel":
		return a.cancel(ctx, args)
	case "export":
		return a.export(ctx, args)
	case "watch":
		return a.watch(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	idToken := fs.String("id-token", a.cfg.Identity.IDToken, "identity provider token")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	resp, err := a.session.SignIn(ctx, a.identityProvider(ctx, fs, *idToken))
	if err != nil {
		return err
	}
	if err := a.inv.SyncLikes(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("likes not synced after login")
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", resp.UserEmail)
	return nil
}

// identityProvider prefers an explicit -id-token, then the configured OAuth2
// refresh token, then the configured id_token.
func (a *app) identityProvider(ctx context.Context, fs *flag.FlagSet, idToken string) identity.Provider {
	explicit := false
	fs.Visit(func(f *flag.Flag) { explicit = explicit || f.Name == "id-token" })
	if explicit || !a.cfg.OAuth2Enabled() {
		return identity.StaticProvider{IDToken: idToken}
	}
	o := a.cfg.Identity.OAuth2
	conf := &oauth2.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: o.TokenURL},
		Scopes:       o.Scopes,
	}
	return identity.NewRefreshTokenProvider(ctx, conf, o.RefreshToken)
}

// token prints the current access token, or an Authorization header value
// with -header.
func (a *app) token(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	header := fs.Bool("header", false, "print as an Authorization header value")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	tok, err := a.session.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrLoginRequired, err)
	}
	if *header {
		fmt.Fprintf(a.out, "%s %s\n", tok.Type(), tok.AccessToken)
		return nil
	}
	fmt.Fprintln(a.out, tok.AccessToken)
	return nil
}

func (a *app) me(ctx context.Context) error {
	user, err := a.client.FetchUserInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Email:   %s\nRole:    %s\nAddress: %s\n", user.Email, user.Role, user.Address)
	return nil
}

func (a *app) address(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, a.inv.Address())
		return nil
	}
	if err := a.inv.UpdateAddress(ctx, strings.Join(args, " ")); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Address set to %s\n", a.inv.DisplayAddress())
	return nil
}

func (a *app) stores(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stores", flag.ContinueOnError)
	slot := fs.String("time", "", "time slot, HH:MM")
	category := fs.String("category", "", "category, empty for all")
	sortBy := fs.String("sort", "", "discount, price, distance or name")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["time"] {
		if err := a.inv.SetTime(ctx, *slot); err != nil {
			return err
		}
	}
	a.inv.CheckAndUpdateTimeIfExpired(ctx)
	if set["category"] && a.inv.Filters().Category() != *category {
		a.inv.SetCategory(ctx, *category)
	}
	if set["sort"] {
		a.inv.SetSortOption(ctx, models.ParseSortOption(*sortBy))
	}

	if err := a.refreshListing(ctx); err != nil {
		return err
	}

	f := a.inv.Filters()
	fmt.Fprintf(a.out, "%s  %s  sorted by %s\n", a.inv.DisplayAddress(), hours.Display(a.inv.ActiveHour()), f.Sort)
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMENU\tDISCOUNT\tFROM\tDISTANCE\tLIKED")
	for _, s := range a.inv.SortedStores() {
		price := "-"
		if p, ok := s.MinDiscountPrice(); ok {
			price = strconv.Itoa(p)
		}
		liked := ""
		if s.IsLiked {
			liked = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d%%\t%s\t%dm\t%s\n", s.ID, s.Name, s.MenuSummary, s.MaxDiscountRate(), price, s.Distance, liked)
	}
	return w.Flush()
}

// refreshListing reloads the stores and, when signed in, the liked set.
func (a *app) refreshListing(ctx context.Context) error {
	if _, err := a.inv.Reload(ctx); err != nil {
		return err
	}
	if !a.session.IsValid() {
		return nil
	}
	return a.inv.SyncLikes(ctx)
}

func (a *app) like(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	storeID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errUsage
	}
	if err := a.inv.ToggleLike(ctx, storeID); err != nil {
		return err
	}
	if a.inv.IsLiked(storeID) {
		fmt.Fprintf(a.out, "Liked store %d\n", storeID)
	} else {
		fmt.Fprintf(a.out, "Unliked store %d\n", storeID)
	}
	return nil
}

func (a *app) likes(ctx context.Context) error {
	if err := a.inv.SyncLikes(ctx); err != nil {
		return err
	}
	for _, id := range a.inv.LikedIDs() {
		fmt.Fprintln(a.out, id)
	}
	return nil
}

func (a *app) reserve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reserve", flag.ContinueOnError)
	designerID := fs.Int64("designer", 0, "designer ID")
	agree := fs.Bool("agree", false, "agree to share personal information with the store")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}
	menuID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return errUsage
	}

	store, menu, err := a.findMenu(ctx, menuID)
	if err != nil {
		return err
	}
	var designer *models.Designer
	if *designerID != 0 {
		if designer, err = a.findDesigner(ctx, store, *designerID); err != nil {
			return err
		}
	}

	if err := a.ctrl.StartReservation(store, menu, designer, a.inv.ActiveHour()); err != nil {
		return err
	}
	if err := a.ctrl.SetAgreed(*agree); err != nil {
		return err
	}
	if !a.ctrl.CanSubmit() {
		_ = a.ctrl.Cancel()
		return errors.New("pass -agree to consent to sharing your information with the store")
	}
	r, err := a.ctrl.Submit(ctx)
	if err != nil {
		return err
	}

	// Consume the hand-off. Without one the submit result is printed.
	if handed, ok, err := a.ctrl.TakeCompleted(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("take completed reservation")
	} else if ok {
		r = handed
	}
	fmt.Fprintf(a.out, "Reserved %s at %s, %s (#%d, %d)\n", r.MenuName, r.StoreName, r.ReservationTime, r.ID, r.DiscountPrice)
	return nil
}

// findMenu locates the store offering menuID in the current listing,
// reloading once when the listing does not have it.
func (a *app) findMenu(ctx context.Context, menuID int64) (models.Store, models.Menu, error) {
	for attempt := 0; attempt < 2; attempt++ {
		for _, s := range a.inv.Stores() {
			if m, ok := s.FindMenu(menuID); ok {
				return s, m, nil
			}
		}
		if attempt == 0 {
			if err := a.refreshListing(ctx); err != nil {
				return models.Store{}, models.Menu{}, err
			}
		}
	}
	return models.Store{}, models.Menu{}, fmt.Errorf("menu %d is not offered at %s", menuID, hours.Display(a.inv.ActiveHour()))
}

func (a *app) findDesigner(ctx context.Context, store models.Store, designerID int64) (*models.Designer, error) {
	if !store.HasDesigners() {
		detail, err := a.client.FetchStore(ctx, store.ID, a.inv.ActiveHour())
		if err != nil {
			return nil, err
		}
		store = detail
	}
	for _, d := range store.Designers {
		if d.ID == designerID {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("designer %d not found at %s", designerID, store.Name)
}

func (a *app) reservations(ctx context.Context) error {
	list, err := a.ctrl.MyReservations(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTORE\tMENU\tTIME\tPRICE\tSTATUS")
	for _, r := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", r.ID, r.StoreName, r.MenuName, r.ReservationTime, r.DiscountPrice, r.Status)
	}
	return w.Flush()
}

func (a *app) cancel(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errUsage
	}
	res, err := a.ctrl.CancelReservation(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, res.Message)
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	list, err := a.ctrl.MyReservations(ctx)
	if err != nil {
		return err
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := export.WriteSchedule(f, list); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Wrote %d reservations to %s\n", len(list), args[0])
	return nil
}

// watch keeps the listing current: each tick moves an expired time slot
// forward and reloads. It runs until interrupted.
func (a *app) watch(ctx context.Context) error {
	if a.cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMonitoringServer(ctx, a.cfg.Monitoring.PrometheusPort, a.state, a.redis, a.logger)
	}

	interval := a.cfg.WatchInterval()
	a.logger.Info().Dur("interval", interval).Msg("watching listing")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if a.inv.CheckAndUpdateTimeIfExpired(ctx) {
			a.logger.Info().Str("time", a.inv.Filters().Time).Msg("time slot advanced")
		}
		if err := a.refreshListing(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, gateway.ErrLoginRequired) {
				return err
			}
			a.logger.Warn().Err(err).Msg("listing refresh failed")
		} else {
			a.logger.Info().Int("stores", len(a.inv.Stores())).Msg("listing refreshed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
