package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"buynow/internal/config"
	"buynow/internal/events"
	"buynow/internal/gateway"
	"buynow/internal/inventory"
	"buynow/internal/reservation"
	"buynow/internal/session"
	"buynow/internal/storage"
)

const usage = `usage: buynow [-config path] <command> [args]

commands:
  login [-id-token t]          exchange an identity token for a session
  logout                       end the session and clear local state
  me                           show the signed-in profile
  token [-header]              print the current access token
  address <address>            change the current address
  stores [-time HH:MM] [-category c] [-sort discount|price|distance|name]
  like <storeID>               toggle the like on a store
  likes                        list liked store IDs
  reserve <menuID> [-designer id] [-agree]
  reservations                 list your reservations
  cancel <reservationID>       cancel a reservation
  export <file.xlsx>           write your schedule to a workbook
  watch                        keep the listing fresh and serve /metrics
`

// app wires the client components for one CLI invocation.
type app struct {
	cfg    *config.Config
	logger *zerolog.Logger
	out    io.Writer

	state   storage.Store
	redis   *redis.Client
	client  *gateway.Client
	session *session.Manager
	inv     *inventory.Store
	ctrl    *reservation.Controller
}

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "config file (default $"+config.PathEnv+" or "+config.DefaultPath+")")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	bootLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.close()

	err = a.run(ctx, flag.Arg(0), flag.Args()[1:])
	switch {
	case err == nil:
	case errors.Is(err, gateway.ErrLoginRequired):
		fmt.Fprintln(os.Stderr, "Your session has expired. Run `buynow login` to sign in again.")
		os.Exit(3)
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, reservation.UserMessage(err))
		logger.Debug().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Logging.Format == "json" {
		return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func newApp(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, out: os.Stdout}

	if cfg.RedisEnabled() {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	}

	state, err := openState(cfg, a.redis, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.state = state

	bus := events.NewBus()
	bus.Subscribe(events.SessionLoginRequired, func(events.Event) {
		logger.Warn().Msg("session expired, login required")
	})

	a.client = gateway.NewClient(cfg.API.BaseURL, cfg.APITimeout(), logger)
	a.client.UseRateLimit(cfg.API.RateLimitPerSecond, cfg.API.RateLimitBurst)
	if a.redis != nil && cfg.CacheTTL() > 0 {
		a.client.UseRedisCache(a.redis, cfg.CacheTTL())
	}

	a.session = session.NewManager(a.client, state, bus, logger)
	a.client.UseTokens(a.session)
	a.inv = inventory.New(a.client, state, bus, logger)
	a.ctrl = reservation.NewController(a.client, state, bus, logger)

	if err := a.session.Restore(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.inv.Restore(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// openState picks the persisted-state backend. The failover driver keeps
// state in Redis and falls back to SQLite while Redis is unreachable.
func openState(cfg *config.Config, rdb *redis.Client, logger *zerolog.Logger) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStore(), nil
	case config.DriverRedis:
		if rdb == nil {
			return nil, errors.New("storage driver redis needs redis.address")
		}
		return storage.NewRedisStore(rdb, cfg.Storage.KeyPrefix), nil
	case config.DriverFailover:
		if rdb == nil {
			return nil, errors.New("storage driver failover needs redis.address")
		}
		sqlite, err := storage.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return storage.NewFailoverStore(storage.NewRedisStore(rdb, cfg.Storage.KeyPrefix), sqlite, logger), nil
	default:
		sqlite, err := storage.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return sqlite, nil
	}
}

func (a *app) close() {
	if a.state != nil {
		if err := a.state.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close state store")
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
