// Package app wires the stores, the booking engine and its optional
// collaborators from a Config.  Both the HTTP server and the operator CLI
// start from here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/cache"
	"github.com/iliyamo/showtime-booking/internal/clock"
	"github.com/iliyamo/showtime-booking/internal/config"
	"github.com/iliyamo/showtime-booking/internal/database"
	"github.com/iliyamo/showtime-booking/internal/lease"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/repository"
	"github.com/iliyamo/showtime-booking/internal/sweeper"
)

// ErrRedisUnavailable is returned when Redis cannot be reached.  Leases
// live there, so nothing can run without it.
var ErrRedisUnavailable = errors.New("redis unavailable")

// App holds the wired dependencies.
type App struct {
	Config  config.Config
	DB      *sql.DB
	Redis   *redis.Client
	Store   *repository.MySQLStore
	Leases  lease.Store
	Engine  *booking.Engine
	Sweeper *sweeper.Sweeper
	Log     *log.Logger
}

// EngineConfig maps the environment settings onto the engine's rules.
func EngineConfig(cfg config.Config) booking.Config {
	return booking.Config{
		HoldTTL:      cfg.Booking.HoldTTL,
		LeaseSkew:    cfg.Booking.LeaseSkew,
		PaymentTTL:   cfg.Booking.PaymentTTL,
		RefundPolicy: cfg.Booking.RefundPolicy,
		ListCacheTTL: cfg.Cache.TTL,
	}
}

// ParseLevel converts LOG_LEVEL into a gommon level, defaulting to INFO.
func ParseLevel(s string) log.Lvl {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return log.DEBUG
	case "WARN", "WARNING":
		return log.WARN
	case "ERROR":
		return log.ERROR
	case "OFF":
		return log.OFF
	}
	return log.INFO
}

// Open connects to MySQL and Redis and builds the engine.  Events are
// published only when an AMQP URL is configured.
func Open(ctx context.Context, cfg config.Config) (*App, error) {
	logger := log.New("booking")
	logger.SetLevel(ParseLevel(cfg.LogLevel))

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		_ = db.Close()
		return nil, ErrRedisUnavailable
	}

	store := repository.NewMySQLStore(db)
	leases := lease.NewRedisStore(rdb)
	opts := []booking.Option{
		booking.WithConfig(EngineConfig(cfg)),
		booking.WithLogger(logger),
	}
	if cfg.AMQPURL != "" {
		opts = append(opts, booking.WithPublisher(queue.NewPublisher(cfg.AMQPURL, queue.DefaultQueue, logger)))
	}
	engine := booking.New(store, leases, cache.New(cfg.Cache, rdb), opts...)

	return &App{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Store:   store,
		Leases:  leases,
		Engine:  engine,
		Sweeper: sweeper.New(leases, engine, clock.System{}, logger),
		Log:     logger,
	}, nil
}

// Close releases the connections.
func (a *App) Close() error {
	return errors.Join(a.Redis.Close(), a.DB.Close())
}
