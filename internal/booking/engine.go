// Package booking implements the reservation lifecycle: holding seats,
// turning holds into bookings, confirming, cancelling and releasing.
//
// The relational store is the source of truth.  Every operation runs in
// one transaction and relies on conditional updates (a seat only moves
// from the state the operation expects), so concurrent callers racing
// for the same seat see exactly one winner.  Leases in the TTL store and
// the list cache are advisory and written after the transaction commits.
package booking

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/showtime-booking/internal/cache"
	"github.com/iliyamo/showtime-booking/internal/clock"
	"github.com/iliyamo/showtime-booking/internal/lease"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

// Publisher receives lifecycle events after they are committed.
type Publisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// Config holds the timing rules of the lifecycle.
type Config struct {
	HoldTTL      time.Duration
	LeaseSkew    time.Duration
	PaymentTTL   time.Duration
	RefundPolicy time.Duration
	ListCacheTTL time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		HoldTTL:      5 * time.Minute,
		LeaseSkew:    time.Minute,
		PaymentTTL:   30 * time.Minute,
		RefundPolicy: 24 * time.Hour,
		ListCacheTTL: time.Hour,
	}
}

const publishTimeout = 5 * time.Second

// Engine runs the booking lifecycle.  It is safe for concurrent use.
type Engine struct {
	store  repository.Store
	leases lease.Store
	cache  cache.Cache
	pub    Publisher
	clock  clock.Clock
	cfg    Config
	log    *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithConfig(cfg Config) Option     { return func(e *Engine) { e.cfg = cfg } }
func WithClock(c clock.Clock) Option   { return func(e *Engine) { e.clock = c } }
func WithPublisher(p Publisher) Option { return func(e *Engine) { e.pub = p } }
func WithLogger(l *log.Logger) Option  { return func(e *Engine) { e.log = l } }

// New builds an engine.  A nil cache disables list caching.
func New(store repository.Store, leases lease.Store, c cache.Cache, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		leases: leases,
		cache:  c,
		clock:  clock.System{},
		cfg:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = cache.Nop{}
	}
	if e.log == nil {
		e.log = log.New("booking")
	}
	return e
}

// Config returns the engine's timing rules.
func (e *Engine) Config() Config { return e.cfg }

// leaseTTL is the lifetime given to a lease key in the TTL store.  It
// outlives the recorded expiry by LeaseSkew so the sweep can observe the
// expired value before the store evicts it.
func (e *Engine) leaseTTL(d time.Duration) time.Duration {
	return d + e.cfg.LeaseSkew
}

// storeFailure logs the cause of a failed operation and returns the
// classified error.
func (e *Engine) storeFailure(op string, err error) error {
	be := classify(op, err)
	if be.Kind == ErrStore {
		e.log.Errorj(log.JSON{"op": op, "error": err.Error()})
	}
	return be
}

// invalidate drops the cached listings touched by a mutation.
func (e *Engine) invalidate(ctx context.Context, keys ...string) {
	if err := e.cache.Invalidate(ctx, keys...); err != nil {
		e.log.Warnj(log.JSON{"msg": "cache invalidation failed", "keys": keys, "error": err.Error()})
	}
}

func (e *Engine) publish(ctx context.Context, ev queue.BookingEvent) {
	if e.pub == nil {
		return
	}
	// The request may already be finished; bound the broker call instead.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.log.Warnj(log.JSON{"msg": "event publish failed", "type": ev.Type, "booking_id": ev.BookingID, "error": err.Error()})
	}
}

func (e *Engine) dropLeases(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := e.leases.Delete(ctx, keys...); err != nil {
		e.log.Warnj(log.JSON{"msg": "lease delete failed", "keys": keys, "error": err.Error()})
	}
}
