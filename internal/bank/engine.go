package bank

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bloodnet.org/internal/auth"
	"bloodnet.org/internal/blood"
	"bloodnet.org/internal/ids"
	"bloodnet.org/internal/inventory"
	"bloodnet.org/internal/obs"
)

// Engine drives the request, slot and health-check lifecycles. Every mutating
// call runs as a single Store.Atomically unit of work.
type Engine struct {
	store Store
	now   func() time.Time
	log   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// WithLogger sets the logger used for committed transitions.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New constructs an Engine over store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ping reports whether the underlying store is reachable.
func (e *Engine) Ping(ctx context.Context) error { return e.store.Ping(ctx) }

func (e *Engine) today() time.Time { return blood.Day(e.now()) }

func (e *Engine) ledger(tx Tx) *inventory.Ledger {
	return inventory.New(tx, inventory.WithClock(e.now))
}

func (e *Engine) newID() string { return ids.NewAt(e.now()) }

// fail counts a failed operation and hands the error back unchanged.
func (e *Engine) fail(op string, err error) error {
	code := Code(err)
	obs.EngineError(code)
	if code == "internal" {
		e.log.Error("engine operation failed", zap.String("op", op), zap.Error(err))
	} else {
		e.log.Debug("engine operation rejected", zap.String("op", op), zap.String("code", code), zap.Error(err))
	}
	return err
}

func (e *Engine) moved(ms ...inventory.Movement) {
	for _, m := range ms {
		obs.StockMoved(string(m.Group), m.Delta)
		e.log.Info("stock moved",
			zap.Uint64("sequence", m.Sequence),
			zap.String("pool", m.Pool.String()),
			zap.String("group", string(m.Group)),
			zap.Int64("delta", m.Delta),
			zap.Int64("balance", m.BalanceAfter),
			zap.String("reason", string(m.Reason)),
			zap.String("reference", m.ReferenceID),
		)
	}
}

// donorView returns d with Available recomputed as of today.
func (e *Engine) donorView(d Donor) Donor {
	d.Available = blood.IsDonorAvailable(d.LastDonationDate, e.today())
	return d
}

func requireAdmin(p auth.Principal) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// requireActor allows admins and the given role acting for id.
func requireActor(p auth.Principal, role auth.Role, id string) error {
	if p.IsAdmin() || p.Acts(role, id) {
		return nil
	}
	return ErrForbidden
}

func requireValid(p auth.Principal) error {
	if !p.Valid() {
		return ErrForbidden
	}
	return nil
}
