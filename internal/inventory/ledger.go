package inventory

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"bloodnet.org/internal/blood"
)

// Counters is the storage port behind the ledger. Implementations must apply
// CreditStock and DebitStock as single atomic statements against the counter
// row so that concurrent callers are serialized.
type Counters interface {
	// CreditStock adds units, creating the counter when absent, and returns
	// the new balance.
	CreditStock(ctx context.Context, key Key, units int64) (int64, error)
	// DebitStock subtracts units only if the balance covers them. When it
	// does not, ok is false, the row is untouched and balance is the current
	// (possibly zero) balance.
	DebitStock(ctx context.Context, key Key, units int64) (balance int64, ok bool, err error)
	// InitStock sets the counter to units when it is absent or zero. It
	// reports false when the counter already holds stock.
	InitStock(ctx context.Context, key Key, units int64) (bool, error)
	StockUnits(ctx context.Context, key Key) (int64, error)
	StockByPool(ctx context.Context, pool Pool) (map[blood.Group]int64, error)
	// AppendMovement stores m and assigns its Sequence.
	AppendMovement(ctx context.Context, m *Movement) error
	Movements(ctx context.Context, limit int, afterSeq uint64) ([]Movement, error)
}

// Ledger is the only writer of stock counters. Every mutation is a delta and
// is recorded as a Movement.
type Ledger struct {
	c   Counters
	now func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source stamped on movements.
func WithClock(fn func() time.Time) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New binds a ledger to a set of counters, usually one storage transaction.
func New(c Counters, opts ...Option) *Ledger {
	l := &Ledger{c: c, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Deposit credits units to the counter. Calling it twice credits twice.
func (l *Ledger) Deposit(ctx context.Context, pool Pool, group blood.Group, units int64, ref Ref) (Movement, error) {
	if err := validate(group, units); err != nil {
		return Movement{}, err
	}
	key := Key{Pool: pool, Group: group}
	bal, err := l.c.CreditStock(ctx, key, units)
	if err != nil {
		return Movement{}, errors.Wrapf(err, "credit %s", key)
	}
	return l.record(ctx, key, units, bal, ref, ReasonDeposit)
}

// Withdraw debits units or fails with *InsufficientStockError, leaving the
// counter untouched.
func (l *Ledger) Withdraw(ctx context.Context, pool Pool, group blood.Group, units int64, ref Ref) (Movement, error) {
	if err := validate(group, units); err != nil {
		return Movement{}, err
	}
	key := Key{Pool: pool, Group: group}
	bal, ok, err := l.c.DebitStock(ctx, key, units)
	if err != nil {
		return Movement{}, errors.Wrapf(err, "debit %s", key)
	}
	if !ok {
		return Movement{}, &InsufficientStockError{Key: key, Available: bal, Requested: units}
	}
	if bal < 0 {
		return Movement{}, errors.Errorf("counter %s went negative (%d)", key, bal)
	}
	return l.record(ctx, key, -units, bal, ref, ReasonWithdrawal)
}

// Transfer moves units between two pools. Callers run it inside one storage
// transaction so the debit and credit commit together.
func (l *Ledger) Transfer(ctx context.Context, from, to Pool, group blood.Group, units int64, ref Ref) (out, in Movement, err error) {
	if from == to {
		return Movement{}, Movement{}, ErrSamePool
	}
	outRef := Ref{Reason: ReasonTransferOut, ID: ref.ID}
	inRef := Ref{Reason: ReasonTransferIn, ID: ref.ID}
	if out, err = l.Withdraw(ctx, from, group, units, outRef); err != nil {
		return Movement{}, Movement{}, err
	}
	if in, err = l.Deposit(ctx, to, group, units, inRef); err != nil {
		return Movement{}, Movement{}, err
	}
	return out, in, nil
}

// SetOpening records an opening balance. It refuses to overwrite a counter
// that already holds units.
func (l *Ledger) SetOpening(ctx context.Context, pool Pool, group blood.Group, units int64, ref Ref) (Movement, error) {
	if !group.Valid() {
		return Movement{}, ErrInvalidGroup
	}
	if units < 0 {
		return Movement{}, ErrInvalidUnits
	}
	key := Key{Pool: pool, Group: group}
	ok, err := l.c.InitStock(ctx, key, units)
	if err != nil {
		return Movement{}, errors.Wrapf(err, "init %s", key)
	}
	if !ok {
		return Movement{}, ErrOverwriteRejected
	}
	return l.record(ctx, key, units, units, ref, ReasonOpening)
}

// Read returns the units held by one counter; absent counters hold zero.
func (l *Ledger) Read(ctx context.Context, pool Pool, group blood.Group) (int64, error) {
	if !group.Valid() {
		return 0, ErrInvalidGroup
	}
	return l.c.StockUnits(ctx, Key{Pool: pool, Group: group})
}

// ReadAll returns every group's units for pool, zero-filled.
func (l *Ledger) ReadAll(ctx context.Context, pool Pool) (map[blood.Group]int64, error) {
	rows, err := l.c.StockByPool(ctx, pool)
	if err != nil {
		return nil, err
	}
	out := make(map[blood.Group]int64, len(blood.Groups))
	for _, g := range blood.Groups {
		out[g] = rows[g]
	}
	return out, nil
}

// Movements pages through the movement log by sequence.
func (l *Ledger) Movements(ctx context.Context, limit int, afterSeq uint64) ([]Movement, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	items, err := l.c.Movements(ctx, limit, afterSeq)
	if err != nil {
		return nil, 0, err
	}
	next := afterSeq
	if n := len(items); n > 0 {
		next = items[n-1].Sequence
	}
	return items, next, nil
}

func (l *Ledger) record(ctx context.Context, key Key, delta, balance int64, ref Ref, fallback Reason) (Movement, error) {
	reason := ref.Reason
	if reason == "" {
		reason = fallback
	}
	m := Movement{
		Pool:         key.Pool,
		Group:        key.Group,
		Delta:        delta,
		BalanceAfter: balance,
		Reason:       reason,
		ReferenceID:  ref.ID,
		At:           l.now().UTC(),
	}
	if err := l.c.AppendMovement(ctx, &m); err != nil {
		return Movement{}, errors.Wrap(err, "append movement")
	}
	return m, nil
}

func validate(group blood.Group, units int64) error {
	if !group.Valid() {
		return ErrInvalidGroup
	}
	if units <= 0 {
		return ErrInvalidUnits
	}
	return nil
}
