package bank

import (
	"context"

	"bloodnet.org/internal/auth"
	"bloodnet.org/internal/blood"
	"bloodnet.org/internal/inventory"
)

// GroupUnits pairs a blood group with a unit count.
type GroupUnits struct {
	Group blood.Group `json:"blood_group"`
	Units int64       `json:"units"`
}

// canManage reports whether p may mutate pool: admins any pool, hospitals
// their own.
func canManage(p auth.Principal, pool inventory.Pool) error {
	if p.IsAdmin() {
		return nil
	}
	if !pool.IsCentral() && p.Acts(auth.RoleHospital, pool.HospitalID) {
		return nil
	}
	return ErrForbidden
}

// poolExists fails with ErrNotFound when pool names an unknown hospital.
func poolExists(ctx context.Context, tx Tx, pool inventory.Pool) error {
	if pool.IsCentral() {
		return nil
	}
	_, err := tx.Hospital(ctx, pool.HospitalID)
	return err
}

// DepositStock credits units to a pool.
func (e *Engine) DepositStock(ctx context.Context, p auth.Principal, pool inventory.Pool, group blood.Group, units int64) (inventory.Movement, error) {
	return e.mutateStock(ctx, p, "deposit_stock", pool, func(ctx context.Context, l *inventory.Ledger) (inventory.Movement, error) {
		return l.Deposit(ctx, pool, group, units, inventory.Ref{Reason: inventory.ReasonDeposit})
	})
}

// WithdrawStock debits units from a pool, failing with ErrInsufficientStock
// rather than going negative.
func (e *Engine) WithdrawStock(ctx context.Context, p auth.Principal, pool inventory.Pool, group blood.Group, units int64) (inventory.Movement, error) {
	return e.mutateStock(ctx, p, "withdraw_stock", pool, func(ctx context.Context, l *inventory.Ledger) (inventory.Movement, error) {
		return l.Withdraw(ctx, pool, group, units, inventory.Ref{Reason: inventory.ReasonWithdrawal})
	})
}

// SetOpeningStock sets the first balance of an empty counter. Counters that
// already hold units only change through deposits and withdrawals.
func (e *Engine) SetOpeningStock(ctx context.Context, p auth.Principal, pool inventory.Pool, group blood.Group, units int64) (inventory.Movement, error) {
	return e.mutateStock(ctx, p, "set_opening_stock", pool, func(ctx context.Context, l *inventory.Ledger) (inventory.Movement, error) {
		return l.SetOpening(ctx, pool, group, units, inventory.Ref{Reason: inventory.ReasonOpening})
	})
}

func (e *Engine) mutateStock(ctx context.Context, p auth.Principal, op string, pool inventory.Pool, fn func(context.Context, *inventory.Ledger) (inventory.Movement, error)) (inventory.Movement, error) {
	if err := canManage(p, pool); err != nil {
		return inventory.Movement{}, e.fail(op, err)
	}
	var mv inventory.Movement
	err := e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		if err := poolExists(ctx, tx, pool); err != nil {
			return err
		}
		var err error
		mv, err = fn(ctx, e.ledger(tx))
		return err
	})
	if err != nil {
		return inventory.Movement{}, e.fail(op, err)
	}
	e.moved(mv)
	return mv, nil
}

// TransferStock moves units between pools in one unit of work. The caller
// must be allowed to manage the source pool.
func (e *Engine) TransferStock(ctx context.Context, p auth.Principal, from, to inventory.Pool, group blood.Group, units int64) (out, in inventory.Movement, err error) {
	if err := canManage(p, from); err != nil {
		return out, in, e.fail("transfer_stock", err)
	}
	ref := inventory.Ref{ID: e.newID()}
	err = e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		if err := poolExists(ctx, tx, from); err != nil {
			return err
		}
		if err := poolExists(ctx, tx, to); err != nil {
			return err
		}
		var err error
		out, in, err = e.ledger(tx).Transfer(ctx, from, to, group, units, ref)
		return err
	})
	if err != nil {
		return inventory.Movement{}, inventory.Movement{}, e.fail("transfer_stock", err)
	}
	e.moved(out, in)
	return out, in, nil
}

// ReadStock returns the units of one group at a pool. Any authenticated
// principal may read stock.
func (e *Engine) ReadStock(ctx context.Context, p auth.Principal, pool inventory.Pool, group blood.Group) (int64, error) {
	if err := requireValid(p); err != nil {
		return 0, e.fail("read_stock", err)
	}
	var units int64
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		units, err = e.ledger(tx).Read(ctx, pool, group)
		return err
	})
	if err != nil {
		return 0, e.fail("read_stock", err)
	}
	return units, nil
}

// StockReport returns every group's units at a pool, in blood.Groups order.
func (e *Engine) StockReport(ctx context.Context, p auth.Principal, pool inventory.Pool) ([]GroupUnits, error) {
	if err := requireValid(p); err != nil {
		return nil, e.fail("stock_report", err)
	}
	var all map[blood.Group]int64
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		if err := poolExists(ctx, tx, pool); err != nil {
			return err
		}
		var err error
		all, err = e.ledger(tx).ReadAll(ctx, pool)
		return err
	})
	if err != nil {
		return nil, e.fail("stock_report", err)
	}
	return ordered(blood.Groups, all), nil
}

// CompatibleStock lists the units at pool of every donor group that can
// supply recipient, the recipient's own group first.
func (e *Engine) CompatibleStock(ctx context.Context, p auth.Principal, pool inventory.Pool, recipient blood.Group) ([]GroupUnits, error) {
	if err := requireValid(p); err != nil {
		return nil, e.fail("compatible_stock", err)
	}
	if !recipient.Valid() {
		return nil, e.fail("compatible_stock", invalid("unknown blood group %q", recipient))
	}
	var all map[blood.Group]int64
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		all, err = e.ledger(tx).ReadAll(ctx, pool)
		return err
	})
	if err != nil {
		return nil, e.fail("compatible_stock", err)
	}
	return ordered(blood.CompatibleDonorGroups(recipient), all), nil
}

// Movements pages through the stock movement log. Admin only.
func (e *Engine) Movements(ctx context.Context, p auth.Principal, limit int, afterSeq uint64) ([]inventory.Movement, uint64, error) {
	if err := requireAdmin(p); err != nil {
		return nil, 0, e.fail("list_movements", err)
	}
	var (
		items []inventory.Movement
		next  uint64
	)
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		items, next, err = e.ledger(tx).Movements(ctx, limit, afterSeq)
		return err
	})
	if err != nil {
		return nil, 0, e.fail("list_movements", err)
	}
	return items, next, nil
}

func ordered(groups []blood.Group, units map[blood.Group]int64) []GroupUnits {
	out := make([]GroupUnits, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupUnits{Group: g, Units: units[g]})
	}
	return out
}
