package pg

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"bloodnet.org/internal/blood"
	"bloodnet.org/internal/inventory"
)

func (t *txn) CreditStock(ctx context.Context, key inventory.Key, units int64) (int64, error) {
	var bal int64
	err := t.q.QueryRowContext(ctx, `
		insert into stock(pool_id, blood_group, units, updated_at)
		values ($1,$2,$3,now())
		on conflict (pool_id, blood_group) do update
		set units = stock.units + excluded.units, updated_at = now()
		returning units
	`, key.Pool.HospitalID, string(key.Group), units).Scan(&bal)
	return bal, err
}

func (t *txn) DebitStock(ctx context.Context, key inventory.Key, units int64) (int64, bool, error) {
	var bal int64
	err := t.q.QueryRowContext(ctx, `
		update stock set units = units - $3, updated_at = now()
		where pool_id=$1 and blood_group=$2 and units >= $3
		returning units
	`, key.Pool.HospitalID, string(key.Group), units).Scan(&bal)
	if err == nil {
		return bal, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}
	bal, err = t.StockUnits(ctx, key)
	return bal, false, err
}

func (t *txn) InitStock(ctx context.Context, key inventory.Key, units int64) (bool, error) {
	var bal int64
	err := t.q.QueryRowContext(ctx, `
		insert into stock(pool_id, blood_group, units, updated_at)
		values ($1,$2,$3,now())
		on conflict (pool_id, blood_group) do update
		set units = excluded.units, updated_at = now()
		where stock.units = 0
		returning units
	`, key.Pool.HospitalID, string(key.Group), units).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (t *txn) StockUnits(ctx context.Context, key inventory.Key) (int64, error) {
	var bal int64
	err := t.q.QueryRowContext(ctx, `
		select units from stock where pool_id=$1 and blood_group=$2
	`, key.Pool.HospitalID, string(key.Group)).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return bal, err
}

func (t *txn) StockByPool(ctx context.Context, pool inventory.Pool) (map[blood.Group]int64, error) {
	rows, err := t.q.QueryContext(ctx, `select blood_group, units from stock where pool_id=$1`, pool.HospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[blood.Group]int64)
	for rows.Next() {
		var g string
		var n int64
		if err := rows.Scan(&g, &n); err != nil {
			return nil, err
		}
		out[blood.Group(g)] = n
	}
	return out, rows.Err()
}

func (t *txn) AppendMovement(ctx context.Context, m *inventory.Movement) error {
	return t.q.QueryRowContext(ctx, `
		insert into stock_movements(pool_id, blood_group, delta, balance_after, reason, reference_id, created_at)
		values ($1,$2,$3,$4,$5,$6,$7) returning sequence
	`, m.Pool.HospitalID, string(m.Group), m.Delta, m.BalanceAfter, string(m.Reason), m.ReferenceID, m.At).Scan(&m.Sequence)
}

func (t *txn) Movements(ctx context.Context, limit int, afterSeq uint64) ([]inventory.Movement, error) {
	rows, err := t.q.QueryContext(ctx, `
		select sequence, pool_id, blood_group, delta, balance_after, reason, reference_id, created_at
		from stock_movements
		where sequence > $1
		order by sequence asc
		limit $2
	`, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []inventory.Movement
	for rows.Next() {
		var (
			m             inventory.Movement
			group, reason string
		)
		if err := rows.Scan(&m.Sequence, &m.Pool.HospitalID, &group, &m.Delta, &m.BalanceAfter, &reason, &m.ReferenceID, &m.At); err != nil {
			return nil, err
		}
		m.Group = blood.Group(group)
		m.Reason = inventory.Reason(reason)
		m.At = m.At.UTC()
		res = append(res, m)
	}
	return res, rows.Err()
}
