package inventory

import (
	"context"
	"sync"

	"bloodnet.org/internal/blood"
)

// Memory implements Counters in process. It is safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	units     map[Key]int64
	movements []Movement
	seq       uint64
}

var _ Counters = (*Memory)(nil)

// NewMemory creates empty counters.
func NewMemory() *Memory {
	return &Memory{units: make(map[Key]int64)}
}

// Clone returns a working copy for stores that roll back by discarding it.
// Counters are copied. The movement log is append-only and is shared up to
// its current length, so after cloning only one of the two copies may be
// appended to: the clone while it is live, the original once the clone has
// been discarded.
func (m *Memory) Clone() *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &Memory{
		units:     make(map[Key]int64, len(m.units)),
		movements: m.movements,
		seq:       m.seq,
	}
	for k, v := range m.units {
		out.units[k] = v
	}
	return out
}

func (m *Memory) CreditStock(ctx context.Context, key Key, units int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[key] += units
	return m.units[key], nil
}

func (m *Memory) DebitStock(ctx context.Context, key Key, units int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.units[key]
	if cur < units {
		return cur, false, nil
	}
	m.units[key] = cur - units
	return m.units[key], true, nil
}

func (m *Memory) InitStock(ctx context.Context, key Key, units int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.units[key] != 0 {
		return false, nil
	}
	m.units[key] = units
	return true, nil
}

func (m *Memory) StockUnits(ctx context.Context, key Key) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.units[key], nil
}

func (m *Memory) StockByPool(ctx context.Context, pool Pool) (map[blood.Group]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[blood.Group]int64)
	for k, v := range m.units {
		if k.Pool == pool {
			out[k.Group] = v
		}
	}
	return out, nil
}

// DropPool removes every counter of pool. Movements are kept.
func (m *Memory) DropPool(pool Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.units {
		if k.Pool == pool {
			delete(m.units, k)
		}
	}
}

func (m *Memory) AppendMovement(ctx context.Context, mv *Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	mv.Sequence = m.seq
	m.movements = append(m.movements, *mv)
	return nil
}

func (m *Memory) Movements(ctx context.Context, limit int, afterSeq uint64) ([]Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Movement
	for _, mv := range m.movements {
		if mv.Sequence <= afterSeq {
			continue
		}
		res = append(res, mv)
		if len(res) >= limit {
			break
		}
	}
	return res, nil
}
