// Package mem is an in-process bank.Store for development and tests.
package mem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"bloodnet.org/internal/bank"
	"bloodnet.org/internal/inventory"
)

// Store keeps all records in memory. Atomically serializes units of work
// behind a single writer lock and applies them to a working copy that
// replaces the live state only when fn succeeds.
type Store struct {
	mu sync.RWMutex
	st *state
}

var _ bank.Store = (*Store)(nil)

type state struct {
	donors    map[string]bank.Donor
	patients  map[string]bank.Patient
	hospitals map[string]bank.Hospital
	checks    map[string]bank.HealthCheck
	donations map[string]bank.Donation
	slots     map[string]bank.DonationSlot
	requests  map[string]bank.BloodRequest
	stock     *inventory.Memory
}

// New creates an empty store.
func New() *Store {
	return &Store{st: &state{
		donors:    make(map[string]bank.Donor),
		patients:  make(map[string]bank.Patient),
		hospitals: make(map[string]bank.Hospital),
		checks:    make(map[string]bank.HealthCheck),
		donations: make(map[string]bank.Donation),
		slots:     make(map[string]bank.DonationSlot),
		requests:  make(map[string]bank.BloodRequest),
		stock:     inventory.NewMemory(),
	}}
}

func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx bank.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(ctx, &tx{Memory: work.stock, st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// View runs fn against the live state. fn must not write.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx bank.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &tx{Memory: s.st.stock, st: s.st})
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (st *state) clone() *state {
	return &state{
		donors:    cloneMap(st.donors),
		patients:  cloneMap(st.patients),
		hospitals: cloneMap(st.hospitals),
		checks:    cloneMap(st.checks),
		donations: cloneMap(st.donations),
		slots:     cloneMap(st.slots),
		requests:  cloneMap(st.requests),
		stock:     st.stock.Clone(),
	}
}

// cloneMap copies the map. Values are structs whose pointer fields are never
// mutated in place, so a shallow copy is enough.
func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type tx struct {
	*inventory.Memory
	st *state
}

func get[V any](m map[string]V, id, kind string) (V, error) {
	v, ok := m[id]
	if !ok {
		var zero V
		return zero, errors.Wrapf(bank.ErrNotFound, "%s %s", kind, id)
	}
	return v, nil
}

func insert[V any](m map[string]V, id, kind string, v V) error {
	if _, ok := m[id]; ok {
		return errors.Errorf("%s %s already exists", kind, id)
	}
	m[id] = v
	return nil
}

func update[V any](m map[string]V, id, kind string, v V) error {
	if _, ok := m[id]; !ok {
		return errors.Wrapf(bank.ErrNotFound, "%s %s", kind, id)
	}
	m[id] = v
	return nil
}

// sorted returns the values accepted by keep ordered by id. IDs are ULIDs, so
// this is creation order.
func sorted[V any](m map[string]V, keep func(V) bool) []V {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if keep == nil || keep(v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func (t *tx) InsertDonor(ctx context.Context, d bank.Donor) error {
	return insert(t.st.donors, d.ID, "donor", d)
}

func (t *tx) Donor(ctx context.Context, id string) (bank.Donor, error) {
	return get(t.st.donors, id, "donor")
}

func (t *tx) UpdateDonor(ctx context.Context, d bank.Donor) error {
	return update(t.st.donors, d.ID, "donor", d)
}

func (t *tx) DeleteDonor(ctx context.Context, id string) error {
	if _, err := t.Donor(ctx, id); err != nil {
		return err
	}
	delete(t.st.donors, id)
	for k, hc := range t.st.checks {
		if hc.DonorID == id {
			delete(t.st.checks, k)
		}
	}
	for k, d := range t.st.donations {
		if d.DonorID == id {
			delete(t.st.donations, k)
		}
	}
	for k, s := range t.st.slots {
		if s.DonorID == id {
			delete(t.st.slots, k)
		}
	}
	return nil
}

func (t *tx) DonorStats(ctx context.Context, cutoff time.Time) (total, available int, err error) {
	for _, d := range t.st.donors {
		total++
		if d.LastDonationDate == nil || !d.LastDonationDate.After(cutoff) {
			available++
		}
	}
	return total, available, nil
}

func (t *tx) InsertPatient(ctx context.Context, p bank.Patient) error {
	return insert(t.st.patients, p.ID, "patient", p)
}

func (t *tx) Patient(ctx context.Context, id string) (bank.Patient, error) {
	return get(t.st.patients, id, "patient")
}

func (t *tx) DeletePatient(ctx context.Context, id string) error {
	if _, err := t.Patient(ctx, id); err != nil {
		return err
	}
	delete(t.st.patients, id)
	for k, r := range t.st.requests {
		if r.PatientID == id {
			delete(t.st.requests, k)
		}
	}
	return nil
}

func (t *tx) CountPatients(ctx context.Context) (int, error) { return len(t.st.patients), nil }

func (t *tx) InsertHospital(ctx context.Context, h bank.Hospital) error {
	return insert(t.st.hospitals, h.ID, "hospital", h)
}

func (t *tx) Hospital(ctx context.Context, id string) (bank.Hospital, error) {
	return get(t.st.hospitals, id, "hospital")
}

func (t *tx) DeleteHospital(ctx context.Context, id string) error {
	if _, err := t.Hospital(ctx, id); err != nil {
		return err
	}
	delete(t.st.hospitals, id)
	for k, s := range t.st.slots {
		if s.HospitalID == id {
			delete(t.st.slots, k)
		}
	}
	for k, r := range t.st.requests {
		if r.HospitalID == id {
			delete(t.st.requests, k)
		}
	}
	t.DropPool(inventory.HospitalPool(id))
	return nil
}

func (t *tx) InsertHealthCheck(ctx context.Context, hc bank.HealthCheck) error {
	return insert(t.st.checks, hc.ID, "health check", hc)
}

func (t *tx) HealthCheck(ctx context.Context, id string) (bank.HealthCheck, error) {
	return get(t.st.checks, id, "health check")
}

func (t *tx) UpdateHealthCheck(ctx context.Context, hc bank.HealthCheck) error {
	return update(t.st.checks, hc.ID, "health check", hc)
}

func (t *tx) LatestHealthCheck(ctx context.Context, donorID string) (bank.HealthCheck, error) {
	all := sorted(t.st.checks, func(hc bank.HealthCheck) bool { return hc.DonorID == donorID })
	if len(all) == 0 {
		return bank.HealthCheck{}, errors.Wrapf(bank.ErrNotFound, "health check for donor %s", donorID)
	}
	return all[len(all)-1], nil
}

func (t *tx) InsertDonation(ctx context.Context, d bank.Donation) error {
	return insert(t.st.donations, d.ID, "donation", d)
}

func (t *tx) Donations(ctx context.Context, donorID string) ([]bank.Donation, error) {
	out := sorted(t.st.donations, func(d bank.Donation) bool { return d.DonorID == donorID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (t *tx) InsertSlot(ctx context.Context, s bank.DonationSlot) error {
	return insert(t.st.slots, s.ID, "slot", s)
}

func (t *tx) Slot(ctx context.Context, id string) (bank.DonationSlot, error) {
	return get(t.st.slots, id, "slot")
}

func (t *tx) UpdateSlot(ctx context.Context, s bank.DonationSlot) error {
	return update(t.st.slots, s.ID, "slot", s)
}

func (t *tx) DeleteSlot(ctx context.Context, id string) error {
	if _, err := t.Slot(ctx, id); err != nil {
		return err
	}
	delete(t.st.slots, id)
	return nil
}

func (t *tx) Slots(ctx context.Context, f bank.SlotFilter) ([]bank.DonationSlot, error) {
	return sorted(t.st.slots, func(s bank.DonationSlot) bool {
		return (f.DonorID == "" || s.DonorID == f.DonorID) &&
			(f.HospitalID == "" || s.HospitalID == f.HospitalID) &&
			(f.State == "" || s.State == f.State)
	}), nil
}

func (t *tx) InsertRequest(ctx context.Context, r bank.BloodRequest) error {
	return insert(t.st.requests, r.ID, "request", r)
}

func (t *tx) Request(ctx context.Context, id string) (bank.BloodRequest, error) {
	return get(t.st.requests, id, "request")
}

func (t *tx) UpdateRequest(ctx context.Context, r bank.BloodRequest) error {
	return update(t.st.requests, r.ID, "request", r)
}

func (t *tx) Requests(ctx context.Context, f bank.RequestFilter) ([]bank.BloodRequest, error) {
	return sorted(t.st.requests, matchRequest(f)), nil
}

func (t *tx) CountRequests(ctx context.Context, status bank.RequestStatus) (int, error) {
	return len(sorted(t.st.requests, matchRequest(bank.RequestFilter{Status: status}))), nil
}

func matchRequest(f bank.RequestFilter) func(bank.BloodRequest) bool {
	return func(r bank.BloodRequest) bool {
		return (f.PatientID == "" || r.PatientID == f.PatientID) &&
			(f.HospitalID == "" || r.HospitalID == f.HospitalID) &&
			(f.Status == "" || r.Status == f.Status)
	}
}
