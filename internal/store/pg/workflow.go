package pg

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"bloodnet.org/internal/bank"
	"bloodnet.org/internal/blood"
)

// filter accumulates "column = $n" conditions for optional list filters.
type filter struct {
	conds []string
	args  []any
}

func (f *filter) eq(column, value string) {
	if value == "" {
		return
	}
	f.args = append(f.args, value)
	f.conds = append(f.conds, column+" = $"+strconv.Itoa(len(f.args)))
}

func (f *filter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " where " + strings.Join(f.conds, " and ")
}

func (t *txn) InsertDonation(ctx context.Context, d bank.Donation) error {
	_, err := t.q.ExecContext(ctx, `
		insert into donations(id, donor_id, slot_id, donation_date, units, created_at)
		values ($1,$2,nullif($3,''),$4,$5,$6)
	`, d.ID, d.DonorID, d.SlotID, d.Date, d.Units, d.CreatedAt)
	return translate(err, "donation "+d.ID)
}

func (t *txn) Donations(ctx context.Context, donorID string) ([]bank.Donation, error) {
	rows, err := t.q.QueryContext(ctx, `
		select id, donor_id, coalesce(slot_id,''), donation_date, units, created_at
		from donations
		where donor_id=$1
		order by donation_date asc, id asc
	`, donorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []bank.Donation
	for rows.Next() {
		var d bank.Donation
		if err := rows.Scan(&d.ID, &d.DonorID, &d.SlotID, &d.Date, &d.Units, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Date = dateOnly(d.Date)
		d.CreatedAt = d.CreatedAt.UTC()
		res = append(res, d)
	}
	return res, rows.Err()
}

const slotColumns = `id, donor_id, hospital_id, slot_date, slot_time, state, coalesce(donation_id,''), created_at, updated_at`

func scanSlot(row interface{ Scan(...any) error }) (bank.DonationSlot, error) {
	var (
		s     bank.DonationSlot
		state string
	)
	if err := row.Scan(&s.ID, &s.DonorID, &s.HospitalID, &s.Date, &s.Time, &state, &s.DonationID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return bank.DonationSlot{}, err
	}
	s.State = bank.SlotState(state)
	s.Date = dateOnly(s.Date)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func (t *txn) InsertSlot(ctx context.Context, s bank.DonationSlot) error {
	_, err := t.q.ExecContext(ctx, `
		insert into donation_slots(id, donor_id, hospital_id, slot_date, slot_time, state, donation_id, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,nullif($7,''),$8,$9)
	`, s.ID, s.DonorID, s.HospitalID, s.Date, s.Time, string(s.State), s.DonationID, s.CreatedAt, s.UpdatedAt)
	return translate(err, "slot "+s.ID)
}

func (t *txn) Slot(ctx context.Context, id string) (bank.DonationSlot, error) {
	s, err := scanSlot(t.q.QueryRowContext(ctx, `select `+slotColumns+` from donation_slots where id=$1`+t.forUpdate(), id))
	return s, translate(err, "slot "+id)
}

func (t *txn) UpdateSlot(ctx context.Context, s bank.DonationSlot) error {
	res, err := t.q.ExecContext(ctx, `
		update donation_slots set state=$2, donation_id=nullif($3,''), updated_at=$4 where id=$1
	`, s.ID, string(s.State), s.DonationID, s.UpdatedAt)
	return affected(res, err, "slot "+s.ID)
}

func (t *txn) DeleteSlot(ctx context.Context, id string) error {
	res, err := t.q.ExecContext(ctx, `delete from donation_slots where id=$1`, id)
	return affected(res, err, "slot "+id)
}

func (t *txn) Slots(ctx context.Context, f bank.SlotFilter) ([]bank.DonationSlot, error) {
	var w filter
	w.eq("donor_id", f.DonorID)
	w.eq("hospital_id", f.HospitalID)
	w.eq("state", string(f.State))
	rows, err := t.q.QueryContext(ctx, `select `+slotColumns+` from donation_slots`+w.where()+` order by id asc`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []bank.DonationSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

const requestColumns = `id, patient_id, hospital_id, blood_group, units, status, reason, created_at, decided_at`

func scanRequest(row interface{ Scan(...any) error }) (bank.BloodRequest, error) {
	var (
		r             bank.BloodRequest
		group, status string
		decided       sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.PatientID, &r.HospitalID, &group, &r.Units, &status, &r.Reason, &r.CreatedAt, &decided); err != nil {
		return bank.BloodRequest{}, err
	}
	r.BloodGroup = blood.Group(group)
	r.Status = bank.RequestStatus(status)
	r.CreatedAt = r.CreatedAt.UTC()
	r.DecidedAt = timePtr(decided)
	return r, nil
}

func (t *txn) InsertRequest(ctx context.Context, r bank.BloodRequest) error {
	_, err := t.q.ExecContext(ctx, `
		insert into blood_requests(`+requestColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, r.ID, r.PatientID, r.HospitalID, string(r.BloodGroup), r.Units, string(r.Status), r.Reason, r.CreatedAt, nullTime(r.DecidedAt))
	return translate(err, "request "+r.ID)
}

func (t *txn) Request(ctx context.Context, id string) (bank.BloodRequest, error) {
	r, err := scanRequest(t.q.QueryRowContext(ctx, `select `+requestColumns+` from blood_requests where id=$1`+t.forUpdate(), id))
	return r, translate(err, "request "+id)
}

func (t *txn) UpdateRequest(ctx context.Context, r bank.BloodRequest) error {
	res, err := t.q.ExecContext(ctx, `
		update blood_requests set status=$2, reason=$3, decided_at=$4 where id=$1
	`, r.ID, string(r.Status), r.Reason, nullTime(r.DecidedAt))
	return affected(res, err, "request "+r.ID)
}

func (t *txn) Requests(ctx context.Context, f bank.RequestFilter) ([]bank.BloodRequest, error) {
	var w filter
	w.eq("patient_id", f.PatientID)
	w.eq("hospital_id", f.HospitalID)
	w.eq("status", string(f.Status))
	rows, err := t.q.QueryContext(ctx, `select `+requestColumns+` from blood_requests`+w.where()+` order by id asc`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []bank.BloodRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (t *txn) CountRequests(ctx context.Context, status bank.RequestStatus) (int, error) {
	var w filter
	w.eq("status", string(status))
	var n int
	err := t.q.QueryRowContext(ctx, `select count(*) from blood_requests`+w.where(), w.args...).Scan(&n)
	return n, err
}
