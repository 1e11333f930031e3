package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"bloodnet.org/internal/bank"
	"bloodnet.org/internal/blood"
)

const donorColumns = `id, name, phone, gender, blood_group, address, age, last_donation_date, created_at`

func scanDonor(row interface{ Scan(...any) error }) (bank.Donor, error) {
	var (
		d     bank.Donor
		group string
		last  sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.Gender, &group, &d.Address, &d.Age, &last, &d.CreatedAt); err != nil {
		return bank.Donor{}, err
	}
	d.BloodGroup = blood.Group(group)
	if last.Valid {
		day := dateOnly(last.Time)
		d.LastDonationDate = &day
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}

func (t *txn) InsertDonor(ctx context.Context, d bank.Donor) error {
	_, err := t.q.ExecContext(ctx, `
		insert into donors(`+donorColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, d.ID, d.Name, d.Phone, d.Gender, string(d.BloodGroup), d.Address, d.Age, nullTime(d.LastDonationDate), d.CreatedAt)
	return translate(err, "donor "+d.ID)
}

func (t *txn) Donor(ctx context.Context, id string) (bank.Donor, error) {
	d, err := scanDonor(t.q.QueryRowContext(ctx, `select `+donorColumns+` from donors where id=$1`+t.forUpdate(), id))
	return d, translate(err, "donor "+id)
}

func (t *txn) UpdateDonor(ctx context.Context, d bank.Donor) error {
	res, err := t.q.ExecContext(ctx, `
		update donors set name=$2, phone=$3, gender=$4, blood_group=$5, address=$6, age=$7, last_donation_date=$8
		where id=$1
	`, d.ID, d.Name, d.Phone, d.Gender, string(d.BloodGroup), d.Address, d.Age, nullTime(d.LastDonationDate))
	return affected(res, err, "donor "+d.ID)
}

// DeleteDonor relies on foreign keys to cascade to health checks, donations
// and slots.
func (t *txn) DeleteDonor(ctx context.Context, id string) error {
	res, err := t.q.ExecContext(ctx, `delete from donors where id=$1`, id)
	return affected(res, err, "donor "+id)
}

func (t *txn) DonorStats(ctx context.Context, cutoff time.Time) (total, available int, err error) {
	err = t.q.QueryRowContext(ctx, `
		select count(*),
		       count(*) filter (where last_donation_date is null or last_donation_date <= $1)
		from donors
	`, cutoff).Scan(&total, &available)
	return total, available, err
}

const patientColumns = `id, name, phone, gender, blood_group, address, required_units, created_at`

func (t *txn) InsertPatient(ctx context.Context, p bank.Patient) error {
	_, err := t.q.ExecContext(ctx, `
		insert into patients(`+patientColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, p.ID, p.Name, p.Phone, p.Gender, string(p.BloodGroup), p.Address, p.RequiredUnits, p.CreatedAt)
	return translate(err, "patient "+p.ID)
}

func (t *txn) Patient(ctx context.Context, id string) (bank.Patient, error) {
	var (
		p     bank.Patient
		group string
	)
	err := t.q.QueryRowContext(ctx, `select `+patientColumns+` from patients where id=$1`+t.forUpdate(), id).
		Scan(&p.ID, &p.Name, &p.Phone, &p.Gender, &group, &p.Address, &p.RequiredUnits, &p.CreatedAt)
	if err != nil {
		return bank.Patient{}, translate(err, "patient "+id)
	}
	p.BloodGroup = blood.Group(group)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (t *txn) DeletePatient(ctx context.Context, id string) error {
	res, err := t.q.ExecContext(ctx, `delete from patients where id=$1`, id)
	return affected(res, err, "patient "+id)
}

func (t *txn) CountPatients(ctx context.Context) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx, `select count(*) from patients`).Scan(&n)
	return n, err
}

func (t *txn) InsertHospital(ctx context.Context, h bank.Hospital) error {
	_, err := t.q.ExecContext(ctx, `
		insert into hospitals(id, name, address, phone, created_at)
		values ($1,$2,$3,$4,$5)
	`, h.ID, h.Name, h.Address, h.Phone, h.CreatedAt)
	return translate(err, "hospital "+h.ID)
}

func (t *txn) Hospital(ctx context.Context, id string) (bank.Hospital, error) {
	var h bank.Hospital
	err := t.q.QueryRowContext(ctx, `
		select id, name, address, phone, created_at from hospitals where id=$1`+t.forUpdate(), id).
		Scan(&h.ID, &h.Name, &h.Address, &h.Phone, &h.CreatedAt)
	if err != nil {
		return bank.Hospital{}, translate(err, "hospital "+id)
	}
	h.CreatedAt = h.CreatedAt.UTC()
	return h, nil
}

// DeleteHospital drops the hospital's stock counters, which the engine has
// already closed out to zero; slots and requests cascade. Movements stay as
// history.
func (t *txn) DeleteHospital(ctx context.Context, id string) error {
	if id == "" {
		return errors.Wrap(bank.ErrNotFound, "hospital")
	}
	if _, err := t.q.ExecContext(ctx, `delete from stock where pool_id=$1`, id); err != nil {
		return err
	}
	res, err := t.q.ExecContext(ctx, `delete from hospitals where id=$1`, id)
	return affected(res, err, "hospital "+id)
}

const healthCheckColumns = `id, donor_id, weight_kg, hemoglobin_g_dl, systolic, diastolic, pulse_bpm, temperature_c, notes, status, submitted_at, reviewed_at`

func scanHealthCheck(row interface{ Scan(...any) error }) (bank.HealthCheck, error) {
	var (
		hc       bank.HealthCheck
		status   string
		reviewed sql.NullTime
	)
	if err := row.Scan(&hc.ID, &hc.DonorID, &hc.WeightKG, &hc.HemoglobinGDL, &hc.Systolic, &hc.Diastolic,
		&hc.PulseBPM, &hc.TemperatureC, &hc.Notes, &status, &hc.SubmittedAt, &reviewed); err != nil {
		return bank.HealthCheck{}, err
	}
	hc.Status = bank.ReviewStatus(status)
	hc.SubmittedAt = hc.SubmittedAt.UTC()
	hc.ReviewedAt = timePtr(reviewed)
	return hc, nil
}

func (t *txn) InsertHealthCheck(ctx context.Context, hc bank.HealthCheck) error {
	_, err := t.q.ExecContext(ctx, `
		insert into health_checks(`+healthCheckColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, hc.ID, hc.DonorID, hc.WeightKG, hc.HemoglobinGDL, hc.Systolic, hc.Diastolic, hc.PulseBPM,
		hc.TemperatureC, hc.Notes, string(hc.Status), hc.SubmittedAt, nullTime(hc.ReviewedAt))
	return translate(err, "health check "+hc.ID)
}

func (t *txn) HealthCheck(ctx context.Context, id string) (bank.HealthCheck, error) {
	hc, err := scanHealthCheck(t.q.QueryRowContext(ctx,
		`select `+healthCheckColumns+` from health_checks where id=$1`+t.forUpdate(), id))
	return hc, translate(err, "health check "+id)
}

func (t *txn) UpdateHealthCheck(ctx context.Context, hc bank.HealthCheck) error {
	res, err := t.q.ExecContext(ctx, `
		update health_checks set notes=$2, status=$3, reviewed_at=$4 where id=$1
	`, hc.ID, hc.Notes, string(hc.Status), nullTime(hc.ReviewedAt))
	return affected(res, err, "health check "+hc.ID)
}

func (t *txn) LatestHealthCheck(ctx context.Context, donorID string) (bank.HealthCheck, error) {
	hc, err := scanHealthCheck(t.q.QueryRowContext(ctx, `
		select `+healthCheckColumns+` from health_checks
		where donor_id=$1
		order by submitted_at desc, id desc
		limit 1`, donorID))
	return hc, translate(err, "health check for donor "+donorID)
}
