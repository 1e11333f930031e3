package bank

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"bloodnet.org/internal/auth"
	"bloodnet.org/internal/blood"
	"bloodnet.org/internal/inventory"
)

// NewDonor is the registration payload for a donor.
type NewDonor struct {
	Name             string
	Phone            string
	Gender           string
	BloodGroup       blood.Group
	Address          string
	Age              int
	LastDonationDate *time.Time
}

// NewPatient is the registration payload for a patient.
type NewPatient struct {
	Name          string
	Phone         string
	Gender        string
	BloodGroup    blood.Group
	Address       string
	RequiredUnits int64
}

// NewHospital is the payload for registering a hospital.
type NewHospital struct {
	Name    string
	Address string
	Phone   string
}

// CreateDonor registers a donor. Registration is performed by the identity
// layer on behalf of the new user, so no principal is required.
func (e *Engine) CreateDonor(ctx context.Context, in NewDonor) (Donor, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return Donor{}, e.fail("create_donor", invalid("name is required"))
	case !in.BloodGroup.Valid():
		return Donor{}, e.fail("create_donor", invalid("unknown blood group %q", in.BloodGroup))
	case in.Age < 0:
		return Donor{}, e.fail("create_donor", invalid("age must be >= 0"))
	}
	var last *time.Time
	if in.LastDonationDate != nil {
		d := blood.Day(*in.LastDonationDate)
		if d.After(e.today()) {
			return Donor{}, e.fail("create_donor", invalid("last donation date is in the future"))
		}
		last = &d
	}
	d := Donor{
		ID:               e.newID(),
		Name:             name,
		Phone:            strings.TrimSpace(in.Phone),
		Gender:           strings.TrimSpace(in.Gender),
		BloodGroup:       in.BloodGroup,
		Address:          strings.TrimSpace(in.Address),
		Age:              in.Age,
		LastDonationDate: last,
		CreatedAt:        e.now().UTC(),
	}
	d = e.donorView(d)
	if err := e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertDonor(ctx, d)
	}); err != nil {
		return Donor{}, e.fail("create_donor", err)
	}
	e.log.Info("donor registered", zap.String("donor_id", d.ID), zap.String("group", string(d.BloodGroup)))
	return d, nil
}

// CreatePatient registers a patient. RequiredUnits defaults to 1.
func (e *Engine) CreatePatient(ctx context.Context, in NewPatient) (Patient, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return Patient{}, e.fail("create_patient", invalid("name is required"))
	case !in.BloodGroup.Valid():
		return Patient{}, e.fail("create_patient", invalid("unknown blood group %q", in.BloodGroup))
	case in.RequiredUnits < 0:
		return Patient{}, e.fail("create_patient", invalid("required units must be >= 1"))
	}
	units := in.RequiredUnits
	if units == 0 {
		units = 1
	}
	p := Patient{
		ID:            e.newID(),
		Name:          name,
		Phone:         strings.TrimSpace(in.Phone),
		Gender:        strings.TrimSpace(in.Gender),
		BloodGroup:    in.BloodGroup,
		Address:       strings.TrimSpace(in.Address),
		RequiredUnits: units,
		CreatedAt:     e.now().UTC(),
	}
	if err := e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertPatient(ctx, p)
	}); err != nil {
		return Patient{}, e.fail("create_patient", err)
	}
	e.log.Info("patient registered", zap.String("patient_id", p.ID))
	return p, nil
}

// CreateHospital registers a hospital. Admin only.
func (e *Engine) CreateHospital(ctx context.Context, p auth.Principal, in NewHospital) (Hospital, error) {
	if err := requireAdmin(p); err != nil {
		return Hospital{}, e.fail("create_hospital", err)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Hospital{}, e.fail("create_hospital", invalid("name is required"))
	}
	h := Hospital{
		ID:        e.newID(),
		Name:      name,
		Address:   strings.TrimSpace(in.Address),
		Phone:     strings.TrimSpace(in.Phone),
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertHospital(ctx, h)
	}); err != nil {
		return Hospital{}, e.fail("create_hospital", err)
	}
	e.log.Info("hospital registered", zap.String("hospital_id", h.ID))
	return h, nil
}

// Donor returns a donor with availability recomputed. Visible to admins,
// hospitals and the donor.
func (e *Engine) Donor(ctx context.Context, p auth.Principal, id string) (Donor, error) {
	if !p.Is(auth.RoleHospital) {
		if err := requireActor(p, auth.RoleDonor, id); err != nil {
			return Donor{}, e.fail("get_donor", err)
		}
	}
	var d Donor
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		d, err = tx.Donor(ctx, id)
		return err
	})
	if err != nil {
		return Donor{}, e.fail("get_donor", err)
	}
	return e.donorView(d), nil
}

// Patient returns a patient. Visible to admins, hospitals and the patient.
func (e *Engine) Patient(ctx context.Context, p auth.Principal, id string) (Patient, error) {
	if !p.Is(auth.RoleHospital) {
		if err := requireActor(p, auth.RolePatient, id); err != nil {
			return Patient{}, e.fail("get_patient", err)
		}
	}
	var out Patient
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Patient(ctx, id)
		return err
	})
	if err != nil {
		return Patient{}, e.fail("get_patient", err)
	}
	return out, nil
}

// Hospital returns a hospital to any authenticated principal.
func (e *Engine) Hospital(ctx context.Context, p auth.Principal, id string) (Hospital, error) {
	if err := requireValid(p); err != nil {
		return Hospital{}, e.fail("get_hospital", err)
	}
	var out Hospital
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Hospital(ctx, id)
		return err
	})
	if err != nil {
		return Hospital{}, e.fail("get_hospital", err)
	}
	return out, nil
}

// DeleteDonor removes a donor and everything it owns. Admin only.
func (e *Engine) DeleteDonor(ctx context.Context, p auth.Principal, id string) error {
	return e.remove(ctx, p, "delete_donor", id, Tx.DeleteDonor)
}

// DeletePatient removes a patient and its requests. Admin only.
func (e *Engine) DeletePatient(ctx context.Context, p auth.Principal, id string) error {
	return e.remove(ctx, p, "delete_patient", id, Tx.DeletePatient)
}

// DeleteHospital removes a hospital with its slots and requests. Units still
// held in its pool are written off with closure movements in the same unit
// of work, so the movement log keeps balancing. Admin only.
func (e *Engine) DeleteHospital(ctx context.Context, p auth.Principal, id string) error {
	if err := requireAdmin(p); err != nil {
		return e.fail("delete_hospital", err)
	}
	var closed []inventory.Movement
	err := e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		closed = closed[:0]
		if _, err := tx.Hospital(ctx, id); err != nil {
			return err
		}
		pool := inventory.HospitalPool(id)
		l := e.ledger(tx)
		held, err := l.ReadAll(ctx, pool)
		if err != nil {
			return err
		}
		for _, g := range blood.Groups {
			if held[g] == 0 {
				continue
			}
			m, err := l.Withdraw(ctx, pool, g, held[g], inventory.Ref{Reason: inventory.ReasonClosure, ID: id})
			if err != nil {
				return err
			}
			closed = append(closed, m)
		}
		return tx.DeleteHospital(ctx, id)
	})
	if err != nil {
		return e.fail("delete_hospital", err)
	}
	e.moved(closed...)
	e.log.Info("hospital deleted", zap.String("hospital_id", id), zap.Int("closed_counters", len(closed)))
	return nil
}

func (e *Engine) remove(ctx context.Context, p auth.Principal, op, id string, del func(Tx, context.Context, string) error) error {
	if err := requireAdmin(p); err != nil {
		return e.fail(op, err)
	}
	if err := e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		return del(tx, ctx, id)
	}); err != nil {
		return e.fail(op, err)
	}
	e.log.Info("record deleted", zap.String("op", op), zap.String("id", id))
	return nil
}
