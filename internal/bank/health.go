package bank

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"bloodnet.org/internal/auth"
)

// HealthCheckInput holds the screening values a donor submits.
type HealthCheckInput struct {
	DonorID       string
	WeightKG      float64
	HemoglobinGDL float64
	Systolic      int
	Diastolic     int
	PulseBPM      int
	TemperatureC  float64
	Notes         string
}

func (in HealthCheckInput) validate() error {
	switch {
	case in.WeightKG <= 0 || in.WeightKG > 400:
		return invalid("weight_kg out of range")
	case in.HemoglobinGDL <= 0 || in.HemoglobinGDL > 30:
		return invalid("hemoglobin_g_dl out of range")
	case in.Systolic <= 0 || in.Diastolic <= 0 || in.Diastolic >= in.Systolic:
		return invalid("blood pressure out of range")
	case in.PulseBPM <= 0 || in.PulseBPM > 250:
		return invalid("pulse_bpm out of range")
	case in.TemperatureC < 30 || in.TemperatureC > 45:
		return invalid("temperature_c out of range")
	}
	return nil
}

// SubmitHealthCheck records a new pending screening for the donor. It
// becomes the donor's latest check and replaces any earlier verdict.
func (e *Engine) SubmitHealthCheck(ctx context.Context, p auth.Principal, in HealthCheckInput) (HealthCheck, error) {
	if err := requireActor(p, auth.RoleDonor, in.DonorID); err != nil {
		return HealthCheck{}, e.fail("submit_health_check", err)
	}
	if err := in.validate(); err != nil {
		return HealthCheck{}, e.fail("submit_health_check", err)
	}
	hc := HealthCheck{
		ID:            e.newID(),
		DonorID:       in.DonorID,
		WeightKG:      in.WeightKG,
		HemoglobinGDL: in.HemoglobinGDL,
		Systolic:      in.Systolic,
		Diastolic:     in.Diastolic,
		PulseBPM:      in.PulseBPM,
		TemperatureC:  in.TemperatureC,
		Notes:         strings.TrimSpace(in.Notes),
		Status:        ReviewPending,
		SubmittedAt:   e.now().UTC(),
	}
	err := e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Donor(ctx, in.DonorID); err != nil {
			return err
		}
		return tx.InsertHealthCheck(ctx, hc)
	})
	if err != nil {
		return HealthCheck{}, e.fail("submit_health_check", err)
	}
	e.log.Info("health check submitted", zap.String("health_check_id", hc.ID), zap.String("donor_id", hc.DonorID))
	return hc, nil
}

// ApproveHealthCheck marks a pending check approved. Admin only.
func (e *Engine) ApproveHealthCheck(ctx context.Context, p auth.Principal, id string) (HealthCheck, error) {
	return e.review(ctx, p, id, true, "")
}

// RejectHealthCheck marks a pending check rejected. Admin only.
func (e *Engine) RejectHealthCheck(ctx context.Context, p auth.Principal, id, notes string) (HealthCheck, error) {
	return e.review(ctx, p, id, false, notes)
}

func (e *Engine) review(ctx context.Context, p auth.Principal, id string, approve bool, notes string) (HealthCheck, error) {
	op := "reject_health_check"
	if approve {
		op = "approve_health_check"
	}
	if err := requireAdmin(p); err != nil {
		return HealthCheck{}, e.fail(op, err)
	}
	var hc HealthCheck
	err := e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if hc, err = tx.HealthCheck(ctx, id); err != nil {
			return err
		}
		if hc.Status, err = hc.Status.next(approve); err != nil {
			return err
		}
		now := e.now().UTC()
		hc.ReviewedAt = &now
		if n := strings.TrimSpace(notes); n != "" {
			hc.Notes = n
		}
		return tx.UpdateHealthCheck(ctx, hc)
	})
	if err != nil {
		return HealthCheck{}, e.fail(op, err)
	}
	e.log.Info("health check reviewed", zap.String("health_check_id", hc.ID), zap.String("status", string(hc.Status)))
	return hc, nil
}

// LatestHealthCheck returns the donor's most recent check. Visible to admins,
// hospitals and the donor.
func (e *Engine) LatestHealthCheck(ctx context.Context, p auth.Principal, donorID string) (HealthCheck, error) {
	if !p.Is(auth.RoleHospital) {
		if err := requireActor(p, auth.RoleDonor, donorID); err != nil {
			return HealthCheck{}, e.fail("latest_health_check", err)
		}
	}
	var hc HealthCheck
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		hc, err = tx.LatestHealthCheck(ctx, donorID)
		return err
	})
	if err != nil {
		return HealthCheck{}, e.fail("latest_health_check", err)
	}
	return hc, nil
}

// requireCleared fails with ErrNotEligible unless the donor's most recent
// health check is approved.
func requireCleared(ctx context.Context, tx Tx, donorID string) error {
	hc, err := tx.LatestHealthCheck(ctx, donorID)
	if errors.Is(err, ErrNotFound) {
		return errors.Wrap(ErrNotEligible, "no health check on file")
	}
	if err != nil {
		return err
	}
	if hc.Status != ReviewApproved {
		return errors.Wrapf(ErrNotEligible, "latest health check is %s", hc.Status)
	}
	return nil
}
