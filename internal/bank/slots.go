package bank

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"bloodnet.org/internal/auth"
	"bloodnet.org/internal/blood"
	"bloodnet.org/internal/obs"
)

var clockTime = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// SlotInput describes an appointment.
type SlotInput struct {
	DonorID    string
	HospitalID string
	Date       time.Time
	Time       string // HH:MM
}

func (e *Engine) newSlot(in SlotInput, state SlotState) (DonationSlot, error) {
	if strings.TrimSpace(in.DonorID) == "" || strings.TrimSpace(in.HospitalID) == "" {
		return DonationSlot{}, invalid("donor_id and hospital_id are required")
	}
	if in.Date.IsZero() {
		return DonationSlot{}, invalid("date is required")
	}
	date := blood.Day(in.Date)
	if date.Before(e.today()) {
		return DonationSlot{}, invalid("slot date %s is in the past", date.Format(dateLayout))
	}
	if !clockTime.MatchString(in.Time) {
		return DonationSlot{}, invalid("time must be HH:MM")
	}
	now := e.now().UTC()
	return DonationSlot{
		ID:         e.newID(),
		DonorID:    in.DonorID,
		HospitalID: in.HospitalID,
		Date:       date,
		Time:       in.Time,
		State:      state,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// OfferSlot lets an administrator assign an approved slot to a donor, who
// may then accept or reject it.
func (e *Engine) OfferSlot(ctx context.Context, p auth.Principal, in SlotInput) (DonationSlot, error) {
	if err := requireAdmin(p); err != nil {
		return DonationSlot{}, e.fail("offer_slot", err)
	}
	s, err := e.newSlot(in, SlotOffered)
	if err != nil {
		return DonationSlot{}, e.fail("offer_slot", err)
	}
	err = e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Donor(ctx, s.DonorID); err != nil {
			return err
		}
		if _, err := tx.Hospital(ctx, s.HospitalID); err != nil {
			return err
		}
		return tx.InsertSlot(ctx, s)
	})
	if err != nil {
		return DonationSlot{}, e.fail("offer_slot", err)
	}
	e.slotMoved(s)
	return s, nil
}

// RequestSlot lets a cleared donor ask for an appointment; an administrator
// approves or declines it.
func (e *Engine) RequestSlot(ctx context.Context, p auth.Principal, in SlotInput) (DonationSlot, error) {
	if err := requireActor(p, auth.RoleDonor, in.DonorID); err != nil {
		return DonationSlot{}, e.fail("request_slot", err)
	}
	s, err := e.newSlot(in, SlotRequested)
	if err != nil {
		return DonationSlot{}, e.fail("request_slot", err)
	}
	err = e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		d, err := tx.Donor(ctx, s.DonorID)
		if err != nil {
			return err
		}
		if _, err := tx.Hospital(ctx, s.HospitalID); err != nil {
			return err
		}
		if err := requireCleared(ctx, tx, d.ID); err != nil {
			return err
		}
		if err := checkDeferral(d, s.Date); err != nil {
			return err
		}
		return tx.InsertSlot(ctx, s)
	})
	if err != nil {
		return DonationSlot{}, e.fail("request_slot", err)
	}
	e.slotMoved(s)
	return s, nil
}

// AcceptSlot records the donor's opt-in to an offered slot. The donor must
// be cleared and eligible on the slot date.
func (e *Engine) AcceptSlot(ctx context.Context, p auth.Principal, slotID string) (DonationSlot, error) {
	return e.transitionSlot(ctx, "accept_slot", slotID, slotAccept, func(s DonationSlot) error {
		return requireActor(p, auth.RoleDonor, s.DonorID)
	}, true)
}

// RejectSlot records the donor's opt-out; the slot is deleted.
func (e *Engine) RejectSlot(ctx context.Context, p auth.Principal, slotID string) (DonationSlot, error) {
	return e.transitionSlot(ctx, "reject_slot", slotID, slotReject, func(s DonationSlot) error {
		return requireActor(p, auth.RoleDonor, s.DonorID)
	}, false)
}

// ApproveSlot confirms a donor-requested slot. Admin only.
func (e *Engine) ApproveSlot(ctx context.Context, p auth.Principal, slotID string) (DonationSlot, error) {
	return e.transitionSlot(ctx, "approve_slot", slotID, slotApprove, func(DonationSlot) error {
		return requireAdmin(p)
	}, true)
}

// DeclineSlot turns down a donor-requested slot; the slot is deleted. Admin
// only.
func (e *Engine) DeclineSlot(ctx context.Context, p auth.Principal, slotID string) (DonationSlot, error) {
	return e.transitionSlot(ctx, "decline_slot", slotID, slotDecline, func(DonationSlot) error {
		return requireAdmin(p)
	}, false)
}

func (e *Engine) transitionSlot(ctx context.Context, op, slotID string, a slotAction, allow func(DonationSlot) error, gated bool) (DonationSlot, error) {
	var s DonationSlot
	err := e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if s, err = tx.Slot(ctx, slotID); err != nil {
			return err
		}
		if err := allow(s); err != nil {
			return err
		}
		to, err := s.State.next(a)
		if err != nil {
			return err
		}
		if gated {
			if s.Date.Before(e.today()) {
				return errors.Wrapf(ErrInvalidTransition, "slot date %s has passed", s.Date.Format(dateLayout))
			}
			d, err := tx.Donor(ctx, s.DonorID)
			if err != nil {
				return err
			}
			if err := requireCleared(ctx, tx, d.ID); err != nil {
				return err
			}
			if err := checkDeferral(d, s.Date); err != nil {
				return err
			}
		}
		s.State = to
		s.UpdatedAt = e.now().UTC()
		if to == slotDeleted {
			return tx.DeleteSlot(ctx, s.ID)
		}
		return tx.UpdateSlot(ctx, s)
	})
	if err != nil {
		return DonationSlot{}, e.fail(op, err)
	}
	e.slotMoved(s)
	return s, nil
}

// ListSlots lists slots. Donors see their own, hospitals theirs, admins all.
func (e *Engine) ListSlots(ctx context.Context, p auth.Principal, f SlotFilter) ([]DonationSlot, error) {
	switch p.Role {
	case auth.RoleAdmin:
	case auth.RoleDonor:
		f.DonorID = p.SubjectID
	case auth.RoleHospital:
		f.HospitalID = p.SubjectID
	default:
		return nil, e.fail("list_slots", ErrForbidden)
	}
	if f.State != "" && !f.State.Valid() {
		return nil, e.fail("list_slots", invalid("unknown slot state %q", f.State))
	}
	var out []DonationSlot
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Slots(ctx, f)
		return err
	})
	if err != nil {
		return nil, e.fail("list_slots", err)
	}
	return out, nil
}

func (e *Engine) slotMoved(s DonationSlot) {
	obs.SlotTransition(string(s.State))
	e.log.Info("slot transition",
		zap.String("slot_id", s.ID),
		zap.String("donor_id", s.DonorID),
		zap.String("hospital_id", s.HospitalID),
		zap.String("state", string(s.State)),
		zap.String("date", s.Date.Format(dateLayout)),
	)
}

// checkDeferral fails with *TooSoonError when d may not donate on date.
func checkDeferral(d Donor, date time.Time) error {
	if d.LastDonationDate == nil {
		return nil
	}
	left := blood.DaysUntilEligible(d.LastDonationDate, date)
	if left == 0 {
		return nil
	}
	return &TooSoonError{
		LastDonation:  *d.LastDonationDate,
		EligibleOn:    blood.EligibleOn(*d.LastDonationDate),
		DaysRemaining: left,
	}
}
