package bank

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bloodnet.org/internal/auth"
	"bloodnet.org/internal/blood"
	"bloodnet.org/internal/inventory"
)

// DonationInput describes collected units. A zero Date means today.
type DonationInput struct {
	Units int64
	Date  time.Time
}

// DonationReceipt is everything a completed donation changed.
type DonationReceipt struct {
	Donation Donation           `json:"donation"`
	Donor    Donor              `json:"donor"`
	Slot     *DonationSlot      `json:"slot,omitempty"`
	Movement inventory.Movement `json:"movement"`
}

// RecordDonation completes an accepted slot: it appends the Donation, credits
// the central pool with the donor's group, and moves the donor's last
// donation date. It is the only path that credits stock for a donation. A
// second call on the same slot fails with ErrAlreadyCompleted. Admins and the
// slot's hospital may call it.
func (e *Engine) RecordDonation(ctx context.Context, p auth.Principal, slotID string, in DonationInput) (DonationReceipt, error) {
	date, err := e.donationDate(in)
	if err != nil {
		return DonationReceipt{}, e.fail("record_donation", err)
	}
	var rc DonationReceipt
	err = e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		s, err := tx.Slot(ctx, slotID)
		if err != nil {
			return err
		}
		if err := requireActor(p, auth.RoleHospital, s.HospitalID); err != nil {
			return err
		}
		to, err := s.State.next(slotComplete)
		if err != nil {
			return err
		}
		d, err := tx.Donor(ctx, s.DonorID)
		if err != nil {
			return err
		}
		if rc, err = e.donate(ctx, tx, d, s.ID, in.Units, date); err != nil {
			return err
		}
		s.State = to
		s.DonationID = rc.Donation.ID
		s.UpdatedAt = e.now().UTC()
		if err := tx.UpdateSlot(ctx, s); err != nil {
			return err
		}
		rc.Slot = &s
		return nil
	})
	if err != nil {
		return DonationReceipt{}, e.fail("record_donation", err)
	}
	e.donated(rc)
	e.slotMoved(*rc.Slot)
	return rc, nil
}

// RecordWalkInDonation records a donation that was not booked through a
// slot. The same eligibility rules apply. Admin only.
func (e *Engine) RecordWalkInDonation(ctx context.Context, p auth.Principal, donorID string, in DonationInput) (DonationReceipt, error) {
	if err := requireAdmin(p); err != nil {
		return DonationReceipt{}, e.fail("record_walk_in", err)
	}
	date, err := e.donationDate(in)
	if err != nil {
		return DonationReceipt{}, e.fail("record_walk_in", err)
	}
	var rc DonationReceipt
	err = e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		d, err := tx.Donor(ctx, donorID)
		if err != nil {
			return err
		}
		rc, err = e.donate(ctx, tx, d, "", in.Units, date)
		return err
	})
	if err != nil {
		return DonationReceipt{}, e.fail("record_walk_in", err)
	}
	e.donated(rc)
	return rc, nil
}

// ListDonations returns a donor's donation history. Visible to admins,
// hospitals and the donor.
func (e *Engine) ListDonations(ctx context.Context, p auth.Principal, donorID string) ([]Donation, error) {
	if !p.Is(auth.RoleHospital) {
		if err := requireActor(p, auth.RoleDonor, donorID); err != nil {
			return nil, e.fail("list_donations", err)
		}
	}
	var out []Donation
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Donor(ctx, donorID); err != nil {
			return err
		}
		var err error
		out, err = tx.Donations(ctx, donorID)
		return err
	})
	if err != nil {
		return nil, e.fail("list_donations", err)
	}
	return out, nil
}

func (e *Engine) donationDate(in DonationInput) (time.Time, error) {
	if in.Units <= 0 {
		return time.Time{}, invalid("units must be > 0")
	}
	today := e.today()
	if in.Date.IsZero() {
		return today, nil
	}
	date := blood.Day(in.Date)
	if date.After(today) {
		return time.Time{}, invalid("donation date %s is in the future", date.Format(dateLayout))
	}
	return date, nil
}

// donate applies the shared donation rules inside tx.
func (e *Engine) donate(ctx context.Context, tx Tx, d Donor, slotID string, units int64, date time.Time) (DonationReceipt, error) {
	if err := requireCleared(ctx, tx, d.ID); err != nil {
		return DonationReceipt{}, err
	}
	if err := checkDeferral(d, date); err != nil {
		return DonationReceipt{}, err
	}
	don := Donation{
		ID:        e.newID(),
		DonorID:   d.ID,
		SlotID:    slotID,
		Date:      date,
		Units:     units,
		CreatedAt: e.now().UTC(),
	}
	if err := tx.InsertDonation(ctx, don); err != nil {
		return DonationReceipt{}, err
	}
	mv, err := e.ledger(tx).Deposit(ctx, inventory.Central, d.BloodGroup, units,
		inventory.Ref{Reason: inventory.ReasonDonation, ID: don.ID})
	if err != nil {
		return DonationReceipt{}, err
	}
	d.LastDonationDate = &date
	d = e.donorView(d)
	if err := tx.UpdateDonor(ctx, d); err != nil {
		return DonationReceipt{}, err
	}
	return DonationReceipt{Donation: don, Donor: d, Movement: mv}, nil
}

func (e *Engine) donated(rc DonationReceipt) {
	e.moved(rc.Movement)
	e.log.Info("donation recorded",
		zap.String("donation_id", rc.Donation.ID),
		zap.String("donor_id", rc.Donor.ID),
		zap.String("slot_id", rc.Donation.SlotID),
		zap.Int64("units", rc.Donation.Units),
		zap.String("date", rc.Donation.Date.Format(dateLayout)),
	)
}
