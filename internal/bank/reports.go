package bank

import (
	"context"
	"time"

	"bloodnet.org/internal/auth"
	"bloodnet.org/internal/blood"
	"bloodnet.org/internal/inventory"
)

// Availability is the evaluated eligibility of a donor on a date.
type Availability struct {
	DonorID       string     `json:"donor_id"`
	AsOf          time.Time  `json:"as_of"`
	Available     bool       `json:"available"`
	DaysRemaining int        `json:"days_remaining"`
	EligibleOn    *time.Time `json:"eligible_on,omitempty"`
}

// Availability evaluates whether the donor may donate on asOf (today when
// zero). Visible to admins, hospitals and the donor.
func (e *Engine) Availability(ctx context.Context, p auth.Principal, donorID string, asOf time.Time) (Availability, error) {
	d, err := e.Donor(ctx, p, donorID)
	if err != nil {
		return Availability{}, err
	}
	if asOf.IsZero() {
		asOf = e.today()
	}
	asOf = blood.Day(asOf)
	av := Availability{
		DonorID:       d.ID,
		AsOf:          asOf,
		Available:     blood.IsDonorAvailable(d.LastDonationDate, asOf),
		DaysRemaining: blood.DaysUntilEligible(d.LastDonationDate, asOf),
	}
	if d.LastDonationDate != nil {
		on := blood.EligibleOn(*d.LastDonationDate)
		av.EligibleOn = &on
	}
	return av, nil
}

// Summary is the administrator dashboard.
type Summary struct {
	TotalDonors     int          `json:"total_donors"`
	AvailableDonors int          `json:"available_donors"`
	TotalPatients   int          `json:"total_patients"`
	PendingRequests int          `json:"pending_requests"`
	CentralStock    []GroupUnits `json:"central_stock"`
	AsOf            time.Time    `json:"as_of"`
}

// Summary counts donors, available donors, patients and pending requests and
// reports the central pool. Admin only.
func (e *Engine) Summary(ctx context.Context, p auth.Principal) (Summary, error) {
	if err := requireAdmin(p); err != nil {
		return Summary{}, e.fail("summary", err)
	}
	today := e.today()
	cutoff := today.AddDate(0, 0, -blood.DeferralDays)
	s := Summary{AsOf: today}
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if s.TotalDonors, s.AvailableDonors, err = tx.DonorStats(ctx, cutoff); err != nil {
			return err
		}
		if s.TotalPatients, err = tx.CountPatients(ctx); err != nil {
			return err
		}
		if s.PendingRequests, err = tx.CountRequests(ctx, RequestPending); err != nil {
			return err
		}
		all, err := e.ledger(tx).ReadAll(ctx, inventory.Central)
		if err != nil {
			return err
		}
		s.CentralStock = ordered(blood.Groups, all)
		return nil
	})
	if err != nil {
		return Summary{}, e.fail("summary", err)
	}
	return s, nil
}
