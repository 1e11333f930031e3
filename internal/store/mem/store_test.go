package mem

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"bloodnet.org/internal/bank"
	"bloodnet.org/internal/blood"
	"bloodnet.org/internal/inventory"
)

func TestAtomicallyRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.Atomically(ctx, func(ctx context.Context, tx bank.Tx) error {
		require.NoError(t, tx.InsertHospital(ctx, bank.Hospital{ID: "h1", Name: "City"}))
		_, err := tx.CreditStock(ctx, inventory.Key{Pool: inventory.Central, Group: blood.OPos}, 3)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx bank.Tx) error {
		_, err := tx.Hospital(ctx, "h1")
		require.ErrorIs(t, err, bank.ErrNotFound)
		n, err := tx.StockUnits(ctx, inventory.Key{Pool: inventory.Central, Group: blood.OPos})
		require.NoError(t, err)
		require.Zero(t, n)
		return nil
	}))
}

func TestAtomicallyCommits(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Atomically(ctx, func(ctx context.Context, tx bank.Tx) error {
		return tx.InsertHospital(ctx, bank.Hospital{ID: "h1", Name: "City"})
	}))
	require.NoError(t, s.View(ctx, func(ctx context.Context, tx bank.Tx) error {
		h, err := tx.Hospital(ctx, "h1")
		require.NoError(t, err)
		require.Equal(t, "City", h.Name)
		return nil
	}))
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Atomically(ctx, func(ctx context.Context, tx bank.Tx) error {
		require.NoError(t, tx.InsertDonor(ctx, bank.Donor{ID: "d1", BloodGroup: blood.APos}))
		require.NoError(t, tx.InsertHospital(ctx, bank.Hospital{ID: "h1"}))
		require.NoError(t, tx.InsertPatient(ctx, bank.Patient{ID: "p1"}))
		require.NoError(t, tx.InsertHealthCheck(ctx, bank.HealthCheck{ID: "c1", DonorID: "d1"}))
		require.NoError(t, tx.InsertDonation(ctx, bank.Donation{ID: "n1", DonorID: "d1", Date: day, Units: 1}))
		require.NoError(t, tx.InsertSlot(ctx, bank.DonationSlot{ID: "s1", DonorID: "d1", HospitalID: "h1"}))
		require.NoError(t, tx.InsertRequest(ctx, bank.BloodRequest{ID: "r1", PatientID: "p1", HospitalID: "h1", Status: bank.RequestPending}))
		_, err := tx.CreditStock(ctx, inventory.Key{Pool: inventory.HospitalPool("h1"), Group: blood.APos}, 2)
		return err
	}))

	require.NoError(t, s.Atomically(ctx, func(ctx context.Context, tx bank.Tx) error {
		require.NoError(t, tx.DeleteDonor(ctx, "d1"))
		return tx.DeleteHospital(ctx, "h1")
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx bank.Tx) error {
		_, err := tx.LatestHealthCheck(ctx, "d1")
		require.ErrorIs(t, err, bank.ErrNotFound)
		ds, err := tx.Donations(ctx, "d1")
		require.NoError(t, err)
		require.Empty(t, ds)
		slots, err := tx.Slots(ctx, bank.SlotFilter{})
		require.NoError(t, err)
		require.Empty(t, slots)
		n, err := tx.CountRequests(ctx, bank.RequestPending)
		require.NoError(t, err)
		require.Zero(t, n)
		stock, err := tx.StockByPool(ctx, inventory.HospitalPool("h1"))
		require.NoError(t, err)
		require.Empty(t, stock)
		_, err = tx.Patient(ctx, "p1")
		require.NoError(t, err)
		return nil
	}))
}

func TestDonorStats(t *testing.T) {
	ctx := context.Background()
	s := New()
	cutoff := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	before, on, after := cutoff.AddDate(0, 0, -1), cutoff, cutoff.AddDate(0, 0, 1)
	require.NoError(t, s.Atomically(ctx, func(ctx context.Context, tx bank.Tx) error {
		for i, last := range []*time.Time{nil, &before, &on, &after} {
			require.NoError(t, tx.InsertDonor(ctx, bank.Donor{ID: string(rune('a' + i)), LastDonationDate: last}))
		}
		return nil
	}))
	require.NoError(t, s.View(ctx, func(ctx context.Context, tx bank.Tx) error {
		total, avail, err := tx.DonorStats(ctx, cutoff)
		require.NoError(t, err)
		require.Equal(t, 4, total)
		require.Equal(t, 3, avail)
		return nil
	}))
}
