package bank

import (
	"context"
	"time"

	"bloodnet.org/internal/inventory"
)

// Store is the durable entity store. Atomically runs fn as one unit of work:
// every write commits together or not at all, and rows read through tx are
// locked until it ends. View runs fn read-only.
type Store interface {
	Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx exposes entity and stock access inside a unit of work. Lookups of absent
// records return ErrNotFound.
type Tx interface {
	inventory.Counters

	InsertDonor(ctx context.Context, d Donor) error
	Donor(ctx context.Context, id string) (Donor, error)
	UpdateDonor(ctx context.Context, d Donor) error
	// DeleteDonor removes the donor with its health checks, donations and slots.
	DeleteDonor(ctx context.Context, id string) error
	// DonorStats counts all donors and those whose last donation is absent or
	// on or before cutoff.
	DonorStats(ctx context.Context, cutoff time.Time) (total, available int, err error)

	InsertPatient(ctx context.Context, p Patient) error
	Patient(ctx context.Context, id string) (Patient, error)
	// DeletePatient removes the patient with its blood requests.
	DeletePatient(ctx context.Context, id string) error
	CountPatients(ctx context.Context) (int, error)

	InsertHospital(ctx context.Context, h Hospital) error
	Hospital(ctx context.Context, id string) (Hospital, error)
	// DeleteHospital removes the hospital with its stock counters, slots and
	// requests. Stock movements are history and stay.
	DeleteHospital(ctx context.Context, id string) error

	InsertHealthCheck(ctx context.Context, hc HealthCheck) error
	HealthCheck(ctx context.Context, id string) (HealthCheck, error)
	UpdateHealthCheck(ctx context.Context, hc HealthCheck) error
	LatestHealthCheck(ctx context.Context, donorID string) (HealthCheck, error)

	InsertDonation(ctx context.Context, d Donation) error
	Donations(ctx context.Context, donorID string) ([]Donation, error)

	InsertSlot(ctx context.Context, s DonationSlot) error
	Slot(ctx context.Context, id string) (DonationSlot, error)
	UpdateSlot(ctx context.Context, s DonationSlot) error
	DeleteSlot(ctx context.Context, id string) error
	Slots(ctx context.Context, f SlotFilter) ([]DonationSlot, error)

	InsertRequest(ctx context.Context, r BloodRequest) error
	Request(ctx context.Context, id string) (BloodRequest, error)
	UpdateRequest(ctx context.Context, r BloodRequest) error
	Requests(ctx context.Context, f RequestFilter) ([]BloodRequest, error)
	CountRequests(ctx context.Context, status RequestStatus) (int, error)
}
