package bank

import (
	"time"

	"bloodnet.org/internal/blood"
)

// Donor is a registered blood donor. Available caches
// blood.IsDonorAvailable(LastDonationDate, now) and is recomputed whenever a
// donor is read or its last donation date changes.
type Donor struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Phone            string      `json:"phone,omitempty"`
	Gender           string      `json:"gender,omitempty"`
	BloodGroup       blood.Group `json:"blood_group"`
	Address          string      `json:"address,omitempty"`
	Age              int         `json:"age"`
	LastDonationDate *time.Time  `json:"last_donation_date,omitempty"`
	Available        bool        `json:"available"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Patient is a recipient who raises blood requests.
type Patient struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Phone         string      `json:"phone,omitempty"`
	Gender        string      `json:"gender,omitempty"`
	BloodGroup    blood.Group `json:"blood_group"`
	Address       string      `json:"address,omitempty"`
	RequiredUnits int64       `json:"required_units"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Hospital owns a stock pool and serves blood requests.
type Hospital struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BloodRequest asks a hospital for units of one blood group.
type BloodRequest struct {
	ID         string        `json:"id"`
	PatientID  string        `json:"patient_id"`
	HospitalID string        `json:"hospital_id"`
	BloodGroup blood.Group   `json:"blood_group"`
	Units      int64         `json:"units"`
	Status     RequestStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	DecidedAt  *time.Time    `json:"decided_at,omitempty"`
}

// DonationSlot is an appointment for a donor at a hospital.
type DonationSlot struct {
	ID         string    `json:"id"`
	DonorID    string    `json:"donor_id"`
	HospitalID string    `json:"hospital_id"`
	Date       time.Time `json:"date"`
	Time       string    `json:"time"`
	State      SlotState `json:"state"`
	DonationID string    `json:"donation_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Approved reports whether an administrator has signed off the slot.
func (s DonationSlot) Approved() bool { return s.State != SlotRequested }

// Accepted reports whether the donor has opted in.
func (s DonationSlot) Accepted() bool { return s.State == SlotAccepted || s.State == SlotCompleted }

func (s DonationSlot) Completed() bool { return s.State == SlotCompleted }

// Donation is an immutable record of collected units.
type Donation struct {
	ID        string    `json:"id"`
	DonorID   string    `json:"donor_id"`
	SlotID    string    `json:"slot_id,omitempty"`
	Date      time.Time `json:"date"`
	Units     int64     `json:"units"`
	CreatedAt time.Time `json:"created_at"`
}

// HealthCheck is a donor's pre-donation screening, reviewed by an admin.
type HealthCheck struct {
	ID            string       `json:"id"`
	DonorID       string       `json:"donor_id"`
	WeightKG      float64      `json:"weight_kg"`
	HemoglobinGDL float64      `json:"hemoglobin_g_dl"`
	Systolic      int          `json:"systolic"`
	Diastolic     int          `json:"diastolic"`
	PulseBPM      int          `json:"pulse_bpm"`
	TemperatureC  float64      `json:"temperature_c"`
	Notes         string       `json:"notes,omitempty"`
	Status        ReviewStatus `json:"status"`
	SubmittedAt   time.Time    `json:"submitted_at"`
	ReviewedAt    *time.Time   `json:"reviewed_at,omitempty"`
}

// RequestFilter narrows request listings. Empty fields match everything.
type RequestFilter struct {
	HospitalID string
	PatientID  string
	Status     RequestStatus
}

// SlotFilter narrows slot listings. Empty fields match everything.
type SlotFilter struct {
	DonorID    string
	HospitalID string
	State      SlotState
}
