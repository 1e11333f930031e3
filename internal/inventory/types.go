package inventory

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"bloodnet.org/internal/blood"
)

// Pool identifies a counter space: a hospital's own stock, or the central
// pool when HospitalID is empty.
type Pool struct {
	HospitalID string `json:"hospital_id,omitempty"`
}

// Central is the hospital-less pool fed by walk-in and slot donations.
var Central = Pool{}

// HospitalPool returns the pool owned by hospital id.
func HospitalPool(id string) Pool { return Pool{HospitalID: id} }

func (p Pool) IsCentral() bool { return p.HospitalID == "" }

func (p Pool) String() string {
	if p.IsCentral() {
		return "central"
	}
	return "hospital:" + p.HospitalID
}

// Key addresses a single stock counter.
type Key struct {
	Pool  Pool
	Group blood.Group
}

func (k Key) String() string { return k.Pool.String() + "/" + string(k.Group) }

// Reason explains why a movement happened.
type Reason string

const (
	ReasonDeposit     Reason = "deposit"
	ReasonWithdrawal  Reason = "withdrawal"
	ReasonTransferIn  Reason = "transfer_in"
	ReasonTransferOut Reason = "transfer_out"
	ReasonOpening     Reason = "opening"
	ReasonDonation    Reason = "donation"
	ReasonRequest     Reason = "request"
	ReasonClosure     Reason = "closure"
)

// Ref ties a movement to the business event that caused it.
type Ref struct {
	Reason Reason
	ID     string
}

// Movement is one append-only entry of the stock log. Delta is positive for
// credits and negative for debits.
type Movement struct {
	Sequence     uint64      `json:"sequence"`
	Pool         Pool        `json:"pool"`
	Group        blood.Group `json:"blood_group"`
	Delta        int64       `json:"delta"`
	BalanceAfter int64       `json:"balance_after"`
	Reason       Reason      `json:"reason"`
	ReferenceID  string      `json:"reference_id,omitempty"`
	At           time.Time   `json:"at"`
}

var (
	ErrInvalidUnits      = errors.New("invalid units (must be > 0)")
	ErrInvalidGroup      = errors.New("invalid blood group")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOverwriteRejected = errors.New("stock counter is not empty; use a deposit or withdrawal")
	ErrSamePool          = errors.New("transfer source and destination are the same pool")
)

// InsufficientStockError carries the balance that blocked a withdrawal.
type InsufficientStockError struct {
	Key       Key
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: %d available, %d requested", e.Key, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
