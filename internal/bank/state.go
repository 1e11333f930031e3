package bank

import "github.com/pkg/errors"

// RequestStatus is the lifecycle state of a BloodRequest.
type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestApproved RequestStatus = "Approved"
	RequestRejected RequestStatus = "Rejected"
)

type requestAction string

const (
	requestApprove requestAction = "approve"
	requestReject  requestAction = "reject"
)

var requestTransitions = map[RequestStatus]map[requestAction]RequestStatus{
	RequestPending: {
		requestApprove: RequestApproved,
		requestReject:  RequestRejected,
	},
}

func (s RequestStatus) Valid() bool {
	return s == RequestPending || s == RequestApproved || s == RequestRejected
}

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool { return len(requestTransitions[s]) == 0 }

func (s RequestStatus) next(a requestAction) (RequestStatus, error) {
	to, ok := requestTransitions[s][a]
	if !ok {
		return s, errors.Wrapf(ErrInvalidTransition, "cannot %s a %s request", a, s)
	}
	return to, nil
}

// SlotState is the lifecycle state of a DonationSlot. Declined and rejected
// slots are deleted rather than stored in a terminal state.
type SlotState string

const (
	SlotRequested SlotState = "requested"
	SlotOffered   SlotState = "offered"
	SlotAccepted  SlotState = "accepted"
	SlotCompleted SlotState = "completed"

	slotDeleted SlotState = "deleted"
)

type slotAction string

const (
	slotAccept   slotAction = "accept"
	slotReject   slotAction = "reject"
	slotApprove  slotAction = "approve"
	slotDecline  slotAction = "decline"
	slotComplete slotAction = "complete"
)

var slotTransitions = map[SlotState]map[slotAction]SlotState{
	SlotRequested: {
		slotApprove: SlotAccepted,
		slotDecline: slotDeleted,
	},
	SlotOffered: {
		slotAccept: SlotAccepted,
		slotReject: slotDeleted,
	},
	SlotAccepted: {
		slotComplete: SlotCompleted,
	},
}

func (s SlotState) Valid() bool {
	switch s {
	case SlotRequested, SlotOffered, SlotAccepted, SlotCompleted:
		return true
	}
	return false
}

func (s SlotState) next(a slotAction) (SlotState, error) {
	if s == SlotCompleted && a == slotComplete {
		return s, ErrAlreadyCompleted
	}
	to, ok := slotTransitions[s][a]
	if !ok {
		return s, errors.Wrapf(ErrInvalidTransition, "cannot %s a %s slot", a, s)
	}
	return to, nil
}

// ReviewStatus is the administrator verdict on a HealthCheck.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

func (s ReviewStatus) next(approve bool) (ReviewStatus, error) {
	if s != ReviewPending {
		return s, errors.Wrapf(ErrInvalidTransition, "health check already %s", s)
	}
	if approve {
		return ReviewApproved, nil
	}
	return ReviewRejected, nil
}
