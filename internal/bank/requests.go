package bank

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"bloodnet.org/internal/auth"
	"bloodnet.org/internal/blood"
	"bloodnet.org/internal/inventory"
	"bloodnet.org/internal/obs"
)

// RequestInput raises a blood request. Zero Units and an empty BloodGroup
// fall back to the patient's required units and own group.
type RequestInput struct {
	PatientID  string
	HospitalID string
	BloodGroup blood.Group
	Units      int64
}

// RequestDecision is the outcome of approving or rejecting a request.
type RequestDecision struct {
	Request  BloodRequest        `json:"request"`
	Movement *inventory.Movement `json:"movement,omitempty"`
}

// CreateRequest files a Pending request. Patients file their own; admins may
// file on a patient's behalf.
func (e *Engine) CreateRequest(ctx context.Context, p auth.Principal, in RequestInput) (BloodRequest, error) {
	if err := requireActor(p, auth.RolePatient, in.PatientID); err != nil {
		return BloodRequest{}, e.fail("create_request", err)
	}
	if strings.TrimSpace(in.HospitalID) == "" {
		return BloodRequest{}, e.fail("create_request", invalid("hospital_id is required"))
	}
	if in.Units < 0 {
		return BloodRequest{}, e.fail("create_request", invalid("units must be > 0"))
	}
	if in.BloodGroup != "" && !in.BloodGroup.Valid() {
		return BloodRequest{}, e.fail("create_request", invalid("unknown blood group %q", in.BloodGroup))
	}
	var r BloodRequest
	err := e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		pat, err := tx.Patient(ctx, in.PatientID)
		if err != nil {
			return err
		}
		if _, err := tx.Hospital(ctx, in.HospitalID); err != nil {
			return err
		}
		r = BloodRequest{
			ID:         e.newID(),
			PatientID:  pat.ID,
			HospitalID: in.HospitalID,
			BloodGroup: in.BloodGroup,
			Units:      in.Units,
			Status:     RequestPending,
			CreatedAt:  e.now().UTC(),
		}
		if r.BloodGroup == "" {
			r.BloodGroup = pat.BloodGroup
		}
		if r.Units == 0 {
			r.Units = pat.RequiredUnits
		}
		return tx.InsertRequest(ctx, r)
	})
	if err != nil {
		return BloodRequest{}, e.fail("create_request", err)
	}
	e.requestMoved(r)
	return r, nil
}

// ApproveRequest approves a Pending request and debits the hospital's stock
// for its group in the same unit of work. With too little stock it fails
// with ErrInsufficientStock and the request stays Pending. Admins and the
// owning hospital may call it.
func (e *Engine) ApproveRequest(ctx context.Context, p auth.Principal, id string) (RequestDecision, error) {
	var dec RequestDecision
	err := e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.Request(ctx, id)
		if err != nil {
			return err
		}
		if err := requireActor(p, auth.RoleHospital, r.HospitalID); err != nil {
			return err
		}
		to, err := r.Status.next(requestApprove)
		if err != nil {
			return err
		}
		mv, err := e.ledger(tx).Withdraw(ctx, inventory.HospitalPool(r.HospitalID), r.BloodGroup, r.Units,
			inventory.Ref{Reason: inventory.ReasonRequest, ID: r.ID})
		if err != nil {
			return err
		}
		now := e.now().UTC()
		r.Status = to
		r.DecidedAt = &now
		if err := tx.UpdateRequest(ctx, r); err != nil {
			return err
		}
		dec = RequestDecision{Request: r, Movement: &mv}
		return nil
	})
	if err != nil {
		return RequestDecision{}, e.fail("approve_request", err)
	}
	e.moved(*dec.Movement)
	e.requestMoved(dec.Request)
	return dec, nil
}

// RejectRequest rejects a Pending request without touching stock.
func (e *Engine) RejectRequest(ctx context.Context, p auth.Principal, id, reason string) (RequestDecision, error) {
	var dec RequestDecision
	err := e.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.Request(ctx, id)
		if err != nil {
			return err
		}
		if err := requireActor(p, auth.RoleHospital, r.HospitalID); err != nil {
			return err
		}
		if r.Status, err = r.Status.next(requestReject); err != nil {
			return err
		}
		now := e.now().UTC()
		r.DecidedAt = &now
		r.Reason = strings.TrimSpace(reason)
		if err := tx.UpdateRequest(ctx, r); err != nil {
			return err
		}
		dec = RequestDecision{Request: r}
		return nil
	})
	if err != nil {
		return RequestDecision{}, e.fail("reject_request", err)
	}
	e.requestMoved(dec.Request)
	return dec, nil
}

// Request returns one request to its patient, its hospital or an admin.
func (e *Engine) Request(ctx context.Context, p auth.Principal, id string) (BloodRequest, error) {
	var r BloodRequest
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if r, err = tx.Request(ctx, id); err != nil {
			return err
		}
		if p.Acts(auth.RolePatient, r.PatientID) {
			return nil
		}
		return requireActor(p, auth.RoleHospital, r.HospitalID)
	})
	if err != nil {
		return BloodRequest{}, e.fail("get_request", err)
	}
	return r, nil
}

// ListRequests lists requests, scoped to the caller: patients see their own,
// hospitals the ones addressed to them, admins everything.
func (e *Engine) ListRequests(ctx context.Context, p auth.Principal, f RequestFilter) ([]BloodRequest, error) {
	switch p.Role {
	case auth.RoleAdmin:
	case auth.RolePatient:
		f.PatientID = p.SubjectID
	case auth.RoleHospital:
		f.HospitalID = p.SubjectID
	default:
		return nil, e.fail("list_requests", ErrForbidden)
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, e.fail("list_requests", invalid("unknown request status %q", f.Status))
	}
	var out []BloodRequest
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Requests(ctx, f)
		return err
	})
	if err != nil {
		return nil, e.fail("list_requests", err)
	}
	return out, nil
}

func (e *Engine) requestMoved(r BloodRequest) {
	obs.RequestTransition(string(r.Status))
	e.log.Info("request transition",
		zap.String("request_id", r.ID),
		zap.String("patient_id", r.PatientID),
		zap.String("hospital_id", r.HospitalID),
		zap.String("group", string(r.BloodGroup)),
		zap.Int64("units", r.Units),
		zap.String("status", string(r.Status)),
	)
}
