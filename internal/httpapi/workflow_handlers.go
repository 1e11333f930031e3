package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"bloodnet.org/internal/auth"
	"bloodnet.org/internal/bank"
)

type newRequestBody struct {
	PatientID  string `json:"patient_id"`
	HospitalID string `json:"hospital_id"`
	BloodGroup string `json:"blood_group"`
	Units      int64  `json:"units"`
}

type rejectBody struct {
	Reason string `json:"reason"`
}

type slotRequest struct {
	DonorID    string `json:"donor_id"`
	HospitalID string `json:"hospital_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

type donationRequest struct {
	DonorID string `json:"donor_id,omitempty"`
	Units   int64  `json:"units"`
	Date    string `json:"date"`
}

type healthCheckRequest struct {
	DonorID       string  `json:"donor_id"`
	WeightKG      float64 `json:"weight_kg"`
	HemoglobinGDL float64 `json:"hemoglobin_g_dl"`
	Systolic      int     `json:"systolic"`
	Diastolic     int     `json:"diastolic"`
	PulseBPM      int     `json:"pulse_bpm"`
	TemperatureC  float64 `json:"temperature_c"`
	Notes         string  `json:"notes"`
}

type reviewRequest struct {
	Notes string `json:"notes"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func (a *API) createRequest(w http.ResponseWriter, r *http.Request) {
	var req newRequestBody
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	in := bank.RequestInput{PatientID: req.PatientID, HospitalID: req.HospitalID, Units: req.Units}
	if req.BloodGroup != "" {
		g, err := parseGroup(req.BloodGroup)
		if err != nil {
			badRequest(w, r, err.Error())
			return
		}
		in.BloodGroup = g
	}
	br, err := a.engine.CreateRequest(r.Context(), principal(r), in)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "request.create",
		zap.String("blood_request_id", br.ID),
		zap.String("patient_id", br.PatientID),
		zap.String("hospital_id", br.HospitalID),
		zap.String("blood_group", string(br.BloodGroup)),
		zap.Int64("units", br.Units))
	w.Header().Set("Location", "/v1/requests/"+br.ID)
	writeJSON(w, http.StatusCreated, br)
}

func (a *API) listRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := bank.RequestFilter{
		HospitalID: q.Get("hospital_id"),
		PatientID:  q.Get("patient_id"),
		Status:     bank.RequestStatus(q.Get("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		badRequest(w, r, "unknown status "+string(f.Status))
		return
	}
	items, err := a.engine.ListRequests(r.Context(), principal(r), f)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[bank.BloodRequest]{Items: nonNil(items)})
}

func (a *API) getRequest(w http.ResponseWriter, r *http.Request) {
	br, err := a.engine.Request(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, br)
}

func (a *API) approveRequest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	dec, err := a.engine.ApproveRequest(r.Context(), principal(r), id)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	fields := []zap.Field{zap.String("blood_request_id", id), zap.String("status", string(dec.Request.Status))}
	if dec.Movement != nil {
		fields = append(fields, zap.Int64("balance_after", dec.Movement.BalanceAfter), zap.Uint64("sequence", dec.Movement.Sequence))
	}
	_ = a.audit.Event(r.Context(), "request.approve", fields...)
	writeJSON(w, http.StatusOK, dec)
}

func (a *API) rejectRequest(w http.ResponseWriter, r *http.Request) {
	var req rejectBody
	if err := decodeOptionalJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	id := r.PathValue("id")
	dec, err := a.engine.RejectRequest(r.Context(), principal(r), id, req.Reason)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "request.reject", zap.String("blood_request_id", id), zap.String("reason", req.Reason))
	writeJSON(w, http.StatusOK, dec)
}

func (a *API) slotInput(w http.ResponseWriter, r *http.Request) (bank.SlotInput, bool) {
	var req slotRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return bank.SlotInput{}, false
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		badRequest(w, r, err.Error())
		return bank.SlotInput{}, false
	}
	return bank.SlotInput{DonorID: req.DonorID, HospitalID: req.HospitalID, Date: date, Time: req.Time}, true
}

func (a *API) offerSlot(w http.ResponseWriter, r *http.Request) {
	in, ok := a.slotInput(w, r)
	if !ok {
		return
	}
	s, err := a.engine.OfferSlot(r.Context(), principal(r), in)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "slot.offer", zap.String("slot_id", s.ID), zap.String("donor_id", s.DonorID))
	writeJSON(w, http.StatusCreated, s)
}

func (a *API) requestSlot(w http.ResponseWriter, r *http.Request) {
	in, ok := a.slotInput(w, r)
	if !ok {
		return
	}
	s, err := a.engine.RequestSlot(r.Context(), principal(r), in)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "slot.request", zap.String("slot_id", s.ID), zap.String("donor_id", s.DonorID))
	writeJSON(w, http.StatusCreated, s)
}

func (a *API) listSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := bank.SlotFilter{
		DonorID:    q.Get("donor_id"),
		HospitalID: q.Get("hospital_id"),
		State:      bank.SlotState(q.Get("state")),
	}
	if f.State != "" && !f.State.Valid() {
		badRequest(w, r, "unknown state "+string(f.State))
		return
	}
	items, err := a.engine.ListSlots(r.Context(), principal(r), f)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[bank.DonationSlot]{Items: nonNil(items)})
}

// slotAction serves POST /v1/slots/{id}/{accept|reject|approve|decline|complete}.
func (a *API) slotAction(w http.ResponseWriter, r *http.Request) {
	id, action := r.PathValue("id"), r.PathValue("action")
	if action == "complete" {
		a.completeSlot(w, r, id)
		return
	}
	var transition func(context.Context, auth.Principal, string) (bank.DonationSlot, error)
	switch action {
	case "accept":
		transition = a.engine.AcceptSlot
	case "reject":
		transition = a.engine.RejectSlot
	case "approve":
		transition = a.engine.ApproveSlot
	case "decline":
		transition = a.engine.DeclineSlot
	default:
		writeError(w, r, http.StatusNotFound, "not_found", "unknown slot action "+action)
		return
	}
	s, err := transition(r.Context(), principal(r), id)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "slot."+action, zap.String("slot_id", s.ID), zap.String("state", string(s.State)))
	writeJSON(w, http.StatusOK, s)
}

func (a *API) donationInput(w http.ResponseWriter, r *http.Request) (donationRequest, bank.DonationInput, bool) {
	var req donationRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return req, bank.DonationInput{}, false
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		badRequest(w, r, err.Error())
		return req, bank.DonationInput{}, false
	}
	return req, bank.DonationInput{Units: req.Units, Date: date}, true
}

func (a *API) completeSlot(w http.ResponseWriter, r *http.Request, slotID string) {
	_, in, ok := a.donationInput(w, r)
	if !ok {
		return
	}
	rc, err := a.engine.RecordDonation(r.Context(), principal(r), slotID, in)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	a.auditDonation(r, rc)
	writeJSON(w, http.StatusCreated, rc)
}

func (a *API) walkInDonation(w http.ResponseWriter, r *http.Request) {
	req, in, ok := a.donationInput(w, r)
	if !ok {
		return
	}
	rc, err := a.engine.RecordWalkInDonation(r.Context(), principal(r), req.DonorID, in)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	a.auditDonation(r, rc)
	writeJSON(w, http.StatusCreated, rc)
}

func (a *API) auditDonation(r *http.Request, rc bank.DonationReceipt) {
	_ = a.audit.Event(r.Context(), "donation.record",
		zap.String("donation_id", rc.Donation.ID),
		zap.String("donor_id", rc.Donor.ID),
		zap.String("blood_group", string(rc.Movement.Group)),
		zap.Int64("units", rc.Movement.Delta),
		zap.Uint64("sequence", rc.Movement.Sequence))
}

func (a *API) listDonations(w http.ResponseWriter, r *http.Request) {
	items, err := a.engine.ListDonations(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[bank.Donation]{Items: nonNil(items)})
}

func (a *API) submitHealthCheck(w http.ResponseWriter, r *http.Request) {
	var req healthCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	hc, err := a.engine.SubmitHealthCheck(r.Context(), principal(r), bank.HealthCheckInput{
		DonorID:       req.DonorID,
		WeightKG:      req.WeightKG,
		HemoglobinGDL: req.HemoglobinGDL,
		Systolic:      req.Systolic,
		Diastolic:     req.Diastolic,
		PulseBPM:      req.PulseBPM,
		TemperatureC:  req.TemperatureC,
		Notes:         req.Notes,
	})
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "health_check.submit", zap.String("health_check_id", hc.ID), zap.String("donor_id", hc.DonorID))
	writeJSON(w, http.StatusCreated, hc)
}

// reviewHealthCheck serves POST /v1/health-checks/{id}/{approve|reject}.
func (a *API) reviewHealthCheck(w http.ResponseWriter, r *http.Request) {
	id, action := r.PathValue("id"), r.PathValue("action")
	var (
		hc  bank.HealthCheck
		err error
	)
	switch action {
	case "approve":
		hc, err = a.engine.ApproveHealthCheck(r.Context(), principal(r), id)
	case "reject":
		var req reviewRequest
		if err := decodeOptionalJSON(r, &req); err != nil {
			badRequest(w, r, err.Error())
			return
		}
		hc, err = a.engine.RejectHealthCheck(r.Context(), principal(r), id, req.Notes)
	default:
		writeError(w, r, http.StatusNotFound, "not_found", "unknown review action "+action)
		return
	}
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "health_check."+action, zap.String("health_check_id", hc.ID), zap.String("status", string(hc.Status)))
	writeJSON(w, http.StatusOK, hc)
}

func (a *API) latestHealthCheck(w http.ResponseWriter, r *http.Request) {
	hc, err := a.engine.LatestHealthCheck(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hc)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
