package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"bloodnet.org/internal/bank"
	"bloodnet.org/internal/blood"
)

type createDonorRequest struct {
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	Gender           string `json:"gender"`
	BloodGroup       string `json:"blood_group"`
	Address          string `json:"address"`
	Age              int    `json:"age"`
	LastDonationDate string `json:"last_donation_date"`
}

type createPatientRequest struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Gender        string `json:"gender"`
	BloodGroup    string `json:"blood_group"`
	Address       string `json:"address"`
	RequiredUnits int64  `json:"required_units"`
}

type createHospitalRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

func (a *API) createDonor(w http.ResponseWriter, r *http.Request) {
	var req createDonorRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	g, err := parseGroup(req.BloodGroup)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	in := bank.NewDonor{
		Name: req.Name, Phone: req.Phone, Gender: req.Gender,
		BloodGroup: g, Address: req.Address, Age: req.Age,
	}
	last, err := parseDate("last_donation_date", req.LastDonationDate)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if !last.IsZero() {
		in.LastDonationDate = &last
	}
	d, err := a.engine.CreateDonor(r.Context(), in)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "donor.create", zap.String("donor_id", d.ID), zap.String("blood_group", string(d.BloodGroup)))
	w.Header().Set("Location", "/v1/donors/"+d.ID)
	writeJSON(w, http.StatusCreated, d)
}

func (a *API) getDonor(w http.ResponseWriter, r *http.Request) {
	d, err := a.engine.Donor(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) deleteDonor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.engine.DeleteDonor(r.Context(), principal(r), id); err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "donor.delete", zap.String("donor_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) createPatient(w http.ResponseWriter, r *http.Request) {
	var req createPatientRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	g, err := parseGroup(req.BloodGroup)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	p, err := a.engine.CreatePatient(r.Context(), bank.NewPatient{
		Name: req.Name, Phone: req.Phone, Gender: req.Gender,
		BloodGroup: g, Address: req.Address, RequiredUnits: req.RequiredUnits,
	})
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "patient.create", zap.String("patient_id", p.ID))
	w.Header().Set("Location", "/v1/patients/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) getPatient(w http.ResponseWriter, r *http.Request) {
	p, err := a.engine.Patient(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deletePatient(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.engine.DeletePatient(r.Context(), principal(r), id); err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "patient.delete", zap.String("patient_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) createHospital(w http.ResponseWriter, r *http.Request) {
	var req createHospitalRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	h, err := a.engine.CreateHospital(r.Context(), principal(r), bank.NewHospital{Name: req.Name, Address: req.Address, Phone: req.Phone})
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "hospital.create", zap.String("hospital_id", h.ID))
	w.Header().Set("Location", "/v1/hospitals/"+h.ID)
	writeJSON(w, http.StatusCreated, h)
}

func (a *API) getHospital(w http.ResponseWriter, r *http.Request) {
	h, err := a.engine.Hospital(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (a *API) deleteHospital(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.engine.DeleteHospital(r.Context(), principal(r), id); err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "hospital.delete", zap.String("hospital_id", id))
	w.WriteHeader(http.StatusNoContent)
}

type compatibilityResponse struct {
	Recipient   blood.Group   `json:"recipient"`
	DonorGroups []blood.Group `json:"donor_groups"`
	CanGiveTo   []blood.Group `json:"can_give_to"`
}

// compatibility answers unknown groups with empty sets rather than an error.
func (a *API) compatibility(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("group")
	g, err := blood.ParseGroup(raw)
	if err != nil {
		g = blood.Group(raw)
	}
	writeJSON(w, http.StatusOK, compatibilityResponse{
		Recipient:   g,
		DonorGroups: nonNil(blood.CompatibleDonorGroups(g)),
		CanGiveTo:   nonNil(blood.CompatibleRecipientGroups(g)),
	})
}

func (a *API) availability(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDate("as_of", r.URL.Query().Get("as_of"))
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	av, err := a.engine.Availability(r.Context(), principal(r), r.PathValue("id"), asOf)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, av)
}

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	s, err := a.engine.Summary(r.Context(), principal(r))
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
