package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"bloodnet.org/internal/auth"
	"bloodnet.org/internal/bank"
	"bloodnet.org/internal/blood"
	"bloodnet.org/internal/inventory"
)

// stockRequest names a pool by hospital_id; an empty id is the central bank.
type stockRequest struct {
	HospitalID string `json:"hospital_id"`
	BloodGroup string `json:"blood_group"`
	Units      int64  `json:"units"`
}

type transferRequest struct {
	FromHospitalID string `json:"from_hospital_id"`
	ToHospitalID   string `json:"to_hospital_id"`
	BloodGroup     string `json:"blood_group"`
	Units          int64  `json:"units"`
}

type stockReportResponse struct {
	Pool  string            `json:"pool"`
	Stock []bank.GroupUnits `json:"stock"`
}

type movementsResponse struct {
	Items    []inventory.Movement `json:"items"`
	NextSeq  uint64               `json:"next_seq"`
	HasMore  bool                 `json:"has_more"`
	PageSize int                  `json:"page_size"`
}

func poolParam(r *http.Request) inventory.Pool {
	return inventory.HospitalPool(r.URL.Query().Get("hospital_id"))
}

func (a *API) stockReport(w http.ResponseWriter, r *http.Request) {
	pool := poolParam(r)
	stock, err := a.engine.StockReport(r.Context(), principal(r), pool)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stockReportResponse{Pool: pool.String(), Stock: stock})
}

func (a *API) compatibleStock(w http.ResponseWriter, r *http.Request) {
	g, err := parseGroup(r.PathValue("group"))
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	pool := poolParam(r)
	stock, err := a.engine.CompatibleStock(r.Context(), principal(r), pool, g)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stockReportResponse{Pool: pool.String(), Stock: stock})
}

type stockMutation func(ctx context.Context, p auth.Principal, pool inventory.Pool, g blood.Group, units int64) (inventory.Movement, error)

func (a *API) depositStock(w http.ResponseWriter, r *http.Request) {
	a.mutateStock(w, r, "stock.deposit", http.StatusCreated, a.engine.DepositStock)
}

func (a *API) withdrawStock(w http.ResponseWriter, r *http.Request) {
	a.mutateStock(w, r, "stock.withdraw", http.StatusCreated, a.engine.WithdrawStock)
}

func (a *API) openingStock(w http.ResponseWriter, r *http.Request) {
	a.mutateStock(w, r, "stock.opening", http.StatusOK, a.engine.SetOpeningStock)
}

func (a *API) mutateStock(w http.ResponseWriter, r *http.Request, event string, status int, fn stockMutation) {
	var req stockRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	g, err := parseGroup(req.BloodGroup)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	pool := inventory.HospitalPool(req.HospitalID)
	m, err := fn(r.Context(), principal(r), pool, g, req.Units)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), event,
		zap.String("pool", pool.String()),
		zap.String("blood_group", string(g)),
		zap.Int64("delta", m.Delta),
		zap.Uint64("sequence", m.Sequence))
	writeJSON(w, status, m)
}

func (a *API) transferStock(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	g, err := parseGroup(req.BloodGroup)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	from, to := inventory.HospitalPool(req.FromHospitalID), inventory.HospitalPool(req.ToHospitalID)
	out, in, err := a.engine.TransferStock(r.Context(), principal(r), from, to, g, req.Units)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	_ = a.audit.Event(r.Context(), "stock.transfer",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("blood_group", string(g)),
		zap.Int64("units", req.Units),
		zap.String("reference_id", out.ReferenceID))
	writeJSON(w, http.StatusCreated, map[string]inventory.Movement{"out": out, "in": in})
}

func (a *API) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parsePositiveInt("limit", q.Get("limit"), 100, 1, 1000)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	var after uint64
	if raw := q.Get("after_seq"); raw != "" {
		if after, err = strconv.ParseUint(raw, 10, 64); err != nil {
			badRequest(w, r, "after_seq must be a non-negative integer")
			return
		}
	}
	items, next, err := a.engine.Movements(r.Context(), principal(r), limit, after)
	if err != nil {
		a.handleEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movementsResponse{
		Items:    items,
		NextSeq:  next,
		HasMore:  len(items) == limit,
		PageSize: limit,
	})
}
