package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"bloodnet.org/internal/bank"
	"bloodnet.org/internal/blood"
	"bloodnet.org/internal/inventory"
)

const dateLayout = "2006-01-02"

var errEmptyBody = errors.New("request body is required")

var statusByCode = map[string]int{
	"invalid_input":      http.StatusBadRequest,
	"forbidden":          http.StatusForbidden,
	"not_found":          http.StatusNotFound,
	"insufficient_stock": http.StatusConflict,
	"too_soon":           http.StatusConflict,
	"already_completed":  http.StatusConflict,
	"invalid_transition": http.StatusConflict,
	"not_eligible":       http.StatusConflict,
	"overwrite_rejected": http.StatusConflict,
}

// handleEngineError maps an engine error onto a status and a body carrying
// the machine-readable code and, where known, the quantities involved.
func (a *API) handleEngineError(w http.ResponseWriter, r *http.Request, err error) {
	code := bank.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		a.log.Error("unhandled engine error",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	payload := errorPayload(r, code, err.Error())
	var short *inventory.InsufficientStockError
	if errors.As(err, &short) {
		payload["available"] = short.Available
		payload["requested"] = short.Requested
	}
	var soon *bank.TooSoonError
	if errors.As(err, &soon) {
		payload["days_remaining"] = soon.DaysRemaining
		payload["eligible_on"] = soon.EligibleOn.Format(dateLayout)
	}
	writeJSON(w, status, payload)
}

func errorPayload(r *http.Request, code, msg string) map[string]any {
	payload := map[string]any{
		"error": msg,
		"code":  code,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	return payload
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorPayload(r, code, msg))
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeError(w, r, http.StatusBadRequest, "invalid_input", msg)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(r *http.Request, dst any) error {
	err := decodeJSON(r, dst)
	if errors.Is(err, errEmptyBody) {
		return nil
	}
	return err
}

func parseGroup(raw string) (blood.Group, error) {
	g, err := blood.ParseGroup(raw)
	if err != nil {
		return "", errors.Errorf("unknown blood group %q", raw)
	}
	return g, nil
}

// parseDate reads YYYY-MM-DD; an empty string yields the zero time.
func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, errors.Errorf("%s must be YYYY-MM-DD", field)
	}
	return t, nil
}

func parsePositiveInt(field, raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Errorf("%s must be an integer", field)
	}
	if val < min || val > max {
		return 0, errors.Errorf("%s must be between %d and %d", field, min, max)
	}
	return val, nil
}
