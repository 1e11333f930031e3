package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"bloodnet.org/internal/auth"
)

type tokenRequest struct {
	Role      string `json:"role"`
	SubjectID string `json:"subject_id"`
}

type tokenResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Principal auth.Principal `json:"principal"`
}

// issueToken mints a bearer token for any principal. It exists for local
// development and tests and answers 404 unless enabled.
func (a *API) issueToken(w http.ResponseWriter, r *http.Request) {
	if !a.devTokens {
		writeError(w, r, http.StatusNotFound, "not_found", "token issuance is disabled")
		return
	}
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	p := auth.Principal{Role: role, SubjectID: strings.TrimSpace(req.SubjectID)}
	if !p.Valid() {
		badRequest(w, r, "subject_id is required for role "+string(role))
		return
	}
	token, exp, err := a.tokens.Issue(p, a.tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal", "token generation failed")
		return
	}
	_ = a.audit.Event(r.Context(), "auth.token.issued",
		zap.String("token_role", string(p.Role)),
		zap.String("token_subject", p.SubjectID),
		zap.Time("expires_at", exp))
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: exp, Principal: p})
}
