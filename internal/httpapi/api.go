package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"bloodnet.org/internal/audit"
	"bloodnet.org/internal/auth"
	"bloodnet.org/internal/bank"
	"bloodnet.org/internal/obs"
)

const serviceName = "bloodnet-api"

// API is the HTTP JSON surface over the engine.
type API struct {
	mux    *http.ServeMux
	engine *bank.Engine
	tokens *auth.Tokens
	log    *zap.Logger
	audit  *audit.Logger

	version     string
	devTokens   bool
	tokenTTL    time.Duration
	rateBurst   int
	ratePerSec  float64
	bodyLimit   int64
	corsOrigins []string
}

// Option configures the API.
type Option func(*API)

func WithLogger(l *zap.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.log = l
		}
	}
}

func WithAudit(l *audit.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.audit = l
		}
	}
}

func WithVersion(v string) Option { return func(a *API) { a.version = v } }

// WithDevTokens enables POST /v1/auth/token, which mints tokens for any
// principal. Never enable it in production.
func WithDevTokens(ttl time.Duration) Option {
	return func(a *API) {
		a.devTokens = true
		if ttl > 0 {
			a.tokenTTL = ttl
		}
	}
}

func WithRateLimit(perSecond float64, burst int) Option {
	return func(a *API) {
		if perSecond > 0 && burst > 0 {
			a.ratePerSec, a.rateBurst = perSecond, burst
		}
	}
}

func WithBodyLimit(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.bodyLimit = n
		}
	}
}

// WithCORSOrigins allows browser calls from the given origins in addition to
// localhost.
func WithCORSOrigins(origins []string) Option {
	return func(a *API) { a.corsOrigins = append(a.corsOrigins, origins...) }
}

// New wires the routes. tokens verifies bearer tokens on every non-public
// route.
func New(engine *bank.Engine, tokens *auth.Tokens, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		engine:     engine,
		tokens:     tokens,
		log:        zap.NewNop(),
		version:    "dev",
		tokenTTL:   time.Hour,
		rateBurst:  100,
		ratePerSec: 50,
		bodyLimit:  1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = audit.New(a.log)
	}
	a.routes()
	return a
}

func (a *API) routes() {
	m := a.mux

	m.HandleFunc("GET /healthz", a.Healthz)
	m.HandleFunc("GET /readyz", a.Ready)
	m.HandleFunc("GET /v1/info", a.Info)
	m.Handle("GET /metrics", obs.Handler())
	m.HandleFunc("POST /v1/auth/token", a.issueToken)

	m.HandleFunc("GET /v1/compatibility/{group}", a.compatibility)

	m.HandleFunc("POST /v1/donors", a.createDonor)
	m.HandleFunc("GET /v1/donors/{id}", a.getDonor)
	m.HandleFunc("DELETE /v1/donors/{id}", a.deleteDonor)
	m.HandleFunc("GET /v1/donors/{id}/availability", a.availability)
	m.HandleFunc("GET /v1/donors/{id}/donations", a.listDonations)
	m.HandleFunc("GET /v1/donors/{id}/health-check", a.latestHealthCheck)
	m.HandleFunc("POST /v1/patients", a.createPatient)
	m.HandleFunc("GET /v1/patients/{id}", a.getPatient)
	m.HandleFunc("DELETE /v1/patients/{id}", a.deletePatient)
	m.HandleFunc("POST /v1/hospitals", a.createHospital)
	m.HandleFunc("GET /v1/hospitals/{id}", a.getHospital)
	m.HandleFunc("DELETE /v1/hospitals/{id}", a.deleteHospital)

	m.HandleFunc("GET /v1/stock", a.stockReport)
	m.HandleFunc("GET /v1/stock/compatible/{group}", a.compatibleStock)
	m.HandleFunc("POST /v1/stock/deposits", a.depositStock)
	m.HandleFunc("POST /v1/stock/withdrawals", a.withdrawStock)
	m.HandleFunc("POST /v1/stock/transfers", a.transferStock)
	m.HandleFunc("PUT /v1/stock/opening", a.openingStock)
	m.HandleFunc("GET /v1/stock/movements", a.listMovements)

	m.HandleFunc("POST /v1/requests", a.createRequest)
	m.HandleFunc("GET /v1/requests", a.listRequests)
	m.HandleFunc("GET /v1/requests/{id}", a.getRequest)
	m.HandleFunc("POST /v1/requests/{id}/approve", a.approveRequest)
	m.HandleFunc("POST /v1/requests/{id}/reject", a.rejectRequest)

	m.HandleFunc("POST /v1/slots", a.offerSlot)
	m.HandleFunc("POST /v1/slots/requests", a.requestSlot)
	m.HandleFunc("GET /v1/slots", a.listSlots)
	m.HandleFunc("POST /v1/slots/{id}/{action}", a.slotAction)
	m.HandleFunc("POST /v1/donations/walk-in", a.walkInDonation)

	m.HandleFunc("POST /v1/health-checks", a.submitHealthCheck)
	m.HandleFunc("POST /v1/health-checks/{id}/{action}", a.reviewHealthCheck)

	m.HandleFunc("GET /v1/summary", a.summary)
}

// Handler returns the routes wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.bodyLimit)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h, a.corsOrigins...)
	h = SecurityHeaders(h)
	h = LoggingJSON(a.log)(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
