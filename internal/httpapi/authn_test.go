package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bloodnet.org/internal/auth"
	"bloodnet.org/internal/bank"
	"bloodnet.org/internal/store/mem"
)

func authAPI(t *testing.T) (*API, *auth.Tokens) {
	t.Helper()
	tokens, err := auth.NewTokens("test-secret")
	require.NoError(t, err)
	return New(bank.New(mem.New()), tokens), tokens
}

func TestWithAuthResolvesPrincipal(t *testing.T) {
	a, tokens := authAPI(t)
	var got auth.Principal
	handler := a.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = principal(r)
	}))

	tok, _, err := tokens.Issue(auth.Hospital("h-1"), time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/stock", nil)
	req.Header.Set("Authorization", "bearer "+tok)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, auth.Hospital("h-1"), got)
}

func TestWithAuthRejectsForeignToken(t *testing.T) {
	a, _ := authAPI(t)
	other, err := auth.NewTokens("other-secret")
	require.NoError(t, err)
	tok, _, err := other.Issue(auth.Admin(), time.Minute)
	require.NoError(t, err)

	handler := a.withAuth(ok200)
	req := httptest.NewRequest(http.MethodGet, "/v1/summary", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPublicRoutesSkipAuth(t *testing.T) {
	a, _ := authAPI(t)
	handler := a.withAuth(ok200)

	for _, tc := range []struct {
		method, path string
		public       bool
	}{
		{http.MethodPost, "/v1/donors", true},
		{http.MethodPost, "/v1/patients", true},
		{http.MethodGet, "/v1/compatibility/O-", true},
		{http.MethodGet, "/healthz", true},
		{http.MethodGet, "/v1/donors/x", false},
		{http.MethodPost, "/v1/hospitals", false},
		{http.MethodPost, "/v1/compatibility/O-", false},
	} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if tc.public {
			require.Equal(t, http.StatusOK, rr.Code, "%s %s", tc.method, tc.path)
		} else {
			require.Equal(t, http.StatusUnauthorized, rr.Code, "%s %s", tc.method, tc.path)
		}
	}
}

func TestExtractBearerToken(t *testing.T) {
	tok, err := extractBearerToken("Bearer abc")
	require.NoError(t, err)
	require.Equal(t, "abc", tok)

	for _, h := range []string{"", "Basic abc", "Bearer   "} {
		_, err := extractBearerToken(h)
		require.Error(t, err, h)
	}
}
