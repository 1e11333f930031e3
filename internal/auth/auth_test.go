package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Hospital ")
	require.NoError(t, err)
	require.Equal(t, RoleHospital, r)

	_, err = ParseRole("nurse")
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestPrincipalValidity(t *testing.T) {
	require.True(t, Admin().Valid())
	require.True(t, Donor("d1").Valid())
	require.False(t, Donor("").Valid())
	require.False(t, Principal{Role: "nurse", SubjectID: "x"}.Valid())

	require.True(t, Hospital("h1").Acts(RoleHospital, "h1"))
	require.False(t, Hospital("h1").Acts(RoleHospital, "h2"))
	require.False(t, Donor("h1").Acts(RoleHospital, "h1"))
}

func TestTokensRoundTrip(t *testing.T) {
	tokens, err := NewTokens("test-secret", WithIssuer("test-issuer"))
	require.NoError(t, err)

	tok, exp, err := tokens.Issue(Hospital("h-42"), 30*time.Minute)
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	p, err := tokens.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, Hospital("h-42"), p)
}

func TestTokensRejectForeignAndExpired(t *testing.T) {
	a, err := NewTokens("secret-a")
	require.NoError(t, err)
	b, err := NewTokens("secret-b")
	require.NoError(t, err)

	tok, _, err := a.Issue(Admin(), time.Minute)
	require.NoError(t, err)
	_, err = b.Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	past := time.Now().Add(-2 * time.Hour)
	old, err := NewTokens("secret-a", WithClock(func() time.Time { return past }))
	require.NoError(t, err)
	tok, _, err = old.Issue(Admin(), time.Minute)
	require.NoError(t, err)
	_, err = a.Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Parse("")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokensRequiresSecret(t *testing.T) {
	_, err := NewTokens("  ")
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssueRejectsInvalidPrincipal(t *testing.T) {
	tokens, err := NewTokens("s")
	require.NoError(t, err)
	_, _, err = tokens.Issue(Patient(""), time.Minute)
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestContextHelpers(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	require.False(t, ok)

	ctx := ContextWithPrincipal(context.Background(), Donor("d7"))
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, Donor("d7"), p)
}
