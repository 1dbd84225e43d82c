package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/focusforge/internal/auth"
)

func TestTokenCommandMintsVerifiableToken(t *testing.T) {
	var out bytes.Buffer
	err := newCLIApp(&out).Run([]string{"focusforge-sampler", "token", "--subject", "user-1", "--secret", "s3cret"})
	require.NoError(t, err)

	claims, err := auth.ParseClaims(strings.TrimSpace(out.String()), auth.Config{Secret: "s3cret", Issuer: "focusforge"})
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.True(t, claims.HasScope(auth.ScopeActivityWrite))
	require.True(t, claims.HasScope(auth.ScopeActivityRead))
}

func TestTokenCommandCustomScope(t *testing.T) {
	var out bytes.Buffer
	err := newCLIApp(&out).Run([]string{"focusforge-sampler", "token", "-u", "user-2", "--secret", "s3cret", "--scope", auth.ScopeActivityRead})
	require.NoError(t, err)

	claims, err := auth.ParseClaims(strings.TrimSpace(out.String()), auth.Config{Secret: "s3cret", Issuer: "focusforge"})
	require.NoError(t, err)
	require.False(t, claims.HasScope(auth.ScopeActivityWrite))
}

func TestTokenCommandRequiresSubject(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	var out bytes.Buffer
	err := newCLIApp(&out).Run([]string{"focusforge-sampler", "token"})
	require.Error(t, err)
}
