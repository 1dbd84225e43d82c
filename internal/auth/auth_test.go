package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "focusforge-test"}

func TestIssueAndParse(t *testing.T) {
	token, err := Issue(testConfig, "user-1", []string{ScopeActivityRead}, time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := ParseClaims(token, testConfig)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.True(t, claims.HasScope(ScopeActivityRead))
	require.False(t, claims.HasScope(ScopeActivityWrite))
	require.True(t, claims.HasAnyScope(ScopeActivityWrite, ScopeActivityRead))
}

func TestParseRejects(t *testing.T) {
	expired, err := Issue(testConfig, "user-1", nil, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	otherIssuer, err := Issue(Config{Secret: testConfig.Secret, Issuer: "someone-else"}, "user-1", nil, time.Hour, time.Now())
	require.NoError(t, err)

	wrongSecret, err := Issue(Config{Secret: "nope", Issuer: testConfig.Issuer}, "user-1", nil, time.Hour, time.Now())
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "iss": testConfig.Issuer}).
		SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":   expired,
		"issuer":    otherIssuer,
		"secret":    wrongSecret,
		"no expiry": noExpiry,
		"garbage":   "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseClaims(token, testConfig)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = ParseClaims("  ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestScopesAsSpaceSeparatedString(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    "user-2",
		"iss":    testConfig.Issuer,
		"exp":    jwt.NewNumericDate(time.Now().Add(time.Hour)),
		"scopes": "activity:read  activity:write",
	}).SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)

	claims, err := ParseClaims(token, testConfig)
	require.NoError(t, err)
	require.True(t, claims.HasScope(ScopeActivityWrite))
	require.True(t, claims.HasScope(ScopeActivityRead))
}

func TestMiddleware(t *testing.T) {
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewMiddleware(testConfig, func(r *http.Request) bool { return r.URL.Path == "/healthz" }).Wrap(next)

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/time/today", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "unauthorized", body["type"])
		require.Equal(t, ErrMissingToken.Error(), body["detail"])
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/time/today", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("skipped path", func(t *testing.T) {
		seen = nil
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Nil(t, seen)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := Issue(testConfig, "user-3", []string{ScopeActivityWrite}, time.Hour, time.Now())
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/v1/time/today", nil)
		req.Header.Set("Authorization", "bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		require.Equal(t, "user-3", seen.Subject)
	})
}
