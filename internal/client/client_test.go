package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/focusforge/internal/api"
	"example.com/focusforge/internal/domain"
)

func TestClassifySendsBearerAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/classify", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req api.ClassifyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://go.dev", req.URL)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.ClassifyResponse{Label: "productive", Score: 0.7, ActivityType: domain.ActivityCoding, DataType: "text"})
	}))
	defer server.Close()

	out, err := New(server.URL+"/", time.Second).Classify(context.Background(), "tok", api.ClassifyRequest{Text: "generics", URL: "https://go.dev"})
	require.NoError(t, err)
	require.Equal(t, "productive", out.Label)
	require.Equal(t, domain.ActivityCoding, out.ActivityType)
}

func TestStatusMapping(t *testing.T) {
	cases := map[int]error{
		http.StatusUnauthorized:        domain.ErrAuthMissing,
		http.StatusBadRequest:          domain.ErrInvalidInput,
		http.StatusUnprocessableEntity: domain.ErrNoValidSignal,
		http.StatusBadGateway:          domain.ErrTransientUpstream,
		http.StatusTooManyRequests:     domain.ErrTransientUpstream,
	}
	for status, want := range cases {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"type":"x","detail":"nope"}`))
			}))
			defer server.Close()

			seconds, productive := int64(60), true
			_, err := New(server.URL, time.Second).UpdateTime(context.Background(), "tok", api.UpdateTimeRequest{Seconds: &seconds, IsProductive: &productive})
			require.ErrorIs(t, err, want)
			require.Contains(t, err.Error(), "nope")
		})
	}
}

func TestMissingTokenShortCircuits(t *testing.T) {
	_, err := New("http://127.0.0.1:1", time.Second).Classify(context.Background(), " ", api.ClassifyRequest{Text: "x"})
	require.ErrorIs(t, err, domain.ErrAuthMissing)
}

func TestUnreachableServerIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(url, time.Second).Classify(context.Background(), "tok", api.ClassifyRequest{Text: "x"})
	require.True(t, domain.IsTransient(err))
}
