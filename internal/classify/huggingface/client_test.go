package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/focusforge/internal/domain"
)

func TestClassifyTextSendsCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/"+DefaultModel, r.URL.Path)
		require.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))

		var req zeroShotRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "reading docs", req.Inputs)
		require.Equal(t, []string{"productive", "unproductive"}, req.Parameters.CandidateLabels)

		_ = json.NewEncoder(w).Encode(zeroShotResponse{Labels: []string{"productive", "unproductive"}, Scores: []float64{0.82, 0.18}})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Token: "hf-token"})
	verdict, err := client.ClassifyText(context.Background(), "reading docs")
	require.NoError(t, err)
	require.Equal(t, domain.LabelProductive, verdict.Label)
	require.InDelta(t, 0.82, verdict.Score, 1e-9)
}

func TestClassifyActivityCanonicalisesLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(zeroShotResponse{Labels: []string{"social media", "News"}, Scores: []float64{0.6, 0.4}})
	}))
	defer srv.Close()

	verdict, err := NewClient(Config{BaseURL: srv.URL}).ClassifyActivity(context.Background(), "feed")
	require.NoError(t, err)
	require.Equal(t, domain.ActivitySocialMedia, verdict.ActivityType)
}

func TestServerErrorsAreTransient(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model loading"}`, int(status.Load()))
	}))
	defer srv.Close()
	client := NewClient(Config{BaseURL: srv.URL})

	_, err := client.ClassifyText(context.Background(), "x")
	require.True(t, domain.IsTransient(err))

	status.Store(http.StatusBadRequest)
	_, err = client.ClassifyText(context.Background(), "x")
	require.Error(t, err)
	require.False(t, domain.IsTransient(err))
}

func TestMalformedResponseIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"labels":[],"scores":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).ClassifyText(context.Background(), "x")
	require.Error(t, err)
	require.False(t, errors.Is(err, domain.ErrTransientUpstream))
}
