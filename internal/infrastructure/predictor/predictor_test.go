package predictor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"netqos/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRulePredictorStableHistory(t *testing.T) {
	p := NewRulePredictor(zaptest.NewLogger(t).Sugar())

	history := []float64{10, 10, 10, 10, 10, 10}
	pred, err := p.Predict(context.Background(), domain.ClassVideo, history)
	require.NoError(t, err)

	assert.InDelta(t, 10.0, pred.PredictedBandwidthMbps, 1e-9)
	assert.InDelta(t, 90.0, pred.Confidence, 1e-9, "zero variance means maximum confidence")
}

func TestRulePredictorBurstyHistoryLowConfidence(t *testing.T) {
	p := NewRulePredictor(zaptest.NewLogger(t).Sugar())

	stable, err := p.Predict(context.Background(), domain.ClassVideo, []float64{10, 10, 10, 10})
	require.NoError(t, err)
	bursty, err := p.Predict(context.Background(), domain.ClassVideo, []float64{1, 40, 2, 35})
	require.NoError(t, err)

	assert.Less(t, bursty.Confidence, stable.Confidence)
}

func TestRulePredictorTrendClamped(t *testing.T) {
	p := NewRulePredictor(zaptest.NewLogger(t).Sugar())

	// Recent tail far above the mean: growth capped at 2x.
	pred, err := p.Predict(context.Background(), domain.ClassVideo, []float64{1, 1, 1, 1, 1, 100, 100, 100})
	require.NoError(t, err)
	mean := (5.0 + 300.0) / 8.0
	assert.LessOrEqual(t, pred.PredictedBandwidthMbps, 2.0*mean+1e-9)
}

func TestRulePredictorShortHistoryUsesBase(t *testing.T) {
	p := NewRulePredictor(zaptest.NewLogger(t).Sugar())

	pred, err := p.Predict(context.Background(), domain.ClassVoice, []float64{5})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, pred.PredictedBandwidthMbps, 1e-9)
	assert.InDelta(t, 30.0, pred.Confidence, 1e-9)
}

func TestRulePredictorUnknownClass(t *testing.T) {
	p := NewRulePredictor(zaptest.NewLogger(t).Sugar())

	_, err := p.Predict(context.Background(), domain.ClassUnknown, nil)
	assert.ErrorIs(t, err, domain.ErrNoPrediction)
}

func TestHTTPPredictorSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, domain.ClassVideo, req.TrafficClass)

		json.NewEncoder(w).Encode(predictResponse{
			PredictedBandwidthMbps: 12.5,
			Confidence:             77,
		})
	}))
	defer srv.Close()

	p := NewHTTPPredictor(srv.URL, time.Second, 1, zaptest.NewLogger(t).Sugar())
	pred, err := p.Predict(context.Background(), domain.ClassVideo, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 12.5, pred.PredictedBandwidthMbps, 1e-9)
	assert.InDelta(t, 77.0, pred.Confidence, 1e-9)
}

func TestHTTPPredictorClampsConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(predictResponse{
			PredictedBandwidthMbps: -3,
			Confidence:             150,
		})
	}))
	defer srv.Close()

	p := NewHTTPPredictor(srv.URL, time.Second, 0, zaptest.NewLogger(t).Sugar())
	pred, err := p.Predict(context.Background(), domain.ClassVideo, nil)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, pred.Confidence, 1e-9)
	assert.Zero(t, pred.PredictedBandwidthMbps)
}

func TestHTTPPredictorFailureMapsToNoPrediction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPPredictor(srv.URL, 200*time.Millisecond, 1, zaptest.NewLogger(t).Sugar())
	_, err := p.Predict(context.Background(), domain.ClassVideo, nil)
	assert.ErrorIs(t, err, domain.ErrNoPrediction)
}

func TestHTTPPredictorRetriesThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(predictResponse{PredictedBandwidthMbps: 5, Confidence: 60})
	}))
	defer srv.Close()

	p := NewHTTPPredictor(srv.URL, time.Second, 2, zaptest.NewLogger(t).Sugar())
	pred, err := p.Predict(context.Background(), domain.ClassVideo, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.InDelta(t, 5.0, pred.PredictedBandwidthMbps, 1e-9)
}
