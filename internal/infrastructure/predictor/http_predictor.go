package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"netqos/internal/core/domain"
	"netqos/pkg/retry"

	"go.uber.org/zap"
)

// HTTPPredictor calls an external prediction service. Any failure collapses
// into domain.ErrNoPrediction so the engine falls through to observed
// bandwidth without inspecting transport details.
type HTTPPredictor struct {
	endpoint string
	client   *http.Client
	retryCfg retry.Config
	logger   *zap.SugaredLogger
}

type predictRequest struct {
	TrafficClass domain.TrafficClass `json:"trafficClass"`
	History      []float64           `json:"history"`
}

type predictResponse struct {
	PredictedBandwidthMbps float64 `json:"predictedBandwidthMbps"`
	Confidence             float64 `json:"confidence"`
}

func NewHTTPPredictor(endpoint string, requestTimeout time.Duration, maxRetries int, logger *zap.SugaredLogger) *HTTPPredictor {
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = maxRetries
	retryCfg.InitialDelay = 50 * time.Millisecond
	retryCfg.MaxDelay = requestTimeout

	return &HTTPPredictor{
		endpoint: endpoint,
		client:   &http.Client{Timeout: requestTimeout},
		retryCfg: retryCfg,
		logger:   logger,
	}
}

func (p *HTTPPredictor) Predict(ctx context.Context, class domain.TrafficClass, history []float64) (domain.Prediction, error) {
	body, err := json.Marshal(predictRequest{TrafficClass: class, History: history})
	if err != nil {
		return domain.Prediction{}, domain.ErrNoPrediction
	}

	resp, err := retry.RetryWithResult(ctx, p.retryCfg, func() (predictResponse, error) {
		return p.predictOnce(ctx, body)
	})
	if err != nil {
		p.logger.Debugw("prediction request failed", "class", class, "error", err)
		return domain.Prediction{}, domain.ErrNoPrediction
	}

	confidence := resp.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}
	predicted := resp.PredictedBandwidthMbps
	if predicted < 0 {
		predicted = 0
	}

	return domain.Prediction{
		TrafficClass:           class,
		PredictedBandwidthMbps: predicted,
		Confidence:             confidence,
		ProducedAt:             time.Now(),
	}, nil
}

func (p *HTTPPredictor) predictOnce(ctx context.Context, body []byte) (predictResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return predictResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return predictResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return predictResponse{}, fmt.Errorf("predictor returned status %d", resp.StatusCode)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return predictResponse{}, err
	}
	return out, nil
}
