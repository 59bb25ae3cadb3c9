package predictor

import (
	"context"
	"math"
	"time"

	"netqos/internal/core/domain"

	"go.uber.org/zap"
)

// Base estimate per class in Mbps, used when history gives no signal.
var baseBandwidth = map[domain.TrafficClass]float64{
	domain.ClassVideo:      5.0,
	domain.ClassVoice:      0.1,
	domain.ClassFile:       2.0,
	domain.ClassBackground: 0.5,
}

// RulePredictor estimates near-term bandwidth from recent history with a
// simple trend model. It backs the engine when no external predictor is
// configured; its confidence drops as history variance grows so noisy
// classes fall back to observed bandwidth.
type RulePredictor struct {
	logger *zap.SugaredLogger
}

func NewRulePredictor(logger *zap.SugaredLogger) *RulePredictor {
	return &RulePredictor{logger: logger}
}

func (p *RulePredictor) Predict(_ context.Context, class domain.TrafficClass, history []float64) (domain.Prediction, error) {
	base, ok := baseBandwidth[class]
	if !ok {
		return domain.Prediction{}, domain.ErrNoPrediction
	}

	predicted := base
	confidence := 30.0 // bare base estimate, low trust

	if len(history) >= 3 {
		mean := meanOf(history)
		if mean > 0 {
			predicted = mean * trendFactor(history)
		}

		// Coefficient of variation maps onto confidence: steady history
		// is trustworthy, bursty history is not.
		cv := 1.0
		if mean > 0 {
			cv = math.Sqrt(varianceOf(history, mean)) / mean
		}
		confidence = 90.0 - 60.0*cv
		if confidence < 10 {
			confidence = 10
		}
		if confidence > 90 {
			confidence = 90
		}
	}

	return domain.Prediction{
		TrafficClass:           class,
		PredictedBandwidthMbps: predicted,
		Confidence:             confidence,
		ProducedAt:             time.Now(),
	}, nil
}

// trendFactor compares the recent third of history against the overall mean,
// clamped to [0.5, 2.0] so one spike cannot double the forecast unbounded.
func trendFactor(history []float64) float64 {
	tail := history[len(history)-len(history)/3:]
	overall := meanOf(history)
	if overall <= 0 {
		return 1.0
	}
	factor := meanOf(tail) / overall
	if factor > 2.0 {
		factor = 2.0
	}
	if factor < 0.5 {
		factor = 0.5
	}
	return factor
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func varianceOf(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}
