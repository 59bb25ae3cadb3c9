package domain

import "errors"

var (
	ErrInvalidRule         = errors.New("invalid qos rule")
	ErrRuleNotFound        = errors.New("qos rule not found")
	ErrAlertNotFound       = errors.New("alert not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNoPrediction        = errors.New("no prediction available")
)
