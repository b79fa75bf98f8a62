package detect

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Default parameter values.
const (
	DefaultSimilarityThreshold = 0.85
	DefaultDurationToleranceMs = 5000
	DefaultSizeToleranceRatio  = 0.10
)

// ErrInvalidParameters is returned when a parameter bag cannot be used.
var ErrInvalidParameters = errors.New("invalid parameters")

// Parameters are the tunable thresholds for a detection run.
type Parameters struct {
	SimilarityThreshold float64 `json:"similarity_threshold"`
	DurationToleranceMs int64   `json:"duration_tolerance_ms"`
	SizeToleranceRatio  float64 `json:"size_tolerance_ratio"`
}

// DefaultParameters returns the parameters used when none are given.
func DefaultParameters() Parameters {
	return Parameters{
		SimilarityThreshold: DefaultSimilarityThreshold,
		DurationToleranceMs: DefaultDurationToleranceMs,
		SizeToleranceRatio:  DefaultSizeToleranceRatio,
	}
}

// ParseParameters decodes a JSON parameter bag on top of base.
// Keys it does not know are ignored and missing keys keep the base value.
// An empty or null bag returns base unchanged.
func ParseParameters(data []byte, base Parameters) (Parameters, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return base, base.Validate()
	}

	var bag struct {
		SimilarityThreshold *float64 `json:"similarity_threshold"`
		DurationToleranceMs *float64 `json:"duration_tolerance_ms"`
		SizeToleranceRatio  *float64 `json:"size_tolerance_ratio"`
	}
	if err := json.Unmarshal(data, &bag); err != nil {
		return base, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}

	p := base
	if bag.SimilarityThreshold != nil {
		p.SimilarityThreshold = *bag.SimilarityThreshold
	}
	if bag.DurationToleranceMs != nil {
		// Durations are whole milliseconds, so flooring a fractional
		// tolerance leaves the set of matching pairs unchanged.
		ms := math.Floor(*bag.DurationToleranceMs)
		if ms >= math.MaxInt64 {
			return base, fmt.Errorf("%w: duration_tolerance_ms is too large, got %v", ErrInvalidParameters, *bag.DurationToleranceMs)
		}
		p.DurationToleranceMs = int64(ms)
	}
	if bag.SizeToleranceRatio != nil {
		p.SizeToleranceRatio = *bag.SizeToleranceRatio
	}

	if err := p.Validate(); err != nil {
		return base, err
	}
	return p, nil
}

// Validate checks that every parameter is within its usable range.
func (p Parameters) Validate() error {
	if p.SimilarityThreshold < 0 || p.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be between 0.0 and 1.0, got %.2f", ErrInvalidParameters, p.SimilarityThreshold)
	}
	if p.DurationToleranceMs < 0 {
		return fmt.Errorf("%w: duration_tolerance_ms cannot be negative, got %d", ErrInvalidParameters, p.DurationToleranceMs)
	}
	if p.SizeToleranceRatio < 0 || p.SizeToleranceRatio > 1 {
		return fmt.Errorf("%w: size_tolerance_ratio must be between 0.0 and 1.0, got %.2f", ErrInvalidParameters, p.SizeToleranceRatio)
	}
	return nil
}
