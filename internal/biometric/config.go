package biometric

import (
	"fmt"
	"math"
	"time"
)

// FeatureWeights controls how much each feature family contributes to
// the overall similarity score. The defaults are empirical constants
// carried over from field tuning; treat them as tunable configuration,
// not validated domain truth.
type FeatureWeights struct {
	MeanHR    float64 `json:"mean_hr"`
	RMSSD     float64 `json:"rmssd"`
	PNN50     float64 `json:"pnn50"`
	Pattern   float64 `json:"pattern"`
	Frequency float64 `json:"frequency"`
}

// Config enumerates every threshold the engine uses. One instance is
// shared by the template builder, the matcher and the streaming
// authenticator so there is a single place to tune behaviour.
type Config struct {
	// MinEnrollmentSamples is the minimum window length accepted for
	// enrollment (~30s at 2 Hz).
	MinEnrollmentSamples int `json:"min_enrollment_samples"`

	// MinAuthSamples is the minimum number of valid samples required
	// before an authentication attempt is scored (~10s at 2 Hz).
	MinAuthSamples int `json:"min_auth_samples"`

	// StabilityStdevThreshold is the maximum standard deviation (BPM)
	// of the trailing sample window before the stream is considered
	// stable enough to evaluate.
	StabilityStdevThreshold float64 `json:"stability_stdev_threshold"`

	// CooldownSeconds suppresses repeat evaluations after an accepted
	// match for one continuous presence event.
	CooldownSeconds int `json:"cooldown_seconds"`

	// GlobalConfidenceThreshold is the floor every accepted match must
	// clear in addition to the per-template threshold.
	GlobalConfidenceThreshold float64 `json:"global_confidence_threshold"`

	FeatureWeights FeatureWeights `json:"feature_weights"`
}

// DefaultConfig returns the recommended engine configuration.
func DefaultConfig() *Config {
	return &Config{
		MinEnrollmentSamples:      60,
		MinAuthSamples:            20,
		StabilityStdevThreshold:   5.0,
		CooldownSeconds:           30,
		GlobalConfidenceThreshold: 0.75,
		FeatureWeights: FeatureWeights{
			MeanHR:    0.20,
			RMSSD:     0.25,
			PNN50:     0.15,
			Pattern:   0.25,
			Frequency: 0.15,
		},
	}
}

// Cooldown returns the configured cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.MinEnrollmentSamples < minExtractionSamples {
		return fmt.Errorf("min_enrollment_samples must be at least %d, got %d", minExtractionSamples, c.MinEnrollmentSamples)
	}
	if c.MinAuthSamples < minExtractionSamples {
		return fmt.Errorf("min_auth_samples must be at least %d, got %d", minExtractionSamples, c.MinAuthSamples)
	}
	if c.StabilityStdevThreshold <= 0 {
		return fmt.Errorf("stability_stdev_threshold must be positive, got %f", c.StabilityStdevThreshold)
	}
	if c.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown_seconds must be non-negative, got %d", c.CooldownSeconds)
	}
	if c.GlobalConfidenceThreshold < 0 || c.GlobalConfidenceThreshold > 1 {
		return fmt.Errorf("global_confidence_threshold must be between 0 and 1, got %f", c.GlobalConfidenceThreshold)
	}
	w := c.FeatureWeights
	sum := w.MeanHR + w.RMSSD + w.PNN50 + w.Pattern + w.Frequency
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("feature weights must sum to 1.0, got %f", sum)
	}
	return nil
}
