package model

import "time"

// HeartRateSample is one measurement produced by the contactless sensor.
// Samples are immutable once created; the engine only ever copies them.
type HeartRateSample struct {
	Timestamp     time.Time `json:"timestamp"`
	HeartRate     float64   `json:"heart_rate"`
	Confidence    float64   `json:"confidence"`
	BreathingRate float64   `json:"breathing_rate,omitempty"`
	Distance      float64   `json:"distance,omitempty"`
}

// FrequencyBands holds spectral power integrated over the standard HRV
// frequency bands of the RR-interval series.
type FrequencyBands struct {
	VLFPower  float64 `json:"vlf_power"` // 0.0033-0.04 Hz
	LFPower   float64 `json:"lf_power"`  // 0.04-0.15 Hz
	HFPower   float64 `json:"hf_power"`  // 0.15-0.4 Hz
	LFHFRatio float64 `json:"lf_hf_ratio"`
}

// GeometricFeatures holds histogram-derived HRV measures.
type GeometricFeatures struct {
	TriangularIndex float64 `json:"triangular_index"`
	TINN            float64 `json:"tinn"`
}

// BiometricFeatures is the fixed-shape feature vector extracted from a
// window of heart-rate samples.
type BiometricFeatures struct {
	MeanHR            float64           `json:"mean_hr"`
	StdHR             float64           `json:"std_hr"`
	RMSSD             float64           `json:"rmssd"`
	PNN50             float64           `json:"pnn50"`
	PatternSequence   []int             `json:"pattern_sequence"`
	FrequencyBands    FrequencyBands    `json:"frequency_bands"`
	GeometricFeatures GeometricFeatures `json:"geometric_features"`
}

// BiometricTemplate is the per-identity record built at enrollment.
// Never mutated in place; re-enrollment replaces it. The JSON shape
// doubles as the export/import record (created_at serializes as
// ISO-8601 via time.Time).
type BiometricTemplate struct {
	UserID              string            `json:"user_id"`
	Features            BiometricFeatures `json:"features"`
	Signature           string            `json:"signature"`
	ConfidenceThreshold float64           `json:"confidence_threshold"`
	CreatedAt           time.Time         `json:"created_at"`
	SampleCount         int               `json:"sample_count"`
}

// MatchResult is the ephemeral output of one authentication attempt.
// UserID is nil when no match was accepted. A reported confidence alone
// is never acceptance; callers must check Authenticated.
type MatchResult struct {
	UserID        *string           `json:"user_id"`
	Confidence    float64           `json:"confidence"`
	Authenticated bool              `json:"authenticated"`
	Timestamp     time.Time         `json:"timestamp"`
	Details       map[string]string `json:"details,omitempty"`
}
