package biometric

import (
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/pulse-dna/PulseDNA/internal/model"
)

// Acceptance-threshold bounds for enrolled templates. Noisier
// enrollment data maps to a higher required threshold so a poor
// enrollment never produces an over-permissive template.
const (
	minTemplateThreshold = 0.6
	maxTemplateThreshold = 0.9
)

// BuildTemplate runs feature extraction over an enrollment window and
// produces the template for user. Fails with
// ErrInsufficientEnrollmentSamples below cfg.MinEnrollmentSamples.
// The caller registers the result; building alone has no side effects.
func BuildTemplate(userID string, samples []model.HeartRateSample, cfg *Config) (*model.BiometricTemplate, error) {
	if len(samples) < cfg.MinEnrollmentSamples {
		return nil, fmt.Errorf("%w: got %d samples, need %d",
			ErrInsufficientEnrollmentSamples, len(samples), cfg.MinEnrollmentSamples)
	}

	features, err := Extract(samples)
	if err != nil {
		return nil, fmt.Errorf("extracting enrollment features: %w", err)
	}

	return &model.BiometricTemplate{
		UserID:              userID,
		Features:            features,
		Signature:           Signature(features),
		ConfidenceThreshold: confidenceThreshold(samples, features),
		CreatedAt:           time.Now().UTC(),
		SampleCount:         len(samples),
	}, nil
}

// Signature derives a short deterministic fingerprint from a normalized
// subset of the features. It is a human-checkable identifier, not a
// security secret: two enrollments with materially different physiology
// never collide, but nothing stops a forged record from carrying one.
func Signature(f model.BiometricFeatures) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%d|%d|%x",
		int(math.Round(f.MeanHR)),
		int(math.Round(f.RMSSD)),
		int(math.Round(f.PNN50)),
		patternHash(f.PatternSequence))
	return fmt.Sprintf("%016x", h.Sum64())
}

// patternHash folds the pattern sequence into a single 64-bit value.
func patternHash(seq []int) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 2)
	for _, v := range seq {
		buf[0] = byte(v)
		buf[1] = byte(v >> 8)
		h.Write(buf)
	}
	return h.Sum64()
}

// confidenceThreshold maps enrollment data quality into the template
// acceptance bound. Quality combines the sensor-reported confidence
// with heart-rate stability (1 - std/mean); quality 1 maps to the
// minimum threshold and quality 0 to the maximum.
func confidenceThreshold(samples []model.HeartRateSample, f model.BiometricFeatures) float64 {
	var sumConf float64
	for _, s := range samples {
		sumConf += s.Confidence
	}
	avgConf := sumConf / float64(len(samples))

	stability := 0.0
	if f.MeanHR > 0 {
		stability = 1.0 - f.StdHR/f.MeanHR
	}
	quality := clamp01((avgConf + clamp01(stability)) / 2)

	return maxTemplateThreshold - quality*(maxTemplateThreshold-minTemplateThreshold)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
