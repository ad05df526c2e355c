package biometric

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/pulse-dna/PulseDNA/internal/model"
	"github.com/pulse-dna/PulseDNA/pkg/logger"
)

// Similarity normalization divisors. A delta of the divisor or more
// contributes zero similarity for that feature.
const (
	meanHRDivisor = 50.0  // BPM
	rmssdDivisor  = 100.0 // ms
	pnn50Divisor  = 50.0  // percentage points
)

// Band powers below this (ms^2) are numerical noise from the FFT, not
// signal; treat them as zero when comparing.
const powerNoiseFloor = 1e-6

// Matcher scores live feature windows against every enrolled template.
// Failures on the authentication path are always soft: the caller gets
// a MatchResult with Authenticated=false and a details.error entry,
// never an error value.
type Matcher struct {
	registry *TemplateRegistry
	cfg      *Config
	log      *logger.Logger
}

// NewMatcher wires a matcher to its registry and configuration.
func NewMatcher(registry *TemplateRegistry, cfg *Config) *Matcher {
	return &Matcher{
		registry: registry,
		cfg:      cfg,
		log:      logger.GetLogger(),
	}
}

// Authenticate extracts features from the live window and returns the
// best accepted candidate, or a soft failure. Acceptance requires the
// highest similarity among all templates, the per-template threshold,
// and the global confidence floor. Ties on similarity are broken by
// earliest enrollment time; the order is explicitly arbitrary.
func (m *Matcher) Authenticate(samples []model.HeartRateSample) model.MatchResult {
	return m.authenticate(samples, m.cfg.MinAuthSamples)
}

// AuthenticateRelaxed scores a window against a caller-supplied minimum
// sample floor. Used by the streaming authenticator for the final
// attempt when presence is lost and the interaction is ending.
func (m *Matcher) AuthenticateRelaxed(samples []model.HeartRateSample, minSamples int) model.MatchResult {
	return m.authenticate(samples, minSamples)
}

func (m *Matcher) authenticate(samples []model.HeartRateSample, minSamples int) model.MatchResult {
	ts := attemptTime(samples)

	valid := FilterValid(samples)
	if len(valid) < minSamples {
		return softFailure(ts, "insufficient samples for authentication")
	}

	templates := m.registry.Snapshot()
	if len(templates) == 0 {
		return softFailure(ts, ErrNoEnrolledTemplates.Error())
	}

	features, err := Extract(samples)
	if err != nil {
		return softFailure(ts, err.Error())
	}

	// Snapshot is ordered by enrollment time, so keeping the first
	// strictly-best candidate implements the earliest-wins tie-break.
	var best *model.BiometricTemplate
	bestScore := -1.0
	for i := range templates {
		score := m.similarity(features, templates[i].Features)
		if score > bestScore {
			bestScore = score
			best = &templates[i]
		}
	}

	result := model.MatchResult{
		Confidence: bestScore,
		Timestamp:  ts,
	}

	accepted := best != nil && bestScore >= best.ConfidenceThreshold
	if accepted && bestScore >= m.cfg.GlobalConfidenceThreshold {
		userID := best.UserID
		result.UserID = &userID
		result.Authenticated = true
		m.log.Infof("Authenticated user %s with confidence %.3f", userID, bestScore)
	} else {
		m.log.Debugf("No accepted match; best similarity %.3f", bestScore)
	}
	return result
}

// similarity computes the weighted, bounded similarity between a live
// feature vector and a template's. Each term is individually clamped to
// [0,1] and the weighted sum is clamped again for safety.
func (m *Matcher) similarity(live, tmpl model.BiometricFeatures) float64 {
	w := m.cfg.FeatureWeights

	score := w.MeanHR * deltaSimilarity(live.MeanHR, tmpl.MeanHR, meanHRDivisor)
	score += w.RMSSD * deltaSimilarity(live.RMSSD, tmpl.RMSSD, rmssdDivisor)
	score += w.PNN50 * deltaSimilarity(live.PNN50, tmpl.PNN50, pnn50Divisor)
	score += w.Pattern * patternSimilarity(live.PatternSequence, tmpl.PatternSequence)
	score += w.Frequency * bandSimilarity(live.FrequencyBands, tmpl.FrequencyBands)

	return clamp01(score)
}

// deltaSimilarity maps an absolute difference onto [0,1]:
// max(0, 1 - |a-b|/divisor).
func deltaSimilarity(a, b, divisor float64) float64 {
	s := 1.0 - math.Abs(a-b)/divisor
	if s < 0 {
		return 0
	}
	return s
}

// patternSimilarity is the cosine similarity between the two pattern
// sequences truncated to the shorter length. Zero when either side has
// no pattern data.
func patternSimilarity(a, b []int) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	fa := make([]float64, n)
	fb := make([]float64, n)
	for i := 0; i < n; i++ {
		fa[i] = float64(a[i])
		fb[i] = float64(b[i])
	}

	na := floats.Norm(fa, 2)
	nb := floats.Norm(fb, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp01(floats.Dot(fa, fb) / (na * nb))
}

// bandSimilarity averages the per-band relative-difference similarity
// across the three HRV power bands.
func bandSimilarity(a, b model.FrequencyBands) float64 {
	sum := relativeSimilarity(a.VLFPower, b.VLFPower)
	sum += relativeSimilarity(a.LFPower, b.LFPower)
	sum += relativeSimilarity(a.HFPower, b.HFPower)
	return sum / 3.0
}

// relativeSimilarity is 1 - |a-b|/max(a,b), treating two zero powers as
// identical.
func relativeSimilarity(a, b float64) float64 {
	if a < powerNoiseFloor {
		a = 0
	}
	if b < powerNoiseFloor {
		b = 0
	}
	hi := math.Max(a, b)
	if hi == 0 {
		return 1
	}
	return clamp01(1.0 - math.Abs(a-b)/hi)
}

// softFailure builds the authenticated=false result carried by every
// authentication-path failure.
func softFailure(ts time.Time, reason string) model.MatchResult {
	return model.MatchResult{
		Confidence:    0,
		Authenticated: false,
		Timestamp:     ts,
		Details:       map[string]string{"error": reason},
	}
}

// attemptTime reports the wall-clock instant of the attempt from the
// sample timestamps so offline re-evaluation reproduces live decisions.
// Falls back to the current time for windows without timestamps.
func attemptTime(samples []model.HeartRateSample) time.Time {
	for i := len(samples) - 1; i >= 0; i-- {
		if !samples[i].Timestamp.IsZero() {
			return samples[i].Timestamp
		}
	}
	return time.Now().UTC()
}
