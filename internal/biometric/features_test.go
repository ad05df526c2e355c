package biometric

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/pulse-dna/PulseDNA/internal/model"
)

var sampleEpoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

// sineSamples builds a deterministic window: a sinusoid of the given
// amplitude and period (in samples) around base, sampled every 500ms.
func sineSamples(n int, base, amp float64, period int, confidence float64) []model.HeartRateSample {
	samples := make([]model.HeartRateSample, n)
	for i := 0; i < n; i++ {
		samples[i] = model.HeartRateSample{
			Timestamp:  sampleEpoch.Add(time.Duration(i) * 500 * time.Millisecond),
			HeartRate:  base + amp*math.Sin(2*math.Pi*float64(i)/float64(period)),
			Confidence: confidence,
		}
	}
	return samples
}

// flatSamples builds a window of constant heart rate.
func flatSamples(n int, hr, confidence float64) []model.HeartRateSample {
	return sineSamples(n, hr, 0, 4, confidence)
}

// alternatingSamples builds a window that flips between two rates.
func alternatingSamples(n int, a, b, confidence float64) []model.HeartRateSample {
	samples := make([]model.HeartRateSample, n)
	for i := 0; i < n; i++ {
		hr := a
		if i%2 == 1 {
			hr = b
		}
		samples[i] = model.HeartRateSample{
			Timestamp:  sampleEpoch.Add(time.Duration(i) * 500 * time.Millisecond),
			HeartRate:  hr,
			Confidence: confidence,
		}
	}
	return samples
}

// enrollmentWindow is the canonical clean enrollment signal used across
// the package tests: 60 samples centered at 75 BPM within +/-3.
func enrollmentWindow() []model.HeartRateSample {
	return sineSamples(60, 75, 3, 4, 0.9)
}

// liveWindow is a matching live signal: 20 samples in the 74-76 range.
func liveWindow() []model.HeartRateSample {
	return sineSamples(20, 75, 1, 4, 0.9)
}

// TestFilterValidDropsOutOfRange verifies the physiological range gate.
func TestFilterValidDropsOutOfRange(t *testing.T) {
	samples := []model.HeartRateSample{
		{HeartRate: 75},
		{HeartRate: 25},
		{HeartRate: 250},
		{HeartRate: math.NaN()},
		{HeartRate: -1},
		{HeartRate: MinValidHR},
		{HeartRate: MaxValidHR},
	}

	valid := FilterValid(samples)
	if len(valid) != 3 {
		t.Fatalf("Expected 3 valid samples, got %d", len(valid))
	}
	for _, s := range valid {
		if s.HeartRate < MinValidHR || s.HeartRate > MaxValidHR {
			t.Errorf("Out-of-range sample survived filtering: %f", s.HeartRate)
		}
	}
}

// TestExtractRequiresMinimumValidSamples verifies that invalid samples
// do not count toward the extraction minimum.
func TestExtractRequiresMinimumValidSamples(t *testing.T) {
	samples := flatSamples(9, 72, 0.9)
	for i := 0; i < 5; i++ {
		samples = append(samples, model.HeartRateSample{HeartRate: 0})
	}

	_, err := Extract(samples)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("Expected ErrInsufficientData, got %v", err)
	}

	samples = append(samples, flatSamples(1, 72, 0.9)...)
	if _, err := Extract(samples); err != nil {
		t.Fatalf("Expected extraction to succeed with 10 valid samples, got %v", err)
	}
}

// TestExtractDeterministic verifies that identical input yields an
// identical feature vector.
func TestExtractDeterministic(t *testing.T) {
	window := enrollmentWindow()

	f1, err := Extract(window)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	f2, err := Extract(window)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if !reflect.DeepEqual(f1, f2) {
		t.Error("Expected identical features for identical input")
	}
}

// TestSuccessiveDifferenceFeatures checks RMSSD and pNN50 against hand
// computed values: alternating 60/75 BPM gives RR intervals of exactly
// 1000ms and 800ms, so every successive difference is 200ms.
func TestSuccessiveDifferenceFeatures(t *testing.T) {
	features, err := Extract(alternatingSamples(10, 60, 75, 0.9))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if math.Abs(features.MeanHR-67.5) > 1e-9 {
		t.Errorf("Expected mean HR 67.5, got %f", features.MeanHR)
	}
	if math.Abs(features.RMSSD-200) > 1e-9 {
		t.Errorf("Expected RMSSD 200, got %f", features.RMSSD)
	}
	if math.Abs(features.PNN50-100) > 1e-9 {
		t.Errorf("Expected pNN50 100, got %f", features.PNN50)
	}
}

// TestPatternSequence verifies the sliding-window shape encoding on a
// linear ramp: every window normalizes to the same ascending run.
func TestPatternSequence(t *testing.T) {
	samples := make([]model.HeartRateSample, 10)
	for i := range samples {
		samples[i] = model.HeartRateSample{HeartRate: 70 + float64(i), Confidence: 0.9}
	}

	features, err := Extract(samples)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	wantLen := (10 - patternWindow + 1) * patternWindow
	if len(features.PatternSequence) != wantLen {
		t.Fatalf("Expected pattern sequence of length %d, got %d", wantLen, len(features.PatternSequence))
	}
	for i, v := range features.PatternSequence {
		want := 100 + i%patternWindow
		if v != want {
			t.Fatalf("Pattern value %d: expected %d, got %d", i, want, v)
		}
	}
}

// TestGeometricFeaturesZeroedBelowMinimum verifies that short windows
// zero the geometric fields instead of failing extraction.
func TestGeometricFeaturesZeroedBelowMinimum(t *testing.T) {
	features, err := Extract(flatSamples(15, 72, 0.9))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if features.GeometricFeatures.TriangularIndex != 0 || features.GeometricFeatures.TINN != 0 {
		t.Errorf("Expected zeroed geometric features, got %+v", features.GeometricFeatures)
	}
}

// TestGeometricFeaturesDegenerate covers the constant-rate window where
// every RR interval lands in one histogram bin.
func TestGeometricFeaturesDegenerate(t *testing.T) {
	features, err := Extract(flatSamples(20, 72, 0.9))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if features.GeometricFeatures.TriangularIndex != 1 {
		t.Errorf("Expected triangular index 1, got %f", features.GeometricFeatures.TriangularIndex)
	}
	if features.GeometricFeatures.TINN != 0 {
		t.Errorf("Expected TINN 0, got %f", features.GeometricFeatures.TINN)
	}
}

// TestGeometricFeaturesBimodal checks the triangular index and TINN on
// an alternating window with two exact RR values 200ms apart.
func TestGeometricFeaturesBimodal(t *testing.T) {
	features, err := Extract(alternatingSamples(20, 60, 75, 0.9))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	geo := features.GeometricFeatures
	if math.Abs(geo.TINN-200) > 1e-9 {
		t.Errorf("Expected TINN 200, got %f", geo.TINN)
	}
	// 20 intervals split evenly across two bins of 10.
	if math.Abs(geo.TriangularIndex-2) > 1e-9 {
		t.Errorf("Expected triangular index 2, got %f", geo.TriangularIndex)
	}
}

// TestFrequencyBandsShortSeries verifies the spectral floor.
func TestFrequencyBandsShortSeries(t *testing.T) {
	bands := frequencyBands(make([]float64, minSpectralIntervals-1))
	if bands != (model.FrequencyBands{}) {
		t.Errorf("Expected zeroed bands for short series, got %+v", bands)
	}
}

// TestFrequencyBandsSinusoid verifies that a periodic HR oscillation at
// a known rate concentrates power in the HF band.
func TestFrequencyBandsSinusoid(t *testing.T) {
	// Period of 4 samples at ~75 BPM puts the oscillation around 0.31 Hz.
	features, err := Extract(enrollmentWindow())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	bands := features.FrequencyBands
	if bands.HFPower <= 1 {
		t.Errorf("Expected dominant HF power, got %f", bands.HFPower)
	}
	if bands.LFPower >= bands.HFPower {
		t.Errorf("Expected HF power above LF power, got LF=%f HF=%f", bands.LFPower, bands.HFPower)
	}
	if bands.LFHFRatio >= 0.1 {
		t.Errorf("Expected near-zero LF/HF ratio, got %f", bands.LFHFRatio)
	}
}
