package biometric

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pulse-dna/PulseDNA/internal/model"
)

// ------------------------ TUNABLES (change for experiments) ------------------------
const (
	// Plausible physiological heart-rate range; readings outside it are
	// dropped before any statistic is computed.
	MinValidHR = 30.0
	MaxValidHR = 220.0

	// Minimum valid samples required for extraction.
	minExtractionSamples = 10

	// Length of the sliding window used to build the pattern sequence.
	patternWindow = 5

	// Successive RR-interval differences above this (ms) count toward pNN50.
	pnn50ThresholdMs = 50.0

	// RR histogram bins for the geometric features.
	histogramBins = 50

	// Minimum RR intervals before the secondary feature families are
	// computed; below these the fields are zeroed rather than failing
	// the whole extraction.
	minSpectralIntervals  = 10
	minGeometricIntervals = 20
)

// FilterValid returns the samples whose heart rate falls inside the
// plausible physiological range. NaN and non-positive readings are
// rejected by the same bounds check.
func FilterValid(samples []model.HeartRateSample) []model.HeartRateSample {
	valid := make([]model.HeartRateSample, 0, len(samples))
	for _, s := range samples {
		if s.HeartRate >= MinValidHR && s.HeartRate <= MaxValidHR {
			valid = append(valid, s)
		}
	}
	return valid
}

// Extract converts a window of samples into the fixed-shape feature
// vector. Pure function: identical input always yields identical
// output. Returns ErrInsufficientData when fewer than the minimum
// number of valid samples remain after range filtering.
func Extract(samples []model.HeartRateSample) (model.BiometricFeatures, error) {
	valid := FilterValid(samples)
	if len(valid) < minExtractionSamples {
		return model.BiometricFeatures{}, ErrInsufficientData
	}

	hr := make([]float64, len(valid))
	for i, s := range valid {
		hr[i] = s.HeartRate
	}

	rr := rrIntervals(hr)
	rmssd, pnn50 := successiveDifferences(rr)

	return model.BiometricFeatures{
		MeanHR:            stat.Mean(hr, nil),
		StdHR:             stat.StdDev(hr, nil),
		RMSSD:             rmssd,
		PNN50:             pnn50,
		PatternSequence:   patternSequence(hr),
		FrequencyBands:    frequencyBands(rr),
		GeometricFeatures: geometricFeatures(rr),
	}, nil
}

// rrIntervals converts instantaneous BPM values to inter-beat intervals
// in milliseconds: rr = 60000 / hr.
func rrIntervals(hr []float64) []float64 {
	rr := make([]float64, len(hr))
	for i, v := range hr {
		rr[i] = 60000.0 / v
	}
	return rr
}

// successiveDifferences computes RMSSD and pNN50 over consecutive
// RR-interval pairs.
func successiveDifferences(rr []float64) (rmssd, pnn50 float64) {
	if len(rr) < 2 {
		return 0, 0
	}
	var sumSq float64
	var above int
	for i := 1; i < len(rr); i++ {
		d := rr[i] - rr[i-1]
		sumSq += d * d
		if math.Abs(d) > pnn50ThresholdMs {
			above++
		}
	}
	n := float64(len(rr) - 1)
	rmssd = math.Sqrt(sumSq / n)
	pnn50 = 100.0 * float64(above) / n
	return rmssd, pnn50
}

// patternSequence captures short-term temporal shape independent of
// absolute level. A window of patternWindow slides over the raw HR
// values; every value is normalized relative to the window's first
// value and shifted by +100 so the sequence stays in small positive
// integers.
func patternSequence(hr []float64) []int {
	if len(hr) < patternWindow {
		return nil
	}
	seq := make([]int, 0, (len(hr)-patternWindow+1)*patternWindow)
	for start := 0; start+patternWindow <= len(hr); start++ {
		first := hr[start]
		for i := start; i < start+patternWindow; i++ {
			seq = append(seq, int(math.Round(hr[i]-first+100)))
		}
	}
	return seq
}

// geometricFeatures histograms the RR intervals into histogramBins bins
// and derives the triangular index (n / tallest bin) and a TINN-like
// range measure. Zeroed below minGeometricIntervals intervals.
func geometricFeatures(rr []float64) model.GeometricFeatures {
	if len(rr) < minGeometricIntervals {
		return model.GeometricFeatures{}
	}

	lo := floats.Min(rr)
	hi := floats.Max(rr)
	if hi == lo {
		// Degenerate window: every interval identical.
		return model.GeometricFeatures{TriangularIndex: 1, TINN: 0}
	}

	width := (hi - lo) / float64(histogramBins)
	counts := make([]int, histogramBins)
	for _, v := range rr {
		idx := int((v - lo) / width)
		if idx >= histogramBins {
			idx = histogramBins - 1
		}
		counts[idx]++
	}

	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}

	return model.GeometricFeatures{
		TriangularIndex: float64(len(rr)) / float64(maxCount),
		TINN:            hi - lo,
	}
}
