package biometric

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"

	"github.com/pulse-dna/PulseDNA/internal/model"
)

// HRV frequency band edges in Hz.
const (
	vlfLow  = 0.0033
	vlfHigh = 0.04
	lfLow   = 0.04
	lfHigh  = 0.15
	hfLow   = 0.15
	hfHigh  = 0.4
)

// frequencyBands computes a periodogram-style power spectral estimate
// over the RR-interval series and integrates power in the three
// standard HRV bands. The series is treated as evenly sampled at the
// rate implied by the mean RR interval, which is the usual shortcut
// for short windows of instantaneous-BPM data.
//
// Bands are a secondary signal: below minSpectralIntervals intervals
// the result is zeroed rather than failing the extraction.
func frequencyBands(rr []float64) model.FrequencyBands {
	if len(rr) < minSpectralIntervals {
		return model.FrequencyBands{}
	}

	meanRR := stat.Mean(rr, nil)
	if meanRR <= 0 {
		return model.FrequencyBands{}
	}
	// Effective sampling frequency in Hz (RR intervals are in ms).
	fs := 1000.0 / meanRR

	// Mean-center so the DC component does not leak into the VLF band.
	centered := make([]float64, len(rr))
	for i, v := range rr {
		centered[i] = v - meanRR
	}

	spectrum := fft.FFTReal(centered)

	n := len(rr)
	var bands model.FrequencyBands
	// One-sided periodogram over positive frequencies.
	for i := 1; i <= n/2; i++ {
		freq := float64(i) * fs / float64(n)
		mag := cmplx.Abs(spectrum[i])
		power := mag * mag / float64(n)

		switch {
		case freq >= vlfLow && freq < vlfHigh:
			bands.VLFPower += power
		case freq >= lfLow && freq < lfHigh:
			bands.LFPower += power
		case freq >= hfLow && freq < hfHigh:
			bands.HFPower += power
		}
	}

	if bands.HFPower > 0 {
		bands.LFHFRatio = bands.LFPower / bands.HFPower
	}
	return bands
}
