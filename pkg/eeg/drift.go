package eeg

import (
	"math"
)

// LineFit is an ordinary least-squares fit of amplitude against sample
// index 0..N-1.
type LineFit struct {
	Slope     float64
	Intercept float64

	// Degenerate is set when the slope was undefined and the window was
	// treated as drift-free.
	Degenerate bool
}

// FitLine fits amplitude = Slope*index + Intercept over ys.
// Windows with fewer than two samples, or whose slope comes out non-finite,
// are degenerate: Slope is zero and Intercept is the mean.
func FitLine(ys []float64) LineFit {
	n := float64(len(ys))
	if len(ys) == 0 {
		return LineFit{Degenerate: true}
	}

	var sumX, sumY, sumXX, sumXY float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXX += x * x
		sumXY += x * y
	}

	meanY := sumY / n
	det := n*sumXX - sumX*sumX
	if len(ys) < 2 || det == 0 {
		return LineFit{Intercept: meanY, Degenerate: true}
	}

	slope := (n*sumXY - sumX*sumY) / det
	intercept := (sumY - slope*sumX) / n
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return LineFit{Intercept: meanY, Degenerate: true}
	}

	return LineFit{Slope: slope, Intercept: intercept}
}

// DetrendedWindow is a window with its linear drift removed.
type DetrendedWindow struct {
	Values []float64
	Fit    LineFit
}

// DriftCorrector removes the linear trend from the latest fixed-size window
// of a channel. It is recomputed from scratch every frame.
type DriftCorrector struct {
	size int
}

// NewDriftCorrector creates a corrector for windows of size samples.
func NewDriftCorrector(size int) *DriftCorrector {
	if size < 2 {
		size = 2
	}
	return &DriftCorrector{size: size}
}

// Size returns the window length N.
func (d *DriftCorrector) Size() int {
	return d.size
}

// Correct detrends the last N samples of raw:
//
//	corrected[t] = raw[t] + slope*(N-1-t) - intercept
//
// which projects every sample's fitted trend to the end of the window and
// removes the intercept. If raw holds fewer than N samples it returns
// ErrInsufficientWindow and no window.
func (d *DriftCorrector) Correct(raw []float64) (DetrendedWindow, error) {
	if len(raw) < d.size {
		return DetrendedWindow{}, &InsufficientWindowError{Have: len(raw), Need: d.size}
	}
	return Detrend(raw[len(raw)-d.size:]), nil
}

// Detrend applies the drift correction to the whole of ys.
func Detrend(ys []float64) DetrendedWindow {
	fit := FitLine(ys)
	last := float64(len(ys) - 1)

	out := make([]float64, len(ys))
	for t, y := range ys {
		out[t] = y + fit.Slope*(last-float64(t)) - fit.Intercept
	}
	return DetrendedWindow{Values: out, Fit: fit}
}

// Mean returns the arithmetic mean of ys, or 0 for an empty slice.
func Mean(ys []float64) float64 {
	if len(ys) == 0 {
		return 0
	}
	var sum float64
	for _, y := range ys {
		sum += y
	}
	return sum / float64(len(ys))
}

// PeakToPeak returns max(ys) - min(ys), or 0 for an empty slice.
func PeakToPeak(ys []float64) float64 {
	if len(ys) == 0 {
		return 0
	}
	lo, hi := ys[0], ys[0]
	for _, y := range ys[1:] {
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}
	return hi - lo
}
