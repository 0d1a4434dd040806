package clock

import (
	"sync"
)

// RateEstimator estimates a sensor's effective sample rate by fitting
// sampleCount = rate * t + offset over a rolling window of observations.
// The nominal device rate (250 Hz) and the observed rate diverge when the
// transport stalls or the device clock drifts; the fit exposes that.
type RateEstimator struct {
	mu sync.RWMutex

	nominal float64
	rate    float64
	offset  float64

	window     []rateObservation
	windowSize int
	index      int
	count      int

	// Running sums for the least-squares fit (t in seconds)
	sumT  float64
	sumN  float64
	sumTT float64
	sumTN float64
}

type rateObservation struct {
	t float64
	n float64
}

// NewRateEstimator creates an estimator that reports nominal until at least
// two distinct observations are available.
func NewRateEstimator(nominal float64, windowSize int) *RateEstimator {
	if windowSize < 2 {
		windowSize = 10
	}
	return &RateEstimator{
		nominal:    nominal,
		rate:       nominal,
		window:     make([]rateObservation, windowSize),
		windowSize: windowSize,
	}
}

// Observe records that sampleCount samples had arrived at engine time at.
func (r *RateEstimator) Observe(sampleCount int64, at MonoTime) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obs := rateObservation{t: at.Seconds(), n: float64(sampleCount)}

	if r.count == r.windowSize {
		old := r.window[r.index]
		r.sumT -= old.t
		r.sumN -= old.n
		r.sumTT -= old.t * old.t
		r.sumTN -= old.t * old.n
	} else {
		r.count++
	}

	r.window[r.index] = obs
	r.index = (r.index + 1) % r.windowSize

	r.sumT += obs.t
	r.sumN += obs.n
	r.sumTT += obs.t * obs.t
	r.sumTN += obs.t * obs.n

	r.updateFit()
}

// updateFit solves the normal equations. Must be called with lock held.
func (r *RateEstimator) updateFit() {
	if r.count < 2 {
		return
	}

	n := float64(r.count)
	det := r.sumTT*n - r.sumT*r.sumT
	if det < 1e-12 {
		// All observations at the same instant
		return
	}

	r.rate = (r.sumTN*n - r.sumT*r.sumN) / det
	r.offset = (r.sumTT*r.sumN - r.sumT*r.sumTN) / det
}

// Rate returns the estimated samples per second.
func (r *RateEstimator) Rate() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate
}

// Drift returns the relative deviation of the estimated rate from nominal
// (0.01 means the sensor delivers 1% more samples than advertised).
func (r *RateEstimator) Drift() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.nominal == 0 {
		return 0
	}
	return (r.rate - r.nominal) / r.nominal
}

// Snapshot returns the current (rate, offset) coefficients.
func (r *RateEstimator) Snapshot() (rate float64, offset float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate, r.offset
}

// Reset discards all observations.
func (r *RateEstimator) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rate = r.nominal
	r.offset = 0
	r.index = 0
	r.count = 0
	r.sumT, r.sumN, r.sumTT, r.sumTN = 0, 0, 0, 0
}
