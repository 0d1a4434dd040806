// Package ssvep accumulates frame-batched EEG samples into one window per
// flicker period and reduces each window to a peak-to-peak observation.
//
// The sensor rate is generally not an integer multiple of the flicker
// frequency (250 Hz / 20 Hz = 12.5), so every window holds the integer
// part of the ratio and an extra sample is inserted every few windows to
// keep the accumulated count locked to the sensor clock.
package ssvep

import (
	"fmt"
	"math"

	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
)

// Source is the read side of the sample store.
type Source interface {
	Len(ch eeg.Channel) int64
	Samples(ch eeg.Channel, n int) []eeg.Sample
}

// ReductionState is the bookkeeping of one reducer.
type ReductionState struct {
	Full      float64 // sample rate / flicker frequency
	Factor    int     // floor(Full), window length before recovery
	Error     float64 // Full - Factor
	Threshold int     // windows between recovery samples, 0 when Error is 0
	Counter   int     // completed windows since the last recovery
	PerFrame  int     // new samples taken per frame
}

// NewReductionState computes the reduction parameters for a flicker
// frequency.
func NewReductionState(sampleRate, fps, frequency int) (ReductionState, error) {
	if sampleRate <= 0 || fps <= 0 {
		return ReductionState{}, fmt.Errorf("ssvep: sample rate and fps must be positive (got %d, %d)", sampleRate, fps)
	}
	if frequency <= 0 {
		return ReductionState{}, fmt.Errorf("ssvep: flicker frequency must be positive, got %d", frequency)
	}

	full := float64(sampleRate) / float64(frequency)
	factor := int(math.Floor(full))
	if factor < 1 {
		return ReductionState{}, fmt.Errorf("ssvep: %d Hz flicker leaves less than one sample per period at %d Hz", frequency, sampleRate)
	}
	perFrame := sampleRate / fps
	if perFrame < 1 {
		return ReductionState{}, fmt.Errorf("ssvep: sample rate %d Hz is below the frame rate %d", sampleRate, fps)
	}

	st := ReductionState{
		Full:     full,
		Factor:   factor,
		Error:    full - float64(factor),
		PerFrame: perFrame,
	}
	if st.Error > 0 {
		st.Threshold = int(math.RoundToEven(1 / st.Error))
	}
	return st, nil
}

// Observation is the reduction of one channel's window.
type Observation struct {
	Channel    eeg.Channel
	PeakToPeak float64
	Samples    []float64
}

// Flush is emitted once per completed window.
type Flush struct {
	Index     int // completed windows so far, starting at 1
	Frequency int
	Recovered bool // an extra sample was inserted into this window

	Observations []Observation
}

// Observation returns the reduction for ch.
func (f Flush) Observation(ch eeg.Channel) (Observation, bool) {
	for _, o := range f.Observations {
		if o.Channel == ch {
			return o, true
		}
	}
	return Observation{}, false
}

// Reducer accumulates one window per flicker period on a set of channels.
// The first channel is the primary: its buffer length decides batch sizes
// and flushes, and every other channel mirrors the same batches.
type Reducer struct {
	frequency int
	channels  []eeg.Channel
	state     ReductionState
	buffers   [][]float64
	flushes   int

	// consumed is the arrival index one past the newest sample taken per
	// channel; stale holds the sample just before the latest batch.
	consumed []int64
	stale    []float64
	hasStale []bool
}

// NewReducer creates a Reducer for a flicker frequency over channels.
func NewReducer(sampleRate, fps, frequency int, channels ...eeg.Channel) (*Reducer, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("ssvep: reducer needs at least one channel")
	}
	st, err := NewReductionState(sampleRate, fps, frequency)
	if err != nil {
		return nil, err
	}

	r := &Reducer{
		frequency: frequency,
		channels:  channels,
		state:     st,
		buffers:   make([][]float64, len(channels)),
		consumed:  make([]int64, len(channels)),
		stale:     make([]float64, len(channels)),
		hasStale:  make([]bool, len(channels)),
	}
	for i := range r.buffers {
		r.buffers[i] = make([]float64, 0, st.Factor+1)
	}
	return r, nil
}

// State returns a copy of the reduction bookkeeping.
func (r *Reducer) State() ReductionState {
	return r.state
}

// Frequency returns the flicker frequency the reducer is locked to.
func (r *Reducer) Frequency() int {
	return r.frequency
}

// Channels returns the channels the reducer accumulates, primary first.
func (r *Reducer) Channels() []eeg.Channel {
	return r.channels
}

// Pending returns how many samples the primary window holds.
func (r *Reducer) Pending() int {
	return len(r.buffers[0])
}

// Step appends up to PerFrame newly arrived samples to every window and,
// when the primary window reaches the reduction factor, flushes it. It
// returns an *eeg.InsufficientWindowError without touching any window if a
// channel has no sample it has not already taken.
func (r *Reducer) Step(src Source) (Flush, bool, error) {
	batch := r.state.PerFrame
	if room := r.state.Factor - len(r.buffers[0]); room < batch {
		batch = room
	}
	for i, ch := range r.channels {
		fresh := src.Len(ch) - r.consumed[i]
		if fresh <= 0 {
			return Flush{}, false, &eeg.InsufficientWindowError{Channel: ch, Have: 0, Need: r.state.PerFrame}
		}
		if fresh < int64(batch) {
			batch = int(fresh)
		}
	}

	if batch > 0 {
		got := make([][]eeg.Sample, len(r.channels))
		for i, ch := range r.channels {
			// One extra sample is read as the recovery candidate.
			got[i] = src.Samples(ch, batch+1)
			if len(got[i]) < batch {
				return Flush{}, false, &eeg.InsufficientWindowError{Channel: ch, Have: len(got[i]), Need: batch}
			}
		}
		for i, samples := range got {
			r.hasStale[i] = len(samples) > batch
			if r.hasStale[i] {
				r.stale[i] = samples[0].Amplitude
				samples = samples[1:]
			}
			for _, smp := range samples {
				r.buffers[i] = append(r.buffers[i], smp.Amplitude)
			}
			r.consumed[i] = samples[len(samples)-1].Index + 1
		}
	}

	if len(r.buffers[0]) < r.state.Factor {
		return Flush{}, false, nil
	}

	f := Flush{Frequency: r.frequency}

	r.state.Counter++
	if r.state.Threshold > 0 && r.state.Counter >= r.state.Threshold {
		// The stale sample is the one just before this frame's batch.
		for i := range r.channels {
			if r.hasStale[i] {
				r.buffers[i] = append(r.buffers[i], r.stale[i])
			}
		}
		r.state.Counter = 0
		f.Recovered = true
	}

	r.flushes++
	f.Index = r.flushes
	f.Observations = make([]Observation, len(r.channels))
	for i, ch := range r.channels {
		samples := r.buffers[i]
		f.Observations[i] = Observation{
			Channel:    ch,
			PeakToPeak: eeg.PeakToPeak(samples),
			Samples:    append([]float64(nil), samples...),
		}
		r.buffers[i] = r.buffers[i][:0]
	}

	return f, true, nil
}

// Reset drops any partial window and the recovery counter. Samples taken
// before the reset are never taken again.
func (r *Reducer) Reset() {
	for i := range r.buffers {
		r.buffers[i] = r.buffers[i][:0]
	}
	r.state.Counter = 0
	r.flushes = 0
}
