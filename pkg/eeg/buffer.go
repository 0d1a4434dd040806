package eeg

import (
	"sync/atomic"
)

// Sample is one reading of one channel. Index is the channel's monotonic
// arrival counter, starting at zero.
type Sample struct {
	Channel   Channel
	Amplitude float64
	Index     int64
}

// Reading is one simultaneous reading of all four channels.
type Reading [NumChannels]float64

// series is an immutable view of one channel's samples. The writer publishes
// a new view after every append; elements below len(data) are never
// modified once published, so readers need no lock.
type series struct {
	data []float64
	base int64 // arrival index of data[0]
}

// SampleBuffer is an append-only multi-channel sample store with one writer
// (the acquisition worker) and any number of readers that only look backward
// from the current length.
type SampleBuffer struct {
	channels  [NumChannels]atomic.Pointer[series]
	retention int
}

// BufferOption configures a SampleBuffer.
type BufferOption func(*SampleBuffer)

// WithRetention bounds how much history is kept in memory. Readers never
// ask for more than their window, so the buffer may compact to the last n
// samples once it has grown past 2n. Zero keeps everything.
func WithRetention(n int) BufferOption {
	return func(b *SampleBuffer) {
		if n > 0 {
			b.retention = n
		}
	}
}

// NewSampleBuffer creates an empty buffer.
func NewSampleBuffer(opts ...BufferOption) *SampleBuffer {
	b := &SampleBuffer{}
	for _, opt := range opts {
		opt(b)
	}
	for i := range b.channels {
		b.channels[i].Store(&series{data: make([]float64, 0, 1024)})
	}
	return b
}

// Append stores one reading of every channel. Must only be called from the
// single writer goroutine.
func (b *SampleBuffer) Append(r Reading) {
	for ch, amp := range r {
		b.AppendChannel(Channel(ch), amp)
	}
}

// AppendChannel stores one sample for ch. Must only be called from the
// single writer goroutine.
func (b *SampleBuffer) AppendChannel(ch Channel, amp float64) {
	if !ch.Valid() {
		return
	}
	slot := &b.channels[ch]
	cur := slot.Load()

	data := cur.data
	base := cur.base

	if b.retention > 0 && len(data) >= 2*b.retention {
		keep := make([]float64, b.retention, 2*b.retention+1)
		copy(keep, data[len(data)-b.retention:])
		base += int64(len(data) - b.retention)
		data = keep
	}

	if len(data) == cap(data) {
		grown := make([]float64, len(data), 2*cap(data)+1)
		copy(grown, data)
		data = grown
	}

	// Writing past len never touches an element a reader can see.
	data = append(data, amp)
	slot.Store(&series{data: data, base: base})
}

// Len returns the total number of samples that have arrived on ch.
func (b *SampleBuffer) Len(ch Channel) int64 {
	if !ch.Valid() {
		return 0
	}
	s := b.channels[ch].Load()
	return s.base + int64(len(s.data))
}

// Latest returns up to n of the most recent samples of ch, oldest first.
// Fewer are returned if fewer are available.
func (b *SampleBuffer) Latest(ch Channel, n int) []float64 {
	if !ch.Valid() || n <= 0 {
		return nil
	}
	s := b.channels[ch].Load()
	if n > len(s.data) {
		n = len(s.data)
	}
	out := make([]float64, n)
	copy(out, s.data[len(s.data)-n:])
	return out
}

// Window returns exactly n of the most recent samples of ch, or an
// *InsufficientWindowError if fewer are available.
func (b *SampleBuffer) Window(ch Channel, n int) ([]float64, error) {
	out := b.Latest(ch, n)
	if len(out) < n {
		return nil, &InsufficientWindowError{Channel: ch, Have: len(out), Need: n}
	}
	return out, nil
}

// Back returns the sample k positions back from the newest one (k=1 is the
// newest). It reports false if that sample is not available.
func (b *SampleBuffer) Back(ch Channel, k int) (float64, bool) {
	if !ch.Valid() || k < 1 {
		return 0, false
	}
	s := b.channels[ch].Load()
	if k > len(s.data) {
		return 0, false
	}
	return s.data[len(s.data)-k], true
}

// Samples returns up to n of the most recent samples of ch with their
// arrival indices.
func (b *SampleBuffer) Samples(ch Channel, n int) []Sample {
	if !ch.Valid() || n <= 0 {
		return nil
	}
	s := b.channels[ch].Load()
	if n > len(s.data) {
		n = len(s.data)
	}
	start := len(s.data) - n
	out := make([]Sample, n)
	for i := 0; i < n; i++ {
		out[i] = Sample{
			Channel:   ch,
			Amplitude: s.data[start+i],
			Index:     s.base + int64(start+i),
		}
	}
	return out
}
