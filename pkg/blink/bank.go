package blink

import (
	"context"
	"errors"

	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
)

// Source is the read side of the sample store.
type Source interface {
	Latest(ch eeg.Channel, n int) []float64
	Len(ch eeg.Channel) int64
}

// ChannelResult describes one monitored channel for one frame.
type ChannelResult struct {
	Channel    eeg.Channel
	Skipped    bool // fewer than N samples were available
	Stale      bool // nothing arrived since the last evaluated window
	Degenerate bool // regression slope undefined, treated as zero drift
	Excursion  float64
}

// Result is the outcome of one Bank step.
type Result struct {
	Event    ControlEvent
	Channels []ChannelResult
}

// Bank runs an independent drift regression per monitored channel and feeds
// the detrended windows to one shared Detector.
type Bank struct {
	channels  []eeg.Channel
	corrector *eeg.DriftCorrector
	detector  *Detector

	// seen is the channel length at its last evaluated window.
	seen map[eeg.Channel]int64
}

// NewBank creates a Bank over channels with windows of size samples.
func NewBank(cfg Config, size int, channels ...eeg.Channel) *Bank {
	if len(channels) == 0 {
		channels = []eeg.Channel{eeg.O1}
	}
	return &Bank{
		channels:  channels,
		corrector: eeg.NewDriftCorrector(size),
		detector:  NewDetector(cfg),
		seen:      make(map[eeg.Channel]int64, len(channels)),
	}
}

// Detector exposes the shared detector.
func (b *Bank) Detector() *Detector {
	return b.detector
}

// Channels returns the monitored channels.
func (b *Bank) Channels() []eeg.Channel {
	return b.channels
}

// Step detrends the latest window of every monitored channel and runs the
// detector once. A channel that received no samples since its last
// evaluated window is skipped as stale, so a stalled sensor cannot replay
// the same window. The detector still runs to keep its cooldown ticking.
func (b *Bank) Step(ctx context.Context, src Source, cond Conditions) Result {
	res := Result{Channels: make([]ChannelResult, 0, len(b.channels))}
	windows := make([]eeg.DetrendedWindow, 0, len(b.channels))

	for _, ch := range b.channels {
		cr := ChannelResult{Channel: ch}
		n := src.Len(ch)
		if last, ok := b.seen[ch]; ok && n == last {
			cr.Stale = true
			res.Channels = append(res.Channels, cr)
			continue
		}

		w, err := b.corrector.Correct(src.Latest(ch, b.corrector.Size()))
		if errors.Is(err, eeg.ErrInsufficientWindow) {
			cr.Skipped = true
			res.Channels = append(res.Channels, cr)
			continue
		}
		b.seen[ch] = n
		cr.Degenerate = w.Fit.Degenerate
		cr.Excursion = Excursion(w.Values)
		res.Channels = append(res.Channels, cr)
		windows = append(windows, w)
	}

	res.Event = b.detector.Step(ctx, windows, cond)
	return res
}

// Idle runs the detector without any window, only advancing its cooldown.
func (b *Bank) Idle(ctx context.Context, cond Conditions) {
	b.detector.Step(ctx, nil, cond)
}
