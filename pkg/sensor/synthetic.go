package sensor

import (
	"context"
	"time"

	"github.com/BYTE-6D65/blinkbreak/pkg/clock"
	"github.com/BYTE-6D65/blinkbreak/pkg/testdata"
)

// Synthetic produces generated samples in real time at the generator's
// sample rate.
type Synthetic struct {
	*worker
	gen *testdata.Generator
}

// NewSynthetic creates a synthetic source around gen.
func NewSynthetic(gen *testdata.Generator, opts ...Option) *Synthetic {
	rate := float64(gen.Config().SampleRate)
	opts = append([]Option{WithNominalRate(rate)}, opts...)

	s := &Synthetic{
		worker: newWorker("synthetic", opts),
		gen:    gen,
	}
	s.setStatus(Connected)
	return s
}

// Type returns "synthetic".
func (s *Synthetic) Type() string { return "synthetic" }

// Blink injects a blink artifact into the stream.
func (s *Synthetic) Blink() { s.gen.Blink() }

// Generator returns the underlying generator.
func (s *Synthetic) Generator() *testdata.Generator { return s.gen }

// Start begins producing samples.
func (s *Synthetic) Start(ctx context.Context) error {
	return s.run(ctx, s.loop)
}

// Stop halts production.
func (s *Synthetic) Stop() error {
	return s.stop()
}

func (s *Synthetic) loop(ctx context.Context) {
	clk := s.opts.clock
	rate := s.gen.Config().SampleRate
	start := clk.Now()
	var produced int64

	ticker := time.NewTicker(s.opts.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due := clock.SamplesDue(rate, clk.Since(start))
			for ; produced < due; produced++ {
				s.append(s.gen.Next())
			}
		}
	}
}
