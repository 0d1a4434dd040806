// Package testdata synthesizes headband recordings: baseline noise, slow
// electrode drift, frequency-tagged SSVEP tones and blink artifacts.
package testdata

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
)

// Scenario names a canned generator configuration.
type Scenario string

const (
	ScenarioBaseline Scenario = "baseline"
	ScenarioBlinks   Scenario = "blinks"
	ScenarioSSVEP    Scenario = "ssvep"
	ScenarioDrift    Scenario = "drift"
)

// Tone is a sinusoid added to one channel.
type Tone struct {
	Channel   eeg.Channel
	Frequency float64
	Amplitude float64
}

// Config describes the synthetic signal. Amplitudes are in volts, like the
// headband reports them.
type Config struct {
	SampleRate int
	Seed       uint64

	Offset float64 // DC level on every channel
	Noise  float64 // standard deviation of white noise
	Drift  float64 // volts per second of linear drift

	Tones []Tone

	BlinkAmplitude float64 // depth of the occipital dip
	BlinkSamples   int     // length of one blink artifact
	BlinkEvery     int     // inject a blink every n samples, 0 for manual only
}

// DefaultConfig is a quiet 250 Hz recording with no events.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate:     sampleRate,
		Seed:           1,
		Offset:         0.0002,
		Noise:          0.000002,
		BlinkAmplitude: 0.0003,
		BlinkSamples:   sampleRate / 10,
	}
}

// ScenarioConfig returns the configuration for a named scenario.
func ScenarioConfig(s Scenario, sampleRate int) (Config, error) {
	cfg := DefaultConfig(sampleRate)
	switch s {
	case ScenarioBaseline:
	case ScenarioBlinks:
		cfg.BlinkEvery = 2 * sampleRate
	case ScenarioSSVEP:
		// Attention to a right-side 20 Hz patch shows up on O1.
		cfg.Tones = []Tone{
			{Channel: eeg.O1, Frequency: 20, Amplitude: 0.00002},
			{Channel: eeg.O2, Frequency: 20, Amplitude: 0.000005},
		}
	case ScenarioDrift:
		cfg.Drift = 0.00001
	default:
		return Config{}, fmt.Errorf("unknown scenario %q", s)
	}
	return cfg, nil
}

// Generator produces one reading per call. Next is meant for a single
// producer goroutine; Blink may be called from any goroutine.
type Generator struct {
	cfg  Config
	rng  *rand.Rand
	n    int64
	left int // samples remaining in the current blink

	blinkPending atomic.Bool
	blinks       atomic.Int64
}

// NewGenerator creates a generator.
func NewGenerator(cfg Config) *Generator {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 250
	}
	if cfg.BlinkSamples <= 0 {
		cfg.BlinkSamples = 1
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Config returns the generator configuration.
func (g *Generator) Config() Config {
	return g.cfg
}

// Blink schedules a blink artifact to start with the next sample.
func (g *Generator) Blink() {
	g.blinkPending.Store(true)
}

// Blinks returns how many blink artifacts have started.
func (g *Generator) Blinks() int64 {
	return g.blinks.Load()
}

// Count returns how many readings have been produced.
func (g *Generator) Count() int64 {
	return g.n
}

// Next returns the next reading.
func (g *Generator) Next() eeg.Reading {
	t := float64(g.n) / float64(g.cfg.SampleRate)

	if g.cfg.BlinkEvery > 0 && g.n > 0 && g.n%int64(g.cfg.BlinkEvery) == 0 {
		g.blinkPending.Store(true)
	}
	if g.left == 0 && g.blinkPending.CompareAndSwap(true, false) {
		g.left = g.cfg.BlinkSamples
		g.blinks.Add(1)
	}

	var r eeg.Reading
	for i := range r {
		r[i] = g.cfg.Offset + g.cfg.Drift*t + g.rng.NormFloat64()*g.cfg.Noise
	}
	for _, tone := range g.cfg.Tones {
		if tone.Channel.Valid() {
			r[tone.Channel] += tone.Amplitude * math.Sin(2*math.Pi*tone.Frequency*t)
		}
	}

	if g.left > 0 {
		k := g.cfg.BlinkSamples - g.left
		dip := g.cfg.BlinkAmplitude * math.Sin(math.Pi*float64(k+1)/float64(g.cfg.BlinkSamples+1))
		r[eeg.O1] -= dip
		r[eeg.O2] -= dip
		g.left--
	}

	g.n++
	return r
}

// Fill appends n readings to buf.
func (g *Generator) Fill(buf *eeg.SampleBuffer, n int) {
	for i := 0; i < n; i++ {
		buf.Append(g.Next())
	}
}
