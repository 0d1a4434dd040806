package framework

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BYTE-6D65/blinkbreak/pkg/calibration"
	"github.com/BYTE-6D65/blinkbreak/pkg/clock"
	"github.com/BYTE-6D65/blinkbreak/pkg/emitter"
	"github.com/BYTE-6D65/blinkbreak/pkg/engine"
	"github.com/BYTE-6D65/blinkbreak/pkg/event"
	"github.com/BYTE-6D65/blinkbreak/pkg/sensor"
	"github.com/BYTE-6D65/blinkbreak/pkg/telemetry"
	"github.com/BYTE-6D65/blinkbreak/pkg/testdata"
)

// TestCase defines the interface for all behavior tests.
type TestCase interface {
	// Name returns the test name (e.g., "1.1: Blink Steers Paddle")
	Name() string

	// Category returns the test category (e.g., "Blink Control")
	Category() string

	// Description returns a brief description of what the test validates
	Description() string

	// Setup builds the pipeline under test
	Setup(ctx context.Context) error

	// Run drives the frame loop
	Run(ctx context.Context) error

	// Teardown cleans up resources
	Teardown() error

	// Validate checks pass/fail criteria and returns result
	Validate() *TestResult
}

// TestResult contains the outcome of a test execution.
type TestResult struct {
	TestName   string
	Category   string
	Passed     bool
	Duration   time.Duration `json:",format:nano"`
	StartTime  time.Time
	EndTime    time.Time
	Assertions []*Assertion
	Metrics    map[string]any
	Errors     []error `json:"-"`
	Failures   []string
	Warnings   []string
}

// Assertion represents a single pass/fail check.
type Assertion struct {
	Name     string
	Expected any
	Actual   any
	Passed   bool
	Message  string
}

// NewTestResult creates a new test result.
func NewTestResult(testName, category string) *TestResult {
	return &TestResult{
		TestName:  testName,
		Category:  category,
		Passed:    true,
		Metrics:   make(map[string]any),
		StartTime: time.Now(),
	}
}

// AddAssertion records a, failing the result if a failed.
func (r *TestResult) AddAssertion(a *Assertion) {
	r.Assertions = append(r.Assertions, a)
	if !a.Passed {
		r.Passed = false
	}
}

// AddMetric adds a metric to track.
func (r *TestResult) AddMetric(name string, value any) {
	r.Metrics[name] = value
}

// AddError records err. Any error fails the test.
func (r *TestResult) AddError(err error) {
	r.Errors = append(r.Errors, err)
	r.Failures = append(r.Failures, err.Error())
	r.Passed = false
}

// AddWarning adds a warning (doesn't fail the test).
func (r *TestResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Finish marks the test as complete and calculates duration.
func (r *TestResult) Finish() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// PassedAssertions returns the number of passed assertions.
func (r *TestResult) PassedAssertions() int {
	count := 0
	for _, a := range r.Assertions {
		if a.Passed {
			count++
		}
	}
	return count
}

// FailedAssertions returns the number of failed assertions.
func (r *TestResult) FailedAssertions() int {
	return len(r.Assertions) - r.PassedAssertions()
}

func (r *TestResult) String() string {
	status := "PASS"
	if !r.Passed {
		status = "FAIL"
	}
	return fmt.Sprintf("[%s] %s (%s)", status, r.TestName, r.Duration)
}

// BaseTestCase runs a pipeline against a synthetic headband without a
// ticker: Step feeds the generator exactly the samples a real-time source
// would have produced by each frame, then steps the pipeline.
//
// Embed it in test implementations.
type BaseTestCase struct {
	engine   *engine.Engine
	pipeline *engine.Pipeline
	source   *sensor.Synthetic
	emitters *engine.EmitterManager
	session  *calibration.Session
	config   engine.Config

	produced int64
	result   *TestResult
	ctx      context.Context
	cancel   context.CancelFunc

	errSub   *event.ErrorSubscription
	errCodes map[string]int

	eventsMu   sync.Mutex
	events     map[string]int
	eventsSub  event.Subscription
	eventsDone chan struct{}
}

// NewBaseTestCase creates a new base test case.
func NewBaseTestCase() *BaseTestCase {
	return &BaseTestCase{
		result:   NewTestResult("", ""),
		errCodes: make(map[string]int),
		events:   make(map[string]int),
	}
}

// Engine returns the engine under test.
func (b *BaseTestCase) Engine() *engine.Engine { return b.engine }

// Pipeline returns the pipeline under test.
func (b *BaseTestCase) Pipeline() *engine.Pipeline { return b.pipeline }

// Source returns the synthetic headband.
func (b *BaseTestCase) Source() *sensor.Synthetic { return b.source }

// Session returns the calibration session, if AttachSession was called.
func (b *BaseTestCase) Session() *calibration.Session { return b.session }

// Result returns the test result.
func (b *BaseTestCase) Result() *TestResult { return b.result }

// Context returns the test context.
func (b *BaseTestCase) Context() context.Context { return b.ctx }

// SetupPipeline builds an engine and a pipeline in mode over a generator
// configured by gen. Every domain event on the external bus is counted.
func (b *BaseTestCase) SetupPipeline(ctx context.Context, cfg engine.Config, mode engine.Mode, gen testdata.Config) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.config = cfg

	b.engine = engine.New(
		engine.WithMetrics(telemetry.InitMetrics(prometheus.NewRegistry())),
		engine.WithErrorBus(event.NewErrorBus(4096)),
		engine.WithClock(clock.NewStepClock(0)),
	)
	b.source = sensor.NewSynthetic(testdata.NewGenerator(gen))

	p, err := engine.NewPipeline(b.engine, cfg, mode, b.source)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	b.pipeline = p

	if b.errSub, err = b.engine.ErrorBus().Subscribe(b.ctx); err != nil {
		return err
	}
	if b.eventsSub, err = b.engine.ExternalBus().Subscribe(b.ctx, event.Filter{}); err != nil {
		return err
	}
	b.eventsDone = make(chan struct{})
	go b.countEvents()

	b.emitters = engine.NewEmitterManager(b.engine)
	return nil
}

func (b *BaseTestCase) countEvents() {
	defer close(b.eventsDone)
	for evt := range b.eventsSub.Events() {
		b.eventsMu.Lock()
		b.events[evt.Type]++
		b.eventsMu.Unlock()
	}
}

// AttachSession writes calibration files for the run under dir.
func (b *BaseTestCase) AttachSession(dir string) error {
	layout, err := b.config.Layout()
	if err != nil {
		return err
	}
	mode := calibration.TrialMode
	if b.config.Trial.Basic {
		mode = calibration.BasicMode
	}

	b.session, err = calibration.NewSession(calibration.Config{
		Dir:        dir,
		Mode:       mode,
		Condition:  b.config.Condition(),
		Layout:     layout,
		SampleRate: b.config.SampleRate,
		Detrend:    b.config.Detrend,
	}, calibration.WithLogger(zap.NewNop()))
	if err != nil {
		return err
	}

	ce := emitter.NewCalibrationEmitter(b.session)
	if err := b.emitters.Register(ce.ID(), ce, ce.Filter()); err != nil {
		return err
	}
	return b.emitters.Start()
}

// Step runs n frames, feeding the samples due before each one. It stops
// early when a calibration session ends. onFrame may be nil.
func (b *BaseTestCase) Step(n int, onFrame func(engine.FrameResult)) {
	period := clock.FramePeriod(b.config.FPS)
	gen := b.source.Generator()
	buf := b.source.Buffer()

	for i := 0; i < n && !b.pipeline.Done(); i++ {
		frame := b.pipeline.Frame() + 1
		due := clock.SamplesDue(b.config.SampleRate, time.Duration(frame)*period)
		for ; b.produced < due; b.produced++ {
			buf.Append(gen.Next())
		}

		res := b.pipeline.Step(b.ctx)
		if onFrame != nil {
			onFrame(res)
		}
	}
}

// ErrorCount returns how many errors with code have been reported so far.
func (b *BaseTestCase) ErrorCount(code string) int {
	for {
		select {
		case evt, ok := <-b.errSub.Events():
			if !ok {
				return b.errCodes[code]
			}
			b.errCodes[evt.Code]++
		default:
			return b.errCodes[code]
		}
	}
}

// EventCounts stops counting and returns the number of external events
// seen per type. Emitters are stopped first so calibration files are
// complete when it returns.
func (b *BaseTestCase) EventCounts() map[string]int {
	if b.emitters != nil {
		if err := b.emitters.Stop(); err != nil {
			b.Error(err)
		}
	}
	if b.eventsSub != nil {
		b.eventsSub.Close()
		<-b.eventsDone
		b.eventsSub = nil
	}

	b.eventsMu.Lock()
	defer b.eventsMu.Unlock()

	counts := make(map[string]int, len(b.events))
	for k, v := range b.events {
		counts[k] = v
	}
	return counts
}

// TeardownPipeline shuts the engine down.
func (b *BaseTestCase) TeardownPipeline() error {
	if b.emitters != nil {
		b.emitters.Shutdown()
	}
	if b.cancel != nil {
		b.cancel()
	}

	if b.engine != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return b.engine.Shutdown(shutdownCtx)
	}
	return nil
}

// Assert adds an assertion to the result.
func (b *BaseTestCase) Assert(name string, expected, actual any, passed bool, message string) {
	b.result.AddAssertion(&Assertion{
		Name:     name,
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  message,
	})
}

// Metric adds a metric to track.
func (b *BaseTestCase) Metric(name string, value any) {
	b.result.AddMetric(name, value)
}

// Error adds an error to the result.
func (b *BaseTestCase) Error(err error) {
	b.result.AddError(err)
}

// Warning adds a warning to the result.
func (b *BaseTestCase) Warning(msg string) {
	b.result.AddWarning(msg)
}
