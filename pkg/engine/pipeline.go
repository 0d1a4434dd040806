package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BYTE-6D65/blinkbreak/pkg/blink"
	"github.com/BYTE-6D65/blinkbreak/pkg/calibration"
	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
	"github.com/BYTE-6D65/blinkbreak/pkg/event"
	"github.com/BYTE-6D65/blinkbreak/pkg/game"
	"github.com/BYTE-6D65/blinkbreak/pkg/paddle"
	"github.com/BYTE-6D65/blinkbreak/pkg/sensor"
	"github.com/BYTE-6D65/blinkbreak/pkg/ssvep"
	"github.com/BYTE-6D65/blinkbreak/pkg/stimulus"
	"github.com/BYTE-6D65/blinkbreak/pkg/telemetry"
	"github.com/BYTE-6D65/blinkbreak/pkg/trial"
)

// Mode selects what a pipeline does each frame.
type Mode int

const (
	// PlayMode detects blinks and drives the brick game.
	PlayMode Mode = iota
	// CalibrationMode runs flicker trials and classifies SSVEP responses.
	CalibrationMode
)

func (m Mode) String() string {
	if m == CalibrationMode {
		return "calibration"
	}
	return "play"
}

// Pipeline is the per-frame signal path. Step never blocks on the sensor
// and never returns an error: windows that cannot be filled are skipped and
// every absorbed error is reported on the engine's error bus.
type Pipeline struct {
	engine    *Engine
	cfg       Config
	mode      Mode
	source    sensor.Source
	buffer    *eeg.SampleBuffer
	codec     event.EventCodec
	sessionID string

	// Play mode
	bank *blink.Bank
	game *game.Game

	// Calibration mode
	sched      *stimulus.Scheduler
	router     *ssvep.Router
	classifier ssvep.Classifier
	trials     *trial.Controller

	frame      int64
	starved    map[string]bool
	lastStatus sensor.Status
	outbox     []pendingEvent
}

type pendingEvent struct {
	typ     string
	source  string
	payload any
}

// NewPipeline validates cfg and builds the components for mode. A config
// error here is fatal; nothing is started.
func NewPipeline(eng *Engine, cfg Config, mode Mode, src sensor.Source) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if src == nil {
		return nil, sensor.ErrSensorUnavailable
	}

	p := &Pipeline{
		engine:     eng,
		cfg:        cfg,
		mode:       mode,
		source:     src,
		buffer:     src.Buffer(),
		codec:      event.JSONCodec{},
		sessionID:  uuid.NewString(),
		starved:    make(map[string]bool),
		lastStatus: sensor.Connected,
	}

	switch mode {
	case PlayMode:
		channels, err := cfg.BlinkChannels()
		if err != nil {
			return nil, err
		}
		p.bank = blink.NewBank(cfg.BlinkDetector(), cfg.WindowSize, channels...)
		ctrl := paddle.NewController(cfg.Game.Geometry, paddle.WithSingleShot(cfg.SingleShot))
		p.game = game.New(cfg.Game, ctrl)

	case CalibrationMode:
		layout, err := cfg.Layout()
		if err != nil {
			return nil, err
		}
		flicker := cfg.Condition() == calibration.Flicker
		if p.sched, err = stimulus.NewScheduler(layout, cfg.FPS, flicker); err != nil {
			return nil, err
		}
		if p.router, err = ssvep.NewRouter(layout, cfg.SampleRate, cfg.FPS); err != nil {
			return nil, err
		}
		tcfg, err := cfg.TrialConfig(layout)
		if err != nil {
			return nil, err
		}
		p.trials, err = trial.NewController(tcfg, trial.Hooks{
			TrialStarted:   p.trialStarted,
			TrialCompleted: p.trialCompleted,
			Finished:       p.finished,
		})
		if err != nil {
			return nil, err
		}
		p.classifier = ssvep.Classifier{Margin: cfg.Margin}

	default:
		return nil, fmt.Errorf("unknown mode %d", mode)
	}

	eng.Logger().Info("[pipeline] created",
		zap.String("mode", mode.String()),
		zap.String("session", p.sessionID),
		zap.String("source", src.ID()))
	return p, nil
}

// Mode returns the pipeline mode.
func (p *Pipeline) Mode() Mode { return p.mode }

// SessionID tags every event the pipeline publishes.
func (p *Pipeline) SessionID() string { return p.sessionID }

// Frame returns the number of frames stepped.
func (p *Pipeline) Frame() int64 { return p.frame }

// Source returns the sample source.
func (p *Pipeline) Source() sensor.Source { return p.source }

// Game returns the board in play mode.
func (p *Pipeline) Game() *game.Game { return p.game }

// Bank returns the blink detectors in play mode.
func (p *Pipeline) Bank() *blink.Bank { return p.bank }

// Trials returns the trial controller in calibration mode.
func (p *Pipeline) Trials() *trial.Controller { return p.trials }

// Router returns the SSVEP reducers in calibration mode.
func (p *Pipeline) Router() *ssvep.Router { return p.router }

// Done reports whether a calibration session has run every trial. Play
// never ends on its own.
func (p *Pipeline) Done() bool {
	return p.mode == CalibrationMode && p.trials.Done()
}

// Step runs one frame.
func (p *Pipeline) Step(ctx context.Context) FrameResult {
	timer := telemetry.NewTimer()
	p.frame++

	res := FrameResult{Frame: p.frame, Sensor: p.source.Status()}
	p.watchSensor(res.Sensor)

	switch p.mode {
	case PlayMode:
		p.stepPlay(ctx, &res)
	case CalibrationMode:
		p.stepCalibration(ctx, &res)
	}

	for _, pe := range p.outbox {
		p.publish(ctx, p.engine.ExternalBus(), pe.typ, pe.source, pe.payload)
	}
	p.outbox = p.outbox[:0]

	if m := p.engine.Metrics(); m != nil {
		m.FramesProcessed.Inc()
		timer.Observe(m.StepDuration)
	}
	p.publish(ctx, p.engine.InternalBus(), event.TypeFrame, "engine", res.Payload())
	return res
}

func (p *Pipeline) stepPlay(ctx context.Context, res *FrameResult) {
	var br blink.Result
	if res.Sensor == sensor.Disconnected {
		// Detection idles until the sensor is back; the board keeps moving.
		res.Skipped = true
		p.bank.Idle(ctx, p.game.Conditions())
		if m := p.engine.Metrics(); m != nil {
			m.WindowsSkipped.WithLabelValues("blink", skipDisconnected).Inc()
		}
	} else {
		br = p.bank.Step(ctx, p.buffer, p.game.Conditions())
	}
	res.Blink = br.Channels

	for _, cr := range br.Channels {
		component := "blink:" + cr.Channel.String()
		switch {
		case cr.Skipped:
			res.Skipped = true
			p.skip("blink", component, skipInsufficient, p.cfg.WindowSize)
		case cr.Stale:
			res.Skipped = true
			p.skip("blink", component, skipStale, p.cfg.WindowSize)
		case cr.Degenerate:
			p.resume(component)
			p.report(event.NewErrorEvent(event.DebugSeverity, event.CodeDegenerateRegression, component,
				"zero-variance window treated as zero drift"))
		default:
			p.resume(component)
		}
	}

	if br.Event != blink.None {
		p.game.Paddle().Apply(br.Event)
		if m := p.engine.Metrics(); m != nil {
			m.ControlEvents.WithLabelValues(br.Event.String()).Inc()
		}
		p.queue(event.ControlType(br.Event), "blink", controlPayload(br, p.cfg.Blink.Threshold))
	}

	res.Control = br.Event
	res.Game = p.game.Step()
	ctrl := p.game.Paddle()
	res.Plan = ctrl.Plan()
	res.Gauge = ctrl.GaugePercent()

	if m := p.engine.Metrics(); m != nil {
		m.Gauge.Set(float64(res.Gauge))
	}
}

func controlPayload(br blink.Result, threshold float64) event.ControlPayload {
	p := event.ControlPayload{Direction: br.Event.String(), Threshold: threshold}
	for _, cr := range br.Channels {
		if cr.Skipped {
			continue
		}
		if p.Channel == "" || cr.Excursion > p.Excursion {
			p.Channel = cr.Channel.String()
			p.Excursion = cr.Excursion
		}
	}
	return p
}

func (p *Pipeline) stepCalibration(ctx context.Context, res *FrameResult) {
	st := p.trials.Status()
	res.Trial = st

	if st.State != trial.Stimulus {
		res.Draw = p.sched.Idle()
	} else {
		res.Draw = p.sched.Step()

		flushes, err := p.router.Step(p.buffer)
		if err != nil {
			res.Skipped = true
			var iw *eeg.InsufficientWindowError
			need, reason := 0, skipInsufficient
			if errors.As(err, &iw) {
				need = iw.Need
				if iw.Have == 0 && p.buffer.Len(iw.Channel) > 0 {
					reason = skipStale
				}
			}
			p.skip("ssvep", "ssvep", reason, need)
		} else {
			p.resume("ssvep")
		}

		for _, f := range flushes {
			v := p.classifier.Classify(f)
			p.trials.Record(v)
			recordFlush(p.engine.Metrics(), f, v)
			res.Flushes = append(res.Flushes, Classified{SideFlush: f, Verdict: v})
			p.queue(event.TypeObservation, "ssvep:"+f.Route.Side.String(), event.NewObservation(f, v))
		}
	}

	if err := p.trials.Advance(ctx); err != nil {
		p.report(event.NewErrorEvent(event.ErrorSeverityLevel, event.CodeTrialState, "trial", err.Error()))
	}
}

func (p *Pipeline) trialStarted(n int, side stimulus.Side) {
	p.router.Reset()
	p.sched.Reset()
	p.queue(event.TypeTrialStarted, "trial", event.TrialPayload{
		Trial:  n + 1,
		Trials: p.trials.Status().Trials,
		Side:   side.String(),
	})
}

func (p *Pipeline) trialCompleted(n int, e trial.Entry) {
	if m := p.engine.Metrics(); m != nil {
		m.TrialsCompleted.Inc()
	}
	p.queue(event.TypeTrialCompleted, "trial",
		event.NewTrialPayload(e.Result(n+1), e, p.trials.Status().Trials))
}

func (p *Pipeline) finished(s trial.Summary) {
	p.engine.Logger().Info("[pipeline] calibration finished",
		zap.String("session", p.sessionID),
		zap.Int("trials", len(s.Trials)),
		zap.Float64("correct", s.Correct),
		zap.Float64("incorrect", s.Incorrect),
		zap.Float64("indeterminate", s.Indeterminate))
	p.queue(event.TypeSessionSummary, "trial", event.NewSummaryPayload(s, p.trials.Log().Entries()))
}

// queue defers a domain event to the end of the frame.
func (p *Pipeline) queue(typ, source string, payload any) {
	p.outbox = append(p.outbox, pendingEvent{typ: typ, source: source, payload: payload})
}

func (p *Pipeline) publish(ctx context.Context, bus event.Bus, typ, source string, payload any) {
	evt, err := event.NewEvent(typ, source, payload, p.codec)
	if err != nil {
		p.report(event.NewErrorEvent(event.ErrorSeverityLevel, event.CodeEmitterFail, source, err.Error()).
			WithContext("type", typ))
		return
	}
	evt.WithFrame(p.frame).WithSession(p.sessionID)

	if err := bus.Publish(ctx, *evt); err != nil && !errors.Is(err, event.ErrClosed) {
		p.report(event.NewErrorEvent(event.WarningSeverity, event.CodeDropSlow, source, err.Error()).
			WithContext("type", typ))
	}
}

// Reasons a window is skipped, as labelled on the skipped-window counter.
const (
	skipInsufficient = "insufficient_window"
	skipStale        = "no_new_samples"
	skipDisconnected = "sensor_disconnected"
)

// skip counts a skipped window and reports the first frame of a run of
// skips.
func (p *Pipeline) skip(kind, component, reason string, need int) {
	if m := p.engine.Metrics(); m != nil {
		m.WindowsSkipped.WithLabelValues(kind, reason).Inc()
	}
	if p.starved[component] {
		return
	}
	p.starved[component] = true

	msg := "not enough samples, skipping"
	if reason == skipStale {
		msg = "no new samples since the last window, skipping"
	}
	p.report(event.NewErrorEvent(event.DebugSeverity, event.CodeInsufficientWindow, component, msg).
		WithSignal(event.SignalSkip).
		WithContext("need", need).
		WithContext("reason", reason))
}

func (p *Pipeline) resume(component string) {
	delete(p.starved, component)
}

func (p *Pipeline) watchSensor(status sensor.Status) {
	defer func() { p.lastStatus = status }()

	if m := p.engine.Metrics(); m != nil {
		m.SensorStatus.WithLabelValues(p.source.ID()).Set(float64(status))
	}

	switch {
	case status == sensor.Disconnected && p.lastStatus != sensor.Disconnected:
		p.report(event.NewErrorEvent(event.WarningSeverity, event.CodeSensorUnavailable,
			"sensor:"+p.source.ID(), "sensor disconnected, pipeline idles").
			WithSignal(event.SignalDegraded))
	case status != sensor.Disconnected && p.lastStatus == sensor.Disconnected:
		p.report(event.NewErrorEvent(event.InfoSeverity, event.CodeSensorUnavailable,
			"sensor:"+p.source.ID(), "sensor reconnected").
			WithSignal(event.SignalRecovered))
	}
}

func (p *Pipeline) report(evt event.ErrorEvent) {
	p.engine.ReportError(evt.WithFrame(p.frame))
}
