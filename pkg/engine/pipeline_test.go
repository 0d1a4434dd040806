package engine

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/BYTE-6D65/blinkbreak/pkg/blink"
	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
	"github.com/BYTE-6D65/blinkbreak/pkg/event"
	"github.com/BYTE-6D65/blinkbreak/pkg/game"
	"github.com/BYTE-6D65/blinkbreak/pkg/paddle"
	"github.com/BYTE-6D65/blinkbreak/pkg/sensor"
	"github.com/BYTE-6D65/blinkbreak/pkg/telemetry"
	"github.com/BYTE-6D65/blinkbreak/pkg/testdata"
	"github.com/BYTE-6D65/blinkbreak/pkg/trial"
)

// newTestPipeline builds a pipeline over an idle synthetic source whose
// buffer the test fills by hand.
func newTestPipeline(t *testing.T, cfg Config, mode Mode) (*Engine, *Pipeline, *eeg.SampleBuffer) {
	t.Helper()

	eng := New(WithMetrics(telemetry.InitMetrics(prometheus.NewRegistry())))
	t.Cleanup(func() { eng.Shutdown(context.Background()) })

	buf := eeg.NewSampleBuffer()
	src := sensor.NewSynthetic(testdata.NewGenerator(testdata.DefaultConfig(cfg.SampleRate)), sensor.WithBuffer(buf))

	p, err := NewPipeline(eng, cfg, mode, src)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return eng, p, buf
}

// fillBlink appends a flat window whose last fifth dips by depth on O1.
func fillBlink(buf *eeg.SampleBuffer, n int, depth float64) {
	for i := 0; i < n; i++ {
		var r eeg.Reading
		if i >= n*8/10 {
			r[eeg.O1] = -depth
		}
		buf.Append(r)
	}
}

// aimLeft makes the paddle want to move left with the ball coming down.
func aimLeft(g *game.Game) {
	g.SetBall(game.Ball{Pos: paddle.Vec{X: 400, Y: 300}, Vel: paddle.Vec{X: 0, Y: 4}})
	g.Paddle().OnBounce(paddle.Vec{X: 50, Y: 300}, paddle.Vec{X: 0, Y: 4})
}

func TestNewPipeline_Errors(t *testing.T) {
	eng := New()
	defer eng.Shutdown(context.Background())

	if _, err := NewPipeline(eng, DefaultConfig(), PlayMode, nil); !errors.Is(err, sensor.ErrSensorUnavailable) {
		t.Errorf("Expected ErrSensorUnavailable, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.FPS = 0
	src := sensor.NewSynthetic(testdata.NewGenerator(testdata.DefaultConfig(250)))
	if _, err := NewPipeline(eng, cfg, PlayMode, src); err == nil {
		t.Error("Expected invalid config to fail")
	}
}

func TestPipeline_PlayEmitsControlEvent(t *testing.T) {
	eng, p, buf := newTestPipeline(t, DefaultConfig(), PlayMode)
	ctx := context.Background()

	sub, err := eng.ExternalBus().Subscribe(ctx, event.Filter{Types: event.ControlTopics})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	fillBlink(buf, 100, 0.001)
	aimLeft(p.Game())
	startX := p.Game().Paddle().X()

	res := p.Step(ctx)
	if res.Control != blink.Left {
		t.Fatalf("Expected a left control event, got %s", res.Control)
	}
	if len(res.Blink) != 1 || res.Blink[0].Skipped {
		t.Fatalf("Expected one evaluated channel, got %+v", res.Blink)
	}
	if p.Game().Paddle().X() >= startX {
		t.Errorf("Paddle should have moved left from %v, now %v", startX, p.Game().Paddle().X())
	}

	select {
	case evt := <-sub.Events():
		if evt.Type != event.TypeControlLeft {
			t.Errorf("Expected %s, got %s", event.TypeControlLeft, evt.Type)
		}
		if evt.Frame != 1 || evt.SessionID != p.SessionID() {
			t.Errorf("Event not tagged with frame/session: %d %s", evt.Frame, evt.SessionID)
		}
		var payload event.ControlPayload
		if err := evt.DecodePayload(&payload, event.JSONCodec{}); err != nil {
			t.Fatalf("DecodePayload failed: %v", err)
		}
		if payload.Channel != "O1" || payload.Excursion <= payload.Threshold {
			t.Errorf("Unexpected payload: %+v", payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for control event")
	}

	// The debounce suppresses the same window on the next frame.
	if res := p.Step(ctx); res.Control != blink.None {
		t.Errorf("Expected no event during cooldown, got %s", res.Control)
	}

	m := eng.Metrics()
	if got := testutil.ToFloat64(m.ControlEvents.WithLabelValues("left")); got != 1 {
		t.Errorf("Expected 1 left control event metric, got %v", got)
	}
	if got := testutil.ToFloat64(m.FramesProcessed); got != 2 {
		t.Errorf("Expected 2 frames processed, got %v", got)
	}
}

func TestPipeline_SkipReportedOncePerRun(t *testing.T) {
	eng, p, buf := newTestPipeline(t, DefaultConfig(), PlayMode)
	ctx := context.Background()

	errSub, err := eng.ErrorBus().Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		res := p.Step(ctx)
		if !res.Skipped {
			t.Fatalf("Frame %d: expected a skipped window on an empty buffer", res.Frame)
		}
		if res.Control != blink.None {
			t.Fatalf("Frame %d: skipped frames must not emit control events", res.Frame)
		}
	}

	reports := drainErrors(errSub)
	if n := countCode(reports, event.CodeInsufficientWindow); n != 1 {
		t.Errorf("Expected 1 INSUFFICIENT_WINDOW report, got %d", n)
	}
	if got := testutil.ToFloat64(eng.Metrics().WindowsSkipped.WithLabelValues("blink", "insufficient_window")); got != 5 {
		t.Errorf("Expected 5 skipped windows, got %v", got)
	}

	testdata.NewGenerator(testdata.DefaultConfig(250)).Fill(buf, 100)
	if res := p.Step(ctx); res.Skipped {
		t.Error("Expected the window to be evaluated once the buffer fills")
	}
}

func TestPipeline_StalledSensorIdles(t *testing.T) {
	eng, p, buf := newTestPipeline(t, DefaultConfig(), PlayMode)
	ctx := context.Background()
	errSub, _ := eng.ErrorBus().Subscribe(ctx)

	fillBlink(buf, 100, 0.001)
	aimLeft(p.Game())

	events := 0
	for i := 0; i < 40; i++ {
		res := p.Step(ctx)
		if res.Control != blink.None {
			events++
		}
		if i > 0 && (!res.Skipped || len(res.Blink) != 1 || !res.Blink[0].Stale) {
			t.Fatalf("Frame %d: expected a stale skip, got %+v", res.Frame, res.Blink)
		}
	}
	if events != 1 {
		t.Errorf("Expected one control event over 40 stalled frames, got %d", events)
	}

	reports := drainErrors(errSub)
	if n := countCode(reports, event.CodeInsufficientWindow); n != 1 {
		t.Errorf("Expected the stall reported once, got %d", n)
	}
	if got := testutil.ToFloat64(eng.Metrics().WindowsSkipped.WithLabelValues("blink", skipStale)); got != 39 {
		t.Errorf("Expected 39 stale windows, got %v", got)
	}

	// New samples end the stall.
	fillBlink(buf, 4, 0)
	if res := p.Step(ctx); res.Skipped {
		t.Error("Expected the window to be evaluated once samples arrive")
	}
}

func TestPipeline_StalledCalibrationDoesNotFlush(t *testing.T) {
	cfg := calibrationConfig()
	cfg.Trial.Trials = 1
	_, p, buf := newTestPipeline(t, cfg, CalibrationMode)
	testdata.NewGenerator(testdata.DefaultConfig(cfg.SampleRate)).Fill(buf, cfg.SampleRate)

	flushes := 0
	err := NewLoop(p, nil).RunFrames(context.Background(), 1000, func(res FrameResult) bool {
		flushes += len(res.Flushes)
		return true
	})
	if err != nil {
		t.Fatalf("RunFrames failed: %v", err)
	}
	if flushes != 0 {
		t.Errorf("A buffer that never grew must not be flushed, got %d flushes", flushes)
	}
}

func TestPipeline_DisconnectedSkipsDetection(t *testing.T) {
	eng := New(WithMetrics(telemetry.InitMetrics(prometheus.NewRegistry())))
	defer eng.Shutdown(context.Background())
	ctx := context.Background()

	buf := eeg.NewSampleBuffer()
	src := &toggleSource{
		Synthetic: sensor.NewSynthetic(testdata.NewGenerator(testdata.DefaultConfig(250)), sensor.WithBuffer(buf)),
		status:    sensor.Disconnected,
	}
	p, err := NewPipeline(eng, DefaultConfig(), PlayMode, src)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}

	fillBlink(buf, 100, 0.001)
	aimLeft(p.Game())

	res := p.Step(ctx)
	if res.Control != blink.None || !res.Skipped || len(res.Blink) != 0 {
		t.Errorf("Expected detection to idle while disconnected, got %+v", res)
	}
	if got := testutil.ToFloat64(eng.Metrics().WindowsSkipped.WithLabelValues("blink", skipDisconnected)); got != 1 {
		t.Errorf("Expected 1 disconnected skip, got %v", got)
	}

	src.status = sensor.Acquiring
	if res := p.Step(ctx); res.Control != blink.Left {
		t.Errorf("Expected detection to resume with a left event, got %s", res.Control)
	}
}

func TestPipeline_SensorTransitions(t *testing.T) {
	eng := New()
	defer eng.Shutdown(context.Background())
	ctx := context.Background()

	src := &toggleSource{Synthetic: sensor.NewSynthetic(testdata.NewGenerator(testdata.DefaultConfig(250)))}
	p, err := NewPipeline(eng, DefaultConfig(), PlayMode, src)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	errSub, _ := eng.ErrorBus().Subscribe(ctx)

	src.status = sensor.Disconnected
	p.Step(ctx)
	p.Step(ctx)
	src.status = sensor.Acquiring
	p.Step(ctx)

	var signals []event.ControlSignal
	for _, evt := range drainErrors(errSub) {
		if evt.Code == event.CodeSensorUnavailable {
			signals = append(signals, evt.Signal)
		}
	}
	if len(signals) != 2 || signals[0] != event.SignalDegraded || signals[1] != event.SignalRecovered {
		t.Errorf("Expected [degraded recovered], got %v", signals)
	}
}

type toggleSource struct {
	*sensor.Synthetic
	status sensor.Status
}

func (s *toggleSource) Status() sensor.Status { return s.status }

func calibrationConfig() Config {
	cfg := DefaultConfig()
	cfg.Trial.Trials = 2
	cfg.Trial.Countdown = 100 * time.Millisecond
	cfg.Trial.Stimulus = 500 * time.Millisecond
	return cfg
}

func TestPipeline_CalibrationSession(t *testing.T) {
	cfg := calibrationConfig()
	eng, p, buf := newTestPipeline(t, cfg, CalibrationMode)
	ctx := context.Background()

	gen, err := testdata.ScenarioConfig(testdata.ScenarioSSVEP, cfg.SampleRate)
	if err != nil {
		t.Fatalf("ScenarioConfig failed: %v", err)
	}
	g := testdata.NewGenerator(gen)
	g.Fill(buf, 2*cfg.SampleRate)

	sub, err := eng.ExternalBus().Subscribe(ctx, event.Filter{Types: event.AllTopics})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	var (
		flushes  int
		flashing bool
		sides    []string
	)
	loop := NewLoop(p, NewFrameRecorder(16))
	err = loop.RunFrames(ctx, 1000, func(res FrameResult) bool {
		g.Fill(buf, 5)
		flushes += len(res.Flushes)
		if res.Draw.Flashing {
			flashing = true
		}
		if res.Trial.State == trial.Stimulus && len(sides) <= res.Trial.Trial {
			sides = append(sides, res.Trial.Side.String())
		}
		return true
	})
	if err != nil {
		t.Fatalf("RunFrames failed: %v", err)
	}

	if !p.Done() {
		t.Fatal("Expected the session to finish")
	}
	// 2 trials of 6 countdown and 30 stimulus frames.
	if p.Frame() != 72 {
		t.Errorf("Expected 72 frames, got %d", p.Frame())
	}
	// A 20 Hz patch flushes every third frame of stimulus.
	if flushes != 20 {
		t.Errorf("Expected 20 flushes, got %d", flushes)
	}
	if !flashing {
		t.Error("Expected the patch to flash during stimulus")
	}
	if strings.Join(sides, ",") != "right,left" {
		t.Errorf("Expected alternating sides right,left, got %v", sides)
	}
	if got := loop.Recorder().Len(); got != 16 {
		t.Errorf("Expected a full recorder, got %d", got)
	}

	counts := make(map[string]int)
	var summary event.SummaryPayload
	for {
		select {
		case evt := <-sub.Events():
			counts[evt.Type]++
			if evt.Type == event.TypeSessionSummary {
				if err := evt.DecodePayload(&summary, event.JSONCodec{}); err != nil {
					t.Fatalf("DecodePayload failed: %v", err)
				}
			}
			continue
		default:
		}
		break
	}

	if counts[event.TypeTrialStarted] != 2 || counts[event.TypeTrialCompleted] != 2 {
		t.Errorf("Expected 2 started and 2 completed trials, got %v", counts)
	}
	if counts[event.TypeObservation] != 20 {
		t.Errorf("Expected 20 observations, got %d", counts[event.TypeObservation])
	}
	if counts[event.TypeSessionSummary] != 1 || len(summary.Trials) != 2 {
		t.Errorf("Expected one summary of 2 trials, got %d / %+v", counts[event.TypeSessionSummary], summary)
	}
	if got := testutil.ToFloat64(eng.Metrics().TrialsCompleted); got != 2 {
		t.Errorf("Expected 2 completed trials, got %v", got)
	}
}

func TestPipeline_NoFlickerStillFlushes(t *testing.T) {
	cfg := calibrationConfig()
	cfg.Trial.Trials = 1
	cfg.Stimulus.Condition = "no_flicker"
	_, p, buf := newTestPipeline(t, cfg, CalibrationMode)
	g := testdata.NewGenerator(testdata.DefaultConfig(cfg.SampleRate))
	g.Fill(buf, cfg.SampleRate)

	flushes := 0
	err := NewLoop(p, nil).RunFrames(context.Background(), 1000, func(res FrameResult) bool {
		g.Fill(buf, 5)
		if res.Draw.Flashing {
			t.Fatalf("Frame %d: no_flicker must not flash", res.Frame)
		}
		flushes += len(res.Flushes)
		return true
	})
	if err != nil {
		t.Fatalf("RunFrames failed: %v", err)
	}
	if flushes != 10 {
		t.Errorf("Expected 10 flushes without flicker, got %d", flushes)
	}
}

func TestPipeline_FrameStream(t *testing.T) {
	eng, p, _ := newTestPipeline(t, DefaultConfig(), PlayMode)
	ctx := context.Background()

	sub, err := eng.InternalBus().Subscribe(ctx, event.Filter{Types: []string{event.TypeFrame}})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	p.Step(ctx)

	select {
	case evt := <-sub.Events():
		var fp FramePayload
		if err := evt.DecodePayload(&fp, event.JSONCodec{}); err != nil {
			t.Fatalf("DecodePayload failed: %v", err)
		}
		if fp.Frame != 1 || !fp.Skipped || fp.Gauge != 100 {
			t.Errorf("Unexpected frame payload: %+v", fp)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for frame record")
	}
}

func TestLoop_RunStopsOnCallback(t *testing.T) {
	_, p, _ := newTestPipeline(t, DefaultConfig(), PlayMode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := NewLoop(p, nil).Run(ctx, func(res FrameResult) bool {
		return res.Frame < 3
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if p.Frame() != 3 {
		t.Errorf("Expected 3 frames, got %d", p.Frame())
	}
}

func TestLoop_RunCancelled(t *testing.T) {
	_, p, _ := newTestPipeline(t, DefaultConfig(), PlayMode)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := NewLoop(p, nil).Run(ctx, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}

func TestLoop_PanicIsReported(t *testing.T) {
	eng, p, _ := newTestPipeline(t, DefaultConfig(), PlayMode)
	errSub, _ := eng.ErrorBus().Subscribe(context.Background())

	err := NewLoop(p, nil).RunFrames(context.Background(), 5, func(FrameResult) bool {
		panic("renderer exploded")
	})
	if err == nil || !strings.Contains(err.Error(), "renderer exploded") {
		t.Fatalf("Expected the panic as an error, got %v", err)
	}
	if n := countCode(drainErrors(errSub), event.CodePanic); n != 1 {
		t.Errorf("Expected 1 PANIC report, got %d", n)
	}
}

func TestFrameRecorder_Dump(t *testing.T) {
	_, p, _ := newTestPipeline(t, DefaultConfig(), PlayMode)
	rec := NewFrameRecorder(4)

	if err := NewLoop(p, rec).RunFrames(context.Background(), 6, nil); err != nil {
		t.Fatalf("RunFrames failed: %v", err)
	}

	frames := rec.Snapshot()
	if len(frames) != 4 {
		t.Fatalf("Expected 4 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if want := int64(i + 3); f.Result.Frame != want {
			t.Errorf("Frame %d: expected %d, got %d", i, want, f.Result.Frame)
		}
	}

	var out bytes.Buffer
	if err := rec.Dump(&out); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	for _, want := range []string{"Last 4 frames", "[6]", "skipped", "Goroutine Profile"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q in dump", want)
		}
	}
}

func TestFrameRecorder_Empty(t *testing.T) {
	var out bytes.Buffer
	if err := NewFrameRecorder(0).Dump(&out); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if !strings.Contains(out.String(), "No frames recorded") {
		t.Error("Expected the empty marker")
	}
}

func drainErrors(sub *event.ErrorSubscription) []event.ErrorEvent {
	var out []event.ErrorEvent
	for {
		select {
		case evt := <-sub.Events():
			out = append(out, evt)
		case <-time.After(20 * time.Millisecond):
			return out
		}
	}
}

func countCode(events []event.ErrorEvent, code string) int {
	n := 0
	for _, evt := range events {
		if evt.Code == code {
			n++
		}
	}
	return n
}
