package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BYTE-6D65/blinkbreak/pkg/clock"
	"github.com/BYTE-6D65/blinkbreak/pkg/event"
)

// FrameFunc receives every stepped frame. Returning false stops the loop.
type FrameFunc func(FrameResult) bool

// Loop drives a Pipeline at the render frame rate.
type Loop struct {
	pipeline *Pipeline
	recorder *FrameRecorder
	period   time.Duration
}

// NewLoop creates a loop for p. A nil recorder disables recording.
func NewLoop(p *Pipeline, recorder *FrameRecorder) *Loop {
	return &Loop{
		pipeline: p,
		recorder: recorder,
		period:   clock.FramePeriod(p.cfg.FPS),
	}
}

// Recorder returns the frame recorder, or nil.
func (l *Loop) Recorder() *FrameRecorder {
	return l.recorder
}

// Run steps the pipeline once per frame period until ctx is cancelled, the
// calibration session finishes or onFrame returns false. A panic inside a
// step is reported as PANIC and ends the run with an error.
func (l *Loop) Run(ctx context.Context, onFrame FrameFunc) error {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	logger := l.pipeline.engine.Logger()
	logger.Info("[loop] running",
		zap.String("mode", l.pipeline.Mode().String()),
		zap.Duration("period", l.period))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			more, err := l.step(ctx, onFrame)
			if err != nil {
				return err
			}
			if !more {
				logger.Info("[loop] stopped", zap.Int64("frames", l.pipeline.Frame()))
				return nil
			}
		}
	}
}

// RunFrames steps the pipeline n times without waiting between frames, for
// offline replay of recorded sessions.
func (l *Loop) RunFrames(ctx context.Context, n int, onFrame FrameFunc) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		more, err := l.step(ctx, onFrame)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func (l *Loop) step(ctx context.Context, onFrame FrameFunc) (more bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			frame := l.pipeline.Frame()
			l.pipeline.engine.ReportError(event.NewErrorEvent(event.CriticalSeverity, event.CodePanic,
				"loop", fmt.Sprint(r)).WithFrame(frame).WithRecoverable(false))
			more, err = false, fmt.Errorf("frame %d panicked: %v", frame, r)
		}
	}()

	res := l.pipeline.Step(ctx)
	if l.recorder != nil {
		l.recorder.Record(res)
	}
	if onFrame != nil && !onFrame(res) {
		return false, nil
	}
	return !l.pipeline.Done(), nil
}
