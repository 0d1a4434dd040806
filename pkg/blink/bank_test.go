package blink

import (
	"context"
	"testing"

	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
)

func TestBank_RawDipTriggersRightOnce(t *testing.T) {
	ctx := context.Background()
	buf := eeg.NewSampleBuffer()
	for i := 0; i < 100; i++ {
		v := 0.0
		if i >= 80 && i < 90 {
			v = -0.0001
		}
		buf.AppendChannel(eeg.O1, v)
	}

	bank := NewBank(DefaultConfig(), 100, eeg.O1)

	res := bank.Step(ctx, buf, ready(Right))
	if res.Event != Right {
		t.Fatalf("Expected Right, got %s (excursion %v)", res.Event, res.Channels[0].Excursion)
	}

	for frame := 1; frame <= 9; frame++ {
		if res := bank.Step(ctx, buf, ready(Right)); res.Event != None {
			t.Fatalf("Frame %d: expected silence, got %s", frame, res.Event)
		}
	}
}

func TestBank_SkipsShortChannels(t *testing.T) {
	buf := eeg.NewSampleBuffer()
	for i := 0; i < 100; i++ {
		buf.AppendChannel(eeg.O1, 0)
	}
	for i := 0; i < 20; i++ {
		buf.AppendChannel(eeg.O2, 0)
	}

	bank := NewBank(DefaultConfig(), 100, eeg.O1, eeg.O2)
	res := bank.Step(context.Background(), buf, ready(Right))

	if len(res.Channels) != 2 {
		t.Fatalf("Expected 2 channel results, got %d", len(res.Channels))
	}
	if res.Channels[0].Skipped {
		t.Error("O1 should not be skipped")
	}
	if !res.Channels[1].Skipped {
		t.Error("O2 should be skipped with 20 samples")
	}
	if res.Event != None {
		t.Errorf("Flat signal must not fire, got %s", res.Event)
	}
}

func TestBank_DefaultsToO1(t *testing.T) {
	bank := NewBank(DefaultConfig(), 100)
	if chs := bank.Channels(); len(chs) != 1 || chs[0] != eeg.O1 {
		t.Errorf("Expected [O1], got %v", chs)
	}
}

func TestBank_StaleWindowIsNotReplayed(t *testing.T) {
	ctx := context.Background()
	buf := eeg.NewSampleBuffer()
	for i := 0; i < 100; i++ {
		v := 0.0
		if i >= 80 && i < 90 {
			v = -0.0001
		}
		buf.AppendChannel(eeg.O1, v)
	}

	bank := NewBank(DefaultConfig(), 100, eeg.O1)
	events := 0
	for frame := 0; frame < 40; frame++ {
		res := bank.Step(ctx, buf, ready(Right))
		if res.Event != None {
			events++
		}
		if frame > 0 && !res.Channels[0].Stale {
			t.Fatalf("Frame %d: expected the unchanged window to be stale", frame)
		}
	}
	if events != 1 {
		t.Errorf("Expected 1 event from one window, got %d", events)
	}

	// The cooldown kept ticking while stale, so a new dip fires at once.
	for i := 0; i < 100; i++ {
		v := 0.0
		if i >= 80 && i < 90 {
			v = -0.0001
		}
		buf.AppendChannel(eeg.O1, v)
	}
	if res := bank.Step(ctx, buf, ready(Right)); res.Event != Right {
		t.Errorf("Expected Right once new samples arrive, got %s", res.Event)
	}
}
