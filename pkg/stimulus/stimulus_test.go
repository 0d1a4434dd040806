package stimulus

import (
	"errors"
	"testing"
)

func TestPatch_Frequency(t *testing.T) {
	tests := []struct {
		period int
		want   int
	}{
		{1, 60},
		{2, 30},
		{3, 20},
		{4, 15},
		{0, 0},
	}
	for _, tt := range tests {
		if got := NewPatch(tt.period).Frequency(60); got != tt.want {
			t.Errorf("period %d: frequency %d, want %d", tt.period, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		layout  Layout
		wantErr bool
	}{
		{"center period 3", CenterLayout{Patch: NewPatch(3)}, false},
		{"center period 7", CenterLayout{Patch: NewPatch(7)}, true},
		{"bilateral ok", BilateralLayout{Left: NewPatch(3), Right: NewPatch(4)}, false},
		{"bilateral bad right", BilateralLayout{Left: NewPatch(3), Right: NewPatch(7)}, true},
		{"on exceeds period", LeftLayout{Patch: Patch{Period: 2, OnFrames: 3}}, true},
		{"zero period", RightLayout{Patch: Patch{}}, true},
		{"nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.layout, 60)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidLayout) {
				t.Errorf("Expected ErrInvalidLayout, got %v", err)
			}
		})
	}
}

func TestValidate_LayoutErrorDetails(t *testing.T) {
	err := Validate(RightLayout{Patch: NewPatch(7)}, 60)

	var le *LayoutError
	if !errors.As(err, &le) {
		t.Fatalf("Expected *LayoutError, got %T", err)
	}
	if le.Side != Right || le.Period != 7 || le.FPS != 60 {
		t.Errorf("Unexpected error fields: %+v", le)
	}
}

func TestNewLayout(t *testing.T) {
	l, err := NewLayout("center", Patch{Period: 4}, Patch{}, Patch{})
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}
	c, ok := l.(CenterLayout)
	if !ok {
		t.Fatalf("Expected CenterLayout, got %T", l)
	}
	if c.Patch.OnFrames != 2 {
		t.Errorf("Expected default on-duration 2, got %d", c.Patch.OnFrames)
	}
	if Lateral(l) {
		t.Error("Center layout is not lateral")
	}

	l, err = NewLayout("bilateral", Patch{}, NewPatch(3), NewPatch(4))
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}
	patches := l.Patches()
	if len(patches) != 2 || patches[0].Side != Left || patches[1].Side != Right {
		t.Errorf("Unexpected bilateral patches: %+v", patches)
	}

	if _, err := NewLayout("diagonal", Patch{}, Patch{}, Patch{}); err == nil {
		t.Error("Expected error for unknown layout")
	}
}

func TestScheduler_DrawSequence(t *testing.T) {
	s, err := NewScheduler(CenterLayout{Patch: Patch{Period: 3, OnFrames: 1}}, 60, true)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	want := []Color{Background, Pulse, Pulse, Background, Pulse, Pulse, Background}
	for i, w := range want {
		ds := s.Step()
		if got := ds.Color(Center); got != w {
			t.Errorf("Frame %d: got %s, want %s", i+1, got, w)
		}
		if ds.Color(Left) != Hidden || ds.Color(Right) != Hidden {
			t.Errorf("Frame %d: side patches should be hidden", i+1)
		}
	}
}

func TestScheduler_IndependentSides(t *testing.T) {
	s, err := NewScheduler(BilateralLayout{
		Left:  Patch{Period: 2, OnFrames: 1},
		Right: Patch{Period: 4, OnFrames: 2},
	}, 60, true)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	var left, right []Color
	for i := 0; i < 8; i++ {
		ds := s.Step()
		left = append(left, ds.Color(Left))
		right = append(right, ds.Color(Right))
	}

	for i, c := range left {
		want := Background
		if i%2 == 1 {
			want = Pulse
		}
		if c != want {
			t.Errorf("Left frame %d: got %s, want %s", i+1, c, want)
		}
	}
	for i, c := range right {
		want := Background
		if i%4 >= 2 {
			want = Pulse
		}
		if c != want {
			t.Errorf("Right frame %d: got %s, want %s", i+1, c, want)
		}
	}

	if s.Frequency(Left) != 30 || s.Frequency(Right) != 15 || s.Frequency(Center) != 0 {
		t.Errorf("Unexpected frequencies %d/%d/%d", s.Frequency(Left), s.Frequency(Right), s.Frequency(Center))
	}
}

func TestScheduler_Disabled(t *testing.T) {
	s, err := NewScheduler(CenterLayout{Patch: NewPatch(2)}, 60, false)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		ds := s.Step()
		if ds.Flashing || ds.Color(Center) != Background {
			t.Fatalf("Frame %d: disabled scheduler must hold background", i+1)
		}
	}
}

func TestScheduler_Reset(t *testing.T) {
	s, _ := NewScheduler(CenterLayout{Patch: Patch{Period: 3, OnFrames: 1}}, 60, true)
	s.Step()
	s.Step()
	s.Reset()
	if ds := s.Step(); ds.Frame != 1 || ds.Color(Center) != Background {
		t.Errorf("Expected cycle to restart, got frame %d color %s", ds.Frame, ds.Color(Center))
	}
}

func TestSide(t *testing.T) {
	if Left.Opposite() != Right || Right.Opposite() != Left || Center.Opposite() != Center {
		t.Error("Opposite mapping wrong")
	}
	if s, err := ParseSide("RIGHT"); err != nil || s != Right {
		t.Errorf("ParseSide(RIGHT) = %v, %v", s, err)
	}
}
