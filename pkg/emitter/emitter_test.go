package emitter

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-json-experiment/json"
	"github.com/gorilla/websocket"

	"github.com/BYTE-6D65/blinkbreak/pkg/blink"
	"github.com/BYTE-6D65/blinkbreak/pkg/calibration"
	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
	"github.com/BYTE-6D65/blinkbreak/pkg/event"
	"github.com/BYTE-6D65/blinkbreak/pkg/ssvep"
	"github.com/BYTE-6D65/blinkbreak/pkg/stimulus"
	"github.com/BYTE-6D65/blinkbreak/pkg/trial"
)

// fakeToken is an already completed mqtt.Token.
type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                       { return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}            { return t.done }
func (t *fakeToken) Error() error                     { return t.err }

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu           sync.Mutex
	messages     []published
	err          error
	disconnected bool
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{topic: topic, payload: payload.([]byte)})
	return newFakeToken(f.err)
}

func (f *fakePublisher) Disconnect(quiesce uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func controlEvent() event.Event {
	return *event.MustEvent(event.TypeControlLeft, "blink", event.ControlPayload{Direction: blink.Left.String(), Channel: "O1"})
}

func TestMQTTEmitter_Publish(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMQTTEmitter(DefaultMQTTConfig(), pub, nil)

	if err := m.Emit(context.Background(), controlEvent()); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(pub.messages))
	}
	if pub.messages[0].topic != "blinkbreak/bci/control/left" {
		t.Errorf("Unexpected topic %s", pub.messages[0].topic)
	}

	var got event.Event
	if err := json.Unmarshal(pub.messages[0].payload, &got); err != nil {
		t.Fatalf("Payload is not an envelope: %v", err)
	}
	var p event.ControlPayload
	if err := got.DecodePayload(&p, event.JSONCodec{}); err != nil || p.Direction != "left" {
		t.Errorf("Unexpected payload %+v (%v)", p, err)
	}

	m.Close()
	if !pub.disconnected {
		t.Error("Close should disconnect")
	}
	if err := m.Emit(context.Background(), controlEvent()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestMQTTEmitter_PublishError(t *testing.T) {
	boom := errors.New("broker gone")
	m := NewMQTTEmitter(DefaultMQTTConfig(), &fakePublisher{err: boom}, nil)
	if err := m.Emit(context.Background(), controlEvent()); !errors.Is(err, boom) {
		t.Errorf("Expected broker error, got %v", err)
	}
}

func TestMQTTEmitter_Topic(t *testing.T) {
	cfg := DefaultMQTTConfig()
	cfg.TopicPrefix = ""
	m := NewMQTTEmitter(cfg, &fakePublisher{}, nil)
	if got := m.Topic(event.TypeSessionSummary); got != "bci/session/summary" {
		t.Errorf("Unexpected topic %s", got)
	}
}

func TestCalibrationEmitter(t *testing.T) {
	dir := t.TempDir()
	session, err := calibration.NewSession(calibration.Config{
		Dir:        dir,
		Mode:       calibration.TrialMode,
		Layout:     stimulus.CenterLayout{Patch: stimulus.NewPatch(4)},
		SampleRate: 250,
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	c := NewCalibrationEmitter(session)
	ctx := context.Background()

	flush := ssvep.SideFlush{
		Route: ssvep.RouteFor(stimulus.Center),
		Flush: ssvep.Flush{Index: 1, Frequency: 15, Observations: []ssvep.Observation{
			{Channel: eeg.O1, PeakToPeak: 0.5, Samples: []float64{0.5, 0}},
		}},
	}
	obs := event.MustEvent(event.TypeObservation, "ssvep", event.NewObservation(flush, ssvep.Indeterminate))
	if err := c.Emit(ctx, *obs); err != nil {
		t.Fatalf("Emit observation failed: %v", err)
	}

	log := trial.NewLog(1)
	log.Record(log.Begin(stimulus.Right), ssvep.AttendRight)
	summary := event.MustEvent(event.TypeSessionSummary, "trial",
		event.NewSummaryPayload(trial.Summarize(log), log.Entries()))
	if err := c.Emit(ctx, *summary); err != nil {
		t.Fatalf("Emit summary failed: %v", err)
	}

	if err := c.Emit(ctx, controlEvent()); !errors.Is(err, ErrUnsupportedEvent) {
		t.Errorf("Expected ErrUnsupportedEvent, got %v", err)
	}
	bad := event.Event{Type: event.TypeObservation, Data: []byte(`{"side":"up"}`)}
	if err := c.Emit(ctx, bad); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Expected ErrInvalidPayload, got %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	plot, err := os.ReadFile(filepath.Join(dir, "plots", "occ_1_trial_flicker.txt"))
	if err != nil || string(plot) != "0.5 0\n" {
		t.Errorf("Unexpected plot file %q (%v)", plot, err)
	}
	report, err := os.ReadFile(session.ReportPath())
	if err != nil || !strings.Contains(string(report), "Test #1 (right):\n\tcorrect: 1.00") {
		t.Errorf("Unexpected report %q (%v)", report, err)
	}
}

func TestWebSocketEmitter_Broadcast(t *testing.T) {
	ws := NewWebSocketEmitter(nil)
	srv := httptest.NewServer(ws)
	defer srv.Close()
	defer ws.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for ws.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Viewer never registered")
		}
		time.Sleep(time.Millisecond)
	}

	frame := *event.MustEvent(event.TypeFrame, "engine", map[string]int{"frame": 7})
	if err := ws.Emit(context.Background(), frame); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	var got event.Event
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("Bad envelope: %v", err)
	}
	if got.Type != event.TypeFrame || got.ID != frame.ID {
		t.Errorf("Unexpected event %+v", got)
	}

	ws.Close()
	if err := ws.Emit(context.Background(), frame); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
