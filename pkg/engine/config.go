package engine

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BYTE-6D65/blinkbreak/pkg/blink"
	"github.com/BYTE-6D65/blinkbreak/pkg/calibration"
	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
	"github.com/BYTE-6D65/blinkbreak/pkg/emitter"
	"github.com/BYTE-6D65/blinkbreak/pkg/game"
	"github.com/BYTE-6D65/blinkbreak/pkg/ssvep"
	"github.com/BYTE-6D65/blinkbreak/pkg/stimulus"
	"github.com/BYTE-6D65/blinkbreak/pkg/trial"
)

// Config holds every tunable of the pipeline.
// Values can be set via:
//  1. Code or command-line flags
//  2. Environment variables (BLINKBREAK_*)
//  3. A YAML file (LoadFile)
//
// Precedence: Flags > Env Vars > Config File > Defaults
type Config struct {
	FPS        int `yaml:"fps"`
	SampleRate int `yaml:"sample_rate"`

	// WindowSize is the number of samples the drift corrector fits.
	WindowSize int `yaml:"window_size"`

	Blink    BlinkConfig    `yaml:"blink"`
	Stimulus StimulusConfig `yaml:"stimulus"`
	Trial    TrialConfig    `yaml:"trial"`

	// Margin is the peak-to-peak difference below which a lateral flush
	// is indeterminate.
	Margin float64 `yaml:"margin"`

	Game       game.Config `yaml:"game"`
	SingleShot bool        `yaml:"single_shot"`

	Sensor SensorConfig `yaml:"sensor"`

	// LogDir receives calibration plots/ and logs/.
	LogDir  string `yaml:"log_dir"`
	Detrend bool   `yaml:"detrend"`

	MQTT          MQTTConfig `yaml:"mqtt"`
	WebSocketAddr string     `yaml:"websocket_addr"`
	MetricsAddr   string     `yaml:"metrics_addr"`

	RecorderSize       int `yaml:"recorder_size"`
	ErrorBusBufferSize int `yaml:"error_bus_buffer"`
}

// BlinkConfig tunes blink detection.
type BlinkConfig struct {
	Threshold      float64  `yaml:"threshold"`
	DebounceFrames int      `yaml:"debounce_frames"`
	Vote           string   `yaml:"vote"`
	Channels       []string `yaml:"channels"`
}

// StimulusConfig picks the flicker layout. A zero OnFrames means period/2.
type StimulusConfig struct {
	Layout    string         `yaml:"layout"`
	Center    stimulus.Patch `yaml:"center"`
	Left      stimulus.Patch `yaml:"left"`
	Right     stimulus.Patch `yaml:"right"`
	Condition string         `yaml:"condition"`
}

// TrialConfig describes calibration sessions in wall-clock units; they are
// converted to frames at the configured FPS.
type TrialConfig struct {
	Trials    int           `yaml:"trials"`
	Countdown time.Duration `yaml:"countdown"`
	Stimulus  time.Duration `yaml:"stimulus"`
	FirstSide string        `yaml:"first_side"`

	Basic          bool          `yaml:"basic"`
	BasicCountdown time.Duration `yaml:"basic_countdown"`
	BasicDuration  time.Duration `yaml:"basic_duration"`
}

// SensorConfig selects the acquisition source.
type SensorConfig struct {
	// Kind is "synthetic", "serial" or "stdin".
	Kind          string        `yaml:"kind"`
	Port          string        `yaml:"port"`
	BaudRate      int           `yaml:"baud_rate"`
	Scenario      string        `yaml:"scenario"`
	SessionLength time.Duration `yaml:"session_length"`
}

// MQTTConfig enables the MQTT emitter.
type MQTTConfig struct {
	Enabled            bool `yaml:"enabled"`
	emitter.MQTTConfig `yaml:",inline"`
}

// DefaultConfig returns the constants the game was built around: a 60 fps
// render loop over a 250 Hz headband, a 100 sample blink window and a
// right-side 20 Hz patch.
func DefaultConfig() Config {
	return Config{
		FPS:        60,
		SampleRate: 250,
		WindowSize: 100,

		Blink: BlinkConfig{
			Threshold:      blink.DefaultThreshold,
			DebounceFrames: blink.DefaultDebounceFrames,
			Vote:           "any",
			Channels:       []string{"O1"},
		},
		Stimulus: StimulusConfig{
			Layout:    "right",
			Center:    stimulus.NewPatch(2),
			Left:      stimulus.NewPatch(4),
			Right:     stimulus.Patch{Period: 3, OnFrames: 1},
			Condition: "flicker",
		},
		Trial: TrialConfig{
			Trials:         15,
			Countdown:      time.Second,
			Stimulus:       2 * time.Second,
			FirstSide:      "right",
			BasicCountdown: 5 * time.Second,
			BasicDuration:  5 * time.Minute,
		},

		Game: game.DefaultConfig(),

		Sensor: SensorConfig{
			Kind:          "synthetic",
			BaudRate:      115200,
			Scenario:      "blinks",
			SessionLength: 900 * time.Second,
		},

		LogDir: "testing_logs",

		MQTT:          MQTTConfig{MQTTConfig: emitter.DefaultMQTTConfig()},
		WebSocketAddr: "",
		MetricsAddr:   "",

		RecorderSize:       300,
		ErrorBusBufferSize: 32,
	}
}

// LoadFile reads a YAML file on top of the defaults.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv returns the defaults overridden by BLINKBREAK_* variables.
func LoadFromEnv() (Config, error) {
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from BLINKBREAK_* variables. Values that do not
// parse are ignored.
func (c *Config) ApplyEnv() {
	envInt("BLINKBREAK_FPS", &c.FPS)
	envInt("BLINKBREAK_SAMPLE_RATE", &c.SampleRate)
	envInt("BLINKBREAK_WINDOW_SIZE", &c.WindowSize)

	if v := os.Getenv("BLINKBREAK_BLINK_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Blink.Threshold = f
		}
	}
	envInt("BLINKBREAK_DEBOUNCE_FRAMES", &c.Blink.DebounceFrames)
	if v := os.Getenv("BLINKBREAK_BLINK_VOTE"); v != "" {
		c.Blink.Vote = v
	}
	if v := os.Getenv("BLINKBREAK_BLINK_CHANNELS"); v != "" {
		c.Blink.Channels = strings.Split(v, ",")
	}

	if v := os.Getenv("BLINKBREAK_LAYOUT"); v != "" {
		c.Stimulus.Layout = v
	}
	if v := os.Getenv("BLINKBREAK_CONDITION"); v != "" {
		c.Stimulus.Condition = v
	}
	envInt("BLINKBREAK_CENTER_PERIOD", &c.Stimulus.Center.Period)
	envInt("BLINKBREAK_LEFT_PERIOD", &c.Stimulus.Left.Period)
	envInt("BLINKBREAK_RIGHT_PERIOD", &c.Stimulus.Right.Period)

	envInt("BLINKBREAK_TRIALS", &c.Trial.Trials)
	envDuration("BLINKBREAK_TRIAL_COUNTDOWN", &c.Trial.Countdown)
	envDuration("BLINKBREAK_TRIAL_STIMULUS", &c.Trial.Stimulus)
	envDuration("BLINKBREAK_BASIC_DURATION", &c.Trial.BasicDuration)

	if v := os.Getenv("BLINKBREAK_MARGIN"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			c.Margin = f
		}
	}
	if v := os.Getenv("BLINKBREAK_SINGLE_SHOT"); v != "" {
		c.SingleShot = v == "true" || v == "1"
	}
	envInt("BLINKBREAK_DIFFICULTY", &c.Game.Difficulty)

	if v := os.Getenv("BLINKBREAK_SENSOR"); v != "" {
		c.Sensor.Kind = v
	}
	if v := os.Getenv("BLINKBREAK_SERIAL_PORT"); v != "" {
		c.Sensor.Port = v
	}
	envInt("BLINKBREAK_SERIAL_BAUD", &c.Sensor.BaudRate)
	envDuration("BLINKBREAK_SESSION_LENGTH", &c.Sensor.SessionLength)

	if v := os.Getenv("BLINKBREAK_LOG_DIR"); v != "" {
		c.LogDir = v
	}
	if v := os.Getenv("BLINKBREAK_MQTT_BROKER"); v != "" {
		c.MQTT.Enabled = true
		c.MQTT.Broker = v
	}
	if v := os.Getenv("BLINKBREAK_WEBSOCKET_ADDR"); v != "" {
		c.WebSocketAddr = v
	}
	if v := os.Getenv("BLINKBREAK_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	envInt("BLINKBREAK_RECORDER_SIZE", &c.RecorderSize)
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

// Validate rejects configurations the frame loop cannot run. It is called
// once at startup; a failure is fatal.
func (c *Config) Validate() error {
	if c.FPS <= 0 || c.SampleRate <= 0 {
		return fmt.Errorf("fps (%d) and sample rate (%d) must be positive", c.FPS, c.SampleRate)
	}
	if c.SampleRate < c.FPS {
		return fmt.Errorf("sample rate %d Hz is below the frame rate %d", c.SampleRate, c.FPS)
	}
	if c.WindowSize < 2 {
		return fmt.Errorf("window size must be at least 2, got %d", c.WindowSize)
	}
	if c.Blink.DebounceFrames < 1 {
		return fmt.Errorf("debounce must last at least one frame, got %d", c.Blink.DebounceFrames)
	}
	if _, err := blink.ParseVote(c.Blink.Vote); err != nil {
		return err
	}
	if _, err := c.BlinkChannels(); err != nil {
		return err
	}
	if _, err := calibration.ParseCondition(c.Stimulus.Condition); err != nil {
		return err
	}

	layout, err := c.Layout()
	if err != nil {
		return err
	}
	if err := stimulus.Validate(layout, c.FPS); err != nil {
		return err
	}
	for _, sp := range layout.Patches() {
		if _, err := ssvep.NewReductionState(c.SampleRate, c.FPS, sp.Patch.Frequency(c.FPS)); err != nil {
			return fmt.Errorf("%s patch: %w", sp.Side, err)
		}
	}

	if _, err := c.TrialConfig(layout); err != nil {
		return err
	}
	if c.Margin < 0 {
		return fmt.Errorf("margin must not be negative, got %g", c.Margin)
	}
	if c.Game.Geometry.Step <= 0 || c.Game.Geometry.Width <= 0 {
		return errors.New("game geometry needs a positive width and paddle step")
	}
	return nil
}

// Layout builds the stimulus layout.
func (c *Config) Layout() (stimulus.Layout, error) {
	return stimulus.NewLayout(c.Stimulus.Layout, c.Stimulus.Center, c.Stimulus.Left, c.Stimulus.Right)
}

// Condition returns the calibration condition.
func (c *Config) Condition() calibration.Condition {
	cond, _ := calibration.ParseCondition(c.Stimulus.Condition)
	return cond
}

// BlinkDetector returns the detector configuration.
func (c *Config) BlinkDetector() blink.Config {
	vote, _ := blink.ParseVote(c.Blink.Vote)
	return blink.Config{
		Threshold:      c.Blink.Threshold,
		DebounceFrames: c.Blink.DebounceFrames,
		Vote:           vote,
	}
}

// BlinkChannels parses the monitored channel names.
func (c *Config) BlinkChannels() ([]eeg.Channel, error) {
	out := make([]eeg.Channel, 0, len(c.Blink.Channels))
	for _, name := range c.Blink.Channels {
		ch, err := eeg.ParseChannel(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("blink channels: %w", err)
		}
		out = append(out, ch)
	}
	return out, nil
}

// TrialConfig converts the session timing to frames. Basic mode cues the
// layout's own side; alternating trials start on FirstSide.
func (c *Config) TrialConfig(layout stimulus.Layout) (trial.Config, error) {
	frames := func(d time.Duration) int {
		return int(d.Seconds() * float64(c.FPS))
	}

	if c.Trial.Basic {
		side := stimulus.Center
		if ps := layout.Patches(); len(ps) == 1 {
			side = ps[0].Side
		}
		cfg := trial.BasicConfig(c.FPS, side)
		cfg.CountdownFrames = frames(c.Trial.BasicCountdown)
		cfg.StimulusFrames = frames(c.Trial.BasicDuration)
		return cfg, cfg.Validate()
	}

	first, err := stimulus.ParseSide(c.Trial.FirstSide)
	if err != nil {
		return trial.Config{}, fmt.Errorf("trial: %w", err)
	}
	cfg := trial.Config{
		Trials:          c.Trial.Trials,
		CountdownFrames: frames(c.Trial.Countdown),
		StimulusFrames:  frames(c.Trial.Stimulus),
		FirstSide:       first,
		Alternate:       first != stimulus.Center,
	}
	return cfg, cfg.Validate()
}

// String returns a human-readable summary of the configuration.
func (c *Config) String() string {
	mode := "trials"
	if c.Trial.Basic {
		mode = "basic"
	}
	return fmt.Sprintf(`blinkbreak configuration:
  Timing:
    Render:  %d fps
    Sensor:  %d Hz (%s)
    Window:  %d samples

  Blink:
    Threshold: %g
    Debounce:  %d frames
    Channels:  %s (%s)

  Stimulus:
    Layout:    %s
    Condition: %s
    Periods:   center=%d left=%d right=%d

  Calibration:
    Mode:   %s
    Trials: %d x (%s + %s)
    Logs:   %s

  Outputs:
    MQTT:      %s
    WebSocket: %s
    Metrics:   %s
`,
		c.FPS,
		c.SampleRate, c.Sensor.Kind,
		c.WindowSize,
		c.Blink.Threshold,
		c.Blink.DebounceFrames,
		strings.Join(c.Blink.Channels, ","), c.Blink.Vote,
		c.Stimulus.Layout,
		c.Stimulus.Condition,
		c.Stimulus.Center.Period, c.Stimulus.Left.Period, c.Stimulus.Right.Period,
		mode,
		c.Trial.Trials, c.Trial.Countdown, c.Trial.Stimulus,
		c.LogDir,
		formatOutput(c.MQTT.Enabled, c.MQTT.Broker),
		formatOutput(c.WebSocketAddr != "", c.WebSocketAddr),
		formatOutput(c.MetricsAddr != "", c.MetricsAddr),
	)
}

func formatOutput(enabled bool, addr string) string {
	if !enabled {
		return "disabled"
	}
	return addr
}
