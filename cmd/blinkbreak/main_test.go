package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/BYTE-6D65/blinkbreak/pkg/engine"
)

func parseArgs(t *testing.T, args ...string) (*cobra.Command, *options) {
	t.Helper()

	opts := &options{}
	cmd, rest, err := newRootCmd(opts).Find(args)
	if err != nil {
		t.Fatalf("Find(%v) failed: %v", args, err)
	}
	if err := cmd.ParseFlags(rest); err != nil {
		t.Fatalf("ParseFlags(%v) failed: %v", rest, err)
	}
	return cmd, opts
}

func TestLoadConfig_Defaults(t *testing.T) {
	cmd, opts := parseArgs(t, "play")

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	want := engine.DefaultConfig()
	if cfg.Sensor.Kind != want.Sensor.Kind {
		t.Errorf("Expected sensor %s, got %s", want.Sensor.Kind, cfg.Sensor.Kind)
	}
	if cfg.Stimulus.Layout != want.Stimulus.Layout {
		t.Errorf("Expected layout %s, got %s", want.Stimulus.Layout, cfg.Stimulus.Layout)
	}
	if cfg.Game.Difficulty != want.Game.Difficulty {
		t.Errorf("Expected difficulty %d, got %d", want.Game.Difficulty, cfg.Game.Difficulty)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT should be disabled by default")
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blinkbreak.yaml")
	yaml := "stimulus:\n  layout: left\ntrial:\n  trials: 3\nlog_dir: from-file\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("BLINKBREAK_LAYOUT", "bilateral")
	t.Setenv("BLINKBREAK_TRIALS", "7")

	cmd, opts := parseArgs(t, "calibrate", "--config", path, "--trials", "9")
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Trial.Trials != 9 {
		t.Errorf("Flag should win: expected 9 trials, got %d", cfg.Trial.Trials)
	}
	if cfg.Stimulus.Layout != "bilateral" {
		t.Errorf("Env should beat the file: expected bilateral, got %s", cfg.Stimulus.Layout)
	}
	if cfg.LogDir != "from-file" {
		t.Errorf("File should beat defaults: expected from-file, got %s", cfg.LogDir)
	}
}

func TestLoadConfig_PortImpliesSerial(t *testing.T) {
	cmd, opts := parseArgs(t, "play", "--port", "/dev/ttyUSB0")

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Sensor.Kind != "serial" || cfg.Sensor.Port != "/dev/ttyUSB0" {
		t.Errorf("Expected serial on /dev/ttyUSB0, got %s on %q", cfg.Sensor.Kind, cfg.Sensor.Port)
	}

	cmd, opts = parseArgs(t, "play", "--port", "/dev/ttyUSB0", "--sensor", "stdin")
	cfg, err = loadConfig(cmd, opts)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Sensor.Kind != "stdin" {
		t.Errorf("An explicit sensor should win, got %s", cfg.Sensor.Kind)
	}
}

func TestLoadConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"difficulty too high", []string{"play", "--difficulty", "9"}},
		{"difficulty zero", []string{"play", "--difficulty", "0"}},
		{"unknown layout", []string{"calibrate", "--layout", "top"}},
		{"no trials", []string{"calibrate", "--trials", "0"}},
		{"unknown vote", []string{"play", "--vote", "some"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, opts := parseArgs(t, tt.args...)
			if _, err := loadConfig(cmd, opts); err == nil {
				t.Errorf("Expected an error for %v", tt.args)
			}
		})
	}
}

func TestLoadConfig_MQTTFlag(t *testing.T) {
	cmd, opts := parseArgs(t, "play", "--mqtt", "tcp://localhost:1883")

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("Expected MQTT enabled on tcp://localhost:1883, got %v %q", cfg.MQTT.Enabled, cfg.MQTT.Broker)
	}
}

func TestBaselineHasNoConditionFlag(t *testing.T) {
	cmd, _ := parseArgs(t, "baseline")
	if cmd.Name() != "baseline" {
		t.Fatalf("Expected baseline command, got %s", cmd.Name())
	}
	if cmd.Flags().Lookup("condition") != nil {
		t.Error("baseline should not accept --condition")
	}

	cmd, _ = parseArgs(t, "calibrate")
	if cmd.Flags().Lookup("condition") == nil {
		t.Error("calibrate should accept --condition")
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd(&options{})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), "blinkbreak v"+version) {
		t.Errorf("Unexpected version output: %q", out.String())
	}
}
