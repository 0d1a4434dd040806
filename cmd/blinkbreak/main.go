package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BYTE-6D65/blinkbreak/pkg/engine"
	"github.com/BYTE-6D65/blinkbreak/pkg/sensor"
)

const version = "0.1.0"

// options are the command-line flags. Only flags the user set override the
// config file and environment.
type options struct {
	configPath string
	logFile    string
	dev        bool
	headless   bool
	dumpPath   string

	sensor   string
	port     string
	baud     int
	scenario string
	logDir   string

	mqttBroker  string
	wsAddr      string
	metricsAddr string

	// play
	singleShot    bool
	difficulty    int
	blinkChannels []string
	vote          string

	// calibrate
	layout    string
	condition string
	trials    int
	basic     bool
	detrend   bool
}

func main() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "blinkbreak",
		Short: "Blink-controlled brick breaker and SSVEP calibration",
		Long: `blinkbreak reads a four-channel EEG headband (O1, O2, T3, T4), turns
blinks into paddle moves for a brick-breaker game and runs flicker
calibration sessions that log steady-state visual evoked responses.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&opts.logFile, "log-file", "blinkbreak.log", "log file (the terminal belongs to the UI)")
	pf.BoolVar(&opts.dev, "dev", false, "human-readable debug logging")
	pf.BoolVar(&opts.headless, "headless", false, "run without the terminal UI")
	pf.StringVar(&opts.dumpPath, "dump", "", "write the frame recorder to this file on exit")
	pf.StringVar(&opts.sensor, "sensor", "synthetic", "sample source: synthetic, serial or stdin")
	pf.StringVar(&opts.port, "port", "", "serial port of the headband bridge")
	pf.IntVar(&opts.baud, "baud", 115200, "serial baud rate")
	pf.StringVar(&opts.scenario, "scenario", "blinks", "synthetic scenario: baseline, blinks, ssvep or drift")
	pf.StringVar(&opts.logDir, "log-dir", "testing_logs", "calibration output directory")
	pf.StringVar(&opts.mqttBroker, "mqtt", "", "publish events to this MQTT broker, e.g. tcp://localhost:1883")
	pf.StringVar(&opts.wsAddr, "ws", "", "serve the frame stream over WebSocket on this address")
	pf.StringVar(&opts.metricsAddr, "metrics", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		newPlayCmd(opts),
		newCalibrateCmd(opts, false),
		newCalibrateCmd(opts, true),
		newPortsCmd(),
		newVersionCmd(),
	)
	return root
}

func newPlayCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play brick breaker with blinks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, engine.PlayMode, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.singleShot, "single-shot", false, "first blink of a bounce moves the paddle the whole way")
	f.IntVar(&opts.difficulty, "difficulty", 1, "ball speed, 1 to 5")
	f.StringSliceVar(&opts.blinkChannels, "channels", []string{"O1"}, "channels monitored for blinks")
	f.StringVar(&opts.vote, "vote", "any", "how channels combine: any, all or majority")
	return cmd
}

// newCalibrateCmd builds "calibrate", or "baseline" which records the same
// session with the stimulus switched off.
func newCalibrateCmd(opts *options, baseline bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Run flicker trials and log SSVEP responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if baseline {
				cfg.Stimulus.Condition = "no_flicker"
			}
			return run(cmd.Context(), cfg, engine.CalibrationMode, opts)
		},
	}
	if baseline {
		cmd.Use = "baseline"
		cmd.Short = "Record a no-flicker baseline session"
	}

	f := cmd.Flags()
	f.StringVar(&opts.layout, "layout", "right", "flicker layout: center, left, right or bilateral")
	f.IntVar(&opts.trials, "trials", 15, "number of cued trials")
	f.BoolVar(&opts.basic, "basic", false, "one long trial on the layout instead of cued trials")
	f.BoolVar(&opts.detrend, "detrend", false, "rewrite plot files drift corrected at close")
	if !baseline {
		f.StringVar(&opts.condition, "condition", "flicker", "flicker or no_flicker")
	}
	return cmd
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := sensor.ListPorts()
			if err != nil {
				return fmt.Errorf("list ports: %w", err)
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(ports, "\n"))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and platform information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "blinkbreak v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// loadConfig layers defaults, the config file, BLINKBREAK_* variables and
// the flags the user set, then validates the result.
func loadConfig(cmd *cobra.Command, opts *options) (engine.Config, error) {
	cfg := engine.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = engine.LoadFile(opts.configPath); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv()

	f := cmd.Flags()
	if f.Changed("sensor") {
		cfg.Sensor.Kind = opts.sensor
	}
	if f.Changed("port") {
		cfg.Sensor.Port = opts.port
		if !f.Changed("sensor") {
			cfg.Sensor.Kind = "serial"
		}
	}
	if f.Changed("baud") {
		cfg.Sensor.BaudRate = opts.baud
	}
	if f.Changed("scenario") {
		cfg.Sensor.Scenario = opts.scenario
	}
	if f.Changed("log-dir") {
		cfg.LogDir = opts.logDir
	}
	if f.Changed("mqtt") {
		cfg.MQTT.Enabled = opts.mqttBroker != ""
		cfg.MQTT.Broker = opts.mqttBroker
	}
	if f.Changed("ws") {
		cfg.WebSocketAddr = opts.wsAddr
	}
	if f.Changed("metrics") {
		cfg.MetricsAddr = opts.metricsAddr
	}

	if f.Changed("single-shot") {
		cfg.SingleShot = opts.singleShot
	}
	if f.Changed("difficulty") {
		cfg.Game.Difficulty = opts.difficulty
	}
	if f.Changed("channels") {
		cfg.Blink.Channels = opts.blinkChannels
	}
	if f.Changed("vote") {
		cfg.Blink.Vote = opts.vote
	}

	if f.Changed("layout") {
		cfg.Stimulus.Layout = opts.layout
	}
	if f.Changed("condition") {
		cfg.Stimulus.Condition = opts.condition
	}
	if f.Changed("trials") {
		cfg.Trial.Trials = opts.trials
	}
	if f.Changed("basic") {
		cfg.Trial.Basic = opts.basic
	}
	if f.Changed("detrend") {
		cfg.Detrend = opts.detrend
	}

	if cfg.Game.Difficulty < 1 || cfg.Game.Difficulty > cfg.Game.MaxDifficulty {
		return cfg, fmt.Errorf("difficulty must be between 1 and %d, got %d", cfg.Game.MaxDifficulty, cfg.Game.Difficulty)
	}
	return cfg, cfg.Validate()
}
