package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BYTE-6D65/blinkbreak/pkg/calibration"
	"github.com/BYTE-6D65/blinkbreak/pkg/emitter"
	"github.com/BYTE-6D65/blinkbreak/pkg/engine"
	"github.com/BYTE-6D65/blinkbreak/pkg/event"
	"github.com/BYTE-6D65/blinkbreak/pkg/sensor"
	"github.com/BYTE-6D65/blinkbreak/pkg/telemetry"
	"github.com/BYTE-6D65/blinkbreak/pkg/testdata"
	"github.com/BYTE-6D65/blinkbreak/pkg/trial"
)

// app is one play or calibration run with everything it owns.
type app struct {
	cfg    engine.Config
	mode   engine.Mode
	logger *zap.Logger

	eng      *engine.Engine
	acq      *engine.AcquisitionManager
	emitters *engine.EmitterManager
	source   sensor.Source
	pipeline *engine.Pipeline
	loop     *engine.Loop
	session  *calibration.Session
	servers  []*http.Server
}

func run(parent context.Context, cfg engine.Config, mode engine.Mode, opts *options) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(opts.logFile, opts.dev)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(cfg, mode, logger)
	if err != nil {
		logger.Error("[main] startup failed", zap.Error(err))
		return err
	}
	if err := a.start(ctx); err != nil {
		a.close(opts.dumpPath)
		return err
	}

	if opts.headless {
		err = a.runHeadless(ctx)
	} else {
		err = runTUI(ctx, a)
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if cerr := a.close(opts.dumpPath); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// newLogger writes JSON to path, or readable debug output with dev.
func newLogger(path string, dev bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if dev {
		zc = zap.NewDevelopmentConfig()
	}
	if path != "" {
		zc.OutputPaths = []string{path}
		zc.ErrorOutputPaths = []string{path}
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func newApp(cfg engine.Config, mode engine.Mode, logger *zap.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.InitMetrics(reg)

	eng := engine.New(
		engine.WithLogger(logger),
		engine.WithMetrics(metrics),
		engine.WithErrorBus(event.NewErrorBus(cfg.ErrorBusBufferSize)),
	)
	a := &app{
		cfg:      cfg,
		mode:     mode,
		logger:   logger,
		eng:      eng,
		acq:      engine.NewAcquisitionManager(eng),
		emitters: engine.NewEmitterManager(eng),
	}

	src, err := openSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.source = src
	if err := a.acq.Register(src); err != nil {
		return nil, err
	}

	if a.pipeline, err = engine.NewPipeline(eng, cfg, mode, src); err != nil {
		return nil, err
	}
	a.loop = engine.NewLoop(a.pipeline, engine.NewFrameRecorder(cfg.RecorderSize))

	if mode == engine.CalibrationMode {
		if err := a.openSession(); err != nil {
			return nil, err
		}
	}
	if cfg.MQTT.Enabled {
		a.attachMQTT()
	}

	mux := http.NewServeMux()
	if cfg.WebSocketAddr != "" {
		ws := emitter.NewWebSocketEmitter(logger, event.TypeFrame)
		if err := a.emitters.RegisterOn(eng.InternalBus(), ws.ID(), ws, ws.Filter()); err != nil {
			return nil, err
		}
		mux.Handle("/ws", ws)
		a.servers = append(a.servers, &http.Server{Addr: cfg.WebSocketAddr, Handler: mux})
	}
	if cfg.MetricsAddr != "" {
		h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
		if cfg.MetricsAddr == cfg.WebSocketAddr {
			mux.Handle("/metrics", h)
		} else {
			m := http.NewServeMux()
			m.Handle("/metrics", h)
			a.servers = append(a.servers, &http.Server{Addr: cfg.MetricsAddr, Handler: m})
		}
	}

	logger.Info("[main] configured",
		zap.String("mode", mode.String()),
		zap.String("session", a.pipeline.SessionID()),
		zap.String("source", src.ID()))
	return a, nil
}

// openSource builds the configured sample source. A serial device that
// cannot be opened is replaced by an Absent source so the UI still runs and
// shows the sensor as disconnected.
func openSource(cfg engine.Config, logger *zap.Logger) (sensor.Source, error) {
	opts := []sensor.Option{
		sensor.WithLogger(logger),
		sensor.WithSessionLength(cfg.Sensor.SessionLength),
		sensor.WithNominalRate(float64(cfg.SampleRate)),
	}

	switch cfg.Sensor.Kind {
	case "synthetic", "":
		gcfg, err := testdata.ScenarioConfig(testdata.Scenario(cfg.Sensor.Scenario), cfg.SampleRate)
		if err != nil {
			return nil, err
		}
		return sensor.NewSynthetic(testdata.NewGenerator(gcfg), opts...), nil

	case "serial":
		scfg := sensor.DefaultSerialConfig()
		scfg.Port = cfg.Sensor.Port
		scfg.BaudRate = cfg.Sensor.BaudRate
		src, err := sensor.OpenSerial(scfg, opts...)
		if errors.Is(err, sensor.ErrSensorUnavailable) {
			logger.Warn("[main] sensor unavailable, continuing without samples", zap.Error(err))
			return sensor.NewAbsent("serial:"+scfg.Port, "serial", err, opts...), nil
		}
		if err != nil {
			return nil, err
		}
		return src, nil

	case "stdin":
		return sensor.NewLineSource("stdin", os.Stdin, opts...), nil
	}
	return nil, fmt.Errorf("unknown sensor %q", cfg.Sensor.Kind)
}

func (a *app) openSession() error {
	layout, err := a.cfg.Layout()
	if err != nil {
		return err
	}
	mode := calibration.TrialMode
	if a.cfg.Trial.Basic {
		mode = calibration.BasicMode
	}

	a.session, err = calibration.NewSession(calibration.Config{
		Dir:        a.cfg.LogDir,
		Mode:       mode,
		Condition:  a.cfg.Condition(),
		Layout:     layout,
		SampleRate: a.cfg.SampleRate,
		Detrend:    a.cfg.Detrend,
	}, calibration.WithLogger(a.logger))
	if err != nil {
		return err
	}

	ce := emitter.NewCalibrationEmitter(a.session)
	return a.emitters.Register(ce.ID(), ce, ce.Filter())
}

// attachMQTT connects to the broker. An unreachable broker is reported and
// the run continues without it.
func (a *app) attachMQTT() {
	m, err := emitter.DialMQTT(a.cfg.MQTT.MQTTConfig, a.logger)
	if err != nil {
		a.eng.ReportError(event.NewErrorEvent(event.WarningSeverity, event.CodeEmitterFail, "mqtt", err.Error()).
			WithContext("broker", a.cfg.MQTT.Broker))
		return
	}
	if err := a.emitters.Register(m.ID(), m, m.Filter()); err != nil {
		a.logger.Warn("[main] mqtt emitter not registered", zap.Error(err))
		m.Close()
	}
}

func (a *app) start(ctx context.Context) error {
	if err := a.emitters.Start(); err != nil {
		return err
	}
	if err := a.acq.Start(); err != nil {
		return err
	}

	for _, srv := range a.servers {
		go func(srv *http.Server) {
			a.logger.Info("[main] serving", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("[main] server failed", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}(srv)
	}
	return nil
}

// close stops acquisition, lets the emitters finish writing, then shuts the
// servers and buses down.
func (a *app) close(dumpPath string) error {
	var errs []error

	if err := a.acq.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if err := a.emitters.Stop(); err != nil {
		errs = append(errs, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range a.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server %s: %w", srv.Addr, err))
		}
	}
	if err := a.eng.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	if dumpPath != "" {
		if err := a.dump(dumpPath); err != nil {
			errs = append(errs, err)
		}
	}
	if a.session != nil {
		a.logger.Info("[main] calibration written", zap.String("report", a.session.ReportPath()))
	}
	return errors.Join(errs...)
}

func (a *app) dump(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	defer f.Close()
	return a.loop.Recorder().Dump(f)
}

// runHeadless runs the loop without a UI. Calibration prints the trial
// summary when the session ends; play runs until interrupted.
func (a *app) runHeadless(ctx context.Context) error {
	if err := a.loop.Run(ctx, nil); err != nil {
		return err
	}
	if a.mode == engine.CalibrationMode {
		return trial.WriteReport(os.Stdout, a.pipeline.Trials().Summary())
	}
	return nil
}
