package sensor

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialConfig selects the serial bridge the headband streams through.
type SerialConfig struct {
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// DefaultSerialConfig returns 115200 baud with a 50ms read timeout.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{BaudRate: 115200, ReadTimeout: 50 * time.Millisecond}
}

// OpenSerial opens a serial port carrying one "o1 o2 t3 t4" line per
// sample. Failure to open the port is reported as ErrSensorUnavailable.
func OpenSerial(cfg SerialConfig, opts ...Option) (*LineSource, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("%w: no serial port configured", ErrSensorUnavailable)
	}

	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSensorUnavailable, cfg.Port, err)
	}

	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultSerialConfig().ReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("sensor: set read timeout on %s: %w", cfg.Port, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("sensor: reset input buffer on %s: %w", cfg.Port, err)
	}

	src := NewLineSource("serial:"+cfg.Port, port, opts...)
	src.typ = "serial"
	return src, nil
}

// ListPorts returns the serial ports present on the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
