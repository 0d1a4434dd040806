package event

import (
	"fmt"
	"time"
)

// ErrorEvent reports an error that the frame pipeline absorbed instead of
// returning. These flow over the lossy ErrorBus, never over the data buses.
type ErrorEvent struct {
	Severity ErrorSeverity

	// Signal carries control intent separately from severity
	Signal ControlSignal

	// Code is a terse, stable identifier (e.g. "INSUFFICIENT_WINDOW")
	Code string

	Message string

	// Component identifies the source (e.g. "ssvep:right", "sensor:synthetic")
	Component string

	Timestamp time.Time

	// Frame is the render frame during which the error occurred
	Frame int64

	Context map[string]any

	Recoverable bool
}

// ErrorSeverity maps onto log levels.
type ErrorSeverity int

const (
	DebugSeverity ErrorSeverity = iota
	InfoSeverity
	WarningSeverity
	ErrorSeverityLevel
	CriticalSeverity
)

func (s ErrorSeverity) String() string {
	switch s {
	case DebugSeverity:
		return "DEBUG"
	case InfoSeverity:
		return "INFO"
	case WarningSeverity:
		return "WARNING"
	case ErrorSeverityLevel:
		return "ERROR"
	case CriticalSeverity:
		return "CRITICAL"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// ControlSignal lets subscribers route without matching on messages.
type ControlSignal int

const (
	SignalNone      ControlSignal = iota
	SignalDegraded                // sensor lost, pipeline idles
	SignalRecovered               // sensor back
	SignalSkip                    // the frame's step was skipped
)

func (s ControlSignal) String() string {
	switch s {
	case SignalNone:
		return "NONE"
	case SignalDegraded:
		return "DEGRADED"
	case SignalRecovered:
		return "RECOVERED"
	case SignalSkip:
		return "SKIP"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Error codes. These survive refactors better than messages.
const (
	// Signal processing
	CodeInsufficientWindow   = "INSUFFICIENT_WINDOW"
	CodeDegenerateRegression = "DEGENERATE_REGRESSION"
	CodeRecoveryInsert       = "RECOVERY_INSERT"
	CodeTrialState           = "TRIAL_STATE"

	// Acquisition
	CodeSensorUnavailable = "SENSOR_UNAVAILABLE"
	CodeSensorStart       = "SENSOR_START"
	CodeSensorStop        = "SENSOR_STOP"
	CodeMalformedLine     = "MALFORMED_LINE"

	// Outputs
	CodeSinkWriteFail = "SINK_WRITE_FAIL"
	CodeEmitterFail   = "EMITTER_FAIL"
	CodeDropSlow      = "DROP_SLOW"

	// Lifecycle
	CodePanic    = "PANIC"
	CodeShutdown = "SHUTDOWN"
)

// NewErrorEvent creates a recoverable error event timestamped now.
func NewErrorEvent(severity ErrorSeverity, code, component, message string) ErrorEvent {
	return ErrorEvent{
		Severity:    severity,
		Signal:      SignalNone,
		Code:        code,
		Component:   component,
		Message:     message,
		Timestamp:   time.Now(),
		Context:     make(map[string]any),
		Recoverable: true,
	}
}

// WithSignal adds a control signal to the error event.
func (e ErrorEvent) WithSignal(signal ControlSignal) ErrorEvent {
	e.Signal = signal
	return e
}

// WithFrame records the frame number.
func (e ErrorEvent) WithFrame(frame int64) ErrorEvent {
	e.Frame = frame
	return e
}

// WithContext adds a context key-value pair.
func (e ErrorEvent) WithContext(key string, value any) ErrorEvent {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether this error is recoverable.
func (e ErrorEvent) WithRecoverable(recoverable bool) ErrorEvent {
	e.Recoverable = recoverable
	return e
}

func (e ErrorEvent) String() string {
	return fmt.Sprintf("[%s] %s: %s - %s (component=%s, frame=%d)",
		e.Severity, e.Code, e.Message, e.Signal, e.Component, e.Frame)
}
