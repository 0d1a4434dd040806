package sensor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
)

// LineError describes a line that is not four numbers.
type LineError struct {
	Line int64
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("sensor: line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

var errFieldCount = errors.New("expected 4 fields")

// ParseLine parses "o1 o2 t3 t4". Fields may be separated by whitespace or
// commas.
func ParseLine(s string) (eeg.Reading, error) {
	var r eeg.Reading
	fields := strings.FieldsFunc(s, func(c rune) bool {
		return c == ',' || c == ' ' || c == '\t' || c == '\r'
	})
	if len(fields) != eeg.NumChannels {
		return r, errFieldCount
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return r, err
		}
		r[i] = v
	}
	return r, nil
}

// LineSource reads newline-delimited readings from an io.Reader, such as a
// serial bridge or a recorded session piped on stdin. Malformed lines are
// counted and skipped.
type LineSource struct {
	*worker
	r   io.Reader
	typ string

	lines     atomic.Int64
	malformed atomic.Int64
}

// NewLineSource creates a source reading from r.
func NewLineSource(id string, r io.Reader, opts ...Option) *LineSource {
	s := &LineSource{
		worker: newWorker(id, opts),
		r:      r,
		typ:    "line",
	}
	if c, ok := r.(io.Closer); ok {
		s.onStop = func() { c.Close() }
	}
	s.setStatus(Connected)
	return s
}

// Type returns "line" or "serial".
func (s *LineSource) Type() string { return s.typ }

// Lines returns how many non-empty lines were read.
func (s *LineSource) Lines() int64 { return s.lines.Load() }

// Malformed returns how many lines were skipped.
func (s *LineSource) Malformed() int64 { return s.malformed.Load() }

// Start begins reading.
func (s *LineSource) Start(ctx context.Context) error {
	return s.run(ctx, s.loop)
}

// Stop halts reading. A reader that is also an io.Closer is closed to
// unblock a pending Read.
func (s *LineSource) Stop() error {
	return s.stop()
}

func (s *LineSource) loop(ctx context.Context) {
	chunk := make([]byte, 4096)
	var pending []byte

	for {
		if ctx.Err() != nil {
			return
		}

		n, err := s.r.Read(chunk)
		if n > 0 {
			pending = append(pending, chunk[:n]...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				s.handle(string(pending[:i]))
				pending = pending[i+1:]
			}
			if len(pending) == 0 {
				pending = nil
			}
		}

		if err != nil {
			if len(pending) > 0 {
				s.handle(string(pending))
			}
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.setStatus(Disconnected)
				s.opts.logger.Warn("[sensor] read failed, device lost",
					zap.String("source", s.id),
					zap.Int64("lines", s.lines.Load()),
					zap.Error(err))
			}
			return
		}
	}
}

func (s *LineSource) handle(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	n := s.lines.Add(1)

	r, err := ParseLine(line)
	if err != nil {
		s.malformed.Add(1)
		s.opts.logger.Debug("[sensor] skipping malformed line",
			zap.String("source", s.id),
			zap.Error(&LineError{Line: n, Text: line, Err: err}))
		return
	}
	s.append(r)
}
