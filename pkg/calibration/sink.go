package calibration

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
)

// ErrSinkClosed is returned when writing to a closed sink.
var ErrSinkClosed = errors.New("calibration: sink closed")

// Sink writes one channel's flushes. The plot file gets an "amplitude index"
// line per flush; the data file gets the flushed batch as a line of
// space-separated samples, and the sample rate as its final line on Close.
type Sink struct {
	mu sync.Mutex

	key        Key
	plotPath   string
	dataPath   string
	plot       *os.File
	data       *os.File
	plotW      *bufio.Writer
	dataW      *bufio.Writer
	sampleRate int
	index      int64

	// detrend holds plot amplitudes back until Close so the whole series
	// can be drift corrected before it is written.
	detrend bool
	amps    []float64

	closed bool
}

func openSink(key Key, plotPath, dataPath string, sampleRate int, detrend bool) (*Sink, error) {
	plot, err := os.Create(plotPath)
	if err != nil {
		return nil, fmt.Errorf("open plot sink %s: %w", key, err)
	}
	data, err := os.Create(dataPath)
	if err != nil {
		plot.Close()
		return nil, fmt.Errorf("open data sink %s: %w", key, err)
	}
	return &Sink{
		key:        key,
		plotPath:   plotPath,
		dataPath:   dataPath,
		plot:       plot,
		data:       data,
		plotW:      bufio.NewWriter(plot),
		dataW:      bufio.NewWriter(data),
		sampleRate: sampleRate,
		detrend:    detrend,
	}, nil
}

// Key returns the sink's key.
func (s *Sink) Key() Key { return s.key }

// Paths returns the plot and data file paths.
func (s *Sink) Paths() (plot, data string) { return s.plotPath, s.dataPath }

// Written returns the number of flushes written.
func (s *Sink) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Write logs one flush: its peak-to-peak amplitude and its raw batch.
func (s *Sink) Write(amp float64, batch []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}

	if s.detrend {
		s.amps = append(s.amps, amp)
	} else if err := writePlotLine(s.plotW, amp, s.index); err != nil {
		return fmt.Errorf("write plot %s: %w", s.key, err)
	}
	s.index++

	for _, v := range batch {
		s.dataW.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		s.dataW.WriteByte(' ')
	}
	if err := s.dataW.WriteByte('\n'); err != nil {
		return fmt.Errorf("write data %s: %w", s.key, err)
	}
	return nil
}

// Close flushes held amplitudes, appends the sample-rate trailer to the
// data file and closes both files.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.detrend && len(s.amps) > 0 {
		corrected, err := DetrendSeries(s.amps)
		if err != nil && !errors.Is(err, eeg.ErrDegenerateRegression) {
			errs = append(errs, err)
		}
		for i, amp := range corrected {
			if err := writePlotLine(s.plotW, amp, int64(i)); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}

	s.dataW.WriteString(strconv.Itoa(s.sampleRate))

	errs = append(errs,
		s.plotW.Flush(),
		s.dataW.Flush(),
		s.plot.Close(),
		s.data.Close(),
	)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close sink %s: %w", s.key, err)
	}
	return nil
}

func writePlotLine(w *bufio.Writer, amp float64, index int64) error {
	_, err := fmt.Fprintf(w, "%s %d\n", strconv.FormatFloat(amp, 'g', -1, 64), index)
	return err
}

// DetrendSeries removes the least-squares linear drift from a logged
// amplitude series using the same correction as the live detector. A
// degenerate series is returned mean-centered together with an error
// matching eeg.ErrDegenerateRegression.
func DetrendSeries(amps []float64) ([]float64, error) {
	w := eeg.Detrend(amps)
	if w.Fit.Degenerate {
		return w.Values, fmt.Errorf("detrend %d points: %w", len(amps), eeg.ErrDegenerateRegression)
	}
	return w.Values, nil
}
