package engine

import (
	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
	"github.com/BYTE-6D65/blinkbreak/pkg/sensor"
	"github.com/BYTE-6D65/blinkbreak/pkg/ssvep"
	"github.com/BYTE-6D65/blinkbreak/pkg/telemetry"
)

func recordFlush(metrics *telemetry.Metrics, f ssvep.SideFlush, v ssvep.Verdict) {
	if metrics == nil {
		return
	}

	side := f.Route.Side.String()
	metrics.ReducerFlushes.WithLabelValues(side).Inc()
	if f.Recovered {
		metrics.RecoveryInsertions.WithLabelValues(side).Inc()
	}
	for _, obs := range f.Observations {
		metrics.PeakToPeak.WithLabelValues(obs.Channel.Lobe().String(), side).Observe(obs.PeakToPeak)
	}
	metrics.Verdicts.WithLabelValues(v.String()).Inc()
}

type rater interface {
	Rate() float64
}

func recordSource(metrics *telemetry.Metrics, src sensor.Source) {
	if metrics == nil {
		return
	}

	metrics.SensorStatus.WithLabelValues(src.ID()).Set(float64(src.Status()))
	if r, ok := src.(rater); ok {
		metrics.SensorRate.WithLabelValues(src.ID()).Set(r.Rate())
	}
	buf := src.Buffer()
	for _, ch := range eeg.Channels {
		metrics.BufferLength.WithLabelValues(ch.String()).Set(float64(buf.Len(ch)))
	}
}
