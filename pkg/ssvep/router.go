package ssvep

import (
	"errors"
	"fmt"

	"github.com/BYTE-6D65/blinkbreak/pkg/eeg"
	"github.com/BYTE-6D65/blinkbreak/pkg/stimulus"
)

// Route describes which channels a stimulus side is processed on. A lateral
// stimulus is processed on the contralateral occipital channel and mirrored
// on the ipsilateral one for comparison; temporal channels ride along.
type Route struct {
	Side      stimulus.Side
	Processed eeg.Channel
	Mirrored  eeg.Channel
	Temporal  [2]eeg.Channel // processed hemisphere first
}

// RouteFor returns the channel routing for a stimulus side. The center patch
// is processed on O1 with O2 as reference.
func RouteFor(side stimulus.Side) Route {
	hemi := eeg.LeftHemisphere
	if side == stimulus.Left {
		hemi = eeg.RightHemisphere
	}
	return Route{
		Side:      side,
		Processed: eeg.ChannelFor(eeg.Occipital, hemi),
		Mirrored:  eeg.ChannelFor(eeg.Occipital, hemi.Opposite()),
		Temporal: [2]eeg.Channel{
			eeg.ChannelFor(eeg.Temporal, hemi),
			eeg.ChannelFor(eeg.Temporal, hemi.Opposite()),
		},
	}
}

// Channels returns the route's channels, processed first.
func (r Route) Channels() []eeg.Channel {
	return []eeg.Channel{r.Processed, r.Mirrored, r.Temporal[0], r.Temporal[1]}
}

// SideFlush is a flush tagged with the stimulus side that produced it.
type SideFlush struct {
	Route Route
	Flush
}

// Delta returns processed minus mirrored peak-to-peak amplitude.
func (s SideFlush) Delta() float64 {
	p, _ := s.Observation(s.Route.Processed)
	m, _ := s.Observation(s.Route.Mirrored)
	return p.PeakToPeak - m.PeakToPeak
}

type lane struct {
	route   Route
	reducer *Reducer
}

// Router runs one independent Reducer per stimulus side of a layout, each
// locked to that side's own flicker frequency.
type Router struct {
	lanes []lane
}

// NewRouter builds reducers for every patch of layout.
func NewRouter(layout stimulus.Layout, sampleRate, fps int) (*Router, error) {
	if err := stimulus.Validate(layout, fps); err != nil {
		return nil, err
	}

	rt := &Router{}
	for _, sp := range layout.Patches() {
		route := RouteFor(sp.Side)
		red, err := NewReducer(sampleRate, fps, sp.Patch.Frequency(fps), route.Channels()...)
		if err != nil {
			return nil, fmt.Errorf("%s patch: %w", sp.Side, err)
		}
		rt.lanes = append(rt.lanes, lane{route: route, reducer: red})
	}
	return rt, nil
}

// Reducer returns the reducer for side.
func (rt *Router) Reducer(side stimulus.Side) (*Reducer, bool) {
	for _, l := range rt.lanes {
		if l.route.Side == side {
			return l.reducer, true
		}
	}
	return nil, false
}

// Routes returns the active routes in layout order.
func (rt *Router) Routes() []Route {
	out := make([]Route, len(rt.lanes))
	for i, l := range rt.lanes {
		out[i] = l.route
	}
	return out
}

// Step advances every reducer by one frame. Reducers that cannot fill their
// batch are skipped and their errors joined; the others still run.
func (rt *Router) Step(src Source) ([]SideFlush, error) {
	var (
		out  []SideFlush
		errs []error
	)
	for _, l := range rt.lanes {
		f, ok, err := l.reducer.Step(src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			out = append(out, SideFlush{Route: l.route, Flush: f})
		}
	}
	return out, errors.Join(errs...)
}

// Reset resets every reducer.
func (rt *Router) Reset() {
	for _, l := range rt.lanes {
		l.reducer.Reset()
	}
}
