// Package api serves the state and results of a simulation run over HTTP and
// streams its events over a WebSocket.
package api

import (
	"sync"

	"github.com/freight-sim/freight-sim/sim"
	"github.com/freight-sim/freight-sim/sim/trace"
)

// Run status values.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// maxRecentEvents is the number of event records kept for /events.
const maxRecentEvents = 1000

// VesselView is the last known state of a vessel.
type VesselView struct {
	Name        string  `json:"name"`
	Company     string  `json:"company"`
	Port        string  `json:"port,omitempty"`
	Origin      string  `json:"origin,omitempty"`
	Destination string  `json:"destination,omitempty"`
	InTransit   bool    `json:"in_transit"`
	Laden       bool    `json:"laden"`
	UpdatedAt   float64 `json:"updated_at"`
}

// State is a sim.EventObserver keeping a snapshot of the run that HTTP
// handlers can read while the simulation goes on.
type State struct {
	mu       sync.RWMutex
	status   string
	err      string
	clock    float64
	metrics  sim.Metrics
	vessels  map[string]VesselView
	order    []string
	recorder *trace.SimulationTrace
	recent   []trace.EventRecord
	seq      int
	summary  *trace.TraceSummary
}

// NewState creates a pending run state.
func NewState() *State {
	return &State{
		status:   StatusPending,
		vessels:  make(map[string]VesselView),
		recorder: trace.NewSimulationTrace(trace.TraceLevelSummary),
	}
}

// Notify implements sim.EventObserver.
func (st *State) Notify(s *sim.Simulator, ev sim.Event, data any) {
	st.recorder.Notify(s, ev, data)

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.status == StatusPending {
		st.status = StatusRunning
	}
	rec := trace.EventRecord{Seq: st.seq, Time: ev.Time(), Kind: trace.Kind(ev), Info: ev.Info()}
	st.seq++
	if s != nil {
		st.clock = s.Clock()
		st.metrics = *s.Metrics()
	}
	if ve, ok := ev.(sim.VesselEvent); ok {
		v := ve.Vessel()
		rec.Vessel, rec.Company = v.Name(), v.Company()
		st.updateVessel(v, ev.Time())
	}
	st.recent = append(st.recent, rec)
	if len(st.recent) > maxRecentEvents {
		st.recent = st.recent[len(st.recent)-maxRecentEvents:]
	}
}

func (st *State) updateVessel(v *sim.Vessel, t float64) {
	if _, ok := st.vessels[v.Name()]; !ok {
		st.order = append(st.order, v.Name())
	}
	p := v.Position()
	view := VesselView{Name: v.Name(), Company: v.Company(), Laden: v.Laden(), UpdatedAt: t}
	if p.InTransit() {
		view.InTransit = true
		view.Origin = p.Journey.Origin.Name
		view.Destination = p.Journey.Destination.Name
	} else {
		view.Port = p.Location.Name
	}
	st.vessels[v.Name()] = view
}

// Finish records the end of the run. It must be called from the goroutine
// that ran the simulation.
func (st *State) Finish(s *sim.Simulator, runErr error) {
	summary := trace.Summarize(st.recorder, s.Authority())
	summary.TotalEvents = s.Metrics().EventsExecuted

	st.mu.Lock()
	defer st.mu.Unlock()
	st.clock = s.Clock()
	st.metrics = *s.Metrics()
	st.summary = summary
	st.status = StatusFinished
	if runErr != nil {
		st.status = StatusFailed
		st.err = runErr.Error()
	}
}

// StatusView is the body of GET /api/v1/status.
type StatusView struct {
	Status         string  `json:"status"`
	Error          string  `json:"error,omitempty"`
	Clock          float64 `json:"clock"`
	EventsExecuted int     `json:"events_executed"`
	Auctions       int     `json:"auctions"`
	TradesAwarded  int     `json:"trades_awarded"`
}

func (st *State) statusView() StatusView {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return StatusView{
		Status:         st.status,
		Error:          st.err,
		Clock:          st.clock,
		EventsExecuted: st.metrics.EventsExecuted,
		Auctions:       st.metrics.Auctions,
		TradesAwarded:  st.metrics.TradesAwarded,
	}
}

func (st *State) vesselViews() []VesselView {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]VesselView, 0, len(st.order))
	for _, name := range st.order {
		out = append(out, st.vessels[name])
	}
	return out
}

func (st *State) recentEvents(limit int) []trace.EventRecord {
	st.mu.RLock()
	defer st.mu.RUnlock()
	events := st.recent
	if limit > 0 && limit < len(events) {
		events = events[len(events)-limit:]
	}
	return append([]trace.EventRecord{}, events...)
}

func (st *State) finalSummary() (*trace.TraceSummary, string) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.summary, st.status
}

func (st *State) auctions() []trace.AuctionRecord {
	out := st.recorder.Auctions()
	if out == nil {
		out = []trace.AuctionRecord{}
	}
	return out
}
