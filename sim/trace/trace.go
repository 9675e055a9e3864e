package trace

import (
	"fmt"
	"strings"
	"sync"

	"github.com/freight-sim/freight-sim/sim"
)

// TraceLevel controls the verbosity of tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSummary captures voyages, idle stretches and auctions.
	TraceLevelSummary TraceLevel = "summary"
	// TraceLevelEvents additionally captures every executed event.
	TraceLevelEvents TraceLevel = "events"
)

var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:    true,
	TraceLevelSummary: true,
	TraceLevelEvents:  true,
	"":                true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// SimulationTrace collects records during a run. It is a sim.EventObserver
// and safe to read from other goroutines while the run goes on.
type SimulationTrace struct {
	Level TraceLevel

	mu       sync.RWMutex
	events   []EventRecord
	voyages  []VoyageRecord
	idles    []IdleRecord
	auctions []AuctionRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(level TraceLevel) *SimulationTrace {
	if level == "" {
		level = TraceLevelNone
	}
	return &SimulationTrace{Level: level}
}

// Notify implements sim.EventObserver.
func (st *SimulationTrace) Notify(s *sim.Simulator, ev sim.Event, data any) {
	if st.Level == TraceLevelNone {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.Level == TraceLevelEvents {
		rec := EventRecord{Seq: len(st.events), Time: ev.Time(), Kind: Kind(ev), Info: ev.Info()}
		if ve, ok := ev.(sim.VesselEvent); ok {
			rec.Vessel, rec.Company = ve.Vessel().Name(), ve.Vessel().Company()
		}
		st.events = append(st.events, rec)
	}

	switch d := data.(type) {
	case sim.TravelData:
		st.voyages = append(st.voyages, VoyageRecord{
			Vessel:      d.Vessel,
			Company:     d.Company,
			Origin:      d.Origin.Name,
			Destination: d.Destination.Name,
			Start:       ev.Time() - d.Duration,
			End:         ev.Time(),
			Distance:    d.Distance,
			Laden:       d.Laden,
		})
	case sim.IdleData:
		st.idles = append(st.idles, IdleRecord{
			Vessel: d.Vessel, Company: d.Company, Port: d.Location.Name,
			Start: ev.Time() - d.Duration, End: ev.Time(),
		})
	case *sim.AllocationResult:
		st.auctions = append(st.auctions, auctionRecord(d))
	}
}

func auctionRecord(r *sim.AllocationResult) AuctionRecord {
	rec := AuctionRecord{Time: r.Time, Offered: len(r.Trades), Awarded: r.Awarded(), Notifications: make(map[string]int)}
	if r.Ledger != nil {
		for _, c := range r.Ledger.Companies() {
			for _, contract := range r.Ledger.Contracts(c) {
				rec.Payments += contract.Payment
			}
		}
	}
	for _, n := range r.Notifications {
		rec.Notifications[string(n.Status)]++
	}
	for _, s := range r.Schedules {
		if !s.Applied {
			rec.Refused++
		}
	}
	return rec
}

// Kind is the event's type name without package or pointer, e.g. "TravelEvent".
func Kind(ev sim.Event) string {
	name := fmt.Sprintf("%T", ev)
	return name[strings.LastIndex(name, ".")+1:]
}

// Events returns a copy of the event records.
func (st *SimulationTrace) Events() []EventRecord {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]EventRecord(nil), st.events...)
}

// Voyages returns a copy of the voyage records.
func (st *SimulationTrace) Voyages() []VoyageRecord {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]VoyageRecord(nil), st.voyages...)
}

// Idles returns a copy of the idle records.
func (st *SimulationTrace) Idles() []IdleRecord {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]IdleRecord(nil), st.idles...)
}

// Auctions returns a copy of the auction records.
func (st *SimulationTrace) Auctions() []AuctionRecord {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]AuctionRecord(nil), st.auctions...)
}
