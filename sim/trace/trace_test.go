package trace

import (
	"testing"

	"github.com/freight-sim/freight-sim/sim"
)

var (
	portA = sim.Location{Name: "A", X: 0, Y: 0}
	portB = sim.Location{Name: "B", X: 0.3, Y: 0.4}
)

func testVessel() *sim.Vessel {
	return sim.NewVessel(sim.VesselConfig{Name: "v1", Company: "acme", Speed: 1, Location: &portA})
}

func TestSimulationTrace_Notify_RecordsVoyagesAndIdles(t *testing.T) {
	// GIVEN a trace at summary level
	st := NewSimulationTrace(TraceLevelSummary)
	v := testVessel()

	// WHEN a travel and an idle event are observed
	st.Notify(nil, sim.NewTravelEvent(10, v, portA, portB), sim.TravelData{
		Vessel: "v1", Company: "acme", Origin: portA, Destination: portB, Distance: 5, Laden: true, Duration: 5,
	})
	st.Notify(nil, sim.NewIdleEvent(14, v, portB), sim.IdleData{Vessel: "v1", Company: "acme", Location: portB, Duration: 4})

	// THEN one voyage and one idle stretch are recorded, but no events
	voyages := st.Voyages()
	if len(voyages) != 1 {
		t.Fatalf("expected 1 voyage, got %d", len(voyages))
	}
	if voyages[0].Start != 5 || voyages[0].End != 10 || voyages[0].Destination != "B" || !voyages[0].Laden {
		t.Errorf("unexpected voyage %+v", voyages[0])
	}
	idles := st.Idles()
	if len(idles) != 1 || idles[0].Start != 10 || idles[0].Port != "B" {
		t.Errorf("unexpected idles %+v", idles)
	}
	if len(st.Events()) != 0 {
		t.Errorf("expected no event records at summary level, got %d", len(st.Events()))
	}
}

func TestSimulationTrace_Notify_EventsLevel(t *testing.T) {
	// GIVEN a trace at events level
	st := NewSimulationTrace(TraceLevelEvents)

	// WHEN a vessel event and an auction are observed
	st.Notify(nil, sim.NewVesselLocationInformationEvent(-1, testVessel(), sim.At(portA)), sim.LocationData{})
	st.Notify(nil, sim.NewAuctionCargoEvent(24), &sim.AllocationResult{
		Time:        24,
		Trades:      []sim.Trade{{ID: "t1"}, {ID: "t2"}},
		Unallocated: []sim.Trade{{ID: "t2"}},
		Notifications: []sim.NotificationOutcome{
			{Company: "a", Status: sim.NotificationOK},
			{Company: "b", Status: sim.NotificationTimeout},
		},
		Schedules: []sim.ScheduleOutcome{{Company: "a", Vessel: "v1", Applied: false}},
	})

	// THEN both events are recorded in order and the auction is aggregated
	events := st.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != "VesselLocationInformationEvent" || events[0].Vessel != "v1" || events[0].Company != "acme" {
		t.Errorf("unexpected first record %+v", events[0])
	}
	if events[1].Kind != "AuctionCargoEvent" || events[1].Seq != 1 {
		t.Errorf("unexpected second record %+v", events[1])
	}
	auctions := st.Auctions()
	if len(auctions) != 1 {
		t.Fatalf("expected 1 auction, got %d", len(auctions))
	}
	a := auctions[0]
	if a.Offered != 2 || a.Awarded != 1 || a.Refused != 1 {
		t.Errorf("unexpected auction record %+v", a)
	}
	if a.Notifications["ok"] != 1 || a.Notifications["timeout"] != 1 {
		t.Errorf("unexpected notification counts %v", a.Notifications)
	}
}

func TestSimulationTrace_None_RecordsNothing(t *testing.T) {
	st := NewSimulationTrace("")

	st.Notify(nil, sim.NewAuctionCargoEvent(0), &sim.AllocationResult{})

	if len(st.Auctions()) != 0 || len(st.Events()) != 0 {
		t.Error("expected nothing recorded")
	}
}

func TestIsValidTraceLevel_ValidLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"summary", true},
		{"events", true},
		{"", true}, // empty defaults to none
		{"decisions", false},
		{"NONE", false}, // case-sensitive
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := IsValidTraceLevel(tt.level); got != tt.valid {
				t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.valid)
			}
		})
	}
}
