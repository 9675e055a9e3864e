package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// VesselEvent is an event bound to one vessel.
type VesselEvent interface {
	Event
	Vessel() *Vessel
	// Location is where the vessel is during the event.
	Location() Position
	// Distance is the distance the vessel covers during the event.
	Distance(sim *Simulator) float64
}

type vesselEvent struct {
	DurationEvent
	vessel *Vessel
}

func (e *vesselEvent) Vessel() *Vessel { return e.vessel }

func (e *vesselEvent) sameVesselEvent(o *vesselEvent) bool {
	return e.sameAs(&o.baseEvent) && e.vessel == o.vessel
}

// TravelData is returned by TravelEvent.Execute.
type TravelData struct {
	Vessel      string   `json:"vessel"`
	Company     string   `json:"company"`
	Origin      Location `json:"origin"`
	Destination Location `json:"destination"`
	Distance    float64  `json:"distance"`
	Laden       bool     `json:"laden"`
	Duration    float64  `json:"duration"`
}

// TravelEvent moves a vessel from origin to destination. While queued the
// vessel is on a journey; on execution it is at the destination.
type TravelEvent struct {
	vesselEvent
	origin      Location
	destination Location
	laden       bool
}

// NewTravelEvent creates a travel event that finishes at time.
func NewTravelEvent(time float64, v *Vessel, origin, destination Location) *TravelEvent {
	return &TravelEvent{
		vesselEvent: vesselEvent{
			DurationEvent: DurationEvent{baseEvent: baseEvent{
				time: time,
				info: fmt.Sprintf("%s travels %s -> %s", v.Name(), origin, destination),
			}},
			vessel: v,
		},
		origin:      origin,
		destination: destination,
	}
}

func (e *TravelEvent) Origin() Location      { return e.origin }
func (e *TravelEvent) Destination() Location { return e.destination }

// IsLaden reports whether the vessel carried cargo when it departed.
func (e *TravelEvent) IsLaden() bool { return e.laden }

// Location is the journey while under way and the destination once performed.
func (e *TravelEvent) Location() Position {
	if e.performed {
		return At(e.destination)
	}
	return OnJourney(e.origin, e.destination, e.timeStarted)
}

func (e *TravelEvent) Distance(sim *Simulator) float64 {
	return sim.Network().Distance(e.origin, e.destination)
}

// AddedToQueue puts the vessel on the journey and records whether it departs laden.
func (e *TravelEvent) AddedToQueue(sim *Simulator) {
	e.DurationEvent.AddedToQueue(sim)
	e.laden = e.vessel.HasAnyLoad()
	e.vessel.SetPosition(OnJourney(e.origin, e.destination, e.timeStarted))
}

func (e *TravelEvent) Execute(sim *Simulator) any {
	logrus.Debugf("<< Travel: %s reached %s at %.2f", e.vessel.Name(), e.destination, e.time)
	e.vessel.laden = e.laden
	e.vessel.SetPosition(At(e.destination))
	data := TravelData{
		Vessel:      e.vessel.Name(),
		Company:     e.vessel.Company(),
		Origin:      e.origin,
		Destination: e.destination,
		Distance:    e.Distance(sim),
		Laden:       e.laden,
		Duration:    e.time - e.timeStarted,
	}
	e.vessel.EventOccurrence(sim, e)
	return data
}

func (e *TravelEvent) Equal(other Event) bool {
	o, ok := other.(*TravelEvent)
	return ok && e.sameVesselEvent(&o.vesselEvent) && e.origin == o.origin && e.destination == o.destination
}

func (e *TravelEvent) String() string { return describe("TravelEvent", e) }

// IdleData is returned by IdleEvent.Execute.
type IdleData struct {
	Vessel   string   `json:"vessel"`
	Company  string   `json:"company"`
	Location Location `json:"location"`
	Duration float64  `json:"duration"`
}

// IdleEvent keeps a vessel waiting at a location until its time.
type IdleEvent struct {
	vesselEvent
	location Location
}

// NewIdleEvent creates an idle event that finishes at time.
func NewIdleEvent(time float64, v *Vessel, location Location) *IdleEvent {
	return &IdleEvent{
		vesselEvent: vesselEvent{
			DurationEvent: DurationEvent{baseEvent: baseEvent{
				time: time,
				info: fmt.Sprintf("%s idles at %s", v.Name(), location),
			}},
			vessel: v,
		},
		location: location,
	}
}

func (e *IdleEvent) Location() Position          { return At(e.location) }
func (e *IdleEvent) Distance(*Simulator) float64 { return 0 }

func (e *IdleEvent) Execute(sim *Simulator) any {
	data := IdleData{
		Vessel:   e.vessel.Name(),
		Company:  e.vessel.Company(),
		Location: e.location,
		Duration: e.time - e.timeStarted,
	}
	e.vessel.EventOccurrence(sim, e)
	return data
}

func (e *IdleEvent) Equal(other Event) bool {
	o, ok := other.(*IdleEvent)
	return ok && e.sameVesselEvent(&o.vesselEvent) && e.location == o.location
}

func (e *IdleEvent) String() string { return describe("IdleEvent", e) }

// LocationData is returned by VesselLocationInformationEvent.Execute.
type LocationData struct {
	Vessel   string   `json:"vessel"`
	Company  string   `json:"company"`
	Location Location `json:"location"`
	Journey  *Journey `json:"journey,omitempty"`
}

// VesselLocationInformationEvent reports where a vessel is. It has no effect.
type VesselLocationInformationEvent struct {
	vesselEvent
	location Position
}

// NewVesselLocationInformationEvent creates a location report for v at time.
func NewVesselLocationInformationEvent(time float64, v *Vessel, location Position) *VesselLocationInformationEvent {
	return &VesselLocationInformationEvent{
		vesselEvent: vesselEvent{
			DurationEvent: DurationEvent{baseEvent: baseEvent{
				time: time,
				info: fmt.Sprintf("%s at %s", v.Name(), location),
			}},
			vessel: v,
		},
		location: location,
	}
}

func (e *VesselLocationInformationEvent) Location() Position          { return e.location }
func (e *VesselLocationInformationEvent) Distance(*Simulator) float64 { return 0 }

func (e *VesselLocationInformationEvent) Execute(*Simulator) any {
	return LocationData{
		Vessel:   e.vessel.Name(),
		Company:  e.vessel.Company(),
		Location: e.location.Location,
		Journey:  e.location.Journey,
	}
}

func (e *VesselLocationInformationEvent) Equal(other Event) bool {
	o, ok := other.(*VesselLocationInformationEvent)
	return ok && e.sameVesselEvent(&o.vesselEvent) && e.location.Equal(o.location)
}

func (e *VesselLocationInformationEvent) String() string {
	return describe("VesselLocationInformationEvent", e)
}

// vesselCargoEvent is the pick-up or drop-off side of a trade.
type vesselCargoEvent struct {
	vesselEvent
	trade  Trade
	pickup bool
}

func newVesselCargoEvent(time float64, v *Vessel, trade Trade, pickup bool, verb string) vesselCargoEvent {
	kind := "drop-off"
	if pickup {
		kind = "pick-up"
	}
	return vesselCargoEvent{
		vesselEvent: vesselEvent{
			DurationEvent: DurationEvent{baseEvent: baseEvent{
				time: time,
				info: fmt.Sprintf("%s %s %s of %s", v.Name(), verb, kind, trade.ID),
			}},
			vessel: v,
		},
		trade:  trade,
		pickup: pickup,
	}
}

func (e *vesselCargoEvent) Trade() Trade      { return e.trade }
func (e *vesselCargoEvent) IsPickup() bool    { return e.pickup }
func (e *vesselCargoEvent) IsDropOff() bool   { return !e.pickup }
func (e *vesselCargoEvent) port() Location    { return Task{Trade: e.trade, Pickup: e.pickup}.Location() }
func (e *vesselCargoEvent) Location() Position { return At(e.port()) }

func (e *vesselCargoEvent) Distance(*Simulator) float64 { return 0 }

func (e *vesselCargoEvent) sameCargoEvent(o *vesselCargoEvent) bool {
	return e.sameVesselEvent(&o.vesselEvent) && e.trade == o.trade && e.pickup == o.pickup
}

// CargoData is returned by ArrivalEvent and CargoTransferEvent.
type CargoData struct {
	Vessel     string   `json:"vessel"`
	Company    string   `json:"company"`
	Trade      string   `json:"trade"`
	CargoType  string   `json:"cargo_type"`
	Amount     float64  `json:"amount"`
	Pickup     bool     `json:"pickup"`
	Port       Location `json:"port"`
	Violations []string `json:"violations,omitempty"`
	Err        string   `json:"error,omitempty"`
}

func (e *vesselCargoEvent) data() CargoData {
	return CargoData{
		Vessel:    e.vessel.Name(),
		Company:   e.vessel.Company(),
		Trade:     e.trade.ID,
		CargoType: e.trade.CargoType,
		Amount:    e.trade.Amount,
		Pickup:    e.pickup,
		Port:      e.port(),
	}
}

// ArrivalEvent is a vessel arriving at the port of a pick-up or drop-off. The
// trade's time window is checked against the event time; violations are
// logged and reported but never abort the simulation.
type ArrivalEvent struct {
	vesselCargoEvent
}

// NewArrivalEvent creates an arrival for the pick-up (or drop-off) of trade.
func NewArrivalEvent(time float64, v *Vessel, trade Trade, pickup bool) *ArrivalEvent {
	return &ArrivalEvent{vesselCargoEvent: newVesselCargoEvent(time, v, trade, pickup, "arrives for")}
}

// Distance is the length of the trade's leg from origin to destination.
func (e *ArrivalEvent) Distance(sim *Simulator) float64 {
	return sim.Network().Distance(e.trade.Origin, e.trade.Destination)
}

func (e *ArrivalEvent) Execute(sim *Simulator) any {
	e.vessel.SetPosition(At(e.port()))
	data := e.data()
	data.Violations = e.windowViolations()
	for _, v := range data.Violations {
		logrus.Errorf("time window violation: vessel %s, trade %s: %s", e.vessel.Name(), e.trade.ID, v)
	}
	sim.metrics.WindowViolations += len(data.Violations)
	e.vessel.EventOccurrence(sim, e)
	return data
}

func (e *ArrivalEvent) windowViolations() []string {
	w := e.trade.Window
	var out []string
	if e.pickup {
		if w.EarliestPickup.Before(e.time) {
			out = append(out, fmt.Sprintf("pick-up at %.2f before earliest pick-up %.2f", e.time, w.EarliestPickup.At))
		}
		if w.LatestPickup.After(e.time) {
			out = append(out, fmt.Sprintf("pick-up at %.2f after latest pick-up %.2f", e.time, w.LatestPickup.At))
		}
		return out
	}
	if w.EarliestDropOff.Before(e.time) {
		out = append(out, fmt.Sprintf("drop-off at %.2f before earliest drop-off %.2f", e.time, w.EarliestDropOff.At))
	}
	if w.LatestDropOff.After(e.time) {
		out = append(out, fmt.Sprintf("drop-off at %.2f after latest drop-off %.2f", e.time, w.LatestDropOff.At))
	}
	return out
}

func (e *ArrivalEvent) Equal(other Event) bool {
	o, ok := other.(*ArrivalEvent)
	return ok && e.sameCargoEvent(&o.vesselCargoEvent)
}

func (e *ArrivalEvent) String() string { return describe("ArrivalEvent", e) }

// CargoTransferEvent loads or unloads the trade's cargo at its time.
type CargoTransferEvent struct {
	vesselCargoEvent
}

// NewCargoTransferEvent creates the loading (or unloading) of trade, finishing at time.
func NewCargoTransferEvent(time float64, v *Vessel, trade Trade, pickup bool) *CargoTransferEvent {
	return &CargoTransferEvent{vesselCargoEvent: newVesselCargoEvent(time, v, trade, pickup, "completes")}
}

func (e *CargoTransferEvent) Execute(sim *Simulator) any {
	data := e.data()
	var err error
	if e.pickup {
		err = e.vessel.LoadCargo(e.trade)
	} else {
		err = e.vessel.UnloadCargo(e.trade)
	}
	if err != nil {
		logrus.Errorf("cargo transfer failed: %v", err)
		data.Err = err.Error()
	} else if !e.pickup && sim.Authority() != nil {
		sim.Authority().TradeFulfilled(e.trade)
	}
	e.vessel.EventOccurrence(sim, e)
	return data
}

func (e *CargoTransferEvent) Equal(other Event) bool {
	o, ok := other.(*CargoTransferEvent)
	return ok && e.sameCargoEvent(&o.vesselCargoEvent)
}

func (e *CargoTransferEvent) String() string { return describe("CargoTransferEvent", e) }
