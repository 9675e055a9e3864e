package sim

import (
	"fmt"
	"math"
)

// Location is a point in the operating space. Ports are locations with a name.
type Location struct {
	Name string
	X    float64
	Y    float64
}

func (l Location) String() string {
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("(%.4f, %.4f)", l.X, l.Y)
}

// Journey describes a vessel in transit between two locations.
type Journey struct {
	Origin      Location
	Destination Location
	StartTime   float64 // time the vessel left Origin (hours)
}

func (j Journey) String() string {
	return fmt.Sprintf("%s -> %s (start %.2f)", j.Origin, j.Destination, j.StartTime)
}

// Position is where a vessel is: either at a Location or on a Journey.
type Position struct {
	Location Location
	Journey  *Journey
}

// At returns a Position at the given location.
func At(l Location) Position {
	return Position{Location: l}
}

// OnJourney returns a Position for a vessel in transit.
func OnJourney(origin, destination Location, startTime float64) Position {
	return Position{Journey: &Journey{Origin: origin, Destination: destination, StartTime: startTime}}
}

// InTransit reports whether the position describes a journey.
func (p Position) InTransit() bool {
	return p.Journey != nil
}

// IsAt reports whether the position is (not in transit) exactly at l.
func (p Position) IsAt(l Location) bool {
	return !p.InTransit() && p.Location == l
}

// Equal compares two positions by value.
func (p Position) Equal(o Position) bool {
	if p.InTransit() != o.InTransit() {
		return false
	}
	if p.InTransit() {
		return *p.Journey == *o.Journey
	}
	return p.Location == o.Location
}

func (p Position) String() string {
	if p.InTransit() {
		return "OnJourney<" + p.Journey.String() + ">"
	}
	return p.Location.String()
}

// JourneyLocation interpolates the location of a vessel on a journey at time t.
// Before departure the origin is returned and after the expected arrival the destination.
func JourneyLocation(network Network, j Journey, v *Vessel, t float64) Location {
	distance := network.Distance(j.Origin, j.Destination)
	travelTime := v.TravelTime(distance)
	if t <= j.StartTime || distance == 0 {
		return j.Origin
	}
	if math.IsInf(travelTime, 0) || t >= j.StartTime+travelTime {
		return j.Destination
	}
	fraction := (t - j.StartTime) / travelTime
	return Location{
		X: j.Origin.X + (j.Destination.X-j.Origin.X)*fraction,
		Y: j.Origin.Y + (j.Destination.Y-j.Origin.Y)*fraction,
	}
}

// VesselLocation resolves the vessel's current location at time t, interpolating
// along a journey if the vessel is in transit.
func VesselLocation(network Network, v *Vessel, t float64) Location {
	pos := v.Position()
	if pos.InTransit() {
		return JourneyLocation(network, *pos.Journey, v, t)
	}
	return pos.Location
}
