package sim

import (
	"fmt"
	"math"
	"slices"
)

// Bound is an optional point in time. An unset bound means unconstrained.
type Bound struct {
	At  float64
	Set bool
}

// BoundAt returns a set bound.
func BoundAt(t float64) Bound {
	return Bound{At: t, Set: true}
}

// Before reports whether t lies strictly before a set bound.
func (b Bound) Before(t float64) bool {
	return b.Set && t < b.At
}

// After reports whether t lies strictly after a set bound.
func (b Bound) After(t float64) bool {
	return b.Set && t > b.At
}

// OrDefault returns the bound's time or def when unset.
func (b Bound) OrDefault(def float64) float64 {
	if !b.Set {
		return def
	}
	return b.At
}

// TimeWindow holds the pick-up and drop-off windows of a trade.
type TimeWindow struct {
	EarliestPickup  Bound
	LatestPickup    Bound
	EarliestDropOff Bound
	LatestDropOff   Bound
}

// Clean returns the four bounds with unset earliest bounds as 0 and unset
// latest bounds as +Inf.
func (w TimeWindow) Clean() [4]float64 {
	return [4]float64{
		w.EarliestPickup.OrDefault(0),
		w.LatestPickup.OrDefault(math.Inf(1)),
		w.EarliestDropOff.OrDefault(0),
		w.LatestDropOff.OrDefault(math.Inf(1)),
	}
}

// Trade is a request to transport an amount of cargo from an origin to a destination port.
// Trade is a comparable value: copying a Trade (or a slice of trades) never aliases state.
type Trade struct {
	ID          string
	Origin      Location
	Destination Location
	CargoType   string
	Amount      float64
	Time        float64 // time the trade becomes available for allocation
	Probability float64 // probability the trade is realised; 0 is treated as 1
	Window      TimeWindow
}

func (t Trade) String() string {
	return fmt.Sprintf("Trade[%s %s, %.1f]: %s->%s", t.ID, t.CargoType, t.Amount, t.Origin, t.Destination)
}

// CopyTrades returns an independent copy of trades.
func CopyTrades(trades []Trade) []Trade {
	if trades == nil {
		return []Trade{}
	}
	return slices.Clone(trades)
}

// Contract is a trade awarded to a company at an agreed payment.
type Contract struct {
	Trade     Trade
	Payment   float64
	Company   string
	Fulfilled bool
}

// CopyContracts returns an independent copy of contracts.
func CopyContracts(contracts []Contract) []Contract {
	if contracts == nil {
		return []Contract{}
	}
	return slices.Clone(contracts)
}

// Bid is a company's offer to transport a trade for Amount.
type Bid struct {
	Trade   Trade
	Amount  float64
	Company string
}
