package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// AnnouncementData is returned by the announcement events.
type AnnouncementData struct {
	CargoTime float64 `json:"cargo_time"`
	Trades    int     `json:"trades"`
	Queued    bool    `json:"settlement_queued"`
}

// CargoAnnouncementEvent tells the market about the trades that will be
// available at cargoTime and queues their settlement.
type CargoAnnouncementEvent struct {
	baseEvent
	cargoTime float64
}

// NewCargoAnnouncementEvent creates an announcement at time for the trades of cargoTime.
func NewCargoAnnouncementEvent(time, cargoTime float64) *CargoAnnouncementEvent {
	return &CargoAnnouncementEvent{baseEvent: baseEvent{time: time}, cargoTime: cargoTime}
}

// CargoTime is the time the announced trades become available.
func (e *CargoAnnouncementEvent) CargoTime() float64 { return e.cargoTime }

func (e *CargoAnnouncementEvent) Execute(sim *Simulator) any {
	data := announce(sim, e.cargoTime)
	e.info = fmt.Sprintf("Announced %d trades for %s", data.Trades, FormatTime(e.cargoTime))
	return data
}

// Equal compares kind and times; info is only known after execution.
func (e *CargoAnnouncementEvent) Equal(other Event) bool {
	o, ok := other.(*CargoAnnouncementEvent)
	return ok && e.time == o.time && e.cargoTime == o.cargoTime
}

func (e *CargoAnnouncementEvent) String() string { return describe("CargoAnnouncementEvent", e) }

// FirstCargoAnnouncementEvent is the announcement of the first round. Besides
// the trades of cargoTime it announces the trades available at its own time
// and queues their settlement.
type FirstCargoAnnouncementEvent struct {
	CargoAnnouncementEvent
}

// NewFirstCargoAnnouncementEvent creates the first-round announcement.
func NewFirstCargoAnnouncementEvent(time, cargoTime float64) *FirstCargoAnnouncementEvent {
	return &FirstCargoAnnouncementEvent{CargoAnnouncementEvent: *NewCargoAnnouncementEvent(time, cargoTime)}
}

func (e *FirstCargoAnnouncementEvent) Execute(sim *Simulator) any {
	now := announce(sim, e.time)
	next := announce(sim, e.cargoTime)
	e.info = fmt.Sprintf("Announced %d trades now and %d trades for %s", now.Trades, next.Trades, FormatTime(e.cargoTime))
	next.Trades += now.Trades
	return next
}

func (e *FirstCargoAnnouncementEvent) Equal(other Event) bool {
	o, ok := other.(*FirstCargoAnnouncementEvent)
	return ok && e.time == o.time && e.cargoTime == o.cargoTime
}

func (e *FirstCargoAnnouncementEvent) String() string {
	return describe("FirstCargoAnnouncementEvent", e)
}

func announce(sim *Simulator, cargoTime float64) AnnouncementData {
	trades := CopyTrades(sim.cargo.Trades(cargoTime))
	sim.market.InformFutureTrades(sim.Context(), trades, cargoTime, sim.Companies())
	data := AnnouncementData{CargoTime: cargoTime, Trades: len(trades)}
	auction := NewAuctionCargoEvent(cargoTime)
	if !sim.Queue().Contains(auction) {
		data.Queued = sim.Schedule(auction) == nil
	}
	logrus.Debugf("announced %d trades for %.2f", len(trades), cargoTime)
	return data
}

// AuctionCargoEvent settles the auction of the trades available at its time.
type AuctionCargoEvent struct {
	baseEvent
}

// NewAuctionCargoEvent creates the settlement of the trades of time.
func NewAuctionCargoEvent(time float64) *AuctionCargoEvent {
	return &AuctionCargoEvent{baseEvent: baseEvent{time: time}}
}

// Execute runs the settlement and returns its *AllocationResult.
func (e *AuctionCargoEvent) Execute(sim *Simulator) any {
	result := sim.settle(e.time)
	e.info = result.Summary()
	return result
}

// Equal compares kind and time; info is only known after execution.
func (e *AuctionCargoEvent) Equal(other Event) bool {
	o, ok := other.(*AuctionCargoEvent)
	return ok && e.time == o.time
}

func (e *AuctionCargoEvent) String() string { return describe("AuctionCargoEvent", e) }
