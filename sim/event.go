package sim

import (
	"fmt"
	"math"
)

// Event defines the interface for all simulation events.
// Every event has a Time (in hours) and two hooks: AddedToQueue, called once
// when the event is inserted into the queue, and Execute, called once when the
// event is popped at its time. Execute returns event specific data which is
// handed to observers.
type Event interface {
	Time() float64
	Info() string
	AddedToQueue(sim *Simulator)
	Execute(sim *Simulator) any
	// Equal reports structural equality: same concrete kind, time and info,
	// plus the kind's identifying fields.
	Equal(other Event) bool
}

// baseEvent carries the fields shared by all events.
type baseEvent struct {
	time float64
	info string
}

func (e *baseEvent) Time() float64 { return e.time }
func (e *baseEvent) Info() string  { return e.info }

func (e *baseEvent) AddedToQueue(*Simulator) {}

func (e *baseEvent) sameAs(o *baseEvent) bool {
	return e.time == o.time && e.info == o.info
}

// FormatTime renders hours as roughly days and hours, e.g. "~2 day(s) 3.5 hour(s)".
func FormatTime(hours float64) string {
	if hours < 0 || math.IsNaN(hours) {
		return "-"
	}
	if math.IsInf(hours, 1) {
		return "~inf"
	}
	days := math.Floor(hours / 24)
	rest := math.Round((hours-24*days)*10) / 10
	return fmt.Sprintf("~%d day(s) %.1f hour(s)", int64(days), rest)
}

func describe(name string, e Event) string {
	return fmt.Sprintf("Event(%s): time %.3f[%s], info: %s.", name, e.Time(), FormatTime(e.Time()), e.Info())
}

// DurationEvent is an event that takes time: it starts when it is queued and
// finishes at its time.
type DurationEvent struct {
	baseEvent
	timeStarted float64
	started     bool
	performed   bool
}

// NewDurationEvent creates a duration event without any effect of its own.
func NewDurationEvent(time float64, info string) *DurationEvent {
	return &DurationEvent{baseEvent: baseEvent{time: time, info: info}}
}

// AddedToQueue snapshots the start time as min(time, clock).
func (e *DurationEvent) AddedToQueue(sim *Simulator) {
	e.timeStarted = min(e.time, sim.Clock())
	e.started = true
}

// Execute does nothing for a bare duration event.
func (e *DurationEvent) Execute(*Simulator) any { return nil }

// TimeStarted returns the time the event was queued, capped at its own time.
func (e *DurationEvent) TimeStarted() float64 { return e.timeStarted }

// HasStarted reports whether the event has been queued.
func (e *DurationEvent) HasStarted() bool { return e.started }

// PerformedTime is time - TimeStarted once the event has executed, 0 before.
func (e *DurationEvent) PerformedTime() float64 {
	if !e.performed {
		return 0
	}
	return e.time - e.timeStarted
}

func (e *DurationEvent) markPerformed() { e.performed = true }

// Equal implements Event.
func (e *DurationEvent) Equal(other Event) bool {
	o, ok := other.(*DurationEvent)
	return ok && e.sameAs(&o.baseEvent)
}

func (e *DurationEvent) String() string { return describe("DurationEvent", e) }

// performer is implemented by events embedding DurationEvent.
type performer interface {
	markPerformed()
}
