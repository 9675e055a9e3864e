package sim

import (
	"fmt"
	"maps"
	"math"

	"github.com/sirupsen/logrus"
)

// VesselConfig groups the static parameters of a vessel.
type VesselConfig struct {
	Name       string
	Company    string
	Speed      float64 // distance units per hour
	Capacities []CargoCapacity
	Location   *Location // nil places the vessel on a random port at start
}

// Vessel is a ship owned by one company. The simulator never owns vessels; it
// only queues events against them. A vessel has at most one queued event at a
// time: the current step of its schedule.
type Vessel struct {
	name     string
	company  string
	speed    float64
	hold     *CargoHold
	position Position
	located  bool
	laden    bool

	onboard    map[Trade]bool
	schedule   *Schedule
	pending    VesselEvent
	journeyLog []VesselEvent
}

// NewVessel creates a vessel with an empty hold and an empty schedule.
func NewVessel(cfg VesselConfig) *Vessel {
	v := &Vessel{
		name:    cfg.Name,
		company: cfg.Company,
		speed:   cfg.Speed,
		hold:    NewCargoHold(cfg.Capacities...),
		onboard: make(map[Trade]bool),
	}
	if cfg.Location != nil {
		v.SetPosition(At(*cfg.Location))
	}
	v.schedule = NewSchedule(v)
	return v
}

func (v *Vessel) Name() string    { return v.name }
func (v *Vessel) Company() string { return v.company }
func (v *Vessel) Speed() float64  { return v.speed }
func (v *Vessel) Hold() *CargoHold {
	return v.hold
}

// Position returns where the vessel is, possibly on a journey.
func (v *Vessel) Position() Position { return v.position }

// SetPosition moves the vessel.
func (v *Vessel) SetPosition(p Position) {
	v.position = p
	v.located = true
}

// Located reports whether the vessel has been given a position.
func (v *Vessel) Located() bool { return v.located }

// Laden reports whether the vessel was carrying cargo when it last departed.
func (v *Vessel) Laden() bool { return v.laden }

// HasAnyLoad reports whether any cargo is aboard.
func (v *Vessel) HasAnyLoad() bool { return !v.hold.Empty() }

// TravelTime returns the hours needed to cover distance.
func (v *Vessel) TravelTime(distance float64) float64 {
	if distance <= 0 {
		return 0
	}
	if v.speed <= 0 {
		return math.Inf(1)
	}
	return distance / v.speed
}

// LoadingTime returns the hours needed to load or unload amount of cargoType.
func (v *Vessel) LoadingTime(cargoType string, amount float64) float64 {
	rate, ok := v.hold.LoadingRate(cargoType)
	if !ok || rate <= 0 {
		return 0
	}
	return amount / rate
}

// LoadCargo puts the trade's cargo aboard.
func (v *Vessel) LoadCargo(t Trade) error {
	if v.onboard[t] {
		return fmt.Errorf("vessel %s: trade %s already aboard", v.name, t.ID)
	}
	if err := v.hold.Load(t.CargoType, t.Amount); err != nil {
		return fmt.Errorf("vessel %s: %w", v.name, err)
	}
	v.onboard[t] = true
	return nil
}

// UnloadCargo takes the trade's cargo off the vessel.
func (v *Vessel) UnloadCargo(t Trade) error {
	if err := v.hold.Unload(t.CargoType, t.Amount); err != nil {
		return fmt.Errorf("vessel %s: %w", v.name, err)
	}
	delete(v.onboard, t)
	return nil
}

// Schedule returns a copy of the vessel's current schedule. Companies modify the
// copy and hand it back through a ScheduleProposal.
func (v *Vessel) Schedule() *Schedule {
	return v.schedule.Copy()
}

// JourneyLog returns the vessel events executed so far.
func (v *Vessel) JourneyLog() []VesselEvent {
	out := make([]VesselEvent, len(v.journeyLog))
	copy(out, v.journeyLog)
	return out
}

// EventOccurrence is called by every vessel event once it has applied its
// effect. It records the event and, if the event was the current step of the
// schedule, advances the schedule and queues the next step.
func (v *Vessel) EventOccurrence(sim *Simulator, ev VesselEvent) {
	v.journeyLog = append(v.journeyLog, ev)
	if v.pending == nil || v.pending != ev {
		return
	}
	v.pending = nil
	switch ev.(type) {
	case *ArrivalEvent:
		v.schedule.arrived = true
	case *CargoTransferEvent:
		v.schedule.advance()
	}
	v.scheduleNext(sim)
}

// ApplySchedule replaces the vessel's schedule. The schedule is verified first;
// on success the queued step of the old schedule is removed and the first step
// of the new one is queued. A cargo transfer that is already under way stays
// queued and must remain the first task of the new schedule.
func (v *Vessel) ApplySchedule(sim *Simulator, s *Schedule) error {
	next, err := v.prepareSchedule(sim, s)
	if err != nil {
		return err
	}
	v.commitSchedule(sim, next)
	return nil
}

// prepareSchedule checks s against the vessel's current state and returns the
// copy to commit. The vessel is left untouched.
func (v *Vessel) prepareSchedule(sim *Simulator, s *Schedule) (*Schedule, error) {
	if s == nil || s.vessel != v {
		return nil, fmt.Errorf("vessel %s: %w: schedule belongs to another vessel", v.name, ErrInvalidSchedule)
	}
	next := s.Copy()
	next.arrived = false
	if v.transferring() {
		if len(next.tasks) == 0 || next.tasks[0] != v.schedule.tasks[0] {
			return nil, fmt.Errorf("vessel %s: %w: cargo transfer of %s in progress must stay first",
				v.name, ErrInvalidSchedule, v.schedule.tasks[0].Trade.ID)
		}
		next.arrived = true
	}
	if err := next.Verify(sim); err != nil {
		return nil, fmt.Errorf("vessel %s: %w", v.name, err)
	}
	return next, nil
}

// commitSchedule replaces the schedule with one returned by prepareSchedule.
// A cargo transfer in progress keeps its queued event.
func (v *Vessel) commitSchedule(sim *Simulator, next *Schedule) {
	if v.pending != nil && !v.transferring() {
		sim.Queue().Remove(v.pending)
		v.pending = nil
	}
	v.schedule = next
	if v.pending == nil {
		v.scheduleNext(sim)
	}
	logrus.Debugf("vessel %s: applied schedule with %d tasks", v.name, len(next.tasks))
}

func (v *Vessel) transferring() bool {
	_, ok := v.pending.(*CargoTransferEvent)
	return ok && v.schedule.arrived
}

func (v *Vessel) scheduleNext(sim *Simulator) {
	next := v.schedule.nextEvent(sim)
	if next == nil {
		return
	}
	if err := sim.Schedule(next); err != nil {
		return
	}
	v.pending = next
}

// Snapshot returns a detached copy of the vessel's hold, position and
// schedule. The copy has no queued event and no journey log; planning on it
// never touches the vessel itself.
func (v *Vessel) Snapshot() *Vessel {
	c := &Vessel{
		name:     v.name,
		company:  v.company,
		speed:    v.speed,
		hold:     v.hold.clone(),
		position: v.position,
		located:  v.located,
		laden:    v.laden,
		onboard:  maps.Clone(v.onboard),
	}
	if j := v.position.Journey; j != nil {
		journey := *j
		c.position.Journey = &journey
	}
	c.schedule = v.schedule.CopyFor(c)
	return c
}

func (v *Vessel) onboardTrades() map[Trade]bool {
	return maps.Clone(v.onboard)
}

func (v *Vessel) String() string {
	return fmt.Sprintf("Vessel[%s/%s at %s]", v.company, v.name, v.position)
}
