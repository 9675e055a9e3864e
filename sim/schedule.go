package sim

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

// Task is one transportation operation: the pick-up or the drop-off of a trade.
type Task struct {
	Trade  Trade
	Pickup bool
}

// Location is the port where the task happens.
func (t Task) Location() Location {
	if t.Pickup {
		return t.Trade.Origin
	}
	return t.Trade.Destination
}

// Window returns the earliest and latest bound for the task.
func (t Task) Window() (Bound, Bound) {
	if t.Pickup {
		return t.Trade.Window.EarliestPickup, t.Trade.Window.LatestPickup
	}
	return t.Trade.Window.EarliestDropOff, t.Trade.Window.LatestDropOff
}

func (t Task) String() string {
	kind := "drop-off"
	if t.Pickup {
		kind = "pick-up"
	}
	return fmt.Sprintf("%s %s at %s", kind, t.Trade.ID, t.Location())
}

// Schedule is the ordered list of tasks of one vessel. The vessel turns the
// head of the list into one concrete event at a time: travel to the task's
// port, idle until its window opens, arrive, transfer the cargo.
type Schedule struct {
	vessel  *Vessel
	tasks   []Task
	arrived bool // vessel has arrived for tasks[0] and is transferring
}

// NewSchedule returns an empty schedule for v.
func NewSchedule(v *Vessel) *Schedule {
	return &Schedule{vessel: v}
}

// Vessel returns the vessel the schedule belongs to.
func (s *Schedule) Vessel() *Vessel { return s.vessel }

// Tasks returns a copy of the remaining tasks.
func (s *Schedule) Tasks() []Task {
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Len returns the number of remaining tasks.
func (s *Schedule) Len() int { return len(s.tasks) }

// AddTransportation appends the pick-up and drop-off of trade.
func (s *Schedule) AddTransportation(trade Trade) {
	s.tasks = append(s.tasks, Task{Trade: trade, Pickup: true}, Task{Trade: trade})
}

// InsertTransportation inserts the pick-up of trade before index pickupAt and
// the drop-off before index dropOffAt, both relative to the current task list.
func (s *Schedule) InsertTransportation(trade Trade, pickupAt, dropOffAt int) error {
	if pickupAt < 0 || dropOffAt < pickupAt || dropOffAt > len(s.tasks) {
		return fmt.Errorf("%w: insertion points %d/%d out of range", ErrInvalidSchedule, pickupAt, dropOffAt)
	}
	if s.arrived && pickupAt == 0 {
		return fmt.Errorf("%w: cannot insert before a transfer in progress", ErrInvalidSchedule)
	}
	tasks := make([]Task, 0, len(s.tasks)+2)
	tasks = append(tasks, s.tasks[:pickupAt]...)
	tasks = append(tasks, Task{Trade: trade, Pickup: true})
	tasks = append(tasks, s.tasks[pickupAt:dropOffAt]...)
	tasks = append(tasks, Task{Trade: trade})
	tasks = append(tasks, s.tasks[dropOffAt:]...)
	s.tasks = tasks
	return nil
}

// Trades returns the distinct trades in the schedule in order of first appearance.
func (s *Schedule) Trades() []Trade {
	seen := make(map[Trade]bool, len(s.tasks))
	var out []Trade
	for _, t := range s.tasks {
		if !seen[t.Trade] {
			seen[t.Trade] = true
			out = append(out, t.Trade)
		}
	}
	return out
}

// Copy returns an independent copy bound to the same vessel.
func (s *Schedule) Copy() *Schedule {
	return s.CopyFor(s.vessel)
}

// CopyFor returns an independent copy bound to v, e.g. to turn a plan made on
// a vessel snapshot into a schedule for the vessel itself.
func (s *Schedule) CopyFor(v *Vessel) *Schedule {
	return &Schedule{vessel: v, tasks: s.Tasks(), arrived: s.arrived}
}

// Verify checks that the schedule is feasible for its vessel from the current
// simulation time: every task is reached within its window, cargo never exceeds
// capacity, every trade is picked up before it is dropped off, and the vessel
// ends empty.
func (s *Schedule) Verify(sim *Simulator) error {
	_, err := s.simulate(sim.Network(), sim.Clock())
	return err
}

// CompletionTime returns the time the last task finishes, or +Inf if the
// schedule is infeasible.
func (s *Schedule) CompletionTime(sim *Simulator) float64 {
	return s.CompletionTimeAt(sim.Network(), sim.Clock())
}

// CompletionTimeAt is CompletionTime for a schedule started at now. It reads
// only the schedule's vessel, so it is safe on a vessel snapshot.
func (s *Schedule) CompletionTimeAt(network Network, now float64) float64 {
	t, err := s.simulate(network, now)
	if err != nil {
		return math.Inf(1)
	}
	return t
}

func (s *Schedule) simulate(network Network, now float64) (float64, error) {
	v := s.vessel
	if v == nil {
		return 0, fmt.Errorf("%w: no vessel", ErrInvalidSchedule)
	}
	loc := VesselLocation(network, v, now)
	load := v.hold.loads()
	onboard := v.onboardTrades()
	pickedUp := make(map[Trade]bool)

	for i, task := range s.tasks {
		tr := task.Trade
		if task.Pickup {
			if onboard[tr] || pickedUp[tr] {
				return 0, fmt.Errorf("%w: trade %s picked up twice", ErrInvalidSchedule, tr.ID)
			}
			pickedUp[tr] = true
		} else {
			if !onboard[tr] && !pickedUp[tr] {
				return 0, fmt.Errorf("%w: trade %s dropped off before pick-up", ErrInvalidSchedule, tr.ID)
			}
			delete(onboard, tr)
			delete(pickedUp, tr)
		}

		if !(i == 0 && s.arrived) {
			target := task.Location()
			now += v.TravelTime(network.Distance(loc, target))
			loc = target
			earliest, latest := task.Window()
			if earliest.Before(now) {
				now = earliest.At
			}
			if latest.After(now) {
				return 0, fmt.Errorf("%w: %s reached at %.2f after latest %.2f", ErrInvalidSchedule, task, now, latest.At)
			}
		}
		now += v.LoadingTime(tr.CargoType, tr.Amount)
		if math.IsInf(now, 0) || math.IsNaN(now) {
			return 0, fmt.Errorf("%w: %s unreachable", ErrInvalidSchedule, task)
		}

		capacity, ok := v.hold.Capacity(tr.CargoType)
		if !ok {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidSchedule, task, ErrUnknownCargoType)
		}
		if task.Pickup {
			load[tr.CargoType] += tr.Amount
			if load[tr.CargoType] > capacity+cargoEpsilon {
				return 0, fmt.Errorf("%w: %s: %w", ErrInvalidSchedule, task, ErrOverCapacity)
			}
		} else {
			load[tr.CargoType] -= tr.Amount
		}
	}
	if n := len(onboard) + len(pickedUp); n > 0 {
		return 0, fmt.Errorf("%w: %d trades never dropped off", ErrInvalidSchedule, n)
	}
	return now, nil
}

// nextEvent turns the head of the schedule into the vessel's next event.
func (s *Schedule) nextEvent(sim *Simulator) VesselEvent {
	if len(s.tasks) == 0 {
		return nil
	}
	v := s.vessel
	task := s.tasks[0]
	now := sim.Clock()
	if s.arrived {
		return NewCargoTransferEvent(now+v.LoadingTime(task.Trade.CargoType, task.Trade.Amount), v, task.Trade, task.Pickup)
	}
	target := task.Location()
	if !v.Position().IsAt(target) {
		from := VesselLocation(sim.Network(), v, now)
		return NewTravelEvent(now+v.TravelTime(sim.Network().Distance(from, target)), v, from, target)
	}
	if earliest, _ := task.Window(); earliest.Before(now) {
		return NewIdleEvent(earliest.At, v, target)
	}
	return NewArrivalEvent(now, v, task.Trade, task.Pickup)
}

func (s *Schedule) advance() {
	if len(s.tasks) > 0 {
		s.tasks = s.tasks[1:]
	}
	s.arrived = false
}

// ScheduleProposal is a company's answer to an auction result: new schedules
// for some of its vessels, the trades it scheduled and its cost estimates.
type ScheduleProposal struct {
	Schedules       map[string]*Schedule // keyed by vessel name
	ScheduledTrades []Trade
	Costs           map[string]float64 // keyed by trade ID
}

// NewScheduleProposal returns an empty proposal.
func NewScheduleProposal() *ScheduleProposal {
	return &ScheduleProposal{
		Schedules: make(map[string]*Schedule),
		Costs:     make(map[string]float64),
	}
}
