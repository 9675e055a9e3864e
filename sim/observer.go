package sim

import (
	"reflect"
	"slices"
)

// EventObserver is notified after every executed event with the data the event
// returned. Observers run on the simulation goroutine and must not block.
type EventObserver interface {
	Notify(sim *Simulator, ev Event, data any)
}

// ObserverFunc adapts a function to EventObserver.
type ObserverFunc func(sim *Simulator, ev Event, data any)

func (f ObserverFunc) Notify(sim *Simulator, ev Event, data any) { f(sim, ev, data) }

type registration struct {
	id uint64
	o  EventObserver
}

// RegisterObserver adds o to the observers. The returned function removes
// this registration; it works for any observer, comparable or not.
func (sim *Simulator) RegisterObserver(o EventObserver) (unregister func()) {
	sim.nextObserver++
	id := sim.nextObserver
	sim.observers = append(sim.observers, registration{id: id, o: o})
	return func() {
		sim.observers = slices.DeleteFunc(sim.observers, func(r registration) bool { return r.id == id })
	}
}

// UnregisterObserver removes every registration of o. Observers whose dynamic
// type is not comparable, such as an ObserverFunc, can only be removed through
// the function RegisterObserver returned.
func (sim *Simulator) UnregisterObserver(o EventObserver) {
	if o == nil || !reflect.TypeOf(o).Comparable() {
		return
	}
	sim.observers = slices.DeleteFunc(sim.observers, func(r registration) bool {
		return reflect.TypeOf(r.o) == reflect.TypeOf(o) && r.o == o
	})
}

func (sim *Simulator) notify(ev Event, data any) {
	for _, r := range sim.observers {
		r.o.Notify(sim, ev, data)
	}
}
