// Implements the EventQueue, which holds all events waiting to be executed.
// Events are ordered by time; events with equal time leave in insertion order.

package sim

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrNonFiniteTime = errors.New("event time must be finite")

type queueEntry struct {
	event Event
	seq   uint64
}

// eventHeap implements heap.Interface over (time, seq).
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type eventHeap []queueEntry

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if ti, tj := h[i].event.Time(), h[j].event.Time(); ti != tj {
		return ti < tj
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(queueEntry))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// EventQueue is the simulator's time-ordered event queue.
// Not synchronized: only the simulation loop touches it.
type EventQueue struct {
	sim     *Simulator
	entries eventHeap
	nextSeq uint64
}

func newEventQueue(sim *Simulator) *EventQueue {
	return &EventQueue{sim: sim}
}

// Put inserts ev and calls its AddedToQueue hook. Events with an infinite or
// NaN time are rejected and leave the queue unchanged.
func (q *EventQueue) Put(ev Event) error {
	if t := ev.Time(); math.IsInf(t, 0) || math.IsNaN(t) {
		return fmt.Errorf("put %T at %v: %w", ev, t, ErrNonFiniteTime)
	}
	heap.Push(&q.entries, queueEntry{event: ev, seq: q.nextSeq})
	q.nextSeq++
	ev.AddedToQueue(q.sim)
	return nil
}

// Get removes and returns the earliest event, or nil if the queue is empty.
func (q *EventQueue) Get() Event {
	if len(q.entries) == 0 {
		return nil
	}
	return heap.Pop(&q.entries).(queueEntry).event
}

// Peek returns the earliest event without removing it.
func (q *EventQueue) Peek() Event {
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0].event
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int { return len(q.entries) }

// Remove removes every queued event equal to one of evs and returns how many were removed.
func (q *EventQueue) Remove(evs ...Event) int {
	kept := q.entries[:0]
	removed := 0
	for _, entry := range q.entries {
		if matchesAny(entry.event, evs) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	clear(q.entries[len(kept):])
	q.entries = kept
	if removed > 0 {
		heap.Init(&q.entries)
	}
	return removed
}

func matchesAny(ev Event, evs []Event) bool {
	for _, other := range evs {
		if ev.Equal(other) {
			return true
		}
	}
	return false
}

// Contains reports whether an event equal to ev is queued.
func (q *EventQueue) Contains(ev Event) bool {
	_, ok := q.Lookup(ev)
	return ok
}

// Lookup returns the queued instance equal to ev.
func (q *EventQueue) Lookup(ev Event) (Event, bool) {
	for _, entry := range q.entries {
		if entry.event.Equal(ev) {
			return entry.event, true
		}
	}
	return nil, false
}

// Events returns the queued events in the order Get would return them.
func (q *EventQueue) Events() []Event {
	entries := make(eventHeap, len(q.entries))
	copy(entries, q.entries)
	sort.Slice(entries, entries.Less)
	out := make([]Event, len(entries))
	for i, e := range entries {
		out[i] = e.event
	}
	return out
}
