// Package sim provides the core discrete-event engine of the freight market simulator.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - event.go, events_vessel.go, events_cargo.go: event kinds and their two hooks
//     (AddedToQueue at insertion, Execute at their time)
//   - queue.go: the (time, insertion order) event queue
//   - simulator.go: the event loop and the pre-run set-up
//   - settlement.go: an auction round, from market allocation to the concurrent
//     notification of companies and the application of their schedules
//   - vessel.go, schedule.go: how a schedule becomes one vessel event at a time
//
// # Architecture
//
// The sim package defines the collaborator interfaces (CargoSource, Market,
// Company, Network); implementations live in sub-packages:
//   - sim/network/: Euclidean port network
//   - sim/cargo/: static and randomly generated trades
//   - sim/market/: second-price auction market
//   - sim/company/: reference trading company
//   - sim/trace/: in-memory trace and run summary
//   - sim/eventlog/: compressed JSONL event log and SQLite index
//   - sim/scenario/: YAML scenarios and the builder wiring a Simulator
//
// The event loop is single threaded. The only concurrency is the fan-out of
// auction results to companies inside AuctionCargoEvent, which joins before
// any schedule is applied to the queue.
package sim
