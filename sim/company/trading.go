// Package company provides a reference trading company: it bids its estimated
// transport cost plus a margin and schedules won trades greedily.
package company

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/freight-sim/freight-sim/sim"
)

// Config groups the parameters of a TradingCompany.
type Config struct {
	Name            string
	Fleet           []*sim.Vessel
	CostPerDistance float64 // cost of one distance unit sailed
	CostPerHour     float64 // cost of one hour spent loading or unloading
	Margin          float64 // relative mark-up on the estimated cost
	Jitter          float64 // relative random spread of bids, 0 disables it
}

// TradingCompany is the reference Company implementation. It plans on a
// snapshot of its fleet taken on the simulation goroutine, so a call that
// outlives its timeout never reads live simulator state.
type TradingCompany struct {
	cfg Config

	mu        sync.Mutex
	rng       *rand.Rand
	announced map[float64]int
	won       []sim.Contract

	viewMu sync.Mutex
	view   *fleetView
}

// fleetView is the fleet as it stood when a round started.
type fleetView struct {
	now     float64
	network sim.Network
	vessels []*sim.Vessel // snapshots, in fleet order
}

// New creates a company. It must be bound to its simulator before the run.
func New(cfg Config) *TradingCompany {
	return &TradingCompany{cfg: cfg, announced: make(map[float64]int)}
}

// Bind takes the company's RNG partition and a first snapshot of its fleet.
// It must be called from the goroutine that runs the simulator.
func (c *TradingCompany) Bind(s *sim.Simulator) {
	c.mu.Lock()
	c.rng = s.RNG().ForSubsystem(sim.SubsystemCompany(c.cfg.Name))
	c.mu.Unlock()
	c.PrepareSettlement(s, s.Clock())
}

// PrepareSettlement snapshots the fleet ahead of an auction round.
func (c *TradingCompany) PrepareSettlement(s *sim.Simulator, _ float64) {
	view := &fleetView{now: s.Clock(), network: s.Network(), vessels: make([]*sim.Vessel, len(c.cfg.Fleet))}
	for i, v := range c.cfg.Fleet {
		view.vessels[i] = v.Snapshot()
	}
	c.viewMu.Lock()
	c.view = view
	c.viewMu.Unlock()
}

func (c *TradingCompany) currentView() (*fleetView, error) {
	c.viewMu.Lock()
	defer c.viewMu.Unlock()
	if c.view == nil {
		return nil, errors.New("company not bound to a simulator")
	}
	return c.view, nil
}

func (c *TradingCompany) Name() string          { return c.cfg.Name }
func (c *TradingCompany) Fleet() []*sim.Vessel { return c.cfg.Fleet }

// Won returns every contract the company has received.
func (c *TradingCompany) Won() []sim.Contract {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sim.CopyContracts(c.won)
}

// PreInform records the size of an upcoming round.
func (c *TradingCompany) PreInform(_ context.Context, trades []sim.Trade, t float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.announced[t] = len(trades)
	return nil
}

// Inform bids on every trade some vessel of the fleet could carry.
func (c *TradingCompany) Inform(ctx context.Context, trades []sim.Trade) ([]sim.Bid, error) {
	view, err := c.currentView()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var bids []sim.Bid
	for _, t := range trades {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cost, ok := view.estimate(t, c.cfg)
		if !ok {
			continue
		}
		amount := cost * (1 + c.cfg.Margin)
		if c.cfg.Jitter > 0 {
			amount *= 1 + c.cfg.Jitter*(c.rng.Float64()-0.5)
		}
		bids = append(bids, sim.Bid{Trade: t, Amount: amount, Company: c.cfg.Name})
	}
	return bids, nil
}

// estimate is the cheapest cost over the fleet of sailing to the trade's origin,
// carrying the cargo to its destination and handling it at both ends.
func (view *fleetView) estimate(t sim.Trade, cfg Config) (float64, bool) {
	best := math.Inf(1)
	for _, v := range view.vessels {
		capacity, ok := v.Hold().Capacity(t.CargoType)
		if !ok || capacity < t.Amount {
			continue
		}
		here := sim.VesselLocation(view.network, v, view.now)
		distance := view.network.Distance(here, t.Origin) + view.network.Distance(t.Origin, t.Destination)
		handling := 2 * v.LoadingTime(t.CargoType, t.Amount)
		best = min(best, distance*cfg.CostPerDistance+handling*cfg.CostPerHour)
	}
	return best, !math.IsInf(best, 1)
}

// Receive schedules every won contract on the vessel that would finish it
// earliest and proposes the changed schedules.
func (c *TradingCompany) Receive(ctx context.Context, contracts []sim.Contract, _ sim.LedgerView, _ []sim.Trade) (*sim.ScheduleProposal, error) {
	view, err := c.currentView()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.won = append(c.won, contracts...)
	c.mu.Unlock()

	planned := make(map[int]*sim.Schedule)
	proposal := sim.NewScheduleProposal()
	for _, contract := range contracts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		best, bestTime := -1, math.Inf(1)
		var bestSchedule *sim.Schedule
		for i, v := range view.vessels {
			s, ok := planned[i]
			if !ok {
				s = v.Schedule()
			}
			candidate := s.Copy()
			candidate.AddTransportation(contract.Trade)
			if done := candidate.CompletionTimeAt(view.network, view.now); done < bestTime {
				best, bestSchedule, bestTime = i, candidate, done
			}
		}
		if best < 0 {
			logrus.Warnf("company %s cannot schedule trade %s", c.cfg.Name, contract.Trade.ID)
			continue
		}
		planned[best] = bestSchedule
		proposal.ScheduledTrades = append(proposal.ScheduledTrades, contract.Trade)
		if cost, ok := view.estimate(contract.Trade, c.cfg); ok {
			proposal.Costs[contract.Trade.ID] = cost
		}
	}
	for i, s := range planned {
		v := c.cfg.Fleet[i]
		proposal.Schedules[v.Name()] = s.CopyFor(v)
	}
	return proposal, nil
}
