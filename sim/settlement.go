package sim

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrCallTimeout = errors.New("call timed out")

type callResult[T any] struct {
	value T
	err   error
}

// CallWithTimeout runs fn in its own goroutine and waits at most timeout for it.
// On timeout the call is abandoned: fn keeps its (cancelled) context and its
// result is discarded. A panic inside fn is returned as an error. A
// non-positive timeout only bounds the call by ctx.
func CallWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan callResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult[T]{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- callResult[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrCallTimeout, timeout)
		}
		return zero, ctx.Err()
	}
}

// NotificationStatus is the outcome of notifying one company.
type NotificationStatus string

const (
	NotificationOK      NotificationStatus = "ok"
	NotificationTimeout NotificationStatus = "timeout"
	NotificationError   NotificationStatus = "error"
)

// NotificationOutcome records how one company handled the auction result.
type NotificationOutcome struct {
	Company string             `json:"company"`
	Status  NotificationStatus `json:"status"`
	Elapsed time.Duration      `json:"elapsed"`
	Err     error              `json:"-"`
}

// ScheduleOutcome records whether a proposed schedule was applied.
type ScheduleOutcome struct {
	Company string `json:"company"`
	Vessel  string `json:"vessel"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

// AllocationResult is the outcome of one auction round.
type AllocationResult struct {
	Time          float64               `json:"time"`
	Trades        []Trade               `json:"-"`
	Ledger        *AuctionLedger        `json:"-"`
	Unallocated   []Trade               `json:"-"`
	Notifications []NotificationOutcome `json:"notifications"`
	Schedules     []ScheduleOutcome     `json:"schedules"`
}

// Awarded returns the number of trades won by some company.
func (r *AllocationResult) Awarded() int { return len(r.Trades) - len(r.Unallocated) }

// Summary is the operator-facing line for the round.
func (r *AllocationResult) Summary() string {
	return fmt.Sprintf("Awarded %d/%d trades", r.Awarded(), len(r.Trades))
}

// settle runs one auction round for the trades of time. It never fails: every
// collaborator error is logged and the round goes on.
func (sim *Simulator) settle(t float64) *AllocationResult {
	trades := CopyTrades(sim.cargo.Trades(t))
	for _, c := range sim.companies {
		if p, ok := c.(SettlementPreparer); ok {
			p.PrepareSettlement(sim, t)
		}
	}
	awards := sim.market.DistributeTrades(sim.Context(), t, CopyTrades(trades), sim.companies)

	ledger := sim.buildLedger(t, trades, awards)
	awarded := make(map[Trade]bool, ledger.Len())
	for _, tr := range ledger.Trades() {
		awarded[tr] = true
	}
	result := &AllocationResult{Time: t, Trades: trades, Ledger: ledger, Unallocated: []Trade{}}
	for _, tr := range trades {
		if !awarded[tr] {
			result.Unallocated = append(result.Unallocated, tr)
		}
	}
	if sim.authority != nil {
		sim.authority.Record(ledger)
	}
	logrus.Infof("[t %010.2f] Auction: %s", t, result.Summary())

	var proposals []*ScheduleProposal
	result.Notifications, proposals = sim.notifyCompanies(ledger, trades)
	result.Schedules = sim.applyProposals(ledger, proposals)

	sim.metrics.recordAuction(result)
	sim.auctions = append(sim.auctions, result)
	return result
}

// buildLedger turns the market's awards into a ledger. Awards for unknown
// companies, trades outside the round and repeated trades are dropped.
func (sim *Simulator) buildLedger(t float64, trades []Trade, awards map[string][]Contract) *AuctionLedger {
	names := sim.companyNames()
	ledger := NewAuctionLedger(names)
	inRound := make(map[Trade]bool, len(trades))
	for _, tr := range trades {
		inRound[tr] = true
	}
	for company := range awards {
		if !slices.Contains(names, company) {
			logrus.Errorf("auction at %.2f: market awarded %d contracts to unknown company %q", t, len(awards[company]), company)
		}
	}
	taken := make(map[Trade]string)
	for _, company := range names {
		for _, c := range awards[company] {
			if !inRound[c.Trade] {
				logrus.Errorf("auction at %.2f: trade %s awarded to %s is not part of the round", t, c.Trade.ID, company)
				continue
			}
			if winner, ok := taken[c.Trade]; ok {
				logrus.Errorf("auction at %.2f: trade %s awarded to %s was already awarded to %s", t, c.Trade.ID, company, winner)
				continue
			}
			taken[c.Trade] = company
			c.Company = company
			ledger.add(c)
		}
	}
	return ledger
}

// notifyCompanies delivers the round's result to every company concurrently.
// Each call is bounded by the agent timeout; the method returns once every call
// has returned or timed out.
func (sim *Simulator) notifyCompanies(ledger *AuctionLedger, trades []Trade) ([]NotificationOutcome, []*ScheduleProposal) {
	outcomes := make([]NotificationOutcome, len(sim.companies))
	proposals := make([]*ScheduleProposal, len(sim.companies))
	timeout := sim.cfg.AgentTimeout
	ctx := sim.Context()

	var wg sync.WaitGroup
	for i, company := range sim.companies {
		name := sim.companyNames()[i]
		contracts := ledger.Contracts(name)
		view := ledger.ViewFor(name)
		ownTrades := CopyTrades(trades)
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			proposal, err := CallWithTimeout(ctx, timeout, func(ctx context.Context) (*ScheduleProposal, error) {
				return company.Receive(ctx, contracts, view, ownTrades)
			})
			outcome := NotificationOutcome{Company: name, Status: NotificationOK, Elapsed: time.Since(start), Err: err}
			switch {
			case errors.Is(err, ErrCallTimeout):
				outcome.Status = NotificationTimeout
				logrus.Warnf("company %s did not acknowledge the auction result within %s", name, timeout)
			case err != nil:
				outcome.Status = NotificationError
				logrus.Errorf("company %s failed to receive the auction result: %v", name, err)
			default:
				proposals[i] = proposal
			}
			outcomes[i] = outcome
		}()
	}
	wg.Wait()
	return outcomes, proposals
}

// applyProposals applies the schedules returned by the companies, in company
// order. A schedule is refused if it is for a vessel outside the company's
// fleet, carries a trade the company neither won this round nor had already
// scheduled, or carries a trade that stays on another vessel. A company's
// schedules are settled together before any of them is applied, so a refused
// vessel keeps its trades and no trade ends up on two vessels.
func (sim *Simulator) applyProposals(ledger *AuctionLedger, proposals []*ScheduleProposal) []ScheduleOutcome {
	var outcomes []ScheduleOutcome
	for i, company := range sim.companies {
		p := proposals[i]
		if p == nil || len(p.Schedules) == 0 {
			continue
		}
		outcomes = append(outcomes, sim.applyProposal(sim.companyNames()[i], company.Fleet(), ledger, p)...)
	}
	return outcomes
}

func (sim *Simulator) applyProposal(name string, vessels []*Vessel, ledger *AuctionLedger, p *ScheduleProposal) []ScheduleOutcome {
	fleet := make(map[string]*Vessel)
	allowed := make(map[Trade]bool)
	for _, c := range ledger.contracts[name] {
		allowed[c.Trade] = true
	}
	for _, v := range vessels {
		fleet[v.Name()] = v
		for _, tr := range v.schedule.Trades() {
			allowed[tr] = true
		}
	}
	// Trades of vessels keeping their current schedule cannot move elsewhere.
	kept := make(map[Trade]string)
	keep := func(v *Vessel) {
		for _, tr := range v.schedule.Trades() {
			kept[tr] = v.Name()
		}
	}
	for vesselName, v := range fleet {
		if _, ok := p.Schedules[vesselName]; !ok {
			keep(v)
		}
	}

	vesselNames := make([]string, 0, len(p.Schedules))
	for vesselName := range p.Schedules {
		vesselNames = append(vesselNames, vesselName)
	}
	sort.Strings(vesselNames)

	refused := make(map[string]error)
	prepared := make(map[string]*Schedule)
	for {
		claimed := maps.Clone(kept)
		changed := false
		for _, vesselName := range vesselNames {
			if refused[vesselName] != nil {
				continue
			}
			v, s := fleet[vesselName], p.Schedules[vesselName]
			err := sim.checkSchedule(v, s, allowed, claimed)
			var next *Schedule
			if err == nil {
				next, err = v.prepareSchedule(sim, s)
			}
			if err != nil {
				refused[vesselName] = err
				delete(prepared, vesselName)
				if v != nil {
					keep(v)
				}
				changed = true
				continue
			}
			prepared[vesselName] = next
			for _, tr := range s.Trades() {
				claimed[tr] = vesselName
			}
		}
		if !changed {
			break
		}
	}

	outcomes := make([]ScheduleOutcome, 0, len(vesselNames))
	for _, vesselName := range vesselNames {
		outcome := ScheduleOutcome{Company: name, Vessel: vesselName}
		if err := refused[vesselName]; err != nil {
			outcome.Reason = err.Error()
			logrus.Errorf("company %s: schedule for vessel %s refused: %v", name, vesselName, err)
		} else {
			fleet[vesselName].commitSchedule(sim, prepared[vesselName])
			outcome.Applied = true
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (sim *Simulator) checkSchedule(v *Vessel, s *Schedule, allowed map[Trade]bool, claimed map[Trade]string) error {
	if v == nil {
		return fmt.Errorf("%w: vessel not in fleet", ErrInvalidSchedule)
	}
	if s == nil {
		return fmt.Errorf("%w: nil schedule", ErrInvalidSchedule)
	}
	for _, tr := range s.Trades() {
		if !allowed[tr] {
			return fmt.Errorf("%w: trade %s was not awarded to the company", ErrInvalidSchedule, tr.ID)
		}
		if other, ok := claimed[tr]; ok && other != v.Name() {
			return fmt.Errorf("%w: trade %s is already scheduled on vessel %s", ErrInvalidSchedule, tr.ID, other)
		}
	}
	return nil
}
