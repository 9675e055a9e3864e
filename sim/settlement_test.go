package sim

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallWithTimeout(t *testing.T) {
	t.Run("returns the value", func(t *testing.T) {
		v, err := CallWithTimeout(context.Background(), time.Second, func(context.Context) (int, error) { return 7, nil })
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	})
	t.Run("passes errors through", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := CallWithTimeout(context.Background(), time.Second, func(context.Context) (int, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)
	})
	t.Run("abandons a blocked call", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		start := time.Now()
		_, err := CallWithTimeout(context.Background(), 50*time.Millisecond, func(context.Context) (int, error) {
			<-release
			return 1, nil
		})
		assert.ErrorIs(t, err, ErrCallTimeout)
		assert.Less(t, time.Since(start), time.Second)
	})
	t.Run("recovers panics", func(t *testing.T) {
		_, err := CallWithTimeout(context.Background(), time.Second, func(context.Context) (int, error) { panic("bad company") })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad company")
	})
	t.Run("honours parent cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := CallWithTimeout(ctx, time.Second, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func tenTrades() []Trade {
	trades := make([]Trade, 10)
	for i := range trades {
		trades[i] = newTestTrade(fmt.Sprintf("t%d", i), portA, portB, 1)
	}
	return trades
}

func TestSettlement_BlockedCompanyDoesNotStallRound(t *testing.T) {
	// GIVEN three companies where B never returns and A and C take a while
	const timeout = 200 * time.Millisecond
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	slow := func(context.Context, []Contract, LedgerView, []Trade) (*ScheduleProposal, error) {
		time.Sleep(150 * time.Millisecond)
		return nil, nil
	}
	a := &stubCompany{name: "A", receive: slow}
	b := &stubCompany{name: "B", receive: func(context.Context, []Contract, LedgerView, []Trade) (*ScheduleProposal, error) {
		<-release
		return nil, nil
	}}
	c := &stubCompany{name: "C", receive: slow}
	trades := tenTrades()[:3]
	cargo := &fixedCargo{freq: 24, trades: map[float64][]Trade{0: trades}}
	market := &scriptedMarket{winners: map[string]string{"t0": "A", "t1": "B", "t2": "C"}}
	sim := newTestSimulator(t, cargo, market, a, b, c)
	require.Equal(t, timeout, sim.Config().AgentTimeout)
	hook := test.NewGlobal()
	defer hook.Reset()

	// WHEN the round is settled
	start := time.Now()
	result := NewAuctionCargoEvent(0).Execute(sim).(*AllocationResult)
	elapsed := time.Since(start)

	// THEN the round takes about one timeout, not three
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, 2*timeout)
	// AND A and C got their data while B is reported as timed out
	assert.True(t, a.gotResult())
	assert.True(t, c.gotResult())
	require.Len(t, a.contracts, 1)
	assert.Equal(t, "t0", a.contracts[0].Trade.ID)
	assert.Equal(t, "t2", c.contracts[0].Trade.ID)
	statuses := map[string]NotificationStatus{}
	for _, n := range result.Notifications {
		statuses[n.Company] = n.Status
	}
	assert.Equal(t, map[string]NotificationStatus{"A": NotificationOK, "B": NotificationTimeout, "C": NotificationOK}, statuses)
	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Message == fmt.Sprintf("company B did not acknowledge the auction result within %s", timeout) {
			warned = true
		}
	}
	assert.True(t, warned, "timeout must be logged naming the company and bound")
	// AND the ledger is final despite B's silence
	assert.Equal(t, 3, result.Ledger.Len())
}

func TestSettlement_FailingCompaniesAreIsolated(t *testing.T) {
	a := &stubCompany{name: "A", receive: func(context.Context, []Contract, LedgerView, []Trade) (*ScheduleProposal, error) {
		panic("company bug")
	}}
	b := &stubCompany{name: "B", receive: func(context.Context, []Contract, LedgerView, []Trade) (*ScheduleProposal, error) {
		return nil, errors.New("cannot plan")
	}}
	c := &stubCompany{name: "C"}
	sim := newTestSimulator(t, &fixedCargo{freq: 24, trades: map[float64][]Trade{0: tenTrades()}}, &scriptedMarket{}, a, b, c)

	result := NewAuctionCargoEvent(0).Execute(sim).(*AllocationResult)

	require.Len(t, result.Notifications, 3)
	assert.Equal(t, NotificationError, result.Notifications[0].Status)
	assert.Equal(t, NotificationError, result.Notifications[1].Status)
	assert.Equal(t, NotificationOK, result.Notifications[2].Status)
	assert.True(t, c.gotResult())
}

func TestSettlement_ReportsAwardedRatioAndNeverAppliesUnallocatedTrades(t *testing.T) {
	// GIVEN 10 trades of which the market awards 7 to alpha
	trades := tenTrades()
	winners := map[string]string{}
	for _, tr := range trades[:7] {
		winners[tr.ID] = "alpha"
	}
	v := newTestVessel("v1", "alpha", &portA)
	// AND alpha greedily schedules every trade of the round
	alpha := &stubCompany{name: "alpha", fleet: []*Vessel{v}}
	alpha.receive = func(_ context.Context, _ []Contract, _ LedgerView, all []Trade) (*ScheduleProposal, error) {
		p := NewScheduleProposal()
		s := v.Schedule()
		for _, tr := range all {
			s.AddTransportation(tr)
		}
		p.Schedules[v.Name()] = s
		return p, nil
	}
	sim := newTestSimulator(t, &fixedCargo{freq: 24, trades: map[float64][]Trade{0: trades}}, &scriptedMarket{winners: winners}, alpha)

	// WHEN the round is settled
	ev := NewAuctionCargoEvent(0)
	result := ev.Execute(sim).(*AllocationResult)

	// THEN the summary reports 7/10 and the schedule carrying unallocated trades is refused
	assert.Equal(t, "Awarded 7/10 trades", ev.Info())
	assert.Equal(t, trades[7:], result.Unallocated)
	require.Len(t, result.Schedules, 1)
	assert.False(t, result.Schedules[0].Applied)
	assert.Contains(t, result.Schedules[0].Reason, "t7")
	assert.Zero(t, v.Schedule().Len())
	assert.Zero(t, sim.Queue().Len())
}

func TestSettlement_AppliesScheduleOfAwardedTrades(t *testing.T) {
	trades := tenTrades()
	winners := map[string]string{}
	for _, tr := range trades[:7] {
		winners[tr.ID] = "alpha"
	}
	v := newTestVessel("v1", "alpha", &portA)
	alpha := &stubCompany{name: "alpha", fleet: []*Vessel{v}}
	alpha.receive = func(_ context.Context, won []Contract, _ LedgerView, _ []Trade) (*ScheduleProposal, error) {
		p := NewScheduleProposal()
		s := v.Schedule()
		for _, c := range won {
			s.AddTransportation(c.Trade)
		}
		p.Schedules[v.Name()] = s
		return p, nil
	}
	sim := newTestSimulator(t, &fixedCargo{freq: 24, trades: map[float64][]Trade{0: trades}}, &scriptedMarket{winners: winners}, alpha)

	result := NewAuctionCargoEvent(0).Execute(sim).(*AllocationResult)

	require.Len(t, result.Schedules, 1)
	assert.True(t, result.Schedules[0].Applied)
	assert.Equal(t, trades[:7], v.Schedule().Trades())
	assert.Equal(t, 1, sim.Queue().Len())
	assert.Equal(t, 1, sim.Metrics().SchedulesApplied)
}

func TestSettlement_RefusesScheduleForForeignVessel(t *testing.T) {
	trades := tenTrades()[:1]
	own := newTestVessel("own", "alpha", &portA)
	foreign := newTestVessel("foreign", "beta", &portA)
	alpha := &stubCompany{name: "alpha", fleet: []*Vessel{own}}
	beta := &stubCompany{name: "beta", fleet: []*Vessel{foreign}}
	alpha.receive = func(_ context.Context, won []Contract, _ LedgerView, _ []Trade) (*ScheduleProposal, error) {
		p := NewScheduleProposal()
		s := foreign.Schedule()
		s.AddTransportation(won[0].Trade)
		p.Schedules[foreign.Name()] = s
		return p, nil
	}
	sim := newTestSimulator(t, &fixedCargo{freq: 24, trades: map[float64][]Trade{0: trades}},
		&scriptedMarket{winners: map[string]string{"t0": "alpha"}}, alpha, beta)

	result := NewAuctionCargoEvent(0).Execute(sim).(*AllocationResult)

	require.Len(t, result.Schedules, 1)
	assert.False(t, result.Schedules[0].Applied)
	assert.Zero(t, foreign.Schedule().Len())
}

func TestSettlement_RefusedVesselKeepsItsTrades(t *testing.T) {
	// GIVEN vessel b already carrying t0 and a proposal moving t0 to vessel a
	// while giving b a schedule with a trade the company never won
	trades := tenTrades()
	a := newTestVessel("a", "alpha", &portA)
	b := newTestVessel("b", "alpha", &portA)
	alpha := &stubCompany{name: "alpha", fleet: []*Vessel{a, b}}
	alpha.receive = func(context.Context, []Contract, LedgerView, []Trade) (*ScheduleProposal, error) {
		p := NewScheduleProposal()
		sa := a.Schedule()
		sa.AddTransportation(trades[0])
		sb := NewSchedule(b)
		sb.AddTransportation(trades[9])
		p.Schedules[a.Name()] = sa
		p.Schedules[b.Name()] = sb
		return p, nil
	}
	sim := newTestSimulator(t, &fixedCargo{freq: 24, trades: map[float64][]Trade{0: trades[1:2]}},
		&scriptedMarket{winners: map[string]string{"t1": "alpha"}}, alpha)
	held := b.Schedule()
	held.AddTransportation(trades[0])
	require.NoError(t, b.ApplySchedule(sim, held))

	// WHEN the round settles
	result := NewAuctionCargoEvent(0).Execute(sim).(*AllocationResult)

	// THEN both schedules are refused and t0 stays on b only
	require.Len(t, result.Schedules, 2)
	for _, o := range result.Schedules {
		assert.False(t, o.Applied, o.Vessel)
	}
	assert.Contains(t, result.Schedules[0].Reason, "already scheduled on vessel b")
	assert.Empty(t, a.Schedule().Trades())
	assert.Equal(t, []Trade{trades[0]}, b.Schedule().Trades())
	assert.Equal(t, 1, sim.Queue().Len(), "only b has a queued step")
}

func TestSettlement_TradeMovesBetweenVessels(t *testing.T) {
	// GIVEN vessel b carrying t0 and a proposal handing it over to a
	trades := tenTrades()
	a := newTestVessel("a", "alpha", &portA)
	b := newTestVessel("b", "alpha", &portA)
	alpha := &stubCompany{name: "alpha", fleet: []*Vessel{a, b}}
	alpha.receive = func(context.Context, []Contract, LedgerView, []Trade) (*ScheduleProposal, error) {
		p := NewScheduleProposal()
		sa := a.Schedule()
		sa.AddTransportation(trades[0])
		p.Schedules[a.Name()] = sa
		p.Schedules[b.Name()] = NewSchedule(b)
		return p, nil
	}
	sim := newTestSimulator(t, &fixedCargo{freq: 24, trades: map[float64][]Trade{0: trades[1:2]}},
		&scriptedMarket{}, alpha)
	held := b.Schedule()
	held.AddTransportation(trades[0])
	require.NoError(t, b.ApplySchedule(sim, held))

	// WHEN the round settles
	result := NewAuctionCargoEvent(0).Execute(sim).(*AllocationResult)

	// THEN the hand-over is applied
	require.Len(t, result.Schedules, 2)
	for _, o := range result.Schedules {
		assert.True(t, o.Applied, o.Vessel)
	}
	assert.Equal(t, []Trade{trades[0]}, a.Schedule().Trades())
	assert.Empty(t, b.Schedule().Trades())
	assert.Equal(t, 1, sim.Queue().Len())
}

// preparingCompany records the rounds it was prepared for.
type preparingCompany struct {
	stubCompany
	prepared []float64
}

func (c *preparingCompany) PrepareSettlement(_ *Simulator, t float64) {
	c.prepared = append(c.prepared, t)
}

// orderMarket records how many rounds the company had been prepared for when
// bids were collected.
type orderMarket struct {
	scriptedMarket
	company *preparingCompany
	seen    []int
}

func (m *orderMarket) DistributeTrades(ctx context.Context, t float64, trades []Trade, companies []Company) map[string][]Contract {
	m.seen = append(m.seen, len(m.company.prepared))
	return m.scriptedMarket.DistributeTrades(ctx, t, trades, companies)
}

func TestSettlement_PreparesCompaniesBeforeBidding(t *testing.T) {
	c := &preparingCompany{stubCompany: stubCompany{name: "alpha"}}
	m := &orderMarket{company: c}
	sim := newTestSimulator(t, &fixedCargo{freq: 24, trades: map[float64][]Trade{0: tenTrades()[:1]}}, m, c)

	NewAuctionCargoEvent(0).Execute(sim)
	NewAuctionCargoEvent(24).Execute(sim)

	assert.Equal(t, []float64{0, 24}, c.prepared)
	assert.Equal(t, []int{1, 2}, m.seen)
}

// doubleMarket awards every trade to every company.
type doubleMarket struct{ scriptedMarket }

func (m *doubleMarket) DistributeTrades(_ context.Context, _ float64, trades []Trade, companies []Company) map[string][]Contract {
	out := make(map[string][]Contract)
	for _, c := range companies {
		for _, tr := range trades {
			out[c.Name()] = append(out[c.Name()], Contract{Trade: tr, Payment: 1})
		}
		out["ghost"] = append(out["ghost"], Contract{Trade: trades[0]})
	}
	return out
}

func TestSettlement_TradeAwardedAtMostOnce(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	a, b := &stubCompany{name: "A"}, &stubCompany{name: "B"}
	sim := newTestSimulator(t, &fixedCargo{freq: 24, trades: map[float64][]Trade{0: tenTrades()[:2]}}, &doubleMarket{}, a, b)

	result := NewAuctionCargoEvent(0).Execute(sim).(*AllocationResult)

	assert.Len(t, result.Ledger.Contracts("A"), 2)
	assert.Empty(t, result.Ledger.Contracts("B"))
	assert.Equal(t, "A", result.Ledger.Contracts("A")[0].Company)
	assert.Len(t, errorEntries(hook), 3, "two duplicates and one unknown company")
}

func TestSettlement_TradeCopiesAreIsolated(t *testing.T) {
	trades := tenTrades()[:2]
	mutator := &stubCompany{name: "A", receive: func(_ context.Context, _ []Contract, view LedgerView, ts []Trade) (*ScheduleProposal, error) {
		ts[0].Amount = 999
		for _, others := range view.Others {
			if len(others) > 0 {
				others[0].Amount = 999
			}
		}
		return nil, nil
	}}
	reader := &stubCompany{name: "B"}
	sim := newTestSimulator(t, &fixedCargo{freq: 24, trades: map[float64][]Trade{0: trades}},
		&scriptedMarket{winners: map[string]string{"t0": "B", "t1": "A"}}, mutator, reader)

	result := NewAuctionCargoEvent(0).Execute(sim).(*AllocationResult)

	assert.Equal(t, 1.0, reader.trades[0].Amount)
	assert.Equal(t, 1.0, reader.contracts[0].Trade.Amount)
	assert.Equal(t, 1.0, result.Ledger.Contracts("B")[0].Trade.Amount)
	assert.Equal(t, 1.0, trades[0].Amount)
}
