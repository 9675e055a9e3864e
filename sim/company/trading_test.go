package company

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freight-sim/freight-sim/sim"
	"github.com/freight-sim/freight-sim/sim/cargo"
	"github.com/freight-sim/freight-sim/sim/market"
	"github.com/freight-sim/freight-sim/sim/network"
)

var (
	home  = sim.Location{Name: "home", X: 0, Y: 0}
	mid   = sim.Location{Name: "mid", X: 0.5, Y: 0}
	far   = sim.Location{Name: "far", X: 1, Y: 1}
	grain = []sim.CargoCapacity{{CargoType: "grain", Capacity: 50, LoadingRate: 10}}
)

func newVessel(name, company string, at sim.Location) *sim.Vessel {
	return sim.NewVessel(sim.VesselConfig{Name: name, Company: company, Speed: 10, Capacities: grain, Location: &at})
}

func grainTrade(id string, t float64, amount float64) sim.Trade {
	return sim.Trade{ID: id, Origin: home, Destination: mid, CargoType: "grain", Amount: amount, Time: t}
}

// setUp builds a simulator over a three-port network with the given companies.
func setUp(t *testing.T, trades []sim.Trade, companies ...*TradingCompany) *sim.Simulator {
	t.Helper()
	n, err := network.NewUnitNetwork([]sim.Location{home, mid, far}, 100)
	require.NoError(t, err)
	cs := make([]sim.Company, len(companies))
	for i, c := range companies {
		cs[i] = c
	}
	s, err := sim.NewSimulator(sim.NewSimulatorConfig(0, time.Second, 7), sim.Collaborators{
		Cargo:     cargo.NewStaticSource(trades, 24, nil),
		Market:    market.NewAuctionMarket(time.Second),
		Companies: cs,
		Network:   n,
	})
	require.NoError(t, err)
	for _, c := range companies {
		c.Bind(s)
	}
	return s
}

func TestTradingCompany_Inform(t *testing.T) {
	// GIVEN a company with one vessel at the origin and one far away
	c := New(Config{Name: "acme", CostPerDistance: 1, CostPerHour: 2, Margin: 0.1})
	c.cfg.Fleet = []*sim.Vessel{newVessel("near", "acme", home), newVessel("away", "acme", far)}
	setUp(t, nil, c)

	// WHEN asked for bids on a carriable and an oversized trade
	bids, err := c.Inform(context.Background(), []sim.Trade{grainTrade("ok", 0, 20), grainTrade("huge", 0, 500)})

	// THEN only the carriable trade gets a bid, priced on the nearest vessel
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, "ok", bids[0].Trade.ID)
	assert.Equal(t, "acme", bids[0].Company)
	// 50 distance units plus 2h loading and 2h unloading at 2 per hour, marked up by 10%
	assert.InDelta(t, (50+8)*1.1, bids[0].Amount, 1e-9)
}

func TestTradingCompany_UnboundFails(t *testing.T) {
	c := New(Config{Name: "acme"})

	_, err := c.Inform(context.Background(), nil)
	assert.Error(t, err)
	_, err = c.Receive(context.Background(), nil, sim.LedgerView{}, nil)
	assert.Error(t, err)
}

func TestTradingCompany_JitterIsSeeded(t *testing.T) {
	bid := func() float64 {
		c := New(Config{Name: "acme", CostPerDistance: 1, Jitter: 0.2})
		c.cfg.Fleet = []*sim.Vessel{newVessel("v", "acme", home)}
		setUp(t, nil, c)
		bids, err := c.Inform(context.Background(), []sim.Trade{grainTrade("ok", 0, 20)})
		require.NoError(t, err)
		require.Len(t, bids, 1)
		return bids[0].Amount
	}

	first, second := bid(), bid()

	assert.Equal(t, first, second)
	assert.InDelta(t, 50, first, 5+1e-9)
}

func TestTradingCompany_ReceivePicksEarliestFinish(t *testing.T) {
	// GIVEN two vessels and two contracts
	c := New(Config{Name: "acme", CostPerDistance: 1})
	near, away := newVessel("near", "acme", home), newVessel("away", "acme", far)
	c.cfg.Fleet = []*sim.Vessel{away, near}
	setUp(t, nil, c)
	contracts := []sim.Contract{
		{Trade: grainTrade("a", 0, 20), Payment: 60, Company: "acme"},
		{Trade: grainTrade("b", 0, 20), Payment: 60, Company: "acme"},
	}

	// WHEN receiving them
	p, err := c.Receive(context.Background(), contracts, sim.LedgerView{Own: contracts}, nil)

	// THEN both are chained on the vessel already at the origin
	require.NoError(t, err)
	require.Contains(t, p.Schedules, "near")
	assert.NotContains(t, p.Schedules, "away")
	assert.Equal(t, []sim.Trade{contracts[0].Trade, contracts[1].Trade}, p.Schedules["near"].Trades())
	assert.Equal(t, []sim.Trade{contracts[0].Trade, contracts[1].Trade}, p.ScheduledTrades)
	assert.InDelta(t, 50.0, p.Costs["a"], 1e-9)
	assert.Len(t, c.Won(), 2)
	assert.Equal(t, 0, near.Schedule().Len(), "proposals do not touch the fleet")
}

func TestTradingCompany_ReceiveSkipsUncarriable(t *testing.T) {
	c := New(Config{Name: "acme"})
	c.cfg.Fleet = []*sim.Vessel{newVessel("v", "acme", home)}
	setUp(t, nil, c)

	p, err := c.Receive(context.Background(), []sim.Contract{{Trade: grainTrade("huge", 0, 500)}}, sim.LedgerView{}, nil)

	require.NoError(t, err)
	assert.Empty(t, p.Schedules)
	assert.Empty(t, p.ScheduledTrades)
}

func TestTradingCompany_PlansOnRoundSnapshot(t *testing.T) {
	// GIVEN a bound company whose vessel moves after the round's snapshot
	c := New(Config{Name: "acme", CostPerDistance: 1})
	v := newVessel("v", "acme", home)
	c.cfg.Fleet = []*sim.Vessel{v}
	s := setUp(t, nil, c)
	v.SetPosition(sim.At(far))

	// WHEN bidding and receiving within the round
	bids, err := c.Inform(context.Background(), []sim.Trade{grainTrade("ok", 0, 20)})
	require.NoError(t, err)
	p, err := c.Receive(context.Background(), []sim.Contract{{Trade: grainTrade("ok", 0, 20)}}, sim.LedgerView{}, nil)
	require.NoError(t, err)

	// THEN the plan uses the snapshot, and the schedule is for the vessel itself
	require.Len(t, bids, 1)
	assert.InDelta(t, 50.0, bids[0].Amount, 1e-9)
	require.Contains(t, p.Schedules, "v")
	assert.Same(t, v, p.Schedules["v"].Vessel())
	assert.True(t, v.Position().IsAt(far), "planning leaves the vessel alone")

	// WHEN the next round starts
	c.PrepareSettlement(s, s.Clock())
	bids, err = c.Inform(context.Background(), []sim.Trade{grainTrade("ok", 0, 20)})

	// THEN bids follow the vessel's new position
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.InDelta(t, 50+100*math.Sqrt2, bids[0].Amount, 1e-9)
}

func TestTradingCompany_EndToEnd(t *testing.T) {
	// GIVEN two competing companies and trades in two rounds
	near := New(Config{Name: "near", CostPerDistance: 1, Margin: 0.1})
	near.cfg.Fleet = []*sim.Vessel{newVessel("n1", "near", home)}
	away := New(Config{Name: "away", CostPerDistance: 1, Margin: 0.1})
	away.cfg.Fleet = []*sim.Vessel{newVessel("a1", "away", far)}
	trades := []sim.Trade{grainTrade("r0", 0, 20), grainTrade("r1", 24, 20)}
	s := setUp(t, trades, near, away)

	// WHEN running to completion
	require.NoError(t, s.Run(context.Background()))

	// THEN the nearby company wins both rounds and delivers
	require.Len(t, s.Auctions(), 2)
	for _, r := range s.Auctions() {
		assert.Equal(t, 1, r.Awarded())
	}
	contracts := s.Authority().Contracts("near")
	require.Len(t, contracts, 2)
	for _, c := range contracts {
		assert.True(t, c.Fulfilled, c.Trade.ID)
	}
	assert.Empty(t, s.Authority().Contracts("away"))
	assert.Greater(t, s.Authority().Income("near"), 0.0)
}
