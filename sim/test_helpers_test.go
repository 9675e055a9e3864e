package sim

import (
	"context"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// planeNetwork is a Euclidean network over a fixed set of ports.
type planeNetwork struct {
	ports []Location
}

func (n planeNetwork) Distance(a, b Location) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

func (n planeNetwork) Port(name string) (Location, bool) {
	for _, p := range n.ports {
		if p.Name == name {
			return p, true
		}
	}
	return Location{}, false
}

func (n planeNetwork) Ports() []Location { return append([]Location(nil), n.ports...) }

var (
	portA = Location{Name: "A", X: 0, Y: 0}
	portB = Location{Name: "B", X: 3, Y: 4}
	portC = Location{Name: "C", X: 6, Y: 8}
)

func testNetwork() planeNetwork {
	return planeNetwork{ports: []Location{portA, portB, portC}}
}

// fixedCargo returns the same trades for the same time.
type fixedCargo struct {
	freq   float64
	trades map[float64][]Trade
}

func (c *fixedCargo) TradingTimes() []float64 {
	var times []float64
	for t := range c.trades {
		times = append(times, t)
	}
	slices.Sort(times)
	return times
}

func (c *fixedCargo) Trades(t float64) []Trade { return c.trades[t] }
func (c *fixedCargo) Frequency() float64       { return c.freq }

// scriptedMarket awards trades according to a fixed map of trade ID to company.
type scriptedMarket struct {
	mu       sync.Mutex
	winners  map[string]string
	informed []float64
}

func (m *scriptedMarket) InformFutureTrades(_ context.Context, _ []Trade, t float64, _ []Company) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.informed = append(m.informed, t)
}

func (m *scriptedMarket) DistributeTrades(_ context.Context, _ float64, trades []Trade, _ []Company) map[string][]Contract {
	out := make(map[string][]Contract)
	for _, tr := range trades {
		if company, ok := m.winners[tr.ID]; ok {
			out[company] = append(out[company], Contract{Trade: tr, Payment: 10, Company: company})
		}
	}
	return out
}

// stubCompany records what it receives and answers with a configurable function.
type stubCompany struct {
	name  string
	fleet []*Vessel

	receive func(ctx context.Context, contracts []Contract, view LedgerView, trades []Trade) (*ScheduleProposal, error)

	mu        sync.Mutex
	received  bool
	contracts []Contract
	view      LedgerView
	trades    []Trade
}

func (c *stubCompany) Name() string     { return c.name }
func (c *stubCompany) Fleet() []*Vessel { return c.fleet }

func (c *stubCompany) PreInform(context.Context, []Trade, float64) error { return nil }

func (c *stubCompany) Inform(context.Context, []Trade) ([]Bid, error) { return nil, nil }

func (c *stubCompany) Receive(ctx context.Context, contracts []Contract, view LedgerView, trades []Trade) (*ScheduleProposal, error) {
	c.mu.Lock()
	c.received = true
	c.contracts = contracts
	c.view = view
	c.trades = trades
	c.mu.Unlock()
	if c.receive != nil {
		return c.receive(ctx, contracts, view, trades)
	}
	return nil, nil
}

func (c *stubCompany) gotResult() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received
}

func newTestVessel(name, company string, at *Location) *Vessel {
	return NewVessel(VesselConfig{
		Name:       name,
		Company:    company,
		Speed:      1,
		Capacities: []CargoCapacity{{CargoType: "grain", Capacity: 100, LoadingRate: 10}},
		Location:   at,
	})
}

func newTestTrade(id string, origin, destination Location, amount float64) Trade {
	return Trade{ID: id, Origin: origin, Destination: destination, CargoType: "grain", Amount: amount}
}

func newTestSimulator(t *testing.T, cargo CargoSource, market Market, companies ...Company) *Simulator {
	t.Helper()
	if cargo == nil {
		cargo = &fixedCargo{freq: 24, trades: map[float64][]Trade{}}
	}
	if market == nil {
		market = &scriptedMarket{}
	}
	sim, err := NewSimulator(NewSimulatorConfig(0, 200*time.Millisecond, 42), Collaborators{
		Cargo:     cargo,
		Market:    market,
		Companies: companies,
		Network:   testNetwork(),
	})
	require.NoError(t, err)
	return sim
}
