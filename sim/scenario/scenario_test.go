package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freight-sim/freight-sim/sim"
)

func TestLoadScenario_Static(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "static.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "static-demo", s.Name)
	assert.Equal(t, time.Second, s.AgentTimeout)
	require.Len(t, s.Cargo.Trades, 2)
	require.NotNil(t, s.Cargo.Trades[1].LatestDropOff)
	assert.Equal(t, 200.0, *s.Cargo.Trades[1].LatestDropOff)
	assert.Nil(t, s.Cargo.Trades[1].LatestPickup)
	require.Len(t, s.Companies, 2)
	assert.Equal(t, "home", s.Companies[0].Vessels[0].Port)
}

func TestLoadScenario_Distribution(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "distribution.yaml"))

	require.NoError(t, err)
	require.NotNil(t, s.Cargo.Distribution)
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), s.Cargo.Distribution.Epoch.UTC())
	assert.Equal(t, 6, s.Network.RandomPorts)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParseScenario_SchemaRejects(t *testing.T) {
	base, err := os.ReadFile(filepath.Join("testdata", "static.yaml"))
	require.NoError(t, err)

	tests := []struct {
		name string
		doc  string
	}{
		{"unknown top-level field", string(base) + "colour: blue\n"},
		{"missing companies", "name: x\nnetwork: {random_ports: 3}\ncargo: {frequency: 1}\n"},
		{"port outside unit square", "name: x\nnetwork: {ports: [{name: a, x: 2, y: 0}, {name: b, x: 0, y: 0}]}\ncargo: {}\ncompanies: [{name: c, cost_per_distance: 1, vessels: []}]\n"},
		{"bad timeout", "name: x\nagent_timeout: soon\nnetwork: {random_ports: 3}\ncargo: {}\ncompanies: [{name: c, cost_per_distance: 1, vessels: []}]\n"},
		{"negative amount", "name: x\nnetwork: {random_ports: 3}\ncargo: {trades: [{id: t, origin: a, destination: b, cargo_type: g, amount: -1, time: 0}]}\ncompanies: [{name: c, cost_per_distance: 1, vessels: []}]\n"},
		{"not yaml", "name: [unterminated\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestScenario_Validate(t *testing.T) {
	// GIVEN a scenario breaking several cross-field rules
	s := &Scenario{
		Name:    "broken",
		Network: NetworkSpec{Ports: []PortSpec{{Name: "a"}, {Name: "b", X: 1}}},
		Cargo: CargoSpec{Trades: []TradeSpec{
			{ID: "t1", Origin: "a", Destination: "zz"},
			{ID: "t1", Origin: "b", Destination: "b"},
		}},
		Companies: []CompanySpec{
			{Name: "c1", Vessels: []VesselSpec{{Name: "v"}}},
			{Name: "c2", Vessels: []VesselSpec{{Name: "v", Port: "nowhere"}}},
		},
	}

	// WHEN validated
	err := s.Validate()

	// THEN every problem is reported
	require.Error(t, err)
	for _, want := range []string{`unknown port "zz"`, `duplicate id "t1"`, `both "b"`, `duplicate vessel "v"`, `unknown port "nowhere"`} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestBuild_StaticRun(t *testing.T) {
	// GIVEN the static scenario built into a simulator
	s, err := LoadScenario(filepath.Join("testdata", "static.yaml"))
	require.NoError(t, err)
	b, err := Build(s)
	require.NoError(t, err)
	require.Len(t, b.Companies, 2)
	assert.Len(t, b.Simulator.Vessels(), 2)
	assert.Equal(t, []float64{0, 24}, b.Cargo.TradingTimes())

	// WHEN it runs
	require.NoError(t, b.Simulator.Run(context.Background()))

	// THEN the nearby company wins and delivers both trades
	contracts := b.Simulator.Authority().Contracts("near")
	require.Len(t, contracts, 2)
	for _, c := range contracts {
		assert.True(t, c.Fulfilled, c.Trade.ID)
	}
	assert.Equal(t, sim.BoundAt(200), contracts[1].Trade.Window.LatestDropOff)
	assert.Zero(t, b.Simulator.Metrics().WindowViolations)
}

func TestBuild_DistributionIsDeterministic(t *testing.T) {
	run := func() []int {
		s, err := LoadScenario(filepath.Join("testdata", "distribution.yaml"))
		require.NoError(t, err)
		b, err := Build(s)
		require.NoError(t, err)
		require.NoError(t, b.Simulator.Run(context.Background()))
		var awarded []int
		for _, r := range b.Simulator.Auctions() {
			awarded = append(awarded, r.Awarded())
		}
		for _, name := range []string{"acme", "globex"} {
			awarded = append(awarded, len(b.Simulator.Authority().Contracts(name)))
		}
		return awarded
	}

	first, second := run(), run()

	assert.Equal(t, first, second)
	assert.Len(t, first, 3+2, "three monthly rounds plus two companies")
}

func TestBuild_RejectsInvalid(t *testing.T) {
	_, err := Build(&Scenario{Name: "empty"})
	assert.Error(t, err)
}
