package network

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freight-sim/freight-sim/sim"
)

func TestUnitNetwork_Distance(t *testing.T) {
	a := sim.Location{Name: "a", X: 0, Y: 0}
	b := sim.Location{Name: "b", X: 0.3, Y: 0.4}
	n, err := NewUnitNetwork([]sim.Location{a, b}, 100)
	require.NoError(t, err)

	assert.InDelta(t, 50.0, n.Distance(a, b), 1e-9)
	assert.Equal(t, n.Distance(a, b), n.Distance(b, a))
	assert.Zero(t, n.Distance(a, a))

	got, ok := n.Port("b")
	assert.True(t, ok)
	assert.Equal(t, b, got)
	_, ok = n.Port("z")
	assert.False(t, ok)
}

func TestNewUnitNetwork_Validation(t *testing.T) {
	_, err := NewUnitNetwork(nil, 1)
	assert.Error(t, err)

	_, err = NewUnitNetwork([]sim.Location{
		{Name: "a", X: 0.5, Y: 0.5},
		{Name: "a", X: 0.1, Y: 0.1},
		{Name: "", X: 0.1, Y: 0.1},
		{Name: "far", X: 2, Y: 0},
	}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate port "a"`)
	assert.Contains(t, err.Error(), "has no name")
	assert.Contains(t, err.Error(), "outside the unit square")
}

func TestRandomPorts_Deterministic(t *testing.T) {
	p1 := RandomPorts(rand.New(rand.NewSource(5)), 4)
	p2 := RandomPorts(rand.New(rand.NewSource(5)), 4)

	assert.Equal(t, p1, p2)
	assert.Equal(t, "port_003", p1[3].Name)
	n, err := NewUnitNetwork(p1, 1)
	require.NoError(t, err)
	assert.Len(t, n.Ports(), 4)
}
