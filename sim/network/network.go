// Package network provides the Euclidean port network used by the simulator.
package network

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/freight-sim/freight-sim/sim"
)

// UnitNetwork places ports in the unit square [0,1]² and measures straight-line
// distance scaled by Scale.
type UnitNetwork struct {
	ports  []sim.Location
	byName map[string]sim.Location
	scale  float64
}

// NewUnitNetwork validates the ports and builds the network. A non-positive
// scale means distances stay in unit-square units.
func NewUnitNetwork(ports []sim.Location, scale float64) (*UnitNetwork, error) {
	if len(ports) == 0 {
		return nil, errors.New("network needs at least one port")
	}
	if scale <= 0 {
		scale = 1
	}
	n := &UnitNetwork{byName: make(map[string]sim.Location, len(ports)), scale: scale}
	var errs []error
	for _, p := range ports {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("port at (%v, %v) has no name", p.X, p.Y))
			continue
		}
		if _, dup := n.byName[p.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate port %q", p.Name))
			continue
		}
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			errs = append(errs, fmt.Errorf("port %q at (%v, %v) outside the unit square", p.Name, p.X, p.Y))
			continue
		}
		n.byName[p.Name] = p
		n.ports = append(n.ports, p)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return n, nil
}

// RandomPorts draws n uniformly placed ports named port_000, port_001, ...
func RandomPorts(rng *rand.Rand, n int) []sim.Location {
	ports := make([]sim.Location, n)
	for i := range ports {
		ports[i] = sim.Location{Name: fmt.Sprintf("port_%03d", i), X: rng.Float64(), Y: rng.Float64()}
	}
	return ports
}

// Distance is the scaled Euclidean distance between a and b.
func (n *UnitNetwork) Distance(a, b sim.Location) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y) * n.scale
}

// Port looks a port up by name.
func (n *UnitNetwork) Port(name string) (sim.Location, bool) {
	p, ok := n.byName[name]
	return p, ok
}

// Ports returns the ports in declaration order.
func (n *UnitNetwork) Ports() []sim.Location {
	return slices.Clone(n.ports)
}
