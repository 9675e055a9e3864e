package sim

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// SimulatorConfig groups the run parameters of the simulator.
type SimulatorConfig struct {
	Horizon      float64       // last simulated hour to execute (+Inf = until the queue drains)
	AgentTimeout time.Duration // bound on every single company call
	Seed         int64         // master seed for the partitioned RNG
}

// NewSimulatorConfig creates a SimulatorConfig. A non-positive horizon means no horizon.
func NewSimulatorConfig(horizon float64, agentTimeout time.Duration, seed int64) SimulatorConfig {
	if horizon <= 0 {
		horizon = math.Inf(1)
	}
	return SimulatorConfig{Horizon: horizon, AgentTimeout: agentTimeout, Seed: seed}
}

// Collaborators groups the components the simulator consumes through interfaces.
type Collaborators struct {
	Cargo     CargoSource
	Market    Market
	Companies []Company
	Network   Network
}

// Validate checks that every collaborator is present and that company and vessel
// names are unique.
func (c Collaborators) Validate() error {
	var errs []error
	if c.Cargo == nil {
		errs = append(errs, errors.New("cargo source is required"))
	}
	if c.Market == nil {
		errs = append(errs, errors.New("market is required"))
	}
	if c.Network == nil {
		errs = append(errs, errors.New("network is required"))
	}
	companies := make(map[string]bool)
	vessels := make(map[string]bool)
	for i, company := range c.Companies {
		if company == nil {
			errs = append(errs, fmt.Errorf("company %d is nil", i))
			continue
		}
		if companies[company.Name()] {
			errs = append(errs, fmt.Errorf("duplicate company %q", company.Name()))
		}
		companies[company.Name()] = true
		for _, v := range company.Fleet() {
			if vessels[v.Name()] {
				errs = append(errs, fmt.Errorf("duplicate vessel %q", v.Name()))
			}
			vessels[v.Name()] = true
		}
	}
	return errors.Join(errs...)
}
