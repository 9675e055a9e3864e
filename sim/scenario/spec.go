// Package scenario loads simulation scenarios from YAML and builds ready to
// run simulators from them.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is the top-level scenario configuration.
// Loaded from YAML via LoadScenario(path).
type Scenario struct {
	Name         string        `yaml:"name"`
	Seed         int64         `yaml:"seed"`
	Horizon      float64       `yaml:"horizon,omitempty"`       // hours, 0 = until no events are left
	AgentTimeout time.Duration `yaml:"agent_timeout,omitempty"` // bound on every company call
	Network      NetworkSpec   `yaml:"network"`
	Cargo        CargoSpec     `yaml:"cargo"`
	Companies    []CompanySpec `yaml:"companies"`
}

// NetworkSpec lists the ports, or asks for randomly placed ones.
type NetworkSpec struct {
	Scale       float64    `yaml:"scale,omitempty"`
	Ports       []PortSpec `yaml:"ports,omitempty"`
	RandomPorts int        `yaml:"random_ports,omitempty"`
}

// PortSpec is one port in the unit square.
type PortSpec struct {
	Name string  `yaml:"name"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
}

// CargoSpec holds either a fixed list of trades or a distribution.
type CargoSpec struct {
	Frequency    float64           `yaml:"frequency,omitempty"`
	Trades       []TradeSpec       `yaml:"trades,omitempty"`
	Distribution *DistributionSpec `yaml:"distribution,omitempty"`
}

// TradeSpec is a fixed trade. Ports are referenced by name; unset window
// bounds stay open.
type TradeSpec struct {
	ID              string   `yaml:"id"`
	Origin          string   `yaml:"origin"`
	Destination     string   `yaml:"destination"`
	CargoType       string   `yaml:"cargo_type"`
	Amount          float64  `yaml:"amount"`
	Time            float64  `yaml:"time"`
	Probability     float64  `yaml:"probability,omitempty"`
	EarliestPickup  *float64 `yaml:"earliest_pickup,omitempty"`
	LatestPickup    *float64 `yaml:"latest_pickup,omitempty"`
	EarliestDropOff *float64 `yaml:"earliest_drop_off,omitempty"`
	LatestDropOff   *float64 `yaml:"latest_drop_off,omitempty"`
}

// DistributionSpec configures randomly generated trades.
type DistributionSpec struct {
	Epoch          time.Time `yaml:"epoch,omitempty"`
	Schedule       string    `yaml:"schedule,omitempty"` // cron expression on the simulated calendar
	Horizon        float64   `yaml:"horizon"`
	TradesPerRound int       `yaml:"trades_per_round"`
	CargoTypes     []string  `yaml:"cargo_types"`
	MinAmount      float64   `yaml:"min_amount"`
	MaxAmount      float64   `yaml:"max_amount"`
	Probability    float64   `yaml:"probability,omitempty"`
	PickupSlack    float64   `yaml:"pickup_slack,omitempty"`
	DropOffSlack   float64   `yaml:"drop_off_slack,omitempty"`
}

// CompanySpec configures one reference trading company and its fleet.
type CompanySpec struct {
	Name            string       `yaml:"name"`
	CostPerDistance float64      `yaml:"cost_per_distance"`
	CostPerHour     float64      `yaml:"cost_per_hour,omitempty"`
	Margin          float64      `yaml:"margin,omitempty"`
	Jitter          float64      `yaml:"jitter,omitempty"`
	Vessels         []VesselSpec `yaml:"vessels"`
}

// VesselSpec configures one vessel. An empty Port places it at random.
type VesselSpec struct {
	Name       string         `yaml:"name"`
	Speed      float64        `yaml:"speed"`
	Port       string         `yaml:"port,omitempty"`
	Capacities []CapacitySpec `yaml:"capacities"`
}

// CapacitySpec is one cargo container of a vessel.
type CapacitySpec struct {
	CargoType   string  `yaml:"cargo_type"`
	Capacity    float64 `yaml:"capacity"`
	LoadingRate float64 `yaml:"loading_rate"`
}

// LoadScenario reads, schema-checks and strictly decodes the scenario at path.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario schema-checks and strictly decodes a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &s, nil
}

// Validate checks the cross-field rules the schema cannot express.
func (s *Scenario) Validate() error {
	var errs []error
	if s.Horizon < 0 {
		errs = append(errs, fmt.Errorf("horizon must not be negative, got %v", s.Horizon))
	}
	if s.AgentTimeout < 0 {
		errs = append(errs, fmt.Errorf("agent_timeout must not be negative, got %v", s.AgentTimeout))
	}

	ports := make(map[string]bool)
	for _, p := range s.Network.Ports {
		ports[p.Name] = true
	}
	if len(s.Network.Ports) > 0 && s.Network.RandomPorts > 0 {
		errs = append(errs, errors.New("network: ports and random_ports are mutually exclusive"))
	}
	if len(s.Network.Ports) == 0 && s.Network.RandomPorts < 2 {
		errs = append(errs, errors.New("network: at least 2 ports are required"))
	}

	if len(s.Cargo.Trades) > 0 && s.Cargo.Distribution != nil {
		errs = append(errs, errors.New("cargo: trades and distribution are mutually exclusive"))
	}
	if len(s.Cargo.Trades) == 0 && s.Cargo.Distribution == nil {
		errs = append(errs, errors.New("cargo: either trades or a distribution is required"))
	}
	tradeIDs := make(map[string]bool)
	for i, t := range s.Cargo.Trades {
		if tradeIDs[t.ID] {
			errs = append(errs, fmt.Errorf("cargo.trades[%d]: duplicate id %q", i, t.ID))
		}
		tradeIDs[t.ID] = true
		if s.Network.RandomPorts > 0 {
			continue
		}
		for _, port := range []string{t.Origin, t.Destination} {
			if !ports[port] {
				errs = append(errs, fmt.Errorf("cargo.trades[%d]: unknown port %q", i, port))
			}
		}
		if t.Origin == t.Destination {
			errs = append(errs, fmt.Errorf("cargo.trades[%d]: origin and destination are both %q", i, t.Origin))
		}
	}

	vessels := make(map[string]bool)
	for i, c := range s.Companies {
		for j, v := range c.Vessels {
			if vessels[v.Name] {
				errs = append(errs, fmt.Errorf("companies[%d].vessels[%d]: duplicate vessel %q", i, j, v.Name))
			}
			vessels[v.Name] = true
			if v.Port != "" && len(s.Network.Ports) > 0 && !ports[v.Port] {
				errs = append(errs, fmt.Errorf("companies[%d].vessels[%d]: unknown port %q", i, j, v.Port))
			}
		}
	}
	return errors.Join(errs...)
}
