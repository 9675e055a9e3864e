package scenario

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/freight-sim/freight-sim/sim"
	"github.com/freight-sim/freight-sim/sim/cargo"
	"github.com/freight-sim/freight-sim/sim/company"
	"github.com/freight-sim/freight-sim/sim/market"
	"github.com/freight-sim/freight-sim/sim/network"
)

// DefaultAgentTimeout bounds company calls when the scenario sets no timeout.
const DefaultAgentTimeout = 2 * time.Second

// Built is a simulator wired from a scenario, with handles on its parts.
type Built struct {
	Simulator *sim.Simulator
	Network   *network.UnitNetwork
	Cargo     sim.CargoSource
	Market    *market.AuctionMarket
	Companies []*company.TradingCompany
}

// Build validates the scenario and wires network, cargo source, market,
// companies and vessels into a simulator.
func Build(s *Scenario) (*Built, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", s.Name, err)
	}
	timeout := s.AgentTimeout
	if timeout == 0 {
		timeout = DefaultAgentTimeout
	}
	cfg := sim.NewSimulatorConfig(s.Horizon, timeout, s.Seed)
	rng := sim.NewPartitionedRNG(s.Seed)

	ports := make([]sim.Location, len(s.Network.Ports))
	for i, p := range s.Network.Ports {
		ports[i] = sim.Location{Name: p.Name, X: p.X, Y: p.Y}
	}
	if s.Network.RandomPorts > 0 {
		ports = network.RandomPorts(rng.ForSubsystem(sim.SubsystemNetwork), s.Network.RandomPorts)
	}
	net, err := network.NewUnitNetwork(ports, s.Network.Scale)
	if err != nil {
		return nil, fmt.Errorf("building network: %w", err)
	}

	source, err := buildCargo(s.Cargo, net, rng)
	if err != nil {
		return nil, err
	}

	b := &Built{Network: net, Cargo: source, Market: market.NewAuctionMarket(timeout)}
	var companies []sim.Company
	for _, cs := range s.Companies {
		c, err := buildCompany(cs, net)
		if err != nil {
			return nil, err
		}
		b.Companies = append(b.Companies, c)
		companies = append(companies, c)
	}

	b.Simulator, err = sim.NewSimulator(cfg, sim.Collaborators{
		Cargo:     source,
		Market:    b.Market,
		Companies: companies,
		Network:   net,
	})
	if err != nil {
		return nil, err
	}
	for _, c := range b.Companies {
		c.Bind(b.Simulator)
	}
	logrus.Infof("scenario %q: %d ports, %d trading times, %d companies, %d vessels",
		s.Name, len(net.Ports()), len(source.TradingTimes()), len(b.Companies), len(b.Simulator.Vessels()))
	return b, nil
}

func buildCargo(spec CargoSpec, net *network.UnitNetwork, rng *sim.PartitionedRNG) (sim.CargoSource, error) {
	cargoRNG := rng.ForSubsystem(sim.SubsystemCargo)
	if d := spec.Distribution; d != nil {
		source, err := cargo.NewDistributionSource(cargo.DistributionConfig{
			Epoch:          d.Epoch,
			Schedule:       d.Schedule,
			Frequency:      spec.Frequency,
			Horizon:        d.Horizon,
			TradesPerRound: d.TradesPerRound,
			CargoTypes:     d.CargoTypes,
			MinAmount:      d.MinAmount,
			MaxAmount:      d.MaxAmount,
			Probability:    d.Probability,
			PickupSlack:    d.PickupSlack,
			DropOffSlack:   d.DropOffSlack,
		}, net, cargoRNG)
		if err != nil {
			return nil, err
		}
		return source, nil
	}

	trades := make([]sim.Trade, 0, len(spec.Trades))
	for i, t := range spec.Trades {
		origin, ok := net.Port(t.Origin)
		if !ok {
			return nil, fmt.Errorf("cargo.trades[%d]: unknown port %q", i, t.Origin)
		}
		destination, ok := net.Port(t.Destination)
		if !ok {
			return nil, fmt.Errorf("cargo.trades[%d]: unknown port %q", i, t.Destination)
		}
		trades = append(trades, sim.Trade{
			ID:          t.ID,
			Origin:      origin,
			Destination: destination,
			CargoType:   t.CargoType,
			Amount:      t.Amount,
			Time:        t.Time,
			Probability: t.Probability,
			Window: sim.TimeWindow{
				EarliestPickup:  bound(t.EarliestPickup),
				LatestPickup:    bound(t.LatestPickup),
				EarliestDropOff: bound(t.EarliestDropOff),
				LatestDropOff:   bound(t.LatestDropOff),
			},
		})
	}
	return cargo.NewStaticSource(trades, spec.Frequency, cargoRNG), nil
}

func bound(v *float64) sim.Bound {
	if v == nil {
		return sim.Bound{}
	}
	return sim.BoundAt(*v)
}

func buildCompany(spec CompanySpec, net *network.UnitNetwork) (*company.TradingCompany, error) {
	fleet := make([]*sim.Vessel, 0, len(spec.Vessels))
	for _, vs := range spec.Vessels {
		cfg := sim.VesselConfig{Name: vs.Name, Company: spec.Name, Speed: vs.Speed}
		for _, c := range vs.Capacities {
			cfg.Capacities = append(cfg.Capacities, sim.CargoCapacity{CargoType: c.CargoType, Capacity: c.Capacity, LoadingRate: c.LoadingRate})
		}
		if vs.Port != "" {
			port, ok := net.Port(vs.Port)
			if !ok {
				return nil, fmt.Errorf("vessel %s: unknown port %q", vs.Name, vs.Port)
			}
			cfg.Location = &port
		}
		fleet = append(fleet, sim.NewVessel(cfg))
	}
	return company.New(company.Config{
		Name:            spec.Name,
		Fleet:           fleet,
		CostPerDistance: spec.CostPerDistance,
		CostPerHour:     spec.CostPerHour,
		Margin:          spec.Margin,
		Jitter:          spec.Jitter,
	}), nil
}
