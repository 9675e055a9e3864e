// sim/simulator.go
package sim

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
)

// announcementLead is how far before a trading time its announcement is made,
// for every round but the first.
const announcementLead = 1e-10

// Simulator is the core object that holds simulation time, the event queue and
// the collaborators, and runs the event loop.
type Simulator struct {
	cfg   SimulatorConfig
	clock float64
	queue *EventQueue
	ctx   context.Context

	cargo     CargoSource
	market    Market
	companies []Company
	names     []string
	network   Network
	authority *MarketAuthority
	rng       *PartitionedRNG

	observers    []registration
	nextObserver uint64

	auctions  []*AllocationResult
	metrics   *Metrics
}

// NewSimulator creates a simulator. The collaborators are validated; vessels
// are not touched until Run.
func NewSimulator(cfg SimulatorConfig, c Collaborators) (*Simulator, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid collaborators: %w", err)
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = NewSimulatorConfig(0, cfg.AgentTimeout, cfg.Seed).Horizon
	}
	sim := &Simulator{
		cfg:       cfg,
		ctx:       context.Background(),
		cargo:     c.Cargo,
		market:    c.Market,
		companies: slices.Clone(c.Companies),
		network:   c.Network,
		authority: NewMarketAuthority(),
		rng:       NewPartitionedRNG(cfg.Seed),
		metrics:   NewMetrics(),
	}
	for _, company := range sim.companies {
		sim.names = append(sim.names, company.Name())
	}
	sim.queue = newEventQueue(sim)
	return sim, nil
}

// Clock returns the current simulation time in hours.
func (sim *Simulator) Clock() float64 { return sim.clock }

// Config returns the simulator configuration.
func (sim *Simulator) Config() SimulatorConfig { return sim.cfg }

// Queue returns the event queue.
func (sim *Simulator) Queue() *EventQueue { return sim.queue }

// Context returns the context of the current run.
func (sim *Simulator) Context() context.Context { return sim.ctx }

// Companies returns the participating companies in registration order.
func (sim *Simulator) Companies() []Company { return slices.Clone(sim.companies) }

func (sim *Simulator) companyNames() []string { return sim.names }

// Vessels returns every vessel of every company.
func (sim *Simulator) Vessels() []*Vessel {
	var out []*Vessel
	for _, c := range sim.companies {
		out = append(out, c.Fleet()...)
	}
	return out
}

func (sim *Simulator) Network() Network            { return sim.network }
func (sim *Simulator) Authority() *MarketAuthority { return sim.authority }
func (sim *Simulator) RNG() *PartitionedRNG        { return sim.rng }
func (sim *Simulator) Metrics() *Metrics           { return sim.metrics }

// Auctions returns the results of the auction rounds settled so far.
func (sim *Simulator) Auctions() []*AllocationResult { return slices.Clone(sim.auctions) }

// Schedule pushes an event into the event queue. A rejected event is a
// configuration error: it is logged and returned, and the simulation goes on.
func (sim *Simulator) Schedule(ev Event) error {
	if err := sim.queue.Put(ev); err != nil {
		logrus.Errorf("[t %010.2f] cannot schedule event: %v", sim.clock, err)
		return err
	}
	return nil
}

// Run executes events until the queue is empty, the next event lies beyond the
// horizon or ctx is cancelled.
func (sim *Simulator) Run(ctx context.Context) error {
	sim.ctx = ctx
	defer func() { sim.ctx = context.Background() }()

	sim.setUpAnnouncements()
	sim.placeVessels()
	sim.reportLocations()

	for sim.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			logrus.Warnf("[t %010.2f] Simulation cancelled: %v", sim.clock, err)
			return err
		}
		if sim.queue.Peek().Time() > sim.cfg.Horizon {
			break
		}
		ev := sim.queue.Get()
		// advance the clock
		sim.clock = max(sim.clock, ev.Time())
		logrus.Infof("[t %010.2f] Executing %T", sim.clock, ev)
		data := ev.Execute(sim)
		if p, ok := ev.(performer); ok {
			p.markPerformed()
		}
		sim.metrics.EventsExecuted++
		sim.notify(ev, data)
	}
	sim.metrics.SimEndedTime = sim.clock
	logrus.Infof("[t %010.2f] Simulation ended, %d events left in queue", sim.clock, sim.queue.Len())
	return nil
}

// setUpAnnouncements queues one announcement per trading time.
func (sim *Simulator) setUpAnnouncements() {
	freq := sim.cargo.Frequency()
	for _, t := range sim.cargo.TradingTimes() {
		if t <= 0 {
			continue
		}
		var ev Event
		switch {
		case t == freq && len(sim.cargo.Trades(0)) > 0:
			ev = NewFirstCargoAnnouncementEvent(0, t)
		case t == freq:
			ev = NewCargoAnnouncementEvent(0, t)
		default:
			ev = NewCargoAnnouncementEvent(max(0, t-freq-announcementLead), t)
		}
		if !sim.queue.Contains(ev) {
			_ = sim.Schedule(ev)
		}
	}
}

// placeVessels puts every vessel without a location on a random port.
func (sim *Simulator) placeVessels() {
	ports := sim.network.Ports()
	if len(ports) == 0 {
		return
	}
	rng := sim.rng.ForSubsystem(SubsystemPlacement)
	for _, v := range sim.Vessels() {
		if v.Located() {
			continue
		}
		port := ports[rng.Intn(len(ports))]
		v.SetPosition(At(port))
		logrus.Debugf("placed vessel %s at %s", v.Name(), port)
	}
}

// reportLocations tells the observers where every vessel starts.
func (sim *Simulator) reportLocations() {
	for _, v := range sim.Vessels() {
		ev := NewVesselLocationInformationEvent(-1, v, v.Position())
		sim.notify(ev, ev.Execute(sim))
	}
}
