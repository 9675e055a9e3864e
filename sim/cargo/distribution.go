package cargo

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/freight-sim/freight-sim/sim"
)

// DistributionConfig describes randomly generated trades.
type DistributionConfig struct {
	// Epoch is the calendar date of simulation hour 0. Only used with Schedule.
	Epoch time.Time
	// Schedule is a cron expression (or descriptor such as "@every 720h")
	// evaluated on the simulated calendar. Empty means a round every Frequency hours.
	Schedule       string
	Frequency      float64 // hours between rounds when Schedule is empty
	Horizon        float64 // last hour a round may happen
	TradesPerRound int
	CargoTypes     []string
	MinAmount      float64
	MaxAmount      float64
	Probability    float64 // realisation probability of every trade, 0 means 1
	PickupSlack    float64 // hours the pick-up window stays open, 0 leaves it open
	DropOffSlack   float64 // hours after the pick-up window to deliver, 0 leaves it open
}

// Validate checks the configuration.
func (c DistributionConfig) Validate() error {
	var errs []error
	if c.Schedule == "" && c.Frequency <= 0 {
		errs = append(errs, errors.New("either schedule or a positive frequency is required"))
	}
	if c.Horizon <= 0 {
		errs = append(errs, fmt.Errorf("horizon must be positive, got %v", c.Horizon))
	}
	if c.TradesPerRound <= 0 {
		errs = append(errs, fmt.Errorf("trades per round must be positive, got %d", c.TradesPerRound))
	}
	if len(c.CargoTypes) == 0 {
		errs = append(errs, errors.New("at least one cargo type is required"))
	}
	if c.MinAmount <= 0 || c.MaxAmount < c.MinAmount {
		errs = append(errs, fmt.Errorf("invalid amount range [%v, %v]", c.MinAmount, c.MaxAmount))
	}
	if c.Probability < 0 || c.Probability > 1 {
		errs = append(errs, fmt.Errorf("probability must be in [0,1], got %v", c.Probability))
	}
	return errors.Join(errs...)
}

// DistributionSource is a StaticSource whose trades are drawn at construction
// from a DistributionConfig.
type DistributionSource struct {
	*StaticSource
	cfg DistributionConfig
}

// NewDistributionSource draws every round's trades up front from rng so the
// result only depends on the seed.
func NewDistributionSource(cfg DistributionConfig, network sim.Network, rng *rand.Rand) (*DistributionSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cargo distribution: %w", err)
	}
	ports := network.Ports()
	if len(ports) < 2 {
		return nil, fmt.Errorf("cargo distribution needs at least 2 ports, got %d", len(ports))
	}
	times, freq, err := TradingCalendar(cfg)
	if err != nil {
		return nil, err
	}

	var trades []sim.Trade
	for _, t := range times {
		for i := 0; i < cfg.TradesPerRound; i++ {
			trades = append(trades, drawTrade(cfg, ports, rng, t, i))
		}
	}
	logrus.Debugf("generated %d trades over %d rounds", len(trades), len(times))
	return &DistributionSource{StaticSource: NewStaticSource(trades, freq, rng), cfg: cfg}, nil
}

func drawTrade(cfg DistributionConfig, ports []sim.Location, rng *rand.Rand, t float64, i int) sim.Trade {
	origin := rng.Intn(len(ports))
	destination := rng.Intn(len(ports) - 1)
	if destination >= origin {
		destination++
	}
	trade := sim.Trade{
		ID:          fmt.Sprintf("t%g-%02d", t, i),
		Origin:      ports[origin],
		Destination: ports[destination],
		CargoType:   cfg.CargoTypes[rng.Intn(len(cfg.CargoTypes))],
		Amount:      cfg.MinAmount + rng.Float64()*(cfg.MaxAmount-cfg.MinAmount),
		Time:        t,
		Probability: cfg.Probability,
	}
	trade.Window.EarliestPickup = sim.BoundAt(t)
	if cfg.PickupSlack > 0 {
		trade.Window.LatestPickup = sim.BoundAt(t + cfg.PickupSlack)
		if cfg.DropOffSlack > 0 {
			trade.Window.LatestDropOff = sim.BoundAt(t + cfg.PickupSlack + cfg.DropOffSlack)
		}
	}
	return trade
}

// TradingCalendar returns the trading times in hours and the round frequency.
// With a cron schedule the times are the schedule's activations on the
// calendar starting at Epoch; otherwise rounds happen at 0, f, 2f, ...
func TradingCalendar(cfg DistributionConfig) ([]float64, float64, error) {
	if cfg.Schedule == "" {
		var times []float64
		for t := 0.0; t <= cfg.Horizon; t += cfg.Frequency {
			times = append(times, t)
		}
		return times, cfg.Frequency, nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing trading schedule %q: %w", cfg.Schedule, err)
	}
	epoch := cfg.Epoch
	if epoch.IsZero() {
		epoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	end := epoch.Add(time.Duration(cfg.Horizon * float64(time.Hour)))
	var times []float64
	// Cron expressions may fire on the epoch itself; @every delays start after it.
	current := epoch.Add(-time.Second)
	if _, ok := schedule.(cron.ConstantDelaySchedule); ok {
		current = epoch
	}
	for {
		next := schedule.Next(current)
		if next.IsZero() || next.After(end) {
			break
		}
		times = append(times, next.Sub(epoch).Hours())
		current = next
	}
	if len(times) == 0 {
		return nil, 0, fmt.Errorf("trading schedule %q has no activation within %v hours", cfg.Schedule, cfg.Horizon)
	}
	freq := cfg.Horizon
	if len(times) > 1 {
		freq = times[1] - times[0]
	}
	return times, freq, nil
}
