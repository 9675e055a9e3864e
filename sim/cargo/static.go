// Package cargo provides the cargo sources feeding trades into the simulator.
package cargo

import (
	"math"
	"math/rand"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/freight-sim/freight-sim/sim"
)

// StaticSource serves a fixed set of trades grouped by their time. A trade with
// a probability below 1 is realised (or not) the first time its round is
// requested; the outcome is cached so every later request sees the same trades.
type StaticSource struct {
	byTime   map[float64][]sim.Trade
	times    []float64
	freq     float64
	rng      *rand.Rand
	realised map[float64][]sim.Trade
}

// NewStaticSource groups trades by time. A non-positive frequency is derived
// from the smallest gap between trading times. rng may be nil if every trade
// is certain.
func NewStaticSource(trades []sim.Trade, frequency float64, rng *rand.Rand) *StaticSource {
	s := &StaticSource{
		byTime:   make(map[float64][]sim.Trade),
		rng:      rng,
		realised: make(map[float64][]sim.Trade),
	}
	for _, t := range trades {
		if _, ok := s.byTime[t.Time]; !ok {
			s.times = append(s.times, t.Time)
		}
		s.byTime[t.Time] = append(s.byTime[t.Time], t)
	}
	slices.Sort(s.times)
	s.freq = frequency
	if s.freq <= 0 {
		s.freq = smallestGap(s.times)
	}
	return s
}

func smallestGap(times []float64) float64 {
	gap := math.Inf(1)
	for i := 1; i < len(times); i++ {
		gap = min(gap, times[i]-times[i-1])
	}
	if math.IsInf(gap, 1) {
		if len(times) == 1 && times[0] > 0 {
			return times[0]
		}
		return 0
	}
	return gap
}

// TradingTimes returns the times with at least one trade, ascending.
func (s *StaticSource) TradingTimes() []float64 { return slices.Clone(s.times) }

// Frequency returns the interval between trading rounds.
func (s *StaticSource) Frequency() float64 { return s.freq }

// Trades returns the realised trades of time.
func (s *StaticSource) Trades(time float64) []sim.Trade {
	if realised, ok := s.realised[time]; ok {
		return sim.CopyTrades(realised)
	}
	all, ok := s.byTime[time]
	if !ok {
		return []sim.Trade{}
	}
	realised := make([]sim.Trade, 0, len(all))
	for _, t := range all {
		if s.occurs(t) {
			realised = append(realised, t)
		}
	}
	if len(realised) < len(all) {
		logrus.Infof("%d trades of a total of %d trades realised (time: %v)", len(realised), len(all), time)
	}
	s.realised[time] = realised
	return sim.CopyTrades(realised)
}

func (s *StaticSource) occurs(t sim.Trade) bool {
	if t.Probability <= 0 || t.Probability >= 1 || s.rng == nil {
		return true
	}
	return s.rng.Float64() < t.Probability
}

// All returns every trade, realised or not.
func (s *StaticSource) All() []sim.Trade {
	var out []sim.Trade
	for _, t := range s.times {
		out = append(out, s.byTime[t]...)
	}
	return out
}
