// Package market provides the auction market allocating trades to companies.
package market

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/freight-sim/freight-sim/sim"
)

// AuctionMarket auctions trades off on a second-price basis: the lowest bid
// wins and is paid the second-lowest bid, or its own bid if it was alone.
// Every company call is bounded by Timeout.
type AuctionMarket struct {
	timeout time.Duration
}

// NewAuctionMarket creates a market bounding company calls by timeout.
func NewAuctionMarket(timeout time.Duration) *AuctionMarket {
	return &AuctionMarket{timeout: timeout}
}

// InformFutureTrades pre-informs every company concurrently and waits for all
// of them. Failures are logged.
func (m *AuctionMarket) InformFutureTrades(ctx context.Context, trades []sim.Trade, t float64, companies []sim.Company) {
	var wg sync.WaitGroup
	for _, company := range companies {
		own := sim.CopyTrades(trades)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sim.CallWithTimeout(ctx, m.timeout, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, company.PreInform(ctx, own, t)
			})
			m.logFailure(company.Name(), "pre_inform", err)
		}()
	}
	wg.Wait()
}

// DistributeTrades collects bids from every company concurrently and awards
// each trade to its lowest bidder.
func (m *AuctionMarket) DistributeTrades(ctx context.Context, t float64, trades []sim.Trade, companies []sim.Company) map[string][]sim.Contract {
	bids := m.collectBids(ctx, trades, companies)

	index := make(map[sim.Trade]int, len(trades))
	for i, tr := range trades {
		if _, dup := index[tr]; !dup {
			index[tr] = i
		}
	}
	perTrade := make([][]sim.Bid, len(trades))
	for i, company := range companies {
		for _, b := range bids[i] {
			idx, ok := index[b.Trade]
			if !ok {
				logrus.Warnf("company %s bid on unknown trade %s", company.Name(), b.Trade.ID)
				continue
			}
			if math.IsNaN(b.Amount) || math.IsInf(b.Amount, 0) || b.Amount < 0 {
				logrus.Warnf("company %s made an invalid bid of %v on %s", company.Name(), b.Amount, b.Trade.ID)
				continue
			}
			b.Company = company.Name()
			perTrade[idx] = append(perTrade[idx], b)
		}
	}

	awards := make(map[string][]sim.Contract)
	for i, tr := range trades {
		winner, payment, ok := SecondPrice(perTrade[i])
		if !ok {
			continue
		}
		awards[winner.Company] = append(awards[winner.Company], sim.Contract{Trade: tr, Payment: payment, Company: winner.Company})
	}
	logrus.Debugf("auction at %.2f: %d trades, %d companies bid", t, len(trades), len(companies))
	return awards
}

// SecondPrice returns the lowest bid and the payment it receives. Ties keep the
// earlier bid. ok is false if there are no bids.
func SecondPrice(bids []sim.Bid) (winner sim.Bid, payment float64, ok bool) {
	if len(bids) == 0 {
		return sim.Bid{}, 0, false
	}
	sorted := append([]sim.Bid(nil), bids...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Amount < sorted[j].Amount })
	if len(sorted) > 1 {
		return sorted[0], sorted[1].Amount, true
	}
	return sorted[0], sorted[0].Amount, true
}

func (m *AuctionMarket) collectBids(ctx context.Context, trades []sim.Trade, companies []sim.Company) [][]sim.Bid {
	bids := make([][]sim.Bid, len(companies))
	var wg sync.WaitGroup
	for i, company := range companies {
		own := sim.CopyTrades(trades)
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := sim.CallWithTimeout(ctx, m.timeout, func(ctx context.Context) ([]sim.Bid, error) {
				return company.Inform(ctx, own)
			})
			if err != nil {
				m.logFailure(company.Name(), "inform", err)
				return
			}
			bids[i] = b
		}()
	}
	wg.Wait()
	return bids
}

func (m *AuctionMarket) logFailure(company, op string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, sim.ErrCallTimeout):
		logrus.Warnf("company %s was stopped from operating '%s' after %s", company, op, m.timeout)
	default:
		logrus.Errorf("company %s ran into an error while operating '%s': %v", company, op, err)
	}
}
