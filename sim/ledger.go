package sim

import "fmt"

// AuctionLedger records which company won which contracts in one auction round.
// It is fixed before companies are notified and only read afterwards.
type AuctionLedger struct {
	companies []string
	contracts map[string][]Contract
}

// NewAuctionLedger creates a ledger with an empty entry for every company.
func NewAuctionLedger(companies []string) *AuctionLedger {
	l := &AuctionLedger{
		companies: append([]string(nil), companies...),
		contracts: make(map[string][]Contract, len(companies)),
	}
	for _, c := range companies {
		l.contracts[c] = []Contract{}
	}
	return l
}

func (l *AuctionLedger) add(c Contract) {
	l.contracts[c.Company] = append(l.contracts[c.Company], c)
}

// Companies returns the companies of the ledger in registration order.
func (l *AuctionLedger) Companies() []string {
	return append([]string(nil), l.companies...)
}

// Contracts returns a copy of the contracts won by company.
func (l *AuctionLedger) Contracts(company string) []Contract {
	return CopyContracts(l.contracts[company])
}

// Len returns the number of contracts in the ledger.
func (l *AuctionLedger) Len() int {
	n := 0
	for _, cs := range l.contracts {
		n += len(cs)
	}
	return n
}

// Trades returns every awarded trade, company by company.
func (l *AuctionLedger) Trades() []Trade {
	var out []Trade
	for _, c := range l.companies {
		for _, ct := range l.contracts[c] {
			out = append(out, ct.Trade)
		}
	}
	return out
}

// LedgerView is the ledger as one company sees it: its own contracts in full,
// the other companies' wins as trades only.
type LedgerView struct {
	Own    []Contract
	Others map[string][]Trade
}

// ViewFor builds the redacted view for company. Every call returns fresh copies.
func (l *AuctionLedger) ViewFor(company string) LedgerView {
	view := LedgerView{
		Own:    l.Contracts(company),
		Others: make(map[string][]Trade, len(l.companies)),
	}
	for _, c := range l.companies {
		if c == company {
			continue
		}
		trades := make([]Trade, 0, len(l.contracts[c]))
		for _, ct := range l.contracts[c] {
			trades = append(trades, ct.Trade)
		}
		view.Others[c] = trades
	}
	return view
}

func (l *AuctionLedger) String() string {
	return fmt.Sprintf("AuctionLedger[%d companies, %d contracts]", len(l.companies), l.Len())
}

// MarketAuthority keeps the contracts of every company across all rounds and
// tracks their fulfilment.
type MarketAuthority struct {
	companies []string
	contracts map[string][]Contract
}

// NewMarketAuthority creates an empty authority.
func NewMarketAuthority() *MarketAuthority {
	return &MarketAuthority{contracts: make(map[string][]Contract)}
}

// Record adds the contracts of a settled round.
func (a *MarketAuthority) Record(l *AuctionLedger) {
	for _, c := range l.companies {
		if _, ok := a.contracts[c]; !ok {
			a.companies = append(a.companies, c)
			a.contracts[c] = []Contract{}
		}
		a.contracts[c] = append(a.contracts[c], l.contracts[c]...)
	}
}

// TradeFulfilled marks the contract for trade as fulfilled. It returns false
// if no unfulfilled contract covers the trade.
func (a *MarketAuthority) TradeFulfilled(t Trade) bool {
	for _, c := range a.companies {
		cs := a.contracts[c]
		for i := range cs {
			if cs[i].Trade == t && !cs[i].Fulfilled {
				cs[i].Fulfilled = true
				return true
			}
		}
	}
	return false
}

// Companies returns the companies seen so far.
func (a *MarketAuthority) Companies() []string {
	return append([]string(nil), a.companies...)
}

// Contracts returns a copy of all contracts of company.
func (a *MarketAuthority) Contracts(company string) []Contract {
	return CopyContracts(a.contracts[company])
}

// Income returns the payments of the fulfilled contracts of company.
func (a *MarketAuthority) Income(company string) float64 {
	total := 0.0
	for _, c := range a.contracts[company] {
		if c.Fulfilled {
			total += c.Payment
		}
	}
	return total
}
