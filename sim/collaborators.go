package sim

import "context"

// CargoSource provides the trades of the simulation.
type CargoSource interface {
	// TradingTimes returns the times at which trades become available, ascending.
	TradingTimes() []float64
	// Trades returns the trades available at time. Deterministic for a given time.
	Trades(time float64) []Trade
	// Frequency returns the interval between trading times.
	Frequency() float64
}

// Market runs the auction between companies.
type Market interface {
	// InformFutureTrades tells the companies about trades that become available at time.
	InformFutureTrades(ctx context.Context, trades []Trade, time float64, companies []Company)
	// DistributeTrades collects bids and returns, per company name, the contracts won.
	DistributeTrades(ctx context.Context, time float64, trades []Trade, companies []Company) map[string][]Contract
}

// Company is a shipping company taking part in the auctions. Its methods may be
// slow or misbehave; the simulator and market bound every call.
type Company interface {
	Name() string
	Fleet() []*Vessel
	// PreInform announces trades that will be auctioned at time.
	PreInform(ctx context.Context, trades []Trade, time float64) error
	// Inform asks for bids on trades.
	Inform(ctx context.Context, trades []Trade) ([]Bid, error)
	// Receive delivers the auction result: the company's contracts, the ledger
	// as seen by the company and its own copy of the round's trades.
	Receive(ctx context.Context, contracts []Contract, ledger LedgerView, trades []Trade) (*ScheduleProposal, error)
}

// SettlementPreparer is implemented by companies that capture simulation state
// ahead of an auction round. PrepareSettlement runs on the simulation goroutine
// before any bid is collected; Inform and Receive may then run past their
// timeout without reading state the simulator keeps changing.
type SettlementPreparer interface {
	PrepareSettlement(sim *Simulator, time float64)
}

// Network measures distances between locations and knows the ports.
type Network interface {
	Distance(a, b Location) float64
	Port(name string) (Location, bool)
	Ports() []Location
}
