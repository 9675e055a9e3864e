package trace

import "github.com/freight-sim/freight-sim/sim"

// VesselSummary aggregates the movements of one vessel.
type VesselSummary struct {
	Company         string  `json:"company"`
	Voyages         int     `json:"voyages"`
	LadenDistance   float64 `json:"laden_distance"`
	BallastDistance float64 `json:"ballast_distance"`
	IdleHours       float64 `json:"idle_hours"`
}

// CompanySummary aggregates the contracts of one company.
type CompanySummary struct {
	Contracts int     `json:"contracts"`
	Fulfilled int     `json:"fulfilled"`
	Income    float64 `json:"income"`
}

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalEvents   int                        `json:"total_events"`
	Auctions      int                        `json:"auctions"`
	TradesOffered int                        `json:"trades_offered"`
	TradesAwarded int                        `json:"trades_awarded"`
	Vessels       map[string]*VesselSummary  `json:"vessels"`
	Companies     map[string]*CompanySummary `json:"companies"`
}

// Summarize computes aggregate statistics from a trace and, if given, the
// contracts kept by the market authority.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace, authority *sim.MarketAuthority) *TraceSummary {
	summary := &TraceSummary{
		Vessels:   make(map[string]*VesselSummary),
		Companies: make(map[string]*CompanySummary),
	}
	if st != nil {
		summary.TotalEvents = len(st.Events())
		for _, a := range st.Auctions() {
			summary.Auctions++
			summary.TradesOffered += a.Offered
			summary.TradesAwarded += a.Awarded
		}
		for _, v := range st.Voyages() {
			vs := vesselSummary(summary, v.Vessel, v.Company)
			vs.Voyages++
			if v.Laden {
				vs.LadenDistance += v.Distance
			} else {
				vs.BallastDistance += v.Distance
			}
		}
		for _, i := range st.Idles() {
			vesselSummary(summary, i.Vessel, i.Company).IdleHours += i.End - i.Start
		}
	}
	if authority != nil {
		for _, company := range authority.Companies() {
			cs := &CompanySummary{Income: authority.Income(company)}
			for _, c := range authority.Contracts(company) {
				cs.Contracts++
				if c.Fulfilled {
					cs.Fulfilled++
				}
			}
			summary.Companies[company] = cs
		}
	}
	return summary
}

func vesselSummary(s *TraceSummary, vessel, company string) *VesselSummary {
	vs, ok := s.Vessels[vessel]
	if !ok {
		vs = &VesselSummary{Company: company}
		s.Vessels[vessel] = vs
	}
	return vs
}
