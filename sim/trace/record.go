// Package trace records what happens during a simulation run: every executed
// event, every voyage and idle stretch of a vessel, and every auction round.
package trace

// EventRecord captures one executed event.
type EventRecord struct {
	Seq     int     `json:"seq"`
	Time    float64 `json:"time"`
	Kind    string  `json:"kind"`
	Vessel  string  `json:"vessel,omitempty"`
	Company string  `json:"company,omitempty"`
	Info    string  `json:"info"`
}

// VoyageRecord captures one finished leg of a vessel.
type VoyageRecord struct {
	Vessel      string  `json:"vessel"`
	Company     string  `json:"company"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Distance    float64 `json:"distance"`
	Laden       bool    `json:"laden"`
}

// IdleRecord captures a vessel waiting at a port.
type IdleRecord struct {
	Vessel  string  `json:"vessel"`
	Company string  `json:"company"`
	Port    string  `json:"port"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// AuctionRecord captures one settled auction round.
type AuctionRecord struct {
	Time          float64        `json:"time"`
	Offered       int            `json:"offered"`
	Awarded       int            `json:"awarded"`
	Payments      float64        `json:"payments"`
	Notifications map[string]int `json:"notifications"` // status → companies
	Refused       int            `json:"refused"`       // schedules not applied
}
