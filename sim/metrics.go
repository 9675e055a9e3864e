// Tracks simulation-wide counters such as auctions held, trades awarded and
// company notification outcomes.

package sim

import (
	"fmt"
	"io"
)

// Metrics aggregates statistics about the simulation for final reporting.
type Metrics struct {
	EventsExecuted int     // Number of events executed
	SimEndedTime   float64 // Clock when the loop stopped (hours)

	Auctions      int // Number of settled auction rounds
	TradesOffered int // Trades put up for auction
	TradesAwarded int // Trades won by some company

	NotificationsOK      int
	NotificationTimeouts int
	NotificationErrors   int
	SchedulesApplied     int
	SchedulesRefused     int
	WindowViolations     int // Arrivals outside a trade's time window

	NotificationLatencies []float64 // Wall-clock time companies took to acknowledge a result (ms)
}

// NewMetrics creates empty metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) recordAuction(r *AllocationResult) {
	m.Auctions++
	m.TradesOffered += len(r.Trades)
	m.TradesAwarded += r.Awarded()
	for _, n := range r.Notifications {
		m.NotificationLatencies = append(m.NotificationLatencies, float64(n.Elapsed.Microseconds())/1000)
		switch n.Status {
		case NotificationOK:
			m.NotificationsOK++
		case NotificationTimeout:
			m.NotificationTimeouts++
		case NotificationError:
			m.NotificationErrors++
		}
	}
	for _, s := range r.Schedules {
		if s.Applied {
			m.SchedulesApplied++
		} else {
			m.SchedulesRefused++
		}
	}
}

// Print writes the aggregated metrics to w.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Simulated Time       : %.2f hours (%s)\n", m.SimEndedTime, FormatTime(m.SimEndedTime))
	fmt.Fprintf(w, "Events Executed      : %d\n", m.EventsExecuted)
	fmt.Fprintf(w, "Auctions             : %d\n", m.Auctions)
	fmt.Fprintf(w, "Trades Awarded       : %d/%d\n", m.TradesAwarded, m.TradesOffered)
	if m.TradesOffered > 0 {
		fmt.Fprintf(w, "Award Rate           : %.2f%%\n", 100*float64(m.TradesAwarded)/float64(m.TradesOffered))
	}
	fmt.Fprintf(w, "Notifications        : %d ok, %d timeout, %d error\n", m.NotificationsOK, m.NotificationTimeouts, m.NotificationErrors)
	if len(m.NotificationLatencies) > 0 {
		mean, p50, p99 := latencySummary(m.NotificationLatencies)
		fmt.Fprintf(w, "Notification Latency : mean %.2f ms, p50 %.2f ms, p99 %.2f ms\n", mean, p50, p99)
	}
	fmt.Fprintf(w, "Schedules            : %d applied, %d refused\n", m.SchedulesApplied, m.SchedulesRefused)
	fmt.Fprintf(w, "Window Violations    : %d\n", m.WindowViolations)
}
