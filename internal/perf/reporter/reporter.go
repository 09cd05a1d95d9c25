// Package reporter delivers performance events to sinks. Delivery is best
// effort: a Reporter never returns an error to its caller and never blocks
// on I/O.
package reporter

import "github.com/HerbHall/tracelens/pkg/models"

// Reporter is a sink for performance events.
type Reporter interface {
	// Name identifies the reporter; a monitor holds at most one per name.
	Name() string
	// Report delivers e. Failures are logged and swallowed.
	Report(e models.PerformanceEvent)
}

// Reporter names.
const (
	NameConsole    = "console"
	NameNetwork    = "network"
	NameMQTT       = "mqtt"
	NamePrometheus = "prometheus"
)
