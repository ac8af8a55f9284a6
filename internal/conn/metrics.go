package conn

import (
	"github.com/ashita-ai/vitrine/internal/telemetry"
	"github.com/ashita-ai/vitrine/internal/transport"
)

// statusValue encodes Status for the status gauge.
func statusValue(s Status) int64 {
	switch s {
	case StatusConnecting:
		return 1
	case StatusConnected:
		return 2
	case StatusError:
		return 3
	default:
		return 0
	}
}

// RegisterMetrics exposes connection state as OTEL gauges. Call after telemetry.Init.
func RegisterMetrics(s *Selector) error {
	m := s.ConnectionManager()
	return telemetry.RegisterGauges(telemetry.Meter("vitrine/conn"),
		telemetry.Gauge{
			Name:        "vitrine.connection.status",
			Description: "Primary transport status: 0 disconnected, 1 connecting, 2 connected, 3 error",
			Observe:     func() int64 { return statusValue(m.Status()) },
		},
		telemetry.Gauge{
			Name:        "vitrine.connection.retry_count",
			Description: "Consecutive failed primary probes",
			Observe:     func() int64 { return int64(m.RetryCount()) },
		},
		telemetry.Gauge{
			Name:        "vitrine.connection.api_mode",
			Description: "1 while the REST fallback is selected",
			Observe: func() int64 {
				if s.CurrentMode() == transport.ModeAPI {
					return 1
				}
				return 0
			},
		},
	)
}
