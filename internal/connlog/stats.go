package connlog

import "fmt"

// ConnectionStats summarises connection health from the buffered entries.
type ConnectionStats struct {
	TotalConnections      int            `json:"totalConnections"`
	SuccessfulConnections int            `json:"successfulConnections"`
	FailedConnections     int            `json:"failedConnections"`
	ModeSwitch            int            `json:"modeSwitch"`
	AvgConnectionTime     float64        `json:"avgConnectionTime"` // milliseconds
	ErrorTypes            map[string]int `json:"errorTypes"`
}

// OutcomeSuccess is the metadata "outcome" value the connection manager
// attaches to a successful probe.
const OutcomeSuccess = "success"

// ConnectionStats derives statistics from the current entries:
//   - a successful connection is a CONNECTION entry at INFO with outcome=success
//   - a failed connection is a CONNECTION entry at ERROR
//   - a mode switch is a SWITCH entry whose from and to differ
//   - errorTypes counts every ERROR entry by its errorCode metadata
func (l *Logger) ConnectionStats() ConnectionStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := ConnectionStats{ErrorTypes: map[string]int{}}
	var totalTime float64
	var timed int

	l.entries.newestFirst(func(e Entry) bool {
		switch e.Category {
		case CategoryConnection:
			if e.Level == LevelInfo && e.Metadata["outcome"] == OutcomeSuccess {
				stats.SuccessfulConnections++
			}
			if e.Level == LevelError {
				stats.FailedConnections++
			}
			if e.Duration != nil {
				totalTime += *e.Duration
				timed++
			}
		case CategorySwitch:
			from, to := e.Metadata["from"], e.Metadata["to"]
			if from != nil && to != nil && fmt.Sprint(from) != fmt.Sprint(to) {
				stats.ModeSwitch++
			}
		}
		if e.Level == LevelError {
			code := "unknown"
			if c, ok := e.Metadata["errorCode"]; ok && c != nil && fmt.Sprint(c) != "" {
				code = fmt.Sprint(c)
			}
			stats.ErrorTypes[code]++
		}
		return true
	})

	stats.TotalConnections = stats.SuccessfulConnections + stats.FailedConnections
	if timed > 0 {
		stats.AvgConnectionTime = totalTime / float64(timed)
	}
	return stats
}
