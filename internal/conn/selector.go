package conn

import (
	"context"
	"fmt"
	"sync"

	"github.com/ashita-ai/vitrine/internal/connlog"
	"github.com/ashita-ai/vitrine/internal/transport"
)

// Selector picks the transport for each call. The primary is preferred when
// its probe succeeds, the REST fallback when only it answers, and the primary
// again when neither does, since its errors are the more informative.
type Selector struct {
	manager *Manager
	api     transport.Transport
	log     *connlog.Logger

	mu   sync.Mutex
	mode transport.Mode
}

// NewSelector creates a Selector starting in ModeSDK.
func NewSelector(manager *Manager, api transport.Transport, log *connlog.Logger) *Selector {
	return &Selector{
		manager: manager,
		api:     api,
		log:     log,
		mode:    transport.ModeSDK,
	}
}

// GetOptimalConnection probes and returns the transport to use for one call.
// ShouldUseAPIMode is recorded on mode switches but never skips the probe, so
// the primary is picked up again as soon as it recovers.
func (s *Selector) GetOptimalConnection(ctx context.Context) transport.Transport {
	if s.manager.CheckConnection(ctx) {
		s.switchTo(transport.ModeSDK, "primary reachable")
		return s.manager.Primary()
	}
	if s.api.TestConnection(ctx) {
		s.switchTo(transport.ModeAPI, "primary unreachable, REST reachable")
		return s.api
	}

	s.log.Error(connlog.CategorySwitch, "both transports unreachable, using primary", nil, map[string]any{
		"retryCount":       s.manager.RetryCount(),
		"shouldUseApiMode": s.manager.ShouldUseAPIMode(),
		"errorCode":        "unreachable",
	})
	s.switchTo(transport.ModeSDK, "both unreachable")
	return s.manager.Primary()
}

func (s *Selector) switchTo(mode transport.Mode, reason string) {
	s.mu.Lock()
	from := s.mode
	s.mode = mode
	s.mu.Unlock()

	if from == mode {
		return
	}
	s.log.Warn(connlog.CategorySwitch, fmt.Sprintf("connection mode %s -> %s", from, mode), map[string]any{
		"from":             string(from),
		"to":               string(mode),
		"reason":           reason,
		"shouldUseApiMode": s.manager.ShouldUseAPIMode(),
	})
}

// CurrentMode returns the mode chosen by the last GetOptimalConnection.
func (s *Selector) CurrentMode() transport.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// APIClient returns the REST fallback transport.
func (s *Selector) APIClient() transport.Transport {
	return s.api
}

// ConnectionManager returns the Manager backing this Selector.
func (s *Selector) ConnectionManager() *Manager {
	return s.manager
}

// Primary returns the primary transport.
func (s *Selector) Primary() transport.Transport {
	return s.manager.Primary()
}
