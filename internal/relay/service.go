package relay

import (
	"DeskRelay/internal/shared/config"
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// ShellEndpoint is the slice of the transport the service manages.
type ShellEndpoint interface {
	// Start serves the shell connection until ctx is cancelled.
	Start(ctx context.Context) error
}

// Service manages the long-running pieces of the relay: the shell
// endpoint, the bridge startup, and the optional sinks.
type Service struct {
	cfg       *config.Config
	endpoint  ShellEndpoint
	bridge    *Bridge
	recorder  *Recorder  // nil when persistence is disabled
	forwarder *Forwarder // nil when forwarding is disabled
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// NewService creates the relay service. recorder and forwarder may be
// nil when their sink is not configured.
func NewService(
	cfg *config.Config,
	endpoint ShellEndpoint,
	bridge *Bridge,
	recorder *Recorder,
	forwarder *Forwarder,
	baseLogger *zerolog.Logger,
) *Service {
	return &Service{
		cfg:       cfg,
		endpoint:  endpoint,
		bridge:    bridge,
		recorder:  recorder,
		forwarder: forwarder,
		log:       baseLogger.With().Str("component", "service").Logger(),
	}
}

// Run starts the endpoint and the bridge, then blocks until ctx is
// cancelled and everything has shut down.
func (s *Service) Run(ctx context.Context) error {
	s.wg.Add(2)

	// --- Shell endpoint ---
	go func() {
		defer s.wg.Done()
		if err := s.endpoint.Start(ctx); err != nil {
			s.log.Error().Err(err).Msg("Shell endpoint failed")
		}
	}()

	// --- Bridge startup ---
	go func() {
		defer s.wg.Done()
		if err := s.bridge.Start(ctx); err != nil {
			s.log.Error().Err(err).Msg("Bridge startup aborted")
			return
		}
		if s.cfg.Relay.DefaultTitle != "" {
			if err := s.bridge.SetDefaultTitle(ctx, s.cfg.Relay.DefaultTitle); err != nil {
				s.log.Error().Err(err).Msg("Failed to apply default title")
			}
		}
	}()

	s.wg.Wait()

	// Sinks close after the event sources are gone so nothing is
	// dispatched into a closed recorder.
	if s.forwarder != nil {
		s.forwarder.Detach()
	}
	if s.recorder != nil {
		s.recorder.Close()
	}

	s.log.Info().Msg("Relay service stopped")
	return nil
}
