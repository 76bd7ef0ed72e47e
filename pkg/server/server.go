package server

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Forge-Labs/mintgate-go/pkg/mint"
)

/*
Server exposes the mint state machine over HTTP.

Mint flow:
  POST /mint/public     - public-phase mint: { caller, quantity, payment_wei }
  POST /mint/whitelist  - whitelist-phase mint, same body plus the caller's
                          inclusion proof as 0x-hex sibling hashes
  POST /mint/team       - one-shot team allocation, privileged caller only

Funds:
  POST /withdraw        - transfer the whole balance to the owner, privileged only

Administration (all privileged only):
  POST /admin/sale      - toggle the public or whitelist phase
  POST /admin/pause     - toggle paused
  POST /admin/reveal    - toggle metadata reveal
  POST /admin/root      - install a new commitment root
  POST /admin/uri       - set base and/or placeholder URI

Queries:
  GET /root             - currently installed commitment root
  GET /status           - counters and flags
  GET /token/{id}/uri   - metadata URI for an issued token

The mint endpoints sit behind a shared token-bucket rate limiter; requests
over the budget get 429. Every request is tagged with a request id in the
logs. Caller authenticity is out of scope here: the service is expected to
run behind a gateway that has already verified the caller owns the address
it presents.
*/

// Server handles HTTP requests for the drop service.
type Server struct {
	machine    *mint.Machine
	logger     *zap.Logger
	limiter    *rate.Limiter
	httpServer *http.Server
}

// Config holds the HTTP server configuration.
type Config struct {
	Port int

	// MintRatePerSecond and MintBurst size the shared token bucket over
	// the mint endpoints. Zero values disable limiting.
	MintRatePerSecond float64
	MintBurst         int
}

// NewServer creates a server around a mint state machine.
func NewServer(machine *mint.Machine, cfg Config, logger *zap.Logger) *Server {
	s := &Server{
		machine: machine,
		logger:  logger,
	}

	if cfg.MintRatePerSecond > 0 {
		burst := cfg.MintBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.MintRatePerSecond), burst)
	}

	mux := http.NewServeMux()

	// Mint endpoints
	mux.HandleFunc("/mint/public", s.handlePublicMint)
	mux.HandleFunc("/mint/whitelist", s.handleWhitelistMint)
	mux.HandleFunc("/mint/team", s.handleTeamMint)

	// Funds
	mux.HandleFunc("/withdraw", s.handleWithdraw)

	// Admin endpoints
	mux.HandleFunc("/admin/sale", s.handleSetPhase)
	mux.HandleFunc("/admin/pause", s.handleSetPaused)
	mux.HandleFunc("/admin/reveal", s.handleSetRevealed)
	mux.HandleFunc("/admin/root", s.handleSetRoot)
	mux.HandleFunc("/admin/uri", s.handleSetURI)

	// Queries
	mux.HandleFunc("/root", s.handleGetRoot)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("GET /token/{id}/uri", s.handleTokenURI)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing).
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
