// Package web exposes the content-generation pipeline over HTTP. A run is
// started with a POST carrying the three briefs and streamed back to the
// caller as server-sent events; run metadata and evaluation scores are
// available on companion GET endpoints. Health checks and CORS are mounted
// alongside.
package web

import (
	"context"
	"errors"
	"net/http"

	"goa.design/clue/health"
	"goa.design/clue/log"
	goahttp "goa.design/goa/v3/http"

	"github.com/draftforge/draftforge/pipeline"
	"github.com/draftforge/draftforge/pipeline/engine"
	"github.com/draftforge/draftforge/pipeline/eval"
	"github.com/draftforge/draftforge/pipeline/run"
	"github.com/draftforge/draftforge/pipeline/stream"
)

type (
	// Options configures the HTTP service.
	Options struct {
		// Orchestrator executes content-generation runs. Required.
		Orchestrator *pipeline.Orchestrator
		// Runs is the run metadata store. Required.
		Runs run.Store
		// Evals is the evaluation record store. Required.
		Evals eval.Store
		// Engine receives evaluation jobs for completed runs. Required.
		Engine engine.Engine
		// Mirror, when set, receives a copy of every workflow event (Pulse
		// mirror). Mirror failures are logged and never fail a run. The
		// mirror's lifecycle is owned by the caller.
		Mirror stream.Sink
		// AllowedOrigins is the CORS origin allow-list. Empty disables
		// cross-origin access.
		AllowedOrigins []string
		// Pingers back the health check endpoints.
		Pingers []health.Pinger
	}

	// Service is the HTTP front end of the pipeline.
	Service struct {
		orch    *pipeline.Orchestrator
		runs    run.Store
		evals   eval.Store
		engine  engine.Engine
		mirror  stream.Sink
		origins []string
		pingers []health.Pinger
		mux     goahttp.ResolverMuxer
	}
)

// New constructs the HTTP service.
func New(opts Options) (*Service, error) {
	if opts.Orchestrator == nil {
		return nil, errors.New("web: orchestrator is required")
	}
	if opts.Runs == nil {
		return nil, errors.New("web: run store is required")
	}
	if opts.Evals == nil {
		return nil, errors.New("web: evaluation store is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("web: evaluation engine is required")
	}
	s := &Service{
		orch:    opts.Orchestrator,
		runs:    opts.Runs,
		evals:   opts.Evals,
		engine:  opts.Engine,
		mirror:  opts.Mirror,
		origins: opts.AllowedOrigins,
		pingers: opts.Pingers,
	}
	s.mux = goahttp.NewMuxer()
	s.mount()
	return s, nil
}

func (s *Service) mount() {
	s.mux.Handle(http.MethodPost, "/v1/runs", s.handleCreateRun)
	s.mux.Handle(http.MethodGet, "/v1/runs/{id}", s.handleGetRun)
	s.mux.Handle(http.MethodGet, "/v1/runs/{id}/evaluations", s.handleListEvaluations)

	check := health.NewChecker(s.pingers...)
	s.mux.Handle(http.MethodGet, "/healthz", health.Handler(check))
	s.mux.Handle(http.MethodGet, "/livez", health.Handler(check))
}

// Handler returns the fully wrapped HTTP handler: request logging plus the
// CORS allow-list around the service mux.
func (s *Service) Handler(ctx context.Context) http.Handler {
	var handler http.Handler = s.mux
	handler = corsMiddleware(s.origins)(handler)
	handler = log.HTTP(ctx)(handler)
	return handler
}

// respondJSON writes v as a JSON response with the given status.
func respondJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	enc := goahttp.ResponseEncoder(ctx, w)
	w.WriteHeader(status)
	if err := enc.Encode(v); err != nil {
		log.Errorf(ctx, err, "encode response")
	}
}

// respondError writes a JSON error body.
func respondError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	respondJSON(ctx, w, status, map[string]string{"error": msg})
}
