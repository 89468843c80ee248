package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"goa.design/clue/log"

	"github.com/draftforge/draftforge/pipeline"
	"github.com/draftforge/draftforge/pipeline/eval"
	"github.com/draftforge/draftforge/pipeline/stream"
)

const maxRequestBody = 1 << 20

type (
	// runResponse is the wire shape of run metadata.
	runResponse struct {
		RunID     string    `json:"run_id"`
		Status    string    `json:"status"`
		Revisions int       `json:"revisions"`
		Error     string    `json:"error,omitempty"`
		StartedAt time.Time `json:"started_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	// evaluationResponse is the wire shape of one evaluation record.
	evaluationResponse struct {
		ID        string    `json:"id"`
		Evaluator string    `json:"evaluator"`
		Score     float64   `json:"score"`
		Reasoning string    `json:"reasoning,omitempty"`
		Error     string    `json:"error,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}

	runOutcome struct {
		article *pipeline.Article
		err     error
	}
)

// handleCreateRun starts an orchestration run and streams its workflow events
// back as server-sent events. The response stays open until the run emits its
// terminal event or the client disconnects; a disconnect cancels the run.
func (s *Service) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var briefs pipeline.Briefs
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&briefs); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(briefs.Research) == "" ||
		strings.TrimSpace(briefs.Products) == "" ||
		strings.TrimSpace(briefs.Assignment) == "" {
		respondError(ctx, w, http.StatusBadRequest, "research, products and assignment briefs are all required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(ctx, w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	runID := uuid.NewString()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Run-Id", runID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The run outlives the request context so a disconnect between events
	// does not abort the in-flight agent call mid-write; cancelRun is the
	// explicit signal that delivery stopped.
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()

	sink := stream.NewChanSink(0)
	var producer stream.Sink = sink
	if s.mirror != nil {
		tee := stream.NewTeeSink(sink, s.mirror)
		tee.OnMirrorError = func(ctx context.Context, err error) {
			log.Errorf(ctx, err, "event mirror delivery failed")
		}
		// The tee is never closed: the mirror sink is shared across runs
		// and owned by the caller; only the per-run channel sink is closed.
		producer = tee
	}

	outc := make(chan runOutcome, 1)
	go func() {
		article, err := s.orch.Run(runCtx, runID, briefs, producer)
		_ = sink.Close(runCtx)
		outc <- runOutcome{article: article, err: err}
	}()

	var (
		research    string
		product     string
		disconnect  = ctx.Done()
		writeFailed bool
		delivered   bool
	)
	for events := sink.Events(); events != nil; {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ac, isComplete := ev.(*stream.AgentComplete); isComplete {
				switch ac.Data.Role {
				case string(pipeline.RoleResearcher):
					research = ac.Data.Content
				case string(pipeline.RoleProduct):
					product = ac.Data.Content
				}
			}
			if writeFailed {
				continue
			}
			if err := writeSSE(w, flusher, ev); err != nil {
				writeFailed = true
				cancelRun()
				continue
			}
			if _, isTerminal := ev.(*stream.RunComplete); isTerminal {
				delivered = true
			}
		case <-disconnect:
			disconnect = nil
			cancelRun()
		}
	}

	out := <-outc
	if out.err != nil || out.article == nil || !delivered {
		return
	}
	// Evaluation fires only once the terminal complete event reached the
	// client; a run whose delivery stopped short of it is never evaluated.
	if err := s.engine.Submit(runCtx, eval.Job{
		RunID:            runID,
		Article:          out.article.Content,
		Briefs:           briefs,
		ResearchFindings: research,
		ProductFindings:  product,
	}); err != nil {
		log.Errorf(ctx, err, "evaluation submit failed for run %s", runID)
	}
}

// handleGetRun returns run metadata.
func (s *Service) handleGetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.mux.Vars(r)["id"]
	rec, err := s.runs.Load(ctx, id)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "load run: "+err.Error())
		return
	}
	if rec.RunID == "" {
		respondError(ctx, w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(ctx, w, http.StatusOK, runResponse{
		RunID:     rec.RunID,
		Status:    string(rec.Status),
		Revisions: rec.Revisions,
		Error:     rec.Error,
		StartedAt: rec.StartedAt,
		UpdatedAt: rec.UpdatedAt,
	})
}

// handleListEvaluations returns the evaluation records for a run.
func (s *Service) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.mux.Vars(r)["id"]
	rec, err := s.runs.Load(ctx, id)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "load run: "+err.Error())
		return
	}
	if rec.RunID == "" {
		respondError(ctx, w, http.StatusNotFound, "run not found")
		return
	}
	records, err := s.evals.ListByRun(ctx, id)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "list evaluations: "+err.Error())
		return
	}
	out := make([]evaluationResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, evaluationResponse{
			ID:        rec.ID,
			Evaluator: rec.Evaluator,
			Score:     rec.Score,
			Reasoning: rec.Reasoning,
			Error:     rec.Error,
			CreatedAt: rec.CreatedAt,
		})
	}
	respondJSON(ctx, w, http.StatusOK, out)
}
