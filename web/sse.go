package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/draftforge/draftforge/pipeline/stream"
)

// SSE data shapes. Every frame carries a status (start, complete, error), the
// agent role when the event is attributable to one, and an event-specific
// payload.
type (
	sseData struct {
		Role    string `json:"role,omitempty"`
		Status  string `json:"status"`
		Payload any    `json:"payload,omitempty"`
	}

	agentStartPayload struct {
		Revision int `json:"revision"`
	}

	agentCompletePayload struct {
		Content  string `json:"content,omitempty"`
		Feedback string `json:"feedback,omitempty"`
		Accepted bool   `json:"accepted,omitempty"`
		Revision int    `json:"revision"`
	}

	runCompletePayload struct {
		Article   string `json:"article"`
		Revisions int    `json:"revisions"`
	}

	runErrorPayload struct {
		Message string `json:"message"`
		Kind    string `json:"kind"`
	}
)

// writeSSE serializes the event as one server-sent event frame and flushes
// it. The SSE event name is the workflow event type; the data line carries
// the role/status/payload shape.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev stream.Event) error {
	data, err := json.Marshal(toSSEData(ev))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func toSSEData(ev stream.Event) sseData {
	switch e := ev.(type) {
	case *stream.AgentStart:
		return sseData{
			Role:    e.Data.Role,
			Status:  "start",
			Payload: agentStartPayload{Revision: e.Data.Revision},
		}
	case *stream.AgentComplete:
		return sseData{
			Role:   e.Data.Role,
			Status: "complete",
			Payload: agentCompletePayload{
				Content:  e.Data.Content,
				Feedback: e.Data.Feedback,
				Accepted: e.Data.Accepted,
				Revision: e.Data.Revision,
			},
		}
	case *stream.RunComplete:
		return sseData{
			Status:  "complete",
			Payload: runCompletePayload{Article: e.Data.Article, Revisions: e.Data.Revisions},
		}
	case *stream.RunError:
		return sseData{
			Role:    e.Data.Role,
			Status:  "error",
			Payload: runErrorPayload{Message: e.Data.Message, Kind: e.Data.Kind},
		}
	default:
		return sseData{Status: "complete", Payload: ev.Payload()}
	}
}
