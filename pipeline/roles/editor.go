package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/draftforge/draftforge/pipeline"
	"github.com/draftforge/draftforge/pipeline/model"
)

const editorSystemPrompt = `You are a demanding managing editor reviewing marketing articles.
Check the draft against the assignment, the research findings and the product material.
Reject drafts that stray from the brief, contain unsupported claims, or read poorly.
Respond with a JSON object only: {"approved": <true|false>, "feedback": "<actionable notes; empty when approved>"}.`

// ErrInvalidCritique is returned when the editor model response cannot be
// parsed into a verdict.
var ErrInvalidCritique = errors.New("roles: editor returned invalid critique")

// Editor fills pipeline.RoleEditor with a model-backed critique agent. The
// model returns a structured approve/reject verdict; rejection feedback is
// carried back into the next writer cycle by the orchestrator.
type Editor struct {
	client    model.Client
	modelID   string
	maxTokens int
}

// editorVerdict is the wire shape of the editor model's response.
type editorVerdict struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback"`
}

// NewEditor constructs the editor agent.
func NewEditor(client model.Client, modelID string, maxTokens int) (*Editor, error) {
	if client == nil {
		return nil, errors.New("roles: editor model client is required")
	}
	if modelID == "" {
		return nil, errors.New("roles: editor model id is required")
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Editor{client: client, modelID: modelID, maxTokens: maxTokens}, nil
}

// Role implements pipeline.Agent.
func (e *Editor) Role() pipeline.Role { return pipeline.RoleEditor }

// Generate implements pipeline.Agent: one critique call per draft.
func (e *Editor) Generate(ctx context.Context, task pipeline.Task) (*pipeline.Result, error) {
	resp, err := e.client.Complete(ctx, &model.Request{
		Model:     e.modelID,
		System:    editorSystemPrompt,
		Messages:  []model.Message{{Role: model.RoleUser, Content: e.prompt(task)}},
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("roles: editor completion: %w", err)
	}
	verdict, err := parseVerdict(resp.Text)
	if err != nil {
		return nil, err
	}
	if !verdict.Approved && strings.TrimSpace(verdict.Feedback) == "" {
		return nil, fmt.Errorf("%w: rejection without feedback", ErrInvalidCritique)
	}
	return &pipeline.Result{
		Role:     pipeline.RoleEditor,
		Content:  verdict.Feedback,
		Feedback: verdict.Feedback,
		Accepted: verdict.Approved,
	}, nil
}

func (e *Editor) prompt(task pipeline.Task) string {
	var b strings.Builder
	b.WriteString("Assignment:\n")
	b.WriteString(task.Briefs.Assignment)
	b.WriteString("\n\nResearch findings:\n")
	b.WriteString(task.ResearchFindings)
	b.WriteString("\n\nProduct material:\n")
	b.WriteString(task.ProductFindings)
	fmt.Fprintf(&b, "\n\nDraft (revision %d):\n", task.Revision)
	b.WriteString(task.Draft)
	return b.String()
}

// parseVerdict extracts the JSON verdict from raw model output, tolerating
// code fences and surrounding prose.
func parseVerdict(raw string) (*editorVerdict, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrInvalidCritique)
	}
	var v editorVerdict
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCritique, err)
	}
	return &v, nil
}
