package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/draftforge/draftforge/pipeline"
	"github.com/draftforge/draftforge/pipeline/model"
)

const writerSystemPrompt = `You are a senior content writer for an online retailer.
Write engaging, factual marketing articles based strictly on the research and product
material provided. Never invent product claims. Output the article body only.`

// Writer fills pipeline.RoleWriter with a model-backed drafting agent. On
// revision cycles the previous draft and the editor's feedback are included
// in the prompt.
type Writer struct {
	client    model.Client
	modelID   string
	maxTokens int
}

// NewWriter constructs the writer agent.
func NewWriter(client model.Client, modelID string, maxTokens int) (*Writer, error) {
	if client == nil {
		return nil, errors.New("roles: writer model client is required")
	}
	if modelID == "" {
		return nil, errors.New("roles: writer model id is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Writer{client: client, modelID: modelID, maxTokens: maxTokens}, nil
}

// Role implements pipeline.Agent.
func (w *Writer) Role() pipeline.Role { return pipeline.RoleWriter }

// Generate implements pipeline.Agent: one drafting call per cycle.
func (w *Writer) Generate(ctx context.Context, task pipeline.Task) (*pipeline.Result, error) {
	resp, err := w.client.Complete(ctx, &model.Request{
		Model:     w.modelID,
		System:    writerSystemPrompt,
		Messages:  []model.Message{{Role: model.RoleUser, Content: w.prompt(task)}},
		MaxTokens: w.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("roles: writer completion: %w", err)
	}
	draft := strings.TrimSpace(resp.Text)
	if draft == "" {
		return nil, errors.New("roles: writer returned empty draft")
	}
	return &pipeline.Result{Role: pipeline.RoleWriter, Content: draft}, nil
}

func (w *Writer) prompt(task pipeline.Task) string {
	var b strings.Builder
	b.WriteString("Assignment:\n")
	b.WriteString(task.Briefs.Assignment)
	b.WriteString("\n\nResearch findings:\n")
	b.WriteString(task.ResearchFindings)
	b.WriteString("\n\nProduct material:\n")
	b.WriteString(task.ProductFindings)
	if task.Revision > 0 {
		b.WriteString("\n\nYour previous draft:\n")
		b.WriteString(task.Draft)
		b.WriteString("\n\nEditor feedback to address in this revision:\n")
		b.WriteString(task.EditorFeedback)
		b.WriteString("\n\nRewrite the article addressing every point of feedback.")
	}
	return b.String()
}
