package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/draftforge/draftforge/pipeline"
)

// Researcher fills pipeline.RoleResearcher by delegating to a Grounder and
// formatting its cited findings for downstream agents.
type Researcher struct {
	grounder Grounder
}

// NewResearcher constructs the researcher agent.
func NewResearcher(g Grounder) (*Researcher, error) {
	if g == nil {
		return nil, errors.New("roles: grounder is required")
	}
	return &Researcher{grounder: g}, nil
}

// Role implements pipeline.Agent.
func (r *Researcher) Role() pipeline.Role { return pipeline.RoleResearcher }

// Generate implements pipeline.Agent: one grounded research call over the
// research brief.
func (r *Researcher) Generate(ctx context.Context, task pipeline.Task) (*pipeline.Result, error) {
	query := strings.TrimSpace(task.Briefs.Research)
	if query == "" {
		return nil, errors.New("roles: research brief is empty")
	}
	findings, err := r.grounder.Ground(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("roles: grounded research: %w", err)
	}
	return &pipeline.Result{
		Role:    pipeline.RoleResearcher,
		Content: formatFindings(findings),
	}, nil
}

// formatFindings renders the summary followed by a numbered source list so
// the writer and editor can cite by index.
func formatFindings(f *GroundedFindings) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(f.Summary))
	if len(f.Sources) > 0 {
		b.WriteString("\n\nSources:\n")
		for i, s := range f.Sources {
			fmt.Fprintf(&b, "[%d] %s (%s)", i+1, s.Title, s.URL)
			if s.Snippet != "" {
				fmt.Fprintf(&b, ": %s", s.Snippet)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
