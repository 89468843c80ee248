package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/draftforge/draftforge/pipeline/model"
)

// scoreSchemaJSON constrains judge responses: a numeric score on the 1-5
// scale plus a non-empty reasoning string.
const scoreSchemaJSON = `{
	"type": "object",
	"required": ["score", "reasoning"],
	"properties": {
		"score": {"type": "number", "minimum": 1, "maximum": 5},
		"reasoning": {"type": "string", "minLength": 1}
	}
}`

var scoreSchema = mustCompileScoreSchema()

func mustCompileScoreSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(scoreSchemaJSON))
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("score.json", doc); err != nil {
		panic(err)
	}
	s, err := c.Compile("score.json")
	if err != nil {
		panic(err)
	}
	return s
}

// ErrInvalidVerdict is returned when a judge response cannot be parsed into a
// schema-valid score.
var ErrInvalidVerdict = errors.New("eval: judge returned invalid verdict")

const judgeSystemPrompt = `You are a strict quality judge for marketing articles.
Score the article on the single dimension described below, on a scale of 1 (worst) to 5 (best).
Respond with a JSON object only, no prose: {"score": <number>, "reasoning": "<one short paragraph>"}.`

// Judge is a model-backed Evaluator for one quality dimension. The judge
// model is prompted with the dimension criteria and the article, and must
// answer with a JSON verdict matching the score schema.
type Judge struct {
	name      string
	criteria  string
	client    model.Client
	modelID   string
	maxTokens int
}

// NewJudge constructs a model-judged evaluator for the named dimension.
func NewJudge(name, criteria string, client model.Client, modelID string) (*Judge, error) {
	if name == "" || criteria == "" {
		return nil, errors.New("eval: judge name and criteria are required")
	}
	if client == nil {
		return nil, errors.New("eval: judge model client is required")
	}
	if modelID == "" {
		return nil, errors.New("eval: judge model id is required")
	}
	return &Judge{name: name, criteria: criteria, client: client, modelID: modelID, maxTokens: 1024}, nil
}

// Name implements Evaluator.
func (j *Judge) Name() string { return j.name }

// Evaluate implements Evaluator: one judge model call, parsed and validated
// against the score schema. Schema violations surface as ErrInvalidVerdict;
// the runner records them as failed evaluations without retry.
func (j *Judge) Evaluate(ctx context.Context, job Job) (*Score, error) {
	resp, err := j.client.Complete(ctx, &model.Request{
		Model:     j.modelID,
		System:    judgeSystemPrompt,
		Messages:  []model.Message{{Role: model.RoleUser, Content: j.prompt(job)}},
		MaxTokens: j.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("eval: %s judge call: %w", j.name, err)
	}
	return ParseScore(resp.Text)
}

func (j *Judge) prompt(job Job) string {
	var b strings.Builder
	b.WriteString("Dimension: ")
	b.WriteString(j.name)
	b.WriteString("\nCriteria: ")
	b.WriteString(j.criteria)
	b.WriteString("\n\nAssignment brief:\n")
	b.WriteString(job.Briefs.Assignment)
	if job.ResearchFindings != "" {
		b.WriteString("\n\nResearch findings the article was written from:\n")
		b.WriteString(job.ResearchFindings)
	}
	if job.ProductFindings != "" {
		b.WriteString("\n\nProduct findings the article was written from:\n")
		b.WriteString(job.ProductFindings)
	}
	b.WriteString("\n\nArticle to score:\n")
	b.WriteString(job.Article)
	return b.String()
}

// ParseScore extracts and validates a judge verdict from raw model output.
// Markdown code fences and surrounding prose are tolerated; the first JSON
// object found is validated against the score schema.
func ParseScore(raw string) (*Score, error) {
	text := extractJSON(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrInvalidVerdict)
	}
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerdict, err)
	}
	if err := scoreSchema.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerdict, err)
	}
	var s Score
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerdict, err)
	}
	return &s, nil
}

// extractJSON returns the first balanced top-level JSON object in raw, or ""
// when none is found.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}

// DefaultJudges constructs the canonical evaluator set backed by the given
// judge model.
func DefaultJudges(client model.Client, modelID string) ([]Evaluator, error) {
	specs := []struct{ name, criteria string }{
		{DimensionRelevance, "How well the article addresses the assignment brief and stays on topic for its intended audience."},
		{DimensionGroundedness, "Whether the article's claims are supported by the research and product findings it was written from, without fabrication."},
		{DimensionFluency, "Grammar, word choice, and readability of the prose."},
		{DimensionCoherence, "Logical structure and flow: the article reads as one consistent piece rather than disconnected fragments."},
		{DimensionSafety, "Absence of harmful, misleading, or inappropriate content."},
		{DimensionFriendliness, "Warm, approachable tone appropriate for customer-facing content."},
	}
	evaluators := make([]Evaluator, 0, len(specs))
	for _, s := range specs {
		j, err := NewJudge(s.name, s.criteria, client, modelID)
		if err != nil {
			return nil, err
		}
		evaluators = append(evaluators, j)
	}
	return evaluators, nil
}
