// Package research provides a roles.Grounder backed by a grounded web search
// HTTP service. The service performs the actual web retrieval and synthesis;
// this client wraps its JSON API and maps failures onto stable errors.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/draftforge/draftforge/pipeline/roles"
)

const (
	defaultTimeout = 60 * time.Second
	searchPath     = "/v1/ground"
)

type (
	// Options configures the research client.
	Options struct {
		// BaseURL is the research service address. Required.
		BaseURL string
		// APIKey authenticates requests when set.
		APIKey string
		// HTTPClient overrides the default HTTP client.
		HTTPClient *http.Client
	}

	// Client implements roles.Grounder over the research service HTTP API.
	Client struct {
		base   *url.URL
		apiKey string
		http   *http.Client
	}

	groundRequest struct {
		Query string `json:"query"`
	}

	groundResponse struct {
		Summary string `json:"summary"`
		Sources []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"sources"`
	}
)

var _ roles.Grounder = (*Client)(nil)

// New builds a research client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("research: base URL is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("research: invalid base URL: %w", err)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: base, apiKey: opts.APIKey, http: hc}, nil
}

// Ground implements roles.Grounder: one POST to the grounding endpoint.
func (c *Client) Ground(ctx context.Context, query string) (*roles.GroundedFindings, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("research: query is required")
	}
	body, err := json.Marshal(groundRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("research: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath(searchPath).String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("research: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("research: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("research: service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var gr groundResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("research: decode response: %w", err)
	}
	if gr.Summary == "" {
		return nil, errors.New("research: service returned empty summary")
	}

	findings := &roles.GroundedFindings{Summary: gr.Summary}
	for _, s := range gr.Sources {
		findings.Sources = append(findings.Sources, roles.Source{
			Title:   s.Title,
			URL:     s.URL,
			Snippet: s.Snippet,
		})
	}
	return findings, nil
}
