// Package roles implements the four pipeline agents. Each agent adapts one
// remote capability (grounded search, catalog retrieval, text generation,
// critique) onto the pipeline.Agent interface so the orchestrator stays
// ignorant of providers.
package roles

import (
	"context"
)

type (
	// Source is one cited research source.
	Source struct {
		// Title is the source document title.
		Title string `json:"title"`
		// URL locates the source.
		URL string `json:"url"`
		// Snippet is the relevant excerpt.
		Snippet string `json:"snippet,omitempty"`
	}

	// GroundedFindings is the output of a grounded research query: a
	// synthesized summary plus the sources it cites.
	GroundedFindings struct {
		// Summary is the synthesized research text.
		Summary string `json:"summary"`
		// Sources lists the cited documents.
		Sources []Source `json:"sources,omitempty"`
	}

	// Grounder performs web-grounded research. Implementations live in
	// features/research.
	Grounder interface {
		// Ground researches the query and returns cited findings.
		Ground(ctx context.Context, query string) (*GroundedFindings, error)
	}

	// ProductFinding is one catalog hit relevant to the brief.
	ProductFinding struct {
		// ID is the catalog document identifier.
		ID string `json:"id"`
		// Name is the product display name.
		Name string `json:"name"`
		// Description is the catalog description.
		Description string `json:"description"`
		// Price is the list price.
		Price float64 `json:"price,omitempty"`
		// Score is the search relevance score.
		Score float64 `json:"score,omitempty"`
	}

	// CatalogSearcher retrieves products relevant to a query.
	// Implementations live in features/catalog.
	CatalogSearcher interface {
		// Search returns up to limit products ranked by relevance.
		Search(ctx context.Context, query string, limit int) ([]ProductFinding, error)
	}
)
