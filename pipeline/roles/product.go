package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/draftforge/draftforge/pipeline"
)

// defaultCatalogLimit bounds how many products a single run pulls from the
// catalog index.
const defaultCatalogLimit = 5

// Product fills pipeline.RoleProduct by querying the catalog index and
// formatting the hits for the writer.
type Product struct {
	searcher CatalogSearcher
	limit    int
}

// NewProduct constructs the product agent. limit <= 0 selects the default.
func NewProduct(s CatalogSearcher, limit int) (*Product, error) {
	if s == nil {
		return nil, errors.New("roles: catalog searcher is required")
	}
	if limit <= 0 {
		limit = defaultCatalogLimit
	}
	return &Product{searcher: s, limit: limit}, nil
}

// Role implements pipeline.Agent.
func (p *Product) Role() pipeline.Role { return pipeline.RoleProduct }

// Generate implements pipeline.Agent: one catalog search over the products
// brief. An empty hit list is not an error; the writer simply gets no
// product material.
func (p *Product) Generate(ctx context.Context, task pipeline.Task) (*pipeline.Result, error) {
	query := strings.TrimSpace(task.Briefs.Products)
	if query == "" {
		return nil, errors.New("roles: products brief is empty")
	}
	findings, err := p.searcher.Search(ctx, query, p.limit)
	if err != nil {
		return nil, fmt.Errorf("roles: catalog search: %w", err)
	}
	return &pipeline.Result{
		Role:    pipeline.RoleProduct,
		Content: formatProducts(findings),
	}, nil
}

func formatProducts(findings []ProductFinding) string {
	if len(findings) == 0 {
		return "No matching products found."
	}
	var b strings.Builder
	b.WriteString("Relevant products:\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s", f.Name)
		if f.Price > 0 {
			fmt.Fprintf(&b, " ($%.2f)", f.Price)
		}
		if f.Description != "" {
			fmt.Fprintf(&b, ": %s", f.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}
