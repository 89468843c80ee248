// Package redis provides a product catalog searcher backed by a RediSearch
// full-text index. Product documents are stored as hashes under the
// "product:" prefix and queried with FT.SEARCH.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"goa.design/clue/health"

	"github.com/draftforge/draftforge/pipeline/roles"
)

const (
	// DefaultIndex is the RediSearch index name for product documents.
	DefaultIndex = "idx:products"

	// DefaultPrefix is the key prefix for product hashes.
	DefaultPrefix = "product:"

	catalogClientName = "catalog-redis"
)

type (
	// searchClient captures the subset of go-redis used by the catalog. It
	// is satisfied by *redis.Client.
	searchClient interface {
		FTSearchWithArgs(ctx context.Context, index string, query string, options *redis.FTSearchOptions) *redis.FTSearchCmd
		FTCreate(ctx context.Context, index string, options *redis.FTCreateOptions, schema ...*redis.FieldSchema) *redis.StatusCmd
		Ping(ctx context.Context) *redis.StatusCmd
	}

	// Options configures the catalog searcher.
	Options struct {
		// Index overrides the default index name.
		Index string
		// Prefix overrides the default document key prefix.
		Prefix string
	}

	// Catalog implements roles.CatalogSearcher over a RediSearch index. It
	// also satisfies health.Pinger.
	Catalog struct {
		rdb    searchClient
		index  string
		prefix string
	}
)

var _ roles.CatalogSearcher = (*Catalog)(nil)
var _ health.Pinger = (*Catalog)(nil)

// New builds a Catalog over the given Redis client.
func New(rdb *redis.Client, opts Options) (*Catalog, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	return newWithClient(rdb, opts)
}

func newWithClient(rdb searchClient, opts Options) (*Catalog, error) {
	index := opts.Index
	if index == "" {
		index = DefaultIndex
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Catalog{rdb: rdb, index: index, prefix: prefix}, nil
}

// Name implements health.Pinger.
func (c *Catalog) Name() string { return catalogClientName }

// Ping implements health.Pinger.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// EnsureIndex creates the product search index when it does not exist yet.
func (c *Catalog) EnsureIndex(ctx context.Context) error {
	err := c.rdb.FTCreate(ctx, c.index,
		&redis.FTCreateOptions{OnHash: true, Prefix: []any{c.prefix}},
		&redis.FieldSchema{FieldName: "name", FieldType: redis.SearchFieldTypeText, Weight: 5},
		&redis.FieldSchema{FieldName: "description", FieldType: redis.SearchFieldTypeText},
		&redis.FieldSchema{FieldName: "price", FieldType: redis.SearchFieldTypeNumeric},
	).Err()
	if err != nil && strings.Contains(err.Error(), "Index already exists") {
		return nil
	}
	return err
}

// Search implements roles.CatalogSearcher: one FT.SEARCH over the product
// index, ranked by text relevance.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]roles.ProductFinding, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("catalog: query is required")
	}
	if limit <= 0 {
		limit = 10
	}
	res, err := c.rdb.FTSearchWithArgs(ctx, c.index, escapeQuery(query), &redis.FTSearchOptions{
		WithScores: true,
		Limit:      limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("catalog: ft.search: %w", err)
	}
	findings := make([]roles.ProductFinding, 0, len(res.Docs))
	for _, doc := range res.Docs {
		f := roles.ProductFinding{
			ID:          strings.TrimPrefix(doc.ID, c.prefix),
			Name:        doc.Fields["name"],
			Description: doc.Fields["description"],
		}
		if doc.Score != nil {
			f.Score = *doc.Score
		}
		if p, perr := strconv.ParseFloat(doc.Fields["price"], 64); perr == nil {
			f.Price = p
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// escapeQuery neutralizes RediSearch query syntax in user-supplied text so
// briefs like "boots @ $100" do not break the query parser.
func escapeQuery(q string) string {
	var b strings.Builder
	for _, r := range q {
		switch r {
		case ',', '.', '<', '>', '{', '}', '[', ']', '"', '\'', ':', ';',
			'!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '-', '+',
			'=', '~', '|', '/', '\\':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
