package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearchClient struct {
	lastIndex   string
	lastQuery   string
	lastOptions *redis.FTSearchOptions
	result      redis.FTSearchResult
	searchErr   error
	createErr   error
}

func (s *stubSearchClient) FTSearchWithArgs(ctx context.Context, index, query string, options *redis.FTSearchOptions) *redis.FTSearchCmd {
	s.lastIndex = index
	s.lastQuery = query
	s.lastOptions = options
	cmd := &redis.FTSearchCmd{}
	if s.searchErr != nil {
		cmd.SetErr(s.searchErr)
	} else {
		cmd.SetVal(s.result)
	}
	return cmd
}

func (s *stubSearchClient) FTCreate(ctx context.Context, _ string, _ *redis.FTCreateOptions, _ ...*redis.FieldSchema) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if s.createErr != nil {
		cmd.SetErr(s.createErr)
	} else {
		cmd.SetVal("OK")
	}
	return cmd
}

func (s *stubSearchClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

func newTestCatalog(t *testing.T, stub *stubSearchClient) *Catalog {
	t.Helper()
	c, err := newWithClient(stub, Options{})
	require.NoError(t, err)
	return c
}

func TestSearch(t *testing.T) {
	score := 1.5
	stub := &stubSearchClient{result: redis.FTSearchResult{
		Total: 2,
		Docs: []redis.Document{
			{ID: "product:p1", Score: &score, Fields: map[string]string{
				"name":        "TrailMaster 3000",
				"description": "waterproof boot",
				"price":       "129.99",
			}},
			{ID: "product:p2", Fields: map[string]string{"name": "Summit Lite"}},
		},
	}}
	c := newTestCatalog(t, stub)

	findings, err := c.Search(context.Background(), "waterproof boots", 5)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "p1", findings[0].ID)
	assert.Equal(t, "TrailMaster 3000", findings[0].Name)
	assert.Equal(t, "waterproof boot", findings[0].Description)
	assert.Equal(t, 129.99, findings[0].Price)
	assert.Equal(t, 1.5, findings[0].Score)
	assert.Equal(t, "p2", findings[1].ID)

	assert.Equal(t, DefaultIndex, stub.lastIndex)
	assert.Equal(t, "waterproof boots", stub.lastQuery)
	require.NotNil(t, stub.lastOptions)
	assert.Equal(t, 5, stub.lastOptions.Limit)
	assert.True(t, stub.lastOptions.WithScores)
}

func TestSearchEscapesQuerySyntax(t *testing.T) {
	stub := &stubSearchClient{}
	c := newTestCatalog(t, stub)

	_, err := c.Search(context.Background(), `boots @ $100 (waterproof)`, 3)
	require.NoError(t, err)
	assert.Equal(t, "boots 100 waterproof", stub.lastQuery)
}

func TestSearchEmptyQuery(t *testing.T) {
	c := newTestCatalog(t, &stubSearchClient{})
	_, err := c.Search(context.Background(), "   ", 3)
	require.Error(t, err)
}

func TestSearchFailure(t *testing.T) {
	boom := errors.New("connection refused")
	c := newTestCatalog(t, &stubSearchClient{searchErr: boom})
	_, err := c.Search(context.Background(), "boots", 3)
	require.ErrorIs(t, err, boom)
}

func TestEnsureIndex(t *testing.T) {
	stub := &stubSearchClient{}
	c := newTestCatalog(t, stub)
	require.NoError(t, c.EnsureIndex(context.Background()))
}

func TestEnsureIndexAlreadyExists(t *testing.T) {
	stub := &stubSearchClient{createErr: errors.New("Index already exists")}
	c := newTestCatalog(t, stub)
	require.NoError(t, c.EnsureIndex(context.Background()))
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(nil, Options{})
	require.Error(t, err)
}
