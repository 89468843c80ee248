package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGround(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"summary": "Boots need ankle support.",
			"sources": []map[string]string{
				{"title": "Trail Guide", "url": "https://example.com/guide", "snippet": "support matters"},
			},
		})
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)

	findings, err := c.Ground(context.Background(), "hiking boots")
	require.NoError(t, err)
	assert.Equal(t, "Boots need ankle support.", findings.Summary)
	require.Len(t, findings.Sources, 1)
	assert.Equal(t, "Trail Guide", findings.Sources[0].Title)
	assert.Equal(t, "https://example.com/guide", findings.Sources[0].URL)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "/v1/ground", gotPath)
	assert.Equal(t, "hiking boots", gotBody["query"])
}

func TestGroundServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Ground(context.Background(), "hiking boots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGroundEmptySummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"summary": ""})
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Ground(context.Background(), "q")
	require.Error(t, err)
}

func TestGroundEmptyQuery(t *testing.T) {
	c, err := New(Options{BaseURL: "http://localhost:9"})
	require.NoError(t, err)
	_, err = c.Ground(context.Background(), "  ")
	require.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	_, err = New(Options{BaseURL: "://bad"})
	require.Error(t, err)
}
