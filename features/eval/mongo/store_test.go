package mongo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/draftforge/draftforge/pipeline/eval"
)

type fakeCollection struct {
	mu           sync.Mutex
	docs         []evalDocument
	indexCreated bool
}

func (f *fakeCollection) InsertOne(_ context.Context, doc any, _ ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc.(evalDocument))
	return &mongodriver.InsertOneResult{}, nil
}

func (f *fakeCollection) Find(_ context.Context, filter any, _ ...options.Lister[options.FindOptions]) (cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	runID := filter.(bson.M)["run_id"].(string)
	var matched []evalDocument
	for _, d := range f.docs {
		if d.RunID == runID {
			matched = append(matched, d)
		}
	}
	return fakeCursor{docs: matched}, nil
}

func (f *fakeCollection) Indexes() indexView {
	return fakeIndexView{c: f}
}

type fakeIndexView struct {
	c *fakeCollection
}

func (v fakeIndexView) CreateOne(context.Context, mongodriver.IndexModel, ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	v.c.indexCreated = true
	return "run_id_1_created_at_1", nil
}

type fakeCursor struct {
	docs []evalDocument
}

func (c fakeCursor) All(_ context.Context, results any) error {
	*results.(*[]evalDocument) = c.docs
	return nil
}

func mustNewTestStore(t *testing.T) (*Store, *fakeCollection) {
	t.Helper()
	fc := &fakeCollection{}
	s, err := newStoreWithCollection(nil, fc, time.Second)
	require.NoError(t, err)
	return s, fc
}

func TestEnsureIndexes(t *testing.T) {
	fc := &fakeCollection{}
	require.NoError(t, ensureIndexes(context.Background(), fc))
	require.True(t, fc.indexCreated)
}

func TestAppendAndList(t *testing.T) {
	s, _ := mustNewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, eval.Record{ID: "e1", RunID: "run-1", Evaluator: "relevance", Score: 4, Reasoning: "on topic"}))
	require.NoError(t, s.Append(ctx, eval.Record{ID: "e2", RunID: "run-1", Evaluator: "fluency", Score: 5}))
	require.NoError(t, s.Append(ctx, eval.Record{ID: "e3", RunID: "run-2", Evaluator: "relevance", Score: 2}))

	records, err := s.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "relevance", records[0].Evaluator)
	require.Equal(t, 4.0, records[0].Score)
	require.Equal(t, "fluency", records[1].Evaluator)
	require.False(t, records[0].CreatedAt.IsZero())
}

func TestAppendIsAppendOnly(t *testing.T) {
	s, fc := mustNewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, eval.Record{ID: "e1", RunID: "run-1", Evaluator: "relevance", Score: 3}))
	require.NoError(t, s.Append(ctx, eval.Record{ID: "e2", RunID: "run-1", Evaluator: "relevance", Score: 4}))
	require.Len(t, fc.docs, 2)
}

func TestAppendValidation(t *testing.T) {
	s, _ := mustNewTestStore(t)
	err := s.Append(context.Background(), eval.Record{RunID: "run-1"})
	require.EqualError(t, err, "record id is required")
	err = s.Append(context.Background(), eval.Record{ID: "e1"})
	require.EqualError(t, err, "run id is required")
}

func TestListUnknownRun(t *testing.T) {
	s, _ := mustNewTestStore(t)
	records, err := s.ListByRun(context.Background(), "absent")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{})
	require.EqualError(t, err, "mongo client is required")
}
