// Package mongo provides a MongoDB-backed implementation of eval.Store.
// Evaluation records are append-only documents: re-evaluations insert new
// documents rather than updating existing ones.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"goa.design/clue/health"

	"github.com/draftforge/draftforge/pipeline/eval"
)

const (
	defaultEvalsCollection = "evaluations"
	defaultOpTimeout       = 5 * time.Second
	evalClientName         = "eval-mongo"
)

// Options configures the Mongo evaluation store.
type Options struct {
	// Client is the connected Mongo client. Required.
	Client *mongodriver.Client
	// Database is the database name. Required.
	Database string
	// Collection overrides the default "evaluations" collection name.
	Collection string
	// Timeout bounds individual store operations.
	Timeout time.Duration
}

// Store implements eval.Store backed by a Mongo collection. It also satisfies
// health.Pinger so the web health endpoints can report Mongo status.
type Store struct {
	mongo   *mongodriver.Client
	coll    collection
	timeout time.Duration
}

var _ health.Pinger = (*Store)(nil)

// New builds a Store and ensures the run_id lookup index exists.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultEvalsCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	wrapper := mongoCollection{coll: opts.Client.Database(opts.Database).Collection(collName)}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, wrapper); err != nil {
		return nil, err
	}
	return newStoreWithCollection(opts.Client, wrapper, timeout)
}

// Name implements health.Pinger.
func (s *Store) Name() string { return evalClientName }

// Ping implements health.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.mongo.Ping(ctx, readpref.Primary())
}

// Append implements eval.Store.
func (s *Store) Append(ctx context.Context, rec eval.Record) error {
	if rec.ID == "" {
		return errors.New("record id is required")
	}
	if rec.RunID == "" {
		return errors.New("run id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.InsertOne(ctx, fromRecord(rec))
	return err
}

// ListByRun implements eval.Store. Records are returned in creation order; an
// unknown run yields an empty slice.
func (s *Store) ListByRun(ctx context.Context, runID string) ([]eval.Record, error) {
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.coll.Find(ctx, bson.M{"run_id": runID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []evalDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	records := make([]eval.Record, len(docs))
	for i, doc := range docs {
		records[i] = doc.toRecord()
	}
	return records, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

type evalDocument struct {
	ID        string    `bson:"_id"`
	RunID     string    `bson:"run_id"`
	Evaluator string    `bson:"evaluator"`
	Score     float64   `bson:"score"`
	Reasoning string    `bson:"reasoning,omitempty"`
	Error     string    `bson:"error,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func fromRecord(rec eval.Record) evalDocument {
	return evalDocument{
		ID:        rec.ID,
		RunID:     rec.RunID,
		Evaluator: rec.Evaluator,
		Score:     rec.Score,
		Reasoning: rec.Reasoning,
		Error:     rec.Error,
		CreatedAt: rec.CreatedAt.UTC(),
	}
}

func (doc evalDocument) toRecord() eval.Record {
	return eval.Record{
		ID:        doc.ID,
		RunID:     doc.RunID,
		Evaluator: doc.Evaluator,
		Score:     doc.Score,
		Reasoning: doc.Reasoning,
		Error:     doc.Error,
		CreatedAt: doc.CreatedAt,
	}
}

func ensureIndexes(ctx context.Context, coll collection) error {
	index := mongodriver.IndexModel{
		Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "created_at", Value: 1}},
	}
	_, err := coll.Indexes().CreateOne(ctx, index)
	return err
}

func newStoreWithCollection(mongoClient *mongodriver.Client, coll collection, timeout time.Duration) (*Store, error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &Store{mongo: mongoClient, coll: coll, timeout: timeout}, nil
}

// collection abstracts the Mongo collection surface used by the store so
// tests can substitute an in-memory fake.
type collection interface {
	InsertOne(ctx context.Context, doc any, opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error)
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type cursor interface {
	All(ctx context.Context, results any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) InsertOne(ctx context.Context, doc any, opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, doc, opts...)
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error) {
	return c.coll.Find(ctx, filter, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
