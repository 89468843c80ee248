// Package mongo provides a MongoDB-backed implementation of run.Store so run
// metadata survives process restarts and is queryable outside the service.
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

	"github.com/draftforge/draftforge/pipeline/run"
)

const (
	defaultRunsCollection = "runs"
	defaultOpTimeout      = 5 * time.Second
	runClientName         = "run-mongo"
)

// Options configures the Mongo run store.
type Options struct {
	// Client is the connected Mongo client. Required.
	Client *mongodriver.Client
	// Database is the database name. Required.
	Database string
	// Collection overrides the default "runs" collection name.
	Collection string
	// Timeout bounds individual store operations.
	Timeout time.Duration
}

// Store implements run.Store backed by a Mongo collection. It also satisfies
// health.Pinger so the web health endpoints can report Mongo status.
type Store struct {
	mongo   *mongodriver.Client
	coll    collection
	timeout time.Duration
}

var _ health.Pinger = (*Store)(nil)

// New builds a Store and ensures the run_id unique index exists.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultRunsCollection
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
func (s *Store) Name() string { return runClientName }

// Ping implements health.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.mongo.Ping(ctx, readpref.Primary())
}

// Upsert implements run.Store.
func (s *Store) Upsert(ctx context.Context, rec run.Record) error {
	if rec.RunID == "" {
		return errors.New("run id is required")
	}
	now := time.Now().UTC()
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	doc := fromRecord(rec)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// started_at lives only under $setOnInsert: putting it in $set as well
	// is rejected by the server as conflicting update operators on one path.
	filter := bson.M{"run_id": rec.RunID}
	update := bson.M{
		"$set": runUpdate{
			RunID:     doc.RunID,
			Status:    doc.Status,
			Revisions: doc.Revisions,
			Error:     doc.Error,
			UpdatedAt: doc.UpdatedAt,
			Labels:    doc.Labels,
		},
		"$setOnInsert": bson.M{
			"started_at": doc.StartedAt,
		},
	}
	_, err := s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

// Load implements run.Store. A missing run yields a zero Record and no error.
func (s *Store) Load(ctx context.Context, runID string) (run.Record, error) {
	if runID == "" {
		return run.Record{}, errors.New("run id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc runDocument
	if err := s.coll.FindOne(ctx, bson.M{"run_id": runID}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return run.Record{}, nil
		}
		return run.Record{}, err
	}
	return doc.toRecord(), nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// runUpdate is the $set portion of an upsert. It deliberately omits
// started_at, which is written once on insert.
type runUpdate struct {
	RunID     string            `bson:"run_id"`
	Status    run.Status        `bson:"status"`
	Revisions int               `bson:"revisions"`
	Error     string            `bson:"error,omitempty"`
	UpdatedAt time.Time         `bson:"updated_at"`
	Labels    map[string]string `bson:"labels,omitempty"`
}

type runDocument struct {
	RunID     string            `bson:"run_id"`
	Status    run.Status        `bson:"status"`
	Revisions int               `bson:"revisions"`
	Error     string            `bson:"error,omitempty"`
	StartedAt time.Time         `bson:"started_at"`
	UpdatedAt time.Time         `bson:"updated_at"`
	Labels    map[string]string `bson:"labels,omitempty"`
}

func fromRecord(rec run.Record) runDocument {
	return runDocument{
		RunID:     rec.RunID,
		Status:    rec.Status,
		Revisions: rec.Revisions,
		Error:     rec.Error,
		StartedAt: rec.StartedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
		Labels:    cloneLabels(rec.Labels),
	}
}

func (doc runDocument) toRecord() run.Record {
	return run.Record{
		RunID:     doc.RunID,
		Status:    doc.Status,
		Revisions: doc.Revisions,
		Error:     doc.Error,
		StartedAt: doc.StartedAt,
		UpdatedAt: doc.UpdatedAt,
		Labels:    cloneLabels(doc.Labels),
	}
}

func cloneLabels(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func ensureIndexes(ctx context.Context, coll collection) error {
	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "run_id", Value: 1}},
		Options: options.Index().SetUnique(true),
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
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return c.coll.FindOne(ctx, filter, opts...)
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
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
