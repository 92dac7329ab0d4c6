// Package mongostore implements remote.Store on a MongoDB database.
//
// Live queries follow a change stream on the queried collection and re-run
// the query on every change. Deployments without change streams (a
// standalone server) fall back to polling.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/amonks/taskmirror/remote"
)

// DefaultPollInterval is the re-query interval used when change streams are
// unavailable.
const DefaultPollInterval = time.Second

// Options configures a Store.
type Options struct {
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration

	Logger *slog.Logger
}

// Store is a remote.Store backed by MongoDB.
type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	ownsClient   bool
	pollInterval time.Duration
	logger       *slog.Logger
}

// Connect dials uri and returns a store over database.
func Connect(ctx context.Context, uri, database string, opts Options) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := New(client.Database(database), opts)
	s.ownsClient = true
	return s, nil
}

// New returns a store over an existing database handle.
func New(db *mongo.Database, opts Options) *Store {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		client:       db.Client(),
		db:           db,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger,
	}
}

// Database returns the underlying database handle.
func (s *Store) Database() *mongo.Database {
	return s.db
}

// Close disconnects the client if Connect created it.
func (s *Store) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

// Get implements remote.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (remote.Record, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return remote.Record{}, fmt.Errorf("get %s/%s: %w", collection, id, remote.ErrNotFound)
	}
	if err != nil {
		return remote.Record{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return toRecord(doc), nil
}

// Create implements remote.Store.
func (s *Store) Create(ctx context.Context, collection string, doc map[string]any) (string, error) {
	stored, err := remote.CloneDocument(doc)
	if err != nil {
		return "", fmt.Errorf("create in %s: %w", collection, err)
	}
	id := uuid.NewString()
	stored["_id"] = id
	if _, err := s.db.Collection(collection).InsertOne(ctx, stored); err != nil {
		return "", fmt.Errorf("create in %s: %w", collection, err)
	}
	return id, nil
}

// Update implements remote.Store. Keys in patch replace stored keys; a nil
// value removes the key.
func (s *Store) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	cloned, err := remote.CloneDocument(patch)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	set := bson.M{}
	unset := bson.M{}
	for key := range patch {
		if patch[key] == nil {
			unset[key] = ""
			continue
		}
		set[key] = cloned[key]
	}
	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	if len(update) == 0 {
		n, err := s.db.Collection(collection).CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		if n == 0 {
			return fmt.Errorf("update %s/%s: %w", collection, id, remote.ErrNotFound)
		}
		return nil
	}

	result, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, remote.ErrNotFound)
	}
	return nil
}

// Delete implements remote.Store.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, remote.ErrNotFound)
	}
	return nil
}

// Query implements remote.Store.
func (s *Store) Query(ctx context.Context, q remote.Query) (remote.Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	filter := Filter(q.Predicates)

	records, err := s.find(ctx, q.Collection, filter)
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	feed := remote.NewFeed(cancel)
	feed.Send(remote.Event{Records: records})

	stream, err := s.db.Collection(q.Collection).Watch(watchCtx, mongo.Pipeline{})
	if err != nil {
		s.logger.Debug("change streams unavailable, polling", "collection", q.Collection, "error", err)
		go s.poll(watchCtx, q.Collection, filter, feed, records)
	} else {
		go s.follow(watchCtx, stream, q.Collection, filter, feed, records)
	}
	return feed, nil
}

func (s *Store) follow(ctx context.Context, stream *mongo.ChangeStream, collection string, filter bson.D, feed *remote.Feed, last []remote.Record) {
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		records, err := s.find(ctx, collection, filter)
		if err != nil {
			if ctx.Err() == nil {
				feed.Fail(err)
			}
			return
		}
		if reflect.DeepEqual(records, last) {
			continue
		}
		last = records
		feed.Send(remote.Event{Records: records})
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		s.logger.Warn("change stream failed", "collection", collection, "error", err)
		feed.Fail(err)
	}
}

func (s *Store) poll(ctx context.Context, collection string, filter bson.D, feed *remote.Feed, last []remote.Record) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		records, err := s.find(ctx, collection, filter)
		if err != nil {
			if ctx.Err() == nil {
				feed.Fail(err)
			}
			return
		}
		if reflect.DeepEqual(records, last) {
			continue
		}
		last = records
		feed.Send(remote.Event{Records: records})
	}
}

func (s *Store) find(ctx context.Context, collection string, filter bson.D) ([]remote.Record, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	records := make([]remote.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, toRecord(doc))
	}
	return records, nil
}
