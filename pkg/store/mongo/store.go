// Package mongo implements the ProfileStore interface on a MongoDB server
// using the official driver. It reads the system.profile collection and
// drives the profiling level through the "profile" database command.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/supporttools/mongo-profiler/pkg/classifier"
	"github.com/supporttools/mongo-profiler/pkg/types"
)

// profileCollection is where the server buffers profiler entries.
const profileCollection = "system.profile"

// Store implements types.ProfileStore against one database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials the server and returns a store bound to the given database.
// Callers own the connection and must Close it when done.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping %s: %w", uri, err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// NewWithDatabase wraps an existing database handle. The caller keeps
// ownership of the underlying client.
func NewWithDatabase(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Close disconnects the underlying client when this store owns it.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// ProfilingLevel implements types.ProfileStore.
func (s *Store) ProfilingLevel(ctx context.Context) (types.Level, error) {
	var result struct {
		Was int `bson:"was"`
	}
	err := s.db.RunCommand(ctx, bson.D{{Key: "profile", Value: -1}}).Decode(&result)
	if err != nil {
		return types.LevelOff, fmt.Errorf("read profiling level: %w", err)
	}
	return types.Level(result.Was), nil
}

// SetProfilingLevel implements types.ProfileStore.
func (s *Store) SetProfilingLevel(ctx context.Context, level types.Level) error {
	err := s.db.RunCommand(ctx, bson.D{{Key: "profile", Value: int(level)}}).Err()
	if err != nil {
		return fmt.Errorf("set profiling level to %s: %w", level, err)
	}
	return nil
}

// LatestEntryTime implements types.ProfileStore.
func (s *Store) LatestEntryTime(ctx context.Context) (time.Time, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "ts", Value: -1}})
	var doc bson.M
	err := s.db.Collection(profileCollection).FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read latest profile entry: %w", err)
	}
	ts, ok := asTime(doc["ts"])
	return ts, ok, nil
}

// FetchEntries implements types.ProfileStore.
func (s *Store) FetchEntries(ctx context.Context, after time.Time, hasAfter bool, skip int) ([]types.RawEntry, error) {
	filter := bson.D{}
	if hasAfter {
		filter = bson.D{{Key: "ts", Value: bson.D{{Key: "$gt", Value: after}}}}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "ts", Value: 1}}).
		SetSkip(int64(skip))

	cursor, err := s.db.Collection(profileCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch profile entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []types.RawEntry
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode profile entry: %w", err)
		}
		entries = append(entries, toRawEntry(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile entries: %w", err)
	}
	return entries, nil
}

// InsertMarker implements types.ProfileStore. The marker is a deliberately
// profiled throwaway query against the marker collection; its profile entry
// is the exact shape the classifier's marker pattern recognizes.
func (s *Store) InsertMarker(ctx context.Context, text string) error {
	cursor, err := s.db.Collection(classifier.MarkerCollection).
		Find(ctx, bson.D{{Key: "text", Value: text}})
	if err != nil {
		return fmt.Errorf("insert marker %q: %w", text, err)
	}
	return cursor.Close(ctx)
}

// toRawEntry splits a profile document into the info text, the timestamp,
// and the passthrough metadata.
func toRawEntry(doc bson.M) types.RawEntry {
	entry := types.RawEntry{Fields: make(map[string]any)}
	for key, value := range doc {
		switch key {
		case "info":
			if s, ok := value.(string); ok {
				entry.Info = s
				continue
			}
		case "ts":
			if ts, ok := asTime(value); ok {
				entry.TS, entry.HasTS = ts, true
				continue
			}
		}
		entry.Fields[key] = value
	}
	return entry
}

// asTime converts the timestamp representations the driver may produce.
func asTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case bson.DateTime:
		return v.Time(), true
	default:
		return time.Time{}, false
	}
}
