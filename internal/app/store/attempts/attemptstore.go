// internal/app/store/attempts/attemptstore.go
package attemptstore

import (
	"context"
	"time"

	"github.com/dalemusser/voxsecure/internal/app/system/normalize"
	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
	"github.com/dalemusser/voxsecure/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultLimit is used when a query does not set one.
	DefaultLimit = 50
	// MaxLimit caps a single page.
	MaxLimit = 500
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("login_attempts")}
}

// EnsureIndexes creates indexes for efficient querying.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// Per-email history (latest-first)
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_attempts_email_ts"),
		},
		// Site-wide recent attempts
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_attempts_ts"),
		},
		{
			Keys:    bson.D{{Key: "outcome", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_attempts_outcome_ts"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// AppendAttempt inserts a LoginAttempt. If Timestamp is zero, it's set to
// time.Now().UTC(). Attempts are never updated after insert. Failures wrap
// voiceerr.ErrStorage.
func (s *Store) AppendAttempt(ctx context.Context, a models.LoginAttempt) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	a.Email = normalize.Email(a.Email)
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return voiceerr.Wrap(voiceerr.ErrStorage, err)
	}
	return nil
}

// Filter selects attempts. Zero fields are ignored.
type Filter struct {
	Email   string
	Outcome models.Outcome
	Since   time.Time
	Until   time.Time
	Limit   int64
	Offset  int64
}

func (f Filter) bson() bson.M {
	q := bson.M{}
	if e := normalize.Email(f.Email); e != "" {
		q["email"] = e
	}
	if f.Outcome != "" {
		q["outcome"] = f.Outcome
	}
	ts := bson.M{}
	if !f.Since.IsZero() {
		ts["$gte"] = f.Since
	}
	if !f.Until.IsZero() {
		ts["$lt"] = f.Until
	}
	if len(ts) > 0 {
		q["timestamp"] = ts
	}
	return q
}

// Query returns attempts matching f, newest first, along with the total
// number of matches ignoring Limit and Offset.
func (s *Store) Query(ctx context.Context, f Filter) ([]models.LoginAttempt, int64, error) {
	q := f.bson()

	total, err := s.c.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, voiceerr.Wrap(voiceerr.ErrStorage, err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)
	if f.Offset > 0 {
		opts.SetSkip(f.Offset)
	}

	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, voiceerr.Wrap(voiceerr.ErrStorage, err)
	}
	defer cur.Close(ctx)

	var out []models.LoginAttempt
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, voiceerr.Wrap(voiceerr.ErrStorage, err)
	}
	return out, total, nil
}

// CountByOutcome returns the number of attempts per outcome in [since, now).
// A zero since counts everything. Outcomes with no attempts are present with
// a zero count.
func (s *Store) CountByOutcome(ctx context.Context, since time.Time) (map[models.Outcome]int64, error) {
	match := bson.M{}
	if !since.IsZero() {
		match["timestamp"] = bson.M{"$gte": since}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$outcome", "count": bson.M{"$sum": 1}}}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, voiceerr.Wrap(voiceerr.ErrStorage, err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Outcome models.Outcome `bson:"_id"`
		Count   int64          `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, voiceerr.Wrap(voiceerr.ErrStorage, err)
	}

	out := make(map[models.Outcome]int64, len(models.AllOutcomes()))
	for _, o := range models.AllOutcomes() {
		out[o] = 0
	}
	for _, r := range rows {
		out[r.Outcome] = r.Count
	}
	return out, nil
}
