// internal/app/store/profiles/profilestore.go
package profilestore

// Terminology: Identity
//   - ProfileID / profileID / _id: The MongoDB ObjectID assigned by Create
//   - Email / email: The natural key; always stored and queried in normalized form

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/voxsecure/internal/app/system/normalize"
	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
	"github.com/dalemusser/voxsecure/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// EnsureIndexes creates the unique email index that serializes concurrent
// enrollments for the same address.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_users_created"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// CreateOption sets optional metadata on a profile before insert.
type CreateOption func(*models.UserProfile)

// WithEmbedder records the name of the embedder that produced the voiceprints.
func WithEmbedder(name string) CreateOption {
	return func(p *models.UserProfile) { p.Embedder = name }
}

// WithRecordings records archive keys of the raw enrollment audio.
func WithRecordings(keys []string) CreateOption {
	return func(p *models.UserProfile) { p.Recordings = keys }
}

// CreateProfile inserts a new profile in a single write. Either the whole
// profile with every voiceprint becomes visible or nothing does.
//
// Returns voiceerr.ErrNoRecordings when voiceprints is empty,
// voiceerr.ErrDimensionMismatch when the vectors differ in length,
// voiceerr.ErrDuplicateEmail when the email is taken and voiceerr.ErrStorage
// for any other failure.
func (s *Store) CreateProfile(ctx context.Context, email, name, mobile string, voiceprints []models.Voiceprint, opts ...CreateOption) (models.UserProfile, error) {
	if len(voiceprints) == 0 {
		return models.UserProfile{}, voiceerr.ErrNoRecordings
	}
	dim := len(voiceprints[0])
	if dim == 0 {
		return models.UserProfile{}, fmt.Errorf("%w: empty voiceprint", voiceerr.ErrDimensionMismatch)
	}
	for i, vp := range voiceprints {
		if len(vp) != dim {
			return models.UserProfile{}, fmt.Errorf("%w: voiceprint %d has %d values, want %d",
				voiceerr.ErrDimensionMismatch, i, len(vp), dim)
		}
	}

	p := models.UserProfile{
		ID:          primitive.NewObjectID(),
		Email:       normalize.Email(email),
		Name:        normalize.Name(name),
		Mobile:      normalize.Mobile(mobile),
		Voiceprints: voiceprints,
		Dimension:   dim,
		// Mongo stores milliseconds; truncate so the returned value matches a reload.
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	for _, opt := range opts {
		opt(&p)
	}

	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.UserProfile{}, voiceerr.ErrDuplicateEmail
		}
		return models.UserProfile{}, voiceerr.Wrap(voiceerr.ErrStorage, err)
	}
	return p, nil
}

// FindByEmail loads the profile for email. Returns voiceerr.ErrNotFound when
// no profile exists.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.UserProfile, error) {
	var p models.UserProfile
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.UserProfile{}, voiceerr.ErrNotFound
		}
		return models.UserProfile{}, voiceerr.Wrap(voiceerr.ErrStorage, err)
	}
	return p, nil
}

// FindByID loads a profile by its ObjectID. Returns voiceerr.ErrNotFound
// when no profile exists.
func (s *Store) FindByID(ctx context.Context, id primitive.ObjectID) (models.UserProfile, error) {
	var p models.UserProfile
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.UserProfile{}, voiceerr.ErrNotFound
		}
		return models.UserProfile{}, voiceerr.Wrap(voiceerr.ErrStorage, err)
	}
	return p, nil
}

// ExistsByEmail reports whether a profile exists for email.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, voiceerr.Wrap(voiceerr.ErrStorage, err)
	}
	return true, nil
}

// Count returns the number of enrolled profiles.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, voiceerr.Wrap(voiceerr.ErrStorage, err)
	}
	return n, nil
}
