// internal/app/store/profiles/fetcher.go
package profilestore

import (
	"context"

	"github.com/dalemusser/voxsecure/internal/app/system/auth"
	"github.com/dalemusser/voxsecure/internal/app/system/timeouts"
	"github.com/dalemusser/voxsecure/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Fetcher implements auth.UserFetcher so a session ends as soon as its
// profile is gone.
type Fetcher struct {
	users  *mongo.Collection
	logger *zap.Logger
}

// NewFetcher creates a UserFetcher that queries the given database.
func NewFetcher(db *mongo.Database, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		users:  db.Collection("users"),
		logger: logger,
	}
}

// FetchUser loads the profile by ID and returns nil if it is missing or the
// lookup fails. Voiceprints are not loaded.
func (f *Fetcher) FetchUser(ctx context.Context, profileID string) *auth.SessionUser {
	oid, err := primitive.ObjectIDFromHex(profileID)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var p models.UserProfile
	proj := options.FindOne().SetProjection(bson.M{"_id": 1, "email": 1, "name": 1})
	if err := f.users.FindOne(ctx, bson.M{"_id": oid}, proj).Decode(&p); err != nil {
		if err != mongo.ErrNoDocuments {
			f.logger.Warn("session profile lookup failed", zap.String("profile_id", profileID), zap.Error(err))
		}
		return nil
	}

	return &auth.SessionUser{
		ID:    p.ID.Hex(),
		Email: p.Email,
		Name:  p.Name,
	}
}
