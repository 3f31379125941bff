// internal/domain/models/profile.go
package models

// Terminology: Identity
//   - ProfileID / profileID / _id: The MongoDB ObjectID assigned when a profile is created
//   - Email / email: The natural key a user claims at login (stored trimmed + lowercase)

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Voiceprint is a fixed-length feature vector summarizing one recording.
type Voiceprint []float64

// UserProfile is an enrolled user. Profiles are written once at the end of a
// successful enrollment and never mutated afterwards.
type UserProfile struct {
	ID     primitive.ObjectID `bson:"_id"`
	Email  string             `bson:"email"`
	Name   string             `bson:"name"`
	Mobile string             `bson:"mobile"`

	// Voiceprints holds one vector per enrollment recording, in recording
	// order. Every vector has Dimension entries.
	Voiceprints []Voiceprint `bson:"voiceprints"`
	Dimension   int          `bson:"dimension"`
	Embedder    string       `bson:"embedder,omitempty"`

	// Recordings holds archive keys of the raw enrollment audio, when
	// archiving is enabled.
	Recordings []string `bson:"recordings,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
}

// VoiceprintCount returns the number of enrolled voiceprints.
func (p UserProfile) VoiceprintCount() int {
	return len(p.Voiceprints)
}
