// internal/domain/models/attempt.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Outcome is the terminal result of one login attempt.
type Outcome string

const (
	OutcomeNotFound           Outcome = "not-found"
	OutcomeVoiceMismatch      Outcome = "voice-mismatch"
	OutcomePassphraseMismatch Outcome = "passphrase-mismatch"
	OutcomeSuccess            Outcome = "success"
	OutcomeInternalError      Outcome = "internal-error"
)

// AllOutcomes lists every outcome in a stable order.
func AllOutcomes() []Outcome {
	return []Outcome{
		OutcomeNotFound,
		OutcomeVoiceMismatch,
		OutcomePassphraseMismatch,
		OutcomeSuccess,
		OutcomeInternalError,
	}
}

// IsValidOutcome reports whether s names a known outcome.
func IsValidOutcome(s string) bool {
	for _, o := range AllOutcomes() {
		if string(o) == s {
			return true
		}
	}
	return false
}

// LoginAttempt is the append-only audit record of one login call.
//
// Optional evidence is held in pointers so "not computed" is distinguishable
// from a zero score or an empty transcript.
type LoginAttempt struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string             `bson:"email" json:"email"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	Outcome   Outcome            `bson:"outcome" json:"outcome"`
	Message   string             `bson:"message" json:"message"`

	BestSimilarity  *float64  `bson:"best_similarity,omitempty" json:"best_similarity,omitempty"`
	AllSimilarities []float64 `bson:"all_similarities,omitempty" json:"all_similarities,omitempty"`
	TranscribedText *string   `bson:"transcribed_text,omitempty" json:"transcribed_text,omitempty"`

	// Stage is the last state the attempt reached before it was finalized.
	Stage     string  `bson:"stage" json:"stage"`
	Threshold float64 `bson:"threshold" json:"threshold"`
	Rule      string  `bson:"rule" json:"rule"`

	RecordingDigest string `bson:"recording_digest,omitempty" json:"recording_digest,omitempty"`
	IP              string `bson:"ip,omitempty" json:"ip,omitempty"`
	UserAgent       string `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	DurationMS      int64  `bson:"duration_ms" json:"duration_ms"`
}
