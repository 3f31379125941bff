package validators

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/voxsecure/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll() error = %v", err)
	}

	for _, coll := range []string{"users", "login_attempts", "audit_logs"} {
		exists, err := collectionExists(ctx, db, coll)
		if err != nil {
			t.Errorf("collectionExists(%s) error = %v", coll, err)
			continue
		}
		if !exists {
			t.Errorf("collection %s should exist after EnsureAll", coll)
		}
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll() error = %v", err)
	}
	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll() error = %v", err)
	}
}

func TestUsersValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll() error = %v", err)
	}
	users := db.Collection("users")
	now := time.Now().UTC()

	tests := []struct {
		name    string
		doc     bson.M
		wantErr bool
	}{
		{
			name: "valid profile",
			doc: bson.M{
				"email":       "ada@example.com",
				"voiceprints": bson.A{bson.A{0.1, 0.2}, bson.A{0.3, 0.4}},
				"dimension":   2,
				"created_at":  now,
			},
		},
		{
			name: "no voiceprints",
			doc: bson.M{
				"email":       "empty@example.com",
				"voiceprints": bson.A{},
				"dimension":   2,
				"created_at":  now,
			},
			wantErr: true,
		},
		{
			name: "missing email",
			doc: bson.M{
				"voiceprints": bson.A{bson.A{0.1}},
				"dimension":   1,
				"created_at":  now,
			},
			wantErr: true,
		},
		{
			name: "uppercase email",
			doc: bson.M{
				"email":       "Ada@Example.com",
				"voiceprints": bson.A{bson.A{0.1}},
				"dimension":   1,
				"created_at":  now,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.InsertOne(ctx, tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("InsertOne() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoginAttemptsValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll() error = %v", err)
	}
	coll := db.Collection("login_attempts")

	_, err := coll.InsertOne(ctx, bson.M{
		"email": "a@example.com", "timestamp": time.Now(), "outcome": "success", "message": "Login successful",
	})
	if err != nil {
		t.Fatalf("valid attempt rejected: %v", err)
	}

	_, err = coll.InsertOne(ctx, bson.M{
		"email": "a@example.com", "timestamp": time.Now(), "outcome": "maybe", "message": "?",
	})
	if err == nil {
		t.Error("attempt with unknown outcome should be rejected")
	}
}

func TestEnsureCollection(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := ensureCollection(ctx, db, "new_collection")
	if err != nil {
		t.Fatalf("First ensureCollection() error = %v", err)
	}
	if !created {
		t.Error("First ensureCollection() should return created=true")
	}

	created, err = ensureCollection(ctx, db, "new_collection")
	if err != nil {
		t.Fatalf("Second ensureCollection() error = %v", err)
	}
	if created {
		t.Error("Second ensureCollection() should return created=false")
	}
}

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		name string
		fn   func(error) bool
		err  error
		want bool
	}{
		{"namespace nil", isNamespaceExistsErr, nil, false},
		{"namespace message", isNamespaceExistsErr, errors.New("collection already exists"), true},
		{"namespace code 48", isNamespaceExistsErr, mongo.CommandError{Code: 48, Message: "exists"}, true},
		{"no such command message", isNoSuchCommand, errors.New("NO SUCH COMMAND"), true},
		{"no such command code 59", isNoSuchCommand, mongo.CommandError{Code: 59, Message: "command"}, true},
		{"no such command generic", isNoSuchCommand, errors.New("boom"), false},
		{"not implemented code 115", isNotImplemented, mongo.CommandError{Code: 115, Message: "impl"}, true},
		{"not supported message", isNotImplemented, errors.New("not supported"), true},
		{"not implemented generic", isNotImplemented, errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
