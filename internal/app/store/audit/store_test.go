package audit

import (
	"testing"
	"time"

	"github.com/dalemusser/voxsecure/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	if store == nil {
		t.Fatal("New() returned nil")
	}
}

func TestStore_EnsureIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// SetupTestDB already created the same indexes via indexes.EnsureAll.
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}
}

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	profileID := primitive.NewObjectID()
	event := Event{
		Category:  CategoryEnrollment,
		EventType: EventEnrollmentSucceeded,
		ProfileID: &profileID,
		Email:     " Alice@Example.com",
		IP:        "192.168.1.1",
		UserAgent: "TestAgent",
		Success:   true,
	}

	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	events, err := store.GetByEmail(ctx, "alice@example.com", 10)
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].ProfileID == nil || *events[0].ProfileID != profileID {
		t.Errorf("ProfileID = %v, want %v", events[0].ProfileID, profileID)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be auto-set when zero")
	}
}

func TestStore_Log_WithID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	eventID := primitive.NewObjectID()
	event := Event{
		ID:        eventID,
		CreatedAt: time.Now().Add(-1 * time.Hour),
		Category:  CategorySession,
		EventType: EventSessionStarted,
		Success:   true,
	}

	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	events, err := store.Query(ctx, QueryFilter{EventType: EventSessionStarted})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].ID != eventID {
		t.Errorf("ID = %v, want %v", events[0].ID, eventID)
	}
}

func TestStore_Query(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	events := []Event{
		{Category: CategoryEnrollment, EventType: EventEnrollmentSucceeded, Email: "a@example.com", Success: true},
		{Category: CategoryEnrollment, EventType: EventEnrollmentRejected, Email: "a@example.com", FailureReason: "duplicate email"},
		{Category: CategorySession, EventType: EventSessionStarted, Email: "b@example.com", Success: true},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    QueryFilter
		wantCount int
	}{
		{"all events", QueryFilter{}, 3},
		{"by email", QueryFilter{Email: "A@example.com"}, 2},
		{"by category enrollment", QueryFilter{Category: CategoryEnrollment}, 2},
		{"by category session", QueryFilter{Category: CategorySession}, 1},
		{"by event type", QueryFilter{EventType: EventEnrollmentRejected}, 1},
		{"with limit", QueryFilter{Limit: 2}, 2},
		{"with offset", QueryFilter{Limit: 10, Offset: 2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(result) != tt.wantCount {
				t.Errorf("Query() returned %d events, want %d", len(result), tt.wantCount)
			}
		})
	}
}

func TestStore_Query_TimeRange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now()
	past := now.Add(-1 * time.Hour)
	future := now.Add(1 * time.Hour)

	event := Event{
		Category:  CategorySession,
		EventType: EventSessionEnded,
		CreatedAt: now,
		Success:   true,
	}
	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	tests := []struct {
		name      string
		start     *time.Time
		end       *time.Time
		wantCount int
	}{
		{"start before", &past, nil, 1},
		{"start after", &future, nil, 0},
		{"end after", nil, &future, 1},
		{"end before", nil, &past, 0},
		{"range includes", &past, &future, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := store.Query(ctx, QueryFilter{StartTime: tt.start, EndTime: tt.end})
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(result) != tt.wantCount {
				t.Errorf("Query() returned %d events, want %d", len(result), tt.wantCount)
			}
		})
	}
}

func TestStore_CountByFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 5; i++ {
		event := Event{
			Category:  CategoryEnrollment,
			EventType: EventEnrollmentFailed,
			Email:     "c@example.com",
		}
		if err := store.Log(ctx, event); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	count, err := store.CountByFilter(ctx, QueryFilter{Email: "c@example.com"})
	if err != nil {
		t.Fatalf("CountByFilter() error = %v", err)
	}
	if count != 5 {
		t.Errorf("CountByFilter() = %d, want 5", count)
	}

	count, err = store.CountByFilter(ctx, QueryFilter{Category: CategorySession})
	if err != nil {
		t.Fatalf("CountByFilter() error = %v", err)
	}
	if count != 0 {
		t.Errorf("CountByFilter() for non-matching = %d, want 0", count)
	}
}

func TestStore_GetRecent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 5; i++ {
		event := Event{
			Category:  CategorySession,
			EventType: EventSessionStarted,
			Success:   true,
		}
		if err := store.Log(ctx, event); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	events, err := store.GetRecent(ctx, 3)
	if err != nil {
		t.Fatalf("GetRecent() error = %v", err)
	}
	if len(events) != 3 {
		t.Errorf("GetRecent() returned %d events, want 3", len(events))
	}
}

func TestStore_Log_WithDetails(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	event := Event{
		Category:  CategoryEnrollment,
		EventType: EventEnrollmentSucceeded,
		Success:   true,
		Details: map[string]string{
			"voiceprints": "3",
			"embedder":    "mfcc-mean-13",
		},
	}

	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	events, err := store.Query(ctx, QueryFilter{EventType: EventEnrollmentSucceeded})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Details["voiceprints"] != "3" {
		t.Errorf("Details[voiceprints] = %v, want 3", events[0].Details["voiceprints"])
	}
}

func TestConstants(t *testing.T) {
	if CategoryEnrollment != "enrollment" {
		t.Errorf("CategoryEnrollment = %q, want enrollment", CategoryEnrollment)
	}
	if CategorySession != "session" {
		t.Errorf("CategorySession = %q, want session", CategorySession)
	}

	eventTypes := []string{
		EventEnrollmentSucceeded,
		EventEnrollmentRejected,
		EventEnrollmentFailed,
		EventSessionStarted,
		EventSessionEnded,
	}
	seen := map[string]bool{}
	for _, et := range eventTypes {
		if et == "" {
			t.Error("Event type constant should not be empty")
		}
		if seen[et] {
			t.Errorf("duplicate event type %q", et)
		}
		seen[et] = true
	}
}
