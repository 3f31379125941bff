package profilestore

import (
	"errors"
	"sync"
	"testing"

	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
	"github.com/dalemusser/voxsecure/internal/domain/models"
	"github.com/dalemusser/voxsecure/internal/testutil"
)

func prints(vs ...[]float64) []models.Voiceprint {
	out := make([]models.Voiceprint, 0, len(vs))
	for _, v := range vs {
		out = append(out, models.Voiceprint(v))
	}
	return out
}

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

	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}

	// Should be idempotent
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() second call error = %v", err)
	}
}

func TestStore_CreateProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	vps := prints([]float64{0.1, 0.2, 0.3}, []float64{0.4, 0.5, 0.6})
	p, err := store.CreateProfile(ctx, "  Alice@Example.COM ", " Alice   Smith ", "+1 (555) 010-2000", vps,
		WithEmbedder("fake"), WithRecordings([]string{"enroll/a/0.webm", "enroll/a/1.webm"}))
	if err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	if p.ID.IsZero() {
		t.Error("ID should be assigned")
	}
	if p.Email != "alice@example.com" {
		t.Errorf("Email = %q, want normalized", p.Email)
	}
	if p.Name != "Alice Smith" {
		t.Errorf("Name = %q, want %q", p.Name, "Alice Smith")
	}
	if p.Mobile != "+15550102000" {
		t.Errorf("Mobile = %q, want %q", p.Mobile, "+15550102000")
	}
	if p.Dimension != 3 {
		t.Errorf("Dimension = %d, want 3", p.Dimension)
	}
	if p.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.FindByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("ID = %v, want %v", got.ID, p.ID)
	}
	if got.VoiceprintCount() != 2 {
		t.Fatalf("VoiceprintCount() = %d, want 2", got.VoiceprintCount())
	}
	for i := range vps {
		for j := range vps[i] {
			if got.Voiceprints[i][j] != vps[i][j] {
				t.Errorf("Voiceprints[%d][%d] = %v, want %v", i, j, got.Voiceprints[i][j], vps[i][j])
			}
		}
	}
	if got.Embedder != "fake" {
		t.Errorf("Embedder = %q, want fake", got.Embedder)
	}
	if len(got.Recordings) != 2 {
		t.Errorf("Recordings = %v, want 2 keys", got.Recordings)
	}
	if !got.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, p.CreatedAt)
	}
}

func TestStore_CreateProfile_Invalid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tests := []struct {
		name string
		vps  []models.Voiceprint
		want error
	}{
		{"no voiceprints", nil, voiceerr.ErrNoRecordings},
		{"empty vector", prints([]float64{}), voiceerr.ErrDimensionMismatch},
		{"mixed dimensions", prints([]float64{1, 2}, []float64{1, 2, 3}), voiceerr.ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreateProfile(ctx, "bad@example.com", "Bad", "", tt.vps)
			if !errors.Is(err, tt.want) {
				t.Fatalf("CreateProfile() error = %v, want %v", err, tt.want)
			}
		})
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Count() = %d, want 0 after rejected creates", n)
	}
}

func TestStore_CreateProfile_Duplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.CreateProfile(ctx, "bob@example.com", "Bob", "", prints([]float64{1, 0})); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	_, err := store.CreateProfile(ctx, "BOB@example.com ", "Other Bob", "", prints([]float64{0, 1}))
	if !errors.Is(err, voiceerr.ErrDuplicateEmail) {
		t.Fatalf("CreateProfile() duplicate error = %v, want ErrDuplicateEmail", err)
	}

	// The first profile is untouched.
	got, err := store.FindByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if got.Name != "Bob" {
		t.Errorf("Name = %q, want Bob", got.Name)
	}
}

func TestStore_CreateProfile_ConcurrentDuplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = store.CreateProfile(ctx, "race@example.com", "Racer", "", prints([]float64{float64(i), 1}))
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, voiceerr.ErrDuplicateEmail):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful creates = %d, want 1", ok)
	}
	if dup != workers-1 {
		t.Errorf("duplicate errors = %d, want %d", dup, workers-1)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestStore_FindByEmail_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.FindByEmail(ctx, "nobody@example.com")
	if !errors.Is(err, voiceerr.ErrNotFound) {
		t.Fatalf("FindByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestStore_ExistsByEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	exists, err := store.ExistsByEmail(ctx, "carol@example.com")
	if err != nil {
		t.Fatalf("ExistsByEmail() error = %v", err)
	}
	if exists {
		t.Error("ExistsByEmail() = true before create")
	}

	if _, err := store.CreateProfile(ctx, "carol@example.com", "Carol", "", prints([]float64{1})); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	exists, err = store.ExistsByEmail(ctx, " Carol@Example.com")
	if err != nil {
		t.Fatalf("ExistsByEmail() error = %v", err)
	}
	if !exists {
		t.Error("ExistsByEmail() = false after create")
	}
}

func TestStore_CancelledContext(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	cancel()

	_, err := store.FindByEmail(ctx, "x@example.com")
	if !errors.Is(err, voiceerr.ErrStorage) {
		t.Fatalf("FindByEmail() error = %v, want ErrStorage", err)
	}
	_, err = store.CreateProfile(ctx, "x@example.com", "X", "", prints([]float64{1}))
	if !errors.Is(err, voiceerr.ErrStorage) {
		t.Fatalf("CreateProfile() error = %v, want ErrStorage", err)
	}
}
