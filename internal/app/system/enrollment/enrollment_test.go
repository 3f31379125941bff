package enrollment

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	profilestore "github.com/dalemusser/voxsecure/internal/app/store/profiles"
	"github.com/dalemusser/voxsecure/internal/app/system/normalize"
	"github.com/dalemusser/voxsecure/internal/app/system/pipeline"
	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
	"github.com/dalemusser/voxsecure/internal/domain/models"
	"github.com/dalemusser/voxsecure/internal/testutil"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// memProfiles enforces email uniqueness like the real unique index.
type memProfiles struct {
	mu        sync.Mutex
	byEmail   map[string]models.UserProfile
	existsErr error
	createErr error
	creates   int
	lookups   int
}

func newMemProfiles() *memProfiles {
	return &memProfiles{byEmail: map[string]models.UserProfile{}}
}

func (m *memProfiles) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *memProfiles) CreateProfile(ctx context.Context, email, name, mobile string, vps []models.Voiceprint, opts ...profilestore.CreateOption) (models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return models.UserProfile{}, m.createErr
	}
	if _, ok := m.byEmail[email]; ok {
		return models.UserProfile{}, voiceerr.ErrDuplicateEmail
	}
	p := models.UserProfile{ID: primitive.NewObjectID(), Email: email, Name: name, Mobile: normalize.Mobile(mobile), Voiceprints: vps, Dimension: len(vps[0])}
	for _, o := range opts {
		o(&p)
	}
	m.byEmail[email] = p
	return p, nil
}

type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	failAt  int // fail the Nth put (1-based) when putErr is set
	puts    int
	deletes []string
}

func newMemArchive() *memArchive { return &memArchive{objects: map[string][]byte{}} }

func (a *memArchive) Put(ctx context.Context, key string, r io.Reader, opts *storage.PutOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.puts++
	if a.putErr != nil && a.puts >= a.failAt {
		return a.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	a.objects[key] = data
	return nil
}

func (a *memArchive) Delete(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deletes = append(a.deletes, key)
	delete(a.objects, key)
	return nil
}

type fixture struct {
	profiles   *memProfiles
	transcoder *testutil.FakeTranscoder
	embedder   *testutil.FakeEmbedder
	archive    *memArchive
	tmp        string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		profiles:   newMemProfiles(),
		transcoder: &testutil.FakeTranscoder{},
		embedder: &testutil.FakeEmbedder{Vectors: map[string][]float64{
			"rec-0": {1, 0, 0},
			"rec-1": {0, 1, 0},
			"rec-2": {0, 0, 1},
		}, Default: []float64{1, 1, 1}},
		archive: newMemArchive(),
		tmp:     t.TempDir(),
	}
}

func (f *fixture) service(withArchive bool) *Service {
	p := pipeline.New(f.transcoder, f.embedder, pipeline.Config{TempDir: f.tmp}, zap.NewNop())
	var a Archive
	if withArchive {
		a = f.archive
	}
	return New(f.profiles, p, a, Config{Concurrency: 2}, zap.NewNop())
}

func recordings(n int) []pipeline.Recording {
	out := make([]pipeline.Recording, n)
	for i := range out {
		out[i] = pipeline.Recording{Data: []byte("rec-" + string(rune('0'+i))), Format: "webm"}
	}
	return out
}

func validInput(n int) Input {
	return Input{
		Email:      "  New.User@Example.com ",
		Name:       " <b>New</b>   User ",
		Mobile:     "+1 555 010 2000",
		Recordings: recordings(n),
	}
}

func TestEnroll_Success(t *testing.T) {
	f := newFixture(t)
	svc := f.service(true)

	p, err := svc.Enroll(context.Background(), validInput(3))
	require.NoError(t, err)

	assert.Equal(t, "new.user@example.com", p.Email)
	assert.Equal(t, "New User", p.Name)
	assert.Equal(t, "+15550102000", p.Mobile)
	assert.Equal(t, "fake", p.Embedder)
	require.Len(t, p.Voiceprints, 3)
	// Order follows the recordings regardless of completion order.
	assert.Equal(t, models.Voiceprint{1, 0, 0}, p.Voiceprints[0])
	assert.Equal(t, models.Voiceprint{0, 1, 0}, p.Voiceprints[1])
	assert.Equal(t, models.Voiceprint{0, 0, 1}, p.Voiceprints[2])

	require.Len(t, p.Recordings, 3)
	for i, key := range p.Recordings {
		assert.Equal(t, []byte("rec-"+string(rune('0'+i))), f.archive.objects[key])
		assert.Contains(t, key, "enrollments/")
	}
	assert.Equal(t, 3, f.embedder.Calls())

	entries, err := os.ReadDir(f.tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEnroll_NoRecordingsTouchesNothing(t *testing.T) {
	f := newFixture(t)
	svc := f.service(true)

	in := validInput(0)
	_, err := svc.Enroll(context.Background(), in)
	require.ErrorIs(t, err, voiceerr.ErrNoRecordings)

	assert.Zero(t, f.profiles.lookups)
	assert.Zero(t, f.profiles.creates)
	assert.Zero(t, f.transcoder.Calls())
	assert.Zero(t, f.embedder.Calls())
	assert.Zero(t, f.archive.puts)
}

func TestEnroll_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Input)
		wantField string
	}{
		{"missing email", func(in *Input) { in.Email = "" }, "email"},
		{"bad email", func(in *Input) { in.Email = "not-an-email" }, "email"},
		{"missing name", func(in *Input) { in.Name = "  " }, "name"},
		{"markup-only name", func(in *Input) { in.Name = "<script>x</script>" }, "name"},
		{"bad mobile", func(in *Input) { in.Mobile = "12" }, "mobile"},
		{"too many recordings", func(in *Input) { in.Recordings = recordings(11) }, "recordings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput(2)
			tt.mutate(&in)

			_, err := f.service(true).Enroll(context.Background(), in)
			require.ErrorIs(t, err, ErrInvalidInput)
			var ie *InputError
			require.True(t, errors.As(err, &ie))
			assert.Contains(t, ie.Fields(), tt.wantField)
			assert.True(t, IsClientError(err))

			assert.Zero(t, f.profiles.creates)
			assert.Zero(t, f.embedder.Calls())
		})
	}
}

func TestEnroll_UnsupportedFormatBeforeExtraction(t *testing.T) {
	f := newFixture(t)
	in := validInput(2)
	in.Recordings[1].Format = "exe"

	_, err := f.service(true).Enroll(context.Background(), in)
	require.ErrorIs(t, err, voiceerr.ErrUnsupportedFormat)
	assert.Zero(t, f.transcoder.Calls())
	assert.Zero(t, f.profiles.creates)
}

func TestEnroll_Duplicate(t *testing.T) {
	f := newFixture(t)
	svc := f.service(true)

	_, err := svc.Enroll(context.Background(), validInput(1))
	require.NoError(t, err)
	calls := f.embedder.Calls()

	_, err = svc.Enroll(context.Background(), validInput(1))
	require.ErrorIs(t, err, voiceerr.ErrDuplicateEmail)
	assert.Equal(t, calls, f.embedder.Calls(), "duplicate pre-check should skip extraction")
}

func TestEnroll_ConcurrentDuplicate(t *testing.T) {
	f := newFixture(t)
	svc := f.service(true)

	const n = 6
	errs := make([]error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Enroll(context.Background(), validInput(2))
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
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
	// Losers that got past the pre-check remove their archived audio.
	f.archive.mu.Lock()
	assert.Len(t, f.archive.objects, 2)
	f.archive.mu.Unlock()
}

func TestEnroll_ExtractionFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(*fixture)
		want  error
	}{
		{"codec", func(f *fixture) { f.transcoder.Err = boom }, voiceerr.ErrCodecFailure},
		{"embedding", func(f *fixture) { f.embedder.Err = boom }, voiceerr.ErrEmbeddingFailure},
		{"dimension", func(f *fixture) { f.embedder.Vectors["rec-1"] = []float64{1, 2} }, voiceerr.ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			_, err := f.service(true).Enroll(context.Background(), validInput(3))
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, f.profiles.creates, "no profile write after a failed extraction")
			assert.Zero(t, f.archive.puts, "no archive write after a failed extraction")

			entries, err := os.ReadDir(f.tmp)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestEnroll_CollaboratorPanicBecomesError(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fixture)
	}{
		{"transcoder", func(f *fixture) { f.transcoder.Panic = true }},
		{"embedder", func(f *fixture) { f.embedder.Panic = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			var err error
			require.NotPanics(t, func() {
				_, err = f.service(true).Enroll(context.Background(), validInput(3))
			})
			require.ErrorIs(t, err, voiceerr.ErrEmbeddingFailure)
			assert.Contains(t, err.Error(), "panicked")
			assert.False(t, IsClientError(err))
			assert.Zero(t, f.profiles.creates)
			assert.Zero(t, f.archive.puts)

			entries, err := os.ReadDir(f.tmp)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestEnroll_ArchiveFailureCleansUp(t *testing.T) {
	f := newFixture(t)
	f.archive.putErr = errors.New("bucket gone")
	f.archive.failAt = 2

	_, err := f.service(true).Enroll(context.Background(), validInput(3))
	require.ErrorIs(t, err, voiceerr.ErrStorage)
	assert.False(t, IsClientError(err))
	assert.Zero(t, f.profiles.creates)
	assert.Len(t, f.archive.deletes, 1)
	assert.Empty(t, f.archive.objects)
}

func TestEnroll_CreateFailureDiscardsArchive(t *testing.T) {
	f := newFixture(t)
	f.profiles.createErr = voiceerr.Wrap(voiceerr.ErrStorage, errors.New("write concern"))

	_, err := f.service(true).Enroll(context.Background(), validInput(2))
	require.ErrorIs(t, err, voiceerr.ErrStorage)
	assert.Len(t, f.archive.deletes, 2)
	assert.Empty(t, f.archive.objects)
}

func TestEnroll_LookupFailure(t *testing.T) {
	f := newFixture(t)
	f.profiles.existsErr = voiceerr.Wrap(voiceerr.ErrStorage, errors.New("timeout"))

	_, err := f.service(false).Enroll(context.Background(), validInput(1))
	require.ErrorIs(t, err, voiceerr.ErrStorage)
	assert.Zero(t, f.embedder.Calls())
}

func TestEnroll_WithoutArchive(t *testing.T) {
	f := newFixture(t)

	p, err := f.service(false).Enroll(context.Background(), validInput(2))
	require.NoError(t, err)
	assert.Empty(t, p.Recordings)
	assert.Zero(t, f.archive.puts)
}

func TestEnroll_LocalStorageArchive(t *testing.T) {
	f := newFixture(t)
	local, err := storage.NewLocal(storage.LocalConfig{BasePath: t.TempDir(), BaseURL: "/recordings"})
	require.NoError(t, err)

	p := pipeline.New(f.transcoder, f.embedder, pipeline.Config{TempDir: f.tmp}, zap.NewNop())
	svc := New(f.profiles, p, local, Config{}, zap.NewNop())

	prof, err := svc.Enroll(context.Background(), validInput(2))
	require.NoError(t, err)
	require.Len(t, prof.Recordings, 2)

	rc, err := local.Get(context.Background(), prof.Recordings[1])
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("rec-1"), data))
}

func TestEnroll_AgainstMongo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := newFixture(t)
	p := pipeline.New(f.transcoder, f.embedder, pipeline.Config{TempDir: f.tmp}, zap.NewNop())
	store := profilestore.New(db)
	svc := New(store, p, nil, Config{}, zap.NewNop())

	ctx, cancel := testutil.TestContext()
	defer cancel()

	const n = 4
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Enroll(ctx, validInput(2))
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, voiceerr.ErrDuplicateEmail)
	}
	assert.Equal(t, 1, ok)

	got, err := store.FindByEmail(ctx, "new.user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, got.VoiceprintCount())
}
