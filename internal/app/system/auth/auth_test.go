package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestNewSessionManager(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		sessionKey string
		secure     bool
		wantErr    bool
	}{
		{
			name:       "valid key dev mode",
			sessionKey: "this-is-a-32-character-long-key!",
			secure:     false,
			wantErr:    false,
		},
		{
			name:       "valid key prod mode",
			sessionKey: "this-is-a-32-character-long-key!",
			secure:     true,
			wantErr:    false,
		},
		{
			name:       "empty key",
			sessionKey: "",
			secure:     false,
			wantErr:    true,
		},
		{
			name:       "weak key dev mode",
			sessionKey: "short",
			secure:     false,
			wantErr:    false, // Warning but allowed in dev
		},
		{
			name:       "weak key prod mode",
			sessionKey: "short",
			secure:     true,
			wantErr:    true, // Error in prod
		},
		{
			name:       "default key prod mode",
			sessionKey: "dev-only-session-key-not-for-production",
			secure:     true,
			wantErr:    true, // Default keys not allowed in prod
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := NewSessionManager(tt.sessionKey, "test-session", "", time.Hour, tt.secure, logger)

			if tt.wantErr {
				if err == nil {
					t.Error("NewSessionManager() expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("NewSessionManager() error = %v", err)
				}
				if sm == nil {
					t.Error("NewSessionManager() returned nil")
				}
			}
		})
	}
}

func TestSessionManager_SessionName(t *testing.T) {
	logger := zap.NewNop()

	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, logger)
	if sm.SessionName() != DefaultSessionName {
		t.Errorf("SessionName() = %q, want %q", sm.SessionName(), DefaultSessionName)
	}

	sm2, _ := NewSessionManager(testKey, "custom-session", "", time.Hour, false, logger)
	if sm2.SessionName() != "custom-session" {
		t.Errorf("SessionName() = %q, want %q", sm2.SessionName(), "custom-session")
	}
}

const testKey = "this-is-a-32-character-long-key!"

func TestCurrentUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	user, ok := CurrentUser(req)
	if ok {
		t.Error("CurrentUser() should return false for request without user")
	}
	if user != nil {
		t.Error("CurrentUser() should return nil for request without user")
	}

	testUser := &SessionUser{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "Test User",
		Email: "test@example.com",
	}
	user, ok = CurrentUser(WithTestUser(req, testUser))
	if !ok {
		t.Error("CurrentUser() should return true for request with user")
	}
	if user != testUser {
		t.Errorf("CurrentUser() = %+v, want %+v", user, testUser)
	}
}

func TestSessionUser_ProfileID(t *testing.T) {
	oid := primitive.NewObjectID()
	u := &SessionUser{ID: oid.Hex()}
	if got := u.ProfileID(); got != oid {
		t.Errorf("ProfileID() = %v, want %v", got, oid)
	}

	bad := &SessionUser{ID: "not-an-object-id"}
	if got := bad.ProfileID(); got != primitive.NilObjectID {
		t.Errorf("ProfileID() invalid = %v, want NilObjectID", got)
	}
}

func TestRequireSignedIn(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())
	protected := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("no session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest("GET", "/me", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
		if !strings.Contains(rec.Body.String(), `"success":false`) {
			t.Errorf("Body = %q, want JSON failure envelope", rec.Body.String())
		}
	})

	t.Run("signed in", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := WithTestUser(httptest.NewRequest("GET", "/me", nil), &SessionUser{ID: primitive.NewObjectID().Hex()})
		protected.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
		}
	})
}

// fetcherFunc adapts a function to UserFetcher.
type fetcherFunc func(ctx context.Context, id string) *SessionUser

func (f fetcherFunc) FetchUser(ctx context.Context, id string) *SessionUser { return f(ctx, id) }

// login runs CreateSession and returns the issued cookies.
func login(t *testing.T, sm *SessionManager, id primitive.ObjectID) []*http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	token, err := sm.CreateSession(rec, httptest.NewRequest("POST", "/login", nil), id, "ada@example.com", "Ada")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if token == "" {
		t.Fatal("CreateSession() returned empty token")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("CreateSession() set no cookie")
	}
	return cookies
}

func TestSession_RoundTrip(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())
	id := primitive.NewObjectID()
	cookies := login(t, sm, id)

	var got *SessionUser
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CurrentUser(r)
	}))

	req := httptest.NewRequest("GET", "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("LoadSessionUser() did not inject user")
	}
	if got.ID != id.Hex() || got.Email != "ada@example.com" || got.Name != "Ada" {
		t.Errorf("user = %+v", got)
	}
	if got.Token == "" {
		t.Error("user token is empty")
	}
	if got.VerifiedAt.IsZero() || time.Since(got.VerifiedAt) > time.Minute {
		t.Errorf("VerifiedAt = %v", got.VerifiedAt)
	}
}

func TestSession_FetcherInvalidates(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())
	var asked string
	sm.SetUserFetcher(fetcherFunc(func(ctx context.Context, id string) *SessionUser {
		asked = id
		return nil
	}))
	id := primitive.NewObjectID()
	cookies := login(t, sm, id)

	var found bool
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = CurrentUser(r)
	}))
	req := httptest.NewRequest("GET", "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)

	if asked != id.Hex() {
		t.Errorf("FetchUser() id = %q, want %q", asked, id.Hex())
	}
	if found {
		t.Error("user should not be injected when the profile is gone")
	}
}

func TestSession_TamperedCookieIgnored(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())
	other, _ := NewSessionManager("another-32-character-signing-key!", "", "", time.Hour, false, zap.NewNop())
	cookies := login(t, other, primitive.NewObjectID())

	var found bool
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = CurrentUser(r)
	}))
	req := httptest.NewRequest("GET", "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	if found {
		t.Error("cookie signed with another key must not authenticate")
	}
}

func TestDestroySession(t *testing.T) {
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, zap.NewNop())
	cookies := login(t, sm, primitive.NewObjectID())

	req := httptest.NewRequest("POST", "/logout", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	sm.DestroySession(rec, req)

	var expired bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == sm.SessionName() && c.MaxAge < 0 {
			expired = true
		}
	}
	if !expired {
		t.Error("DestroySession() should expire the cookie")
	}
}

func TestGenerateSessionToken(t *testing.T) {
	a, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("GenerateSessionToken() error = %v", err)
	}
	b, _ := GenerateSessionToken()
	if a == b {
		t.Error("GenerateSessionToken() returned the same token twice")
	}
}

func TestIsDefaultKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"dev-only-key", true},
		{"change-me-please", true},
		{"placeholder-key", true},
		{"default-session-key", true},
		{"example-key-here", true},
		{"insecure-dev-key", true},
		{"test-key-123", true},
		{"secret123", true},
		{"password123", true},
		{"xK8nP2mQ9rT5vW7yB3cF6hJ0lN4sU1wZ", false}, // Random looking
		{"secure-random-key-that-is-long-enough", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := isDefaultKey(tt.key)
			if got != tt.want {
				t.Errorf("isDefaultKey(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestClassifySessionError(t *testing.T) {
	// Test nil error
	errType, _ := classifySessionError(nil)
	if errType != sessionErrUnknown {
		t.Errorf("classifySessionError(nil) type = %v, want %v", errType, sessionErrUnknown)
	}
}

func TestSessionManager_Store(t *testing.T) {
	logger := zap.NewNop()
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, logger)

	store := sm.Store()
	if store == nil {
		t.Error("Store() returned nil")
	}
}

func TestSessionManager_GetSession(t *testing.T) {
	logger := zap.NewNop()
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, logger)

	req := httptest.NewRequest("GET", "/", nil)
	sess, err := sm.GetSession(req)
	if err != nil {
		t.Errorf("GetSession() error = %v", err)
	}
	if sess == nil {
		t.Error("GetSession() returned nil session")
	}
}

func TestSessionConfigError(t *testing.T) {
	err := &SessionConfigError{Message: "test error"}
	if err.Error() != "test error" {
		t.Errorf("SessionConfigError.Error() = %q, want %q", err.Error(), "test error")
	}
}

func TestSessionUser_SessionToken(t *testing.T) {
	user := &SessionUser{
		ID:    primitive.NewObjectID().Hex(),
		Token: "test-token-123",
	}
	if user.SessionToken() != "test-token-123" {
		t.Errorf("SessionToken() = %q, want %q", user.SessionToken(), "test-token-123")
	}
}

func TestClassifySessionError_Types(t *testing.T) {
	// Test with various error message patterns
	tests := []struct {
		name     string
		errMsg   string
		wantType sessionErrorType
	}{
		{"expired", "expired timestamp", sessionErrExpired},
		{"mac invalid", "mac validation failed", sessionErrTampered},
		{"hash invalid", "hash mismatch", sessionErrTampered},
		{"decrypt failed", "decrypt error", sessionErrCorrupted},
		{"base64 error", "base64 decode failed", sessionErrCorrupted},
		{"decode error", "decode failed", sessionErrCorrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create a mock securecookie decode error
			err := mockSecureCookieError{msg: tt.errMsg, isDecode: true}
			errType, _ := classifySessionError(err)
			if errType != tt.wantType {
				t.Errorf("classifySessionError() type = %v, want %v", errType, tt.wantType)
			}
		})
	}
}

func TestClassifySessionError_Backend(t *testing.T) {
	// Non-decode error should be backend
	err := mockSecureCookieError{msg: "backend error", isDecode: false}
	errType, category := classifySessionError(err)
	if errType != sessionErrBackend {
		t.Errorf("classifySessionError() type = %v, want %v", errType, sessionErrBackend)
	}
	if category != "backend" {
		t.Errorf("classifySessionError() category = %q, want %q", category, "backend")
	}
}

// mockSecureCookieError implements securecookie.Error for testing
type mockSecureCookieError struct {
	msg      string
	isDecode bool
}

func (e mockSecureCookieError) Error() string {
	return e.msg
}

func (e mockSecureCookieError) IsDecode() bool {
	return e.isDecode
}

func (e mockSecureCookieError) IsUsage() bool {
	return false
}

func (e mockSecureCookieError) IsInternal() bool {
	return false
}

func (e mockSecureCookieError) Cause() error {
	return nil
}

func TestGetString(t *testing.T) {
	logger := zap.NewNop()
	sm, _ := NewSessionManager(testKey, "", "", time.Hour, false, logger)

	req := httptest.NewRequest("GET", "/", nil)
	sess, _ := sm.GetSession(req)

	// Test with no value
	if got := getString(sess, "nonexistent"); got != "" {
		t.Errorf("getString() nonexistent = %q, want empty", got)
	}

	// Test with string value
	sess.Values["test_key"] = "test_value"
	if got := getString(sess, "test_key"); got != "test_value" {
		t.Errorf("getString() = %q, want %q", got, "test_value")
	}

	// Test with non-string value
	sess.Values["int_key"] = 123
	if got := getString(sess, "int_key"); got != "" {
		t.Errorf("getString() int = %q, want empty", got)
	}
}
