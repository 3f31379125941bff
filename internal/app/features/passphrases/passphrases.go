// Package passphrases serves the phrases clients prompt users to speak.
//
// Login prompts are drawn from a single list. Enrollment uses three phrases
// per language, one per recording.
package passphrases

import (
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/dalemusser/voxsecure/internal/app/system/apicors"
	"github.com/dalemusser/voxsecure/internal/app/system/jsonutil"
	"github.com/dalemusser/voxsecure/internal/app/system/normalize"
	"github.com/go-chi/chi/v5"
)

// DefaultLanguage is used when the request names none.
const DefaultLanguage = "english"

var loginPhrases = []string{
	"Voice Unlock Access",
	"Trust the Sound",
	"Speak to Sign In",
	"Authenticate Me",
	"Vocal Identity Check",
	"Let Me In",
	"Verify My Voice",
	"Sound is Key",
	"Secure Entry Now",
	"Log Me In Securely",
}

var enrollmentPhrases = map[string][]string{
	"english": {
		"Voice is the key",
		"Unlock with your voice",
		"Secure voice identity",
	},
	"marathi": {
		"आवाज म्हणजेच ओळख",
		"तुमच्या आवाजाने उघडा",
		"सुरक्षित आवाज ओळख",
	},
	"hindi": {
		"आवाज है चाबी",
		"अपनी आवाज से खोलो",
		"सुरक्षित आवाज पहचान",
	},
}

// Login returns a copy of the login phrase list.
func Login() []string {
	return append([]string(nil), loginPhrases...)
}

// Enrollment returns the enrollment phrases for language, or false if the
// language is unknown.
func Enrollment(language string) ([]string, bool) {
	p, ok := enrollmentPhrases[strings.ToLower(language)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), p...), true
}

// Random picks one login phrase.
func Random() string {
	return loginPhrases[rand.IntN(len(loginPhrases))]
}

// Response lists phrases for one purpose.
type Response struct {
	Kind      string   `json:"kind"`
	Language  string   `json:"language,omitempty"`
	Phrases   []string `json:"phrases"`
	Suggested string   `json:"suggested,omitempty"`
}

// Routes returns a router serving GET /?kind=login|enrollment&language=...
// No authentication is required.
func Routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(apicors.MiddlewareWithOrigins(allowedOrigins...))
	r.Get("/", serve)
	return r
}

func serve(w http.ResponseWriter, r *http.Request) {
	kind := strings.ToLower(normalize.QueryParam(r.URL.Query().Get("kind")))
	switch kind {
	case "", "login":
		jsonutil.OK(w, Response{Kind: "login", Phrases: Login(), Suggested: Random()})
	case "enrollment":
		lang := strings.ToLower(normalize.QueryParam(r.URL.Query().Get("language")))
		if lang == "" {
			lang = DefaultLanguage
		}
		p, ok := Enrollment(lang)
		if !ok {
			jsonutil.BadRequest(w, "Unsupported language")
			return
		}
		jsonutil.OK(w, Response{Kind: "enrollment", Language: lang, Phrases: p})
	default:
		jsonutil.BadRequest(w, "kind must be login or enrollment")
	}
}
