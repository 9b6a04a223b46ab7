// Package mockverifier implements a minimal MailTester-like verification API
// for tests and local end-to-end runs.
package mockverifier

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Fixtures scripts the answers of the mock service.
//
// Example (YAML):
//
//	key: test-key
//	default: invalid
//	codes:
//	  john.smith@acme.com: ok
//	  info@catchall.io: catch_all
//	malformed:
//	  - broken@acme.com
//	failing:
//	  - down@acme.com
type Fixtures struct {
	// Key, when set, is required in the "key" query parameter.
	Key string `yaml:"key"`
	// Default is the code for addresses not listed in Codes. Empty means "invalid".
	Default string `yaml:"default"`
	// Codes maps an address to the classification code returned for it.
	Codes map[string]string `yaml:"codes"`
	// Malformed addresses get a 200 response with a non-JSON body.
	Malformed []string `yaml:"malformed"`
	// Failing addresses get a 503 response.
	Failing []string `yaml:"failing"`
}

// ParseFixtures decodes a YAML fixture document.
func ParseFixtures(b []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Fixtures{}, eris.Wrap(err, "mockverifier: parse fixtures")
	}
	return f, nil
}

// LoadFixtures reads a YAML fixture file.
func LoadFixtures(path string) (Fixtures, error) {
	b, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return Fixtures{}, eris.Wrapf(err, "mockverifier: read fixtures %s", path)
	}
	return ParseFixtures(b)
}

// Call records a request made to the mock service.
type Call struct {
	Email string
	Key   string
}

// Server serves GET /ninja?email=&key= from Fixtures.
type Server struct {
	mu        sync.Mutex
	fixtures  Fixtures
	malformed map[string]bool
	failing   map[string]bool
	calls     []Call
}

// New constructs a new mock server.
func New(f Fixtures) *Server {
	s := &Server{}
	s.SetFixtures(f)
	return s
}

// SetFixtures replaces the scripted answers. Recorded calls are kept.
func (s *Server) SetFixtures(f Fixtures) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixtures = f
	s.malformed = toSet(f.Malformed)
	s.failing = toSet(f.Failing)
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ninja", s.handleVerify)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Emails returns the probed addresses in call order.
func (s *Server) Emails() []string {
	calls := s.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Email)
	}
	return out
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	key := r.URL.Query().Get("key")

	s.mu.Lock()
	s.calls = append(s.calls, Call{Email: email, Key: key})
	f := s.fixtures
	malformed := s.malformed[email]
	failing := s.failing[email]
	s.mu.Unlock()

	if f.Key != "" && key != f.Key {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "--", "message": "Invalid key"})
		return
	}
	if email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "--", "message": "Missing email"})
		return
	}
	if failing {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if malformed {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>temporarily unavailable</html>"))
		return
	}

	code, ok := f.Codes[email]
	if !ok {
		code = f.Default
	}
	if code == "" {
		code = "invalid"
	}

	user, domain := email, ""
	if at := strings.LastIndex(email, "@"); at >= 0 {
		user, domain = email[:at], email[at+1:]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"email":       email,
		"user":        user,
		"domain":      domain,
		"mx":          "mx." + domain,
		"code":        code,
		"message":     messageFor(code),
		"connections": 1,
	})
}

func messageFor(code string) string {
	switch strings.ToLower(code) {
	case "ok":
		return "Accepted"
	case "catch_all", "catchall":
		return "Catch-All"
	case "mb":
		return "Mailbox Busy"
	default:
		return "Rejected"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toSet(vals []string) map[string]bool {
	out := make(map[string]bool, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			out[v] = true
		}
	}
	return out
}
