// Package httperr summarizes non-2xx HTTP responses without leaking bodies.
package httperr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shpitdev/mailfinder/pkg/pipeline/redact"
)

// errorEnvelope covers the JSON error bodies returned by the services we call.
// Anything else in the body is ignored.
type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// HTTPError is a sanitized summary of a non-2xx API response.
//
// Important: do not include raw response bodies here (can leak PII/tokens).
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	Code       string
	Message    string

	// Snippet is a redacted, truncated hint for non-JSON responses.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "http error"
	}
	parts := []string{
		fmt.Sprintf("api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if e.Code != "" {
		parts = append(parts, "code="+e.Code)
	}
	if e.Message != "" {
		parts = append(parts, "message="+e.Message)
	}
	if e.Snippet != "" {
		parts = append(parts, "body="+e.Snippet)
	}
	return strings.Join(parts, " ")
}

// Transient reports whether the status is worth retrying.
func (e *HTTPError) Transient() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode/100 == 5
}

// New builds an HTTPError for a response that was already read into body.
func New(op string, resp *http.Response, body []byte) *HTTPError {
	h := &HTTPError{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}

	// Best effort: parse a JSON error envelope.
	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		h.Code = redact.Secrets(strings.TrimSpace(env.Code))
		h.Message = redact.Secrets(strings.TrimSpace(firstNonEmpty(env.Message, env.Error)))
		if h.Code != "" || h.Message != "" {
			return h
		}
	}

	// Fallback: include a small, redacted hint only.
	h.Snippet = redactAndTruncate(body)
	return h
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	// Keep this small: response bodies can contain sensitive data.
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := redact.Secrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
