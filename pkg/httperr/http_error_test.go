package httperr_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/shpitdev/mailfinder/pkg/httperr"
)

func TestNew_JSONEnvelope(t *testing.T) {
	resp := &http.Response{StatusCode: 401, Status: "401 Unauthorized"}
	err := httperr.New("verify", resp, []byte(`{"code":"--","message":"Invalid key"}`))

	if err.StatusCode != 401 || err.Code != "--" || err.Message != "Invalid key" || err.Snippet != "" {
		t.Fatalf("unexpected error: %#v", err)
	}
	if !strings.Contains(err.Error(), "op=verify status=401 Unauthorized") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if err.Transient() {
		t.Fatalf("401 must not be transient")
	}
}

func TestNew_PlainBodyIsTruncatedAndRedacted(t *testing.T) {
	resp := &http.Response{StatusCode: 502, Status: "502 Bad Gateway"}
	body := "upstream said key=abc123\n" + strings.Repeat("x", 400)
	err := httperr.New("find_email", resp, []byte(body))

	if strings.Contains(err.Snippet, "abc123") {
		t.Fatalf("snippet leaked secret: %q", err.Snippet)
	}
	if !strings.HasSuffix(err.Snippet, "...") {
		t.Fatalf("expected truncated snippet, got %q", err.Snippet)
	}
	if strings.Contains(err.Snippet, "\n") {
		t.Fatalf("snippet must be single-line: %q", err.Snippet)
	}
	if !err.Transient() {
		t.Fatalf("502 must be transient")
	}
}

func TestNew_TooManyRequestsIsTransient(t *testing.T) {
	err := httperr.New("verify", &http.Response{StatusCode: 429, Status: "429 Too Many Requests"}, nil)
	if !err.Transient() {
		t.Fatalf("429 must be transient")
	}
	if err.Snippet != "" {
		t.Fatalf("empty body must not produce a snippet: %q", err.Snippet)
	}
}
