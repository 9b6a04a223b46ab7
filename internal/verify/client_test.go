package verify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/mailfinder/internal/finder"
	"github.com/shpitdev/mailfinder/internal/mockverifier"
	"github.com/shpitdev/mailfinder/internal/verify"
)

func newMock(t *testing.T, f mockverifier.Fixtures) (*mockverifier.Server, *verify.Client) {
	t.Helper()
	srv := mockverifier.New(f)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, verify.NewClient("test-key", verify.WithBaseURL(ts.URL+"/ninja"))
}

func TestVerify_Classified(t *testing.T) {
	t.Parallel()

	srv, client := newMock(t, mockverifier.Fixtures{
		Key: "test-key",
		Codes: map[string]string{
			"john@acme.com":  "OK",
			"info@acme.com":  "catch_all",
			"sales@acme.com": "catchall",
			"nope@acme.com":  "ko",
		},
	})

	tests := []struct {
		email     string
		wantCode  string
		wantValid bool
	}{
		{email: "john@acme.com", wantCode: "ok", wantValid: true},
		{email: "info@acme.com", wantCode: "catch_all", wantValid: true},
		{email: "sales@acme.com", wantCode: "catchall", wantValid: true},
		{email: "nope@acme.com", wantCode: "ko", wantValid: false},
		{email: "unknown@acme.com", wantCode: "invalid", wantValid: false},
	}
	for _, tt := range tests {
		got := client.Verify(context.Background(), tt.email)
		assert.Equal(t, tt.email, got.Email)
		assert.Equal(t, tt.wantCode, got.StatusCode, tt.email)
		assert.Equal(t, tt.wantValid, got.IsValid, tt.email)
		assert.Empty(t, got.Error)
		require.NotNil(t, got.Details)
		assert.Equal(t, tt.email, got.Details["email"])
	}

	calls := srv.Calls()
	require.Len(t, calls, len(tests), "exactly one call per verification")
	for _, c := range calls {
		assert.Equal(t, "test-key", c.Key)
	}
}

func TestVerify_NonSuccessStatusIsRequestError(t *testing.T) {
	t.Parallel()

	_, client := newMock(t, mockverifier.Fixtures{Failing: []string{"down@acme.com"}})

	got := client.Verify(context.Background(), "down@acme.com")
	assert.False(t, got.IsValid)
	assert.Equal(t, finder.StatusRequestError, got.StatusCode)
	assert.Nil(t, got.Details)
	assert.Contains(t, got.Error, "503")
}

func TestVerify_BadKeyIsRequestError(t *testing.T) {
	t.Parallel()

	srv := mockverifier.New(mockverifier.Fixtures{Key: "right"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := verify.NewClient("wrong-key", verify.WithBaseURL(ts.URL+"/ninja"))
	got := client.Verify(context.Background(), "john@acme.com")
	assert.Equal(t, finder.StatusRequestError, got.StatusCode)
	assert.Contains(t, got.Error, "Invalid key")
	assert.NotContains(t, got.Error, "wrong-key")
}

func TestVerify_MalformedBodyIsJSONError(t *testing.T) {
	t.Parallel()

	_, client := newMock(t, mockverifier.Fixtures{Malformed: []string{"broken@acme.com"}})

	got := client.Verify(context.Background(), "broken@acme.com")
	assert.False(t, got.IsValid)
	assert.Equal(t, finder.StatusJSONError, got.StatusCode)
	assert.Nil(t, got.Details)
	assert.Contains(t, got.Error, "decode response")
}

func TestVerify_PayloadShapeErrors(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"missing code": `{"email":"x@acme.com"}`,
		"numeric code": `{"code":1}`,
		"array":        `["ok"]`,
		"null":         `null`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			defer ts.Close()

			got := verify.NewClient("k", verify.WithBaseURL(ts.URL)).Verify(context.Background(), "x@acme.com")
			assert.Equal(t, finder.StatusJSONError, got.StatusCode)
			assert.False(t, got.IsValid)
			assert.NotEmpty(t, got.Error)
		})
	}
}

func TestVerify_TimeoutIsRequestErrorWithoutSecret(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	client := verify.NewClient("sub_secret", verify.WithBaseURL(ts.URL), verify.WithTimeout(50*time.Millisecond))
	start := time.Now()
	got := client.Verify(context.Background(), "slow@acme.com")

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, finder.StatusRequestError, got.StatusCode)
	assert.NotContains(t, got.Error, "sub_secret")
	assert.Contains(t, got.Error, "key=<redacted>")
}

func TestVerify_NoRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	got := verify.NewClient("k", verify.WithBaseURL(ts.URL)).Verify(context.Background(), "x@acme.com")
	assert.Equal(t, finder.StatusRequestError, got.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestVerify_RequestShape(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/ninja", r.URL.Path)
		assert.Equal(t, "j+s@acme.com", r.URL.Query().Get("email"))
		assert.Equal(t, "abc", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"code":"ok"}`))
	}))
	defer ts.Close()

	got := verify.NewClient(" abc ", verify.WithBaseURL(ts.URL+"/ninja")).Verify(context.Background(), "j+s@acme.com")
	assert.True(t, got.IsValid)
}
