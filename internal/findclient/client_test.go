package findclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/mailfinder/internal/findclient"
	"github.com/shpitdev/mailfinder/internal/finder"
	"github.com/shpitdev/mailfinder/internal/server"
	"github.com/shpitdev/mailfinder/pkg/httperr"
	"github.com/shpitdev/mailfinder/pkg/pipeline/core"
)

func TestDiscover_AgainstServer(t *testing.T) {
	t.Parallel()

	v := finder.VerifierFunc(func(_ context.Context, email string) finder.ProbeResult {
		if email == "john.smith@acme.com" {
			return finder.ProbeResult{Email: email, IsValid: true, StatusCode: "ok", Details: map[string]any{"code": "ok", "mx": "mx.acme.com"}}
		}
		return finder.ProbeResult{Email: email, StatusCode: "invalid", Details: map[string]any{"code": "invalid"}}
	})
	ts := httptest.NewServer(server.New(finder.New(v, finder.Options{ProbeDelay: -1}), nil).Routes())
	defer ts.Close()

	c := findclient.New(ts.URL + "/find_email")
	got, err := c.Discover(context.Background(), finder.Person{FirstName: "John", LastName: "Smith", CompanyWebsite: "acme.com"})
	require.NoError(t, err)
	assert.Equal(t, "john.smith@acme.com", got.EmailFound)
	require.NotNil(t, got.StatusCode)
	assert.Equal(t, "ok", *got.StatusCode)
	assert.Equal(t, "mx.acme.com", got.ValidationResult["mx"])
	assert.Equal(t, 3, got.TotalCreditsUsed)
	assert.Nil(t, got.Error)
}

func TestDiscover_RequestShape(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var p map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, map[string]string{"first_name": "jane", "last_name": "", "company_website": "example.org"}, p)
		_, _ = w.Write([]byte(`{"email_found":"no valid email","status_code":null,"validation_result":null,"total_credits_used":1,"error":"No pattern returned as valid"}`))
	}))
	defer ts.Close()

	got, err := findclient.New(ts.URL).Discover(context.Background(), finder.Person{FirstName: "jane", CompanyWebsite: "example.org"})
	require.NoError(t, err)
	assert.False(t, got.Found())
	assert.Nil(t, got.StatusCode)
	require.NotNil(t, got.Error)
	assert.Equal(t, finder.NoCandidatesError, *got.Error)
}

func TestDiscover_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		body          string
		wantTransient bool
		wantStatus    int
	}{
		{name: "client error", status: http.StatusBadRequest, body: `{"error":"Missing required parameters"}`, wantStatus: 400},
		{name: "server error", status: http.StatusBadGateway, body: `upstream down`, wantTransient: true, wantStatus: 502},
		{name: "throttled", status: http.StatusTooManyRequests, wantTransient: true, wantStatus: 429},
		{name: "undecodable", status: http.StatusOK, body: `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			_, err := findclient.New(ts.URL).Discover(context.Background(), finder.Person{FirstName: "a", CompanyWebsite: "b.com"})
			require.Error(t, err)

			var te *core.TransientError
			assert.Equal(t, tt.wantTransient, errors.As(err, &te))

			var he *httperr.HTTPError
			if tt.wantStatus != 0 {
				require.True(t, errors.As(err, &he))
				assert.Equal(t, tt.wantStatus, he.StatusCode)
			} else {
				assert.False(t, errors.As(err, &he))
			}
		})
	}
}

func TestDiscover_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	start := time.Now()
	_, err := findclient.New(ts.URL, findclient.WithTimeout(30*time.Millisecond)).
		Discover(context.Background(), finder.Person{FirstName: "a", CompanyWebsite: "b.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}
