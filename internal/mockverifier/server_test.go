package mockverifier_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/mailfinder/internal/mockverifier"
)

const fixtureYAML = `
key: test-key
default: invalid
codes:
  john.smith@acme.com: ok
  info@catchall.io: catch_all
malformed:
  - broken@acme.com
failing:
  - down@acme.com
`

func TestLoadFixtures(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o644))

	f, err := mockverifier.LoadFixtures(path)
	require.NoError(t, err)
	assert.Equal(t, "test-key", f.Key)
	assert.Equal(t, "ok", f.Codes["john.smith@acme.com"])
	assert.Equal(t, []string{"broken@acme.com"}, f.Malformed)
	assert.Equal(t, []string{"down@acme.com"}, f.Failing)
}

func TestParseFixtures_Invalid(t *testing.T) {
	t.Parallel()

	_, err := mockverifier.ParseFixtures([]byte("codes: [unterminated"))
	require.Error(t, err)
}

func TestServer_Responses(t *testing.T) {
	t.Parallel()

	f, err := mockverifier.ParseFixtures([]byte(fixtureYAML))
	require.NoError(t, err)
	srv := mockverifier.New(f)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	get := func(email, key string) (*http.Response, map[string]any) {
		t.Helper()
		resp, err := http.Get(ts.URL + "/ninja?email=" + email + "&key=" + key)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return resp, body
	}

	resp, body := get("john.smith@acme.com", "test-key")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["code"])
	assert.Equal(t, "acme.com", body["domain"])

	_, body = get("nobody@acme.com", "test-key")
	assert.Equal(t, "invalid", body["code"])

	resp, _ = get("john.smith@acme.com", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = get("broken@acme.com", "test-key")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body, "malformed body must not decode")

	resp, _ = get("down@acme.com", "test-key")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	assert.Equal(t, []string{
		"john.smith@acme.com",
		"nobody@acme.com",
		"john.smith@acme.com",
		"broken@acme.com",
		"down@acme.com",
	}, srv.Emails())
	assert.Equal(t, "wrong", srv.Calls()[2].Key)
}
