package githubrelease

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFromEnv(t *testing.T) {
	t.Setenv(envGitHubToken, "")
	t.Setenv(envGHToken, "")
	assert.Equal(t, "", TokenFromEnv())

	t.Setenv(envGHToken, "gh-token")
	assert.Equal(t, "gh-token", TokenFromEnv())

	t.Setenv(envGitHubToken, "gh-primary")
	assert.Equal(t, "gh-primary", TokenFromEnv())
}

func TestIsGitHubHost(t *testing.T) {
	cases := map[string]bool{
		"github.com":                    true,
		"api.github.com":                true,
		"GitHub.com":                    true,
		"objects.githubusercontent.com": true,
		"example.com":                   false,
		"nothub.com":                    false,
	}
	for host, want := range cases {
		assert.Equal(t, want, isGitHubHost(host), host)
	}
}

func TestTokenTransport_AttachesBearerOnlyToGitHubHosts(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tt := &tokenTransport{token: "secret-token", base: http.DefaultTransport}
	client := &http.Client{Transport: tt}

	// The test server is not a GitHub host, so no Authorization header
	// should be attached.
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "", gotAuth)

	// A GitHub-host request gets the Bearer header; rewriteHostTransport
	// (release_test.go) then redirects it to the test server so the header
	// can be observed.
	ghClient := &http.Client{Transport: &tokenTransport{
		token: tt.token,
		base:  rewriteHostTransport{base: http.DefaultTransport, host: srv.Listener.Addr().String()},
	}}
	githubReq, err := http.NewRequest(http.MethodGet, "https://api.github.com/repos/o/r", nil)
	require.NoError(t, err)
	_, err = ghClient.Do(githubReq)
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+tt.token, gotAuth)
}

func TestSelectAsset(t *testing.T) {
	assets := []Asset{
		{Name: "rubocop-1.60.0-x86_64-linux.tar.gz"},
		{Name: "rubocop-1.60.0-aarch64-linux.tar.gz"},
		{Name: "rubocop-1.60.0-x86_64-apple-darwin.zip"},
		{Name: "rubocop-1.60.0-x86_64-linux.tar.gz.sha256"},
		{Name: "rubocop-1.60.0-i686-linux.tar.gz"},
	}

	got, ok := SelectAsset(assets, "linux", "amd64")
	require.True(t, ok)
	assert.Equal(t, "rubocop-1.60.0-x86_64-linux.tar.gz", got.Name)

	got, ok = SelectAsset(assets, "darwin", "amd64")
	require.True(t, ok)
	assert.Equal(t, "rubocop-1.60.0-x86_64-apple-darwin.zip", got.Name)

	_, ok = SelectAsset(assets, "windows", "amd64")
	assert.False(t, ok)
}

func TestSelectAsset_PrefersArchiveExtension(t *testing.T) {
	assets := []Asset{
		{Name: "tool-linux-amd64"},
		{Name: "tool-linux-amd64.tar.gz"},
	}
	got, ok := SelectAsset(assets, "linux", "amd64")
	require.True(t, ok)
	assert.Equal(t, "tool-linux-amd64.tar.gz", got.Name)
}
