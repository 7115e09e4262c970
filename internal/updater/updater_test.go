package updater

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSemver(t *testing.T) {
	tests := []struct {
		in      string
		want    Semver
		wantErr bool
	}{
		{in: "1.2.3", want: Semver{1, 2, 3}},
		{in: "v2.0.1", want: Semver{2, 0, 1}},
		{in: "1.4", want: Semver{1, 4, 0}},
		{in: "3", want: Semver{3, 0, 0}},
		{in: "dev", wantErr: true},
		{in: "", wantErr: true},
		{in: "1.2.3.4", wantErr: true},
		{in: "1.x.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSemver(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLessThan(t *testing.T) {
	assert.True(t, Semver{1, 2, 3}.LessThan(Semver{1, 2, 4}))
	assert.True(t, Semver{1, 9, 9}.LessThan(Semver{2, 0, 0}))
	assert.False(t, Semver{1, 2, 0}.LessThan(Semver{1, 2, 0}))
	assert.False(t, Semver{1, 10, 0}.LessThan(Semver{1, 9, 0}))
	assert.Equal(t, "1.2.0", Semver{1, 2, 0}.String())
}

func newChecker(t *testing.T, current string, handler http.HandlerFunc) *Checker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Checker{URL: srv.URL, Current: current, Client: srv.Client()}
}

func release(tag string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name":"` + tag + `","html_url":"https://github.com/x/y/releases/tag/` + tag + `"}`))
	}
}

func TestCheckNewerAvailable(t *testing.T) {
	c := newChecker(t, "1.0.0", release("v1.1.0"))

	res, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.Equal(t, "1.1.0", res.LatestVersion)
	assert.Contains(t, res.ReleaseURL, "v1.1.0")
}

func TestCheckUpToDate(t *testing.T) {
	c := newChecker(t, "1.1", release("v1.1.0"))

	res, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Available)
}

func TestCheckDevBuild(t *testing.T) {
	c := newChecker(t, "dev", release("v0.1.0"))

	res, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Available)
}

func TestCheckNoReleases(t *testing.T) {
	c := newChecker(t, "1.0.0", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	res, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Available)
}

func TestCheckServerError(t *testing.T) {
	c := newChecker(t, "1.0.0", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.Check(context.Background())
	assert.ErrorContains(t, err, "403")
}

func TestCheckSendsHeaders(t *testing.T) {
	var accept, agent string
	c := newChecker(t, "1.0.0", func(w http.ResponseWriter, r *http.Request) {
		accept, agent = r.Header.Get("Accept"), r.Header.Get("User-Agent")
		release("v1.0.0")(w, r)
	})

	_, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.github.v3+json", accept)
	assert.Equal(t, "nowplaying/1.0.0", agent)
}
