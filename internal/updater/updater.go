// Package updater checks GitHub Releases for a newer version.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/buildinfo"
)

// ReleasesURL is the latest-release endpoint of the project.
var ReleasesURL = "https://api.github.com/repos/" + buildinfo.Repo + "/releases/latest"

// ReleaseInfo contains information about a GitHub release.
type ReleaseInfo struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
	Name    string `json:"name"`
}

// UpdateResult contains the result of an update check.
type UpdateResult struct {
	Available      bool
	CurrentVersion string
	LatestVersion  string
	ReleaseURL     string
}

type Checker struct {
	URL     string
	Current string
	Client  *http.Client
}

// NewChecker checks the project's releases against the running build.
func NewChecker() *Checker {
	return &Checker{
		URL:     ReleasesURL,
		Current: buildinfo.Version,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Check queries the releases endpoint. A repository without releases is
// reported as up to date.
func (c *Checker) Check(ctx context.Context) (*UpdateResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "nowplaying/"+c.Current)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch releases: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &UpdateResult{CurrentVersion: c.Current}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned %d", resp.StatusCode)
	}

	var release ReleaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}

	latestVersion := strings.TrimPrefix(release.TagName, "v")
	result := &UpdateResult{
		CurrentVersion: c.Current,
		LatestVersion:  latestVersion,
		ReleaseURL:     release.HTMLURL,
	}

	current, err := ParseSemver(c.Current)
	if err != nil {
		// "dev" and other unparseable builds are treated as older.
		result.Available = true
		return result, nil
	}
	latest, err := ParseSemver(latestVersion)
	if err != nil {
		return nil, fmt.Errorf("parse latest version %q: %w", latestVersion, err)
	}
	result.Available = current.LessThan(latest)
	return result, nil
}
