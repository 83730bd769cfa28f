// Package version compares an installed k6 against the latest k6 release.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// ReleasesURL is the GitHub API endpoint for the latest k6 release.
	ReleasesURL  = "https://api.github.com/repos/grafana/k6/releases/latest"
	checkTimeout = 5 * time.Second
)

type GitHubRelease struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
}

// Update describes the outcome of a release check.
type Update struct {
	Available bool
	Latest    string
	URL       string
}

// Checker queries a releases endpoint.
type Checker struct {
	URL       string
	UserAgent string
	Client    *http.Client
}

// NewChecker returns a Checker for the k6 releases endpoint.
func NewChecker(userAgent string) *Checker {
	return &Checker{
		URL:       ReleasesURL,
		UserAgent: userAgent,
		Client:    &http.Client{Timeout: checkTimeout},
	}
}

// CheckForUpdate checks if a release newer than current is available
func (c *Checker) CheckForUpdate(ctx context.Context, current string) (Update, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return Update{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return Update{}, fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Update{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return Update{}, fmt.Errorf("failed to decode response: %w", err)
	}

	u := Update{
		Latest: strings.TrimPrefix(release.TagName, "v"),
		URL:    release.HTMLURL,
	}
	current = strings.TrimPrefix(current, "v")

	if u.Latest != "" && current != "" && isNewerVersion(u.Latest, current) {
		u.Available = true
	}

	return u, nil
}

// isNewerVersion compares two semantic versions and returns true if latest > current
// Supports versions like "0.54.0", "1.2.3", "0.55.0-rc1", etc.
func isNewerVersion(latest, current string) bool {
	latestParts := parseVersion(latest)
	currentParts := parseVersion(current)

	// Pad shorter version with zeros
	maxLen := len(latestParts)
	if len(currentParts) > maxLen {
		maxLen = len(currentParts)
	}

	for len(latestParts) < maxLen {
		latestParts = append(latestParts, 0)
	}
	for len(currentParts) < maxLen {
		currentParts = append(currentParts, 0)
	}

	for i := 0; i < maxLen; i++ {
		if latestParts[i] > currentParts[i] {
			return true
		}
		if latestParts[i] < currentParts[i] {
			return false
		}
	}

	return false
}

// parseVersion parses a version string into integer parts
// Handles pre-release versions by stripping everything after "-" or "+"
func parseVersion(version string) []int {
	if idx := strings.IndexAny(version, "-+"); idx != -1 {
		version = version[:idx]
	}

	parts := strings.Split(version, ".")
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		num, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		result = append(result, num)
	}

	return result
}
