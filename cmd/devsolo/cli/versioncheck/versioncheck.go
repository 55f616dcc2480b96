// Package versioncheck notifies the user when a newer devsolo release is
// available. Checks are rate-limited through an on-disk cache and silent on
// every failure so they never interrupt a workflow.
package versioncheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
)

// githubAPIURL is the endpoint for the latest release.
// A var so tests can point it at a local server.
var githubAPIURL = "https://api.github.com/repos/slamb2k/devsolo/releases/latest"

const (
	// checkInterval is the minimum time between release lookups.
	checkInterval = 24 * time.Hour

	// httpTimeout bounds the release lookup.
	httpTimeout = 2 * time.Second

	cacheFileName       = "version_check.json"
	globalConfigDirName = ".config/devsolo"
)

// cacheFile records when the last lookup happened.
type cacheFile struct {
	LastCheckTime time.Time `json:"last_check_time"`
}

// githubRelease is the subset of the release API response we read.
type githubRelease struct {
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
}

// CheckAndNotify looks up the latest release and prints an update hint when
// the running build is older. Silent on every error.
func CheckAndNotify(cmd *cobra.Command, currentVersion string) {
	if cmd.Hidden {
		return
	}
	if currentVersion == "dev" || currentVersion == "" {
		return
	}

	dir, err := configDir()
	if err != nil {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // user config dir
		return
	}

	cache, err := loadCache()
	if err != nil {
		cache = &cacheFile{}
	}
	if time.Since(cache.LastCheckTime) < checkInterval {
		return
	}

	latest, err := fetchLatestVersion()

	// The cache slides forward even on failure, otherwise every invocation
	// would retry a broken lookup.
	cache.LastCheckTime = time.Now()
	if saveErr := saveCache(cache); saveErr != nil {
		logging.Debug(context.Background(), "version check: failed to save cache",
			"error", saveErr.Error())
	}

	if err != nil {
		logging.Debug(context.Background(), "version check: lookup failed", "error", err.Error())
		return
	}

	if isOutdated(currentVersion, latest) {
		fmt.Fprintf(cmd.OutOrStdout(),
			"\nA newer version of devsolo is available: %s (current: %s)\nRun '%s' to update.\n",
			latest, currentVersion, updateCommand())
	}
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, globalConfigDirName), nil
}

func cachePath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, cacheFileName), nil
}

func loadCache() (*cacheFile, error) {
	path, err := cachePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is home-derived
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	var cache cacheFile
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parsing cache: %w", err)
	}
	return &cache, nil
}

// saveCache writes the cache atomically (temp + rename).
func saveCache(cache *cacheFile) error {
	path, err := cachePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".version_check_tmp_")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}

func fetchLatestVersion() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubAPIURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "devsolo")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching release info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return parseRelease(body)
}

// parseRelease extracts the latest stable version tag, skipping prereleases.
func parseRelease(body []byte) (string, error) {
	var release githubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return "", fmt.Errorf("parsing JSON: %w", err)
	}
	if release.Prerelease {
		return "", errors.New("only prerelease versions available")
	}
	if release.TagName == "" {
		return "", errors.New("empty tag name")
	}
	return release.TagName, nil
}

// isOutdated reports whether current < latest under semantic versioning.
func isOutdated(current, latest string) bool {
	if !strings.HasPrefix(current, "v") {
		current = "v" + current
	}
	if !strings.HasPrefix(latest, "v") {
		latest = "v" + latest
	}
	return semver.Compare(current, latest) < 0
}

// updateCommand picks the update instruction matching how the binary was
// installed.
func updateCommand() string {
	execPath, err := os.Executable()
	if err != nil {
		return "go install github.com/slamb2k/devsolo/cmd/devsolo@latest"
	}

	// Homebrew symlinks from bin/ into the Cellar.
	realPath, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		realPath = execPath
	}
	if strings.Contains(realPath, "/Cellar/") || strings.Contains(realPath, "/homebrew/") {
		return "brew upgrade devsolo"
	}
	return "go install github.com/slamb2k/devsolo/cmd/devsolo@latest"
}
