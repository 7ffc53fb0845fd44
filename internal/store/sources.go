package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ibeckermayer/maprobe/internal/config"
)

// SourcesDir is the cache subdirectory holding saved page sources
const SourcesDir = "sources"

const headerPrefix = "<!-- maprobe "

// Source is a page source saved by a debug run
type Source struct {
	Path    string
	Profile config.Profile
	URL     string
	HTML    string
}

// sourcesDir returns the cache directory for saved page sources.
func sourcesDir() (string, error) {
	cacheDir, err := config.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, SourcesDir), nil
}

// generateFilename creates a timestamped filename with the given suffix.
func generateFilename(suffix string) string {
	return time.Now().Format("2006-01-02T15-04-05.000") + suffix
}

// SaveSource writes html to the sources cache, tagged with the profile and
// the URL it was read from. Returns the path to the saved file.
func SaveSource(profile config.Profile, url, html string) (string, error) {
	dir, err := sourcesDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create source cache dir: %w", err)
	}

	path := filepath.Join(dir, generateFilename("_"+string(profile)+".html"))

	var b strings.Builder
	fmt.Fprintf(&b, "%sprofile=%s url=%s -->\n", headerPrefix, profile, url)
	b.WriteString(html)

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write page source: %w", err)
	}

	return path, nil
}

// LoadSource reads a saved source. Files without the header line, such as
// a page saved from a regular browser, load with an empty URL.
func LoadSource(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page source: %w", err)
	}

	src := &Source{Path: path, HTML: string(data)}

	first, rest, found := strings.Cut(src.HTML, "\n")
	if !found || !strings.HasPrefix(first, headerPrefix) {
		return src, nil
	}

	src.HTML = rest
	header := strings.TrimSuffix(strings.TrimPrefix(first, headerPrefix), "-->")
	scanner := bufio.NewScanner(strings.NewReader(header))
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "profile":
			src.Profile = config.Profile(value)
		case "url":
			src.URL = value
		}
	}

	return src, nil
}

// LatestSource returns the path to the most recent saved page source.
func LatestSource() (string, error) {
	dir, err := sourcesDir()
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no saved page sources in %s", dir)
		}
		return "", err
	}

	// os.ReadDir sorts by name, which is chronological for our timestamps
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".html") {
			files = append(files, entry.Name())
		}
	}

	if len(files) == 0 {
		return "", fmt.Errorf("no saved page sources in %s", dir)
	}

	return filepath.Join(dir, files[len(files)-1]), nil
}
