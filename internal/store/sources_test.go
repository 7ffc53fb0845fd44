package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/maprobe/internal/config"
)

func useTempCacheDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", dir)
	t.Setenv("HOME", dir)
	cacheDir, err := config.CacheDir()
	require.NoError(t, err)
	return filepath.Join(cacheDir, SourcesDir)
}

func TestSaveAndLoadSource(t *testing.T) {
	dir := useTempCacheDir(t)
	html := "<html><body><h1>The Metal Archives</h1></body></html>"

	path, err := SaveSource(config.ProfileEnhanced, config.TargetURL, html)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}\.\d{3}_enhanced\.html$`, filepath.Base(path))

	src, err := LoadSource(path)
	require.NoError(t, err)
	assert.Equal(t, path, src.Path)
	assert.Equal(t, config.ProfileEnhanced, src.Profile)
	assert.Equal(t, config.TargetURL, src.URL)
	assert.Equal(t, html, src.HTML)

	latest, err := LatestSource()
	require.NoError(t, err)
	assert.Equal(t, path, latest)
}

func TestSaveSourceSameSecond(t *testing.T) {
	useTempCacheDir(t)

	first, err := SaveSource(config.ProfileBasic, config.TargetURL, "<html>first</html>")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := SaveSource(config.ProfileBasic, config.TargetURL, "<html>second</html>")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	src, err := LoadSource(first)
	require.NoError(t, err)
	assert.Equal(t, "<html>first</html>", src.HTML)

	latest, err := LatestSource()
	require.NoError(t, err)
	assert.Equal(t, second, latest)
}

func TestLoadSourceWithoutHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.html")
	html := "<html>\n<body>hand saved</body>\n</html>"
	require.NoError(t, os.WriteFile(path, []byte(html), 0644))

	src, err := LoadSource(path)
	require.NoError(t, err)
	assert.Empty(t, src.URL)
	assert.Empty(t, src.Profile)
	assert.Equal(t, html, src.HTML)
}

func TestLoadSourceMissing(t *testing.T) {
	_, err := LoadSource(filepath.Join(t.TempDir(), "nope.html"))
	assert.Error(t, err)
}

func TestLatestSourcePicksNewest(t *testing.T) {
	dir := useTempCacheDir(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2099-01-01T00-00-00_dir.html"), 0755))
	for _, name := range []string{
		"2024-01-01T10-00-00_basic.html",
		"2025-03-02T08-00-00_enhanced.html",
		"2024-12-31T23-59-59_manual.html",
		"zz-notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	latest, err := LatestSource()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025-03-02T08-00-00_enhanced.html"), latest)
}

func TestLatestSourceEmpty(t *testing.T) {
	dir := useTempCacheDir(t)

	_, err := LatestSource()
	assert.ErrorContains(t, err, "no saved page sources")

	require.NoError(t, os.MkdirAll(dir, 0755))
	_, err = LatestSource()
	assert.ErrorContains(t, err, "no saved page sources")
}
