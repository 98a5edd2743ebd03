package staticfiles

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestCollectCopiesAndFirstSourceWins(t *testing.T) {
	base := t.TempDir()
	build := filepath.Join(base, "frontend", "build")
	extra := filepath.Join(base, "assets")
	root := filepath.Join(base, "staticfiles")

	write(t, filepath.Join(build, "index.html"), "<html>app</html>")
	write(t, filepath.Join(build, "static", "js", "main.js"), "console.log(1)")
	write(t, filepath.Join(build, ".DS_Store"), "junk")
	write(t, filepath.Join(extra, "index.html"), "<html>other</html>")
	write(t, filepath.Join(extra, "logo.svg"), "<svg/>")

	result, err := Collect(context.Background(), Options{Sources: []string{build, extra}, Root: root})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Copied)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, "<html>app</html>", read(t, filepath.Join(root, "index.html")))
	assert.Equal(t, "console.log(1)", read(t, filepath.Join(root, "static", "js", "main.js")))
	assert.NoFileExists(t, filepath.Join(root, ".DS_Store"))

	var manifest Manifest
	require.NoError(t, json.Unmarshal([]byte(read(t, filepath.Join(root, ManifestName))), &manifest))
	assert.Equal(t, 1, manifest.Version)
	assert.Len(t, manifest.Paths, 3)
	assert.Len(t, manifest.Paths["static/js/main.js"], 64)
}

func TestCollectSkipsUnchangedFiles(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	root := filepath.Join(base, "root")
	write(t, filepath.Join(src, "a.css"), "body{}")
	write(t, filepath.Join(src, "b.css"), "p{}")

	_, err := Collect(context.Background(), Options{Sources: []string{src}, Root: root})
	require.NoError(t, err)

	write(t, filepath.Join(src, "b.css"), "p{color:red}")
	result, err := Collect(context.Background(), Options{Sources: []string{src}, Root: root})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Copied)
	assert.Equal(t, 1, result.Unmodified)
	assert.Equal(t, "p{color:red}", read(t, filepath.Join(root, "b.css")))
	assert.Equal(t, "1 static file(s) copied to 'x', 1 unmodified.", result.Summary("x"))
}

func TestCollectClear(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	root := filepath.Join(base, "root")
	write(t, filepath.Join(src, "a.css"), "body{}")
	write(t, filepath.Join(root, "stale.js"), "old")

	result, err := Collect(context.Background(), Options{Sources: []string{src}, Root: root, Clear: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cleared)
	assert.NoFileExists(t, filepath.Join(root, "stale.js"))
	assert.FileExists(t, filepath.Join(root, "a.css"))
}

func TestCollectConfirmation(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	root := filepath.Join(base, "root")
	write(t, filepath.Join(src, "a.css"), "body{}")

	asked := 0
	decline := func(string) (bool, error) { asked++; return false, nil }

	// an empty root needs no confirmation
	_, err := Collect(context.Background(), Options{Sources: []string{src}, Root: root, Confirm: decline})
	require.NoError(t, err)
	assert.Zero(t, asked)

	_, err = Collect(context.Background(), Options{Sources: []string{src}, Root: root, Confirm: decline})
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, 1, asked)
}

func TestCollectRejectsMissingSource(t *testing.T) {
	_, err := Collect(context.Background(), Options{Sources: []string{filepath.Join(t.TempDir(), "nope")}, Root: t.TempDir()})
	assert.Error(t, err)

	_, err = Collect(context.Background(), Options{})
	assert.Error(t, err)
}
