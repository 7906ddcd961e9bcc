// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cbind/internal/config"
)

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WriteHeaders writes files into a fresh temp dir and returns their paths
// in name order.
func WriteHeaders(t testing.TB, files map[string]string) []string {
	t.Helper()
	return WriteFiles(t, t.TempDir(), files)
}

// WriteFiles writes files under dir and returns their paths in name order.
// Names may contain slashes.
func WriteFiles(t testing.TB, dir string, files map[string]string) []string {
	t.Helper()
	paths := make([]string, 0, len(files))
	for _, name := range slices.Sorted(maps.Keys(files)) {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(files[name]), 0o644))
		paths = append(paths, path)
	}
	return paths
}

// Config returns the default configuration for module.
func Config(module string) config.Config {
	cfg := config.Default()
	cfg.Module = module
	return cfg
}
