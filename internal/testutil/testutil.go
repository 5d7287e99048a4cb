// Package testutil provides shared test helpers for config and seed fixtures.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteFile writes content to name inside a fresh temp directory and returns its path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// BrokenConfigFile returns a config file with invalid YAML that causes Load() to fail.
func BrokenConfigFile(t *testing.T) string {
	t.Helper()
	return WriteFile(t, "config.yml", "{{invalid yaml content")
}

// SeedFile returns a seed file holding one entry per word.
func SeedFile(t *testing.T, words ...string) string {
	t.Helper()
	content := "entries:\n"
	if len(words) == 0 {
		content = "entries: []\n"
	}
	for _, w := range words {
		content += "  - word: " + w + "\n" +
			"    video_url: https://cdn.example.com/" + w + ".mp4\n"
	}
	return WriteFile(t, "seed.yml", content)
}
