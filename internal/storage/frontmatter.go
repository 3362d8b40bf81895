// ABOUTME: Helpers for markdown files with YAML frontmatter and atomic file writes.
// ABOUTME: Used by the markdown store for post files and the author directory.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---"

// renderFrontmatter serializes fm as YAML frontmatter followed by body.
func renderFrontmatter(fm any, body string) (string, error) {
	data, err := yaml.Marshal(fm)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(frontmatterDelim + "\n")
	b.Write(data)
	b.WriteString(frontmatterDelim + "\n")
	b.WriteString(body)
	return b.String(), nil
}

// parseFrontmatter splits content into its YAML frontmatter and body.
// Returns an empty YAML string when content has no frontmatter.
func parseFrontmatter(content string) (string, string) {
	if !strings.HasPrefix(content, frontmatterDelim+"\n") {
		return "", content
	}
	rest := content[len(frontmatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelim+"\n")
	if end < 0 {
		return "", content
	}
	return rest[:end+1], rest[end+len(frontmatterDelim)+2:]
}

// formatTime renders t for frontmatter storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a frontmatter timestamp.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// atomicWrite writes data to a temp file in the target directory and renames it into place.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// readYAML decodes the YAML file at path into v. A missing file leaves v untouched.
func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, v)
}

// writeYAML atomically encodes v as YAML at path.
func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}
