package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"BlogDigest/internal/ports"
)

const (
	readmeSection = "## Daily Blog Summary"
	readmeAnchor  = "## Features"
	readmeHeader  = "# Engineering Blog Digest\n"
)

// FileWriter persists the rendered digest and optionally mirrors it into a README.
type FileWriter struct {
	path       string
	readmePath string
}

var _ ports.ArtifactWriter = (*FileWriter)(nil)

// NewFileWriter writes to path; an empty readmePath disables the README update.
// path may contain a {date} placeholder, expanded as YYYY-MM-DD.
func NewFileWriter(path, readmePath string) *FileWriter {
	return &FileWriter{path: path, readmePath: readmePath}
}

// Write stores markdown atomically and returns the final path.
func (w *FileWriter) Write(ctx context.Context, markdown string, generatedAt time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := strings.ReplaceAll(w.path, "{date}", generatedAt.Format("2006-01-02"))
	if err := writeAtomic(path, []byte(markdown)); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	if w.readmePath != "" {
		if err := w.updateReadme(markdown); err != nil {
			return path, fmt.Errorf("update readme: %w", err)
		}
	}
	return path, nil
}

func (w *FileWriter) updateReadme(markdown string) error {
	current, err := os.ReadFile(w.readmePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		current = []byte(readmeHeader)
	}
	return writeAtomic(w.readmePath, []byte(ReplaceSection(string(current), markdown)))
}

// ReplaceSection swaps the daily summary section of a README for body. Headings in
// body are demoted so they nest under the section. A missing section is inserted
// before the Features heading, or appended.
func ReplaceSection(readme, body string) string {
	section := readmeSection + "\n\n" + demoteHeadings(strings.TrimSpace(body)) + "\n\n"

	if start := strings.Index(readme, readmeSection); start >= 0 {
		rest := readme[start+len(readmeSection):]
		end := len(readme)
		if next := strings.Index(rest, "\n## "); next >= 0 {
			end = start + len(readmeSection) + next + 1
		}
		return readme[:start] + section + readme[end:]
	}

	if anchor := strings.Index(readme, readmeAnchor); anchor >= 0 {
		return readme[:anchor] + section + readme[anchor:]
	}

	return strings.TrimRight(readme, "\n") + "\n\n" + section
}

func demoteHeadings(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "#") {
			level := len(line) - len(strings.TrimLeft(line, "#"))
			if level+2 <= 6 {
				lines[i] = "##" + line
			}
		}
	}
	return strings.Join(lines, "\n")
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".digest-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
