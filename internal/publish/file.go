package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FilePublisher writes the digest to a local dated file. One file per day;
// a rerun on the same date overwrites the previous file, which keeps the
// operation idempotent.
type FilePublisher struct {
	dir string
}

// NewFilePublisher creates a publisher writing under dir.
func NewFilePublisher(dir string) *FilePublisher {
	if dir == "" {
		dir = "summaries"
	}
	return &FilePublisher{dir: dir}
}

// Publish writes <dir>/YYYY-MM-DD.md with a subject header and the body.
func (p *FilePublisher) Publish(ctx context.Context, date time.Time, body string) (Artifact, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(p.dir, date.Format("2006-01-02")+".md")
	content := "Subject: " + TitleFor(date) + "\n\n" + body
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("writing summary file: %w", err)
	}
	return Artifact{Kind: "file", Location: path}, nil
}
