package publish

import (
	"context"
	"fmt"
	"time"
)

// TitleFor builds the artifact title for a run date. The date always comes
// from the run environment, never from the digest body.
func TitleFor(date time.Time) string {
	return fmt.Sprintf("Open Science News Digest — %s", date.Format("2006-01-02"))
}

// Artifact identifies the durable output of a successful run.
type Artifact struct {
	Kind     string // "issue", "file", "notion"
	Location string // issue URL, file path, or page ID
}

// Publisher creates exactly one artifact per run.
type Publisher interface {
	Publish(ctx context.Context, date time.Time, body string) (Artifact, error)
}
