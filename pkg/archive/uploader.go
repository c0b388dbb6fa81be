package archive

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// Uploader stores finished clips for later review.
type Uploader interface {
	// Key is a unique identifier for the clip.
	Upload(ctx context.Context, key string, contentType string, body io.Reader) error
	GetDirectory() string
}

// ClipKey builds a date-bucketed unique key for an archived clip.
func ClipKey(ts time.Time, extension string) string {
	return fmt.Sprintf("%s/%s.%s", ts.Format("2006-01-02"), shortuuid.New(), extension)
}
