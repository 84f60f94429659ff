package fetch

import (
	"errors"
	"fmt"
)

// ErrEmptyBody indicates an HTTP response that carried no body to stream.
var ErrEmptyBody = errors.New("response has no body")

// HTTPError reports a non-success HTTP status from a remote source.
type HTTPError struct {
	URL        string
	Status     int
	StatusText string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("download %s: unexpected status %d %s", e.URL, e.Status, e.StatusText)
}

// DownloadError wraps a failure while streaming a response body to disk.
// The partially written destination file has already been removed, best
// effort, by the time this error surfaces.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
