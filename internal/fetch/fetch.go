// Package fetch resolves a source specifier into bytes on disk. A source
// is either a local filesystem path (bare path or file: URL), which is
// copied, or a remote URL, which is downloaded over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// DefaultUserAgent is the User-Agent header sent with requests.
const DefaultUserAgent = "binforge/1.0"

// Fetcher resolves sources to files. The zero http.Client carries no
// timeout: a fetch that never completes blocks until the caller's
// context is cancelled.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a fetcher backed by a dedicated HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Allow up to 10 redirects
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: DefaultUserAgent,
	}
}

// IsLocal classifies a source specifier. A source is local when it is
// not a syntactically valid URL with a scheme, or when its scheme is
// file:. Everything else is remote.
func IsLocal(source string) bool {
	parsed, err := url.Parse(source)
	if err != nil {
		return true
	}
	return parsed.Scheme == "" || parsed.Scheme == "file"
}

// LocalPath recovers the filesystem path from a local source specifier,
// stripping the file: scheme prefix when present.
func LocalPath(source string) string {
	if strings.HasPrefix(source, "file://") {
		return strings.TrimPrefix(source, "file://")
	}
	return strings.TrimPrefix(source, "file:")
}

// Fetch resolves source into destPath. Local sources are copied byte for
// byte; remote sources are streamed over HTTP. On a streaming failure
// the partially written destination is removed, best effort, before the
// error is returned.
func (f *Fetcher) Fetch(ctx context.Context, source, destPath string) error {
	if IsLocal(source) {
		return f.fetchLocal(ctx, source, destPath)
	}
	return f.fetchRemote(ctx, source, destPath)
}

// fetchLocal copies a local file to destPath.
func (f *Fetcher) fetchLocal(ctx context.Context, source, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	srcPath := LocalPath(source)
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source %s: %w", srcPath, err)
	}
	defer srcFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(destFile, srcFile); err != nil {
		destFile.Close()
		os.Remove(destPath)
		return &DownloadError{URL: source, Err: err}
	}

	if err := destFile.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}

// fetchRemote issues an HTTP GET and streams the response body to
// destPath. Failures are fatal to the current fetch; there are no
// retries.
func (f *Fetcher) fetchRemote(ctx context.Context, source, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return &DownloadError{URL: source, Err: err}
	}
	defer func() {
		if resp.Body != nil {
			resp.Body.Close()
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{
			URL:        source,
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
		}
	}

	if resp.Body == nil {
		return ErrEmptyBody
	}

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(destFile, resp.Body); err != nil {
		destFile.Close()
		// Deletion failure is swallowed; the stream error is what matters.
		os.Remove(destPath)
		return &DownloadError{URL: source, Err: err}
	}

	if err := destFile.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}
