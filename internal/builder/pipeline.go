package builder

import (
	"context"
	"fmt"

	"github.com/binforge/binforge/internal/archive"
	"github.com/binforge/binforge/internal/fetch"
	"github.com/binforge/binforge/internal/scratch"
	"github.com/binforge/binforge/internal/verify"
)

// pipeline composes fetch, verification, format detection, and
// extraction for a single source.
type pipeline struct {
	fetcher  *fetch.Fetcher
	verifier *verify.Verifier
	log      Logger
}

func newPipeline(keyringPath string, log Logger) *pipeline {
	return &pipeline{
		fetcher:  fetch.NewFetcher(),
		verifier: verify.NewVerifier(keyringPath),
		log:      log,
	}
}

// downloadAndExtract fetches a source into a scoped temporary file,
// verifies it when the source asks for verification, detects the archive
// format from content, and extracts into destDir with the source's strip
// level. The temporary file is removed on every exit path.
func (p *pipeline) downloadAndExtract(ctx context.Context, src Source, destDir string) error {
	return scratch.WithTempFile(func(tmpPath string) error {
		p.log.Debug("fetching source", "url", src.URL)
		if err := p.fetcher.Fetch(ctx, src.URL, tmpPath); err != nil {
			return err
		}

		if src.Checksum != "" {
			if err := p.verifier.VerifyChecksum(tmpPath, src.Checksum); err != nil {
				return fmt.Errorf("verify %s: %w", src.URL, err)
			}
		}

		if src.SignatureURL != "" {
			if err := p.verifySignature(ctx, src, tmpPath); err != nil {
				return fmt.Errorf("verify %s: %w", src.URL, err)
			}
		}

		format, detected, err := archive.Sniff(tmpPath)
		if err != nil {
			return fmt.Errorf("sniff %s: %w", src.URL, err)
		}
		if format == archive.FormatUnknown {
			return &archive.UnsupportedFormatError{Path: src.URL, Detected: detected}
		}

		p.log.Debug("extracting source", "url", src.URL, "format", format.String(), "strip", src.Strip)
		return archive.Extract(tmpPath, destDir, format, src.Strip)
	})
}

// verifySignature fetches the detached signature into its own scoped
// temporary file and checks it against the downloaded artifact.
func (p *pipeline) verifySignature(ctx context.Context, src Source, artifactPath string) error {
	return scratch.WithTempFile(func(sigPath string) error {
		if err := p.fetcher.Fetch(ctx, src.SignatureURL, sigPath); err != nil {
			return fmt.Errorf("fetch signature: %w", err)
		}
		return p.verifier.VerifySignature(artifactPath, sigPath)
	})
}
