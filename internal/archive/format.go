// Package archive provides format detection and extraction of downloaded
// binary distributions, including directory stripping during unpacking.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
)

// Format identifies the archive format of a downloaded file. It is a
// closed enumeration: anything not recognized maps to FormatUnknown
// rather than failing during detection, so callers decide how to
// surface unsupported inputs.
type Format int

const (
	// FormatUnknown is the zero value for unrecognized content.
	FormatUnknown Format = iota
	// FormatTarGzip is a gzip-compressed tar archive (.tar.gz, .tgz).
	FormatTarGzip
	// FormatTarBzip2 is a bzip2-compressed tar archive (.tar.bz2).
	FormatTarBzip2
	// FormatTarXz is an xz-compressed tar archive (.tar.xz).
	FormatTarXz
	// FormatTarZstd is a zstd-compressed tar archive (.tar.zst).
	FormatTarZstd
	// FormatZip is a zip archive.
	FormatZip
)

// String returns the conventional file extension for the format.
func (f Format) String() string {
	switch f {
	case FormatTarGzip:
		return "tar.gz"
	case FormatTarBzip2:
		return "tar.bz2"
	case FormatTarXz:
		return "tar.xz"
	case FormatTarZstd:
		return "tar.zst"
	case FormatZip:
		return "zip"
	default:
		return "unknown"
	}
}

// IsTar reports whether the format belongs to the tar family, which
// supports stripping leading directory components during unpacking.
func (f Format) IsTar() bool {
	switch f {
	case FormatTarGzip, FormatTarBzip2, FormatTarXz, FormatTarZstd:
		return true
	default:
		return false
	}
}

// Sniff detects the archive format of a file from its magic bytes.
// Detection never guesses from the file name; a format the extractor
// cannot handle is reported as FormatUnknown, not an error.
func Sniff(path string) (Format, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return FormatUnknown, "", fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	// filetype needs at most the first 262 bytes. Files shorter than
	// that, including empty ones, are still handed to the matcher: an
	// empty or truncated artifact is unrecognized content, not a read
	// failure.
	header := make([]byte, 262)
	n, err := io.ReadFull(file, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return FormatUnknown, "", fmt.Errorf("read archive header: %w", err)
	}

	kind, err := filetype.Match(header[:n])
	if err != nil {
		return FormatUnknown, "", fmt.Errorf("detect content type: %w", err)
	}

	switch kind {
	case matchers.TypeGz:
		return FormatTarGzip, kind.MIME.Value, nil
	case matchers.TypeBz2:
		return FormatTarBzip2, kind.MIME.Value, nil
	case matchers.TypeXz:
		return FormatTarXz, kind.MIME.Value, nil
	case matchers.TypeZstd:
		return FormatTarZstd, kind.MIME.Value, nil
	case matchers.TypeZip:
		return FormatZip, kind.MIME.Value, nil
	default:
		return FormatUnknown, kind.MIME.Value, nil
	}
}
