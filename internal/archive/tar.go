package archive

import (
	"archive/tar"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Extract unpacks an archive into destDir, removing stripLevel leading
// directory components from every entry. Tar-family formats strip during
// unpacking; zip archives are extracted fully and flattened afterwards.
// An unrecognized format fails with UnsupportedFormatError.
func Extract(archivePath, destDir string, format Format, stripLevel int) error {
	switch {
	case format.IsTar():
		return extractTar(archivePath, destDir, format, stripLevel)
	case format == FormatZip:
		return extractZip(archivePath, destDir, stripLevel)
	default:
		return &UnsupportedFormatError{Path: archivePath, Detected: format.String()}
	}
}

// extractTar unpacks a compressed tar archive, applying stripLevel to
// each entry name before writing. Entries consumed entirely by the strip
// (e.g. the wrapper directory itself) are skipped.
func extractTar(archivePath, destDir string, format Format, stripLevel int) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	decompressed, closer, err := newDecompressor(archiveFile, format)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	tarReader := tar.NewReader(decompressed)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		// Skip pax_global_header entries
		if header.Name == "pax_global_header" {
			continue
		}

		name, ok := stripTarName(header.Name, stripLevel)
		if !ok {
			continue
		}

		target := filepath.Join(destDir, filepath.FromSlash(name))

		// Security check: prevent path traversal
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("illegal file path: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", target, err)
			}

			outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("create file %s: %w", target, err)
			}

			if _, err := io.Copy(outFile, tarReader); err != nil {
				outFile.Close()
				return fmt.Errorf("write file %s: %w", target, err)
			}

			outFile.Close()

		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", target, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", target, err)
			}

		default:
			// Skip other types (char devices, block devices, etc.)
			continue
		}
	}

	return nil
}

// stripTarName removes level leading components from a slash-separated
// tar entry name. The second return value is false when the entry is
// consumed entirely by the strip and should be skipped.
func stripTarName(name string, level int) (string, bool) {
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == "/" {
		return "", false
	}
	if level <= 0 {
		return cleaned, true
	}

	parts := strings.Split(strings.TrimPrefix(cleaned, "/"), "/")
	if len(parts) <= level {
		return "", false
	}
	return path.Join(parts[level:]...), true
}

// newDecompressor wraps the archive file reader with the decompressor
// matching the tar-family format. The returned closer, when non-nil,
// must be called after reading completes.
func newDecompressor(r io.Reader, format Format) (io.Reader, func(), error) {
	switch format {
	case FormatTarGzip:
		gzipReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return gzipReader, func() { _ = gzipReader.Close() }, nil

	case FormatTarBzip2:
		return bzip2.NewReader(r), nil, nil

	case FormatTarXz:
		xzReader, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("create xz reader: %w", err)
		}
		return xzReader, nil, nil

	case FormatTarZstd:
		zstdReader, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("create zstd reader: %w", err)
		}
		return zstdReader.IOReadCloser(), func() { zstdReader.Close() }, nil

	default:
		return nil, nil, &UnsupportedFormatError{Detected: format.String()}
	}
}
