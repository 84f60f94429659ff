package builder

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/binforge/binforge/internal/archive"
	"github.com/binforge/binforge/internal/fetch"
	"github.com/binforge/binforge/internal/platform"
	"github.com/binforge/binforge/internal/verify"
)

// tarGzBytes builds an in-memory .tar.gz with the given files.
func tarGzBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzipWriter)

	for name, content := range files {
		header := &tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			t.Fatalf("write header for %s: %v", name, err)
		}
		if _, err := tarWriter.Write([]byte(content)); err != nil {
			t.Fatalf("write content for %s: %v", name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	if err := gzipWriter.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}

	return buf.Bytes()
}

// serveArtifacts starts a test server mapping request paths to response
// bodies.
func serveArtifacts(t *testing.T, artifacts map[string][]byte) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := artifacts[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

// hostSource returns a source pinned to the current host.
func hostSource(url string) Source {
	host := platform.Host()
	return Source{OS: host.OS, Arch: host.Arch, URL: url}
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("build pipeline commands in this test require a POSIX shell")
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestRegistryDefaultsToHostAtRegisterTime(t *testing.T) {
	host := platform.Host()

	registry := NewRegistry()
	registry.Register(Source{URL: "https://example.com/a.tar.gz"})

	sources := registry.Sources()
	if len(sources) != 1 {
		t.Fatalf("len(sources) = %d, want 1", len(sources))
	}
	if sources[0].OS != host.OS || sources[0].Arch != host.Arch {
		t.Errorf("source pinned to %s-%s, want %s", sources[0].OS, sources[0].Arch, host.Pair())
	}
}

func TestRegistryMatchingPreservesOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Source{OS: "linux", Arch: "amd64", URL: "first"})
	registry.Register(Source{OS: "darwin", Arch: "arm64", URL: "other"})
	registry.Register(Source{OS: "linux", Arch: "amd64", URL: "second"})
	registry.Register(Source{OS: "linux", Arch: "arm64", URL: "wrong-arch"})

	matched := registry.Matching("linux", "amd64")
	if len(matched) != 2 {
		t.Fatalf("len(matched) = %d, want 2", len(matched))
	}
	if matched[0].URL != "first" || matched[1].URL != "second" {
		t.Errorf("matching order = [%s, %s], want [first, second]", matched[0].URL, matched[1].URL)
	}

	if got := registry.Matching("plan9", "386"); len(got) != 0 {
		t.Errorf("expected no matches, got %d", len(got))
	}
}

func TestRegistryNormalizesTags(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Source{OS: "macOS", Arch: "x86_64", URL: "u"})

	src := registry.Sources()[0]
	if src.OS != "darwin" || src.Arch != "amd64" {
		t.Errorf("normalized tags = %s/%s, want darwin/amd64", src.OS, src.Arch)
	}
}

func TestRemapDestinationDefault(t *testing.T) {
	remap := Remap{Src: "bin/tool"}
	if got := remap.Destination(); got != "bin/tool" {
		t.Errorf("Destination() = %q, want %q", got, "bin/tool")
	}

	remap = Remap{Src: "bin/tool", Dest: "usr/bin/tool"}
	if got := remap.Destination(); got != "usr/bin/tool" {
		t.Errorf("Destination() = %q, want %q", got, "usr/bin/tool")
	}
}

func TestConfigValidate(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "occupied")
	if err := os.WriteFile(filePath, []byte("x"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "missing_target",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "target_is_file",
			cfg:     Config{TargetDir: filePath},
			wantErr: true,
		},
		{
			name:    "target_does_not_exist_yet",
			cfg:     Config{TargetDir: filepath.Join(tmpDir, "fresh")},
			wantErr: false,
		},
		{
			name:    "existing_directory",
			cfg:     Config{TargetDir: tmpDir},
			wantErr: false,
		},
		{
			name: "signature_without_keyring",
			cfg: Config{
				TargetDir: tmpDir,
				Sources:   []Source{{URL: "u", SignatureURL: "u.sig"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateTargetIsFileType(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(filePath, []byte("x"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg := Config{TargetDir: filePath}
	err := cfg.Validate()

	var notDir *TargetNotDirectoryError
	if !errors.As(err, &notDir) {
		t.Fatalf("error type = %T, want *TargetNotDirectoryError", err)
	}
	if notDir.Path != filePath {
		t.Errorf("Path = %q, want %q", notDir.Path, filePath)
	}
}

func TestBuildNoMatchingSource(t *testing.T) {
	cfg := Config{
		TargetDir: filepath.Join(t.TempDir(), "target"),
		Sources:   []Source{{OS: "plan9", Arch: "mips", URL: "https://example.com/x.tar.gz"}},
	}

	_, err := Build(context.Background(), cfg)

	var noBinary *NoBinaryForPlatformError
	if !errors.As(err, &noBinary) {
		t.Fatalf("error type = %T, want *NoBinaryForPlatformError", err)
	}
	if noBinary.Pair != platform.Host().Pair() {
		t.Errorf("Pair = %q, want %q", noBinary.Pair, platform.Host().Pair())
	}

	// Target bootstrap happens before source matching, so the directory
	// exists even though no source matched.
	info, statErr := os.Stat(cfg.TargetDir)
	if statErr != nil {
		t.Fatalf("target directory missing after no-match failure: %v", statErr)
	}
	if !info.IsDir() {
		t.Error("target path is not a directory")
	}
}

func TestBuildEmptyRemapMovesEverything(t *testing.T) {
	server := serveArtifacts(t, map[string][]byte{
		"/dist.tar.gz": tarGzBytes(t, map[string]string{
			"bin/tool":  "binary",
			"README.md": "docs",
		}),
	})

	targetDir := filepath.Join(t.TempDir(), "target")
	cfg := Config{
		TargetDir: targetDir,
		Sources:   []Source{hostSource(server.URL + "/dist.tar.gz")},
	}

	result, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// The target holds exactly what the temp build directory held.
	wantEntries := []string{"README.md", "bin"}
	if got := listDir(t, targetDir); !equalStrings(got, wantEntries) {
		t.Errorf("target entries = %v, want %v", got, wantEntries)
	}

	data, err := os.ReadFile(filepath.Join(targetDir, "bin", "tool"))
	if err != nil {
		t.Fatalf("read tool: %v", err)
	}
	if string(data) != "binary" {
		t.Errorf("tool = %q, want %q", data, "binary")
	}

	if len(result.Downloaded) != 1 || result.Downloaded[0] != server.URL+"/dist.tar.gz" {
		t.Errorf("Downloaded = %v", result.Downloaded)
	}
	if result.HostPair != platform.Host().Pair() {
		t.Errorf("HostPair = %q, want %q", result.HostPair, platform.Host().Pair())
	}
}

func TestBuildRemapLayout(t *testing.T) {
	server := serveArtifacts(t, map[string][]byte{
		"/dist.tar.gz": tarGzBytes(t, map[string]string{
			"tool":      "binary",
			"README.md": "docs",
			"extra.txt": "left behind",
		}),
	})

	targetDir := filepath.Join(t.TempDir(), "target")
	cfg := Config{
		TargetDir: targetDir,
		Sources:   []Source{hostSource(server.URL + "/dist.tar.gz")},
		Remaps: []Remap{
			{Src: "tool", Dest: "usr/local/bin/tool"}, // parent dirs created on demand
			{Src: "README.md"},                        // dest defaults to src
		},
	}

	if _, err := Build(context.Background(), cfg); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for path, content := range map[string]string{
		"usr/local/bin/tool": "binary",
		"README.md":          "docs",
	} {
		data, err := os.ReadFile(filepath.Join(targetDir, filepath.FromSlash(path)))
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if string(data) != content {
			t.Errorf("%s = %q, want %q", path, data, content)
		}
	}

	// Entries without a remap never reach the target.
	if _, err := os.Stat(filepath.Join(targetDir, "extra.txt")); !os.IsNotExist(err) {
		t.Error("unremapped file leaked into target")
	}
}

func TestBuildRemapMissingSource(t *testing.T) {
	server := serveArtifacts(t, map[string][]byte{
		"/dist.tar.gz": tarGzBytes(t, map[string]string{"tool": "binary"}),
	})

	cfg := Config{
		TargetDir: filepath.Join(t.TempDir(), "target"),
		Sources:   []Source{hostSource(server.URL + "/dist.tar.gz")},
		Remaps:    []Remap{{Src: "does-not-exist"}},
	}

	_, err := Build(context.Background(), cfg)

	var remapErr *RemapError
	if !errors.As(err, &remapErr) {
		t.Fatalf("error type = %T, want *RemapError", err)
	}
	if remapErr.Remap.Src != "does-not-exist" {
		t.Errorf("Remap.Src = %q", remapErr.Remap.Src)
	}
}

func TestBuildPerSourceStrip(t *testing.T) {
	server := serveArtifacts(t, map[string][]byte{
		"/wrapped.tar.gz": tarGzBytes(t, map[string]string{
			"dist-1.0/bin/tool": "binary",
		}),
	})

	src := hostSource(server.URL + "/wrapped.tar.gz")
	src.Strip = 1

	targetDir := filepath.Join(t.TempDir(), "target")
	cfg := Config{
		TargetDir: targetDir,
		Sources:   []Source{src},
	}

	if _, err := Build(context.Background(), cfg); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(targetDir, "bin", "tool"))
	if err != nil {
		t.Fatalf("read tool: %v", err)
	}
	if string(data) != "binary" {
		t.Errorf("tool = %q, want %q", data, "binary")
	}
}

func TestBuildMultipleSourcesForHost(t *testing.T) {
	server := serveArtifacts(t, map[string][]byte{
		"/part1.tar.gz": tarGzBytes(t, map[string]string{"one.txt": "1"}),
		"/part2.tar.gz": tarGzBytes(t, map[string]string{"two.txt": "2"}),
	})

	targetDir := filepath.Join(t.TempDir(), "target")
	cfg := Config{
		TargetDir: targetDir,
		Sources: []Source{
			hostSource(server.URL + "/part1.tar.gz"),
			hostSource(server.URL + "/part2.tar.gz"),
		},
	}

	result, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, name := range []string{"one.txt", "two.txt"} {
		if _, err := os.Stat(filepath.Join(targetDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	// Downloaded order is completion order; only membership is stable.
	if len(result.Downloaded) != 2 {
		t.Fatalf("len(Downloaded) = %d, want 2", len(result.Downloaded))
	}
	downloaded := append([]string(nil), result.Downloaded...)
	sort.Strings(downloaded)
	want := []string{server.URL + "/part1.tar.gz", server.URL + "/part2.tar.gz"}
	sort.Strings(want)
	if !equalStrings(downloaded, want) {
		t.Errorf("Downloaded = %v, want %v", downloaded, want)
	}
}

func TestBuildCommandFailureHaltsPipeline(t *testing.T) {
	requireUnix(t)

	server := serveArtifacts(t, map[string][]byte{
		"/dist.tar.gz": tarGzBytes(t, map[string]string{"input.txt": "x"}),
	})

	markerDir := t.TempDir()
	markerA := filepath.Join(markerDir, "a")
	markerC := filepath.Join(markerDir, "c")

	cfg := Config{
		TargetDir: filepath.Join(t.TempDir(), "target"),
		Sources:   []Source{hostSource(server.URL + "/dist.tar.gz")},
		Silent:    true,
		Commands: []Command{
			{Executable: "sh", Args: []string{"-c", "touch " + markerA}},
			{Executable: "sh", Args: []string{"-c", "exit 3"}},
			{Executable: "sh", Args: []string{"-c", "touch " + markerC}},
		},
	}

	_, err := Build(context.Background(), cfg)

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T, want *CommandError", err)
	}
	if cmdErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", cmdErr.ExitCode)
	}

	if _, err := os.Stat(markerA); err != nil {
		t.Error("first command never ran")
	}
	if _, err := os.Stat(markerC); !os.IsNotExist(err) {
		t.Error("command after the failure still ran")
	}
}

func TestBuildCommandsRunInBuildDir(t *testing.T) {
	requireUnix(t)

	server := serveArtifacts(t, map[string][]byte{
		"/dist.tar.gz": tarGzBytes(t, map[string]string{"input.txt": "payload"}),
	})

	targetDir := filepath.Join(t.TempDir(), "target")
	cfg := Config{
		TargetDir: targetDir,
		Sources:   []Source{hostSource(server.URL + "/dist.tar.gz")},
		Silent:    true,
		Commands: []Command{
			// Transforms the extracted input inside the build directory.
			{Executable: "sh", Args: []string{"-c", "cp input.txt output.txt"}},
		},
		Remaps: []Remap{{Src: "output.txt", Dest: "final.txt"}},
	}

	if _, err := Build(context.Background(), cfg); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(targetDir, "final.txt"))
	if err != nil {
		t.Fatalf("read final.txt: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("final.txt = %q, want %q", data, "payload")
	}
}

func TestBuildLocalSourcePassthrough(t *testing.T) {
	// No HTTP server anywhere: a local source must be copied, not fetched.
	archiveDir := t.TempDir()
	archivePath := filepath.Join(archiveDir, "dist.tar.gz")
	if err := os.WriteFile(archivePath, tarGzBytes(t, map[string]string{"tool": "local binary"}), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	tests := []struct {
		name string
		url  string
	}{
		{"bare_path", archivePath},
		{"file_url", "file://" + archivePath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targetDir := filepath.Join(t.TempDir(), "target")
			cfg := Config{
				TargetDir: targetDir,
				Sources:   []Source{hostSource(tt.url)},
			}

			result, err := Build(context.Background(), cfg)
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}

			data, err := os.ReadFile(filepath.Join(targetDir, "tool"))
			if err != nil {
				t.Fatalf("read tool: %v", err)
			}
			if string(data) != "local binary" {
				t.Errorf("tool = %q", data)
			}
			if len(result.Downloaded) != 1 || result.Downloaded[0] != tt.url {
				t.Errorf("Downloaded = %v", result.Downloaded)
			}
		})
	}
}

func TestBuildFetchFailureReportsStatus(t *testing.T) {
	server := serveArtifacts(t, map[string][]byte{}) // everything 404s

	cfg := Config{
		TargetDir: filepath.Join(t.TempDir(), "target"),
		Sources:   []Source{hostSource(server.URL + "/missing.tar.gz")},
	}

	result, err := Build(context.Background(), cfg)
	if result != nil {
		t.Error("expected nil result on failure")
	}

	var httpErr *fetch.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error type = %T, want *fetch.HTTPError", err)
	}
	if httpErr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", httpErr.Status)
	}
}

func TestBuildUnsupportedContent(t *testing.T) {
	server := serveArtifacts(t, map[string][]byte{
		"/dist.bin":  []byte("plain text, certainly not an archive format"),
		"/empty.bin": {}, // a 200 with an empty body is unrecognized, not a fetch error
	})

	for _, path := range []string{"/dist.bin", "/empty.bin"} {
		t.Run(path, func(t *testing.T) {
			cfg := Config{
				TargetDir: filepath.Join(t.TempDir(), "target"),
				Sources:   []Source{hostSource(server.URL + path)},
			}

			_, err := Build(context.Background(), cfg)

			var unsupported *archive.UnsupportedFormatError
			if !errors.As(err, &unsupported) {
				t.Fatalf("error type = %T, want *archive.UnsupportedFormatError", err)
			}
			if unsupported.Path != server.URL+path {
				t.Errorf("Path = %q, want the source URL", unsupported.Path)
			}
		})
	}
}

func TestBuildChecksumVerification(t *testing.T) {
	body := tarGzBytes(t, map[string]string{"tool": "binary"})
	server := serveArtifacts(t, map[string][]byte{"/dist.tar.gz": body})

	archivePath := filepath.Join(t.TempDir(), "dist.tar.gz")
	if err := os.WriteFile(archivePath, body, 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	goodSum, err := verify.SHA256(archivePath)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}

	t.Run("matching", func(t *testing.T) {
		src := hostSource(server.URL + "/dist.tar.gz")
		src.Checksum = goodSum

		cfg := Config{
			TargetDir: filepath.Join(t.TempDir(), "target"),
			Sources:   []Source{src},
		}
		if _, err := Build(context.Background(), cfg); err != nil {
			t.Fatalf("Build failed: %v", err)
		}
	})

	t.Run("mismatch", func(t *testing.T) {
		src := hostSource(server.URL + "/dist.tar.gz")
		src.Checksum = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"

		cfg := Config{
			TargetDir: filepath.Join(t.TempDir(), "target"),
			Sources:   []Source{src},
		}
		result, err := Build(context.Background(), cfg)
		if err == nil {
			t.Fatal("expected checksum mismatch to fail the build")
		}
		if result != nil {
			t.Error("expected nil result")
		}
	})
}

// recordingLogger captures messages per level.
type recordingLogger struct {
	debug []string
	info  []string
}

func (l *recordingLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.debug = append(l.debug, msg)
}

func (l *recordingLogger) Info(msg string, keysAndValues ...interface{}) {
	l.info = append(l.info, msg)
}

func TestBuildUsesConfiguredLogger(t *testing.T) {
	requireUnix(t)

	server := serveArtifacts(t, map[string][]byte{
		"/dist.tar.gz": tarGzBytes(t, map[string]string{"tool": "binary"}),
	})

	log := &recordingLogger{}
	cfg := Config{
		TargetDir: filepath.Join(t.TempDir(), "target"),
		Sources:   []Source{hostSource(server.URL + "/dist.tar.gz")},
		Silent:    true,
		Commands:  []Command{{Executable: "true"}},
		Logger:    log,
	}

	if _, err := Build(context.Background(), cfg); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(log.debug) == 0 {
		t.Error("no debug messages reached the configured logger")
	}
	if len(log.info) == 0 {
		t.Error("no info messages reached the configured logger")
	}
}

func TestHostPair(t *testing.T) {
	want := platform.Host().Pair()
	if got := HostPair(); got != want {
		t.Errorf("HostPair() = %q, want %q", got, want)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
