package compiler

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tjfontaine/tutor-gateway/internal/domain"
)

const (
	scriptOK = `#!/bin/sh
if [ "$1" = "--version" ]; then echo "typst 0.11.1 (fake)"; exit 0; fi
printf '%%PDF-1.7 fake document' > "$3"
`
	scriptSlow = `#!/bin/sh
if [ "$1" = "--version" ]; then echo "typst 0.11.1 (fake)"; exit 0; fi
exec sleep 10
`
	scriptFail = `#!/bin/sh
if [ "$1" = "--version" ]; then echo "typst 0.11.1 (fake)"; exit 0; fi
echo "error: unexpected argument in function call" >&2
exit 1
`
	scriptNoOutput = `#!/bin/sh
if [ "$1" = "--version" ]; then echo "typst 0.11.1 (fake)"; exit 0; fi
exit 0
`
	scriptBrokenVersion = `#!/bin/sh
echo "segfault" >&2
exit 2
`
)

type memRecorder struct {
	mu        sync.Mutex
	artifacts []*domain.Artifact
}

func (m *memRecorder) Record(_ context.Context, a *domain.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts = append(m.artifacts, a)
	return nil
}

func writeCompiler(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler scripts need a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "typst")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake compiler: %v", err)
	}
	return bin
}

func newInvoker(t *testing.T, script string, timeout time.Duration, opts ...Option) (*Invoker, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "generated")
	inv := New(Config{
		Bin:       writeCompiler(t, script),
		OutputDir: out,
		Timeout:   timeout,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	return inv, out
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCompile_Success(t *testing.T) {
	rec := &memRecorder{}
	fixed := time.UnixMilli(1700000000000)
	inv, out := newInvoker(t, scriptOK, 5*time.Second,
		WithRecorder(rec),
		WithClock(func() time.Time { return fixed }),
	)

	a, err := inv.Compile(context.Background(), "Intro to Cells!", "= Hello")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	wantName := "intro-to-cells-1700000000000.pdf"
	if a.FileName != wantName {
		t.Errorf("FileName = %q, want %q", a.FileName, wantName)
	}
	if a.URL != "/download/"+wantName {
		t.Errorf("URL = %q", a.URL)
	}
	if a.Size != int64(len("%PDF-1.7 fake document")) {
		t.Errorf("Size = %d", a.Size)
	}
	if a.OutputPath != filepath.Join(out, wantName) {
		t.Errorf("OutputPath = %q", a.OutputPath)
	}
	if a.Title != "Intro to Cells!" {
		t.Errorf("Title = %q", a.Title)
	}

	// Only the PDF remains.
	names := dirEntries(t, out)
	if len(names) != 1 || names[0] != wantName {
		t.Errorf("output dir = %v, want [%s]", names, wantName)
	}

	if len(rec.artifacts) != 1 || rec.artifacts[0].FileName != wantName {
		t.Errorf("recorded = %+v", rec.artifacts)
	}
}

func TestCompile_CreatesOutputDir(t *testing.T) {
	inv, out := newInvoker(t, scriptOK, 5*time.Second)
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output dir should not exist yet: %v", err)
	}
	if _, err := inv.Compile(context.Background(), "x", "x"); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if info, err := os.Stat(out); err != nil || !info.IsDir() {
		t.Fatalf("output dir not created: %v", err)
	}
}

func TestCompile_UniqueNames(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	inv, out := newInvoker(t, scriptOK, 5*time.Second, WithClock(func() time.Time { return fixed }))

	const n = 4
	var wg sync.WaitGroup
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := inv.Compile(context.Background(), "Same Title", "= Same")
			if err != nil {
				t.Errorf("Compile() error = %v", err)
				return
			}
			results <- a.FileName
		}()
	}
	wg.Wait()
	close(results)

	seen := map[string]bool{}
	for name := range results {
		if seen[name] {
			t.Errorf("duplicate file name %q", name)
		}
		seen[name] = true
	}
	if got := len(dirEntries(t, out)); got != len(seen) {
		t.Errorf("output dir has %d files, want %d", got, len(seen))
	}
}

func TestCompile_Timeout(t *testing.T) {
	inv, out := newInvoker(t, scriptSlow, 200*time.Millisecond)

	start := time.Now()
	_, err := inv.Compile(context.Background(), "Slow", "= Slow")
	if !domain.IsType(err, domain.ErrorTypeCompilationTimeout) {
		t.Fatalf("error = %v, want compilation timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Compile() took %v, process was not killed", elapsed)
	}
	if names := dirEntries(t, out); len(names) != 0 {
		t.Errorf("leftover files after timeout: %v", names)
	}
}

func TestCompile_Failure(t *testing.T) {
	inv, out := newInvoker(t, scriptFail, 5*time.Second)

	_, err := inv.Compile(context.Background(), "Broken", "#broken(")
	if !domain.IsType(err, domain.ErrorTypeCompilation) {
		t.Fatalf("error = %v, want compilation error", err)
	}
	apiErr := domain.ToAPIError(err)
	if !strings.Contains(apiErr.Details, "unexpected argument") {
		t.Errorf("Details = %q, want compiler output", apiErr.Details)
	}
	if names := dirEntries(t, out); len(names) != 0 {
		t.Errorf("leftover files after failure: %v", names)
	}
}

func TestCompile_NoOutput(t *testing.T) {
	inv, _ := newInvoker(t, scriptNoOutput, 5*time.Second)

	_, err := inv.Compile(context.Background(), "Empty", "= Empty")
	if !domain.IsType(err, domain.ErrorTypeCompilation) {
		t.Fatalf("error = %v, want compilation error", err)
	}
}

func TestCompile_MissingToolchain(t *testing.T) {
	out := t.TempDir()
	inv := New(Config{
		Bin:       filepath.Join(out, "no-such-typst"),
		OutputDir: out,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := inv.Compile(context.Background(), "Anything", "= x")
	if !domain.IsType(err, domain.ErrorTypeToolchain) {
		t.Fatalf("error = %v, want toolchain error", err)
	}
	if names := dirEntries(t, out); len(names) != 0 {
		t.Errorf("files written without a toolchain: %v", names)
	}
}

func TestCompile_BrokenToolchain(t *testing.T) {
	inv, _ := newInvoker(t, scriptBrokenVersion, 5*time.Second)

	_, err := inv.Compile(context.Background(), "Anything", "= x")
	if !domain.IsType(err, domain.ErrorTypeToolchain) {
		t.Fatalf("error = %v, want toolchain error", err)
	}
	if d := domain.ToAPIError(err).Details; !strings.Contains(d, "segfault") {
		t.Errorf("Details = %q", d)
	}
}

func TestCompile_OutputDirUnwritable(t *testing.T) {
	bin := writeCompiler(t, scriptOK)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	inv := New(Config{
		Bin:       bin,
		OutputDir: filepath.Join(blocker, "sub"),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := inv.Compile(context.Background(), "x", "x")
	if !domain.IsType(err, domain.ErrorTypeFilesystem) {
		t.Fatalf("error = %v, want filesystem error", err)
	}
}

func TestProbe(t *testing.T) {
	inv, _ := newInvoker(t, scriptOK, time.Second)
	v, err := inv.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if v != "typst 0.11.1 (fake)" {
		t.Errorf("Probe() = %q", v)
	}
}

func TestNew_Defaults(t *testing.T) {
	inv := New(Config{SourceExt: "typ"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if inv.cfg.Bin != "typst" {
		t.Errorf("Bin = %q", inv.cfg.Bin)
	}
	if inv.cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", inv.cfg.Timeout)
	}
	if inv.SourceExt() != ".typ" {
		t.Errorf("SourceExt = %q", inv.SourceExt())
	}
	if inv.cfg.DownloadPrefix != "/download" {
		t.Errorf("DownloadPrefix = %q", inv.cfg.DownloadPrefix)
	}
}
