package toolrunner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestRunner_Success(t *testing.T) {
	sh := requireShell(t)
	r := New(t.TempDir())

	res, err := r.Run(context.Background(), sh, []string{"-c", "echo Done!; echo warming up >&2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 || strings.TrimSpace(res.Stdout) != "Done!" || strings.TrimSpace(res.Stderr) != "warming up" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRunner_NonZeroExit(t *testing.T) {
	sh := requireShell(t)
	r := New("")

	res, err := r.Run(context.Background(), sh, []string{"-c", "echo 'ERROR: bad ephemeris' >&2; exit 3"})
	if err != nil {
		t.Fatalf("non-zero exit is not a runner error: %v", err)
	}
	if res.ExitCode != 3 || !strings.Contains(res.Stderr, "bad ephemeris") {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRunner_MissingBinary(t *testing.T) {
	r := New("")
	_, err := r.Run(context.Background(), "gpspath-no-such-tool", nil)
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("expected exec.ErrNotFound, got %v", err)
	}
}

func TestRunner_Timeout(t *testing.T) {
	sh := requireShell(t)
	r := New("")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, sh, []string{"-c", "exec sleep 5"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestRunner_OutputExists(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "gpssim.bin"), []byte{1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	r := New(dir)

	tests := []struct {
		path string
		want bool
	}{
		{"gpssim.bin", true},
		{filepath.Join(dir, "gpssim.bin"), true},
		{"missing.bin", false},
		{"sub", false},
	}
	for _, tt := range tests {
		got, err := r.OutputExists(tt.path)
		if err != nil {
			t.Fatalf("OutputExists(%q): %v", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("OutputExists(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{limit: 4}
	_, _ = b.Write([]byte("ab"))
	if b.String() != "ab" {
		t.Errorf("unexpected %q", b.String())
	}
	_, _ = b.Write([]byte("cdef"))
	if b.String() != "[truncated]\ncdef" {
		t.Errorf("unexpected %q", b.String())
	}
}
