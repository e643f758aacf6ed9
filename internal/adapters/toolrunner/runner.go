// Package toolrunner launches the external signal tools.
package toolrunner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/samirrijal/gpspath/internal/core/domain"
)

// DefaultOutputLimit bounds how much of each stream is kept per run.
const DefaultOutputLimit = 64 << 10

// Runner implements ports.ToolRunner with os/exec.
type Runner struct {
	Dir   string // working directory; empty means the current one
	Limit int    // bytes kept from the end of stdout and stderr
}

// New creates a Runner executing tools in dir.
func New(dir string) *Runner {
	return &Runner{Dir: dir, Limit: DefaultOutputLimit}
}

// Run executes path with args and waits for it to exit. A process that
// starts and exits non-zero is reported through ToolResult.ExitCode; a
// process that cannot start or is killed by ctx yields an error.
func (r *Runner) Run(ctx context.Context, path string, args []string) (domain.ToolResult, error) {
	limit := r.Limit
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	stdout := &tailBuffer{limit: limit}
	stderr := &tailBuffer{limit: limit}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = r.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = 2 * time.Second // children may keep the output pipes open after a kill

	err := cmd.Run()
	res := domain.ToolResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return res, fmt.Errorf("%s: %w", path, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// OutputExists reports whether path is a regular file, resolving relative
// paths against Dir the way the tools themselves see them.
func (r *Runner) OutputExists(path string) (bool, error) {
	if r.Dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(r.Dir, path)
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
		b.truncated = true
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.truncated {
		return "[truncated]\n" + string(b.buf)
	}
	return string(b.buf)
}
