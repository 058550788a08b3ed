package pandoc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"md2pdf/internal/config"
	"md2pdf/internal/domain"
)

// maxCapture bounds how much of each output stream is kept in memory.
const maxCapture = 1 << 20

// Runner executes converter commands with a wall-clock limit. Failed runs
// are never retried: the same input fails the same way.
type Runner struct {
	Timeout     time.Duration
	MaxLogChars int
	// WaitDelay bounds how long Run waits for output pipes after the
	// process group was killed.
	WaitDelay time.Duration
}

// NewRunner creates a Runner from the converter config.
func NewRunner(cc config.ConverterConfig) *Runner {
	r := &Runner{
		Timeout:     cc.Timeout,
		MaxLogChars: cc.MaxLogChars,
		WaitDelay:   5 * time.Second,
	}
	if r.Timeout <= 0 {
		r.Timeout = config.DefaultTimeout
	}
	if r.MaxLogChars <= 0 {
		r.MaxLogChars = config.DefaultMaxLogChars
	}
	return r
}

// Run executes cmd in dir. A non-zero exit yields *domain.ConversionError
// with stderr followed by stdout; exceeding the timeout kills the whole
// process group and yields *domain.TimeoutError.
func (r *Runner) Run(ctx context.Context, cmd Command, dir string) error {
	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	c := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	c.Dir = dir
	c.Env = mergeEnv(os.Environ(), cmd.Env)
	stdout := &cappedBuffer{max: maxCapture}
	stderr := &cappedBuffer{max: maxCapture}
	c.Stdout = stdout
	c.Stderr = stderr
	c.WaitDelay = r.WaitDelay
	killProcessGroup(c)

	err := c.Run()
	if err == nil {
		return nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return &domain.TimeoutError{Limit: r.Timeout}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("conversion canceled: %w", ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		log := stderr.String() + "\n" + stdout.String()
		return &domain.ConversionError{
			ExitCode: exitErr.ExitCode(),
			Log:      domain.Truncate(log, r.MaxLogChars),
		}
	}
	return fmt.Errorf("start converter %s: %w", cmd.Name, err)
}

// mergeEnv overlays KEY=VALUE pairs onto base, replacing existing keys.
func mergeEnv(base, overlay []string) []string {
	if len(overlay) == 0 {
		return base
	}
	keys := make(map[string]bool, len(overlay))
	for _, kv := range overlay {
		k, _, _ := strings.Cut(kv, "=")
		keys[k] = true
	}
	out := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if !keys[k] {
			out = append(out, kv)
		}
	}
	return append(out, overlay...)
}

// cappedBuffer keeps the first max bytes written and discards the rest.
type cappedBuffer struct {
	buf strings.Builder
	max int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string { return b.buf.String() }
