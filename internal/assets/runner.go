// SPDX-License-Identifier: MIT

package assets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sozzifer/microblog/internal/log"
	"github.com/sozzifer/microblog/internal/metrics"
)

// Runner invokes the external tailwindcss compiler.
type Runner struct {
	Bin        string
	ConfigPath string
	InputCSS   string
	OutputCSS  string
	// Timeout bounds one compiler run; the process is killed past it.
	Timeout time.Duration

	ring *lineRing
}

// NewRunner creates a compiler wrapper with the last build's output
// retained for diagnostics.
func NewRunner(bin, configPath, inputCSS, outputCSS string, timeout time.Duration) *Runner {
	if bin == "" {
		bin = "tailwindcss"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Runner{
		Bin:        bin,
		ConfigPath: configPath,
		InputCSS:   inputCSS,
		OutputCSS:  outputCSS,
		Timeout:    timeout,
		ring:       newLineRing(64),
	}
}

// Build runs the compiler once.
func (r *Runner) Build(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	args := []string{"-c", r.ConfigPath, "-i", r.InputCSS, "-o", r.OutputCSS}
	cmd := exec.CommandContext(ctx, r.Bin, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("attach compiler stderr: %w", err)
	}

	logger := log.WithComponent("assets")
	start := time.Now()
	if err := cmd.Start(); err != nil {
		metrics.IncAssetsBuild("error")
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("tailwindcss binary %q not found: install the standalone CLI "+
				"(https://tailwindcss.com/blog/standalone-cli) or point --tailwind-bin at it", r.Bin)
		}
		return fmt.Errorf("start tailwindcss: %w", err)
	}

	r.ring.reset()
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		r.ring.append(scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		metrics.IncAssetsBuild("error")
		if ctx.Err() != nil {
			return fmt.Errorf("tailwindcss build timed out after %s", r.Timeout)
		}
		logger.Error().
			Err(err).
			Str("output", r.LastOutput()).
			Msg("tailwindcss build failed")
		return fmt.Errorf("tailwindcss build: %w", err)
	}

	metrics.IncAssetsBuild("ok")
	logger.Info().
		Str("event", "assets.build").
		Str("output_css", r.OutputCSS).
		Dur("duration", time.Since(start)).
		Msg("css bundle built")
	return nil
}

// LastOutput returns the retained compiler output of the latest run.
func (r *Runner) LastOutput() string {
	return strings.Join(r.ring.lines(), "\n")
}

// lineRing keeps the last n lines of compiler output.
type lineRing struct {
	mu    sync.Mutex
	buf   []string
	next  int
	count int
}

func newLineRing(n int) *lineRing {
	return &lineRing{buf: make([]string, n)}
}

func (l *lineRing) append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.next] = line
	l.next = (l.next + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	}
}

func (l *lineRing) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next, l.count = 0, 0
}

func (l *lineRing) lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, l.count)
	start := l.next - l.count
	if start < 0 {
		start += len(l.buf)
	}
	for i := 0; i < l.count; i++ {
		out = append(out, l.buf[(start+i)%len(l.buf)])
	}
	return out
}
