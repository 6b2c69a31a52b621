package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/quail/internal/config"
)

const stderrTailBytes = 2048

// ProcessRunner runs the LEAN CLI as a subprocess and reads its result file
type ProcessRunner struct {
	cfg config.ProcessRunnerConfig
	log *logrus.Entry
}

// NewProcessRunner creates a subprocess runner, filling unset file names
func NewProcessRunner(cfg config.ProcessRunnerConfig, log *logrus.Logger) *ProcessRunner {
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "quail-backtests")
	}
	if cfg.StrategyFile == "" {
		cfg.StrategyFile = "main.py"
	}
	if cfg.ResultsFile == "" {
		cfg.ResultsFile = "backtest-results.json"
	}
	return &ProcessRunner{
		cfg: cfg,
		log: log.WithField("component", "runner"),
	}
}

// RunBacktest writes the strategy into a scratch directory, runs the
// configured command there and parses the result file it leaves behind.
func (p *ProcessRunner) RunBacktest(ctx context.Context, backtestID string, code string) (Result, error) {
	if backtestID == "" || filepath.Base(backtestID) != backtestID || backtestID == ".." {
		return nil, fmt.Errorf("%w: invalid backtest id %q", ErrStartFailed, backtestID)
	}

	dir := filepath.Join(p.cfg.WorkDir, backtestID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	if !p.cfg.KeepArtifacts {
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				p.log.WithError(err).WithField("dir", dir).Warn("Failed to remove backtest scratch directory")
			}
		}()
	}

	file := filepath.Join(dir, p.cfg.StrategyFile)
	if err := os.WriteFile(file, []byte(code), 0o644); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	runCtx := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	args := expandArgs(p.cfg.Args, dir, file, backtestID)
	cmd := exec.CommandContext(runCtx, p.cfg.Command, args...)
	cmd.Dir = dir
	// children of a killed shell may hold the output pipes open
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	p.log.WithFields(logrus.Fields{
		"backtest_id": backtestID,
		"command":     p.cfg.Command,
		"args":        args,
	}).Debug("Starting backtest process")

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: process exceeded %s", ErrTimeout, p.cfg.Timeout)
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrProcessFailed, err, tail(stderr.String(), stderrTailBytes))
	}

	p.log.WithFields(logrus.Fields{
		"backtest_id": backtestID,
		"duration_ms": time.Since(started).Milliseconds(),
		"stdout_len":  stdout.Len(),
	}).Debug("Backtest process finished")

	return readResults(filepath.Join(dir, p.cfg.ResultsFile))
}

func readResults(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	result := NormalizeLeanResults(doc)
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidResult)
	}
	return result, nil
}

func expandArgs(args []string, dir, file, id string) []string {
	r := strings.NewReplacer("{dir}", dir, "{file}", file, "{id}", id)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
