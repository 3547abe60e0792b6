package ili2db

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

const ili2cMainClass = "ch.interlis.ili2c.Main"

// DefaultWaitDelay bounds the wait for the output pipes after the tool has
// exited or was killed. Processes forked by java may keep them open.
const DefaultWaitDelay = 5 * time.Second

// Config holds the Java and jar locations.
type Config struct {
	Java        string
	Ili2cJar    string
	Ili2pgJar   string
	Ili2gpkgJar string
	Timeout     time.Duration // 0 means no limit
}

// Runner implements the ToolRunner port by starting java.
type Runner struct {
	config    Config
	logger    *slog.Logger
	waitDelay time.Duration
	command   func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewRunner creates a new tool runner.
func NewRunner(cfg Config, logger *slog.Logger) *Runner {
	if cfg.Java == "" {
		cfg.Java = "java"
	}
	return &Runner{
		config:    cfg,
		logger:    logger,
		waitDelay: DefaultWaitDelay,
		command:   exec.CommandContext,
	}
}

// CommandLine returns the java arguments for running tool with args.
func (r *Runner) CommandLine(tool string, args []string) ([]string, error) {
	base := []string{"-Djava.net.useSystemProxies=true"}
	switch tool {
	case ToolIli2c:
		jar := r.config.Ili2cJar
		if jar == "" {
			return nil, fmt.Errorf("%w: no jar configured for %s", domain.ErrInvalidInput, tool)
		}
		classpath := jar + string(filepath.ListSeparator) + filepath.Join(filepath.Dir(jar), "libs", "*")
		base = append(base, "-cp", classpath, ili2cMainClass)
	case ToolIli2pg, ToolIli2gpkg:
		jar := r.config.Ili2pgJar
		if tool == ToolIli2gpkg {
			jar = r.config.Ili2gpkgJar
		}
		if jar == "" {
			return nil, fmt.Errorf("%w: no jar configured for %s", domain.ErrInvalidInput, tool)
		}
		base = append(base, "-jar", jar)
	default:
		return nil, fmt.Errorf("%w: unknown tool %q", domain.ErrInvalidInput, tool)
	}
	return append(base, args...), nil
}

// Run runs tool and logs its combined output line by line.
func (r *Runner) Run(ctx context.Context, tool string, args []string) error {
	cmdline, err := r.CommandLine(tool, args)
	if err != nil {
		return err
	}

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	cmd := r.command(ctx, r.config.Java, cmdline...)
	cmd.WaitDelay = r.waitDelay
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	r.logger.Info("running tool", "tool", tool, "command", r.config.Java+" "+strings.Join(RedactArgs(cmdline), " "))
	start := time.Now()
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		return &domain.ToolError{Tool: tool, ExitCode: -1, Err: err}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			r.logger.Info(scanner.Text(), "tool", tool)
		}
		// Drain after a scanner error so the process never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, pr)
	}()

	waitErr := cmd.Wait()
	_ = pw.Close()
	<-done

	if errors.Is(waitErr, exec.ErrWaitDelay) {
		r.logger.Warn("tool output left open after exit", "tool", tool)
		waitErr = nil
	}

	if waitErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			waitErr = fmt.Errorf("%w: %w", ctxErr, waitErr)
		}
		r.logger.Error("tool failed", "tool", tool, "exit_code", exitCode, "error", waitErr)
		return &domain.ToolError{Tool: tool, ExitCode: exitCode, Err: waitErr}
	}

	r.logger.Info("tool finished", "tool", tool, "duration", time.Since(start))
	return nil
}

// RedactArgs hides the value of --dbpwd.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "--dbpwd" {
			out[i+1] = "***"
		}
	}
	return out
}
