package ili2db

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

// TestHelperProcess stands in for java when GO_WANT_HELPER_PROCESS is set.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("HELPER_MODE") {
	case "fail":
		fmt.Fprintln(os.Stderr, "Error: model not found")
		os.Exit(3)
	case "sleep":
		time.Sleep(10 * time.Second)
	case "fork":
		child := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--")
		child.Env = append(os.Environ(), "HELPER_MODE=sleep")
		child.Stdout = os.Stdout
		if err := child.Start(); err != nil {
			os.Exit(2)
		}
		fmt.Println("Info: forked")
	default:
		fmt.Println("Info: compiling")
		fmt.Fprintln(os.Stderr, "Info: done")
	}
	os.Exit(0)
}

func helperRunner(t *testing.T, mode string) (*Runner, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := NewRunner(Config{
		Ili2cJar:    "/opt/ili2c/ili2c.jar",
		Ili2pgJar:   "/opt/ili2pg/ili2pg.jar",
		Ili2gpkgJar: "/opt/ili2gpkg/ili2gpkg.jar",
	}, logger)
	r.command = func(ctx context.Context, _ string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], append([]string{"-test.run=TestHelperProcess", "--"}, args...)...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
	return r, &buf
}

func TestCommandLine(t *testing.T) {
	r := NewRunner(Config{
		Ili2cJar:    "/opt/ili2c/ili2c.jar",
		Ili2pgJar:   "/opt/ili2pg/ili2pg.jar",
		Ili2gpkgJar: "/opt/ili2gpkg/ili2gpkg.jar",
	}, slog.Default())

	got, err := r.CommandLine(ToolIli2c, []string{"-oIMD"})
	require.NoError(t, err)
	classpath := "/opt/ili2c/ili2c.jar" + string(filepath.ListSeparator) + filepath.Join("/opt/ili2c", "libs", "*")
	assert.Equal(t, []string{"-Djava.net.useSystemProxies=true", "-cp", classpath, ili2cMainClass, "-oIMD"}, got)

	got, err = r.CommandLine(ToolIli2gpkg, []string{"--export"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-Djava.net.useSystemProxies=true", "-jar", "/opt/ili2gpkg/ili2gpkg.jar", "--export"}, got)

	_, err = r.CommandLine("ili2fgdb", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewRunner(Config{}, slog.Default()).CommandLine(ToolIli2pg, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRun_LogsOutput(t *testing.T) {
	r, buf := helperRunner(t, "ok")

	err := r.Run(context.Background(), ToolIli2pg, []string{"--schemaimport", "--dbpwd", "secret"})
	require.NoError(t, err)

	logs := buf.String()
	assert.Contains(t, logs, "Info: compiling")
	assert.Contains(t, logs, "Info: done")
	assert.Contains(t, logs, "tool=ili2pg")
	assert.NotContains(t, logs, "secret")
}

func TestRun_ExitCode(t *testing.T) {
	r, buf := helperRunner(t, "fail")

	err := r.Run(context.Background(), ToolIli2c, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrToolFailed)

	var toolErr *domain.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, ToolIli2c, toolErr.Tool)
	assert.Equal(t, 3, toolErr.ExitCode)
	assert.Contains(t, buf.String(), "model not found")
}

func TestRun_Timeout(t *testing.T) {
	r, _ := helperRunner(t, "sleep")
	r.config.Timeout = 200 * time.Millisecond

	err := r.Run(context.Background(), ToolIli2gpkg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrToolFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_ChildHoldsOutput(t *testing.T) {
	r, buf := helperRunner(t, "fork")
	r.waitDelay = 200 * time.Millisecond

	start := time.Now()
	err := r.Run(context.Background(), ToolIli2pg, nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Contains(t, buf.String(), "Info: forked")
	assert.Contains(t, buf.String(), "tool output left open after exit")
}

func TestNewRunner_WaitDelay(t *testing.T) {
	r := NewRunner(Config{Ili2cJar: "/opt/ili2c/ili2c.jar"}, slog.Default())
	assert.Equal(t, DefaultWaitDelay, r.waitDelay)

	var started *exec.Cmd
	r.command = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		started = exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess", "--")
		started.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=ok")
		return started
	}
	require.NoError(t, r.Run(context.Background(), ToolIli2c, nil))
	assert.Equal(t, DefaultWaitDelay, started.WaitDelay)
}

func TestRedactArgs(t *testing.T) {
	in := []string{"--dbusr", "ili", "--dbpwd", "pw"}
	assert.Equal(t, []string{"--dbusr", "ili", "--dbpwd", "***"}, RedactArgs(in))
	assert.Equal(t, "pw", in[3])
}
