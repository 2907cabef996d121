package exec_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
	"github.com/m-mizutani/drover/pkg/infra/exec"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test relies on sh")
	}
}

func TestRunner_Run(t *testing.T) {
	skipOnWindows(t)
	ctx := context.Background()
	runner := exec.New()

	result, err := runner.Run(ctx, &model.Command{
		Script: "echo hello",
	})
	gt.NoError(t, err)
	gt.Equal(t, result.ExitCode, 0)
	gt.String(t, result.Output).Contains("hello")
	gt.Number(t, int64(result.Wall)).Greater(int64(0))
}

func TestRunner_Run_Env(t *testing.T) {
	skipOnWindows(t)
	ctx := context.Background()
	runner := exec.New()

	result, err := runner.Run(ctx, &model.Command{
		Script: "echo $GREETING",
		Env:    []string{"GREETING=howdy", "PATH=/usr/bin:/bin"},
	})
	gt.NoError(t, err)
	gt.String(t, result.Output).Contains("howdy")
}

func TestRunner_Run_WorkDir(t *testing.T) {
	skipOnWindows(t)
	ctx := context.Background()
	runner := exec.New()
	dir := t.TempDir()

	result, err := runner.Run(ctx, &model.Command{
		Script: "pwd",
		Dir:    dir,
	})
	gt.NoError(t, err)
	gt.String(t, result.Output).Contains(dir)
}

func TestRunner_Run_NonZeroExit(t *testing.T) {
	skipOnWindows(t)
	ctx := context.Background()
	runner := exec.New()

	result, err := runner.Run(ctx, &model.Command{
		Script: "echo oops >&2; exit 3",
	})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrStepFailed))
	gt.Value(t, result).NotNil()
	gt.Equal(t, result.ExitCode, 3)
	gt.String(t, result.Output).Contains("oops")
}

func TestRunner_Run_Timeout(t *testing.T) {
	skipOnWindows(t)
	ctx := context.Background()
	runner := exec.New()

	started := time.Now()
	_, err := runner.Run(ctx, &model.Command{
		Script:  "sleep 10",
		Timeout: 100 * time.Millisecond,
	})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrStepFailed))
	gt.True(t, time.Since(started) < 5*time.Second)
}
