package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offsched/internal/config"
	"offsched/internal/provider"
	"offsched/internal/storage"
	"offsched/internal/task/invoke"
	"offsched/internal/task/scheduler"
)

const serverlessYML = `
service: billing
provider:
  name: aws
  stage: local
functions:
  nightly:
    handler: src/nightly.handler
    events:
      - schedule:
          rate: rate(1 day)
          input:
            kind: nightly
  poll:
    handler: src/poll.handler
    events:
      - schedule: rate(5 minutes)
  api:
    handler: src/api.handler
    events:
      - http:
          path: /
          method: get
`

type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) notice(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, msg)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func setup(t *testing.T, cfgBody string) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "serverless.yml"), []byte(serverlessYML), 0o644))
	cfgPath = filepath.Join(dir, "offsched.yaml")
	if cfgBody != "" {
		require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0o644))
	}
	return dir, cfgPath
}

func TestResolve(t *testing.T) {
	dir, cfgPath := setup(t, "")
	a, err := New(Options{
		ConfigPath: cfgPath,
		Overrides:  Overrides{Serverless: filepath.Join(dir, "serverless.yml")},
		Invoker:    invoke.Func(func(context.Context, string, any) ([]byte, error) { return nil, nil }),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	tasks, err := a.Resolve()
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "nightly", tasks[0].TaskName)
	assert.Equal(t, []string{"* * */1 * *"}, tasks[0].Crons)
	assert.Equal(t, "poll", tasks[1].TaskName)
	assert.Equal(t, []string{"*/5 * * * *"}, tasks[1].Crons)
}

func TestRun_ImmediateFiringsAndHistory(t *testing.T) {
	dir, cfgPath := setup(t, "")
	body := "serverless: " + filepath.Join(dir, "serverless.yml") + "\n" +
		"skip_functions: [poll]\n" +
		"storage:\n  driver: file\n  path: " + filepath.Join(dir, "history.jsonl") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	var (
		mu    sync.Mutex
		calls []string
	)
	inv := invoke.Func(func(_ context.Context, task string, _ any) ([]byte, error) {
		mu.Lock()
		calls = append(calls, task)
		mu.Unlock()
		return nil, nil
	})

	rec := &recorder{}
	runNow := true
	a, err := New(Options{
		ConfigPath: cfgPath,
		Overrides:  Overrides{RunImmediately: &runNow},
		Invoker:    inv,
		Notice:     rec.notice,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := a.Run(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return")
	}

	assert.Equal(t, []string{"nightly"}, calls)
	assert.Equal(t, []string{
		"Starting serverless-offline-schedule in standalone process. Press CTRL+C to stop.",
		`Scheduling [nightly] cron: [* * */1 * *] input: {"kind":"nightly"}`,
		"Running scheduled function immediately [nightly]",
		"Skipping scheduled function [poll]",
	}, rec.all())

	hist, err := a.History(context.Background(), "nightly", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.True(t, hist[0].Immediate)
	assert.True(t, hist[0].OK)
	assert.Equal(t, "* * */1 * *", hist[0].Schedule)
}

func TestHistory_Disabled(t *testing.T) {
	_, cfgPath := setup(t, "")
	a, err := New(Options{
		ConfigPath: cfgPath,
		Invoker:    invoke.Func(func(context.Context, string, any) ([]byte, error) { return nil, nil }),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.History(context.Background(), "", 5)
	require.True(t, errors.Is(err, storage.ErrDisabled))
}

func TestNoticesSurviveLogLevel(t *testing.T) {
	dir, cfgPath := setup(t, "")
	logPath := filepath.Join(dir, "offsched.log")
	body := "serverless: " + filepath.Join(dir, "serverless.yml") + "\n" +
		"logging:\n  level: error\n  console: false\n  file:\n    enabled: true\n    path: " + logPath + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	a, err := New(Options{
		ConfigPath: cfgPath,
		Invoker:    invoke.Func(func(context.Context, string, any) ([]byte, error) { return nil, nil }),
	})
	require.NoError(t, err)

	tasks, err := a.Resolve()
	require.NoError(t, err)
	require.NoError(t, a.Engine().Schedule(scheduler.Config{SkipTasks: []string{"nightly", "poll"}}, tasks))
	a.Engine().Stop(context.Background())
	require.NoError(t, a.Close())

	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"message":"Skipping scheduled function [nightly]"`)
	assert.Contains(t, string(b), `"message":"Skipping scheduled function [poll]"`)
	assert.NotContains(t, string(b), "schedules registered", "info lines stay filtered")
}

func TestNew_InvalidConfig(t *testing.T) {
	_, cfgPath := setup(t, "invoker:\n  kind: carrier-pigeon\n")
	_, err := New(Options{ConfigPath: cfgPath})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoker.kind")
}

func TestBuildInvoker(t *testing.T) {
	dir, _ := setup(t, "")
	cfg := config.Default()
	cfg.Invoker.Command = "npx"
	cfg.Invoker.Args = []string{"serverless"}
	cfg.Invoker.Extra = []string{"--stage", "local"}
	cfg.Invoker.Timeout = "30s"

	inv, err := buildInvoker(cfg, provider.File{Path: filepath.Join(dir, "serverless.yml")})
	require.NoError(t, err)
	assert.Equal(t, invoke.Exec{
		Command: "npx",
		Args:    []string{"serverless"},
		Extra:   []string{"--stage", "local"},
		Timeout: 30 * time.Second,
	}, inv)

	cfg.Invoker.Kind = "lambda"
	inv, err = buildInvoker(cfg, provider.File{Path: filepath.Join(dir, "serverless.yml")})
	require.NoError(t, err)
	assert.IsType(t, &invoke.Lambda{}, inv)

	_, err = buildInvoker(cfg, provider.File{Path: filepath.Join(dir, "missing.yml")})
	require.Error(t, err, "lambda prefix needs the serverless file")

	prefix := ""
	cfg.Invoker.NamePrefix = &prefix
	_, err = buildInvoker(cfg, provider.File{Path: filepath.Join(dir, "missing.yml")})
	require.NoError(t, err)
}

func TestApplyOverrides(t *testing.T) {
	base := config.Default()
	base.SkipFunctions = []string{"a"}
	off := false

	got := applyOverrides(base, Overrides{
		Serverless:     "other.yml",
		SkipFunctions:  []string{"b"},
		RunImmediately: &off,
		LogLevel:       "debug",
	})
	assert.Equal(t, "other.yml", got.Serverless)
	assert.Equal(t, []string{"a", "b"}, got.SkipFunctions)
	assert.False(t, got.RunImmediately)
	assert.Equal(t, "debug", got.Logging.Level)
	assert.Equal(t, []string{"a"}, base.SkipFunctions, "input untouched")
}
