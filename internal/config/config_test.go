package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "offsched.yaml"))
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Same(t, cfg, m.Get())
}

func TestParse_YAML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "offsched.yaml", `
serverless: ./api/serverless.yml
skip_functions: [cleanup, report]
run_immediately: true
timezone: UTC
invoker:
  kind: lambda
  endpoint: http://localhost:3002
  timeout: 30s
logging:
  level: debug
storage:
  driver: sqlite
  path: ./data/offsched.db
  busy_timeout: 5s
`)
	cfg, err := NewManager(p).Parse()
	require.NoError(t, err)

	assert.Equal(t, "./api/serverless.yml", cfg.Serverless)
	assert.Equal(t, []string{"cleanup", "report"}, cfg.SkipFunctions)
	assert.True(t, cfg.RunImmediately)
	assert.Equal(t, "lambda", cfg.Invoker.Kind)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Console, "console forced on when no sink is enabled")
	assert.Equal(t, time.UTC, cfg.Location())

	sc, err := cfg.StorageConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, 5*time.Second, sc.BusyTimeout)
}

func TestParse_JSONRejectsUnknownAndTrailing(t *testing.T) {
	dir := t.TempDir()

	_, err := NewManager(writeFile(t, dir, "a.json", `{"serverles": "x"}`)).Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")

	_, err = NewManager(writeFile(t, dir, "b.json", `{"serverless": "x"} {}`)).Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing data")
}

func TestParse_EmptyFileGetsDefaults(t *testing.T) {
	cfg, err := NewManager(writeFile(t, t.TempDir(), "offsched.yml", "")).Parse()
	require.NoError(t, err)
	assert.Equal(t, DefaultServerlessPath, cfg.Serverless)
	assert.Equal(t, "exec", cfg.Invoker.Kind)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"kind", func(c *Config) { c.Invoker.Kind = "http" }, "invoker.kind"},
		{"timeout", func(c *Config) { c.Invoker.Timeout = "soon" }, "invoker.timeout"},
		{"negative timeout", func(c *Config) { c.Invoker.Timeout = "-1s" }, "invoker.timeout"},
		{"timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"busy timeout", func(c *Config) { c.Storage = &StorageConfig{BusyTimeout: "x"} }, "storage.busy_timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mut(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
	require.NoError(t, Default().Validate())
}

func TestParseDurationField(t *testing.T) {
	d, err := ParseDurationField("x", "")
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = ParseDurationField("x", " 1m30s ")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
}

func TestSummarizeChange(t *testing.T) {
	oldCfg := Default()
	newCfg := Default()
	newCfg.Logging.Level = "debug"
	newCfg.SkipFunctions = []string{"a"}

	changed, attrs := SummarizeChange(oldCfg, newCfg)
	assert.Equal(t, []string{"skip_functions", "logging"}, changed)
	assert.NotEmpty(t, attrs)
	assert.Equal(t, []string{"skip_functions"}, RestartRequired(changed))

	changed, _ = SummarizeChange(oldCfg, Default())
	assert.Empty(t, changed)
}

func TestPublish_DropsOldestForSlowSubscriber(t *testing.T) {
	m := NewManager("unused.json")
	ch := m.Subscribe(1)
	first, second := Default(), Default()
	second.Logging.Level = "warn"

	m.publish(first)
	m.publish(second)

	got := <-ch
	assert.Same(t, second, got)

	m.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestWatch_PublishesChangedFile(t *testing.T) {
	if testing.Short() {
		t.Skip("filesystem watcher")
	}
	dir := t.TempDir()
	p := writeFile(t, dir, "offsched.yaml", "logging:\n  level: info\n")

	m := NewManager(p)
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "offsched.yaml", "logging:\n  level: debug\n")

	select {
	case cfg := <-ch:
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "debug", m.Get().Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
}

func TestReload_KeepsCurrentOnInvalidFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "offsched.json", `{"logging": {"level": "warn"}}`)
	m := NewManager(p)
	cur, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(1)

	writeFile(t, dir, "offsched.json", `{"invoker": {"kind": "ftp"}}`)
	m.reload()

	assert.Same(t, cur, m.Get())
	assert.Empty(t, ch)
}
