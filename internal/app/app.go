package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"offsched/internal/config"
	"offsched/internal/provider"
	"offsched/internal/runtime/supervisor"
	"offsched/internal/storage"
	"offsched/internal/task/invoke"
	"offsched/internal/task/resolve"
	"offsched/internal/task/scheduler"
	logx "offsched/pkg/logx"
)

// Overrides are command-line values that win over the config file.
type Overrides struct {
	Serverless     string
	SkipFunctions  []string
	RunImmediately *bool
	LogLevel       string
}

// Options configures New. Invoker and Notice are mostly for tests.
type Options struct {
	ConfigPath string
	Overrides  Overrides
	Invoker    invoke.Invoker
	Notice     func(string)
}

type App struct {
	cfgm *config.Manager
	cfg  *config.Config
	over Overrides

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	tasks   provider.File
	invoker invoke.Invoker
	engine  *scheduler.Engine

	closeOnce sync.Once
}

func New(opt Options) (*App, error) {
	cfgm := config.NewManager(opt.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg = applyOverrides(cfg, opt.Overrides)
	cfgm.Commit(cfg)

	logSvc, log := logx.New(cfg.LogConfig())
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	sc, err := cfg.StorageConfig()
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	tasks := provider.File{Path: cfg.Serverless}

	inv := opt.Invoker
	if inv == nil {
		inv, err = buildInvoker(cfg, tasks)
		if err != nil {
			if store != nil {
				_ = store.Close()
			}
			_ = logSvc.Close()
			return nil, err
		}
	}

	notice := opt.Notice
	if notice == nil {
		noticeLog := log.With(logx.String("comp", "schedule"))
		notice = func(msg string) { noticeLog.Notice(msg) }
	}

	eng := scheduler.New(scheduler.Options{
		Notice:   notice,
		Log:      log,
		Provider: tasks.Tasks,
		Invoker:  inv,
		History:  store,
		Location: cfg.Location(),
	})

	return &App{
		cfgm:    cfgm,
		cfg:     cfg,
		over:    opt.Overrides,
		log:     log,
		logs:    logSvc,
		store:   store,
		tasks:   tasks,
		invoker: inv,
		engine:  eng,
	}, nil
}

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) Engine() *scheduler.Engine { return a.engine }

// Run schedules every task and blocks until SIGINT/SIGTERM or ctx is done.
// Only the logging section of the config file is applied while running.
func (a *App) Run(ctx context.Context) (os.Signal, error) {
	sup := supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))
	if _, err := os.Stat(a.cfgm.Path()); err == nil {
		sub := a.cfgm.Subscribe(8)
		sup.Go("config.watch", a.cfgm.Watch)
		sup.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			a.reloadLoop(c, sub)
		})
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sup.Stop(stopCtx); err != nil {
			a.log.Warn("background tasks did not stop cleanly", logx.Err(err))
		}
	}()

	return a.engine.RunStandalone(ctx, a.schedulerConfig())
}

// Resolve loads and resolves the task definitions without registering timers.
func (a *App) Resolve() ([]resolve.ResolvedTask, error) {
	return resolve.FromProvider(a.tasks.Tasks)
}

// History returns recent firings, newest first. It fails when storage is disabled.
func (a *App) History(ctx context.Context, task string, limit int) ([]storage.Firing, error) {
	if a.store == nil {
		return nil, fmt.Errorf("%w: set storage.driver in the config file", storage.ErrDisabled)
	}
	return a.store.Recent(ctx, task, limit)
}

func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.store != nil {
			err = a.store.Close()
		}
		if cerr := a.logs.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

func (a *App) schedulerConfig() scheduler.Config {
	return scheduler.Config{
		SkipTasks:      append([]string(nil), a.cfg.SkipFunctions...),
		RunImmediately: a.cfg.RunImmediately,
	}
}

func applyOverrides(cfg *config.Config, o Overrides) *config.Config {
	cp := *cfg
	if s := strings.TrimSpace(o.Serverless); s != "" {
		cp.Serverless = s
	}
	if len(o.SkipFunctions) > 0 {
		cp.SkipFunctions = append(append([]string(nil), cfg.SkipFunctions...), o.SkipFunctions...)
	}
	if o.RunImmediately != nil {
		cp.RunImmediately = *o.RunImmediately
	}
	if s := strings.TrimSpace(o.LogLevel); s != "" {
		cp.Logging.Level = s
	}
	return &cp
}
