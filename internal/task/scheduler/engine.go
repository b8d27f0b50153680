package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"offsched/internal/task/invoke"
	"offsched/internal/task/resolve"
	logx "offsched/pkg/logx"
)

var (
	ErrNoInvoker = errors.New("scheduler: invoker required")
	ErrStopped   = errors.New("scheduler: stopped")
)

func New(opt Options) *Engine {
	log := opt.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	notice := opt.Notice
	if notice == nil {
		notice = func(msg string) { fmt.Fprintln(os.Stdout, msg) }
	}
	loc := opt.Location
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		notice:     notice,
		log:        log.With(logx.String("component", "scheduler")),
		provider:   opt.Provider,
		invoker:    opt.Invoker,
		history:    opt.History,
		loc:        loc,
		parser:     cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		handles:    map[string][]cron.EntryID{},
		runCtx:     ctx,
		runCancel:  cancel,
		autoStart:  true,
		waitSignal: waitForTermination,
	}
}

// Start re-queries the task provider, resolves every schedule and registers it.
// An invalid expression aborts before anything is registered.
func (e *Engine) Start(ctx context.Context, cfg Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tasks, err := resolve.FromProvider(e.provider)
	if err != nil {
		return err
	}
	return e.Schedule(cfg, tasks)
}

// Schedule registers timers for already resolved tasks.
//
// For every task not in cfg.SkipTasks it emits one scheduling notice, then for
// each of its schedules runs the task once (cfg.RunImmediately) and registers
// a recurring timer. Timers start firing only after all tasks are registered.
// Every schedule is parsed first; an invalid one fails the call with nothing
// registered or run.
func (e *Engine) Schedule(cfg Config, tasks []resolve.ResolvedTask) error {
	if e.invoker == nil {
		return ErrNoInvoker
	}
	skip := make(map[string]struct{}, len(cfg.SkipTasks))
	for _, n := range cfg.SkipTasks {
		skip[n] = struct{}{}
	}
	runNow := cfg.RunImmediately

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrStopped
	}
	if e.c == nil {
		e.c = cron.New(
			cron.WithParser(e.parser),
			cron.WithLocation(e.loc),
			cron.WithLogger(cronLogger{log: e.log}),
			cron.WithChain(cron.Recover(cronLogger{log: e.log})),
		)
	}

	// Reject the whole batch before any notice, immediate run or timer.
	for _, t := range tasks {
		if _, ok := skip[t.TaskName]; ok {
			continue
		}
		for _, spec := range t.Crons {
			if _, err := e.parser.Parse(spec); err != nil {
				return fmt.Errorf("task %q: schedule %q: %w", t.TaskName, spec, err)
			}
		}
	}

	for _, t := range tasks {
		if _, ok := skip[t.TaskName]; ok {
			e.notice(fmt.Sprintf("Skipping scheduled function [%s]", t.TaskName))
			continue
		}
		e.notice(fmt.Sprintf("Scheduling [%s] cron: [%s] input: %s",
			t.TaskName, strings.Join(t.Crons, ","), payloadJSON(t.Payload)))

		for _, spec := range t.Crons {
			if runNow {
				e.notice(fmt.Sprintf("Running scheduled function immediately [%s]", t.TaskName))
				e.fire(t.TaskName, spec, t.Payload, true)
			}
			if err := e.registerLocked(t.TaskName, spec, t.Payload); err != nil {
				return err
			}
		}
	}

	if e.autoStart && !e.running {
		e.c.Start()
		e.running = true
	}
	e.log.Info("schedules registered", logx.Int("schedules", len(e.defs)), logx.String("tz", e.loc.String()))
	return nil
}

func (e *Engine) registerLocked(task, spec string, payload any) error {
	job := cron.FuncJob(func() { e.fire(task, spec, payload, false) })
	id, err := e.c.AddJob(spec, job)
	if err != nil {
		e.log.Error("schedule register failed", logx.String("task", task), logx.String("spec", spec), logx.Err(err))
		return fmt.Errorf("register %q (%s): %w", task, spec, err)
	}
	idx := len(e.handles[task])
	e.handles[task] = append(e.handles[task], id)
	e.defs = append(e.defs, scheduleDef{task: task, spec: spec, index: idx, entryID: id})

	if e.log.Enabled(logx.LevelDebug) {
		args := []logx.Field{logx.String("task", task), logx.String("spec", spec), logx.Int("entry", int(id))}
		if next := e.previewNextRuns(spec, 3); next != "" {
			args = append(args, logx.String("next", next))
		}
		e.log.Debug("schedule registered", args...)
	}
	return nil
}

// Handles returns the timer entries registered for task, in schedule order.
func (e *Engine) Handles(task string) []cron.EntryID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]cron.EntryID(nil), e.handles[task]...)
}

// Stop stops the timers and waits for running invocations until ctx is done.
// Registered entries are kept for inspection. Stop is final: later Schedule
// calls return ErrStopped.
func (e *Engine) Stop(ctx context.Context) {
	start := time.Now()
	e.mu.Lock()
	c := e.c
	e.running = false
	e.stopped = true
	e.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			e.log.Warn("stop timed out; cancelling running invocations")
		}
	}
	e.runCancel()
	e.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defs := append([]scheduleDef(nil), e.defs...)
	c := e.c
	running := e.running
	e.mu.Unlock()

	items := make([]ScheduleInfo, 0, len(defs))
	for _, d := range defs {
		it := ScheduleInfo{Task: d.task, Spec: d.spec, Index: d.index, EntryID: d.entryID}
		if c != nil {
			en := c.Entry(d.entryID)
			it.Next = en.Next
			it.Prev = en.Prev
		}
		items = append(items, it)
	}
	return Snapshot{Running: running, Timezone: e.loc.String(), Schedules: items}
}

// previewNextRuns returns the next n run times of spec, comma separated.
func (e *Engine) previewNextRuns(spec string, n int) string {
	sched, err := e.parser.Parse(spec)
	if err != nil {
		return ""
	}
	t := time.Now().In(e.loc)
	var b strings.Builder
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func payloadJSON(payload any) string {
	b, err := invoke.EncodePayload(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(b)
}
