package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"offsched/internal/storage"
	"offsched/internal/task/invoke"
	"offsched/internal/task/resolve"
	logx "offsched/pkg/logx"
)

// Config is the per-run configuration. It is snapshotted on every Start.
type Config struct {
	SkipTasks      []string
	RunImmediately bool
}

// Options wires the engine's collaborators.
type Options struct {
	// Notice receives human-readable notices. Nil writes to stdout.
	Notice   func(string)
	Log      logx.Logger
	Provider resolve.Provider
	Invoker  invoke.Invoker
	// History records firings when set. Write failures are only logged.
	History  storage.Store
	Location *time.Location
}

type scheduleDef struct {
	task    string
	spec    string
	index   int
	entryID cron.EntryID
}

// Engine owns timer registration and the firing lifecycle.
//
// Calls to Start, Schedule and RunStandalone must be serialized by the caller.
type Engine struct {
	mu sync.Mutex

	notice   func(string)
	log      logx.Logger
	provider resolve.Provider
	invoker  invoke.Invoker
	history  storage.Store
	loc      *time.Location

	parser cron.Parser
	c       *cron.Cron
	running bool
	stopped bool
	defs    []scheduleDef

	// handles keeps every registered entry, by task name then schedule index.
	// Nothing removes entries individually yet.
	handles map[string][]cron.EntryID

	// invocations run under runCtx; Stop cancels it after draining.
	runCtx    context.Context
	runCancel context.CancelFunc

	autoStart  bool
	waitSignal func(ctx context.Context) (os.Signal, error)
}

type ScheduleInfo struct {
	Task    string
	Spec    string
	Index   int
	EntryID cron.EntryID
	Next    time.Time
	Prev    time.Time
}

type Snapshot struct {
	Running   bool
	Timezone  string
	Schedules []ScheduleInfo
}
