package scheduler

import (
	"context"
	"fmt"
	"time"

	"offsched/internal/storage"
	"offsched/internal/task/invoke"
	logx "offsched/pkg/logx"
)

const historyWriteTimeout = 2 * time.Second

// fire performs one invocation attempt. Failures end here: they are reported
// through the notice sink and never reach the timer.
func (e *Engine) fire(task, spec string, payload any, immediate bool) {
	start := time.Now()
	err := e.invoke(task, payload)
	took := time.Since(start)

	if err != nil {
		e.notice(fmt.Sprintf("Failed to execute scheduled function: [%s] Error: %v", task, err))
		e.log.Warn("invocation failed", logx.String("task", task), logx.String("spec", spec),
			logx.Bool("immediate", immediate), logx.Duration("took", took), logx.Err(err))
	} else {
		if !immediate {
			e.notice(fmt.Sprintf("Succesfully invoked scheduled function: [%s]", task))
		}
		e.log.Debug("invocation finished", logx.String("task", task), logx.String("spec", spec),
			logx.Bool("immediate", immediate), logx.Duration("took", took))
	}
	e.record(task, spec, immediate, start, took, err)
}

func (e *Engine) invoke(task string, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &invoke.InvocationError{Task: task, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	_, err = e.invoker.Invoke(e.runCtx, task, payload)
	return invoke.AsInvocationError(task, err)
}

func (e *Engine) record(task, spec string, immediate bool, at time.Time, took time.Duration, err error) {
	if e.history == nil {
		return
	}
	f := storage.Firing{
		At:        at,
		Task:      task,
		Schedule:  spec,
		Immediate: immediate,
		OK:        err == nil,
		TookMS:    took.Milliseconds(),
	}
	if err != nil {
		f.Error = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()
	if werr := e.history.AppendFiring(ctx, f); werr != nil {
		e.log.Warn("history write failed", logx.String("task", task), logx.Err(werr))
	}
}
