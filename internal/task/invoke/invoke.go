// Package invoke runs a scheduled task's business logic.
//
// The scheduler treats invokers as black boxes: no retries, no timeouts of its
// own. Exec shells out to the serverless CLI; Lambda calls the Lambda Invoke API
// of a locally running serverless-offline.
package invoke

import (
	"context"
	"errors"
)

// Invoker runs one task with the given payload.
type Invoker interface {
	Invoke(ctx context.Context, task string, payload any) ([]byte, error)
}

// Func adapts a plain function to Invoker.
type Func func(ctx context.Context, task string, payload any) ([]byte, error)

func (f Func) Invoke(ctx context.Context, task string, payload any) ([]byte, error) {
	return f(ctx, task, payload)
}

// InvocationError reports a failed invocation of Task.
type InvocationError struct {
	Task   string
	Err    error
	Output []byte
}

func (e *InvocationError) Error() string {
	if e == nil || e.Err == nil {
		return "invocation failed"
	}
	return e.Err.Error()
}

func (e *InvocationError) Unwrap() error { return e.Err }

// AsInvocationError wraps err for task unless it already is an InvocationError.
func AsInvocationError(task string, err error) error {
	if err == nil {
		return nil
	}
	var ie *InvocationError
	if errors.As(err, &ie) {
		return err
	}
	return &InvocationError{Task: task, Err: err}
}
