package invoke

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Exec invokes a task through the serverless CLI:
//
//	<Command> <Args...> invoke local --function <task> --data <json> <Extra...>
type Exec struct {
	Command string   // default "serverless"
	Args    []string // inserted before "invoke", e.g. ["serverless"] when Command is "npx"
	Extra   []string // appended, e.g. ["--stage", "dev"]
	Dir     string
	Env     []string // added to the current environment
	Timeout time.Duration
}

func (x Exec) Invoke(ctx context.Context, task string, payload any) ([]byte, error) {
	data, err := EncodePayload(payload)
	if err != nil {
		return nil, &InvocationError{Task: task, Err: err}
	}
	if x.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.Timeout)
		defer cancel()
	}

	name := strings.TrimSpace(x.Command)
	if name == "" {
		name = "serverless"
	}
	args := append([]string(nil), x.Args...)
	args = append(args, "invoke", "local", "--function", task, "--data", string(data))
	args = append(args, x.Extra...)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = x.Dir
	if len(x.Env) > 0 {
		cmd.Env = append(os.Environ(), x.Env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return out.Bytes(), &InvocationError{
			Task:   task,
			Err:    fmt.Errorf("command failed: %s: %w", name, err),
			Output: out.Bytes(),
		}
	}
	return out.Bytes(), nil
}
