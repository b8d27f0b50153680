package app

import (
	"fmt"
	"strings"

	"offsched/internal/config"
	"offsched/internal/provider"
	"offsched/internal/task/invoke"
)

func buildInvoker(cfg *config.Config, tasks provider.File) (invoke.Invoker, error) {
	ic := cfg.Invoker
	timeout, err := config.ParseDurationField("invoker.timeout", ic.Timeout)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(ic.Kind)) {
	case "", "exec":
		return invoke.Exec{
			Command: ic.Command,
			Args:    ic.Args,
			Extra:   ic.Extra,
			Dir:     ic.Dir,
			Env:     ic.Env,
			Timeout: timeout,
		}, nil
	case "lambda":
		prefix := ""
		if ic.NamePrefix != nil {
			prefix = *ic.NamePrefix
		} else {
			project, err := tasks.Load()
			if err != nil {
				return nil, fmt.Errorf("lambda invoker: %w", err)
			}
			prefix = project.FunctionPrefix()
		}
		return invoke.NewLambda(invoke.LambdaConfig{
			Endpoint:   ic.Endpoint,
			Region:     ic.Region,
			NamePrefix: prefix,
			Timeout:    timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown invoker.kind: %s", ic.Kind)
	}
}
