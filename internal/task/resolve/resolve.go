package resolve

import (
	"fmt"
	"sort"

	"offsched/internal/task/schedule"
)

// Resolve flattens every schedule trigger of every task into a ResolvedTask.
//
// Tasks are visited in tasks.Order, triggers in declaration order. Tasks without
// schedule triggers contribute nothing. The first invalid expression aborts the
// whole resolution; the returned error wraps schedule.ErrInvalidExpression.
func Resolve(tasks Tasks) ([]ResolvedTask, error) {
	out := make([]ResolvedTask, 0, len(tasks.Defs))
	for _, name := range orderedNames(tasks) {
		def := tasks.Defs[name]
		for i, tr := range def.Triggers {
			if tr.Schedule == nil {
				continue
			}
			crons := make([]string, 0, len(tr.Schedule.Rates))
			for _, expr := range tr.Schedule.Rates {
				c, err := schedule.Normalize(expr)
				if err != nil {
					return nil, fmt.Errorf("task %q trigger %d: %w", name, i, err)
				}
				crons = append(crons, c)
			}
			payload := tr.Schedule.Payload
			if payload == nil {
				payload = map[string]any{}
			}
			out = append(out, ResolvedTask{TaskName: name, Crons: crons, Payload: payload})
		}
	}
	return out, nil
}

// FromProvider queries p once and resolves the result.
func FromProvider(p Provider) ([]ResolvedTask, error) {
	if p == nil {
		return nil, nil
	}
	tasks, err := p()
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return Resolve(tasks)
}

func orderedNames(tasks Tasks) []string {
	seen := make(map[string]bool, len(tasks.Defs))
	names := make([]string, 0, len(tasks.Defs))
	for _, n := range tasks.Order {
		if _, ok := tasks.Defs[n]; !ok || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	var rest []string
	for n := range tasks.Defs {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}
