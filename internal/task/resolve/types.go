package resolve

// TaskDefinition is one named task as reported by a Provider.
type TaskDefinition struct {
	Name     string
	Triggers []TriggerSpec
}

// TriggerSpec is one trigger attached to a task. Only triggers with Schedule
// set carry interval expressions; other kinds (http, queue, ...) are kept so
// providers can report them, but resolution ignores them.
type TriggerSpec struct {
	Kind     string
	Schedule *ScheduleTrigger
}

// ScheduleTrigger carries one or more interval expressions and the payload
// passed to the task on every firing.
type ScheduleTrigger struct {
	Rates   []string
	Payload any
}

// ResolvedTask is a task/trigger pair with its expressions normalized.
// Crons keeps the source order of the trigger's rates.
type ResolvedTask struct {
	TaskName string
	Crons    []string
	Payload  any
}

// Tasks is the provider result. Order lists task names in the order they
// should be resolved; names present in Defs but missing from Order are
// resolved afterwards in lexical order.
type Tasks struct {
	Order []string
	Defs  map[string]TaskDefinition
}

// Provider returns the current task definitions. It is called once per
// scheduling run and never cached.
type Provider func() (Tasks, error)
