// Package provider reads task definitions from a serverless.yml file.
package provider

import (
	"fmt"
	"os"
	"strings"

	yaml "go.yaml.in/yaml/v3"

	"offsched/internal/task/invoke"
	"offsched/internal/task/resolve"
)

// Project is the subset of a serverless.yml the scheduler needs.
type Project struct {
	Service string
	Stage   string
	Tasks   resolve.Tasks
}

// FunctionPrefix is the deployed-name prefix serverless gives every function
// ("<service>-<stage>-"). It is empty when the service name is unknown.
func (p Project) FunctionPrefix() string {
	if p.Service == "" {
		return ""
	}
	stage := p.Stage
	if stage == "" {
		stage = "dev"
	}
	return p.Service + "-" + stage + "-"
}

// File reads Path on every call, so edits are picked up by the next Start.
type File struct {
	Path string
}

func (f File) Load() (Project, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return Project{}, err
	}
	p, err := Parse(b)
	if err != nil {
		return Project{}, fmt.Errorf("%s: %w", f.Path, err)
	}
	return p, nil
}

// Tasks satisfies resolve.Provider.
func (f File) Tasks() (resolve.Tasks, error) {
	p, err := f.Load()
	if err != nil {
		return resolve.Tasks{}, err
	}
	return p.Tasks, nil
}

// Parse decodes a serverless.yml document. Functions keep their file order.
func Parse(data []byte) (Project, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Project{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	p := Project{Tasks: resolve.Tasks{Defs: map[string]resolve.TaskDefinition{}}}
	if len(root.Content) == 0 {
		return p, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return Project{}, fmt.Errorf("top level must be a mapping")
	}

	if svc := mappingValue(doc, "service"); svc != nil {
		p.Service = serviceName(svc)
	}
	if prov := mappingValue(doc, "provider"); prov != nil {
		if st := mappingValue(prov, "stage"); st != nil && st.Kind == yaml.ScalarNode {
			p.Stage = st.Value
		}
	}

	fns := mappingValue(doc, "functions")
	if fns == nil {
		return p, nil
	}
	if fns.Kind != yaml.MappingNode {
		return Project{}, fmt.Errorf("functions must be a mapping")
	}
	for i := 0; i+1 < len(fns.Content); i += 2 {
		name := fns.Content[i].Value
		def, err := parseFunction(name, fns.Content[i+1])
		if err != nil {
			return Project{}, err
		}
		if _, dup := p.Tasks.Defs[name]; !dup {
			p.Tasks.Order = append(p.Tasks.Order, name)
		}
		p.Tasks.Defs[name] = def
	}
	return p, nil
}

type functionDoc struct {
	Events []yaml.Node `yaml:"events"`
}

type scheduleDoc struct {
	Rate  stringList `yaml:"rate"`
	Input yaml.Node  `yaml:"input"`
}

func parseFunction(name string, n *yaml.Node) (resolve.TaskDefinition, error) {
	def := resolve.TaskDefinition{Name: name}
	var fd functionDoc
	if err := n.Decode(&fd); err != nil {
		return def, fmt.Errorf("function %q: %w", name, err)
	}
	for i := range fd.Events {
		ev := &fd.Events[i]
		if ev.Kind != yaml.MappingNode || len(ev.Content) < 2 {
			continue
		}
		kind := ev.Content[0].Value
		if kind != "schedule" {
			def.Triggers = append(def.Triggers, resolve.TriggerSpec{Kind: kind})
			continue
		}
		st, err := parseSchedule(ev.Content[1])
		if err != nil {
			return def, fmt.Errorf("function %q event %d: %w", name, i, err)
		}
		def.Triggers = append(def.Triggers, resolve.TriggerSpec{Kind: kind, Schedule: st})
	}
	return def, nil
}

// parseSchedule accepts both "schedule: rate(...)" and the object form.
func parseSchedule(n *yaml.Node) (*resolve.ScheduleTrigger, error) {
	if n.Kind == yaml.ScalarNode {
		return &resolve.ScheduleTrigger{Rates: []string{n.Value}}, nil
	}
	var sd scheduleDoc
	if err := n.Decode(&sd); err != nil {
		return nil, err
	}
	if len(sd.Rate) == 0 {
		return nil, fmt.Errorf("schedule without rate")
	}
	input, err := nodeValue(&sd.Input)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	return &resolve.ScheduleTrigger{Rates: sd.Rate, Payload: input}, nil
}

// nodeValue decodes n keeping mapping keys in source order (invoke.Object).
// A zero node (absent key) yields nil.
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		obj := make(invoke.Object, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, vn := n.Content[i], n.Content[i+1]
			v, err := nodeValue(vn)
			if err != nil {
				return nil, err
			}
			if k.ShortTag() == "!!merge" {
				if merged, ok := v.(invoke.Object); ok {
					obj = append(obj, merged...)
				}
				continue
			}
			obj = append(obj, invoke.Member{Key: k.Value, Value: v})
		}
		return obj, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
}

// stringList decodes either a scalar or a sequence of scalars.
type stringList []string

func (s *stringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*s = stringList{n.Value}
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := n.Decode(&out); err != nil {
			return err
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("line %d: rate must be a string or a list of strings", n.Line)
	}
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func serviceName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return strings.TrimSpace(n.Value)
	case yaml.MappingNode:
		if v := mappingValue(n, "name"); v != nil {
			return strings.TrimSpace(v.Value)
		}
	}
	return ""
}
