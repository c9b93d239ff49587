package orchestrator

import (
	"fmt"

	"finance-agent/internal/models"
)

// Registry is the immutable set of tools built at process start.
type Registry struct {
	tools map[string]models.ToolDescriptor
	order []string
}

func NewRegistry(descriptors ...models.ToolDescriptor) (*Registry, error) {
	r := &Registry{tools: make(map[string]models.ToolDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, fmt.Errorf("tool descriptor without a name")
		}
		if d.Invoke == nil {
			return nil, fmt.Errorf("tool %s has no invoke function", d.Name)
		}
		if _, dup := r.tools[d.Name]; dup {
			return nil, fmt.Errorf("tool %s registered twice", d.Name)
		}
		if d.CostClass == "" {
			d.CostClass = models.CostClassDefault
		}
		r.tools[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (models.ToolDescriptor, bool) {
	d, ok := r.tools[name]
	return d, ok
}

// Names lists tools in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
