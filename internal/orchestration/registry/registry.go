// internal/orchestration/registry/registry.go
package registry

import (
	"fmt"
	"os"

	"audit-orchestrator/internal/common/validation"
	"audit-orchestrator/internal/models"

	"gopkg.in/yaml.v3"
)

// Registry is the immutable, ordered set of handler descriptors.
type Registry struct {
	descriptors    []models.HandlerDescriptor
	index          map[models.HandlerID]int
	defaultHandler models.HandlerID
}

// File is the on-disk registry layout.
type File struct {
	DefaultHandler models.HandlerID           `yaml:"default_handler,omitempty"`
	Handlers       []models.HandlerDescriptor `yaml:"handlers"`
}

// New builds a registry from descriptors in the given order. defaultHandler must be one of them.
func New(descriptors []models.HandlerDescriptor, defaultHandler models.HandlerID) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("registry has no handlers")
	}

	r := &Registry{
		descriptors:    make([]models.HandlerDescriptor, len(descriptors)),
		index:          make(map[models.HandlerID]int, len(descriptors)),
		defaultHandler: defaultHandler,
	}

	for i, d := range descriptors {
		if d.ID == "" {
			return nil, fmt.Errorf("handler %d has no id", i)
		}
		if _, dup := r.index[d.ID]; dup {
			return nil, fmt.Errorf("duplicate handler id %q", d.ID)
		}
		for _, intent := range append(append([]models.Intent{}, d.PrimaryIntents...), d.SecondaryIntents...) {
			if !intent.IsValid() {
				return nil, fmt.Errorf("handler %q references unknown intent %q", d.ID, intent)
			}
		}
		if d.Weight == 0 {
			d.Weight = 1.0
		}
		if d.Index == "" {
			d.Index = string(d.ID)
		}
		r.descriptors[i] = copyDescriptor(d)
		r.index[d.ID] = i
	}

	if r.defaultHandler == "" {
		r.defaultHandler = descriptors[0].ID
	}
	if _, ok := r.index[r.defaultHandler]; !ok {
		return nil, fmt.Errorf("default handler %q is not registered", r.defaultHandler)
	}
	return r, nil
}

// Load reads and validates a registry YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return Parse(data)
}

// Parse validates raw registry YAML against the registry schema before decoding it.
func Parse(data []byte) (*Registry, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	result, err := validation.Registry.Validate(raw)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("invalid registry: %s", result.Summary())
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return New(file.Handlers, file.DefaultHandler)
}

// Descriptors returns a copy of all descriptors in registry order.
func (r *Registry) Descriptors() []models.HandlerDescriptor {
	out := make([]models.HandlerDescriptor, len(r.descriptors))
	for i, d := range r.descriptors {
		out[i] = copyDescriptor(d)
	}
	return out
}

func (r *Registry) Get(id models.HandlerID) (models.HandlerDescriptor, bool) {
	i, ok := r.index[id]
	if !ok {
		return models.HandlerDescriptor{}, false
	}
	return copyDescriptor(r.descriptors[i]), true
}

// IDs returns handler ids in registry order.
func (r *Registry) IDs() []models.HandlerID {
	ids := make([]models.HandlerID, len(r.descriptors))
	for i, d := range r.descriptors {
		ids[i] = d.ID
	}
	return ids
}

func (r *Registry) DefaultHandler() models.HandlerID {
	return r.defaultHandler
}

// Position returns the registry order of id, or -1.
func (r *Registry) Position(id models.HandlerID) int {
	if i, ok := r.index[id]; ok {
		return i
	}
	return -1
}

func (r *Registry) Len() int {
	return len(r.descriptors)
}

// Export renders the registry as YAML accepted by Load.
func (r *Registry) Export() ([]byte, error) {
	return yaml.Marshal(File{
		DefaultHandler: r.defaultHandler,
		Handlers:       r.Descriptors(),
	})
}

func copyDescriptor(d models.HandlerDescriptor) models.HandlerDescriptor {
	d.PrimaryIntents = append([]models.Intent(nil), d.PrimaryIntents...)
	d.SecondaryIntents = append([]models.Intent(nil), d.SecondaryIntents...)
	d.Keywords = append([]string(nil), d.Keywords...)
	return d
}
