package config

import (
	"github.com/pkg/errors"

	"github.com/askiada/go-steps/pkg/steps"
)

// Builder creates a transformer from its configuration block.
type Builder func(cfg map[string]any) (steps.Transformer, error)

// Registry maps transformer type names, as referenced by pipeline
// definitions, to their builders.
type Registry struct {
	builders map[string]Builder
}

func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]Builder),
	}
}

// Register adds a builder under a type name. Registering the same name
// twice replaces the previous builder.
func (r *Registry) Register(name string, builder Builder) {
	r.builders[name] = builder
}

// Build creates a transformer of the given type.
func (r *Registry) Build(name string, cfg map[string]any) (steps.Transformer, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, errors.Errorf("unknown transformer type: %s", name)
	}

	return builder(cfg)
}
