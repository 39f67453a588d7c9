// Package config builds pipelines from declarative YAML definitions,
// against a registry of named transformer builders.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/go-steps/pkg/steps"
)

// Config is the file-level pipeline definition.
type Config struct {
	Pipeline struct {
		Name  string       `yaml:"name"`
		Steps []StepConfig `yaml:"steps"`
	} `yaml:"pipeline"`
}

// StepConfig defines a single step. Inputs reference earlier steps by name,
// so definitions list steps in dependency order.
type StepConfig struct {
	Name                string                  `yaml:"name"`
	Uses                string                  `yaml:"uses"`
	With                map[string]any          `yaml:"with"`
	Inputs              []InputConfig           `yaml:"inputs"`
	InputData           []string                `yaml:"input_data"`
	Adapter             map[string]RecipeConfig `yaml:"adapter"`
	Cache               bool                    `yaml:"cache"`
	PersistOutput       bool                    `yaml:"persist_output"`
	LoadPersistedOutput bool                    `yaml:"load_persisted_output"`
	ForceFit            bool                    `yaml:"force_fit"`
}

// InputConfig is one input edge of a step.
type InputConfig struct {
	Step    string                  `yaml:"step"`
	Adapter map[string]RecipeConfig `yaml:"adapter"`
}

// RecipeConfig is the YAML form of an adapter recipe. Exactly one of the
// fields must be set:
//
//	{from: stepA, key: x}          extract one output value
//	{combine: [recipe, ...]}       collect recipes into a slice
//	{map: {k: recipe, ...}}        build a map of recipes
//	{const: value}                 pass the value through
type RecipeConfig struct {
	From    string                  `yaml:"from"`
	Key     string                  `yaml:"key"`
	Combine []RecipeConfig          `yaml:"combine"`
	Map     map[string]RecipeConfig `yaml:"map"`
	Const   any                     `yaml:"const"`
}

// LoadFromYAML reads a pipeline definition from a YAML file.
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read file %s", path)
	}

	return Parse(data)
}

// Parse reads a pipeline definition from YAML bytes.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	err := yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse yaml")
	}

	return cfg, nil
}

// Build assembles the pipeline: every step's transformer is created through
// the registry and wired with its inputs, adapters and policy flags.
func (c *Config) Build(registry *Registry, opts ...steps.PipelineOption) (*steps.Pipeline, error) {
	pipe, err := steps.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create pipeline")
	}

	for _, sc := range c.Pipeline.Steps {
		transformer, err := registry.Build(sc.Uses, sc.With)
		if err != nil {
			return nil, errors.Wrapf(err, "step %s", sc.Name)
		}

		stepOpts, err := sc.stepOptions(pipe)
		if err != nil {
			return nil, err
		}

		_, err = pipe.AddStep(sc.Name, transformer, stepOpts...)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to add step %s", sc.Name)
		}
	}

	return pipe, nil
}

func (sc *StepConfig) stepOptions(pipe *steps.Pipeline) ([]steps.StepOption, error) {
	var opts []steps.StepOption

	for _, in := range sc.Inputs {
		parent, ok := pipe.Step(in.Step)
		if !ok {
			return nil, errors.Errorf("step %s: unknown input step %s (steps must be listed in dependency order)", sc.Name, in.Step)
		}

		var inOpts []steps.InputOption

		if len(in.Adapter) > 0 {
			adapter, err := buildAdapter(in.Adapter)
			if err != nil {
				return nil, errors.Wrapf(err, "step %s: input %s", sc.Name, in.Step)
			}

			inOpts = append(inOpts, steps.WithEdgeAdapter(adapter))
		}

		opts = append(opts, steps.WithInput(parent, inOpts...))
	}

	if len(sc.InputData) > 0 {
		opts = append(opts, steps.WithInputData(sc.InputData...))
	}

	if len(sc.Adapter) > 0 {
		adapter, err := buildAdapter(sc.Adapter)
		if err != nil {
			return nil, errors.Wrapf(err, "step %s", sc.Name)
		}

		opts = append(opts, steps.WithAdapter(adapter))
	}

	if sc.Cache {
		opts = append(opts, steps.WithCache())
	}

	if sc.PersistOutput {
		opts = append(opts, steps.WithPersistOutput())
	}

	if sc.LoadPersistedOutput {
		opts = append(opts, steps.WithLoadPersistedOutput())
	}

	if sc.ForceFit {
		opts = append(opts, steps.WithForceFit())
	}

	return opts, nil
}

func buildAdapter(recipes map[string]RecipeConfig) (steps.Adapter, error) {
	adapter := steps.RecipeAdapter{}

	for name, rc := range recipes {
		recipe, err := rc.recipe()
		if err != nil {
			return nil, errors.Wrapf(err, "argument %q", name)
		}

		adapter[name] = recipe
	}

	return adapter, nil
}

func (rc *RecipeConfig) recipe() (steps.Recipe, error) {
	set := 0

	if rc.From != "" {
		set++
	}

	if len(rc.Combine) > 0 {
		set++
	}

	if len(rc.Map) > 0 {
		set++
	}

	if rc.Const != nil {
		set++
	}

	if set > 1 {
		return nil, errors.New("recipe must set exactly one of from, combine, map, const")
	}

	switch {
	case rc.From != "":
		if rc.Key == "" {
			return nil, errors.New("recipe with from requires key")
		}

		return steps.Extract(rc.From, rc.Key), nil
	case len(rc.Combine) > 0:
		recipes := make([]steps.Recipe, 0, len(rc.Combine))

		for _, sub := range rc.Combine {
			sub := sub

			recipe, err := sub.recipe()
			if err != nil {
				return nil, err
			}

			recipes = append(recipes, recipe)
		}

		return steps.Combine(recipes...), nil
	case len(rc.Map) > 0:
		recipes := make(map[string]steps.Recipe, len(rc.Map))

		for key, sub := range rc.Map {
			sub := sub

			recipe, err := sub.recipe()
			if err != nil {
				return nil, err
			}

			recipes[key] = recipe
		}

		return steps.MapOf(recipes), nil
	case rc.Const != nil:
		return steps.Constant(rc.Const), nil
	default:
		return nil, errors.New("empty recipe")
	}
}
