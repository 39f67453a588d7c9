package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-steps/pkg/steps"
	"github.com/askiada/go-steps/pkg/steps/config"
)

const pipelineYAML = `
pipeline:
  name: demo
  steps:
    - name: source
      uses: identity
      input_data: [raw]
    - name: scaled
      uses: scale
      with:
        factor: 3
      inputs:
        - step: source
      adapter:
        value: {from: source, key: value}
      cache: true
`

func newTestRegistry() *config.Registry {
	registry := config.NewRegistry()

	registry.Register("identity", func(map[string]any) (steps.Transformer, error) {
		return steps.Identity{}, nil
	})

	registry.Register("scale", func(cfg map[string]any) (steps.Transformer, error) {
		factor, ok := cfg["factor"].(int)
		if !ok {
			return nil, errors.New("scale requires an integer factor")
		}

		return steps.Lambda(func(_ context.Context, args steps.Output) (steps.Output, error) {
			value, ok := args["value"].(float64)
			if !ok {
				return nil, errors.Errorf("value must be a float64, got %T", args["value"])
			}

			return steps.Output{"value": value * float64(factor)}, nil
		}), nil
	})

	return registry
}

func TestBuildAndRun(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(pipelineYAML))
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Pipeline.Name)

	pipe, err := cfg.Build(newTestRegistry())
	require.NoError(t, err)

	scaled, ok := pipe.Step("scaled")
	require.True(t, ok)

	out, err := scaled.FitTransform(context.Background(), steps.Data{"raw": {"value": 2.0}})
	require.NoError(t, err)
	assert.Equal(t, steps.Output{"value": 6.0}, out)
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pipeline.yml")
	require.NoError(t, os.WriteFile(path, []byte(pipelineYAML), 0o644))

	cfg, err := config.LoadFromYAML(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Pipeline.Steps, 2)

	_, err = config.LoadFromYAML(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	type testCase struct {
		yaml        string
		expectedErr string
	}

	allCases := map[string]testCase{
		"unknown transformer": {
			yaml: `
pipeline:
  steps:
    - name: a
      uses: nonsense
`,
			expectedErr: "unknown transformer type",
		},
		"unknown input step": {
			yaml: `
pipeline:
  steps:
    - name: a
      uses: identity
      inputs:
        - step: later
    - name: later
      uses: identity
`,
			expectedErr: "unknown input step",
		},
		"ambiguous recipe": {
			yaml: `
pipeline:
  steps:
    - name: a
      uses: identity
      adapter:
        v: {from: b, key: x, const: 1}
`,
			expectedErr: "exactly one of",
		},
		"extract without key": {
			yaml: `
pipeline:
  steps:
    - name: a
      uses: identity
      adapter:
        v: {from: b}
`,
			expectedErr: "requires key",
		},
		"empty recipe": {
			yaml: `
pipeline:
  steps:
    - name: a
      uses: identity
      adapter:
        v: {}
`,
			expectedErr: "empty recipe",
		},
		"duplicate step": {
			yaml: `
pipeline:
  steps:
    - name: a
      uses: identity
    - name: a
      uses: identity
`,
			expectedErr: "step name already used",
		},
	}

	for name, tc := range allCases {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.Parse([]byte(tc.yaml))
			require.NoError(t, err)

			_, err = cfg.Build(newTestRegistry())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectedErr)
		})
	}
}

func TestStepPolicyFlags(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(`
pipeline:
  steps:
    - name: a
      uses: identity
      input_data: [raw]
      cache: true
      persist_output: true
      load_persisted_output: true
      force_fit: true
`))
	require.NoError(t, err)

	sc := cfg.Pipeline.Steps[0]
	assert.True(t, sc.Cache)
	assert.True(t, sc.PersistOutput)
	assert.True(t, sc.LoadPersistedOutput)
	assert.True(t, sc.ForceFit)

	pipe, err := cfg.Build(newTestRegistry())
	require.NoError(t, err)

	_, ok := pipe.Step("a")
	assert.True(t, ok)
}
