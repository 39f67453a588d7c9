package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type configuredTransformer struct {
	Identity
	config []byte
}

func (c *configuredTransformer) Fingerprint() ([]byte, error) { return c.config, nil }

func TestFingerprintValueIsDeterministic(t *testing.T) {
	t.Parallel()

	first, err := fingerprintValue(Output{"a": 1.0, "b": "x"})
	require.NoError(t, err)

	second, err := fingerprintValue(Output{"b": "x", "a": 1.0})
	require.NoError(t, err)

	assert.Equal(t, first, second)

	changed, err := fingerprintValue(Output{"a": 2.0, "b": "x"})
	require.NoError(t, err)

	assert.NotEqual(t, first, changed)
}

func TestFingerprintStep(t *testing.T) {
	t.Parallel()

	base := func() *Step {
		return &Step{name: "model", transformer: Identity{}}
	}

	digest := func(t *testing.T, s *Step, dataPrints, inputPrints []string) string {
		t.Helper()

		d, err := fingerprintStep(s, dataPrints, inputPrints)
		require.NoError(t, err)

		return d
	}

	reference := digest(t, base(), nil, nil)

	assert.Equal(t, reference, digest(t, base(), nil, nil))

	renamed := base()
	renamed.name = "other"
	assert.NotEqual(t, reference, digest(t, renamed, nil, nil))

	adapted := base()
	adapted.adapter = RecipeAdapter{"v": Extract("p", "x")}
	assert.NotEqual(t, reference, digest(t, adapted, nil, nil))

	withData := base()
	withData.inputData = []string{"raw"}
	assert.NotEqual(t, reference, digest(t, withData, []string{"abc"}, nil))
	assert.NotEqual(t,
		digest(t, withData, []string{"abc"}, nil),
		digest(t, withData, []string{"abd"}, nil))

	parent := &Step{name: "parent", transformer: Identity{}}
	withInput := base()
	withInput.inputs = []*inputEdge{{step: parent}}
	assert.NotEqual(t,
		digest(t, withInput, nil, []string{"abc"}),
		digest(t, withInput, nil, []string{"abd"}))
}

func TestFingerprintHonoursTransformerConfig(t *testing.T) {
	t.Parallel()

	first := &Step{name: "model", transformer: &configuredTransformer{config: []byte("alpha=1")}}
	second := &Step{name: "model", transformer: &configuredTransformer{config: []byte("alpha=2")}}

	d1, err := fingerprintStep(first, nil, nil)
	require.NoError(t, err)

	d2, err := fingerprintStep(second, nil, nil)
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}
