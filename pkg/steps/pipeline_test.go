package steps_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-steps/pkg/steps"
	"github.com/askiada/go-steps/pkg/steps/drawer"
	"github.com/askiada/go-steps/pkg/steps/measure"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := steps.New(steps.WithStore(nil))
	assert.EqualError(t, err, "store must be set")

	_, err = steps.New(steps.WithCodec(nil))
	assert.EqualError(t, err, "codec must be set")
}

func TestStepLookup(t *testing.T) {
	t.Parallel()

	pipe, err := steps.New()
	require.NoError(t, err)

	added, err := pipe.AddStep("a", steps.Identity{})
	require.NoError(t, err)

	got, ok := pipe.Step("a")
	assert.True(t, ok)
	assert.Same(t, added, got)

	_, ok = pipe.Step("absent")
	assert.False(t, ok)
}

func TestDrawWithoutDrawer(t *testing.T) {
	t.Parallel()

	pipe, err := steps.New()
	require.NoError(t, err)

	assert.EqualError(t, pipe.Draw(), "drawer must be set")
}

func TestMeasuredPipeline(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pipeline.gv")
	msr := measure.NewDefaultMeasure()

	pipe, err := steps.New(
		steps.WithMeasure(msr),
		steps.WithDrawer(drawer.NewSVGDrawer(path)),
	)
	require.NoError(t, err)

	source, err := pipe.AddStep("source", steps.Identity{}, steps.WithInputData("raw"))
	require.NoError(t, err)

	model, err := pipe.AddStep("model", newDoubler(), steps.WithInput(source), steps.WithCache())
	require.NoError(t, err)

	data := steps.Data{"raw": {"value": 2.0}}

	_, err = model.FitTransform(context.Background(), data)
	require.NoError(t, err)

	_, err = model.FitTransform(context.Background(), data)
	require.NoError(t, err)

	metric := msr.GetMetric("model")
	require.NotNil(t, metric)
	assert.Equal(t, int64(1), metric.Hits())
	assert.Equal(t, int64(1), metric.Misses())

	require.NoError(t, pipe.Draw())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(raw)
	assert.Contains(t, content, `"raw" -> "source"`)
	assert.Contains(t, content, `"source" -> "model"`)
	assert.Contains(t, content, "hits: 1")
}
