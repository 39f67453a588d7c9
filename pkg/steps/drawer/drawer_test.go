package drawer_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-steps/pkg/steps/drawer"
	"github.com/askiada/go-steps/pkg/steps/measure"
)

func TestSVGDrawer(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pipeline.gv")
	d := drawer.NewSVGDrawer(path)

	require.NoError(t, d.AddStep("source"))
	require.NoError(t, d.AddStep("model"))
	require.NoError(t, d.AddLink("source", "model"))

	require.NoError(t, d.Draw())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(raw)
	assert.Contains(t, content, "digraph")
	assert.Contains(t, content, `"source" -> "model"`)
}

func TestSVGDrawerWithMeasure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pipeline.gv")
	d := drawer.NewSVGDrawer(path)

	require.NoError(t, d.AddStep("source"))
	require.NoError(t, d.AddStep("model"))
	require.NoError(t, d.AddLink("source", "model"))

	msr := measure.NewDefaultMeasure()
	msr.AddMetric("source").AddTransformDuration(5 * time.Millisecond)

	model := msr.AddMetric("model")
	model.AddFitDuration(100 * time.Millisecond)
	model.CacheHit()

	require.NoError(t, d.AddMeasure(msr))
	require.NoError(t, d.Draw())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(raw)
	assert.Contains(t, content, "fit: 100ms")
	assert.Contains(t, content, "hits: 1")
	assert.Contains(t, content, "color")
}
