package drawer

import (
	"github.com/askiada/go-steps/pkg/steps/measure"
)

// Drawer is an interface that defines the methods for drawing a step graph.
type Drawer interface {
	// AddStep adds a step to the drawer.
	AddStep(stepName string) error
	// AddLink adds a link between a parent and a child step.
	AddLink(parentStepName, childStepName string) error
	// AddMeasure annotates the graph with execution metrics.
	AddMeasure(measure measure.Measure) error
	// Draw creates a file with the step graph.
	Draw() error
}
