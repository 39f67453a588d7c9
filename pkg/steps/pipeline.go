package steps

import (
	"context"

	"github.com/dominikbraun/graph"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-steps/pkg/steps/drawer"
	"github.com/askiada/go-steps/pkg/steps/measure"
	"github.com/askiada/go-steps/pkg/steps/store"
)

// Pipeline owns the step registry and everything steps share: the
// persistence store, the output codec, the logger and the optional metrics
// and drawer. It is passed around explicitly, so independent pipelines stay
// independently testable and can point at different stores.
type Pipeline struct {
	store   store.Store
	codec   Codec
	log     logr.Logger
	graph   graph.Graph[string, string]
	steps   map[string]*Step
	measure measure.Measure
	drawer  drawer.Drawer

	drawnData map[string]struct{}
}

// New creates a new pipeline. Without options it caches in memory, encodes
// outputs as JSON and logs nothing.
func New(opts ...PipelineOption) (*Pipeline, error) {
	pipe := &Pipeline{
		store:     store.NewMemory(),
		codec:     JSONCodec{},
		log:       logr.Discard(),
		graph:     graph.New(graph.StringHash, graph.Directed(), graph.Acyclic(), graph.PreventCycles()),
		steps:     make(map[string]*Step),
		drawnData: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(pipe)
	}

	if pipe.store == nil {
		return nil, errors.New("store must be set")
	}

	if pipe.codec == nil {
		return nil, errors.New("codec must be set")
	}

	return pipe, nil
}

// AddStep registers a step under a unique name. Input edges are checked as
// they are added: an unknown parent, a duplicate name or an edge closing a
// cycle fails here, before any computation.
func (p *Pipeline) AddStep(name string, transformer Transformer, opts ...StepOption) (*Step, error) {
	if p == nil {
		return nil, ErrPipelineMustBeSet
	}

	if transformer == nil {
		return nil, errors.Wrap(ErrTransformerMustBeSet, name)
	}

	step := &Step{
		pipeline:    p,
		name:        name,
		transformer: transformer,
	}

	for _, opt := range opts {
		opt(step)
	}

	err := p.graph.AddVertex(name)
	if err != nil {
		if errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, errors.Wrap(ErrStepAlreadyExists, name)
		}

		return nil, errors.Wrapf(err, "unable to add step %s", name)
	}

	if p.drawer != nil {
		err = p.drawer.AddStep(name)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to draw step %s", name)
		}
	}

	pending := step.pending
	step.pending = nil

	for _, in := range pending {
		err = step.bind(in)
		if err != nil {
			return nil, err
		}
	}

	for _, dataName := range step.inputData {
		err = p.drawData(dataName, name)
		if err != nil {
			return nil, err
		}
	}

	if p.measure != nil {
		p.measure.AddMetric(name)
	}

	p.steps[name] = step

	return step, nil
}

// Step looks up a registered step by name. Any step of a pipeline is a
// fully functional pipeline as well.
func (p *Pipeline) Step(name string) (*Step, bool) {
	step, ok := p.steps[name]

	return step, ok
}

// link records an edge in the DAG. The graph refuses edges that would close
// a cycle, which is the construction-time cycle check.
func (p *Pipeline) link(parentName, childName string) error {
	err := p.graph.AddEdge(parentName, childName)

	switch {
	case errors.Is(err, graph.ErrEdgeCreatesCycle):
		return errors.Wrapf(ErrCycle, "edge %s -> %s", parentName, childName)
	case err != nil:
		return errors.Wrapf(err, "unable to add edge %s -> %s", parentName, childName)
	}

	if p.drawer != nil {
		err = p.drawer.AddLink(parentName, childName)
		if err != nil {
			return errors.Wrapf(err, "unable to draw edge %s -> %s", parentName, childName)
		}
	}

	return nil
}

// drawData registers a raw input node with the drawer. Raw inputs are not
// steps; they only exist in the rendered graph.
func (p *Pipeline) drawData(dataName, stepName string) error {
	if p.drawer == nil {
		return nil
	}

	if _, ok := p.drawnData[dataName]; !ok {
		err := p.drawer.AddStep(dataName)
		if err != nil {
			return errors.Wrapf(err, "unable to draw input %s", dataName)
		}

		p.drawnData[dataName] = struct{}{}
	}

	err := p.drawer.AddLink(dataName, stepName)
	if err != nil {
		return errors.Wrapf(err, "unable to draw edge %s -> %s", dataName, stepName)
	}

	return nil
}

// Draw renders the pipeline graph, annotated with metrics when a measure is
// configured.
func (p *Pipeline) Draw() error {
	if p.drawer == nil {
		return errors.New("drawer must be set")
	}

	if p.measure != nil {
		err := p.drawer.AddMeasure(p.measure)
		if err != nil {
			return errors.Wrap(err, "unable to add measure to drawer")
		}
	}

	err := p.drawer.Draw()
	if err != nil {
		return errors.Wrap(err, "unable to draw pipeline")
	}

	return nil
}

// Preload warms every transformer from its checkpoint in the store,
// concurrently. It only reads, so it is safe to run alongside other
// processes sharing the store; a missing or corrupt checkpoint is simply
// skipped. Steps sharing one transformer instance are grouped, so a shared
// instance is loaded by exactly one goroutine.
func (p *Pipeline) Preload(ctx context.Context) error {
	grp, ctx := errgroup.WithContext(ctx)

	groups := make(map[Transformer][]*Step, len(p.steps))

	for _, step := range p.steps {
		if _, ok := step.transformer.(Stateless); ok {
			continue
		}

		groups[step.transformer] = append(groups[step.transformer], step)
	}

	for _, group := range groups {
		group := group

		grp.Go(func() error {
			for _, step := range group {
				entry, err := p.store.Head(ctx, step.name)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						continue
					}

					var corrupt *store.CorruptionError
					if errors.As(err, &corrupt) {
						p.log.Error(err, "skipping corrupt checkpoint", "step", step.name)

						continue
					}

					return errors.Wrapf(err, "unable to preload step %s", step.name)
				}

				if len(entry.State) == 0 {
					continue
				}

				err = step.transformer.Load(entry.State)
				if err != nil {
					p.log.Error(err, "skipping unreadable checkpoint", "step", step.name)

					continue
				}

				for _, st := range group {
					st.setFitted(true)
				}

				p.log.V(1).Info("loaded checkpoint", "step", step.name)

				return nil
			}

			return nil
		})
	}

	return grp.Wait()
}

// metric returns the metric for a step, or nil when measuring is off.
func (p *Pipeline) metric(name string) measure.Metric {
	if p.measure == nil {
		return nil
	}

	return p.measure.AllMetrics()[name]
}
