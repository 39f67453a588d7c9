package steps

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

type inputEdge struct {
	step    *Step
	adapter Adapter
}

// Step is a node of the pipeline graph: it owns a transformer and the
// orchestration policy around it. Steps are built once, at pipeline
// definition time; the topology is immutable afterwards. Persisted
// artifacts on disk outlive the in-memory object.
type Step struct {
	pipeline    *Pipeline
	name        string
	transformer Transformer

	pending   []*inputEdge
	inputs    []*inputEdge
	inputData []string
	adapter   Adapter

	cache         bool
	persistOutput bool
	loadPersisted bool
	forceFit      bool

	mu     sync.Mutex
	fitted bool
}

// Name returns the step identity, unique within its pipeline.
func (s *Step) Name() string { return s.name }

// Transformer exposes the wrapped transformer, so another step can share a
// fitted instance (a train step feeding a validation step is the typical
// case, combined with WithPrefitted).
func (s *Step) Transformer() Transformer { return s.transformer }

func (s *Step) isFitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fitted
}

func (s *Step) setFitted(fitted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = fitted
}

// AddInput binds an additional input edge after construction. It exists so
// graphs can be assembled in several phases; an edge that would close a
// cycle is rejected with ErrCycle before any computation can start.
func (s *Step) AddInput(parent *Step, opts ...InputOption) error {
	in := &inputEdge{step: parent}
	for _, opt := range opts {
		opt(in)
	}

	return s.bind(in)
}

func (s *Step) bind(in *inputEdge) error {
	if in.step == nil {
		return errors.Wrap(ErrInputMustBeSet, s.name)
	}

	if in.step.pipeline != s.pipeline {
		return errors.Wrapf(ErrPipelineMismatch, "edge %s -> %s", in.step.name, s.name)
	}

	err := s.pipeline.link(in.step.name, s.name)
	if err != nil {
		return err
	}

	s.inputs = append(s.inputs, in)

	return nil
}

// FitTransform recursively fits and transforms every upstream step not
// already cached, then this step, and returns its output. Fitted state is
// checkpointed to the store; outputs are cached or persisted per the step
// policy.
func (s *Step) FitTransform(ctx context.Context, data Data) (Output, error) {
	if s == nil || s.pipeline == nil {
		return nil, ErrPipelineMustBeSet
	}

	run := newRun(s.pipeline, data, true)

	return run.resolve(ctx, s)
}

// Transform performs the same traversal as FitTransform but never fits: a
// step whose transformer was neither fitted in this process nor
// checkpointed in the store fails with ErrNotFitted.
func (s *Step) Transform(ctx context.Context, data Data) (Output, error) {
	if s == nil || s.pipeline == nil {
		return nil, ErrPipelineMustBeSet
	}

	run := newRun(s.pipeline, data, false)

	return run.resolve(ctx, s)
}

// Reset clears the in-memory fitted state of this step and everything
// upstream of it, and invalidates their store entries, forcing full
// recomputation on the next call.
func (s *Step) Reset(ctx context.Context) error {
	if s == nil || s.pipeline == nil {
		return ErrPipelineMustBeSet
	}

	var errs error

	for _, st := range s.upstreamClosure() {
		st.setFitted(false)

		err := s.pipeline.store.Invalidate(ctx, st.name)
		errs = multierr.Append(errs, errors.Wrapf(err, "unable to invalidate step %s", st.name))
	}

	return errs
}

// upstreamClosure returns this step and every step upstream of it, each
// exactly once, in depth-first order.
func (s *Step) upstreamClosure() []*Step {
	var (
		closure []*Step
		visit   func(st *Step)
	)

	seen := make(map[string]struct{})

	visit = func(st *Step) {
		if _, ok := seen[st.name]; ok {
			return
		}

		seen[st.name] = struct{}{}

		for _, in := range st.inputs {
			visit(in.step)
		}

		closure = append(closure, st)
	}

	visit(s)

	return closure
}

// Structure describes the upstream graph of a step: every node (steps and
// raw input names) and every edge, sorted.
type Structure struct {
	Nodes []string
	Edges [][2]string
}

// Upstream builds the structure of the graph feeding this step, useful for
// debugging and for porting parts of a pipeline between problems together
// with Pipeline.Step.
func (s *Step) Upstream() Structure {
	nodes := make(map[string]struct{})
	edges := make(map[[2]string]struct{})

	for _, st := range s.upstreamClosure() {
		nodes[st.name] = struct{}{}

		for _, in := range st.inputs {
			edges[[2]string{in.step.name, st.name}] = struct{}{}
		}

		for _, name := range st.inputData {
			nodes[name] = struct{}{}
			edges[[2]string{name, st.name}] = struct{}{}
		}
	}

	structure := Structure{}

	for node := range nodes {
		structure.Nodes = append(structure.Nodes, node)
	}

	sort.Strings(structure.Nodes)

	for edge := range edges {
		structure.Edges = append(structure.Edges, edge)
	}

	sort.Slice(structure.Edges, func(i, j int) bool {
		if structure.Edges[i][0] != structure.Edges[j][0] {
			return structure.Edges[i][0] < structure.Edges[j][0]
		}

		return structure.Edges[i][1] < structure.Edges[j][1]
	})

	return structure
}
