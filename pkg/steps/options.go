package steps

import (
	"github.com/go-logr/logr"

	"github.com/askiada/go-steps/pkg/steps/drawer"
	"github.com/askiada/go-steps/pkg/steps/measure"
	"github.com/askiada/go-steps/pkg/steps/store"
)

type PipelineOption func(p *Pipeline)

// WithStore sets the persistence store backing caching and checkpointing.
// The default is an in-memory store that does not survive a restart.
func WithStore(st store.Store) PipelineOption {
	return func(p *Pipeline) {
		p.store = st
	}
}

// WithCodec sets the codec used to serialise step outputs.
func WithCodec(c Codec) PipelineOption {
	return func(p *Pipeline) {
		p.codec = c
	}
}

// WithLogger sets the logger the engine reports progress and cache
// recoveries through. The default discards everything.
func WithLogger(log logr.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithMeasure records per-step durations and cache counters.
func WithMeasure(m measure.Measure) PipelineOption {
	return func(p *Pipeline) {
		p.measure = m
	}
}

// WithDrawer registers every step and link with a drawer, so the pipeline
// can be rendered with Draw.
func WithDrawer(d drawer.Drawer) PipelineOption {
	return func(p *Pipeline) {
		p.drawer = d
	}
}

type StepOption func(s *Step)

// WithInput declares a named input edge from parent.
func WithInput(parent *Step, opts ...InputOption) StepOption {
	return func(s *Step) {
		in := &inputEdge{step: parent}
		for _, opt := range opts {
			opt(in)
		}

		s.pending = append(s.pending, in)
	}
}

// WithInputData declares which parts of the raw invocation data the step
// consumes, by name.
func WithInputData(names ...string) StepOption {
	return func(s *Step) {
		s.inputData = append(s.inputData, names...)
	}
}

// WithAdapter sets the adapter reshaping all resolved inputs into the
// transformer arguments. Without it the inputs are unpack-merged.
func WithAdapter(a Adapter) StepOption {
	return func(s *Step) {
		s.adapter = a
	}
}

// WithCache enables store lookups for the step output.
func WithCache() StepOption {
	return func(s *Step) {
		s.cache = true
	}
}

// WithPersistOutput writes the transform output to the store, not just the
// fitted state.
func WithPersistOutput() StepOption {
	return func(s *Step) {
		s.persistOutput = true
	}
}

// WithLoadPersistedOutput serves a persisted output when its fingerprint
// still matches the current inputs.
func WithLoadPersistedOutput() StepOption {
	return func(s *Step) {
		s.loadPersisted = true
	}
}

// WithForceFit bypasses the cache and always refits the transformer,
// overwriting any stored entry.
func WithForceFit() StepOption {
	return func(s *Step) {
		s.forceFit = true
	}
}

// WithPrefitted marks the transformer as already fitted, typically because
// another step fitted the shared instance earlier in the same run.
func WithPrefitted() StepOption {
	return func(s *Step) {
		s.fitted = true
	}
}

type InputOption func(in *inputEdge)

// WithEdgeAdapter reshapes this parent's output before it is merged with
// the other inputs. The adapter receives the parent output under the parent
// step name.
func WithEdgeAdapter(a Adapter) InputOption {
	return func(in *inputEdge) {
		in.adapter = a
	}
}
