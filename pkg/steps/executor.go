package steps

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/askiada/go-steps/pkg/steps/store"
)

// run is the state of one top-level invocation: resolved outputs and
// fingerprints are memoized here, so a step referenced by several children
// computes at most once per call. Resolution is synchronous depth-first
// recursion; transformers may have ordering-sensitive side effects, so a
// step only runs once its inputs are fully materialised.
type run struct {
	pipe       *Pipeline
	data       Data
	fit        bool
	outputs    map[string]Output
	prints     map[string]string
	dataPrints map[string]string
}

func newRun(pipe *Pipeline, data Data, fit bool) *run {
	return &run{
		pipe:       pipe,
		data:       data,
		fit:        fit,
		outputs:    make(map[string]Output),
		prints:     make(map[string]string),
		dataPrints: make(map[string]string),
	}
}

func (r *run) resolve(ctx context.Context, s *Step) (Output, error) {
	if out, ok := r.outputs[s.name]; ok {
		return out, nil
	}

	log := r.pipe.log.WithValues("step", s.name)

	parents := make(Data, len(s.inputData)+len(s.inputs))
	dataPrints := make([]string, len(s.inputData))

	for i, name := range s.inputData {
		part, ok := r.data[name]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownInput, "step %s: %q", s.name, name)
		}

		parents[name] = part

		digest, ok := r.dataPrints[name]
		if !ok {
			var err error

			digest, err = fingerprintValue(part)
			if err != nil {
				return nil, errors.Wrapf(err, "step %s: unable to fingerprint input %q", s.name, name)
			}

			r.dataPrints[name] = digest
		}

		dataPrints[i] = digest
	}

	inputPrints := make([]string, len(s.inputs))

	for i, in := range s.inputs {
		out, err := r.resolve(ctx, in.step)
		if err != nil {
			return nil, err
		}

		if in.adapter != nil {
			out, err = in.adapter.Adapt(Data{in.step.name: out})
			if err != nil {
				return nil, errors.Wrapf(err, "step %s: input %s", s.name, in.step.name)
			}
		}

		parents[in.step.name] = out
		inputPrints[i] = r.prints[in.step.name]
	}

	digest, err := fingerprintStep(s, dataPrints, inputPrints)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to fingerprint step %s", s.name)
	}

	r.prints[s.name] = digest

	out, err := r.execute(ctx, s, store.Key{Step: s.name, Fingerprint: digest}, parents, log)
	if err != nil {
		return nil, err
	}

	r.outputs[s.name] = out

	return out, nil
}

func (r *run) execute(ctx context.Context, s *Step, key store.Key, parents Data, log logr.Logger) (Output, error) {
	transformer := s.transformer
	_, stateless := transformer.(Stateless)
	metric := r.pipe.metric(s.name)

	// Serve the cached output when its fingerprint still matches the
	// resolved inputs. A stored entry whose fingerprint differs is never
	// returned.
	if !s.forceFit && (s.cache || s.loadPersisted) {
		entry := r.lookup(ctx, key, log)
		if entry != nil && entry.Output != nil {
			out, err := r.pipe.codec.Unmarshal(entry.Output)
			if err != nil {
				log.Error(err, "cached output unreadable, recomputing")
			} else {
				if !stateless && len(entry.State) > 0 {
					lerr := transformer.Load(entry.State)
					if lerr != nil {
						log.Error(lerr, "checkpoint unreadable, ignoring")
					} else {
						s.setFitted(true)
					}
				}

				if metric != nil {
					metric.CacheHit()
				}

				log.V(1).Info("serving cached output")

				return out, nil
			}
		}

		if metric != nil {
			metric.CacheMiss()
		}
	}

	needFit := r.fit && !stateless

	if needFit && !s.forceFit {
		if s.isFitted() {
			needFit = false
		} else if entry := r.head(ctx, s.name, log); entry != nil && len(entry.State) > 0 {
			err := transformer.Load(entry.State)
			if err != nil {
				log.Error(err, "checkpoint unreadable, refitting")
			} else {
				s.setFitted(true)
				needFit = false

				log.V(1).Info("loaded checkpoint")
			}
		}
	}

	if !r.fit && !stateless && !s.isFitted() {
		entry := r.head(ctx, s.name, log)
		if entry == nil || len(entry.State) == 0 {
			return nil, errors.Wrap(ErrNotFitted, s.name)
		}

		err := transformer.Load(entry.State)
		if err != nil {
			return nil, errors.Wrapf(ErrNotFitted, "step %s: unable to load checkpoint: %v", s.name, err)
		}

		s.setFitted(true)

		log.V(1).Info("loaded checkpoint")
	}

	log.V(1).Info("adapting inputs")

	args, err := r.adapt(s, parents)
	if err != nil {
		return nil, err
	}

	var out Output

	if needFit {
		log.V(1).Info("fitting and transforming")

		start := time.Now()
		out, err = fitTransform(ctx, transformer, args)

		if metric != nil {
			metric.AddFitDuration(time.Since(start))
		}

		if err != nil {
			return nil, transformerError(s.name, err)
		}

		s.setFitted(true)
	} else {
		log.V(1).Info("transforming")

		start := time.Now()
		out, err = transformer.Transform(ctx, args)

		if metric != nil {
			metric.AddTransformDuration(time.Since(start))
		}

		if err != nil {
			return nil, transformerError(s.name, err)
		}
	}

	err = r.persist(ctx, s, key, out, stateless, log)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func fitTransform(ctx context.Context, transformer Transformer, args Output) (Output, error) {
	if ft, ok := transformer.(FitTransformer); ok {
		return ft.FitTransform(ctx, args)
	}

	err := transformer.Fit(ctx, args)
	if err != nil {
		return nil, err
	}

	return transformer.Transform(ctx, args)
}

// adapt reshapes the resolved inputs into the transformer arguments, with
// the step adapter or the default unpack-merge, and validates the declared
// arity.
func (r *run) adapt(s *Step, parents Data) (Output, error) {
	var (
		args Output
		err  error
	)

	if s.adapter != nil {
		args, err = s.adapter.Adapt(parents)
		if err != nil {
			return nil, errors.Wrapf(err, "step %s", s.name)
		}
	} else {
		args, err = unpack(s.name, parents)
		if err != nil {
			return nil, err
		}
	}

	if arity, ok := s.transformer.(Arity); ok {
		for _, k := range arity.InputKeys() {
			if _, ok := args[k]; !ok {
				return nil, errors.Wrapf(ErrAdapterMismatch, "step %s: transformer requires input %q", s.name, k)
			}
		}
	}

	return args, nil
}

// persist checkpoints the fitted state and, per policy, the output. Policy
// flags off and a stateless transformer means nothing to write.
func (r *run) persist(ctx context.Context, s *Step, key store.Key, out Output, stateless bool, log logr.Logger) error {
	wantOutput := s.cache || s.persistOutput

	if stateless && !wantOutput {
		return nil
	}

	entry := &store.Entry{
		Fingerprint: key.Fingerprint,
		CreatedAt:   time.Now(),
	}

	if !stateless {
		state, err := s.transformer.Save()
		if err != nil {
			return transformerError(s.name, err)
		}

		entry.State = state
	}

	if wantOutput {
		blob, err := r.pipe.codec.Marshal(out)
		if err != nil {
			return errors.Wrapf(err, "step %s: unable to encode output", s.name)
		}

		entry.Output = blob
	}

	log.V(1).Info("persisting")

	return errors.Wrapf(r.pipe.store.Put(ctx, key, entry), "step %s: unable to persist", s.name)
}

// lookup fetches the entry matching the key. Any store failure, corruption
// included, degrades to a cache miss; corruption is reported, never fatal.
func (r *run) lookup(ctx context.Context, key store.Key, log logr.Logger) *store.Entry {
	entry, err := r.pipe.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error(err, "cache read failed, recomputing")
		}

		return nil
	}

	if entry.Fingerprint != key.Fingerprint {
		return nil
	}

	return entry
}

// head fetches whatever entry is stored for the step, fingerprint aside.
// Used for checkpoint resume, where the fitted state is valid across runs
// on different data.
func (r *run) head(ctx context.Context, step string, log logr.Logger) *store.Entry {
	entry, err := r.pipe.store.Head(ctx, step)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error(err, "checkpoint read failed", "step", step)
		}

		return nil
	}

	return entry
}
