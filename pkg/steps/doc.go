// Package steps provides a small engine for composing experimental
// data-processing pipelines out of reusable computational units.
//
// A pipeline is a directed acyclic graph of steps. Each step wraps a
// Transformer, a user-supplied unit exposing fit and transform semantics,
// and adds the orchestration the computational code should not care about:
// output caching keyed by a content fingerprint, checkpointing of fitted
// state, persistence of intermediate results and input adaptation between
// steps.
//
// Calling FitTransform or Transform on a step resolves all of its upstream
// steps depth first, computing each step at most once per invocation. A step
// whose cached output still matches the fingerprint of its resolved inputs
// is never recomputed; a step whose fitted state was persisted on a previous
// run is loaded back instead of being refit.
//
// The engine executes a single invocation sequentially. Transformers may
// have ordering-sensitive side effects, so a step only runs once all of its
// inputs are fully materialised. Separate processes may share one
// persistence store; writes are atomic per step.
package steps
