package steps

import "context"

// Output is the named set of values a transformer produces. Steps exchange
// outputs by name, so downstream transformers can pick the pieces they need.
type Output map[string]any

// Data maps an input name, either a raw input or an upstream step name, to
// the output published under it.
type Data map[string]Output

// Transformer is the computational unit a step wraps. The engine consumes
// exactly four capabilities: estimate internal state from inputs (Fit), use
// that state to produce an output (Transform), and serialise/restore the
// state as an opaque blob (Save/Load). The engine never inspects the
// semantic content of arguments or outputs.
type Transformer interface {
	Fit(ctx context.Context, args Output) error
	Transform(ctx context.Context, args Output) (Output, error)
	Save() ([]byte, error)
	Load(state []byte) error
}

// FitTransformer is implemented by transformers that can fit and transform
// in one pass. The engine prefers it over a separate Fit followed by
// Transform when both are requested.
type FitTransformer interface {
	FitTransform(ctx context.Context, args Output) (Output, error)
}

// Stateless marks a transformer that estimates nothing. The engine skips the
// fitted check and checkpointing for it.
type Stateless interface {
	Stateless()
}

// Arity is implemented by transformers that declare the argument names they
// require. The engine validates adapted inputs against it before invoking
// the transformer.
type Arity interface {
	InputKeys() []string
}

// Fingerprinter exposes configuration bytes that identify a transformer (or
// a raw input value) for cache invalidation. Without it the engine falls
// back to the concrete type name, which means configuration changes go
// unnoticed by the cache.
type Fingerprinter interface {
	Fingerprint() ([]byte, error)
}

// Identity passes its arguments through untouched, f(x)=x.
type Identity struct{}

func (Identity) Fit(context.Context, Output) error { return nil }

func (Identity) Transform(_ context.Context, args Output) (Output, error) { return args, nil }

func (Identity) Save() ([]byte, error) { return nil, nil }

func (Identity) Load([]byte) error { return nil }

func (Identity) Stateless() {}

type lambda struct {
	fn func(ctx context.Context, args Output) (Output, error)
}

// Lambda wraps a plain function as a stateless transformer.
func Lambda(fn func(ctx context.Context, args Output) (Output, error)) Transformer {
	return &lambda{fn: fn}
}

func (l *lambda) Fit(context.Context, Output) error { return nil }

func (l *lambda) Transform(ctx context.Context, args Output) (Output, error) {
	return l.fn(ctx, args)
}

func (l *lambda) Save() ([]byte, error) { return nil, nil }

func (l *lambda) Load([]byte) error { return nil }

func (l *lambda) Stateless() {}

type composite struct {
	root      *Step
	inputName string
}

// Composite turns a step graph into a transformer, so a whole sub-pipeline
// can sit behind a single step. The arguments of every call are published to
// the nested graph under inputName. Nested steps persist through their own
// pipeline store, so the composite itself carries no state blob.
func Composite(root *Step, inputName string) Transformer {
	return &composite{root: root, inputName: inputName}
}

func (c *composite) Fit(ctx context.Context, args Output) error {
	_, err := c.root.FitTransform(ctx, Data{c.inputName: args})

	return err
}

func (c *composite) FitTransform(ctx context.Context, args Output) (Output, error) {
	return c.root.FitTransform(ctx, Data{c.inputName: args})
}

func (c *composite) Transform(ctx context.Context, args Output) (Output, error) {
	return c.root.Transform(ctx, Data{c.inputName: args})
}

// Save returns a marker rather than real state: the nested steps checkpoint
// themselves through their own pipeline store, and the marker lets a
// transform-only run resume the owning step.
func (c *composite) Save() ([]byte, error) { return []byte{compositeStateMarker}, nil }

func (c *composite) Load([]byte) error { return nil }

const compositeStateMarker = 0x01
