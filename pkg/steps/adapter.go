package steps

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Adapter reshapes the outputs of upstream steps into the arguments the
// downstream transformer expects. Adapters must be pure: no side effects,
// identical inputs always yield an identical shape. Describe must return a
// stable description of the mapping, it is folded into step fingerprints.
type Adapter interface {
	Adapt(inputs Data) (Output, error)
	Describe() string
}

// Recipe builds one argument value from the resolved inputs.
type Recipe interface {
	construct(inputs Data) (any, error)
	describe() string
}

type extractRecipe struct {
	step string
	key  string
}

// Extract queries the input named step for the output value key.
func Extract(step, key string) Recipe {
	return extractRecipe{step: step, key: key}
}

func (r extractRecipe) construct(inputs Data) (any, error) {
	out, ok := inputs[r.step]
	if !ok {
		return nil, errors.Wrapf(ErrAdapterMismatch, "no such input %q", r.step)
	}

	val, ok := out[r.key]
	if !ok {
		return nil, errors.Wrapf(ErrAdapterMismatch, "input %q has no output %q", r.step, r.key)
	}

	return val, nil
}

func (r extractRecipe) describe() string {
	return fmt.Sprintf("extract(%s,%s)", r.step, r.key)
}

type combineRecipe struct {
	recipes []Recipe
}

// Combine collects the results of every recipe into a slice, in order.
func Combine(recipes ...Recipe) Recipe {
	return combineRecipe{recipes: recipes}
}

func (r combineRecipe) construct(inputs Data) (any, error) {
	vals := make([]any, 0, len(r.recipes))

	for _, rec := range r.recipes {
		val, err := rec.construct(inputs)
		if err != nil {
			return nil, err
		}

		vals = append(vals, val)
	}

	return vals, nil
}

func (r combineRecipe) describe() string {
	parts := make([]string, 0, len(r.recipes))
	for _, rec := range r.recipes {
		parts = append(parts, rec.describe())
	}

	return "combine(" + strings.Join(parts, ",") + ")"
}

type mapRecipe struct {
	recipes map[string]Recipe
}

// MapOf builds a map where every key holds the result of its recipe.
func MapOf(recipes map[string]Recipe) Recipe {
	return mapRecipe{recipes: recipes}
}

func (r mapRecipe) construct(inputs Data) (any, error) {
	vals := make(map[string]any, len(r.recipes))

	for key, rec := range r.recipes {
		val, err := rec.construct(inputs)
		if err != nil {
			return nil, err
		}

		vals[key] = val
	}

	return vals, nil
}

func (r mapRecipe) describe() string {
	keys := make([]string, 0, len(r.recipes))
	for key := range r.recipes {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+":"+r.recipes[key].describe())
	}

	return "map(" + strings.Join(parts, ",") + ")"
}

type constantRecipe struct {
	value any
}

// Constant always yields the given value, regardless of the inputs.
func Constant(value any) Recipe {
	return constantRecipe{value: value}
}

func (r constantRecipe) construct(Data) (any, error) { return r.value, nil }

func (r constantRecipe) describe() string {
	return fmt.Sprintf("const(%v)", r.value)
}

// RecipeAdapter maps every transformer argument name to the recipe that
// builds it.
type RecipeAdapter map[string]Recipe

func (a RecipeAdapter) Adapt(inputs Data) (Output, error) {
	adapted := make(Output, len(a))

	for name, recipe := range a {
		val, err := recipe.construct(inputs)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %q", name)
		}

		adapted[name] = val
	}

	return adapted, nil
}

func (a RecipeAdapter) Describe() string {
	keys := make([]string, 0, len(a))
	for key := range a {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+a[key].describe())
	}

	return "recipe{" + strings.Join(parts, ";") + "}"
}

// unpack is the default adapter: the outputs of all inputs are merged into a
// single argument set. A key published by more than one input makes the
// merge ambiguous and is a configuration error.
func unpack(step string, inputs Data) (Output, error) {
	merged := make(Output)
	providers := make(map[string][]string)

	for name, out := range inputs {
		for key, val := range out {
			merged[key] = val
			providers[key] = append(providers[key], name)
		}
	}

	var repeated []string

	for key, names := range providers {
		if len(names) > 1 {
			sort.Strings(names)
			repeated = append(repeated, fmt.Sprintf("%q from %s", key, strings.Join(names, ", ")))
		}
	}

	if len(repeated) > 0 {
		sort.Strings(repeated)

		return nil, errors.Wrapf(ErrAdapterMismatch,
			"step %s: cannot unpack inputs, keys present in multiple inputs: %s", step, strings.Join(repeated, "; "))
	}

	return merged, nil
}
