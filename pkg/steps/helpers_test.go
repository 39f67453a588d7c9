package steps_test

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/askiada/go-steps/pkg/steps"
)

// scaler is a stateful transformer: Fit learns a multiplication factor and
// Transform applies it. An unfitted scaler has factor 0, so outputs betray
// a missing fit immediately.
type scaler struct {
	mu         sync.Mutex
	factor     float64
	fits       int
	transforms int
	loads      int
	failWith   error
}

func newDoubler() *scaler {
	return &scaler{}
}

func (s *scaler) Fit(_ context.Context, args steps.Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return s.failWith
	}

	s.fits++

	if factor, ok := args["factor"].(float64); ok {
		s.factor = factor
	} else {
		s.factor = 2
	}

	return nil
}

func (s *scaler) Transform(_ context.Context, args steps.Output) (steps.Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return nil, s.failWith
	}

	s.transforms++

	value, ok := args["value"].(float64)
	if !ok {
		return nil, errors.Errorf("value must be a float64, got %T", args["value"])
	}

	return steps.Output{"value": value * s.factor}, nil
}

func (s *scaler) Save() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return json.Marshal(map[string]float64{"factor": s.factor})
}

func (s *scaler) Load(state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var decoded map[string]float64

	err := json.Unmarshal(state, &decoded)
	if err != nil {
		return err
	}

	s.factor = decoded["factor"]
	s.loads++

	return nil
}

func (s *scaler) InputKeys() []string { return []string{"value"} }

func (s *scaler) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fits + s.transforms
}

// countingIdentity is a stateless passthrough that counts its invocations.
type countingIdentity struct {
	mu    sync.Mutex
	count int
}

func (c *countingIdentity) Fit(context.Context, steps.Output) error { return nil }

func (c *countingIdentity) Transform(_ context.Context, args steps.Output) (steps.Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++

	return args, nil
}

func (c *countingIdentity) Save() ([]byte, error) { return nil, nil }

func (c *countingIdentity) Load([]byte) error { return nil }

func (c *countingIdentity) Stateless() {}

func (c *countingIdentity) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.count
}

// pairSum consumes exactly one "pair" argument holding two numbers, the
// shape only a combining adapter can produce from several parents.
type pairSum struct{}

func (pairSum) Fit(context.Context, steps.Output) error { return nil }

func (pairSum) Transform(_ context.Context, args steps.Output) (steps.Output, error) {
	pair, ok := args["pair"].([]any)
	if !ok || len(pair) != 2 {
		return nil, errors.Errorf("pair must hold two values, got %#v", args["pair"])
	}

	left, lok := pair[0].(float64)
	right, rok := pair[1].(float64)

	if !lok || !rok {
		return nil, errors.Errorf("pair must hold two float64 values, got %#v", pair)
	}

	return steps.Output{"sum": left + right}, nil
}

func (pairSum) Save() ([]byte, error) { return nil, nil }

func (pairSum) Load([]byte) error { return nil }

func (pairSum) Stateless() {}

func (pairSum) InputKeys() []string { return []string{"pair"} }

// constOutput always emits the same single-key output.
func constOutput(key string, value float64) steps.Transformer {
	return steps.Lambda(func(context.Context, steps.Output) (steps.Output, error) {
		return steps.Output{key: value}, nil
	})
}
