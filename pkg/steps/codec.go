package steps

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Codec serialises step outputs for the persistence store. The store only
// ever sees opaque blobs.
type Codec interface {
	Marshal(out Output) ([]byte, error)
	Unmarshal(blob []byte) (Output, error)
}

// JSONCodec is the default codec. JSON round-trips all numbers as float64;
// pipelines trafficking in richer types should inject their own codec with
// WithCodec.
type JSONCodec struct{}

func (JSONCodec) Marshal(out Output) ([]byte, error) {
	blob, err := json.Marshal(out)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode output")
	}

	return blob, nil
}

func (JSONCodec) Unmarshal(blob []byte) (Output, error) {
	var out Output

	err := json.Unmarshal(blob, &out)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode output")
	}

	return out, nil
}
