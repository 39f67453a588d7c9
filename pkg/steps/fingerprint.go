package steps

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
)

// Fingerprints are SHA-256 digests over a length-prefixed frame of the step
// identity, the transformer configuration, the adapter descriptions and the
// fingerprints of every resolved input. Any change upstream, in the data or
// in the configuration, therefore produces a different digest and forces
// recomputation.

func writeFrame(h hash.Hash, b []byte) {
	var l [4]byte

	binary.LittleEndian.PutUint32(l[:], uint32(len(b)))
	h.Write(l[:])
	h.Write(b)
}

// fingerprintValue digests an arbitrary raw input value. Values implementing
// Fingerprinter control their own identity; everything else goes through
// canonical JSON (map keys are emitted sorted), with a reflective rendering
// as the fallback for values JSON cannot encode.
func fingerprintValue(v any) (string, error) {
	h := sha256.New()

	if f, ok := v.(Fingerprinter); ok {
		b, err := f.Fingerprint()
		if err != nil {
			return "", err
		}

		writeFrame(h, b)

		return hex.EncodeToString(h.Sum(nil)), nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		b = []byte(fmt.Sprintf("%#v", v))
	}

	writeFrame(h, b)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// transformerConfig identifies the transformer for cache purposes: its
// Fingerprint bytes when it exposes them, its concrete type name otherwise.
func transformerConfig(tr Transformer) ([]byte, error) {
	if f, ok := tr.(Fingerprinter); ok {
		return f.Fingerprint()
	}

	return []byte(fmt.Sprintf("%T", tr)), nil
}

// fingerprintStep folds the step identity, configuration and the resolved
// input fingerprints into the cache key for the step.
func fingerprintStep(s *Step, dataPrints []string, inputPrints []string) (string, error) {
	h := sha256.New()

	writeFrame(h, []byte(s.name))

	cfg, err := transformerConfig(s.transformer)
	if err != nil {
		return "", err
	}

	writeFrame(h, cfg)

	if s.adapter != nil {
		writeFrame(h, []byte(s.adapter.Describe()))
	} else {
		writeFrame(h, nil)
	}

	for i, name := range s.inputData {
		writeFrame(h, []byte(name))
		writeFrame(h, []byte(dataPrints[i]))
	}

	for i, in := range s.inputs {
		writeFrame(h, []byte(in.step.name))

		if in.adapter != nil {
			writeFrame(h, []byte(in.adapter.Describe()))
		} else {
			writeFrame(h, nil)
		}

		writeFrame(h, []byte(inputPrints[i]))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
