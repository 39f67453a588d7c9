package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Disk persists one artifact per step under <root>/steps, surviving process
// restarts. The file name is deterministic from the step identity, so
// re-running a pipeline against the same directory resumes from checkpoints.
//
// Layout of an artifact: a fixed little-endian header (magic, format
// version, fingerprint, creation time, blob lengths) followed by the state
// and output blobs. Writes go to a temp file in the same directory and are
// renamed into place, so a crashed run can never leave a half-written entry
// observable.
type Disk struct {
	root string
}

const (
	diskMagic      = "GSTP"
	diskVersion    = uint16(1)
	diskSubdir     = "steps"
	maxBlobLen     = 1<<31 - 1
	fileNameDigest = 8
)

func NewDisk(root string) (*Disk, error) {
	err := os.MkdirAll(filepath.Join(root, diskSubdir), 0o755)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to prepare store directory %s", root)
	}

	return &Disk{root: root}, nil
}

// path derives the artifact path from the step identity. The name is
// sanitised for the filesystem and suffixed with a digest of the raw name,
// so distinct steps can never collide after sanitisation.
func (d *Disk) path(step string) string {
	sanitised := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, step)

	sum := sha256.Sum256([]byte(step))

	return filepath.Join(d.root, diskSubdir, sanitised+"-"+hex.EncodeToString(sum[:fileNameDigest])+".bin")
}

func (d *Disk) Get(ctx context.Context, key Key) (*Entry, error) {
	entry, err := d.Head(ctx, key.Step)
	if err != nil {
		return nil, err
	}

	if entry.Fingerprint != key.Fingerprint {
		return nil, errors.Wrap(ErrNotFound, key.Step)
	}

	return entry, nil
}

func (d *Disk) Head(_ context.Context, step string) (*Entry, error) {
	raw, err := os.ReadFile(d.path(step))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, step)
		}

		return nil, &CorruptionError{Step: step, Err: err}
	}

	entry, err := decodeEntry(raw)
	if err != nil {
		return nil, &CorruptionError{Step: step, Err: err}
	}

	return entry, nil
}

func (d *Disk) Put(_ context.Context, key Key, entry *Entry) error {
	raw, err := encodeEntry(entry)
	if err != nil {
		return errors.Wrapf(err, "unable to encode entry for step %s", key.Step)
	}

	path := d.path(key.Step)

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "unable to create temp file for step %s", key.Step)
	}

	_, err = tmp.Write(raw)
	if err == nil {
		err = tmp.Sync()
	}

	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return errors.Wrapf(err, "unable to write entry for step %s", key.Step)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		_ = os.Remove(tmp.Name())

		return errors.Wrapf(err, "unable to publish entry for step %s", key.Step)
	}

	return nil
}

func (d *Disk) Invalidate(_ context.Context, step string) error {
	err := os.Remove(d.path(step))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "unable to remove entry for step %s", step)
	}

	return nil
}

func encodeEntry(entry *Entry) ([]byte, error) {
	if len(entry.State) >= maxBlobLen || len(entry.Output) >= maxBlobLen {
		return nil, errors.New("blob too large")
	}

	buf := &bytes.Buffer{}
	buf.WriteString(diskMagic)

	fp := []byte(entry.Fingerprint)

	for _, v := range []any{
		diskVersion,
		uint16(len(fp)),
	} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}

	buf.Write(fp)

	for _, v := range []any{
		entry.CreatedAt.UnixNano(),
		uint32(len(entry.State)),
		uint32(len(entry.Output)),
	} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}

	buf.Write(entry.State)
	buf.Write(entry.Output)

	return buf.Bytes(), nil
}

func decodeEntry(raw []byte) (*Entry, error) {
	rd := bytes.NewReader(raw)

	magic := make([]byte, len(diskMagic))
	if _, err := rd.Read(magic); err != nil || string(magic) != diskMagic {
		return nil, errors.New("bad magic")
	}

	var (
		version  uint16
		fpLen    uint16
		created  int64
		stateLen uint32
		outLen   uint32
	)

	if err := binary.Read(rd, binary.LittleEndian, &version); err != nil {
		return nil, errors.Wrap(err, "truncated header")
	}

	if version != diskVersion {
		return nil, errors.Errorf("unsupported format version %d", version)
	}

	if err := binary.Read(rd, binary.LittleEndian, &fpLen); err != nil {
		return nil, errors.Wrap(err, "truncated header")
	}

	fp := make([]byte, fpLen)
	if _, err := io.ReadFull(rd, fp); err != nil {
		return nil, errors.Wrap(err, "truncated fingerprint")
	}

	for _, v := range []any{&created, &stateLen, &outLen} {
		if err := binary.Read(rd, binary.LittleEndian, v); err != nil {
			return nil, errors.Wrap(err, "truncated header")
		}
	}

	if int64(stateLen)+int64(outLen) != int64(rd.Len()) {
		return nil, errors.New("truncated body")
	}

	state := make([]byte, stateLen)
	if _, err := io.ReadFull(rd, state); err != nil {
		return nil, errors.Wrap(err, "truncated state")
	}

	output := make([]byte, outLen)
	if _, err := io.ReadFull(rd, output); err != nil {
		return nil, errors.Wrap(err, "truncated output")
	}

	entry := &Entry{
		Fingerprint: string(fp),
		CreatedAt:   time.Unix(0, created),
		State:       state,
	}

	if outLen > 0 {
		entry.Output = output
	}

	return entry, nil
}

var _ Store = (*Disk)(nil)
