package gitstore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// objectStore is a content-addressed, zstd-compressed loose-object store
// with a 2-character fan-out directory, grounded on odvcencio-got's
// pkg/object.Store (the directory layout and atomic-write-then-rename
// discipline) and pkg/remote/compress.go (zstd framing).
type objectStore struct {
	root string // "<repo>.git/objects"
}

func newObjectStore(root string) *objectStore {
	return &objectStore{root: root}
}

func (s *objectStore) path(h Hash) string {
	if len(h) < 2 {
		return filepath.Join(s.root, string(h))
	}
	return filepath.Join(s.root, string(h[:2]), string(h[2:]))
}

func (s *objectStore) has(h Hash) bool {
	_, err := os.Stat(s.path(h))
	return err == nil
}

// write stores an object and returns its hash. Writes are idempotent and
// atomic: the body is compressed, written to a temp file under the target
// fan-out directory, then renamed into place.
func (s *objectStore) write(t ObjectType, data []byte) (Hash, error) {
	h := HashObject(t, data)
	if s.has(h) {
		return h, nil
	}

	envelope := fmt.Sprintf("%s %d\x00", t, len(data))
	raw := append([]byte(envelope), data...)

	compressed, err := compress(raw)
	if err != nil {
		return "", fmt.Errorf("gitstore: compress object: %w", err)
	}

	dir := filepath.Join(s.root, string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("gitstore: mkdir object dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("gitstore: create temp object: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("gitstore: write temp object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("gitstore: close temp object: %w", err)
	}
	if err := os.Rename(tmpName, s.path(h)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("gitstore: finalize object: %w", err)
	}
	return h, nil
}

// read retrieves an object by hash, returning its type and content.
func (s *objectStore) read(h Hash) (ObjectType, []byte, error) {
	compressed, err := os.ReadFile(s.path(h))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("%w: object %s", ErrCorrupt, h)
		}
		return "", nil, fmt.Errorf("gitstore: read object: %w", err)
	}
	raw, err := decompress(compressed)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return "", nil, fmt.Errorf("%w: missing envelope", ErrCorrupt)
	}
	var objType string
	var size int
	if _, err := fmt.Sscanf(string(raw[:nul]), "%s %d", &objType, &size); err != nil {
		return "", nil, fmt.Errorf("%w: malformed envelope", ErrCorrupt)
	}
	return ObjectType(objType), raw[nul+1:], nil
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
