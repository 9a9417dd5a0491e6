package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/gleehq/interviewd/internal/graph"
)

// FileStore persists checkpoints as JSON documents under
// <root>/<graphID>/<sessionID>.json on an afero filesystem. Writes go
// through a temp file and rename so readers never observe a torn snapshot.
type FileStore[T graph.State[T]] struct {
	fs   afero.Fs
	root string
	mu   sync.Mutex
}

func NewFileStore[T graph.State[T]](fs afero.Fs, root string) *FileStore[T] {
	return &FileStore[T]{fs: fs, root: root}
}

func (f *FileStore[T]) path(key Key) string {
	return filepath.Join(f.root, key.GraphID, key.SessionID+".json")
}

func (f *FileStore[T]) Save(_ context.Context, checkpoint Checkpoint[T]) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(checkpoint.Key)
	if err := f.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create checkpoint dir")
	}

	raw, err := json.Marshal(checkpoint)
	if err != nil {
		return errors.Wrap(err, "encode checkpoint")
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, raw, 0o644); err != nil {
		return errors.Wrap(err, "write checkpoint")
	}
	if err := f.fs.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "commit checkpoint")
	}
	return nil
}

func (f *FileStore[T]) Load(_ context.Context, key Key) (*Checkpoint[T], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := afero.ReadFile(f.fs, f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s/%s", key.GraphID, key.SessionID)
		}
		return nil, errors.Wrap(err, "read checkpoint")
	}

	var cp Checkpoint[T]
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, errors.Wrap(err, "decode checkpoint")
	}
	return &cp, nil
}

func (f *FileStore[T]) Delete(_ context.Context, key Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fs.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "delete checkpoint")
	}
	return nil
}
