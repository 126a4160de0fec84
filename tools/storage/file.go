package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// FileArtifactStore writes artifacts below Dir on the local disk.
type FileArtifactStore struct {
	Dir string
}

func NewFileArtifactStore(dir string) *FileArtifactStore {
	return &FileArtifactStore{Dir: dir}
}

// Path returns where an artifact with the given name is written. Names are
// always resolved inside Dir: absolute paths and ".." segments cannot leave it.
func (f *FileArtifactStore) Path(name string) string {
	rel := strings.TrimPrefix(filepath.Clean(string(filepath.Separator)+name), string(filepath.Separator))
	return filepath.Join(f.Dir, rel)
}

func (f *FileArtifactStore) Save(ctx context.Context, name string, content []byte) error {
	p := f.Path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, content, 0o644)
}
