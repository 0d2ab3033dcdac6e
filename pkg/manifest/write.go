package manifest

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	uberrors "thoreinstein.com/uber/pkg/errors"
)

// WriteOptions controls how manifests are written.
type WriteOptions struct {
	// Lock takes an advisory lock on <path>.lock for the duration of the write.
	Lock bool
}

// WriteFile atomically replaces path with data. The content is validated
// first, then written to a temporary file in the same directory and renamed
// over the target, so a manifest is never left half written.
func WriteFile(path string, data []byte, opts WriteOptions) (err error) {
	if _, err := Parse(path, data); err != nil {
		return err
	}

	if opts.Lock {
		lockPath := path + ".lock"
		lock := flock.New(lockPath)
		locked, lockErr := lock.TryLock()
		if lockErr != nil {
			return uberrors.NewFilesystemError("lock", lockPath, lockErr)
		}
		if !locked {
			return uberrors.NewFilesystemError("lock", lockPath, nil)
		}
		defer func() {
			_ = lock.Unlock()
			_ = os.Remove(lockPath)
		}()
	}

	mode := os.FileMode(0644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")

	if err := os.WriteFile(tmp, data, mode); err != nil {
		return uberrors.NewFilesystemError("write", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err := os.Rename(tmp, path); err != nil {
		return uberrors.NewFilesystemError("write", path, err)
	}
	return nil
}

// Save writes the document back to its path.
func (d *Document) Save(opts WriteOptions) error {
	return WriteFile(d.Path, d.raw, opts)
}
