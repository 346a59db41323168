package testutil

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrDiskFull is returned by FailingFs.
var ErrDiskFull = errors.New("no space left on device")

// FailingFs wraps an afero filesystem and fails every OpenFile whose base
// name is FailName.
type FailingFs struct {
	afero.Fs
	FailName string
}

func (f FailingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if filepath.Base(name) == f.FailName {
		return nil, &os.PathError{Op: "open", Path: name, Err: ErrDiskFull}
	}
	return f.Fs.OpenFile(name, flag, perm)
}
