// Package attachment writes decoded attachments to a destination directory
// without ever overwriting an existing file.
package attachment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/nhle/mailclient/internal/mailerr"
)

const maxCollisions = 10000

// Persister saves attachment bytes through an afero filesystem.
type Persister struct {
	fs afero.Fs
}

// NewPersister creates a persister writing to fs.
func NewPersister(fs afero.Fs) *Persister {
	return &Persister{fs: fs}
}

// Save writes data to dir/name, or to the first free dir/stem(n).ext when
// that name is taken, and returns the file name it used.
func (p *Persister) Save(dir, name string, data []byte) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", mailerr.New(mailerr.AttachmentWriteError, "invalid attachment name %q", name)
	}

	if err := p.fs.MkdirAll(dir, 0o755); err != nil {
		return "", mailerr.Wrap(mailerr.AttachmentWriteError,
			fmt.Errorf("creating %s: %w", dir, err))
	}

	stem, ext := splitName(name)
	for n := 0; n < maxCollisions; n++ {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s(%d)%s", stem, n, ext)
		}

		err := p.create(filepath.Join(dir, candidate), data)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", mailerr.Wrap(mailerr.AttachmentWriteError, err)
		}
		return candidate, nil
	}

	return "", mailerr.New(mailerr.AttachmentWriteError,
		"no free name for %s in %s", name, dir)
}

// File is one attachment to save.
type File struct {
	Name string
	Data []byte
}

// SaveAll saves files in order and returns the names used. When one fails,
// the files this call already wrote are removed so a retry gets the same
// names.
func (p *Persister) SaveAll(dir string, files []File) ([]string, error) {
	names := make([]string, 0, len(files))
	for _, f := range files {
		name, err := p.Save(dir, f.Name, f.Data)
		if err != nil {
			for _, written := range names {
				_ = p.fs.Remove(filepath.Join(dir, written))
			}
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// create writes a new file, failing with os.ErrExist if path is taken.
func (p *Persister) create(path string, data []byte) error {
	f, err := p.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = p.fs.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = p.fs.Remove(path)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// splitName splits "report.pdf" into "report" and ".pdf". Dotfiles and
// extensionless names have no extension.
func splitName(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	stem = strings.TrimSuffix(name, ext)
	if stem == "" {
		return name, ""
	}
	return stem, ext
}
