package attachment

import (
	"testing"

	"github.com/nalgeon/be"
	"github.com/spf13/afero"

	"github.com/nhle/mailclient/internal/mailerr"
	"github.com/nhle/mailclient/internal/testutil"
)

func TestSaveWritesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewPersister(fs)

	name, err := p.Save("/downloads", "report.pdf", []byte("%PDF-"))
	be.Err(t, err, nil)
	be.Equal(t, name, "report.pdf")

	data, err := afero.ReadFile(fs, "/downloads/report.pdf")
	be.Err(t, err, nil)
	be.Equal(t, string(data), "%PDF-")
}

func TestSaveResolvesCollisions(t *testing.T) {
	fs := afero.NewMemMapFs()
	be.Err(t, afero.WriteFile(fs, "/d/report.pdf", []byte("old"), 0o644), nil)
	be.Err(t, afero.WriteFile(fs, "/d/report(1).pdf", []byte("old"), 0o644), nil)
	p := NewPersister(fs)

	name, err := p.Save("/d", "report.pdf", []byte("new"))
	be.Err(t, err, nil)
	be.Equal(t, name, "report(2).pdf")

	old, _ := afero.ReadFile(fs, "/d/report.pdf")
	be.Equal(t, string(old), "old")
	saved, _ := afero.ReadFile(fs, "/d/report(2).pdf")
	be.Equal(t, string(saved), "new")
}

func TestSaveExtensionlessCollision(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewPersister(fs)

	first, err := p.Save("/d", "README", []byte("a"))
	be.Err(t, err, nil)
	second, err := p.Save("/d", "README", []byte("b"))
	be.Err(t, err, nil)

	be.Equal(t, first, "README")
	be.Equal(t, second, "README(1)")
}

func TestSaveStripsDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewPersister(fs)

	name, err := p.Save("/d", "../../etc/passwd", []byte("x"))
	be.Err(t, err, nil)
	be.Equal(t, name, "passwd")

	exists, _ := afero.Exists(fs, "/d/passwd")
	be.True(t, exists)
}

func TestSaveReadOnly(t *testing.T) {
	base := afero.NewMemMapFs()
	be.Err(t, base.MkdirAll("/d", 0o755), nil)
	p := NewPersister(afero.NewReadOnlyFs(base))

	_, err := p.Save("/d", "a.txt", []byte("x"))
	be.Equal(t, mailerr.KindOf(err), mailerr.AttachmentWriteError)
}

func TestSaveAllRemovesWrittenFilesOnFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	files := []File{
		{Name: "a.txt", Data: []byte("first")},
		{Name: "b.txt", Data: []byte("second")},
	}

	p := NewPersister(testutil.FailingFs{Fs: base, FailName: "b.txt"})
	names, err := p.SaveAll("/out", files)
	be.Equal(t, mailerr.KindOf(err), mailerr.AttachmentWriteError)
	be.Equal(t, len(names), 0)

	exists, _ := afero.Exists(base, "/out/a.txt")
	be.True(t, !exists)

	names, err = NewPersister(base).SaveAll("/out", files)
	be.Err(t, err, nil)
	be.Equal(t, names, []string{"a.txt", "b.txt"})
}

func TestSplitName(t *testing.T) {
	tests := []struct{ name, stem, ext string }{
		{"report.pdf", "report", ".pdf"},
		{"archive.tar.gz", "archive.tar", ".gz"},
		{"README", "README", ""},
		{".bashrc", ".bashrc", ""},
	}
	for _, tt := range tests {
		stem, ext := splitName(tt.name)
		be.Equal(t, stem, tt.stem)
		be.Equal(t, ext, tt.ext)
	}
}
