package codec

import (
	"strings"
	"testing"
	"time"

	"github.com/nalgeon/be"
	"github.com/spf13/afero"

	"github.com/nhle/mailclient/internal/mailerr"
	"github.com/nhle/mailclient/internal/model"
)

func newTestEncoder(t *testing.T) (*Encoder, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	enc := NewEncoder(fs)
	enc.Now = func() time.Time {
		return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	}
	return enc, fs
}

func TestEncodePlainText(t *testing.T) {
	enc, _ := newTestEncoder(t)

	out, err := enc.Encode("alice@qq.com", model.ComposeRequest{
		To:      "bob@163.com",
		Subject: "Hello",
		Body:    "See you tomorrow.",
	})
	be.Err(t, err, nil)
	be.Equal(t, out.From, "alice@qq.com")
	be.Equal(t, out.To, []string{"bob@163.com"})

	raw := string(out.Raw)
	be.True(t, strings.Contains(raw, "Content-Type: text/plain; charset=utf-8"))
	be.True(t, strings.Contains(raw, "Content-Transfer-Encoding: quoted-printable"))
	be.True(t, strings.Contains(raw, "Mime-Version: 1.0"))
	be.True(t, strings.Contains(raw, "@qq.com>"))
	be.True(t, strings.Contains(raw, "Subject: Hello"))
	be.True(t, strings.Contains(raw, "Date: Fri, 01 Mar 2024 09:30:00 +0000"))

	meta, err := NewDecoder(testFallbacks).Header(out.Raw)
	be.Err(t, err, nil)
	be.Equal(t, meta.From, "<alice@qq.com>")
	be.Equal(t, meta.To, "<bob@163.com>")

	msg, err := NewDecoder(testFallbacks).Message(out.Raw)
	be.Err(t, err, nil)
	be.Equal(t, msg.Body, "See you tomorrow.")
}

func TestEncodeWithAttachments(t *testing.T) {
	enc, fs := newTestEncoder(t)
	be.Err(t, afero.WriteFile(fs, "/tmp/notes.txt", []byte("line one"), 0o644), nil)
	be.Err(t, afero.WriteFile(fs, "/tmp/blob", []byte{0x00, 0xff, 0x10}, 0o644), nil)

	out, err := enc.Encode("alice@qq.com", model.ComposeRequest{
		To:              "bob@163.com",
		Subject:         "Files",
		Body:            "Two files attached.",
		AttachmentPaths: []string{"/tmp/notes.txt", "/tmp/blob"},
	})
	be.Err(t, err, nil)

	raw := string(out.Raw)
	be.True(t, strings.Contains(raw, "multipart/mixed"))
	be.True(t, strings.Contains(raw, "application/octet-stream"))
	be.True(t, strings.Contains(raw, "Content-Transfer-Encoding: base64"))

	msg, err := NewDecoder(testFallbacks).Message(out.Raw)
	be.Err(t, err, nil)
	be.Equal(t, msg.Body, "Two files attached.")
	be.Equal(t, len(msg.Attachments), 2)
	be.Equal(t, msg.Attachments[0].Filename, "notes.txt")
	be.Equal(t, string(msg.Attachments[0].Data), "line one")
	be.Equal(t, msg.Attachments[1].Filename, "blob")
	be.Equal(t, msg.Attachments[1].Data, []byte{0x00, 0xff, 0x10})
}

func TestEncodeRejectsBadRecipient(t *testing.T) {
	enc, _ := newTestEncoder(t)

	for _, to := range []string{"", "not an address", "bob@"} {
		_, err := enc.Encode("alice@qq.com", model.ComposeRequest{To: to})
		be.Equal(t, mailerr.KindOf(err), mailerr.RecipientAddressInvalid)
	}
}

func TestEncodeMissingAttachment(t *testing.T) {
	enc, _ := newTestEncoder(t)

	_, err := enc.Encode("alice@qq.com", model.ComposeRequest{
		To:              "bob@163.com",
		AttachmentPaths: []string{"/nowhere/file.pdf"},
	})
	be.Equal(t, mailerr.KindOf(err), mailerr.AttachmentReadError)
}

func TestContentTypeFor(t *testing.T) {
	be.Equal(t, contentTypeFor("report.PDF"), "application/pdf")
	be.Equal(t, contentTypeFor("archive.unknownext"), "application/octet-stream")
	be.Equal(t, contentTypeFor("README"), "application/octet-stream")
}
