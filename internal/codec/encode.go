package codec

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/nhle/mailclient/internal/mailerr"
	"github.com/nhle/mailclient/internal/model"
)

// Outbound is a composed message ready for SMTP submission.
type Outbound struct {
	From string
	To   []string
	Raw  []byte
}

// Encoder composes outbound messages. Attachment paths are read through
// FS.
type Encoder struct {
	FS  afero.Fs
	Now func() time.Time
}

// NewEncoder returns an encoder reading attachments from fs.
func NewEncoder(fs afero.Fs) *Encoder {
	return &Encoder{FS: fs, Now: time.Now}
}

type attachment struct {
	name        string
	contentType string
	data        []byte
}

// Encode renders req as sent by from. A message without attachments is a
// single text/plain part; otherwise it is multipart/mixed with the text
// first.
func (e *Encoder) Encode(from string, req model.ComposeRequest) (Outbound, error) {
	sender, err := mail.ParseAddress(from)
	if err != nil {
		return Outbound{}, mailerr.New(mailerr.InvalidAddress, "sender %q: %v", from, err)
	}

	to, err := mail.ParseAddressList(strings.TrimSpace(req.To))
	if err != nil || len(to) == 0 {
		if err == nil {
			err = fmt.Errorf("no recipient")
		}
		return Outbound{}, mailerr.New(mailerr.RecipientAddressInvalid, "%q: %v", req.To, err)
	}

	files := make([]attachment, 0, len(req.AttachmentPaths))
	for _, path := range req.AttachmentPaths {
		data, err := afero.ReadFile(e.FS, path)
		if err != nil {
			return Outbound{}, mailerr.Wrap(mailerr.AttachmentReadError, err)
		}
		files = append(files, attachment{
			name:        filepath.Base(path),
			contentType: contentTypeFor(path),
			data:        data,
		})
	}

	var h mail.Header
	h.SetDate(e.now())
	h.SetAddressList("From", []*mail.Address{sender})
	h.SetAddressList("To", to)
	h.SetSubject(req.Subject)
	h.SetMessageID(uuid.NewString() + "@" + domainOf(sender.Address))

	var buf bytes.Buffer
	if len(files) == 0 {
		err = writeSingle(&buf, h, req.Body)
	} else {
		err = writeMixed(&buf, h, req.Body, files)
	}
	if err != nil {
		return Outbound{}, mailerr.Wrap(mailerr.SendError, fmt.Errorf("composing message: %w", err))
	}

	rcpts := make([]string, 0, len(to))
	for _, addr := range to {
		rcpts = append(rcpts, addr.Address)
	}
	return Outbound{From: sender.Address, To: rcpts, Raw: buf.Bytes()}, nil
}

func (e *Encoder) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func writeSingle(w io.Writer, h mail.Header, body string) error {
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	tw, err := mail.CreateSingleInlineWriter(w, h)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(tw, body); err != nil {
		return err
	}
	return tw.Close()
}

func writeMixed(w io.Writer, h mail.Header, body string, files []attachment) error {
	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return err
	}

	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	tw, err := mw.CreateSingleInline(th)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(tw, body); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}

	for _, f := range files {
		var ah mail.AttachmentHeader
		ah.SetContentType(f.contentType, nil)
		ah.SetFilename(f.name)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return err
		}
		if _, err := aw.Write(f.data); err != nil {
			return err
		}
		if err := aw.Close(); err != nil {
			return err
		}
	}

	return mw.Close()
}

// contentTypeFor guesses the MIME type from the file extension.
func contentTypeFor(path string) string {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		return "application/octet-stream"
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "application/octet-stream"
	}
	return mediaType
}

func domainOf(addr string) string {
	if at := strings.LastIndex(addr, "@"); at >= 0 {
		return addr[at+1:]
	}
	return "localhost"
}
