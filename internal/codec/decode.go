// Package codec turns raw RFC 5322 payloads into the session's records and
// composes outbound messages.
package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/nhle/mailclient/internal/mailerr"
	"github.com/nhle/mailclient/internal/model"
)

// Part is one attachment extracted from a message.
type Part struct {
	Filename string
	Data     []byte
}

// Message is a decoded full message.
type Message struct {
	Body        string
	Attachments []Part
}

// Decoder parses fetched payloads. The zero value uses empty fallbacks.
type Decoder struct {
	Fallbacks model.Fallbacks
}

// NewDecoder returns a decoder that substitutes fb for missing headers.
func NewDecoder(fb model.Fallbacks) *Decoder {
	return &Decoder{Fallbacks: fb}
}

// Header decodes an RFC822.HEADER payload into metadata. The ID is left
// for the caller to fill in.
func (d *Decoder) Header(raw []byte) (model.EmailMetadata, error) {
	th, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	// A header section cut off before its blank line is still usable.
	if err != nil && !errors.Is(err, io.EOF) {
		return model.EmailMetadata{}, mailerr.New(
			mailerr.ParseError, "reading header: %v", err,
		)
	}

	h := mail.Header{Header: message.Header{Header: th}}
	return model.EmailMetadata{
		From:    text(h, "From", d.Fallbacks.Sender),
		To:      text(h, "To", d.Fallbacks.Recipient),
		Subject: text(h, "Subject", d.Fallbacks.Subject),
		Date:    orDefault(h.Get("Date"), d.Fallbacks.Date),
	}, nil
}

// text returns the decoded value of key. Encoded words in an unknown
// charset are left as they are.
func text(h mail.Header, key, fallback string) string {
	v, err := h.Text(key)
	if err != nil {
		v = h.Get(key)
	}
	return orDefault(v, fallback)
}

func orDefault(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

// Message decodes a full RFC822 payload. Text parts without an attachment
// disposition are concatenated into the body. Attachment parts are kept
// as decoded bytes.
func (d *Decoder) Message(raw []byte) (Message, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !tolerable(err) {
		return Message{}, mailerr.New(mailerr.ParseError, "reading message: %v", err)
	}

	w := &walker{}
	if mr := entity.MultipartReader(); mr == nil {
		body, err := io.ReadAll(entity.Body)
		if err != nil {
			return Message{}, mailerr.New(mailerr.ParseError, "reading body: %v", err)
		}
		w.body.Write(body)
	} else if err := w.multipart(entity, mr); err != nil {
		return Message{}, mailerr.Wrap(mailerr.ParseError, err)
	}

	return Message{
		Body:        strings.TrimSpace(w.body.String()),
		Attachments: w.attachments,
	}, nil
}

// tolerable reports errors after which go-message still hands back a
// readable entity, just not converted to UTF-8.
func tolerable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

type walker struct {
	body        strings.Builder
	attachments []Part
	leaves      int
}

func (w *walker) multipart(parent *message.Entity, mr message.MultipartReader) error {
	mediaType, _, _ := parent.Header.ContentType()
	if mediaType == "multipart/alternative" {
		return w.alternative(mr)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && !tolerable(err) {
			return fmt.Errorf("reading part %d: %w", w.leaves, err)
		}
		if err := w.part(part); err != nil {
			return err
		}
	}
}

func (w *walker) part(part *message.Entity) error {
	disposition, _, _ := part.Header.ContentDisposition()

	switch disposition {
	case "attachment":
		index := w.leaves
		w.leaves++
		data, err := io.ReadAll(part.Body)
		if err != nil {
			return fmt.Errorf("reading attachment %d: %w", index, err)
		}
		w.attachments = append(w.attachments, Part{
			Filename: attachmentName(part.Header, index),
			Data:     data,
		})
		return nil

	case "inline", "":
		if mr := part.MultipartReader(); mr != nil {
			return w.multipart(part, mr)
		}
		w.leaves++
		return w.text(part)

	default:
		w.leaves++
		return nil
	}
}

// alternative keeps only the text/plain rendering, or the first one when
// there is no plain text.
func (w *walker) alternative(mr message.MultipartReader) error {
	var chosen *Message
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !tolerable(err) {
			return fmt.Errorf("reading alternative: %w", err)
		}

		sub := &walker{leaves: w.leaves}
		if err := sub.part(part); err != nil {
			return err
		}
		mediaType, _, _ := part.Header.ContentType()
		if chosen == nil || mediaType == "text/plain" {
			chosen = &Message{Body: sub.body.String(), Attachments: sub.attachments}
			w.leaves = sub.leaves
		}
		if mediaType == "text/plain" {
			break
		}
	}

	if chosen != nil {
		w.body.WriteString(chosen.Body)
		w.attachments = append(w.attachments, chosen.Attachments...)
	}
	return nil
}

func (w *walker) text(part *message.Entity) error {
	mediaType, _, _ := part.Header.ContentType()
	if mediaType != "" && !strings.HasPrefix(mediaType, "text/") {
		return nil
	}
	body, err := io.ReadAll(part.Body)
	if err != nil {
		return fmt.Errorf("reading text part: %w", err)
	}
	w.body.Write(body)
	return nil
}

// attachmentName returns the base name the part advertises, or
// attachment_<index> when it has none.
func attachmentName(h message.Header, index int) string {
	ah := mail.AttachmentHeader{Header: h}
	name, _ := ah.Filename()
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return fmt.Sprintf("attachment_%d", index)
	}
	return name
}
