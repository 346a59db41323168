package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// PlainMessage builds a single-part text message.
func PlainMessage(from, to, subject, body string) []byte {
	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"Date: Mon, 02 Jan 2006 15:04:05 +0800",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n"))
}

// AttachmentMessage builds a multipart/mixed message with a text part
// followed by one attachment per filename, each carrying content as its
// body.
func AttachmentMessage(subject, body, content string, filenames ...string) []byte {
	lines := []string{
		"From: sender@qq.com",
		"To: rcpt@163.com",
		"Subject: " + subject,
		"Content-Type: multipart/mixed; boundary=BOUNDARY",
		"",
		"--BOUNDARY",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}
	for _, name := range filenames {
		lines = append(lines,
			"--BOUNDARY",
			"Content-Type: application/octet-stream",
			fmt.Sprintf("Content-Disposition: attachment; filename=%q", name),
			"",
			content,
		)
	}
	lines = append(lines, "--BOUNDARY--", "")
	return []byte(strings.Join(lines, "\r\n"))
}

// NewTestLogger returns a logger that writes through t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}
