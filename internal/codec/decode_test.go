package codec

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"github.com/nhle/mailclient/internal/mailerr"
	"github.com/nhle/mailclient/internal/model"
)

var testFallbacks = model.Fallbacks{
	Sender:    "[unknown sender]",
	Recipient: "[unknown recipient]",
	Subject:   "[no subject]",
	Date:      "[unknown date]",
}

func crlf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func TestHeaderDecodesEncodedWords(t *testing.T) {
	raw := crlf(
		"From: =?UTF-8?B?5byg5LiJ?= <zhang@qq.com>",
		"To: bob@163.com",
		"Subject: =?UTF-8?B?5L2g5aW9?=",
		"Date: Mon, 02 Jan 2006 15:04:05 +0800",
		"",
		"",
	)

	meta, err := NewDecoder(testFallbacks).Header(raw)
	be.Err(t, err, nil)
	be.Equal(t, meta.From, "张三 <zhang@qq.com>")
	be.Equal(t, meta.To, "bob@163.com")
	be.Equal(t, meta.Subject, "你好")
	be.Equal(t, meta.Date, "Mon, 02 Jan 2006 15:04:05 +0800")
	be.Equal(t, meta.ID, "")
}

func TestHeaderFallbacks(t *testing.T) {
	raw := crlf("Subject:   ", "X-Mailer: test", "", "")

	meta, err := NewDecoder(testFallbacks).Header(raw)
	be.Err(t, err, nil)
	be.Equal(t, meta.From, "[unknown sender]")
	be.Equal(t, meta.To, "[unknown recipient]")
	be.Equal(t, meta.Subject, "[no subject]")
	be.Equal(t, meta.Date, "[unknown date]")
}

func TestHeaderWithoutBlankLine(t *testing.T) {
	meta, err := NewDecoder(testFallbacks).Header([]byte("Subject: cut short"))
	be.Err(t, err, nil)
	be.Equal(t, meta.Subject, "cut short")
}

func TestHeaderMalformed(t *testing.T) {
	_, err := NewDecoder(testFallbacks).Header(crlf("this is not a header", "", ""))
	be.Equal(t, mailerr.KindOf(err), mailerr.ParseError)
}

func TestMessagePlainBodyIsTrimmed(t *testing.T) {
	raw := crlf(
		"Subject: hi",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"",
		"  hello world  ",
		"",
	)

	msg, err := NewDecoder(testFallbacks).Message(raw)
	be.Err(t, err, nil)
	be.Equal(t, msg.Body, "hello world")
	be.Equal(t, len(msg.Attachments), 0)
}

func TestMessageDecodesCharset(t *testing.T) {
	raw := crlf(
		"Content-Type: text/plain; charset=gb2312",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"=B2=E2=CA=D4",
	)

	msg, err := NewDecoder(testFallbacks).Message(raw)
	be.Err(t, err, nil)
	be.Equal(t, msg.Body, "测试")
}

func TestMessageToleratesUnknownCharset(t *testing.T) {
	raw := crlf(
		"Content-Type: text/plain; charset=x-made-up",
		"",
		"plain ascii",
	)

	msg, err := NewDecoder(testFallbacks).Message(raw)
	be.Err(t, err, nil)
	be.Equal(t, msg.Body, "plain ascii")
}

func TestMessageMultipartMixed(t *testing.T) {
	raw := crlf(
		"Content-Type: multipart/mixed; boundary=XYZ",
		"",
		"--XYZ",
		"Content-Type: text/plain",
		"",
		"first ",
		"--XYZ",
		"Content-Type: application/pdf",
		"Content-Disposition: attachment; filename=\"../../report.pdf\"",
		"Content-Transfer-Encoding: base64",
		"",
		"JVBERi0=",
		"--XYZ",
		"Content-Type: image/png",
		"Content-Disposition: inline",
		"",
		"not text",
		"--XYZ",
		"Content-Type: text/plain",
		"Content-Disposition: inline",
		"",
		"second",
		"--XYZ",
		"Content-Type: application/octet-stream",
		"Content-Disposition: attachment",
		"",
		"blob",
		"--XYZ--",
		"",
	)

	msg, err := NewDecoder(testFallbacks).Message(raw)
	be.Err(t, err, nil)
	be.Equal(t, msg.Body, "first second")
	be.Equal(t, len(msg.Attachments), 2)
	be.Equal(t, msg.Attachments[0].Filename, "report.pdf")
	be.Equal(t, string(msg.Attachments[0].Data), "%PDF-")
	be.Equal(t, msg.Attachments[1].Filename, "attachment_4")
	be.Equal(t, string(msg.Attachments[1].Data), "blob")
}

func TestMessageAlternativePrefersPlainText(t *testing.T) {
	raw := crlf(
		"Content-Type: multipart/mixed; boundary=OUTER",
		"",
		"--OUTER",
		"Content-Type: multipart/alternative; boundary=INNER",
		"",
		"--INNER",
		"Content-Type: text/html",
		"",
		"<p>rich</p>",
		"--INNER",
		"Content-Type: text/plain",
		"",
		"plain",
		"--INNER--",
		"--OUTER--",
		"",
	)

	msg, err := NewDecoder(testFallbacks).Message(raw)
	be.Err(t, err, nil)
	be.Equal(t, msg.Body, "plain")
}

func TestMessageAlternativeFallsBackToFirst(t *testing.T) {
	raw := crlf(
		"Content-Type: multipart/alternative; boundary=ALT",
		"",
		"--ALT",
		"Content-Type: text/html",
		"",
		"<p>only html</p>",
		"--ALT",
		"Content-Type: text/enriched",
		"",
		"enriched",
		"--ALT--",
		"",
	)

	msg, err := NewDecoder(testFallbacks).Message(raw)
	be.Err(t, err, nil)
	be.Equal(t, msg.Body, "<p>only html</p>")
}

func TestMessageMalformed(t *testing.T) {
	_, err := NewDecoder(testFallbacks).Message(crlf(" leading space", "", "body"))
	be.Equal(t, mailerr.KindOf(err), mailerr.ParseError)
}
