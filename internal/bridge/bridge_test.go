package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/spf13/afero"

	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/session"
	"github.com/nhle/mailclient/internal/testutil"
)

type line struct {
	Type    string          `json:"type"`
	Action  string          `json:"action"`
	OK      *bool           `json:"ok"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, dialer *testutil.FakeDialer, input ...string) []line {
	t.Helper()

	log := testutil.NewTestLogger(t)
	opts := session.OptionsFromConfig(model.DefaultAppConfig(), afero.NewMemMapFs(), log)
	ctrl := session.New(dialer, opts)

	var out bytes.Buffer
	err := Serve(context.Background(), ctrl, strings.NewReader(strings.Join(input, "\n")), &out, log)
	be.Err(t, err, nil)

	var lines []line
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var l line
		be.Err(t, json.Unmarshal(scanner.Bytes(), &l), nil)
		lines = append(lines, l)
	}
	return lines
}

func TestServeLoginAndList(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	dialer.IMAP.Append("INBOX", testutil.PlainMessage("a@qq.com", "b@qq.com", "hello", "hi"))

	lines := serve(t, dialer,
		`{"type":"action","action":"login"}`,
		`{"type":"user","data":{"email":"alice@qq.com","password":"pw"}}`,
		`{"type":"action","action":"list_mailboxes"}`,
		`{"type":"action","action":"list_messages"}`,
		`{"type":"mailbox","data":{"mailbox":"INBOX"}}`,
	)

	be.Equal(t, len(lines), 6)
	be.Equal(t, lines[0].Type, "result")
	be.Equal(t, lines[0].Action, "login")
	be.True(t, *lines[0].OK)

	be.Equal(t, lines[1].Type, "mailboxes")
	be.Equal(t, string(lines[1].Data), `["INBOX"]`)
	be.Equal(t, lines[2].Action, "list_mailboxes")

	var meta model.EmailMetadata
	be.Err(t, json.Unmarshal(lines[3].Data, &meta), nil)
	be.Equal(t, meta.ID, "INBOX:1")
	be.Equal(t, meta.Subject, "hello")

	be.Err(t, json.Unmarshal(lines[4].Data, &meta), nil)
	be.True(t, meta.IsTerminal())
	be.Equal(t, lines[5].Action, "list_messages")
}

func TestServeSkipsNoiseAndKeepsAlignment(t *testing.T) {
	lines := serve(t, testutil.NewFakeDialer(),
		`not json`,
		`{"type":"detail","data":{"id":"INBOX:1"}}`,
		`{"type":"action","action":"reboot"}`,
		`{"type":"action","action":"send"}`,
		`{"type":"action","action":"logout"}`,
	)

	be.Equal(t, len(lines), 2)
	be.Equal(t, lines[0].Action, "send")
	be.Equal(t, lines[0].Message, "NoActiveSession")
	be.True(t, !*lines[0].OK)
	be.Equal(t, lines[1].Action, "logout")
}

func TestEncodeSignals(t *testing.T) {
	res := Encode(session.Result{Action: session.ActionSend, OK: false, Message: "SendError: boom"})
	be.Equal(t, res.Type, "result")
	be.Equal(t, res.Action, "send")
	be.True(t, !*res.OK)

	empty := Encode(session.MailboxList{})
	be.Equal(t, empty.Data, any([]string{}))

	d := Encode(session.Detail{EmailDetail: model.EmailDetail{Body: "b"}})
	be.Equal(t, d.Type, "detail")
}
