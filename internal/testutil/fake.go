// Package testutil provides in-memory stand-ins for the mail servers and
// helpers for building raw messages in tests.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/nhle/mailclient/internal/transport"
)

// Message is one stored message of a FakeIMAP mailbox.
type Message struct {
	UID uint32
	Raw []byte
}

// FakeIMAP serves mailboxes from memory. Errors set on it are returned by
// the matching command until cleared.
type FakeIMAP struct {
	mu        sync.Mutex
	mailboxes map[string][]Message
	nextUID   uint32
	selected  string

	// Names overrides the LIST result when non-nil.
	Names []string

	ListErr   error
	SelectErr error
	FetchErr  error
	LogoutErr error

	// ReportUIDs controls whether fetches carry the message UID.
	ReportUIDs bool

	Selects       int
	HeaderFetches int
	FullFetches   int
	LoggedOut     bool
	Closed        bool
}

// NewFakeIMAP creates a server with an empty INBOX.
func NewFakeIMAP() *FakeIMAP {
	return &FakeIMAP{
		mailboxes:  map[string][]Message{"INBOX": nil},
		nextUID:    100,
		ReportUIDs: true,
	}
}

// Append stores raw at the end of mailbox, creating the mailbox if
// needed, and returns the UID it was given.
func (f *FakeIMAP) Append(mailbox string, raw []byte) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextUID++
	f.mailboxes[mailbox] = append(f.mailboxes[mailbox], Message{UID: f.nextUID, Raw: raw})
	return f.nextUID
}

// List implements transport.IMAPHandle.
func (f *FakeIMAP) List(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}
	if f.Names != nil {
		return append([]string(nil), f.Names...), nil
	}
	names := make([]string, 0, len(f.mailboxes))
	for name := range f.mailboxes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Select implements transport.IMAPHandle.
func (f *FakeIMAP) Select(_ context.Context, mailbox string) (transport.MailboxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Selects++
	if f.SelectErr != nil {
		return transport.MailboxStatus{}, f.SelectErr
	}
	msgs, ok := f.mailboxes[mailbox]
	if !ok {
		return transport.MailboxStatus{}, errors.New("NO [NONEXISTENT] no such mailbox")
	}
	f.selected = mailbox
	return transport.MailboxStatus{
		Name:        mailbox,
		NumMessages: uint32(len(msgs)),
		UIDValidity: 1,
	}, nil
}

// FetchHeader implements transport.IMAPHandle.
func (f *FakeIMAP) FetchHeader(_ context.Context, seq uint32) (*transport.Fetched, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.HeaderFetches++
	msg, err := f.bySeq(seq)
	if msg == nil || err != nil {
		return nil, err
	}
	return f.fetched(seq, msg, headerOf(msg.Raw)), nil
}

// FetchFull implements transport.IMAPHandle.
func (f *FakeIMAP) FetchFull(_ context.Context, seq uint32) (*transport.Fetched, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.FullFetches++
	msg, err := f.bySeq(seq)
	if msg == nil || err != nil {
		return nil, err
	}
	return f.fetched(seq, msg, msg.Raw), nil
}

// FetchFullUID implements transport.IMAPHandle.
func (f *FakeIMAP) FetchFullUID(_ context.Context, uid uint32) (*transport.Fetched, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.FullFetches++
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	for i, msg := range f.mailboxes[f.selected] {
		if msg.UID == uid {
			return f.fetched(uint32(i+1), &msg, msg.Raw), nil
		}
	}
	return nil, nil
}

func (f *FakeIMAP) bySeq(seq uint32) (*Message, error) {
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	if f.selected == "" {
		return nil, errors.New("BAD no mailbox selected")
	}
	msgs := f.mailboxes[f.selected]
	if seq < 1 || int(seq) > len(msgs) {
		return nil, nil
	}
	return &msgs[seq-1], nil
}

func (f *FakeIMAP) fetched(seq uint32, msg *Message, raw []byte) *transport.Fetched {
	out := &transport.Fetched{SeqNum: seq, Raw: append([]byte(nil), raw...)}
	if f.ReportUIDs {
		out.UID = msg.UID
	}
	return out
}

// Logout implements transport.IMAPHandle.
func (f *FakeIMAP) Logout(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.LoggedOut = true
	return f.LogoutErr
}

// Close implements transport.IMAPHandle.
func (f *FakeIMAP) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Closed = true
	return nil
}

// headerOf returns the header section of raw including the blank line.
func headerOf(raw []byte) []byte {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[:i+4]
	}
	return raw
}

// Sent is one message accepted by FakeSMTP.
type Sent struct {
	From string
	To   []string
	Raw  []byte
}

// FakeSMTP records submitted messages.
type FakeSMTP struct {
	mu sync.Mutex

	TestErr error
	SendErr error

	Sent   []Sent
	Closed bool
}

// TestConnection implements transport.SMTPHandle.
func (f *FakeSMTP) TestConnection(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.TestErr
}

// Send implements transport.SMTPHandle.
func (f *FakeSMTP) Send(_ context.Context, from string, to []string, msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SendErr != nil {
		return f.SendErr
	}
	f.Sent = append(f.Sent, Sent{From: from, To: to, Raw: msg})
	return nil
}

// Close implements transport.SMTPHandle.
func (f *FakeSMTP) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Closed = true
	return nil
}

// FakeDialer hands out the configured fakes and counts dials.
type FakeDialer struct {
	mu sync.Mutex

	IMAP *FakeIMAP
	SMTP *FakeSMTP

	IMAPErr error
	SMTPErr error

	IMAPDials int
	SMTPDials int
	Hosts     []string
	Creds     []transport.Credentials
}

// NewFakeDialer creates a dialer backed by a fresh FakeIMAP and FakeSMTP.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{IMAP: NewFakeIMAP(), SMTP: &FakeSMTP{}}
}

// DialSMTP implements transport.Dialer.
func (d *FakeDialer) DialSMTP(
	_ context.Context, host string, creds transport.Credentials,
) (transport.SMTPHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.SMTPDials++
	d.Hosts = append(d.Hosts, host)
	d.Creds = append(d.Creds, creds)
	if d.SMTPErr != nil {
		return nil, d.SMTPErr
	}
	return d.SMTP, nil
}

// DialIMAP implements transport.Dialer.
func (d *FakeDialer) DialIMAP(
	_ context.Context, host string, creds transport.Credentials,
) (transport.IMAPHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.IMAPDials++
	d.Hosts = append(d.Hosts, host)
	d.Creds = append(d.Creds, creds)
	if d.IMAPErr != nil {
		return nil, d.IMAPErr
	}
	return d.IMAP, nil
}
