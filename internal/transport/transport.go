// Package transport is the boundary between the session engine and the
// IMAP/SMTP protocol libraries.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
)

// Credentials authenticate both the SMTP and the IMAP connection.
type Credentials struct {
	Username string
	Password string
}

// Fetched is the raw payload of one FETCH response.
type Fetched struct {
	SeqNum uint32
	// UID is zero when the server did not report one.
	UID uint32
	Raw []byte
}

// MailboxStatus is what SELECT reports about a mailbox.
type MailboxStatus struct {
	Name        string
	NumMessages uint32
	UIDValidity uint32
}

// Dialer opens authenticated protocol handles.
type Dialer interface {
	// DialSMTP connects and authenticates an SMTP session.
	DialSMTP(ctx context.Context, host string, creds Credentials) (SMTPHandle, error)

	// DialIMAP connects and logs in to an IMAP server.
	DialIMAP(ctx context.Context, host string, creds Credentials) (IMAPHandle, error)
}

// SMTPHandle is an authenticated SMTP session. It is not safe for
// concurrent use.
type SMTPHandle interface {
	// TestConnection checks the session is still usable.
	TestConnection(ctx context.Context) error

	// Send submits one message.
	Send(ctx context.Context, from string, to []string, msg []byte) error

	Close() error
}

// IMAPHandle is a logged-in IMAP connection. It is not safe for concurrent
// use: a SELECT followed by FETCH must not interleave with another SELECT.
type IMAPHandle interface {
	// List returns every mailbox name visible to the user.
	List(ctx context.Context) ([]string, error)

	// Select opens mailbox for the FETCH calls that follow.
	Select(ctx context.Context, mailbox string) (MailboxStatus, error)

	// FetchHeader returns the header of the message at seq in the selected
	// mailbox, or nil when there is no such message.
	FetchHeader(ctx context.Context, seq uint32) (*Fetched, error)

	// FetchFull returns the whole message at seq, or nil when there is no
	// such message.
	FetchFull(ctx context.Context, seq uint32) (*Fetched, error)

	// FetchFullUID returns the whole message with the given UID, or nil.
	FetchFullUID(ctx context.Context, uid uint32) (*Fetched, error)

	// Logout ends the IMAP session politely.
	Logout(ctx context.Context) error

	Close() error
}

// IsConnectionLost reports whether err means the underlying connection is
// gone and the handle cannot be used again.
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "use of closed network connection")
}
