// Package mailerr defines the failure kinds a mail session action can
// report back to its caller.
package mailerr

import (
	"errors"
	"fmt"
)

// Kind classifies a session failure. The kind name is the prefix of the
// message reported to the UI layer.
type Kind string

const (
	InvalidAddress          Kind = "InvalidAddress"
	UnsupportedDomain       Kind = "UnsupportedDomain"
	SmtpConnectError        Kind = "SmtpConnectError"
	ImapConnectError        Kind = "ImapConnectError"
	ImapCommandError        Kind = "ImapCommandError"
	NoActiveSession         Kind = "NoActiveSession"
	ParseError              Kind = "ParseError"
	RecipientAddressInvalid Kind = "RecipientAddressInvalid"
	AttachmentReadError     Kind = "AttachmentReadError"
	AttachmentWriteError    Kind = "AttachmentWriteError"
	SendError               Kind = "SendError"
	MessageNotFound         Kind = "MessageNotFound"
)

// Error is a classified failure. Err carries the underlying cause and may
// be nil when the kind alone says everything.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind with no cause, so callers can
// write errors.Is(err, &mailerr.Error{Kind: mailerr.SendError}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Kind == e.Kind
}

// New builds a classified error from a format string.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err stays nil, and an err that is already
// classified keeps its original kind.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf reports the kind of err, or "" when err (or anything in its chain)
// is not a classified error.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}

// Is reports whether err (or any error in its chain) has the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
