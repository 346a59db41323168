package transport

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/rs/zerolog"
)

// logoutTimeout bounds how long Logout waits for the server's BYE.
const logoutTimeout = 2 * time.Second

// IMAP wraps a logged-in go-imap v2 client.
type IMAP struct {
	client   *imapclient.Client
	log      zerolog.Logger
	selected string

	// numMessages tracks EXISTS for the selected mailbox. It is written
	// from the client's reader goroutine on unilateral updates.
	numMessages atomic.Uint32
}

// DialIMAP establishes a connection to the IMAP server and authenticates.
// The caller is responsible for calling Logout/Close on the returned
// handle.
func (d *NetDialer) DialIMAP(
	ctx context.Context, host string, creds Credentials,
) (IMAPHandle, error) {
	h := &IMAP{log: d.opts.Logger.With().Str("imap_host", host).Logger()}

	options := &imapclient.Options{
		TLSConfig: d.tlsConfig(host),
		UnilateralDataHandler: &imapclient.UnilateralDataHandler{
			Mailbox: func(data *imapclient.UnilateralDataMailbox) {
				if data.NumMessages != nil {
					h.numMessages.Store(*data.NumMessages)
				}
			},
		},
	}
	if h.log.GetLevel() <= zerolog.TraceLevel {
		options.DebugWriter = protocolWriter{log: h.log}
	}

	conn, err := d.dial(ctx, host, d.opts.IMAPPort, d.opts.IMAPStartTLS)
	if err != nil {
		return nil, err
	}

	if d.opts.IMAPStartTLS {
		h.client, err = imapclient.NewStartTLS(conn, options)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("IMAP STARTTLS with %s: %w", host, err)
		}
	} else {
		h.client = imapclient.New(conn, options)
	}

	if err := h.client.Login(creds.Username, creds.Password).Wait(); err != nil {
		h.client.Close()
		return nil, fmt.Errorf("IMAP login as %s: %w", creds.Username, err)
	}

	h.log.Debug().Msg("connected to IMAP server")
	return h, nil
}

// List returns every mailbox name, in server order.
func (h *IMAP) List(_ context.Context) ([]string, error) {
	data, err := h.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing mailboxes: %w", err)
	}

	names := make([]string, 0, len(data))
	for _, mbox := range data {
		names = append(names, mbox.Mailbox)
	}
	return names, nil
}

// Select opens mailbox read-write.
func (h *IMAP) Select(
	_ context.Context, mailbox string,
) (MailboxStatus, error) {
	data, err := h.client.Select(mailbox, nil).Wait()
	if err != nil {
		return MailboxStatus{}, fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	h.selected = mailbox
	h.numMessages.Store(data.NumMessages)

	return MailboxStatus{
		Name:        mailbox,
		NumMessages: data.NumMessages,
		UIDValidity: data.UIDValidity,
	}, nil
}

// FetchHeader fetches RFC822.HEADER without setting \Seen.
func (h *IMAP) FetchHeader(
	_ context.Context, seq uint32,
) (*Fetched, error) {
	if !h.hasSeq(seq) {
		return nil, nil
	}
	section := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierHeader,
		Peek:      true,
	}
	return h.fetchOne(imap.SeqSetNum(seq), section)
}

// FetchFull fetches the whole message. Like RFC822, this marks the
// message \Seen.
func (h *IMAP) FetchFull(
	_ context.Context, seq uint32,
) (*Fetched, error) {
	if !h.hasSeq(seq) {
		return nil, nil
	}
	return h.fetchOne(imap.SeqSetNum(seq), &imap.FetchItemBodySection{})
}

// FetchFullUID fetches the whole message addressed by UID.
func (h *IMAP) FetchFullUID(
	_ context.Context, uid uint32,
) (*Fetched, error) {
	if h.selected == "" {
		return nil, errors.New("no mailbox selected")
	}
	return h.fetchOne(
		imap.UIDSetNum(imap.UID(uid)), &imap.FetchItemBodySection{},
	)
}

// hasSeq reports whether seq exists in the selected mailbox. Asking the
// server for a sequence number past EXISTS is an error on most servers, so
// it is answered locally as an empty fetch.
func (h *IMAP) hasSeq(seq uint32) bool {
	return h.selected != "" && seq >= 1 && seq <= h.numMessages.Load()
}

func (h *IMAP) fetchOne(
	set imap.NumSet, section *imap.FetchItemBodySection,
) (*Fetched, error) {
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}

	msgs, err := h.client.Fetch(set, fetchOpts).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetching %v in %s: %w", set, h.selected, err)
	}

	for _, msg := range msgs {
		raw := msg.FindBodySection(section)
		if raw == nil {
			continue
		}
		return &Fetched{
			SeqNum: msg.SeqNum,
			UID:    uint32(msg.UID),
			Raw:    raw,
		}, nil
	}
	return nil, nil
}

// Logout sends LOGOUT and waits briefly for the server to acknowledge.
func (h *IMAP) Logout(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- h.client.Logout().Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("IMAP logout: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(logoutTimeout):
		return errors.New("IMAP logout timed out")
	}
}

// Close tears down the connection without a LOGOUT.
func (h *IMAP) Close() error {
	return h.client.Close()
}
