// Package pager walks a mailbox header by header, remembering per mailbox
// how far previous walks got so no message is listed twice in a session.
package pager

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nhle/mailclient/internal/codec"
	"github.com/nhle/mailclient/internal/detail"
	"github.com/nhle/mailclient/internal/mailerr"
	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/transport"
)

// Options tune how a Pager mints identifiers and bounds its walks.
type Options struct {
	Scheme model.IDScheme

	// PageSize caps the records emitted per walk. Zero means no cap.
	PageSize int
}

// Pager holds the per-mailbox cursors of one session.
type Pager struct {
	opts    Options
	decoder *codec.Decoder
	cache   *detail.Cache
	log     zerolog.Logger
	cursors map[string]uint32
}

// New creates a pager. Every identifier it mints is recorded in cache.
func New(
	opts Options, decoder *codec.Decoder, cache *detail.Cache, log zerolog.Logger,
) *Pager {
	return &Pager{
		opts:    opts,
		decoder: decoder,
		cache:   cache,
		log:     log,
		cursors: make(map[string]uint32),
	}
}

// Cursor returns the next sequence number a walk of mailbox would fetch.
func (p *Pager) Cursor(mailbox string) uint32 {
	if next, ok := p.cursors[mailbox]; ok {
		return next
	}
	return 1
}

// Reset forgets all cursors.
func (p *Pager) Reset() {
	p.cursors = make(map[string]uint32)
}

// Walk selects mailbox and emits metadata for every message from the
// stored cursor on. Reaching the end of the mailbox emits the terminal
// marker. Stopping at the page size emits no marker, since more messages
// may follow. On error the records already emitted stay valid and the
// cursor keeps the progress made.
func (p *Pager) Walk(
	ctx context.Context,
	imap transport.IMAPHandle,
	mailbox string,
	emit func(model.EmailMetadata),
) error {
	status, err := imap.Select(ctx, mailbox)
	if err != nil {
		return mailerr.Wrap(mailerr.ImapCommandError, err)
	}

	seq := p.Cursor(mailbox)
	log := p.log.With().Str("mailbox", mailbox).Logger()
	log.Debug().
		Uint32("from_seq", seq).
		Uint32("exists", status.NumMessages).
		Msg("walking mailbox")

	for emitted := 0; ; emitted++ {
		if p.opts.PageSize > 0 && emitted == p.opts.PageSize {
			log.Debug().Uint32("next_seq", seq).Msg("page full")
			return nil
		}

		fetched, err := imap.FetchHeader(ctx, seq)
		if err != nil {
			return mailerr.Wrap(mailerr.ImapCommandError,
				fmt.Errorf("fetching header %d: %w", seq, err))
		}
		if fetched == nil {
			emit(model.TerminalMarker())
			log.Debug().Int("emitted", emitted).Msg("reached end of mailbox")
			return nil
		}

		meta, err := p.decoder.Header(fetched.Raw)
		if err != nil {
			return err
		}

		loc := detail.Location{Mailbox: mailbox, Seq: seq}
		meta.ID = detail.SequenceID(mailbox, seq)
		if p.opts.Scheme == model.IDSchemeUID && fetched.UID != 0 {
			loc.UID = fetched.UID
			meta.ID = detail.UIDID(mailbox, fetched.UID)
		}
		p.cache.Remember(meta.ID, loc)

		emit(meta)
		seq++
		p.cursors[mailbox] = seq
	}
}
