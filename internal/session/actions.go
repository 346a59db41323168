package session

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/nhle/mailclient/internal/attachment"
	"github.com/nhle/mailclient/internal/mailerr"
	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/transport"
)

// login opens the SMTP and IMAP connections for proto. An active session
// is logged out first. Nothing stays open when login fails.
func (c *Controller) login(ctx context.Context, proto model.UserProto) (err error) {
	if c.state == Active {
		c.logger(ctx).Info().Msg("switching account, logging out first")
		c.teardown(ctx, true)
	}

	user, err := model.BuildUser(proto, c.providers)
	if err != nil {
		return err
	}

	c.state = Authenticating
	defer func() {
		if err != nil {
			c.state = LoggedOut
		}
	}()

	creds := transport.Credentials{
		Username: user.EmailAddress,
		Password: user.Password(),
	}

	smtp, err := c.dialer.DialSMTP(ctx, user.SMTPHost, creds)
	if err != nil {
		return mailerr.Wrap(mailerr.SmtpConnectError, err)
	}
	if err := smtp.TestConnection(ctx); err != nil {
		_ = smtp.Close()
		return mailerr.Wrap(mailerr.SmtpConnectError, err)
	}

	imap, err := c.dialer.DialIMAP(ctx, user.IMAPHost, creds)
	if err != nil {
		_ = smtp.Close()
		return mailerr.Wrap(mailerr.ImapConnectError, err)
	}

	c.session = &mailSession{user: user, smtp: smtp, imap: imap}
	c.cache.Reset()
	c.pager.Reset()
	c.state = Active

	c.logger(ctx).Info().
		Str("user", user.EmailAddress).
		Str("imap_host", user.IMAPHost).
		Str("smtp_host", user.SMTPHost).
		Msg("logged in")
	return nil
}

func (c *Controller) send(ctx context.Context, req model.ComposeRequest) error {
	msg, err := c.encoder.Encode(c.session.user.EmailAddress, req)
	if err != nil {
		return err
	}

	if err := c.session.smtp.Send(ctx, msg.From, msg.To, msg.Raw); err != nil {
		return mailerr.Wrap(mailerr.SendError, err)
	}

	c.logger(ctx).Info().
		Strs("to", msg.To).
		Int("attachments", len(req.AttachmentPaths)).
		Msg("message sent")
	return nil
}

func (c *Controller) listMailboxes(ctx context.Context, emit func(Signal)) error {
	names, err := c.session.imap.List(ctx)
	if err != nil {
		return mailerr.Wrap(mailerr.ImapCommandError, err)
	}

	kept := make([]string, 0, len(names))
	for _, name := range names {
		if displayable(name) {
			kept = append(kept, name)
		}
	}

	emit(MailboxList{Names: kept})
	return nil
}

// displayable reports whether a mailbox name can be shown as is: names
// still in modified UTF-7 contain '&', and decoded ones contain non-ASCII
// runes.
func displayable(name string) bool {
	if strings.Contains(name, "&") {
		return false
	}
	for _, r := range name {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func (c *Controller) listMessages(ctx context.Context, mailbox string, emit func(Signal)) error {
	return c.pager.Walk(ctx, c.session.imap, mailbox, func(m model.EmailMetadata) {
		emit(Metadata{EmailMetadata: m})
	})
}

// fetchDetail answers from the cache when it can. Otherwise it fetches the
// full message, which marks it \Seen, and saves its attachments under the
// requested directory.
func (c *Controller) fetchDetail(ctx context.Context, req model.DetailRequest, emit func(Signal)) error {
	if d, ok := c.cache.Get(req.ID); ok {
		emit(Detail{EmailDetail: d})
		return nil
	}

	loc, err := c.cache.Locate(req.ID)
	if err != nil {
		return err
	}

	imap := c.session.imap
	if _, err := imap.Select(ctx, loc.Mailbox); err != nil {
		return mailerr.Wrap(mailerr.ImapCommandError, err)
	}

	var fetched *transport.Fetched
	if loc.ByUID() {
		fetched, err = imap.FetchFullUID(ctx, loc.UID)
	} else {
		fetched, err = imap.FetchFull(ctx, loc.Seq)
	}
	if err != nil {
		return mailerr.Wrap(mailerr.ImapCommandError, fmt.Errorf("fetching %s: %w", req.ID, err))
	}
	if fetched == nil {
		return mailerr.New(mailerr.MessageNotFound, "%s", req.ID)
	}

	msg, err := c.decoder.Message(fetched.Raw)
	if err != nil {
		return err
	}

	dir := req.DestinationDir
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}

	files := make([]attachment.File, 0, len(msg.Attachments))
	for _, part := range msg.Attachments {
		files = append(files, attachment.File{Name: part.Filename, Data: part.Data})
	}
	names, err := c.persister.SaveAll(dir, files)
	if err != nil {
		return err
	}
	detail := model.EmailDetail{Body: msg.Body, Attachments: names}

	c.cache.Put(req.ID, detail)
	c.logger(ctx).Debug().
		Str("id", req.ID).
		Int("attachments", len(detail.Attachments)).
		Msg("fetched message detail")

	emit(Detail{EmailDetail: detail})
	return nil
}
