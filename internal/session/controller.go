// Package session runs the mail session: it owns the IMAP and SMTP
// connections and serves UI actions one at a time.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/nhle/mailclient/internal/attachment"
	"github.com/nhle/mailclient/internal/codec"
	"github.com/nhle/mailclient/internal/detail"
	"github.com/nhle/mailclient/internal/mailerr"
	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/pager"
	"github.com/nhle/mailclient/internal/transport"
)

// State is the lifecycle state of the session.
type State int

const (
	LoggedOut State = iota
	Authenticating
	Active
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "LoggedOut"
	case Authenticating:
		return "Authenticating"
	case Active:
		return "Active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrInboxClosed is returned by Run when a payload channel closes while an
// action is waiting on it.
var ErrInboxClosed = errors.New("session: inbox closed while awaiting payload")

// Options configure a Controller.
type Options struct {
	Providers []string
	Scheme    model.IDScheme
	PageSize  int
	Fallbacks model.Fallbacks

	// FS is where attachments are read from and written to.
	FS afero.Fs

	Logger zerolog.Logger
}

// OptionsFromConfig derives controller options from the application
// configuration.
func OptionsFromConfig(cfg *model.AppConfig, fs afero.Fs, log zerolog.Logger) Options {
	return Options{
		Providers: cfg.Providers,
		Scheme:    cfg.IDScheme,
		PageSize:  cfg.PageSize,
		Fallbacks: cfg.Fallbacks,
		FS:        fs,
		Logger:    log,
	}
}

type mailSession struct {
	user model.User
	smtp transport.SMTPHandle
	imap transport.IMAPHandle
}

// Controller serializes actions against a single mail session. All of its
// state is owned by the goroutine running Run.
type Controller struct {
	dialer    transport.Dialer
	providers []string
	log       zerolog.Logger

	encoder   *codec.Encoder
	decoder   *codec.Decoder
	persister *attachment.Persister
	cache     *detail.Cache
	pager     *pager.Pager

	state    State
	awaiting *ActionKind
	session  *mailSession
}

// New creates a logged-out controller.
func New(dialer transport.Dialer, opts Options) *Controller {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if len(opts.Providers) == 0 {
		opts.Providers = model.DefaultProviders
	}
	if opts.Scheme == "" {
		opts.Scheme = model.IDSchemeSequence
	}

	decoder := codec.NewDecoder(opts.Fallbacks)
	cache := detail.NewCache()

	return &Controller{
		dialer:    dialer,
		providers: opts.Providers,
		log:       opts.Logger,
		encoder:   codec.NewEncoder(opts.FS),
		decoder:   decoder,
		persister: attachment.NewPersister(opts.FS),
		cache:     cache,
		pager: pager.New(
			pager.Options{Scheme: opts.Scheme, PageSize: opts.PageSize},
			decoder, cache, opts.Logger,
		),
	}
}

// State returns the session state. It is only meaningful between actions.
func (c *Controller) State() State {
	return c.state
}

// Awaiting reports the action whose payload the controller is blocked on.
func (c *Controller) Awaiting() (ActionKind, bool) {
	if c.awaiting == nil {
		return 0, false
	}
	return *c.awaiting, true
}

// Run serves actions from in until in.Actions closes or ctx is done, then
// tears down any open session. Each action produces its payload signals
// followed by exactly one Result.
func (c *Controller) Run(ctx context.Context, in *Inbox, out chan<- Signal) error {
	defer c.teardown(context.WithoutCancel(ctx), true)

	for {
		var kind ActionKind
		select {
		case <-ctx.Done():
			return ctx.Err()
		case k, ok := <-in.Actions:
			if !ok {
				return nil
			}
			kind = k
		}

		req, err := c.receive(ctx, in, kind)
		if err != nil {
			return err
		}

		id := uuid.NewString()
		log := c.log.With().
			Str("action", kind.String()).
			Str("action_id", id).
			Logger()

		emit := func(sig Signal) {
			select {
			case out <- sig:
			case <-ctx.Done():
			}
		}

		err = c.handle(log.WithContext(ctx), req, emit)
		result := Result{Action: kind, OK: err == nil}
		if err != nil {
			result.Message = err.Error()
			log.Warn().Err(err).Msg("action failed")
		} else {
			log.Debug().Msg("action done")
		}
		emit(result)
	}
}

// request is an action with its payload.
type request struct {
	kind    ActionKind
	user    model.UserProto
	compose model.ComposeRequest
	mailbox model.MailboxRequest
	detail  model.DetailRequest
}

// receive blocks on the payload channel that matches kind.
func (c *Controller) receive(ctx context.Context, in *Inbox, kind ActionKind) (request, error) {
	req := request{kind: kind}
	if !kind.HasPayload() {
		return req, nil
	}

	c.awaiting = &kind
	defer func() { c.awaiting = nil }()

	var ok bool
	switch kind {
	case ActionLogin:
		select {
		case req.user, ok = <-in.Users:
		case <-ctx.Done():
			return req, ctx.Err()
		}
	case ActionSend:
		select {
		case req.compose, ok = <-in.Composes:
		case <-ctx.Done():
			return req, ctx.Err()
		}
	case ActionListMessages:
		select {
		case req.mailbox, ok = <-in.Mailboxes:
		case <-ctx.Done():
			return req, ctx.Err()
		}
	case ActionFetchDetail:
		select {
		case req.detail, ok = <-in.Details:
		case <-ctx.Done():
			return req, ctx.Err()
		}
	}
	if !ok {
		return req, fmt.Errorf("%w: %s", ErrInboxClosed, kind)
	}
	return req, nil
}

// handle dispatches one request.
func (c *Controller) handle(ctx context.Context, req request, emit func(Signal)) error {
	switch req.kind {
	case ActionLogin:
		return c.login(ctx, req.user)
	case ActionLogout:
		// Succeeds with or without a session.
		c.teardown(ctx, true)
		return nil
	}
	if c.state != Active {
		return &mailerr.Error{Kind: mailerr.NoActiveSession}
	}

	var err error
	switch req.kind {
	case ActionSend:
		err = c.send(ctx, req.compose)
	case ActionListMailboxes:
		err = c.listMailboxes(ctx, emit)
	case ActionListMessages:
		err = c.listMessages(ctx, req.mailbox.Mailbox, emit)
	case ActionFetchDetail:
		err = c.fetchDetail(ctx, req.detail, emit)
	default:
		err = fmt.Errorf("unsupported action %s", req.kind)
	}

	if imapConnectionLost(err) {
		c.logger(ctx).Warn().Err(err).Msg("connection lost, ending session")
		c.teardown(ctx, false)
	}
	return err
}

// imapConnectionLost reports whether an IMAP command failed because the
// connection is gone. Decode failures can wrap io.ErrUnexpectedEOF from a
// truncated message and leave the session usable.
func imapConnectionLost(err error) bool {
	return mailerr.KindOf(err) == mailerr.ImapCommandError &&
		transport.IsConnectionLost(err)
}

// teardown closes the session's handles and forgets everything learned
// during it. A polite teardown says LOGOUT first; its failure is only
// logged.
func (c *Controller) teardown(ctx context.Context, polite bool) {
	s := c.session
	c.session = nil
	c.state = LoggedOut
	c.cache.Reset()
	c.pager.Reset()
	if s == nil {
		return
	}

	log := c.logger(ctx).With().Str("user", s.user.EmailAddress).Logger()

	if polite {
		if err := s.imap.Logout(ctx); err != nil {
			log.Warn().Err(err).Msg("IMAP logout failed")
		}
	}
	if err := s.imap.Close(); err != nil {
		log.Debug().Err(err).Msg("closing IMAP connection")
	}
	if err := s.smtp.Close(); err != nil {
		log.Debug().Err(err).Msg("closing SMTP connection")
	}
	log.Info().Msg("logged out")
}

// logger returns the action logger carried by ctx, or the controller's
// own logger outside an action.
func (c *Controller) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &c.log
}
