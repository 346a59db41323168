package transport

import (
	"bytes"
	"context"
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/rs/zerolog"
)

// SMTP is an authenticated SMTP session that transparently reconnects
// once when the server has dropped an idle connection.
type SMTP struct {
	client *smtp.Client
	dial   func(ctx context.Context) (*smtp.Client, error)
	log    zerolog.Logger
}

// DialSMTP connects to the submission port and authenticates with SASL
// PLAIN.
func (d *NetDialer) DialSMTP(
	ctx context.Context, host string, creds Credentials,
) (SMTPHandle, error) {
	h := &SMTP{log: d.opts.Logger.With().Str("smtp_host", host).Logger()}
	h.dial = func(ctx context.Context) (*smtp.Client, error) {
		conn, err := d.dial(ctx, host, d.opts.SMTPPort, d.opts.SMTPStartTLS)
		if err != nil {
			return nil, err
		}

		var client *smtp.Client
		if d.opts.SMTPStartTLS {
			// NewClientStartTLS closes the connection when the upgrade fails.
			client, err = smtp.NewClientStartTLS(conn, d.tlsConfig(host))
			if err != nil {
				return nil, fmt.Errorf("SMTP STARTTLS with %s: %w", host, err)
			}
		} else {
			client = smtp.NewClient(conn)
		}

		auth := sasl.NewPlainClient("", creds.Username, creds.Password)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("SMTP auth as %s: %w", creds.Username, err)
		}
		return client, nil
	}

	client, err := h.dial(ctx)
	if err != nil {
		return nil, err
	}
	h.client = client

	h.log.Debug().Msg("connected to SMTP server")
	return h, nil
}

// TestConnection issues NOOP.
func (h *SMTP) TestConnection(_ context.Context) error {
	if err := h.client.Noop(); err != nil {
		return fmt.Errorf("SMTP NOOP: %w", err)
	}
	return nil
}

// Send submits msg. If the session no longer answers NOOP it is replaced
// by a fresh one before the transaction starts.
func (h *SMTP) Send(
	ctx context.Context, from string, to []string, msg []byte,
) error {
	if err := h.client.Noop(); err != nil {
		h.log.Debug().Err(err).Msg("SMTP session went stale, reconnecting")
		_ = h.client.Close()

		client, dialErr := h.dial(ctx)
		if dialErr != nil {
			return fmt.Errorf("reconnecting SMTP: %w", dialErr)
		}
		h.client = client
	}

	if err := h.transaction(from, to, msg); err != nil {
		_ = h.client.Reset()
		return err
	}
	return nil
}

func (h *SMTP) transaction(from string, to []string, msg []byte) error {
	if err := h.client.Mail(from, nil); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	for _, rcpt := range to {
		if err := h.client.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("SMTP RCPT TO %q: %w", rcpt, err)
		}
	}

	writer, err := h.client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := bytes.NewReader(msg).WriteTo(writer); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing message body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing message: %w", err)
	}
	return nil
}

// Close says QUIT, falling back to dropping the connection.
func (h *SMTP) Close() error {
	if err := h.client.Quit(); err != nil {
		return h.client.Close()
	}
	return nil
}
