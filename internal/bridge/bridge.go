// Package bridge connects a session controller to a line-oriented JSON
// stream, one message per line.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/nhle/mailclient/internal/session"
)

// maxLine bounds one inbound JSON line.
const maxLine = 4 << 20

// Inbound is one line read from the UI. An "action" line names the action;
// the payload line that follows carries its data.
type Inbound struct {
	Type   string          `json:"type"`
	Action string          `json:"action,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Outbound is one line written to the UI.
type Outbound struct {
	Type    string `json:"type"`
	Action  string `json:"action,omitempty"`
	OK      *bool  `json:"ok,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Serve runs ctrl against r and w until r is exhausted or ctx is done.
func Serve(
	ctx context.Context,
	ctrl *session.Controller,
	r io.Reader,
	w io.Writer,
	log zerolog.Logger,
) error {
	in := session.NewInbox(0)
	out := make(chan session.Signal, 16)

	// The reader may stay blocked on r after Serve returns; nothing waits
	// for it.
	go func() {
		if err := Read(ctx, r, in, log); err != nil {
			log.Error().Err(err).Msg("reading input stream")
		}
	}()

	var writeErr error
	var wg conc.WaitGroup
	wg.Go(func() {
		writeErr = Write(w, out)
	})

	runErr := ctrl.Run(ctx, in, out)
	close(out)
	wg.Wait()

	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errors.Join(runErr, writeErr)
}

// payloadKinds maps each payload line type to the action it belongs to.
var payloadKinds = map[string]session.ActionKind{
	"user":    session.ActionLogin,
	"compose": session.ActionSend,
	"mailbox": session.ActionListMessages,
	"detail":  session.ActionFetchDetail,
}

// Read decodes lines from r into in and closes in when r ends. Lines that
// do not decode, and payloads no action asked for, are logged and skipped.
// An action that arrives while the previous one still lacks its payload
// gets an empty payload first, so the controller never stalls.
func Read(ctx context.Context, r io.Reader, in *session.Inbox, log zerolog.Logger) error {
	defer in.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLine)

	var pending *session.ActionKind
	for line := 1; scanner.Scan(); line++ {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		lineLog := log.With().Int("line", line).Logger()

		var msg Inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			lineLog.Warn().Err(err).Msg("skipping malformed line")
			continue
		}

		var err error
		if msg.Type == "action" {
			var kind session.ActionKind
			kind, err = session.ParseActionKind(msg.Action)
			if err == nil {
				if pending != nil {
					lineLog.Warn().Stringer("action", *pending).Msg("payload missing, sending empty one")
					err = sendPayload(ctx, in, *pending, nil)
				}
				pending = nil
				if err == nil {
					err = send(ctx, in.Actions, kind)
				}
				if err == nil && kind.HasPayload() {
					pending = &kind
				}
			}
		} else if kind, ok := payloadKinds[msg.Type]; !ok {
			err = fmt.Errorf("unknown message type %q", msg.Type)
		} else if pending == nil || *pending != kind {
			err = fmt.Errorf("unexpected %s payload", msg.Type)
		} else {
			err = sendPayload(ctx, in, kind, msg.Data)
			pending = nil
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lineLog.Warn().Err(err).Msg("skipping line")
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning input: %w", err)
	}
	return nil
}

// sendPayload decodes data for kind and hands it to the controller. A
// payload that does not decode is still delivered, empty, so the
// controller answers the action.
func sendPayload(ctx context.Context, in *session.Inbox, kind session.ActionKind, data json.RawMessage) error {
	switch kind {
	case session.ActionLogin:
		return decodeAndSend(ctx, in.Users, data)
	case session.ActionSend:
		return decodeAndSend(ctx, in.Composes, data)
	case session.ActionListMessages:
		return decodeAndSend(ctx, in.Mailboxes, data)
	case session.ActionFetchDetail:
		return decodeAndSend(ctx, in.Details, data)
	default:
		return fmt.Errorf("%s takes no payload", kind)
	}
}

func decodeAndSend[T any](ctx context.Context, ch chan T, data json.RawMessage) error {
	var v T
	var decodeErr error
	if len(data) > 0 {
		if err := json.Unmarshal(data, &v); err != nil {
			var zero T
			v = zero
			decodeErr = fmt.Errorf("decoding %T: %w", v, err)
		}
	}
	if err := send(ctx, ch, v); err != nil {
		return err
	}
	return decodeErr
}

func send[T any](ctx context.Context, ch chan T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Write encodes every signal from out as a JSON line until out closes. After
// a write failure the remaining signals are drained so the producer never
// blocks.
func Write(w io.Writer, out <-chan session.Signal) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	var writeErr error
	for sig := range out {
		if writeErr != nil {
			continue
		}
		if err := enc.Encode(Encode(sig)); err != nil {
			writeErr = fmt.Errorf("writing signal: %w", err)
		}
	}
	return writeErr
}

// Encode maps a signal to its wire form.
func Encode(sig session.Signal) Outbound {
	switch s := sig.(type) {
	case session.Result:
		ok := s.OK
		return Outbound{Type: "result", Action: s.Action.String(), OK: &ok, Message: s.Message}
	case session.MailboxList:
		names := s.Names
		if names == nil {
			names = []string{}
		}
		return Outbound{Type: "mailboxes", Data: names}
	case session.Metadata:
		return Outbound{Type: "metadata", Data: s.EmailMetadata}
	case session.Detail:
		return Outbound{Type: "detail", Data: s.EmailDetail}
	default:
		return Outbound{Type: "unknown", Message: fmt.Sprintf("%T", sig)}
	}
}
