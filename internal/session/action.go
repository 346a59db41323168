package session

import (
	"fmt"

	"github.com/nhle/mailclient/internal/model"
)

// ActionKind names one request from the UI layer.
type ActionKind int

const (
	ActionLogin ActionKind = iota
	ActionLogout
	ActionSend
	ActionListMailboxes
	ActionListMessages
	ActionFetchDetail
)

var actionNames = map[ActionKind]string{
	ActionLogin:         "login",
	ActionLogout:        "logout",
	ActionSend:          "send",
	ActionListMailboxes: "list_mailboxes",
	ActionListMessages:  "list_messages",
	ActionFetchDetail:   "fetch_detail",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// ParseActionKind maps a wire name such as "list_messages" to its kind.
func ParseActionKind(s string) (ActionKind, error) {
	for kind, name := range actionNames {
		if name == s {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// HasPayload reports whether the action is followed by a payload on its
// typed channel.
func (k ActionKind) HasPayload() bool {
	switch k {
	case ActionLogin, ActionSend, ActionListMessages, ActionFetchDetail:
		return true
	default:
		return false
	}
}

// Inbox carries actions into the controller. Every data-bearing action is
// followed by exactly one value on the channel for its kind.
type Inbox struct {
	Actions   chan ActionKind
	Users     chan model.UserProto
	Composes  chan model.ComposeRequest
	Mailboxes chan model.MailboxRequest
	Details   chan model.DetailRequest
}

// NewInbox creates an inbox whose channels hold up to buffer values each.
func NewInbox(buffer int) *Inbox {
	return &Inbox{
		Actions:   make(chan ActionKind, buffer),
		Users:     make(chan model.UserProto, buffer),
		Composes:  make(chan model.ComposeRequest, buffer),
		Mailboxes: make(chan model.MailboxRequest, buffer),
		Details:   make(chan model.DetailRequest, buffer),
	}
}

// Close closes every channel. Only the producing side may call it.
func (in *Inbox) Close() {
	close(in.Actions)
	close(in.Users)
	close(in.Composes)
	close(in.Mailboxes)
	close(in.Details)
}

// Signal is one value sent back to the UI layer.
type Signal interface {
	signal()
}

// Result terminates the handling of one action.
type Result struct {
	Action  ActionKind
	OK      bool
	Message string
}

// MailboxList answers ActionListMailboxes.
type MailboxList struct {
	Names []string
}

// Metadata is one record of a mailbox walk.
type Metadata struct {
	model.EmailMetadata
}

// Detail answers ActionFetchDetail.
type Detail struct {
	model.EmailDetail
}

func (Result) signal()      {}
func (MailboxList) signal() {}
func (Metadata) signal()    {}
func (Detail) signal()      {}
