package model

// EmailMetadata is the list-view summary of one message. A record with an
// empty ID is the terminal marker that closes a mailbox walk.
type EmailMetadata struct {
	// ID identifies the message for a later detail request. It is either a
	// synthesized "mailbox:sequence" token or a UID token.
	ID string `json:"id"`

	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`

	// Date is the raw Date header value.
	Date string `json:"date"`
}

// TerminalMarker returns the metadata record that signals the end of a
// mailbox.
func TerminalMarker() EmailMetadata {
	return EmailMetadata{}
}

// IsTerminal reports whether m is the end-of-mailbox marker.
func (m EmailMetadata) IsTerminal() bool {
	return m.ID == ""
}

// EmailDetail is the rendered body of a message plus the local filenames
// its attachments were written to.
type EmailDetail struct {
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
}

// Clone returns a copy that shares no memory with d.
func (d EmailDetail) Clone() EmailDetail {
	out := EmailDetail{Body: d.Body}
	if d.Attachments != nil {
		out.Attachments = append([]string(nil), d.Attachments...)
	}
	return out
}

// ComposeRequest is an outbound message as composed in the UI.
type ComposeRequest struct {
	To              string   `json:"to"`
	Subject         string   `json:"subject"`
	Body            string   `json:"body"`
	AttachmentPaths []string `json:"attachments"`
}

// MailboxRequest asks for the next page of metadata in a mailbox.
type MailboxRequest struct {
	Mailbox string `json:"mailbox"`
}

// DetailRequest asks for the detail of one message. Attachments are
// written under DestinationDir.
type DetailRequest struct {
	ID             string `json:"id"`
	DestinationDir string `json:"dir"`
}
