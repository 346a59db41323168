package detail

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nhle/mailclient/internal/mailerr"
)

const uidMarker = ";UID="

// Location addresses one message on the server. UID is zero for
// sequence-addressed locations.
type Location struct {
	Mailbox string
	Seq     uint32
	UID     uint32
}

// ByUID reports whether the location should be fetched with UID FETCH.
func (l Location) ByUID() bool {
	return l.UID != 0
}

// SequenceID mints the "mailbox:sequence" identifier.
func SequenceID(mailbox string, seq uint32) string {
	return mailbox + ":" + strconv.FormatUint(uint64(seq), 10)
}

// UIDID mints the "mailbox;UID=n" identifier.
func UIDID(mailbox string, uid uint32) string {
	return mailbox + uidMarker + strconv.FormatUint(uint64(uid), 10)
}

// ParseID recovers the location encoded in id. Mailbox names may contain
// ':' themselves, so the sequence number is whatever follows the last one.
func ParseID(id string) (Location, error) {
	if i := strings.LastIndex(id, uidMarker); i >= 0 {
		uid, err := parseNumber(id[i+len(uidMarker):])
		if err != nil || i == 0 {
			return Location{}, badID(id)
		}
		return Location{Mailbox: id[:i], UID: uid}, nil
	}

	i := strings.LastIndex(id, ":")
	if i <= 0 {
		return Location{}, badID(id)
	}
	seq, err := parseNumber(id[i+1:])
	if err != nil {
		return Location{}, badID(id)
	}
	return Location{Mailbox: id[:i], Seq: seq}, nil
}

func parseNumber(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("zero is not a message number")
	}
	return uint32(n), nil
}

func badID(id string) error {
	return mailerr.New(mailerr.ParseError, "malformed message id %q", id)
}
