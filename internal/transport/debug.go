package transport

import (
	"strings"

	"github.com/rs/zerolog"
)

// protocolWriter receives the raw IMAP exchange and logs it at trace
// level. LOGIN lines are replaced so credentials never reach the log.
type protocolWriter struct {
	log zerolog.Logger
}

func (w protocolWriter) Write(p []byte) (int, error) {
	data := strings.TrimSpace(string(p))
	if strings.Contains(strings.ToUpper(data), "LOGIN") {
		data = "[LOGIN command redacted]"
	}
	w.log.Trace().Str("imap_data", data).Msg("imap protocol")
	return len(p), nil
}
