package model

import (
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailclient/internal/mailerr"
)

// DefaultProviders is the allow-list of mail domains used when the
// configuration does not name any.
var DefaultProviders = []string{"qq.com", "163.com", "126.com"}

// UserProto is the login payload as it arrives from the UI layer.
type UserProto struct {
	EmailAddress string `json:"email"`
	Password     string `json:"password"`
}

// User is the authenticated identity of a session. The SMTP and IMAP hosts
// are derived from the address domain, so a User is only ever built
// through BuildUser.
type User struct {
	EmailAddress string
	Domain       string
	SMTPHost     string
	IMAPHost     string
	password     string
}

// Password returns the credential used for both SMTP and IMAP login.
func (u User) Password() string {
	return u.password
}

// BuildUser parses the login payload and derives the host pair. It fails
// with InvalidAddress when the address does not parse and with
// UnsupportedDomain when the domain is not in providers.
func BuildUser(proto UserProto, providers []string) (User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(proto.EmailAddress))
	if err != nil {
		return User{}, mailerr.New(
			mailerr.InvalidAddress, "parsing %q: %v", proto.EmailAddress, err,
		)
	}

	at := strings.LastIndex(addr.Address, "@")
	if at <= 0 || at == len(addr.Address)-1 {
		return User{}, mailerr.New(
			mailerr.InvalidAddress, "%q has no domain", proto.EmailAddress,
		)
	}
	domain := strings.ToLower(addr.Address[at+1:])

	if !domainAllowed(domain, providers) {
		return User{}, mailerr.New(
			mailerr.UnsupportedDomain,
			"%s is not supported (supported: %s)",
			domain, strings.Join(providers, " | "),
		)
	}

	return User{
		EmailAddress: addr.Address,
		Domain:       domain,
		SMTPHost:     "smtp." + domain,
		IMAPHost:     "imap." + domain,
		password:     proto.Password,
	}, nil
}

func domainAllowed(domain string, providers []string) bool {
	for _, p := range providers {
		if strings.EqualFold(strings.TrimSpace(p), domain) {
			return true
		}
	}
	return false
}
