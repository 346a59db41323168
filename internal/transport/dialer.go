package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Options configures how NetDialer reaches the mail servers.
type Options struct {
	IMAPPort     int
	IMAPStartTLS bool
	SMTPPort     int
	SMTPStartTLS bool

	// Timeout bounds each TCP connect and TLS handshake.
	Timeout time.Duration

	// TLSConfig, when set, is cloned for every connection and its
	// ServerName overwritten with the dialed host.
	TLSConfig *tls.Config

	Logger zerolog.Logger
}

// NetDialer dials real servers over TCP with go-imap and go-smtp.
type NetDialer struct {
	opts Options
}

// NewDialer creates a dialer, filling in the conventional implicit-TLS
// ports when none are configured.
func NewDialer(opts Options) *NetDialer {
	if opts.IMAPPort == 0 {
		opts.IMAPPort = 993
	}
	if opts.SMTPPort == 0 {
		opts.SMTPPort = 465
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &NetDialer{opts: opts}
}

func (d *NetDialer) tlsConfig(host string) *tls.Config {
	cfg := &tls.Config{}
	if d.opts.TLSConfig != nil {
		cfg = d.opts.TLSConfig.Clone()
	}
	cfg.ServerName = host
	return cfg
}

// dial opens a TCP connection to host:port, wrapped in TLS unless the
// protocol will upgrade it with STARTTLS itself.
func (d *NetDialer) dial(
	ctx context.Context, host string, port int, startTLS bool,
) (net.Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	netDialer := &net.Dialer{Timeout: d.opts.Timeout}

	if startTLS {
		conn, err := netDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial to %s: %w", addr, err)
		}
		return conn, nil
	}

	tlsDialer := &tls.Dialer{NetDialer: netDialer, Config: d.tlsConfig(host)}
	conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("TLS dial to %s: %w", addr, err)
	}
	return conn, nil
}
