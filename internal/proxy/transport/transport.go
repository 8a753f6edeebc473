package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"time"

	"github.com/cerfical/tunnelpost/internal/proxy/addr"
)

var (
	// ErrTLSUpgradeUnsupported indicates an attempt to upgrade a stream that is already encrypted.
	ErrTLSUpgradeUnsupported = errors.New("tls upgrade unsupported")

	// ErrTLSHandshakeFailed indicates a failed TLS handshake against the tunnel destination.
	ErrTLSHandshakeFailed = errors.New("tls handshake failed")
)

// Duplex is a bidirectional byte stream over a single network connection.
//
// Reads return whatever bytes are next available; callers accumulate partial
// reads themselves. UpgradeTLS wraps the stream in a TLS session negotiated
// against the given server name without reopening the connection.
type Duplex interface {
	io.ReadWriteCloser

	SetDeadline(t time.Time) error
	UpgradeTLS(serverName string) (Duplex, error)
}

// Dialer opens a [Duplex] stream to a network endpoint.
type Dialer interface {
	Dial(ctx context.Context, a *addr.Addr) (Duplex, error)
}

type DialerFunc func(ctx context.Context, a *addr.Addr) (Duplex, error)

func (f DialerFunc) Dial(ctx context.Context, a *addr.Addr) (Duplex, error) {
	return f(ctx, a)
}

func NewDialer(ops ...Option) *NetDialer {
	defaults := []Option{
		WithConnectTimeout(0),
	}

	var d NetDialer
	for _, op := range slices.Concat(defaults, ops) {
		op(&d)
	}
	return &d
}

func WithConnectTimeout(d time.Duration) Option {
	return func(nd *NetDialer) {
		nd.connectTimeout = d
	}
}

// WithInsecureTLS disables certificate validation on TLS upgrades.
// A diagnostic escape hatch only, never a default.
func WithInsecureTLS(insecure bool) Option {
	return func(nd *NetDialer) {
		nd.insecureTLS = insecure
	}
}

type Option func(*NetDialer)

// NetDialer is a [Dialer] over plain TCP connections.
type NetDialer struct {
	connectTimeout time.Duration
	insecureTLS    bool
}

func (d *NetDialer) Dial(ctx context.Context, a *addr.Addr) (Duplex, error) {
	nd := net.Dialer{Timeout: d.connectTimeout}
	conn, err := nd.DialContext(ctx, "tcp", a.String())
	if err != nil {
		return nil, err
	}
	return &netDuplex{conn, d.insecureTLS}, nil
}

type netDuplex struct {
	net.Conn
	insecureTLS bool
}

func (d *netDuplex) UpgradeTLS(serverName string) (Duplex, error) {
	tlsConn := tls.Client(d.Conn, &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: d.insecureTLS,
	})

	if err := tlsConn.Handshake(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTLSHandshakeFailed, err)
	}
	return &tlsDuplex{tlsConn}, nil
}

type tlsDuplex struct {
	*tls.Conn
}

func (d *tlsDuplex) UpgradeTLS(string) (Duplex, error) {
	return nil, ErrTLSUpgradeUnsupported
}
