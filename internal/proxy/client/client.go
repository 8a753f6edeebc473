// Package client establishes proxied tunnels and runs single-shot HTTP
// exchanges over them.
//
// Every call opens a fresh transport connection, negotiates the proxy
// handshake appropriate for the configured endpoint, optionally upgrades the
// tunnel to TLS against the destination host, performs one request/response
// exchange and closes the connection. There is no pooling, reuse or retrying.
package client

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/cerfical/tunnelpost/internal/log"
	"github.com/cerfical/tunnelpost/internal/proxy/addr"
	"github.com/cerfical/tunnelpost/internal/proxy/frame"
	"github.com/cerfical/tunnelpost/internal/proxy/transport"
)

func New(ops ...Option) (*Client, error) {
	defaults := []Option{
		WithDialer(transport.NewDialer()),
		WithLogger(log.Discard),
	}

	var c Client
	for _, op := range slices.Concat(defaults, ops) {
		op(&c)
	}

	if !c.proxyURL.IsZero() {
		switch proto := c.proxyURL.Proto; proto {
		case addr.ProtoSOCKS5:
			conn := SOCKS5Connector{
				Username: c.proxyURL.Username,
				Password: c.proxyURL.Password,
			}
			c.connect = conn.Connect
		case addr.ProtoHTTP:
			conn := HTTPConnector{
				Username: c.proxyURL.Username,
				Password: c.proxyURL.Password,
			}
			c.connect = conn.Connect
		default:
			return nil, fmt.Errorf("unsupported proxy protocol: %v", proto)
		}
	}

	return &c, nil
}

func WithProxyURL(u *addr.URL) Option {
	return func(c *Client) {
		c.proxyURL = *u
	}
}

func WithDialer(d transport.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithTimeout bounds every handshake and exchange step of a single call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

type Option func(*Client)

type Client struct {
	proxyURL addr.URL

	dialer  transport.Dialer
	timeout time.Duration
	log     *log.Logger

	connect func(io.ReadWriter, *addr.Addr) error
}

// Do performs a single HTTP exchange with the destination through the
// configured proxy, over TLS when secure is set.
//
// Exactly one transport connection is opened per call and closed on every
// return path. Inner non-2xx statuses are not errors; inspect
// [frame.Response.OK].
func (c *Client) Do(ctx context.Context, dst *addr.Addr, secure bool, req *frame.Request) (*frame.Response, error) {
	// Connect to the destination directly if no proxy is used
	dialAddr := dst
	if c.connect != nil {
		dialAddr = c.proxyURL.Addr()
	}

	duplex, err := c.dialer.Dial(ctx, dialAddr)
	if err != nil {
		return nil, fmt.Errorf("dial %v: %w", dialAddr, err)
	}

	stream := duplex
	var closeOnce sync.Once
	defer func() {
		closeOnce.Do(func() { stream.Close() })
	}()

	// Unblock pending reads promptly if the caller gives up.
	// The watchdog closes the raw duplex; closing a TLS wrapper would race
	// with the handshake
	stopWatch := watchCancel(ctx, func() {
		closeOnce.Do(func() { duplex.Close() })
	})
	defer stopWatch()

	if c.timeout > 0 {
		if err := duplex.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
	}

	if c.connect != nil {
		c.log.Info("Negotiating a tunnel",
			"proxy", c.proxyURL.String(),
			"dst", dst.String(),
		)
		if err := c.connect(stream, dst); err != nil {
			return nil, fmt.Errorf("%v handshake: %w", c.proxyURL.Proto, mapStreamErr(err))
		}
	}

	if secure {
		tlsStream, err := stream.UpgradeTLS(dst.Host)
		if err != nil {
			return nil, fmt.Errorf("tls upgrade for %v: %w", dst.Host, mapStreamErr(err))
		}
		stream = tlsStream
	}

	resp, err := frame.RoundTrip(stream, req)
	if err != nil {
		return nil, fmt.Errorf("exchange with %v: %w", dst, mapStreamErr(err))
	}

	c.log.Info("Exchange complete",
		"dst", dst.String(),
		"status", resp.Status,
	)
	return resp, nil
}

func watchCancel(ctx context.Context, closeStream func()) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			closeStream()
		case <-done:
		}
	}()

	return func() { close(done) }
}
