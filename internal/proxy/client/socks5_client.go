package client

import (
	"fmt"
	"io"

	"github.com/cerfical/tunnelpost/internal/proxy/addr"
	"github.com/cerfical/tunnelpost/internal/proxy/socks5"
)

// SOCKS5Connector negotiates a SOCKS5 tunnel to a destination over an open proxy stream.
type SOCKS5Connector struct {
	Username string
	Password string
}

// Connect reads handshake messages by exact length, so no stream bytes
// past the final reply are consumed.
func (c *SOCKS5Connector) Connect(proxyConn io.ReadWriter, dstAddr *addr.Addr) error {
	if err := c.negotiateMethod(proxyConn); err != nil {
		return err
	}

	connReq := socks5.Request{
		Command: socks5.CommandConnect,
		DstAddr: *dstAddr,
	}
	if err := connReq.Write(proxyConn); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	reply, err := socks5.ReadReply(proxyConn)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if reply.Status != socks5.StatusGranted {
		return &socks5.ReplyError{Status: reply.Status}
	}

	return nil
}

func (c *SOCKS5Connector) negotiateMethod(proxyConn io.ReadWriter) error {
	methods := []socks5.Method{socks5.MethodNone}
	if c.hasCredentials() {
		methods = append(methods, socks5.MethodUsernamePassword)
	}

	greet := socks5.Greeting{Methods: methods}
	if err := greet.Write(proxyConn); err != nil {
		return fmt.Errorf("write greeting: %w", err)
	}

	greetReply, err := socks5.ReadGreetingReply(proxyConn)
	if err != nil {
		return fmt.Errorf("read greeting reply: %w", err)
	}

	switch greetReply.Method {
	case socks5.MethodNone:
		return nil
	case socks5.MethodUsernamePassword:
		if !c.hasCredentials() {
			return ErrAuthRequired
		}
		return c.authenticate(proxyConn)
	case socks5.MethodNotAcceptable:
		return ErrAllMethodsRejected
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedAuthMethod, greetReply.Method)
	}
}

func (c *SOCKS5Connector) authenticate(proxyConn io.ReadWriter) error {
	authReq := socks5.AuthRequest{
		Username: c.Username,
		Password: c.Password,
	}
	if err := authReq.Write(proxyConn); err != nil {
		return fmt.Errorf("write auth request: %w", err)
	}

	authReply, err := socks5.ReadAuthReply(proxyConn)
	if err != nil {
		return fmt.Errorf("read auth reply: %w", err)
	}
	if !authReply.Succeeded() {
		return fmt.Errorf("%w (status %#02x)", ErrAuthFailed, authReply.Status)
	}

	return nil
}

func (c *SOCKS5Connector) hasCredentials() bool {
	return c.Username != "" || c.Password != ""
}
