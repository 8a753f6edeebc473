package client

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrAllMethodsRejected indicates the proxy accepted none of the offered auth methods.
	ErrAllMethodsRejected = errors.New("no acceptable auth method was selected")

	// ErrUnsupportedAuthMethod indicates the proxy selected a method the client cannot perform.
	ErrUnsupportedAuthMethod = errors.New("unsupported auth method")

	// ErrAuthRequired indicates the proxy demands credentials that were not supplied.
	ErrAuthRequired = errors.New("proxy requires authentication, but no credentials were supplied")

	// ErrAuthFailed indicates the proxy rejected the supplied credentials.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrProxyTimeout indicates a handshake or exchange step missed its deadline.
	ErrProxyTimeout = errors.New("proxy timed out")

	// ErrConnectionClosed indicates the stream ended before a complete handshake or response.
	ErrConnectionClosed = errors.New("connection closed unexpectedly")
)

// ConnectRejectedError is a non-200 response to an HTTP CONNECT request,
// carrying the status line exactly as the proxy sent it.
type ConnectRejectedError struct {
	StatusLine string
}

func (e *ConnectRejectedError) Error() string {
	return fmt.Sprintf("proxy rejected CONNECT: %v", e.StatusLine)
}

// mapStreamErr distinguishes deadline expiry and premature end-of-stream
// from other transport failures.
func mapStreamErr(err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrProxyTimeout, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	default:
		return err
	}
}
