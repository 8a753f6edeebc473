package client

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/cerfical/tunnelpost/internal/proxy/addr"
)

// HTTPConnector negotiates an HTTP CONNECT tunnel to a destination over an open proxy stream.
type HTTPConnector struct {
	Username string
	Password string
}

func (c *HTTPConnector) Connect(proxyConn io.ReadWriter, dstAddr *addr.Addr) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CONNECT %v HTTP/1.1\r\n", dstAddr)
	fmt.Fprintf(&sb, "Host: %v\r\n", dstAddr)
	if c.Username != "" || c.Password != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
		fmt.Fprintf(&sb, "Proxy-Authorization: Basic %v\r\n", creds)
	}
	sb.WriteString("\r\n")

	if _, err := io.WriteString(proxyConn, sb.String()); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	head, err := readHead(proxyConn)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	statusLine, _, _ := strings.Cut(string(head), "\r\n")

	// Deliberately loose: any status line carrying a 200 token is accepted
	if !strings.Contains(statusLine, "200") {
		return &ConnectRejectedError{StatusLine: statusLine}
	}
	return nil
}

// readHead accumulates reads until the response header delimiter arrives,
// tolerating proxies that split the header across multiple segments.
func readHead(r io.Reader) ([]byte, error) {
	var (
		head  []byte
		chunk [512]byte
	)

	for !bytes.Contains(head, []byte("\r\n\r\n")) {
		n, err := r.Read(chunk[:])
		head = append(head, chunk[:n]...)

		if err != nil && !bytes.Contains(head, []byte("\r\n\r\n")) {
			return nil, err
		}
	}

	return head, nil
}
