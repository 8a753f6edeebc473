// Package frame serializes single-shot HTTP/1.1 exchanges over an established tunnel.
//
// One request is written in a single chunk, and the response is accumulated
// until the peer closes the stream, as arranged by the Connection: close
// request header. Header and body are treated purely as byte ranges around
// the first CRLF-CRLF delimiter.
package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// UserAgent is sent with every tunneled request.
const UserAgent = "tunnelpost/1.0"

var crlf2 = []byte("\r\n\r\n")

// ErrMalformedResponse indicates a response with no header/body delimiter.
var ErrMalformedResponse = errors.New("malformed response")

// Header is a single name-value pair. Requests may carry duplicate names.
type Header struct {
	Name  string
	Value string
}

// Request is the client side of a tunneled HTTP/1.1 exchange.
type Request struct {
	Method string
	Path   string
	Host   string

	Headers []Header
	Body    []byte
}

// Encode produces the full wire form of the request, headers and body in one buffer.
func (r *Request) Encode() []byte {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%v %v HTTP/1.1\r\n", r.Method, r.Path)
	fmt.Fprintf(&sb, "Host: %v\r\n", r.Host)
	sb.WriteString("Connection: close\r\n")
	fmt.Fprintf(&sb, "User-Agent: %v\r\n", UserAgent)

	for _, h := range r.Headers {
		fmt.Fprintf(&sb, "%v: %v\r\n", h.Name, h.Value)
	}

	if r.Body != nil {
		fmt.Fprintf(&sb, "Content-Length: %v\r\n", len(r.Body))
	}
	sb.WriteString("\r\n")

	return append([]byte(sb.String()), r.Body...)
}

// RoundTrip writes the request and reads the response until end-of-stream.
func RoundTrip(rw io.ReadWriter, req *Request) (*Response, error) {
	if _, err := rw.Write(req.Encode()); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	raw, err := io.ReadAll(rw)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return ParseResponse(raw)
}

// ParseResponse splits raw response bytes at the first CRLF-CRLF delimiter
// and parses the status line and headers.
func ParseResponse(raw []byte) (*Response, error) {
	head, body, found := bytes.Cut(raw, crlf2)
	if !found {
		return nil, fmt.Errorf("%w: no header delimiter", ErrMalformedResponse)
	}

	statusLine, headerLines, _ := strings.Cut(string(head), "\r\n")

	status, statusText, err := parseStatusLine(statusLine)
	if err != nil {
		return nil, err
	}

	resp := Response{
		Status:     status,
		StatusText: statusText,
		Body:       body,
	}

	for _, line := range strings.Split(headerLines, "\r\n") {
		if line == "" {
			continue
		}
		name, value, _ := strings.Cut(line, ":")
		resp.Headers = append(resp.Headers, Header{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}

	return &resp, nil
}

func parseStatusLine(line string) (status int, statusText string, err error) {
	_, rest, ok := strings.Cut(line, " ")
	if !ok {
		return 0, "", fmt.Errorf("%w: bad status line %q", ErrMalformedResponse, line)
	}

	code, text, _ := strings.Cut(rest, " ")
	status, err = strconv.Atoi(code)
	if err != nil {
		return 0, "", fmt.Errorf("%w: bad status code %q", ErrMalformedResponse, code)
	}

	return status, text, nil
}

// Response is the server side of a tunneled HTTP/1.1 exchange.
type Response struct {
	Status     int
	StatusText string

	Headers []Header
	Body    []byte
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Text returns the raw response body.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}
