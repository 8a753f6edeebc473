package socks5

import (
	"fmt"
	"io"
)

func ReadGreetingReply(r io.Reader) (*GreetingReply, error) {
	if err := checkVersion(r, V5); err != nil {
		return nil, err
	}

	method, err := readByte(r)
	if err != nil {
		return nil, fmt.Errorf("decode method: %w", err)
	}

	return &GreetingReply{Method: Method(method)}, nil
}

// GreetingReply carries the authentication method selected by the server.
type GreetingReply struct {
	Method Method
}

func (r *GreetingReply) Write(w io.Writer) error {
	bytes := []byte{byte(V5), byte(r.Method)}

	_, err := w.Write(bytes)
	return err
}
