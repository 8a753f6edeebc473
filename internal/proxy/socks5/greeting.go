package socks5

import (
	"fmt"
	"io"
	"math"
)

func ReadGreeting(r io.Reader) (*Greeting, error) {
	if err := checkVersion(r, V5); err != nil {
		return nil, err
	}

	nmethods, err := readByte(r)
	if err != nil {
		return nil, fmt.Errorf("decode method count: %w", err)
	}

	greet := Greeting{
		Methods: make([]Method, 0, nmethods),
	}

	for range nmethods {
		m, err := readByte(r)
		if err != nil {
			return nil, fmt.Errorf("decode methods: %w", err)
		}
		greet.Methods = append(greet.Methods, Method(m))
	}

	return &greet, nil
}

// Greeting is the method negotiation request a client opens a SOCKS5 session with.
type Greeting struct {
	Methods []Method
}

func (g *Greeting) Write(w io.Writer) error {
	if len(g.Methods) > math.MaxUint8 {
		return fmt.Errorf("too many auth methods (%v)", len(g.Methods))
	}

	bytes := make([]byte, 0, 2+len(g.Methods))
	bytes = append(bytes, byte(V5))
	bytes = append(bytes, byte(len(g.Methods)))

	for _, m := range g.Methods {
		bytes = append(bytes, byte(m))
	}

	_, err := w.Write(bytes)
	return err
}
