package socks5

import (
	"fmt"
	"io"
	"math"
)

// AuthStatusSucceeded is the only subnegotiation status indicating success.
const AuthStatusSucceeded byte = 0x00

func ReadAuthRequest(r io.Reader) (*AuthRequest, error) {
	if err := checkVersion(r, AuthVersion); err != nil {
		return nil, err
	}

	username, err := readCounted(r)
	if err != nil {
		return nil, fmt.Errorf("decode username: %w", err)
	}

	password, err := readCounted(r)
	if err != nil {
		return nil, fmt.Errorf("decode password: %w", err)
	}

	return &AuthRequest{
		Username: string(username),
		Password: string(password),
	}, nil
}

// AuthRequest is a username/password subnegotiation request (RFC 1929).
type AuthRequest struct {
	Username string
	Password string
}

func (a *AuthRequest) Write(w io.Writer) error {
	if n := len(a.Username); n > math.MaxUint8 {
		return fmt.Errorf("username too long (%v)", n)
	}
	if n := len(a.Password); n > math.MaxUint8 {
		return fmt.Errorf("password too long (%v)", n)
	}

	bytes := make([]byte, 0, 3+len(a.Username)+len(a.Password))
	bytes = append(bytes, byte(AuthVersion), byte(len(a.Username)))
	bytes = append(bytes, a.Username...)
	bytes = append(bytes, byte(len(a.Password)))
	bytes = append(bytes, a.Password...)

	_, err := w.Write(bytes)
	return err
}

func ReadAuthReply(r io.Reader) (*AuthReply, error) {
	if err := checkVersion(r, AuthVersion); err != nil {
		return nil, err
	}

	status, err := readByte(r)
	if err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}

	return &AuthReply{Status: status}, nil
}

// AuthReply reports the outcome of a username/password subnegotiation.
type AuthReply struct {
	Status byte
}

func (a *AuthReply) Succeeded() bool {
	return a.Status == AuthStatusSucceeded
}

func (a *AuthReply) Write(w io.Writer) error {
	bytes := []byte{byte(AuthVersion), a.Status}

	_, err := w.Write(bytes)
	return err
}

func readCounted(r io.Reader) ([]byte, error) {
	n, err := readByte(r)
	if err != nil {
		return nil, err
	}

	bytes := make([]byte, n)
	if _, err := io.ReadFull(r, bytes); err != nil {
		return nil, err
	}
	return bytes, nil
}
