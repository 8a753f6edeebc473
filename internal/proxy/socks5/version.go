package socks5

import "fmt"

const (
	// V5 is the SOCKS protocol version implemented by this package.
	V5 Version = 0x05

	// AuthVersion is the username/password subnegotiation version (RFC 1929).
	AuthVersion Version = 0x01
)

type Version byte

func (v Version) String() string {
	switch v {
	case V5:
		return "SOCKS5"
	case AuthVersion:
		return "auth-v1"
	}
	return fmt.Sprintf("%#02x", byte(v))
}

func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}
