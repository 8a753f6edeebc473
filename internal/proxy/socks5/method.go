package socks5

import "fmt"

const (
	// MethodNone requires no authentication.
	MethodNone Method = 0x00

	// MethodUsernamePassword requires username/password subnegotiation (RFC 1929).
	MethodUsernamePassword Method = 0x02

	// MethodNotAcceptable indicates the server rejected all offered methods.
	MethodNotAcceptable Method = 0xff
)

var methodText = map[Method]string{
	MethodNone:             "None",
	MethodUsernamePassword: "Username/Password",

	MethodNotAcceptable: "No Acceptable Method",
}

// Method identifies a SOCKS5 authentication method.
type Method byte

func (m Method) String() string {
	if str, ok := methodText[m]; ok {
		return str
	}
	return fmt.Sprintf("%#02x", byte(m))
}

func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
