package socks5

import "fmt"

const (
	StatusGranted              Status = 0x00
	StatusGeneralFailure       Status = 0x01
	StatusConnectionNotAllowed Status = 0x02
	StatusNetworkUnreachable   Status = 0x03
	StatusHostUnreachable      Status = 0x04
	StatusConnectionRefused    Status = 0x05
	StatusTTLExpired           Status = 0x06
	StatusCommandNotSupported  Status = 0x07
	StatusAddrTypeNotSupported Status = 0x08
)

var statusText = map[Status]string{
	StatusGranted:              "Granted",
	StatusGeneralFailure:       "General Failure",
	StatusConnectionNotAllowed: "Connection Not Allowed",
	StatusNetworkUnreachable:   "Network Unreachable",
	StatusHostUnreachable:      "Host Unreachable",
	StatusConnectionRefused:    "Connection Refused",
	StatusTTLExpired:           "TTL Expired",
	StatusCommandNotSupported:  "Command Not Supported",
	StatusAddrTypeNotSupported: "Address Type Not Supported",
}

// Status is a SOCKS5 reply code describing the outcome of a connection request.
type Status byte

func (s Status) String() string {
	if str, ok := statusText[s]; ok {
		return str
	}
	return fmt.Sprintf("%#02x", byte(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ReplyError is a non-zero SOCKS5 reply code surfaced as an error.
type ReplyError struct {
	Status Status
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("connection rejected: %v", e.Status)
}
