package addr

import (
	"errors"
	"strings"
)

const (
	// ProtoSOCKS5 selects the SOCKS5 proxy protocol.
	ProtoSOCKS5 Proto = iota + 1

	// ProtoHTTP selects HTTP CONNECT tunneling.
	ProtoHTTP

	// ProtoRelay marks a relay endpoint to be reached over plain HTTPS.
	ProtoRelay
)

// ErrUnknownProto indicates an unrecognized protocol scheme.
var ErrUnknownProto = errors.New("unknown protocol scheme")

var protos = map[string]Proto{
	"socks5": ProtoSOCKS5,
	"socks":  ProtoSOCKS5,
	"http":   ProtoHTTP,
	"https":  ProtoHTTP,
	"relay":  ProtoRelay,
}

var protoNames = map[Proto]string{
	ProtoSOCKS5: "socks5",
	ProtoHTTP:   "http",
	ProtoRelay:  "relay",
}

func ParseProto(proto string) (Proto, error) {
	p, ok := protos[strings.ToLower(proto)]
	if !ok {
		return 0, ErrUnknownProto
	}
	return p, nil
}

// Proto identifies a proxy protocol a tunnel is negotiated with.
type Proto int

func (p Proto) String() string {
	if name, ok := protoNames[p]; ok {
		return name
	}
	panic("unknown protocol")
}

func (p Proto) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Proto) UnmarshalText(text []byte) error {
	proto, err := ParseProto(string(text))
	if err != nil {
		return err
	}
	*p = proto
	return nil
}

func defaultPortForProto(p Proto) uint16 {
	switch p {
	case ProtoSOCKS5:
		return 1080
	case ProtoHTTP:
		return 80
	case ProtoRelay:
		return 443
	default:
		return 0
	}
}
