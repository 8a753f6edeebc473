package socks5

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/cerfical/tunnelpost/internal/proxy/addr"
)

func ReadRequest(r io.Reader) (*Request, error) {
	if err := checkVersion(r, V5); err != nil {
		return nil, err
	}

	commandByte, err := readByte(r)
	if err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}

	if err := checkReserved(r); err != nil {
		return nil, err
	}

	dstAddr, err := readAddr(r)
	if err != nil {
		return nil, fmt.Errorf("decode destination address: %w", err)
	}

	return &Request{
		Command: Command(commandByte),
		DstAddr: *dstAddr,
	}, nil
}

// Request asks the server to connect the session to a destination endpoint.
type Request struct {
	Command Command
	DstAddr addr.Addr
}

// Write encodes the request with the destination always as a domain name,
// leaving name resolution to the server.
func (r *Request) Write(w io.Writer) error {
	n := len(r.DstAddr.Host)
	if n > math.MaxUint8 {
		return fmt.Errorf("hostname too long (%v)", n)
	}

	bytes := make([]byte, 0, 7+n)
	bytes = append(bytes, byte(V5), byte(r.Command), 0, hostnameAddrType, byte(n))
	bytes = append(bytes, r.DstAddr.Host...)
	bytes = binary.BigEndian.AppendUint16(bytes, r.DstAddr.Port)

	_, err := w.Write(bytes)
	return err
}
