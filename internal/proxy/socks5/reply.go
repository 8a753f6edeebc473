package socks5

import (
	"fmt"
	"io"

	"github.com/cerfical/tunnelpost/internal/proxy/addr"
)

func ReadReply(r io.Reader) (*Reply, error) {
	if err := checkVersion(r, V5); err != nil {
		return nil, err
	}

	statusByte, err := readByte(r)
	if err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}

	if err := checkReserved(r); err != nil {
		return nil, err
	}

	// The bound address varies in length by address type and is read in full,
	// even though clients have no use for it
	bindAddr, err := readAddr(r)
	if err != nil {
		return nil, fmt.Errorf("decode bind address: %w", err)
	}

	return &Reply{
		Status:   Status(statusByte),
		BindAddr: *bindAddr,
	}, nil
}

// Reply reports the outcome of a [Request] along with the server-side bound address.
type Reply struct {
	Status   Status
	BindAddr addr.Addr
}

func (r *Reply) Write(w io.Writer) error {
	bytes := []byte{byte(V5), byte(r.Status), 0}

	addrBytes, err := encodeAddr(&r.BindAddr)
	if err != nil {
		return fmt.Errorf("encode bind address: %w", err)
	}
	bytes = append(bytes, addrBytes...)

	_, err = w.Write(bytes)
	return err
}
