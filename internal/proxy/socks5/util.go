package socks5

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net"

	"github.com/cerfical/tunnelpost/internal/proxy/addr"
)

const (
	ip4AddrType      = 0x01
	hostnameAddrType = 0x03
	ip6AddrType      = 0x04
)

// ErrInvalidVersion indicates an unexpected protocol version byte.
var ErrInvalidVersion = fmt.Errorf("invalid version")

func readAddr(r io.Reader) (*addr.Addr, error) {
	addrType, err := readByte(r)
	if err != nil {
		return nil, fmt.Errorf("decode address type: %w", err)
	}

	var addr addr.Addr
	switch addrType {
	case ip4AddrType:
		var ip4 [4]byte
		if _, err := io.ReadFull(r, ip4[:]); err != nil {
			return nil, fmt.Errorf("decode IPv4 address: %w", err)
		}
		addr.Host = net.IP(ip4[:]).String()
	case ip6AddrType:
		var ip6 [16]byte
		if _, err := io.ReadFull(r, ip6[:]); err != nil {
			return nil, fmt.Errorf("decode IPv6 address: %w", err)
		}
		addr.Host = net.IP(ip6[:]).String()
	case hostnameAddrType:
		n, err := readByte(r)
		if err != nil {
			return nil, fmt.Errorf("decode hostname length: %w", err)
		}

		hostname := make([]byte, n)
		if _, err := io.ReadFull(r, hostname); err != nil {
			return nil, fmt.Errorf("decode hostname: %w", err)
		}
		addr.Host = string(hostname)
	default:
		return nil, fmt.Errorf("invalid address type (%#02x)", addrType)
	}

	addr.Port, err = readPort(r)
	if err != nil {
		return nil, fmt.Errorf("decode port: %w", err)
	}

	return &addr, nil
}

func encodeAddr(a *addr.Addr) ([]byte, error) {
	var bytes []byte
	if ip := net.ParseIP(a.Host); ip != nil {
		var addrType byte
		if ip4 := ip.To4(); ip4 != nil {
			addrType = ip4AddrType
			ip = ip4
		} else {
			addrType = ip6AddrType
		}
		bytes = append(bytes, addrType)
		bytes = append(bytes, ip[:]...)
	} else {
		n := len(a.Host)
		if n > math.MaxUint8 {
			return nil, fmt.Errorf("hostname too long (%v)", n)
		}
		bytes = append(bytes, hostnameAddrType, byte(n))
		bytes = append(bytes, []byte(a.Host)...)
	}
	bytes = binary.BigEndian.AppendUint16(bytes, a.Port)
	return bytes, nil
}

func checkReserved(r io.Reader) error {
	rsv, err := readByte(r)
	if err != nil {
		return fmt.Errorf("decode reserved field: %w", err)
	}
	if rsv != 0 {
		return fmt.Errorf("non-zero value for reserved field (%#02x)", rsv)
	}
	return nil
}

func readPort(r io.Reader) (uint16, error) {
	var port [2]byte
	if _, err := io.ReadFull(r, port[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(port[:]), nil
}

func checkVersion(r io.Reader, want Version) error {
	versionByte, err := readByte(r)
	if err != nil {
		return fmt.Errorf("decode version: %w", err)
	}

	if ver := Version(versionByte); ver != want {
		return fmt.Errorf("%w (%v)", ErrInvalidVersion, ver)
	}
	return nil
}

// readByte reads exactly one byte so that decoding never consumes
// stream data past the end of a message.
func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}
