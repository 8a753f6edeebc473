package socks5_test

import (
	"bytes"
	"testing"

	"github.com/cerfical/tunnelpost/internal/proxy/socks5"
	"github.com/stretchr/testify/suite"
)

func TestReply(t *testing.T) {
	suite.Run(t, new(ReplyTest))
}

type ReplyTest struct {
	suite.Suite
}

func (t *ReplyTest) TestRead() {
	t.Run("decodes a reply with an IPv4 bind address", func() {
		got, err := decodeReply([]byte{
			5,            // Version
			0,            // Status
			0,            // Reserved field
			1,            // IPv4 address type
			127, 0, 0, 1, // Bind address
			0x04, 0x38, // Bind port
		})
		t.Require().NoError(err)

		t.Equal(socks5.StatusGranted, got.Status)
		t.Equal("127.0.0.1", got.BindAddr.Host)
		t.Equal(uint16(1080), got.BindAddr.Port)
	})

	t.Run("decodes a reply with a hostname bind address", func() {
		got, err := decodeReply([]byte{
			5, 1, 0,
			3,                                              // Hostname address type
			9, 'l', 'o', 'c', 'a', 'l', 'h', 'o', 's', 't', // Bind address
			0x04, 0x38,
		})
		t.Require().NoError(err)

		t.Equal(socks5.StatusGeneralFailure, got.Status)
		t.Equal("localhost", got.BindAddr.Host)
	})

	t.Run("decodes a reply with an IPv6 bind address", func() {
		got, err := decodeReply([]byte{
			5, 0, 0,
			4, // IPv6 address type
			0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1,
			0x04, 0x38,
		})
		t.Require().NoError(err)

		t.Equal("::1", got.BindAddr.Host)
	})

	t.Run("rejects replies with an invalid version", func() {
		_, err := decodeReply([]byte{4, 0, 0, 1, 127, 0, 0, 1, 0x04, 0x38})
		t.Require().ErrorIs(err, socks5.ErrInvalidVersion)
	})

	t.Run("rejects replies with a non-zero reserved field", func() {
		_, err := decodeReply([]byte{5, 0, 1, 1, 127, 0, 0, 1, 0x04, 0x38})
		t.Require().Error(err)
	})
}

func (t *ReplyTest) TestWrite() {
	t.Run("round-trips through its own encoding", func() {
		want := socks5.Reply{Status: socks5.StatusConnectionRefused}

		var buf bytes.Buffer
		t.Require().NoError(want.Write(&buf))

		got, err := decodeReply(buf.Bytes())
		t.Require().NoError(err)

		t.Equal(want.Status, got.Status)
	})
}

func decodeReply(b []byte) (*socks5.Reply, error) {
	return socks5.ReadReply(bytes.NewReader(b))
}
