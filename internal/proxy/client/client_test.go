package client_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cerfical/tunnelpost/internal/proxy/addr"
	"github.com/cerfical/tunnelpost/internal/proxy/client"
	"github.com/cerfical/tunnelpost/internal/proxy/frame"
	"github.com/cerfical/tunnelpost/internal/proxy/socks5"
	"github.com/cerfical/tunnelpost/internal/proxy/transport"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

func TestClient(t *testing.T) {
	suite.Run(t, new(ClientTest))
}

type ClientTest struct {
	suite.Suite
}

func (t *ClientTest) TestDo_Direct() {
	t.Run("connects to destination directly if no proxy is used", func() {
		call := t.startCall(&addr.URL{}, dstAddr(), false)
		t.serveExchange(call.server, "HTTP/1.1 200 OK\r\n\r\nhello")

		resp := t.waitOK(call)
		t.Equal(200, resp.Status)
		t.Equal("hello", resp.Text())
		t.Equal(int32(1), call.stub.closeCount.Load())
	})
}

func (t *ClientTest) TestDo_SOCKS5() {
	t.Run("negotiates a no-auth tunnel", func() {
		call := t.startCall(socksURL(""), dstAddr(), false)

		t.socks5SelectMethod(call.server, []socks5.Method{socks5.MethodNone}, socks5.MethodNone)
		t.socks5AcceptConnect(call.server, dstAddr())
		t.serveExchange(call.server, "HTTP/1.1 201 Created\r\n\r\n{\"a\":1}")

		resp := t.waitOK(call)
		t.Equal(201, resp.Status)
		t.Equal(`{"a":1}`, resp.Text())
	})

	t.Run("offers username/password when credentials are present", func() {
		call := t.startCall(socksURL("alice:p%40ss@"), dstAddr(), false)

		t.socks5SelectMethod(call.server,
			[]socks5.Method{socks5.MethodNone, socks5.MethodUsernamePassword},
			socks5.MethodUsernamePassword,
		)

		authReq, err := socks5.ReadAuthRequest(call.server)
		t.Require().NoError(err)
		t.Equal("alice", authReq.Username)
		t.Equal("p@ss", authReq.Password)

		authRep := socks5.AuthReply{Status: socks5.AuthStatusSucceeded}
		t.Require().NoError(authRep.Write(call.server))

		t.socks5AcceptConnect(call.server, dstAddr())
		t.serveExchange(call.server, "HTTP/1.1 200 OK\r\n\r\n")

		t.waitOK(call)
	})

	t.Run("fails without further bytes when auth is demanded but no credentials exist", func() {
		call := t.startCall(socksURL(""), dstAddr(), false)

		t.socks5SelectMethod(call.server, []socks5.Method{socks5.MethodNone}, socks5.MethodUsernamePassword)

		err := t.waitErr(call)
		t.Require().ErrorIs(err, client.ErrAuthRequired)

		// The client must hang up instead of attempting a subnegotiation
		buf := make([]byte, 1)
		n, readErr := call.server.Read(buf)
		t.Equal(0, n)
		t.Require().ErrorIs(readErr, io.EOF)

		t.Equal(int32(1), call.stub.closeCount.Load())
	})

	t.Run("fails when the server rejects all methods", func() {
		call := t.startCall(socksURL(""), dstAddr(), false)
		t.socks5SelectMethod(call.server, []socks5.Method{socks5.MethodNone}, socks5.MethodNotAcceptable)

		t.Require().ErrorIs(t.waitErr(call), client.ErrAllMethodsRejected)
	})

	t.Run("fails when the server selects an unknown method", func() {
		call := t.startCall(socksURL(""), dstAddr(), false)
		t.socks5SelectMethod(call.server, []socks5.Method{socks5.MethodNone}, socks5.Method(0x01))

		t.Require().ErrorIs(t.waitErr(call), client.ErrUnsupportedAuthMethod)
	})

	t.Run("fails when the supplied credentials are rejected", func() {
		call := t.startCall(socksURL("alice:secret@"), dstAddr(), false)

		t.socks5SelectMethod(call.server,
			[]socks5.Method{socks5.MethodNone, socks5.MethodUsernamePassword},
			socks5.MethodUsernamePassword,
		)

		_, err := socks5.ReadAuthRequest(call.server)
		t.Require().NoError(err)

		authRep := socks5.AuthReply{Status: 0x01}
		t.Require().NoError(authRep.Write(call.server))

		t.Require().ErrorIs(t.waitErr(call), client.ErrAuthFailed)
	})

	t.Run("fails on an unexpected server version", func() {
		call := t.startCall(socksURL(""), dstAddr(), false)

		_, err := socks5.ReadGreeting(call.server)
		t.Require().NoError(err)
		_, werr := call.server.Write([]byte{0x04, 0x00})
		t.Require().NoError(werr)

		t.Require().ErrorIs(t.waitErr(call), socks5.ErrInvalidVersion)
		t.Equal(int32(1), call.stub.closeCount.Load())
	})

	t.Run("leaves bytes coalesced after the final reply for the exchange", func() {
		call := t.startCall(socksURL(""), dstAddr(), false)

		t.socks5SelectMethod(call.server, []socks5.Method{socks5.MethodNone}, socks5.MethodNone)

		_, err := socks5.ReadRequest(call.server)
		t.Require().NoError(err)

		// The granted reply and the response arrive in a single segment
		var seg bytes.Buffer
		rep := socks5.Reply{Status: socks5.StatusGranted}
		t.Require().NoError(rep.Write(&seg))
		seg.WriteString("HTTP/1.1 200 OK\r\n\r\nhello")

		writeDone := make(chan error, 1)
		go func() {
			_, err := call.server.Write(seg.Bytes())
			writeDone <- err
		}()

		t.readHead(call.server)
		t.Require().NoError(<-writeDone)
		t.Require().NoError(call.server.Close())

		resp := t.waitOK(call)
		t.Equal(200, resp.Status)
		t.Equal("hello", resp.Text())
	})

	t.Run("surfaces each connect reply code distinctly", func() {
		rejections := []socks5.Status{
			socks5.StatusHostUnreachable,
			socks5.StatusConnectionRefused,
			socks5.StatusConnectionNotAllowed,
		}

		for _, status := range rejections {
			call := t.startCall(socksURL(""), dstAddr(), false)

			t.socks5SelectMethod(call.server, []socks5.Method{socks5.MethodNone}, socks5.MethodNone)

			_, err := socks5.ReadRequest(call.server)
			t.Require().NoError(err)

			rep := socks5.Reply{Status: status}
			t.Require().NoError(rep.Write(call.server))

			var replyErr *socks5.ReplyError
			t.Require().ErrorAs(t.waitErr(call), &replyErr)
			t.Equal(status, replyErr.Status)

			t.Equal(int32(1), call.stub.closeCount.Load())
		}
	})
}

func (t *ClientTest) TestDo_HTTPConnect() {
	t.Run("makes a CONNECT request to proxy", func() {
		call := t.startCall(httpURL(""), dstAddr(), false)

		head := t.readHead(call.server)
		t.Contains(head, "CONNECT localhost:8080 HTTP/1.1\r\n")
		t.Contains(head, "Host: localhost:8080\r\n")
		t.NotContains(head, "Proxy-Authorization")

		// Split the response across segments to exercise accumulation
		for _, chunk := range []string{"HTTP/1.1 200 Conn", "ection Established\r\n\r\n"} {
			_, err := call.server.Write([]byte(chunk))
			t.Require().NoError(err)
		}

		t.serveExchange(call.server, "HTTP/1.1 200 OK\r\n\r\n")
		t.waitOK(call)
	})

	t.Run("sends Basic credentials when present", func() {
		call := t.startCall(httpURL("alice:p%40ss@"), dstAddr(), false)

		head := t.readHead(call.server)
		want := base64.StdEncoding.EncodeToString([]byte("alice:p@ss"))
		t.Contains(head, "Proxy-Authorization: Basic "+want+"\r\n")

		_, err := call.server.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
		t.Require().NoError(err)

		t.serveExchange(call.server, "HTTP/1.1 200 OK\r\n\r\n")
		t.waitOK(call)
	})

	t.Run("fails with the exact status line on a non-200 response", func() {
		call := t.startCall(httpURL(""), dstAddr(), false)

		t.readHead(call.server)
		_, err := call.server.Write([]byte("HTTP/1.1 407 Proxy Authentication Required\r\n\r\n"))
		t.Require().NoError(err)

		var rejected *client.ConnectRejectedError
		t.Require().ErrorAs(t.waitErr(call), &rejected)
		t.Equal("HTTP/1.1 407 Proxy Authentication Required", rejected.StatusLine)

		t.Equal(int32(1), call.stub.closeCount.Load())
	})
}

func (t *ClientTest) TestDo_TLS() {
	t.Run("upgrades against the destination host, not the proxy", func() {
		call := t.startCall(httpURL(""), dstAddr(), true)

		t.readHead(call.server)
		_, err := call.server.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
		t.Require().NoError(err)

		t.serveExchange(call.server, "HTTP/1.1 200 OK\r\n\r\n")
		t.waitOK(call)

		t.Equal("localhost", call.stub.upgradedName.Load())
	})

	t.Run("closes the connection once when the upgrade fails", func() {
		call := t.startCall(httpURL(""), dstAddr(), true, func(d *stubDuplex) {
			d.upgradeErr = transport.ErrTLSHandshakeFailed
		})

		t.readHead(call.server)
		_, err := call.server.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
		t.Require().NoError(err)

		t.Require().ErrorIs(t.waitErr(call), transport.ErrTLSHandshakeFailed)
		t.Equal(int32(1), call.stub.closeCount.Load())
	})
}

func (t *ClientTest) TestDo_Lifecycle() {
	t.Run("maps deadline expiry to a timeout error", func() {
		defer goleak.VerifyNone(t.T())

		call := t.startCall(socksURL(""), dstAddr(), false, withTimeout(50*time.Millisecond))

		// Read the greeting and go silent
		_, err := socks5.ReadGreeting(call.server)
		t.Require().NoError(err)

		t.Require().ErrorIs(t.waitErr(call), client.ErrProxyTimeout)
		t.Equal(int32(1), call.stub.closeCount.Load())
	})

	t.Run("maps a premature disconnect to a closed-connection error", func() {
		call := t.startCall(socksURL(""), dstAddr(), false)

		_, err := socks5.ReadGreeting(call.server)
		t.Require().NoError(err)
		call.server.Close()

		t.Require().ErrorIs(t.waitErr(call), client.ErrConnectionClosed)
		t.Equal(int32(1), call.stub.closeCount.Load())
	})

	t.Run("cancellation closes the connection promptly", func() {
		defer goleak.VerifyNone(t.T())

		ctx, cancel := context.WithCancel(context.Background())
		call := t.startCallContext(ctx, socksURL(""), dstAddr(), false)

		_, err := socks5.ReadGreeting(call.server)
		t.Require().NoError(err)
		cancel()

		t.Require().Error(t.waitErr(call))
		t.Equal(int32(1), call.stub.closeCount.Load())
	})

	t.Run("concurrent calls use independent connections", func() {
		callA := t.startCall(socksURL(""), addr.New("host-a", 80), false)
		callB := t.startCall(socksURL(""), addr.New("host-b", 80), false)

		for call, host := range map[*call]string{callA: "host-a", callB: "host-b"} {
			t.socks5SelectMethod(call.server, []socks5.Method{socks5.MethodNone}, socks5.MethodNone)

			req, err := socks5.ReadRequest(call.server)
			t.Require().NoError(err)
			t.Equal(host, req.DstAddr.Host)

			rep := socks5.Reply{Status: socks5.StatusGranted}
			t.Require().NoError(rep.Write(call.server))

			t.serveExchange(call.server, "HTTP/1.1 200 OK\r\n\r\n")
			t.waitOK(call)
		}
	})
}

type call struct {
	server net.Conn
	stub   *stubDuplex
	done   <-chan callResult
}

type callResult struct {
	resp *frame.Response
	err  error
}

type callOption func(*callConfig)

type callConfig struct {
	timeout time.Duration
	stub    []func(*stubDuplex)
}

func withTimeout(d time.Duration) callOption {
	return func(c *callConfig) {
		c.timeout = d
	}
}

func (t *ClientTest) startCall(proxyURL *addr.URL, dst *addr.Addr, secure bool, ops ...any) *call {
	return t.startCallContext(context.Background(), proxyURL, dst, secure, ops...)
}

func (t *ClientTest) startCallContext(ctx context.Context, proxyURL *addr.URL, dst *addr.Addr, secure bool, ops ...any) *call {
	var config callConfig
	for _, op := range ops {
		switch op := op.(type) {
		case callOption:
			op(&config)
		case func(*stubDuplex):
			config.stub = append(config.stub, op)
		}
	}

	clientConn, serverConn := net.Pipe()
	stub := &stubDuplex{Conn: clientConn}
	for _, op := range config.stub {
		op(stub)
	}

	t.T().Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})

	dialer := transport.DialerFunc(func(context.Context, *addr.Addr) (transport.Duplex, error) {
		return stub, nil
	})

	c, err := client.New(
		client.WithProxyURL(proxyURL),
		client.WithDialer(dialer),
		client.WithTimeout(config.timeout),
	)
	t.Require().NoError(err)

	done := make(chan callResult, 1)
	go func() {
		resp, err := c.Do(ctx, dst, secure, &frame.Request{
			Method: "GET",
			Path:   "/",
			Host:   dst.String(),
		})
		done <- callResult{resp, err}
	}()

	return &call{server: serverConn, stub: stub, done: done}
}

func (t *ClientTest) waitOK(c *call) *frame.Response {
	t.T().Helper()

	res := <-c.done
	t.Require().NoError(res.err)
	return res.resp
}

func (t *ClientTest) waitErr(c *call) error {
	t.T().Helper()

	res := <-c.done
	t.Require().Error(res.err)
	return res.err
}

func (t *ClientTest) socks5SelectMethod(server net.Conn, wantOffered []socks5.Method, selected socks5.Method) {
	t.T().Helper()

	greet, err := socks5.ReadGreeting(server)
	t.Require().NoError(err)
	t.ElementsMatch(wantOffered, greet.Methods)

	greetRep := socks5.GreetingReply{Method: selected}
	t.Require().NoError(greetRep.Write(server))
}

func (t *ClientTest) socks5AcceptConnect(server net.Conn, dst *addr.Addr) {
	t.T().Helper()

	req, err := socks5.ReadRequest(server)
	t.Require().NoError(err)

	t.Equal(socks5.CommandConnect, req.Command)
	t.Equal(dst, &req.DstAddr)

	rep := socks5.Reply{Status: socks5.StatusGranted}
	t.Require().NoError(rep.Write(server))
}

// serveExchange consumes one request up to its header delimiter, writes the
// response and closes the connection to mark end-of-stream.
func (t *ClientTest) serveExchange(server net.Conn, response string) {
	t.T().Helper()

	t.readHead(server)
	_, err := server.Write([]byte(response))
	t.Require().NoError(err)

	t.Require().NoError(server.Close())
}

func (t *ClientTest) readHead(server net.Conn) string {
	t.T().Helper()

	var head []byte
	buf := make([]byte, 512)
	for !bytes.Contains(head, []byte("\r\n\r\n")) {
		n, err := server.Read(buf)
		head = append(head, buf[:n]...)
		t.Require().NoError(err)
	}
	return string(head)
}

func dstAddr() *addr.Addr {
	return addr.New("localhost", 8080)
}

func socksURL(creds string) *addr.URL {
	return parseURL("socks5://" + creds + "proxy.example:1080")
}

func httpURL(creds string) *addr.URL {
	return parseURL("http://" + creds + "proxy.example:3128")
}

func parseURL(s string) *addr.URL {
	u, err := addr.ParseURL(s, addr.ProtoHTTP)
	if err != nil {
		panic(err)
	}
	return u
}

type stubDuplex struct {
	net.Conn

	closeCount   atomic.Int32
	upgradedName atomic.Value
	upgradeErr   error
}

func (d *stubDuplex) Close() error {
	d.closeCount.Add(1)
	return d.Conn.Close()
}

func (d *stubDuplex) UpgradeTLS(serverName string) (transport.Duplex, error) {
	if d.upgradeErr != nil {
		return nil, d.upgradeErr
	}
	d.upgradedName.Store(serverName)
	return d, nil
}
