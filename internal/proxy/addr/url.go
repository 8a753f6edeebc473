package addr

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrMalformedCredentials indicates a credentials segment that is not exactly user:pass.
	ErrMalformedCredentials = errors.New("malformed credentials")

	// ErrMalformedHost indicates a host segment that could not be parsed.
	ErrMalformedHost = errors.New("malformed host")

	urlDefProto = ProtoHTTP
)

func NewURL(proto Proto, host string, port uint16) *URL {
	return &URL{
		Proto: proto,
		Host:  host,
		Port:  port,
	}
}

// ParseURL parses a proxy endpoint descriptor of the form [scheme://][user:pass@]host[:port].
//
// The credentials segment is split off at the last '@', so that percent-encoded
// passwords survive the split, and must contain exactly one ':'. The port is
// split off at the last ':' outside an optional IPv6 bracket pair and defaults
// to a scheme-specific well-known port when absent.
func ParseURL(rawURL string, defProto Proto) (*URL, error) {
	if rawURL == "" {
		return NewURL(0, "", 0), nil
	}

	proto := defProto
	rest := rawURL
	if scheme, tail, ok := strings.Cut(rawURL, "://"); ok {
		p, err := ParseProto(scheme)
		if err != nil {
			return nil, fmt.Errorf("parse scheme %q: %w", scheme, err)
		}
		proto, rest = p, tail
	}

	u := URL{Proto: proto, Port: defaultPortForProto(proto)}

	hostPort := rest
	if i := strings.LastIndexByte(rest, '@'); i >= 0 {
		username, password, err := parseCredentials(rest[:i])
		if err != nil {
			return nil, err
		}
		u.Username, u.Password = username, password
		hostPort = rest[i+1:]
	}

	host, port, err := splitHostPort(hostPort)
	if err != nil {
		return nil, err
	}
	u.Host = strings.ToLower(host)

	if port != "" {
		portNum, err := ParsePort(port)
		if err != nil {
			return nil, err
		}
		u.Port = portNum
	}

	return &u, nil
}

func parseCredentials(creds string) (username, password string, err error) {
	user, pass, ok := strings.Cut(creds, ":")
	if !ok || strings.ContainsRune(pass, ':') {
		return "", "", fmt.Errorf("%w: expected exactly one ':' in %q", ErrMalformedCredentials, creds)
	}

	if username, err = url.PathUnescape(user); err != nil {
		return "", "", fmt.Errorf("%w: decode username: %v", ErrMalformedCredentials, err)
	}
	if password, err = url.PathUnescape(pass); err != nil {
		return "", "", fmt.Errorf("%w: decode password: %v", ErrMalformedCredentials, err)
	}
	return username, password, nil
}

func splitHostPort(hostPort string) (host, port string, err error) {
	if hostPort == "" {
		return "", "", fmt.Errorf("%w: empty host", ErrMalformedHost)
	}

	// Bracketed IPv6 hosts keep their colons out of the port split
	if hostPort[0] == '[' {
		end := strings.IndexByte(hostPort, ']')
		if end < 0 {
			return "", "", fmt.Errorf("%w: missing ']' in %q", ErrMalformedHost, hostPort)
		}

		host = hostPort[1:end]
		switch rest := hostPort[end+1:]; {
		case rest == "":
			return host, "", nil
		case rest[0] == ':':
			return host, rest[1:], nil
		default:
			return "", "", fmt.Errorf("%w: unexpected %q after ']'", ErrMalformedHost, rest)
		}
	}

	if i := strings.LastIndexByte(hostPort, ':'); i >= 0 {
		return hostPort[:i], hostPort[i+1:], nil
	}
	return hostPort, "", nil
}

// URL describes a proxy endpoint along with the protocol and optional credentials to use.
type URL struct {
	Proto Proto

	Host string
	Port uint16

	Username string
	Password string
}

func (u *URL) Addr() *Addr {
	return New(u.Host, u.Port)
}

// HasAuth reports whether the endpoint carries credentials.
func (u *URL) HasAuth() bool {
	return u.Username != "" || u.Password != ""
}

func (u *URL) IsZero() bool {
	return *u == URL{}
}

func (u *URL) String() string {
	if u.IsZero() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(u.Proto.String())
	sb.WriteString("://")
	if u.HasAuth() {
		sb.WriteString(url.UserPassword(u.Username, u.Password).String())
		sb.WriteByte('@')
	}
	sb.WriteString(u.Addr().String())

	return sb.String()
}

func (u *URL) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *URL) UnmarshalText(text []byte) error {
	url, err := ParseURL(string(text), urlDefProto)
	if err != nil {
		return err
	}
	*u = *url
	return nil
}
