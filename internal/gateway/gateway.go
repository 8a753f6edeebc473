// Package gateway delivers messages to a messaging gateway reachable only
// through a proxy tunnel, or through an HTTP relay when raw tunneling is
// unavailable.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/cerfical/tunnelpost/internal/log"
	"github.com/cerfical/tunnelpost/internal/proxy/addr"
	"github.com/cerfical/tunnelpost/internal/proxy/frame"
)

// TunnelClient runs a single HTTP exchange with a destination through a proxy tunnel.
type TunnelClient interface {
	Do(ctx context.Context, dst *addr.Addr, secure bool, req *frame.Request) (*frame.Response, error)
}

// Message is a single outbound gateway message.
type Message struct {
	Channel string `json:"channel"`
	Subject string `json:"subject,omitempty"`
	Text    string `json:"text"`
}

// Result is the gateway's verdict on a delivered message.
// A non-OK result is not a transport fault; the tunnel worked, the gateway refused.
type Result struct {
	OK     bool
	Status int
	Body   string
}

func New(ops ...Option) (*Sender, error) {
	defaults := []Option{
		WithLogger(log.Discard),
	}

	var s Sender
	for _, op := range slices.Concat(defaults, ops) {
		op(&s)
	}

	if s.rawURL == "" {
		return nil, errors.New("no gateway URL configured")
	}
	target, err := parseTarget(s.rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway URL: %w", err)
	}
	s.target = target

	if s.client == nil && s.relay == nil {
		return nil, errors.New("no tunnel client or relay configured")
	}
	return &s, nil
}

func WithGatewayURL(rawURL string) Option {
	return func(s *Sender) {
		s.rawURL = rawURL
	}
}

func WithClient(c TunnelClient) Option {
	return func(s *Sender) {
		s.client = c
	}
}

func WithRelay(r *Relay) Option {
	return func(s *Sender) {
		s.relay = r
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Sender) {
		s.log = l
	}
}

type Option func(*Sender)

type Sender struct {
	rawURL string
	target *target

	client TunnelClient
	relay  *Relay
	log    *log.Logger
}

// Send delivers one message to the gateway and reports its verdict.
func (s *Sender) Send(ctx context.Context, msg *Message) (*Result, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	if s.relay != nil {
		s.log.Info("Relaying a message", "target_url", s.rawURL)
		return s.relay.Forward(ctx, &RelayRequest{
			TargetURL: s.rawURL,
			Method:    "POST",
			Headers:   map[string]string{"Content-Type": "application/json"},
			Body:      body,
		})
	}

	req := frame.Request{
		Method: "POST",
		Path:   s.target.path,
		Host:   s.target.addr.String(),
		Headers: []frame.Header{
			{Name: "Content-Type", Value: "application/json"},
		},
		Body: body,
	}

	resp, err := s.client.Do(ctx, s.target.addr, s.target.secure, &req)
	if err != nil {
		return nil, err
	}

	return &Result{
		OK:     resp.OK(),
		Status: resp.Status,
		Body:   resp.Text(),
	}, nil
}

type target struct {
	addr   *addr.Addr
	path   string
	secure bool
}

func parseTarget(rawURL string) (*target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	var t target
	switch u.Scheme {
	case "http":
		t.addr = addr.New(u.Hostname(), 80)
	case "https":
		t.addr = addr.New(u.Hostname(), 443)
		t.secure = true
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if u.Hostname() == "" {
		return nil, errors.New("empty host")
	}
	if port := u.Port(); port != "" {
		t.addr.Port, err = addr.ParsePort(port)
		if err != nil {
			return nil, err
		}
	}

	t.path = u.RequestURI()
	if t.path == "" {
		t.path = "/"
	}
	return &t, nil
}
