package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cerfical/tunnelpost/internal/config"
	"github.com/cerfical/tunnelpost/internal/gateway"
	"github.com/cerfical/tunnelpost/internal/log"
	"github.com/cerfical/tunnelpost/internal/proxy/addr"
	"github.com/cerfical/tunnelpost/internal/proxy/client"
	"github.com/cerfical/tunnelpost/internal/proxy/transport"
)

func main() {
	config := config.Load(os.Args)
	log := log.New(log.WithLevel(config.Log.Level))

	sender, err := newSender(config, log)
	if err != nil {
		log.Fatal("Invalid configuration", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	msg := gateway.Message{
		Channel: config.Message.Channel,
		Subject: config.Message.Subject,
		Text:    config.Message.Text,
	}

	result, err := sender.Send(ctx, &msg)
	if err != nil {
		log.Fatal("Message delivery failed", err)
	}

	if !result.OK {
		log.Error("Gateway rejected the message", fmt.Errorf("status %v: %v", result.Status, result.Body))
		os.Exit(1)
	}
	log.Info("Message delivered", "status", result.Status)
}

func newSender(config *config.Config, log *log.Logger) (*gateway.Sender, error) {
	ops := []gateway.Option{
		gateway.WithGatewayURL(config.Gateway),
		gateway.WithLogger(log),
	}

	// A relay endpoint replaces direct tunneling entirely; a relay://
	// proxy descriptor is shorthand for the conventional endpoint path
	if endpoint := config.Relay; endpoint != "" || config.Proxy.Proto == addr.ProtoRelay {
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://%v/api/relay", config.Proxy.Addr())
		}
		log.Info("Using a relay", "relay_url", endpoint)

		return gateway.New(append(ops, gateway.WithRelay(
			gateway.NewRelay(endpoint, config.Timeout),
		))...)
	}

	if !config.Proxy.IsZero() {
		log.Info("Using a proxy", "proxy_url", config.Proxy.String())
	}

	dialer := transport.NewDialer(
		transport.WithConnectTimeout(config.Timeout),
		transport.WithInsecureTLS(config.TLS.Insecure),
	)

	client, err := client.New(
		client.WithProxyURL(&config.Proxy),
		client.WithDialer(dialer),
		client.WithTimeout(config.Timeout),
		client.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	return gateway.New(append(ops, gateway.WithClient(client))...)
}
