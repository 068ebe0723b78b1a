package telemetry

import (
	"errors"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/hashicorp/go-hclog"
)

// Option enables variadic option passing to the client on startup.
type Option func(*Client) error

// WithLogger sets the logger for the client.
func WithLogger(l hclog.Logger) Option {
	return func(c *Client) error {
		c.l = l.Named("telemetry")
		return nil
	}
}

// WithMQTTServer handles setting up the mqtt server address.
func WithMQTTServer(addr string) Option {
	return func(c *Client) error {
		c.addr = addr
		return nil
	}
}

// WithTopicPrefix sets the prefix that all topics live under.
func WithTopicPrefix(p string) Option {
	return func(c *Client) error {
		p = strings.Trim(p, "/")
		if p == "" {
			return errors.New("topic prefix may not be empty")
		}
		c.prefix = p
		return nil
	}
}

// WithClientID sets the identifier presented to the broker.
func WithClientID(id string) Option {
	return func(c *Client) error {
		c.clientID = id
		return nil
	}
}

// WithSubscribeRetries bounds how many times a subscription is
// retried before giving up.
func WithSubscribeRetries(n uint64) Option {
	return func(c *Client) error {
		c.retries = n
		return nil
	}
}

// WithMQTTClient supplies an already constructed client instead of
// dialing the configured server.
func WithMQTTClient(m mqtt.Client) Option {
	return func(c *Client) error {
		c.m = m
		return nil
	}
}
