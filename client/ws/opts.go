package wsclient

import "time"

// Option is a functional option for configuring the websocket rpc client.
type Option func(*client)

// WithRequestTimeout sets how long a request waits for its response before
// failing with ErrRequestTimeout.
// Default: 30 seconds.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *client) {
		if timeout > 0 {
			c.requestTimeout = timeout
		}
	}
}

// WithReconnect enables or disables reconnecting after an unexpected
// disconnection.
// Default: enabled.
func WithReconnect(reconnect bool) Option {
	return func(c *client) {
		c.reconnect = reconnect
	}
}

// WithHandshakeTimeout sets the timeout of the websocket handshake.
// Default: 10 seconds.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(c *client) {
		if timeout > 0 {
			c.dialer.HandshakeTimeout = timeout
		}
	}
}
