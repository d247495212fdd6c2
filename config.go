package redigo3

import (
	"crypto/tls"
	"time"
)

// Endpoint describes the server a Conn's run loop dials.
type Endpoint struct {
	// Host is a hostname or IP address, resolved by internal/resolver
	// before each connection attempt.
	Host string

	// Port defaults to 6379 when zero.
	Port int

	// Username and Password, when both are non-empty, are sent as
	// part of the HELLO 3 handshake (HELLO 3 AUTH user pass) rather than
	// as a separate AUTH round trip.
	Username string
	Password string

	// TLSConfig, when non-nil, causes Run to wrap the dialed connection
	// in a TLS client handshake before HELLO.
	TLSConfig *tls.Config
}

// RequiresAuth reports whether the handshake should carry credentials.
func (e Endpoint) RequiresAuth() bool {
	return e.Username != "" && e.Password != ""
}

func (e Endpoint) hostPort() (string, int) {
	port := e.Port
	if port == 0 {
		port = 6379
	}
	return e.Host, port
}

// Timeouts bounds each phase of Conn's run loop. The zero value is not
// directly usable; call DefaultTimeouts and override individual fields.
type Timeouts struct {
	ResolveTimeout        time.Duration
	ConnectTimeout        time.Duration
	HandshakeTimeout      time.Duration
	HandshakeRESP3Timeout time.Duration

	// PingInterval is how often the run loop sends PING. The idle deadline is 2*PingInterval:
	// if no bytes are read from the socket within that window, the run
	// loop fails the connection with ErrIdleTimeout. Zero disables both
	// idle pinging and idle detection.
	PingInterval time.Duration
}

// DefaultTimeouts returns the Timeouts a Conn uses when none is supplied
// to Run: five seconds for each connection-setup phase, pinging once a
// second.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		ResolveTimeout:        5 * time.Second,
		ConnectTimeout:        5 * time.Second,
		HandshakeTimeout:      5 * time.Second,
		HandshakeRESP3Timeout: 5 * time.Second,
		PingInterval:          time.Second,
	}
}

// ReconnectPolicy controls the backoff RunForever applies between failed
// or ended runs of the connection.
type ReconnectPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultReconnectPolicy starts at 100ms, doubling up to a 30s ceiling.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2,
	}
}

func (r ReconnectPolicy) next(cur time.Duration) time.Duration {
	if cur <= 0 {
		return r.InitialBackoff
	}
	next := time.Duration(float64(cur) * r.Multiplier)
	if r.MaxBackoff > 0 && next > r.MaxBackoff {
		return r.MaxBackoff
	}
	return next
}
