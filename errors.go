package redigo3

import "errors"

var (
	// ErrResolveTimeout is returned by Run when resolving the endpoint's
	// host does not complete within Timeouts.ResolveTimeout.
	ErrResolveTimeout = errors.New("redigo3: resolve timed out")

	// ErrConnectTimeout is returned by Run when dialing the resolved
	// address does not complete within Timeouts.ConnectTimeout.
	ErrConnectTimeout = errors.New("redigo3: connect timed out")

	// ErrHandshakeTimeout is returned by Run when the TLS handshake does
	// not complete within Timeouts.HandshakeTimeout.
	ErrHandshakeTimeout = errors.New("redigo3: TLS handshake timed out")

	// ErrRESP3HandshakeTimeout is returned by Run when the HELLO 3
	// handshake does not complete within Timeouts.HandshakeRESP3Timeout.
	ErrRESP3HandshakeTimeout = errors.New("redigo3: RESP3 handshake timed out")

	// ErrExecTimeout is returned to a caller of Conn.Exec whose context
	// was cancelled before a reply arrived.
	ErrExecTimeout = errors.New("redigo3: exec deadline exceeded")

	// ErrIdleTimeout is returned by the run loop when no bytes are read
	// from the connection within two idle-ping intervals.
	ErrIdleTimeout = errors.New("redigo3: connection idle timeout")

	// ErrOperationAborted is delivered to inflight callers when
	// Cancel(CancelExec) or an equivalent targeted cancellation runs.
	ErrOperationAborted = errors.New("redigo3: operation aborted")

	// ErrChannelCancelled is returned by Receive when its context is done
	// before a push message arrives.
	ErrChannelCancelled = errors.New("redigo3: channel cancelled")

	// ErrConnectionLost is returned from Run when the underlying socket
	// fails or is closed, and delivered to every inflight caller whose
	// request was already written without RetryOnDisconnect set.
	ErrConnectionLost = errors.New("redigo3: connection lost")

	// ErrNotConnected is returned by Exec when no Run has a completed
	// handshake at the moment of the call.
	ErrNotConnected = errors.New("redigo3: not connected")

	// ErrUnexpectedRole is returned by ExpectRole when the server's HELLO
	// reply reports a role other than the one requested.
	ErrUnexpectedRole = errors.New("redigo3: unexpected server role")
)
