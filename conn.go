package redigo3

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/lumalabs/redigo3/internal/resolver"
	"github.com/lumalabs/redigo3/resp3"
)

// OperationKind selects which class of waiting caller Cancel wakes up.
type OperationKind int

const (
	// CancelExec aborts every inflight Exec call with ErrOperationAborted.
	CancelExec OperationKind = iota

	// CancelReceive discards every push message buffered for Receive. It
	// does not wake a Receive call that is already blocked.
	CancelReceive

	// CancelRun causes the current Run call to return, closing the
	// connection as if the remote end had done so.
	CancelRun

	// CancelAll combines CancelExec, CancelReceive and CancelRun.
	CancelAll
)

// inflightEntry tracks one pipelined Request while its replies are
// outstanding. A Request pushing N commands expects N top-level replies,
// matched to this entry in FIFO order against every other inflight entry.
type inflightEntry struct {
	// mu guards adapter against the race between the reader goroutine
	// reading it to route a reply and Exec detaching it (swapping in
	// IgnoreAdapter) after its caller's context expires, so a timed-out
	// Exec's caller-owned destination is never written to once Exec has
	// returned.
	mu        sync.Mutex
	adapter   resp3.Adapter
	remaining int
	err       error
	done      chan struct{}

	// written is set by writeLoop once this entry's payload has actually
	// reached conn.Write, and read by drainInflight to decide which of
	// cancelOnConnectionLost or retryOnDisconnect governs a connection
	// loss: an entry still sitting in writeCh when the run ends was never
	// handed to the server at all, so it is cancelOnConnectionLost's call
	// to make, not retryOnDisconnect's.
	written bool

	// payload, coalesce, cancelOnConnectionLost and retryOnDisconnect carry
	// the corresponding Request fields through to the writer and to
	// drainInflight, which decides whether a connection loss fails this
	// entry immediately or requeues it (via Conn.retryQueue) for the next
	// successful Run.
	payload                []byte
	coalesce               bool
	cancelOnConnectionLost bool
	retryOnDisconnect      bool
}

func (e *inflightEntry) markWritten() {
	e.mu.Lock()
	e.written = true
	e.mu.Unlock()
}

func (e *inflightEntry) isWritten() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.written
}

// pendingWrite is one payload waiting for the writer goroutine, tagged
// with whether its Request asked to be coalesced with whatever else is
// already queued behind it into a single net.Conn.Write, and with the
// inflight entry (nil for a write-only, push-reply-only request) that
// should be marked written once this payload reaches the socket.
type pendingWrite struct {
	payload  []byte
	coalesce bool
	entry    *inflightEntry
}

// Conn is a single multiplexed connection to a RESP3 server. Callers drive
// its lifecycle with Run or RunForever, and issue commands with Exec from
// any number of goroutines while the run loop is active.
type Conn struct {
	log *zap.Logger

	// writeCh carries payloads already encoded by Exec to the writer
	// goroutine; its ordering relative to inflight entry enqueueing is
	// the FIFO invariant the multiplexer depends on.
	writeCh chan pendingWrite

	pushCh chan []resp3.Node

	inflightMu sync.Mutex
	inflight   []*inflightEntry
	retryQueue []*inflightEntry
	sendMu     sync.Mutex

	stateMu   sync.Mutex
	netConn   net.Conn
	connected bool
	runCancel context.CancelFunc

	attrMu   sync.Mutex
	lastAttr []resp3.Node
}

// PushChanSize is the default buffer depth of the channel Receive reads
// from when no explicit size is configured.
const PushChanSize = 64

// NewConn returns a Conn ready for Run. log may be nil, in which case a
// no-op logger is used.
func NewConn(log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}
	return &Conn{
		log:     log,
		writeCh: make(chan pendingWrite, 16),
		pushCh:  make(chan []resp3.Node, PushChanSize),
	}
}

// Run dials endpoint, performs the RESP3 handshake, and pumps reads and
// writes until the connection fails or ctx is cancelled, returning the
// failure. A clean shutdown via Cancel(CancelRun) or ctx cancellation
// returns nil.
func (c *Conn) Run(ctx context.Context, endpoint Endpoint, timeouts Timeouts) error {
	host, port := endpoint.hostPort()

	resolveCtx, cancel := context.WithTimeout(ctx, nonZero(timeouts.ResolveTimeout, 5*time.Second))
	addr, err := resolver.Resolve(resolveCtx, host)
	cancel()
	if err != nil {
		if errors.Is(resolveCtx.Err(), context.DeadlineExceeded) {
			return ErrResolveTimeout
		}
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, nonZero(timeouts.ConnectTimeout, 5*time.Second))
	rawConn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
	cancel()
	if err != nil {
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return ErrConnectTimeout
		}
		return err
	}
	defer rawConn.Close()

	conn := rawConn
	if endpoint.TLSConfig != nil {
		tlsCtx, cancel := context.WithTimeout(ctx, nonZero(timeouts.HandshakeTimeout, 5*time.Second))
		tlsConn := tls.Client(rawConn, endpoint.TLSConfig)
		err := tlsConn.HandshakeContext(tlsCtx)
		cancel()
		if err != nil {
			if errors.Is(tlsCtx.Err(), context.DeadlineExceeded) {
				return ErrHandshakeTimeout
			}
			return err
		}
		conn = tlsConn
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	c.stateMu.Lock()
	c.netConn = conn
	c.runCancel = runCancel
	c.stateMu.Unlock()

	// One bufio.Reader for the lifetime of the connection: handshake and
	// the pump's reader loop must share it, since the handshake's read of
	// the HELLO reply may already have buffered bytes belonging to the
	// first post-handshake reply.
	br := bufio.NewReader(conn)

	helloCtx, cancel := context.WithTimeout(runCtx, nonZero(timeouts.HandshakeRESP3Timeout, 5*time.Second))
	hello, leftover, err := c.handshake(helloCtx, conn, br, endpoint)
	cancel()
	if err != nil {
		if errors.Is(helloCtx.Err(), context.DeadlineExceeded) {
			return ErrRESP3HandshakeTimeout
		}
		return err
	}
	c.log.Info("handshake complete",
		zap.String("server", hello.Server),
		zap.String("version", hello.Version),
		zap.String("role", hello.Role))

	c.stateMu.Lock()
	c.connected = true
	c.stateMu.Unlock()
	defer func() {
		c.stateMu.Lock()
		c.connected = false
		c.stateMu.Unlock()
	}()

	return c.pump(runCtx, conn, br, leftover, timeouts.PingInterval)
}

// RunForever calls Run repeatedly, backing off between attempts per
// policy, until ctx is cancelled. It returns ctx.Err() when that happens.
func (c *Conn) RunForever(ctx context.Context, endpoint Endpoint, timeouts Timeouts, policy ReconnectPolicy) error {
	var backoff time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.Run(ctx, endpoint, timeouts)
		c.ResetStream()

		if err == nil {
			backoff = 0
			continue
		}
		c.log.Warn("run ended, reconnecting", zap.Error(err))

		backoff = policy.next(backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (c *Conn) handshake(ctx context.Context, conn net.Conn, br *bufio.Reader, endpoint Endpoint) (HelloResult, []byte, error) {
	req := NewRequest()
	if endpoint.RequiresAuth() {
		req.Push("HELLO", "3", "AUTH", endpoint.Username, endpoint.Password)
	} else {
		req.Push("HELLO", "3")
	}

	if _, err := conn.Write(req.payloadBytes()); err != nil {
		return HelloResult{}, nil, err
	}

	type result struct {
		hello    HelloResult
		leftover []byte
		err      error
	}
	resCh := make(chan result, 1)
	go func() {
		var hello HelloResult
		sa, err := resp3.NewStructAdapter(&hello)
		if err != nil {
			resCh <- result{err: err}
			return
		}
		p := resp3.NewParser()
		var buf []byte
		for !p.Done() {
			n, err := p.Consume(buf, sa)
			if err != nil {
				resCh <- result{err: err}
				return
			}
			if n > 0 {
				buf = buf[n:]
				continue
			}
			chunk := make([]byte, 4096)
			rn, err := br.Read(chunk)
			if err != nil {
				resCh <- result{err: err}
				return
			}
			buf = append(buf, chunk[:rn]...)
		}
		// Bytes already pulled out of br but not consumed by the HELLO
		// reply belong to whatever the server sent immediately after;
		// the reader loop picks up from here rather than br, or it
		// would lose them.
		resCh <- result{hello: hello, leftover: buf}
	}()

	select {
	case r := <-resCh:
		return r.hello, r.leftover, r.err
	case <-ctx.Done():
		return HelloResult{}, nil, ctx.Err()
	}
}

// pump runs the reader, writer and idle-ping goroutines until one of them
// reports a fatal condition, then tears the others down and resolves every
// inflight entry through drainInflight.
func (c *Conn) pump(ctx context.Context, conn net.Conn, br *bufio.Reader, leftover []byte, pingInterval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	lastRead := newAtomicTime()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); errCh <- c.readLoop(ctx, conn, br, leftover, lastRead) }()
	go func() { defer wg.Done(); errCh <- c.writeLoop(ctx, conn) }()
	go func() { defer wg.Done(); errCh <- c.idlePingLoop(ctx, pingInterval, lastRead) }()

	// Resend anything drainInflight deferred from a previous run only once
	// the writer goroutine above is actually draining writeCh, so a large
	// retry backlog can't block this call before pump even starts serving.
	c.resendQueuedRetries()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		runErr = ctx.Err()
	}
	cancel()
	// Unblock a reader or writer parked in a socket call, which does not
	// watch ctx, so wg.Wait can return.
	conn.SetDeadline(time.Now())
	wg.Wait()
	close(errCh)

	var shutdownErr error
	for e := range errCh {
		shutdownErr = multierr.Append(shutdownErr, e)
	}
	if shutdownErr != nil {
		c.log.Debug("pump goroutines exited", zap.Error(shutdownErr))
	}

	c.drainInflight(runErr)

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func (c *Conn) readLoop(ctx context.Context, conn net.Conn, r *bufio.Reader, buf []byte, lastRead *atomicTime) error {
	p := resp3.NewParser()
	router := &connRouter{conn: c}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		for !p.Done() {
			n, err := p.Consume(buf, router)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrConnectionLost, err)
			}
			if n > 0 {
				buf = buf[n:]
				continue
			}
			break
		}
		if p.Done() {
			router.deliver(ctx, c)
			router.reset()
			p.Reset()
			continue
		}

		chunk := make([]byte, 4096)
		if dl, ok := ctx.Deadline(); ok {
			conn.SetReadDeadline(dl)
		} else {
			conn.SetReadDeadline(time.Time{})
		}
		rn, err := r.Read(chunk)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() && ctx.Err() == nil {
				continue
			}
			return fmt.Errorf("%w: %s", ErrConnectionLost, err)
		}
		lastRead.set(time.Now())
		buf = append(buf, chunk[:rn]...)
	}
}

func (c *Conn) writeLoop(ctx context.Context, conn net.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pw := <-c.writeCh:
			batch, entries := c.collectWrite(pw)
			if _, err := conn.Write(batch); err != nil {
				return fmt.Errorf("%w: %s", ErrConnectionLost, err)
			}
			for _, e := range entries {
				e.markWritten()
			}
		}
	}
}

// collectWrite gathers first's payload, and every inflight entry it and
// any batched payloads carry, into one buffer for a single net.Conn.Write.
// Coalescing only fires for a request whose Coalesce flag asked for it,
// and only gathers what's already queued behind first on writeCh, never
// waiting for more to arrive.
func (c *Conn) collectWrite(first pendingWrite) ([]byte, []*inflightEntry) {
	var entries []*inflightEntry
	if first.entry != nil {
		entries = append(entries, first.entry)
	}
	if !first.coalesce {
		return first.payload, entries
	}

	batch := append([]byte(nil), first.payload...)
	for {
		select {
		case next := <-c.writeCh:
			batch = append(batch, next.payload...)
			if next.entry != nil {
				entries = append(entries, next.entry)
			}
		default:
			return batch, entries
		}
	}
}

func (c *Conn) idlePingLoop(ctx context.Context, interval time.Duration, lastRead *atomicTime) error {
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Since(lastRead.get()) > 2*interval {
				return ErrIdleTimeout
			}
			req := NewRequest()
			req.Push("PING")
			entry := &inflightEntry{adapter: resp3.IgnoreAdapter{}, remaining: 1, done: make(chan struct{}), payload: req.payloadBytes()}
			if err := c.enqueue(entry, req.payloadBytes()); err != nil {
				return err
			}
		}
	}
}

// Exec writes req's commands and blocks until every reply has been
// delivered to adapter, ctx is cancelled, or the connection is lost. A
// request built entirely from push-reply commands (Size() == 0, e.g. a
// lone SUBSCRIBE) is written and returns immediately: there is nothing to
// wait on, since its reply arrives on the push channel instead.
func (c *Conn) Exec(ctx context.Context, req *Request, adapter resp3.Adapter) error {
	if req.Empty() {
		return nil
	}
	if adapter == nil {
		adapter = resp3.IgnoreAdapter{}
	}

	c.stateMu.Lock()
	connected := c.connected
	c.stateMu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	if req.Size() == 0 {
		c.writeOnly(req.payloadBytes(), req.Coalesce)
		return nil
	}

	entry := &inflightEntry{
		adapter:                adapter,
		remaining:              req.Size(),
		done:                   make(chan struct{}),
		payload:                req.payloadBytes(),
		coalesce:               req.Coalesce,
		cancelOnConnectionLost: req.CancelOnConnectionLost,
		retryOnDisconnect:      req.RetryOnDisconnect,
	}
	if err := c.enqueue(entry, entry.payload); err != nil {
		return err
	}

	select {
	case <-entry.done:
		return entry.err
	case <-ctx.Done():
		entry.mu.Lock()
		entry.adapter = resp3.IgnoreAdapter{}
		entry.mu.Unlock()
		return ErrExecTimeout
	}
}

func (c *Conn) enqueue(entry *inflightEntry, payload []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.inflightMu.Lock()
	c.inflight = append(c.inflight, entry)
	c.inflightMu.Unlock()

	c.writeCh <- pendingWrite{payload: payload, coalesce: entry.coalesce, entry: entry}
	return nil
}

// writeOnly queues payload for the writer without an inflight entry,
// for requests with no commands left to match a reply against.
func (c *Conn) writeOnly(payload []byte, coalesce bool) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.writeCh <- pendingWrite{payload: payload, coalesce: coalesce}
}

// Receive blocks until a push message arrives or ctx is done, returning the
// message's nodes verbatim, or ErrChannelCancelled once ctx is done. It does
// not return when the connection is lost, and Cancel(CancelReceive) does
// not wake it.
func (c *Conn) Receive(ctx context.Context) ([]resp3.Node, error) {
	select {
	case nodes := <-c.pushCh:
		return nodes, nil
	case <-ctx.Done():
		return nil, ErrChannelCancelled
	}
}

// LastAttribute returns the nodes of the most recently delivered attribute
// frame, or nil if none has arrived yet.
func (c *Conn) LastAttribute() []resp3.Node {
	c.attrMu.Lock()
	defer c.attrMu.Unlock()
	return c.lastAttr
}

// RemoteAddr returns the address of the server Run is currently connected
// to, or nil if no run has reached the pump phase yet.
func (c *Conn) RemoteAddr() net.Addr {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.netConn == nil {
		return nil
	}
	return c.netConn.RemoteAddr()
}

// Cancel cancels operations of the given kind and reports how many it
// cancelled: for CancelExec, the inflight and retry-queued entries it
// completed with ErrOperationAborted; for CancelReceive, the buffered push
// messages it discarded; for CancelRun, 1 the first time it is called
// after a Run has started. Calling
// Cancel when nothing is left to cancel is a no-op that returns 0; Cancel
// is safe to call repeatedly and concurrently with Exec/Receive.
func (c *Conn) Cancel(kind OperationKind) int {
	woken := 0

	if kind == CancelExec || kind == CancelAll {
		c.inflightMu.Lock()
		entries := append(c.inflight, c.retryQueue...)
		c.inflight = nil
		c.retryQueue = nil
		c.inflightMu.Unlock()

		for _, e := range entries {
			e.err = ErrOperationAborted
			close(e.done)
			woken++
		}
	}

	if kind == CancelReceive || kind == CancelAll {
		draining := true
		for draining {
			select {
			case <-c.pushCh:
				woken++
			default:
				draining = false
			}
		}
	}

	if kind == CancelRun || kind == CancelAll {
		c.stateMu.Lock()
		cancel := c.runCancel
		c.runCancel = nil
		c.stateMu.Unlock()
		if cancel != nil {
			cancel()
			woken++
		}
	}

	return woken
}

// ResetStream discards any queued-but-unsent write left over from a run
// that just ended, so the next Run starts from a clean slate. Push messages
// still buffered for Receive are kept. Call it between RunForever's internal retries (it
// already does) or between manual Run calls of your own.
func (c *Conn) ResetStream() {
	for {
		select {
		case <-c.writeCh:
		default:
			return
		}
	}
}

// drainInflight resolves every entry left inflight when a run ends, split
// on whether writeLoop ever actually wrote its payload before the run
// died. An unwritten entry was never handed to the server, so its
// CancelOnConnectionLost setting decides its fate: set, it completes with
// ErrOperationAborted; clear, it is retained for the next successful run
// regardless of RetryOnDisconnect. A written entry may have already been
// processed server-side with its reply lost in transit, so its
// RetryOnDisconnect setting decides instead: set, it is resent on the next
// run; clear, it fails its caller with ErrConnectionLost.
func (c *Conn) drainInflight(cause error) {
	c.inflightMu.Lock()
	entries := c.inflight
	c.inflight = nil
	c.inflightMu.Unlock()

	connErr := ErrConnectionLost
	if cause != nil && !errors.Is(cause, context.Canceled) {
		connErr = fmt.Errorf("%w: %s", ErrConnectionLost, cause)
	}

	var retry []*inflightEntry
	for _, e := range entries {
		if !e.isWritten() {
			if e.cancelOnConnectionLost {
				e.err = ErrOperationAborted
				close(e.done)
				continue
			}
			retry = append(retry, e)
			continue
		}

		if e.retryOnDisconnect {
			retry = append(retry, e)
			continue
		}
		e.err = connErr
		close(e.done)
	}

	if len(retry) > 0 {
		c.inflightMu.Lock()
		c.retryQueue = append(c.retryQueue, retry...)
		c.inflightMu.Unlock()
	}
}

// resendQueuedRetries re-enqueues every entry drainInflight deferred for
// retry, in their original order, at the start of a freshly connected run.
func (c *Conn) resendQueuedRetries() {
	c.inflightMu.Lock()
	retry := c.retryQueue
	c.retryQueue = nil
	c.inflightMu.Unlock()

	for _, e := range retry {
		e.mu.Lock()
		e.written = false
		e.mu.Unlock()
		c.enqueue(e, e.payload)
	}
}

// connRouter classifies the root type of each top-level reply as it
// arrives and forwards every node of that reply to the right destination:
// the head inflight entry's adapter for ordinary replies, the push
// channel for push messages, or an internal sink for attributes. It never
// returns an error to the parser itself, so a rejected value at the
// application layer never desyncs the byte stream; the rejection is
// instead recorded on the owning inflight entry.
type connRouter struct {
	conn *Conn

	started    bool
	rootType   resp3.Type
	target     resp3.Adapter
	attrTree   *resp3.TreeAdapter
	pushTree   *resp3.TreeAdapter
	headEntry  *inflightEntry
}

func (r *connRouter) OnEvent(n resp3.Node) error {
	if n.Depth == 0 && !r.started {
		r.started = true
		r.rootType = n.Type

		switch n.Type {
		case resp3.TypePush:
			r.pushTree = resp3.NewTreeAdapter()
			r.target = r.pushTree
		case resp3.TypeAttribute:
			r.attrTree = resp3.NewTreeAdapter()
			r.target = r.attrTree
		default:
			r.headEntry = r.conn.popHeadInflightTarget()
			if r.headEntry == nil {
				r.target = resp3.IgnoreAdapter{}
			} else {
				r.headEntry.mu.Lock()
				r.target = r.headEntry.adapter
				r.headEntry.mu.Unlock()
			}
		}
	}

	if err := r.target.OnEvent(n); err != nil && r.headEntry != nil && r.headEntry.err == nil {
		r.headEntry.err = err
	}
	return nil
}

func (r *connRouter) MaxReadSize(depth int) int {
	if r.target == nil {
		return 0
	}
	return r.target.MaxReadSize(depth)
}

// deliver finishes routing the just-completed top-level reply: pushes
// route to the push channel, attributes update LastAttribute, and
// ordinary replies decrement their owning entry's remaining count,
// signalling it once every command in its Request has a reply.
//
// The push channel is bounded and lossless: if no one is draining it with
// Receive, this send blocks, which stalls the reader and starves
// lastRead, so idlePingLoop eventually declares ErrIdleTimeout instead of
// the connection silently dropping messages. ctx.Done() is the only way
// out of that block, for when the run is already tearing down for some
// other reason.
func (r *connRouter) deliver(ctx context.Context, c *Conn) {
	switch r.rootType {
	case resp3.TypePush:
		select {
		case c.pushCh <- r.pushTree.Nodes:
		case <-ctx.Done():
		}
	case resp3.TypeAttribute:
		c.attrMu.Lock()
		c.lastAttr = r.attrTree.Nodes
		c.attrMu.Unlock()
	default:
		if r.headEntry == nil {
			return
		}
		r.headEntry.remaining--
		if r.headEntry.remaining <= 0 {
			close(r.headEntry.done)
		}
	}
}

func (r *connRouter) reset() {
	*r = connRouter{conn: r.conn}
}

// popHeadInflightTarget returns the oldest inflight entry still awaiting a
// reply without removing it until its remaining count reaches zero, since
// a single Request's commands answer across multiple consecutive
// top-level replies.
func (c *Conn) popHeadInflightTarget() *inflightEntry {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()

	if len(c.inflight) == 0 {
		return nil
	}
	head := c.inflight[0]
	if head.remaining <= 1 {
		c.inflight = c.inflight[1:]
	}
	return head
}

func nonZero(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
