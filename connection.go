// Copyright (c) 2012, Sean Treadway, SoundCloud Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// Adapted from streadway/amqp's connection.go: same reader/demux/shutdown
// architecture, generalized to this module's frame/method codec and
// enriched with the ambient stack described in SPEC_FULL.md §4.6.

package amqp

import (
	"crypto/tls"
	"io"
	"net"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

const defaultHeartbeat = 10 * time.Second
const defaultConnectionTimeout = 30 * time.Second
const defaultChannelMax = 2047
const defaultFrameMax = 131072
const readWriteTimeout = 30 * time.Second

// timeoutConn wraps a net.Conn so every Read/Write is bounded by a fixed
// deadline, rather than trusting the peer to never stall mid-frame.
type timeoutConn struct {
	conn    net.Conn
	timeout time.Duration
}

func newTimeoutConn(conn net.Conn, timeout time.Duration) *timeoutConn {
	return &timeoutConn{conn: conn, timeout: timeout}
}

func (c *timeoutConn) Read(b []byte) (int, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	return c.conn.Read(b)
}

func (c *timeoutConn) Write(b []byte) (int, error) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.conn.Write(b)
}

func (c *timeoutConn) Close() error                      { return c.conn.Close() }
func (c *timeoutConn) LocalAddr() net.Addr                { return c.conn.LocalAddr() }
func (c *timeoutConn) RemoteAddr() net.Addr               { return c.conn.RemoteAddr() }
func (c *timeoutConn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *timeoutConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *timeoutConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

// Config tunes the handshake and transport. The negotiated result is
// stored back into the returned Connection's Config field.
type Config struct {
	// SASL mechanisms to try, in order, during connection.start-ok. Dial
	// sets this to PlainAuth parsed from the URL unless already set.
	SASL []Authentication

	// Vhost is the namespace of permissions, exchanges, queues and
	// bindings on the server. Dial sets this from the URL path.
	Vhost string

	Channels  int           // 0 means the server's max is used unmodified
	FrameSize int           // 0 means the server's max is used unmodified
	Heartbeat time.Duration // 0 means the server's interval is used; otherwise the lower of the two

	TLSClientConfig *tls.Config

	// ConnectionTimeout bounds both the initial TCP dial and the
	// handshake's read deadline.
	ConnectionTimeout time.Duration

	// ConnectionName is advertised to the broker via client-properties.
	// Dial defaults this to a generated uuid when the URL's
	// connection_name option is absent.
	ConnectionName string

	// Logger receives reader-loop diagnostics, heartbeat misses, and
	// unroutable-return warnings. A nil Logger is a no-op.
	Logger Logger
}

// Blocking is delivered on NotifyBlocked channels in response to the
// RabbitMQ connection.blocked / connection.unblocked extension.
type Blocking struct {
	Active bool
	Reason string
}

// Connection owns the single TCP (or TLS) socket, multiplexes logical
// Channels over it, and runs the dedicated reader task described in
// spec.md §4.2-§4.3.
type Connection struct {
	destructor sync.Once
	sendM      sync.Mutex // serializes socket writes (spec.md §4.2, §5)
	m          sync.Mutex // guards closes/blocks/noNotify

	conn io.ReadWriteCloser

	rpc       chan Method // channel-0 synchronous replies
	fw        *frameWriter
	sends     chan time.Time
	deadlines chan readDeadliner

	channels channelRegistry

	noNotify bool
	closes   []chan *ConnectionError
	blocks   []chan Blocking

	errors chan *ConnectionError

	Config Config

	Major, Minor int
	Properties   Table

	logger Logger
}

type readDeadliner interface {
	SetReadDeadline(time.Time) error
}

// Dial opens a TCP (or, for amqps://, TLS) connection and runs the
// protocol handshake, defaulting heartbeat to 10s and connect timeout to
// 30s.
func Dial(url string) (*Connection, error) {
	return DialConfig(url, Config{
		Heartbeat:         defaultHeartbeat,
		ConnectionTimeout: defaultConnectionTimeout,
	})
}

// DialTLS is Dial with an explicit TLS client configuration.
func DialTLS(url string, tlsConfig *tls.Config) (*Connection, error) {
	return DialConfig(url, Config{
		Heartbeat:         defaultHeartbeat,
		ConnectionTimeout: defaultConnectionTimeout,
		TLSClientConfig:   tlsConfig,
	})
}

// mergeURIConfig layers a parsed URI's query options onto a Config,
// following each field's documented precedence (spec.md §6). It mutates
// nothing but its copy of config and is safe to call before any network
// I/O, which is what makes it unit-testable on its own.
func mergeURIConfig(config Config, uri URI) Config {
	if config.SASL == nil {
		config.SASL = []Authentication{uri.PlainAuth()}
	}
	if config.Vhost == "" {
		config.Vhost = uri.Vhost
	}
	// The URI's heartbeat option is a ceiling on whatever Config already
	// carries (Dial/DialTLS always pass a non-zero default), not just a
	// fallback for an unset Config.Heartbeat.
	if uri.Heartbeat != 0 && (config.Heartbeat == 0 || uri.Heartbeat < config.Heartbeat) {
		config.Heartbeat = uri.Heartbeat
	}
	if config.Channels == 0 {
		config.Channels = uri.ChannelMax
	}
	if config.FrameSize == 0 {
		config.FrameSize = uri.FrameMax
	}
	if config.ConnectionName == "" {
		config.ConnectionName = uri.ConnectionName
	}
	if config.ConnectionName == "" {
		config.ConnectionName = "go-amqp091-" + uuid.NewString()
	}
	if config.ConnectionTimeout == 0 {
		config.ConnectionTimeout = defaultConnectionTimeout
	}

	if uri.Scheme == "amqps" && config.TLSClientConfig == nil {
		config.TLSClientConfig = &tls.Config{InsecureSkipVerify: !uri.VerifyTLS}
	}
	return config
}

// DialConfig parses url, applies any query options it carries (spec.md
// §6), and opens the connection with the merged Config.
func DialConfig(rawurl string, config Config) (*Connection, error) {
	uri, err := ParseURI(rawurl)
	if err != nil {
		return nil, err
	}

	config = mergeURIConfig(config, uri)

	addr := net.JoinHostPort(uri.Host, strconv.Itoa(uri.Port))

	rawConn, err := net.DialTimeout("tcp", addr, config.ConnectionTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp broker")
	}
	if tc, ok := rawConn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	conn := net.Conn(newTimeoutConn(rawConn, readWriteTimeout))

	if err := conn.SetReadDeadline(time.Now().Add(config.ConnectionTimeout)); err != nil {
		return nil, err
	}

	if config.TLSClientConfig != nil {
		tlsCfg := config.TLSClientConfig
		if tlsCfg.ServerName == "" {
			c := *tlsCfg
			c.ServerName = uri.Host
			tlsCfg = &c
		}
		client := tls.Client(conn, tlsCfg)
		if err := client.Handshake(); err != nil {
			_ = conn.Close()
			return nil, errors.Wrap(err, "tls handshake")
		}
		conn = client
	}

	return Open(conn, config)
}

// Open runs the AMQP handshake over an already-established transport.
func Open(conn io.ReadWriteCloser, config Config) (*Connection, error) {
	if config.Logger == nil {
		config.Logger = noopLogger{}
	}
	me := &Connection{
		conn:      conn,
		fw:        newFrameWriter(conn),
		channels:  newChannelRegistry(),
		rpc:       make(chan Method),
		sends:     make(chan time.Time),
		errors:    make(chan *ConnectionError, 1),
		deadlines: make(chan readDeadliner, 1),
		logger:    config.Logger,
	}
	go me.reader(conn)
	return me, me.open(config)
}

// NotifyClose registers ch to receive the terminal *ConnectionError, or to
// be closed on a clean shutdown.
func (c *Connection) NotifyClose(ch chan *ConnectionError) chan *ConnectionError {
	c.m.Lock()
	defer c.m.Unlock()
	if c.noNotify {
		close(ch)
	} else {
		c.closes = append(c.closes, ch)
	}
	return ch
}

// NotifyBlocked registers ch for RabbitMQ's connection.blocked /
// connection.unblocked flow-control extension.
func (c *Connection) NotifyBlocked(ch chan Blocking) chan Blocking {
	c.m.Lock()
	defer c.m.Unlock()
	if c.noNotify {
		close(ch)
	} else {
		c.blocks = append(c.blocks, ch)
	}
	return ch
}

// Close requests and waits for connection.close-ok, then tears down every
// Channel. An error here means the broker may not have seen the request,
// but the connection must be treated as closed regardless.
func (c *Connection) Close() error {
	defer c.shutdown(nil)
	_, err := c.call(
		&connectionClose{ReplyCode: ReplySuccess, ReplyText: "goodbye"},
		&connectionCloseOk{},
	)
	return err
}

func (c *Connection) closeWith(err *ConnectionError) error {
	defer c.shutdown(err)
	_, callErr := c.call(
		&connectionClose{ReplyCode: uint16(err.Code), ReplyText: err.Reason},
		&connectionCloseOk{},
	)
	return callErr
}

func (c *Connection) send(payload []byte) error {
	c.sendM.Lock()
	err := c.fw.writeFrames(payload)
	c.sendM.Unlock()

	if err != nil {
		c.shutdown(newConnectionError(FrameError, err.Error(), 0, 0))
	} else {
		select {
		case c.sends <- time.Now():
		default:
		}
	}
	return err
}

// writeFrames emits every byte-string under one hold of the write lock, so
// a publish's method+header+body frames never interleave with another
// channel's frames on the wire (spec.md §4.2, §5, invariant 3 of §8).
func (c *Connection) writeFrames(frames ...[]byte) error {
	c.sendM.Lock()
	err := c.fw.writeFrames(frames...)
	c.sendM.Unlock()

	if err != nil {
		c.shutdown(newConnectionError(FrameError, err.Error(), 0, 0))
	} else {
		select {
		case c.sends <- time.Now():
		default:
		}
	}
	return err
}

func (c *Connection) sendMethod(channelID uint16, m Method) error {
	b, err := encodeMethod(channelID, m)
	if err != nil {
		return err
	}
	return c.send(b)
}

func (c *Connection) shutdown(err *ConnectionError) {
	c.destructor.Do(func() {
		c.m.Lock()
		defer c.m.Unlock()

		if err != nil {
			c.logger.Errorf("amqp: connection closing: %s", err)
			for _, ch := range c.closes {
				ch <- err
			}
		}

		var aggregate *multierror.Error
		for _, ch := range c.channels.removeAll() {
			var chErr *ChannelError
			if err != nil {
				chErr = newChannelError(ch.id, err.Code, err.Reason, err.Class, err.Method)
			}
			if cerr := ch.shutdown(chErr); cerr != nil {
				aggregate = multierror.Append(aggregate, cerr)
			}
		}
		if aggregate != nil {
			c.logger.Warnf("amqp: channel shutdown cascade reported errors: %s", aggregate)
		}

		if err != nil {
			c.errors <- err
		}

		_ = c.conn.Close()

		for _, ch := range c.closes {
			close(ch)
		}
		for _, ch := range c.blocks {
			close(ch)
		}

		c.noNotify = true
	})
}

// demux classifies every inbound frame by channel id, per spec.md §4.3.
func (c *Connection) demux(f frame) {
	if f.channel() == 0 {
		c.dispatch0(f)
	} else {
		c.dispatchN(f)
	}
}

func (c *Connection) dispatch0(f frame) {
	switch mf := f.(type) {
	case *methodFrame:
		switch m := mf.Method.(type) {
		case *connectionClose:
			_ = c.send(mustEncode(0, &connectionCloseOk{}))
			c.shutdown(newConnectionError(int(m.ReplyCode), m.ReplyText, m.ClassID, m.MethodID))
		case *connectionBlocked:
			c.m.Lock()
			blocks := append([]chan Blocking(nil), c.blocks...)
			c.m.Unlock()
			for _, ch := range blocks {
				ch <- Blocking{Active: true, Reason: m.Reason}
			}
		case *connectionUnblocked:
			c.m.Lock()
			blocks := append([]chan Blocking(nil), c.blocks...)
			c.m.Unlock()
			for _, ch := range blocks {
				ch <- Blocking{Active: false}
			}
		default:
			c.rpc <- m
		}
	case *heartbeatFrame:
		// reading resets the deadline; nothing else to do.
	default:
		_ = c.closeWith(newConnectionError(UnexpectedFrame, "channel 0 only accepts methods and heartbeats", 0, 0))
	}
}

func (c *Connection) dispatchN(f frame) {
	if ch := c.channels.get(f.channel()); ch != nil {
		ch.recv(f)
		return
	}
	c.dispatchClosed(f)
}

// dispatchClosed handles frames for a channel id the connection no longer
// has open: a racing channel.close/channel.close-ok pair is expected and
// silently absorbed; anything else is a protocol violation.
func (c *Connection) dispatchClosed(f frame) {
	mf, ok := f.(*methodFrame)
	if !ok {
		return
	}
	switch mf.Method.(type) {
	case *channelClose:
		_ = c.send(mustEncode(f.channel(), &channelCloseOk{}))
	case *channelCloseOk:
		// already closed; nothing to do
	default:
		_ = c.closeWith(newConnectionError(CommandInvalid, "frame on closed channel", 0, 0))
	}
}

func mustEncode(channelID uint16, m Method) []byte {
	b, err := encodeMethod(channelID, m)
	if err != nil {
		// every method here has a trivial, argument-free write(); failure
		// would mean a bug in this package, not bad input.
		panic(err)
	}
	return b
}

// reader loops decoding frames off the socket and handing them to demux.
// It never blocks on a user callback and never holds a Channel lock across
// one (spec.md §4.3).
func (c *Connection) reader(r io.Reader) {
	fr := newFrameReader(r)
	deadliner, haveDeadliner := r.(readDeadliner)

	for {
		f, err := fr.decodeFrame()
		if err != nil {
			c.shutdown(newConnectionError(FrameError, err.Error(), 0, 0))
			return
		}

		c.demux(f)

		if haveDeadliner {
			select {
			case c.deadlines <- deadliner:
			default:
			}
		}
	}
}

// heartbeater guarantees at least one frame is sent per interval and, when
// reading, extends the read deadline to cover a few missed server
// heartbeats before giving up on the connection (spec.md §4.2).
func (c *Connection) heartbeater(interval time.Duration, done chan *ConnectionError) {
	const maxServerHeartbeatsInFlight = 2

	var sendTicks <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		sendTicks = ticker.C
	}

	lastSent := time.Now()

	for {
		select {
		case at, ok := <-c.sends:
			if !ok {
				return
			}
			lastSent = at

		case at := <-sendTicks:
			if at.Sub(lastSent) >= interval/2 {
				if err := c.send(mustEncodeHeartbeat()); err != nil {
					return
				}
			}

		case deadliner := <-c.deadlines:
			if interval > 0 {
				_ = deadliner.SetReadDeadline(time.Now().Add(maxServerHeartbeatsInFlight * interval))
			}

		case <-done:
			return
		}
	}
}

func mustEncodeHeartbeat() []byte {
	b, _ := encodeHeartbeat()
	return b
}

// isCapable inspects Connection.Properties["capabilities"] for server
// feature flags like "basic.ack" or "consumer_cancel_notify".
func (c *Connection) isCapable(featureName string) bool {
	capabilities, _ := c.Properties["capabilities"].(Table)
	ok, _ := capabilities[featureName].(bool)
	return ok
}

// Channel opens a new logical channel, picking the lowest unused id in
// [1, channel_max].
func (c *Connection) Channel() (*Channel, error) {
	select {
	case <-c.errors:
		return nil, newConnectionError(InternalError, "connection already closed", 0, 0)
	default:
	}

	id, err := c.channels.next(c.Config.Channels)
	if err != nil {
		return nil, err
	}
	ch := newChannel(c, id)
	c.channels.add(id, ch)
	if err := ch.open(); err != nil {
		c.channels.remove(id)
		return nil, err
	}
	return ch, nil
}

// call writes req (or nothing, when req is nil, for the protocol-header
// send during the handshake) and waits for one of the expected reply
// shapes on the channel-0 rpc mailbox.
func (c *Connection) call(req Method, res ...Method) (Method, error) {
	if req != nil {
		if err := c.sendMethod(0, req); err != nil {
			return nil, err
		}
	}

	select {
	case err := <-c.errors:
		return nil, err
	case msg := <-c.rpc:
		for _, try := range res {
			if reflect.TypeOf(msg) == reflect.TypeOf(try) {
				return msg, nil
			}
		}
		uf := &UnexpectedFrameError{Expected: joinMethodNames(res), Actual: msg.methodName()}
		c.shutdown(newConnectionError(UnexpectedFrame, uf.Error(), 0, 0))
		return nil, uf
	}
}

func (c *Connection) open(config Config) error {
	if err := c.send(protocolHeader()); err != nil {
		return err
	}
	return c.openStart(config)
}

func protocolHeader() []byte {
	return []byte("AMQP\x00\x00\x09\x01")
}

func (c *Connection) openStart(config Config) error {
	msg, err := c.call(nil, &connectionStart{})
	if err != nil {
		return err
	}
	start := msg.(*connectionStart)

	c.Major = int(start.VersionMajor)
	c.Minor = int(start.VersionMinor)
	c.Properties = start.ServerProperties

	auth, ok := pickSASLMechanism(config.SASL, strings.Split(start.Mechanisms, " "))
	if !ok {
		return errSASL
	}
	config.SASL = []Authentication{auth}

	return c.openTune(config, auth)
}

func (c *Connection) openTune(config Config, auth Authentication) error {
	startOk := &connectionStartOk{
		Mechanism: auth.Mechanism(),
		Response:  auth.Response(),
		ClientProperties: Table{
			"product":          "go-amqp091",
			"connection_name":  config.ConnectionName,
			"capabilities": Table{
				"connection.blocked":           true,
				"consumer_cancel_notify":       true,
				"publisher_confirms":           true,
				"basic.nack":                   true,
				"authentication_failure_close": true,
			},
		},
		Locale: "en_US",
	}

	msg, err := c.call(startOk, &connectionTune{})
	if err != nil {
		return errCredentials
	}
	tune := msg.(*connectionTune)

	c.Config.Channels = pick(config.Channels, int(tune.ChannelMax), defaultChannelMax)
	c.Config.FrameSize = pick(config.FrameSize, int(tune.FrameMax), defaultFrameMax)

	negotiatedHeartbeat := pickDuration(config.Heartbeat, time.Duration(tune.Heartbeat)*time.Second)
	c.Config.Heartbeat = negotiatedHeartbeat

	go c.heartbeater(c.Config.Heartbeat, c.NotifyClose(make(chan *ConnectionError, 1)))

	if err := c.sendMethod(0, &connectionTuneOk{
		ChannelMax: uint16(c.Config.Channels),
		FrameMax:   uint32(c.Config.FrameSize),
		Heartbeat:  uint16(c.Config.Heartbeat / time.Second),
	}); err != nil {
		return err
	}

	return c.openVhost(config)
}

func (c *Connection) openVhost(config Config) error {
	_, err := c.call(&connectionOpen{VirtualHost: config.Vhost}, &connectionOpenOk{})
	if err != nil {
		return errVhost
	}
	c.Config.Vhost = config.Vhost
	c.Config.SASL = config.SASL
	c.Config.TLSClientConfig = config.TLSClientConfig
	c.Config.ConnectionTimeout = config.ConnectionTimeout
	c.Config.ConnectionName = config.ConnectionName
	c.Config.Logger = config.Logger
	return nil
}

// pick mirrors the AMQP tuning rule: a 0 on either side means "no limit
// asserted by that side", so the non-zero value (or the larger of the two,
// or the hard default) wins; otherwise the lower of the two wins.
func pick(client, server, fallback int) int {
	if client == 0 && server == 0 {
		return fallback
	}
	if client == 0 || server == 0 {
		if client > server {
			return client
		}
		return server
	}
	if client > server {
		return server
	}
	return client
}

func pickDuration(client, server time.Duration) time.Duration {
	if client == 0 {
		return server
	}
	if server == 0 {
		return client
	}
	if client < server {
		return client
	}
	return server
}

// channelRegistry is the connection's channel table: a map from id to
// Channel, protected by its own mutex so allocate/free and reader-thread
// lookups never contend with the connection's other locks (spec.md §5).
type channelRegistry struct {
	mu       sync.Mutex
	channels map[uint16]*Channel
}

func newChannelRegistry() channelRegistry {
	return channelRegistry{channels: make(map[uint16]*Channel)}
}

func (r *channelRegistry) next(max int) (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit := max
	if limit <= 0 || limit > 0xFFFF {
		limit = 0xFFFF
	}
	for id := 1; id <= limit; id++ {
		if _, used := r.channels[uint16(id)]; !used {
			return uint16(id), nil
		}
	}
	return 0, &ChannelMaxError{}
}

func (r *channelRegistry) add(id uint16, ch *Channel) {
	r.mu.Lock()
	r.channels[id] = ch
	r.mu.Unlock()
}

func (r *channelRegistry) remove(id uint16) {
	r.mu.Lock()
	delete(r.channels, id)
	r.mu.Unlock()
}

func (r *channelRegistry) get(id uint16) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channels[id]
}

func (r *channelRegistry) removeAll() []*Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	r.channels = make(map[uint16]*Channel)
	return out
}
