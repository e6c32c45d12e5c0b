// Copyright (c) 2012, Sean Treadway, SoundCloud Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// Adapted from streadway/amqp's channel.go: the per-channel rpc
// correlation and content-assembly state machine, generalized to this
// module's frame/method types and consumer worker pool (spec.md §4.4).

package amqp

import (
	"bytes"
	"reflect"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/mustardnoise/go-amqp091/internal/bufpool"
)

// missCache rate-limits the "delivery for unknown consumer tag" warning
// so a misbehaving broker cannot flood the log once per frame; tags are
// hashed with xxhash rather than kept as live strings so the cache stays
// cheap to check on the connection's single reader goroutine.
type missCache struct {
	mu   sync.Mutex
	seen map[uint64]time.Time
}

func newMissCache() *missCache {
	return &missCache{seen: make(map[uint64]time.Time)}
}

func (c *missCache) shouldWarn(tag string) bool {
	key := xxhash.Sum64String(tag)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.seen[key]; ok && now.Sub(last) < time.Second {
		return false
	}
	c.seen[key] = now
	if len(c.seen) > 256 {
		for k := range c.seen {
			delete(c.seen, k)
			break
		}
	}
	return true
}

// Delivery is one message handed to a consumer via basic.deliver, or
// returned synchronously from Get via basic.get-ok.
type Delivery struct {
	Headers         Table
	ContentType     string
	ContentEncoding string
	DeliveryMode    uint8
	Priority        uint8
	CorrelationID   string
	ReplyTo         string
	Expiration      string
	MessageID       string
	Timestamp       time.Time
	Type            string
	UserID          string
	AppID           string

	ConsumerTag  string
	MessageCount uint32
	DeliveryTag  uint64
	Redelivered  bool
	Exchange     string
	RoutingKey   string

	Body []byte

	channel *Channel
}

// Ack acknowledges this delivery. multiple additionally acknowledges
// every earlier unacknowledged delivery on this channel.
func (d Delivery) Ack(multiple bool) error {
	return d.channel.send(&basicAck{DeliveryTag: d.DeliveryTag, Multiple: multiple})
}

// Nack negatively acknowledges this delivery, per the RabbitMQ basic.nack
// extension.
func (d Delivery) Nack(multiple, requeue bool) error {
	return d.channel.send(&basicNack{DeliveryTag: d.DeliveryTag, Multiple: multiple, Requeue: requeue})
}

// Reject is the AMQP 0-9-1 core basic.reject: single-message nack.
func (d Delivery) Reject(requeue bool) error {
	return d.channel.send(&basicReject{DeliveryTag: d.DeliveryTag, Requeue: requeue})
}

// Return is an unroutable message the broker handed back because the
// publish set mandatory (or immediate).
type Return struct {
	ReplyCode  uint16
	ReplyText  string
	Exchange   string
	RoutingKey string

	ContentType     string
	ContentEncoding string
	Headers         Table
	DeliveryMode    uint8
	Priority        uint8
	CorrelationID   string
	ReplyTo         string
	Expiration      string
	MessageID       string
	Timestamp       time.Time
	Type            string
	UserID          string
	AppID           string

	Body []byte
}

// pendingContent tracks an in-flight method+header+body assembly for one
// of basic.deliver, basic.return or basic.get-ok (spec.md §4.1 "content
// framing").
type pendingContent struct {
	method   Method
	classID  uint16
	bodySize uint64
	buf      *bytes.Buffer
	props    Properties
}

// Channel is a virtual connection multiplexed over a Connection's single
// socket. All exported operations are safe for concurrent use except
// Publish, whose ordering relative to other Publish calls on the same
// Channel is only guaranteed when the caller serializes them -- exactly
// as with streadway/amqp.
type Channel struct {
	destructor sync.Once

	m    sync.Mutex // guards consumers, returnHandler, pending, getWaiter, closed, lastErr
	id   uint16
	conn *Connection

	rpc    chan Method
	errs   chan *ChannelError
	closed bool
	lastErr *ChannelError

	closes  []chan *ChannelError
	cancels []chan string

	consumers map[string]*consumer

	pending *pendingContent

	returnHandler func(Return)
	getWaiter     chan *Delivery

	confirms *confirmTracker

	deliveryMisses *missCache

	logger Logger
}

func newChannel(c *Connection, id uint16) *Channel {
	return &Channel{
		id:             id,
		conn:           c,
		rpc:            make(chan Method),
		errs:           make(chan *ChannelError, 1),
		consumers:      make(map[string]*consumer),
		confirms:       newConfirmTracker(),
		deliveryMisses: newMissCache(),
		logger:         c.logger,
	}
}

func (ch *Channel) send(m Method) error {
	return ch.conn.sendMethod(ch.id, m)
}

// call writes req and waits for one of the expected reply shapes, or the
// channel/connection error that preempted it.
func (ch *Channel) call(req Method, res ...Method) (Method, error) {
	ch.m.Lock()
	closed, lastErr := ch.closed, ch.lastErr
	ch.m.Unlock()
	if closed {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, errClosed
	}
	if req != nil {
		if err := ch.send(req); err != nil {
			return nil, err
		}
	}
	select {
	case err := <-ch.errs:
		ch.errs <- err // let any other waiter observe it too
		return nil, err
	case msg := <-ch.rpc:
		for _, try := range res {
			if reflect.TypeOf(msg) == reflect.TypeOf(try) {
				return msg, nil
			}
		}
		uf := &UnexpectedFrameError{Expected: joinMethodNames(res), Actual: msg.methodName()}
		ch.shutdown(newChannelError(ch.id, UnexpectedFrame, uf.Error(), 0, 0))
		return nil, uf
	}
}

func (ch *Channel) open() error {
	_, err := ch.call(&channelOpen{}, &channelOpenOk{})
	return err
}

// NotifyClose registers c to receive the terminal *ChannelError.
func (ch *Channel) NotifyClose(c chan *ChannelError) chan *ChannelError {
	ch.m.Lock()
	defer ch.m.Unlock()
	if ch.closed {
		if ch.lastErr != nil {
			c <- ch.lastErr
		}
		close(c)
	} else {
		ch.closes = append(ch.closes, c)
	}
	return c
}

// NotifyCancel registers c to receive the consumer tag of any consumer
// the broker cancels out from under the caller (queue deleted, etc).
func (ch *Channel) NotifyCancel(c chan string) chan string {
	ch.m.Lock()
	ch.cancels = append(ch.cancels, c)
	ch.m.Unlock()
	return c
}

// NotifyReturn registers handler to be called, from its own goroutine,
// for every unroutable basic.return. Only one handler may be registered;
// a later call replaces the earlier one.
func (ch *Channel) NotifyReturn(handler func(Return)) {
	ch.m.Lock()
	ch.returnHandler = handler
	ch.m.Unlock()
}

// NotifyPublish registers c to receive a Confirmation, in delivery-tag
// order, for every publish made after Confirm was called.
func (ch *Channel) NotifyPublish(c chan Confirmation) chan Confirmation {
	return ch.confirms.notifyPublish(c)
}

// Confirm puts the channel into publisher-confirm mode via confirm.select
// (spec.md §4.4).
func (ch *Channel) Confirm(noWait bool) error {
	if noWait {
		if err := ch.send(&confirmSelect{NoWait: true}); err != nil {
			return err
		}
	} else if _, err := ch.call(&confirmSelect{}, &confirmSelectOk{}); err != nil {
		return err
	}
	ch.confirms.enable()
	return nil
}

// NextPublishSeqNo reports the delivery tag the next Publish call will
// receive while in confirm mode.
func (ch *Channel) NextPublishSeqNo() uint64 {
	return ch.confirms.nextPublishSeqNo()
}

// WaitForConfirms blocks until no published tag is outstanding, including
// tags from publishes made while it waits. It returns false if any nack landed
// during the wait, and a ChannelClosed error if the channel closed before
// every outstanding tag was resolved.
func (ch *Channel) WaitForConfirms() (bool, error) {
	ok, chErr := ch.confirms.waitForConfirms()
	if chErr != nil {
		return ok, chErr
	}
	return ok, nil
}

// ExchangeDeclare declares an exchange, creating it if passive is false
// and it does not already exist.
func (ch *Channel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args Table) error {
	req := &exchangeDeclare{Exchange: name, Type: kind, Durable: durable, AutoDelete: autoDelete, Internal: internal, NoWait: noWait, Arguments: args}
	if noWait {
		return ch.send(req)
	}
	_, err := ch.call(req, &exchangeDeclareOk{})
	return err
}

func (ch *Channel) ExchangeDelete(name string, ifUnused, noWait bool) error {
	req := &exchangeDelete{Exchange: name, IfUnused: ifUnused, NoWait: noWait}
	if noWait {
		return ch.send(req)
	}
	_, err := ch.call(req, &exchangeDeleteOk{})
	return err
}

func (ch *Channel) ExchangeBind(destination, source, routingKey string, noWait bool, args Table) error {
	req := &exchangeBind{Destination: destination, Source: source, RoutingKey: routingKey, NoWait: noWait, Arguments: args}
	if noWait {
		return ch.send(req)
	}
	_, err := ch.call(req, &exchangeBindOk{})
	return err
}

func (ch *Channel) ExchangeUnbind(destination, source, routingKey string, noWait bool, args Table) error {
	req := &exchangeUnbind{Destination: destination, Source: source, RoutingKey: routingKey, NoWait: noWait, Arguments: args}
	if noWait {
		return ch.send(req)
	}
	_, err := ch.call(req, &exchangeUnbindOk{})
	return err
}

// QueueDeclareResult carries the server-assigned or confirmed queue name
// plus its current depth.
type QueueDeclareResult struct {
	Queue         string
	MessageCount  uint32
	ConsumerCount uint32
}

func (ch *Channel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args Table) (QueueDeclareResult, error) {
	if name == "" {
		durable, exclusive, autoDelete = false, true, true
	}
	req := &queueDeclare{Queue: name, Durable: durable, Exclusive: exclusive, AutoDelete: autoDelete, NoWait: noWait, Arguments: args}
	if noWait {
		return QueueDeclareResult{Queue: name}, ch.send(req)
	}
	msg, err := ch.call(req, &queueDeclareOk{})
	if err != nil {
		return QueueDeclareResult{}, err
	}
	ok := msg.(*queueDeclareOk)
	return QueueDeclareResult{Queue: ok.Queue, MessageCount: ok.MessageCount, ConsumerCount: ok.ConsumerCount}, nil
}

func (ch *Channel) QueueBind(name, routingKey, exchange string, noWait bool, args Table) error {
	req := &queueBind{Queue: name, Exchange: exchange, RoutingKey: routingKey, NoWait: noWait, Arguments: args}
	if noWait {
		return ch.send(req)
	}
	_, err := ch.call(req, &queueBindOk{})
	return err
}

func (ch *Channel) QueueUnbind(name, routingKey, exchange string, args Table) error {
	_, err := ch.call(&queueUnbind{Queue: name, Exchange: exchange, RoutingKey: routingKey, Arguments: args}, &queueUnbindOk{})
	return err
}

func (ch *Channel) QueuePurge(name string, noWait bool) (uint32, error) {
	req := &queuePurge{Queue: name, NoWait: noWait}
	if noWait {
		return 0, ch.send(req)
	}
	msg, err := ch.call(req, &queuePurgeOk{})
	if err != nil {
		return 0, err
	}
	return msg.(*queuePurgeOk).MessageCount, nil
}

func (ch *Channel) QueueDelete(name string, ifUnused, ifEmpty, noWait bool) (uint32, error) {
	req := &queueDelete{Queue: name, IfUnused: ifUnused, IfEmpty: ifEmpty, NoWait: noWait}
	if noWait {
		return 0, ch.send(req)
	}
	msg, err := ch.call(req, &queueDeleteOk{})
	if err != nil {
		return 0, err
	}
	return msg.(*queueDeleteOk).MessageCount, nil
}

// Qos sets the prefetch window this channel's consumers respect before
// an ack/nack is required to receive more deliveries.
func (ch *Channel) Qos(prefetchCount int, prefetchSize int, global bool) error {
	_, err := ch.call(&basicQos{PrefetchCount: uint16(prefetchCount), PrefetchSize: uint32(prefetchSize), Global: global}, &basicQosOk{})
	return err
}

func (ch *Channel) Recover(requeue bool) error {
	_, err := ch.call(&basicRecover{Requeue: requeue}, &basicRecoverOk{})
	return err
}

// Consume registers a new server-push consumer and starts workers worker
// goroutines (one, when workers is below 1) pulling off its delivery
// mailbox, each invoking handler. A
// worker that panics mid-handler is contained: the panic is logged and
// that one delivery is dropped, the worker goroutine keeps running
// (spec.md §4.5 "consumer worker pool").
func (ch *Channel) Consume(queue, consumerTag string, autoAck, exclusive, noLocal, noWait bool, args Table, workers int, handler func(Delivery)) (string, error) {
	if consumerTag == "" {
		consumerTag = uuid.NewString()
	}
	if workers <= 0 {
		workers = 1
	}

	req := &basicConsume{Queue: queue, ConsumerTag: consumerTag, NoLocal: noLocal, NoAck: autoAck, Exclusive: exclusive, NoWait: noWait, Arguments: args}

	if !noWait {
		msg, err := ch.call(req, &basicConsumeOk{})
		if err != nil {
			return "", err
		}
		consumerTag = msg.(*basicConsumeOk).ConsumerTag
	} else if err := ch.send(req); err != nil {
		return "", err
	}

	cons := newConsumer(ch, consumerTag, workers, handler)
	ch.m.Lock()
	ch.consumers[consumerTag] = cons
	ch.m.Unlock()
	cons.start()

	return consumerTag, nil
}

// Cancel stops a consumer: the broker is told first (unless noWait), then
// the consumer is stopped so its worker pool drains what is already
// buffered in its mailbox and exits.
func (ch *Channel) Cancel(consumerTag string, noWait bool) error {
	req := &basicCancel{ConsumerTag: consumerTag, NoWait: noWait}
	if noWait {
		if err := ch.send(req); err != nil {
			return err
		}
	} else if _, err := ch.call(req, &basicCancelOk{}); err != nil {
		return err
	}

	ch.m.Lock()
	cons := ch.consumers[consumerTag]
	delete(ch.consumers, consumerTag)
	ch.m.Unlock()

	if cons != nil {
		cons.stop()
	}
	return nil
}

// Get fetches a single message with basic.get, bypassing any registered
// consumer. A nil Delivery with a nil error means the queue was empty.
func (ch *Channel) Get(queue string, autoAck bool) (*Delivery, error) {
	ch.m.Lock()
	if ch.getWaiter != nil {
		ch.m.Unlock()
		return nil, errClosed
	}
	waiter := make(chan *Delivery, 1)
	ch.getWaiter = waiter
	ch.m.Unlock()

	defer func() {
		ch.m.Lock()
		ch.getWaiter = nil
		ch.m.Unlock()
	}()

	if err := ch.send(&basicGet{Queue: queue, NoAck: autoAck}); err != nil {
		return nil, err
	}

	select {
	case err := <-ch.errs:
		ch.errs <- err
		return nil, err
	case d := <-waiter:
		if d == nil {
			ch.m.Lock()
			closed, lastErr := ch.closed, ch.lastErr
			ch.m.Unlock()
			if closed {
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, errClosed
			}
		}
		return d, nil
	}
}

// maxBodyFrame is the largest payload this Channel's content-body frames
// may carry, derived from the connection's negotiated frame_max.
func (ch *Channel) maxBodyFrame() int {
	frameMax := ch.conn.Config.FrameSize
	if frameMax <= 0 {
		return 1 << 20
	}
	overhead := frameHeaderLen + 1
	if frameMax <= overhead {
		return 1
	}
	return frameMax - overhead
}

// Publish sends a message atomically as method+header+body frames under
// one hold of the connection write lock (spec.md §4.4 invariant
// "publishes never interleave"). In confirm mode the delivery tag is
// reserved before any bytes are written, so a racing basic.ack can never
// reference an unseen tag.
func (ch *Channel) Publish(exchange, routingKey string, mandatory, immediate bool, props Properties, body []byte) error {
	ch.confirms.track()

	methodBytes, err := encodeMethod(ch.id, &basicPublish{Exchange: exchange, RoutingKey: routingKey, Mandatory: mandatory, Immediate: immediate})
	if err != nil {
		return err
	}
	headerBytes, err := encodeHeader(ch.id, classBasic, uint64(len(body)), props)
	if err != nil {
		return err
	}

	frames := make([][]byte, 0, 2+len(body)/ch.maxBodyFrame()+1)
	frames = append(frames, methodBytes, headerBytes)

	max := ch.maxBodyFrame()
	for offset := 0; offset < len(body); offset += max {
		end := offset + max
		if end > len(body) {
			end = len(body)
		}
		bodyBytes, err := encodeBody(ch.id, body[offset:end])
		if err != nil {
			return err
		}
		frames = append(frames, bodyBytes)
	}

	return ch.conn.writeFrames(frames...)
}

// TxSelect puts the channel into transaction mode.
func (ch *Channel) TxSelect() error {
	_, err := ch.call(&txSelect{}, &txSelectOk{})
	return err
}

func (ch *Channel) TxCommit() error {
	_, err := ch.call(&txCommit{}, &txCommitOk{})
	return err
}

func (ch *Channel) TxRollback() error {
	_, err := ch.call(&txRollback{}, &txRollbackOk{})
	return err
}

// Close requests and waits for channel.close-ok.
func (ch *Channel) Close() error {
	defer ch.shutdown(nil)
	_, err := ch.call(&channelClose{ReplyCode: ReplySuccess, ReplyText: "goodbye"}, &channelCloseOk{})
	return err
}

// shutdown tears the channel down, draining every consumer's worker pool
// and waking any synchronous waiter. Safe to call more than once and safe
// to call with a nil chErr (a clean, locally-initiated close).
func (ch *Channel) shutdown(chErr *ChannelError) error {
	var result error
	ch.destructor.Do(func() {
		ch.m.Lock()
		ch.closed = true
		ch.lastErr = chErr
		consumers := ch.consumers
		ch.consumers = make(map[string]*consumer)
		closes := ch.closes
		cancels := ch.cancels
		getWaiter := ch.getWaiter
		ch.m.Unlock()

		wake := chErr
		if wake == nil {
			wake = errClosed
		}
		select {
		case ch.errs <- wake:
		default:
		}
		if chErr != nil {
			for _, c := range closes {
				c <- chErr
			}
		}
		for _, c := range closes {
			close(c)
		}
		for _, c := range cancels {
			close(c)
		}
		if getWaiter != nil {
			getWaiter <- nil
		}
		for _, cons := range consumers {
			cons.stop()
		}
		ch.confirms.shutdown(chErr)

		result = nil
	})
	return result
}

// recv is invoked from the connection's single reader goroutine for
// every frame addressed to this channel. It must never block on a user
// callback.
func (ch *Channel) recv(f frame) {
	switch v := f.(type) {
	case *methodFrame:
		ch.recvMethod(v.Method)
	case *headerFrame:
		ch.recvHeader(v)
	case *bodyFrame:
		ch.recvBody(v)
	}
}

func (ch *Channel) recvMethod(m Method) {
	class, method := m.id()

	if isContentBearing(class, method) {
		ch.m.Lock()
		ch.pending = &pendingContent{method: m}
		ch.m.Unlock()
		return
	}

	switch mm := m.(type) {
	case *channelClose:
		_ = ch.send(&channelCloseOk{})
		ch.shutdown(newChannelError(ch.id, int(mm.ReplyCode), mm.ReplyText, mm.ClassID, mm.MethodID))
	case *channelCloseOk:
		ch.rpc <- m
	case *basicAck:
		ch.confirms.confirm(mm.DeliveryTag, mm.Multiple, true)
	case *basicNack:
		ch.confirms.confirm(mm.DeliveryTag, mm.Multiple, false)
	case *basicCancel:
		ch.m.Lock()
		cons := ch.consumers[mm.ConsumerTag]
		delete(ch.consumers, mm.ConsumerTag)
		cancels := append([]chan string(nil), ch.cancels...)
		ch.m.Unlock()
		if cons != nil {
			cons.stop()
		}
		for _, c := range cancels {
			c <- mm.ConsumerTag
		}
	case *basicGetEmpty:
		ch.m.Lock()
		waiter := ch.getWaiter
		ch.m.Unlock()
		if waiter != nil {
			waiter <- nil
		}
	default:
		ch.rpc <- m
	}
}

func (ch *Channel) recvHeader(h *headerFrame) {
	ch.m.Lock()
	p := ch.pending
	ch.m.Unlock()
	if p == nil {
		return
	}
	p.classID = h.ClassID
	p.bodySize = h.BodySize
	p.props = h.Properties
	p.buf = bufpool.Acquire()
	if p.bodySize == 0 {
		ch.finishContent(p)
	}
}

func (ch *Channel) recvBody(b *bodyFrame) {
	ch.m.Lock()
	p := ch.pending
	ch.m.Unlock()
	if p == nil || p.buf == nil {
		return
	}
	p.buf.Write(b.Body)
	if uint64(p.buf.Len()) >= p.bodySize {
		ch.finishContent(p)
	}
}

func (ch *Channel) finishContent(p *pendingContent) {
	body := append([]byte(nil), p.buf.Bytes()...)
	bufpool.Release(p.buf)

	ch.m.Lock()
	ch.pending = nil
	ch.m.Unlock()

	switch mm := p.method.(type) {
	case *basicDeliver:
		d := Delivery{
			Headers: p.props.Headers, ContentType: p.props.ContentType, ContentEncoding: p.props.ContentEncoding,
			DeliveryMode: p.props.DeliveryMode, Priority: p.props.Priority, CorrelationID: p.props.CorrelationID,
			ReplyTo: p.props.ReplyTo, Expiration: p.props.Expiration, MessageID: p.props.MessageID,
			Timestamp: p.props.Timestamp, Type: p.props.Type, UserID: p.props.UserID, AppID: p.props.AppID,
			ConsumerTag: mm.ConsumerTag, DeliveryTag: mm.DeliveryTag, Redelivered: mm.Redelivered,
			Exchange: mm.Exchange, RoutingKey: mm.RoutingKey, Body: body, channel: ch,
		}
		ch.m.Lock()
		cons := ch.consumers[mm.ConsumerTag]
		ch.m.Unlock()

		// Consume() registers the consumer only after basic.consume-ok is
		// received, so a delivery can in rare cases be decoded on this
		// goroutine a beat before that registration lands. Give it a brief
		// window to appear rather than dropping it outright.
		for i := 0; i < 3 && cons == nil; i++ {
			time.Sleep(time.Millisecond)
			ch.m.Lock()
			cons = ch.consumers[mm.ConsumerTag]
			ch.m.Unlock()
		}

		if cons != nil {
			cons.deliver(d)
		} else if ch.deliveryMisses.shouldWarn(mm.ConsumerTag) {
			ch.logger.Warnf("amqp: delivery for unknown consumer tag %q dropped", mm.ConsumerTag)
		}

	case *basicReturn:
		ch.m.Lock()
		handler := ch.returnHandler
		ch.m.Unlock()
		if handler == nil {
			ch.logger.Warnf("amqp: unroutable publish returned with no NotifyReturn handler: exchange=%s routingKey=%s replyCode=%d", mm.Exchange, mm.RoutingKey, mm.ReplyCode)
			return
		}
		ret := Return{
			ReplyCode: mm.ReplyCode, ReplyText: mm.ReplyText, Exchange: mm.Exchange, RoutingKey: mm.RoutingKey,
			ContentType: p.props.ContentType, ContentEncoding: p.props.ContentEncoding, Headers: p.props.Headers,
			DeliveryMode: p.props.DeliveryMode, Priority: p.props.Priority, CorrelationID: p.props.CorrelationID,
			ReplyTo: p.props.ReplyTo, Expiration: p.props.Expiration, MessageID: p.props.MessageID,
			Timestamp: p.props.Timestamp, Type: p.props.Type, UserID: p.props.UserID, AppID: p.props.AppID,
			Body: body,
		}
		go handler(ret)

	case *basicGetOk:
		d := &Delivery{
			Headers: p.props.Headers, ContentType: p.props.ContentType, ContentEncoding: p.props.ContentEncoding,
			DeliveryMode: p.props.DeliveryMode, Priority: p.props.Priority, CorrelationID: p.props.CorrelationID,
			ReplyTo: p.props.ReplyTo, Expiration: p.props.Expiration, MessageID: p.props.MessageID,
			Timestamp: p.props.Timestamp, Type: p.props.Type, UserID: p.props.UserID, AppID: p.props.AppID,
			DeliveryTag: mm.DeliveryTag, Redelivered: mm.Redelivered, Exchange: mm.Exchange, RoutingKey: mm.RoutingKey,
			MessageCount: mm.MessageCount, Body: body, channel: ch,
		}
		ch.m.Lock()
		waiter := ch.getWaiter
		ch.m.Unlock()
		if waiter != nil {
			waiter <- d
		}
	}
}
