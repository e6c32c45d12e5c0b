package amqp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelQueueDeclareRoundTrip(t *testing.T) {
	conn, broker := dialFakeBroker(t, 0)
	ch := openFakeChannel(t, conn, broker)

	resultCh := make(chan QueueDeclareResult, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := ch.QueueDeclare("jobs", true, false, false, false, Table{})
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- res
	}()

	f := broker.next().(*methodFrame)
	decl, ok := f.Method.(*queueDeclare)
	require.True(t, ok)
	assert.Equal(t, "jobs", decl.Queue)
	require.NoError(t, broker.sendQueueDeclareOk(f.channel(), "jobs", 3, 1))

	select {
	case res := <-resultCh:
		assert.Equal(t, QueueDeclareResult{Queue: "jobs", MessageCount: 3, ConsumerCount: 1}, res)
	case err := <-errCh:
		t.Fatalf("QueueDeclare failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("QueueDeclare did not return")
	}
}

func TestChannelQueueDeclareForcesServerNamedQueueFlags(t *testing.T) {
	conn, broker := dialFakeBroker(t, 0)
	ch := openFakeChannel(t, conn, broker)

	resultCh := make(chan QueueDeclareResult, 1)
	errCh := make(chan error, 1)
	go func() {
		// Caller asks for durable/non-exclusive/non-auto-delete, but an
		// empty name must force exclusive, auto-delete, and non-durable
		// regardless of what was requested.
		res, err := ch.QueueDeclare("", true, false, false, false, Table{})
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- res
	}()

	f := broker.next().(*methodFrame)
	decl, ok := f.Method.(*queueDeclare)
	require.True(t, ok)
	assert.Equal(t, "", decl.Queue)
	assert.False(t, decl.Durable)
	assert.True(t, decl.Exclusive)
	assert.True(t, decl.AutoDelete)
	require.NoError(t, broker.sendQueueDeclareOk(f.channel(), "amq.gen-abc123", 0, 0))

	select {
	case res := <-resultCh:
		assert.Equal(t, "amq.gen-abc123", res.Queue)
	case err := <-errCh:
		t.Fatalf("QueueDeclare failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("QueueDeclare did not return")
	}
}

func TestChannelPublishIsConfirmedInOrder(t *testing.T) {
	conn, broker := dialFakeBroker(t, 0)
	ch := openFakeChannel(t, conn, broker)

	selectDone := make(chan error, 1)
	go func() { selectDone <- ch.Confirm(false) }()
	f := broker.next().(*methodFrame)
	_, ok := f.Method.(*confirmSelect)
	require.True(t, ok)
	require.NoError(t, broker.send(f.channel(), &confirmSelectOk{}))
	require.NoError(t, <-selectDone)

	confirms := ch.NotifyPublish(make(chan Confirmation, 2))

	publishDone := make(chan error, 1)
	go func() {
		publishDone <- ch.Publish("orders", "created", false, false, Properties{ContentType: "application/json"}, []byte(`{"id":1}`))
	}()

	mf := broker.next().(*methodFrame)
	_, ok = mf.Method.(*basicPublish)
	require.True(t, ok)
	hf := broker.next().(*headerFrame)
	assert.Equal(t, uint64(len(`{"id":1}`)), hf.BodySize)
	bf := broker.next().(*bodyFrame)
	assert.Equal(t, `{"id":1}`, string(bf.Body))

	require.NoError(t, <-publishDone)

	require.NoError(t, broker.send(mf.channel(), &basicAck{DeliveryTag: 1, Multiple: false}))

	select {
	case c := <-confirms:
		assert.Equal(t, uint64(1), c.DeliveryTag)
		assert.True(t, c.Ack)
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation never arrived")
	}

	ok, err := ch.WaitForConfirms()
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestChannelPublishZeroLengthBodyEmitsNoBodyFrame(t *testing.T) {
	conn, broker := dialFakeBroker(t, 0)
	ch := openFakeChannel(t, conn, broker)

	publishDone := make(chan error, 1)
	go func() {
		publishDone <- ch.Publish("orders", "created", false, false, Properties{}, nil)
	}()

	mf := broker.next().(*methodFrame)
	_, ok := mf.Method.(*basicPublish)
	require.True(t, ok)
	hf := broker.next().(*headerFrame)
	assert.Equal(t, uint64(0), hf.BodySize)

	require.NoError(t, <-publishDone)

	// Nothing else should arrive on the wire for this publish: the next
	// frame read belongs to a fresh probe, not a stray empty body frame.
	probeDone := make(chan error, 1)
	go func() { probeDone <- ch.send(&basicQos{}) }()
	f := broker.next().(*methodFrame)
	_, ok = f.Method.(*basicQos)
	require.True(t, ok, "expected the next frame to be the qos probe, not a leftover body frame")
	require.NoError(t, <-probeDone)
}

func TestChannelCallRaisesUnexpectedFrameAndClosesChannel(t *testing.T) {
	conn, broker := dialFakeBroker(t, 0)
	ch := openFakeChannel(t, conn, broker)

	closed := ch.NotifyClose(make(chan *ChannelError, 1))

	declareDone := make(chan error, 1)
	go func() {
		err := ch.ExchangeDeclare("orders", "topic", false, false, false, false, Table{})
		declareDone <- err
	}()

	f := broker.next().(*methodFrame)
	_, ok := f.Method.(*exchangeDeclare)
	require.True(t, ok)

	// Inject a queue.declare-ok while exchange.declare-ok is expected (S6).
	require.NoError(t, broker.sendQueueDeclareOk(f.channel(), "jobs", 0, 0))

	select {
	case err := <-declareDone:
		require.Error(t, err)
		uf, ok := err.(*UnexpectedFrameError)
		require.True(t, ok, "expected *UnexpectedFrameError, got %T: %v", err, err)
		assert.Contains(t, uf.Actual, "queue")
	case <-time.After(2 * time.Second):
		t.Fatal("ExchangeDeclare did not return")
	}

	select {
	case chErr, ok := <-closed:
		require.True(t, ok)
		assert.Equal(t, UnexpectedFrame, chErr.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("channel was not closed after the unexpected frame")
	}
}

func TestChannelConsumeDeliversToHandler(t *testing.T) {
	conn, broker := dialFakeBroker(t, 0)
	ch := openFakeChannel(t, conn, broker)

	received := make(chan Delivery, 1)
	tagCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		tag, err := ch.Consume("jobs", "", false, false, false, false, Table{}, 1, func(d Delivery) {
			received <- d
		})
		if err != nil {
			errCh <- err
			return
		}
		tagCh <- tag
	}()

	f := broker.next().(*methodFrame)
	consume, ok := f.Method.(*basicConsume)
	require.True(t, ok)
	assert.Equal(t, "jobs", consume.Queue)
	require.NoError(t, broker.sendBasicConsumeOk(f.channel(), "ctag-1"))

	var tag string
	select {
	case tag = <-tagCh:
	case err := <-errCh:
		t.Fatalf("Consume failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Consume did not return")
	}
	assert.Equal(t, "ctag-1", tag)

	require.NoError(t, broker.sendBasicDeliver(ch.id, "ctag-1", 7, false, "orders", "created"))
	require.NoError(t, broker.sendHeader(ch.id, classBasic, 5, Properties{ContentType: "text/plain"}))
	require.NoError(t, broker.sendBody(ch.id, []byte("hello")))

	select {
	case d := <-received:
		assert.Equal(t, uint64(7), d.DeliveryTag)
		assert.Equal(t, "hello", string(d.Body))
		assert.Equal(t, "text/plain", d.ContentType)
	case <-time.After(2 * time.Second):
		t.Fatal("delivery never reached handler")
	}
}

func TestWaitForConfirmsRaisesChannelClosedOnChannelShutdown(t *testing.T) {
	conn, broker := dialFakeBroker(t, 0)
	ch := openFakeChannel(t, conn, broker)

	selectDone := make(chan error, 1)
	go func() { selectDone <- ch.Confirm(false) }()
	f := broker.next().(*methodFrame)
	_, ok := f.Method.(*confirmSelect)
	require.True(t, ok)
	require.NoError(t, broker.send(f.channel(), &confirmSelectOk{}))
	require.NoError(t, <-selectDone)

	publishDone := make(chan error, 1)
	go func() {
		publishDone <- ch.Publish("orders", "created", false, false, Properties{}, []byte("x"))
	}()
	_ = broker.next() // basic.publish
	_ = broker.next() // header
	_ = broker.next() // body
	require.NoError(t, <-publishDone)

	waitDone := make(chan error, 1)
	go func() {
		_, err := ch.WaitForConfirms()
		waitDone <- err
	}()

	// Give WaitForConfirms a moment to start blocking on the still-unconfirmed
	// delivery tag before the channel closes out from under it (S2).
	time.Sleep(20 * time.Millisecond)

	closeDone := make(chan error, 1)
	go func() { closeDone <- ch.Close() }()

	cf := broker.next().(*methodFrame)
	_, ok = cf.Method.(*channelClose)
	require.True(t, ok)
	require.NoError(t, broker.send(cf.channel(), &channelCloseOk{}))
	require.NoError(t, <-closeDone)

	select {
	case err := <-waitDone:
		require.Error(t, err)
		_, ok := err.(*ChannelError)
		require.True(t, ok, "expected *ChannelError, got %T: %v", err, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForConfirms did not return after the channel closed")
	}
}

func TestChannelCloseCascadesFromConnectionClose(t *testing.T) {
	conn, broker := dialFakeBroker(t, 0)
	ch := openFakeChannel(t, conn, broker)

	closed := ch.NotifyClose(make(chan *ChannelError, 1))

	closeDone := make(chan error, 1)
	go func() { closeDone <- conn.Close() }()

	f := broker.next().(*methodFrame)
	_, ok := f.Method.(*connectionClose)
	require.True(t, ok)
	require.NoError(t, broker.send(0, &connectionCloseOk{}))

	require.NoError(t, <-closeDone)

	select {
	case _, ok := <-closed:
		assert.False(t, ok, "channel close notification channel should be closed, not delivered to, on a clean shutdown")
	case <-time.After(2 * time.Second):
		t.Fatal("channel was not notified of the connection close")
	}
}
