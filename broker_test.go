package amqp

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeBroker is a minimal in-process AMQP 0-9-1 peer run over net.Pipe, used
// to drive Connection/Channel through real frame encode/decode without a
// real broker. Grounded on packetd-packetd/protocol/pamqp/channel_test.go's
// pattern of feeding frame bytes through a decoder and asserting on the
// result, inverted here: this harness is the one producing/consuming wire
// bytes, and the assertions live on the client-visible side.
type fakeBroker struct {
	t  *testing.T
	fr *frameReader
	fw *frameWriter
}

// dialFakeBroker performs the connection.start/tune/open handshake as the
// server side and returns the live client Connection plus a handle for the
// test to keep talking to the fake server on channel frames.
func dialFakeBroker(t *testing.T, heartbeat time.Duration) (*Connection, *fakeBroker) {
	t.Helper()

	clientConn, serverConn := net.Pipe()
	broker := &fakeBroker{t: t, fr: newFrameReader(serverConn), fw: newFrameWriter(serverConn)}

	handshakeDone := make(chan struct{})
	go func() {
		defer close(handshakeDone)
		broker.serveHandshake(serverConn)
	}()

	connCh := make(chan *Connection, 1)
	errCh := make(chan error, 1)
	go func() {
		conn, err := Open(clientConn, Config{
			Heartbeat: heartbeat,
			SASL:      []Authentication{&PlainAuth{Username: "guest", Password: "guest"}},
		})
		if err != nil {
			errCh <- err
			return
		}
		connCh <- conn
	}()

	select {
	case conn := <-connCh:
		<-handshakeDone
		return conn, broker
	case err := <-errCh:
		require.NoError(t, err)
		return nil, nil
	case <-time.After(5 * time.Second):
		t.Fatal("handshake did not complete")
		return nil, nil
	}
}

func (b *fakeBroker) serveHandshake(conn net.Conn) {
	header := make([]byte, 8)
	if _, err := conn.Read(header); err != nil {
		return
	}

	_ = b.sendConnectionStart()
	b.expect(&connectionStartOk{})

	_ = b.sendConnectionTune()
	b.expect(&connectionTuneOk{})

	b.expect(&connectionOpen{})
	_ = b.send(0, &connectionOpenOk{})
}

func (b *fakeBroker) send(channelID uint16, m Method) error {
	raw, err := encodeMethod(channelID, m)
	if err != nil {
		return err
	}
	return b.fw.writeFrames(raw)
}

// sendRawMethod builds a method frame by hand for the handful of methods
// this module's Method.write() deliberately refuses to encode because a
// well-behaved client never originates them (connection.start,
// connection.tune, queue.declare-ok, basic.consume-ok, basic.deliver...).
// The fake broker plays the server role, so it has to produce them anyway.
func (b *fakeBroker) sendRawMethod(channelID, class, method uint16, writeArgs func(w *bytes.Buffer) error) error {
	var payload bytes.Buffer
	if err := writeShort(&payload, class); err != nil {
		return err
	}
	if err := writeShort(&payload, method); err != nil {
		return err
	}
	if writeArgs != nil {
		if err := writeArgs(&payload); err != nil {
			return err
		}
	}
	raw, err := envelope(frameMethod, channelID, payload.Bytes())
	if err != nil {
		return err
	}
	return b.fw.writeFrames(raw)
}

func (b *fakeBroker) sendConnectionStart() error {
	return b.sendRawMethod(0, classConnection, 10, func(w *bytes.Buffer) error {
		if err := writeOctet(w, 0); err != nil {
			return err
		}
		if err := writeOctet(w, 9); err != nil {
			return err
		}
		if err := writeTable(w, Table{}); err != nil {
			return err
		}
		if err := writeLongstr(w, []byte("PLAIN")); err != nil {
			return err
		}
		return writeLongstr(w, []byte("en_US"))
	})
}

func (b *fakeBroker) sendConnectionTune() error {
	return b.sendRawMethod(0, classConnection, 30, func(w *bytes.Buffer) error {
		if err := writeShort(w, 2047); err != nil {
			return err
		}
		if err := writeLong(w, 131072); err != nil {
			return err
		}
		return writeShort(w, 0)
	})
}

func (b *fakeBroker) sendQueueDeclareOk(channelID uint16, queue string, messageCount, consumerCount uint32) error {
	return b.sendRawMethod(channelID, classQueue, 11, func(w *bytes.Buffer) error {
		if err := writeShortstr(w, queue); err != nil {
			return err
		}
		if err := writeLong(w, messageCount); err != nil {
			return err
		}
		return writeLong(w, consumerCount)
	})
}

func (b *fakeBroker) sendBasicConsumeOk(channelID uint16, tag string) error {
	return b.sendRawMethod(channelID, classBasic, 21, func(w *bytes.Buffer) error {
		return writeShortstr(w, tag)
	})
}

func (b *fakeBroker) sendBasicDeliver(channelID uint16, consumerTag string, deliveryTag uint64, redelivered bool, exchange, routingKey string) error {
	return b.sendRawMethod(channelID, classBasic, 60, func(w *bytes.Buffer) error {
		if err := writeShortstr(w, consumerTag); err != nil {
			return err
		}
		if err := writeLonglong(w, deliveryTag); err != nil {
			return err
		}
		if err := writeBits(w, redelivered); err != nil {
			return err
		}
		if err := writeShortstr(w, exchange); err != nil {
			return err
		}
		return writeShortstr(w, routingKey)
	})
}

// drainOne reads and discards a single frame without failing the test, for
// use in a background goroutine that just needs to unblock a net.Pipe
// write on the other end (net.Pipe has no internal buffering: every write
// blocks until a read consumes it).
func (b *fakeBroker) drainOne() {
	_, _ = b.fr.decodeFrame()
}

func (b *fakeBroker) sendHeader(channelID uint16, classID uint16, bodySize uint64, props Properties) error {
	raw, err := encodeHeader(channelID, classID, bodySize, props)
	if err != nil {
		return err
	}
	return b.fw.writeFrames(raw)
}

func (b *fakeBroker) sendBody(channelID uint16, body []byte) error {
	raw, err := encodeBody(channelID, body)
	if err != nil {
		return err
	}
	return b.fw.writeFrames(raw)
}

// next reads the next frame, failing the test on a decode error.
func (b *fakeBroker) next() frame {
	b.t.Helper()
	f, err := b.fr.decodeFrame()
	require.NoError(b.t, err)
	return f
}

// expect reads the next frame and requires it to be a methodFrame carrying
// exactly the given method type, returning the decoded method.
func (b *fakeBroker) expect(want Method) Method {
	b.t.Helper()
	f := b.next()
	mf, ok := f.(*methodFrame)
	require.True(b.t, ok, "expected a method frame")
	require.IsType(b.t, want, mf.Method)
	return mf.Method
}

// openFakeChannel drives a Connection.Channel() call against the fake
// broker's channel.open/open-ok exchange and returns the resulting Channel.
func openFakeChannel(t *testing.T, conn *Connection, broker *fakeBroker) *Channel {
	t.Helper()

	chCh := make(chan *Channel, 1)
	errCh := make(chan error, 1)
	go func() {
		ch, err := conn.Channel()
		if err != nil {
			errCh <- err
			return
		}
		chCh <- ch
	}()

	f := broker.next()
	mf := f.(*methodFrame)
	_, ok := mf.Method.(*channelOpen)
	require.True(t, ok)
	require.NoError(t, broker.send(mf.channel(), &channelOpenOk{}))

	select {
	case ch := <-chCh:
		return ch
	case err := <-errCh:
		require.NoError(t, err)
		return nil
	case <-time.After(5 * time.Second):
		t.Fatal("channel open did not complete")
		return nil
	}
}
