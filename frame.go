// Copyright (c) 2012, Sean Treadway, SoundCloud Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amqp

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// Frame type octets, per the AMQP 0-9-1 wire grammar. Grounded on
// packetd-packetd/protocol/pamqp/decoder.go's frameMethod/frameContentHeader/
// frameContentBody/frameHeartbeat constants -- this client encodes the same
// four frame types the pack's passive decoder recognizes.
const (
	frameMethod    = 1
	frameHeader    = 2
	frameBody      = 3
	frameHeartbeat = 8
)

// frameEnd terminates every frame on the wire.
const frameEnd = 0xCE

// frameHeaderLen is the fixed envelope before the payload: 1-byte type,
// 2-byte channel, 4-byte payload length.
const frameHeaderLen = 7

// frame is the tagged union described in spec.md §3: every inbound or
// outbound frame carries a channel id and decodes to one of these four
// shapes.
type frame interface {
	channel() uint16
}

type methodFrame struct {
	ChannelID uint16
	Method    Method
}

func (f *methodFrame) channel() uint16 { return f.ChannelID }

type headerFrame struct {
	ChannelID  uint16
	ClassID    uint16
	Weight     uint16
	BodySize   uint64
	Properties Properties
}

func (f *headerFrame) channel() uint16 { return f.ChannelID }

type bodyFrame struct {
	ChannelID uint16
	Body      []byte
}

func (f *bodyFrame) channel() uint16 { return f.ChannelID }

type heartbeatFrame struct{}

func (f *heartbeatFrame) channel() uint16 { return 0 }

// encodeMethod serializes a method frame: class-id, method-id, packed
// argument list.
func encodeMethod(channelID uint16, m Method) ([]byte, error) {
	var payload bytes.Buffer
	class, method := m.id()
	if err := writeShort(&payload, class); err != nil {
		return nil, err
	}
	if err := writeShort(&payload, method); err != nil {
		return nil, err
	}
	if err := m.write(&payload); err != nil {
		return nil, err
	}
	return envelope(frameMethod, channelID, payload.Bytes())
}

// encodeHeader serializes a content-header frame: class-id, weight (always
// 0, unused by this spec), 64-bit body-size, and only the properties that
// are present, selected by the property flag word.
func encodeHeader(channelID uint16, classID uint16, bodySize uint64, props Properties) ([]byte, error) {
	var payload bytes.Buffer
	if err := writeShort(&payload, classID); err != nil {
		return nil, err
	}
	if err := writeShort(&payload, 0); err != nil { // weight
		return nil, err
	}
	if err := writeLonglong(&payload, bodySize); err != nil {
		return nil, err
	}
	if err := props.write(&payload); err != nil {
		return nil, err
	}
	return envelope(frameHeader, channelID, payload.Bytes())
}

// encodeBody serializes one content-body frame carrying a raw slice of the
// message payload. Splitting a message into frames of at most max_body_frame
// bytes is the caller's responsibility (see Channel.Publish).
func encodeBody(channelID uint16, body []byte) ([]byte, error) {
	return envelope(frameBody, channelID, body)
}

func encodeHeartbeat() ([]byte, error) {
	return envelope(frameHeartbeat, 0, nil)
}

func envelope(frameType byte, channelID uint16, payload []byte) ([]byte, error) {
	buf := make([]byte, 0, frameHeaderLen+len(payload)+1)
	w := bytes.NewBuffer(buf)
	if err := writeOctet(w, frameType); err != nil {
		return nil, err
	}
	if err := writeShort(w, channelID); err != nil {
		return nil, err
	}
	if err := writeLong(w, uint32(len(payload))); err != nil {
		return nil, err
	}
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	if err := writeOctet(w, frameEnd); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// frameReader decodes frames one at a time from a buffered stream.
type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReader(r)}
}

// decodeFrame reads one frame header, exactly its payload, and asserts the
// terminating 0xCE byte. Any shape violation is a MalformedFrameError, per
// spec.md §4.1.
func (fr *frameReader) decodeFrame() (frame, error) {
	frameType, err := readOctet(fr.r)
	if err != nil {
		return nil, err
	}

	channelID, err := readShort(fr.r)
	if err != nil {
		return nil, &MalformedFrameError{Err: err}
	}

	size, err := readLong(fr.r)
	if err != nil {
		return nil, &MalformedFrameError{Err: err}
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		return nil, &MalformedFrameError{Err: err}
	}

	end, err := readOctet(fr.r)
	if err != nil {
		return nil, &MalformedFrameError{Err: err}
	}
	if end != frameEnd {
		return nil, &MalformedFrameError{Err: errors.Errorf("expected frame terminator 0x%x, got 0x%x", frameEnd, end)}
	}

	body := bytes.NewReader(payload)

	switch frameType {
	case frameMethod:
		class, err := readShort(body)
		if err != nil {
			return nil, &MalformedFrameError{Err: err}
		}
		method, err := readShort(body)
		if err != nil {
			return nil, &MalformedFrameError{Err: err}
		}
		m, err := decodeMethod(class, method, body)
		if err != nil {
			if _, ok := err.(*MalformedFrameError); ok {
				return nil, err
			}
			return nil, &MalformedFrameError{Err: err}
		}
		return &methodFrame{ChannelID: channelID, Method: m}, nil

	case frameHeader:
		classID, err := readShort(body)
		if err != nil {
			return nil, &MalformedFrameError{Err: err}
		}
		weight, err := readShort(body)
		if err != nil {
			return nil, &MalformedFrameError{Err: err}
		}
		bodySize, err := readLonglong(body)
		if err != nil {
			return nil, &MalformedFrameError{Err: err}
		}
		props, err := readProperties(body)
		if err != nil {
			return nil, &MalformedFrameError{Err: err}
		}
		return &headerFrame{ChannelID: channelID, ClassID: classID, Weight: weight, BodySize: bodySize, Properties: props}, nil

	case frameBody:
		return &bodyFrame{ChannelID: channelID, Body: payload}, nil

	case frameHeartbeat:
		return &heartbeatFrame{}, nil

	default:
		return nil, &MalformedFrameError{Err: errors.Errorf("unknown frame type %d", frameType)}
	}
}

// frameWriter serializes pre-built frame byte-strings to the underlying
// socket. It has no locking of its own -- Connection.writeFrames owns the
// write mutex so a publish's method+header+body frames land on the wire
// without another channel's frames interleaving (spec.md §4.2, §5).
type frameWriter struct {
	w *bufio.Writer
}

func newFrameWriter(w io.Writer) *frameWriter {
	return &frameWriter{w: bufio.NewWriter(w)}
}

func (fw *frameWriter) writeFrames(frames ...[]byte) error {
	for _, f := range frames {
		if _, err := fw.w.Write(f); err != nil {
			return err
		}
	}
	return fw.w.Flush()
}
