// Copyright (c) 2012, Sean Treadway, SoundCloud Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amqp

import "fmt"

// Reply codes used in the AMQP 0-9-1 "close" methods, mirrored here so
// callers can compare against them without importing the wire constants.
const (
	ReplySuccess        = 200
	ContentTooLarge     = 311
	NoRoute             = 312
	NoConsumers         = 313
	ConnectionForced    = 320
	InvalidPath         = 402
	AccessRefused       = 403
	NotFound            = 404
	ResourceLocked      = 405
	PreconditionFailed  = 406
	FrameError          = 501
	SyntaxError         = 502
	CommandInvalid      = 503
	ChannelErrorCode    = 504
	UnexpectedFrame     = 505
	ResourceError       = 506
	NotAllowed          = 530
	NotImplemented      = 540
	InternalError       = 541
)

// ConnectionError reports that the connection was torn down, either by the
// peer, by a local Close, or by a socket error. Every Channel and Consumer
// fed by the connection is cascade-closed with this error.
type ConnectionError struct {
	Code   int
	Reason string
	Class  uint16
	Method uint16
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection closed: code %d, %s", e.Code, e.Reason)
}

// ChannelError reports an operation against a closed channel, or wakes a
// synchronous waiter whose channel closed out from under it.
type ChannelError struct {
	ChannelID uint16
	Code      int
	Reason    string
	Class     uint16
	Method    uint16
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel/%d closed: code %d, %s", e.ChannelID, e.Code, e.Reason)
}

// UnexpectedFrameError means a synchronous waiter received a different
// method than the one it was waiting on. The channel that produced it (or,
// for a channel-0 call, the whole connection) is closed with code 505
// (UNEXPECTED_FRAME).
type UnexpectedFrameError struct {
	Expected string
	Actual   string
}

func (e *UnexpectedFrameError) Error() string {
	return fmt.Sprintf("unexpected frame: expected %s, got %s", e.Expected, e.Actual)
}

// MalformedFrameError wraps a decoder failure: truncated input, an unknown
// field-table type tag, or a missing 0xCE terminator. The connection that
// produced it is closed with code 501 (FRAME_ERROR).
type MalformedFrameError struct {
	Err error
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame: %s", e.Err)
}

func (e *MalformedFrameError) Unwrap() error { return e.Err }

// ChannelMaxError means the connection has no more channel ids to allocate
// in [1, channel_max].
type ChannelMaxError struct{}

func (e *ChannelMaxError) Error() string { return "channel id space exhausted" }

// InvalidArgumentError wraps a caller mistake: a body larger than a
// caller-specified limit, or a field-table value of an unsupported Go type.
type InvalidArgumentError struct {
	Err error
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Err)
}

func (e *InvalidArgumentError) Unwrap() error { return e.Err }

func newConnectionError(code int, reason string, class, method uint16) *ConnectionError {
	return &ConnectionError{Code: code, Reason: reason, Class: class, Method: method}
}

func newChannelError(id uint16, code int, reason string, class, method uint16) *ChannelError {
	return &ChannelError{ChannelID: id, Code: code, Reason: reason, Class: class, Method: method}
}

var (
	// errClosed is returned by synchronous operations (and Get) invoked on a
	// channel that already finished a normal shutdown with no recorded
	// protocol error.
	errClosed = &ChannelError{Code: ChannelErrorCode, Reason: "channel/connection is not open"}

	// errSASL means none of the client's configured SASL mechanisms were
	// accepted by the server's advertised list.
	errSASL = newConnectionError(AccessRefused, "SASL could not negotiate a shared mechanism", 0, 0)

	// errCredentials is returned when the server closes the socket during
	// the authentication exchange rather than replying with tune/open-ok.
	errCredentials = newConnectionError(AccessRefused, "username or password not accepted", 0, 0)

	// errVhost means the server refused connection.open for the given vhost.
	errVhost = newConnectionError(NotAllowed, "no access to this vhost", 0, 0)
)
