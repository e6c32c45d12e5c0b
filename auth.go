// Copyright (c) 2012, Sean Treadway, SoundCloud Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amqp

// Authentication is a SASL mechanism offered during the connection.start /
// connection.start-ok handshake. Dial fills this from the URL's userinfo
// using PlainAuth; callers needing AMQPLAIN or a custom mechanism can set
// Config.SASL directly.
type Authentication interface {
	Mechanism() string
	Response() string
}

// PlainAuth implements the SASL PLAIN mechanism: a NUL-separated
// identity/username/password triple.
type PlainAuth struct {
	Username string
	Password string
}

func (a *PlainAuth) Mechanism() string { return "PLAIN" }
func (a *PlainAuth) Response() string {
	return "\x00" + a.Username + "\x00" + a.Password
}

// AMQPPlainAuth implements the RabbitMQ AMQPLAIN mechanism: a field-table
// carrying LOGIN and PASSWORD, encoded as the response long-string.
type AMQPPlainAuth struct {
	Username string
	Password string
}

func (a *AMQPPlainAuth) Mechanism() string { return "AMQPLAIN" }
func (a *AMQPPlainAuth) Response() string {
	var buf []byte
	w := sliceWriter{&buf}
	_ = writeShortstr(w, "LOGIN")
	_ = writeField(w, a.Username)
	_ = writeShortstr(w, "PASSWORD")
	_ = writeField(w, a.Password)
	return string(buf)
}

type sliceWriter struct{ buf *[]byte }

func (s sliceWriter) Write(p []byte) (int, error) {
	*s.buf = append(*s.buf, p...)
	return len(p), nil
}

// pickSASLMechanism finds the first of the client's configured mechanisms
// that the server advertised in connection.start, matching streadway/amqp's
// policy of trying them in the client's preference order.
func pickSASLMechanism(client []Authentication, serverMechanisms []string) (Authentication, bool) {
	for _, auth := range client {
		for _, mech := range serverMechanisms {
			if auth.Mechanism() == mech {
				return auth, true
			}
		}
	}
	return nil, false
}
