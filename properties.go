// Copyright (c) 2012, Sean Treadway, SoundCloud Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amqp

import (
	"io"
	"time"
)

// Property flag bits within the 16-bit content-header flag word, MSB
// first. Exactly 14 basic-class properties fit in one word so this client
// never needs the flag-word continuation bit.
const (
	flagContentType     = 1 << 15
	flagContentEncoding = 1 << 14
	flagHeaders         = 1 << 13
	flagDeliveryMode    = 1 << 12
	flagPriority        = 1 << 11
	flagCorrelationID   = 1 << 10
	flagReplyTo         = 1 << 9
	flagExpiration      = 1 << 8
	flagMessageID       = 1 << 7
	flagTimestamp       = 1 << 6
	flagType            = 1 << 5
	flagUserID          = 1 << 4
	flagAppID           = 1 << 3
)

// Properties are the message properties carried on a content-header frame,
// per spec.md §3. Presence on the wire is driven by whether a field holds
// its zero value, mirroring the teacher ecosystem's convention (no
// separate "is-set" bitset in the Go type) -- a field deliberately set to
// its zero value is indistinguishable from "absent", which matches the
// protocol's own flags-word semantics.
type Properties struct {
	ContentType     string
	ContentEncoding string
	Headers         Table
	DeliveryMode    uint8 // 1 = transient, 2 = persistent
	Priority        uint8
	CorrelationID   string
	ReplyTo         string
	Expiration      string
	MessageID       string
	Timestamp       time.Time
	Type            string
	UserID          string
	AppID           string
}

func (p Properties) flags() uint16 {
	var f uint16
	if p.ContentType != "" {
		f |= flagContentType
	}
	if p.ContentEncoding != "" {
		f |= flagContentEncoding
	}
	if p.Headers != nil {
		f |= flagHeaders
	}
	if p.DeliveryMode != 0 {
		f |= flagDeliveryMode
	}
	if p.Priority != 0 {
		f |= flagPriority
	}
	if p.CorrelationID != "" {
		f |= flagCorrelationID
	}
	if p.ReplyTo != "" {
		f |= flagReplyTo
	}
	if p.Expiration != "" {
		f |= flagExpiration
	}
	if p.MessageID != "" {
		f |= flagMessageID
	}
	if !p.Timestamp.IsZero() {
		f |= flagTimestamp
	}
	if p.Type != "" {
		f |= flagType
	}
	if p.UserID != "" {
		f |= flagUserID
	}
	if p.AppID != "" {
		f |= flagAppID
	}
	return f
}

// write serializes the property flag word followed by only the present
// properties, per spec.md §4.1.
func (p Properties) write(w io.Writer) error {
	flags := p.flags()
	if err := writeShort(w, flags); err != nil {
		return err
	}
	if flags&flagContentType != 0 {
		if err := writeShortstr(w, p.ContentType); err != nil {
			return err
		}
	}
	if flags&flagContentEncoding != 0 {
		if err := writeShortstr(w, p.ContentEncoding); err != nil {
			return err
		}
	}
	if flags&flagHeaders != 0 {
		if err := writeTable(w, p.Headers); err != nil {
			return err
		}
	}
	if flags&flagDeliveryMode != 0 {
		if err := writeOctet(w, p.DeliveryMode); err != nil {
			return err
		}
	}
	if flags&flagPriority != 0 {
		if err := writeOctet(w, p.Priority); err != nil {
			return err
		}
	}
	if flags&flagCorrelationID != 0 {
		if err := writeShortstr(w, p.CorrelationID); err != nil {
			return err
		}
	}
	if flags&flagReplyTo != 0 {
		if err := writeShortstr(w, p.ReplyTo); err != nil {
			return err
		}
	}
	if flags&flagExpiration != 0 {
		if err := writeShortstr(w, p.Expiration); err != nil {
			return err
		}
	}
	if flags&flagMessageID != 0 {
		if err := writeShortstr(w, p.MessageID); err != nil {
			return err
		}
	}
	if flags&flagTimestamp != 0 {
		if err := writeTimestamp(w, p.Timestamp); err != nil {
			return err
		}
	}
	if flags&flagType != 0 {
		if err := writeShortstr(w, p.Type); err != nil {
			return err
		}
	}
	if flags&flagUserID != 0 {
		if err := writeShortstr(w, p.UserID); err != nil {
			return err
		}
	}
	if flags&flagAppID != 0 {
		if err := writeShortstr(w, p.AppID); err != nil {
			return err
		}
	}
	return nil
}

func readProperties(r io.Reader) (Properties, error) {
	var p Properties
	flags, err := readShort(r)
	if err != nil {
		return p, err
	}
	if flags&flagContentType != 0 {
		if p.ContentType, err = readShortstr(r); err != nil {
			return p, err
		}
	}
	if flags&flagContentEncoding != 0 {
		if p.ContentEncoding, err = readShortstr(r); err != nil {
			return p, err
		}
	}
	if flags&flagHeaders != 0 {
		if p.Headers, err = readTable(r); err != nil {
			return p, err
		}
	}
	if flags&flagDeliveryMode != 0 {
		if p.DeliveryMode, err = readOctet(r); err != nil {
			return p, err
		}
	}
	if flags&flagPriority != 0 {
		if p.Priority, err = readOctet(r); err != nil {
			return p, err
		}
	}
	if flags&flagCorrelationID != 0 {
		if p.CorrelationID, err = readShortstr(r); err != nil {
			return p, err
		}
	}
	if flags&flagReplyTo != 0 {
		if p.ReplyTo, err = readShortstr(r); err != nil {
			return p, err
		}
	}
	if flags&flagExpiration != 0 {
		if p.Expiration, err = readShortstr(r); err != nil {
			return p, err
		}
	}
	if flags&flagMessageID != 0 {
		if p.MessageID, err = readShortstr(r); err != nil {
			return p, err
		}
	}
	if flags&flagTimestamp != 0 {
		if p.Timestamp, err = readTimestamp(r); err != nil {
			return p, err
		}
	}
	if flags&flagType != 0 {
		if p.Type, err = readShortstr(r); err != nil {
			return p, err
		}
	}
	if flags&flagUserID != 0 {
		if p.UserID, err = readShortstr(r); err != nil {
			return p, err
		}
	}
	if flags&flagAppID != 0 {
		if p.AppID, err = readShortstr(r); err != nil {
			return p, err
		}
	}
	return p, nil
}
