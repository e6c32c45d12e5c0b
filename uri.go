// Copyright (c) 2012, Sean Treadway, SoundCloud Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amqp

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultAMQPPort  = 5672
	defaultAMQPSPort = 6671
)

// URI is a parsed amqp(s):// connection string, per spec.md §6.
type URI struct {
	Scheme   string
	Host     string
	Port     int
	Username string
	Password string
	Vhost    string

	Heartbeat      time.Duration
	ChannelMax     int
	FrameMax       int
	ConnectionName string
	VerifyTLS      bool
}

// ParseURI parses a URI of the form
// amqp://[user[:pass]@]host[:port][/vhost][?options], recognizing the
// heartbeat, channel_max, frame_max, connection_name and verify query
// options described in spec.md §6.
func ParseURI(raw string) (URI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URI{}, errors.Wrap(err, "parse amqp uri")
	}

	me := URI{
		Scheme:    u.Scheme,
		Host:      u.Hostname(),
		VerifyTLS: true,
	}

	switch me.Scheme {
	case "amqp":
		me.Port = defaultAMQPPort
	case "amqps":
		me.Port = defaultAMQPSPort
	default:
		return URI{}, errors.Errorf("unsupported scheme %q, expected amqp or amqps", u.Scheme)
	}

	if port := u.Port(); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return URI{}, errors.Wrap(err, "parse amqp uri port")
		}
		me.Port = p
	}

	if u.User != nil {
		me.Username = u.User.Username()
		me.Password, _ = u.User.Password()
	}

	me.Vhost = strings.TrimPrefix(u.Path, "/")

	q := u.Query()
	if v := q.Get("heartbeat"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return URI{}, errors.Wrap(err, "parse heartbeat query option")
		}
		me.Heartbeat = time.Duration(secs) * time.Second
	}
	if v := q.Get("channel_max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return URI{}, errors.Wrap(err, "parse channel_max query option")
		}
		me.ChannelMax = n
	}
	if v := q.Get("frame_max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return URI{}, errors.Wrap(err, "parse frame_max query option")
		}
		me.FrameMax = n
	}
	me.ConnectionName = q.Get("connection_name")
	if v := q.Get("verify"); v != "" {
		me.VerifyTLS = v != "off" && v != "false" && v != "0"
	}

	return me, nil
}

// PlainAuth builds the SASL PLAIN credential carried in connection.start-ok
// from the URI's userinfo.
func (u URI) PlainAuth() *PlainAuth {
	return &PlainAuth{Username: u.Username, Password: u.Password}
}
