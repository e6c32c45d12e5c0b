// Copyright (c) 2012, Sean Treadway, SoundCloud Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amqp

import (
	"io"
	"strings"
)

// Class ids, grounded on packetd-packetd/protocol/pamqp/classmethod.go's
// classConnection/classChannel/classExchange/classQueue/classBasic/classTx
// table (a passive AMQP dissector built against the same wire protocol).
// classConfirm is added here because this client implements publisher
// confirms, which the sniffer's classmethod table does not need to label.
const (
	classConnection = 10
	classChannel    = 20
	classExchange   = 40
	classQueue      = 50
	classBasic      = 60
	classConfirm    = 85
	classTx         = 90
)

// classNames names a class-id for error messages and UnexpectedFrameError,
// grounded on the same table in packetd-packetd.
var classNames = map[uint16]string{
	classConnection: "connection",
	classChannel:    "channel",
	classExchange:   "exchange",
	classQueue:      "queue",
	classBasic:      "basic",
	classConfirm:    "confirm",
	classTx:         "tx",
}

// Method is the tagged-variant interface every decoded AMQP method
// implements: discriminant is (class-id, method-id), matched by type
// switch rather than by a runtime string (spec.md §9, "Dynamic dispatch on
// method ids").
type Method interface {
	id() (class, method uint16)
	write(w io.Writer) error
	methodName() string
}

func methodName(class, method uint16) string {
	c := classNames[class]
	if c == "" {
		c = "unknown"
	}
	return c + "." + methodNames[classMethodKey{class, method}]
}

type classMethodKey struct {
	Class, Method uint16
}

var methodNames = map[classMethodKey]string{
	{classConnection, 10}: "start",
	{classConnection, 11}: "start-ok",
	{classConnection, 30}: "tune",
	{classConnection, 31}: "tune-ok",
	{classConnection, 40}: "open",
	{classConnection, 41}: "open-ok",
	{classConnection, 50}: "close",
	{classConnection, 51}: "close-ok",
	{classConnection, 60}: "blocked",
	{classConnection, 61}: "unblocked",

	{classChannel, 10}: "open",
	{classChannel, 11}: "open-ok",
	{classChannel, 40}: "close",
	{classChannel, 41}: "close-ok",

	{classExchange, 10}: "declare",
	{classExchange, 11}: "declare-ok",
	{classExchange, 20}: "delete",
	{classExchange, 21}: "delete-ok",
	{classExchange, 30}: "bind",
	{classExchange, 31}: "bind-ok",
	{classExchange, 40}: "unbind",
	{classExchange, 51}: "unbind-ok",

	{classQueue, 10}: "declare",
	{classQueue, 11}: "declare-ok",
	{classQueue, 20}: "bind",
	{classQueue, 21}: "bind-ok",
	{classQueue, 30}: "purge",
	{classQueue, 31}: "purge-ok",
	{classQueue, 40}: "delete",
	{classQueue, 41}: "delete-ok",
	{classQueue, 50}: "unbind",
	{classQueue, 51}: "unbind-ok",

	{classBasic, 10}:  "qos",
	{classBasic, 11}:  "qos-ok",
	{classBasic, 20}:  "consume",
	{classBasic, 21}:  "consume-ok",
	{classBasic, 30}:  "cancel",
	{classBasic, 31}:  "cancel-ok",
	{classBasic, 40}:  "publish",
	{classBasic, 50}:  "return",
	{classBasic, 60}:  "deliver",
	{classBasic, 70}:  "get",
	{classBasic, 71}:  "get-ok",
	{classBasic, 72}:  "get-empty",
	{classBasic, 80}:  "ack",
	{classBasic, 90}:  "reject",
	{classBasic, 110}: "recover",
	{classBasic, 111}: "recover-ok",
	{classBasic, 120}: "nack",

	{classConfirm, 10}: "select",
	{classConfirm, 11}: "select-ok",

	{classTx, 10}: "select",
	{classTx, 11}: "select-ok",
	{classTx, 20}: "commit",
	{classTx, 21}: "commit-ok",
	{classTx, 30}: "rollback",
	{classTx, 31}: "rollback-ok",
}

// joinMethodNames renders the reply shapes a synchronous call would accept,
// for UnexpectedFrameError's Expected field.
func joinMethodNames(methods []Method) string {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.methodName()
	}
	return strings.Join(names, " or ")
}

// isSyncReply reports whether a method is one of the synchronous-reply
// methods the reader must push into a channel's replies mailbox, per
// spec.md §4.3.
func isSyncReply(class, method uint16) bool {
	switch (classMethodKey{class, method}) {
	case classMethodKey{classConnection, 41}, // open-ok -- only used at channel 0 during handshake
		classMethodKey{classChannel, 11},  // open-ok
		classMethodKey{classChannel, 41},  // close-ok
		classMethodKey{classExchange, 11}, // declare-ok
		classMethodKey{classExchange, 21}, // delete-ok
		classMethodKey{classExchange, 31}, // bind-ok
		classMethodKey{classExchange, 51}, // unbind-ok
		classMethodKey{classQueue, 11},    // declare-ok
		classMethodKey{classQueue, 21},    // bind-ok
		classMethodKey{classQueue, 31},    // purge-ok
		classMethodKey{classQueue, 41},    // delete-ok
		classMethodKey{classQueue, 51},    // unbind-ok
		classMethodKey{classBasic, 11},    // qos-ok
		classMethodKey{classBasic, 21},    // consume-ok
		classMethodKey{classBasic, 31},    // cancel-ok
		classMethodKey{classBasic, 72},    // get-empty
		classMethodKey{classBasic, 111},   // recover-ok
		classMethodKey{classConfirm, 11},  // select-ok
		classMethodKey{classTx, 11},       // select-ok
		classMethodKey{classTx, 21},       // commit-ok
		classMethodKey{classTx, 31}:       // rollback-ok
		return true
	}
	return false
}

// isContentBearing reports whether an inbound method starts a content
// assembly (method frame followed by header + body frames), per
// spec.md §4.3.
func isContentBearing(class, method uint16) bool {
	switch (classMethodKey{class, method}) {
	case classMethodKey{classBasic, 50}, // return
		classMethodKey{classBasic, 60}, // deliver
		classMethodKey{classBasic, 71}: // get-ok
		return true
	}
	return false
}
