// Copyright (c) 2012, Sean Treadway, SoundCloud Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amqp

import (
	"io"

	"github.com/pkg/errors"
)

// decodeMethod builds the concrete, typed Method for a (class, method) pair
// read off the wire. Unknown pairs are a protocol violation: MalformedFrameError.
func decodeMethod(class, method uint16, r io.Reader) (Method, error) {
	key := classMethodKey{class, method}
	switch key {
	case classMethodKey{classConnection, 10}:
		return readConnectionStart(r)
	case classMethodKey{classConnection, 11}:
		return readConnectionStartOk(r)
	case classMethodKey{classConnection, 30}:
		return readConnectionTune(r)
	case classMethodKey{classConnection, 31}:
		return readConnectionTuneOk(r)
	case classMethodKey{classConnection, 40}:
		return readConnectionOpen(r)
	case classMethodKey{classConnection, 41}:
		return readConnectionOpenOk(r)
	case classMethodKey{classConnection, 50}:
		return readConnectionClose(r)
	case classMethodKey{classConnection, 51}:
		return &connectionCloseOk{}, nil
	case classMethodKey{classConnection, 60}:
		return readConnectionBlocked(r)
	case classMethodKey{classConnection, 61}:
		return &connectionUnblocked{}, nil

	case classMethodKey{classChannel, 10}:
		return readChannelOpen(r)
	case classMethodKey{classChannel, 11}:
		return readChannelOpenOk(r)
	case classMethodKey{classChannel, 40}:
		return readChannelClose(r)
	case classMethodKey{classChannel, 41}:
		return &channelCloseOk{}, nil

	case classMethodKey{classExchange, 11}:
		return &exchangeDeclareOk{}, nil
	case classMethodKey{classExchange, 21}:
		return &exchangeDeleteOk{}, nil
	case classMethodKey{classExchange, 31}:
		return &exchangeBindOk{}, nil
	case classMethodKey{classExchange, 51}:
		return &exchangeUnbindOk{}, nil

	case classMethodKey{classQueue, 11}:
		return readQueueDeclareOk(r)
	case classMethodKey{classQueue, 21}:
		return &queueBindOk{}, nil
	case classMethodKey{classQueue, 31}:
		return readQueuePurgeOk(r)
	case classMethodKey{classQueue, 41}:
		return readQueueDeleteOk(r)
	case classMethodKey{classQueue, 51}:
		return &queueUnbindOk{}, nil

	case classMethodKey{classBasic, 11}:
		return &basicQosOk{}, nil
	case classMethodKey{classBasic, 21}:
		return readBasicConsumeOk(r)
	case classMethodKey{classBasic, 31}:
		return readBasicCancelOk(r)
	case classMethodKey{classBasic, 30}:
		return readBasicCancel(r)
	case classMethodKey{classBasic, 50}:
		return readBasicReturn(r)
	case classMethodKey{classBasic, 60}:
		return readBasicDeliver(r)
	case classMethodKey{classBasic, 71}:
		return readBasicGetOk(r)
	case classMethodKey{classBasic, 72}:
		return readBasicGetEmpty(r)
	case classMethodKey{classBasic, 80}:
		return readBasicAck(r)
	case classMethodKey{classBasic, 111}:
		return &basicRecoverOk{}, nil
	case classMethodKey{classBasic, 120}:
		return readBasicNack(r)

	case classMethodKey{classConfirm, 11}:
		return &confirmSelectOk{}, nil

	case classMethodKey{classTx, 11}:
		return &txSelectOk{}, nil
	case classMethodKey{classTx, 21}:
		return &txCommitOk{}, nil
	case classMethodKey{classTx, 31}:
		return &txRollbackOk{}, nil
	}
	return nil, &MalformedFrameError{Err: errors.Errorf("unknown method class=%d method=%d", class, method)}
}

// --- connection ---

type connectionStart struct {
	VersionMajor     byte
	VersionMinor     byte
	ServerProperties Table
	Mechanisms       string
	Locales          string
}

func (m *connectionStart) id() (uint16, uint16)   { return classConnection, 10 }
func (m *connectionStart) methodName() string     { return methodName(classConnection, 10) }
func (m *connectionStart) write(w io.Writer) error { return errors.New("connection.start is server-to-client only") }

func readConnectionStart(r io.Reader) (*connectionStart, error) {
	m := &connectionStart{}
	var err error
	if m.VersionMajor, err = readOctet(r); err != nil {
		return nil, err
	}
	if m.VersionMinor, err = readOctet(r); err != nil {
		return nil, err
	}
	if m.ServerProperties, err = readTable(r); err != nil {
		return nil, err
	}
	mech, err := readLongstr(r)
	if err != nil {
		return nil, err
	}
	m.Mechanisms = string(mech)
	loc, err := readLongstr(r)
	if err != nil {
		return nil, err
	}
	m.Locales = string(loc)
	return m, nil
}

type connectionStartOk struct {
	ClientProperties Table
	Mechanism        string
	Response         string
	Locale           string
}

func (m *connectionStartOk) id() (uint16, uint16) { return classConnection, 11 }
func (m *connectionStartOk) methodName() string   { return methodName(classConnection, 11) }
func (m *connectionStartOk) write(w io.Writer) error {
	if err := writeTable(w, m.ClientProperties); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Mechanism); err != nil {
		return err
	}
	if err := writeLongstr(w, []byte(m.Response)); err != nil {
		return err
	}
	return writeShortstr(w, m.Locale)
}

func readConnectionStartOk(r io.Reader) (*connectionStartOk, error) {
	m := &connectionStartOk{}
	var err error
	if m.ClientProperties, err = readTable(r); err != nil {
		return nil, err
	}
	if m.Mechanism, err = readShortstr(r); err != nil {
		return nil, err
	}
	resp, err := readLongstr(r)
	if err != nil {
		return nil, err
	}
	m.Response = string(resp)
	if m.Locale, err = readShortstr(r); err != nil {
		return nil, err
	}
	return m, nil
}

type connectionTune struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (m *connectionTune) id() (uint16, uint16)   { return classConnection, 30 }
func (m *connectionTune) methodName() string     { return methodName(classConnection, 30) }
func (m *connectionTune) write(w io.Writer) error { return errors.New("connection.tune is server-to-client only") }

func readConnectionTune(r io.Reader) (*connectionTune, error) {
	m := &connectionTune{}
	var err error
	if m.ChannelMax, err = readShort(r); err != nil {
		return nil, err
	}
	if m.FrameMax, err = readLong(r); err != nil {
		return nil, err
	}
	if m.Heartbeat, err = readShort(r); err != nil {
		return nil, err
	}
	return m, nil
}

type connectionTuneOk struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (m *connectionTuneOk) id() (uint16, uint16) { return classConnection, 31 }
func (m *connectionTuneOk) methodName() string   { return methodName(classConnection, 31) }
func (m *connectionTuneOk) write(w io.Writer) error {
	if err := writeShort(w, m.ChannelMax); err != nil {
		return err
	}
	if err := writeLong(w, m.FrameMax); err != nil {
		return err
	}
	return writeShort(w, m.Heartbeat)
}

func readConnectionTuneOk(r io.Reader) (*connectionTuneOk, error) {
	m := &connectionTuneOk{}
	var err error
	if m.ChannelMax, err = readShort(r); err != nil {
		return nil, err
	}
	if m.FrameMax, err = readLong(r); err != nil {
		return nil, err
	}
	if m.Heartbeat, err = readShort(r); err != nil {
		return nil, err
	}
	return m, nil
}

type connectionOpen struct {
	VirtualHost string
}

func (m *connectionOpen) id() (uint16, uint16) { return classConnection, 40 }
func (m *connectionOpen) methodName() string   { return methodName(classConnection, 40) }
func (m *connectionOpen) write(w io.Writer) error {
	if err := writeShortstr(w, m.VirtualHost); err != nil {
		return err
	}
	if err := writeShortstr(w, ""); err != nil { // reserved capabilities
		return err
	}
	return writeBits(w, false) // reserved insist
}

func readConnectionOpen(r io.Reader) (*connectionOpen, error) {
	m := &connectionOpen{}
	var err error
	if m.VirtualHost, err = readShortstr(r); err != nil {
		return nil, err
	}
	if _, err = readShortstr(r); err != nil {
		return nil, err
	}
	if _, err = readBits(r, 1); err != nil {
		return nil, err
	}
	return m, nil
}

type connectionOpenOk struct{}

func (m *connectionOpenOk) id() (uint16, uint16)     { return classConnection, 41 }
func (m *connectionOpenOk) methodName() string       { return methodName(classConnection, 41) }
func (m *connectionOpenOk) write(w io.Writer) error   { return writeShortstr(w, "") }

func readConnectionOpenOk(r io.Reader) (*connectionOpenOk, error) {
	if _, err := readShortstr(r); err != nil {
		return nil, err
	}
	return &connectionOpenOk{}, nil
}

type connectionClose struct {
	ReplyCode uint16
	ReplyText string
	ClassID   uint16
	MethodID  uint16
}

func (m *connectionClose) id() (uint16, uint16) { return classConnection, 50 }
func (m *connectionClose) methodName() string   { return methodName(classConnection, 50) }
func (m *connectionClose) write(w io.Writer) error {
	if err := writeShort(w, m.ReplyCode); err != nil {
		return err
	}
	if err := writeShortstr(w, m.ReplyText); err != nil {
		return err
	}
	if err := writeShort(w, m.ClassID); err != nil {
		return err
	}
	return writeShort(w, m.MethodID)
}

func readConnectionClose(r io.Reader) (*connectionClose, error) {
	m := &connectionClose{}
	var err error
	if m.ReplyCode, err = readShort(r); err != nil {
		return nil, err
	}
	if m.ReplyText, err = readShortstr(r); err != nil {
		return nil, err
	}
	if m.ClassID, err = readShort(r); err != nil {
		return nil, err
	}
	if m.MethodID, err = readShort(r); err != nil {
		return nil, err
	}
	return m, nil
}

type connectionCloseOk struct{}

func (m *connectionCloseOk) id() (uint16, uint16)   { return classConnection, 51 }
func (m *connectionCloseOk) methodName() string     { return methodName(classConnection, 51) }
func (m *connectionCloseOk) write(w io.Writer) error { return nil }

type connectionBlocked struct {
	Reason string
}

func (m *connectionBlocked) id() (uint16, uint16)     { return classConnection, 60 }
func (m *connectionBlocked) methodName() string       { return methodName(classConnection, 60) }
func (m *connectionBlocked) write(w io.Writer) error   { return writeShortstr(w, m.Reason) }

func readConnectionBlocked(r io.Reader) (*connectionBlocked, error) {
	reason, err := readShortstr(r)
	if err != nil {
		return nil, err
	}
	return &connectionBlocked{Reason: reason}, nil
}

type connectionUnblocked struct{}

func (m *connectionUnblocked) id() (uint16, uint16)   { return classConnection, 61 }
func (m *connectionUnblocked) methodName() string     { return methodName(classConnection, 61) }
func (m *connectionUnblocked) write(w io.Writer) error { return nil }

// --- channel ---

type channelOpen struct{}

func (m *channelOpen) id() (uint16, uint16)   { return classChannel, 10 }
func (m *channelOpen) methodName() string     { return methodName(classChannel, 10) }
func (m *channelOpen) write(w io.Writer) error { return writeShortstr(w, "") }

func readChannelOpen(r io.Reader) (*channelOpen, error) {
	if _, err := readShortstr(r); err != nil {
		return nil, err
	}
	return &channelOpen{}, nil
}

type channelOpenOk struct{}

func (m *channelOpenOk) id() (uint16, uint16)     { return classChannel, 11 }
func (m *channelOpenOk) methodName() string       { return methodName(classChannel, 11) }
func (m *channelOpenOk) write(w io.Writer) error   { return writeLongstr(w, nil) }

func readChannelOpenOk(r io.Reader) (*channelOpenOk, error) {
	if _, err := readLongstr(r); err != nil {
		return nil, err
	}
	return &channelOpenOk{}, nil
}

type channelClose struct {
	ReplyCode uint16
	ReplyText string
	ClassID   uint16
	MethodID  uint16
}

func (m *channelClose) id() (uint16, uint16) { return classChannel, 40 }
func (m *channelClose) methodName() string   { return methodName(classChannel, 40) }
func (m *channelClose) write(w io.Writer) error {
	if err := writeShort(w, m.ReplyCode); err != nil {
		return err
	}
	if err := writeShortstr(w, m.ReplyText); err != nil {
		return err
	}
	if err := writeShort(w, m.ClassID); err != nil {
		return err
	}
	return writeShort(w, m.MethodID)
}

func readChannelClose(r io.Reader) (*channelClose, error) {
	m := &channelClose{}
	var err error
	if m.ReplyCode, err = readShort(r); err != nil {
		return nil, err
	}
	if m.ReplyText, err = readShortstr(r); err != nil {
		return nil, err
	}
	if m.ClassID, err = readShort(r); err != nil {
		return nil, err
	}
	if m.MethodID, err = readShort(r); err != nil {
		return nil, err
	}
	return m, nil
}

type channelCloseOk struct{}

func (m *channelCloseOk) id() (uint16, uint16)   { return classChannel, 41 }
func (m *channelCloseOk) methodName() string     { return methodName(classChannel, 41) }
func (m *channelCloseOk) write(w io.Writer) error { return nil }

// --- exchange ---

type exchangeDeclare struct {
	Exchange   string
	Type       string
	Passive    bool
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Arguments  Table
}

func (m *exchangeDeclare) id() (uint16, uint16) { return classExchange, 10 }
func (m *exchangeDeclare) methodName() string   { return methodName(classExchange, 10) }
func (m *exchangeDeclare) write(w io.Writer) error {
	if err := writeShort(w, 0); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Exchange); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Type); err != nil {
		return err
	}
	if err := writeBits(w, m.Passive, m.Durable, m.AutoDelete, m.Internal, m.NoWait); err != nil {
		return err
	}
	return writeTable(w, m.Arguments)
}

type exchangeDeclareOk struct{}

func (m *exchangeDeclareOk) id() (uint16, uint16)   { return classExchange, 11 }
func (m *exchangeDeclareOk) methodName() string     { return methodName(classExchange, 11) }
func (m *exchangeDeclareOk) write(w io.Writer) error { return nil }

type exchangeDelete struct {
	Exchange string
	IfUnused bool
	NoWait   bool
}

func (m *exchangeDelete) id() (uint16, uint16) { return classExchange, 20 }
func (m *exchangeDelete) methodName() string   { return methodName(classExchange, 20) }
func (m *exchangeDelete) write(w io.Writer) error {
	if err := writeShort(w, 0); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Exchange); err != nil {
		return err
	}
	return writeBits(w, m.IfUnused, m.NoWait)
}

type exchangeDeleteOk struct{}

func (m *exchangeDeleteOk) id() (uint16, uint16)   { return classExchange, 21 }
func (m *exchangeDeleteOk) methodName() string     { return methodName(classExchange, 21) }
func (m *exchangeDeleteOk) write(w io.Writer) error { return nil }

type exchangeBind struct {
	Destination string
	Source      string
	RoutingKey  string
	NoWait      bool
	Arguments   Table
}

func (m *exchangeBind) id() (uint16, uint16) { return classExchange, 30 }
func (m *exchangeBind) methodName() string   { return methodName(classExchange, 30) }
func (m *exchangeBind) write(w io.Writer) error {
	if err := writeShort(w, 0); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Destination); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Source); err != nil {
		return err
	}
	if err := writeShortstr(w, m.RoutingKey); err != nil {
		return err
	}
	if err := writeBits(w, m.NoWait); err != nil {
		return err
	}
	return writeTable(w, m.Arguments)
}

type exchangeBindOk struct{}

func (m *exchangeBindOk) id() (uint16, uint16)   { return classExchange, 31 }
func (m *exchangeBindOk) methodName() string     { return methodName(classExchange, 31) }
func (m *exchangeBindOk) write(w io.Writer) error { return nil }

type exchangeUnbind struct {
	Destination string
	Source      string
	RoutingKey  string
	NoWait      bool
	Arguments   Table
}

func (m *exchangeUnbind) id() (uint16, uint16) { return classExchange, 40 }
func (m *exchangeUnbind) methodName() string   { return methodName(classExchange, 40) }
func (m *exchangeUnbind) write(w io.Writer) error {
	if err := writeShort(w, 0); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Destination); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Source); err != nil {
		return err
	}
	if err := writeShortstr(w, m.RoutingKey); err != nil {
		return err
	}
	if err := writeBits(w, m.NoWait); err != nil {
		return err
	}
	return writeTable(w, m.Arguments)
}

type exchangeUnbindOk struct{}

func (m *exchangeUnbindOk) id() (uint16, uint16)   { return classExchange, 51 }
func (m *exchangeUnbindOk) methodName() string     { return methodName(classExchange, 51) }
func (m *exchangeUnbindOk) write(w io.Writer) error { return nil }

// --- queue ---

type queueDeclare struct {
	Queue      string
	Passive    bool
	Durable    bool
	Exclusive  bool
	AutoDelete bool
	NoWait     bool
	Arguments  Table
}

func (m *queueDeclare) id() (uint16, uint16) { return classQueue, 10 }
func (m *queueDeclare) methodName() string   { return methodName(classQueue, 10) }
func (m *queueDeclare) write(w io.Writer) error {
	if err := writeShort(w, 0); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Queue); err != nil {
		return err
	}
	if err := writeBits(w, m.Passive, m.Durable, m.Exclusive, m.AutoDelete, m.NoWait); err != nil {
		return err
	}
	return writeTable(w, m.Arguments)
}

type queueDeclareOk struct {
	Queue         string
	MessageCount  uint32
	ConsumerCount uint32
}

func (m *queueDeclareOk) id() (uint16, uint16)     { return classQueue, 11 }
func (m *queueDeclareOk) methodName() string       { return methodName(classQueue, 11) }
func (m *queueDeclareOk) write(w io.Writer) error  { return errors.New("queue.declare-ok is server-to-client only") }

func readQueueDeclareOk(r io.Reader) (*queueDeclareOk, error) {
	m := &queueDeclareOk{}
	var err error
	if m.Queue, err = readShortstr(r); err != nil {
		return nil, err
	}
	if m.MessageCount, err = readLong(r); err != nil {
		return nil, err
	}
	if m.ConsumerCount, err = readLong(r); err != nil {
		return nil, err
	}
	return m, nil
}

type queueBind struct {
	Queue      string
	Exchange   string
	RoutingKey string
	NoWait     bool
	Arguments  Table
}

func (m *queueBind) id() (uint16, uint16) { return classQueue, 20 }
func (m *queueBind) methodName() string   { return methodName(classQueue, 20) }
func (m *queueBind) write(w io.Writer) error {
	if err := writeShort(w, 0); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Queue); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Exchange); err != nil {
		return err
	}
	if err := writeShortstr(w, m.RoutingKey); err != nil {
		return err
	}
	if err := writeBits(w, m.NoWait); err != nil {
		return err
	}
	return writeTable(w, m.Arguments)
}

type queueBindOk struct{}

func (m *queueBindOk) id() (uint16, uint16)   { return classQueue, 21 }
func (m *queueBindOk) methodName() string     { return methodName(classQueue, 21) }
func (m *queueBindOk) write(w io.Writer) error { return nil }

type queuePurge struct {
	Queue  string
	NoWait bool
}

func (m *queuePurge) id() (uint16, uint16) { return classQueue, 30 }
func (m *queuePurge) methodName() string   { return methodName(classQueue, 30) }
func (m *queuePurge) write(w io.Writer) error {
	if err := writeShort(w, 0); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Queue); err != nil {
		return err
	}
	return writeBits(w, m.NoWait)
}

type queuePurgeOk struct {
	MessageCount uint32
}

func (m *queuePurgeOk) id() (uint16, uint16)    { return classQueue, 31 }
func (m *queuePurgeOk) methodName() string      { return methodName(classQueue, 31) }
func (m *queuePurgeOk) write(w io.Writer) error { return errors.New("queue.purge-ok is server-to-client only") }

func readQueuePurgeOk(r io.Reader) (*queuePurgeOk, error) {
	n, err := readLong(r)
	if err != nil {
		return nil, err
	}
	return &queuePurgeOk{MessageCount: n}, nil
}

type queueDelete struct {
	Queue    string
	IfUnused bool
	IfEmpty  bool
	NoWait   bool
}

func (m *queueDelete) id() (uint16, uint16) { return classQueue, 40 }
func (m *queueDelete) methodName() string   { return methodName(classQueue, 40) }
func (m *queueDelete) write(w io.Writer) error {
	if err := writeShort(w, 0); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Queue); err != nil {
		return err
	}
	return writeBits(w, m.IfUnused, m.IfEmpty, m.NoWait)
}

type queueDeleteOk struct {
	MessageCount uint32
}

func (m *queueDeleteOk) id() (uint16, uint16)    { return classQueue, 41 }
func (m *queueDeleteOk) methodName() string      { return methodName(classQueue, 41) }
func (m *queueDeleteOk) write(w io.Writer) error { return errors.New("queue.delete-ok is server-to-client only") }

func readQueueDeleteOk(r io.Reader) (*queueDeleteOk, error) {
	n, err := readLong(r)
	if err != nil {
		return nil, err
	}
	return &queueDeleteOk{MessageCount: n}, nil
}

type queueUnbind struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Arguments  Table
}

func (m *queueUnbind) id() (uint16, uint16) { return classQueue, 50 }
func (m *queueUnbind) methodName() string   { return methodName(classQueue, 50) }
func (m *queueUnbind) write(w io.Writer) error {
	if err := writeShort(w, 0); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Queue); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Exchange); err != nil {
		return err
	}
	if err := writeShortstr(w, m.RoutingKey); err != nil {
		return err
	}
	return writeTable(w, m.Arguments)
}

type queueUnbindOk struct{}

func (m *queueUnbindOk) id() (uint16, uint16)   { return classQueue, 51 }
func (m *queueUnbindOk) methodName() string     { return methodName(classQueue, 51) }
func (m *queueUnbindOk) write(w io.Writer) error { return nil }

// --- basic ---

type basicQos struct {
	PrefetchSize  uint32
	PrefetchCount uint16
	Global        bool
}

func (m *basicQos) id() (uint16, uint16) { return classBasic, 10 }
func (m *basicQos) methodName() string   { return methodName(classBasic, 10) }
func (m *basicQos) write(w io.Writer) error {
	if err := writeLong(w, m.PrefetchSize); err != nil {
		return err
	}
	if err := writeShort(w, m.PrefetchCount); err != nil {
		return err
	}
	return writeBits(w, m.Global)
}

type basicQosOk struct{}

func (m *basicQosOk) id() (uint16, uint16)   { return classBasic, 11 }
func (m *basicQosOk) methodName() string     { return methodName(classBasic, 11) }
func (m *basicQosOk) write(w io.Writer) error { return nil }

type basicConsume struct {
	Queue       string
	ConsumerTag string
	NoLocal     bool
	NoAck       bool
	Exclusive   bool
	NoWait      bool
	Arguments   Table
}

func (m *basicConsume) id() (uint16, uint16) { return classBasic, 20 }
func (m *basicConsume) methodName() string   { return methodName(classBasic, 20) }
func (m *basicConsume) write(w io.Writer) error {
	if err := writeShort(w, 0); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Queue); err != nil {
		return err
	}
	if err := writeShortstr(w, m.ConsumerTag); err != nil {
		return err
	}
	if err := writeBits(w, m.NoLocal, m.NoAck, m.Exclusive, m.NoWait); err != nil {
		return err
	}
	return writeTable(w, m.Arguments)
}

type basicConsumeOk struct {
	ConsumerTag string
}

func (m *basicConsumeOk) id() (uint16, uint16)     { return classBasic, 21 }
func (m *basicConsumeOk) methodName() string       { return methodName(classBasic, 21) }
func (m *basicConsumeOk) write(w io.Writer) error  { return errors.New("basic.consume-ok is server-to-client only") }

func readBasicConsumeOk(r io.Reader) (*basicConsumeOk, error) {
	tag, err := readShortstr(r)
	if err != nil {
		return nil, err
	}
	return &basicConsumeOk{ConsumerTag: tag}, nil
}

type basicCancel struct {
	ConsumerTag string
	NoWait      bool
}

func (m *basicCancel) id() (uint16, uint16) { return classBasic, 30 }
func (m *basicCancel) methodName() string   { return methodName(classBasic, 30) }
func (m *basicCancel) write(w io.Writer) error {
	if err := writeShortstr(w, m.ConsumerTag); err != nil {
		return err
	}
	return writeBits(w, m.NoWait)
}

func readBasicCancel(r io.Reader) (*basicCancel, error) {
	m := &basicCancel{}
	var err error
	if m.ConsumerTag, err = readShortstr(r); err != nil {
		return nil, err
	}
	bits, err := readBits(r, 1)
	if err != nil {
		return nil, err
	}
	m.NoWait = bits[0]
	return m, nil
}

type basicCancelOk struct {
	ConsumerTag string
}

func (m *basicCancelOk) id() (uint16, uint16) { return classBasic, 31 }
func (m *basicCancelOk) methodName() string   { return methodName(classBasic, 31) }
func (m *basicCancelOk) write(w io.Writer) error {
	return writeShortstr(w, m.ConsumerTag)
}

func readBasicCancelOk(r io.Reader) (*basicCancelOk, error) {
	tag, err := readShortstr(r)
	if err != nil {
		return nil, err
	}
	return &basicCancelOk{ConsumerTag: tag}, nil
}

type basicPublish struct {
	Exchange   string
	RoutingKey string
	Mandatory  bool
	Immediate  bool
}

func (m *basicPublish) id() (uint16, uint16) { return classBasic, 40 }
func (m *basicPublish) methodName() string   { return methodName(classBasic, 40) }
func (m *basicPublish) write(w io.Writer) error {
	if err := writeShort(w, 0); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Exchange); err != nil {
		return err
	}
	if err := writeShortstr(w, m.RoutingKey); err != nil {
		return err
	}
	return writeBits(w, m.Mandatory, m.Immediate)
}

type basicReturn struct {
	ReplyCode  uint16
	ReplyText  string
	Exchange   string
	RoutingKey string
}

func (m *basicReturn) id() (uint16, uint16)     { return classBasic, 50 }
func (m *basicReturn) methodName() string       { return methodName(classBasic, 50) }
func (m *basicReturn) write(w io.Writer) error  { return errors.New("basic.return is server-to-client only") }

func readBasicReturn(r io.Reader) (*basicReturn, error) {
	m := &basicReturn{}
	var err error
	if m.ReplyCode, err = readShort(r); err != nil {
		return nil, err
	}
	if m.ReplyText, err = readShortstr(r); err != nil {
		return nil, err
	}
	if m.Exchange, err = readShortstr(r); err != nil {
		return nil, err
	}
	if m.RoutingKey, err = readShortstr(r); err != nil {
		return nil, err
	}
	return m, nil
}

type basicDeliver struct {
	ConsumerTag string
	DeliveryTag uint64
	Redelivered bool
	Exchange    string
	RoutingKey  string
}

func (m *basicDeliver) id() (uint16, uint16)     { return classBasic, 60 }
func (m *basicDeliver) methodName() string       { return methodName(classBasic, 60) }
func (m *basicDeliver) write(w io.Writer) error  { return errors.New("basic.deliver is server-to-client only") }

func readBasicDeliver(r io.Reader) (*basicDeliver, error) {
	m := &basicDeliver{}
	var err error
	if m.ConsumerTag, err = readShortstr(r); err != nil {
		return nil, err
	}
	if m.DeliveryTag, err = readLonglong(r); err != nil {
		return nil, err
	}
	bits, err := readBits(r, 1)
	if err != nil {
		return nil, err
	}
	m.Redelivered = bits[0]
	if m.Exchange, err = readShortstr(r); err != nil {
		return nil, err
	}
	if m.RoutingKey, err = readShortstr(r); err != nil {
		return nil, err
	}
	return m, nil
}

type basicGet struct {
	Queue string
	NoAck bool
}

func (m *basicGet) id() (uint16, uint16) { return classBasic, 70 }
func (m *basicGet) methodName() string   { return methodName(classBasic, 70) }
func (m *basicGet) write(w io.Writer) error {
	if err := writeShort(w, 0); err != nil {
		return err
	}
	if err := writeShortstr(w, m.Queue); err != nil {
		return err
	}
	return writeBits(w, m.NoAck)
}

type basicGetOk struct {
	DeliveryTag  uint64
	Redelivered  bool
	Exchange     string
	RoutingKey   string
	MessageCount uint32
}

func (m *basicGetOk) id() (uint16, uint16)     { return classBasic, 71 }
func (m *basicGetOk) methodName() string       { return methodName(classBasic, 71) }
func (m *basicGetOk) write(w io.Writer) error  { return errors.New("basic.get-ok is server-to-client only") }

func readBasicGetOk(r io.Reader) (*basicGetOk, error) {
	m := &basicGetOk{}
	var err error
	if m.DeliveryTag, err = readLonglong(r); err != nil {
		return nil, err
	}
	bits, err := readBits(r, 1)
	if err != nil {
		return nil, err
	}
	m.Redelivered = bits[0]
	if m.Exchange, err = readShortstr(r); err != nil {
		return nil, err
	}
	if m.RoutingKey, err = readShortstr(r); err != nil {
		return nil, err
	}
	if m.MessageCount, err = readLong(r); err != nil {
		return nil, err
	}
	return m, nil
}

type basicGetEmpty struct{}

func (m *basicGetEmpty) id() (uint16, uint16)    { return classBasic, 72 }
func (m *basicGetEmpty) methodName() string      { return methodName(classBasic, 72) }
func (m *basicGetEmpty) write(w io.Writer) error { return errors.New("basic.get-empty is server-to-client only") }

func readBasicGetEmpty(r io.Reader) (*basicGetEmpty, error) {
	if _, err := readShortstr(r); err != nil { // reserved
		return nil, err
	}
	return &basicGetEmpty{}, nil
}

type basicAck struct {
	DeliveryTag uint64
	Multiple    bool
}

func (m *basicAck) id() (uint16, uint16) { return classBasic, 80 }
func (m *basicAck) methodName() string   { return methodName(classBasic, 80) }
func (m *basicAck) write(w io.Writer) error {
	if err := writeLonglong(w, m.DeliveryTag); err != nil {
		return err
	}
	return writeBits(w, m.Multiple)
}

func readBasicAck(r io.Reader) (*basicAck, error) {
	m := &basicAck{}
	var err error
	if m.DeliveryTag, err = readLonglong(r); err != nil {
		return nil, err
	}
	bits, err := readBits(r, 1)
	if err != nil {
		return nil, err
	}
	m.Multiple = bits[0]
	return m, nil
}

type basicReject struct {
	DeliveryTag uint64
	Requeue     bool
}

func (m *basicReject) id() (uint16, uint16) { return classBasic, 90 }
func (m *basicReject) methodName() string   { return methodName(classBasic, 90) }
func (m *basicReject) write(w io.Writer) error {
	if err := writeLonglong(w, m.DeliveryTag); err != nil {
		return err
	}
	return writeBits(w, m.Requeue)
}

type basicRecover struct {
	Requeue bool
}

func (m *basicRecover) id() (uint16, uint16) { return classBasic, 110 }
func (m *basicRecover) methodName() string   { return methodName(classBasic, 110) }
func (m *basicRecover) write(w io.Writer) error {
	return writeBits(w, m.Requeue)
}

type basicRecoverOk struct{}

func (m *basicRecoverOk) id() (uint16, uint16)   { return classBasic, 111 }
func (m *basicRecoverOk) methodName() string     { return methodName(classBasic, 111) }
func (m *basicRecoverOk) write(w io.Writer) error { return nil }

type basicNack struct {
	DeliveryTag uint64
	Multiple    bool
	Requeue     bool
}

func (m *basicNack) id() (uint16, uint16)     { return classBasic, 120 }
func (m *basicNack) methodName() string       { return methodName(classBasic, 120) }
func (m *basicNack) write(w io.Writer) error {
	if err := writeLonglong(w, m.DeliveryTag); err != nil {
		return err
	}
	return writeBits(w, m.Multiple, m.Requeue)
}

func readBasicNack(r io.Reader) (*basicNack, error) {
	m := &basicNack{}
	var err error
	if m.DeliveryTag, err = readLonglong(r); err != nil {
		return nil, err
	}
	bits, err := readBits(r, 2)
	if err != nil {
		return nil, err
	}
	m.Multiple, m.Requeue = bits[0], bits[1]
	return m, nil
}

// --- confirm ---

type confirmSelect struct {
	NoWait bool
}

func (m *confirmSelect) id() (uint16, uint16) { return classConfirm, 10 }
func (m *confirmSelect) methodName() string   { return methodName(classConfirm, 10) }
func (m *confirmSelect) write(w io.Writer) error {
	return writeBits(w, m.NoWait)
}

type confirmSelectOk struct{}

func (m *confirmSelectOk) id() (uint16, uint16)   { return classConfirm, 11 }
func (m *confirmSelectOk) methodName() string     { return methodName(classConfirm, 11) }
func (m *confirmSelectOk) write(w io.Writer) error { return nil }

// --- tx ---

type txSelect struct{}

func (m *txSelect) id() (uint16, uint16)   { return classTx, 10 }
func (m *txSelect) methodName() string     { return methodName(classTx, 10) }
func (m *txSelect) write(w io.Writer) error { return nil }

type txSelectOk struct{}

func (m *txSelectOk) id() (uint16, uint16)   { return classTx, 11 }
func (m *txSelectOk) methodName() string     { return methodName(classTx, 11) }
func (m *txSelectOk) write(w io.Writer) error { return nil }

type txCommit struct{}

func (m *txCommit) id() (uint16, uint16)   { return classTx, 20 }
func (m *txCommit) methodName() string     { return methodName(classTx, 20) }
func (m *txCommit) write(w io.Writer) error { return nil }

type txCommitOk struct{}

func (m *txCommitOk) id() (uint16, uint16)   { return classTx, 21 }
func (m *txCommitOk) methodName() string     { return methodName(classTx, 21) }
func (m *txCommitOk) write(w io.Writer) error { return nil }

type txRollback struct{}

func (m *txRollback) id() (uint16, uint16)   { return classTx, 30 }
func (m *txRollback) methodName() string     { return methodName(classTx, 30) }
func (m *txRollback) write(w io.Writer) error { return nil }

type txRollbackOk struct{}

func (m *txRollbackOk) id() (uint16, uint16)   { return classTx, 31 }
func (m *txRollbackOk) methodName() string     { return methodName(classTx, 31) }
func (m *txRollbackOk) write(w io.Writer) error { return nil }
