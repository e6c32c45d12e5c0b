// Copyright (c) 2012, Sean Treadway, SoundCloud Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amqp

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/pkg/errors"
)

// Table is an AMQP field-table: a nested map of typed values used for
// method arguments and message headers. Supported value types are the
// ones enumerated in the wire type-tag table below; anything else fails
// InvalidArgumentError on encode.
type Table map[string]interface{}

// Decimal is the AMQP decimal field-value: a scaled integer, value *
// 10^-scale.
type Decimal struct {
	Scale uint8
	Value int32
}

// field-value wire type tags, per the AMQP 0-9-1 field-table grammar.
// "short" below means 16-bit, "long" 32-bit, "long-long" 64-bit and
// "short-short" 8-bit, matching spec.md's naming.
const (
	tagBoolean       = 't'
	tagShortShortInt = 'b' // int8
	tagShortUint     = 'B' // uint16
	tagShortInt      = 's' // int16 (primary tag)
	tagShortIntAlt   = 'u' // int16 (accepted on decode, RabbitMQ alternate tag)
	tagLongInt       = 'I' // int32
	tagLongUint      = 'i' // uint32
	tagLonglongInt   = 'l' // int64
	tagFloat         = 'f'
	tagDouble        = 'd'
	tagDecimal       = 'D'
	tagLongString    = 'S'
	tagArray         = 'A'
	tagTimestamp     = 'T'
	tagFieldTable    = 'F'
	tagVoid          = 'V'
	tagByteArray     = 'x'
)

func writeOctet(w io.Writer, v byte) error {
	_, err := w.Write([]byte{v})
	return err
}

func readOctet(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func writeShort(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readShort(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func writeLong(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readLong(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeLonglong(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readLonglong(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// writeShortstr encodes a short-string: 1-byte length prefix, max 255 bytes.
func writeShortstr(w io.Writer, s string) error {
	if len(s) > 255 {
		return &InvalidArgumentError{Err: errors.New("short string exceeds 255 bytes")}
	}
	if err := writeOctet(w, byte(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readShortstr(r io.Reader) (string, error) {
	n, err := readOctet(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// writeLongstr encodes a long-string: 4-byte length prefix. Used for
// field-table bytes, long-string and byte-array field values, and
// long-string method arguments; body frames carry raw payload instead.
func writeLongstr(w io.Writer, b []byte) error {
	if err := writeLong(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readLongstr(r io.Reader) ([]byte, error) {
	n, err := readLong(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func writeTimestamp(w io.Writer, t time.Time) error {
	return writeLonglong(w, uint64(t.Unix()))
}

func readTimestamp(r io.Reader) (time.Time, error) {
	v, err := readLonglong(r)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(v), 0), nil
}

func writeDecimal(w io.Writer, d Decimal) error {
	if err := writeOctet(w, d.Scale); err != nil {
		return err
	}
	return writeLong(w, uint32(d.Value))
}

func readDecimal(r io.Reader) (Decimal, error) {
	scale, err := readOctet(r)
	if err != nil {
		return Decimal{}, err
	}
	v, err := readLong(r)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{Scale: scale, Value: int32(v)}, nil
}

// writeField encodes one tagged field-value: a 1-byte type tag followed by
// the type's wire representation. This is the encoder half of the closed
// tagged union in spec.md §4.1.
func writeField(w io.Writer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		return writeOctet(w, tagVoid)
	case bool:
		if err := writeOctet(w, tagBoolean); err != nil {
			return err
		}
		if val {
			return writeOctet(w, 1)
		}
		return writeOctet(w, 0)
	case int8:
		if err := writeOctet(w, tagShortShortInt); err != nil {
			return err
		}
		return writeOctet(w, byte(val))
	case uint16:
		if err := writeOctet(w, tagShortUint); err != nil {
			return err
		}
		return writeShort(w, val)
	case int16:
		if err := writeOctet(w, tagShortInt); err != nil {
			return err
		}
		return writeShort(w, uint16(val))
	case int32:
		if err := writeOctet(w, tagLongInt); err != nil {
			return err
		}
		return writeLong(w, uint32(val))
	case uint32:
		if err := writeOctet(w, tagLongUint); err != nil {
			return err
		}
		return writeLong(w, val)
	case int64:
		if err := writeOctet(w, tagLonglongInt); err != nil {
			return err
		}
		return writeLonglong(w, uint64(val))
	case int:
		if err := writeOctet(w, tagLonglongInt); err != nil {
			return err
		}
		return writeLonglong(w, uint64(val))
	case float32:
		if err := writeOctet(w, tagFloat); err != nil {
			return err
		}
		return writeLong(w, math.Float32bits(val))
	case float64:
		if err := writeOctet(w, tagDouble); err != nil {
			return err
		}
		return writeLonglong(w, math.Float64bits(val))
	case Decimal:
		if err := writeOctet(w, tagDecimal); err != nil {
			return err
		}
		return writeDecimal(w, val)
	case string:
		if err := writeOctet(w, tagLongString); err != nil {
			return err
		}
		return writeLongstr(w, []byte(val))
	case []byte:
		if err := writeOctet(w, tagByteArray); err != nil {
			return err
		}
		return writeLongstr(w, val)
	case []interface{}:
		if err := writeOctet(w, tagArray); err != nil {
			return err
		}
		return writeArray(w, val)
	case time.Time:
		if err := writeOctet(w, tagTimestamp); err != nil {
			return err
		}
		return writeTimestamp(w, val)
	case Table:
		if err := writeOctet(w, tagFieldTable); err != nil {
			return err
		}
		return writeTable(w, val)
	default:
		return &InvalidArgumentError{Err: errors.Errorf("unsupported field-table value type %T", v)}
	}
}

func writeArray(w io.Writer, a []interface{}) error {
	var buf bytes.Buffer
	for _, v := range a {
		if err := writeField(&buf, v); err != nil {
			return err
		}
	}
	return writeLongstr(w, buf.Bytes())
}

func readArray(r io.Reader) ([]interface{}, error) {
	raw, err := readLongstr(r)
	if err != nil {
		return nil, err
	}
	br := bytes.NewReader(raw)
	var out []interface{}
	for br.Len() > 0 {
		v, err := readField(br)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// readField decodes one tagged field-value. Unknown tags, truncated
// input and malformed nested tables all surface as MalformedFrameError
// from the caller that owns the frame boundary.
func readField(r io.Reader) (interface{}, error) {
	tag, err := readOctet(r)
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagBoolean:
		b, err := readOctet(r)
		return b != 0, err
	case tagShortShortInt:
		b, err := readOctet(r)
		return int8(b), err
	case tagShortUint:
		return readShort(r)
	case tagShortInt, tagShortIntAlt:
		v, err := readShort(r)
		return int16(v), err
	case tagLongInt:
		v, err := readLong(r)
		return int32(v), err
	case tagLongUint:
		return readLong(r)
	case tagLonglongInt:
		v, err := readLonglong(r)
		return int64(v), err
	case tagFloat:
		v, err := readLong(r)
		return math.Float32frombits(v), err
	case tagDouble:
		v, err := readLonglong(r)
		return math.Float64frombits(v), err
	case tagDecimal:
		return readDecimal(r)
	case tagLongString:
		b, err := readLongstr(r)
		return string(b), err
	case tagByteArray:
		return readLongstr(r)
	case tagArray:
		return readArray(r)
	case tagTimestamp:
		return readTimestamp(r)
	case tagFieldTable:
		return readTable(r)
	case tagVoid:
		return nil, nil
	default:
		return nil, &MalformedFrameError{Err: errors.Errorf("unknown field-table type tag %q", tag)}
	}
}

// writeTable encodes a Table as a long-string-framed sequence of
// {short-string key, tagged value} pairs.
func writeTable(w io.Writer, t Table) error {
	var buf bytes.Buffer
	for k, v := range t {
		if err := writeShortstr(&buf, k); err != nil {
			return err
		}
		if err := writeField(&buf, v); err != nil {
			return err
		}
	}
	return writeLongstr(w, buf.Bytes())
}

func readTable(r io.Reader) (Table, error) {
	raw, err := readLongstr(r)
	if err != nil {
		return nil, err
	}
	br := bytes.NewReader(raw)
	t := make(Table)
	for br.Len() > 0 {
		key, err := readShortstr(br)
		if err != nil {
			return nil, err
		}
		val, err := readField(br)
		if err != nil {
			return nil, err
		}
		t[key] = val
	}
	return t, nil
}

// writeBits packs up to 8 adjacent boolean arguments into one byte, per
// the AMQP rule that consecutive bit-typed method arguments share a byte.
func writeBits(w io.Writer, bits ...bool) error {
	var b byte
	for i, on := range bits {
		if on {
			b |= 1 << uint(i)
		}
	}
	return writeOctet(w, b)
}

func readBits(r io.Reader, n int) ([]bool, error) {
	b, err := readOctet(r)
	if err != nil {
		return nil, err
	}
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		out[i] = b&(1<<uint(i)) != 0
	}
	return out, nil
}
