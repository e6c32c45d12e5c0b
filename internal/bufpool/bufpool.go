// Copyright 2025. Grounded on packetd-packetd/internal/bufpool's
// sync.Pool-backed *bytes.Buffer reuse, adapted here for assembling
// multi-frame message bodies without reallocating on every delivery.

package bufpool

import (
	"bytes"
	"sync"
)

var pool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// Acquire returns a reset, ready-to-use buffer.
func Acquire() *bytes.Buffer {
	buf := pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Release returns a buffer to the pool. Callers must not retain the slice
// returned by buf.Bytes() after calling Release.
func Release(buf *bytes.Buffer) {
	pool.Put(buf)
}
