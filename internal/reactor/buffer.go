package reactor

import (
	"bytes"
	"encoding/binary"
)

// cheapPrepend is the size of the reserved prefix that lets length-prefix
// framing prepend a header without relocating the payload.
const cheapPrepend = 8

// initialBufferSize is the default writable capacity beyond the prepend
// region for a freshly constructed Buffer.
const initialBufferSize = 1024

// Buffer is a contiguous byte region with three indices: a prependable
// prefix, a readable span, and a writable tail. Invariant:
// 0 <= cheapPrepend <= reader <= writer <= len(buf).
type Buffer struct {
	buf    []byte
	reader int
	writer int
}

// NewBuffer returns an empty Buffer with the standard prepend reservation.
func NewBuffer() *Buffer {
	return &Buffer{
		buf:    make([]byte, cheapPrepend+initialBufferSize),
		reader: cheapPrepend,
		writer: cheapPrepend,
	}
}

// ReadableBytes returns the number of bytes available to read.
func (b *Buffer) ReadableBytes() int { return b.writer - b.reader }

// WritableBytes returns the number of bytes that can be appended without
// growing the buffer.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.writer }

// PrependableBytes returns the number of bytes available in the prefix.
func (b *Buffer) PrependableBytes() int { return b.reader }

// Peek returns the readable span without consuming it. The returned slice
// aliases the buffer's internal storage and is only valid until the next
// mutating call.
func (b *Buffer) Peek() []byte { return b.buf[b.reader:b.writer] }

// Bytes is an alias of Peek kept for call sites that read more naturally as
// "give me the bytes" than "peek".
func (b *Buffer) Bytes() []byte { return b.Peek() }

// Retrieve consumes n bytes from the front of the readable span. Retrieving
// more than ReadableBytes is a caller error and is clamped to RetrieveAll.
func (b *Buffer) Retrieve(n int) {
	if n <= 0 {
		return
	}
	if n >= b.ReadableBytes() {
		b.RetrieveAll()
		return
	}
	b.reader += n
}

// RetrieveAll drains the entire readable span and rewinds both indices to
// the minimum prependable offset.
func (b *Buffer) RetrieveAll() {
	b.reader = cheapPrepend
	b.writer = cheapPrepend
}

// RetrieveAllAsString drains the entire readable span and returns it as a
// string.
func (b *Buffer) RetrieveAllAsString() string {
	s := string(b.Peek())
	b.RetrieveAll()
	return s
}

// RetrieveAsString consumes and returns n bytes from the front of the
// readable span.
func (b *Buffer) RetrieveAsString(n int) string {
	s := string(b.buf[b.reader : b.reader+n])
	b.Retrieve(n)
	return s
}

// EnsureWritable guarantees at least n writable bytes are available,
// shifting the readable span left to reclaim prepend space before growing.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	b.makeSpace(n)
}

// makeSpace reclaims the prependable region back to its minimum by shifting
// readable bytes left; if that alone is insufficient it grows the backing
// array.
func (b *Buffer) makeSpace(n int) {
	if b.PrependableBytes()+b.WritableBytes() < n+cheapPrepend {
		grown := make([]byte, b.writer+n)
		copy(grown, b.buf[:b.writer])
		b.buf = grown
		return
	}
	readable := b.ReadableBytes()
	copy(b.buf[cheapPrepend:], b.buf[b.reader:b.writer])
	b.reader = cheapPrepend
	b.writer = b.reader + readable
}

// Append writes data to the tail of the readable span, growing as needed.
func (b *Buffer) Append(data []byte) {
	b.EnsureWritable(len(data))
	copy(b.buf[b.writer:], data)
	b.writer += len(data)
}

// AppendString is a convenience wrapper over Append.
func (b *Buffer) AppendString(s string) { b.Append([]byte(s)) }

// Prepend writes data immediately before the readable span, into the
// reserved prefix. Panics if the prefix is too small; callers must size
// headers to fit within cheapPrepend bytes (8).
func (b *Buffer) Prepend(data []byte) {
	if len(data) > b.reader {
		panic("reactor: Prepend exceeds prependable region")
	}
	b.reader -= len(data)
	copy(b.buf[b.reader:], data)
}

// PrependInt32 prepends a big-endian uint32, the common length-prefix header
// for framed protocols layered over this buffer by a consumer.
func (b *Buffer) PrependInt32(v uint32) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], v)
	b.Prepend(hdr[:])
}

// FindCRLF locates the first "\r\n" in the readable span, returning its
// offset from the start of the readable span, or -1 if absent. Unused by
// the core state machine, exposed for consumers layering line protocols
// over TcpConnection.
func (b *Buffer) FindCRLF() int {
	idx := bytes.Index(b.Peek(), []byte("\r\n"))
	return idx
}

// FindEOL locates the first '\n' in the readable span, returning its offset
// from the start of the readable span, or -1 if absent.
func (b *Buffer) FindEOL() int {
	return bytes.IndexByte(b.Peek(), '\n')
}

// readFdSpillSize is the size of the stack spillover buffer used by
// TcpConnection's scatter read: large enough that a single
// readiness notification almost never needs more than one syscall, small
// enough to stay a cheap stack allocation.
const readFdSpillSize = 65536
