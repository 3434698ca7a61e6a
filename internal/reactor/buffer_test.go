package reactor

import "testing"

func TestBufferAppendRetrieve(t *testing.T) {
	b := NewBuffer()
	if b.ReadableBytes() != 0 {
		t.Fatalf("new buffer readable = %d, want 0", b.ReadableBytes())
	}
	if b.PrependableBytes() != cheapPrepend {
		t.Fatalf("new buffer prependable = %d, want %d", b.PrependableBytes(), cheapPrepend)
	}

	b.AppendString("hello")
	if got := string(b.Peek()); got != "hello" {
		t.Fatalf("Peek() = %q, want %q", got, "hello")
	}

	b.Retrieve(3)
	if got := string(b.Peek()); got != "lo" {
		t.Fatalf("Peek() after Retrieve(3) = %q, want %q", got, "lo")
	}
}

func TestBufferRetrieveBeyondReadableClampsToAll(t *testing.T) {
	b := NewBuffer()
	b.AppendString("abc")
	b.Retrieve(1000)
	if b.ReadableBytes() != 0 {
		t.Fatalf("ReadableBytes() = %d, want 0", b.ReadableBytes())
	}
	if b.PrependableBytes() != cheapPrepend {
		t.Fatalf("PrependableBytes() = %d, want %d", b.PrependableBytes(), cheapPrepend)
	}
}

func TestBufferGrowsBeyondInitialCapacity(t *testing.T) {
	b := NewBuffer()
	big := make([]byte, initialBufferSize*4)
	for i := range big {
		big[i] = byte(i)
	}
	b.Append(big)
	if b.ReadableBytes() != len(big) {
		t.Fatalf("ReadableBytes() = %d, want %d", b.ReadableBytes(), len(big))
	}
	got := b.Peek()
	for i := range big {
		if got[i] != big[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], big[i])
		}
	}
}

func TestBufferMakeSpaceReclaimsByShifting(t *testing.T) {
	b := NewBuffer()
	b.Append(make([]byte, initialBufferSize)) // fills the buffer exactly to capacity
	b.Retrieve(initialBufferSize - 4)          // leaves 4 readable bytes near the tail
	b.buf[b.reader] = 'a'
	b.buf[b.reader+1] = 'b'
	b.buf[b.reader+2] = 'c'
	b.buf[b.reader+3] = 'd'

	before := len(b.buf)
	b.EnsureWritable(500) // exceeds writable (0) but fits once the prefix is reclaimed
	if len(b.buf) != before {
		t.Fatalf("EnsureWritable grew the buffer when a reclaim should have sufficed: %d -> %d", before, len(b.buf))
	}
	if got := string(b.Peek()); got != "abcd" {
		t.Fatalf("Peek() after reclaim = %q, want %q", got, "abcd")
	}
	if b.WritableBytes() < 500 {
		t.Fatalf("WritableBytes() = %d, want >= 500", b.WritableBytes())
	}
}

func TestBufferPrependAndPrependInt32(t *testing.T) {
	b := NewBuffer()
	b.AppendString("payload")
	b.PrependInt32(7)
	if b.ReadableBytes() != 4+len("payload") {
		t.Fatalf("ReadableBytes() = %d, want %d", b.ReadableBytes(), 4+len("payload"))
	}
	header := b.Peek()[:4]
	if header[3] != 7 {
		t.Fatalf("PrependInt32 low byte = %d, want 7", header[3])
	}
}

func TestBufferPrependBeyondReserveePanics(t *testing.T) {
	b := NewBuffer()
	defer func() {
		if recover() == nil {
			t.Fatal("Prepend beyond the reserved prefix did not panic")
		}
	}()
	b.Prepend(make([]byte, cheapPrepend+1))
}

func TestBufferFindCRLFAndEOL(t *testing.T) {
	b := NewBuffer()
	b.AppendString("GET / HTTP/1.1\r\nHost: x\r\n")
	if idx := b.FindCRLF(); idx != 14 {
		t.Fatalf("FindCRLF() = %d, want 14", idx)
	}
	if idx := b.FindEOL(); idx != 15 {
		t.Fatalf("FindEOL() = %d, want 15", idx)
	}
}

func TestBufferRetrieveAllAsString(t *testing.T) {
	b := NewBuffer()
	b.AppendString("drain me")
	s := b.RetrieveAllAsString()
	if s != "drain me" {
		t.Fatalf("RetrieveAllAsString() = %q, want %q", s, "drain me")
	}
	if b.ReadableBytes() != 0 {
		t.Fatalf("ReadableBytes() after drain = %d, want 0", b.ReadableBytes())
	}
}
