package minnow

import "io"

// minRingSize is the smallest ring a ByteStream allocates once it holds any
// data.
const minRingSize = 64

// ByteStream is a fixed-capacity FIFO of bytes with one writer and one reader.
// The two halves are exposed as Writer and Reader, which are views of the
// same ByteStream: a component that is only handed a *Reader cannot push or
// close.
//
// ByteStream is not safe for concurrent use. See Pipe.
type ByteStream struct {
	capacity uint64

	// buf is a ring holding n bytes starting at head. It grows on demand,
	// up to capacity.
	buf  []byte
	head int
	n    int

	pushed uint64
	popped uint64

	closed  bool
	errored bool
}

// NewByteStream returns an open, empty stream that buffers at most capacity
// bytes.
func NewByteStream(capacity uint64) *ByteStream {
	return &ByteStream{capacity: capacity}
}

func (s *ByteStream) Writer() *Writer { return (*Writer)(s) }

func (s *ByteStream) Reader() *Reader { return (*Reader)(s) }

func (s *ByteStream) Capacity() uint64 { return s.capacity }

// grow makes room for k more bytes. The caller guarantees s.n+k ≤ capacity.
func (s *ByteStream) grow(k int) {
	need := s.n + k
	if need <= len(s.buf) {
		return
	}
	size := max(2*len(s.buf), need, minRingSize)
	if uint64(size) > s.capacity {
		size = int(s.capacity)
	}
	buf := make([]byte, size)
	if s.n > 0 {
		nn := copy(buf, s.buf[s.head:min(s.head+s.n, len(s.buf))])
		copy(buf[nn:], s.buf[:s.n-nn])
	}
	s.buf = buf
	s.head = 0
}

// Writer is the write half of a ByteStream.
type Writer ByteStream

// Push appends as much of data as fits into the available capacity. Bytes that
// don't fit are dropped. Push is a no-op once the writer is closed.
func (w *Writer) Push(data []byte) {
	if w.closed {
		return
	}
	if avail := w.AvailableCapacity(); uint64(len(data)) > avail {
		data = data[:avail]
	}
	if len(data) == 0 {
		return
	}

	s := (*ByteStream)(w)
	s.grow(len(data))

	i := (s.head + s.n) % len(s.buf)
	j := len(s.buf)
	if i < s.head {
		j = s.head // the free region doesn't wrap
	}
	nn := copy(s.buf[i:j], data)
	copy(s.buf, data[nn:])

	s.n += len(data)
	s.pushed += uint64(len(data))
}

// Write implements io.Writer on top of Push. It returns io.ErrShortWrite if
// data was truncated to the available capacity.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	pushed := w.pushed
	w.Push(p)
	n := int(w.pushed - pushed)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Close signals that no more bytes will be pushed. Buffered bytes stay
// readable.
func (w *Writer) Close() { w.closed = true }

// SetError marks the stream as failed.
func (w *Writer) SetError() { w.errored = true }

func (w *Writer) IsClosed() bool { return w.closed }

func (w *Writer) AvailableCapacity() uint64 { return w.capacity - uint64(w.n) }

func (w *Writer) BytesPushed() uint64 { return w.pushed }

// Reader is the read half of a ByteStream.
type Reader ByteStream

// Peek returns the oldest buffered bytes without consuming them. When the
// buffered bytes wrap around the ring, only the part up to the wraparound is
// returned; pop it and peek again to see the rest. The returned slice is only
// valid until the next Push or Pop.
func (r *Reader) Peek() []byte {
	if r.n == 0 {
		return nil
	}
	return r.buf[r.head:min(r.head+r.n, len(r.buf))]
}

// Pop removes up to n of the oldest buffered bytes.
func (r *Reader) Pop(n uint64) {
	k := int(min(n, uint64(r.n)))
	if k == 0 {
		return
	}
	r.head = (r.head + k) % len(r.buf)
	r.n -= k
	if r.n == 0 {
		r.head = 0
	}
	r.popped += uint64(k)
}

// Read implements io.Reader on top of Peek and Pop. Read never blocks: it
// returns 0, nil if nothing is buffered and the writer is still open, and
// 0, io.EOF once the stream is finished.
func (r *Reader) Read(p []byte) (int, error) {
	if r.IsFinished() {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) && r.n > 0 {
		nn := copy(p[n:], r.Peek())
		r.Pop(uint64(nn))
		n += nn
	}
	return n, nil
}

// IsFinished reports whether the writer is closed and every byte was popped.
func (r *Reader) IsFinished() bool { return r.closed && r.n == 0 }

func (r *Reader) HasError() bool { return r.errored }

func (r *Reader) BytesBuffered() uint64 { return uint64(r.n) }

func (r *Reader) BytesPopped() uint64 { return r.popped }
