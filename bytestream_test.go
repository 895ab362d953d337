package minnow

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

type byteStreamTest interface {
	Do(*ByteStream) error
}

type byteStreamPush string

func (s byteStreamPush) Do(bs *ByteStream) error {
	bs.Writer().Push([]byte(s))
	return nil
}

type byteStreamClose struct{}

func (byteStreamClose) Do(bs *ByteStream) error {
	bs.Writer().Close()
	return nil
}

// byteStreamPop pops n bytes, peeking as many times as needed, and checks what
// was popped.
type byteStreamPop struct {
	n    uint64
	want string
}

func (s byteStreamPop) Do(bs *ByteStream) error {
	r := bs.Reader()
	var got []byte
	for uint64(len(got)) < s.n && r.BytesBuffered() > 0 {
		p := r.Peek()
		if len(p) == 0 {
			return errors.New("Peek() is empty with bytes buffered")
		}
		p = p[:min(uint64(len(p)), s.n-uint64(len(got)))]
		got = append(got, p...)
		r.Pop(uint64(len(p)))
	}
	if string(got) != s.want {
		return fmt.Errorf("popped %q, want %q", got, s.want)
	}
	return nil
}

type byteStreamAssert struct {
	wantBuffered  uint64
	wantAvailable uint64
	wantPushed    uint64
	wantPopped    uint64
	wantClosed    bool
	wantFinished  bool
}

func (s byteStreamAssert) Do(bs *ByteStream) error {
	w, r := bs.Writer(), bs.Reader()
	if r.BytesBuffered() != s.wantBuffered {
		return fmt.Errorf("BytesBuffered() = %d, want %d", r.BytesBuffered(), s.wantBuffered)
	}
	if w.AvailableCapacity() != s.wantAvailable {
		return fmt.Errorf("AvailableCapacity() = %d, want %d", w.AvailableCapacity(), s.wantAvailable)
	}
	if w.BytesPushed() != s.wantPushed {
		return fmt.Errorf("BytesPushed() = %d, want %d", w.BytesPushed(), s.wantPushed)
	}
	if r.BytesPopped() != s.wantPopped {
		return fmt.Errorf("BytesPopped() = %d, want %d", r.BytesPopped(), s.wantPopped)
	}
	if w.IsClosed() != s.wantClosed {
		return fmt.Errorf("IsClosed() = %v, want %v", w.IsClosed(), s.wantClosed)
	}
	if r.IsFinished() != s.wantFinished {
		return fmt.Errorf("IsFinished() = %v, want %v", r.IsFinished(), s.wantFinished)
	}
	return nil
}

var byteStreamTests = []struct {
	capacity uint64
	tests    []byteStreamTest
}{
	{
		capacity: 15,
		tests: []byteStreamTest{
			byteStreamAssert{0, 15, 0, 0, false, false},
			byteStreamPush("cat"),
			byteStreamAssert{3, 12, 3, 0, false, false},
			byteStreamPop{3, "cat"},
			byteStreamAssert{0, 15, 3, 3, false, false},
			byteStreamClose{},
			byteStreamAssert{0, 15, 3, 3, true, true},
		},
	},
	{
		capacity: 2,
		tests: []byteStreamTest{
			byteStreamPush("abc"), // truncated
			byteStreamAssert{2, 0, 2, 0, false, false},
			byteStreamPush("d"), // dropped
			byteStreamAssert{2, 0, 2, 0, false, false},
			byteStreamPop{1, "a"},
			byteStreamPush("ef"),
			byteStreamAssert{2, 0, 3, 1, false, false},
			byteStreamPop{999, "be"},
		},
	},
	{
		capacity: 10,
		tests: []byteStreamTest{
			byteStreamPush("hello"),
			byteStreamClose{},
			byteStreamPush("world"), // after close
			byteStreamAssert{5, 5, 5, 0, true, false},
			byteStreamClose{},
			byteStreamPop{2, "he"},
			byteStreamPop{999, "llo"},
			byteStreamAssert{0, 10, 5, 5, true, true},
			byteStreamPop{1, ""}, // popping an empty stream
			byteStreamAssert{0, 10, 5, 5, true, true},
		},
	},
	{
		capacity: 1,
		tests: []byteStreamTest{
			byteStreamPush(""),
			byteStreamAssert{0, 1, 0, 0, false, false},
			byteStreamPush("x"),
			byteStreamPop{1, "x"},
			byteStreamPush("y"),
			byteStreamPop{1, "y"},
			byteStreamAssert{0, 1, 2, 2, false, false},
		},
	},
	{
		capacity: 0,
		tests: []byteStreamTest{
			byteStreamPush("anything"),
			byteStreamClose{},
			byteStreamAssert{0, 0, 0, 0, true, true},
		},
	},
	{
		capacity: 100,
		tests: []byteStreamTest{
			// Wrap around the initial ring several times.
			byteStreamPush(strings.Repeat("a", 60)),
			byteStreamPop{50, strings.Repeat("a", 50)},
			byteStreamPush(strings.Repeat("b", 40)),
			byteStreamAssert{50, 50, 100, 50, false, false},
			byteStreamPop{20, strings.Repeat("a", 10) + strings.Repeat("b", 10)},
			byteStreamPush(strings.Repeat("c", 70)), // grows while wrapped
			byteStreamAssert{100, 0, 170, 70, false, false},
			byteStreamPop{999, strings.Repeat("b", 30) + strings.Repeat("c", 70)},
		},
	},
}

func TestByteStream(t *testing.T) {
	for i, sub := range byteStreamTests {
		t.Run(fmt.Sprintf("#%d", i), func(t *testing.T) {
			bs := NewByteStream(sub.capacity)

			for j, test := range sub.tests {
				if err := test.Do(bs); err != nil {
					t.Fatalf("%d: %v", j, err)
				}
			}
		})
	}
}

func TestByteStreamPeekWraparound(t *testing.T) {
	bs := NewByteStream(minRingSize)
	w, r := bs.Writer(), bs.Reader()

	w.Push([]byte(strings.Repeat(".", minRingSize-2)))
	r.Pop(minRingSize - 4)
	w.Push([]byte("Test"))

	if got := string(r.Peek()); got != "..Te" { // wraparound
		t.Fatalf("Peek() = %q, want %q", got, "..Te")
	}
	r.Pop(4)
	if got := string(r.Peek()); got != "st" {
		t.Fatalf("Peek() = %q, want %q", got, "st")
	}
}

func TestByteStreamIO(t *testing.T) {
	bs := NewByteStream(8)
	w, r := bs.Writer(), bs.Reader()

	n, err := w.Write([]byte("0123456789"))
	if n != 8 || err != io.ErrShortWrite {
		t.Fatalf("Write = %d, %v, want %d, %v", n, err, 8, io.ErrShortWrite)
	}

	buf := make([]byte, 5)
	n, err = r.Read(buf)
	if n != 5 || err != nil || string(buf[:n]) != "01234" {
		t.Fatalf("Read = %q, %v", buf[:n], err)
	}

	if n, err := w.Write([]byte("ab")); n != 2 || err != nil {
		t.Fatalf("Write = %d, %v, want %d, %v", n, err, 2, error(nil))
	}
	w.Close()
	if _, err := w.Write([]byte("c")); err != io.ErrClosedPipe {
		t.Fatalf("err = %v, want %v", err, io.ErrClosedPipe)
	}

	rest, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(rest) != "567ab" {
		t.Fatalf("rest = %q, want %q", rest, "567ab")
	}
	if n, err := r.Read(buf); n != 0 || err != io.EOF {
		t.Fatalf("Read = %d, %v, want %d, %v", n, err, 0, io.EOF)
	}
}

func TestByteStreamError(t *testing.T) {
	bs := NewByteStream(4)
	if bs.Reader().HasError() {
		t.Fatal("HasError() = true on a fresh stream")
	}
	bs.Writer().SetError()
	if !bs.Reader().HasError() {
		t.Fatal("HasError() = false after SetError")
	}
}
