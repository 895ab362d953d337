// Package wire encodes traces of stream fragments: the (index, data, final)
// deliveries a reassembler sees, one frame after another.
package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// MaxFrameData bounds the data carried by a single frame.
const MaxFrameData = 1 << 24

type Frame struct {
	Index uint64 // 0 ≤ Index ≤ MaxVarint-len(Data)
	Data  []byte // may be empty
	Fin   bool   // Data ends the stream
}

func IsFragment(t byte) bool { return t&^0b1 == 0b10000010 }

func (f Frame) typ() byte {
	t := byte(0b10000010)
	if f.Fin {
		t |= 0b1
	}
	return t
}

// Encoder writes frames to an underlying writer. Frames are buffered; call
// Flush when done.
type Encoder struct {
	w   *bufio.Writer
	hdr []byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

func (e *Encoder) Encode(f Frame) error {
	if len(f.Data) > MaxFrameData {
		return errors.New("fragment too long")
	}
	if f.Index > MaxVarint-uint64(len(f.Data)) {
		return errors.New("fragment overflows index")
	}

	e.hdr = append(e.hdr[:0], f.typ())
	e.hdr = AppendVarint(e.hdr, f.Index)
	e.hdr = AppendVarint(e.hdr, uint64(len(f.Data)))
	if _, err := e.w.Write(e.hdr); err != nil {
		return err
	}
	_, err := e.w.Write(f.Data)
	return err
}

func (e *Encoder) Flush() error { return e.w.Flush() }

// Decoder reads frames from an underlying reader.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode returns the next frame. It returns io.EOF if the input ends between
// frames and io.ErrUnexpectedEOF if it ends inside one.
func (d *Decoder) Decode() (Frame, error) {
	t, err := d.r.ReadByte()
	if err != nil {
		return Frame{}, err
	}
	if !IsFragment(t) {
		return Frame{}, fmt.Errorf("unknown frame type %#02x", t)
	}

	index, err := decodeVarint(d.r)
	if err != nil {
		return Frame{}, err
	}
	dataLen, err := decodeVarint(d.r)
	if err != nil {
		return Frame{}, err
	}
	if dataLen > MaxFrameData {
		return Frame{}, errors.New("fragment too long")
	}
	if index > MaxVarint-dataLen {
		return Frame{}, errors.New("fragment overflows index")
	}

	data := make([]byte, dataLen)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return Frame{}, noEOF(err)
	}

	return Frame{
		Index: index,
		Data:  data,
		Fin:   t&0b1 != 0,
	}, nil
}
