package wire

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Variable-length integer encoding is almost the same as QUIC's (see RFC9000,
// 16. Variable-Length Integer Encoding), except that the two length bits are
// the low bits of the first byte and the integer is little endian.

const MaxVarint = 1<<62 - 1

func decodeVarint(r *bufio.Reader) (uint64, error) {
	b0, err := r.ReadByte()
	if err != nil {
		return 0, noEOF(err)
	}
	l := 1 << (b0 & (1<<2 - 1))
	b := make([]byte, 8)
	b[0] = b0
	if _, err := io.ReadFull(r, b[1:l]); err != nil {
		return 0, noEOF(err)
	}
	return binary.LittleEndian.Uint64(b) >> 2, nil
}

// AppendVarint appends the encoding of x, which must not exceed MaxVarint, to
// b.
func AppendVarint(b []byte, x uint64) []byte {
	log2l := varintLog2Len(x)
	return binary.LittleEndian.AppendUint64(b, x<<2|uint64(log2l))[:len(b)+1<<log2l]
}

func VarintLen(x uint64) int {
	return 1 << varintLog2Len(x)
}

func varintLog2Len(x uint64) int {
	switch {
	default:
		panic("argument overflows varint")

	case x < 1<<6:
		return 0
	case x < 1<<14:
		return 1
	case x < 1<<30:
		return 2
	case x < 1<<62:
		return 3
	}
}

func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
