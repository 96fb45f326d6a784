package engine

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"
)

// appendKey encodes v so that equal values (null included) produce equal bytes.
// Layout: 1 byte null marker, then a fixed-width or length-prefixed payload.
func appendKey(buf []byte, v Value) []byte {
	if v.IsNull() {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	switch v.typ {
	case Integer:
		return binary.LittleEndian.AppendUint64(buf, uint64(v.i))
	case Float:
		f := v.f
		switch {
		case f == 0:
			f = 0 // fold -0 into +0
		case math.IsNaN(f):
			f = math.NaN()
		}
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
	case String:
		buf = binary.AppendUvarint(buf, uint64(len(v.s)))
		return append(buf, v.s...)
	case Timestamp:
		return binary.LittleEndian.AppendUint64(buf, uint64(v.t.UnixMicro()))
	}
	return buf
}

// keyEncoder turns the grouping columns of one row into a GroupKey.
type keyEncoder struct {
	cols []*Column
	buf  []byte
}

func newKeyEncoder(cols []*Column) *keyEncoder {
	return &keyEncoder{cols: cols, buf: make([]byte, 0, 16*len(cols))}
}

// encode returns the key for row and its hash. The slice is reused by the next call.
func (e *keyEncoder) encode(row int) ([]byte, uint64) {
	e.buf = e.buf[:0]
	for _, c := range e.cols {
		e.buf = appendKey(e.buf, c.Value(row))
	}
	return e.buf, xxh3.Hash(e.buf)
}

func encodeValue(v Value) string {
	return string(appendKey(nil, v))
}
