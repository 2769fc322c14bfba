package idbstore

import (
	"encoding/binary"
	"io"
	"math"
	"slices"
)

// bytesBuilder lets stream encoders append straight into a value buffer.
type bytesBuilder struct {
	Buf []byte
}

var (
	_ io.Writer     = (*bytesBuilder)(nil)
	_ io.ByteWriter = (*bytesBuilder)(nil)
)

func (bb *bytesBuilder) Write(b []byte) (int, error) {
	bb.Buf = append(bb.Buf, b...)
	return len(b), nil
}

func (bb *bytesBuilder) WriteByte(v byte) error {
	bb.Buf = append(bb.Buf, v)
	return nil
}

// varWriter appends uvarints and length-prefixed byte strings, reserving the
// expected size up front.
type varWriter struct {
	buf []byte
}

func newVarWriter(buf []byte, sizeHint int) *varWriter {
	return &varWriter{slices.Grow(buf, sizeHint)}
}

func (w *varWriter) Bytes() []byte {
	return w.buf
}

func (w *varWriter) Uvarint(v uint64) {
	w.buf = binary.AppendUvarint(w.buf, v)
}

// Len writes a non-negative count or length.
func (w *varWriter) Len(n int) {
	if n < 0 {
		panic("varWriter: negative length")
	}
	w.Uvarint(uint64(n))
}

func (w *varWriter) VarBytes(v []byte) {
	w.Len(len(v))
	w.buf = append(w.buf, v...)
}

// byteReader is the counterpart of varWriter. Errors are *DataError values
// pointing at the offending offset.
type byteReader struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) *byteReader {
	return &byteReader{data: data}
}

func (r *byteReader) Pos() int       { return r.pos }
func (r *byteReader) Remaining() int { return len(r.data) - r.pos }

func (r *byteReader) Uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, dataErrf(r.data, r.pos, nil, "invalid uvarint")
	}
	r.pos += n
	return v, nil
}

func (r *byteReader) Len() (int, error) {
	start := r.pos
	v, err := r.Uvarint()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt {
		return 0, dataErrf(r.data, start, nil, "length does not fit into int: %d", v)
	}
	return int(v), nil
}

func (r *byteReader) Raw(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, dataErrf(r.data, r.pos, nil, "not enough data: %d bytes remaining, %d wanted", r.Remaining(), n)
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *byteReader) VarBytes() ([]byte, error) {
	n, err := r.Len()
	if err != nil {
		return nil, err
	}
	return r.Raw(n)
}
