// Package serialize implements the deterministic binary codec of spec §4.1
// and §6.1: fixed-width little-endian integers, <u32 length><elements> for
// variable-length byte strings and vectors, and field-declaration-order
// concatenation for compound records. SHA256(serialize(x)) is the canonical
// identity of any domain object x. Grounded on
// original_source/src/base/serialization.hpp's OArchive/IArchive pair; this
// is spec's own wire format, not Ethereum RLP, even though the shape (a
// writer with operator<< and a reader with a position cursor) follows the
// teacher's rlp package.
package serialize

import (
	"encoding/binary"

	"github.com/lk-network/lkchain/lkerrors"
)

// Writer accumulates a deterministic binary encoding field by field, in the
// order the caller calls its methods — callers must call them in struct
// field declaration order.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) WriteUint8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) WriteUint16(v uint16) *Writer {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *Writer) WriteUint32(v uint32) *Writer {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *Writer) WriteUint64(v uint64) *Writer {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// WriteFixed appends b as-is, with no length prefix: used for fixed-size
// fields (Address, Hash, Signature) whose length is implicit in the type.
func (w *Writer) WriteFixed(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// WriteBytes appends a <u32 length><bytes> field: used for variable-length
// byte strings and vectors.
func (w *Writer) WriteBytes(b []byte) *Writer {
	w.WriteUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
	return w
}

// Reader walks a buffer produced by Writer, consuming fields in the order
// the caller reads them.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader { return &Reader{data: data} }

func (r *Reader) Remaining() int { return len(r.data) - r.pos }

func (r *Reader) ReadUint8() (uint8, error) {
	if r.Remaining() < 1 {
		return 0, lkerrors.New(lkerrors.ParsingError, "read uint8: truncated")
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if r.Remaining() < 2 {
		return 0, lkerrors.New(lkerrors.ParsingError, "read uint16: truncated")
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, lkerrors.New(lkerrors.ParsingError, "read uint32: truncated")
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if r.Remaining() < 8 {
		return 0, lkerrors.New(lkerrors.ParsingError, "read uint64: truncated")
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadFixed(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, lkerrors.New(lkerrors.ParsingError, "read fixed: truncated")
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return r.ReadFixed(int(n))
}
