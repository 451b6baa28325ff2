// Package wire implements the byte codec and packet model of the scan-head
// protocol: big-endian extraction/encoding at a moving cursor (§4.1) and
// typed views over raw datagrams (§4.2). Grounded on the extraction style of
// internal/lidar/parse/extract.go (binary.BigEndian / binary.LittleEndian at
// fixed and walking offsets) from the retrieval pack, generalized here into a
// reusable cursor instead of fixed-offset constants, since this protocol's
// layout is data-dependent (variable fragment counts and types).
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"

	"github.com/scanworks/scanhead-client/internal/scanerr"
)

// Reader walks a byte slice extracting big-endian values, advancing the
// cursor by the fixed width of each extracted type.
type Reader struct {
	buf []byte
	pos int
}

// NewReader creates a Reader over buf starting at offset 0.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Pos returns the current cursor position.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Seek moves the cursor to an absolute offset.
func (r *Reader) Seek(pos int) { r.pos = pos }

// Skip advances the cursor by n bytes without reading.
func (r *Reader) Skip(n int) { r.pos += n }

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) || r.pos < 0 {
		return scanerr.Wrap(scanerr.BadPacket, "cursor out of range: need %d bytes at offset %d, have %d", n, r.pos, len(r.buf))
	}
	return nil
}

// U8 reads one unsigned byte.
func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// U16 reads a big-endian uint16.
func (r *Reader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// U32 reads a big-endian uint32.
func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// I32 reads a big-endian int32.
func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

// I16 reads a big-endian int16.
func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

// U64 reads a big-endian uint64.
func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// I64 reads a big-endian int64.
func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

// F32 reads a big-endian IEEE-754 float32.
func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// IPv4 reads 4 bytes as a network-order IPv4 address.
func (r *Reader) IPv4() (net.IP, error) {
	if err := r.need(4); err != nil {
		return nil, err
	}
	ip := net.IPv4(r.buf[r.pos], r.buf[r.pos+1], r.buf[r.pos+2], r.buf[r.pos+3])
	r.pos += 4
	return ip, nil
}

// Bytes reads n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// Writer builds a big-endian packet buffer, symmetric with Reader.
type Writer struct {
	buf []byte
}

// NewWriter creates a Writer that appends to an internal buffer.
func NewWriter() *Writer { return &Writer{} }

// NewWriterSize creates a Writer with buf preallocated to size bytes.
func NewWriterSize(size int) *Writer { return &Writer{buf: make([]byte, 0, size)} }

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) PutU8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) PutU16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutI16(v int16) { w.PutU16(uint16(v)) }

func (w *Writer) PutU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutI32(v int32) { w.PutU32(uint32(v)) }

func (w *Writer) PutU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutI64(v int64) { w.PutU64(uint64(v)) }

// PutIPv4 writes a 4-byte IPv4 address in network order. It writes nothing
// and returns an error if ip has no IPv4 form.
func (w *Writer) PutIPv4(ip net.IP) error {
	v4 := ip.To4()
	if v4 == nil {
		return fmt.Errorf("not an IPv4 address: %v", ip)
	}
	w.buf = append(w.buf, v4...)
	return nil
}

// PutBytes appends raw bytes verbatim.
func (w *Writer) PutBytes(b []byte) { w.buf = append(w.buf, b...) }

// PutZeros appends n zero bytes, used for reserved fields.
func (w *Writer) PutZeros(n int) {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}
