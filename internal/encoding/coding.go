// Package encoding implements the little-endian fixed-width and varint byte
// codec shared by the write batch, WAL record, and MANIFEST tag formats.
//
// All multi-byte integers on disk are little-endian. Varints use the
// standard 7-bits-per-byte, high-bit-continues encoding; a varint32 never
// spans more than 5 bytes and a varint64 never spans more than 10.
package encoding

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrVarintOverflow is returned when a varint would require more bytes than
// its target width allows (5 for varint32, 10 for varint64).
var ErrVarintOverflow = errors.New("encoding: varint overflow")

// ErrVarintTruncated is returned when the buffer ends before a continuation
// bit is cleared.
var ErrVarintTruncated = errors.New("encoding: varint truncated")

// ErrBufferTooSmall is returned when a length-prefixed slice claims more
// bytes than remain in the buffer.
var ErrBufferTooSmall = errors.New("encoding: buffer too small for length-prefixed slice")

// EncodeFixed32 appends a 4-byte little-endian encoding of v to dst.
func EncodeFixed32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// EncodeFixed64 appends an 8-byte little-endian encoding of v to dst.
func EncodeFixed64(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

// DecodeFixed32 decodes a 4-byte little-endian uint32 from the front of b.
func DecodeFixed32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// DecodeFixed64 decodes an 8-byte little-endian uint64 from the front of b.
func DecodeFixed64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// EncodeVarint32 appends the varint encoding of v to dst.
func EncodeVarint32(dst []byte, v uint32) []byte {
	return EncodeVarint64(dst, uint64(v))
}

// EncodeVarint64 appends the varint encoding of v to dst.
func EncodeVarint64(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// VarintLength returns the number of bytes EncodeVarint64 would produce for v.
func VarintLength(v uint64) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}
	return n
}

// DecodeVarint32 decodes a varint from the front of b, returning the value,
// the number of bytes consumed, and an error if the varint is truncated or
// would overflow a 32-bit value (longer than 5 bytes, or a fifth byte
// carrying bits beyond the 32nd).
func DecodeVarint32(b []byte) (uint32, int, error) {
	v, n, err := decodeVarint(b, 35)
	if err == nil && v > math.MaxUint32 {
		return 0, 0, ErrVarintOverflow
	}
	return uint32(v), n, err
}

// DecodeVarint64 decodes a varint from the front of b, returning the value,
// the number of bytes consumed, and an error if the varint is truncated or
// would overflow a 64-bit value (longer than 10 bytes, or a tenth byte
// carrying bits beyond the 64th).
func DecodeVarint64(b []byte) (uint64, int, error) {
	return decodeVarint(b, 70)
}

// decodeVarint implements the shared decode loop. maxShift bounds the number
// of 7-bit groups read before declaring overflow (35 => 5 bytes, 70 => 10
// bytes).
func decodeVarint(b []byte, maxShift uint) (uint64, int, error) {
	var result uint64
	for shift := uint(0); shift < maxShift; shift += 7 {
		if len(b) == 0 {
			return 0, 0, ErrVarintTruncated
		}
		c := b[0]
		b = b[1:]
		if c&0x80 != 0 {
			result |= uint64(c&0x7f) << shift
			continue
		}
		if shift == 63 && c > 1 {
			return 0, 0, ErrVarintOverflow
		}
		result |= uint64(c) << shift
		return result, int(shift/7) + 1, nil
	}
	return 0, 0, ErrVarintOverflow
}

// AppendLengthPrefixedSlice appends a varint32 length followed by data.
func AppendLengthPrefixedSlice(dst []byte, data []byte) []byte {
	dst = EncodeVarint32(dst, uint32(len(data)))
	return append(dst, data...)
}

// DecodeLengthPrefixedSlice decodes a varint32-length-prefixed slice from
// the front of b, returning the slice (aliasing b's backing array), the
// number of bytes consumed, and an error.
func DecodeLengthPrefixedSlice(b []byte) ([]byte, int, error) {
	length, n, err := DecodeVarint32(b)
	if err != nil {
		return nil, 0, err
	}
	b = b[n:]
	if uint32(len(b)) < length {
		return nil, 0, ErrBufferTooSmall
	}
	return b[:length], n + int(length), nil
}
