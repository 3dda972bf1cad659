// Package dbformat defines the internal key format shared by the
// memtable, write batch, and WAL: a user key tagged with a 56-bit
// sequence number and a one-byte value type.
package dbformat

import (
	"bytes"
	"fmt"

	"github.com/vaultkv/vaultkv/internal/encoding"
)

// SequenceNumber orders writes. Sequence numbers are monotonically
// increasing and never reused.
type SequenceNumber uint64

// MaxSequenceNumber is the largest representable sequence number: the tag
// packs the sequence into the top 56 bits of a uint64, leaving the low
// byte for the value type.
const MaxSequenceNumber SequenceNumber = (1 << 56) - 1

// NumInternalBytes is the width of the tag appended to every user key: an
// 8-byte little-endian (sequence<<8)|type word.
const NumInternalBytes = 8

// ValueType distinguishes a live value from a tombstone. This format has
// exactly two value types; there is no merge operator, no range deletion,
// and no column family tagging.
type ValueType uint8

const (
	// TypeDeletion marks a tombstone: the key is logically absent as of
	// its sequence number.
	TypeDeletion ValueType = 0x0
	// TypeValue marks a live value.
	TypeValue ValueType = 0x1
)

// ValueTypeForSeek is the value type used when constructing a lookup key:
// since it is the largest valid ValueType, it sorts before any tagged
// entry for the same user key and sequence number, which is exactly the
// first entry a seek for (user_key, sequence) should land on.
const ValueTypeForSeek = TypeValue

func (t ValueType) String() string {
	switch t {
	case TypeDeletion:
		return "Deletion"
	case TypeValue:
		return "Value"
	default:
		return fmt.Sprintf("ValueType(%d)", uint8(t))
	}
}

// PackSequenceAndType combines a sequence number and value type into the
// 8-byte tag trailing every internal key.
func PackSequenceAndType(seq SequenceNumber, t ValueType) uint64 {
	return (uint64(seq) << 8) | uint64(t)
}

// UnpackSequenceAndType reverses PackSequenceAndType.
func UnpackSequenceAndType(packed uint64) (SequenceNumber, ValueType) {
	return SequenceNumber(packed >> 8), ValueType(packed & 0xff)
}

// ParsedInternalKey is an internal key split into its three logical
// fields; AppendInternalKey re-assembles the on-disk form.
type ParsedInternalKey struct {
	UserKey []byte
	Seq     SequenceNumber
	Type    ValueType
}

// EncodedLength returns the length AppendInternalKey will produce.
func (p ParsedInternalKey) EncodedLength() int {
	return len(p.UserKey) + NumInternalBytes
}

func (p ParsedInternalKey) String() string {
	return fmt.Sprintf("%q @ %d (%s)", p.UserKey, p.Seq, p.Type)
}

// AppendInternalKey appends the encoded internal key for p to dst.
func AppendInternalKey(dst []byte, p ParsedInternalKey) []byte {
	dst = append(dst, p.UserKey...)
	return encoding.EncodeFixed64(dst, PackSequenceAndType(p.Seq, p.Type))
}

// ParseInternalKey decodes an internal key. It reports false if key is
// shorter than NumInternalBytes.
func ParseInternalKey(key []byte) (ParsedInternalKey, bool) {
	if len(key) < NumInternalBytes {
		return ParsedInternalKey{}, false
	}
	n := len(key) - NumInternalBytes
	tag := encoding.DecodeFixed64(key[n:])
	seq, typ := UnpackSequenceAndType(tag)
	return ParsedInternalKey{UserKey: key[:n], Seq: seq, Type: typ}, true
}

// ExtractUserKey strips the trailing tag from an internal key.
func ExtractUserKey(internalKey []byte) []byte {
	return internalKey[:len(internalKey)-NumInternalBytes]
}

// ExtractSequenceNumber returns the sequence number encoded in an
// internal key's trailing tag.
func ExtractSequenceNumber(internalKey []byte) SequenceNumber {
	tag := encoding.DecodeFixed64(internalKey[len(internalKey)-NumInternalBytes:])
	seq, _ := UnpackSequenceAndType(tag)
	return seq
}

// ExtractValueType returns the value type encoded in an internal key's
// trailing tag.
func ExtractValueType(internalKey []byte) ValueType {
	tag := encoding.DecodeFixed64(internalKey[len(internalKey)-NumInternalBytes:])
	_, typ := UnpackSequenceAndType(tag)
	return typ
}

// UserKeyComparer orders user keys. BytewiseCompare is the default and
// only comparer this format ships.
type UserKeyComparer func(a, b []byte) int

// BytewiseCompare orders user keys lexicographically by unsigned byte
// value, matching bytes.Compare.
func BytewiseCompare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// InternalKeyComparator orders internal keys ascending by user key, then
// descending by sequence number, then descending by value type: for a
// fixed user key, a newer write or a higher value type sorts first, so a
// forward scan always encounters the most recent entry for a key before
// any of its older versions.
//
// Descending-by-type only matters when two entries share both user key
// and sequence number, which cannot happen for sequence numbers assigned
// by a single DB's write path; it is carried for wire compatibility with
// the on-disk internal key ordering this format is derived from, not
// because this implementation can itself produce such a pair.
type InternalKeyComparator struct {
	userCompare UserKeyComparer
}

// NewInternalKeyComparator wraps a user key comparer.
func NewInternalKeyComparator(cmp UserKeyComparer) InternalKeyComparator {
	return InternalKeyComparator{userCompare: cmp}
}

// DefaultInternalKeyComparator is the bytewise internal key comparator.
var DefaultInternalKeyComparator = NewInternalKeyComparator(BytewiseCompare)

// UserCompare exposes the wrapped user key comparer.
func (c InternalKeyComparator) UserCompare(a, b []byte) int {
	return c.userCompare(a, b)
}

// Compare orders two internal keys per the InternalKeyComparator contract.
func (c InternalKeyComparator) Compare(a, b []byte) int {
	ua, ub := ExtractUserKey(a), ExtractUserKey(b)
	if r := c.userCompare(ua, ub); r != 0 {
		return r
	}
	ta := encoding.DecodeFixed64(a[len(a)-NumInternalBytes:])
	tb := encoding.DecodeFixed64(b[len(b)-NumInternalBytes:])
	switch {
	case ta > tb:
		return -1
	case ta < tb:
		return 1
	default:
		return 0
	}
}
