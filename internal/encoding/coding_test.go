package encoding

import (
	"bytes"
	"errors"
	"testing"
)

func TestFixedRoundTrip(t *testing.T) {
	var b []byte
	b = EncodeFixed32(b, 0xdeadbeef)
	b = EncodeFixed64(b, 0x0102030405060708)
	if got := DecodeFixed32(b); got != 0xdeadbeef {
		t.Fatalf("DecodeFixed32 = %x, want deadbeef", got)
	}
	if got := DecodeFixed64(b[4:]); got != 0x0102030405060708 {
		t.Fatalf("DecodeFixed64 = %x, want 0102030405060708", got)
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 129, 1 << 14, 1<<21 - 1, 1 << 21, 1 << 35, 1<<64 - 1}
	for _, v := range values {
		var buf []byte
		buf = EncodeVarint64(buf, v)
		if len(buf) != VarintLength(v) {
			t.Fatalf("VarintLength(%d) = %d, encoded length %d", v, VarintLength(v), len(buf))
		}
		got, n, err := DecodeVarint64(buf)
		if err != nil {
			t.Fatalf("DecodeVarint64(%d): %v", v, err)
		}
		if got != v || n != len(buf) {
			t.Fatalf("DecodeVarint64(%d) = (%d, %d), want (%d, %d)", v, got, n, v, len(buf))
		}
	}
}

func TestVarint32Overflow(t *testing.T) {
	// Five continuation bytes, then a terminating sixth: a varint32 decoder
	// must give up after five and report overflow without consuming the
	// sixth byte.
	in := []byte{129, 130, 131, 132, 133, 17}
	_, _, err := DecodeVarint32(in)
	if !errors.Is(err, ErrVarintOverflow) {
		t.Fatalf("DecodeVarint32 overflow = %v, want ErrVarintOverflow", err)
	}
}

func TestVarintTruncated(t *testing.T) {
	in := []byte{0x80, 0x80}
	_, _, err := DecodeVarint64(in)
	if !errors.Is(err, ErrVarintTruncated) {
		t.Fatalf("DecodeVarint64 truncated = %v, want ErrVarintTruncated", err)
	}
}

func TestLengthPrefixedSlice(t *testing.T) {
	payload := []byte("hello world")
	buf := AppendLengthPrefixedSlice(nil, payload)
	got, n, err := DecodeLengthPrefixedSlice(buf)
	if err != nil {
		t.Fatalf("DecodeLengthPrefixedSlice: %v", err)
	}
	if n != len(buf) || !bytes.Equal(got, payload) {
		t.Fatalf("DecodeLengthPrefixedSlice = (%q, %d), want (%q, %d)", got, n, payload, len(buf))
	}
}

func TestLengthPrefixedSliceTooSmall(t *testing.T) {
	buf := EncodeVarint32(nil, 10)
	_, _, err := DecodeLengthPrefixedSlice(buf)
	if !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("DecodeLengthPrefixedSlice = %v, want ErrBufferTooSmall", err)
	}
}
