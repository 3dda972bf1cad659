package dbformat

import "testing"

func TestInternalKeyRoundTrip(t *testing.T) {
	p := ParsedInternalKey{UserKey: []byte("foo"), Seq: 42, Type: TypeValue}
	enc := AppendInternalKey(nil, p)
	if len(enc) != p.EncodedLength() {
		t.Fatalf("encoded length = %d, want %d", len(enc), p.EncodedLength())
	}
	got, ok := ParseInternalKey(enc)
	if !ok {
		t.Fatalf("ParseInternalKey failed")
	}
	if string(got.UserKey) != "foo" || got.Seq != 42 || got.Type != TypeValue {
		t.Fatalf("ParseInternalKey = %+v", got)
	}
}

func TestInternalKeyComparatorOrdering(t *testing.T) {
	cmp := DefaultInternalKeyComparator
	newer := AppendInternalKey(nil, ParsedInternalKey{UserKey: []byte("a"), Seq: 5, Type: TypeValue})
	older := AppendInternalKey(nil, ParsedInternalKey{UserKey: []byte("a"), Seq: 3, Type: TypeValue})
	if cmp.Compare(newer, older) >= 0 {
		t.Fatalf("expected newer entry to sort before older entry")
	}

	smallerUser := AppendInternalKey(nil, ParsedInternalKey{UserKey: []byte("a"), Seq: 1, Type: TypeValue})
	biggerUser := AppendInternalKey(nil, ParsedInternalKey{UserKey: []byte("b"), Seq: 100, Type: TypeValue})
	if cmp.Compare(smallerUser, biggerUser) >= 0 {
		t.Fatalf("expected user key ordering to dominate sequence ordering")
	}
}

func TestPackUnpackSequenceAndType(t *testing.T) {
	packed := PackSequenceAndType(MaxSequenceNumber, TypeDeletion)
	seq, typ := UnpackSequenceAndType(packed)
	if seq != MaxSequenceNumber || typ != TypeDeletion {
		t.Fatalf("round trip = (%d, %v)", seq, typ)
	}
}
