package atom

import "testing"

func TestEncodeDecodeValueRoundTrip(t *testing.T) {
	cases := []Value{
		Null(),
		FromBool(true),
		FromBool(false),
		FromI64(-42),
		FromF64(3.14159),
		FromString("héllo wörld"),
		FromBytes([]byte{1, 2, 3, 4}),
		FromRef(ID{0xaa, 0xbb}),
		SetSentinel(),
	}

	for _, v := range cases {
		tag, body, refs := EncodeValue(v)
		a := New(tag, body, refs)

		decoded, n, err := Decode(Encode(a.Tag, a.Body, a.Refs), nil)
		if err != nil {
			t.Fatalf("decode failed for %+v: %v", v, err)
		}
		if n != len(Encode(a.Tag, a.Body, a.Refs)) {
			t.Fatalf("decode did not consume full buffer")
		}

		got, err := DecodeValue(decoded)
		if err != nil {
			t.Fatalf("DecodeValue failed: %v", err)
		}
		if !got.Equal(v) {
			t.Fatalf("round trip mismatch: want %+v got %+v", v, got)
		}
	}
}

func TestIdentityIsContentAddressed(t *testing.T) {
	tag, body, refs := EncodeValue(FromString("same"))
	a1 := New(tag, body, refs)
	a2 := New(tag, body, refs)
	if a1.ID != a2.ID {
		t.Fatalf("equal content produced different identities: %s vs %s", a1.ID, a2.ID)
	}

	tag2, body2, refs2 := EncodeValue(FromString("different"))
	a3 := New(tag2, body2, refs2)
	if a1.ID == a3.ID {
		t.Fatalf("different content produced the same identity")
	}
}

func TestNFCNormalizationUnifiesIdentity(t *testing.T) {
	// "é" as a single code point vs. "e" + combining acute accent.
	decomposed := FromString("café")
	precomposed := FromString("café")

	tag1, body1, refs1 := EncodeValue(decomposed)
	tag2, body2, refs2 := EncodeValue(precomposed)

	a1 := New(tag1, body1, refs1)
	a2 := New(tag2, body2, refs2)

	if a1.ID != a2.ID {
		t.Fatalf("canonically equal strings hashed to different identities")
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	buf := Encode(Tag(0xEE), nil, nil)
	if _, _, err := Decode(buf, nil); err == nil {
		t.Fatalf("expected error decoding unknown tag")
	}
}

func TestDecodeRejectsRefsOutsideFrame(t *testing.T) {
	ref := ID{1, 2, 3}
	buf := Encode(TagAtomRef, nil, []ID{ref})
	frameIDs := map[ID]bool{} // ref not present
	if _, _, err := Decode(buf, frameIDs); err == nil {
		t.Fatalf("expected CorruptAtom for a ref outside the containing frame")
	}
}
