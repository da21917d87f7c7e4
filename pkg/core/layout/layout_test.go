package layout

import (
	"bytes"
	"testing"
)

type packetHeader struct {
	HSN           uint32
	TSN           uint32
	SeqNumber     uint32
	Reserved      uint16 `layout:"offset=12"`
	AckType       uint16 `layout:"offset=14"`
	Acknowledgement uint32 `layout:"offset=16"`
	Length        uint32 `layout:"offset=20"`
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	h := packetHeader{HSN: 1, TSN: 2, SeqNumber: 3, AckType: 1, Acknowledgement: 7, Length: 99}
	buf, err := Marshal(&h)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(buf) != 24 {
		t.Fatalf("expected 24 bytes, got %d", len(buf))
	}
	var got packetHeader
	if err := Unmarshal(buf, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

type bitfieldHeader struct {
	FeatureCode uint16
	Version     uint8 `layout:"offset=2,bits=4:8"`
	Length      uint8 `layout:"offset=3"`
}

func TestBitFieldPacking(t *testing.T) {
	h := bitfieldHeader{FeatureCode: 0x0001, Version: 0x3, Length: 0x10}
	buf, err := Marshal(&h)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	// byte 2 should have version nibble in bits 4:8 -> 0x30
	if buf[2] != 0x30 {
		t.Fatalf("expected version nibble 0x30 at offset 2, got %#x", buf[2])
	}
	var got bitfieldHeader
	if err := Unmarshal(buf, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestRoundUp(t *testing.T) {
	cases := []struct{ n, round, want int }{
		{0, 4, 0}, {1, 4, 4}, {4, 4, 4}, {5, 4, 8}, {10, 1, 10},
	}
	for _, c := range cases {
		if got := RoundUp(c.n, c.round); got != c.want {
			t.Errorf("RoundUp(%d,%d) = %d, want %d", c.n, c.round, got, c.want)
		}
	}
}

func TestUnmarshalShortBuffer(t *testing.T) {
	var h packetHeader
	if err := Unmarshal(bytes.Repeat([]byte{0}, 4), &h); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

type fallbackEnum int

const (
	fallbackA fallbackEnum = iota
	fallbackB
	fallbackUnknown
)

func TestEnumCodecFallback(t *testing.T) {
	codec := EnumCodec[fallbackEnum]{
		ToWire:   map[fallbackEnum]uint64{fallbackA: 1, fallbackB: 2},
		FromWire: map[uint64]fallbackEnum{1: fallbackA, 2: fallbackB},
		Fallback: ptr(fallbackUnknown),
	}
	if v, err := codec.Decode(1); err != nil || v != fallbackA {
		t.Fatalf("Decode(1) = %v, %v", v, err)
	}
	if v, err := codec.Decode(99); err != nil || v != fallbackUnknown {
		t.Fatalf("Decode(99) = %v, %v, want fallback", v, err)
	}
}

func ptr[T any](v T) *T { return &v }
