package packet

import (
	"bytes"
	"testing"
)

func TestSubPacketRoundTrip(t *testing.T) {
	sp := SubPacket{Kind: SubPacketKindData, Data: []byte{0x01, 0x02, 0x03}}
	buf, err := MarshalSubPacket(sp)
	if err != nil {
		t.Fatalf("MarshalSubPacket: %v", err)
	}
	// header (12) + 3 data bytes rounded up to 4 = 16
	if len(buf) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(buf))
	}
	got, n, err := UnmarshalSubPacket(buf)
	if err != nil {
		t.Fatalf("UnmarshalSubPacket: %v", err)
	}
	if n != 16 {
		t.Fatalf("expected to consume 16 bytes, got %d", n)
	}
	if got.Kind != sp.Kind || !bytes.Equal(got.Data, sp.Data) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, sp)
	}
}

func TestPacketRoundTrip(t *testing.T) {
	p := Packet{
		HSN:             1,
		TSN:             2,
		SeqNumber:       3,
		AckType:         0,
		Acknowledgement: 0,
		SubPackets: []SubPacket{
			{Kind: SubPacketKindData, Data: []byte("hello")},
			{Kind: SubPacketKindData, Data: []byte("x")},
		},
	}
	buf, err := MarshalPacket(p)
	if err != nil {
		t.Fatalf("MarshalPacket: %v", err)
	}
	got, n, err := UnmarshalPacket(buf)
	if err != nil {
		t.Fatalf("UnmarshalPacket: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("expected to consume all %d bytes, got %d", len(buf), n)
	}
	if got.HSN != p.HSN || got.TSN != p.TSN || got.SeqNumber != p.SeqNumber {
		t.Fatalf("header mismatch: got %+v, want %+v", got, p)
	}
	if len(got.SubPackets) != 2 {
		t.Fatalf("expected 2 sub-packets, got %d", len(got.SubPackets))
	}
	if !bytes.Equal(got.SubPackets[0].Data, []byte("hello")) {
		t.Fatalf("sub-packet 0 mismatch: got %q", got.SubPackets[0].Data)
	}
	if !bytes.Equal(got.SubPackets[1].Data, []byte("x")) {
		t.Fatalf("sub-packet 1 mismatch: got %q", got.SubPackets[1].Data)
	}
}

func TestComPacketRoundTrip(t *testing.T) {
	cp := ComPacket{
		ComID:    0x0001,
		ComIDExt: 0x0000,
		Packets: []Packet{
			{HSN: 0, TSN: 1, SubPackets: []SubPacket{{Kind: SubPacketKindData, Data: []byte{0xAA, 0xBB}}}},
		},
	}
	buf, err := MarshalComPacket(cp)
	if err != nil {
		t.Fatalf("MarshalComPacket: %v", err)
	}
	got, err := UnmarshalComPacket(buf)
	if err != nil {
		t.Fatalf("UnmarshalComPacket: %v", err)
	}
	if got.ComID != cp.ComID || got.ComIDExt != cp.ComIDExt {
		t.Fatalf("header mismatch: got %+v, want %+v", got, cp)
	}
	if len(got.Packets) != 1 || len(got.Packets[0].SubPackets) != 1 {
		t.Fatalf("unexpected shape: got %+v", got)
	}
	if !bytes.Equal(got.Packets[0].SubPackets[0].Data, []byte{0xAA, 0xBB}) {
		t.Fatalf("sub-packet data mismatch: got %x", got.Packets[0].SubPackets[0].Data)
	}
}

func TestComPacketTolerateTrailingPadding(t *testing.T) {
	cp := ComPacket{
		ComID: 0x0001,
		Packets: []Packet{
			{HSN: 0, TSN: 1, SubPackets: []SubPacket{{Kind: SubPacketKindData, Data: []byte{0x01}}}},
		},
	}
	buf, err := MarshalComPacket(cp)
	if err != nil {
		t.Fatalf("MarshalComPacket: %v", err)
	}
	// Simulate the 512-byte sector-alignment padding applied at the IF-SEND boundary.
	padded := append(buf, make([]byte, 512-(len(buf)%512))...)
	got, err := UnmarshalComPacket(padded)
	if err != nil {
		t.Fatalf("UnmarshalComPacket with trailing padding: %v", err)
	}
	if len(got.Packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(got.Packets))
	}
}

func TestUnmarshalComPacketShortHeader(t *testing.T) {
	if _, err := UnmarshalComPacket([]byte{0x00, 0x01}); err != ErrShortHeader {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestPeekComPacketLength(t *testing.T) {
	cp := ComPacket{
		ComID: 0x0001,
		Packets: []Packet{
			{HSN: 0, TSN: 1, SubPackets: []SubPacket{{Kind: SubPacketKindData, Data: []byte{0x01, 0x02}}}},
		},
	}
	buf, err := MarshalComPacket(cp)
	if err != nil {
		t.Fatalf("MarshalComPacket: %v", err)
	}
	got, ok := PeekComPacketLength(buf)
	if !ok {
		t.Fatalf("expected ok")
	}
	if int(got) != len(buf)-comPacketHeaderSize {
		t.Fatalf("got length %d, want %d", got, len(buf)-comPacketHeaderSize)
	}
}

func TestPeekComPacketLengthShortBuffer(t *testing.T) {
	if _, ok := PeekComPacketLength([]byte{0x00, 0x01}); ok {
		t.Fatalf("expected not ok for a buffer shorter than the header")
	}
}
