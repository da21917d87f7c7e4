package core

import (
	"bytes"
	"testing"

	"github.com/sedtools/tcgsed/pkg/core/packet"
	"github.com/sedtools/tcgsed/pkg/drive"
)

// fakeComDrive is a minimal DriveIntf that records the last bytes it was
// asked to IFSend and serves IFRecv from a queue of canned responses,
// repeating the final one once the queue is drained.
type fakeComDrive struct {
	sent  []byte
	queue [][]byte
}

func (f *fakeComDrive) IFSend(proto drive.SecurityProtocol, sps uint16, data []byte) error {
	f.sent = data
	return nil
}

func (f *fakeComDrive) IFRecv(proto drive.SecurityProtocol, sps uint16, data *[]byte) error {
	resp := f.queue[0]
	if len(f.queue) > 1 {
		f.queue = f.queue[1:]
	}
	buf := make([]byte, len(*data))
	copy(buf, resp)
	*data = buf
	return nil
}

func testSession() *Session {
	return &Session{ComID: 0x1000, HSN: 1, TSN: 2}
}

func TestPlainComSendFramesAPacketAndPadsTo512(t *testing.T) {
	d := &fakeComDrive{}
	com := NewPlainCommunication(d, InitialHostProperties, InitialTPerProperties)
	s := testSession()

	if err := com.Send(s, []byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(d.sent)%512 != 0 {
		t.Fatalf("expected sent buffer padded to a 512 byte multiple, got %d", len(d.sent))
	}

	cp, err := packet.UnmarshalComPacket(d.sent)
	if err != nil {
		t.Fatalf("UnmarshalComPacket: %v", err)
	}
	if cp.ComID != uint16(s.ComID) {
		t.Fatalf("got ComID %x, want %x", cp.ComID, s.ComID)
	}
	if len(cp.Packets) != 1 || len(cp.Packets[0].SubPackets) != 1 {
		t.Fatalf("expected exactly one packet with one sub-packet, got %+v", cp)
	}
	if got := cp.Packets[0].SubPackets[0].Data; !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("got payload %q, want %q", got, "hello")
	}
	if cp.Packets[0].HSN != uint32(s.HSN) || cp.Packets[0].TSN != uint32(s.TSN) {
		t.Fatalf("got (hsn,tsn) (%d,%d), want (%d,%d)", cp.Packets[0].HSN, cp.Packets[0].TSN, s.HSN, s.TSN)
	}
}

func TestPlainComReceiveReturnsPayloadWhenOutstandingDataIsZero(t *testing.T) {
	cp := packet.ComPacket{
		ComID: 0x1000,
		Packets: []packet.Packet{{
			HSN: 1, TSN: 2,
			SubPackets: []packet.SubPacket{{Kind: packet.SubPacketKindData, Data: []byte("world")}},
		}},
	}
	resp, err := packet.MarshalComPacket(cp)
	if err != nil {
		t.Fatalf("MarshalComPacket: %v", err)
	}

	d := &fakeComDrive{queue: [][]byte{resp}}
	com := NewPlainCommunication(d, InitialHostProperties, InitialTPerProperties)
	s := testSession()

	got, err := com.Receive(s)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(got, []byte("world")) {
		t.Fatalf("got %q, want %q", got, "world")
	}
}

func TestPlainComReceivePollsUntilOutstandingDataClears(t *testing.T) {
	empty := packet.ComPacket{ComID: 0x1000, OutstandingData: 1}
	emptyBytes, err := packet.MarshalComPacket(empty)
	if err != nil {
		t.Fatalf("MarshalComPacket(empty): %v", err)
	}

	ready := packet.ComPacket{
		ComID: 0x1000,
		Packets: []packet.Packet{{
			HSN: 1, TSN: 2,
			SubPackets: []packet.SubPacket{{Kind: packet.SubPacketKindData, Data: []byte("done")}},
		}},
	}
	readyBytes, err := packet.MarshalComPacket(ready)
	if err != nil {
		t.Fatalf("MarshalComPacket(ready): %v", err)
	}

	// Two polls report OutstandingData==1 before the third returns the
	// finished response, exercising transport.Poll's retry path.
	d := &fakeComDrive{queue: [][]byte{emptyBytes, emptyBytes, readyBytes}}
	com := NewPlainCommunication(d, InitialHostProperties, InitialTPerProperties)
	s := testSession()

	got, err := com.Receive(s)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(got, []byte("done")) {
		t.Fatalf("got %q, want %q", got, "done")
	}
}
