package transport

import (
	"context"
	"testing"
	"time"

	"github.com/sedtools/tcgsed/pkg/core/packet"
)

// TestChannelNakRetransmitDeliversInOrder is the mandatory async
// end-to-end scenario: the remote drops sequence number 2, the
// receiving side NAKs it, and the sender retransmits 2 and 3 so the
// PackagedMethods are delivered to Recv in strictly-monotone order
// with nothing missing or duplicated.
func TestChannelNakRetransmitDeliversInOrder(t *testing.T) {
	linkA, linkB := pairFakeLinks()
	layer := NewAckLayer(linkA, testProperties())
	defer layer.Close()
	ch := NewChannel(layer)

	id := SessionIdentifier{HSN: 1, TSN: 2}

	// Drive B directly: send 1 in order, drop 2, then send 3.
	_ = linkB.Send(packet.Packet{HSN: 1, TSN: 2, SeqNumber: 1, SubPackets: []packet.SubPacket{{Data: []byte("one")}}})
	first, ok := linkB.recvTimeout(t, time.Second)
	if !ok || AckType(first.AckType) != AckTypeACK || first.Acknowledgement != 1 {
		t.Fatalf("want ACK 1 for the in-order packet, got %+v ok=%v", first, ok)
	}

	// Sequence number 2 is "dropped": B never sends it. B sends 3 instead,
	// which must provoke a NAK for the missing 2.
	_ = linkB.Send(packet.Packet{HSN: 1, TSN: 2, SeqNumber: 3, SubPackets: []packet.SubPacket{{Data: []byte("three")}}})
	nak, ok := linkB.recvTimeout(t, time.Second)
	if !ok || AckType(nak.AckType) != AckTypeNAK || nak.Acknowledgement != 2 {
		t.Fatalf("want NAK for sequence 2, got %+v ok=%v", nak, ok)
	}

	// B retransmits 2, then 3 again.
	_ = linkB.Send(packet.Packet{HSN: 1, TSN: 2, SeqNumber: 2, SubPackets: []packet.SubPacket{{Data: []byte("two")}}})
	ack2, ok := linkB.recvTimeout(t, time.Second)
	if !ok || AckType(ack2.AckType) != AckTypeACK || ack2.Acknowledgement != 2 {
		t.Fatalf("want ACK 2 once the missing packet arrives, got %+v ok=%v", ack2, ok)
	}
	_ = linkB.Send(packet.Packet{HSN: 1, TSN: 2, SeqNumber: 3, SubPackets: []packet.SubPacket{{Data: []byte("three")}}})
	ack3, ok := linkB.recvTimeout(t, time.Second)
	if !ok || AckType(ack3.AckType) != AckTypeACK || ack3.Acknowledgement != 3 {
		t.Fatalf("want ACK 3 after the retransmit, got %+v ok=%v", ack3, ok)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m1, err := ch.Recv(ctx, id)
	if err != nil || string(m1) != "one" {
		t.Fatalf("Recv 1 = %q, %v, want \"one\"", m1, err)
	}
	m2, err := ch.Recv(ctx, id)
	if err != nil || string(m2) != "two" {
		t.Fatalf("Recv 2 = %q, %v, want \"two\" (delivered in order despite arriving after 3 on the wire)", m2, err)
	}
	m3, err := ch.Recv(ctx, id)
	if err != nil || string(m3) != "three" {
		t.Fatalf("Recv 3 = %q, %v, want \"three\"", m3, err)
	}
}

func TestChannelSendIsCreditBlockingAndRoutedBySessionIdentifier(t *testing.T) {
	linkA, linkB := pairFakeLinks()
	layer := NewAckLayer(linkA, testProperties())
	defer layer.Close()
	ch := NewChannel(layer)

	idA := SessionIdentifier{HSN: 10, TSN: 20}
	sendErr := make(chan error, 1)
	go func() { sendErr <- ch.Send(idA, PackagedMethod("payload")) }()

	p, ok := linkB.recvTimeout(t, time.Second)
	if !ok {
		t.Fatalf("never observed the outbound packet")
	}
	if p.HSN != 10 || p.TSN != 20 {
		t.Fatalf("got (hsn,tsn) = (%d,%d), want (10,20)", p.HSN, p.TSN)
	}
	_ = linkB.Send(packet.Packet{AckType: uint16(AckTypeACK), Acknowledgement: p.SeqNumber})

	select {
	case err := <-sendErr:
		if err != nil {
			t.Fatalf("Send() = %v, want nil once acknowledged", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Send() never unblocked after the ACK")
	}
}

func TestChannelCloseStopsRoutingToThatSession(t *testing.T) {
	linkA, _ := pairFakeLinks()
	layer := NewAckLayer(linkA, testProperties())
	defer layer.Close()
	ch := NewChannel(layer)

	id := SessionIdentifier{HSN: 1, TSN: 1}
	if err := ch.Close(id); err != nil {
		t.Fatalf("Close: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := ch.Recv(ctx, id); err == nil {
		t.Fatalf("Recv after Close should fail")
	}
}
