// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"testing"
	"time"

	"github.com/sedtools/tcgsed/pkg/core/packet"
)

// fakeLink is a PacketLayer backed by channels; pairFakeLinks wires two
// of them together so each side's Send feeds the other's Recv, letting
// tests drive one side directly (bypassing AckLayer bookkeeping) while
// exercising a real AckLayer on the other.
type fakeLink struct {
	out    chan packet.Packet
	in     chan packet.Packet
	closed chan struct{}
}

func pairFakeLinks() (*fakeLink, *fakeLink) {
	ab := make(chan packet.Packet, 16)
	ba := make(chan packet.Packet, 16)
	a := &fakeLink{out: ab, in: ba, closed: make(chan struct{})}
	b := &fakeLink{out: ba, in: ab, closed: make(chan struct{})}
	return a, b
}

func (l *fakeLink) Send(p packet.Packet) error {
	select {
	case l.out <- p:
		return nil
	case <-l.closed:
		return ErrClosed
	}
}

func (l *fakeLink) Recv() (packet.Packet, error) {
	select {
	case p := <-l.in:
		return p, nil
	case <-l.closed:
		return packet.Packet{}, ErrClosed
	}
}

func (l *fakeLink) Close() error {
	close(l.closed)
	return nil
}

func (l *fakeLink) recvTimeout(t *testing.T, d time.Duration) (packet.Packet, bool) {
	t.Helper()
	select {
	case p := <-l.in:
		return p, true
	case <-time.After(d):
		return packet.Packet{}, false
	}
}

func testProperties() Properties {
	p := DefaultProperties
	p.TransTimeout = 40 * time.Millisecond
	p.MaxRetries = 3
	return p
}

func withPayload(data ...byte) packet.Packet {
	return packet.Packet{SubPackets: []packet.SubPacket{{Data: data}}}
}

func TestAckData(t *testing.T) {
	linkA, linkB := pairFakeLinks()
	a := NewAckLayer(linkA, testProperties())
	defer a.Close()

	go func() { _ = a.Send(withPayload(1, 2, 3)) }()

	p, ok := linkB.recvTimeout(t, time.Second)
	if !ok {
		t.Fatalf("B never received the data packet")
	}
	if p.SeqNumber != 1 {
		t.Fatalf("SeqNumber = %d, want 1", p.SeqNumber)
	}
	if len(p.SubPackets) != 1 || len(p.SubPackets[0].Data) != 3 {
		t.Fatalf("payload not carried through: %+v", p)
	}
}

func TestAckPureAckReturnsWithoutConfirmation(t *testing.T) {
	linkA, _ := pairFakeLinks()
	a := NewAckLayer(linkA, testProperties())
	defer a.Close()

	done := make(chan error, 1)
	go func() { done <- a.Send(packet.Packet{}) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Send(empty) = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Send(empty) should return immediately without waiting for an ack")
	}
}

func TestAckCredit(t *testing.T) {
	c := newCreditController(0)
	c.Extend(4)
	if !c.Acquire(4) {
		t.Fatalf("Acquire(4) should succeed once Extend(4) raises the balance")
	}
}

func TestNakMissing(t *testing.T) {
	linkA, linkB := pairFakeLinks()
	a := NewAckLayer(linkA, testProperties())
	defer a.Close()

	// B sends sequence number 3 directly, skipping 1 and 2.
	_ = linkB.Send(packet.Packet{SeqNumber: 3, SubPackets: []packet.SubPacket{{Data: []byte{9}}}})

	p, ok := linkB.recvTimeout(t, time.Second)
	if !ok {
		t.Fatalf("A never reacted to the out-of-order packet")
	}
	if AckType(p.AckType) != AckTypeNAK || p.Acknowledgement != 1 {
		t.Fatalf("reaction = %+v, want NAK for sequence 1", p)
	}
}

func TestReackResent(t *testing.T) {
	linkA, linkB := pairFakeLinks()
	a := NewAckLayer(linkA, testProperties())
	defer a.Close()

	_ = linkB.Send(packet.Packet{SeqNumber: 1, SubPackets: []packet.SubPacket{{Data: []byte{9}}}})
	first, ok := linkB.recvTimeout(t, time.Second)
	if !ok || AckType(first.AckType) != AckTypeACK || first.Acknowledgement != 1 {
		t.Fatalf("first reaction = %+v, ok=%v, want ACK 1", first, ok)
	}

	// B never saw the ACK and retransmits the same sequence number.
	_ = linkB.Send(packet.Packet{SeqNumber: 1, SubPackets: []packet.SubPacket{{Data: []byte{9}}}})
	second, ok := linkB.recvTimeout(t, time.Second)
	if !ok {
		t.Fatalf("A never re-sent its acknowledgement for the duplicate")
	}
	if second.AckType != first.AckType || second.Acknowledgement != first.Acknowledgement {
		t.Fatalf("re-sent reaction %+v does not match the original %+v", second, first)
	}
}

func TestAckStealing(t *testing.T) {
	linkA, linkB := pairFakeLinks()
	a := NewAckLayer(linkA, testProperties())
	defer a.Close()

	// B sends in order, giving A a pending ACK.
	_ = linkB.Send(packet.Packet{SeqNumber: 1, SubPackets: []packet.SubPacket{{Data: []byte{1}}}})
	// Wait until A has taken B's packet in, so its ACK is pending.
	if _, err := a.Recv(); err != nil {
		t.Fatalf("Recv() = %v", err)
	}
	// A has its own outbound data queued; the ACK should ride along on it
	// instead of going out as a separate empty packet.
	go func() { _ = a.Send(withPayload(7)) }()

	var seen []packet.Packet
	deadline := time.After(2 * time.Second)
	for i := 0; i < 3; i++ {
		select {
		case p := <-linkB.in:
			seen = append(seen, p)
			if len(p.SubPackets) > 0 && p.AckType == uint16(AckTypeACK) {
				return // stole the ack onto the data packet: success
			}
		case <-deadline:
			t.Fatalf("never observed a stolen ack on an outbound data packet, saw %+v", seen)
		}
	}
	t.Fatalf("never observed a stolen ack on an outbound data packet, saw %+v", seen)
}

func TestResendOnTimeout(t *testing.T) {
	linkA, linkB := pairFakeLinks()
	props := testProperties()
	a := NewAckLayer(linkA, props)
	defer a.Close()

	done := make(chan error, 1)
	go func() { done <- a.Send(withPayload(5)) }()

	first, ok := linkB.recvTimeout(t, time.Second)
	if !ok || first.SeqNumber != 1 {
		t.Fatalf("first send = %+v, ok=%v, want seq 1", first, ok)
	}
	// B never acknowledges; A must retransmit the same sequence number.
	second, ok := linkB.recvTimeout(t, time.Second)
	if !ok || second.SeqNumber != 1 {
		t.Fatalf("retransmit = %+v, ok=%v, want seq 1 again", second, ok)
	}

	select {
	case err := <-done:
		if err != ErrTimedOut {
			t.Fatalf("Send() = %v, want ErrTimedOut once retries are exhausted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Send() never gave up")
	}
}

func TestOnAcknowledgement(t *testing.T) {
	linkA, linkB := pairFakeLinks()
	a := NewAckLayer(linkA, testProperties())
	defer a.Close()

	done := make(chan error, 1)
	go func() { done <- a.Send(withPayload(2)) }()

	sent, ok := linkB.recvTimeout(t, time.Second)
	if !ok || sent.SeqNumber != 1 {
		t.Fatalf("A never sent its data packet: %+v, %v", sent, ok)
	}
	_ = linkB.Send(packet.Packet{AckType: uint16(AckTypeACK), Acknowledgement: 1})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Send() = %v after ACK, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Send() never unblocked after the ACK arrived")
	}
}

func TestResendOnNak(t *testing.T) {
	linkA, linkB := pairFakeLinks()
	a := NewAckLayer(linkA, testProperties())
	defer a.Close()

	done := make(chan error, 1)
	go func() { done <- a.Send(withPayload(3)) }()

	sent, ok := linkB.recvTimeout(t, time.Second)
	if !ok || sent.SeqNumber != 1 {
		t.Fatalf("A never sent its data packet: %+v, %v", sent, ok)
	}
	_ = linkB.Send(packet.Packet{AckType: uint16(AckTypeNAK), Acknowledgement: 1})

	resent, ok := linkB.recvTimeout(t, time.Second)
	if !ok || resent.SeqNumber != 1 {
		t.Fatalf("A never retransmitted after the NAK: %+v, %v", resent, ok)
	}

	_ = linkB.Send(packet.Packet{AckType: uint16(AckTypeACK), Acknowledgement: 1})
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Send() = %v after eventual ACK, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Send() never unblocked after the eventual ACK")
	}
}
