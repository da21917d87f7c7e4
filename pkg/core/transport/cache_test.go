// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"testing"

	"github.com/sedtools/tcgsed/pkg/core/packet"
)

func dataPacket(n int) packet.Packet {
	return packet.Packet{SubPackets: []packet.SubPacket{{Data: make([]byte, n)}}}
}

func TestCacheEnqueueAssignsIncrementingSequenceNumbers(t *testing.T) {
	c := newCache()
	sn1 := c.enqueue(dataPacket(1))
	sn2 := c.enqueue(dataPacket(1))
	if sn1 != 1 || sn2 != 2 {
		t.Fatalf("got %d, %d, want 1, 2", sn1, sn2)
	}
}

func TestCacheNextDrainsInOrder(t *testing.T) {
	c := newCache()
	c.enqueue(dataPacket(1))
	c.enqueue(dataPacket(2))
	p1, ok := c.next()
	if !ok || p1.SeqNumber != 1 {
		t.Fatalf("first next() = %+v, %v", p1, ok)
	}
	p2, ok := c.next()
	if !ok || p2.SeqNumber != 2 {
		t.Fatalf("second next() = %+v, %v", p2, ok)
	}
	if _, ok := c.next(); ok {
		t.Fatalf("next() should be exhausted")
	}
}

func TestCacheAckDropsPrefix(t *testing.T) {
	c := newCache()
	c.enqueue(dataPacket(1))
	c.enqueue(dataPacket(1))
	c.enqueue(dataPacket(1))
	c.ack(2)
	sn, ok := c.frontSequenceNumber()
	if !ok || sn != 3 {
		t.Fatalf("frontSequenceNumber() = %d, %v, want 3, true", sn, ok)
	}
}

func TestCacheRewindResendsOutstanding(t *testing.T) {
	c := newCache()
	c.enqueue(dataPacket(1))
	c.enqueue(dataPacket(1))
	c.next()
	c.next()
	if _, ok := c.next(); ok {
		t.Fatalf("expected drained cache before rewind")
	}
	c.rewind()
	p, ok := c.next()
	if !ok || p.SeqNumber != 1 {
		t.Fatalf("after rewind, next() = %+v, %v, want seq 1", p, ok)
	}
}

func TestCacheAckThenRewindOnlyResendsSurvivors(t *testing.T) {
	c := newCache()
	c.enqueue(dataPacket(1))
	c.enqueue(dataPacket(1))
	c.enqueue(dataPacket(1))
	c.next()
	c.next()
	c.next()
	c.ack(1)
	c.rewind()
	p, ok := c.next()
	if !ok || p.SeqNumber != 2 {
		t.Fatalf("after ack(1)+rewind, next() = %+v, %v, want seq 2", p, ok)
	}
}

func TestCacheBackReturnsMostRecentlyEnqueued(t *testing.T) {
	c := newCache()
	c.enqueue(dataPacket(1))
	c.enqueue(dataPacket(2))
	p, ok := c.back()
	if !ok || p.SeqNumber != 2 {
		t.Fatalf("back() = %+v, %v, want seq 2", p, ok)
	}
}
