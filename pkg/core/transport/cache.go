// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import "github.com/sedtools/tcgsed/pkg/core/packet"

// cachedPacket is one outbound packet retained until the remote
// acknowledges its sequence number.
type cachedPacket struct {
	seq uint32
	pkt packet.Packet
}

// cache holds every sent-but-unacknowledged packet so a NAK can trigger
// a retransmit without the sender having to reconstruct anything.
// Modeled on ack_layer.rs's Cache: enqueue assigns the next sequence
// number, ack() drops the acknowledged prefix, rewind() resets the
// send cursor back to the front so flush() resends everything still
// outstanding.
type cache struct {
	packets  []cachedPacket
	nextSeq  uint32
	sendFrom int
}

func newCache() *cache {
	return &cache{nextSeq: 1}
}

// enqueue assigns pkt the next sequence number, stores it, and returns
// that number.
func (c *cache) enqueue(pkt packet.Packet) uint32 {
	pkt.SeqNumber = c.nextSeq
	c.packets = append(c.packets, cachedPacket{seq: c.nextSeq, pkt: pkt})
	c.nextSeq++
	return pkt.SeqNumber
}

// next returns the next packet to transmit (respecting the send
// cursor) and advances the cursor, or ok=false if nothing is pending.
func (c *cache) next() (packet.Packet, bool) {
	if c.sendFrom >= len(c.packets) {
		return packet.Packet{}, false
	}
	p := c.packets[c.sendFrom].pkt
	c.sendFrom++
	return p, true
}

// ack drops every cached packet with sequence number <= sn.
func (c *cache) ack(sn uint32) {
	i := 0
	for i < len(c.packets) && c.packets[i].seq <= sn {
		i++
	}
	c.packets = c.packets[i:]
	c.sendFrom -= i
	if c.sendFrom < 0 {
		c.sendFrom = 0
	}
}

// rewind resets the send cursor so the next flush retransmits every
// packet still outstanding.
func (c *cache) rewind() {
	c.sendFrom = 0
}

// frontSequenceNumber returns the sequence number of the oldest
// outstanding packet, or ok=false if the cache is empty.
func (c *cache) frontSequenceNumber() (uint32, bool) {
	if len(c.packets) == 0 {
		return 0, false
	}
	return c.packets[0].seq, true
}

// back returns the most recently enqueued packet. Re-sending an
// ACK/NAK on a resend request does not use it; that goes through the
// sequencer's last sent acknowledgement.
func (c *cache) back() (packet.Packet, bool) {
	if len(c.packets) == 0 {
		return packet.Packet{}, false
	}
	return c.packets[len(c.packets)-1].pkt, true
}
