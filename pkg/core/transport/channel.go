// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"sync"

	"github.com/sedtools/tcgsed/pkg/core/packet"
)

// packetChannel is the Channel implementation used once a ComID has
// negotiated SequenceNumbers/AckNak: it multiplexes every session
// sharing that ComID over one AckLayer, routing inbound Packets to the
// session they name (3.2.3.2's hsn/tsn) and assembling each Packet's
// data sub-packets into a single PackagedMethod per 3.2.3 - a Packet
// carries at most one session's traffic, so no cross-packet
// reassembly is required.
//
// Sends are credit-blocking: per 4.6 Credit control, a sender with no
// available credit MUST wait rather than transmit. Absent a
// CreditControl sub-packet from the TPer raising the balance, the
// initial balance is large enough that Acquire never actually blocks -
// matching "no Credit control sub-packets received" meaning
// unconstrained, per 4.6.1.
type packetChannel struct {
	layer  *AckLayer
	credit *creditController

	mu      sync.Mutex
	queues  map[SessionIdentifier]chan PackagedMethod
	routeErr error
}

// unconstrainedCredit is the initial credit balance assumed when the
// TPer has not yet (or never will) send a CreditControl sub-packet.
const unconstrainedCredit = 1 << 24

// NewChannel wraps layer in a Channel, starting the background routing
// loop that demultiplexes layer.Recv() by SessionIdentifier.
func NewChannel(layer *AckLayer) Channel {
	c := &packetChannel{
		layer:  layer,
		credit: newCreditController(unconstrainedCredit),
		queues: make(map[SessionIdentifier]chan PackagedMethod),
	}
	go c.routeLoop()
	return c
}

func (c *packetChannel) queueFor(id SessionIdentifier) chan PackagedMethod {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[id]
	if !ok {
		q = make(chan PackagedMethod, 4)
		c.queues[id] = q
	}
	return q
}

func (c *packetChannel) routeLoop() {
	for {
		p, err := c.layer.Recv()
		if err != nil {
			c.mu.Lock()
			c.routeErr = err
			for id, q := range c.queues {
				close(q)
				delete(c.queues, id)
			}
			c.mu.Unlock()
			return
		}

		var body []byte
		for _, sp := range p.SubPackets {
			switch sp.Kind {
			case packet.SubPacketKindData:
				body = append(body, sp.Data...)
			case packet.SubPacketKindCreditControl:
				if n, ok := DecodeCreditControl(sp.Data); ok {
					c.credit.Extend(n)
				}
			}
		}
		if len(body) == 0 {
			continue
		}
		id := SessionIdentifier{HSN: p.HSN, TSN: p.TSN}
		q := c.queueFor(id)
		q <- PackagedMethod(body)
	}
}

// Send blocks for available credit, then hands m to the AckLayer
// addressed to id; per AckLayer.Send this blocks until m's packet is
// acknowledged or the retry budget is exhausted.
func (c *packetChannel) Send(id SessionIdentifier, m PackagedMethod) error {
	if c.layer.properties.MaxGrossPacketSize > 0 && uint(len(m)) > c.layer.properties.MaxGrossPacketSize {
		return ErrTooBig
	}
	if !c.credit.Acquire(uint32(len(m))) {
		return ErrClosed
	}
	return c.layer.Send(packet.Packet{
		HSN: id.HSN,
		TSN: id.TSN,
		SubPackets: []packet.SubPacket{
			{Kind: packet.SubPacketKindData, Data: []byte(m)},
		},
	})
}

func (c *packetChannel) Recv(ctx context.Context, id SessionIdentifier) (PackagedMethod, error) {
	q := c.queueFor(id)
	select {
	case m, ok := <-q:
		if !ok {
			c.mu.Lock()
			err := c.routeErr
			c.mu.Unlock()
			if err == nil {
				err = ErrClosed
			}
			return nil, err
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close removes id from routing. The shared AckLayer keeps serving
// other sessions on the same ComID.
func (c *packetChannel) Close(id SessionIdentifier) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.queues[id]; ok {
		delete(c.queues, id)
		close(q)
	}
	return nil
}

// Abort is Close: nothing queues a pending Send per session to fail
// out-of-band, since Send already blocks synchronously in the caller's
// goroutine and will observe the AckLayer's own closed/aborted state.
func (c *packetChannel) Abort(id SessionIdentifier) {
	_ = c.Close(id)
}
