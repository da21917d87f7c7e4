// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"sync"
	"time"

	"github.com/sedtools/tcgsed/pkg/core/packet"
)

// PacketLayer is the raw packet-exchange primitive an AckLayer wraps:
// something that can hand a Packet to the TPer and block for the next
// one coming back, with no sequence-number/ack-nak semantics of its
// own. asyncWire in pkg/core/communication.go is the implementation
// used by sessions.
type PacketLayer interface {
	Send(p packet.Packet) error
	Recv() (packet.Packet, error)
	Close() error
}

// AckLayer adds the asynchronous sequence-number/ACK-NAK/retry
// sub-protocol on top of a PacketLayer, per 4.6. One AckLayer serves
// one ComID's packet stream; sessions on that ComID share it since
// sequence numbers are a property of the packet stream, not of any one
// session.
//
// Modeled on ack_layer.rs's AcknowledgementLayer: a send-side cache of
// unacknowledged packets with retry-on-timeout, a receive-side
// sequencer that schedules ACK/NAK reactions, and ACK/NAK stealing so
// a reaction never needs a dedicated empty packet when an outbound
// data packet is already in flight.
type AckLayer struct {
	next       PacketLayer
	properties Properties

	mu    sync.Mutex
	cache *cache
	seq   *sequencer

	acked  *fence
	closed bool

	recvCh chan recvResult
	doneCh chan struct{}
}

type recvResult struct {
	pkt packet.Packet
	err error
}

func NewAckLayer(next PacketLayer, properties Properties) *AckLayer {
	a := &AckLayer{
		next:       next,
		properties: properties,
		cache:      newCache(),
		seq:        newSequencer(),
		acked:      newFence(),
		recvCh:     make(chan recvResult, 16),
		doneCh:     make(chan struct{}),
	}
	go a.recvLoop()
	return a
}

func (a *AckLayer) flushLocked() error {
	for {
		p, ok := a.cache.next()
		if !ok {
			return nil
		}
		if err := a.next.Send(p); err != nil {
			return err
		}
	}
}

// stealLocked attaches the pending ACK/NAK (if any) onto p before it is
// handed to the next layer, so a reaction never needs a dedicated
// empty packet when an outbound data packet is already in flight.
// Caller must hold a.mu.
func (a *AckLayer) stealLocked(p packet.Packet) packet.Packet {
	if t, sn, ok := a.seq.take(); ok {
		p.AckType = uint16(t)
		p.Acknowledgement = sn
	}
	return p
}

// Send transmits p asynchronously: it is cached, flushed to the next
// layer, and Send blocks until its sequence number is acknowledged or
// the retry budget (MaxRetries) is exhausted.
func (a *AckLayer) Send(p packet.Packet) error {
	a.mu.Lock()
	sn := func() uint32 {
		p := a.stealLocked(p)
		if len(p.SubPackets) == 0 {
			return 0
		}
		return a.cache.enqueue(p)
	}()
	err := a.flushLocked()
	a.mu.Unlock()
	if err != nil {
		return err
	}
	if sn == 0 {
		return nil
	}
	return a.confirm(sn)
}

func (a *AckLayer) confirm(sn uint32) error {
	attempts := a.properties.MaxRetries
	if attempts == 0 {
		attempts = 1
	}
	for i := uint(0); i < attempts-1; i++ {
		done := make(chan bool, 1)
		go func() { done <- a.acked.wait(sn) }()
		select {
		case ok := <-done:
			if ok {
				return nil
			}
			return ErrAborted
		case <-time.After(a.properties.TransTimeout / 2):
			a.mu.Lock()
			if front, ok := a.cache.frontSequenceNumber(); ok && front == sn {
				a.cache.rewind()
				err := a.flushLocked()
				a.mu.Unlock()
				if err != nil {
					return err
				}
			} else {
				a.mu.Unlock()
			}
		}
	}
	return ErrTimedOut
}

// recvLoop pulls packets off the next layer, updates the sequencer,
// reacts (ACK/NAK/resend) in the background, and forwards
// in-order/payload-bearing packets to Recv's caller.
func (a *AckLayer) recvLoop() {
	defer close(a.doneCh)
	for {
		p, err := a.next.Recv()
		if err != nil {
			a.recvCh <- recvResult{err: err}
			return
		}
		hasPayload := len(p.SubPackets) > 0
		a.mu.Lock()
		action := a.seq.update(p.SeqNumber, hasPayload)
		a.mu.Unlock()

		go a.react(action)

		if err := a.handleAckNak(p); err != nil {
			a.recvCh <- recvResult{err: err}
			return
		}
		switch action {
		case AckActionACK, AckActionPass:
			a.recvCh <- recvResult{pkt: p}
		default:
			// NAK/Resend/Ignore: not delivered to the caller.
		}
	}
}

func (a *AckLayer) react(action AckAction) {
	switch action {
	case AckActionACK:
		time.Sleep(a.properties.TransTimeout / 4)
		a.sendAckNak()
	case AckActionNAK:
		a.sendAckNak()
	case AckActionResend:
		a.resendAck()
	case AckActionIgnore, AckActionPass:
	}
}

// sendAckNak flushes an empty packet carrying whatever ACK/NAK the
// sequencer has pending; stealLocked folds it into the next real data
// packet automatically if one races ahead of it.
func (a *AckLayer) sendAckNak() {
	a.mu.Lock()
	p := a.stealLocked(packet.Packet{})
	if p.AckType == 0 {
		a.mu.Unlock()
		return
	}
	_ = a.next.Send(p)
	a.mu.Unlock()
}

// resendAck re-transmits the last acknowledgement sent for this
// stream, verbatim, in response to a duplicate inbound packet: the
// remote's retransmission means it never saw our prior reaction.
func (a *AckLayer) resendAck() {
	a.mu.Lock()
	defer a.mu.Unlock()
	typ, sn, ok := a.seq.lastAck()
	if !ok {
		return
	}
	_ = a.next.Send(packet.Packet{AckType: uint16(typ), Acknowledgement: sn})
}

func (a *AckLayer) handleAckNak(p packet.Packet) error {
	switch AckType(p.AckType) {
	case AckTypeACK:
		a.acked.signal(p.Acknowledgement)
		a.mu.Lock()
		a.cache.ack(p.Acknowledgement)
		a.mu.Unlock()
	case AckTypeNAK:
		acked := p.Acknowledgement
		if acked > 0 {
			acked--
		}
		a.acked.signal(acked)
		a.mu.Lock()
		a.cache.ack(acked)
		a.cache.rewind()
		err := a.flushLocked()
		a.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// Recv blocks for the next in-order, payload-bearing (or pass-through)
// packet delivered by the receive loop.
func (a *AckLayer) Recv() (packet.Packet, error) {
	r, ok := <-a.recvCh
	if !ok {
		return packet.Packet{}, ErrClosed
	}
	return r.pkt, r.err
}

func (a *AckLayer) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.next.Close()
}

func (a *AckLayer) Abort() {
	a.acked.close()
	_ = a.next.Close()
}
