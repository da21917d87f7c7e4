// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

// AckAction is the receive-side reaction to an incoming packet's
// sequence number, mirrored from ack_layer.rs's AckAction.
type AckAction int

const (
	// ACK: the packet arrived in order and carries a payload; an ACK
	// should be scheduled after the usual delay.
	AckActionACK AckAction = iota
	// NAK: the packet skipped ahead of the expected sequence number; a
	// NAK naming the expected number should be sent immediately.
	AckActionNAK
	// Resend: the packet duplicates an already-acknowledged sequence
	// number (the remote never saw our prior ACK/NAK); re-send the
	// last cached acknowledgement verbatim rather than compute a new
	// one.
	AckActionResend
	// Ignore: a duplicate of an already-NAK'd gap; no reaction needed.
	AckActionIgnore
	// Pass: sequence numbers are not in use for this packet (seq==0),
	// or it carries no payload; no ACK/NAK packet is scheduled for it.
	// An in-order packet without payload still advances the expected
	// sequence number and leaves an ACK pending for the next outbound
	// packet to carry.
	AckActionPass
)

type pendingAck struct {
	ackType AckType
	sn      uint32
}

// AckType mirrors the wire-level acknowledgement kind carried by a
// Packet header's AckType field.
type AckType uint16

const (
	AckTypeNone AckType = 0
	AckTypeACK  AckType = 1
	AckTypeNAK  AckType = 2
)

// sequencer tracks the next expected inbound sequence number and the
// pending ACK/NAK the background reaction should steal onto its next
// outbound packet.
type sequencer struct {
	expected uint32
	lastNAK  uint32
	pending  *pendingAck
	lastSent *pendingAck
}

func newSequencer() *sequencer {
	return &sequencer{expected: 1}
}

// update classifies an inbound sequence number and records the
// resulting pending acknowledgement (if any) for take() to steal.
func (s *sequencer) update(sn uint32, hasPayload bool) AckAction {
	if sn == 0 {
		return AckActionPass
	}
	switch {
	case sn == s.expected:
		s.expected++
		s.pending = &pendingAck{ackType: AckTypeACK, sn: sn}
		if hasPayload {
			return AckActionACK
		}
		return AckActionPass
	case sn < s.expected:
		return AckActionResend
	default: // sn > s.expected: a gap opened up
		if s.lastNAK == s.expected {
			return AckActionIgnore
		}
		s.lastNAK = s.expected
		s.pending = &pendingAck{ackType: AckTypeNAK, sn: s.expected}
		return AckActionNAK
	}
}

// take consumes the pending acknowledgement, if any, for stealing onto
// the next outbound packet header. The taken reaction is remembered so
// a later duplicate (AckActionResend) can re-send it verbatim.
func (s *sequencer) take() (AckType, uint32, bool) {
	if s.pending == nil {
		return AckTypeNone, 0, false
	}
	p := *s.pending
	s.pending = nil
	s.lastSent = &p
	return p.ackType, p.sn, true
}

// lastAck returns the most recently taken acknowledgement, without
// consuming it, for AckActionResend to re-transmit verbatim.
func (s *sequencer) lastAck() (AckType, uint32, bool) {
	if s.lastSent == nil {
		return AckTypeNone, 0, false
	}
	return s.lastSent.ackType, s.lastSent.sn, true
}
