// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Implements TCG Storage Core packetization for communication

package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sedtools/tcgsed/pkg/core/packet"
	"github.com/sedtools/tcgsed/pkg/core/transport"
	"github.com/sedtools/tcgsed/pkg/drive"
)

var (
	ErrTooLargeComPacket = errors.New("encountered a too large ComPacket")
	ErrTooLargePacket    = errors.New("encountered a too large Packet")
)

// NOTE: This is almost io.ReadWriter, but not quite - I couldn't figure out
// a good interface use that wouldn't result in a lot of extra copying.
//
// Session ComPackets always ride drive.SecurityProtocolTCGManagement
// (0x01, shared with Level-0 discovery; SecurityProtocolTCGTPer is used
// only for the ComID requests in core.go), so that protocol is baked
// into the implementation rather than threaded through every call site.
type CommunicationIntf interface {
	Send(ses *Session, data []byte) error
	Receive(ses *Session) ([]byte, error)
}

type plainCom struct {
	d  DriveIntf
	hp HostProperties
	tp TPerProperties
}

// Low-level communication used to send/receive packets to a TPer or SP.
//
// Implements Subpacket-Packet-ComPacket packet format, framed by
// pkg/core/packet instead of ad-hoc binary.Read/Write.
func NewPlainCommunication(d DriveIntf, hp HostProperties, tp TPerProperties) *plainCom {
	return &plainCom{d, hp, tp}
}

func (c *plainCom) Send(ses *Session, data []byte) error {
	// From "3.3.10.3 Synchronous Communications Restrictions"
	// > Methods SHALL NOT span ComPackets. In the case where an incomplete method is
	// > submitted, if the TPer is able to identify the associated session, then that session SHALL
	// Maybe add a "fragment" flag to reject too large Sends when synchronous?
	// TODO: Implement fragmentation

	seq := uint32(ses.SeqLastXmit + 1)
	if !c.tp.SequenceNumbers || !c.hp.SequenceNumbers {
		seq = 0
	}
	pkt := packet.Packet{
		HSN:       uint32(ses.HSN),
		TSN:       uint32(ses.TSN),
		SeqNumber: seq,
		AckType:   0, /* TODO */
		SubPackets: []packet.SubPacket{
			{Kind: packet.SubPacketKindData, Data: data},
		},
	}
	pktBytes, err := packet.MarshalPacket(pkt)
	if err != nil {
		return err
	}
	if uint(len(pktBytes)) > c.tp.MaxPacketSize {
		return ErrTooLargePacket
	}

	cp := packet.ComPacket{
		ComID:    uint16(ses.ComID & 0xffff),
		ComIDExt: uint16((ses.ComID & 0xffff0000) >> 16),
		Packets:  []packet.Packet{pkt},
	}
	compktBytes, err := packet.MarshalComPacket(cp)
	if err != nil {
		return err
	}
	if uint(len(compktBytes)) > c.tp.MaxComPacketSize {
		return ErrTooLargeComPacket
	}
	if c.tp.SequenceNumbers && c.hp.SequenceNumbers {
		ses.SeqLastXmit += 1
	}
	// Extend buffer to be aligned to 512 byte pages which some drives like
	compktBytes = append(compktBytes, make([]byte, 512-(len(compktBytes)%512))...)
	return c.d.IFSend(drive.SecurityProtocolTCGManagement, uint16(ses.ComID), compktBytes)
}

func (c *plainCom) Receive(ses *Session) ([]byte, error) {
	transTimeout := transport.DefaultProperties.TransTimeout
	if c.tp.DefTransTimeout != nil {
		transTimeout = time.Duration(*c.tp.DefTransTimeout) * time.Millisecond
	}

	var payload []byte
	recv := func() (transport.PollOutcome, error) {
		buf := make([]byte, c.hp.MaxComPacketSize)
		if err := c.d.IFRecv(drive.SecurityProtocolTCGManagement, uint16(ses.ComID), &buf); err != nil {
			return transport.PollOutcome{}, err
		}
		if declared, ok := packet.PeekComPacketLength(buf); ok && uint(declared) > c.hp.MaxComPacketSize {
			return transport.PollOutcome{}, ErrTooLargeComPacket
		}
		cp, err := packet.UnmarshalComPacket(buf)
		if err != nil {
			return transport.PollOutcome{}, err
		}
		// SeqNumber/AckType are not inspected here: when session.go
		// negotiates SequenceNumbers/AckNak it installs asyncWire and a
		// transport.AckLayer instead of plainCom.
		if len(cp.Packets) == 0 || len(cp.Packets[0].SubPackets) == 0 {
			return transport.PollOutcome{OutstandingData: cp.OutstandingData, MinTransfer: cp.MinTransfer}, nil
		}
		sp := cp.Packets[0].SubPackets[0]
		if sp.Kind != packet.SubPacketKindData {
			return transport.PollOutcome{}, fmt.Errorf("only data subpackets are implemented")
		}
		payload = sp.Data
		return transport.PollOutcome{
			OutstandingData: cp.OutstandingData,
			MinTransfer:     cp.MinTransfer,
			HasPayload:      true,
		}, nil
	}

	if _, err := transport.Poll(transTimeout, recv, nil); err != nil {
		return nil, err
	}
	return payload, nil
}

// asyncWire implements transport.PacketLayer directly over a DriveIntf
// and ComID: one packet.Packet per ComPacket exchange, framed exactly
// like plainCom, but with none of plainCom's per-session sequence
// number bookkeeping - that lives one layer up, in the
// transport.AckLayer this wraps. Recv sleeps between empty polls so an
// idle asynchronous session does not spin on IF-RECV.
type asyncWire struct {
	d     DriveIntf
	comID ComID
	hp    HostProperties
	tp    TPerProperties
}

func newAsyncWire(d DriveIntf, comID ComID, hp HostProperties, tp TPerProperties) *asyncWire {
	return &asyncWire{d: d, comID: comID, hp: hp, tp: tp}
}

func (w *asyncWire) Send(p packet.Packet) error {
	pktBytes, err := packet.MarshalPacket(p)
	if err != nil {
		return err
	}
	if uint(len(pktBytes)) > w.tp.MaxPacketSize {
		return ErrTooLargePacket
	}
	cp := packet.ComPacket{
		ComID:    uint16(w.comID & 0xffff),
		ComIDExt: uint16((w.comID & 0xffff0000) >> 16),
		Packets:  []packet.Packet{p},
	}
	compktBytes, err := packet.MarshalComPacket(cp)
	if err != nil {
		return err
	}
	if uint(len(compktBytes)) > w.tp.MaxComPacketSize {
		return ErrTooLargeComPacket
	}
	compktBytes = append(compktBytes, make([]byte, 512-(len(compktBytes)%512))...)
	return w.d.IFSend(drive.SecurityProtocolTCGManagement, uint16(w.comID), compktBytes)
}

func (w *asyncWire) Recv() (packet.Packet, error) {
	for {
		buf := make([]byte, w.hp.MaxComPacketSize)
		if err := w.d.IFRecv(drive.SecurityProtocolTCGManagement, uint16(w.comID), &buf); err != nil {
			return packet.Packet{}, err
		}
		if declared, ok := packet.PeekComPacketLength(buf); ok && uint(declared) > w.hp.MaxComPacketSize {
			return packet.Packet{}, ErrTooLargeComPacket
		}
		cp, err := packet.UnmarshalComPacket(buf)
		if err != nil {
			return packet.Packet{}, err
		}
		if len(cp.Packets) == 0 {
			time.Sleep(DefaultReceiveInterval)
			continue
		}
		return cp.Packets[0], nil
	}
}

func (w *asyncWire) Close() error { return nil }

// asyncCom implements CommunicationIntf over a transport.Channel, once
// NewControlSession has negotiated SequenceNumbers and AckNak with the
// TPer. It is the live counterpart to plainCom: same interface, but
// sends are cached/retried/credit-blocked and sequence-numbered by the
// AckLayer underneath the Channel instead of going out fire-and-forget.
type asyncCom struct {
	ch transport.Channel
}

func NewAsyncCommunication(ch transport.Channel) CommunicationIntf {
	return &asyncCom{ch: ch}
}

func (c *asyncCom) Send(ses *Session, data []byte) error {
	id := transport.SessionIdentifier{HSN: uint32(ses.HSN), TSN: uint32(ses.TSN)}
	return c.ch.Send(id, transport.PackagedMethod(data))
}

// Receive performs one bounded wait for the next PackagedMethod
// addressed to ses, returning (nil, nil) rather than an error if
// nothing arrives within one ReceiveInterval. That mirrors plainCom's
// "empty response means try again" contract, so session.go's existing
// retry loops (ExecuteMethod, Close) work unmodified against either
// implementation.
func (c *asyncCom) Receive(ses *Session) ([]byte, error) {
	interval := ses.ReceiveInterval
	if interval <= 0 {
		interval = DefaultReceiveInterval
	}
	ctx, cancel := context.WithTimeout(context.Background(), interval)
	defer cancel()
	id := transport.SessionIdentifier{HSN: uint32(ses.HSN), TSN: uint32(ses.TSN)}
	m, err := c.ch.Recv(ctx, id)
	if err != nil {
		if err == context.DeadlineExceeded {
			return nil, nil
		}
		return nil, err
	}
	return []byte(m), nil
}

// transportProperties narrows the negotiated HostProperties/TPerProperties
// down to what pkg/core/transport needs to drive the AckLayer, per 4.6.
func transportProperties(hp HostProperties, tp TPerProperties) transport.Properties {
	p := transport.DefaultProperties
	if hp.MaxPacketSize > 0 {
		p.MaxGrossPacketSize = hp.MaxPacketSize
	}
	if hp.MaxComPacketSize > 0 {
		p.MaxGrossComPacketSize = hp.MaxComPacketSize
	}
	if hp.MaxSubpackets > 0 {
		p.MaxSubpackets = hp.MaxSubpackets
	}
	if hp.MaxPackets > 0 {
		p.MaxPackets = hp.MaxPackets
	}
	if hp.MaxIndTokenSize > 0 {
		p.MaxIndTokenSize = hp.MaxIndTokenSize
	}
	if hp.MaxAggTokenSize > 0 {
		p.MaxAggTokenSize = hp.MaxAggTokenSize
	}
	p.SeqNumbers = hp.SequenceNumbers && tp.SequenceNumbers
	p.AckNak = hp.AckNak && tp.AckNak
	p.Asynchronous = hp.Asynchronous && tp.Asynchronous
	if tp.DefTransTimeout != nil {
		p.TransTimeout = time.Duration(*tp.DefTransTimeout) * time.Millisecond
		p.DefTransTimeout = p.TransTimeout
	}
	return p
}
