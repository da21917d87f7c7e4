// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package packet implements the TCG Storage Core SubPacket/Packet/ComPacket
// framing (3.2.3) used to carry a session's token stream across a ComID.
// Headers are declared against pkg/core/layout instead of ad-hoc
// binary.Read/Write, so their byte layout is the single source of truth.
package packet

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/sedtools/tcgsed/pkg/core/layout"
)

var (
	ErrTooLargeComPacket = errors.New("packet: ComPacket exceeds negotiated size")
	ErrTooLargePacket    = errors.New("packet: Packet exceeds negotiated size")
	ErrShortHeader       = errors.New("packet: buffer too short for header")
	ErrUnsupportedKind   = errors.New("packet: unsupported sub-packet kind")
)

// SubPacketKind distinguishes a data-carrying sub-packet from a credit
// control sub-packet (4.6 Credit control).
type SubPacketKind uint16

const (
	SubPacketKindData         SubPacketKind = 0
	SubPacketKindCreditControl SubPacketKind = 0x8001
)

// ComPacketHeader is the 20-byte header described in 3.2.3.1.
type ComPacketHeader struct {
	_               [4]byte `layout:"offset=0"`
	ComID           uint16  `layout:"offset=4"`
	ComIDExt        uint16  `layout:"offset=6"`
	OutstandingData uint32  `layout:"offset=8"`
	MinTransfer     uint32  `layout:"offset=12"`
	Length          uint32  `layout:"offset=16"`
}

const comPacketHeaderSize = 20

// PacketHeader is the 24-byte header described in 3.2.3.2. Field order
// follows (hsn, tsn, sequence_number, ack_type, acknowledgement, length).
type PacketHeader struct {
	HSN             uint32 `layout:"offset=0"`
	TSN             uint32 `layout:"offset=4"`
	SeqNumber       uint32 `layout:"offset=8"`
	_               uint16 `layout:"offset=12"`
	AckType         uint16 `layout:"offset=14"`
	Acknowledgement uint32 `layout:"offset=16"`
	Length          uint32 `layout:"offset=20"`
}

const packetHeaderSize = 24

// SubPacketHeader is the 12-byte header described in 3.2.3.3, 4-byte
// aligned. Kind selects between plain token data and CreditControl.
type SubPacketHeader struct {
	_      [6]byte `layout:"offset=0"`
	Kind   uint16  `layout:"offset=6"`
	Length uint32  `layout:"offset=8"`
}

const subPacketHeaderSize = 12

// SubPacket carries either a raw token-stream fragment or, when Kind is
// SubPacketKindCreditControl, a 4-byte credit increment in Data.
type SubPacket struct {
	Kind SubPacketKind
	Data []byte
}

// Packet carries the sub-packets belonging to one session (hsn, tsn) and
// the sequence-number/ack-nak fields negotiated for that session.
type Packet struct {
	HSN             uint32
	TSN             uint32
	SeqNumber       uint32
	AckType         uint16
	Acknowledgement uint32
	SubPackets      []SubPacket
}

// ComPacket is the top-level framing unit exchanged over IF-SEND/IF-RECV.
type ComPacket struct {
	ComID           uint16
	ComIDExt        uint16
	OutstandingData uint32
	MinTransfer     uint32
	Packets         []Packet
}

// MarshalSubPacket serialises sp, zero-padded so its total length
// (header + data) is a multiple of 4, per 3.2.3.3.
func MarshalSubPacket(sp SubPacket) ([]byte, error) {
	hdr := SubPacketHeader{Kind: uint16(sp.Kind), Length: uint32(len(sp.Data))}
	hdrBytes, err := layout.Marshal(&hdr)
	if err != nil {
		return nil, err
	}
	buf := bytes.Buffer{}
	buf.Write(hdrBytes)
	buf.Write(sp.Data)
	if pad := layout.RoundUp(len(sp.Data), 4) - len(sp.Data); pad > 0 {
		buf.Write(make([]byte, pad))
	}
	return buf.Bytes(), nil
}

// MarshalPacket serialises p: its header followed by each sub-packet in
// order, padded to the length declared in the header.
func MarshalPacket(p Packet) ([]byte, error) {
	body := bytes.Buffer{}
	for _, sp := range p.SubPackets {
		b, err := MarshalSubPacket(sp)
		if err != nil {
			return nil, err
		}
		body.Write(b)
	}
	hdr := PacketHeader{
		HSN:             p.HSN,
		TSN:             p.TSN,
		SeqNumber:       p.SeqNumber,
		AckType:         p.AckType,
		Acknowledgement: p.Acknowledgement,
		Length:          uint32(body.Len()),
	}
	hdrBytes, err := layout.Marshal(&hdr)
	if err != nil {
		return nil, err
	}
	buf := bytes.Buffer{}
	buf.Write(hdrBytes)
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

// MarshalComPacket serialises cp (header + its packets) with no further
// padding; callers that must round up to a drive sector size do so
// themselves after this call, matching how the transport layer applies
// IF-SEND alignment outside of the wire format proper.
func MarshalComPacket(cp ComPacket) ([]byte, error) {
	body := bytes.Buffer{}
	for _, p := range cp.Packets {
		b, err := MarshalPacket(p)
		if err != nil {
			return nil, err
		}
		body.Write(b)
	}
	hdr := ComPacketHeader{
		ComID:           cp.ComID,
		ComIDExt:        cp.ComIDExt,
		OutstandingData: cp.OutstandingData,
		MinTransfer:     cp.MinTransfer,
		Length:          uint32(body.Len()),
	}
	hdrBytes, err := layout.Marshal(&hdr)
	if err != nil {
		return nil, err
	}
	buf := bytes.Buffer{}
	buf.Write(hdrBytes)
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

// UnmarshalSubPacket decodes one sub-packet from the front of data and
// returns the number of bytes consumed, including its 4-byte padding.
func UnmarshalSubPacket(data []byte) (SubPacket, int, error) {
	if len(data) < subPacketHeaderSize {
		return SubPacket{}, 0, ErrShortHeader
	}
	hdr := SubPacketHeader{}
	if err := layout.Unmarshal(data[:subPacketHeaderSize], &hdr); err != nil {
		return SubPacket{}, 0, err
	}
	end := subPacketHeaderSize + int(hdr.Length)
	if end > len(data) {
		return SubPacket{}, 0, ErrShortHeader
	}
	sp := SubPacket{Kind: SubPacketKind(hdr.Kind), Data: data[subPacketHeaderSize:end]}
	consumed := layout.RoundUp(end, 4)
	if consumed > len(data) {
		consumed = len(data)
	}
	return sp, consumed, nil
}

// UnmarshalPacket decodes one packet (header + sub-packets) from the
// front of data and returns the number of bytes consumed. Trailing zero
// padding past the header's declared Length is tolerated and skipped.
func UnmarshalPacket(data []byte) (Packet, int, error) {
	if len(data) < packetHeaderSize {
		return Packet{}, 0, ErrShortHeader
	}
	hdr := PacketHeader{}
	if err := layout.Unmarshal(data[:packetHeaderSize], &hdr); err != nil {
		return Packet{}, 0, err
	}
	end := packetHeaderSize + int(hdr.Length)
	if end > len(data) {
		return Packet{}, 0, ErrShortHeader
	}
	body := data[packetHeaderSize:end]
	p := Packet{
		HSN:             hdr.HSN,
		TSN:             hdr.TSN,
		SeqNumber:       hdr.SeqNumber,
		AckType:         hdr.AckType,
		Acknowledgement: hdr.Acknowledgement,
	}
	for len(body) > 0 {
		if len(body) < subPacketHeaderSize && isZero(body) {
			break
		}
		sp, n, err := UnmarshalSubPacket(body)
		if err != nil {
			return Packet{}, 0, fmt.Errorf("packet: sub-packet: %w", err)
		}
		p.SubPackets = append(p.SubPackets, sp)
		body = body[n:]
	}
	return p, end, nil
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// PeekComPacketLength reads just the ComPacket header's declared body
// Length without parsing the rest, so callers can sanity-check it
// against a negotiated maximum before doing the full unmarshal.
func PeekComPacketLength(data []byte) (uint32, bool) {
	if len(data) < comPacketHeaderSize {
		return 0, false
	}
	hdr := ComPacketHeader{}
	if err := layout.Unmarshal(data[:comPacketHeaderSize], &hdr); err != nil {
		return 0, false
	}
	return hdr.Length, true
}

// UnmarshalComPacket decodes a ComPacket from data, tolerating trailing
// zero padding (e.g. the 512-byte sector alignment applied on send)
// beyond the header's declared Length.
func UnmarshalComPacket(data []byte) (ComPacket, error) {
	if len(data) < comPacketHeaderSize {
		return ComPacket{}, ErrShortHeader
	}
	hdr := ComPacketHeader{}
	if err := layout.Unmarshal(data[:comPacketHeaderSize], &hdr); err != nil {
		return ComPacket{}, err
	}
	end := comPacketHeaderSize + int(hdr.Length)
	if end > len(data) {
		return ComPacket{}, ErrShortHeader
	}
	body := data[comPacketHeaderSize:end]
	cp := ComPacket{
		ComID:           hdr.ComID,
		ComIDExt:        hdr.ComIDExt,
		OutstandingData: hdr.OutstandingData,
		MinTransfer:     hdr.MinTransfer,
	}
	for len(body) > 0 {
		if len(body) < packetHeaderSize && isZero(body) {
			break
		}
		p, n, err := UnmarshalPacket(body)
		if err != nil {
			return ComPacket{}, fmt.Errorf("packet: packet: %w", err)
		}
		cp.Packets = append(cp.Packets, p)
		body = body[n:]
	}
	return cp, nil
}
