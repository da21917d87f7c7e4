// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport implements the per-ComID packet transport: the
// synchronous IF-RECV polling regime used by every TPer, and the
// optional asynchronous sequence-number/ACK-NAK/credit-control regime
// negotiated through Properties. It presents two abstract channels to
// the method/session layer: Send and Recv, keyed by SessionIdentifier.
package transport

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed    = errors.New("transport: session closed")
	ErrAborted   = errors.New("transport: aborted by host")
	ErrTimedOut  = errors.New("transport: timed out waiting for acknowledgement")
	ErrTooBig    = errors.New("transport: packaged method exceeds negotiated size")
)

// SessionIdentifier is the (hsn, tsn) pair a Packet is routed by. The
// control session uses (0, 0).
type SessionIdentifier struct {
	HSN uint32
	TSN uint32
}

// PackagedMethod is an already-tokenised method call/result body, ready
// to be bundled into sub-packets, or unbundled from them.
type PackagedMethod []byte

// Properties mirrors the fields 4.6 names as governing transport
// behaviour, gathered from the broader HostProperties/TPerProperties
// negotiated by the session layer (see pkg/core/session.go) into the
// subset this package actually needs.
type Properties struct {
	MaxMethods            uint
	MaxSubpackets         uint
	MaxPackets            uint
	MaxGrossPacketSize    uint
	MaxGrossComPacketSize uint
	MaxIndTokenSize       uint
	MaxAggTokenSize       uint
	SeqNumbers            bool
	AckNak                bool
	Asynchronous          bool
	BufferMgmt            bool
	MaxRetries            uint
	TransTimeout          time.Duration
	DefTransTimeout       time.Duration
}

// DefaultProperties mirrors Table 168's initial assumed values, using
// def_trans_timeout of 2s (TCG's suggested default when unspecified).
var DefaultProperties = Properties{
	MaxMethods:            1,
	MaxSubpackets:         1,
	MaxPackets:            1,
	MaxGrossPacketSize:    1004,
	MaxGrossComPacketSize: 1024,
	MaxIndTokenSize:       968,
	MaxAggTokenSize:       968,
	MaxRetries:            3,
	TransTimeout:          2 * time.Second,
	DefTransTimeout:       2 * time.Second,
}

// Channel is the abstract interface the method/session layer drives.
// One Channel exists per ComID; each session on that ComID is
// addressed by its SessionIdentifier.
type Channel interface {
	// Send transmits m on behalf of session id. For the asynchronous
	// regime this blocks until m's packet has been acknowledged or the
	// retry budget is exhausted.
	Send(id SessionIdentifier, m PackagedMethod) error
	// Recv blocks until a PackagedMethod addressed to id is available,
	// ctx is cancelled, or the channel is closed.
	Recv(ctx context.Context, id SessionIdentifier) (PackagedMethod, error)
	// Close removes id from routing and closes its receive queue; a
	// waiting Recv returns ErrClosed (or the channel's routing error).
	// Messages already queued for id are discarded, and a Send in
	// progress is not waited for.
	Close(id SessionIdentifier) error
	// Abort removes id from routing like Close; a waiting Recv fails
	// with ErrClosed (or the channel's routing error).
	Abort(id SessionIdentifier)
}
