// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"time"
)

// PollOutcome is a single raw IF-RECV result inspected by the
// synchronous poll loop.
type PollOutcome struct {
	// OutstandingData mirrors the ComPacket field of the same name: 0
	// means the response is ready/empty, 1 means poll again, anything
	// else advises the next transfer length.
	OutstandingData uint32
	MinTransfer     uint32
	HasPayload      bool
}

// PollBackoff computes the synchronous-regime backoff schedule: start
// at min(transTimeout/200, 10µs) and double on each subsequent call,
// capped at transTimeout/7.
type PollBackoff struct {
	transTimeout time.Duration
	next         time.Duration
}

func NewPollBackoff(transTimeout time.Duration) *PollBackoff {
	start := transTimeout / 200
	if tenMicros := 10 * time.Microsecond; tenMicros < start {
		start = tenMicros
	}
	return &PollBackoff{transTimeout: transTimeout, next: start}
}

// Next returns the delay to sleep before the next poll attempt, and
// advances the schedule.
func (b *PollBackoff) Next() time.Duration {
	d := b.next
	cap := b.transTimeout / 7
	b.next *= 2
	if b.next > cap {
		b.next = cap
	}
	return d
}

// Deadline returns the absolute point beyond which Poll gives up,
// 2*transTimeout after start.
func (b *PollBackoff) Deadline(start time.Time) time.Time {
	return start.Add(2 * b.transTimeout)
}

// ErrPollTimedOut is returned by Poll when the deadline elapses without
// a terminal outcome.
var ErrPollTimedOut = ErrTimedOut

// Poll drives the synchronous-regime polling loop described in 4.6:
// recv is called repeatedly; an outcome with OutstandingData==0
// terminates the loop (whether or not it carries a payload — an empty
// response with no outstanding data means "nothing more is coming").
// OutstandingData==1 schedules one more poll after the current backoff
// delay. Any other value is passed to clampTransfer (if non-nil) so the
// caller can resize its next receive buffer, and polling continues
// immediately.
func Poll(transTimeout time.Duration, recv func() (PollOutcome, error), clampTransfer func(minTransfer uint32)) (PollOutcome, error) {
	backoff := NewPollBackoff(transTimeout)
	start := time.Now()
	deadline := backoff.Deadline(start)
	for {
		outcome, err := recv()
		if err != nil {
			return PollOutcome{}, err
		}
		switch outcome.OutstandingData {
		case 0:
			return outcome, nil
		case 1:
			if time.Now().After(deadline) {
				return PollOutcome{}, ErrPollTimedOut
			}
			time.Sleep(backoff.Next())
		default:
			if clampTransfer != nil {
				clampTransfer(outcome.MinTransfer)
			}
			if time.Now().After(deadline) {
				return PollOutcome{}, ErrPollTimedOut
			}
		}
	}
}
