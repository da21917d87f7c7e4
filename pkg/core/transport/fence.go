// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import "sync"

// fence lets senders block until a monotonically increasing watermark
// reaches a target value, used to wait for a packet's sequence number
// to be acknowledged. Modeled on ack_layer.rs's Fence (signal/wait/close).
type fence struct {
	mu        sync.Mutex
	cond      *sync.Cond
	watermark uint32
	closed    bool
}

func newFence() *fence {
	f := &fence{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// signal raises the watermark to v if v is higher than the current
// value, waking any waiters whose target is now satisfied.
func (f *fence) signal(v uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v > f.watermark {
		f.watermark = v
	}
	f.cond.Broadcast()
}

// wait blocks until the watermark reaches at least target, or the
// fence is closed (returns false).
func (f *fence) wait(target uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.watermark < target && !f.closed {
		f.cond.Wait()
	}
	return !f.closed || f.watermark >= target
}

// close unblocks every waiter permanently with a failure result.
func (f *fence) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}
