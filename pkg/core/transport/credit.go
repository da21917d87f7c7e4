// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"encoding/binary"
	"sync"
)

// creditController implements the optional buffer-management
// sub-protocol (4.6 Credit control): a payload of size n consumes n
// credits; Acquire blocks the sender until enough credit is available,
// and Extend (driven by an inbound CreditControl sub-packet) raises
// the available balance.
type creditController struct {
	mu      sync.Mutex
	cond    *sync.Cond
	balance int64
	closed  bool
}

func newCreditController(initial uint32) *creditController {
	c := &creditController{balance: int64(initial)}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Acquire blocks until at least n credits are available, then deducts
// them, unless the controller is closed (returns false).
func (c *creditController) Acquire(n uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.balance < int64(n) && !c.closed {
		c.cond.Wait()
	}
	if c.closed {
		return false
	}
	c.balance -= int64(n)
	return true
}

// Extend raises the available balance by n credits, per an inbound
// CreditControl sub-packet.
func (c *creditController) Extend(n uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balance += int64(n)
	c.cond.Broadcast()
}

func (c *creditController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cond.Broadcast()
}

// EncodeCreditControl renders a CreditControl sub-packet payload: a
// single big-endian uint32 increment.
func EncodeCreditControl(n uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, n)
	return buf
}

// DecodeCreditControl parses a CreditControl sub-packet payload.
func DecodeCreditControl(data []byte) (uint32, bool) {
	if len(data) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(data), true
}
