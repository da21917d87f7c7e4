// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"testing"
	"time"
)

func TestCreditControllerAcquireWithinBalance(t *testing.T) {
	c := newCreditController(10)
	if !c.Acquire(4) {
		t.Fatalf("Acquire(4) should succeed against a balance of 10")
	}
}

func TestCreditControllerAcquireBlocksUntilExtend(t *testing.T) {
	c := newCreditController(2)
	done := make(chan bool, 1)
	go func() { done <- c.Acquire(5) }()

	select {
	case <-done:
		t.Fatalf("Acquire(5) returned before Extend against a balance of 2")
	case <-time.After(20 * time.Millisecond):
	}

	c.Extend(10)
	select {
	case ok := <-done:
		if !ok {
			t.Fatalf("Acquire(5) = false after Extend(10), want true")
		}
	case <-time.After(time.Second):
		t.Fatalf("Acquire(5) never returned after Extend(10)")
	}
}

func TestCreditControllerCloseUnblocksAcquire(t *testing.T) {
	c := newCreditController(0)
	done := make(chan bool, 1)
	go func() { done <- c.Acquire(1) }()

	select {
	case <-done:
		t.Fatalf("Acquire(1) returned before Close against a balance of 0")
	case <-time.After(20 * time.Millisecond):
	}

	c.Close()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("Acquire(1) = true after Close, want false")
		}
	case <-time.After(time.Second):
		t.Fatalf("Acquire(1) never returned after Close")
	}
}

func TestCreditControlWireRoundTrip(t *testing.T) {
	encoded := EncodeCreditControl(1234)
	n, ok := DecodeCreditControl(encoded)
	if !ok || n != 1234 {
		t.Fatalf("DecodeCreditControl(EncodeCreditControl(1234)) = %d, %v, want 1234, true", n, ok)
	}
}

func TestCreditControlWireRejectsShortPayload(t *testing.T) {
	if _, ok := DecodeCreditControl([]byte{1, 2, 3}); ok {
		t.Fatalf("DecodeCreditControl of a 3-byte payload should fail")
	}
}
