// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"testing"
	"time"
)

func TestFenceWaitReturnsImmediatelyIfAlreadyPast(t *testing.T) {
	f := newFence()
	f.signal(5)
	if !f.wait(3) {
		t.Fatalf("wait(3) after signal(5) should succeed immediately")
	}
}

func TestFenceWaitBlocksUntilSignalled(t *testing.T) {
	f := newFence()
	done := make(chan bool, 1)
	go func() { done <- f.wait(1) }()

	select {
	case <-done:
		t.Fatalf("wait(1) returned before any signal")
	case <-time.After(20 * time.Millisecond):
	}

	f.signal(1)
	select {
	case ok := <-done:
		if !ok {
			t.Fatalf("wait(1) = false, want true after signal(1)")
		}
	case <-time.After(time.Second):
		t.Fatalf("wait(1) never returned after signal(1)")
	}
}

func TestFenceCloseUnblocksWaiters(t *testing.T) {
	f := newFence()
	done := make(chan bool, 1)
	go func() { done <- f.wait(100) }()

	select {
	case <-done:
		t.Fatalf("wait(100) returned before close")
	case <-time.After(20 * time.Millisecond):
	}

	f.close()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("wait(100) = true after close, want false")
		}
	case <-time.After(time.Second):
		t.Fatalf("wait(100) never returned after close")
	}
}
