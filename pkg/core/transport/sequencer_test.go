// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import "testing"

func TestSequencerInOrderWithPayload(t *testing.T) {
	s := newSequencer()
	if got := s.update(1, true); got != AckActionACK {
		t.Fatalf("update(1, true) = %v, want AckActionACK", got)
	}
	typ, sn, ok := s.take()
	if !ok || typ != AckTypeACK || sn != 1 {
		t.Fatalf("take() = %v %v %v, want ACK 1 true", typ, sn, ok)
	}
}

func TestSequencerInOrderNoPayload(t *testing.T) {
	s := newSequencer()
	if got := s.update(1, false); got != AckActionPass {
		t.Fatalf("update(1, false) = %v, want AckActionPass", got)
	}
}

func TestSequencerZeroIsPassThrough(t *testing.T) {
	s := newSequencer()
	if got := s.update(0, true); got != AckActionPass {
		t.Fatalf("update(0, true) = %v, want AckActionPass", got)
	}
	if _, _, ok := s.take(); ok {
		t.Fatalf("take() should be empty after a pass-through update")
	}
}

func TestSequencerMissingTriggersNAK(t *testing.T) {
	s := newSequencer()
	if got := s.update(3, true); got != AckActionNAK {
		t.Fatalf("update(3, true) = %v, want AckActionNAK", got)
	}
	typ, sn, ok := s.take()
	if !ok || typ != AckTypeNAK || sn != 1 {
		t.Fatalf("take() = %v %v %v, want NAK 1 true", typ, sn, ok)
	}
}

func TestSequencerRepeatedGapIgnored(t *testing.T) {
	s := newSequencer()
	s.update(3, true)
	s.take()
	if got := s.update(3, true); got != AckActionIgnore {
		t.Fatalf("second update(3, true) = %v, want AckActionIgnore", got)
	}
}

func TestSequencerDuplicateTriggersResend(t *testing.T) {
	s := newSequencer()
	s.update(1, true)
	s.take()
	if got := s.update(1, true); got != AckActionResend {
		t.Fatalf("update(1, true) again = %v, want AckActionResend", got)
	}
}
