package main

import (
	"testing"

	"github.com/sedtools/tcgsed/pkg/core/uid"
)

func TestParseUIDRoundTrips(t *testing.T) {
	got, err := parseUID("0000000900000001")
	if err != nil {
		t.Fatalf("parseUID: %v", err)
	}
	if got != uid.UID(uid.AuthorityAnybody) {
		t.Fatalf("got %x, want %x", got, uid.AuthorityAnybody)
	}
}

func TestParseUIDRejectsBadLength(t *testing.T) {
	if _, err := parseUID("00"); err == nil {
		t.Fatalf("expected error for short input")
	}
}

func TestParseUIDRejectsNonHex(t *testing.T) {
	if _, err := parseUID("not-hex-at-all!!"); err == nil {
		t.Fatalf("expected error for non-hex input")
	}
}

func TestFormatUIDUsesRegisteredName(t *testing.T) {
	got := formatUID(uid.UID(uid.AuthoritySID))
	want := "SID (0000000900000006)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFormatUIDFallsBackToHex(t *testing.T) {
	unknown := uid.UID{0xde, 0xad, 0xbe, 0xef, 0x00, 0x00, 0x00, 0x01}
	got := formatUID(unknown)
	want := "deadbeef00000001"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
