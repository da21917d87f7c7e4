// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Tests implementation of TCG Storage Core Data Stream

package stream

import (
	"bytes"
	"encoding/hex"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestTokenType_String(t *testing.T) {
	testCases := []struct {
		name string
		t    TokenType
		want string
	}{
		{"StartList", StartList, "StartList"},
		{"EndList", EndList, "EndList"},
		{"StartName", StartName, "StartName"},
		{"EndName", EndName, "EndName"},
		{"Call", Call, "Call"},
		{"EndOfData", EndOfData, "EndOfData"},
		{"EndOfSession", EndOfSession, "EndOfSession"},
		{"StartTransaction", StartTransaction, "StartTransaction"},
		{"EndTransaction", EndTransaction, "EndTransaction"},
		{"EmptyAtom", EmptyAtom, "EmptyAtom"},
		{"Unknown", 0, "<Unknown>"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.t.String(); got != tc.want {
				t.Errorf("String() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUInt(t *testing.T) {
	testCases := []struct {
		name string
		data uint
		want []byte
	}{
		{"32", 32, []byte{uint8(32)}},
		{"255", 255, []byte{0x81, 0xff}},
		{"32768", 32768, []byte{0x82, 0x80, 0x00}},
		{"131072", 131072, []byte{0x83, 0x02, 0x00, 0x00}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := UInt(tc.data)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("UInt(%v) = %v; want %v", tc.data, got, tc.want)
			}
		})
	}
}

func TestBytes(t *testing.T) {
	testCases := []struct {
		name string
		data string
		want string
	}{
		{"Null", "", "A0"},
		{"Tiny byte", "2F", "A1 2F"}, // 3.2.2.3.1 Simple Tokens – Atoms Overview ("Tiny atoms only represent integers")
		{"Short byte", "8F", "A1 8F"},
		{"8 bytes", "01 02 03 04 05 06 07 08", "A8 01 02 03 04 05 06 07 08"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in, _ := hex.DecodeString(strings.ReplaceAll(tc.data, " ", ""))
			want, _ := hex.DecodeString(strings.ReplaceAll(tc.want, " ", ""))
			if got := Bytes(in); !bytes.Equal(got, want) {
				t.Errorf("In(%+v) = %+v; want %+v", in, got, want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name string
		data string
		want List
		err  error
	}{
		{"Null", "A0", List{[]byte{}}, nil},
		{"Call", "F8", List{Call}, nil},
		{"Tiny byte", "A1 2F", List{[]byte{0x2f}}, nil},
		{"Tiny uint", "2F", List{uint(0x2f)}, nil},
		{"Short byte", "A1 8F", List{[]byte{0x8f}}, nil},
		{"Short uint", "81 8F", List{uint(0x8f)}, nil},
		{"8 bytes", "A8 01 02 03 04 05 06 07 08", List{[]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}}, nil},
		{"16 bytes", "D0 10 01 02 03 04 05 06 07 08 01 02 03 04 05 06 07 08",
			List{[]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}}, nil},
		{"Long byte", "E2 00 00 04 01 02 03 04", List{[]byte{0x01, 0x02, 0x03, 0x04}}, nil},
		{"EmptyAtom", "FF", List{}, nil},
		{"Medium uint", "C0 02 01 00", List{uint(0x0100)}, nil},
		{"Long uint", "E0 00 00 04 00 01 02 03", List{uint(0x00010203)}, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in, _ := hex.DecodeString(strings.ReplaceAll(tc.data, " ", ""))
			if got, err := Decode(in); !reflect.DeepEqual(got, tc.want) || !errors.Is(err, tc.err) {
				t.Errorf("In(%+v) = %+v, %+v; want %+v, %+v", in, got, err, tc.want, tc.err)
			}
		})
	}
}

func TestDecodeLists(t *testing.T) {
	testCases := []struct {
		name string
		data string
		want List
		err  error
	}{
		{"Bad list", "F1", nil, ErrUnexpectedEnd},
		{"Empty list", "F0 F1", List{List{}}, nil},
		{"One element", "F0 F8 F1", List{List{Call}}, nil},
		{"Two nested element", "F0 F0 F8 F8 F1 F1", List{List{List{Call, Call}}}, nil},
		{"Unclosed list", "F0 F8", nil, ErrUnclosedList},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in, _ := hex.DecodeString(strings.ReplaceAll(tc.data, " ", ""))
			if got, err := Decode(in); !reflect.DeepEqual(got, tc.want) || !errors.Is(err, tc.err) {
				t.Errorf("In(%+v) = %+v, %+v; want %+v, %+v", in, got, err, tc.want, tc.err)
			}
		})
	}
}

func TestExtendUintOverflow(t *testing.T) {
	if _, err := ExtendUint(make([]byte, 9)); !errors.Is(err, ErrIntegerOverflow) {
		t.Errorf("expected ErrIntegerOverflow for a 9-byte atom, got %v", err)
	}
	if _, err := ExtendUintTo([]byte{0x01, 0x02, 0x03}, 2); !errors.Is(err, ErrIntegerOverflow) {
		t.Errorf("expected ErrIntegerOverflow when atom wider than target width, got %v", err)
	}
}

func TestExtendIntSignExtension(t *testing.T) {
	testCases := []struct {
		name   string
		data   []byte
		signed bool
		want   int64
	}{
		{"unsigned positive high bit", []byte{0xFF}, false, 0xFF},
		{"signed negative one byte", []byte{0xFF}, true, -1},
		{"signed positive one byte", []byte{0x7F}, true, 0x7F},
		{"signed negative two bytes", []byte{0xFF, 0x00}, true, -256},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtendInt(tc.data, tc.signed)
			if err != nil {
				t.Fatalf("ExtendInt: %v", err)
			}
			if got != tc.want {
				t.Errorf("ExtendInt(%v, %v) = %d; want %d", tc.data, tc.signed, got, tc.want)
			}
		})
	}
}

// Int encodes a signed value as a short integer atom with the sign flag
// set. Decode() does not act on that flag and returns the atom as an
// unsigned uint, so the round trip checked here is: strip the atom's
// class header, then sign-extend the payload with ExtendInt.
func TestIntRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 127, -128, 32767, -32768, 1 << 40, -(1 << 40)} {
		enc := Int(v)
		n := int(enc[0] & 0xf)
		got, err := ExtendInt(enc[1:1+n], true)
		if err != nil {
			t.Fatalf("ExtendInt: %v", err)
		}
		if got != v {
			t.Errorf("round trip Int(%d) = %d (encoded %x)", v, got, enc)
		}
	}
}

func TestEqualBytes(t *testing.T) {
	TestCases := []struct {
		name string
		data interface{}
		comp []byte
		want bool
	}{
		{"Equal byte slices", []byte{1, 2, 3}, []byte{1, 2, 3}, true},
		{"Different byte slices", []byte{1, 2, 3}, []byte{4, 5, 6}, false},
		{"Special nil case", []byte{}, []byte{}, true},
		{"Unrelated type", "not bytes", []byte{1, 2, 3}, false},
		{"Nil input", nil, []byte{1, 2, 3}, false},
	}

	for _, tc := range TestCases {
		t.Run(tc.name, func(t *testing.T) {
			result := EqualBytes(tc.data, tc.comp)
			if result != tc.want {
				t.Errorf("EqualBytes(%v, %v) = %v; want %v", tc.data, tc.comp, result, tc.want)
			}
		})
	}
}

func TestEqualToken(t *testing.T) {
	TestCases := []struct {
		name string
		data interface{}
		comp TokenType
		want bool
	}{
		{"Equal TokenType values", StartList, StartList, true},
		{"Different TokenType values", StartList, EndList, false},
		{"Equal byte slice representation", Token(StartList), StartList, true},
		{"Mismatched byte slice", []byte{0}, StartList, false},
		{"Invalid byte slice length", []byte{0xF0, 0}, StartList, false},
		{"Unrelated type", "StartList", StartList, false},
		{"Nil input", nil, StartList, false},
	}

	for _, tc := range TestCases {
		t.Run(tc.name, func(t *testing.T) {
			got := EqualToken(tc.data, tc.comp)
			if got != tc.want {
				t.Errorf("EqualToken(%v, %v) = %v; want %v", tc.data, tc.comp, got, tc.want)
			}
		})
	}
}

func TestEqualUInt(t *testing.T) {
	testCases := []struct {
		name string
		data interface{}
		comp uint
		want bool
	}{
		{"Equal uint values", uint(42), 42, true},
		{"Different uint values", uint(42), 0, false},
		{"Not a uint (int type)", int(42), 42, false},
		{"Input is nil", nil, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := EqualUInt(tc.data, tc.comp)
			if got != tc.want {
				t.Errorf("EqualUInt(%v, %v) = %v; want %v", tc.data, tc.comp, got, tc.want)
			}
		})
	}
}
