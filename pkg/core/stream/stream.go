// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Implements TCG Storage Core Data Stream: the binary atom/token codec
// (tiny/short/medium/long atoms, structural and command tokens).
package stream

import (
	"bytes"
	"errors"
	"fmt"
)

type TokenType uint8

type List []interface{}

var (
	StartList        TokenType = 0xF0
	EndList          TokenType = 0xF1
	StartName        TokenType = 0xF2
	EndName          TokenType = 0xF3
	Call             TokenType = 0xF8
	EndOfData        TokenType = 0xF9
	EndOfSession     TokenType = 0xFA
	StartTransaction TokenType = 0xFB
	EndTransaction   TokenType = 0xFC
	EmptyAtom        TokenType = 0xFF
	OpalFalse        TokenType = 0x00
	OpalTrue         TokenType = 0x01
	OpalValue        TokenType = 0x01
	OpalPIN          TokenType = 0x03
	OpalWhere        TokenType = 0x00
	ReadLockEnabled  TokenType = 0x05
	WriteLockEnabled TokenType = 0x06

	ErrUnbalancedList  = errors.New("message contained unbalanced list structures")
	ErrIntegerOverflow = errors.New("atom is wider than the requested integer width")
	ErrUnclosedList    = errors.New("list was not closed before end of stream")
	ErrUnclosedName    = errors.New("name was not closed before end of stream")
	ErrUnexpectedEnd   = errors.New("unexpected EndList/EndName in value position")
)

func (t *TokenType) String() string {
	switch *t {
	case StartList:
		return "StartList"
	case EndList:
		return "EndList"
	case StartName:
		return "StartName"
	case EndName:
		return "EndName"
	case Call:
		return "Call"
	case EndOfData:
		return "EndOfData"
	case EndOfSession:
		return "EndOfSession"
	case StartTransaction:
		return "StartTransaction"
	case EndTransaction:
		return "EndTransaction"
	case EmptyAtom:
		return "EmptyAtom"
	}
	return "<Unknown>"
}

func Token(tok TokenType) []byte {
	return []byte{byte(tok)}
}

// minBytes returns the minimal number of big-endian bytes needed to
// hold val, at least 1.
func minBytes(val uint64) int {
	n := 1
	for v := val >> 8; v != 0; v >>= 8 {
		n++
	}
	return n
}

// UInt encodes val as the smallest atom class that fits: a tiny atom
// for values < 64, otherwise a short-atom-encoded unsigned integer
// (TCG Storage Core Spec 3.2.2.3.1: tiny atoms are 6-bit unsigned,
// short atoms carry up to 15 bytes of payload).
func UInt(val uint) []byte {
	return encodeUint(uint64(val))
}

func encodeUint(val uint64) []byte {
	if val < 64 {
		return []byte{uint8(val)}
	}
	n := minBytes(val)
	x := make([]byte, n+1)
	x[0] = 0x80 | uint8(n) // short atom, is_byte=0
	for i := n; i >= 1; i-- {
		x[i] = byte(val)
		val >>= 8
	}
	return x
}

// Int encodes a signed integer as a short atom with the sign flag (0x10)
// set, using the minimal number of bytes that preserve its sign when
// sign-extended back to 64 bits. Tiny atoms are not used.
func Int(val int64) []byte {
	u := uint64(val)
	n := 1
	for {
		// Check whether n bytes of u, sign-extended, reproduce val.
		shift := uint(64 - 8*n)
		if int64(u<<shift)>>shift == val || n >= 8 {
			break
		}
		n++
	}
	x := make([]byte, n+1)
	x[0] = 0x90 | uint8(n) // short atom, is_byte=0, signed=1
	for i := n; i >= 1; i-- {
		x[i] = byte(u)
		u >>= 8
	}
	return x
}

func Bytes(b []byte) []byte {
	// Tiny atoms are not used for binary data (3.2.2.3.1 Simple Tokens – Atoms Overview).
	switch {
	case len(b) < 16:
		// Short atom, is_byte=1.
		return append([]byte{0xa0 | uint8(len(b))}, b...)
	case len(b) < 2048:
		// Medium atom, is_byte=1.
		return append([]byte{0xd0 | uint8((len(b)>>8)&0x7), uint8(len(b) & 0xff)}, b...)
	default:
		// Long atom, is_byte=1.
		return append([]byte{0xe2, uint8((len(b) >> 16) & 0xff), uint8((len(b) >> 8) & 0xff), uint8(len(b) & 0xff)}, b...)
	}
}

// ExtendUint zero-extends an arbitrary-length big-endian unsigned atom
// to a uint64, returning ErrIntegerOverflow if the atom is wider than
// 8 bytes.
func ExtendUint(b []byte) (uint64, error) {
	if len(b) > 8 {
		return 0, ErrIntegerOverflow
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// ExtendUintTo zero-extends b to a target width in bytes, returning
// ErrIntegerOverflow if b is wider than targetWidth.
func ExtendUintTo(b []byte, targetWidth int) (uint64, error) {
	if len(b) > targetWidth {
		return 0, ErrIntegerOverflow
	}
	return ExtendUint(b)
}

// ExtendInt sign- or zero-extends an arbitrary-length big-endian atom
// to an int64. If signed is true and the atom's high bit is set, the
// extension fills with 0xFF, else with 0x00, matching SPEC_FULL §4.2.
func ExtendInt(b []byte, signed bool) (int64, error) {
	if len(b) > 8 {
		return 0, ErrIntegerOverflow
	}
	fill := byte(0x00)
	if signed && len(b) > 0 && b[0]&0x80 != 0 {
		fill = 0xFF
	}
	full := make([]byte, 8)
	for i := range full {
		full[i] = fill
	}
	copy(full[8-len(b):], b)
	var v uint64
	for _, c := range full {
		v = v<<8 | uint64(c)
	}
	return int64(v), nil
}

func Decode(b []byte) (List, error) {
	res, rest, err := internalDecode(b, 0)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, ErrUnbalancedList
	}
	return res, nil
}

func internalDecode(b []byte, depth int) (List, []byte, error) {
	res := List{}
	for len(b) > 0 {
		s := 1
		var x interface{}
		switch {
		case b[0]&0x80 == 0:
			// Tiny atom: 6-bit unsigned integer.
			x = uint(b[0] & 0x3F)
		case b[0]&0xC0 == 0x80:
			// Short atom: up to 15 bytes.
			isbyte := b[0]&0x20 > 0
			n := int(b[0] & 0xf)
			if len(b) < 1+n {
				return nil, nil, fmt.Errorf("%w: truncated short atom", ErrUnclosedList)
			}
			if isbyte {
				bc := make([]byte, n)
				copy(bc, b[1:1+n])
				x = bc
			} else {
				v, err := ExtendUint(b[1 : 1+n])
				if err != nil {
					return nil, nil, err
				}
				x = uint(v)
			}
			s = n + 1
		case b[0]&0xE0 == 0xC0:
			// Medium atom: up to 2047 bytes.
			isbyte := b[0]&0x10 > 0
			if len(b) < 2 {
				return nil, nil, fmt.Errorf("%w: truncated medium atom header", ErrUnclosedList)
			}
			n := int(b[0]&0x7)<<8 | int(b[1])
			if len(b) < 2+n {
				return nil, nil, fmt.Errorf("%w: truncated medium atom", ErrUnclosedList)
			}
			if isbyte {
				bc := make([]byte, n)
				copy(bc, b[2:2+n])
				x = bc
			} else {
				v, err := ExtendUint(b[2 : 2+n])
				if err != nil {
					return nil, nil, err
				}
				x = uint(v)
			}
			s = n + 2
		case b[0]&0xF0 == 0xE0:
			// Long atom.
			isbyte := b[0]&0x02 > 0
			if len(b) < 4 {
				return nil, nil, fmt.Errorf("%w: truncated long atom header", ErrUnclosedList)
			}
			n := int(b[1])<<16 | int(b[2])<<8 | int(b[3])
			if len(b) < 4+n {
				return nil, nil, fmt.Errorf("%w: truncated long atom", ErrUnclosedList)
			}
			if isbyte {
				bc := make([]byte, n)
				copy(bc, b[4:4+n])
				x = bc
			} else {
				v, err := ExtendUint(b[4 : 4+n])
				if err != nil {
					return nil, nil, err
				}
				x = uint(v)
			}
			s = n + 4
		case b[0] == byte(StartList):
			list, rest, err := internalDecode(b[1:], depth+1)
			if err != nil {
				return nil, nil, err
			}
			s = len(b) - len(rest)
			x = list
		case b[0] == byte(EndList):
			if depth == 0 {
				return nil, nil, ErrUnexpectedEnd
			}
			b = b[1:]
			res, b = res, b
			return res, b, nil
		case b[0]&0xF0 == 0xF0:
			// Command/structural token.
			x = TokenType(uint8(b[0]))
			// 3.2.2.3.1.5 Empty Atom: EmptyAtom "SHALL be ignored".
			if x == EmptyAtom {
				x = nil
			}
		default:
			return nil, nil, fmt.Errorf("unknown atom 0x%02x", b[0])
		}
		if x != nil {
			res = append(res, x)
		}
		b = b[s:]
	}
	if depth > 0 {
		return nil, nil, ErrUnclosedList
	}
	return res, b, nil
}

func EqualBytes(obj interface{}, b []byte) bool {
	bd, ok := obj.([]byte)
	if !ok {
		return false
	}
	// Special nil case
	if len(b) == 0 && len(bd) == 0 {
		return true
	}
	return bytes.Equal(b, bd)
}

func EqualToken(obj interface{}, b TokenType) bool {
	byt, ok := obj.([]byte)
	if ok {
		return bytes.Equal(byt, []byte{uint8(b)})
	}
	bd, ok := obj.(TokenType)
	if !ok {
		return false
	}
	return bd == b
}

func EqualUInt(obj interface{}, b uint) bool {
	bd, ok := obj.(uint)
	if !ok {
		return false
	}
	return bd == b
}
