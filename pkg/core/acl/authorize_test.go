// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acl

import (
	"reflect"
	"testing"

	"github.com/sedtools/tcgsed/pkg/core/stream"
	"github.com/sedtools/tcgsed/pkg/core/uid"
)

func TestDecodeExprSingleAuthority(t *testing.T) {
	vl := stream.List{[]byte(admin1[:])}
	got, err := decodeExpr(vl)
	if err != nil {
		t.Fatalf("decodeExpr: %v", err)
	}
	want := Expr{Authority(admin1)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("decodeExpr() = %+v, want %+v", got, want)
	}
}

func TestDecodeExprOrOfTwoAuthorities(t *testing.T) {
	vl := stream.List{[]byte(admin1[:]), []byte(sid[:]), uint(1)}
	got, err := decodeExpr(vl)
	if err != nil {
		t.Fatalf("decodeExpr: %v", err)
	}
	want := Expr{Authority(admin1), Authority(sid), OR}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("decodeExpr() = %+v, want %+v", got, want)
	}
	if !HasPermission(got, []uid.AuthorityObjectUID{sid}) {
		t.Fatalf("decoded OR expression should grant sid")
	}
}

func TestDecodeExprRejectsMalformedOperator(t *testing.T) {
	vl := stream.List{[]byte(admin1[:]), uint(7)}
	if _, err := decodeExpr(vl); err == nil {
		t.Fatalf("decodeExpr should reject an operator value outside {0,1}")
	}
}

func TestDecodeExprRejectsMalformedOperand(t *testing.T) {
	vl := stream.List{"not an authority or operator"}
	if _, err := decodeExpr(vl); err == nil {
		t.Fatalf("decodeExpr should reject a token that is neither an 8-byte UID nor a uint")
	}
}
