// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acl

import (
	"reflect"
	"testing"

	"github.com/sedtools/tcgsed/pkg/core/uid"
)

var (
	admin1 = uid.LockingAuthorityAdmin1
	anyone = uid.AuthorityAnybody
	sid    = uid.AuthoritySID
	user3  = uid.AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x03, 0x00, 0x03}
)

func TestEvalSingleOperandPresent(t *testing.T) {
	e := Expr{Authority(admin1)}
	if !HasPermission(e, []uid.AuthorityObjectUID{admin1}) {
		t.Fatalf("Admin1 alone should grant Admin1")
	}
}

func TestEvalSingleOperandAbsent(t *testing.T) {
	e := Expr{Authority(admin1)}
	if HasPermission(e, []uid.AuthorityObjectUID{sid}) {
		t.Fatalf("SID should not satisfy an Admin1-only expression")
	}
}

func TestEvalOr(t *testing.T) {
	e := Expr{Authority(admin1), Authority(sid), OR}
	if !HasPermission(e, []uid.AuthorityObjectUID{sid}) {
		t.Fatalf("Admin1 OR SID should be satisfied by SID alone")
	}
	if HasPermission(e, []uid.AuthorityObjectUID{user3}) {
		t.Fatalf("Admin1 OR SID should not be satisfied by an unrelated authority")
	}
}

func TestEvalAnd(t *testing.T) {
	e := Expr{Authority(admin1), Authority(sid), AND}
	if HasPermission(e, []uid.AuthorityObjectUID{sid}) {
		t.Fatalf("Admin1 AND SID should require both")
	}
	if !HasPermission(e, []uid.AuthorityObjectUID{admin1, sid}) {
		t.Fatalf("Admin1 AND SID should be satisfied when both are present")
	}
}

func TestEvalAbsentOperandsAreFalse(t *testing.T) {
	var e Expr
	if HasPermission(e, []uid.AuthorityObjectUID{admin1}) {
		t.Fatalf("an empty expression should deny everyone")
	}
}

func TestAllowAppendsOrBranch(t *testing.T) {
	e := Expr{Authority(admin1)}
	updated := Allow(e, sid)
	if !HasPermission(updated, []uid.AuthorityObjectUID{admin1}) {
		t.Fatalf("Allow must not revoke the pre-existing grant")
	}
	if !HasPermission(updated, []uid.AuthorityObjectUID{sid}) {
		t.Fatalf("Allow(sid) should grant sid")
	}
	want := Expr{Authority(admin1), Authority(sid), OR}
	if !reflect.DeepEqual(updated, want) {
		t.Fatalf("Allow() = %+v, want %+v", updated, want)
	}
}

func TestDenyRemovesOccurrenceAndNormalises(t *testing.T) {
	e := Expr{Authority(admin1), Authority(sid), OR}
	updated := Deny(e, sid)
	want := Expr{Authority(admin1)}
	if !reflect.DeepEqual(updated, want) {
		t.Fatalf("Deny() = %+v, want %+v", updated, want)
	}
	if !HasPermission(updated, []uid.AuthorityObjectUID{admin1}) {
		t.Fatalf("Deny(sid) must not revoke admin1's grant")
	}
	if HasPermission(updated, []uid.AuthorityObjectUID{sid}) {
		t.Fatalf("Deny(sid) should revoke sid's grant")
	}
}

func TestDenyEveryOperandLeavesEmptyExpression(t *testing.T) {
	e := Expr{Authority(admin1), Authority(sid), OR}
	updated := Deny(Deny(e, sid), admin1)
	if len(updated) != 0 {
		t.Fatalf("Deny() of every operand should leave an empty expression, got %+v", updated)
	}
	if HasPermission(updated, []uid.AuthorityObjectUID{anyone}) {
		t.Fatalf("an empty expression should deny everyone, including Anybody")
	}
}

func TestDenyFromThreeWayOrKeepsSurvivors(t *testing.T) {
	e := Expr{Authority(admin1), Authority(sid), OR, Authority(user3), OR}
	updated := Deny(e, sid)
	if !HasPermission(updated, []uid.AuthorityObjectUID{admin1}) {
		t.Fatalf("admin1 should still be granted after removing sid from a three-way OR")
	}
	if !HasPermission(updated, []uid.AuthorityObjectUID{user3}) {
		t.Fatalf("user3 should still be granted after removing sid from a three-way OR")
	}
	if HasPermission(updated, []uid.AuthorityObjectUID{sid}) {
		t.Fatalf("sid should no longer be granted")
	}
}
