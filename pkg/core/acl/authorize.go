// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acl

import (
	"errors"

	"github.com/sedtools/tcgsed/pkg/core"
	"github.com/sedtools/tcgsed/pkg/core/method"
	"github.com/sedtools/tcgsed/pkg/core/stream"
	"github.com/sedtools/tcgsed/pkg/core/uid"
)

var ErrNotAuthorized = errors.New("acl: session is not authorized to invoke this method")

// aceBooleanExprColumn is the ACE object table's BooleanExpr column
// (Core spec ACE table: 0 UID, 1 BooleanExpr, 2 Columns).
const aceBooleanExprColumn uint = 1

// Authorize is the method-dispatch guard SPEC_FULL §3 names: before a
// caller invokes methodID against target, it fetches target's ACEs for
// that method (GetACL), ORs their expressions together - 4.9 grants
// access if any applicable ACE is satisfied - and evaluates the result
// against s's authenticated authorities. A denial returns
// ErrNotAuthorized without ever sending methodID itself, so an
// unauthorized call never reaches the data path. An object with no
// ACEs configured for methodID denies by default.
func Authorize(s *core.Session, target uid.InvokingID, methodID uid.MethodID) error {
	aces, err := GetACL(s, target, methodID)
	if err != nil {
		return err
	}
	if len(aces) == 0 {
		return ErrNotAuthorized
	}
	present := s.AuthenticatedAuthorities()
	for _, ace := range aces {
		expr, err := getACE(s, ace)
		if err != nil {
			return err
		}
		if HasPermission(expr, present) {
			return nil
		}
	}
	return ErrNotAuthorized
}

// getACE reads ace's BooleanExpr column and decodes it into an Expr.
// Grounded on GetACL's Get-call shape immediately above in acl.go, not
// pkg/core/table.GetCell: table.go already depends on this package to
// call Authorize, so acl cannot depend back on table.
func getACE(s *core.Session, ace uid.UID) (Expr, error) {
	getUID := uid.MethodID{}
	if s.ProtocolLevel == core.ProtocolLevelEnterprise {
		copy(getUID[:], uid.OpalEnterpriseGet[:])
	} else {
		copy(getUID[:], uid.OpalGet[:])
	}
	mc := method.NewMethodCall(uid.InvokingID(ace), getUID, s.MethodFlags)
	mc.StartList()
	mc.StartOptionalParameter(3, "startColumn")
	mc.UInt(aceBooleanExprColumn)
	mc.EndOptionalParameter()
	mc.StartOptionalParameter(4, "endColumn")
	mc.UInt(aceBooleanExprColumn)
	mc.EndOptionalParameter()
	mc.EndList()

	resp, err := s.ExecuteMethod(mc)
	if err != nil {
		return nil, err
	}
	if s.ProtocolLevel == core.ProtocolLevelEnterprise {
		var ok bool
		resp, ok = resp[0].(stream.List)
		if !ok {
			return nil, method.ErrMalformedMethodResponse
		}
	}
	methodResult, ok := resp[0].(stream.List)
	if !ok || len(methodResult) == 0 {
		return nil, method.ErrMalformedMethodResponse
	}
	rowValues, ok := methodResult[0].(stream.List)
	if !ok || len(rowValues) == 0 {
		return nil, method.ErrMalformedMethodResponse
	}

	for i := 0; i < len(rowValues); i++ {
		if !stream.EqualToken(rowValues[i], stream.StartName) {
			continue
		}
		if i+2 >= len(rowValues) {
			break
		}
		vl, ok := rowValues[i+2].(stream.List)
		if !ok {
			return nil, method.ErrMalformedMethodResponse
		}
		return decodeExpr(vl)
	}
	return nil, method.ErrMalformedMethodResponse
}

// decodeExpr decodes an ACE_expression token stream: each element is
// either an 8-byte authority UID reference, or a uinteger operator
// (0 = AND, 1 = OR).
func decodeExpr(vl stream.List) (Expr, error) {
	expr := make(Expr, 0, len(vl))
	for _, tok := range vl {
		if b, ok := tok.([]byte); ok && len(b) == 8 {
			var a uid.AuthorityObjectUID
			copy(a[:], b)
			expr = append(expr, Authority(a))
			continue
		}
		v, ok := tok.(uint)
		if !ok {
			return nil, method.ErrMalformedMethodResponse
		}
		switch v {
		case 0:
			expr = append(expr, AND)
		case 1:
			expr = append(expr, OR)
		default:
			return nil, method.ErrMalformedMethodResponse
		}
	}
	return expr, nil
}
