// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package acl implements the TCG Storage Core access-control model: the
// ACE boolean expression evaluated against a session's authenticated
// authorities, the GetACL lookup, and the Activate/Revert SP
// life-cycle operations (4.9).
package acl

import "github.com/sedtools/tcgsed/pkg/core/uid"

// OperandKind distinguishes an authority reference from a boolean
// operator within an ACE's Reverse Polish expression.
type OperandKind int

const (
	Operand OperandKind = iota
	And
	Or
)

// ACEOperand is a single token of an ACE's BooleanExpr column: either
// a reference to an authority (pushed as true/false depending on
// whether the evaluating session authenticated as it) or an AND/OR
// operator consuming the top two stack values.
type ACEOperand struct {
	Kind      OperandKind
	Authority uid.AuthorityObjectUID
}

// Authority builds an operand token referencing a.
func Authority(a uid.AuthorityObjectUID) ACEOperand {
	return ACEOperand{Kind: Operand, Authority: a}
}

var (
	AND = ACEOperand{Kind: And}
	OR  = ACEOperand{Kind: Or}
)

// Expr is an ACE's boolean expression, stored as an RPN token stream
// exactly as the BooleanExpr column carries it on the wire.
type Expr []ACEOperand

// Eval evaluates e against present, the set of authorities the
// evaluating session authenticated as. A malformed expression (an
// operator with fewer than two operands already on the stack, or an
// empty/under-full stack at the end) evaluates its missing operands as
// false rather than failing, matching 4.9's "absent operands are
// false."
func (e Expr) Eval(present map[uid.AuthorityObjectUID]bool) bool {
	var stack []bool
	pop := func() bool {
		if len(stack) == 0 {
			return false
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	for _, op := range e {
		switch op.Kind {
		case Operand:
			stack = append(stack, present[op.Authority])
		case And:
			b, a := pop(), pop()
			stack = append(stack, a && b)
		case Or:
			b, a := pop(), pop()
			stack = append(stack, a || b)
		}
	}
	return pop()
}

// HasPermission substitutes true for each authority in sessionAuths and
// evaluates e, per 4.9.
func HasPermission(e Expr, sessionAuths []uid.AuthorityObjectUID) bool {
	present := make(map[uid.AuthorityObjectUID]bool, len(sessionAuths))
	for _, a := range sessionAuths {
		present[a] = true
	}
	return e.Eval(present)
}

// Allow rewrites e to additionally grant user, by appending "user OR":
// the expression remains valid RPN and now evaluates to true whenever
// it previously did, or when the session authenticated as user.
func Allow(e Expr, user uid.AuthorityObjectUID) Expr {
	out := make(Expr, len(e), len(e)+2)
	copy(out, e)
	return append(out, Authority(user), OR)
}

// Deny rewrites e to remove every occurrence of user, then normalises
// the result back into valid RPN: an AND/OR that no longer has two
// operands on the stack beneath it is itself dropped, since it was
// only ever there to combine with the operand just removed.
func Deny(e Expr, user uid.AuthorityObjectUID) Expr {
	filtered := make(Expr, 0, len(e))
	for _, op := range e {
		if op.Kind == Operand && op.Authority == user {
			continue
		}
		filtered = append(filtered, op)
	}
	return normalize(filtered)
}

func normalize(e Expr) Expr {
	out := make(Expr, 0, len(e))
	depth := 0
	for _, op := range e {
		switch op.Kind {
		case Operand:
			out = append(out, op)
			depth++
		default:
			if depth >= 2 {
				out = append(out, op)
				depth--
			}
		}
	}
	return out
}
