// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acl

import (
	"github.com/sedtools/tcgsed/pkg/core"
	"github.com/sedtools/tcgsed/pkg/core/method"
	"github.com/sedtools/tcgsed/pkg/core/stream"
	"github.com/sedtools/tcgsed/pkg/core/uid"
)

// GetACL invokes the Base template's GetACL method on target, the
// object whose access is in question, asking which ACEs govern calling
// methodID against it. The TPer is the enforcement point regardless —
// this lets a caller inspect permissions up front instead of
// discovering NotAuthorized only after attempting the method.
func GetACL(s *core.Session, target uid.InvokingID, methodID uid.MethodID) ([]uid.UID, error) {
	mc := method.NewMethodCall(target, uid.MethodIDGetACL, s.MethodFlags)
	mc.StartList()
	mc.Bytes(methodID[:])
	mc.EndList()
	resp, err := s.ExecuteMethod(mc)
	if err != nil {
		return nil, err
	}
	result, ok := resp[0].(stream.List)
	if !ok {
		return nil, method.ErrMalformedMethodResponse
	}
	acl := make([]uid.UID, 0, len(result))
	for _, v := range result {
		b, ok := v.([]byte)
		if !ok || len(b) != 8 {
			return nil, method.ErrMalformedMethodResponse
		}
		var u uid.UID
		copy(u[:], b)
		acl = append(acl, u)
	}
	return acl, nil
}

// Activate moves target from ManufacturedInactive to Manufactured
// (4.9): the Admin SP's SID credential is copied to every credential
// row in the newly activated SP, and its tables become accessible.
func Activate(s *core.Session, target uid.SPID) error {
	mc := method.NewMethodCall(uid.InvokingID(target), uid.MethodIDActivate, s.MethodFlags)
	_, err := s.ExecuteMethod(mc)
	return err
}

// Revert invokes Revert on ThisSP, which must be the Admin SP: it
// reinitialises every SP on the TPer back to its factory state and
// implicitly ends every session the TPer currently holds. Reverting a
// single non-Admin SP instead is table.RevertLockingSP's job — the
// same underlying method, but scoped to one SP and with the Locking
// SP's keep-global-range-key option.
func Revert(s *core.Session) error {
	mc := method.NewMethodCall(uid.InvokeIDThisSP, uid.OpalRevertSP, s.MethodFlags)
	_, err := s.ExecuteMethod(mc)
	return err
}
