// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tper

import (
	"errors"
	"testing"

	"github.com/sedtools/tcgsed/pkg/core"
	"github.com/sedtools/tcgsed/pkg/core/feature"
	"github.com/sedtools/tcgsed/pkg/core/table"
	"github.com/sedtools/tcgsed/pkg/core/uid"
)

func TestAuthenticateAnySkipsFailedAuthentication(t *testing.T) {
	calls := 0
	first := fakeAuthFunc(func(*core.Session) error {
		calls++
		return table.ErrAuthenticationFailed
	})
	second := fakeAuthFunc(func(*core.Session) error {
		calls++
		return nil
	})
	if err := AuthenticateAny(nil, first, second); err != nil {
		t.Fatalf("expected second authenticator to succeed, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both authenticators to be tried, got %d calls", calls)
	}
}

func TestAuthenticateAnyStopsAtFirstSuccess(t *testing.T) {
	calls := 0
	first := fakeAuthFunc(func(*core.Session) error {
		calls++
		return nil
	})
	second := fakeAuthFunc(func(*core.Session) error {
		calls++
		return table.ErrAuthenticationFailed
	})
	if err := AuthenticateAny(nil, first, second); err != nil {
		t.Fatalf("expected first authenticator to succeed, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the second authenticator to be skipped, got %d calls", calls)
	}
}

func TestAuthenticateAnyPropagatesNonAuthFailure(t *testing.T) {
	wantErr := errors.New("transport exploded")
	first := fakeAuthFunc(func(*core.Session) error {
		return wantErr
	})
	second := fakeAuthFunc(func(*core.Session) error {
		t.Fatalf("should not be reached after a non-ErrAuthenticationFailed error")
		return nil
	})
	err := AuthenticateAny(nil, first, second)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v to propagate unchanged, got %v", wantErr, err)
	}
}

func TestAuthenticateAnyAllFailed(t *testing.T) {
	fail := fakeAuthFunc(func(*core.Session) error {
		return table.ErrAuthenticationFailed
	})
	if err := AuthenticateAny(nil, fail, fail); err == nil {
		t.Fatalf("expected an error when every authenticator fails")
	}
}

type fakeAuthFunc func(*core.Session) error

func (f fakeAuthFunc) Authenticate(s *core.Session) error {
	return f(s)
}

func TestActiveSPsAlwaysIncludesAdminSP(t *testing.T) {
	sps := ActiveSPs(&core.Level0Discovery{})
	if len(sps) != 1 || sps[0] != uid.AdminSP {
		t.Fatalf("expected only AdminSP for a discovery with no Locking feature, got %+v", sps)
	}
}

func TestActiveSPsIncludesLockingSPForOpalFamily(t *testing.T) {
	d0 := &core.Level0Discovery{Locking: &feature.Locking{}}
	sps := ActiveSPs(d0)
	if len(sps) != 2 || sps[1] != uid.LockingSP {
		t.Fatalf("expected AdminSP and LockingSP, got %+v", sps)
	}
}

func TestActiveSPsIncludesEnterpriseLockingSPForEnterprise(t *testing.T) {
	d0 := &core.Level0Discovery{Enterprise: &feature.Enterprise{}, Locking: &feature.Locking{}}
	sps := ActiveSPs(d0)
	if len(sps) != 2 || sps[1] != uid.EnterpriseLockingSP {
		t.Fatalf("expected Enterprise to take priority over Locking, got %+v", sps)
	}
}
