// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tper offers an SSC-agnostic façade over a single TCG storage
// device: open it, read its Level 0 discovery once, and start sessions
// against whichever SP the caller names. It generalises
// pkg/locking.Initialize/NewSession's device-opening and
// authenticator-interface pattern beyond the Locking SP, leaving
// interpretation of per-session results (ranges, MBR state, ACEs) to
// the caller or to a higher-level package such as pkg/locking or
// pkg/core/acl.
package tper

import (
	"fmt"
	"time"

	"github.com/sedtools/tcgsed/pkg/core"
	"github.com/sedtools/tcgsed/pkg/core/table"
	"github.com/sedtools/tcgsed/pkg/core/uid"
)

// TPer is a single open device: one Core, one control session. Every
// Session handed out by StartSession rides that control session's
// ComID and sequencing state.
type TPer struct {
	Core    *core.Core
	Control *core.ControlSession
}

type config struct {
	maxComPacketSize uint
	receiveRetries   int
	receiveInterval  time.Duration
}

// Opt configures Open's control session.
type Opt func(*config)

// WithMaxComPacketSize overrides the ComPacket payload size negotiated
// with the TPer. The teacher's default, DefaultMaxComPacketSize, fits
// every SSC this package targets.
func WithMaxComPacketSize(size uint) Opt {
	return func(c *config) { c.maxComPacketSize = size }
}

// WithReceiveTimeout overrides the IF-RECV poll retry count and
// interval used while waiting for a response.
func WithReceiveTimeout(retries int, interval time.Duration) Opt {
	return func(c *config) {
		c.receiveRetries = retries
		c.receiveInterval = interval
	}
}

// Open opens device, performs Level 0 SSC discovery, and establishes
// the device's single control session over whichever ComID the TPer
// hands out (core.GetComID, via core.NewControlSession).
func Open(device string, opts ...Opt) (*TPer, error) {
	c, err := core.NewCore(device)
	if err != nil {
		return nil, err
	}

	cfg := config{
		maxComPacketSize: core.DefaultMaxComPacketSize,
		receiveRetries:   core.DefaultReceiveRetries,
		receiveInterval:  core.DefaultReceiveInterval,
	}
	for _, o := range opts {
		o(&cfg)
	}

	cs, err := core.NewControlSession(c.DriveIntf, c.DiskInfo.Level0Discovery,
		core.WithMaxComPacketSize(cfg.maxComPacketSize),
		core.WithReceiveTimeout(cfg.receiveRetries, cfg.receiveInterval),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("control session: %v", err)
	}

	return &TPer{Core: c, Control: cs}, nil
}

// Discover returns the Level 0 SSC discovery payload read when t was
// opened: the set of SSC feature descriptors (OpalV2, Enterprise,
// PyriteV2, ...) the TPer advertised, trailing all-zero descriptors
// already stripped by core.Core.Discovery0's length-bounded parse.
func (t *TPer) Discover() (*core.Level0Discovery, error) {
	return t.Core.Level0Discovery, nil
}

// Close ends the control session's underlying device handle. Any
// Session started against t.Control is invalidated.
func (t *TPer) Close() error {
	return t.Core.Close()
}

// Authenticator proves a session's identity against whichever
// authority StartSession is targeting for a particular SP.
//
// Implementations typically hold the proof (a PIN, an MSID, a
// certificate) out of band and apply it only once handed a live
// Session, so the same Authenticator value can be reused across
// devices and SPs.
type Authenticator interface {
	Authenticate(s *core.Session) error
}

// PasswordAuthenticator authenticates via ThisSP_Authenticate with a
// plain PIN/password proof — the common case across every SSC family
// this package targets (Opal's admin1/BandMaster credentials,
// Enterprise's BandMaster0, the Admin SP's SID).
type PasswordAuthenticator struct {
	Authority uid.AuthorityObjectUID
	Password  []byte
}

func (a PasswordAuthenticator) Authenticate(s *core.Session) error {
	return table.ThisSP_Authenticate(s, a.Authority, a.Password)
}

// MSIDAuthenticator authenticates against authority using the SP's
// manufactured Security Identifier PIN, read fresh from the C_PIN_MSID
// table rather than supplied by the caller — the factory-default
// credential every Opal/Enterprise SP ships with until ownership is
// taken.
type MSIDAuthenticator struct {
	Authority uid.AuthorityObjectUID
}

func (a MSIDAuthenticator) Authenticate(s *core.Session) error {
	msidPin, err := table.Admin_C_PIN_MSID_GetPIN(s)
	if err != nil {
		return err
	}
	return table.ThisSP_Authenticate(s, a.Authority, msidPin)
}

// StartSession opens a session against sp. If auth is nil the session
// is left unauthenticated (Anybody-only access); otherwise auth is
// asked to authenticate it before it is returned. A failed
// authentication closes the session before returning the error.
func (t *TPer) StartSession(sp uid.SPID, auth Authenticator, opts ...core.SessionOpt) (*core.Session, error) {
	s, err := t.Control.NewSession(sp, opts...)
	if err != nil {
		return nil, fmt.Errorf("session creation failed: %v", err)
	}
	if auth != nil {
		if err := auth.Authenticate(s); err != nil {
			s.Close()
			return nil, fmt.Errorf("authentication failed: %v", err)
		}
	}
	return s, nil
}

// AuthenticateAny tries each candidate in turn against s, stopping at
// the first one that succeeds. A candidate that fails with anything
// other than table.ErrAuthenticationFailed aborts the loop
// immediately and is returned as-is, since that failure mode (a
// transport error, a malformed method response) will not be fixed by
// trying the next candidate. This mirrors pkg/locking.Initialize's
// "try every configured admin authenticator" loop, generalised to any
// SP.
func AuthenticateAny(s *core.Session, candidates ...Authenticator) error {
	var err error
	for _, a := range candidates {
		if err = a.Authenticate(s); err == table.ErrAuthenticationFailed {
			continue
		}
		return err
	}
	return fmt.Errorf("all authentications failed")
}

// ActiveSPs reports which SPs a device's Level 0 discovery indicates
// it implements, identified by the SPID a session would target to
// reach them: the Admin SP is always present, plus the Locking SP or
// Enterprise Locking SP depending on which feature descriptor is set.
func ActiveSPs(d0 *core.Level0Discovery) []uid.SPID {
	sps := []uid.SPID{uid.AdminSP}
	switch {
	case d0.Enterprise != nil:
		sps = append(sps, uid.EnterpriseLockingSP)
	case d0.Locking != nil:
		sps = append(sps, uid.LockingSP)
	}
	return sps
}
