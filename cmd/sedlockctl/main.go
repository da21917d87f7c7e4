// Copyright (c) 2022 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"log"

	"github.com/alecthomas/kong"

	"github.com/sedtools/tcgsed/pkg/cmdutil"
	"github.com/sedtools/tcgsed/pkg/core"
	"github.com/sedtools/tcgsed/pkg/core/hash"
	"github.com/sedtools/tcgsed/pkg/locking"
)

const (
	programName = "sedlockctl"
	programDesc = "Inspect and manage TCG locking ranges"
)

func main() {
	kctx := kong.Parse(&cli,
		kong.Name(programName),
		kong.Description(programDesc),
		kong.UsageOnError(),
		kong.NamedMapper("accessiblefile", cmdutil.AccessibleFileMapper()),
		kong.Resolvers(cmdutil.ResolvePassword(false)),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	coreObj, err := core.NewCore(cli.Device.Device)
	if err != nil {
		log.Fatalf("core.NewCore: %v", err)
	}
	defer coreObj.Close()

	serialRaw, err := coreObj.SerialNumber()
	if err != nil {
		log.Fatalf("coreObj.SerialNumber: %v", err)
	}
	sn := string(serialRaw)

	var spin []byte
	if cli.Sidpin != "" {
		spin = hashPIN(cli.Sidhash, cli.Sidpin, sn)
	}

	initOps := []locking.InitializeOpt{}
	if len(spin) > 0 {
		initOps = append(initOps, locking.WithAuth(locking.DefaultAdminAuthority(spin)))
	}
	if cli.Sidpinmsid {
		initOps = append(initOps, locking.WithAuth(locking.DefaultAuthorityWithMSID))
	}

	cs, lmeta, err := locking.Initialize(coreObj, initOps...)
	if err != nil {
		log.Fatalf("locking.Initialize: %v", err)
	}
	defer cs.Close()

	var pin []byte
	if cli.Password != "" {
		pin = hashPIN(cli.Hash, cli.Password, sn)
	}

	var auth locking.LockingSPAuthenticator
	switch {
	case cli.User != "":
		var ok bool
		auth, ok = locking.AuthorityFromName(cli.User, pin)
		if !ok {
			log.Fatalf("authority %q is not known for this device", cli.User)
		}
	case len(pin) == 0:
		auth = locking.DefaultAuthorityWithMSID
	default:
		auth = locking.DefaultAuthority(pin)
	}

	session, err := locking.NewSession(cs, lmeta, auth)
	if err != nil {
		log.Fatalf("locking.NewSession: %v", err)
	}
	defer session.Close()

	kctx.FatalIfErrorf(kctx.Run(&context{session: session}))
}

func hashPIN(method, password, serial string) []byte {
	switch method {
	case "", "sedutil-dta", "dta", "sha1":
		return hash.HashSedutilDTA(password, serial)
	case "sedutil-sha512", "sha512":
		return hash.HashSedutil512(password, serial)
	default:
		log.Fatalf("unknown hash method %q", method)
		return nil
	}
}
