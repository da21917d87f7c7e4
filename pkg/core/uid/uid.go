// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uid holds the fixed 8-byte object identifiers assigned by the
// TCG Storage Architecture Core Specification: SP, table, row, and
// method UIDs, plus a small composite lookup registry so a Session
// Manager path like "Locking::Admin1" can be resolved to its UID and
// back, mirroring the table/object-name tables the spec defines.
package uid

import (
	"fmt"
	"sort"
)

// UID is a general type which all UID shall be based upon.
// Specified in TCG Storage Architecture Core Specification Version 2.01 - Rev 1.0
type UID [8]byte

type RowUID UID

type InvokingID UID

type SPID UID

type AuthorityObjectUID UID

// TableUID identifies a table itself, used as the invoking ID for
// Next/enumerate calls and as the key into the Table table.
type TableUID UID

// MethodID identifies an invokable method.
type MethodID UID

var (
	InvokeIDNull   = InvokingID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	InvokeIDThisSP = InvokingID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	InvokeIDSMU    = InvokingID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF}
)

var (
	LockingAuthorityBandMaster0 = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x80, 0x01}
	LockingAuthorityAdmin1      = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x01, 0x00, 0x01}
	AuthorityAnybody            = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x01}
	AuthoritySID                = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x06}
	AuthorityPSID               = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x01, 0xFF, 0x01} // Opal Feature Set: PSID
)

var (
	GlobalRangeRowUID RowUID = [8]byte{0x00, 0x00, 0x08, 0x02, 0x00, 0x00, 0x00, 0x01}
	LockingGlobalRange RowUID = GlobalRangeRowUID
)

var (
	AdminSP             = SPID{0x00, 0x00, 0x02, 0x05, 0x00, 0x00, 0x00, 0x01}
	LockingSP           = SPID{0x00, 0x00, 0x02, 0x05, 0x00, 0x00, 0x00, 0x02}
	EnterpriseLockingSP = SPID{0x00, 0x00, 0x02, 0x05, 0x00, 0x01, 0x00, 0x01} // Enterprise SSC
)

// Admin SP rows.
var (
	Admin_C_PIN_SIDRow     = RowUID{0x00, 0x00, 0x00, 0x0B, 0x00, 0x00, 0x00, 0x01}
	Admin_C_PIN_MSIDRow    = RowUID{0x00, 0x00, 0x00, 0x0B, 0x00, 0x00, 0x84, 0x02}
	Admin_C_PIN_Admin1Row  = RowUID{0x00, 0x00, 0x00, 0x0B, 0x00, 0x01, 0x00, 0x01}
	Admin_TPerInfoObj      = RowUID{0x00, 0x00, 0x02, 0x01, 0x00, 0x00, 0x00, 0x01}
)

// Locking SP rows.
var (
	Admin_C_Pin_BandMaster0  = RowUID{0x00, 0x00, 0x00, 0x0B, 0x00, 0x00, 0x80, 0x01}
	Admin_C_Pin_EraseMaster  = RowUID{0x00, 0x00, 0x00, 0x0B, 0x00, 0x00, 0x84, 0x01}
	LockingInfoObj           = RowUID{0x00, 0x00, 0x08, 0x01, 0x00, 0x00, 0x00, 0x01}
	EnterpriseLockingInfoObj = RowUID{0x00, 0x00, 0x08, 0x01, 0x00, 0x00, 0x00, 0x01}
	MBRControlObj            = RowUID{0x00, 0x00, 0x08, 0x03, 0x00, 0x00, 0x00, 0x01}
)

// Locking SP tables, used as invoking IDs for Next()/Enumerate and as
// the argument to Base_TableRowForTable.
var (
	Locking_LockingTable  = TableUID{0x00, 0x00, 0x08, 0x02, 0x00, 0x00, 0x00, 0x00}
	Locking_MBRTable      = TableUID{0x00, 0x00, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00}
	Locking_SecretProtect = TableUID{0x00, 0x00, 0x08, 0x05, 0x00, 0x00, 0x00, 0x00}
)

// Table, the table-of-tables: every table has a single descriptor row
// here, keyed by the table's own 4-byte table number.
var Table_Table = TableUID{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}

// Base_TableRowForTable returns t's descriptor row in the Table table
// (3.2.5 "Table" table), which GetFullRow reads to recover a table's
// Kind/Name/Rows metadata given only its TableUID.
func Base_TableRowForTable(t TableUID) RowUID {
	var r RowUID
	copy(r[0:4], Table_Table[0:4])
	copy(r[4:8], t[0:4])
	return r
}

// Core generic method UIDs (table "MethodID", 3.2.6).
var (
	MethodIDSMStartSession = MethodID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x02}
	MethodIDSMSyncSession  = MethodID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x03}
	MethodIDSMProperties   = MethodID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x01}
	MethodIDSMCloseSession = MethodID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x06}

	OpalGet          = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x16}
	OpalSet          = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x17}
	OpalNext         = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x08}
	OpalAuthenticate = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x0C}
	OpalRandom       = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x06, 0x01}
	OpalRevertSP     = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x02, 0x11}

	// Enterprise SSC predates the Core generalisation and keeps its own
	// Get/Set/Authenticate method UIDs.
	OpalEnterpriseGet          = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x86}
	OpalEnterpriseSet          = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x87}
	OpalEnterpriseAuthenticate = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x8C}

	MethodIDActivate        = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x02, 0x03}
	MethodIDAdmin_Activate  = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x02, 0x03}
	MethodIDEraseEnterprise = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x08, 0x03}

	// MethodIDGetACL is the Base table's GetACL method (5.1.5 "Base
	// Template" method list): invoked on the object whose access is
	// being queried, it takes the method being asked about as its
	// argument and returns that (invokingID, methodID) pair's ACL.
	MethodIDGetACL = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x0D}
)

// Access control and authority tables (3.2.5, 5.1.5/5.2.1), used as
// invoking IDs for Next()/Enumerate and as the argument to
// Base_TableRowForTable.
var (
	Table_AccessControl = TableUID{0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00}
	Table_ACE           = TableUID{0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00}
	Table_Authority     = TableUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x00}
)

// NameRange lets a single entry stand for a numbered family of UIDs,
// e.g. "User" rows User1..UserN, the way the Authority table names
// User objects (3.1.1.2 Authority Table).
type NameRange struct {
	Prefix string
	Suffix string
	Base   uint64
	Count  uint64
}

func (r NameRange) format(n uint64) string {
	return fmt.Sprintf("%s%d%s", r.Prefix, n, r.Suffix)
}

// entry pairs a UID with its canonical name for binary-search lookup.
type entry struct {
	uid  UID
	name string
}

// Registry is a composite by-name/by-uid lookup over a fixed set of
// named UIDs plus numbered ranges, generalising lookup.rs's
// ListObjectLookup without const-generics: Go just stores slices.
type Registry struct {
	byUID   []entry
	byName  map[string]UID
	ranges  []NameRange
}

func NewRegistry(named map[UID]string, ranges []NameRange) *Registry {
	r := &Registry{byName: map[string]UID{}, ranges: ranges}
	for u, n := range named {
		r.byUID = append(r.byUID, entry{u, n})
		r.byName[n] = u
	}
	sort.Slice(r.byUID, func(i, j int) bool {
		return lessUID(r.byUID[i].uid, r.byUID[j].uid)
	})
	return r
}

func lessUID(a, b UID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func toU64(u UID) uint64 {
	var v uint64
	for _, b := range u {
		v = v<<8 | uint64(b)
	}
	return v
}

// ByUID returns the canonical name for u, resolving through numbered
// ranges when no exact named entry matches.
func (r *Registry) ByUID(u UID) (string, bool) {
	i := sort.Search(len(r.byUID), func(i int) bool { return !lessUID(r.byUID[i].uid, u) })
	if i < len(r.byUID) && r.byUID[i].uid == u {
		return r.byUID[i].name, true
	}
	v := toU64(u)
	for _, rg := range r.ranges {
		if v >= rg.Base && v < rg.Base+rg.Count {
			return rg.format(v - rg.Base + 1), true
		}
	}
	return "", false
}

// ByName resolves a canonical name back to a UID, including numbered
// range members such as "User3".
func (r *Registry) ByName(name string) (UID, bool) {
	if u, ok := r.byName[name]; ok {
		return u, true
	}
	for _, rg := range r.ranges {
		if n, ok := parseRangeMember(name, rg); ok {
			var u UID
			v := rg.Base + n - 1
			for i := 7; i >= 0; i-- {
				u[i] = byte(v)
				v >>= 8
			}
			return u, true
		}
	}
	return UID{}, false
}

func parseRangeMember(name string, rg NameRange) (uint64, bool) {
	if len(name) <= len(rg.Prefix)+len(rg.Suffix) {
		return 0, false
	}
	if name[:len(rg.Prefix)] != rg.Prefix || name[len(name)-len(rg.Suffix):] != rg.Suffix {
		return 0, false
	}
	mid := name[len(rg.Prefix) : len(name)-len(rg.Suffix)]
	var n uint64
	if _, err := fmt.Sscanf(mid, "%d", &n); err != nil {
		return 0, false
	}
	return n, true
}

// Authorities is the well-known Authority table registry: named
// singleton authorities plus the numbered User1..UserN range.
var Authorities = NewRegistry(
	map[UID]string{
		UID(AuthorityAnybody):            "Anybody",
		UID(AuthoritySID):                "SID",
		UID(AuthorityPSID):               "PSID",
		UID(LockingAuthorityBandMaster0): "BandMaster0",
		UID(LockingAuthorityAdmin1):      "Admin1",
	},
	[]NameRange{
		{Prefix: "User", Suffix: "", Base: toU64(UID{0x00, 0x00, 0x00, 0x09, 0x00, 0x03, 0x00, 0x01}), Count: 0x1000},
	},
)
