package main

import (
	"encoding/hex"
	"fmt"

	"github.com/davecgh/go-spew/spew"

	"github.com/sedtools/tcgsed/pkg/cmdutil"
	"github.com/sedtools/tcgsed/pkg/core/acl"
	"github.com/sedtools/tcgsed/pkg/core/table"
	"github.com/sedtools/tcgsed/pkg/core/uid"
	"github.com/sedtools/tcgsed/pkg/metrics"
	"github.com/sedtools/tcgsed/pkg/tper"
)

// context is the context struct required by the kong command line parser.
type context struct{}

type discoverCmd struct {
	Device string `arg:"" required:"" type:"accessiblefile" help:"Path to SED device (e.g. /dev/nvme0)"`
	Debug  bool   `optional:"" help:"Dump the negotiated TPerProperties/HostProperties alongside Level0Discovery"`
}

type takeOwnershipCmd struct {
	Device                string `arg:"" required:"" type:"accessiblefile" help:"Path to SED device (e.g. /dev/nvme0)"`
	cmdutil.PasswordEmbed `embed:"" help:"New SID / Admin1 credential"`
}

type setRangeCmd struct {
	Device                string  `arg:"" required:"" type:"accessiblefile" help:"Path to SED device (e.g. /dev/nvme0)"`
	cmdutil.PasswordEmbed `embed:"" help:"Locking SP Admin1/BandMaster0 credential"`
	Range                 uint    `optional:"" default:"0" help:"Locking range index: position in the Locking table's row enumeration"`
	Start                 *uint64 `optional:"" help:"First LBA covered by the range"`
	Length                *uint64 `optional:"" help:"Number of LBAs covered by the range"`
	ReadLockEnabled       *bool   `optional:"" help:"Whether read access is gated behind ReadLocked"`
	WriteLockEnabled      *bool   `optional:"" help:"Whether write access is gated behind WriteLocked"`
}

type aclCmd struct {
	Device                string `arg:"" required:"" type:"accessiblefile" help:"Path to SED device (e.g. /dev/nvme0)"`
	cmdutil.PasswordEmbed `embed:"" help:"Credential to authenticate with before querying"`
	SP                    string `optional:"" default:"locking" enum:"admin,locking" help:"SP the target object lives on"`
	Target                string `required:"" help:"Hex-encoded 8-byte UID of the object whose ACL is being queried"`
	Method                string `required:"" help:"Hex-encoded 8-byte MethodID the ACL is being queried for"`
}

// Run executes when the discover command is invoked.
func (d *discoverCmd) Run(ctx *context) error {
	t, err := tper.Open(d.Device)
	if err != nil {
		return fmt.Errorf("tper.Open: %v", err)
	}
	defer t.Close()

	d0, err := t.Discover()
	if err != nil {
		return fmt.Errorf("Discover: %v", err)
	}

	fmt.Printf("Device: %s\n", d.Device)
	features := metrics.SSCFeatures(d0)
	if len(features) == 0 {
		fmt.Println("No supported TCG Storage SSC advertised")
	} else {
		fmt.Println("Supported SSCs:")
		for _, f := range features {
			fmt.Printf("  - %s\n", f)
		}
	}

	if d.Debug {
		fmt.Println("Level0Discovery:")
		spew.Dump(d0)
		fmt.Println("Negotiated TPerProperties:")
		spew.Dump(t.Control.TPerProperties)
		fmt.Println("Negotiated HostProperties:")
		spew.Dump(t.Control.HostProperties)
	}
	return nil
}

// Run executes when the take-ownership command is invoked: it sets the
// SID credential from the MSID default, activates the Locking SP, and
// configures the global range so it comes up unlocked but lockable.
func (t *takeOwnershipCmd) Run(ctx *context) error {
	tp, err := tper.Open(t.Device)
	if err != nil {
		return fmt.Errorf("tper.Open: %v", err)
	}
	defer tp.Close()

	d0, err := tp.Discover()
	if err != nil {
		return fmt.Errorf("Discover: %v", err)
	}
	if d0.Locking == nil {
		return fmt.Errorf("device does not advertise the Locking feature")
	}
	if d0.Enterprise != nil {
		return fmt.Errorf("take-ownership of Enterprise SSC devices is not supported; authenticate BandMaster0 directly")
	}

	newHash, err := t.GenerateHash(tp.Core)
	if err != nil {
		return err
	}

	adminSession, err := tp.StartSession(uid.AdminSP, tper.MSIDAuthenticator{Authority: uid.AuthoritySID})
	if err != nil {
		return fmt.Errorf("AdminSP session: %v", err)
	}

	lcs, err := table.Admin_SP_GetLifeCycleState(adminSession, uid.LockingSP)
	if err != nil {
		adminSession.Close()
		return fmt.Errorf("Admin_SP_GetLifeCycleState: %v", err)
	}
	if lcs != table.ManufacturedInactive {
		adminSession.Close()
		return fmt.Errorf("Locking SP life cycle state is %s, expected %s", lcs, table.ManufacturedInactive)
	}

	if err := table.Admin_C_Pin_SID_SetPIN(adminSession, newHash); err != nil {
		adminSession.Close()
		return fmt.Errorf("Admin_C_Pin_SID_SetPIN: %v", err)
	}

	if err := acl.Activate(adminSession, uid.LockingSP); err != nil {
		adminSession.Close()
		return fmt.Errorf("Activate(LockingSP): %v", err)
	}
	if err := adminSession.Close(); err != nil {
		return fmt.Errorf("closing AdminSP session: %v", err)
	}

	lockingSession, err := tp.StartSession(uid.LockingSP, tper.PasswordAuthenticator{
		Authority: uid.LockingAuthorityAdmin1,
		Password:  newHash,
	})
	if err != nil {
		return fmt.Errorf("LockingSP session: %v", err)
	}
	defer lockingSession.Close()

	if err := table.ConfigureLockingRange(lockingSession); err != nil {
		return fmt.Errorf("ConfigureLockingRange: %v", err)
	}

	enabled := true
	if err := table.MBRControl_Set(lockingSession, &table.MBRControl{Done: &enabled}); err != nil {
		return fmt.Errorf("MBRControl_Set(Done): %v", err)
	}
	if err := table.MBRControl_Set(lockingSession, &table.MBRControl{Enable: &enabled}); err != nil {
		return fmt.Errorf("MBRControl_Set(Enable): %v", err)
	}

	fmt.Println("Ownership taken: SID and Admin1 now share the provided credential, Locking SP activated")
	return nil
}

// Run executes when the set-range command is invoked.
func (c *setRangeCmd) Run(ctx *context) error {
	if c.Start == nil && c.Length == nil && c.ReadLockEnabled == nil && c.WriteLockEnabled == nil {
		return fmt.Errorf("nothing to change: specify at least one of --start, --length, --read-lock-enabled, --write-lock-enabled")
	}

	tp, err := tper.Open(c.Device)
	if err != nil {
		return fmt.Errorf("tper.Open: %v", err)
	}
	defer tp.Close()

	d0, err := tp.Discover()
	if err != nil {
		return fmt.Errorf("Discover: %v", err)
	}

	sp := uid.LockingSP
	authority := uid.LockingAuthorityAdmin1
	if d0.Enterprise != nil {
		sp = uid.EnterpriseLockingSP
		authority = uid.LockingAuthorityBandMaster0
	}

	pwHash, err := c.GenerateHash(tp.Core)
	if err != nil {
		return err
	}

	s, err := tp.StartSession(sp, tper.PasswordAuthenticator{Authority: authority, Password: pwHash})
	if err != nil {
		return fmt.Errorf("locking SP session: %v", err)
	}
	defer s.Close()

	rows, err := table.Locking_Enumerate(s)
	if err != nil {
		return fmt.Errorf("Locking_Enumerate: %v", err)
	}
	if int(c.Range) >= len(rows) {
		return fmt.Errorf("range %d does not exist, device has %d", c.Range, len(rows))
	}

	lr := &table.LockingRow{UID: rows[c.Range]}
	lr.RangeStart = c.Start
	lr.RangeLength = c.Length
	lr.ReadLockEnabled = c.ReadLockEnabled
	lr.WriteLockEnabled = c.WriteLockEnabled

	if err := table.Locking_Set(s, lr); err != nil {
		return fmt.Errorf("Locking_Set: %v", err)
	}
	fmt.Printf("Range %d updated\n", c.Range)
	return nil
}

// Run executes when the acl command is invoked.
func (c *aclCmd) Run(ctx *context) error {
	target, err := parseUID(c.Target)
	if err != nil {
		return fmt.Errorf("--target: %v", err)
	}
	method, err := parseUID(c.Method)
	if err != nil {
		return fmt.Errorf("--method: %v", err)
	}

	tp, err := tper.Open(c.Device)
	if err != nil {
		return fmt.Errorf("tper.Open: %v", err)
	}
	defer tp.Close()

	sp := uid.AdminSP
	authority := uid.AuthoritySID
	if c.SP == "locking" {
		sp = uid.LockingSP
		authority = uid.LockingAuthorityAdmin1
	}

	pwHash, err := c.GenerateHash(tp.Core)
	if err != nil {
		return err
	}

	s, err := tp.StartSession(sp, tper.PasswordAuthenticator{Authority: authority, Password: pwHash})
	if err != nil {
		return fmt.Errorf("session: %v", err)
	}
	defer s.Close()

	entries, err := acl.GetACL(s, uid.InvokingID(target), uid.MethodID(method))
	if err != nil {
		return fmt.Errorf("GetACL: %v", err)
	}

	fmt.Printf("ACL for method %s on %s:\n", c.Method, c.Target)
	for _, e := range entries {
		fmt.Printf("  - %s\n", formatUID(e))
	}
	return nil
}

// parseUID decodes a hex-encoded 8-byte TCG UID as used on the wire
// for object, table and method identifiers.
func parseUID(s string) (uid.UID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return uid.UID{}, fmt.Errorf("invalid hex: %v", err)
	}
	if len(b) != 8 {
		return uid.UID{}, fmt.Errorf("want 8 bytes, got %d", len(b))
	}
	var u uid.UID
	copy(u[:], b)
	return u, nil
}

// formatUID renders u using its registered name when known, falling
// back to its raw hex encoding otherwise.
func formatUID(u uid.UID) string {
	if name, ok := uid.Authorities.ByUID(u); ok {
		return fmt.Sprintf("%s (%s)", name, hex.EncodeToString(u[:]))
	}
	return hex.EncodeToString(u[:])
}

// cli is the main command line interface struct required by the kong
// command line parser.
var cli struct {
	Discover      discoverCmd      `cmd:"" help:"Discover TCG Storage feature support and negotiated session properties"`
	TakeOwnership takeOwnershipCmd `cmd:"" help:"Take ownership of a device and activate the Locking SP"`
	SetRange      setRangeCmd      `cmd:"" help:"Configure a locking range's bounds and lock-enable flags"`
	ACL           aclCmd           `cmd:"" help:"Query the ACL governing a method call against an object"`
}
