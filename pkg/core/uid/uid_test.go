package uid

import "testing"

func TestBase_TableRowForTable(t *testing.T) {
	got := Base_TableRowForTable(Locking_LockingTable)
	want := RowUID{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x08, 0x02}
	if got != want {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestRegistryByUIDNamedEntry(t *testing.T) {
	name, ok := Authorities.ByUID(UID(AuthoritySID))
	if !ok || name != "SID" {
		t.Fatalf("got (%q, %v), want (\"SID\", true)", name, ok)
	}
}

func TestRegistryByUIDUnknown(t *testing.T) {
	_, ok := Authorities.ByUID(UID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	if ok {
		t.Fatalf("expected no match for an unregistered UID")
	}
}

func TestRegistryByUIDRangeMember(t *testing.T) {
	// User1 is the range's first member, and must land on the same UID
	// the Locking SP uses as its well-known first non-admin authority.
	name, ok := Authorities.ByUID(UID{0x00, 0x00, 0x00, 0x09, 0x00, 0x03, 0x00, 0x01})
	if !ok || name != "User1" {
		t.Fatalf("got (%q, %v), want (\"User1\", true)", name, ok)
	}
}

func TestRegistryByNameRoundTripsRangeMember(t *testing.T) {
	u, ok := Authorities.ByName("User42")
	if !ok {
		t.Fatalf("ByName(User42) not found")
	}
	name, ok := Authorities.ByUID(u)
	if !ok || name != "User42" {
		t.Fatalf("round trip got (%q, %v), want (\"User42\", true)", name, ok)
	}
}

func TestRegistryByNameUnknown(t *testing.T) {
	if _, ok := Authorities.ByName("NotARealAuthority"); ok {
		t.Fatalf("expected no match for an unknown name")
	}
}

func TestRegistryByNameRejectsMalformedSuffix(t *testing.T) {
	if _, ok := Authorities.ByName("UserABC"); ok {
		t.Fatalf("non-numeric range member must not resolve")
	}
}
