package auth

import (
	"testing"
)

func contains(set []string, perm string) bool {
	for _, p := range set {
		if p == perm {
			return true
		}
	}
	return false
}

func TestDefaultPermissionsSupersets(t *testing.T) {
	// Walk the ladder from least to most privileged; each step must be a
	// strict superset of the previous one.
	ladder := []Role{RoleViewer, RoleUser, RoleManager, RoleAdmin, RoleSuperAdmin}
	prev := []string(nil)
	for _, role := range ladder {
		cur := DefaultPermissions(role)
		if len(cur) <= len(prev) {
			t.Fatalf("role %s has %d permissions, previous step had %d", role, len(cur), len(prev))
		}
		for _, p := range prev {
			if !contains(cur, p) {
				t.Fatalf("role %s missing %s inherited from lower role", role, p)
			}
		}
		prev = cur
	}
	if len(prev) != len(AllPermissions) {
		t.Fatalf("super_admin should carry all %d permissions, has %d", len(AllPermissions), len(prev))
	}
}

func TestDefaultPermissionsNoAliasing(t *testing.T) {
	set := DefaultPermissions(RoleViewer)
	for i := range set {
		set[i] = "mutated"
	}
	fresh := DefaultPermissions(RoleViewer)
	if contains(fresh, "mutated") {
		t.Fatal("mutating a returned set leaked into later derivations")
	}
	if !contains(DefaultPermissions(RoleUser), PermCompanyView) {
		t.Fatal("user set corrupted by viewer mutation")
	}
}

func TestDefaultPermissionsUnknownRole(t *testing.T) {
	if got := DefaultPermissions(Role("owner")); got != nil {
		t.Fatalf("expected nil for unknown role, got %v", got)
	}
}

func TestParseRole(t *testing.T) {
	for _, role := range Roles {
		parsed, err := ParseRole("  " + string(role) + " ")
		if err != nil {
			t.Fatalf("ParseRole(%s): %v", role, err)
		}
		if parsed != role {
			t.Fatalf("ParseRole(%s) = %s", role, parsed)
		}
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if got, err := ParseRole("ADMIN"); err != nil || got != RoleAdmin {
		t.Fatalf("ParseRole(ADMIN) = %s, %v", got, err)
	}
}

func TestHasPermission(t *testing.T) {
	identity := &Identity{Permissions: DefaultPermissions(RoleManager)}
	if !identity.HasPermission(PermExportData) {
		t.Fatal("manager should carry export.data")
	}
	if identity.HasPermission(PermCompanyDelete) {
		t.Fatal("manager should not carry company.delete")
	}
}
