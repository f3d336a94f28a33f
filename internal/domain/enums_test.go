package domain

import "testing"

func TestCanManage_HierarchyOrder(t *testing.T) {
	cases := []struct {
		name string
		a, b RoleName
		want bool
	}{
		{"owner admin manages reseller admin", RoleOwnerAdmin, RoleResellerAdmin, true},
		{"owner admin manages agent", RoleOwnerAdmin, RoleAgent, true},
		{"reseller admin manages tenant admin", RoleResellerAdmin, RoleTenantAdmin, true},
		{"agent cannot manage tenant admin", RoleAgent, RoleTenantAdmin, false},
		{"read only cannot manage anyone", RoleReadOnly, RoleAgent, false},
		{"role cannot manage itself", RoleTenantAdmin, RoleTenantAdmin, false},
		{"unknown role never manages", RoleName("Unknown"), RoleAgent, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanManage(tc.a, tc.b); got != tc.want {
				t.Errorf("CanManage(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

// TestCanManage_MatchesSystemRoleNames guards against the two lists
// (SystemRoleNames in role.go, roleWeight here) drifting apart again —
// every system role name must carry a hierarchy weight.
func TestCanManage_MatchesSystemRoleNames(t *testing.T) {
	for name := range SystemRoleNames {
		if _, ok := roleWeight[RoleName(name)]; !ok {
			t.Errorf("system role %q has no roleWeight entry, CanManage would always reject it", name)
		}
	}
}
