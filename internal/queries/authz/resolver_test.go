package authz

import "testing"

type permSet map[string]bool

func (p permSet) Can(permission string) bool { return p[permission] }

var allQueuePerms = permSet{
	"query_view_team_queue":                  true,
	"query_item_assign_self_from_team_queue": true,
	"query_item_assign_team_member":          true,
}

func TestPermissionGateBlocksEverything(t *testing.T) {
	grants := Grants{OwnsQueue: true, TeamRole: TeamRoleHead}

	for _, capability := range []Capability{CapabilityView, CapabilitySelfAssign, CapabilityDistribute} {
		if Allowed(permSet{}, capability, grants) {
			t.Errorf("capability %d allowed without the gating permission", capability)
		}
	}
}

func TestLegacyUmbrellaPermissionPassesGate(t *testing.T) {
	legacy := permSet{"query.view": true, "query.assign": true}
	grants := Grants{OwnsQueue: true}

	for _, capability := range []Capability{CapabilityView, CapabilitySelfAssign, CapabilityDistribute} {
		if !Allowed(legacy, capability, grants) {
			t.Errorf("capability %d should pass via the legacy umbrella permission", capability)
		}
	}
}

func TestOwnerPathGrantsEverything(t *testing.T) {
	grants := Grants{OwnsQueue: true}
	for _, capability := range []Capability{CapabilityView, CapabilitySelfAssign, CapabilityDistribute} {
		if !Allowed(allQueuePerms, capability, grants) {
			t.Errorf("owner path should grant capability %d", capability)
		}
	}
}

func TestTeamHeadPathGrantsEverything(t *testing.T) {
	for _, role := range []string{TeamRoleHead, TeamRoleDelegateHead} {
		grants := Grants{TeamRole: role}
		for _, capability := range []Capability{CapabilityView, CapabilitySelfAssign, CapabilityDistribute} {
			if !Allowed(allQueuePerms, capability, grants) {
				t.Errorf("role %s should grant capability %d", role, capability)
			}
		}
	}

	if Allowed(allQueuePerms, CapabilityDistribute, Grants{TeamRole: TeamRoleMember}) {
		t.Error("plain member role must not grant distribute")
	}
}

func TestExplicitGrantBooleansAreIndependent(t *testing.T) {
	grants := Grants{Explicit: &ExplicitGrant{CanViewQueue: true, CanDistribute: false, CanAssignToSelf: true}}

	if !Allowed(allQueuePerms, CapabilityView, grants) {
		t.Error("explicit view grant should allow view")
	}
	if !Allowed(allQueuePerms, CapabilitySelfAssign, grants) {
		t.Error("explicit self-assign grant should allow self-assign")
	}
	if Allowed(allQueuePerms, CapabilityDistribute, grants) {
		t.Error("view-only explicit grant must not allow distribute")
	}
}

func TestNoGrantSourceFails(t *testing.T) {
	if Allowed(allQueuePerms, CapabilityView, Grants{}) {
		t.Error("no matching grant source should fail authorization")
	}
}

func TestActedAsPriority(t *testing.T) {
	cases := []struct {
		name   string
		grants Grants
		want   string
	}{
		{"owner beats head", Grants{OwnsQueue: true, TeamRole: TeamRoleHead}, "owner"},
		{"head beats delegate", Grants{TeamRole: TeamRoleHead, Explicit: &ExplicitGrant{}}, "team_head"},
		{"delegate head labels delegate", Grants{TeamRole: TeamRoleDelegateHead}, "delegate"},
		{"explicit grant labels delegate", Grants{Explicit: &ExplicitGrant{CanDistribute: true}}, "delegate"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ActedAs(tc.grants); got != tc.want {
				t.Errorf("ActedAs = %q, want %q", got, tc.want)
			}
		})
	}
}
