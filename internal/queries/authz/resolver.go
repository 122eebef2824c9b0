// Package authz decides whether an actor may view, self-assign, or distribute
// a service-queue item. Three independent grant sources feed the decision:
// queue ownership, team-role headship, and explicit per-user grants. The
// decision itself is a pure function over a Grants snapshot fetched by the
// repository; superuser bypass happens before this package is consulted.
package authz

// Capability is a requested queue action.
type Capability int

const (
	CapabilityView Capability = iota
	CapabilitySelfAssign
	CapabilityDistribute
)

// Team roles that grant full queue management.
const (
	TeamRoleHead         = "head"
	TeamRoleDelegateHead = "delegate_head"
	TeamRoleMember       = "member"
)

// Permission tags gating each capability: a fine-grained tag plus the legacy
// umbrella tag that predates the split.
var capabilityPermissions = map[Capability][2]string{
	CapabilityView:       {"query_view_team_queue", "query.view"},
	CapabilitySelfAssign: {"query_item_assign_self_from_team_queue", "query.assign"},
	CapabilityDistribute: {"query_item_assign_team_member", "query.assign"},
}

// ExplicitGrant is an active per-(service, team, user) authorization row.
type ExplicitGrant struct {
	CanViewQueue    bool
	CanDistribute   bool
	CanAssignToSelf bool
}

// Grants is the snapshot of every grant source matching one
// (actor, service, team) triple.
type Grants struct {
	// OwnsQueue is true when an active queue mapping for (service, team)
	// names the actor as queue owner.
	OwnsQueue bool
	// TeamRole is the actor's active role in the item's team, empty when none.
	TeamRole string
	// Explicit is the actor's active explicit grant row, nil when none.
	Explicit *ExplicitGrant
}

// PermissionChecker is the opaque capability predicate of the user directory.
type PermissionChecker interface {
	Can(permission string) bool
}

// HoldsPermission checks the coarse permission gate for a capability: absence
// is an immediate failure regardless of any queue-level grant.
func HoldsPermission(actor PermissionChecker, capability Capability) bool {
	tags, ok := capabilityPermissions[capability]
	if !ok {
		return false
	}
	return actor.Can(tags[0]) || actor.Can(tags[1])
}

// Allowed decides the capability as the logical OR of the matching grant
// sources, after the permission gate.
func Allowed(actor PermissionChecker, capability Capability, grants Grants) bool {
	if !HoldsPermission(actor, capability) {
		return false
	}

	if grants.OwnsQueue {
		return true
	}

	if grants.TeamRole == TeamRoleHead || grants.TeamRole == TeamRoleDelegateHead {
		return true
	}

	if grants.Explicit == nil {
		return false
	}

	switch capability {
	case CapabilityView:
		return grants.Explicit.CanViewQueue
	case CapabilitySelfAssign:
		return grants.Explicit.CanAssignToSelf
	case CapabilityDistribute:
		return grants.Explicit.CanDistribute
	default:
		return false
	}
}

// ActedAs labels the role the actor exercised for audit metadata, by grant
// priority: owner, then team head, then delegate.
func ActedAs(grants Grants) string {
	if grants.OwnsQueue {
		return "owner"
	}
	if grants.TeamRole == TeamRoleHead {
		return "team_head"
	}
	return "delegate"
}
