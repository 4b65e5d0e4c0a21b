// Package authz is the authorization policy engine for the platform.
//
// Authorization model:
// - Platform staff bypass every check.
// - Cross-organization access is denied before roles are consulted.
// - Any authenticated same-organization actor may read.
// - Mutations are gated by a declarative role/action table.
//
// Authorize is a pure function: the decision depends only on its inputs.
package authz

// Role is a coarse-grained permission level assigned to a user.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
	RoleViewer  Role = "viewer"
)

// rank orders roles by privilege. Higher rank implies every permission of
// the ranks below it (the allow table is kept monotone over this order).
var rank = map[Role]int{
	RoleViewer:  1,
	RoleUser:    2,
	RoleManager: 3,
	RoleAdmin:   4,
	RoleOwner:   5,
}

// ValidRole returns true if the role name is recognised.
func ValidRole(r Role) bool {
	_, ok := rank[r]
	return ok
}

// Outranks returns true if r carries strictly more privilege than b.
func (r Role) Outranks(b Role) bool {
	return rank[r] > rank[b]
}

// Action is the kind of operation being attempted.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ResourceType identifies what kind of entity is being acted on.
type ResourceType string

const (
	ResourceOrganization ResourceType = "organization"
	ResourceUser         ResourceType = "user"
	ResourceCategory     ResourceType = "category"
	ResourceProduct      ResourceType = "product"
	ResourceProductImage ResourceType = "product_image"
	ResourceSubscription ResourceType = "subscription"
	ResourceUsage        ResourceType = "usage"
	ResourceFile         ResourceType = "file"
	ResourceAPIKey       ResourceType = "api_key"
	ResourceNotification ResourceType = "notification"
	ResourceActivityLog  ResourceType = "activity_log"
)

// Actor is the authenticated principal a request runs as.
type Actor struct {
	ID    string
	OrgID string
	Role  Role
	Staff bool // platform staff, not bound to a tenant
}

// Resource describes the target of an operation. OrgID is empty for
// collection-level operations (create, list), where tenancy is enforced by
// scoping the query rather than comparing an existing row.
type Resource struct {
	Type  ResourceType
	OrgID string
}

// Reason explains a denial.
type Reason string

const (
	ReasonTenantMismatch   Reason = "tenant mismatch"
	ReasonInsufficientRole Reason = "insufficient role"
	ReasonNotAuthenticated Reason = "not authenticated"
)

// Decision is the result of an authorization check.
type Decision struct {
	Allow  bool
	Reason Reason
}

var allowed = Decision{Allow: true}

func deny(r Reason) Decision { return Decision{Reason: r} }

// Authorize decides whether actor may perform action on res.
// Rule precedence, first match wins:
//  1. staff → allow
//  2. resource belongs to another organization → deny (tenant mismatch)
//  3. read → allow
//  4. role/action table → allow
//  5. deny (insufficient role)
//
// A tenant-mismatch denial must be surfaced to clients as NotFound, never
// Forbidden, so foreign-tenant resource existence is not leaked. That
// mapping lives in httpx; this package only reports the reason.
func Authorize(actor Actor, action Action, res Resource) Decision {
	if actor.Staff {
		return allowed
	}
	if actor.ID == "" || actor.OrgID == "" {
		return deny(ReasonNotAuthenticated)
	}
	if res.OrgID != "" && res.OrgID != actor.OrgID {
		return deny(ReasonTenantMismatch)
	}
	if action == ActionRead {
		return allowed
	}
	if roleAllows(actor.Role, action, res.Type) {
		return allowed
	}
	return deny(ReasonInsufficientRole)
}

// CanMutate is a convenience wrapper for collection-level mutations where
// no existing row is in hand (tenancy is enforced by stamping the actor's
// own organization on the new row).
func CanMutate(actor Actor, action Action, rt ResourceType) Decision {
	return Authorize(actor, action, Resource{Type: rt, OrgID: actor.OrgID})
}
