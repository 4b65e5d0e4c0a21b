package authz

// grant is one row of the allow table: the minimum role needed for an
// action on a resource type. Roles above the minimum inherit the grant,
// which keeps the table monotone over the role hierarchy by construction.
type grant struct {
	action  Action
	minRole Role
}

// grants maps resource types to their mutation rules. Reads are handled
// before the table is consulted, so only create/update/delete appear here.
// A missing (type, action) pair means owner-only.
var grants = map[ResourceType][]grant{
	ResourceUser: {
		{ActionCreate, RoleAdmin},
		{ActionUpdate, RoleAdmin},
		{ActionDelete, RoleAdmin},
	},
	ResourceCategory: {
		{ActionCreate, RoleManager},
		{ActionUpdate, RoleManager},
		{ActionDelete, RoleAdmin},
	},
	ResourceProduct: {
		{ActionCreate, RoleManager},
		{ActionUpdate, RoleManager},
		{ActionDelete, RoleAdmin},
	},
	ResourceProductImage: {
		{ActionCreate, RoleManager},
		{ActionUpdate, RoleManager},
		{ActionDelete, RoleManager},
	},
	ResourceSubscription: {
		{ActionCreate, RoleAdmin},
		{ActionUpdate, RoleAdmin},
		{ActionDelete, RoleAdmin},
	},
	ResourceFile: {
		{ActionCreate, RoleUser},
		{ActionUpdate, RoleManager},
		{ActionDelete, RoleAdmin},
	},
	ResourceAPIKey: {
		{ActionCreate, RoleAdmin},
		{ActionUpdate, RoleAdmin},
		{ActionDelete, RoleAdmin},
	},
	ResourceNotification: {
		// Marking your own notification read is an update.
		{ActionUpdate, RoleViewer},
		{ActionDelete, RoleUser},
	},
	ResourceActivityLog: {
		// Audit records are append-only system artefacts; admins may prune.
		{ActionDelete, RoleAdmin},
	},
	ResourceOrganization: {
		{ActionUpdate, RoleOwner},
	},
}

// roleAllows consults the table. Owners pass everything.
func roleAllows(role Role, action Action, rt ResourceType) bool {
	if role == RoleOwner {
		return true
	}
	for _, g := range grants[rt] {
		if g.action == action && rank[role] >= rank[g.minRole] {
			return true
		}
	}
	return false
}
