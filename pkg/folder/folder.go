// Package folder implements the hierarchical folder tree: domain types,
// traversal, effective permission resolution, mutation validation and the
// name reservation mechanism that serializes concurrent sibling creation.
//
// All operations run inside a caller-managed transaction (Tx) obtained from
// a Backend; the package never opens its own transactions for mutations.
package folder

import (
	"time"

	"github.com/arborhq/arbor/pkg/folder/acl"
)

// Type is the logical classification of a folder node relative to the tree,
// not to a requestor: a Private folder shared with another user is still
// Private; "shared" as seen by the other user is a view-level concept.
type Type int

const (
	// TypePrivate folders belong to exactly one owner, who is their only
	// admin. They may be shared through additional non-admin entries.
	TypePrivate Type = iota + 1

	// TypePublic folders are visible to every subject granted an entry and
	// may have several admins.
	TypePublic

	// TypeShared marks the synthetic aggregation nodes presented below the
	// shared root. Shared nodes are never a mutation target.
	TypeShared

	// TypeSystem marks tenant-wide structural nodes (root, private root,
	// public root, ...) with fixed semantics.
	TypeSystem
)

// String returns a human-readable name for the folder type.
func (t Type) String() string {
	switch t {
	case TypePrivate:
		return "private"
	case TypePublic:
		return "public"
	case TypeShared:
		return "shared"
	case TypeSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Module is the content kind a folder holds.
type Module int

const (
	ModuleTask Module = iota + 1
	ModuleCalendar
	ModuleContact
	ModuleDocument

	// ModuleUnbound folders hold no objects themselves and exist purely as
	// structure between groupware folders.
	ModuleUnbound

	// ModuleSystem is reserved for the well-known system nodes.
	ModuleSystem
)

// String returns a human-readable name for the module.
func (m Module) String() string {
	switch m {
	case ModuleTask:
		return "task"
	case ModuleCalendar:
		return "calendar"
	case ModuleContact:
		return "contact"
	case ModuleDocument:
		return "document"
	case ModuleUnbound:
		return "unbound"
	case ModuleSystem:
		return "system"
	default:
		return "unknown"
	}
}

// ModuleSet is a capability mask over modules, supplied per principal by
// the capability resolver.
type ModuleSet uint32

// NewModuleSet builds a set from the given modules.
func NewModuleSet(modules ...Module) ModuleSet {
	var s ModuleSet
	for _, m := range modules {
		s |= 1 << uint(m)
	}
	return s
}

// AllModules is the mask granting access to every module.
var AllModules = NewModuleSet(ModuleTask, ModuleCalendar, ModuleContact, ModuleDocument, ModuleUnbound, ModuleSystem)

// Contains reports whether the set includes the module.
func (s ModuleSet) Contains(m Module) bool {
	return s&(1<<uint(m)) != 0
}

// Well-known system folder ids. Every id below MinUserFolderID belongs to
// the system range: sibling-name uniqueness is not enforced there and none
// of these nodes may be renamed, moved or deleted.
const (
	// RootID is the invisible tree root. It is also the parent-id sentinel
	// carried by the top-level system nodes.
	RootID int64 = 0

	// PrivateRootID aggregates each user's private folders.
	PrivateRootID int64 = 1

	// PublicRootID aggregates tenant-wide public folders.
	PublicRootID int64 = 2

	// SharedRootID aggregates foreign private folders shared with the
	// requestor. Nothing is ever created below it directly.
	SharedRootID int64 = 3

	// AddressBookID is the tenant-global address book. Its permission
	// envelope is fixed: only folder visibility may change.
	AddressBookID int64 = 6

	// InfostoreRootID aggregates document folders.
	InfostoreRootID int64 = 9

	// MinUserFolderID is the first id available to user-created folders.
	MinUserFolderID int64 = 20
)

// IsSystemID reports whether the id lies in the reserved system range.
func IsSystemID(id int64) bool {
	return id < MinUserFolderID
}

// Node is one folder in the tree. Permission entries are owned exclusively
// by their node; entry slices are never shared between nodes.
type Node struct {
	// ID is unique within the tenant scope.
	ID int64 `json:"id"`

	// Tenant scopes the node; ids from different tenants never collide by
	// contract, not by construction.
	Tenant int64 `json:"tenant"`

	// Parent is the structural parent id, RootID for top-level system
	// nodes.
	Parent int64 `json:"parent"`

	// Name is the display name, unique among siblings case-insensitively.
	Name string `json:"name"`

	Type   Type   `json:"type"`
	Module Module `json:"module"`

	// CreatedBy is the creator principal: for private folders, the owner
	// and only admin.
	CreatedBy  int64 `json:"created_by"`
	ModifiedBy int64 `json:"modified_by"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`

	// Default marks per-user folders created automatically (e.g.
	// "Calendar"). Default folders cannot be renamed, moved or deleted.
	Default bool `json:"default,omitempty"`

	// Trash marks a user's trash root, the target of soft deletes.
	Trash bool `json:"trash,omitempty"`

	// HasSubfolders is denormalized from the children relation.
	HasSubfolders bool `json:"has_subfolders,omitempty"`

	// Virtual marks synthetic nodes substituted into ancestor chains (the
	// "Shared by <owner>" aggregation points). Virtual nodes are never
	// persisted.
	Virtual bool `json:"virtual,omitempty"`

	// Meta is an opaque blob carried along untouched.
	Meta []byte `json:"meta,omitempty"`

	// Permissions are the stored ACL entries for this node.
	Permissions []acl.Entry `json:"permissions,omitempty"`
}

// Clone returns a deep copy of the node. Stores hand out clones so callers
// can never alias persisted state.
func (n *Node) Clone() *Node {
	c := *n
	if n.Meta != nil {
		c.Meta = append([]byte(nil), n.Meta...)
	}
	if n.Permissions != nil {
		c.Permissions = append([]acl.Entry(nil), n.Permissions...)
	}
	return &c
}

// IsSystem reports whether the node is a system node, by type or id range.
func (n *Node) IsSystem() bool {
	return n.Type == TypeSystem || IsSystemID(n.ID)
}

// AdminEntries returns the non-system entries carrying the admin flag.
func AdminEntries(entries []acl.Entry) []acl.Entry {
	var admins []acl.Entry
	for _, e := range entries {
		if e.Admin && !e.System {
			admins = append(admins, e)
		}
	}
	return admins
}
