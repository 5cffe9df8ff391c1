package folder

import "context"

// Config carries the recognized behavior switches, passed explicitly into
// Tree and Validator construction. There is no process-wide mutable state.
type Config struct {
	// EnableFolderCache keeps a small read cache of nodes in the Tree,
	// invalidated on every mutation.
	EnableFolderCache bool

	// EnableSharedFolderCaching extends the cache to foreign private nodes
	// reached through shares. Off by default: share revocations would
	// otherwise be visible only after cache expiry.
	EnableSharedFolderCaching bool

	// AllowInternalUserEdit widens the global address book permission
	// envelope to admit own-object write grants for ordinary subjects.
	AllowInternalUserEdit bool
}

// GroupResolver expands a group id into its member principal ids.
// Resolution fails soft: a lookup error is treated as an empty group by
// callers, never as an aborted operation.
type GroupResolver interface {
	Members(ctx context.Context, groupID int64) ([]int64, error)
}

// SubjectResolver reports whether a subject id resolves to a known user or
// group. Optional: a nil resolver limits permission subject validation to
// structural checks.
type SubjectResolver interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	GroupExists(ctx context.Context, groupID int64) (bool, error)
}

// CapabilityResolver supplies the account-level capabilities that clamp
// folder permissions.
type CapabilityResolver interface {
	// AccessibleModules returns the modules the user's account may touch
	// at all. Folder permissions never widen this mask.
	AccessibleModules(ctx context.Context, userID int64) (ModuleSet, error)

	// FullSharedFolderAccess reports whether the user may share private
	// folders with other subjects.
	FullSharedFolderAccess(ctx context.Context, userID int64) (bool, error)

	// TenantAdmin returns the designated super-admin subject of a tenant.
	TenantAdmin(ctx context.Context, tenant int64) (int64, error)
}

// Op names a completed mutation in a notification event.
type Op string

const (
	OpCreate            Op = "create"
	OpRename            Op = "rename"
	OpMove              Op = "move"
	OpDelete            Op = "delete"
	OpUpdatePermissions Op = "update-permissions"
)

// Event describes a committed mutation for downstream listeners (cache
// invalidation, guest-cleanup scheduling).
type Event struct {
	Tenant   int64
	FolderID int64
	Op       Op

	// Delta lists the principals gaining or losing meaningful rights, for
	// permission updates. Nil for purely structural events.
	Delta *Delta
}

// NotificationSink receives post-mutation events. Implementations must not
// block: the validator dispatches events after commit and never awaits
// them.
type NotificationSink interface {
	Notify(event Event)
}

// Delta is the set of principals whose meaningful rights changed in a
// permission update. Group entries are expanded to member principals where
// the group still resolves.
type Delta struct {
	Gained []int64
	Lost   []int64
}

// Empty reports whether the delta carries no changes.
func (d *Delta) Empty() bool {
	return d == nil || (len(d.Gained) == 0 && len(d.Lost) == 0)
}
