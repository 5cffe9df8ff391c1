// Package acl implements per-folder access control entries and the
// resolution of a principal's effective permission on a folder node.
//
// This package is storage-agnostic: it has no dependencies on SQL or
// internal store packages. All types use Go primitives and are
// JSON-serializable for persistence in metadata backends.
package acl

import "fmt"

// Level is the ordinal permission level for object access within a folder.
// Levels are strictly ordered: None < Own < All < Admin. Resolution takes
// the pointwise maximum across all applicable entries.
type Level int

const (
	// LevelNone grants no access to objects in the folder.
	LevelNone Level = iota

	// LevelOwn grants access to objects created by the subject.
	LevelOwn

	// LevelAll grants access to all objects in the folder.
	LevelAll

	// LevelAdmin grants full object access regardless of ownership.
	LevelAdmin
)

// FolderLevel is the ordinal for folder-level visibility and structural
// rights. It has its own, smaller ordinal set, separate from object levels.
type FolderLevel int

const (
	// FolderNone hides the folder entirely.
	FolderNone FolderLevel = iota

	// FolderVisible makes the folder appear in listings.
	FolderVisible

	// FolderCreateObjects additionally permits creating objects inside.
	FolderCreateObjects

	// FolderCreateSubfolders additionally permits creating subfolders.
	FolderCreateSubfolders
)

// String returns a human-readable name for an object level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelOwn:
		return "own"
	case LevelAll:
		return "all"
	case LevelAdmin:
		return "admin"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// String returns a human-readable name for a folder level.
func (l FolderLevel) String() string {
	switch l {
	case FolderNone:
		return "none"
	case FolderVisible:
		return "visible"
	case FolderCreateObjects:
		return "create-objects"
	case FolderCreateSubfolders:
		return "create-subfolders"
	default:
		return fmt.Sprintf("folder-level(%d)", int(l))
	}
}

// Entry is one stored permission row on a folder node. At most one entry
// per subject per node; duplicates within one update are rejected by the
// validator.
type Entry struct {
	// Subject is the user or group id the entry applies to.
	Subject int64 `json:"subject"`

	// Group disambiguates the subject: true means Subject is a group id.
	Group bool `json:"group,omitempty"`

	// Folder is the folder-visibility level.
	Folder FolderLevel `json:"folder"`

	// Read, Write and Delete are the object access levels.
	Read   Level `json:"read"`
	Write  Level `json:"write"`
	Delete Level `json:"delete"`

	// Admin marks the subject as a folder administrator.
	Admin bool `json:"admin,omitempty"`

	// System marks built-in, operation-attached pseudo-grants that normal
	// permission updates may not touch.
	System bool `json:"system,omitempty"`
}

// Effective is the resolved permission of one principal on one folder node.
// It is derived, never persisted; every access recomputes it.
type Effective struct {
	Folder FolderLevel
	Read   Level
	Write  Level
	Delete Level
	Admin  bool
}

// NoAccess is the zero effective permission. It is what resolution yields
// for an empty entry set, a non-matching principal, or a module outside the
// principal's capability mask.
var NoAccess = Effective{}

// Visible reports whether the folder appears at all for the principal.
func (e Effective) Visible() bool {
	return e.Admin || e.Folder >= FolderVisible
}

// CanCreateObjects reports whether objects may be created in the folder.
func (e Effective) CanCreateObjects() bool {
	return e.Admin || e.Folder >= FolderCreateObjects
}

// CanCreateSubfolders reports whether subfolders may be created.
func (e Effective) CanCreateSubfolders() bool {
	return e.Admin || e.Folder >= FolderCreateSubfolders
}

// CanReadAll reports whether all objects in the folder are readable.
func (e Effective) CanReadAll() bool {
	return e.Admin || e.Read >= LevelAll
}

// CanDeleteAll reports whether all objects in the folder are deletable.
func (e Effective) CanDeleteAll() bool {
	return e.Admin || e.Delete >= LevelAll
}

// CanDeleteOwn reports whether objects created by the principal are
// deletable.
func (e Effective) CanDeleteOwn() bool {
	return e.Admin || e.Delete >= LevelOwn
}

// Principal is the requesting identity: a user id plus the ids of the
// groups the user belongs to. Group membership is supplied by the caller;
// resolution never performs lookups.
type Principal struct {
	UserID int64
	Groups []int64
}

// Member reports whether the principal belongs to the given group.
func (p Principal) Member(groupID int64) bool {
	for _, g := range p.Groups {
		if g == groupID {
			return true
		}
	}
	return false
}
