package folder

import (
	"strings"

	"github.com/arborhq/arbor/pkg/folder/acl"
	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

// MaxNameLen is the maximum length of a folder display name in bytes.
const MaxNameLen = 255

// ValidateName validates a folder display name for create/rename/move.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return folderrors.NewStructural(folderrors.CodeInvalidName, 0, "folder name must not be empty")
	}
	if len(name) > MaxNameLen {
		return folderrors.NewStructural(folderrors.CodeInvalidName, 0, "folder name too long")
	}
	if strings.ContainsRune(name, '/') {
		return folderrors.NewStructural(folderrors.CodeInvalidName, 0, "folder name must not contain '/'")
	}
	return nil
}

// validateEntrySet checks the subject-level invariants every proposed
// permission set must satisfy: no duplicate subjects, no negative or
// system-marked subjects.
func validateEntrySet(folderID int64, entries []acl.Entry) error {
	users := make(map[int64]struct{}, len(entries))
	groups := make(map[int64]struct{}, len(entries))

	for _, e := range entries {
		if e.Subject < 0 {
			return folderrors.NewPermissionSet(folderrors.CodeInvalidEntity, folderID, e.Subject,
				"permission subject is not a valid entity")
		}
		if e.System {
			return folderrors.NewPermissionSet(folderrors.CodeInvalidEntity, folderID, e.Subject,
				"system permission entries are not editable")
		}

		if e.Group {
			if _, dup := groups[e.Subject]; dup {
				return folderrors.NewPermissionSet(folderrors.CodeDuplicateGroupPermission, folderID, e.Subject,
					"duplicate group in permission set")
			}
			groups[e.Subject] = struct{}{}
		} else {
			if _, dup := users[e.Subject]; dup {
				return folderrors.NewPermissionSet(folderrors.CodeDuplicateUserPermission, folderID, e.Subject,
					"duplicate user in permission set")
			}
			users[e.Subject] = struct{}{}
		}
	}
	return nil
}

// validateAdminInvariants enforces the admin-entry rules for a folder of
// the given type and creator. Private folders have exactly one admin, the
// owner, and never a group; every other mutable folder needs at least one
// admin entry.
func validateAdminInvariants(folderID int64, folderType Type, creator int64, entries []acl.Entry) error {
	admins := AdminEntries(entries)

	if len(admins) == 0 {
		return folderrors.NewPermissionSet(folderrors.CodeNoAdminPermission, folderID, 0,
			"permission set contains no folder admin")
	}

	if folderType != TypePrivate {
		return nil
	}

	if len(admins) > 1 {
		return folderrors.NewPermissionSet(folderrors.CodeMultipleAdminPermissions, folderID, admins[1].Subject,
			"private folders have exactly one admin")
	}
	admin := admins[0]
	if admin.Group {
		return folderrors.NewPermissionSet(folderrors.CodeGroupAdminOnPrivate, folderID, admin.Subject,
			"private folder admin must not be a group")
	}
	if admin.Subject != creator {
		return folderrors.NewPermissionSet(folderrors.CodeNonOwnerAdminOnPrivate, folderID, admin.Subject,
			"private folder admin must be the owner")
	}
	return nil
}

// restoreOwnerAdmin grants the owner full admin rights. An existing user
// entry for the owner is upgraded in place so the subject keeps a single
// entry; otherwise the admin entry is appended.
func restoreOwnerAdmin(entries []acl.Entry, owner int64) []acl.Entry {
	for i := range entries {
		if !entries[i].Group && entries[i].Subject == owner {
			entries[i] = ownerAdminEntry(owner)
			return entries
		}
	}
	return append(entries, ownerAdminEntry(owner))
}

// ownerAdminEntry builds the full-rights entry auto-granted to a folder's
// creator when a proposed set is missing an admin.
func ownerAdminEntry(owner int64) acl.Entry {
	return acl.Entry{
		Subject: owner,
		Folder:  acl.FolderCreateSubfolders,
		Read:    acl.LevelAdmin,
		Write:   acl.LevelAdmin,
		Delete:  acl.LevelAdmin,
		Admin:   true,
	}
}

// meaningful reports whether an entry grants any right worth notifying
// about in a permission delta.
func meaningful(e acl.Entry) bool {
	return e.Admin || e.Folder >= acl.FolderVisible ||
		e.Read > acl.LevelNone || e.Write > acl.LevelNone || e.Delete > acl.LevelNone
}
