package folder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/arborhq/arbor/pkg/folder/acl"
	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

// UpdatePermissionsRequest replaces a folder's permission entry set.
type UpdatePermissionsRequest struct {
	Tenant   int64
	FolderID int64

	// Entries is the full proposed set. Stored system entries survive the
	// replacement untouched; proposing one is rejected.
	Entries []acl.Entry

	// HandDown applies the set to the entire subtree. Descendants whose
	// own invariants reject the set are skipped with a warning, not
	// failed.
	HandDown bool
}

// UpdatePermissions validates and persists a permission set replacement
// within the ambient transaction. The result carries the delta of
// principals gaining or losing meaningful rights, for notification by the
// caller.
func (v *Validator) UpdatePermissions(ctx context.Context, tx Tx, req UpdatePermissionsRequest, p acl.Principal) (*Result, error) {
	node, err := tx.Get(ctx, req.Tenant, req.FolderID)
	if err != nil {
		return nil, err
	}
	if node.Virtual || node.Type == TypeShared {
		return nil, folderrors.NewStructural(folderrors.CodeImmutableFolder, req.FolderID,
			"permissions on this folder are fixed")
	}

	eff, err := v.effective(ctx, node, p)
	if err != nil {
		return nil, err
	}
	if !eff.Admin {
		return nil, folderrors.NewPermissionDenied(folderrors.CodeNoAdminAccess, req.FolderID, p.UserID)
	}

	if err := validateEntrySet(req.FolderID, req.Entries); err != nil {
		return nil, err
	}
	if err := v.verifySubjects(ctx, req.FolderID, req.Entries); err != nil {
		return nil, err
	}
	if err := v.validateEntrySetFor(ctx, node, req.Entries, p); err != nil {
		return nil, err
	}

	final := withSystemEntries(node, req.Entries)

	delta, err := v.permissionDelta(ctx, node.Permissions, final)
	if err != nil {
		return nil, err
	}

	if err := tx.ReplacePermissions(ctx, req.Tenant, req.FolderID, final); err != nil {
		return nil, err
	}
	node.Permissions = final
	node.ModifiedBy = p.UserID
	node.ModifiedAt = time.Now()
	if err := tx.Update(ctx, node); err != nil {
		return nil, err
	}

	var warnings []Warning
	if req.HandDown {
		warnings, err = v.handDown(ctx, tx, node, req.Entries, p)
		if err != nil {
			return nil, err
		}
	}

	v.invalidate(tx, req.Tenant, req.FolderID)
	v.notify(tx, Event{Tenant: req.Tenant, FolderID: req.FolderID, Op: OpUpdatePermissions, Delta: delta})

	return &Result{Node: node, Warnings: warnings, Delta: delta}, nil
}

// validateEntrySetFor applies the node-shape-dependent rules: admin
// invariants for regular nodes, the fixed envelope for well-known system
// nodes, and the sharing gate for private folders.
func (v *Validator) validateEntrySetFor(ctx context.Context, node *Node, entries []acl.Entry, p acl.Principal) error {
	if node.IsSystem() {
		return v.validateSystemEnvelope(ctx, node, entries, p)
	}

	if err := validateAdminInvariants(node.ID, node.Type, node.CreatedBy, entries); err != nil {
		return err
	}

	if node.Type == TypePrivate {
		full, err := v.caps.FullSharedFolderAccess(ctx, p.UserID)
		if err != nil {
			return folderrors.NewTransient("resolve shared folder capability", err)
		}
		if !full {
			for _, e := range entries {
				if !e.Group && e.Subject == node.CreatedBy {
					continue
				}
				if meaningful(e) {
					return folderrors.NewPermissionDenied(folderrors.CodeNoShareAccess, node.ID, p.UserID)
				}
			}
		}
	}
	return nil
}

// validateSystemEnvelope enforces the narrow allowed-permission shape of
// well-known system nodes. Only the global address book is editable at
// all, and only in its folder-visibility dimension; the tenant's
// designated admin subject is exempt.
func (v *Validator) validateSystemEnvelope(ctx context.Context, node *Node, entries []acl.Entry, p acl.Principal) error {
	if node.ID != AddressBookID {
		return folderrors.NewStructural(folderrors.CodeImmutableFolder, node.ID,
			"system folder permissions are fixed")
	}

	admin, err := v.caps.TenantAdmin(ctx, node.Tenant)
	if err != nil {
		return folderrors.NewTransient("resolve tenant admin", err)
	}
	if p.UserID == admin {
		return nil
	}

	maxWrite := acl.LevelNone
	if v.cfg.AllowInternalUserEdit {
		maxWrite = acl.LevelOwn
	}
	for _, e := range entries {
		if e.Admin || e.Delete > acl.LevelNone || e.Write > maxWrite || e.Read > acl.LevelAll {
			return folderrors.NewPermissionSet(folderrors.CodeSystemPermissionEnvelope, node.ID, e.Subject,
				"entry exceeds the address book permission envelope")
		}
	}
	return nil
}

// withSystemEntries merges the stored system pseudo-grants back into a
// proposed set. They are operation-attached and survive every update.
func withSystemEntries(node *Node, entries []acl.Entry) []acl.Entry {
	final := append([]acl.Entry(nil), entries...)
	for _, e := range node.Permissions {
		if e.System {
			final = append(final, e)
		}
	}
	return final
}

// handDown applies the proposed set to every descendant, each validated
// independently against its own type and creator. Failures skip the
// descendant with a warning; the hand-down never aborts a committed root
// update.
func (v *Validator) handDown(ctx context.Context, tx Tx, root *Node, entries []acl.Entry, p acl.Principal) ([]Warning, error) {
	var warnings []Warning
	queue := []int64{root.ID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		children, err := tx.Children(ctx, root.Tenant, id)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			queue = append(queue, child.ID)

			if reason := v.handDownBlocked(ctx, child, entries, p); reason != "" {
				warnings = append(warnings, Warning{
					Code:     WarningHandDownSkipped,
					Message:  fmt.Sprintf("subfolder skipped: %s", reason),
					FolderID: child.ID,
				})
				continue
			}

			final := withSystemEntries(child, entries)
			if err := tx.ReplacePermissions(ctx, root.Tenant, child.ID, final); err != nil {
				return nil, err
			}
			child.Permissions = final
			child.ModifiedBy = p.UserID
			child.ModifiedAt = time.Now()
			if err := tx.Update(ctx, child); err != nil {
				return nil, err
			}
			v.invalidate(tx, root.Tenant, child.ID)
		}
	}
	return warnings, nil
}

// handDownBlocked reports why a descendant must be skipped, or "" when the
// set may be applied to it.
func (v *Validator) handDownBlocked(ctx context.Context, child *Node, entries []acl.Entry, p acl.Principal) string {
	eff, err := v.effective(ctx, child, p)
	if err != nil || !eff.Admin {
		return "no admin access"
	}
	if child.IsSystem() || child.Type == TypeShared || child.Virtual {
		return "permissions are fixed"
	}
	if err := v.validateEntrySetFor(ctx, child, entries, p); err != nil {
		return err.Error()
	}
	return ""
}

// permissionDelta computes the principals gaining or losing meaningful
// rights between two entry sets. Group entries are expanded to member
// principals; a group that no longer resolves contributes nothing.
func (v *Validator) permissionDelta(ctx context.Context, before, after []acl.Entry) (*Delta, error) {
	prev := v.meaningfulPrincipals(ctx, before)
	next := v.meaningfulPrincipals(ctx, after)

	delta := &Delta{}
	for id := range next {
		if _, ok := prev[id]; !ok {
			delta.Gained = append(delta.Gained, id)
		}
	}
	for id := range prev {
		if _, ok := next[id]; !ok {
			delta.Lost = append(delta.Lost, id)
		}
	}
	sort.Slice(delta.Gained, func(i, j int) bool { return delta.Gained[i] < delta.Gained[j] })
	sort.Slice(delta.Lost, func(i, j int) bool { return delta.Lost[i] < delta.Lost[j] })
	return delta, nil
}

// meaningfulPrincipals expands an entry set to the principal ids holding
// meaningful rights. Group resolution fails soft.
func (v *Validator) meaningfulPrincipals(ctx context.Context, entries []acl.Entry) map[int64]struct{} {
	principals := make(map[int64]struct{})
	for _, e := range entries {
		if !meaningful(e) {
			continue
		}
		if !e.Group {
			principals[e.Subject] = struct{}{}
			continue
		}
		members, err := v.groups.Members(ctx, e.Subject)
		if err != nil {
			continue
		}
		for _, m := range members {
			principals[m] = struct{}{}
		}
	}
	return principals
}
