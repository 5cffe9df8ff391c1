package folder

import (
	"context"
	"strings"
	"time"

	"github.com/arborhq/arbor/pkg/folder/acl"
	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

// Rename changes a folder's display name within the ambient transaction.
func (v *Validator) Rename(ctx context.Context, tx Tx, tenant, id int64, newName string, p acl.Principal) (*Result, error) {
	if err := ValidateName(newName); err != nil {
		return nil, err
	}

	node, err := tx.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if immutable(node) || node.Trash {
		return nil, folderrors.NewStructural(folderrors.CodeImmutableFolder, id,
			"folder cannot be renamed")
	}

	eff, err := v.effective(ctx, node, p)
	if err != nil {
		return nil, err
	}
	if !v.canRename(node, eff, p) {
		return nil, folderrors.NewPermissionDenied(folderrors.CodeNoRenameAccess, id, p.UserID)
	}

	if node.Name == newName {
		return &Result{Node: node}, nil
	}

	oldName := node.Name
	// A pure case change keeps the same reservation hash and cannot
	// collide with anything but the node itself, so claim and sibling
	// check are skipped.
	caseOnly := strings.EqualFold(oldName, newName)
	if !caseOnly {
		if err := v.checkSiblingName(ctx, tx, tenant, node.Parent, newName); err != nil {
			return nil, err
		}
		if err := v.reservations.Claim(ctx, tx, tenant, node.Parent, newName); err != nil {
			return nil, err
		}
	}

	node.Name = newName
	node.ModifiedBy = p.UserID
	node.ModifiedAt = time.Now()
	if err := tx.Update(ctx, node); err != nil {
		if !caseOnly {
			_ = v.reservations.ReleaseInTx(ctx, tx, tenant, node.Parent, newName)
		}
		return nil, err
	}

	if !caseOnly {
		v.reservations.Release(ctx, tx, tenant, node.Parent, newName)
		// A leftover claim on the old name (from a create racing this
		// rename's transaction) is dropped once the rename is durable.
		v.reservations.Release(ctx, tx, tenant, node.Parent, oldName)
	}
	v.invalidate(tx, tenant, id)
	v.invalidate(tx, tenant, node.Parent)
	v.notify(tx, Event{Tenant: tenant, FolderID: id, Op: OpRename})

	return &Result{Node: node}, nil
}

// canRename: admins always; otherwise the creator, provided their folder
// level still lets them shape structure below the parent.
func (v *Validator) canRename(node *Node, eff acl.Effective, p acl.Principal) bool {
	if eff.Admin {
		return true
	}
	return node.CreatedBy == p.UserID && eff.CanCreateSubfolders()
}
