package folder

import (
	"context"
	"fmt"
	"time"

	"github.com/arborhq/arbor/pkg/folder/acl"
	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

// Delete removes a folder and its subtree within the ambient transaction.
//
// Unless hard is set, the operation degrades to a relocation under the
// requestor's trash root when one exists and the folder is not already in
// it; the physical delete then happens when trash is emptied. Validation
// covers the entire subtree before anything is written, so a rejection
// leaves no partial state.
func (v *Validator) Delete(ctx context.Context, tx Tx, tenant, id int64, hard bool, p acl.Principal) (*Result, error) {
	node, err := tx.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if immutable(node) || node.Trash {
		return nil, folderrors.NewStructural(folderrors.CodeImmutableFolder, id,
			"folder cannot be deleted")
	}

	eff, err := v.effective(ctx, node, p)
	if err != nil {
		return nil, err
	}
	if !eff.Visible() {
		return nil, folderrors.NewNotVisible(id, p.UserID)
	}

	// Top-down order; reversing it later yields a leaf-first delete.
	subtree, err := v.collectDeletable(ctx, tx, node, p)
	if err != nil {
		return nil, err
	}

	if !hard {
		moved, res, err := v.trashDegrade(ctx, tx, node, p)
		if err != nil || moved {
			return res, err
		}
	}

	for i := len(subtree) - 1; i >= 0; i-- {
		n := subtree[i]
		if err := tx.Delete(ctx, tenant, n.ID); err != nil {
			return nil, err
		}
		v.invalidate(tx, tenant, n.ID)
	}
	if err := v.refreshSubfolderFlags(ctx, tx, tenant, node.Parent); err != nil {
		return nil, err
	}

	v.invalidate(tx, tenant, node.Parent)
	v.notify(tx, Event{Tenant: tenant, FolderID: id, Op: OpDelete})
	return &Result{Node: node}, nil
}

// collectDeletable gathers the subtree top-down and validates every node's
// deletability. A descendant the requestor cannot see blocks the whole
// operation with a distinct reason from "visible but not deletable".
func (v *Validator) collectDeletable(ctx context.Context, tx Tx, root *Node, p acl.Principal) ([]*Node, error) {
	var subtree []*Node
	queue := []*Node{root}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		if n != root {
			eff, err := v.effective(ctx, n, p)
			if err != nil {
				return nil, err
			}
			if !eff.Visible() {
				return nil, folderrors.NewHiddenSubfolder(n.ID, p.UserID)
			}
		}
		if n.Default || n.IsSystem() || n.Type == TypeShared {
			return nil, folderrors.NewStructural(folderrors.CodeImmutableFolder, n.ID,
				"subtree contains a protected folder")
		}
		if err := v.validateDeletable(ctx, n, p); err != nil {
			return nil, err
		}

		subtree = append(subtree, n)
		children, err := tx.Children(ctx, n.Tenant, n.ID)
		if err != nil {
			return nil, err
		}
		queue = append(queue, children...)
	}
	return subtree, nil
}

// validateDeletable applies the per-node delete policy: a structural right
// on the folder, then the content rule admin > own-objects-only >
// must-be-empty, delegated to the module's content store.
func (v *Validator) validateDeletable(ctx context.Context, n *Node, p acl.Principal) error {
	eff, err := v.effective(ctx, n, p)
	if err != nil {
		return err
	}
	if !eff.Admin && n.CreatedBy != p.UserID {
		return folderrors.NewPermissionDenied(folderrors.CodeNoDeleteAccess, n.ID, p.UserID)
	}

	store, err := v.content.For(n)
	if err != nil {
		return err
	}
	switch {
	case eff.CanDeleteAll():
		return nil
	case eff.CanDeleteOwn():
		foreign, err := store.ContainsForeignObjects(ctx, n.Tenant, n.ID, p.UserID)
		if err != nil {
			return folderrors.NewTransient("check foreign objects", err)
		}
		if foreign {
			return folderrors.NewContentBlocked(n.ID, p.UserID,
				"folder contains objects owned by other users")
		}
		return nil
	default:
		empty, err := store.IsEmpty(ctx, n.Tenant, n.ID)
		if err != nil {
			return folderrors.NewTransient("check folder emptiness", err)
		}
		if !empty {
			return folderrors.NewContentBlocked(n.ID, p.UserID,
				"folder is not empty")
		}
		return nil
	}
}

// trashDegrade relocates the node under the requestor's trash root instead
// of deleting it. Returns moved=false when no trash root exists or the
// node already sits inside it, in which case the caller falls back to a
// physical delete.
func (v *Validator) trashDegrade(ctx context.Context, tx Tx, node *Node, p acl.Principal) (bool, *Result, error) {
	tenant := node.Tenant

	trash, err := tx.TrashRoot(ctx, tenant, p.UserID)
	if err != nil {
		if folderrors.IsNotFound(err) {
			return false, nil, nil
		}
		return false, nil, err
	}

	inTrash, err := v.underAncestor(ctx, tx, tenant, node, trash.ID)
	if err != nil {
		return false, nil, err
	}
	if inTrash {
		return false, nil, nil
	}

	name, err := v.dedupeTrashName(ctx, tx, tenant, trash.ID, node.Name)
	if err != nil {
		return false, nil, err
	}
	if err := v.reservations.Claim(ctx, tx, tenant, trash.ID, name); err != nil {
		return false, nil, err
	}

	oldParent := node.Parent
	node.Parent = trash.ID
	node.Name = name
	node.ModifiedBy = p.UserID
	node.ModifiedAt = time.Now()
	if err := tx.Update(ctx, node); err != nil {
		_ = v.reservations.ReleaseInTx(ctx, tx, tenant, trash.ID, name)
		return false, nil, err
	}
	if err := v.refreshSubfolderFlags(ctx, tx, tenant, oldParent, trash.ID); err != nil {
		return false, nil, err
	}

	v.reservations.Release(ctx, tx, tenant, trash.ID, name)
	v.invalidate(tx, tenant, node.ID)
	v.invalidate(tx, tenant, oldParent)
	v.invalidate(tx, tenant, trash.ID)
	v.notify(tx, Event{Tenant: tenant, FolderID: node.ID, Op: OpDelete})

	return true, &Result{Node: node}, nil
}

// dedupeTrashName appends " (2)", " (3)", ... until the name is free under
// the trash root.
func (v *Validator) dedupeTrashName(ctx context.Context, tx Tx, tenant, trashID int64, name string) (string, error) {
	candidate := name
	for i := 2; ; i++ {
		_, err := tx.ChildByName(ctx, tenant, trashID, candidate)
		if folderrors.IsNotFound(err) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s (%d)", name, i)
	}
}

// underAncestor walks the parent chain and reports whether ancestorID lies
// above the node.
func (v *Validator) underAncestor(ctx context.Context, tx Tx, tenant int64, node *Node, ancestorID int64) (bool, error) {
	current := node.Parent
	for current != RootID {
		if current == ancestorID {
			return true, nil
		}
		parent, err := tx.Get(ctx, tenant, current)
		if err != nil {
			return false, err
		}
		current = parent.Parent
	}
	return false, nil
}
