package folder

import (
	"context"
	"time"

	"github.com/arborhq/arbor/pkg/folder/acl"
	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

// Move reparents a folder within the ambient transaction.
func (v *Validator) Move(ctx context.Context, tx Tx, tenant, id, newParentID int64, p acl.Principal) (*Result, error) {
	node, err := tx.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if immutable(node) || node.Trash {
		return nil, folderrors.NewStructural(folderrors.CodeImmutableFolder, id,
			"folder cannot be moved")
	}

	if newParentID == id {
		return nil, folderrors.NewStructural(folderrors.CodeCycle, id,
			"folder cannot be moved below itself")
	}
	if node.Parent == newParentID {
		return &Result{Node: node}, nil
	}

	newParent, err := tx.Get(ctx, tenant, newParentID)
	if err != nil {
		return nil, err
	}

	descendant, err := isDescendantTx(ctx, tx, tenant, []int64{id}, newParentID)
	if err != nil {
		return nil, err
	}
	if descendant {
		return nil, folderrors.NewStructural(folderrors.CodeCycle, id,
			"target parent lies below the folder being moved")
	}

	if !childTypeAllowed(newParent, node.Type) {
		return nil, folderrors.NewStructural(folderrors.CodeInvalidType, newParentID,
			"folder type not permitted below target parent")
	}
	if !childModuleAllowed(newParent, node.Module) {
		return nil, folderrors.NewStructural(folderrors.CodeInvalidModule, newParentID,
			"folder module not permitted below target parent")
	}

	oldParent, err := tx.Get(ctx, tenant, node.Parent)
	if err != nil {
		return nil, err
	}
	outEff, err := v.effective(ctx, oldParent, p)
	if err != nil {
		return nil, err
	}
	if !outEff.CanCreateSubfolders() {
		return nil, folderrors.NewPermissionDenied(folderrors.CodeNoMoveAccess, oldParent.ID, p.UserID)
	}
	inEff, err := v.effective(ctx, newParent, p)
	if err != nil {
		return nil, err
	}
	if !inEff.CanCreateSubfolders() {
		return nil, folderrors.NewPermissionDenied(folderrors.CodeNoCreateSubfolderAccess, newParentID, p.UserID)
	}

	if err := v.checkSiblingName(ctx, tx, tenant, newParentID, node.Name); err != nil {
		return nil, err
	}
	if err := v.reservations.Claim(ctx, tx, tenant, newParentID, node.Name); err != nil {
		return nil, err
	}

	oldParentID := node.Parent
	node.Parent = newParentID
	node.ModifiedBy = p.UserID
	node.ModifiedAt = time.Now()
	if err := tx.Update(ctx, node); err != nil {
		_ = v.reservations.ReleaseInTx(ctx, tx, tenant, newParentID, node.Name)
		return nil, err
	}
	if err := v.refreshSubfolderFlags(ctx, tx, tenant, oldParentID, newParentID); err != nil {
		return nil, err
	}

	v.reservations.Release(ctx, tx, tenant, newParentID, node.Name)
	v.invalidate(tx, tenant, id)
	v.invalidate(tx, tenant, oldParentID)
	v.invalidate(tx, tenant, newParentID)
	v.notify(tx, Event{Tenant: tenant, FolderID: id, Op: OpMove})

	return &Result{Node: node}, nil
}

// refreshSubfolderFlags re-derives the denormalized hasSubfolders flags of
// the two parents after a reparent.
func (v *Validator) refreshSubfolderFlags(ctx context.Context, tx Tx, tenant int64, parents ...int64) error {
	for _, parentID := range parents {
		if parentID == RootID {
			continue
		}
		parent, err := tx.Get(ctx, tenant, parentID)
		if err != nil {
			return err
		}
		children, err := tx.Children(ctx, tenant, parentID)
		if err != nil {
			return err
		}
		has := len(children) > 0
		if parent.HasSubfolders == has {
			continue
		}
		parent.HasSubfolders = has
		if err := tx.Update(ctx, parent); err != nil {
			return err
		}
	}
	return nil
}
