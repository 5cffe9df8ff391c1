package folder

import (
	"context"
	"time"

	"github.com/arborhq/arbor/pkg/folder/acl"
	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

// CreateRequest describes a new folder below an existing parent.
type CreateRequest struct {
	Tenant int64
	Parent int64
	Name   string
	Type   Type
	Module Module

	// Default marks the folder as an auto-created per-user default.
	Default bool

	Meta []byte

	// Permissions is the proposed entry set. An empty set on a private or
	// default folder is repaired with an auto-granted owner admin entry.
	Permissions []acl.Entry
}

// Create validates and persists a new folder within the ambient
// transaction. The returned node carries its assigned id.
func (v *Validator) Create(ctx context.Context, tx Tx, req CreateRequest, p acl.Principal) (*Result, error) {
	if err := ValidateName(req.Name); err != nil {
		return nil, err
	}

	parent, err := tx.Get(ctx, req.Tenant, req.Parent)
	if err != nil {
		return nil, err
	}

	eff, err := v.effective(ctx, parent, p)
	if err != nil {
		return nil, err
	}
	if !eff.CanCreateSubfolders() {
		return nil, folderrors.NewPermissionDenied(folderrors.CodeNoCreateSubfolderAccess, parent.ID, p.UserID)
	}

	if !childTypeAllowed(parent, req.Type) {
		return nil, folderrors.NewStructural(folderrors.CodeInvalidType, parent.ID,
			"folder type not permitted below this parent")
	}
	if !childModuleAllowed(parent, req.Module) {
		return nil, folderrors.NewStructural(folderrors.CodeInvalidModule, parent.ID,
			"folder module not permitted below this parent")
	}

	mask, err := v.caps.AccessibleModules(ctx, p.UserID)
	if err != nil {
		return nil, folderrors.NewTransient("resolve module capabilities", err)
	}
	if !mask.Contains(req.Module) {
		return nil, folderrors.NewPermissionDenied(folderrors.CodeNoModuleAccess, parent.ID, p.UserID)
	}

	entries := append([]acl.Entry(nil), req.Permissions...)
	if err := validateEntrySet(0, entries); err != nil {
		return nil, err
	}
	if err := v.verifySubjects(ctx, 0, entries); err != nil {
		return nil, err
	}

	var warnings []Warning
	if len(AdminEntries(entries)) == 0 && (req.Type == TypePrivate || req.Default) {
		// Private and default folders must keep their owner as admin;
		// a missing admin entry is repaired, not rejected.
		entries = restoreOwnerAdmin(entries, p.UserID)
		warnings = append(warnings, Warning{
			Code:    WarningAdminRestored,
			Message: "admin restored for owner",
		})
	}
	if err := validateAdminInvariants(0, req.Type, p.UserID, entries); err != nil {
		return nil, err
	}

	if err := v.checkSiblingName(ctx, tx, req.Tenant, req.Parent, req.Name); err != nil {
		return nil, err
	}
	if err := v.reservations.Claim(ctx, tx, req.Tenant, req.Parent, req.Name); err != nil {
		return nil, err
	}

	now := time.Now()
	node := &Node{
		Tenant:      req.Tenant,
		Parent:      req.Parent,
		Name:        req.Name,
		Type:        req.Type,
		Module:      req.Module,
		CreatedBy:   p.UserID,
		ModifiedBy:  p.UserID,
		CreatedAt:   now,
		ModifiedAt:  now,
		Default:     req.Default,
		Meta:        req.Meta,
		Permissions: entries,
	}
	if err := node.validateInsertable(); err != nil {
		_ = v.reservations.ReleaseInTx(ctx, tx, req.Tenant, req.Parent, req.Name)
		return nil, err
	}
	if err := tx.Insert(ctx, node); err != nil {
		_ = v.reservations.ReleaseInTx(ctx, tx, req.Tenant, req.Parent, req.Name)
		return nil, err
	}

	v.reservations.Release(ctx, tx, req.Tenant, req.Parent, req.Name)
	v.invalidate(tx, req.Tenant, req.Parent)
	v.notify(tx, Event{Tenant: req.Tenant, FolderID: node.ID, Op: OpCreate})

	return &Result{Node: node, Warnings: warnings}, nil
}

// checkSiblingName rejects a name already taken by an existing sibling.
// The reservation claim covers the concurrent case; this covers the
// already-persisted one. System parents are exempt, matching the claim:
// every user keeps identically named default folders below them.
func (v *Validator) checkSiblingName(ctx context.Context, tx Tx, tenant, parent int64, name string) error {
	if IsSystemID(parent) {
		return nil
	}
	existing, err := tx.ChildByName(ctx, tenant, parent, name)
	if err != nil {
		if folderrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing != nil {
		return folderrors.NewDuplicateName(parent, name)
	}
	return nil
}

// invalidate schedules a cache eviction for after commit. Evicting any
// earlier would let a concurrent reader re-populate the cache from
// pre-transaction state.
func (v *Validator) invalidate(tx Tx, tenant, id int64) {
	tx.Defer(func() {
		v.tree.Invalidate(tenant, id)
	})
}

// validateInsertable is a last structural sanity gate before Insert.
func (n *Node) validateInsertable() error {
	if n.Type < TypePrivate || n.Type > TypeSystem {
		return folderrors.NewStructural(folderrors.CodeInvalidType, 0, "unknown folder type")
	}
	if n.Module < ModuleTask || n.Module > ModuleSystem {
		return folderrors.NewStructural(folderrors.CodeInvalidModule, 0, "unknown folder module")
	}
	return nil
}
