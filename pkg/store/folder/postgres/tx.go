package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/arborhq/arbor/pkg/folder"
	"github.com/arborhq/arbor/pkg/folder/acl"
)

// tx wraps a pgx transaction and carries the post-commit deferred actions.
type tx struct {
	inner    pgx.Tx
	deferred []func()
	done     bool
}

func (t *tx) Get(ctx context.Context, tenant, id int64) (*folder.Node, error) {
	return getNode(ctx, t.inner, tenant, id)
}

func (t *tx) Children(ctx context.Context, tenant, parent int64) ([]*folder.Node, error) {
	return getChildren(ctx, t.inner, tenant, parent)
}

func (t *tx) ChildByName(ctx context.Context, tenant, parent int64, name string) (*folder.Node, error) {
	return getChildByName(ctx, t.inner, tenant, parent, name)
}

func (t *tx) TrashRoot(ctx context.Context, tenant, owner int64) (*folder.Node, error) {
	return getTrashRoot(ctx, t.inner, tenant, owner)
}

func (t *tx) Insert(ctx context.Context, node *folder.Node) error {
	query := `
		INSERT INTO folders (
			tenant, parent, name, type, module,
			created_by, modified_by, created_at, modified_at,
			is_default, is_trash, has_subfolders, meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	err := t.inner.QueryRow(ctx, query,
		node.Tenant, node.Parent, node.Name, node.Type, node.Module,
		node.CreatedBy, node.ModifiedBy, node.CreatedAt, node.ModifiedAt,
		node.Default, node.Trash, node.HasSubfolders, node.Meta,
	).Scan(&node.ID)
	if err != nil {
		return mapPgError(err, "insert folder", node.Parent)
	}

	if err := t.replacePermissions(ctx, node.Tenant, node.ID, node.Permissions); err != nil {
		return err
	}

	_, err = t.inner.Exec(ctx,
		`UPDATE folders SET has_subfolders = TRUE WHERE tenant = $1 AND id = $2`,
		node.Tenant, node.Parent)
	return mapPgError(err, "mark parent subfolders", node.Parent)
}

func (t *tx) Update(ctx context.Context, node *folder.Node) error {
	query := `
		UPDATE folders SET
			parent = $3, name = $4, type = $5, module = $6,
			modified_by = $7, modified_at = $8,
			is_default = $9, is_trash = $10, has_subfolders = $11, meta = $12
		WHERE tenant = $1 AND id = $2`
	tag, err := t.inner.Exec(ctx, query,
		node.Tenant, node.ID, node.Parent, node.Name, node.Type, node.Module,
		node.ModifiedBy, node.ModifiedAt,
		node.Default, node.Trash, node.HasSubfolders, node.Meta,
	)
	if err != nil {
		return mapPgError(err, "update folder", node.ID)
	}
	if tag.RowsAffected() == 0 {
		return mapPgError(pgx.ErrNoRows, "update folder", node.ID)
	}
	return nil
}

func (t *tx) Delete(ctx context.Context, tenant, id int64) error {
	// Permission rows cascade.
	tag, err := t.inner.Exec(ctx,
		`DELETE FROM folders WHERE tenant = $1 AND id = $2`, tenant, id)
	if err != nil {
		return mapPgError(err, "delete folder", id)
	}
	if tag.RowsAffected() == 0 {
		return mapPgError(pgx.ErrNoRows, "delete folder", id)
	}
	return nil
}

func (t *tx) ReplacePermissions(ctx context.Context, tenant, id int64, entries []acl.Entry) error {
	return t.replacePermissions(ctx, tenant, id, entries)
}

func (t *tx) replacePermissions(ctx context.Context, tenant, id int64, entries []acl.Entry) error {
	_, err := t.inner.Exec(ctx,
		`DELETE FROM folder_permissions WHERE tenant = $1 AND folder_id = $2`,
		tenant, id)
	if err != nil {
		return mapPgError(err, "clear permissions", id)
	}

	for _, e := range entries {
		_, err := t.inner.Exec(ctx, `
			INSERT INTO folder_permissions (
				tenant, folder_id, subject, is_group,
				folder_level, read_level, write_level, delete_level,
				is_admin, is_system
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			tenant, id, e.Subject, e.Group,
			e.Folder, e.Read, e.Write, e.Delete,
			e.Admin, e.System,
		)
		if err != nil {
			return mapPgError(err, "insert permission", id)
		}
	}
	return nil
}

func (t *tx) InsertReservation(ctx context.Context, r folder.Reservation) error {
	_, err := t.inner.Exec(ctx, `
		INSERT INTO folder_reservations (tenant, parent, name_hash, expires_at)
		VALUES ($1, $2, $3, $4)`,
		r.Tenant, r.Parent, r.NameHash, r.ExpiresAt)
	return mapPgError(err, "claim name", r.Parent)
}

func (t *tx) DeleteReservation(ctx context.Context, tenant, parent, nameHash int64) error {
	_, err := t.inner.Exec(ctx,
		`DELETE FROM folder_reservations WHERE tenant = $1 AND parent = $2 AND name_hash = $3`,
		tenant, parent, nameHash)
	return mapPgError(err, "release name", parent)
}

func (t *tx) Defer(fn func()) {
	t.deferred = append(t.deferred, fn)
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	if err := t.inner.Commit(ctx); err != nil {
		return mapPgError(err, "commit transaction", 0)
	}
	t.done = true

	for _, fn := range t.deferred {
		fn()
	}
	t.deferred = nil
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.deferred = nil
	if err := t.inner.Rollback(ctx); err != nil {
		return mapPgError(err, "rollback transaction", 0)
	}
	return nil
}
