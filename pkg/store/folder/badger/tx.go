package badger

import (
	"context"
	"errors"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/arborhq/arbor/pkg/folder"
	"github.com/arborhq/arbor/pkg/folder/acl"
	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

// tx wraps a writable badger transaction. Reads see the transaction's own
// writes.
type tx struct {
	store    *Store
	inner    *badger.Txn
	deferred []func()
	claims   []folder.Reservation
	done     bool
}

func (t *tx) Get(ctx context.Context, tenant, id int64) (*folder.Node, error) {
	return getNodeTxn(t.inner, tenant, id)
}

func (t *tx) Children(ctx context.Context, tenant, parent int64) ([]*folder.Node, error) {
	return childrenTxn(t.inner, tenant, parent)
}

func (t *tx) ChildByName(ctx context.Context, tenant, parent int64, name string) (*folder.Node, error) {
	return childByNameTxn(t.inner, tenant, parent, name)
}

func (t *tx) TrashRoot(ctx context.Context, tenant, owner int64) (*folder.Node, error) {
	return trashRootTxn(t.inner, tenant, owner)
}

func (t *tx) putNode(node *folder.Node) error {
	data, err := encodeNode(node)
	if err != nil {
		return err
	}
	if err := t.inner.Set(keyNode(node.Tenant, node.ID), data); err != nil {
		return folderrors.NewTransient("store folder", err)
	}
	return nil
}

func (t *tx) Insert(ctx context.Context, node *folder.Node) error {
	if node.ID == 0 {
		id, err := t.store.nextID()
		if err != nil {
			return err
		}
		node.ID = id
	}
	if err := t.putNode(node); err != nil {
		return err
	}
	if err := t.inner.Set(keyChild(node.Tenant, node.Parent, node.ID), nil); err != nil {
		return folderrors.NewTransient("index child", err)
	}

	parent, err := getNodeTxn(t.inner, node.Tenant, node.Parent)
	if err != nil {
		if folderrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if !parent.HasSubfolders {
		parent.HasSubfolders = true
		return t.putNode(parent)
	}
	return nil
}

func (t *tx) Update(ctx context.Context, node *folder.Node) error {
	existing, err := getNodeTxn(t.inner, node.Tenant, node.ID)
	if err != nil {
		return err
	}

	updated := node.Clone()
	// Update never touches permission rows.
	updated.Permissions = existing.Permissions

	if existing.Parent != node.Parent {
		if err := t.inner.Delete(keyChild(node.Tenant, existing.Parent, node.ID)); err != nil {
			return folderrors.NewTransient("unindex child", err)
		}
		if err := t.inner.Set(keyChild(node.Tenant, node.Parent, node.ID), nil); err != nil {
			return folderrors.NewTransient("index child", err)
		}
	}
	return t.putNode(updated)
}

func (t *tx) Delete(ctx context.Context, tenant, id int64) error {
	node, err := getNodeTxn(t.inner, tenant, id)
	if err != nil {
		return err
	}
	if err := t.inner.Delete(keyChild(tenant, node.Parent, id)); err != nil {
		return folderrors.NewTransient("unindex child", err)
	}
	if err := t.inner.Delete(keyNode(tenant, id)); err != nil {
		return folderrors.NewTransient("delete folder", err)
	}
	return nil
}

func (t *tx) ReplacePermissions(ctx context.Context, tenant, id int64, entries []acl.Entry) error {
	node, err := getNodeTxn(t.inner, tenant, id)
	if err != nil {
		return err
	}
	node.Permissions = append([]acl.Entry(nil), entries...)
	return t.putNode(node)
}

func (t *tx) InsertReservation(ctx context.Context, r folder.Reservation) error {
	key := keyReservation(r.Tenant, r.Parent, r.NameHash)

	_, err := t.inner.Get(key)
	if err == nil {
		return folderrors.NewNameReserved(r.Parent)
	}
	if err != badger.ErrKeyNotFound {
		return folderrors.NewTransient("claim name", err)
	}

	value, err := r.ExpiresAt.MarshalBinary()
	if err != nil {
		return folderrors.NewTransient("encode reservation", err)
	}
	if err := t.inner.Set(key, value); err != nil {
		return folderrors.NewTransient("claim name", err)
	}
	t.claims = append(t.claims, r)
	return nil
}

func (t *tx) DeleteReservation(ctx context.Context, tenant, parent, nameHash int64) error {
	if err := t.inner.Delete(keyReservation(tenant, parent, nameHash)); err != nil {
		return folderrors.NewTransient("release name", err)
	}
	for i, c := range t.claims {
		if c.Tenant == tenant && c.Parent == parent && c.NameHash == nameHash {
			t.claims = append(t.claims[:i], t.claims[i+1:]...)
			break
		}
	}
	return nil
}

func (t *tx) Defer(fn func()) {
	t.deferred = append(t.deferred, fn)
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	if err := t.inner.Commit(); err != nil {
		// A conflict on an outstanding name claim means another
		// transaction committed the same reservation first; report that
		// as a name conflict, not a retryable fault.
		if errors.Is(err, badger.ErrConflict) {
			if parent, lost := t.lostClaim(); lost {
				return folderrors.NewNameReserved(parent)
			}
		}
		return folderrors.NewTransient("commit transaction", err)
	}
	t.done = true

	for _, fn := range t.deferred {
		fn()
	}
	t.deferred = nil
	return nil
}

// lostClaim reports whether one of this transaction's reservation keys was
// committed by a competing transaction, returning the claimed parent.
func (t *tx) lostClaim() (int64, bool) {
	for _, c := range t.claims {
		err := t.store.db.View(func(txn *badger.Txn) error {
			_, err := txn.Get(keyReservation(c.Tenant, c.Parent, c.NameHash))
			return err
		})
		if err == nil {
			return c.Parent, true
		}
	}
	return 0, false
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.deferred = nil
	t.inner.Discard()
	return nil
}
