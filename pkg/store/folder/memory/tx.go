package memory

import (
	"context"
	"github.com/arborhq/arbor/pkg/folder"
	"github.com/arborhq/arbor/pkg/folder/acl"
	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

// tx mutates the live maps under the store lock taken at Begin. Rollback
// restores the snapshot; Commit drops it and runs deferred actions after
// releasing the lock.
type tx struct {
	store       *Store
	savedNodes  map[nodeKey]*folder.Node
	savedRes    map[resKey]folder.Reservation
	savedNextID int64
	deferred    []func()
	done        bool
}

func (t *tx) Get(ctx context.Context, tenant, id int64) (*folder.Node, error) {
	return t.store.getLocked(tenant, id)
}

func (t *tx) Children(ctx context.Context, tenant, parent int64) ([]*folder.Node, error) {
	return t.store.childrenLocked(tenant, parent), nil
}

func (t *tx) ChildByName(ctx context.Context, tenant, parent int64, name string) (*folder.Node, error) {
	return t.store.childByNameLocked(tenant, parent, name)
}

func (t *tx) TrashRoot(ctx context.Context, tenant, owner int64) (*folder.Node, error) {
	return t.store.trashRootLocked(tenant, owner)
}

func (t *tx) Insert(ctx context.Context, node *folder.Node) error {
	stored := node.Clone()
	t.store.putLocked(stored)
	node.ID = stored.ID
	return nil
}

func (t *tx) Update(ctx context.Context, node *folder.Node) error {
	key := nodeKey{node.Tenant, node.ID}
	existing, ok := t.store.nodes[key]
	if !ok {
		return folderrors.NewNotFound(node.ID)
	}
	updated := node.Clone()
	// Update never touches permission rows.
	updated.Permissions = existing.Permissions
	t.store.nodes[key] = updated
	return nil
}

func (t *tx) Delete(ctx context.Context, tenant, id int64) error {
	key := nodeKey{tenant, id}
	if _, ok := t.store.nodes[key]; !ok {
		return folderrors.NewNotFound(id)
	}
	delete(t.store.nodes, key)
	return nil
}

func (t *tx) ReplacePermissions(ctx context.Context, tenant, id int64, entries []acl.Entry) error {
	node, ok := t.store.nodes[nodeKey{tenant, id}]
	if !ok {
		return folderrors.NewNotFound(id)
	}
	node.Permissions = append([]acl.Entry(nil), entries...)
	return nil
}

func (t *tx) InsertReservation(ctx context.Context, r folder.Reservation) error {
	key := resKey{r.Tenant, r.Parent, r.NameHash}
	if _, ok := t.store.reservations[key]; ok {
		return folderrors.NewNameReserved(r.Parent)
	}
	t.store.reservations[key] = r
	return nil
}

func (t *tx) DeleteReservation(ctx context.Context, tenant, parent, nameHash int64) error {
	delete(t.store.reservations, resKey{tenant, parent, nameHash})
	return nil
}

func (t *tx) Defer(fn func()) {
	t.deferred = append(t.deferred, fn)
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.savedNodes = nil
	t.savedRes = nil
	t.store.mu.Unlock()

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
	t.store.nodes = t.savedNodes
	t.store.reservations = t.savedRes
	t.store.nextID = t.savedNextID
	t.deferred = nil
	t.store.mu.Unlock()
	return nil
}

var _ folder.Backend = (*Store)(nil)
