package folder

import (
	"context"
	"sync"

	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

// ContentStore answers content-level questions for one module. The folder
// core never reads or writes objects itself; it only asks these three
// questions when deciding whether a folder may be deleted. One
// implementation exists per module.
type ContentStore interface {
	// IsEmpty reports whether the folder holds no objects.
	IsEmpty(ctx context.Context, tenant, folderID int64) (bool, error)

	// ContainsForeignObjects reports whether the folder holds objects not
	// created by the given user.
	ContainsForeignObjects(ctx context.Context, tenant, folderID, userID int64) (bool, error)

	// ItemCount returns the number of objects in the folder.
	ItemCount(ctx context.Context, tenant, folderID int64) (int64, error)
}

// ContentRegistry maps modules to their content stores. Registration
// happens at wiring time; lookups are concurrent-safe.
type ContentRegistry struct {
	mu     sync.RWMutex
	stores map[Module]ContentStore
}

// NewContentRegistry creates an empty registry.
func NewContentRegistry() *ContentRegistry {
	return &ContentRegistry{stores: make(map[Module]ContentStore)}
}

// Register associates a content store with a module, replacing any
// previous registration.
func (r *ContentRegistry) Register(module Module, store ContentStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[module] = store
}

// For returns the content store serving a node's module. An unregistered
// module is a typed error, not a panic: the validator reports it as a
// blocked operation with a precise reason.
func (r *ContentRegistry) For(node *Node) (ContentStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.stores[node.Module]; ok {
		return s, nil
	}
	return nil, folderrors.NewUnknownModule(node.ID, node.Module.String())
}

// EmptyContentStore serves modules that hold no objects (unbound and
// system folders): every folder is empty and nothing is foreign.
type EmptyContentStore struct{}

func (EmptyContentStore) IsEmpty(ctx context.Context, tenant, folderID int64) (bool, error) {
	return true, nil
}

func (EmptyContentStore) ContainsForeignObjects(ctx context.Context, tenant, folderID, userID int64) (bool, error) {
	return false, nil
}

func (EmptyContentStore) ItemCount(ctx context.Context, tenant, folderID int64) (int64, error) {
	return 0, nil
}
