package folder

import (
	"context"
	"fmt"
	"time"

	"github.com/arborhq/arbor/pkg/folder/acl"
	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

// Tree provides read and traversal operations over the folder hierarchy.
// All operations are lock-free reads; concurrent use is always safe.
type Tree struct {
	store   Queries
	caps    CapabilityResolver
	cfg     Config
	metrics *acl.Metrics
	cache   *nodeCache
}

// NewTree creates a tree service. metrics may be nil.
func NewTree(store Queries, caps CapabilityResolver, cfg Config, metrics *acl.Metrics) *Tree {
	t := &Tree{
		store:   store,
		caps:    caps,
		cfg:     cfg,
		metrics: metrics,
	}
	if cfg.EnableFolderCache {
		t.cache = newNodeCache(cfg.EnableSharedFolderCaching)
	}
	return t
}

// Get loads a node by id. A missing node is a typed NotFound; visibility is
// not checked (see GetVisible).
func (t *Tree) Get(ctx context.Context, tenant, id int64) (*Node, error) {
	if node := t.cache.get(tenant, id); node != nil {
		return node, nil
	}

	node, err := t.store.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}

	t.cache.put(node)
	return node, nil
}

// GetVisible loads a node and verifies the principal can see it. "Absent"
// and "exists but not visible" are distinct results (NotFound vs
// NotVisible) because callers render them differently.
func (t *Tree) GetVisible(ctx context.Context, tenant, id int64, p acl.Principal) (*Node, error) {
	node, err := t.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}

	eff, err := t.Effective(ctx, node, p)
	if err != nil {
		return nil, err
	}
	if !eff.Visible() {
		return nil, folderrors.NewNotVisible(id, p.UserID)
	}
	return node, nil
}

// Effective resolves the principal's effective permission on a node,
// clamped against the principal's module capability mask.
func (t *Tree) Effective(ctx context.Context, node *Node, p acl.Principal) (acl.Effective, error) {
	start := time.Now()

	mask, err := t.caps.AccessibleModules(ctx, p.UserID)
	if err != nil {
		return acl.NoAccess, folderrors.NewTransient("resolve module capabilities", err)
	}

	eff := acl.Resolve(node.Permissions, p, mask.Contains(node.Module))
	t.metrics.ObserveResolution(time.Since(start), eff)
	return eff, nil
}

// Children returns the direct children of a node, default folders first,
// then ascending by name.
func (t *Tree) Children(ctx context.Context, tenant, parent int64) ([]*Node, error) {
	return t.store.Children(ctx, tenant, parent)
}

// VisibleChildren returns the children the principal can see.
func (t *Tree) VisibleChildren(ctx context.Context, tenant, parent int64, p acl.Principal) ([]*Node, error) {
	children, err := t.store.Children(ctx, tenant, parent)
	if err != nil {
		return nil, err
	}

	visible := children[:0]
	for _, child := range children {
		eff, err := t.Effective(ctx, child, p)
		if err != nil {
			return nil, err
		}
		if eff.Visible() {
			visible = append(visible, child)
		}
	}
	return visible, nil
}

// AncestorsToRoot returns a node's ancestor chain ordered nearest-first,
// up to but not including the tree root.
//
// When the real parent chain stops being visible to the principal and the
// starting node is a foreign private folder reached through a share, the
// invisible remainder is substituted with a synthetic "Shared by <owner>"
// node below the shared root, so the caller always renders a coherent
// breadcrumb.
func (t *Tree) AncestorsToRoot(ctx context.Context, tenant, id int64, p acl.Principal) ([]*Node, error) {
	node, err := t.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}

	sharedForeign := node.Type == TypePrivate && node.CreatedBy != p.UserID

	var chain []*Node
	current := node
	for current.Parent != RootID {
		parent, err := t.Get(ctx, tenant, current.Parent)
		if err != nil {
			return nil, err
		}

		eff, err := t.Effective(ctx, parent, p)
		if err != nil {
			return nil, err
		}
		if !eff.Visible() {
			if sharedForeign {
				chain = append(chain, VirtualSharedNode(tenant, node.CreatedBy))
				sharedRoot, err := t.Get(ctx, tenant, SharedRootID)
				if err != nil {
					return nil, err
				}
				chain = append(chain, sharedRoot)
			}
			return chain, nil
		}

		chain = append(chain, parent)
		current = parent
	}
	return chain, nil
}

// VirtualSharedID derives the synthetic node id for an owner's "shared by"
// aggregation point. Virtual ids are negative and never persisted.
func VirtualSharedID(owner int64) int64 {
	return -(owner + 1)
}

// VirtualSharedNode builds the synthetic aggregation node presented
// between a shared private folder and the shared root. The caller owns
// localization of the display name; the numeric owner is the argument.
func VirtualSharedNode(tenant, owner int64) *Node {
	return &Node{
		ID:        VirtualSharedID(owner),
		Tenant:    tenant,
		Parent:    SharedRootID,
		Name:      fmt.Sprintf("Shared by user %d", owner),
		Type:      TypeShared,
		Module:    ModuleSystem,
		CreatedBy: owner,
		Virtual:   true,
	}
}

// IsDescendant reports whether possibleDescendant lies strictly below any
// of the candidate ancestor ids. A node is not its own descendant. Used
// exclusively as the cycle guard for moves.
func (t *Tree) IsDescendant(ctx context.Context, tenant int64, candidateAncestors []int64, possibleDescendant int64) (bool, error) {
	queue := append([]int64(nil), candidateAncestors...)
	seen := make(map[int64]struct{}, len(queue))

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		children, err := t.store.Children(ctx, tenant, id)
		if err != nil {
			return false, err
		}
		for _, child := range children {
			if child.ID == possibleDescendant {
				return true, nil
			}
			if child.HasSubfolders {
				queue = append(queue, child.ID)
			}
		}
	}
	return false, nil
}

// WalkVisible streams the subtree below rootID as the principal sees it,
// depth-first. A node is yielded when it is visible itself or has at least
// one visible direct child; otherwise its entire branch is pruned without
// descending further. The walk stops early when fn returns false.
//
// The root node itself is not yielded; the walk starts at its children.
func (t *Tree) WalkVisible(ctx context.Context, tenant, rootID int64, p acl.Principal, fn func(*Node) bool) error {
	children, err := t.store.Children(ctx, tenant, rootID)
	if err != nil {
		return err
	}
	for _, child := range children {
		cont, err := t.walkVisible(ctx, tenant, child, p, fn)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

func (t *Tree) walkVisible(ctx context.Context, tenant int64, node *Node, p acl.Principal, fn func(*Node) bool) (bool, error) {
	included, err := t.included(ctx, tenant, node, p)
	if err != nil {
		return false, err
	}
	if !included {
		return true, nil
	}

	if !fn(node) {
		return false, nil
	}

	if !node.HasSubfolders {
		return true, nil
	}
	children, err := t.store.Children(ctx, tenant, node.ID)
	if err != nil {
		return false, err
	}
	for _, child := range children {
		cont, err := t.walkVisible(ctx, tenant, child, p, fn)
		if err != nil || !cont {
			return cont, err
		}
	}
	return true, nil
}

// included applies the pruning rule: own visibility, or at least one
// visible direct child. The peek never goes deeper than one level, so
// invisible branches are never partially exposed.
func (t *Tree) included(ctx context.Context, tenant int64, node *Node, p acl.Principal) (bool, error) {
	eff, err := t.Effective(ctx, node, p)
	if err != nil {
		return false, err
	}
	if eff.Visible() {
		return true, nil
	}
	if !node.HasSubfolders {
		return false, nil
	}

	children, err := t.store.Children(ctx, tenant, node.ID)
	if err != nil {
		return false, err
	}
	for _, child := range children {
		childEff, err := t.Effective(ctx, child, p)
		if err != nil {
			return false, err
		}
		if childEff.Visible() {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate drops a node from the read cache. The validator calls this
// after every mutation touching the node or its parent.
func (t *Tree) Invalidate(tenant, id int64) {
	t.cache.invalidate(tenant, id)
}
