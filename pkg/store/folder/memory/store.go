// Package memory provides an in-memory folder backend for tests and
// single-process development setups. All data is lost on process exit.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arborhq/arbor/pkg/folder"
	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

type nodeKey struct {
	tenant int64
	id     int64
}

type resKey struct {
	tenant int64
	parent int64
	hash   int64
}

// Store is the in-memory backend. Transactions are serialized: Begin
// takes an exclusive lock held until Commit or Rollback, which is exactly
// the coarse serialization a development store wants.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	nodes        map[nodeKey]*folder.Node
	reservations map[resKey]folder.Reservation
}

// NewStore creates an empty in-memory backend. Ids are assigned from the
// user folder range upward.
func NewStore() *Store {
	return &Store{
		nextID:       folder.MinUserFolderID,
		nodes:        make(map[nodeKey]*folder.Node),
		reservations: make(map[resKey]folder.Reservation),
	}
}

// Seed inserts a node directly, bypassing validation. Intended for test
// fixtures and for planting the well-known system nodes.
func (s *Store) Seed(node *folder.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(node.Clone())
}

func (s *Store) putLocked(node *folder.Node) {
	if node.ID == 0 {
		node.ID = s.nextID
		s.nextID++
	} else if node.ID >= s.nextID {
		s.nextID = node.ID + 1
	}
	s.nodes[nodeKey{node.Tenant, node.ID}] = node

	if parent, ok := s.nodes[nodeKey{node.Tenant, node.Parent}]; ok {
		parent.HasSubfolders = true
	}
}

func (s *Store) getLocked(tenant, id int64) (*folder.Node, error) {
	node, ok := s.nodes[nodeKey{tenant, id}]
	if !ok {
		return nil, folderrors.NewNotFound(id)
	}
	return node.Clone(), nil
}

func (s *Store) childrenLocked(tenant, parent int64) []*folder.Node {
	var children []*folder.Node
	for _, n := range s.nodes {
		if n.Tenant == tenant && n.Parent == parent && n.ID != parent {
			children = append(children, n.Clone())
		}
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].Default != children[j].Default {
			return children[i].Default
		}
		return children[i].Name < children[j].Name
	})
	return children
}

func (s *Store) childByNameLocked(tenant, parent int64, name string) (*folder.Node, error) {
	for _, n := range s.nodes {
		if n.Tenant == tenant && n.Parent == parent && strings.EqualFold(n.Name, name) {
			return n.Clone(), nil
		}
	}
	return nil, folderrors.NewNotFound(0)
}

func (s *Store) trashRootLocked(tenant, owner int64) (*folder.Node, error) {
	for _, n := range s.nodes {
		if n.Tenant == tenant && n.Trash && n.CreatedBy == owner {
			return n.Clone(), nil
		}
	}
	return nil, folderrors.NewNotFound(0)
}

// Get implements folder.Queries.
func (s *Store) Get(ctx context.Context, tenant, id int64) (*folder.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(tenant, id)
}

// Children implements folder.Queries.
func (s *Store) Children(ctx context.Context, tenant, parent int64) ([]*folder.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.childrenLocked(tenant, parent), nil
}

// ChildByName implements folder.Queries.
func (s *Store) ChildByName(ctx context.Context, tenant, parent int64, name string) (*folder.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.childByNameLocked(tenant, parent, name)
}

// TrashRoot implements folder.Queries.
func (s *Store) TrashRoot(ctx context.Context, tenant, owner int64) (*folder.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trashRootLocked(tenant, owner)
}

// Begin implements folder.Backend. The returned transaction holds the
// store lock until finished.
func (s *Store) Begin(ctx context.Context) (folder.Tx, error) {
	s.mu.Lock()
	return &tx{
		store:       s,
		savedNodes:  cloneNodes(s.nodes),
		savedRes:    cloneReservations(s.reservations),
		savedNextID: s.nextID,
	}, nil
}

// DeleteReservation implements folder.Backend.
func (s *Store) DeleteReservation(ctx context.Context, tenant, parent, nameHash int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reservations, resKey{tenant, parent, nameHash})
	return nil
}

// DeleteExpiredReservations implements folder.Backend.
func (s *Store) DeleteExpiredReservations(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for k, r := range s.reservations {
		if !r.ExpiresAt.After(now) {
			delete(s.reservations, k)
			deleted++
		}
	}
	return deleted, nil
}

func cloneNodes(src map[nodeKey]*folder.Node) map[nodeKey]*folder.Node {
	dst := make(map[nodeKey]*folder.Node, len(src))
	for k, v := range src {
		dst[k] = v.Clone()
	}
	return dst
}

func cloneReservations(src map[resKey]folder.Reservation) map[resKey]folder.Reservation {
	dst := make(map[resKey]folder.Reservation, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
