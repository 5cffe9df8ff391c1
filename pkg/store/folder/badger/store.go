// Package badger provides an embedded folder backend on BadgerDB, for
// single-node deployments that want durability without an external
// database.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/arborhq/arbor/pkg/folder"
	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

// Key layout:
//
//	n/<tenant>/<id>            node record (JSON, permissions inline)
//	c/<tenant>/<parent>/<id>   child index, empty value
//	r/<tenant>/<parent>/<hash> reservation, value is the expiry
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger
}

// NewStore opens the database at path.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	seq, err := db.GetSequence([]byte("seq/folder-id"), 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open id sequence: %w", err)
	}

	return &Store{db: db, seq: seq, logger: logger}, nil
}

// Close releases the sequence and the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		return err
	}
	return s.db.Close()
}

func (s *Store) nextID() (int64, error) {
	n, err := s.seq.Next()
	if err != nil {
		return 0, folderrors.NewTransient("allocate folder id", err)
	}
	return folder.MinUserFolderID + int64(n), nil
}

func keyNode(tenant, id int64) []byte {
	return []byte(fmt.Sprintf("n/%d/%d", tenant, id))
}

func keyChild(tenant, parent, id int64) []byte {
	return []byte(fmt.Sprintf("c/%d/%d/%d", tenant, parent, id))
}

func keyChildPrefix(tenant, parent int64) []byte {
	return []byte(fmt.Sprintf("c/%d/%d/", tenant, parent))
}

func keyReservation(tenant, parent, hash int64) []byte {
	return []byte(fmt.Sprintf("r/%d/%d/%d", tenant, parent, hash))
}

func encodeNode(node *folder.Node) ([]byte, error) {
	data, err := json.Marshal(node)
	if err != nil {
		return nil, folderrors.NewTransient("encode folder", err)
	}
	return data, nil
}

func decodeNode(data []byte) (*folder.Node, error) {
	var node folder.Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, folderrors.NewTransient("decode folder", err)
	}
	return &node, nil
}

func getNodeTxn(txn *badger.Txn, tenant, id int64) (*folder.Node, error) {
	item, err := txn.Get(keyNode(tenant, id))
	if err == badger.ErrKeyNotFound {
		return nil, folderrors.NewNotFound(id)
	}
	if err != nil {
		return nil, folderrors.NewTransient("get folder", err)
	}

	var node *folder.Node
	err = item.Value(func(val []byte) error {
		node, err = decodeNode(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func childrenTxn(txn *badger.Txn, tenant, parent int64) ([]*folder.Node, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = keyChildPrefix(tenant, parent)

	var ids []int64
	it := txn.NewIterator(opts)
	for it.Rewind(); it.Valid(); it.Next() {
		key := string(it.Item().Key())
		var id int64
		if _, err := fmt.Sscanf(key[strings.LastIndexByte(key, '/')+1:], "%d", &id); err != nil {
			it.Close()
			return nil, folderrors.NewTransient("parse child key", err)
		}
		ids = append(ids, id)
	}
	it.Close()

	children := make([]*folder.Node, 0, len(ids))
	for _, id := range ids {
		node, err := getNodeTxn(txn, tenant, id)
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].Default != children[j].Default {
			return children[i].Default
		}
		return children[i].Name < children[j].Name
	})
	return children, nil
}

func childByNameTxn(txn *badger.Txn, tenant, parent int64, name string) (*folder.Node, error) {
	children, err := childrenTxn(txn, tenant, parent)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if strings.EqualFold(child.Name, name) {
			return child, nil
		}
	}
	return nil, folderrors.NewNotFound(0)
}

func trashRootTxn(txn *badger.Txn, tenant, owner int64) (*folder.Node, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(fmt.Sprintf("n/%d/", tenant))

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var node *folder.Node
		err := it.Item().Value(func(val []byte) error {
			var err error
			node, err = decodeNode(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		if node.Trash && node.CreatedBy == owner {
			return node, nil
		}
	}
	return nil, folderrors.NewNotFound(0)
}

// Get implements folder.Queries.
func (s *Store) Get(ctx context.Context, tenant, id int64) (*folder.Node, error) {
	var node *folder.Node
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = getNodeTxn(txn, tenant, id)
		return err
	})
	return node, err
}

// Children implements folder.Queries.
func (s *Store) Children(ctx context.Context, tenant, parent int64) ([]*folder.Node, error) {
	var children []*folder.Node
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		children, err = childrenTxn(txn, tenant, parent)
		return err
	})
	return children, err
}

// ChildByName implements folder.Queries.
func (s *Store) ChildByName(ctx context.Context, tenant, parent int64, name string) (*folder.Node, error) {
	var node *folder.Node
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = childByNameTxn(txn, tenant, parent, name)
		return err
	})
	return node, err
}

// TrashRoot implements folder.Queries.
func (s *Store) TrashRoot(ctx context.Context, tenant, owner int64) (*folder.Node, error) {
	var node *folder.Node
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = trashRootTxn(txn, tenant, owner)
		return err
	})
	return node, err
}

// Begin implements folder.Backend.
func (s *Store) Begin(ctx context.Context) (folder.Tx, error) {
	return &tx{store: s, inner: s.db.NewTransaction(true)}, nil
}

// DeleteReservation implements folder.Backend.
func (s *Store) DeleteReservation(ctx context.Context, tenant, parent, nameHash int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyReservation(tenant, parent, nameHash))
	})
	if err != nil {
		return folderrors.NewTransient("release name", err)
	}
	return nil
}

// DeleteExpiredReservations implements folder.Backend.
func (s *Store) DeleteExpiredReservations(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("r/")

		it := txn.NewIterator(opts)
		defer it.Close()

		var expired [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var expiresAt time.Time
			err := item.Value(func(val []byte) error {
				return expiresAt.UnmarshalBinary(val)
			})
			if err != nil {
				return err
			}
			if !expiresAt.After(now) {
				expired = append(expired, item.KeyCopy(nil))
			}
		}
		for _, key := range expired {
			if err := txn.Delete(key); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, folderrors.NewTransient("sweep reservations", err)
	}
	return deleted, nil
}

var _ folder.Backend = (*Store)(nil)
