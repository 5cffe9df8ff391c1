package folder

import (
	"context"
	"time"

	"github.com/arborhq/arbor/pkg/folder/acl"
)

// Reservation is one short-lived name claim. The composite key
// (tenant, parent, name hash) is unique in every backend; a conflicting
// insert is the mechanism's entire purpose.
type Reservation struct {
	Tenant   int64
	Parent   int64
	NameHash int64
	// ExpiresAt bounds garbage accumulation from crashed transactions.
	// Reservations are never relied upon past the owning transaction;
	// expiry is hygiene, not correctness.
	ExpiresAt time.Time
}

// Queries are the read-side folder operations. They take no locks and are
// safe to call concurrently, inside or outside a transaction.
type Queries interface {
	// Get loads a node by id, including its permission entries.
	// Returns a NotFound error if absent.
	Get(ctx context.Context, tenant, id int64) (*Node, error)

	// Children returns the direct children of a node ordered by
	// (default descending, name ascending), so default folders keep a
	// stable, prominent first position.
	Children(ctx context.Context, tenant, parent int64) ([]*Node, error)

	// ChildByName resolves a case-insensitive sibling name below a parent.
	// Returns NotFound if no such child exists.
	ChildByName(ctx context.Context, tenant, parent int64, name string) (*Node, error)

	// TrashRoot returns the trash node owned by the given user, or a
	// NotFound error when the user has none.
	TrashRoot(ctx context.Context, tenant, owner int64) (*Node, error)
}

// Tx is one ambient read/write transaction. All mutations on folder and
// permission rows go through a Tx held by the mutation validator; nothing
// bypasses it for writes.
//
// Deferred actions registered with Defer run after a successful Commit, in
// registration order. Rollback discards them (abandoned reservation rows
// are reaped later by the sweep).
type Tx interface {
	Queries

	// Insert persists a new node with its permission entries and marks the
	// parent's subfolder flag.
	Insert(ctx context.Context, node *Node) error

	// Update rewrites a node's attributes. Permission entries are not
	// touched; use ReplacePermissions.
	Update(ctx context.Context, node *Node) error

	// Delete removes a node and its permission entries.
	Delete(ctx context.Context, tenant, id int64) error

	// ReplacePermissions swaps the full permission entry set of a node.
	ReplacePermissions(ctx context.Context, tenant, id int64, entries []acl.Entry) error

	// InsertReservation claims a name slot. A conflicting claim surfaces
	// as a DuplicateName error; any other storage fault as Transient.
	InsertReservation(ctx context.Context, r Reservation) error

	// DeleteReservation releases a claim within the transaction.
	DeleteReservation(ctx context.Context, tenant, parent, nameHash int64) error

	// Defer registers a post-commit action.
	Defer(fn func())

	// Commit commits the transaction, then runs deferred actions.
	Commit(ctx context.Context) error

	// Rollback aborts the transaction and discards deferred actions.
	// Safe to call after Commit (no-op), which permits the usual
	// defer tx.Rollback(ctx) pattern.
	Rollback(ctx context.Context) error
}

// Backend is the durable store. Begin opens the ambient transaction the
// validator requires for every mutating call.
type Backend interface {
	Queries

	Begin(ctx context.Context) (Tx, error)

	// DeleteReservation releases a claim outside any transaction; used by
	// deferred post-commit release.
	DeleteReservation(ctx context.Context, tenant, parent, nameHash int64) error

	// DeleteExpiredReservations purges rows whose expiry lies at or before
	// now, returning the number removed. Run by an external scheduler.
	DeleteExpiredReservations(ctx context.Context, now time.Time) (int64, error)
}
