package folder

import (
	"context"

	"github.com/arborhq/arbor/pkg/folder/acl"
	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

// Validator is the single mutation path for folder and permission rows.
// Each call is one transition evaluated against current persisted state
// within the caller-managed transaction; validation is fully evaluated
// before any write begins, so a rejection never leaves partial state.
type Validator struct {
	tree         *Tree
	groups       GroupResolver
	caps         CapabilityResolver
	content      *ContentRegistry
	reservations *Reservations
	sink         NotificationSink
	subjects     SubjectResolver
	cfg          Config
}

// NewValidator wires the mutation validator. sink may be nil when no
// downstream listeners exist.
func NewValidator(
	tree *Tree,
	groups GroupResolver,
	caps CapabilityResolver,
	contentStores *ContentRegistry,
	reservations *Reservations,
	sink NotificationSink,
	cfg Config,
) *Validator {
	return &Validator{
		tree:         tree,
		groups:       groups,
		caps:         caps,
		content:      contentStores,
		reservations: reservations,
		sink:         sink,
		cfg:          cfg,
	}
}

// WithSubjectResolver enables existence checks on proposed permission
// subjects. Without one, only structural subject validation applies.
func (v *Validator) WithSubjectResolver(subjects SubjectResolver) *Validator {
	v.subjects = subjects
	return v
}

// verifySubjects rejects entries whose subject does not resolve to a known
// user or group. Runs only when a SubjectResolver is configured; lookup
// faults propagate as Transient rather than misreporting an entity as
// unknown.
func (v *Validator) verifySubjects(ctx context.Context, folderID int64, entries []acl.Entry) error {
	if v.subjects == nil {
		return nil
	}
	for _, e := range entries {
		var (
			known bool
			err   error
		)
		if e.Group {
			known, err = v.subjects.GroupExists(ctx, e.Subject)
		} else {
			known, err = v.subjects.UserExists(ctx, e.Subject)
		}
		if err != nil {
			return folderrors.NewTransient("resolve permission subject", err)
		}
		if !known {
			return folderrors.NewPermissionSet(folderrors.CodeInvalidEntity, folderID, e.Subject,
				"permission subject does not resolve to a known entity")
		}
	}
	return nil
}

// WarningCode identifies a non-fatal side effect of an accepted mutation.
type WarningCode int

const (
	// WarningAdminRestored reports that the creator's admin entry was
	// auto-granted because the proposed set had none.
	WarningAdminRestored WarningCode = iota + 1

	// WarningHandDownSkipped reports a descendant left untouched by a
	// hand-down because its own validation rejected the entry set.
	WarningHandDownSkipped
)

// Warning is a non-fatal side effect carried on a successful result.
type Warning struct {
	Code     WarningCode
	Message  string
	FolderID int64
}

// Result is the outcome of an accepted mutation: the node in its new
// state, warnings, and for permission updates the principal delta the
// caller feeds to the notification sink.
type Result struct {
	Node     *Node
	Warnings []Warning
	Delta    *Delta
}

// effective resolves the requestor's permission on a node using the
// transaction's view of capabilities.
func (v *Validator) effective(ctx context.Context, node *Node, p acl.Principal) (acl.Effective, error) {
	mask, err := v.caps.AccessibleModules(ctx, p.UserID)
	if err != nil {
		return acl.NoAccess, folderrors.NewTransient("resolve module capabilities", err)
	}
	return acl.Resolve(node.Permissions, p, mask.Contains(node.Module)), nil
}

// notify schedules a post-commit notification. The sink is dispatched on
// its own goroutine and never awaited.
func (v *Validator) notify(tx Tx, event Event) {
	if v.sink == nil {
		return
	}
	tx.Defer(func() {
		go v.sink.Notify(event)
	})
}

// immutable reports whether structural changes are categorically barred
// for the node: default folders, shared pseudo-nodes, virtual nodes and
// everything in the system range.
func immutable(node *Node) bool {
	return node.Default || node.Virtual || node.Type == TypeShared || node.IsSystem()
}

// isDescendantTx runs the cycle-guard BFS against the transaction's view.
func isDescendantTx(ctx context.Context, q Queries, tenant int64, candidateAncestors []int64, possibleDescendant int64) (bool, error) {
	queue := append([]int64(nil), candidateAncestors...)
	seen := make(map[int64]struct{}, len(queue))

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		children, err := q.Children(ctx, tenant, id)
		if err != nil {
			return false, err
		}
		for _, child := range children {
			if child.ID == possibleDescendant {
				return true, nil
			}
			queue = append(queue, child.ID)
		}
	}
	return false, nil
}
