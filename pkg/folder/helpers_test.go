package folder_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arborhq/arbor/pkg/folder"
	"github.com/arborhq/arbor/pkg/folder/acl"
	"github.com/arborhq/arbor/pkg/store/folder/memory"
)

const testTenant int64 = 1

// Test principals.
const (
	alice    int64 = 42
	bob      int64 = 7
	carol    int64 = 11
	sysAdmin int64 = 999
)

// fakeCaps is a canned capability resolver.
type fakeCaps struct {
	mask  folder.ModuleSet
	full  bool
	admin int64
}

func (c *fakeCaps) AccessibleModules(ctx context.Context, userID int64) (folder.ModuleSet, error) {
	return c.mask, nil
}

func (c *fakeCaps) FullSharedFolderAccess(ctx context.Context, userID int64) (bool, error) {
	return c.full, nil
}

func (c *fakeCaps) TenantAdmin(ctx context.Context, tenant int64) (int64, error) {
	return c.admin, nil
}

// fakeGroups resolves group membership from a fixed map. Unknown groups
// fail, exercising the fail-soft expansion paths.
type fakeGroups map[int64][]int64

func (g fakeGroups) Members(ctx context.Context, groupID int64) ([]int64, error) {
	members, ok := g[groupID]
	if !ok {
		return nil, fmt.Errorf("group %d not found", groupID)
	}
	return members, nil
}

// fakeSubjects knows every subject except the ids marked unknown.
type fakeSubjects struct {
	unknownUsers  map[int64]bool
	unknownGroups map[int64]bool
}

func (s *fakeSubjects) UserExists(ctx context.Context, userID int64) (bool, error) {
	return !s.unknownUsers[userID], nil
}

func (s *fakeSubjects) GroupExists(ctx context.Context, groupID int64) (bool, error) {
	return !s.unknownGroups[groupID], nil
}

// fakeContent answers content questions with canned values.
type fakeContent struct {
	empty   bool
	foreign bool
	count   int64
}

func (c *fakeContent) IsEmpty(ctx context.Context, tenant, folderID int64) (bool, error) {
	return c.empty, nil
}

func (c *fakeContent) ContainsForeignObjects(ctx context.Context, tenant, folderID, userID int64) (bool, error) {
	return c.foreign, nil
}

func (c *fakeContent) ItemCount(ctx context.Context, tenant, folderID int64) (int64, error) {
	return c.count, nil
}

type env struct {
	store    *memory.Store
	tree     *folder.Tree
	caps     *fakeCaps
	groups   fakeGroups
	subjects *fakeSubjects
	content  *folder.ContentRegistry
	res      *folder.Reservations
	val      *folder.Validator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, folder.Config{})
}

func newEnvWith(t *testing.T, cfg folder.Config) *env {
	t.Helper()

	store := memory.NewStore()
	seedSystemNodes(store)

	caps := &fakeCaps{mask: folder.AllModules, full: true, admin: sysAdmin}
	tree := folder.NewTree(store, caps, cfg, nil)

	registry := folder.NewContentRegistry()
	for _, m := range []folder.Module{
		folder.ModuleTask, folder.ModuleCalendar, folder.ModuleContact,
		folder.ModuleDocument, folder.ModuleUnbound, folder.ModuleSystem,
	} {
		registry.Register(m, folder.EmptyContentStore{})
	}

	groups := fakeGroups{}
	subjects := &fakeSubjects{
		unknownUsers:  map[int64]bool{},
		unknownGroups: map[int64]bool{},
	}
	res := folder.NewReservations(store, time.Minute, nil)
	val := folder.NewValidator(tree, groups, caps, registry, res, nil, cfg).
		WithSubjectResolver(subjects)

	return &env{
		store:    store,
		tree:     tree,
		caps:     caps,
		groups:   groups,
		subjects: subjects,
		content:  registry,
		res:      res,
		val:      val,
	}
}

// seedSystemNodes plants the well-known tenant structure. The structural
// roots carry system grants letting the test principals see them and
// create below them.
func seedSystemNodes(store *memory.Store) {
	grants := []acl.Entry{
		{Subject: alice, Folder: acl.FolderCreateSubfolders, Read: acl.LevelAll, System: true},
		{Subject: bob, Folder: acl.FolderCreateSubfolders, Read: acl.LevelAll, System: true},
		{Subject: carol, Folder: acl.FolderCreateSubfolders, Read: acl.LevelAll, System: true},
	}

	sys := func(id int64, name string) *folder.Node {
		return &folder.Node{
			ID:          id,
			Tenant:      testTenant,
			Parent:      folder.RootID,
			Name:        name,
			Type:        folder.TypeSystem,
			Module:      folder.ModuleSystem,
			Permissions: append([]acl.Entry(nil), grants...),
		}
	}

	store.Seed(sys(folder.PrivateRootID, "Private"))
	store.Seed(sys(folder.PublicRootID, "Public"))
	store.Seed(sys(folder.SharedRootID, "Shared"))
	store.Seed(sys(folder.AddressBookID, "Global address book"))
	store.Seed(sys(folder.InfostoreRootID, "Infostore"))
}

func principal(userID int64, groups ...int64) acl.Principal {
	return acl.Principal{UserID: userID, Groups: groups}
}

// adminEntry is the full-rights admin grant for a subject.
func adminEntry(subject int64) acl.Entry {
	return acl.Entry{
		Subject: subject,
		Folder:  acl.FolderCreateSubfolders,
		Read:    acl.LevelAdmin,
		Write:   acl.LevelAdmin,
		Delete:  acl.LevelAdmin,
		Admin:   true,
	}
}

func (e *env) begin(t *testing.T) folder.Tx {
	t.Helper()
	tx, err := e.store.Begin(context.Background())
	require.NoError(t, err)
	return tx
}

// create runs a create through the validator in its own transaction and
// commits. Fails the test on any error.
func (e *env) create(t *testing.T, req folder.CreateRequest, p acl.Principal) *folder.Node {
	t.Helper()

	ctx := context.Background()
	tx := e.begin(t)
	res, err := e.val.Create(ctx, tx, req, p)
	if err != nil {
		_ = tx.Rollback(ctx)
		t.Fatalf("create %q: %v", req.Name, err)
	}
	require.NoError(t, tx.Commit(ctx))
	return res.Node
}

// createPrivate creates a private task folder owned by the principal.
func (e *env) createPrivate(t *testing.T, parent int64, name string, owner int64) *folder.Node {
	t.Helper()
	return e.create(t, folder.CreateRequest{
		Tenant:      testTenant,
		Parent:      parent,
		Name:        name,
		Type:        folder.TypePrivate,
		Module:      folder.ModuleTask,
		Permissions: []acl.Entry{adminEntry(owner)},
	}, principal(owner))
}

// seedTrash plants a trash root for the owner below the private root.
func (e *env) seedTrash(owner, id int64) *folder.Node {
	trash := &folder.Node{
		ID:          id,
		Tenant:      testTenant,
		Parent:      folder.PrivateRootID,
		Name:        "Trash",
		Type:        folder.TypePrivate,
		Module:      folder.ModuleUnbound,
		CreatedBy:   owner,
		Default:     true,
		Trash:       true,
		Permissions: []acl.Entry{adminEntry(owner)},
	}
	e.store.Seed(trash)
	return trash
}

// get reads a node directly from the store, outside any transaction.
func (e *env) get(t *testing.T, id int64) *folder.Node {
	t.Helper()
	node, err := e.store.Get(context.Background(), testTenant, id)
	require.NoError(t, err)
	return node
}
