package folder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborhq/arbor/pkg/folder"
	"github.com/arborhq/arbor/pkg/folder/acl"
	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

func TestUpdatePermissions(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the entry set", func(t *testing.T) {
		e := newEnv(t)
		node := e.createPrivate(t, folder.PrivateRootID, "Projects", alice)

		entries := []acl.Entry{
			adminEntry(alice),
			{Subject: bob, Folder: acl.FolderVisible, Read: acl.LevelAll},
		}

		tx := e.begin(t)
		res, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: node.ID,
			Entries:  entries,
		}, principal(alice))
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))

		assert.Len(t, res.Node.Permissions, 2)
		assert.Len(t, e.get(t, node.ID).Permissions, 2)
	})

	t.Run("requires folder admin", func(t *testing.T) {
		e := newEnv(t)
		node := e.create(t, folder.CreateRequest{
			Tenant: testTenant,
			Parent: folder.PrivateRootID,
			Name:   "Projects",
			Type:   folder.TypePrivate,
			Module: folder.ModuleTask,
			Permissions: []acl.Entry{
				adminEntry(alice),
				{Subject: bob, Folder: acl.FolderVisible},
			},
		}, principal(alice))

		tx := e.begin(t)
		defer tx.Rollback(ctx)
		_, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: node.ID,
			Entries:  []acl.Entry{adminEntry(alice)},
		}, principal(bob))
		assert.Equal(t, folderrors.CodeNoAdminAccess, folderrors.CodeOf(err))
	})

	t.Run("rejects a second admin on a private folder", func(t *testing.T) {
		e := newEnv(t)
		node := e.createPrivate(t, folder.PrivateRootID, "Projects", alice)

		tx := e.begin(t)
		defer tx.Rollback(ctx)
		_, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: node.ID,
			Entries:  []acl.Entry{adminEntry(alice), adminEntry(bob)},
		}, principal(alice))
		assert.Equal(t, folderrors.CodeMultipleAdminPermissions, folderrors.CodeOf(err))
	})

	t.Run("rejects a group admin on a private folder", func(t *testing.T) {
		e := newEnv(t)
		node := e.createPrivate(t, folder.PrivateRootID, "Projects", alice)

		groupAdmin := adminEntry(alice)
		groupAdmin.Group = true

		tx := e.begin(t)
		defer tx.Rollback(ctx)
		_, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: node.ID,
			Entries:  []acl.Entry{groupAdmin},
		}, principal(alice))
		assert.Equal(t, folderrors.CodeGroupAdminOnPrivate, folderrors.CodeOf(err))
	})

	t.Run("sharing gate blocks meaningful foreign entries", func(t *testing.T) {
		e := newEnv(t)
		e.caps.full = false
		node := e.createPrivate(t, folder.PrivateRootID, "Projects", alice)

		tx := e.begin(t)
		defer tx.Rollback(ctx)
		_, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: node.ID,
			Entries: []acl.Entry{
				adminEntry(alice),
				{Subject: bob, Folder: acl.FolderVisible},
			},
		}, principal(alice))
		assert.Equal(t, folderrors.CodeNoShareAccess, folderrors.CodeOf(err))
	})

	t.Run("sharing gate passes owner-only sets", func(t *testing.T) {
		e := newEnv(t)
		e.caps.full = false
		node := e.createPrivate(t, folder.PrivateRootID, "Projects", alice)

		tx := e.begin(t)
		_, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: node.ID,
			Entries:  []acl.Entry{adminEntry(alice)},
		}, principal(alice))
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
	})

	t.Run("rejects entries for unknown subjects", func(t *testing.T) {
		e := newEnv(t)
		e.subjects.unknownUsers[77] = true
		node := e.createPrivate(t, folder.PrivateRootID, "Projects", alice)

		tx := e.begin(t)
		defer tx.Rollback(ctx)
		_, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: node.ID,
			Entries: []acl.Entry{
				adminEntry(alice),
				{Subject: 77, Folder: acl.FolderVisible},
			},
		}, principal(alice))
		assert.Equal(t, folderrors.CodeInvalidEntity, folderrors.CodeOf(err))
	})

	t.Run("rejects proposed system entries", func(t *testing.T) {
		e := newEnv(t)
		node := e.createPrivate(t, folder.PrivateRootID, "Projects", alice)

		tx := e.begin(t)
		defer tx.Rollback(ctx)
		_, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: node.ID,
			Entries: []acl.Entry{
				adminEntry(alice),
				{Subject: bob, Folder: acl.FolderVisible, System: true},
			},
		}, principal(alice))
		assert.Equal(t, folderrors.CodeInvalidEntity, folderrors.CodeOf(err))
	})

	t.Run("stored system entries survive the replacement", func(t *testing.T) {
		e := newEnv(t)
		node := &folder.Node{
			ID:        400,
			Tenant:    testTenant,
			Parent:    folder.PublicRootID,
			Name:      "Board",
			Type:      folder.TypePublic,
			Module:    folder.ModuleContact,
			CreatedBy: alice,
			Permissions: []acl.Entry{
				adminEntry(alice),
				{Subject: carol, Folder: acl.FolderVisible, System: true},
			},
		}
		e.store.Seed(node)

		tx := e.begin(t)
		res, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: node.ID,
			Entries:  []acl.Entry{adminEntry(alice), adminEntry(bob)},
		}, principal(alice))
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))

		var system []acl.Entry
		for _, entry := range res.Node.Permissions {
			if entry.System {
				system = append(system, entry)
			}
		}
		require.Len(t, system, 1)
		assert.Equal(t, carol, system[0].Subject)
	})

	t.Run("delta expands groups and fails soft", func(t *testing.T) {
		e := newEnv(t)
		e.groups[5] = []int64{21, 22}
		node := e.create(t, folder.CreateRequest{
			Tenant: testTenant,
			Parent: folder.PublicRootID,
			Name:   "Board",
			Type:   folder.TypePublic,
			Module: folder.ModuleContact,
			Permissions: []acl.Entry{
				adminEntry(alice),
				{Subject: carol, Folder: acl.FolderVisible},
			},
		}, principal(alice))

		tx := e.begin(t)
		res, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: node.ID,
			Entries: []acl.Entry{
				adminEntry(alice),
				{Subject: bob, Folder: acl.FolderVisible},
				{Subject: 5, Group: true, Folder: acl.FolderVisible},
				// Group 6 does not resolve and contributes nothing.
				{Subject: 6, Group: true, Folder: acl.FolderVisible},
			},
		}, principal(alice))
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))

		require.NotNil(t, res.Delta)
		assert.Equal(t, []int64{bob, 21, 22}, res.Delta.Gained)
		assert.Equal(t, []int64{carol}, res.Delta.Lost)
	})

	t.Run("unchanged set yields an empty delta", func(t *testing.T) {
		e := newEnv(t)
		node := e.createPrivate(t, folder.PrivateRootID, "Projects", alice)

		tx := e.begin(t)
		res, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: node.ID,
			Entries:  []acl.Entry{adminEntry(alice)},
		}, principal(alice))
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
		assert.True(t, res.Delta.Empty())
	})

	t.Run("shared pseudo-nodes are fixed", func(t *testing.T) {
		e := newEnv(t)
		e.store.Seed(&folder.Node{
			ID:     500,
			Tenant: testTenant,
			Parent: folder.SharedRootID,
			Name:   "Shared by bob",
			Type:   folder.TypeShared,
			Module: folder.ModuleSystem,
		})

		tx := e.begin(t)
		defer tx.Rollback(ctx)
		_, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: 500,
			Entries:  []acl.Entry{adminEntry(alice)},
		}, principal(alice))
		assert.Equal(t, folderrors.CodeImmutableFolder, folderrors.CodeOf(err))
	})
}

func TestUpdatePermissionsSystemEnvelope(t *testing.T) {
	ctx := context.Background()

	// adminOnSystem plants an admin grant for a subject on a system node.
	adminOnSystem := func(e *env, t *testing.T, id, subject int64) {
		t.Helper()
		node, err := e.store.Get(ctx, testTenant, id)
		require.NoError(t, err)
		node.Permissions = append(node.Permissions, acl.Entry{Subject: subject, Admin: true, System: true})
		e.store.Seed(node)
	}

	t.Run("address book visibility update within the envelope", func(t *testing.T) {
		e := newEnv(t)
		adminOnSystem(e, t, folder.AddressBookID, alice)

		tx := e.begin(t)
		_, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: folder.AddressBookID,
			Entries: []acl.Entry{
				{Subject: bob, Folder: acl.FolderVisible, Read: acl.LevelAll},
			},
		}, principal(alice))
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
	})

	t.Run("write grant exceeds the envelope", func(t *testing.T) {
		e := newEnv(t)
		adminOnSystem(e, t, folder.AddressBookID, alice)

		tx := e.begin(t)
		defer tx.Rollback(ctx)
		_, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: folder.AddressBookID,
			Entries: []acl.Entry{
				{Subject: bob, Folder: acl.FolderVisible, Write: acl.LevelOwn},
			},
		}, principal(alice))
		assert.Equal(t, folderrors.CodeSystemPermissionEnvelope, folderrors.CodeOf(err))
	})

	t.Run("own-write allowed when internal user edit is on", func(t *testing.T) {
		e := newEnvWith(t, folder.Config{AllowInternalUserEdit: true})
		adminOnSystem(e, t, folder.AddressBookID, alice)

		tx := e.begin(t)
		_, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: folder.AddressBookID,
			Entries: []acl.Entry{
				{Subject: bob, Folder: acl.FolderVisible, Write: acl.LevelOwn},
			},
		}, principal(alice))
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
	})

	t.Run("tenant admin is exempt from the envelope", func(t *testing.T) {
		e := newEnv(t)
		adminOnSystem(e, t, folder.AddressBookID, sysAdmin)

		tx := e.begin(t)
		_, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: folder.AddressBookID,
			Entries: []acl.Entry{
				{Subject: bob, Folder: acl.FolderVisible, Write: acl.LevelAdmin, Delete: acl.LevelAdmin},
			},
		}, principal(sysAdmin))
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
	})

	t.Run("other system nodes are fixed", func(t *testing.T) {
		e := newEnv(t)
		adminOnSystem(e, t, folder.PrivateRootID, alice)

		tx := e.begin(t)
		defer tx.Rollback(ctx)
		_, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: folder.PrivateRootID,
			Entries:  []acl.Entry{{Subject: bob, Folder: acl.FolderVisible}},
		}, principal(alice))
		assert.Equal(t, folderrors.CodeImmutableFolder, folderrors.CodeOf(err))
	})
}

func TestHandDown(t *testing.T) {
	ctx := context.Background()

	t.Run("applies the set to admissible descendants and skips the rest", func(t *testing.T) {
		e := newEnv(t)
		root := e.create(t, folder.CreateRequest{
			Tenant:      testTenant,
			Parent:      folder.PublicRootID,
			Name:        "Board",
			Type:        folder.TypePublic,
			Module:      folder.ModuleContact,
			Permissions: []acl.Entry{adminEntry(alice)},
		}, principal(alice))
		reachable := e.create(t, folder.CreateRequest{
			Tenant:      testTenant,
			Parent:      root.ID,
			Name:        "Reachable",
			Type:        folder.TypePublic,
			Module:      folder.ModuleContact,
			Permissions: []acl.Entry{adminEntry(alice)},
		}, principal(alice))
		blocked := &folder.Node{
			ID:          600,
			Tenant:      testTenant,
			Parent:      root.ID,
			Name:        "Blocked",
			Type:        folder.TypePublic,
			Module:      folder.ModuleContact,
			CreatedBy:   bob,
			Permissions: []acl.Entry{adminEntry(bob)},
		}
		e.store.Seed(blocked)

		entries := []acl.Entry{
			adminEntry(alice),
			{Subject: carol, Folder: acl.FolderVisible, Read: acl.LevelAll},
		}

		tx := e.begin(t)
		res, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: root.ID,
			Entries:  entries,
			HandDown: true,
		}, principal(alice))
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))

		require.Len(t, res.Warnings, 1)
		assert.Equal(t, folder.WarningHandDownSkipped, res.Warnings[0].Code)
		assert.Equal(t, blocked.ID, res.Warnings[0].FolderID)

		assert.Len(t, e.get(t, reachable.ID).Permissions, 2)
		assert.Len(t, e.get(t, blocked.ID).Permissions, 1)
	})

	t.Run("invalid set for a private descendant is skipped", func(t *testing.T) {
		e := newEnv(t)
		root := e.create(t, folder.CreateRequest{
			Tenant:      testTenant,
			Parent:      folder.PublicRootID,
			Name:        "Board",
			Type:        folder.TypePublic,
			Module:      folder.ModuleContact,
			Permissions: []acl.Entry{adminEntry(alice)},
		}, principal(alice))
		// A private descendant owned by carol but administered by alice.
		// Any handed-down set with alice as sole admin violates its
		// owner-admin invariant.
		e.store.Seed(&folder.Node{
			ID:          601,
			Tenant:      testTenant,
			Parent:      root.ID,
			Name:        "Carols corner",
			Type:        folder.TypePrivate,
			Module:      folder.ModuleContact,
			CreatedBy:   carol,
			Permissions: []acl.Entry{adminEntry(alice)},
		})

		tx := e.begin(t)
		res, err := e.val.UpdatePermissions(ctx, tx, folder.UpdatePermissionsRequest{
			Tenant:   testTenant,
			FolderID: root.ID,
			Entries:  []acl.Entry{adminEntry(alice)},
			HandDown: true,
		}, principal(alice))
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))

		require.Len(t, res.Warnings, 1)
		assert.Equal(t, folder.WarningHandDownSkipped, res.Warnings[0].Code)
		assert.Equal(t, int64(601), res.Warnings[0].FolderID)
	})
}
