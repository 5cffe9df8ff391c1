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

func TestTreeGet(t *testing.T) {
	ctx := context.Background()

	t.Run("missing node is not found", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.tree.Get(ctx, testTenant, 4242)
		assert.True(t, folderrors.IsNotFound(err))
	})

	t.Run("absent and invisible are distinct", func(t *testing.T) {
		e := newEnv(t)
		node := e.createPrivate(t, folder.PrivateRootID, "Projects", alice)

		_, err := e.tree.GetVisible(ctx, testTenant, node.ID, principal(bob))
		assert.True(t, folderrors.IsNotVisible(err))
		assert.False(t, folderrors.IsNotFound(err))

		_, err = e.tree.GetVisible(ctx, testTenant, 4242, principal(bob))
		assert.True(t, folderrors.IsNotFound(err))
	})

	t.Run("visible node is returned", func(t *testing.T) {
		e := newEnv(t)
		node := e.createPrivate(t, folder.PrivateRootID, "Projects", alice)

		got, err := e.tree.GetVisible(ctx, testTenant, node.ID, principal(alice))
		require.NoError(t, err)
		assert.Equal(t, node.ID, got.ID)
	})
}

func TestTreeChildren(t *testing.T) {
	ctx := context.Background()

	t.Run("default folders sort first, then by name", func(t *testing.T) {
		e := newEnv(t)
		parent := e.createPrivate(t, folder.PrivateRootID, "Projects", alice)
		e.createPrivate(t, parent.ID, "Zulu", alice)
		e.createPrivate(t, parent.ID, "Alpha", alice)
		e.store.Seed(&folder.Node{
			ID:          700,
			Tenant:      testTenant,
			Parent:      parent.ID,
			Name:        "Tasks",
			Type:        folder.TypePrivate,
			Module:      folder.ModuleTask,
			CreatedBy:   alice,
			Default:     true,
			Permissions: []acl.Entry{adminEntry(alice)},
		})

		children, err := e.tree.Children(ctx, testTenant, parent.ID)
		require.NoError(t, err)
		require.Len(t, children, 3)
		assert.Equal(t, "Tasks", children[0].Name)
		assert.Equal(t, "Alpha", children[1].Name)
		assert.Equal(t, "Zulu", children[2].Name)
	})

	t.Run("visible children filters by principal", func(t *testing.T) {
		e := newEnv(t)
		parent := e.createPrivate(t, folder.PrivateRootID, "Projects", alice)
		e.createPrivate(t, parent.ID, "Mine", alice)
		e.store.Seed(&folder.Node{
			ID:          701,
			Tenant:      testTenant,
			Parent:      parent.ID,
			Name:        "Bobs",
			Type:        folder.TypePrivate,
			Module:      folder.ModuleTask,
			CreatedBy:   bob,
			Permissions: []acl.Entry{adminEntry(bob)},
		})

		visible, err := e.tree.VisibleChildren(ctx, testTenant, parent.ID, principal(alice))
		require.NoError(t, err)
		require.Len(t, visible, 1)
		assert.Equal(t, "Mine", visible[0].Name)
	})
}

func TestTreeAncestors(t *testing.T) {
	ctx := context.Background()

	t.Run("full visible chain nearest-first", func(t *testing.T) {
		e := newEnv(t)
		top := e.createPrivate(t, folder.PrivateRootID, "Top", alice)
		mid := e.createPrivate(t, top.ID, "Mid", alice)
		leaf := e.createPrivate(t, mid.ID, "Leaf", alice)

		chain, err := e.tree.AncestorsToRoot(ctx, testTenant, leaf.ID, principal(alice))
		require.NoError(t, err)
		require.Len(t, chain, 3)
		assert.Equal(t, mid.ID, chain[0].ID)
		assert.Equal(t, top.ID, chain[1].ID)
		assert.Equal(t, folder.PrivateRootID, chain[2].ID)
	})

	t.Run("foreign shared folder gets a virtual ancestor", func(t *testing.T) {
		e := newEnv(t)
		parent := e.createPrivate(t, folder.PrivateRootID, "Alice parent", alice)
		shared := e.create(t, folder.CreateRequest{
			Tenant: testTenant,
			Parent: parent.ID,
			Name:   "Handout",
			Type:   folder.TypePrivate,
			Module: folder.ModuleTask,
			Permissions: []acl.Entry{
				adminEntry(alice),
				{Subject: bob, Folder: acl.FolderVisible, Read: acl.LevelAll},
			},
		}, principal(alice))

		chain, err := e.tree.AncestorsToRoot(ctx, testTenant, shared.ID, principal(bob))
		require.NoError(t, err)
		require.Len(t, chain, 2)

		virtual := chain[0]
		assert.True(t, virtual.Virtual)
		assert.Equal(t, folder.VirtualSharedID(alice), virtual.ID)
		assert.Equal(t, folder.TypeShared, virtual.Type)
		assert.Equal(t, alice, virtual.CreatedBy)

		assert.Equal(t, folder.SharedRootID, chain[1].ID)
	})

	t.Run("own folder with invisible parent gets no virtual ancestor", func(t *testing.T) {
		e := newEnv(t)
		e.store.Seed(&folder.Node{
			ID:          702,
			Tenant:      testTenant,
			Parent:      folder.PrivateRootID,
			Name:        "Opaque",
			Type:        folder.TypePrivate,
			Module:      folder.ModuleTask,
			CreatedBy:   bob,
			Permissions: []acl.Entry{adminEntry(bob)},
		})
		mine := &folder.Node{
			ID:          703,
			Tenant:      testTenant,
			Parent:      702,
			Name:        "Mine",
			Type:        folder.TypePrivate,
			Module:      folder.ModuleTask,
			CreatedBy:   alice,
			Permissions: []acl.Entry{adminEntry(alice)},
		}
		e.store.Seed(mine)

		chain, err := e.tree.AncestorsToRoot(ctx, testTenant, mine.ID, principal(alice))
		require.NoError(t, err)
		assert.Empty(t, chain)
	})
}

func TestTreeIsDescendant(t *testing.T) {
	ctx := context.Background()

	e := newEnv(t)
	top := e.createPrivate(t, folder.PrivateRootID, "Top", alice)
	mid := e.createPrivate(t, top.ID, "Mid", alice)
	leaf := e.createPrivate(t, mid.ID, "Leaf", alice)
	other := e.createPrivate(t, folder.PrivateRootID, "Other", alice)

	tests := []struct {
		name      string
		ancestors []int64
		target    int64
		want      bool
	}{
		{"direct child", []int64{top.ID}, mid.ID, true},
		{"transitive", []int64{top.ID}, leaf.ID, true},
		{"not its own descendant", []int64{top.ID}, top.ID, false},
		{"sibling branch", []int64{other.ID}, leaf.ID, false},
		{"multiple candidates", []int64{other.ID, mid.ID}, leaf.ID, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.tree.IsDescendant(ctx, testTenant, tt.ancestors, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTreeWalkVisible(t *testing.T) {
	ctx := context.Background()

	t.Run("prunes invisible branches without a visible direct child", func(t *testing.T) {
		e := newEnv(t)

		// Visible to bob.
		mine := e.createPrivate(t, folder.PrivateRootID, "Mine", bob)

		// Invisible to bob, but with a visible direct child: included.
		bridge := e.createPrivate(t, folder.PrivateRootID, "Bridge", alice)
		handout := e.create(t, folder.CreateRequest{
			Tenant: testTenant,
			Parent: bridge.ID,
			Name:   "Handout",
			Type:   folder.TypePrivate,
			Module: folder.ModuleTask,
			Permissions: []acl.Entry{
				adminEntry(alice),
				{Subject: bob, Folder: acl.FolderVisible},
			},
		}, principal(alice))

		// Invisible with only a visible grandchild: pruned, the peek goes
		// one level deep only.
		opaque := e.createPrivate(t, folder.PrivateRootID, "Opaque", alice)
		inner := e.createPrivate(t, opaque.ID, "Inner", alice)
		e.create(t, folder.CreateRequest{
			Tenant: testTenant,
			Parent: inner.ID,
			Name:   "Deep handout",
			Type:   folder.TypePrivate,
			Module: folder.ModuleTask,
			Permissions: []acl.Entry{
				adminEntry(alice),
				{Subject: bob, Folder: acl.FolderVisible},
			},
		}, principal(alice))

		var names []string
		err := e.tree.WalkVisible(ctx, testTenant, folder.PrivateRootID, principal(bob), func(n *folder.Node) bool {
			names = append(names, n.Name)
			return true
		})
		require.NoError(t, err)

		assert.Contains(t, names, mine.Name)
		assert.Contains(t, names, bridge.Name)
		assert.Contains(t, names, handout.Name)
		assert.NotContains(t, names, opaque.Name)
		assert.NotContains(t, names, "Inner")
		assert.NotContains(t, names, "Deep handout")
	})

	t.Run("stops early when the callback returns false", func(t *testing.T) {
		e := newEnv(t)
		e.createPrivate(t, folder.PrivateRootID, "One", alice)
		e.createPrivate(t, folder.PrivateRootID, "Two", alice)
		e.createPrivate(t, folder.PrivateRootID, "Three", alice)

		var count int
		err := e.tree.WalkVisible(ctx, testTenant, folder.PrivateRootID, principal(alice), func(n *folder.Node) bool {
			count++
			return count < 2
		})
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestTreeCache(t *testing.T) {
	ctx := context.Background()

	t.Run("serves cached reads until invalidated", func(t *testing.T) {
		e := newEnvWith(t, folder.Config{
			EnableFolderCache:         true,
			EnableSharedFolderCaching: true,
		})
		node := e.createPrivate(t, folder.PrivateRootID, "Projects", alice)

		first, err := e.tree.Get(ctx, testTenant, node.ID)
		require.NoError(t, err)
		require.Equal(t, "Projects", first.Name)

		// Mutate behind the cache's back.
		renamed := first.Clone()
		renamed.Name = "Stale check"
		e.store.Seed(renamed)

		cached, err := e.tree.Get(ctx, testTenant, node.ID)
		require.NoError(t, err)
		assert.Equal(t, "Projects", cached.Name)

		e.tree.Invalidate(testTenant, node.ID)
		fresh, err := e.tree.Get(ctx, testTenant, node.ID)
		require.NoError(t, err)
		assert.Equal(t, "Stale check", fresh.Name)
	})

	t.Run("private nodes bypass the cache without shared caching", func(t *testing.T) {
		e := newEnvWith(t, folder.Config{EnableFolderCache: true})
		node := e.createPrivate(t, folder.PrivateRootID, "Projects", alice)

		first, err := e.tree.Get(ctx, testTenant, node.ID)
		require.NoError(t, err)

		renamed := first.Clone()
		renamed.Name = "Fresh"
		e.store.Seed(renamed)

		got, err := e.tree.Get(ctx, testTenant, node.ID)
		require.NoError(t, err)
		assert.Equal(t, "Fresh", got.Name)
	})
}
