package auth

import (
	"testing"
	"time"

	"docvault/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestGate_Can(t *testing.T) {
	owner := model.Actor{ID: "user-1"}
	stranger := model.Actor{ID: "user-2"}
	admin := model.Actor{ID: "user-3", Admin: true}

	active := &model.Document{ID: "doc-1", OwnerID: "user-1"}
	now := time.Now()
	trashed := &model.Document{ID: "doc-2", OwnerID: "user-1", DeletedAt: &now}

	g := NewGate(false)

	t.Run("ownership actions", func(t *testing.T) {
		for _, action := range []Action{ActionView, ActionUpdate, ActionDelete, ActionRestore, ActionDownload} {
			assert.True(t, g.Can(owner, action, active), "owner %s", action)
			assert.False(t, g.Can(stranger, action, active), "stranger %s", action)
			assert.True(t, g.Can(admin, action, active), "admin %s", action)
		}
	})

	t.Run("purge is admin-only by default", func(t *testing.T) {
		assert.True(t, g.Can(admin, ActionPurge, trashed))
		assert.False(t, g.Can(owner, ActionPurge, trashed))
		assert.False(t, g.Can(stranger, ActionPurge, trashed))
	})

	t.Run("owner purge when policy allows", func(t *testing.T) {
		permissive := NewGate(true)
		assert.True(t, permissive.Can(owner, ActionPurge, trashed))
		assert.False(t, permissive.Can(stranger, ActionPurge, trashed))
	})

	t.Run("nil document always denied", func(t *testing.T) {
		assert.False(t, g.Can(admin, ActionView, nil))
	})
}
