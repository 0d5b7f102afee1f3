package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionTable(t *testing.T) {
	for p := Permission(0); p < permissionCount; p++ {
		assert.True(t, Allowed(RoleAdmin, p), p.String())
		assert.True(t, Allowed(RoleManager, p), p.String())
	}

	assert.True(t, Allowed(RolePatternMaker, PlanCreate))
	assert.True(t, Allowed(RolePatternMaker, TaskCreate))
	assert.True(t, Allowed(RolePatternMaker, TaskDelete))
	assert.True(t, Allowed(RolePatternMaker, OrderRead))
	assert.False(t, Allowed(RolePatternMaker, TaskRead))
	assert.False(t, Allowed(RolePatternMaker, PlanPublish))
	assert.False(t, Allowed(RolePatternMaker, PlanFreeze))

	assert.True(t, Allowed(RoleWorker, TaskRead))
	assert.True(t, Allowed(RoleWorker, LogVoid))
	assert.False(t, Allowed(RoleWorker, PlanRead))
	assert.False(t, Allowed(RoleWorker, UserRead))

	assert.False(t, Allowed(Role("guest"), OrderRead))
}

func TestAllowedToken(t *testing.T) {
	assert.True(t, AllowedToken("ADMIN", "plan:freeze"))
	assert.True(t, AllowedToken("pattern_maker", "layout:update"))
	assert.False(t, AllowedToken("pattern_maker", "task:read"))
	assert.False(t, AllowedToken("worker", "plan:teleport"))
	assert.False(t, AllowedToken("", "order:read"))
}

func TestPermissionTokensRoundTrip(t *testing.T) {
	for p := Permission(0); p < permissionCount; p++ {
		got, ok := ParsePermission(p.String())
		require.True(t, ok, p.String())
		assert.Equal(t, p, got)
	}
	assert.Len(t, PermissionsOf(RoleWorker).Tokens(), 5)
}

func TestCanCreateRoleSingleton(t *testing.T) {
	withAdmin := Census{RoleAdmin: 1}

	for _, actor := range Roles {
		d := CanCreateRole(actor, RoleAdmin, withAdmin)
		assert.False(t, d.Allowed, actor)
		assert.NotEmpty(t, d.Reason, actor)
	}

	d := CanCreateRole(RoleAdmin, RoleManager, Census{RoleAdmin: 1, RoleManager: 1})
	assert.False(t, d.Allowed)
	assert.Equal(t, "系统已存在经理，不能创建新的经理用户", d.Reason)

	d = CanCreateRole(RoleManager, RoleManager, withAdmin)
	assert.False(t, d.Allowed)
	assert.Equal(t, "不能创建经理用户", d.Reason)

	assert.True(t, CanCreateRole(RoleAdmin, RoleManager, withAdmin).Allowed)
	assert.True(t, CanCreateRole(RoleManager, RoleWorker, withAdmin).Allowed)
	assert.False(t, CanCreateRole(Role(""), RoleWorker, withAdmin).Allowed)
}

func TestSelfGuard(t *testing.T) {
	admin := Subject{ID: "u1", Role: RoleAdmin}
	manager := Subject{ID: "u2", Role: RoleManager}
	worker := Subject{ID: "u3", Role: RoleWorker}

	for _, f := range []Field{FieldRole, FieldActive, FieldDelete} {
		assert.False(t, CanModifySelf(admin, admin, f))
		assert.False(t, CanModifySelf(manager, manager, f))
		assert.True(t, CanModifySelf(worker, worker, f))
		assert.True(t, CanModifySelf(admin, manager, f))
	}

	d := CheckUserOperation(admin, admin, OpDelete)
	assert.False(t, d.Allowed)
	assert.Equal(t, "不能删除自己的账号", d.Reason)
	assert.True(t, CheckUserOperation(admin, admin, OpEditProfile).Allowed)
}

func TestManagerCannotOperateAdmin(t *testing.T) {
	admin := Subject{ID: "u1", Role: RoleAdmin}
	manager := Subject{ID: "u2", Role: RoleManager}
	worker := Subject{ID: "u3", Role: RoleWorker}

	for _, op := range []UserOp{OpEditProfile, OpAssignRole, OpSetActive, OpResetPassword, OpDelete} {
		d := CheckUserOperation(manager, admin, op)
		assert.False(t, d.Allowed)
		assert.NotEmpty(t, d.Reason)
		assert.True(t, CheckUserOperation(manager, worker, op).Allowed)
		assert.True(t, CheckUserOperation(admin, manager, op).Allowed)
	}
	assert.True(t, RoleCanOperateOn(RoleAdmin, RoleAdmin))
	assert.False(t, RoleCanOperateOn(RoleManager, RoleAdmin))
}
