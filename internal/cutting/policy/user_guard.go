package policy

// Subject 参与权限判断的用户（只需要身份和角色）
type Subject struct {
	ID   string
	Role Role
}

// Field 自我操作受限的字段
type Field int

const (
	FieldRole   Field = iota // 修改角色
	FieldActive              // 启用/停用
	FieldDelete              // 删除账号
)

// UserOp 对目标用户的操作
type UserOp int

const (
	OpEditProfile UserOp = iota
	OpAssignRole
	OpSetActive
	OpResetPassword
	OpDelete
)

// Decision 带原因的判断结果
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Census 各角色现有用户数量，每次判断前从存储实时查询
type Census map[Role]int

// Has 是否已存在该角色的用户
func (c Census) Has(r Role) bool {
	return c[r] > 0
}

// RoleCanOperateOn manager 不能操作 admin，与操作者身份无关
func RoleCanOperateOn(actor, target Role) bool {
	return !(actor == RoleManager && target == RoleAdmin)
}

// CanModifySelf admin 和 manager 不能修改自己的角色、状态，也不能删除自己；其他角色不受限制
func CanModifySelf(actor, target Subject, field Field) bool {
	if actor.ID == "" || actor.ID != target.ID {
		return true
	}
	switch field {
	case FieldRole, FieldActive, FieldDelete:
		return !actor.Role.IsSingleton()
	}
	return true
}

// CanCreateRole 检查是否可以创建（或指派）指定角色
func CanCreateRole(actor Role, role Role, census Census) Decision {
	if _, ok := ParseRole(string(actor)); !ok {
		return deny("未登录")
	}
	switch role {
	case RoleAdmin:
		if census.Has(RoleAdmin) {
			return deny("系统已存在管理员，不能创建新的管理员用户")
		}
		if actor == RoleAdmin {
			return deny("不能创建新的管理员用户，系统只需一个管理员")
		}
		if actor == RoleManager {
			return deny("没有权限创建管理员用户")
		}
	case RoleManager:
		if actor == RoleManager {
			return deny("不能创建经理用户")
		}
		if actor != RoleAdmin {
			return deny("只有管理员可以创建经理用户")
		}
		if census.Has(RoleManager) {
			return deny("系统已存在经理，不能创建新的经理用户")
		}
	case RolePatternMaker, RoleWorker:
	default:
		return deny("未知角色")
	}
	return allow()
}

// CheckUserOperation 组合跨角色与自我操作保护
func CheckUserOperation(actor, target Subject, op UserOp) Decision {
	if !RoleCanOperateOn(actor.Role, target.Role) {
		switch op {
		case OpEditProfile:
			return deny("经理不能编辑管理员")
		case OpAssignRole:
			return deny("经理不能修改管理员的角色")
		case OpSetActive:
			return deny("经理不能停用管理员")
		case OpResetPassword:
			return deny("经理不能重置管理员的密码")
		case OpDelete:
			return deny("经理不能删除管理员")
		}
	}
	switch op {
	case OpAssignRole:
		if !CanModifySelf(actor, target, FieldRole) {
			return deny("不能修改自己的角色")
		}
	case OpSetActive:
		if !CanModifySelf(actor, target, FieldActive) {
			return deny("不能修改自己的账号状态")
		}
	case OpDelete:
		if !CanModifySelf(actor, target, FieldDelete) {
			return deny("不能删除自己的账号")
		}
	}
	return allow()
}
