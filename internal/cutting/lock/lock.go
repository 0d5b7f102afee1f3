// Package lock 计划编辑锁。同一计划同一时间只允许一个编辑者执行结构编辑。
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked 锁已被其他编辑者持有
var ErrLocked = errors.New("计划正在被其他用户编辑，请稍后重试")

// Locker 获取锁，成功时返回释放函数
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// ============================================================
// Redis 实现
// ============================================================

// 只释放自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker 基于 SET NX PX 的锁，适用于多实例部署
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: "cutrix:lock:"}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	ok, err := l.rdb.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// 请求上下文可能已取消，释放用独立上下文
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		releaseScript.Run(ctx, l.rdb, []string{l.prefix + key}, token)
	}, nil
}

// ============================================================
// 进程内实现
// ============================================================

// MemoryLocker 单实例部署或未配置 Redis 时使用
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]lease
	nowFn func() time.Time
}

type lease struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]lease), nowFn: time.Now}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, ErrLocked
	}
	token := uuid.New().String()
	l.held[key] = lease{token: token, expires: now.Add(ttl)}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.token == token {
			delete(l.held, key)
		}
	}, nil
}

// PlanKey 计划锁的键
func PlanKey(planID string) string {
	return "plan:" + planID
}

// OrderKey 订单下创建计划时使用
func OrderKey(orderID string) string {
	return "order:" + orderID
}

// RoleKey 创建或指派单例角色时使用
func RoleKey(role string) string {
	return "role:" + role
}
