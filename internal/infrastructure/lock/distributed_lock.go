package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 引擎内所有余额变动都是"读-改-写"序列，单个请求内部靠数据库事务保证原子，
// 但后台可能有多个管理员会话同时操作同一笔订单/充值申请，
// 所以按实体维度加一把 Redis 锁，保证同一实体的状态转移串行执行。
//
// 加锁：SET key value NX EX timeout
//   - NX 保证互斥，EX 防止持有者崩溃后死锁
//   - value 是持有者标识，释放时校验，避免误删别人的锁
// 释放：Lua 脚本保证"校验 + 删除"原子执行
//
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 持有者标识
	expiration time.Duration
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁，value 不匹配时不删除（锁已过期被别人拿走的场景）
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 便捷构造：按实体维度的锁
// ============================================================================

// NewWalletLock 钱包锁（按用户维度）
// 下单扣款、提取推荐收益都要先拿这把锁，同一用户串行，不同用户互不影响
func NewWalletLock(client *redis.Client, uid string, holder string) *DistributedLock {
	key := fmt.Sprintf("wallet:lock:user:%s", uid)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}

// NewOrderLock 订单锁（按订单号维度）
// 两个管理员同时批复同一笔订单时，后拿到锁的会看到终态并被状态保护拒绝
func NewOrderLock(client *redis.Client, orderNo string, holder string) *DistributedLock {
	key := fmt.Sprintf("order:lock:%s", orderNo)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}

// NewFundRequestLock 充值申请锁（按申请单号维度）
func NewFundRequestLock(client *redis.Client, requestNo string, holder string) *DistributedLock {
	key := fmt.Sprintf("fund:lock:%s", requestNo)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}
