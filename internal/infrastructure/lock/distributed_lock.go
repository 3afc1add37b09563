package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// Redis 分布式锁
// ============================================================================
//
// 同一买家重复提交上车请求、同一商家并发提现，都会产生重复扣减，
// 先用 SET NX EX 抢锁，业务在锁内再做一次幂等/余额校验。
//
// 释放锁走 Lua 脚本：先校验 value 是自己的再删除，避免误删他人持有的锁。
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string        // 锁持有者标识，释放时校验
	expiration time.Duration // 过期兜底，防止持有方崩溃导致死锁
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

// Unlock 释放锁，校验与删除走同一段 Lua 保证原子性
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

// NewPurchaseLock 上车锁（按买家维度）
// 同一买家的上车请求串行执行，不同买家互不影响
func NewPurchaseLock(client *redis.Client, userID int64, requestID string) *DistributedLock {
	key := fmt.Sprintf("purchase:lock:user:%d", userID)
	return NewDistributedLock(client, key, requestID, 30*time.Second)
}

// NewWithdrawLock 提现锁（按商家维度）
// 防止同一钱包并发提现导致超扣
func NewWithdrawLock(client *redis.Client, merchantName, requestID string) *DistributedLock {
	key := fmt.Sprintf("withdraw:lock:merchant:%s", merchantName)
	return NewDistributedLock(client, key, requestID, 30*time.Second)
}
