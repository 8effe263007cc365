package storage

import (
	"context"
	"time"
)

// Store 抽象一个只有单键 get/set/delete/前缀扫描 的外部 KV 存储。
// 没有跨键事务、没有 CAS：上层必须用幂等写 + 懒修复来维持不变量，
// 绝不能假设两次写是原子的。
type Store interface {
	// Get 返回 (值, 是否存在, 错误)
	Get(ctx context.Context, key string) (string, bool, error)
	// Set 写入；opts 可带 TTL（短生命周期记录的兜底回收）
	Set(ctx context.Context, key, value string, opts *SetOpts) error
	Delete(ctx context.Context, key string) error
	// ListKeys 返回所有以 prefix 开头的键
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

type SetOpts struct {
	TTL time.Duration // <=0 表示不过期
}

const (
	// BackendRedis / BackendMemory 由配置选择，注入同一个接口
	BackendRedis  = "redis"
	BackendMemory = "memory"

	// DefaultOpTimeout 单次存储调用超时；超时回 503 而不是挂住调用方
	DefaultOpTimeout = 3 * time.Second
)
