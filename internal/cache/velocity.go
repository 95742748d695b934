package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 滑动窗口计数：ZSET 以时间戳为分值，先清理窗口外成员再计数
var velocityRecordScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return redis.call("ZCARD", KEYS[1])
`)

// VelocityCounter 基于 Redis 的滑动窗口计数器
type VelocityCounter struct {
	client *redis.Client
	prefix string
}

// NewVelocityCounter 创建计数器，client 为空时返回 nil
func NewVelocityCounter(client *redis.Client, prefix string) *VelocityCounter {
	if client == nil {
		return nil
	}
	return &VelocityCounter{client: client, prefix: prefix}
}

// Count 返回窗口内的事件数
func (v *VelocityCounter) Count(ctx context.Context, key string, window time.Duration, now time.Time) (int64, error) {
	if v == nil || v.client == nil {
		return 0, nil
	}
	min := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	return v.client.ZCount(ctx, v.key(key), min, "+inf").Result()
}

// Record 记录一次事件并返回记录后的窗口计数
func (v *VelocityCounter) Record(ctx context.Context, key string, window time.Duration, now time.Time) (int64, error) {
	if v == nil || v.client == nil {
		return 0, nil
	}
	nowMS := now.UnixMilli()
	cutoff := now.Add(-window).UnixMilli() - 1
	member := fmt.Sprintf("%d-%s", nowMS, uuid.NewString())
	result, err := velocityRecordScript.Run(ctx, v.client, []string{v.key(key)},
		nowMS, cutoff, member, window.Milliseconds()).Int64()
	if err != nil {
		return 0, err
	}
	return result, nil
}

func (v *VelocityCounter) key(key string) string {
	if v.prefix == "" {
		return key
	}
	return v.prefix + ":" + key
}
