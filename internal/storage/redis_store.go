// internal/storage/redis_store.go
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Corphon/CineWeaverMCP/internal/models"
)

const sessionKeyPrefix = "cineweaver:session:"

// RedisStore 基于Redis的会话存储，用于多实例部署
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisConfig Redis连接配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisStore 创建Redis会话存储并验证连通性
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis连接失败 %s: %w", cfg.Addr, err)
	}

	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// Get 读取会话记录
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis读取会话失败: %w", err)
	}

	var record models.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("会话记录反序列化失败: %w", err)
	}
	return &record, nil
}

// Set 写入会话记录（后写覆盖，刷新TTL）
func (s *RedisStore) Set(ctx context.Context, sessionID string, record *models.SessionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("会话记录序列化失败: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis写入会话失败: %w", err)
	}
	return nil
}

// Delete 删除会话记录
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis删除会话失败: %w", err)
	}
	return nil
}

// Close 关闭Redis连接
func (s *RedisStore) Close() error {
	return s.client.Close()
}
