// internal/storage/session_store.go
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Corphon/CineWeaverMCP/internal/models"
)

// ErrSessionNotFound 会话不存在
var ErrSessionNotFound = errors.New("session not found")

// SessionStore 会话存储接口（后写覆盖，单记录语义）
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*models.SessionRecord, error)
	Set(ctx context.Context, sessionID string, record *models.SessionRecord) error
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

// memoryEntry 内存存储条目
type memoryEntry struct {
	record    *models.SessionRecord
	expiresAt time.Time
}

// MemoryStore 进程内会话存储，带TTL后台清理
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore 创建内存会话存储，ttl<=0表示永不过期
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	store := &MemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}

	if ttl > 0 {
		go store.sweepLoop()
	}
	return store
}

// sweepLoop 周期清理过期会话
func (s *MemoryStore) sweepLoop() {
	interval := s.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep 删除所有已过期条目
func (s *MemoryStore) sweep() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.sessions {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.sessions, id)
		}
	}
}

// Get 读取会话记录
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	s.mu.RLock()
	entry, exists := s.sessions[sessionID]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrSessionNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	// 返回副本，避免调用方修改存储内状态
	record := *entry.record
	return &record, nil
}

// Set 写入会话记录（后写覆盖）
func (s *MemoryStore) Set(ctx context.Context, sessionID string, record *models.SessionRecord) error {
	copied := *record

	var expiresAt time.Time
	if s.ttl > 0 {
		expiresAt = time.Now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = memoryEntry{record: &copied, expiresAt: expiresAt}
	return nil
}

// Delete 删除会话记录
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Close 停止后台清理
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	return nil
}
