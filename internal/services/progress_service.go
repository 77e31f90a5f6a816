// internal/services/progress_service.go
package services

import (
	"sync"
	"time"
)

// ProgressUpdate 进度更新消息
type ProgressUpdate struct {
	TaskID    string    `json:"task_id"`
	Step      string    `json:"step"`
	Message   string    `json:"message"`
	Percent   int       `json:"percent"`
	Completed bool      `json:"completed"`
	Failed    bool      `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressTracker 单个任务的进度跟踪器
type ProgressTracker struct {
	taskID string

	mu          sync.RWMutex
	last        ProgressUpdate
	subscribers map[chan ProgressUpdate]struct{}
	done        chan struct{}
	closed      bool
	finishedAt  time.Time
}

// ProgressService 管理所有进行中任务的进度跟踪器
type ProgressService struct {
	mu       sync.RWMutex
	trackers map[string]*ProgressTracker
}

// NewProgressService 创建进度服务
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
	}
}

// CreateTracker 为任务创建（或复用）进度跟踪器
func (s *ProgressService) CreateTracker(taskID string) *ProgressTracker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tracker, exists := s.trackers[taskID]; exists {
		return tracker
	}

	tracker := &ProgressTracker{
		taskID:      taskID,
		subscribers: make(map[chan ProgressUpdate]struct{}),
		done:        make(chan struct{}),
	}
	s.trackers[taskID] = tracker
	return tracker
}

// GetTracker 查找任务的进度跟踪器
func (s *ProgressService) GetTracker(taskID string) (*ProgressTracker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tracker, exists := s.trackers[taskID]
	return tracker, exists
}

// CleanupCompletedTasks 清理完成超过maxAge的跟踪器
func (s *ProgressService) CleanupCompletedTasks(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for taskID, tracker := range s.trackers {
		tracker.mu.RLock()
		expired := tracker.closed && tracker.finishedAt.Before(cutoff)
		tracker.mu.RUnlock()

		if expired {
			delete(s.trackers, taskID)
			removed++
		}
	}
	return removed
}

// TaskID 返回跟踪器绑定的任务ID
func (t *ProgressTracker) TaskID() string {
	return t.taskID
}

// Subscribe 订阅进度更新，返回只读通道
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	ch := make(chan ProgressUpdate, 16)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		// 已结束的任务只回放最终状态
		ch <- t.last
		close(ch)
		return ch
	}
	t.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe 取消订阅
func (t *ProgressTracker) Unsubscribe(ch chan ProgressUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.subscribers[ch]; exists {
		delete(t.subscribers, ch)
		close(ch)
	}
}

// Done 任务结束信号
func (t *ProgressTracker) Done() <-chan struct{} {
	return t.done
}

// UpdateProgress 广播一次进度更新（非阻塞，慢订阅者丢弃）
func (t *ProgressTracker) UpdateProgress(step, message string, percent int) {
	t.broadcast(ProgressUpdate{
		TaskID:    t.taskID,
		Step:      step,
		Message:   message,
		Percent:   percent,
		Timestamp: time.Now(),
	}, false)
}

// Complete 标记任务成功结束
func (t *ProgressTracker) Complete(message string) {
	t.broadcast(ProgressUpdate{
		TaskID:    t.taskID,
		Step:      "done",
		Message:   message,
		Percent:   100,
		Completed: true,
		Timestamp: time.Now(),
	}, true)
}

// Fail 标记任务失败结束
func (t *ProgressTracker) Fail(message string) {
	t.broadcast(ProgressUpdate{
		TaskID:    t.taskID,
		Step:      "failed",
		Message:   message,
		Failed:    true,
		Timestamp: time.Now(),
	}, true)
}

func (t *ProgressTracker) broadcast(update ProgressUpdate, final bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.last = update

	for ch := range t.subscribers {
		select {
		case ch <- update:
		default:
		}
	}

	if final {
		t.closed = true
		t.finishedAt = time.Now()
		for ch := range t.subscribers {
			close(ch)
		}
		t.subscribers = make(map[chan ProgressUpdate]struct{})
		close(t.done)
	}
}
