package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/transitland/fleetops/internal/store"
	"gorm.io/gorm"
)

const defaultRetryCeiling = 3

// Queue 是持久化的离线写队列（FIFO，至少一次投递）。
// 条目落在本地 SQLite，跨进程重启存活；所有入口由同一把互斥锁串行化。
// Dequeue 只是读取最老条目（peek），确认成功前不删除，
// 进程在发送途中崩溃也不会丢操作。
type Queue struct {
	mu         sync.Mutex
	db         *gorm.DB
	maxRetries int
	abandoned  chan QueuedOperation
}

// NewQueue 构造队列。maxRetries <= 0 时取默认上限 3。
func NewQueue(db *gorm.DB, maxRetries int) *Queue {
	if maxRetries <= 0 {
		maxRetries = defaultRetryCeiling
	}
	return &Queue{
		db:         db,
		maxRetries: maxRetries,
		abandoned:  make(chan QueuedOperation, 16),
	}
}

// Enqueue 追加一条待投递操作（retries = 0）。只写本地库，不碰网络。
func (q *Queue) Enqueue(ctx context.Context, kind store.Kind, op store.OpType, payload json.RawMessage) (*QueuedOperation, error) {
	if q == nil || q.db == nil {
		return nil, fmt.Errorf("queue db is nil")
	}
	if kind == "" || op == "" {
		return nil, fmt.Errorf("kind and operation required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	entry := &QueuedOperation{
		ID:         uuid.NewString(),
		Kind:       kind,
		Op:         op,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// Dequeue 读取最老的条目供一次投递尝试；条目仍留在持久存储里，
// 直到调用方 ConfirmSuccess。队列为空返回 (nil, nil)。
func (q *Queue) Dequeue(ctx context.Context) (*QueuedOperation, error) {
	if q == nil || q.db == nil {
		return nil, fmt.Errorf("queue db is nil")
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	var entry QueuedOperation
	err := q.db.WithContext(ctx).Order("seq").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ConfirmSuccess 确认远端写入成功并移除条目——正常流程下条目离开队列的唯一方式。
func (q *Queue) ConfirmSuccess(ctx context.Context, id string) error {
	if q == nil || q.db == nil {
		return fmt.Errorf("queue db is nil")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.db.WithContext(ctx).Where("id = ?", id).Delete(&QueuedOperation{}).Error
}

// ConfirmFailure 记一次投递失败。达到重试上限时移除条目并在 Abandoned
// 通道上发出恰好一次 SyncAbandoned 事件——有界重试保证一条投不出去的
// 写不会无限期堵住后面的队列。终态事件不允许丢：发送在锁外阻塞进行，
// 消费方负责及时排出。返回值表示条目是否被放弃。
func (q *Queue) ConfirmFailure(ctx context.Context, id string) (bool, error) {
	if q == nil || q.db == nil {
		return false, fmt.Errorf("queue db is nil")
	}
	q.mu.Lock()

	var entry QueuedOperation
	if err := q.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		q.mu.Unlock()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	entry.Retries++
	if entry.Retries >= q.maxRetries {
		if err := q.db.WithContext(ctx).Where("id = ?", id).Delete(&QueuedOperation{}).Error; err != nil {
			q.mu.Unlock()
			return false, err
		}
		q.mu.Unlock()
		q.abandoned <- entry
		return true, nil
	}

	if err := q.db.WithContext(ctx).Save(&entry).Error; err != nil {
		q.mu.Unlock()
		return false, err
	}
	q.mu.Unlock()
	return false, nil
}

// PendingCount 当前待同步条数（仅用于用户侧同步状态展示）。
func (q *Queue) PendingCount(ctx context.Context) (int64, error) {
	if q == nil || q.db == nil {
		return 0, fmt.Errorf("queue db is nil")
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	var total int64
	if err := q.db.WithContext(ctx).Model(&QueuedOperation{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Abandoned 返回 SyncAbandoned 事件通道：条目耗尽重试后在此出现一次，
// 由上层转成“需要人工重试”的用户可见信号。
func (q *Queue) Abandoned() <-chan QueuedOperation {
	return q.abandoned
}
