package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/transitland/fleetops/internal/common/logger"
	"github.com/transitland/fleetops/internal/common/middleware"
	"github.com/transitland/fleetops/internal/store"
)

// Notifier 同步放弃事件的带外通知出口。
type Notifier interface {
	Notify(ctx context.Context, event string, fields map[string]interface{})
}

// Driver 是对账驱动：连通性信号上的状态机 {Online, Offline}。
// 离线时所有写入进队列并立即落本地副本（乐观更新）；恢复在线时
// 按入队顺序串行排空队列。排空禁止并发，以保住单实体写顺序。
type Driver struct {
	queue *Queue
	store store.Store

	breaker        *middleware.CircuitBreaker
	pacer          middleware.RateLimiter
	log            logger.Logger
	notifier       Notifier
	attemptTimeout time.Duration

	mu     sync.Mutex
	online bool

	drainMu sync.Mutex
}

// DriverOption 构造期配置。
type DriverOption func(*Driver)

// WithCircuitBreaker 在排空路径上包一层熔断：远端持续不可达时
// 快速失败，避免每次排空都吃满超时。
func WithCircuitBreaker(cb *middleware.CircuitBreaker) DriverOption {
	return func(d *Driver) { d.breaker = cb }
}

// WithDrainPacer 限制排空节奏（令牌桶），防止恢复在线瞬间打爆远端。
func WithDrainPacer(rl middleware.RateLimiter) DriverOption {
	return func(d *Driver) { d.pacer = rl }
}

// WithAttemptTimeout 单次投递尝试的超时上限；挂死的远端调用按失败处理。
func WithAttemptTimeout(timeout time.Duration) DriverOption {
	return func(d *Driver) {
		if timeout > 0 {
			d.attemptTimeout = timeout
		}
	}
}

func WithLogger(log logger.Logger) DriverOption {
	return func(d *Driver) { d.log = log }
}

// WithNotifier 注入 SyncAbandoned 的通知出口。
func WithNotifier(n Notifier) DriverOption {
	return func(d *Driver) { d.notifier = n }
}

func NewDriver(queue *Queue, st store.Store, opts ...DriverOption) *Driver {
	d := &Driver{
		queue:          queue,
		store:          st,
		attemptTimeout: 10 * time.Second,
	}
	for _, apply := range opts {
		if apply != nil {
			apply(d)
		}
	}
	return d
}

// Online 返回当前连通性状态。
func (d *Driver) Online() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online
}

// SetOnline 切换连通性；Offline -> Online 触发一轮排空。
func (d *Driver) SetOnline(ctx context.Context, online bool) {
	d.mu.Lock()
	wasOnline := d.online
	d.online = online
	d.mu.Unlock()

	if d.log != nil && wasOnline != online {
		d.log.Infof("connectivity changed: online=%v", online)
	}
	if online && !wasOnline {
		if err := d.Drain(ctx); err != nil && d.log != nil {
			d.log.Warnf("drain after reconnect stopped: %v", err)
		}
	}
}

// Write 是三个上游组件写入权威库的唯一通道：
// 在线且无积压时直写（保持顺序：有积压必须排队尾）；直写失败或处于
// 离线时入队，由下一次排空投递。入队永不阻塞在网络上。
func (d *Driver) Write(ctx context.Context, kind store.Kind, op store.OpType, payload json.RawMessage) error {
	if d == nil || d.queue == nil {
		return fmt.Errorf("driver not initialized")
	}

	if d.Online() {
		pending, err := d.queue.PendingCount(ctx)
		if err != nil {
			return err
		}
		if pending == 0 {
			if err := d.apply(ctx, kind, op, payload); err == nil {
				return nil
			} else if d.log != nil {
				d.log.Warnf("direct write failed, queueing %s %s: %v", op, kind, err)
			}
		}
	}

	_, err := d.queue.Enqueue(ctx, kind, op, payload)
	return err
}

// PendingCount 透出队列积压数（同步状态指示）。
func (d *Driver) PendingCount(ctx context.Context) (int64, error) {
	if d == nil || d.queue == nil {
		return 0, fmt.Errorf("driver not initialized")
	}
	return d.queue.PendingCount(ctx)
}

// Run 消费连通性信号与定时信号直到 ctx 结束。
// 在线期间不做固定周期重试；只有重连信号或 tick 才触发排空，
// 行为保持可观察、可测试。
func (d *Driver) Run(ctx context.Context, connectivity <-chan bool, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-connectivity:
			if !ok {
				return
			}
			d.SetOnline(ctx, online)
		case <-tick:
			if d.Online() {
				if err := d.Drain(ctx); err != nil && d.log != nil {
					d.log.Warnf("scheduled drain stopped: %v", err)
				}
			}
		case op, ok := <-d.queue.Abandoned():
			if !ok {
				return
			}
			d.surfaceAbandoned(ctx, op)
		}
	}
}

// Drain 按入队顺序逐条投递，直到队列排空或本轮遇到失败。
// 单条失败即停止本轮（远端可能仍不可达，继续只会放大失败），
// 等下一次重连信号或 tick 再续。ctx 取消可随时中断，
// 先确认后删除的语义保证中断不损坏队列。
func (d *Driver) Drain(ctx context.Context) error {
	if d == nil || d.queue == nil || d.store == nil {
		return fmt.Errorf("driver not initialized")
	}
	d.drainMu.Lock()
	defer d.drainMu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.pace(ctx); err != nil {
			return err
		}

		entry, err := d.queue.Dequeue(ctx)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}

		if err := d.attempt(ctx, entry); err != nil {
			abandoned, ferr := d.queue.ConfirmFailure(ctx, entry.ID)
			if ferr != nil {
				return ferr
			}
			if d.log != nil {
				d.log.WithFields(map[string]interface{}{
					"op_id":     entry.ID,
					"kind":      string(entry.Kind),
					"operation": string(entry.Op),
					"retries":   entry.Retries + 1,
					"abandoned": abandoned,
				}).Warnf("sync attempt failed: %v", err)
			}
			return nil
		}

		if err := d.queue.ConfirmSuccess(ctx, entry.ID); err != nil {
			return err
		}
		if d.log != nil {
			d.log.Debugf("synced %s %s %s", entry.Op, entry.Kind, entry.ID)
		}
	}
}

// attempt 对一条队列条目做一次有超时的远端投递。
func (d *Driver) attempt(ctx context.Context, entry *QueuedOperation) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "offline.drain_attempt")
	span.SetTag("kind", string(entry.Kind))
	span.SetTag("operation", string(entry.Op))
	defer span.Finish()

	attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	defer cancel()

	call := func() error {
		return d.apply(attemptCtx, entry.Kind, entry.Op, entry.Payload)
	}
	if d.breaker != nil {
		return d.breaker.Call(attemptCtx, call)
	}
	return call()
}

// apply 把一条写操作翻译成记录库调用。
func (d *Driver) apply(ctx context.Context, kind store.Kind, op store.OpType, payload json.RawMessage) error {
	switch op {
	case store.OpInsert, store.OpUpdate:
		return d.store.Upsert(ctx, kind, payload)
	case store.OpDelete:
		entry := QueuedOperation{Payload: payload}
		id := entry.TargetID()
		if id == "" {
			return fmt.Errorf("delete payload missing id")
		}
		return d.store.Delete(ctx, kind, id)
	default:
		return fmt.Errorf("unknown operation: %s", op)
	}
}

// pace 等待排空令牌（未配置 pacer 时直接放行）。
func (d *Driver) pace(ctx context.Context) error {
	if d.pacer == nil {
		return nil
	}
	for !d.pacer.Allow(ctx) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

func (d *Driver) surfaceAbandoned(ctx context.Context, op QueuedOperation) {
	if d.log != nil {
		d.log.WithFields(map[string]interface{}{
			"op_id":     op.ID,
			"kind":      string(op.Kind),
			"operation": string(op.Op),
		}).Error("sync abandoned after retry ceiling, manual retry required")
	}
	if d.notifier != nil {
		d.notifier.Notify(ctx, "sync abandoned", map[string]interface{}{
			"op_id":     op.ID,
			"kind":      string(op.Kind),
			"operation": string(op.Op),
		})
	}
}
