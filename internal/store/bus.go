package store

import "sync"

// Bus 是进程内的实时变更流实现：权威库写入后发布 ChangeEvent，
// 聚合器订阅后触发重算。发布端永不阻塞，订阅方消费不过来时丢事件
// （重算是幂等的整体重算，丢事件只影响时效，不影响正确性）。
type Bus struct {
	mu     sync.Mutex
	subs   []chan ChangeEvent
	closed bool
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe 返回一个带缓冲的事件通道。
func (b *Bus) Subscribe() <-chan ChangeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan ChangeEvent, 64)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish 向所有订阅者广播事件（非阻塞）。
func (b *Bus) Publish(ev ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
