package offline

import (
	"context"

	"github.com/transitland/fleetops/internal/common/logger"
	"github.com/transitland/fleetops/internal/store"
)

// Replicator 是同步的入站半边：消费权威库的实时变更流，
// 把远端变化落到本地副本库。本地与远端都用 store.Store 表达，
// 副本应用就是 Get + Upsert 的搬运。
type Replicator struct {
	remote store.Store
	local  store.Store
	log    logger.Logger
}

func NewReplicator(remote, local store.Store, log logger.Logger) *Replicator {
	return &Replicator{remote: remote, local: local, log: log}
}

// Apply 处理一条变更事件。
func (r *Replicator) Apply(ctx context.Context, ev store.ChangeEvent) error {
	if r == nil || r.remote == nil || r.local == nil {
		return nil
	}
	if ev.Type == store.OpDelete {
		return r.local.Delete(ctx, ev.Kind, ev.ID)
	}
	raw, err := r.remote.Get(ctx, ev.Kind, ev.ID)
	if err != nil {
		return err
	}
	return r.local.Upsert(ctx, ev.Kind, raw)
}

// Run 消费变更流直到 ctx 结束或通道关闭。
func (r *Replicator) Run(ctx context.Context, events <-chan store.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := r.Apply(ctx, ev); err != nil && r.log != nil {
				r.log.WithFields(map[string]interface{}{
					"kind": string(ev.Kind),
					"id":   ev.ID,
					"type": string(ev.Type),
				}).Warnf("replica apply failed: %v", err)
			}
		}
	}
}
