package offline

import (
	"encoding/json"
	"time"

	"github.com/transitland/fleetops/internal/store"
)

// QueuedOperation 是 queued_operations 表的 GORM 模型：一条待投递的写操作。
// Seq 自增主键保证严格的入队顺序；记录只归离线队列所有，
// 其它组件不得直接改写队列条目。
type QueuedOperation struct {
	Seq        uint64          `gorm:"primaryKey;autoIncrement" json:"-"`
	ID         string          `gorm:"uniqueIndex;size:36" json:"id"`
	Kind       store.Kind      `gorm:"size:32;not null" json:"kind"`
	Op         store.OpType    `gorm:"type:varchar(8);not null" json:"operation"`
	Payload    json.RawMessage `gorm:"type:blob" json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Retries    int             `gorm:"not null;default:0" json:"retries"`
}

// TargetID 从 payload 里取目标实体 id（DELETE 投递时使用）。
func (q *QueuedOperation) TargetID() string {
	if q == nil || len(q.Payload) == 0 {
		return ""
	}
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(q.Payload, &probe); err != nil {
		return ""
	}
	return probe.ID
}
