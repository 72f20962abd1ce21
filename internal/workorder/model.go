package workorder

import "time"

// Priority 工单优先级，P0 最紧急（当日必须处理），P3 可延期。
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// Status 工单状态枚举（持久化为字符串，取值继承记录库约定）。
type Status string

const (
	StatusOpen       Status = "Open"
	StatusWaiting    Status = "Waiting"
	StatusInProgress Status = "In Progress"
	StatusClosed     Status = "Closed"
	StatusCancelled  Status = "Cancelled"
)

// Type 工单类型：预防性保养 / 故障维修。
type Type string

const (
	TypePreventive Type = "Preventive"
	TypeRepair     Type = "Repair"
)

// WorkOrder 是 work_orders 表的 GORM 模型。
// 不变量：ClosedAt 非空当且仅当 Status == Closed；Priority 在创建时由
// 优先级引擎写入，之后仅允许显式人工覆盖。
type WorkOrder struct {
	ID                 string     `gorm:"primaryKey;size:36" json:"id"`
	VehicleID          string     `gorm:"index;size:36;not null" json:"vehicle_id"`
	AssignedMechanicID string     `gorm:"index;size:36" json:"assigned_mechanic_id,omitempty"`
	Priority           Priority   `gorm:"type:varchar(4);index;not null" json:"priority"`
	Status             Status     `gorm:"type:varchar(16);index;not null" json:"status"`
	Type               Type       `gorm:"type:varchar(16);not null" json:"type"`
	Title              string     `gorm:"size:255" json:"title"`
	Description        string     `gorm:"type:text" json:"description,omitempty"`
	IssueType          string     `gorm:"size:64" json:"issue_type,omitempty"`
	CreatedBy          string     `gorm:"size:36" json:"created_by,omitempty"`
	EstimatedHours     float64    `json:"estimated_hours,omitempty"`
	ActualHours        float64    `json:"actual_hours,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`
}

// Active 判断工单是否仍在处理流程内（未关闭、未取消）。
func (w *WorkOrder) Active() bool {
	if w == nil {
		return false
	}
	return w.Status != StatusClosed && w.Status != StatusCancelled
}

// RepairDuration 返回从创建到关闭的耗时；未关闭或缺时间戳时第二个返回值为 false。
func (w *WorkOrder) RepairDuration() (time.Duration, bool) {
	if w == nil || w.Status != StatusClosed || w.ClosedAt == nil || w.CreatedAt.IsZero() {
		return 0, false
	}
	return w.ClosedAt.Sub(w.CreatedAt), true
}
