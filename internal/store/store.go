package store

import (
	"context"
	"encoding/json"
)

// Kind 标识一类受管实体，取值与权威记录库的表名保持一致。
type Kind string

const (
	KindVehicle   Kind = "vehicles"
	KindWorkOrder Kind = "work_orders"
	KindMechanic  Kind = "mechanics"
)

// OpType 写操作类型（与离线队列里的 operation 字段同取值）。
type OpType string

const (
	OpInsert OpType = "INSERT"
	OpUpdate OpType = "UPDATE"
	OpDelete OpType = "DELETE"
)

// ChangeEvent 是实时变更流推送的事件：哪类实体的哪一条记录发生了什么变化。
// 订阅方（调度聚合器）收到后整体重算，不做增量维护。
type ChangeEvent struct {
	Kind Kind
	ID   string
	Type OpType
}

// Store 是权威记录库协作方的最小接口。
// 对账驱动在排空队列时逐条调用它；在线直写路径也走同一接口。
// payload 为实体字段的 JSON（字段名继承自记录库约定）。
type Store interface {
	Get(ctx context.Context, kind Kind, id string) (json.RawMessage, error)
	Upsert(ctx context.Context, kind Kind, payload json.RawMessage) error
	Delete(ctx context.Context, kind Kind, id string) error
}
