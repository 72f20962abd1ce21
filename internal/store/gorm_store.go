package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// ModelFactory 返回某个 Kind 对应的空 GORM 模型实例。
// 由启动层注册（车辆 / 工单 / 技师），store 包自身不依赖任何领域包。
type ModelFactory func() interface{}

// GormStore 是权威记录库的 GORM 实现（生产环境为 MySQL）。
// 每次成功写入后向 Bus 发布 ChangeEvent，充当实时变更流。
type GormStore struct {
	db  *gorm.DB
	bus *Bus

	mu     sync.RWMutex
	models map[Kind]ModelFactory
}

func NewGormStore(db *gorm.DB, bus *Bus) *GormStore {
	return &GormStore{
		db:     db,
		bus:    bus,
		models: make(map[Kind]ModelFactory),
	}
}

// Register 登记一类实体的模型工厂。未登记的 Kind 一律拒绝。
func (s *GormStore) Register(kind Kind, factory ModelFactory) {
	if s == nil || kind == "" || factory == nil {
		return
	}
	s.mu.Lock()
	s.models[kind] = factory
	s.mu.Unlock()
}

func (s *GormStore) factory(kind Kind) (ModelFactory, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store db is nil")
	}
	s.mu.RLock()
	f, ok := s.models[kind]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown record kind: %s", kind)
	}
	return f, nil
}

func (s *GormStore) Get(ctx context.Context, kind Kind, id string) (json.RawMessage, error) {
	f, err := s.factory(kind)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("id required")
	}
	m := f()
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(m).Error; err != nil {
		return nil, err
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s record: %w", kind, err)
	}
	return raw, nil
}

func (s *GormStore) Upsert(ctx context.Context, kind Kind, payload json.RawMessage) error {
	f, err := s.factory(kind)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return fmt.Errorf("payload is empty")
	}

	id, err := payloadID(payload)
	if err != nil {
		return err
	}

	m := f()
	if err := json.Unmarshal(payload, m); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", kind, err)
	}

	// 先探测是否已存在，用于区分事件类型（对订阅方只是提示，重算不依赖它）。
	changeType := OpUpdate
	probe := f()
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(probe).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		changeType = OpInsert
	}

	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(ChangeEvent{Kind: kind, ID: id, Type: changeType})
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, kind Kind, id string) error {
	f, err := s.factory(kind)
	if err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("id required")
	}
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(f()).Error; err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(ChangeEvent{Kind: kind, ID: id, Type: OpDelete})
	}
	return nil
}

// payloadID 从实体 JSON 里取出主键 id。
func payloadID(payload json.RawMessage) (string, error) {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return "", fmt.Errorf("parse payload id: %w", err)
	}
	if probe.ID == "" {
		return "", fmt.Errorf("payload missing id")
	}
	return probe.ID, nil
}
