package workorder

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Repo 封装工单在本地副本库上的读写。
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

func (r *Repo) Create(ctx context.Context, w *WorkOrder) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(w).Error
}

func (r *Repo) Save(ctx context.Context, w *WorkOrder) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Save(w).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*WorkOrder, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var w WorkOrder
	if err := db.Where("id = ?", id).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Where("id = ?", id).Delete(&WorkOrder{}).Error
}

// ListFilter 查询条件。
type ListFilter struct {
	VehicleID  string
	MechanicID string
	Status     Status
	Priority   Priority
	Offset     int
	Limit      int
}

// List 支持按车辆 / 技师 / 状态 / 优先级过滤 + 分页。
func (r *Repo) List(ctx context.Context, f ListFilter) ([]WorkOrder, int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := db.Model(&WorkOrder{})
	if f.VehicleID != "" {
		q = q.Where("vehicle_id = ?", f.VehicleID)
	}
	if f.MechanicID != "" {
		q = q.Where("assigned_mechanic_id = ?", f.MechanicID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []WorkOrder
	if err := q.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListAll 返回当前快照里的全部工单（聚合器重算用）。
func (r *Repo) ListAll(ctx context.Context) ([]WorkOrder, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var orders []WorkOrder
	if err := db.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
