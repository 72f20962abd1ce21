package mechanic

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, m *Mechanic) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) Save(ctx context.Context, m *Mechanic) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *Repo) FindByID(ctx context.Context, id string) (*Mechanic, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var m Mechanic
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListActive 返回在岗技师（可按车库过滤）。
func (r *Repo) ListActive(ctx context.Context, garageID string) ([]Mechanic, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	q := r.db.WithContext(ctx).Model(&Mechanic{}).Where("active = ?", true)
	if garageID != "" {
		q = q.Where("garage_id = ?", garageID)
	}
	var mechanics []Mechanic
	if err := q.Order("name").Find(&mechanics).Error; err != nil {
		return nil, err
	}
	return mechanics, nil
}

// CountActive 在岗技师数（利用率指标的分母）。
func (r *Repo) CountActive(ctx context.Context, garageID string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repo db is nil")
	}
	q := r.db.WithContext(ctx).Model(&Mechanic{}).Where("active = ?", true)
	if garageID != "" {
		q = q.Where("garage_id = ?", garageID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
