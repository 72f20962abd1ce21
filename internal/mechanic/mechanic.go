package mechanic

import (
	"strings"
	"time"
)

// Mechanic 是 mechanics 表的 GORM 模型（技师花名册）。
// Active 为 false 表示离岗/停用，不计入利用率分母。
type Mechanic struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Name           string    `gorm:"size:64;not null" json:"name"`
	GarageID       string    `gorm:"index;size:36" json:"garage_id"`
	Specialty      string    `gorm:"size:64" json:"specialty,omitempty"`
	ShiftPattern   string    `gorm:"size:32" json:"shift_pattern,omitempty"`
	Certifications string    `gorm:"size:256" json:"certifications,omitempty"` // 逗号分隔，例如 "ASE T4,CDL"
	Active         bool      `gorm:"not null" json:"active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m Mechanic) CertificationsSlice() []string {
	if strings.TrimSpace(m.Certifications) == "" {
		return nil
	}
	parts := strings.Split(m.Certifications, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func CertificationsJoin(certs []string) string {
	if len(certs) == 0 {
		return ""
	}
	out := make([]string, 0, len(certs))
	for _, c := range certs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	return strings.Join(out, ",")
}
