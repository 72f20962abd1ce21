package vehicle

import "time"

// Status 车辆生命周期状态枚举（持久化为字符串，取值与记录库约定一致）。
type Status string

const (
	StatusAvailable      Status = "AVAILABLE"       // 可调度
	StatusInService      Status = "IN_SERVICE"      // 运营中
	StatusMaintenanceDue Status = "MAINTENANCE_DUE" // 待保养
	StatusInMaintenance  Status = "IN_MAINTENANCE"  // 维修中
	StatusOutOfService   Status = "OUT_OF_SERVICE"  // 停运（可恢复，非终态）
)

// Vehicle 是 vehicles 表的 GORM 模型。
// Status 只允许通过状态机流转（ApplyTransition）；其它字段写入不得隐式改变状态。
// JSON 字段名与记录库字段一一对应，供离线队列的 payload 直接使用。
type Vehicle struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	VIN              string     `gorm:"uniqueIndex;size:64" json:"vin"`
	Status           Status     `gorm:"type:varchar(20);index;not null" json:"status"`
	GarageID         string     `gorm:"index;size:36" json:"garage_id"`
	CurrentDriverID  string     `gorm:"size:36" json:"current_driver_id,omitempty"`
	Winterized       bool       `gorm:"not null;default:false" json:"winterized_bool"`
	Make             string     `gorm:"size:64" json:"make,omitempty"`
	Model            string     `gorm:"size:64" json:"model,omitempty"`
	Year             int        `json:"year,omitempty"`
	Odometer         int64      `gorm:"not null;default:0" json:"odometer"`
	LastServiceDate  *time.Time `json:"last_service_date,omitempty"`
	NextServiceMiles int64      `json:"next_service_miles,omitempty"`
	NextServiceDate  *time.Time `json:"next_service_date,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ServiceDue 判断是否已过保养里程或保养日期（用于把车辆标记为 MAINTENANCE_DUE）。
func (v *Vehicle) ServiceDue(now time.Time) bool {
	if v == nil {
		return false
	}
	if v.NextServiceMiles > 0 && v.Odometer >= v.NextServiceMiles {
		return true
	}
	if v.NextServiceDate != nil && !now.Before(*v.NextServiceDate) {
		return true
	}
	return false
}
