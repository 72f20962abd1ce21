package winter

import (
	"math"
	"time"

	"github.com/transitland/fleetops/internal/vehicle"
)

// 冬季化窗口：每年 10 月 1 日开始，11 月 1 日为硬截止。
// 截止后未完成冬季化的车辆不得回到可调度状态。

// Season 返回给定时间所在年份的冬季化起始与截止时间（沿用传入时区）。
func Season(at time.Time) (start, deadline time.Time) {
	start = time.Date(at.Year(), time.October, 1, 0, 0, 0, 0, at.Location())
	deadline = time.Date(at.Year(), time.November, 1, 0, 0, 0, 0, at.Location())
	return start, deadline
}

// IsWinterizationPeriod 是否处于冬季化准备期（10/1 起、11/1 前）。
func IsWinterizationPeriod(at time.Time) bool {
	start, deadline := Season(at)
	return !at.Before(start) && at.Before(deadline)
}

// IsAfterDeadline 是否已过当年截止日。
func IsAfterDeadline(at time.Time) bool {
	_, deadline := Season(at)
	return !at.Before(deadline)
}

// ShouldBlockDispatch 截止后未冬季化的车辆禁止调度。
func ShouldBlockDispatch(winterized bool, at time.Time) bool {
	return IsAfterDeadline(at) && !winterized
}

// ShouldInjectChecklist 准备期内未冬季化的车辆需要在表单里附加检查清单。
func ShouldInjectChecklist(winterized bool, at time.Time) bool {
	return IsWinterizationPeriod(at) && !winterized
}

// DaysUntilDeadline 距截止日的天数（已过期为负）。
func DaysUntilDeadline(at time.Time) int {
	_, deadline := Season(at)
	return int(math.Ceil(deadline.Sub(at).Hours() / 24))
}

// ChecklistText 返回冬季化检查清单文本。
func ChecklistText() string {
	return `WINTERIZATION CHECKLIST REQUIRED:
- Anti-gel additive check
- Heater system check
- Tire tread depth check (must be > 4/32")
- Battery condition check
- Windshield wiper condition`
}

// DispatchGuard 构造状态机守卫：截止后未冬季化的车辆禁止流转到 AVAILABLE。
// now 由上层注入（基准时区时钟）。
func DispatchGuard(now func() time.Time) vehicle.TransitionGuard {
	if now == nil {
		now = time.Now
	}
	return func(v *vehicle.Vehicle, to vehicle.Status) bool {
		if to != vehicle.StatusAvailable {
			return true
		}
		if v == nil {
			return false
		}
		return !ShouldBlockDispatch(v.Winterized, now())
	}
}
