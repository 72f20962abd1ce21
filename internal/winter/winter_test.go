package winter

import (
	"testing"
	"time"

	"github.com/transitland/fleetops/internal/vehicle"
)

func at(month time.Month, day int) time.Time {
	return time.Date(2024, month, day, 12, 0, 0, 0, time.UTC)
}

func TestSeasonWindow(t *testing.T) {
	tests := []struct {
		name     string
		at       time.Time
		inPeriod bool
		pastDue  bool
	}{
		{"September is before the window", at(time.September, 30), false, false},
		{"October 1 opens the window", at(time.October, 1), true, false},
		{"mid October", at(time.October, 15), true, false},
		{"October 31 still in window", at(time.October, 31), true, false},
		{"November 1 is past deadline", at(time.November, 1), false, true},
		{"December is past deadline", at(time.December, 15), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWinterizationPeriod(tt.at); got != tt.inPeriod {
				t.Errorf("IsWinterizationPeriod = %v, want %v", got, tt.inPeriod)
			}
			if got := IsAfterDeadline(tt.at); got != tt.pastDue {
				t.Errorf("IsAfterDeadline = %v, want %v", got, tt.pastDue)
			}
		})
	}
}

func TestShouldBlockDispatch(t *testing.T) {
	// 截止后未冬季化 -> 禁止调度
	if !ShouldBlockDispatch(false, at(time.November, 15)) {
		t.Error("non-winterized vehicle must be blocked after the deadline")
	}
	if ShouldBlockDispatch(true, at(time.November, 15)) {
		t.Error("winterized vehicle must not be blocked")
	}
	if ShouldBlockDispatch(false, at(time.October, 15)) {
		t.Error("deadline has not passed yet in October")
	}
}

func TestShouldInjectChecklist(t *testing.T) {
	if !ShouldInjectChecklist(false, at(time.October, 15)) {
		t.Error("checklist required for non-winterized vehicle during the window")
	}
	if ShouldInjectChecklist(true, at(time.October, 15)) {
		t.Error("winterized vehicle needs no checklist")
	}
	if ShouldInjectChecklist(false, at(time.July, 15)) {
		t.Error("no checklist outside the window")
	}
}

func TestDaysUntilDeadline(t *testing.T) {
	d := DaysUntilDeadline(time.Date(2024, time.October, 29, 0, 0, 0, 0, time.UTC))
	if d != 3 {
		t.Errorf("DaysUntilDeadline = %d, want 3", d)
	}
	if got := DaysUntilDeadline(at(time.November, 5)); got >= 0 {
		t.Errorf("past deadline should be negative, got %d", got)
	}
}

func TestDispatchGuard(t *testing.T) {
	clock := func() time.Time { return at(time.November, 15) }
	guard := DispatchGuard(clock)

	v := &vehicle.Vehicle{ID: "v1", Status: vehicle.StatusInMaintenance, Winterized: false}
	if guard(v, vehicle.StatusAvailable) {
		t.Error("guard must veto AVAILABLE for non-winterized vehicle past deadline")
	}
	// 其它目标状态不受守卫影响
	if !guard(v, vehicle.StatusOutOfService) {
		t.Error("guard must only apply to the AVAILABLE edge")
	}

	v.Winterized = true
	if !guard(v, vehicle.StatusAvailable) {
		t.Error("winterized vehicle must pass the guard")
	}

	// 整机验证：守卫接入状态机后 ValidNextStates 同步收缩
	sm := vehicle.NewStateMachine(DispatchGuard(clock))
	blocked := &vehicle.Vehicle{ID: "v2", Status: vehicle.StatusInMaintenance, Winterized: false}
	for _, s := range sm.ValidNextStates(blocked) {
		if s == vehicle.StatusAvailable {
			t.Error("AVAILABLE should not be reachable for blocked vehicle")
		}
	}
}
