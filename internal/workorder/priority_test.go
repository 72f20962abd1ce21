package workorder

import (
	"testing"
	"time"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 10, 0, 0, 0, time.UTC)
}

func TestClassifyBase(t *testing.T) {
	tests := []struct {
		issueType string
		want      Priority
	}{
		{"Brakes", PriorityP0},
		{"Wheelchair Lift", PriorityP0},
		{"Steering", PriorityP0},
		{"Tires - Critical", PriorityP0},
		{"A/C", PriorityP1},
		{"Heater", PriorityP1},
		{"Engine", PriorityP1},
		{"Transmission", PriorityP1},
		{"Minor Leak", PriorityP2},
		{"Electrical - Minor", PriorityP2},
		{"Body - Minor", PriorityP2},
		{"Cosmetic", PriorityP3},
		{"Torn Seat", PriorityP3},
		{"Dent", PriorityP3},
		// 大小写不敏感
		{"brakes", PriorityP0},
		{"BRAKES", PriorityP0},
		{"a/c", PriorityP1},
		// 未知类型默认 P3
		{"Flux Capacitor", PriorityP3},
		{"", PriorityP3},
		{"  ", PriorityP3},
	}
	for _, tt := range tests {
		if got := ClassifyBase(tt.issueType); got != tt.want {
			t.Errorf("ClassifyBase(%q) = %s, want %s", tt.issueType, got, tt.want)
		}
	}
}

func TestClassifyPrioritySeasonal(t *testing.T) {
	tests := []struct {
		name      string
		issueType string
		at        time.Time
		want      Priority
	}{
		{"A/C in July is critical", "A/C", date(2024, time.July, 10), PriorityP0},
		{"A/C in June is critical", "A/C", date(2024, time.June, 1), PriorityP0},
		{"A/C in August is critical", "A/C", date(2024, time.August, 31), PriorityP0},
		{"A/C in January is P1", "A/C", date(2024, time.January, 15), PriorityP1},
		{"A/C in September is P1", "A/C", date(2024, time.September, 1), PriorityP1},
		{"Heater in January is critical", "Heater", date(2024, time.January, 15), PriorityP0},
		{"Heater in November is critical", "Heater", date(2024, time.November, 1), PriorityP0},
		{"Heater in December is critical", "Heater", date(2024, time.December, 25), PriorityP0},
		{"Heater in March is critical", "Heater", date(2024, time.March, 31), PriorityP0},
		{"Heater in April is P1", "Heater", date(2024, time.April, 1), PriorityP1},
		{"Heater in July is P1", "Heater", date(2024, time.July, 10), PriorityP1},
		// 季节规则只作用于 A/C 和 Heater
		{"Brakes in July still P0", "Brakes", date(2024, time.July, 10), PriorityP0},
		{"Cosmetic in January still P3", "Cosmetic", date(2024, time.January, 10), PriorityP3},
		{"Engine in December still P1", "Engine", date(2024, time.December, 10), PriorityP1},
		// 季节提升同样大小写不敏感
		{"lowercase a/c in July", "a/c", date(2024, time.July, 10), PriorityP0},
		{"lowercase heater in February", "heater", date(2024, time.February, 10), PriorityP0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyPriority(tt.issueType, tt.at); got != tt.want {
				t.Errorf("ClassifyPriority(%q, %s) = %s, want %s", tt.issueType, tt.at.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestKnownIssueType(t *testing.T) {
	if !KnownIssueType("Brakes") {
		t.Error("Brakes should be a known issue type")
	}
	if !KnownIssueType("torn seat") {
		t.Error("matching should be case-insensitive")
	}
	if KnownIssueType("Flux Capacitor") {
		t.Error("unknown type should not be reported as known")
	}
}

func TestShouldEscalateToOpsManager(t *testing.T) {
	// 冬季的 Brakes 上报：P0，升级到运营经理
	p := ClassifyPriority("Brakes", date(2024, time.January, 15))
	if p != PriorityP0 {
		t.Fatalf("Brakes priority = %s, want P0", p)
	}
	if !ShouldEscalateToOpsManager(p) {
		t.Error("P0 must escalate")
	}

	if !ShouldEscalateToOpsManager(PriorityP1) {
		t.Error("P1 must escalate")
	}
	if ShouldEscalateToOpsManager(PriorityP2) {
		t.Error("P2 must not escalate")
	}
	if ShouldEscalateToOpsManager(PriorityP3) {
		t.Error("P3 must not escalate")
	}
}

func TestTargetResolutionWindow(t *testing.T) {
	tests := []struct {
		p    Priority
		want string
	}{
		{PriorityP0, "Same-day"},
		{PriorityP1, "24 hours"},
		{PriorityP2, "3-5 days"},
		{PriorityP3, "Next scheduled service"},
	}
	for _, tt := range tests {
		if got := TargetResolutionWindow(tt.p); got != tt.want {
			t.Errorf("TargetResolutionWindow(%s) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestIsCritical(t *testing.T) {
	if !IsCritical("Steering", date(2024, time.May, 1)) {
		t.Error("Steering should always be critical")
	}
	if IsCritical("A/C", date(2024, time.February, 1)) {
		t.Error("A/C should not be critical off-season")
	}
	if !IsCritical("A/C", date(2024, time.July, 1)) {
		t.Error("A/C should be critical in summer")
	}
}
