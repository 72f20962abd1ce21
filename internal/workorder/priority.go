package workorder

import (
	"strings"
	"time"
)

// IssueType 优先级矩阵的一行：问题类型到基础优先级的映射。
type IssueType struct {
	Type        string
	Priority    Priority
	Description string
}

// priorityMatrix 是封闭的已知问题类型集合。匹配不区分大小写；
// 未命中的类型默认 P3（未分类的问题在被定级前视为非紧急）。
var priorityMatrix = []IssueType{
	// P0：安全 / 合规
	{Type: "Brakes", Priority: PriorityP0, Description: "Critical safety issue"},
	{Type: "Wheelchair Lift", Priority: PriorityP0, Description: "ADA compliance issue"},
	{Type: "Steering", Priority: PriorityP0, Description: "Critical safety issue"},
	{Type: "Tires - Critical", Priority: PriorityP0, Description: "Critical safety issue"},

	// P1：影响运营
	{Type: "A/C", Priority: PriorityP1, Description: "Service impacting in summer"},
	{Type: "Heater", Priority: PriorityP1, Description: "Service impacting in winter"},
	{Type: "Engine", Priority: PriorityP1, Description: "Service impacting"},
	{Type: "Transmission", Priority: PriorityP1, Description: "Service impacting"},

	// P2：性能 / 效率
	{Type: "Minor Leak", Priority: PriorityP2, Description: "Performance issue"},
	{Type: "Electrical - Minor", Priority: PriorityP2, Description: "Performance issue"},
	{Type: "Body - Minor", Priority: PriorityP2, Description: "Performance issue"},

	// P3：可延期
	{Type: "Cosmetic", Priority: PriorityP3, Description: "Deferrable"},
	{Type: "Torn Seat", Priority: PriorityP3, Description: "Deferrable"},
	{Type: "Dent", Priority: PriorityP3, Description: "Deferrable"},
}

// ClassifyBase 只查矩阵，不考虑季节。总函数，永不报错。
func ClassifyBase(issueType string) Priority {
	t := strings.TrimSpace(issueType)
	if t == "" {
		return PriorityP3
	}
	for _, row := range priorityMatrix {
		if strings.EqualFold(row.Type, t) {
			return row.Priority
		}
	}
	return PriorityP3
}

// KnownIssueType 判断类型是否在矩阵内（调用方可据此记录“默认定级”事件，
// 便于维护矩阵；默认定级本身不是错误）。
func KnownIssueType(issueType string) bool {
	t := strings.TrimSpace(issueType)
	for _, row := range priorityMatrix {
		if strings.EqualFold(row.Type, t) {
			return true
		}
	}
	return false
}

// ClassifyPriority 在基础矩阵之上叠加季节规则：
// A/C 在 6–8 月、Heater 在 11–3 月提升为 P0。坏掉的空调/暖风只在
// 需要它的季节构成安全问题，仅靠矩阵会低估优先级。
// 月份取自传入时间自身的时区；调用方负责用统一的基准时区构造时间。
func ClassifyPriority(issueType string, at time.Time) Priority {
	base := ClassifyBase(issueType)

	t := strings.TrimSpace(issueType)
	month := at.Month()

	if strings.EqualFold(t, "A/C") && month >= time.June && month <= time.August {
		return PriorityP0
	}
	if strings.EqualFold(t, "Heater") && (month >= time.November || month <= time.March) {
		return PriorityP0
	}

	return base
}

// IsCritical 判断问题在给定时间点是否为 P0。
func IsCritical(issueType string, at time.Time) bool {
	return ClassifyPriority(issueType, at) == PriorityP0
}

// ShouldEscalateToOpsManager 为 true 时触发带外通知（仅 P0 / P1）。
// 通知如何投递由通知协作方决定，这里只负责判定。
func ShouldEscalateToOpsManager(p Priority) bool {
	return p == PriorityP0 || p == PriorityP1
}

// TargetResolutionWindow 返回各优先级的目标处理时限（仅用于展示/告警，
// 不是强制 deadline）。
func TargetResolutionWindow(p Priority) string {
	switch p {
	case PriorityP0:
		return "Same-day"
	case PriorityP1:
		return "24 hours"
	case PriorityP2:
		return "3-5 days"
	default:
		return "Next scheduled service"
	}
}

// PriorityDescription 返回面向用户的优先级说明。
func PriorityDescription(p Priority) string {
	switch p {
	case PriorityP0:
		return "Critical: Safety/Compliance issue - Same-day fix required"
	case PriorityP1:
		return "High: Service impacting - 24h fix target"
	case PriorityP2:
		return "Medium: Performance/Efficiency - 3-5 days target"
	default:
		return "Deferrable: Cosmetic - Next scheduled service"
	}
}

// IssueTypes 返回矩阵全量行（表单下拉等场景使用）。
func IssueTypes() []IssueType {
	out := make([]IssueType, len(priorityMatrix))
	copy(out, priorityMatrix)
	return out
}
