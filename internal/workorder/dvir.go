package workorder

// CheckResult 行车前检查单项结果。
type CheckResult string

const (
	CheckPass CheckResult = "pass"
	CheckFail CheckResult = "fail"
	CheckNA   CheckResult = "na"
)

// DVIRChecklist 司机行车前检查表（DVIR）。
// 刹车 / 转向 / 轮椅升降是命名的安全关键项：任一标记 fail 即强制 P0，
// 优先于文本矩阵（人工安全判定对矩阵有显式优先权）。
type DVIRChecklist struct {
	Brakes         CheckResult `json:"brakes"`
	Steering       CheckResult `json:"steering"`
	WheelchairLift CheckResult `json:"wheelchair_lift"`
	Lights         CheckResult `json:"lights"`
	Tires          CheckResult `json:"tires"`
	Body           CheckResult `json:"body"`
}

// criticalItems 安全关键项与其问题类型标签（标签与优先级矩阵行一致）。
var criticalItems = []struct {
	label  string
	result func(c DVIRChecklist) CheckResult
}{
	{"Brakes", func(c DVIRChecklist) CheckResult { return c.Brakes }},
	{"Steering", func(c DVIRChecklist) CheckResult { return c.Steering }},
	{"Wheelchair Lift", func(c DVIRChecklist) CheckResult { return c.WheelchairLift }},
}

// CriticalFailures 返回标记为 fail 的安全关键项标签。
func (c DVIRChecklist) CriticalFailures() []string {
	var out []string
	for _, item := range criticalItems {
		if item.result(c) == CheckFail {
			out = append(out, item.label)
		}
	}
	return out
}

// HasCriticalFailure 任一安全关键项失败即为 true。
func (c DVIRChecklist) HasCriticalFailure() bool {
	return len(c.CriticalFailures()) > 0
}
