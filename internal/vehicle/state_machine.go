package vehicle

import "fmt"

// allowTransition 定义车辆生命周期状态机的允许流转关系。
// 有向、不对称；未配置的 (from, to) 一律非法，不存在默认流转。
// OUT_OF_SERVICE 不是终态：修复后可以回到维修或可调度状态。
var allowTransition = map[Status][]Status{
	StatusAvailable:      {StatusInService, StatusMaintenanceDue, StatusInMaintenance, StatusOutOfService},
	StatusInService:      {StatusAvailable, StatusMaintenanceDue, StatusOutOfService},
	StatusMaintenanceDue: {StatusInMaintenance, StatusOutOfService},
	StatusInMaintenance:  {StatusAvailable, StatusOutOfService},
	StatusOutOfService:   {StatusInMaintenance, StatusAvailable},
}

// CanTransition 判断 from -> to 是否在流转表内（纯表查询，不含守卫）。
// 注意：表内没有自环，from == to 同样非法。
func CanTransition(from, to Status) bool {
	allowed, ok := allowTransition[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionGuard 是附加在流转表之上的守卫谓词（例如冬季化政策对
// * -> AVAILABLE 边的限制）。返回 false 表示本次流转被守卫否决。
type TransitionGuard func(v *Vehicle, to Status) bool

// InvalidTransitionError 表示一次非法的状态流转请求。
// 调用方应改选合法目标状态；该错误不会部分生效。
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid vehicle status transition: %s -> %s", e.From, e.To)
}

// StateMachine 持有守卫谓词集合。守卫由上层按部署注入（构造参数），
// 便于在测试里组合多个独立实例。
type StateMachine struct {
	guards []TransitionGuard
}

func NewStateMachine(guards ...TransitionGuard) *StateMachine {
	return &StateMachine{guards: guards}
}

// CanTransition 在流转表之上叠加守卫判断。
func (m *StateMachine) CanTransition(v *Vehicle, to Status) bool {
	if v == nil {
		return false
	}
	if !CanTransition(v.Status, to) {
		return false
	}
	if m == nil {
		return true
	}
	for _, g := range m.guards {
		if g == nil {
			continue
		}
		if !g(v, to) {
			return false
		}
	}
	return true
}

// ValidNextStates 按流转表顺序返回当前可达的目标状态（已过守卫过滤）。
func (m *StateMachine) ValidNextStates(v *Vehicle) []Status {
	if v == nil {
		return nil
	}
	allowed := allowTransition[v.Status]
	out := make([]Status, 0, len(allowed))
	for _, to := range allowed {
		if m.CanTransition(v, to) {
			out = append(out, to)
		}
	}
	return out
}

// ApplyTransition 对车辆应用状态变更。仅在流转合法时写入 Status，
// 否则返回 *InvalidTransitionError 且不做任何修改；持久化由调用方负责。
func (m *StateMachine) ApplyTransition(v *Vehicle, to Status) error {
	if v == nil {
		return fmt.Errorf("vehicle is nil")
	}
	if !m.CanTransition(v, to) {
		return &InvalidTransitionError{From: v.Status, To: to}
	}
	v.Status = to
	return nil
}
