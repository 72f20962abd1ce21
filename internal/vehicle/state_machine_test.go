package vehicle

import (
	"errors"
	"testing"
)

var allStatuses = []Status{
	StatusAvailable,
	StatusInService,
	StatusMaintenanceDue,
	StatusInMaintenance,
	StatusOutOfService,
}

// 全量 5x5 流转矩阵：true 表示该有向边在流转表内。
var transitionTable = map[Status]map[Status]bool{
	StatusAvailable: {
		StatusAvailable:      false,
		StatusInService:      true,
		StatusMaintenanceDue: true,
		StatusInMaintenance:  true,
		StatusOutOfService:   true,
	},
	StatusInService: {
		StatusAvailable:      true,
		StatusInService:      false,
		StatusMaintenanceDue: true,
		StatusInMaintenance:  false,
		StatusOutOfService:   true,
	},
	StatusMaintenanceDue: {
		StatusAvailable:      false,
		StatusInService:      false,
		StatusMaintenanceDue: false,
		StatusInMaintenance:  true,
		StatusOutOfService:   true,
	},
	StatusInMaintenance: {
		StatusAvailable:      true,
		StatusInService:      false,
		StatusMaintenanceDue: false,
		StatusInMaintenance:  false,
		StatusOutOfService:   true,
	},
	StatusOutOfService: {
		StatusAvailable:      true,
		StatusInService:      false,
		StatusMaintenanceDue: false,
		StatusInMaintenance:  true,
		StatusOutOfService:   false,
	},
}

func TestCanTransitionExhaustive(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := transitionTable[from][to]
			got := CanTransition(from, to)
			if got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanTransitionNoSelfLoops(t *testing.T) {
	for _, s := range allStatuses {
		if CanTransition(s, s) {
			t.Errorf("CanTransition(%s, %s) = true, self transitions must be invalid", s, s)
		}
	}
}

func TestCanTransitionUnknownStatus(t *testing.T) {
	if CanTransition(Status("SCRAPPED"), StatusAvailable) {
		t.Error("unknown from status should not allow any transition")
	}
	if CanTransition(StatusAvailable, Status("SCRAPPED")) {
		t.Error("unknown to status should not be reachable")
	}
}

func TestApplyTransitionValid(t *testing.T) {
	m := NewStateMachine()
	v := &Vehicle{ID: "v1", Status: StatusInService}

	if err := m.ApplyTransition(v, StatusMaintenanceDue); err != nil {
		t.Fatalf("ApplyTransition failed: %v", err)
	}
	if v.Status != StatusMaintenanceDue {
		t.Errorf("status = %s, want %s", v.Status, StatusMaintenanceDue)
	}
}

func TestApplyTransitionInvalid(t *testing.T) {
	m := NewStateMachine()
	v := &Vehicle{ID: "v1", Status: StatusMaintenanceDue}

	err := m.ApplyTransition(v, StatusInService)
	if err == nil {
		t.Fatal("expected error for MAINTENANCE_DUE -> IN_SERVICE")
	}

	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("error type = %T, want *InvalidTransitionError", err)
	}
	if ite.From != StatusMaintenanceDue || ite.To != StatusInService {
		t.Errorf("error pair = %s -> %s, want %s -> %s", ite.From, ite.To, StatusMaintenanceDue, StatusInService)
	}
	// 被拒绝的流转不得部分生效
	if v.Status != StatusMaintenanceDue {
		t.Errorf("status changed to %s after rejected transition", v.Status)
	}
}

func TestOutOfServiceIsRecoverable(t *testing.T) {
	m := NewStateMachine()
	v := &Vehicle{ID: "v1", Status: StatusOutOfService}

	if err := m.ApplyTransition(v, StatusInMaintenance); err != nil {
		t.Fatalf("OUT_OF_SERVICE -> IN_MAINTENANCE should be legal: %v", err)
	}
	if err := m.ApplyTransition(v, StatusAvailable); err != nil {
		t.Fatalf("IN_MAINTENANCE -> AVAILABLE should be legal: %v", err)
	}
}

func TestValidNextStatesOrder(t *testing.T) {
	m := NewStateMachine()
	v := &Vehicle{ID: "v1", Status: StatusAvailable}

	got := m.ValidNextStates(v)
	want := []Status{StatusInService, StatusMaintenanceDue, StatusInMaintenance, StatusOutOfService}
	if len(got) != len(want) {
		t.Fatalf("ValidNextStates len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ValidNextStates[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestGuardVetoesTransition(t *testing.T) {
	// 守卫：未冬季化的车辆禁止回到 AVAILABLE
	guard := func(v *Vehicle, to Status) bool {
		if to == StatusAvailable {
			return v.Winterized
		}
		return true
	}
	m := NewStateMachine(guard)
	v := &Vehicle{ID: "v1", Status: StatusInMaintenance, Winterized: false}

	if m.CanTransition(v, StatusAvailable) {
		t.Error("guard should veto IN_MAINTENANCE -> AVAILABLE for non-winterized vehicle")
	}
	if !m.CanTransition(v, StatusOutOfService) {
		t.Error("guard should not affect other edges")
	}

	err := m.ApplyTransition(v, StatusAvailable)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("guard veto should surface as *InvalidTransitionError, got %T", err)
	}

	got := m.ValidNextStates(v)
	for _, s := range got {
		if s == StatusAvailable {
			t.Error("ValidNextStates should exclude guard-vetoed targets")
		}
	}

	v.Winterized = true
	if err := m.ApplyTransition(v, StatusAvailable); err != nil {
		t.Fatalf("winterized vehicle should pass guard: %v", err)
	}
}

func TestNilStateMachineTableOnly(t *testing.T) {
	var m *StateMachine
	v := &Vehicle{ID: "v1", Status: StatusAvailable}
	if !m.CanTransition(v, StatusInService) {
		t.Error("nil state machine should fall back to the transition table")
	}
}
