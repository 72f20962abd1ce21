package dispatch

import (
	"context"
	"sort"
	"sync"

	"github.com/transitland/fleetops/internal/common/logger"
	"github.com/transitland/fleetops/internal/store"
	"github.com/transitland/fleetops/internal/vehicle"
	"github.com/transitland/fleetops/internal/workorder"
)

// Snapshot 是一次重算的输入：当前全量车辆、工单与在岗技师数。
// 聚合器自身不取数、不缓存，由快照提供方负责数据来源。
type Snapshot struct {
	Vehicles        []vehicle.Vehicle
	WorkOrders      []workorder.WorkOrder
	ActiveMechanics int
}

// Metrics 车队 KPI。每次快照变化整体重算（非增量），避免漂移；
// 分母为零时相应指标取 0，不报错、不出 NaN。
type Metrics struct {
	TotalVehicles         int     `json:"total_vehicles"`
	AvailableVehicles     int     `json:"available_vehicles"`
	InServiceVehicles     int     `json:"in_service_vehicles"`
	InMaintenanceVehicles int     `json:"in_maintenance_vehicles"`
	OutOfServiceVehicles  int     `json:"out_of_service_vehicles"`
	AvailabilityRate      float64 `json:"availability_rate"`    // 百分比
	MechanicUtilization   float64 `json:"mechanic_utilization"` // 百分比
	WinterReadiness       float64 `json:"winter_readiness"`     // 百分比
	MTTRHours             float64 `json:"mttr_hours"`
	OpenWorkOrders        int     `json:"open_work_orders"`
	CriticalWorkOrders    int     `json:"critical_work_orders"`
}

// ComputeMetrics 对快照做一次 O(n) 重算。
func ComputeMetrics(s Snapshot) Metrics {
	var m Metrics
	m.TotalVehicles = len(s.Vehicles)

	winterized := 0
	for i := range s.Vehicles {
		switch s.Vehicles[i].Status {
		case vehicle.StatusAvailable:
			m.AvailableVehicles++
		case vehicle.StatusInService:
			m.InServiceVehicles++
		case vehicle.StatusInMaintenance:
			m.InMaintenanceVehicles++
		case vehicle.StatusOutOfService:
			m.OutOfServiceVehicles++
		}
		if s.Vehicles[i].Winterized {
			winterized++
		}
	}
	if m.TotalVehicles > 0 {
		m.AvailabilityRate = float64(m.AvailableVehicles) / float64(m.TotalVehicles) * 100
		m.WinterReadiness = float64(winterized) / float64(m.TotalVehicles) * 100
	}

	assigned := 0
	closedCount := 0
	var totalRepairHours float64
	for i := range s.WorkOrders {
		w := &s.WorkOrders[i]
		if w.Active() {
			m.OpenWorkOrders++
			if w.AssignedMechanicID != "" {
				assigned++
			}
		}
		// 危急计数不看状态：所有 P0 工单都计入
		if w.Priority == workorder.PriorityP0 {
			m.CriticalWorkOrders++
		}
		if d, ok := w.RepairDuration(); ok {
			totalRepairHours += d.Hours()
			closedCount++
		}
	}
	if s.ActiveMechanics > 0 {
		m.MechanicUtilization = float64(assigned) / float64(s.ActiveMechanics) * 100
	}
	if closedCount > 0 {
		m.MTTRHours = totalRepairHours / float64(closedCount)
	}

	return m
}

// TriageQueue 派单候选队列：未关闭/未取消、P0 或 P1、且尚未指派技师的工单。
// 排序：优先级升序（P0 在前），同优先级按 created_at 升序——
// 既不让紧急插队饿死积压，也不让积压压过紧急。
func TriageQueue(orders []workorder.WorkOrder) []workorder.WorkOrder {
	out := make([]workorder.WorkOrder, 0)
	for i := range orders {
		w := orders[i]
		if !w.Active() {
			continue
		}
		if w.Priority != workorder.PriorityP0 && w.Priority != workorder.PriorityP1 {
			continue
		}
		if w.AssignedMechanicID != "" {
			continue
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// SnapshotLoader 由持有数据的一方提供（本地副本库的 repo 组合）。
type SnapshotLoader func(ctx context.Context) (Snapshot, error)

// Aggregator 订阅实时变更流，在每个事件上整体重算并缓存最新结果。
// 重算幂等且 O(n)，可以安全地逐事件触发。
type Aggregator struct {
	load SnapshotLoader
	log  logger.Logger

	mu      sync.RWMutex
	metrics Metrics
	triage  []workorder.WorkOrder
}

func NewAggregator(load SnapshotLoader, log logger.Logger) *Aggregator {
	return &Aggregator{load: load, log: log}
}

// Refresh 拉取快照并重算一次。
func (a *Aggregator) Refresh(ctx context.Context) error {
	if a == nil || a.load == nil {
		return nil
	}
	snap, err := a.load(ctx)
	if err != nil {
		return err
	}
	metrics := ComputeMetrics(snap)
	triage := TriageQueue(snap.WorkOrders)

	a.mu.Lock()
	a.metrics = metrics
	a.triage = triage
	a.mu.Unlock()
	return nil
}

// Run 消费变更流直到 ctx 结束或通道关闭。启动时先做一次全量重算。
func (a *Aggregator) Run(ctx context.Context, events <-chan store.ChangeEvent) {
	if err := a.Refresh(ctx); err != nil && a.log != nil {
		a.log.Warnf("initial dashboard refresh failed: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := a.Refresh(ctx); err != nil && a.log != nil {
				a.log.WithFields(map[string]interface{}{
					"kind": string(ev.Kind),
					"id":   ev.ID,
				}).Warnf("dashboard refresh failed: %v", err)
			}
		}
	}
}

// Latest 返回最近一次重算的 KPI 与派单队列（副本）。
func (a *Aggregator) Latest() (Metrics, []workorder.WorkOrder) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	triage := make([]workorder.WorkOrder, len(a.triage))
	copy(triage, a.triage)
	return a.metrics, triage
}
