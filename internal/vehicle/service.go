package vehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/transitland/fleetops/internal/store"
)

// RemoteWriter 是向权威记录库传播写入的出口。
// 在线时直写，离线或积压时进入离线队列，由对账驱动负责投递。
type RemoteWriter interface {
	Write(ctx context.Context, kind store.Kind, op store.OpType, payload json.RawMessage) error
}

// Service 封装车辆领域的核心用例（不依赖传输层），便于复用和测试。
// 所有状态写入先过状态机授权，再落本地副本，最后交给 RemoteWriter。
type Service struct {
	repo   *Repo
	sm     *StateMachine
	remote RemoteWriter
}

func NewService(repo *Repo, sm *StateMachine, remote RemoteWriter) *Service {
	return &Service{repo: repo, sm: sm, remote: remote}
}

// RegisterVehicleInput 登记车辆的入参。
type RegisterVehicleInput struct {
	VIN      string
	GarageID string
	Make     string
	Model    string
	Year     int
	Odometer int64
}

func (s *Service) RegisterVehicle(ctx context.Context, in RegisterVehicleInput) (*Vehicle, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if strings.TrimSpace(in.VIN) == "" {
		return nil, fmt.Errorf("vin required")
	}

	v := &Vehicle{
		ID:       uuid.NewString(),
		VIN:      strings.TrimSpace(in.VIN),
		Status:   StatusAvailable,
		GarageID: strings.TrimSpace(in.GarageID),
		Make:     strings.TrimSpace(in.Make),
		Model:    strings.TrimSpace(in.Model),
		Year:     in.Year,
		Odometer: in.Odometer,
	}

	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}
	if err := s.propagate(ctx, store.OpInsert, v); err != nil {
		return nil, err
	}
	return v, nil
}

// UpdateStatus 根据状态机规则进行状态流转：授权失败直接返回
// *InvalidTransitionError，本地与远端都不会有任何写入。
func (s *Service) UpdateStatus(ctx context.Context, vehicleID string, to Status) (*Vehicle, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return nil, fmt.Errorf("vehicle_id required")
	}
	if to == "" {
		return nil, fmt.Errorf("target status required")
	}

	v, err := s.repo.FindByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	if err := s.sm.ApplyTransition(v, to); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, v); err != nil {
		return nil, err
	}
	if err := s.propagate(ctx, store.OpUpdate, v); err != nil {
		return nil, err
	}
	return v, nil
}

// ValidNextStates 返回该车辆当前可达的目标状态（供上层提示合法操作）。
func (s *Service) ValidNextStates(ctx context.Context, vehicleID string) ([]Status, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	v, err := s.repo.FindByID(ctx, strings.TrimSpace(vehicleID))
	if err != nil {
		return nil, err
	}
	return s.sm.ValidNextStates(v), nil
}

// UpdateOdometer 更新里程并在达到保养阈值时把车辆流转为 MAINTENANCE_DUE。
// 阈值触发仍然走状态机；当前状态不允许流转时只更新里程。
func (s *Service) UpdateOdometer(ctx context.Context, vehicleID string, odometer int64) (*Vehicle, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	v, err := s.repo.FindByID(ctx, strings.TrimSpace(vehicleID))
	if err != nil {
		return nil, err
	}
	if odometer < v.Odometer {
		return nil, fmt.Errorf("odometer cannot decrease: %d -> %d", v.Odometer, odometer)
	}
	v.Odometer = odometer

	if v.NextServiceMiles > 0 && v.Odometer >= v.NextServiceMiles && s.sm.CanTransition(v, StatusMaintenanceDue) {
		if err := s.sm.ApplyTransition(v, StatusMaintenanceDue); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Save(ctx, v); err != nil {
		return nil, err
	}
	if err := s.propagate(ctx, store.OpUpdate, v); err != nil {
		return nil, err
	}
	return v, nil
}

// SetWinterized 标记冬季化完成/未完成（不触碰状态字段）。
func (s *Service) SetWinterized(ctx context.Context, vehicleID string, winterized bool) (*Vehicle, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	v, err := s.repo.FindByID(ctx, strings.TrimSpace(vehicleID))
	if err != nil {
		return nil, err
	}
	v.Winterized = winterized
	if err := s.repo.Save(ctx, v); err != nil {
		return nil, err
	}
	if err := s.propagate(ctx, store.OpUpdate, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) GetVehicle(ctx context.Context, id string) (*Vehicle, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("id required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *Service) ListVehicles(ctx context.Context, garageID string, status Status, offset, limit int) ([]Vehicle, int64, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("service not initialized")
	}
	return s.repo.List(ctx, strings.TrimSpace(garageID), status, offset, limit)
}

func (s *Service) propagate(ctx context.Context, op store.OpType, v *Vehicle) error {
	if s.remote == nil {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal vehicle: %w", err)
	}
	return s.remote.Write(ctx, store.KindVehicle, op, payload)
}
