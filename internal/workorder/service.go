package workorder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/transitland/fleetops/internal/common/logger"
	"github.com/transitland/fleetops/internal/store"
)

// RemoteWriter 是向权威记录库传播写入的出口（在线直写 / 离线入队）。
type RemoteWriter interface {
	Write(ctx context.Context, kind store.Kind, op store.OpType, payload json.RawMessage) error
}

// Notifier 带外通知协作方：P0/P1 工单创建时通知运营经理。
type Notifier interface {
	Notify(ctx context.Context, event string, fields map[string]interface{})
}

// Service 封装工单领域的核心用例。优先级在创建时由引擎写入，
// 之后只允许显式人工覆盖；closed_at 的维护集中在 UpdateStatus。
type Service struct {
	repo     *Repo
	remote   RemoteWriter
	notifier Notifier
	log      logger.Logger
	now      func() time.Time
}

// NewService 构造工单服务。now 用于注入基准时区时钟（nil 时取 time.Now）。
func NewService(repo *Repo, remote RemoteWriter, notifier Notifier, log logger.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, remote: remote, notifier: notifier, log: log, now: now}
}

// CreateInput 创建工单的入参（运营/技师表单路径）。
type CreateInput struct {
	VehicleID   string
	Title       string
	Description string
	IssueType   string
	Type        Type
	CreatedBy   string
}

// Create 创建工单，优先级由引擎按问题类型和当前日期定级。
func (s *Service) Create(ctx context.Context, in CreateInput) (*WorkOrder, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if strings.TrimSpace(in.VehicleID) == "" {
		return nil, fmt.Errorf("vehicle_id required")
	}
	if in.Type == "" {
		in.Type = TypeRepair
	}

	at := s.now()
	priority := ClassifyPriority(in.IssueType, at)
	s.observeClassification(in.IssueType, priority)

	w := &WorkOrder{
		ID:          uuid.NewString(),
		VehicleID:   strings.TrimSpace(in.VehicleID),
		Priority:    priority,
		Status:      StatusOpen,
		Type:        in.Type,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		IssueType:   strings.TrimSpace(in.IssueType),
		CreatedBy:   strings.TrimSpace(in.CreatedBy),
	}
	if w.Title == "" {
		w.Title = w.IssueType
	}

	if err := s.persistNew(ctx, w); err != nil {
		return nil, err
	}
	s.escalateIfNeeded(ctx, w)
	return w, nil
}

// ReportInput 司机故障上报的入参。IsCritical 是司机的人工安全判定，
// 为 true 时强制 P0。
type ReportInput struct {
	VehicleID   string
	IssueType   string
	Description string
	ReportedBy  string
	IsCritical  bool
}

// CreateFromReport 由司机上报生成维修工单。
func (s *Service) CreateFromReport(ctx context.Context, in ReportInput) (*WorkOrder, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if strings.TrimSpace(in.VehicleID) == "" {
		return nil, fmt.Errorf("vehicle_id required")
	}

	at := s.now()
	priority := ClassifyPriority(in.IssueType, at)
	if in.IsCritical {
		priority = PriorityP0
	}
	s.observeClassification(in.IssueType, priority)

	w := &WorkOrder{
		ID:          uuid.NewString(),
		VehicleID:   strings.TrimSpace(in.VehicleID),
		Priority:    priority,
		Status:      StatusOpen,
		Type:        TypeRepair,
		Title:       fmt.Sprintf("%s - Driver Report", strings.TrimSpace(in.IssueType)),
		Description: strings.TrimSpace(in.Description),
		IssueType:   strings.TrimSpace(in.IssueType),
		CreatedBy:   strings.TrimSpace(in.ReportedBy),
	}

	if err := s.persistNew(ctx, w); err != nil {
		return nil, err
	}
	s.escalateIfNeeded(ctx, w)
	return w, nil
}

// DVIRInput 行车前检查上报的入参。
type DVIRInput struct {
	VehicleID string
	DriverID  string
	Checklist DVIRChecklist
	Notes     string
}

// CreateFromDVIR 由行车前检查生成工单：任一安全关键项失败即强制 P0，
// 先于矩阵判定。检查全部通过时不生成工单，返回 (nil, nil)。
func (s *Service) CreateFromDVIR(ctx context.Context, in DVIRInput) (*WorkOrder, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if strings.TrimSpace(in.VehicleID) == "" {
		return nil, fmt.Errorf("vehicle_id required")
	}

	failures := in.Checklist.CriticalFailures()
	if len(failures) == 0 {
		return nil, nil
	}

	desc := fmt.Sprintf("DVIR critical failures: %s", strings.Join(failures, ", "))
	if notes := strings.TrimSpace(in.Notes); notes != "" {
		desc += "\n" + notes
	}

	w := &WorkOrder{
		ID:          uuid.NewString(),
		VehicleID:   strings.TrimSpace(in.VehicleID),
		Priority:    PriorityP0,
		Status:      StatusOpen,
		Type:        TypeRepair,
		Title:       fmt.Sprintf("%s - DVIR Failure", failures[0]),
		Description: desc,
		IssueType:   failures[0],
		CreatedBy:   strings.TrimSpace(in.DriverID),
	}

	if err := s.persistNew(ctx, w); err != nil {
		return nil, err
	}
	s.escalateIfNeeded(ctx, w)
	return w, nil
}

// Assign 把工单指派给技师。
func (s *Service) Assign(ctx context.Context, workOrderID, mechanicID string) (*WorkOrder, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	mechanicID = strings.TrimSpace(mechanicID)
	if mechanicID == "" {
		return nil, fmt.Errorf("mechanic_id required")
	}

	w, err := s.repo.GetByID(ctx, strings.TrimSpace(workOrderID))
	if err != nil {
		return nil, err
	}
	if !w.Active() {
		return nil, fmt.Errorf("work order %s is %s and cannot be assigned", w.ID, w.Status)
	}
	w.AssignedMechanicID = mechanicID

	if err := s.persistUpdate(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// UpdateStatus 更新工单状态并维护 closed_at 不变量：
// 进入 Closed 时写入，离开 Closed 时清空。
func (s *Service) UpdateStatus(ctx context.Context, workOrderID string, to Status) (*WorkOrder, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if to == "" {
		return nil, fmt.Errorf("target status required")
	}

	w, err := s.repo.GetByID(ctx, strings.TrimSpace(workOrderID))
	if err != nil {
		return nil, err
	}

	w.Status = to
	if to == StatusClosed {
		if w.ClosedAt == nil {
			t := s.now()
			w.ClosedAt = &t
		}
	} else {
		w.ClosedAt = nil
	}

	if err := s.persistUpdate(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// OverridePriority 人工覆盖优先级（仅限授权角色，鉴权在外层）。
func (s *Service) OverridePriority(ctx context.Context, workOrderID string, p Priority, actor string) (*WorkOrder, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
	default:
		return nil, fmt.Errorf("invalid priority: %s", p)
	}

	w, err := s.repo.GetByID(ctx, strings.TrimSpace(workOrderID))
	if err != nil {
		return nil, err
	}
	from := w.Priority
	w.Priority = p

	if err := s.persistUpdate(ctx, w); err != nil {
		return nil, err
	}
	if s.log != nil {
		s.log.WithFields(map[string]interface{}{
			"work_order": w.ID,
			"from":       string(from),
			"to":         string(p),
			"actor":      actor,
		}).Info("work order priority overridden")
	}
	return w, nil
}

func (s *Service) GetWorkOrder(ctx context.Context, id string) (*WorkOrder, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("id required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListWorkOrders(ctx context.Context, f ListFilter) ([]WorkOrder, int64, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("service not initialized")
	}
	return s.repo.List(ctx, f)
}

func (s *Service) persistNew(ctx context.Context, w *WorkOrder) error {
	if err := s.repo.Create(ctx, w); err != nil {
		return err
	}
	return s.propagate(ctx, store.OpInsert, w)
}

func (s *Service) persistUpdate(ctx context.Context, w *WorkOrder) error {
	if err := s.repo.Save(ctx, w); err != nil {
		return err
	}
	return s.propagate(ctx, store.OpUpdate, w)
}

func (s *Service) propagate(ctx context.Context, op store.OpType, w *WorkOrder) error {
	if s.remote == nil {
		return nil
	}
	payload, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal work order: %w", err)
	}
	return s.remote.Write(ctx, store.KindWorkOrder, op, payload)
}

func (s *Service) escalateIfNeeded(ctx context.Context, w *WorkOrder) {
	if s.notifier == nil || !ShouldEscalateToOpsManager(w.Priority) {
		return
	}
	s.notifier.Notify(ctx, "critical work order", map[string]interface{}{
		"work_order": w.ID,
		"vehicle":    w.VehicleID,
		"priority":   string(w.Priority),
		"issue_type": w.IssueType,
		"window":     TargetResolutionWindow(w.Priority),
	})
}

// observeClassification 记录未知类型的默认定级（供矩阵维护，不是错误）。
func (s *Service) observeClassification(issueType string, p Priority) {
	if s.log == nil {
		return
	}
	if !KnownIssueType(issueType) {
		s.log.WithFields(map[string]interface{}{
			"issue_type": issueType,
			"priority":   string(p),
		}).Info("unclassified issue type defaulted")
	}
}
