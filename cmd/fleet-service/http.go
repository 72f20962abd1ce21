package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/transitland/fleetops/internal/common/config"
	"github.com/transitland/fleetops/internal/common/logger"
	"github.com/transitland/fleetops/internal/dispatch"
	"github.com/transitland/fleetops/internal/offline"
	"github.com/transitland/fleetops/internal/vehicle"
	"github.com/transitland/fleetops/internal/workorder"
)

// httpAPI 聚合 HTTP 面需要的协作方。业务 proto 补齐前，
// 这里同时承担状态端点和最小 JSON API。
type httpAPI struct {
	vehicles     *vehicle.Service
	workOrders   *workorder.Service
	driver       *offline.Driver
	agg          *dispatch.Aggregator
	connectivity chan<- bool
	log          logger.Logger
}

// runStatusServer 暴露 HTTP 面：
// - /healthz                进程健康
// - /syncz                  待同步条数与连通性（POST 可切换 online/offline，供运维演练）
// - /dashz                  最近一次重算的 KPI 与派单队列
// - /api/vehicles/status    车辆状态流转（非法流转返回 409 并附合法目标）
// - /api/vehicles/odometer  里程更新（达到阈值自动转 MAINTENANCE_DUE）
// - /api/driver-report      司机故障上报建单
// - /api/dvir               行车前检查上报建单
// - /api/workorders/assign  工单指派
// - /api/workorders/status  工单状态更新
func runStatusServer(cfg *config.Config, log logger.Logger, api *httpAPI) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/syncz", api.handleSync)
	mux.HandleFunc("/dashz", api.handleDashboard)
	mux.HandleFunc("/api/vehicles/status", api.handleVehicleStatus)
	mux.HandleFunc("/api/vehicles/odometer", api.handleVehicleOdometer)
	mux.HandleFunc("/api/driver-report", api.handleDriverReport)
	mux.HandleFunc("/api/dvir", api.handleDVIR)
	mux.HandleFunc("/api/workorders/assign", api.handleWorkOrderAssign)
	mux.HandleFunc("/api/workorders/status", api.handleWorkOrderStatus)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Infof("http server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorf("http server exited: %v", err)
	}
}

// pushConnectivity 非阻塞投递连通性切换：Run 正在排空、通道未被消费时
// 丢弃本次切换（调用方可重试），HTTP 入口不挂在通道上。
func (a *httpAPI) pushConnectivity(online bool) {
	select {
	case a.connectivity <- online:
	default:
	}
}

func (a *httpAPI) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		switch r.URL.Query().Get("online") {
		case "true":
			a.pushConnectivity(true)
		case "false":
			a.pushConnectivity(false)
		}
	}
	pending, err := a.driver.PendingCount(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"online":  a.driver.Online(),
		"pending": pending,
	})
}

func (a *httpAPI) handleDashboard(w http.ResponseWriter, r *http.Request) {
	metrics, triage := a.agg.Latest()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics": metrics,
		"triage":  triage,
	})
}

func (a *httpAPI) handleVehicleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
		return
	}
	var req struct {
		VehicleID string `json:"vehicle_id"`
		Status    string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	v, err := a.vehicles.UpdateStatus(r.Context(), req.VehicleID, vehicle.Status(req.Status))
	if err != nil {
		var ite *vehicle.InvalidTransitionError
		if errors.As(err, &ite) {
			// 非法流转：附上当前可达状态，方便调用方纠正
			valid, _ := a.vehicles.ValidNextStates(r.Context(), req.VehicleID)
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"error":       ite.Error(),
				"valid_next":  valid,
				"from_status": string(ite.From),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *httpAPI) handleVehicleOdometer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
		return
	}
	var req struct {
		VehicleID string `json:"vehicle_id"`
		Odometer  int64  `json:"odometer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	v, err := a.vehicles.UpdateOdometer(r.Context(), req.VehicleID, req.Odometer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *httpAPI) handleDriverReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
		return
	}
	var req struct {
		VehicleID   string `json:"vehicle_id"`
		IssueType   string `json:"issue_type"`
		Description string `json:"description"`
		ReportedBy  string `json:"reported_by"`
		IsCritical  bool   `json:"is_critical"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wo, err := a.workOrders.CreateFromReport(r.Context(), workorder.ReportInput{
		VehicleID:   req.VehicleID,
		IssueType:   req.IssueType,
		Description: req.Description,
		ReportedBy:  req.ReportedBy,
		IsCritical:  req.IsCritical,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, wo)
}

func (a *httpAPI) handleDVIR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
		return
	}
	var req struct {
		VehicleID string                  `json:"vehicle_id"`
		DriverID  string                  `json:"driver_id"`
		Checklist workorder.DVIRChecklist `json:"checklist"`
		Notes     string                  `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wo, err := a.workOrders.CreateFromDVIR(r.Context(), workorder.DVIRInput{
		VehicleID: req.VehicleID,
		DriverID:  req.DriverID,
		Checklist: req.Checklist,
		Notes:     req.Notes,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if wo == nil {
		// 检查全部通过，不生成工单
		writeJSON(w, http.StatusOK, map[string]interface{}{"work_order": nil})
		return
	}
	writeJSON(w, http.StatusCreated, wo)
}

func (a *httpAPI) handleWorkOrderAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
		return
	}
	var req struct {
		WorkOrderID string `json:"work_order_id"`
		MechanicID  string `json:"mechanic_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wo, err := a.workOrders.Assign(r.Context(), req.WorkOrderID, req.MechanicID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, wo)
}

func (a *httpAPI) handleWorkOrderStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
		return
	}
	var req struct {
		WorkOrderID string `json:"work_order_id"`
		Status      string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wo, err := a.workOrders.UpdateStatus(r.Context(), req.WorkOrderID, workorder.Status(req.Status))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, wo)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]interface{}{"error": err.Error()})
}
