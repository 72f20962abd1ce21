package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/transitland/fleetops/internal/common/config"
	"github.com/transitland/fleetops/internal/common/db"
	"github.com/transitland/fleetops/internal/common/logger"
	"github.com/transitland/fleetops/internal/common/middleware"
	"github.com/transitland/fleetops/internal/common/server"
	"github.com/transitland/fleetops/internal/common/tracing"
	"github.com/transitland/fleetops/internal/dispatch"
	"github.com/transitland/fleetops/internal/mechanic"
	"github.com/transitland/fleetops/internal/notify"
	"github.com/transitland/fleetops/internal/offline"
	"github.com/transitland/fleetops/internal/store"
	"github.com/transitland/fleetops/internal/vehicle"
	"github.com/transitland/fleetops/internal/winter"
	"github.com/transitland/fleetops/internal/workorder"
)

var (
	configPath = flag.String("config", "configs/fleet-service.json", "配置文件路径")
)

// mutationFanout 把领域写交给对账驱动，成功受理后再向本地总线发
// 变更事件——在线直写和离线入队都算受理，看板随乐观更新立即重算。
type mutationFanout struct {
	driver *offline.Driver
	bus    *store.Bus
}

func (m *mutationFanout) Write(ctx context.Context, kind store.Kind, op store.OpType, payload json.RawMessage) error {
	if err := m.driver.Write(ctx, kind, op, payload); err != nil {
		return err
	}
	var probe struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(payload, &probe)
	m.bus.Publish(store.ChangeEvent{Kind: kind, ID: probe.ID, Type: op})
	return nil
}

func main() {
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Backend, cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 季节判定与冬季化截止都用统一的基准时区时钟
	loc, err := time.LoadLocation(cfg.Sync.Timezone)
	if err != nil {
		log.Warnf("invalid timezone %q, falling back to UTC: %v", cfg.Sync.Timezone, err)
		loc = time.UTC
	}
	now := func() time.Time { return time.Now().In(loc) }

	// 权威记录库（MySQL）
	remoteDB, err := db.NewMySQL(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.MaxIdle,
		cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to init mysql: %v", err)
	}
	if err := remoteDB.AutoMigrate(&vehicle.Vehicle{}, &workorder.WorkOrder{}, &mechanic.Mechanic{}); err != nil {
		log.Fatalf("failed to migrate mysql schema: %v", err)
	}

	// 设备本地库（SQLite）：乐观副本 + 离线写队列
	localDB, err := db.NewSQLite(cfg.LocalDB.Path)
	if err != nil {
		log.Fatalf("failed to init sqlite: %v", err)
	}
	if err := localDB.AutoMigrate(&vehicle.Vehicle{}, &workorder.WorkOrder{}, &mechanic.Mechanic{}, &offline.QueuedOperation{}); err != nil {
		log.Fatalf("failed to migrate sqlite schema: %v", err)
	}

	// 远端/本地各包一个 GormStore；远端总线是实时变更流，
	// 本地总线在副本应用后触发看板重算
	remoteBus := store.NewBus()
	localBus := store.NewBus()
	remoteStore := store.NewGormStore(remoteDB, remoteBus)
	localStore := store.NewGormStore(localDB, localBus)
	for _, s := range []*store.GormStore{remoteStore, localStore} {
		s.Register(store.KindVehicle, func() interface{} { return &vehicle.Vehicle{} })
		s.Register(store.KindWorkOrder, func() interface{} { return &workorder.WorkOrder{} })
		s.Register(store.KindMechanic, func() interface{} { return &mechanic.Mechanic{} })
	}

	// 离线队列 + 对账驱动
	queue := offline.NewQueue(localDB, cfg.Sync.RetryCeiling)
	sink := notify.NewLogSink(log)
	var driverOpts []offline.DriverOption
	driverOpts = append(driverOpts,
		offline.WithLogger(log),
		offline.WithNotifier(sink),
		offline.WithAttemptTimeout(time.Duration(cfg.Sync.AttemptTimeoutSec)*time.Second),
		offline.WithCircuitBreaker(middleware.NewCircuitBreaker(
			"record-store",
			cfg.Sync.BreakerFailures,
			time.Duration(cfg.Sync.BreakerResetSec)*time.Second,
		)),
	)
	if cfg.Sync.DrainRatePerSec > 0 {
		driverOpts = append(driverOpts,
			offline.WithDrainPacer(middleware.NewTokenBucket(cfg.Sync.DrainRatePerSec, cfg.Sync.DrainRatePerSec)))
	}
	driver := offline.NewDriver(queue, remoteStore, driverOpts...)

	// 领域服务（写路径：状态机授权 -> 本地副本 -> 对账驱动）。
	// 写出口包一层 fanout：离线排队的乐观更新也要触发看板重算。
	writer := &mutationFanout{driver: driver, bus: localBus}
	sm := vehicle.NewStateMachine(winter.DispatchGuard(now))
	vehicleRepo := vehicle.NewRepo(localDB)
	vehicleSvc := vehicle.NewService(vehicleRepo, sm, writer)

	workOrderRepo := workorder.NewRepo(localDB)
	workOrderSvc := workorder.NewService(workOrderRepo, writer, sink, log, now)

	mechanicRepo := mechanic.NewRepo(localDB)

	// 调度聚合器：每个变更事件整体重算 KPI 与派单队列
	agg := dispatch.NewAggregator(func(ctx context.Context) (dispatch.Snapshot, error) {
		vehicles, err := vehicleRepo.ListAll(ctx, "")
		if err != nil {
			return dispatch.Snapshot{}, err
		}
		orders, err := workOrderRepo.ListAll(ctx)
		if err != nil {
			return dispatch.Snapshot{}, err
		}
		active, err := mechanicRepo.CountActive(ctx, "")
		if err != nil {
			return dispatch.Snapshot{}, err
		}
		return dispatch.Snapshot{
			Vehicles:        vehicles,
			WorkOrders:      orders,
			ActiveMechanics: int(active),
		}, nil
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 入站复制：远端变更 -> 本地副本 -> 本地总线 -> 重算
	replicator := offline.NewReplicator(remoteStore, localStore, log)
	go replicator.Run(ctx, remoteBus.Subscribe())
	go agg.Run(ctx, localBus.Subscribe())

	// 连通性信号 + 在线排空 tick
	connectivity := make(chan bool, 1)
	connectivity <- true
	var tick <-chan time.Time
	if cfg.Sync.TickIntervalSec > 0 {
		ticker := time.NewTicker(time.Duration(cfg.Sync.TickIntervalSec) * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}
	go driver.Run(ctx, connectivity, tick)

	// HTTP 入口：健康检查、同步状态、看板快照，以及业务 proto 补齐前的
	// 最小 JSON API（与网关骨架同一思路）
	api := &httpAPI{
		vehicles:     vehicleSvc,
		workOrders:   workOrderSvc,
		driver:       driver,
		agg:          agg,
		connectivity: connectivity,
		log:          log,
	}
	go runStatusServer(cfg, log, api)

	// 启动统一的 gRPC 服务模板（health / reflection / Consul 注册）
	if err := server.RunGRPCServer(cfg, log, nil, server.WithTags([]string{"grpc", "fleet"})); err != nil {
		log.Fatalf("fleet-service exited with error: %v", err)
	}
}
