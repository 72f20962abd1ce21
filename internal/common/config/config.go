package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	LocalDB  LocalDBConfig  `json:"local_db"`
	Consul   ConsulConfig   `json:"consul"`
	Jaeger   JaegerConfig   `json:"jaeger"`
	Sync     SyncConfig     `json:"sync"`
	Log      LogConfig      `json:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name     string `json:"name"`      // 服务名称
	Host     string `json:"host"`      // 服务地址
	GRPCPort int    `json:"grpc_port"` // gRPC端口
	HTTPPort int    `json:"http_port"` // HTTP状态端口（/healthz /syncz）
}

// DatabaseConfig 权威记录库（MySQL）配置
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	MaxIdle  int    `json:"max_idle"`
	MaxOpen  int    `json:"max_open"`
}

// LocalDBConfig 设备本地库（SQLite）配置：乐观副本 + 离线写队列
type LocalDBConfig struct {
	Path string `json:"path"`
}

// ConsulConfig Consul配置
type ConsulConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// JaegerConfig Jaeger配置（Endpoint 为空时禁用追踪）
type JaegerConfig struct {
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"` // 采样率 0.0-1.0
}

// SyncConfig 离线同步与对账配置
type SyncConfig struct {
	RetryCeiling      int    `json:"retry_ceiling"`       // 单条操作重试上限
	AttemptTimeoutSec int    `json:"attempt_timeout_sec"` // 单次投递超时（秒）
	DrainRatePerSec   int64  `json:"drain_rate_per_sec"`  // 排空节奏（令牌/秒，0 不限速）
	TickIntervalSec   int    `json:"tick_interval_sec"`   // 在线排空 tick（秒，0 关闭）
	Timezone          string `json:"timezone"`            // 季节/冬季化判定的基准时区（IANA 名）
	BreakerFailures   int    `json:"breaker_failures"`    // 熔断阈值
	BreakerResetSec   int    `json:"breaker_reset_sec"`   // 熔断重置时间（秒）
}

// LogConfig 日志配置
type LogConfig struct {
	Backend string `json:"backend"` // logrus, zap
	Level   string `json:"level"`   // debug, info, warn, error
	Format  string `json:"format"`  // json, text
	Output  string `json:"output"`  // stdout, file
	Path    string `json:"path"`    // 日志文件路径
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// LoadConfig 加载配置
func LoadConfig(configPath string) (*Config, error) {
	var err error
	configOnce.Do(func() {
		globalConfig = &Config{}
		// 如果配置文件不存在，使用默认配置
		if _, err = os.Stat(configPath); os.IsNotExist(err) {
			logrus.Warnf("Config file not found: %s, using default config", configPath)
			globalConfig = defaultConfig()
			err = nil
			return
		}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file: %w", readErr)
			return
		}

		if unmarshalErr := json.Unmarshal(data, globalConfig); unmarshalErr != nil {
			err = fmt.Errorf("failed to parse config file: %w", unmarshalErr)
			return
		}
	})

	if err != nil {
		return nil, err
	}

	return globalConfig, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if globalConfig == nil {
		return defaultConfig()
	}
	return globalConfig
}

// defaultConfig 默认配置（开发环境）
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "fleet-service",
			Host:     "0.0.0.0",
			GRPCPort: 50051,
			HTTPPort: 8080,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			User:     "root",
			Password: "root",
			Database: "fleetops",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		LocalDB: LocalDBConfig{
			Path: "data/fleetops.db",
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "",
			Sampler:  1.0,
		},
		Sync: SyncConfig{
			RetryCeiling:      3,
			AttemptTimeoutSec: 10,
			DrainRatePerSec:   20,
			TickIntervalSec:   30,
			Timezone:          "UTC",
			BreakerFailures:   5,
			BreakerResetSec:   30,
		},
		Log: LogConfig{
			Backend: "logrus",
			Level:   "debug",
			Format:  "text",
			Output:  "stdout",
			Path:    "logs/fleet-service.log",
		},
	}
}
