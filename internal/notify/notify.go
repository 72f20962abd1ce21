package notify

import (
	"context"

	"github.com/transitland/fleetops/internal/common/logger"
)

// Sink 是带外通知协作方的最小接口。核心只决定“是否通知”，
// 投递方式（邮件 / 短信 / 站内告警）由实现方决定。
type Sink interface {
	Notify(ctx context.Context, event string, fields map[string]interface{})
}

// LogSink 把通知落到结构化日志（默认实现，亦可作为其它投递渠道的兜底）。
type LogSink struct {
	log logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(ctx context.Context, event string, fields map[string]interface{}) {
	if s == nil || s.log == nil {
		return
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	s.log.WithFields(fields).Warnf("notify: %s", event)
}
