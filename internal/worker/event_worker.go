package worker

import (
	"go.uber.org/zap"

	"github.com/elegantflow/crm-service/internal/events"
	"github.com/elegantflow/crm-service/internal/service"
)

// StartEventWorkers subscribes the in-process consumers to the dispatcher:
// notification fan-out first, then the optional Redis mirror.
func StartEventWorkers(dispatcher events.Dispatcher, notifications *service.NotificationService, mirror *events.RedisPublisher, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if mirror != nil {
		mirror.Register(dispatcher)
		logger.Info("mirroring events to redis", zap.Int("event_types", len(events.AllEventTypes)))
	}
}
