package worker

import (
	"github.com/spec-kit/ticket-bot/internal/service"
)

// StartNotificationWorker subscribes the notification fan-out to lifecycle
// events.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
