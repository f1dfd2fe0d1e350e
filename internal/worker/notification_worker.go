package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/config"
	"github.com/fieldops/intervention-service/internal/events"
	"github.com/fieldops/intervention-service/internal/service"
)

// StartNotificationWorker registers the event log handlers and, when a publisher is given,
// mirrors every event to the configured channel.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher, pub events.Publisher, channel string) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if dispatcher != nil && pub != nil {
		events.MirrorToChannel(dispatcher, pub, channel)
	}
}

// StartReminders schedules the reminder job. It returns nil when the scheduler is disabled.
func StartReminders(cfg config.SchedulerConfig, job *ReminderJob, logger *zap.Logger) (*Scheduler, error) {
	if !cfg.Enabled {
		logger.Info("job scheduler disabled")
		return nil, nil
	}
	scheduler := NewScheduler(logger, time.Minute)
	err := scheduler.AddJob(ReminderJobName, cfg.ReminderCron, func(ctx context.Context) error {
		_, err := job.Run(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	scheduler.Start()
	return scheduler, nil
}
