package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/domain"
)

// ReminderJobName is the scheduler entry of the reminder job.
const ReminderJobName = "scheduled-intervention-reminders"

const reminderMarkTTL = 24 * time.Hour

// InterventionNotifier is the part of the workflow the reminder job drives.
type InterventionNotifier interface {
	DueForReminder(ctx context.Context, from, to time.Time) ([]domain.InterventionTicket, error)
	Notify(ctx context.Context, ticketID string) (*domain.Activity, error)
}

// OnceMarker records that a key was handled, reporting false when it already was.
// Unmark releases a key whose work failed so another run can take it.
type OnceMarker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unmark(ctx context.Context, key string) error
}

// ReminderJob notifies technicians of assigned interventions scheduled within the window.
// Each ticket is reminded once; the marker is shared across instances and a local set backs it up.
type ReminderJob struct {
	notifier InterventionNotifier
	marker   OnceMarker
	window   time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	sent map[string]struct{}
}

// NewReminderJob builds the job. marker may be nil.
func NewReminderJob(notifier InterventionNotifier, marker OnceMarker, window time.Duration, logger *zap.Logger) *ReminderJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderJob{
		notifier: notifier,
		marker:   marker,
		window:   window,
		logger:   logger,
		now:      time.Now,
		sent:     make(map[string]struct{}),
	}
}

// Run sends the pending reminders and returns how many were sent.
func (j *ReminderJob) Run(ctx context.Context) (int, error) {
	now := j.now().UTC()
	tickets, err := j.notifier.DueForReminder(ctx, now, now.Add(j.window))
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, ticket := range tickets {
		if !j.claim(ctx, ticket.ID) {
			continue
		}
		if _, err := j.notifier.Notify(ctx, ticket.ID); err != nil {
			j.logger.Warn("reminder failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
			j.forget(ctx, ticket.ID)
			continue
		}
		sent++
	}
	if sent > 0 {
		j.logger.Info("intervention reminders sent", zap.Int("count", sent))
	}
	return sent, nil
}

func (j *ReminderJob) claim(ctx context.Context, ticketID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, done := j.sent[ticketID]; done {
		return false
	}
	if j.marker != nil {
		first, err := j.marker.MarkOnce(ctx, reminderKey(ticketID), reminderMarkTTL)
		if err != nil {
			j.logger.Debug("reminder marker unavailable", zap.Error(err))
		} else if !first {
			j.sent[ticketID] = struct{}{}
			return false
		}
	}
	j.sent[ticketID] = struct{}{}
	return true
}

func (j *ReminderJob) forget(ctx context.Context, ticketID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.sent, ticketID)
	if j.marker == nil {
		return
	}
	if err := j.marker.Unmark(ctx, reminderKey(ticketID)); err != nil {
		j.logger.Warn("reminder marker not released", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func reminderKey(ticketID string) string {
	return "reminder:" + ticketID
}
