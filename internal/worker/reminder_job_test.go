package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/intervention-service/internal/domain"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) DueForReminder(ctx context.Context, from, to time.Time) ([]domain.InterventionTicket, error) {
	args := m.Called(ctx, from, to)
	tickets, _ := args.Get(0).([]domain.InterventionTicket)
	return tickets, args.Error(1)
}

func (m *mockNotifier) Notify(ctx context.Context, ticketID string) (*domain.Activity, error) {
	args := m.Called(ctx, ticketID)
	activity, _ := args.Get(0).(*domain.Activity)
	return activity, args.Error(1)
}

// sharedMarker behaves like the Redis SETNX marker shared by every instance.
type sharedMarker struct {
	mu   sync.Mutex
	keys map[string]struct{}
	err  error
}

func newSharedMarker() *sharedMarker {
	return &sharedMarker{keys: make(map[string]struct{})}
}

func (m *sharedMarker) MarkOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

func (m *sharedMarker) Unmark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.keys, key)
	return nil
}

func TestReminderJob_Run(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 3, 7, 55, 0, 0, time.UTC)
	window := time.Hour
	first := domain.InterventionTicket{ID: gofakeit.UUID(), State: domain.StateAssigned}
	second := domain.InterventionTicket{ID: gofakeit.UUID(), State: domain.StateAssigned}

	type testCase struct {
		name     string
		marker   func() OnceMarker
		setup    func(n *mockNotifier)
		runs     int
		wantSent []int
		wantErr  bool
	}

	tests := []testCase{
		{
			name:   "each ticket reminded once across runs",
			marker: func() OnceMarker { return newSharedMarker() },
			setup: func(n *mockNotifier) {
				n.On("DueForReminder", mock.Anything, now, now.Add(window)).
					Return([]domain.InterventionTicket{first, second}, nil)
				n.On("Notify", mock.Anything, first.ID).Return(&domain.Activity{}, nil).Once()
				n.On("Notify", mock.Anything, second.ID).Return(&domain.Activity{}, nil).Once()
			},
			runs:     2,
			wantSent: []int{2, 0},
		},
		{
			name:   "without marker the local set deduplicates",
			marker: func() OnceMarker { return nil },
			setup: func(n *mockNotifier) {
				n.On("DueForReminder", mock.Anything, mock.Anything, mock.Anything).
					Return([]domain.InterventionTicket{first}, nil)
				n.On("Notify", mock.Anything, first.ID).Return(&domain.Activity{}, nil).Once()
			},
			runs:     2,
			wantSent: []int{1, 0},
		},
		{
			name: "marker failure falls back to the local set",
			marker: func() OnceMarker {
				m := newSharedMarker()
				m.err = errors.New("redis: connection refused")
				return m
			},
			setup: func(n *mockNotifier) {
				n.On("DueForReminder", mock.Anything, mock.Anything, mock.Anything).
					Return([]domain.InterventionTicket{first}, nil)
				n.On("Notify", mock.Anything, first.ID).Return(&domain.Activity{}, nil).Once()
			},
			runs:     2,
			wantSent: []int{1, 0},
		},
		{
			name:   "failed notification is retried on the next run",
			marker: func() OnceMarker { return nil },
			setup: func(n *mockNotifier) {
				n.On("DueForReminder", mock.Anything, mock.Anything, mock.Anything).
					Return([]domain.InterventionTicket{first}, nil)
				n.On("Notify", mock.Anything, first.ID).Return(nil, errors.New("no technician assigned")).Once()
				n.On("Notify", mock.Anything, first.ID).Return(&domain.Activity{}, nil).Once()
			},
			runs:     2,
			wantSent: []int{0, 1},
		},
		{
			name:   "failed notification releases the shared marker",
			marker: func() OnceMarker { return newSharedMarker() },
			setup: func(n *mockNotifier) {
				n.On("DueForReminder", mock.Anything, mock.Anything, mock.Anything).
					Return([]domain.InterventionTicket{first}, nil)
				n.On("Notify", mock.Anything, first.ID).Return(nil, errors.New("no technician assigned")).Once()
				n.On("Notify", mock.Anything, first.ID).Return(&domain.Activity{}, nil).Once()
			},
			runs:     3,
			wantSent: []int{0, 1, 0},
		},
		{
			name:   "listing error is returned",
			marker: func() OnceMarker { return nil },
			setup: func(n *mockNotifier) {
				n.On("DueForReminder", mock.Anything, mock.Anything, mock.Anything).
					Return(nil, errors.New("database is down"))
			},
			runs:     1,
			wantSent: []int{0},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			notifier := &mockNotifier{}
			tt.setup(notifier)
			job := NewReminderJob(notifier, tt.marker(), window, zap.NewNop())
			job.now = func() time.Time { return now }

			for i := 0; i < tt.runs; i++ {
				sent, err := job.Run(context.Background())
				if tt.wantErr {
					require.Error(t, err)
				} else {
					require.NoError(t, err)
				}
				assert.Equal(t, tt.wantSent[i], sent, "run %d", i)
			}
			notifier.AssertExpectations(t)
		})
	}
}

func TestReminderJob_SharedMarkerAcrossInstances(t *testing.T) {
	t.Parallel()

	ticket := domain.InterventionTicket{ID: gofakeit.UUID(), State: domain.StateAssigned}
	marker := newSharedMarker()

	notifier := &mockNotifier{}
	notifier.On("DueForReminder", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.InterventionTicket{ticket}, nil)
	notifier.On("Notify", mock.Anything, ticket.ID).Return(&domain.Activity{}, nil).Once()

	a := NewReminderJob(notifier, marker, time.Hour, nil)
	b := NewReminderJob(notifier, marker, time.Hour, nil)

	sentA, err := a.Run(context.Background())
	require.NoError(t, err)
	sentB, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sentA+sentB)
	notifier.AssertExpectations(t)
}

func TestReminderJob_FailedNotifyRetriedByOtherInstance(t *testing.T) {
	t.Parallel()

	ticket := domain.InterventionTicket{ID: gofakeit.UUID(), State: domain.StateAssigned}
	marker := newSharedMarker()

	notifier := &mockNotifier{}
	notifier.On("DueForReminder", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.InterventionTicket{ticket}, nil)
	notifier.On("Notify", mock.Anything, ticket.ID).Return(nil, errors.New("activity host unavailable")).Once()
	notifier.On("Notify", mock.Anything, ticket.ID).Return(&domain.Activity{}, nil).Once()

	a := NewReminderJob(notifier, marker, time.Hour, nil)
	b := NewReminderJob(notifier, marker, time.Hour, nil)

	sentA, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sentA)
	assert.NotContains(t, marker.keys, "reminder:"+ticket.ID)

	sentB, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sentB)
	assert.Contains(t, marker.keys, "reminder:"+ticket.ID)
	notifier.AssertExpectations(t)
}

func TestScheduler_AddJob(t *testing.T) {
	t.Parallel()

	s := NewScheduler(zap.NewNop(), time.Second)
	job := func(context.Context) error { return nil }

	require.NoError(t, s.AddJob(ReminderJobName, "@every 5m", job))
	assert.Error(t, s.AddJob(ReminderJobName, "@every 5m", job))
	assert.Error(t, s.AddJob("broken", "not a cron expression", job))
	assert.Equal(t, []string{ReminderJobName}, s.JobNames())
}
