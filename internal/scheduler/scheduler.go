package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Deliverer runs one full cycle for a user and sends the result.
type Deliverer interface {
	DeliverTo(ctx context.Context, userID int64) error
}

// UserLister enumerates users eligible for scheduled delivery.
type UserLister interface {
	ListActiveUsers(ctx context.Context) ([]int64, error)
}

// Scheduler delivers a daily pick to every active user on a cron
// schedule.
type Scheduler struct {
	cron      *cron.Cron
	deliverer Deliverer
	users     UserLister
}

func New(deliverer Deliverer, users UserLister) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		deliverer: deliverer,
		users:     users,
	}
}

// Start registers the delivery job and starts the cron loop. spec is a
// standard 5-field cron expression.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.deliverAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("registering delivery schedule %q: %w", spec, err)
	}

	s.cron.Start()
	slog.Info("delivery scheduler started", "cron", spec)
	return nil
}

// Stop halts the cron loop, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// deliverAll runs a cycle per user. One user's failure never blocks
// the rest.
func (s *Scheduler) deliverAll(ctx context.Context) {
	users, err := s.users.ListActiveUsers(ctx)
	if err != nil {
		slog.Error("failed to list users for scheduled delivery", "error", err)
		return
	}

	slog.Info("running scheduled deliveries", "users", len(users))
	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		if err := s.deliverer.DeliverTo(ctx, userID); err != nil {
			slog.Error("scheduled delivery failed", "user", userID, "error", err)
		}
	}
}
