// Package schedule runs recurring background tasks, either on a cron
// expression (with seconds) or at a fixed delay.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hatcher/sessionhub/pkg/logs"
	"github.com/hatcher/sessionhub/pkg/safego"
)

type Scheduler struct {
	cron *cron.Cron
	quit chan struct{}
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		quit: make(chan struct{}),
	}
}

// AddCronTask schedules method on a six-field cron expression.
func (s *Scheduler) AddCronTask(expr string, method func()) error {
	_, err := s.cron.AddFunc(expr, method)
	if err != nil {
		logs.Errorf("invalid cron expression %q: %v", expr, err)
		return err
	}
	return nil
}

// AddFixDelayTask runs method every interval until the scheduler stops.
func (s *Scheduler) AddFixDelayTask(interval time.Duration, method func()) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.quit:
				return
			case <-ticker.C:
				safego.Go(context.Background(), method)
			}
		}
	}()
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
}
