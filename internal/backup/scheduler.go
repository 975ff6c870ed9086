package backup

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/nsawada/reqtrack/internal/task"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// Scheduler runs periodic backups plus the retention sweeps on a cron
// schedule.
type Scheduler struct {
	mgr         *Manager
	db          *gorm.DB
	schedule    string
	keepDays    int
	historyDays int
}

// NewScheduler builds a scheduler. An empty schedule disables it.
func NewScheduler(mgr *Manager, db *gorm.DB, schedule string, keepDays, historyDays int) *Scheduler {
	return &Scheduler{
		mgr:         mgr,
		db:          db,
		schedule:    schedule,
		keepDays:    keepDays,
		historyDays: historyDays,
	}
}

// Run blocks until ctx is cancelled, firing on each schedule tick. It
// returns immediately when no schedule is configured or it cannot be parsed.
func (s *Scheduler) Run(ctx context.Context) {
	if s.schedule == "" {
		return
	}
	d := nextCronDuration(s.schedule)
	if d <= 0 {
		log.Printf("backup: scheduler disabled, cannot parse schedule %q", s.schedule)
		return
	}

	log.Printf("backup: scheduler armed, next run in %v", d.Round(time.Second))
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.fire()
			if d := nextCronDuration(s.schedule); d > 0 {
				timer.Reset(d)
			} else {
				return
			}
		}
	}
}

// fire takes one backup and runs both retention sweeps. Failures are
// logged; the schedule keeps going.
func (s *Scheduler) fire() {
	if _, err := s.mgr.Create(""); err != nil {
		log.Printf("backup: scheduled backup failed: %v", err)
	}
	if s.keepDays > 0 {
		if n, err := s.mgr.CleanupOld(s.keepDays); err != nil {
			log.Printf("backup: retention sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("backup: retention sweep removed %d backups", n)
		}
	}
	if s.historyDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -s.historyDays)
		if n, err := task.CleanupHistory(s.db, cutoff); err != nil {
			log.Printf("backup: history sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("backup: history sweep removed %d records", n)
		}
	}
}
