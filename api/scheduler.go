/*
scheduler.go - Cron scheduler for the batch engines

PURPOSE:
  Runs the commission batch jobs at their fixed local times so a single
  long-lived process can replace external crontab entries:

    binary-match closing 1   daily 12:00  (right after the band closes)
    binary-match closing 2   daily 18:00
    star-compute             daily 23:30
    repurchase-qualify       1st of month 00:30 / Monday 00:30
    repurchase-pay           1st of month 01:00 / Monday 01:00

  The qualify and pay jobs evaluate the period that just ended, so they
  fire on the boundary and step one interval back.

OVERLAP GUARD:
  Each job holds its own mutex with TryLock: if a previous fire of the
  same job is still running, the new fire is skipped and logged. Jobs of
  different kinds run independently.

SEE ALSO:
  - cmd/commission/main.go: schedule subcommand
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/warp/commission-engine/binary"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/salary"
	"github.com/warp/commission-engine/starrank"
)

// Scheduler drives the batch engines on a fixed local-time cadence.
type Scheduler struct {
	Binary *binary.Engine
	Stars  *starrank.Engine
	Salary *salary.Engine
	Mode   commission.PeriodMode
	Loc    *time.Location

	cron *cron.Cron

	binaryMu  sync.Mutex
	starMu    sync.Mutex
	qualifyMu sync.Mutex
	payMu     sync.Mutex
}

// NewScheduler creates a scheduler; Start must be called to run it.
func NewScheduler(binaryEngine *binary.Engine, starEngine *starrank.Engine, salaryEngine *salary.Engine, mode commission.PeriodMode, loc *time.Location) *Scheduler {
	return &Scheduler{
		Binary: binaryEngine,
		Stars:  starEngine,
		Salary: salaryEngine,
		Mode:   mode,
		Loc:    loc,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	s.cron = cron.New(cron.WithLocation(s.Loc))

	type job struct {
		spec string
		name string
		fn   func()
	}
	jobs := []job{
		{"0 12 * * *", "binary closing 1", func() { s.runBinary(1) }},
		{"0 18 * * *", "binary closing 2", func() { s.runBinary(2) }},
		{"30 23 * * *", "star compute", s.runStars},
	}
	if s.Mode == commission.ModeWeekly {
		jobs = append(jobs,
			job{"30 0 * * 1", "salary qualify", s.runQualify},
			job{"0 1 * * 1", "salary pay", s.runPay},
		)
	} else {
		jobs = append(jobs,
			job{"30 0 1 * *", "salary qualify", s.runQualify},
			job{"0 1 1 * *", "salary pay", s.runPay},
		)
	}

	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, j.fn); err != nil {
			return err
		}
		log.Printf("[Scheduler] registered %s (%s)", j.name, j.spec)
	}

	s.cron.Start()
	log.Printf("[Scheduler] started in %s, salary mode %s", s.Loc, s.Mode)
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		log.Println("[Scheduler] stopped")
	}
}

func (s *Scheduler) runBinary(closingNo int) {
	if !s.binaryMu.TryLock() {
		log.Printf("[Scheduler] binary run still in progress, skipping closing %d", closingNo)
		return
	}
	defer s.binaryMu.Unlock()

	if _, err := s.Binary.Run(context.Background(), time.Now().In(s.Loc), closingNo); err != nil {
		log.Printf("[Scheduler] binary closing %d: %v", closingNo, err)
	}
}

func (s *Scheduler) runStars() {
	if !s.starMu.TryLock() {
		log.Println("[Scheduler] star run still in progress, skipping")
		return
	}
	defer s.starMu.Unlock()

	if _, err := s.Stars.Run(context.Background(), time.Now().UTC(), false); err != nil {
		log.Printf("[Scheduler] star compute: %v", err)
	}
}

// previousPeriod steps one salary interval back from now, so a job firing
// on a boundary evaluates the period that just ended.
func (s *Scheduler) previousPeriod(now time.Time) time.Time {
	if s.Mode == commission.ModeWeekly {
		return now.AddDate(0, 0, -7)
	}
	return now.AddDate(0, -1, 0)
}

func (s *Scheduler) runQualify() {
	if !s.qualifyMu.TryLock() {
		log.Println("[Scheduler] qualify run still in progress, skipping")
		return
	}
	defer s.qualifyMu.Unlock()

	date := s.previousPeriod(time.Now().In(s.Loc))
	if _, err := s.Salary.Qualify(context.Background(), date, s.Mode, false); err != nil {
		log.Printf("[Scheduler] salary qualify: %v", err)
	}
}

func (s *Scheduler) runPay() {
	if !s.payMu.TryLock() {
		log.Println("[Scheduler] pay run still in progress, skipping")
		return
	}
	defer s.payMu.Unlock()

	if _, err := s.Salary.Pay(context.Background(), time.Now().In(s.Loc), s.Mode); err != nil {
		log.Printf("[Scheduler] salary pay: %v", err)
	}
}
