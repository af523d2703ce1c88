package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/samber/mo"

	"flowcore/internal/domain"
	"flowcore/internal/store"
	"flowcore/internal/worker"
)

// Dispatcher hands a fired workflow to whatever executes it.
type Dispatcher interface {
	Dispatch(ctx context.Context, wf domain.Workflow, tasks []domain.Task) error
}

type Service struct {
	repo       store.Repository
	dispatcher Dispatcher
	clock      domain.Clock
	cron       *cron.Cron
	pool       *worker.Pool
	interval   time.Duration
}

func NewService(repo store.Repository, dispatcher Dispatcher, checkInterval time.Duration) *Service {
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		clock:      domain.SystemClock,
		cron:       newCron(),
		pool:       worker.NewPool(1),
		interval:   checkInterval,
	}
}

// Ticks never overlap: a tick still dispatching makes the next one skip.
func newCron() *cron.Cron {
	logger := cronLogger{}
	return cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
}

// WithClock replaces the clock used for due checks and relative repetitions.
func (s *Service) WithClock(c domain.Clock) *Service {
	s.clock = c
	return s
}

// WithWorkers sets how many due schedules are processed concurrently.
func (s *Service) WithWorkers(n int) *Service {
	s.pool = worker.NewPool(n)
	return s
}

// Start runs the due check every interval until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc("@every "+s.interval.String(), func() {
		if _, err := s.ProcessDue(ctx); err != nil {
			log.Error().Err(err).Msg("failed to process due schedules")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule check every %s: %w", s.interval, err)
	}

	log.Info().Dur("interval", s.interval).Msg("schedule service started")
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	log.Info().Msg("schedule service stopped")
	return nil
}

// Register stores a schedule together with its first next run. A schedule
// whose repetition does not recur (zero duration) is stored disabled and
// never fires. After each fire the planned fire instant, not the time of the
// check, becomes the schedule's last execution.
func (s *Service) Register(ctx context.Context, schedule domain.Schedule) (mo.Option[time.Time], error) {
	next := schedule.Repetition().Next(s.clock, schedule.LastExecution())
	if err := s.repo.PutSchedule(ctx, schedule, next); err != nil {
		return mo.None[time.Time](), err
	}
	return next, nil
}

// ProcessDue fires every schedule whose next run has arrived and returns
// how many were handled without error.
func (s *Service) ProcessDue(ctx context.Context) (int, error) {
	due, err := s.repo.DueSchedules(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}

	handled := s.pool.Run(ctx, len(due), func(ctx context.Context, i int) bool {
		if err := s.processSchedule(ctx, due[i]); err != nil {
			log.Error().Err(err).Str("schedule_id", due[i].Schedule.ID().String()).Msg("failed to process schedule")
			return false
		}
		return true
	})
	return handled, nil
}

func (s *Service) processSchedule(ctx context.Context, d store.Due) error {
	schedule := d.Schedule

	wf, err := s.repo.GetWorkflow(ctx, schedule.WorkflowID())
	if errors.Is(err, store.ErrNotFound) {
		log.Warn().
			Str("schedule_id", schedule.ID().String()).
			Str("workflow_id", schedule.WorkflowID().String()).
			Msg("workflow gone, deactivating schedule")
		return s.repo.PutSchedule(ctx, schedule, mo.None[time.Time]())
	}
	if err != nil {
		return fmt.Errorf("load workflow %s: %w", schedule.WorkflowID(), err)
	}
	tasks, err := s.repo.GetTasks(ctx, wf.Tasks().IDs())
	if err != nil {
		return fmt.Errorf("load tasks of %s: %w", wf.ID(), err)
	}

	if err := s.dispatcher.Dispatch(ctx, wf, tasks); err != nil {
		log.Error().Err(err).
			Str("schedule_id", schedule.ID().String()).
			Str("workflow_id", wf.ID().String()).
			Msg("dispatch failed")
	}

	// The fired instant becomes the last execution.
	updated := schedule.WithLastExecution(d.At)
	next := updated.Repetition().Next(s.clock, updated.LastExecution())
	if err := s.repo.PutSchedule(ctx, updated, next); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}

	ev := log.Info().
		Str("schedule_id", schedule.ID().String()).
		Str("workflow_id", wf.ID().String()).
		Int("tasks", len(tasks)).
		Time("fired_at", d.At)
	if at, ok := next.Get(); ok {
		ev.Time("next_run", at).Msg("schedule fired")
	} else {
		ev.Msg("schedule fired and deactivated")
	}
	return nil
}

// LogDispatcher only logs what would run.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(ctx context.Context, wf domain.Workflow, tasks []domain.Task) error {
	for i, t := range tasks {
		log.Info().
			Str("workflow_id", wf.ID().String()).
			Int("step", i).
			Str("task_id", t.ID().String()).
			Str("task_name", t.Name()).
			Str("code", t.Code()).
			Msg("dispatch task")
	}
	return nil
}
