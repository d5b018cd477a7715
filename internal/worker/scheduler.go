package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/upfit/internal/config"
)

const jobTimeout = 5 * time.Minute

// JobRegistration describes a scheduled job. Schedule accepts standard cron
// expressions with an optional seconds field and descriptors like "@every 1h".
type JobRegistration struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// SchedulerParams collects scheduler dependencies via Fx.
type SchedulerParams struct {
	fx.In

	Logger *zap.Logger
	Config config.Config
	Jobs   []JobRegistration `group:"worker.jobs"`
}

// Scheduler runs registered jobs on their cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	enabled bool
	mu      sync.Mutex
	jobs    map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler builds a scheduler and registers every job in the group.
func NewScheduler(p SchedulerParams) (*Scheduler, error) {
	s := newScheduler(p.Logger, p.Config.Jobs.Enabled)
	for _, j := range p.Jobs {
		if err := s.AddJob(j); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newScheduler(logger *zap.Logger, enabled bool) *Scheduler {
	cl := cronLogger{logger: logger.Named("cron")}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		logger:  logger,
		enabled: enabled,
		jobs:    make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SchedulerModule wires the scheduler into the Fx lifecycle.
var SchedulerModule = fx.Options(
	fx.Provide(NewScheduler),
	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				s.Start()
				return nil
			},
			OnStop: s.Stop,
		})
	}),
)

// AddJob schedules j. Names must be unique.
func (s *Scheduler) AddJob(j JobRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.Name]; exists {
		return fmt.Errorf("job %s already exists", j.Name)
	}

	entryID, err := s.cron.AddFunc(j.Schedule, func() { s.run(j) })
	if err != nil {
		return fmt.Errorf("add job %s: %w", j.Name, err)
	}

	s.jobs[j.Name] = entryID
	s.logger.Info("added scheduled job", zap.String("job_name", j.Name), zap.String("schedule", j.Schedule))
	return nil
}

// RunNow executes the named job once, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	id, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	s.cron.Entry(id).WrappedJob.Run()
	return nil
}

// JobNames lists the registered jobs.
func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Start begins running jobs when scheduling is enabled.
func (s *Scheduler) Start() {
	if !s.enabled {
		s.logger.Info("job scheduler disabled")
		return
	}
	s.logger.Info("starting job scheduler", zap.Int("jobs", len(s.jobs)))
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("job scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(j JobRegistration) {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	if err := j.Run(ctx); err != nil {
		s.logger.Error("scheduled job failed", zap.String("job_name", j.Name), zap.Error(err))
		return
	}
	s.logger.Info("completed scheduled job", zap.String("job_name", j.Name), zap.Duration("duration", time.Since(start)))
}

type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
