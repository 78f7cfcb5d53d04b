package scheduler

import (
	"context"
	"fmt"
	"time"

	"arena/internal/metrics"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Job is one periodic unit of background work. Run reports how many records it touched.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) (int, error)
}

type RoomSweeper interface {
	SweepAutoPublish(ctx context.Context) (int, error)
}

type AnnouncementProcessor interface {
	ProcessScheduled(ctx context.Context) (int, error)
}

type TokenSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Jobs builds the standard job set. Nil dependencies are skipped.
func Jobs(rooms RoomSweeper, announcements AnnouncementProcessor, tokens TokenSweeper, every time.Duration) []Job {
	var jobs []Job
	if rooms != nil {
		jobs = append(jobs, Job{Name: "room_auto_publish", Every: every, Run: rooms.SweepAutoPublish})
	}
	if announcements != nil {
		jobs = append(jobs, Job{Name: "scheduled_announcements", Every: every, Run: announcements.ProcessScheduled})
	}
	if tokens != nil {
		jobs = append(jobs, Job{Name: "reset_token_sweep", Every: 10 * every, Run: func(ctx context.Context) (int, error) {
			n, err := tokens.Sweep(ctx)
			return int(n), err
		}})
	}
	return jobs
}

type Scheduler struct {
	sched   gocron.Scheduler
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

func New(log *zap.SugaredLogger, m *metrics.Metrics) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		sched:   sched,
		ctx:     ctx,
		cancel:  cancel,
		timeout: 30 * time.Second,
		log:     log,
		metrics: m,
	}, nil
}

// Add registers a job. A run still in progress when the next tick arrives skips that tick.
func (s *Scheduler) Add(job Job) error {
	if job.Every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	_, err := s.sched.NewJob(
		gocron.DurationJob(job.Every),
		gocron.NewTask(s.run, job),
		gocron.WithName(job.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.log.Infow("scheduler started", "jobs", len(s.sched.Jobs()))
	s.sched.Start()
}

// Shutdown cancels running jobs and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.sched.Shutdown()
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	started := time.Now()
	n, err := job.Run(ctx)
	s.metrics.ObserveJob(job.Name, time.Since(started).Seconds())
	if err != nil {
		s.log.Errorw("scheduled job failed", "job", job.Name, "error", err)
		return
	}
	if n > 0 {
		s.log.Infow("scheduled job finished", "job", job.Name, "processed", n)
	}
}
