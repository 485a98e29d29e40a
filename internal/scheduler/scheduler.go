// Package scheduler runs the pipeline's periodic tasks. Every task name is guarded
// by an in-process lock and, when configured, a distributed lock, so two runs of one
// task never overlap whether they were started by cron or by an administrator.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/events"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/observability"
)

var (
	// ErrTaskNotFound is returned for unknown task names.
	ErrTaskNotFound = errors.New("scheduler task not found")
	// ErrTaskRunning is returned when a manual trigger collides with a running task.
	ErrTaskRunning = errors.New("scheduler task already running")
	// ErrDuplicateTask is returned when a task name is registered twice.
	ErrDuplicateTask = errors.New("scheduler task already registered")
)

const (
	// TriggerSchedule marks runs started by cron.
	TriggerSchedule = "schedule"
	// TriggerManual marks runs started through RunNow or Trigger.
	TriggerManual = "manual"

	outcomeSuccess = "success"
	outcomeFailure = "failure"

	defaultTimeout = 10 * time.Minute
)

// Task is a named unit of periodic work.
type Task struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// TaskStatus is a point-in-time view of a registered task.
type TaskStatus struct {
	Name         string
	Spec         string
	Running      bool
	LastRunAt    *time.Time
	LastDuration time.Duration
	LastError    string
	LastTrigger  string
	Runs         int64
	Failures     int64
	Skips        int64
	NextRun      *time.Time
}

// MetricRecorder persists run observations.
type MetricRecorder interface {
	RecordMetric(ctx context.Context, metric *models.PerformanceMetric) error
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithLocker adds a distributed lock around every run.
func WithLocker(locker Locker, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

// WithLocation evaluates cron specs in the given time zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithDefaultTimeout bounds tasks that do not set their own timeout.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithMetricRecorder stores a duration metric for every run.
func WithMetricRecorder(recorder MetricRecorder) Option {
	return func(s *Scheduler) { s.recorder = recorder }
}

// WithPublisher emits a task.finished event for every run.
func WithPublisher(publisher events.Publisher) Option {
	return func(s *Scheduler) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

type entry struct {
	task     Task
	schedule cron.Schedule
	id       cron.EntryID
	running  sync.Mutex

	mu     sync.Mutex
	status TaskStatus
}

// Scheduler owns the cron engine and the registered tasks.
type Scheduler struct {
	logger    zerolog.Logger
	location  *time.Location
	timeout   time.Duration
	locker    Locker
	lockTTL   time.Duration
	recorder  MetricRecorder
	publisher events.Publisher
	now       func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	tasks   map[string]*entry
	order   []string
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a stopped scheduler.
func New(logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:    logger.With().Str("component", "scheduler").Logger(),
		location:  time.UTC,
		timeout:   defaultTimeout,
		publisher: events.Nop{},
		now:       time.Now,
		tasks:     make(map[string]*entry),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker != nil && s.lockTTL <= 0 {
		s.lockTTL = s.timeout + time.Minute
	}

	cronLogger := cronLogAdapter{logger: s.logger}
	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger)),
	)
	return s
}

// Register adds a task. Tasks registered after Start are scheduled immediately.
func (s *Scheduler) Register(task Task) error {
	if task.Name == "" || task.Run == nil {
		return fmt.Errorf("scheduler task requires a name and a run function")
	}

	schedule, err := cron.ParseStandard(task.Spec)
	if err != nil {
		return fmt.Errorf("task %s: invalid spec %q: %w", task.Name, task.Spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, task.Name)
	}

	e := &entry{task: task, schedule: schedule}
	e.status = TaskStatus{Name: task.Name, Spec: task.Spec}
	s.tasks[task.Name] = e
	s.order = append(s.order, task.Name)

	if s.started {
		s.scheduleLocked(e)
	}
	return nil
}

// Start schedules every registered task. Runs inherit ctx; cancelling it aborts
// in-flight runs.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, name := range s.order {
		s.scheduleLocked(s.tasks[name])
	}
	s.cron.Start()
	s.started = true

	s.logger.Info().Int("tasks", len(s.order)).Str("timezone", s.location.String()).Msg("scheduler started")
}

// Stop halts cron, cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.started = false
	stopped := s.cron.Stop()
	// Start schedules every task again, so the old entries must go.
	for _, name := range s.order {
		e := s.tasks[name]
		s.cron.Remove(e.id)
		e.id = 0
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-stopped.Done()
	s.wg.Wait()

	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) scheduleLocked(e *entry) {
	e.id = s.cron.Schedule(e.schedule, cron.FuncJob(func() {
		_ = s.execute(s.runContext(), e, TriggerSchedule)
	}))
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) lookup(name string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return e, nil
}

// RunNow executes the task on the calling goroutine and returns its error.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	e, err := s.lookup(name)
	if err != nil {
		return err
	}
	return s.execute(ctx, e, TriggerManual)
}

// Trigger starts the task in the background. It fails fast with ErrTaskRunning
// when the task is already running in this process.
func (s *Scheduler) Trigger(name string) error {
	e, err := s.lookup(name)
	if err != nil {
		return err
	}
	if !e.running.TryLock() {
		s.recordSkip(e, TriggerManual)
		return fmt.Errorf("%w: %s", ErrTaskRunning, name)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer e.running.Unlock()
		_ = s.executeLocked(s.runContext(), e, TriggerManual)
	}()
	return nil
}

// Restart reschedules the task so its next run is computed from now, and clears
// its failure counters.
func (s *Scheduler) Restart(name string) (TaskStatus, error) {
	s.mu.Lock()
	e, ok := s.tasks[name]
	if !ok {
		s.mu.Unlock()
		return TaskStatus{}, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	if s.started {
		s.cron.Remove(e.id)
		s.scheduleLocked(e)
	}
	s.mu.Unlock()

	e.mu.Lock()
	e.status.Failures = 0
	e.status.Skips = 0
	e.status.LastError = ""
	e.mu.Unlock()

	s.logger.Info().Str("task", name).Msg("scheduler task restarted")
	return s.statusOf(e), nil
}

// Status reports every task in registration order.
func (s *Scheduler) Status() []TaskStatus {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.order))
	for _, name := range s.order {
		entries = append(entries, s.tasks[name])
	}
	s.mu.Unlock()

	statuses := make([]TaskStatus, 0, len(entries))
	for _, e := range entries {
		statuses = append(statuses, s.statusOf(e))
	}
	return statuses
}

// TaskStatus reports a single task.
func (s *Scheduler) TaskStatus(name string) (TaskStatus, error) {
	e, err := s.lookup(name)
	if err != nil {
		return TaskStatus{}, err
	}
	return s.statusOf(e), nil
}

func (s *Scheduler) statusOf(e *entry) TaskStatus {
	e.mu.Lock()
	status := e.status
	e.mu.Unlock()

	s.mu.Lock()
	if s.started {
		if next := s.cron.Entry(e.id).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	s.mu.Unlock()
	return status
}

func (s *Scheduler) execute(ctx context.Context, e *entry, trigger string) error {
	if !e.running.TryLock() {
		s.recordSkip(e, trigger)
		return fmt.Errorf("%w: %s", ErrTaskRunning, e.task.Name)
	}
	defer e.running.Unlock()
	return s.executeLocked(ctx, e, trigger)
}

func (s *Scheduler) executeLocked(parent context.Context, e *entry, trigger string) error {
	name := e.task.Name
	logger := s.logger.With().Str("task", name).Str("trigger", trigger).Logger()

	if s.locker != nil {
		unlock, acquired, err := s.locker.TryLock(parent, name, s.lockTTL)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("distributed lock unavailable, relying on local lock")
		case !acquired:
			s.recordSkip(e, trigger)
			return fmt.Errorf("%w: %s", ErrTaskRunning, name)
		default:
			defer func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
				defer cancel()
				if err := unlock(releaseCtx); err != nil {
					logger.Warn().Err(err).Msg("failed to release distributed lock")
				}
			}()
		}
	}

	timeout := e.task.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := s.now()
	e.mu.Lock()
	e.status.Running = true
	e.mu.Unlock()

	err := safeRun(ctx, e.task)
	duration := s.now().Sub(start)

	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}

	e.mu.Lock()
	e.status.Running = false
	e.status.Runs++
	e.status.LastRunAt = &start
	e.status.LastDuration = duration
	e.status.LastTrigger = trigger
	e.status.LastError = ""
	if err != nil {
		e.status.Failures++
		e.status.LastError = err.Error()
	}
	e.mu.Unlock()

	observability.TaskRuns().WithLabelValues(name, outcome).Inc()
	observability.TaskDuration().WithLabelValues(name).Observe(duration.Seconds())

	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("scheduled task failed")
	} else {
		logger.Info().Dur("duration", duration).Msg("scheduled task completed")
	}

	s.afterRun(parent, name, trigger, outcome, start, duration, err)
	return err
}

func (s *Scheduler) afterRun(parent context.Context, name, trigger, outcome string, start time.Time, duration time.Duration, runErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
	defer cancel()

	if s.recorder != nil {
		metric := &models.PerformanceMetric{
			Name:  "scheduler_task_duration_ms",
			Value: float64(duration.Milliseconds()),
			Labels: map[string]interface{}{
				"task":    name,
				"trigger": trigger,
				"outcome": outcome,
			},
			RecordedAt: start.UTC(),
		}
		if err := s.recorder.RecordMetric(ctx, metric); err != nil {
			s.logger.Warn().Err(err).Str("task", name).Msg("failed to record task metric")
		}
	}

	payload := map[string]interface{}{
		"task":        name,
		"trigger":     trigger,
		"outcome":     outcome,
		"duration_ms": duration.Milliseconds(),
	}
	if runErr != nil {
		payload["error"] = runErr.Error()
	}
	if err := s.publisher.Publish(ctx, events.TypeTaskFinished, payload); err != nil {
		s.logger.Debug().Err(err).Str("task", name).Msg("task event not published")
	}
}

func (s *Scheduler) recordSkip(e *entry, trigger string) {
	e.mu.Lock()
	e.status.Skips++
	e.mu.Unlock()

	observability.TaskSkipped().WithLabelValues(e.task.Name).Inc()
	s.logger.Warn().Str("task", e.task.Name).Str("trigger", trigger).Msg("task still running, skipping")
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, recovered)
		}
	}()
	return task.Run(ctx)
}

type cronLogAdapter struct {
	logger zerolog.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
