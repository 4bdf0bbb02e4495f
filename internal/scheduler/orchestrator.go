package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dangson92/crawl2/internal/domain"
	"github.com/dangson92/crawl2/internal/monitoring"
	"github.com/dangson92/crawl2/internal/scraper"
	"go.uber.org/zap"
)

// Fetcher produces one hotel record per URL. The assembler is the real
// implementation; tests substitute fakes.
type Fetcher interface {
	Fetch(ctx context.Context, url string, logf scraper.LogFunc, progress scraper.ProgressFunc) (*domain.HotelRecord, error)
}

// TaskStore is the persistence boundary. Saves are best-effort from
// the orchestrator's perspective: a failure is logged, never blocks
// scheduling, and never touches in-memory task state.
type TaskStore interface {
	Save(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAll(ctx context.Context) error
}

// DedupeStore remembers recently crawled URLs so re-queueing them can
// be skipped unless forced. Errors degrade to "not seen".
type DedupeStore interface {
	IsRecentlyCrawled(ctx context.Context, url string) (bool, error)
	MarkAsCrawled(ctx context.Context, url string) error
}

// Settings are the crawl pacing knobs. They are read at scheduling
// decision points, so an update takes effect on the next tick and
// never mid-task.
type Settings struct {
	Concurrency  int           `json:"concurrency"`
	DelayPerTask time.Duration `json:"delay_per_task"`
	BatchSize    int           `json:"batch_size"`
	BatchPause   time.Duration `json:"batch_pause"`
}

func (s Settings) validate() error {
	if s.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", s.Concurrency)
	}
	if s.DelayPerTask < 0 || s.BatchPause < 0 {
		return fmt.Errorf("pacing delays must not be negative")
	}
	return nil
}

// Orchestrator advances tasks through the WAITING → PROCESSING →
// {COMPLETED|ERROR} state machine under a concurrency ceiling, with
// per-task and per-batch pacing.
//
// One scheduler goroutine owns the task collection exclusively; every
// mutation funnels through its op channel and external reads get
// snapshot copies. That single-owner rule is what upholds the task
// invariants under concurrent completions.
type Orchestrator struct {
	fetcher Fetcher
	store   TaskStore
	dedupe  DedupeStore
	sink    *LogSink
	metrics *monitoring.Metrics
	logger  *zap.Logger

	ops  chan func()
	quit chan struct{}
	wg   sync.WaitGroup

	// State below is owned by the scheduler goroutine.
	tasks      []*domain.Task
	byID       map[string]*domain.Task
	cancels    map[string]context.CancelFunc
	settings   Settings
	running    bool
	active     int
	batchCount int
}

// New creates an orchestrator and starts its scheduler goroutine. It
// begins paused; Start kicks off scheduling.
func New(fetcher Fetcher, store TaskStore, dedupe DedupeStore, sink *LogSink, metrics *monitoring.Metrics, settings Settings, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		fetcher:  fetcher,
		store:    store,
		dedupe:   dedupe,
		sink:     sink,
		metrics:  metrics,
		logger:   logger,
		ops:      make(chan func(), 64),
		quit:     make(chan struct{}),
		byID:     make(map[string]*domain.Task),
		cancels:  make(map[string]context.CancelFunc),
		settings: settings,
	}
	o.wg.Add(1)
	go o.loop()
	return o
}

func (o *Orchestrator) loop() {
	defer o.wg.Done()
	for {
		select {
		case fn := <-o.ops:
			fn()
		case <-o.quit:
			return
		}
	}
}

// post hands an op to the scheduler goroutine without waiting.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.ops <- fn:
	case <-o.quit:
	}
}

// call hands an op to the scheduler goroutine and waits for it.
func (o *Orchestrator) call(fn func()) {
	done := make(chan struct{})
	o.post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-o.quit:
	}
}

// Close cancels in-flight sessions and stops the scheduler goroutine.
func (o *Orchestrator) Close() {
	o.call(func() {
		o.running = false
		for _, cancel := range o.cancels {
			cancel()
		}
	})
	close(o.quit)
	o.wg.Wait()
}

// Start resumes scheduling.
func (o *Orchestrator) Start() {
	o.call(func() {
		if o.running {
			return
		}
		o.running = true
		o.emitGlobal(domain.SeverityInfo, "orchestrator started")
		o.schedule()
	})
}

// Pause stops new task starts. In-flight tasks run to a terminal
// state; the waiting queue stays put until Start.
func (o *Orchestrator) Pause() {
	o.call(func() {
		if !o.running {
			return
		}
		o.running = false
		o.emitGlobal(domain.SeverityInfo, "orchestrator paused")
	})
}

// Running reports whether the scheduler is accepting new task starts.
func (o *Orchestrator) Running() bool {
	var running bool
	o.call(func() { running = o.running })
	return running
}

// Add queues one task per URL, skipping blanks and (unless force is
// set) URLs crawled recently per the dedupe store. Returns snapshots
// of the created tasks.
func (o *Orchestrator) Add(ctx context.Context, urls []string, force bool) []*domain.Task {
	var accepted []string
	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		if !force && o.recentlyCrawled(ctx, u) {
			o.logger.Info("skipping recently crawled URL", zap.String("url", u))
			o.sink.Append(Event{URL: u, Entry: domain.LogEntry{
				Timestamp: time.Now(),
				Message:   "skipped: crawled recently, re-queue with force to override",
				Severity:  domain.SeverityInfo,
			}})
			continue
		}
		accepted = append(accepted, u)
	}

	var created []*domain.Task
	o.call(func() {
		for _, u := range accepted {
			task := domain.NewTask(u)
			o.tasks = append(o.tasks, task)
			o.byID[task.ID] = task
			o.appendTaskLog(task, domain.SeverityInfo, "task queued")
			o.persist(task)
			created = append(created, task.Clone())
		}
		o.updateGauges()
		o.schedule()
	})
	return created
}

func (o *Orchestrator) recentlyCrawled(ctx context.Context, url string) bool {
	if o.dedupe == nil {
		return false
	}
	seen, err := o.dedupe.IsRecentlyCrawled(ctx, url)
	if err != nil {
		o.logger.Warn("dedupe lookup failed, treating URL as new", zap.String("url", url), zap.Error(err))
		return false
	}
	return seen
}

// Restore loads previously persisted tasks into the queue. Tasks found
// PROCESSING were in flight when the process died and go back to
// WAITING.
func (o *Orchestrator) Restore(tasks []*domain.Task) {
	o.call(func() {
		for _, task := range tasks {
			if _, dup := o.byID[task.ID]; dup {
				continue
			}
			if task.Status == domain.StatusProcessing {
				task.Reset()
				task.AppendLog(domain.SeverityWarning, "restored after interrupted crawl, re-queued")
			}
			o.tasks = append(o.tasks, task)
			o.byID[task.ID] = task
		}
		o.updateGauges()
	})
}

// schedule is the tick body: fill free slots FIFO.
func (o *Orchestrator) schedule() {
	if !o.running {
		return
	}
	for o.active < o.settings.Concurrency {
		task := o.nextWaiting()
		if task == nil {
			break
		}
		o.startTask(task)
	}
}

// scheduleThenStopIfDrained runs after a task reaches a terminal state.
// The drain check lives here, not in schedule, so that starting an
// empty or fully-terminal queue leaves the orchestrator running and
// quiet rather than emitting a spurious completion event.
func (o *Orchestrator) scheduleThenStopIfDrained() {
	o.schedule()
	if o.running && o.active == 0 && o.nextWaiting() == nil {
		o.running = false
		o.batchCount = 0
		o.emitGlobal(domain.SeveritySuccess, "queue drained, orchestrator stopped")
	}
}

func (o *Orchestrator) nextWaiting() *domain.Task {
	for _, task := range o.tasks {
		if task.Status == domain.StatusWaiting {
			return task
		}
	}
	return nil
}

func (o *Orchestrator) startTask(task *domain.Task) {
	task.Status = domain.StatusProcessing
	task.Progress = 0
	o.active++
	o.appendTaskLog(task, domain.SeverityInfo, "crawl started")
	o.persist(task)
	o.updateGauges()

	ctx, cancel := context.WithCancel(context.Background())
	o.cancels[task.ID] = cancel
	go o.runTask(ctx, task.ID, task.URL)
}

// runTask executes outside the scheduler goroutine; every mutation it
// needs is posted back in.
func (o *Orchestrator) runTask(ctx context.Context, id, url string) {
	logf := func(severity domain.LogSeverity, message string) {
		o.post(func() {
			if task := o.byID[id]; task != nil {
				o.appendTaskLog(task, severity, message)
			}
		})
	}
	progress := func(percent int) {
		o.post(func() {
			if task := o.byID[id]; task != nil && task.Status == domain.StatusProcessing {
				task.Progress = percent
			}
		})
	}

	start := time.Now()
	record, err := o.fetcher.Fetch(ctx, url, logf, progress)
	cancelled := ctx.Err() != nil
	o.post(func() {
		o.finishTask(id, record, err, time.Since(start), cancelled)
	})
}

func (o *Orchestrator) finishTask(id string, record *domain.HotelRecord, err error, duration time.Duration, cancelled bool) {
	task := o.byID[id]
	if task == nil {
		return
	}
	if cancel, ok := o.cancels[id]; ok {
		cancel()
		delete(o.cancels, id)
	}
	o.active--
	o.metrics.ObserveCrawlDuration(duration.Seconds())

	switch {
	case cancelled:
		// A cancelled task keeps its status; the operator resets it
		// explicitly if it should run again.
		o.appendTaskLog(task, domain.SeverityWarning, "crawl cancelled, task left as-is until reset")
		o.metrics.IncCrawls("cancelled")
	case err != nil:
		now := time.Now()
		task.Status = domain.StatusError
		task.Error = err.Error()
		task.FinishedAt = &now
		o.appendTaskLog(task, domain.SeverityError, "crawl failed: "+err.Error())
		o.metrics.IncCrawls("error")
		o.persist(task)
	default:
		now := time.Now()
		task.Status = domain.StatusCompleted
		task.Result = record
		task.Progress = 100
		task.FinishedAt = &now
		o.appendTaskLog(task, domain.SeveritySuccess, fmt.Sprintf("crawl completed in %s", duration.Round(time.Millisecond)))
		o.metrics.IncCrawls("completed")
		o.persist(task)
		o.markCrawled(task.URL)
	}
	o.updateGauges()

	// Per-task pacing throttles request rate: the freed slot is not
	// re-evaluated until the delay elapses. Every BatchSize terminal
	// tasks the longer batch pause applies on top.
	delay := o.settings.DelayPerTask
	if !cancelled {
		o.batchCount++
		if o.settings.BatchSize > 0 && o.batchCount%o.settings.BatchSize == 0 {
			delay += o.settings.BatchPause
			o.emitGlobal(domain.SeverityInfo, fmt.Sprintf("batch of %d finished, pausing %s", o.settings.BatchSize, o.settings.BatchPause))
		}
	}
	if delay > 0 {
		time.AfterFunc(delay, func() {
			o.post(o.scheduleThenStopIfDrained)
		})
		return
	}
	o.scheduleThenStopIfDrained()
}

// Cancel tears down an in-flight task's page session. The task status
// is left unchanged; the operator resets it explicitly.
func (o *Orchestrator) Cancel(id string) bool {
	var ok bool
	o.call(func() {
		var cancel context.CancelFunc
		if cancel, ok = o.cancels[id]; ok {
			cancel()
		}
	})
	return ok
}

// Reset returns terminal (or cancelled) tasks to WAITING, clearing
// result, error, progress and finish time. Actively running tasks are
// skipped. Returns the number of tasks reset.
func (o *Orchestrator) Reset(ids []string) int {
	var count int
	o.call(func() {
		for _, id := range ids {
			task := o.byID[id]
			if task == nil {
				continue
			}
			if _, inFlight := o.cancels[id]; inFlight {
				continue
			}
			if task.Status == domain.StatusWaiting {
				continue
			}
			task.Reset()
			o.appendTaskLog(task, domain.SeverityInfo, "task reset to waiting")
			o.persist(task)
			count++
		}
		o.updateGauges()
		o.schedule()
	})
	return count
}

// Delete removes tasks from the queue and the store. Actively running
// tasks are skipped. Returns the number of tasks removed.
func (o *Orchestrator) Delete(ids []string) int {
	var count int
	o.call(func() {
		for _, id := range ids {
			if _, inFlight := o.cancels[id]; inFlight {
				continue
			}
			if _, ok := o.byID[id]; !ok {
				continue
			}
			delete(o.byID, id)
			o.removeFromOrder(id)
			o.deleteStored(id)
			count++
		}
		o.updateGauges()
	})
	return count
}

// Clear empties the queue of everything not actively running.
func (o *Orchestrator) Clear() int {
	var count int
	o.call(func() {
		kept := o.tasks[:0]
		for _, task := range o.tasks {
			if _, inFlight := o.cancels[task.ID]; inFlight {
				kept = append(kept, task)
				continue
			}
			delete(o.byID, task.ID)
			o.deleteStored(task.ID)
			count++
		}
		o.tasks = kept
		o.updateGauges()
		o.emitGlobal(domain.SeverityInfo, fmt.Sprintf("queue cleared, %d tasks removed", count))
	})
	return count
}

// Snapshot returns deep copies of all tasks in queue order.
func (o *Orchestrator) Snapshot() []*domain.Task {
	var out []*domain.Task
	o.call(func() {
		out = make([]*domain.Task, len(o.tasks))
		for i, task := range o.tasks {
			out[i] = task.Clone()
		}
	})
	return out
}

// Get returns a deep copy of one task.
func (o *Orchestrator) Get(id string) (*domain.Task, bool) {
	var (
		task  *domain.Task
		found bool
	)
	o.call(func() {
		if t := o.byID[id]; t != nil {
			task = t.Clone()
			found = true
		}
	})
	return task, found
}

// Counts aggregates queued tasks by status.
func (o *Orchestrator) Counts() domain.StatusCounts {
	var counts domain.StatusCounts
	o.call(func() {
		for _, task := range o.tasks {
			switch task.Status {
			case domain.StatusWaiting:
				counts.Waiting++
			case domain.StatusProcessing:
				counts.Processing++
			case domain.StatusCompleted:
				counts.Completed++
			case domain.StatusError:
				counts.Error++
			}
		}
	})
	return counts
}

// Settings returns the current pacing knobs.
func (o *Orchestrator) Settings() Settings {
	var s Settings
	o.call(func() { s = o.settings })
	return s
}

// UpdateSettings replaces the pacing knobs. The new values apply at
// the next scheduling tick; running tasks are unaffected.
func (o *Orchestrator) UpdateSettings(s Settings) error {
	if err := s.validate(); err != nil {
		return err
	}
	o.call(func() {
		o.settings = s
		o.schedule()
	})
	return nil
}

func (o *Orchestrator) removeFromOrder(id string) {
	for i, task := range o.tasks {
		if task.ID == id {
			o.tasks = append(o.tasks[:i], o.tasks[i+1:]...)
			return
		}
	}
}

func (o *Orchestrator) appendTaskLog(task *domain.Task, severity domain.LogSeverity, message string) {
	entry := task.AppendLog(severity, message)
	o.sink.Append(Event{TaskID: task.ID, URL: task.URL, Entry: entry})
}

func (o *Orchestrator) emitGlobal(severity domain.LogSeverity, message string) {
	o.sink.Append(Event{Entry: domain.LogEntry{Timestamp: time.Now(), Message: message, Severity: severity}})
	o.logger.Info(message)
}

// persist saves a snapshot off the scheduler goroutine. Failures are
// logged and counted, nothing more.
func (o *Orchestrator) persist(task *domain.Task) {
	if o.store == nil {
		return
	}
	snapshot := task.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.store.Save(ctx, snapshot); err != nil {
			o.logger.Error("failed to persist task", zap.String("task_id", snapshot.ID), zap.Error(err))
			o.metrics.IncErrors("db_save_failed")
		}
	}()
}

func (o *Orchestrator) deleteStored(id string) {
	if o.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := o.store.Delete(ctx, id); err != nil {
			o.logger.Error("failed to delete persisted task", zap.String("task_id", id), zap.Error(err))
			o.metrics.IncErrors("db_delete_failed")
		}
	}()
}

func (o *Orchestrator) markCrawled(url string) {
	if o.dedupe == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.dedupe.MarkAsCrawled(ctx, url); err != nil {
			o.logger.Warn("failed to mark URL as crawled", zap.String("url", url), zap.Error(err))
		}
	}()
}

func (o *Orchestrator) updateGauges() {
	waiting := 0
	for _, task := range o.tasks {
		if task.Status == domain.StatusWaiting {
			waiting++
		}
	}
	o.metrics.SetActiveTasks(o.active)
	o.metrics.SetQueueDepth(waiting)
}
