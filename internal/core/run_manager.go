package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sliink/mensura/internal/log"
	"github.com/sliink/mensura/internal/model"
)

// FailurePolicy decides what happens to a run when a dataset fails
type FailurePolicy string

const (
	// PolicyAbort stops the run at the first failed dataset
	PolicyAbort FailurePolicy = "abort"
	// PolicyContinue records failed datasets and moves on
	PolicyContinue FailurePolicy = "continue"
)

// ParseFailurePolicy converts a policy name. An empty name selects PolicyAbort.
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(name)) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicyContinue:
		return PolicyContinue, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", name)
	}
}

// WorkerStat holds what one worker did during a run
type WorkerStat struct {
	Worker   int   `json:"worker"`
	Datasets int   `json:"datasets"`
	Failed   int   `json:"failed"`
	Events   int64 `json:"events"`
}

// RunManager distributes atomic datasets over a pool of processors
type RunManager struct {
	template *Processor
	datasets []model.Dataset
	queue    *DatasetQueue
	policy   FailurePolicy
	bus      *EventBus
	base     *slog.Logger
	logger   *slog.Logger
	runID    string

	workers    []*Processor
	workerStat []WorkerStat
	results    []model.DatasetResult
	startedAt  time.Time
	finishedAt time.Time
	mutex      sync.RWMutex

	BaseComponent
}

// RunOption configures a run manager
type RunOption func(*RunManager)

// WithFailurePolicy selects the failure policy
func WithFailurePolicy(policy FailurePolicy) RunOption {
	return func(m *RunManager) {
		m.policy = policy
	}
}

// WithEventBus publishes run and dataset events on the given bus
func WithEventBus(bus *EventBus) RunOption {
	return func(m *RunManager) {
		m.bus = bus
	}
}

// WithRunLogger sets the logger of the run manager and its processors
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(m *RunManager) {
		m.base = logger
	}
}

// WithRunIdentifier overrides the generated run ID
func WithRunIdentifier(runID string) RunOption {
	return func(m *RunManager) {
		m.runID = runID
	}
}

// NewRunManager splits the datasets into atomic ones and enqueues them
func NewRunManager(datasets []model.Dataset, opts ...RunOption) *RunManager {
	m := &RunManager{
		policy:        PolicyAbort,
		BaseComponent: NewBaseComponent("run_manager", "Run Manager"),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.base == nil {
		m.base = log.Get()
	}
	if m.runID == "" {
		m.runID = uuid.NewString()
	}

	m.logger = log.WithComponent(m.base, "run_manager").With(slog.String("run_id", m.runID))
	m.queue = NewDatasetQueue(datasets)
	m.datasets = m.queue.Snapshot()
	m.template = NewProcessor(WithLogger(m.base), WithWorker(0), WithRunID(m.runID))

	m.logger.Info("Datasets enqueued", "inputs", len(datasets), "atomic", len(m.datasets))
	return m
}

// RunID returns the identifier of the run
func (m *RunManager) RunID() string {
	return m.runID
}

// Policy returns the failure policy
func (m *RunManager) Policy() FailurePolicy {
	return m.policy
}

// Template returns the processor the workers are cloned from
func (m *RunManager) Template() *Processor {
	return m.template
}

// Datasets returns all atomic datasets of the run in queue order
func (m *RunManager) Datasets() []model.Dataset {
	return append([]model.Dataset(nil), m.datasets...)
}

// Pending returns the number of datasets not yet taken by a worker
func (m *RunManager) Pending() int {
	return m.queue.Len()
}

// RegisterService adds a service to the template processor. It fails while a run is active.
func (m *RunManager) RegisterService(factory model.ServiceFactory) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.GetStatus() == model.StatusRunning {
		return ErrRunActive
	}
	return m.template.RegisterService(factory)
}

// RegisterPlugin appends a plugin to the path of the template processor. It fails while a run
// is active.
func (m *RunManager) RegisterPlugin(factory model.PluginFactory, dependencies ...string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.GetStatus() == model.StatusRunning {
		return ErrRunActive
	}
	return m.template.RegisterPlugin(factory, dependencies...)
}

// ProcessFraction runs with a number of workers proportional to the available CPUs
func (m *RunManager) ProcessFraction(ctx context.Context, loadFraction float64) error {
	return m.Process(ctx, int(loadFraction*float64(runtime.NumCPU())))
}

// Process runs the path over all queued datasets with nThreads workers and blocks until every
// worker has finished. The number of workers is clamped to the number of queued datasets.
func (m *RunManager) Process(ctx context.Context, nThreads int) error {
	if nThreads < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidThreadCount, nThreads)
	}

	// Claim the run. The path is validated under the same lock registrations take.
	m.mutex.Lock()
	if m.GetStatus() == model.StatusRunning {
		m.mutex.Unlock()
		return ErrRunActive
	}
	if err := m.template.Validate(); err != nil {
		m.mutex.Unlock()
		return err
	}
	m.SetStatus(model.StatusRunning)
	m.mutex.Unlock()

	if pending := m.queue.Len(); nThreads > pending {
		nThreads = pending
	}
	if nThreads == 0 {
		m.logger.Warn("No datasets to process")
		m.SetStatus(model.StatusStopped)
		return nil
	}

	workers, err := m.spawn(nThreads)
	if err != nil {
		m.SetStatus(model.StatusError)
		return err
	}

	m.mutex.Lock()
	m.workers = workers
	m.workerStat = make([]WorkerStat, len(workers))
	for i := range m.workerStat {
		m.workerStat[i].Worker = i
	}
	m.results = nil
	m.startedAt = time.Now()
	m.finishedAt = time.Time{}
	m.mutex.Unlock()

	total := m.queue.Len()
	m.logger.Info("Run started", "workers", len(workers), "datasets", total, "policy", m.policy)
	m.publish(model.EventRunStarted, model.RunInfo{RunID: m.runID, Workers: len(workers), Datasets: total})

	var (
		failures     []error
		failureMutex sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, worker := range workers {
		g.Go(func() error {
			return m.work(gctx, worker, func(err error) {
				failureMutex.Lock()
				failures = append(failures, err)
				failureMutex.Unlock()
			})
		})
	}
	runErr := g.Wait()

	// Whatever is left was never started
	for _, ds := range m.queue.Drain() {
		result := model.DatasetResult{
			DatasetID: ds.ID,
			File:      datasetLabel(ds),
			Status:    model.DatasetSkipped,
			Worker:    -1,
		}
		m.record(result)
		m.publish(model.EventDatasetSkipped, result)
	}

	if runErr == nil {
		runErr = errors.Join(append(failures, ctx.Err())...)
	}

	m.mutex.Lock()
	m.finishedAt = time.Now()
	m.mutex.Unlock()

	info := model.RunInfo{RunID: m.runID, Workers: len(workers), Datasets: total}
	if runErr != nil {
		info.Error = runErr.Error()
		m.SetStatus(model.StatusError)
		m.logger.Error("Run finished with errors", "error", runErr)
	} else {
		m.SetStatus(model.StatusStopped)
		m.logger.Info("Run finished", "duration", time.Since(m.startedAt))
	}
	m.publish(model.EventRunFinished, info)

	return runErr
}

// spawn returns the template followed by nThreads-1 clones
func (m *RunManager) spawn(nThreads int) ([]*Processor, error) {
	m.template.ResetStats()
	workers := []*Processor{m.template}
	for i := 1; i < nThreads; i++ {
		clone, err := m.template.Clone(i)
		if err != nil {
			return nil, fmt.Errorf("cloning processor for worker %d: %w", i, err)
		}
		workers = append(workers, clone)
	}
	return workers, nil
}

// work pops datasets until the queue is empty or the context is cancelled. Under PolicyAbort the
// first dataset error is returned, which cancels the other workers.
func (m *RunManager) work(ctx context.Context, p *Processor, onFailure func(error)) error {
	logger := m.logger.With(slog.Int("worker", p.Worker()))

	for {
		if ctx.Err() != nil {
			return nil
		}

		ds, ok := m.queue.Pop()
		if !ok {
			return nil
		}

		file := datasetLabel(ds)
		m.publish(model.EventDatasetStarted, model.DatasetStart{DatasetID: ds.ID, File: file, Worker: p.Worker()})
		logger.Debug("Dataset started", "dataset", ds.ID, "file", file)

		start := time.Now()
		events, err := p.ProcessDataset(ctx, ds)
		result := model.DatasetResult{
			DatasetID: ds.ID,
			File:      file,
			Status:    model.DatasetDone,
			Worker:    p.Worker(),
			Events:    events,
			Duration:  time.Since(start),
		}

		if err == nil {
			m.record(result)
			m.publish(model.EventDatasetFinished, result)
			logger.Info("Dataset processed", "dataset", ds.ID, "file", file, "events", events, "duration", result.Duration)
			continue
		}

		result.Status = model.DatasetFailed
		result.Error = err.Error()
		m.record(result)
		m.publish(model.EventDatasetFailed, result)

		// Interrupted by cancellation rather than by a failing unit
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			logger.Warn("Dataset interrupted", "dataset", ds.ID, "file", file, "events", events)
			return nil
		}

		logger.Error("Dataset failed", "dataset", ds.ID, "file", file, "error", err)
		if m.policy == PolicyAbort {
			return err
		}
		onFailure(err)
	}
}

func (m *RunManager) record(result model.DatasetResult) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.results = append(m.results, result)
	if result.Worker >= 0 && result.Worker < len(m.workerStat) {
		stat := &m.workerStat[result.Worker]
		stat.Datasets++
		stat.Events += result.Events
		if result.Status == model.DatasetFailed {
			stat.Failed++
		}
	}
}

func (m *RunManager) publish(eventType model.EventType, data interface{}) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(NewEvent(eventType, m.ID(), data))
}

// Results returns the dataset results recorded so far
func (m *RunManager) Results() []model.DatasetResult {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return append([]model.DatasetResult(nil), m.results...)
}

// Stats returns per-plugin counters summed over all workers, in path order
func (m *RunManager) Stats() []model.PluginStat {
	m.mutex.RLock()
	workers := m.workers
	m.mutex.RUnlock()

	if len(workers) == 0 {
		return m.template.Stats()
	}

	totals := workers[0].Stats()
	for _, w := range workers[1:] {
		for i, stat := range w.Stats() {
			totals[i].Visited += stat.Visited
			totals[i].Passed += stat.Passed
		}
	}
	return totals
}

// WorkerStats returns what every worker of the last run did
func (m *RunManager) WorkerStats() []WorkerStat {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return append([]WorkerStat(nil), m.workerStat...)
}

// Worker returns the processor of a worker of the last run
func (m *RunManager) Worker(i int) (*Processor, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if i < 0 || i >= len(m.workers) {
		return nil, false
	}
	return m.workers[i], true
}
