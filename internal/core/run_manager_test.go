package core

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sliink/mensura/internal/log"
	"github.com/sliink/mensura/internal/model"
)

func threeFileRun(opts ...RunOption) *RunManager {
	opts = append([]RunOption{WithRunLogger(log.Discard())}, opts...)
	ttbar := atomicDataset("ttbar", "ttbar_1.mpk", "ttbar_2.mpk")
	wjets := atomicDataset("wjets", "wjets_1.mpk")
	return NewRunManager([]model.Dataset{ttbar, wjets}, opts...)
}

var threeFileEvents = map[string]int{"ttbar_1.mpk": 5, "ttbar_2.mpk": 7, "wjets_1.mpk": 11}

func TestNewRunManager(t *testing.T) {
	m := threeFileRun()

	t.Run("Datasets are split per file", func(t *testing.T) {
		datasets := m.Datasets()
		require.Len(t, datasets, 3)
		assert.Equal(t, 3, m.Pending())

		for i, file := range []string{"ttbar_1.mpk", "ttbar_2.mpk", "wjets_1.mpk"} {
			assert.True(t, datasets[i].IsAtomic())
			assert.Equal(t, file, datasets[i].Files()[0].Name)
		}
		assert.Equal(t, "ttbar", datasets[1].ID)
		assert.Equal(t, model.Process("TTbar"), datasets[1].Process())
	})

	t.Run("Run ID is generated", func(t *testing.T) {
		assert.NotEmpty(t, m.RunID())
		assert.Equal(t, m.RunID(), m.Template().RunID())
		assert.NotEqual(t, m.RunID(), threeFileRun().RunID())
	})

	t.Run("Default policy aborts", func(t *testing.T) {
		assert.Equal(t, PolicyAbort, m.Policy())
	})
}

func TestRunManagerInvalidThreadCount(t *testing.T) {
	for _, n := range []int{0, -1} {
		m := threeFileRun()
		require.NoError(t, m.RegisterPlugin(newFakeReader("Reader", 1, nil, nil)))

		err := m.Process(context.Background(), n)
		assert.ErrorIs(t, err, ErrInvalidThreadCount)
		assert.Equal(t, 3, m.Pending(), "no dataset may be popped")
		assert.Empty(t, m.WorkerStats(), "no worker may be started")
		assert.Equal(t, model.StatusIdle, m.GetStatus())
	}

	t.Run("Fraction below one worker fails the same way", func(t *testing.T) {
		m := threeFileRun()
		require.NoError(t, m.RegisterPlugin(newFakeReader("Reader", 1, nil, nil)))
		assert.ErrorIs(t, m.ProcessFraction(context.Background(), 0), ErrInvalidThreadCount)
		assert.Equal(t, 3, m.Pending())
	})
}

func TestRunManagerRequiresReader(t *testing.T) {
	m := threeFileRun()
	require.NoError(t, m.RegisterPlugin(filterFactory(fakeFilter{name: "Filter"})))

	err := m.Process(context.Background(), 2)
	assert.ErrorIs(t, err, ErrReaderCount)
	assert.Equal(t, 3, m.Pending())
}

func TestRunManagerProcess(t *testing.T) {
	m := threeFileRun()
	require.NoError(t, m.RegisterPlugin(newFakeReader("Reader", 0, threeFileEvents, nil)))
	require.NoError(t, m.RegisterPlugin(filterFactory(fakeFilter{
		name:   "EvenEvents",
		source: "Reader",
		pass:   func(event uint64) bool { return event%2 == 0 },
	}), "Reader"))

	require.NoError(t, m.Process(context.Background(), 2))

	t.Run("Two workers drain the queue", func(t *testing.T) {
		workers := m.WorkerStats()
		require.Len(t, workers, 2)
		assert.Zero(t, m.Pending())
		assert.Equal(t, 3, workers[0].Datasets+workers[1].Datasets)
		assert.Equal(t, model.StatusStopped, m.GetStatus())
	})

	t.Run("Every event is processed exactly once", func(t *testing.T) {
		workers := m.WorkerStats()
		assert.Equal(t, int64(23), workers[0].Events+workers[1].Events)

		stats := m.Stats()
		assert.Equal(t, uint64(23), stats[0].Visited)
		// 3 of 5, 4 of 7 and 6 of 11 events have an even index
		assert.Equal(t, uint64(13), stats[1].Passed)
	})

	t.Run("Each clone only counts its own events", func(t *testing.T) {
		for i, stat := range m.WorkerStats() {
			p, ok := m.Worker(i)
			require.True(t, ok)
			reader, _ := p.Plugin("Reader")
			assert.Equal(t, stat.Events, int64(reader.(*fakeReader).read))
			assert.Equal(t, stat.Datasets, reader.(*fakeReader).datasets)
		}
	})

	t.Run("Worker zero is the template", func(t *testing.T) {
		p, _ := m.Worker(0)
		assert.Same(t, m.Template(), p)
	})

	t.Run("Summary reports all datasets as done", func(t *testing.T) {
		s := m.Summary()
		assert.Equal(t, 3, s.Total)
		assert.Equal(t, 3, s.Done)
		assert.Zero(t, s.Failed)
		assert.Equal(t, int64(23), s.Events)
		assert.Len(t, s.Datasets, 3)
	})

	t.Run("PrintSummary lists plugins and workers", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, m.PrintSummary(&buf))
		out := buf.String()
		assert.Contains(t, out, "EvenEvents")
		assert.Contains(t, out, "WORKER")
		assert.Contains(t, out, m.RunID())
	})
}

func TestRunManagerClampsThreads(t *testing.T) {
	m := threeFileRun()
	require.NoError(t, m.RegisterPlugin(newFakeReader("Reader", 2, nil, nil)))

	require.NoError(t, m.Process(context.Background(), 16))
	assert.Len(t, m.WorkerStats(), 3)
	assert.Equal(t, int64(6), m.Summary().Events)
}

func TestRunManagerFailurePolicy(t *testing.T) {
	breaking := func() model.PluginFactory {
		return func() model.Plugin {
			return &fileFailingFilter{name: "Fragile", file: "ttbar_2.mpk"}
		}
	}

	t.Run("Abort stops at the first failure", func(t *testing.T) {
		m := threeFileRun()
		require.NoError(t, m.RegisterPlugin(newFakeReader("Reader", 0, threeFileEvents, nil)))
		require.NoError(t, m.RegisterPlugin(breaking()))

		err := m.Process(context.Background(), 1)
		require.Error(t, err)

		var dsErr *DatasetError
		require.ErrorAs(t, err, &dsErr)
		assert.Equal(t, "ttbar_2.mpk", dsErr.File)

		s := m.Summary()
		assert.Equal(t, 1, s.Done)
		assert.Equal(t, 1, s.Failed)
		assert.Equal(t, 1, s.Skipped)
		assert.Equal(t, model.StatusError, m.GetStatus())
	})

	t.Run("Continue attempts every dataset", func(t *testing.T) {
		m := threeFileRun(WithFailurePolicy(PolicyContinue))
		require.NoError(t, m.RegisterPlugin(newFakeReader("Reader", 0, threeFileEvents, nil)))
		require.NoError(t, m.RegisterPlugin(breaking()))

		err := m.Process(context.Background(), 2)
		require.Error(t, err)

		var dsErr *DatasetError
		require.ErrorAs(t, err, &dsErr)

		s := m.Summary()
		assert.Equal(t, 2, s.Done)
		assert.Equal(t, 1, s.Failed)
		assert.Zero(t, s.Skipped)
	})

	t.Run("Policy names are parsed", func(t *testing.T) {
		policy, err := ParseFailurePolicy("")
		require.NoError(t, err)
		assert.Equal(t, PolicyAbort, policy)

		policy, err = ParseFailurePolicy("Continue")
		require.NoError(t, err)
		assert.Equal(t, PolicyContinue, policy)

		_, err = ParseFailurePolicy("retry")
		assert.Error(t, err)
	})
}

func TestRunManagerRegistrationDuringRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	m := threeFileRun()
	require.NoError(t, m.RegisterPlugin(newFakeReader("Reader", 1, nil, nil)))
	require.NoError(t, m.RegisterPlugin(func() model.Plugin {
		return &blockingFilter{name: "Block", started: started, release: release}
	}))

	done := make(chan error, 1)
	go func() { done <- m.Process(context.Background(), 1) }()
	<-started

	t.Run("Registrations are rejected while the run is active", func(t *testing.T) {
		assert.ErrorIs(t, m.RegisterPlugin(filterFactory(fakeFilter{name: "Late"})), ErrRunActive)
		assert.ErrorIs(t, m.RegisterService(serviceFactory(fakeService{name: "Late"})), ErrRunActive)
		assert.ErrorIs(t, m.Process(context.Background(), 1), ErrRunActive)
	})

	close(release)
	require.NoError(t, <-done)

	t.Run("Registrations are accepted again once the run is over", func(t *testing.T) {
		assert.NoError(t, m.RegisterPlugin(filterFactory(fakeFilter{name: "Late"})))
	})
}

// blockingFilter holds its first event until release is closed
type blockingFilter struct {
	name    string
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *blockingFilter) Name() string                                   { return f.name }
func (f *blockingFilter) Category() model.PluginCategory                 { return model.CategoryAnalysis }
func (f *blockingFilter) BeginRun(model.RunContext, model.Dataset) error { return nil }
func (f *blockingFilter) EndRun(model.RunContext) error                  { return nil }

func (f *blockingFilter) ProcessEvent(model.RunContext) (bool, error) {
	f.once.Do(func() {
		close(f.started)
		<-f.release
	})
	return true, nil
}

func TestRunManagerCancellation(t *testing.T) {
	m := threeFileRun()
	require.NoError(t, m.RegisterPlugin(newFakeReader("Reader", 5, nil, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Process(ctx, 2)
	assert.ErrorIs(t, err, context.Canceled)

	s := m.Summary()
	assert.Equal(t, 3, s.Skipped)
	assert.Zero(t, s.Done)
}

func TestRunManagerPublishesEvents(t *testing.T) {
	bus := NewEventBus()
	monitor := NewMonitor(bus)

	var (
		mutex sync.Mutex
		seen  = map[model.EventType]int{}
	)
	bus.SubscribeAll("test", func(e Event) {
		mutex.Lock()
		defer mutex.Unlock()
		seen[e.Type]++
	}, model.EventRunStarted, model.EventRunFinished, model.EventDatasetStarted, model.EventDatasetFinished)

	m := threeFileRun(WithEventBus(bus), WithRunIdentifier("run-42"))
	monitor.RegisterComponent(m)
	require.NoError(t, m.RegisterPlugin(newFakeReader("Reader", 0, threeFileEvents, nil)))
	require.NoError(t, m.Process(context.Background(), 2))

	t.Run("Lifecycle events are published", func(t *testing.T) {
		mutex.Lock()
		defer mutex.Unlock()
		assert.Equal(t, 1, seen[model.EventRunStarted])
		assert.Equal(t, 1, seen[model.EventRunFinished])
		assert.Equal(t, 3, seen[model.EventDatasetStarted])
		assert.Equal(t, 3, seen[model.EventDatasetFinished])
	})

	t.Run("Monitor tracks the run", func(t *testing.T) {
		progress := monitor.Progress()
		assert.Equal(t, "run-42", progress.RunID)
		assert.Equal(t, model.StatusStopped, progress.Status)
		assert.Equal(t, 3, progress.Total)
		assert.Equal(t, 3, progress.Done)
		assert.Zero(t, progress.Active)
		assert.Equal(t, int64(23), progress.Events)
		assert.Len(t, monitor.Results(), 3)
	})

	t.Run("Health reports registered components", func(t *testing.T) {
		health := monitor.Health()
		assert.Equal(t, model.StatusRunning, health.Status)
		assert.Contains(t, health.Components, "run_manager")
		assert.Contains(t, health.Components, "event_bus")
	})
}

// fileFailingFilter fails ProcessEvent for one input file
type fileFailingFilter struct {
	name    string
	file    string
	current string
}

func (f *fileFailingFilter) Name() string                   { return f.name }
func (f *fileFailingFilter) Category() model.PluginCategory { return model.CategoryAnalysis }
func (f *fileFailingFilter) EndRun(model.RunContext) error  { return nil }

func (f *fileFailingFilter) BeginRun(rc model.RunContext, dataset model.Dataset) error {
	f.current = dataset.Files()[0].Name
	return nil
}

func (f *fileFailingFilter) ProcessEvent(rc model.RunContext) (bool, error) {
	if f.current == f.file {
		return false, errBoom
	}
	return true, nil
}
