package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/sliink/mensura/internal/model"
)

// Monitor follows run progress through the event bus and reports component health
type Monitor struct {
	components map[string]Component
	progress   model.Progress
	results    []model.DatasetResult
	mutex      sync.RWMutex
	BaseComponent
}

// NewMonitor creates a monitor subscribed to all run and dataset events of the bus
func NewMonitor(bus *EventBus) *Monitor {
	m := &Monitor{
		components:    make(map[string]Component),
		BaseComponent: NewBaseComponent("monitor", "Run Monitor"),
	}
	m.SetStatus(model.StatusRunning)

	if bus != nil {
		bus.SubscribeAll(m.ID(), m.handle,
			model.EventRunStarted,
			model.EventRunFinished,
			model.EventDatasetStarted,
			model.EventDatasetFinished,
			model.EventDatasetFailed,
			model.EventDatasetSkipped,
		)
		m.RegisterComponent(bus)
	}
	return m
}

// RegisterComponent adds a component to be reported by Health
func (m *Monitor) RegisterComponent(component Component) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.components[component.ID()] = component
}

func (m *Monitor) handle(event Event) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch event.Type {
	case model.EventRunStarted:
		info, _ := event.Data.(model.RunInfo)
		m.progress = model.Progress{
			RunID:     info.RunID,
			Status:    model.StatusRunning,
			Workers:   info.Workers,
			Total:     info.Datasets,
			StartedAt: event.Timestamp,
		}
		m.results = nil
	case model.EventRunFinished:
		info, _ := event.Data.(model.RunInfo)
		m.progress.Status = model.StatusStopped
		if info.Error != "" {
			m.progress.Status = model.StatusError
		}
		m.progress.Active = 0
		m.progress.FinishedAt = event.Timestamp
	case model.EventDatasetStarted:
		m.progress.Active++
	case model.EventDatasetFinished, model.EventDatasetFailed, model.EventDatasetSkipped:
		result, ok := event.Data.(model.DatasetResult)
		if !ok {
			return
		}
		m.results = append(m.results, result)
		m.progress.Events += result.Events

		switch result.Status {
		case model.DatasetDone:
			m.progress.Done++
			m.progress.Active--
		case model.DatasetFailed:
			m.progress.Failed++
			m.progress.Active--
		case model.DatasetSkipped:
			m.progress.Skipped++
		}
	}
}

// Progress returns the current run progress
func (m *Monitor) Progress() model.Progress {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.progress
}

// Results returns the dataset results received so far
func (m *Monitor) Results() []model.DatasetResult {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return append([]model.DatasetResult(nil), m.results...)
}

// Health retrieves the health status of the system
func (m *Monitor) Health() model.HealthStatus {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	now := time.Now()
	components := make(map[string]model.HealthStatus, len(m.components))
	errored := 0
	for id, component := range m.components {
		status := component.GetStatus()
		if status == model.StatusError {
			errored++
		}
		components[id] = model.HealthStatus{
			Status:    status,
			Timestamp: now,
			Message:   component.Name() + " status: " + string(status),
		}
	}

	health := model.HealthStatus{
		Status:     model.StatusRunning,
		Timestamp:  now,
		Message:    "System is healthy",
		Components: components,
	}

	if errored > 0 {
		health.Status = model.StatusError
		health.Message = fmt.Sprintf("System has errors: %d components in ERROR state", errored)
	} else if m.progress.Failed > 0 {
		health.Message = fmt.Sprintf("System is running with %d failed datasets", m.progress.Failed)
	}

	return health
}
