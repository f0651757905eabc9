package model

import "time"

// ComponentStatus represents the current status of a component
type ComponentStatus string

const (
	// StatusIdle indicates the component has no dataset open
	StatusIdle ComponentStatus = "IDLE"
	// StatusRunActive indicates a dataset is open and events are being processed
	StatusRunActive ComponentStatus = "RUN_ACTIVE"
	// StatusRunning indicates a run over the dataset queue is in progress
	StatusRunning ComponentStatus = "RUNNING"
	// StatusStopped indicates the component has finished its work
	StatusStopped ComponentStatus = "STOPPED"
	// StatusError indicates the component stopped because of an error
	StatusError ComponentStatus = "ERROR"
)

// PluginCategory determines how the boolean result of ProcessEvent is interpreted
type PluginCategory string

const (
	// CategoryReader marks the plugin that signals input exhaustion
	CategoryReader PluginCategory = "READER"
	// CategoryAnalysis marks plugins whose negative decision rejects the event
	CategoryAnalysis PluginCategory = "ANALYSIS"
)

// Outcome translates a raw ProcessEvent decision into an EventOutcome.
func (c PluginCategory) Outcome(decision bool) EventOutcome {
	if decision {
		return OutcomeOk
	}
	if c == CategoryReader {
		return OutcomeNoEvents
	}
	return OutcomeFilterFailed
}

// EventOutcome is the result of one plugin processing one event
type EventOutcome int

const (
	// OutcomeOk lets the event proceed to the next plugin
	OutcomeOk EventOutcome = iota
	// OutcomeFilterFailed skips the rest of the path for the current event
	OutcomeFilterFailed
	// OutcomeNoEvents ends processing of the current dataset
	OutcomeNoEvents
)

func (o EventOutcome) String() string {
	switch o {
	case OutcomeOk:
		return "Ok"
	case OutcomeFilterFailed:
		return "FilterFailed"
	case OutcomeNoEvents:
		return "NoEvents"
	default:
		return "Unknown"
	}
}

// EventType represents the type of system event
type EventType string

const (
	// EventRunStarted is published when workers are launched
	EventRunStarted EventType = "RUN_STARTED"
	// EventRunFinished is published after all workers have joined
	EventRunFinished EventType = "RUN_FINISHED"
	// EventDatasetStarted is published when a worker pops a dataset
	EventDatasetStarted EventType = "DATASET_STARTED"
	// EventDatasetFinished is published when a dataset has been exhausted
	EventDatasetFinished EventType = "DATASET_FINISHED"
	// EventDatasetFailed is published when a dataset could not be processed
	EventDatasetFailed EventType = "DATASET_FAILED"
	// EventDatasetSkipped is published for datasets left in the queue after an abort
	EventDatasetSkipped EventType = "DATASET_SKIPPED"
)

// DatasetStatus is the final state of one atomic dataset in a run
type DatasetStatus string

const (
	// DatasetDone means every event of the dataset went through the path
	DatasetDone DatasetStatus = "done"
	// DatasetFailed means BeginRun, ProcessEvent or EndRun returned an error
	DatasetFailed DatasetStatus = "failed"
	// DatasetSkipped means the dataset was never started
	DatasetSkipped DatasetStatus = "skipped"
)

// DatasetResult records what happened to one atomic dataset
type DatasetResult struct {
	DatasetID string        `json:"dataset_id"`
	File      string        `json:"file"`
	Status    DatasetStatus `json:"status"`
	Worker    int           `json:"worker"`
	Events    int64         `json:"events"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// PluginStat holds per-plugin counters accumulated over a run
type PluginStat struct {
	Plugin  string `json:"plugin"`
	Visited uint64 `json:"visited"`
	Passed  uint64 `json:"passed"`
}

// RunInfo is the payload of run level bus events
type RunInfo struct {
	RunID    string `json:"run_id"`
	Workers  int    `json:"workers"`
	Datasets int    `json:"datasets"`
	Error    string `json:"error,omitempty"`
}

// DatasetStart is the payload of a DATASET_STARTED bus event
type DatasetStart struct {
	DatasetID string `json:"dataset_id"`
	File      string `json:"file"`
	Worker    int    `json:"worker"`
}

// Progress summarizes the state of a run while it is executing
type Progress struct {
	RunID      string          `json:"run_id"`
	Status     ComponentStatus `json:"status"`
	Workers    int             `json:"workers"`
	Active     int             `json:"active"`
	Total      int             `json:"total"`
	Done       int             `json:"done"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	Events     int64           `json:"events"`
	StartedAt  time.Time       `json:"started_at,omitempty"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
}

// HealthStatus represents the health of the system or of one component
type HealthStatus struct {
	Status     ComponentStatus         `json:"status"`
	Timestamp  time.Time               `json:"timestamp"`
	Message    string                  `json:"message"`
	Components map[string]HealthStatus `json:"components,omitempty"`
}
