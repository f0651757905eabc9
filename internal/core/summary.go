package core

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sliink/mensura/internal/model"
)

// Summary is the report of a finished run
type Summary struct {
	RunID    string                `json:"run_id"`
	Status   model.ComponentStatus `json:"status"`
	Policy   FailurePolicy         `json:"policy"`
	Plugins  []model.PluginStat    `json:"plugins"`
	Workers  []WorkerStat          `json:"workers"`
	Datasets []model.DatasetResult `json:"datasets"`
	Total    int                   `json:"total"`
	Done     int                   `json:"done"`
	Failed   int                   `json:"failed"`
	Skipped  int                   `json:"skipped"`
	Events   int64                 `json:"events"`
	Duration time.Duration         `json:"duration"`
}

// Summary collects counters and dataset results of the last run.
// Counters are only final once Process has returned.
func (m *RunManager) Summary() Summary {
	s := Summary{
		RunID:    m.runID,
		Status:   m.GetStatus(),
		Policy:   m.policy,
		Plugins:  m.Stats(),
		Workers:  m.WorkerStats(),
		Datasets: m.Results(),
		Total:    len(m.datasets),
	}

	for _, result := range s.Datasets {
		s.Events += result.Events
		switch result.Status {
		case model.DatasetDone:
			s.Done++
		case model.DatasetFailed:
			s.Failed++
		case model.DatasetSkipped:
			s.Skipped++
		}
	}

	m.mutex.RLock()
	if !m.startedAt.IsZero() {
		end := m.finishedAt
		if end.IsZero() {
			end = time.Now()
		}
		s.Duration = end.Sub(m.startedAt)
	}
	m.mutex.RUnlock()

	return s
}

// PrintSummary writes a human-readable report of the last run
func (m *RunManager) PrintSummary(w io.Writer) error {
	s := m.Summary()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Run %s (%s, policy %s)\n", s.RunID, s.Status, s.Policy)
	fmt.Fprintf(tw, "Datasets: %d total, %d done, %d failed, %d skipped; %d events in %s\n\n",
		s.Total, s.Done, s.Failed, s.Skipped, s.Events, s.Duration.Round(time.Millisecond))

	fmt.Fprintln(tw, "PLUGIN\tVISITED\tPASSED\tEFFICIENCY")
	for _, stat := range s.Plugins {
		efficiency := "-"
		if stat.Visited > 0 {
			efficiency = fmt.Sprintf("%.2f%%", 100*float64(stat.Passed)/float64(stat.Visited))
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", stat.Plugin, stat.Visited, stat.Passed, efficiency)
	}

	if len(s.Workers) > 0 {
		fmt.Fprintln(tw, "\nWORKER\tDATASETS\tFAILED\tEVENTS")
		for _, stat := range s.Workers {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", stat.Worker, stat.Datasets, stat.Failed, stat.Events)
		}
	}

	var failed []model.DatasetResult
	for _, result := range s.Datasets {
		if result.Status == model.DatasetFailed {
			failed = append(failed, result)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintln(tw, "\nFAILED DATASET\tFILE\tERROR")
		for _, result := range failed {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", result.DatasetID, result.File, result.Error)
		}
	}

	return tw.Flush()
}
