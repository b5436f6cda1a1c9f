// Package report writes the YAML summary of a finished run.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"surveyreview/internal/progress"
	"surveyreview/internal/sequencer"
)

// Report is the document written to disk.
type Report struct {
	RunID         string              `yaml:"run_id"`
	Outcome       string              `yaml:"outcome"`
	Error         string              `yaml:"error,omitempty"`
	Total         int                 `yaml:"total_iterations"`
	IterationsRun int                 `yaml:"iterations_run"`
	Succeeded     int                 `yaml:"succeeded"`
	Failed        int                 `yaml:"failed"`
	StartedAt     time.Time           `yaml:"started_at"`
	FinishedAt    time.Time           `yaml:"finished_at"`
	Elapsed       string              `yaml:"elapsed"`
	Failures      []Failure           `yaml:"failures,omitempty"`
	Log           []progress.LogEntry `yaml:"log,omitempty"`
}

// Failure is one failed iteration.
type Failure struct {
	Iteration int    `yaml:"iteration"`
	Step      string `yaml:"step,omitempty"`
	Message   string `yaml:"message"`
}

// New builds a Report from a run result, the error Run returned, and the
// journal's log entries.
func New(result sequencer.RunResult, runErr error, log []progress.LogEntry) Report {
	r := Report{
		RunID:         result.RunID,
		Outcome:       string(result.Outcome),
		Total:         result.Total,
		IterationsRun: result.IterationsRun,
		Succeeded:     result.Succeeded,
		Failed:        len(result.Failures),
		StartedAt:     result.StartedAt,
		FinishedAt:    result.FinishedAt,
		Elapsed:       result.Elapsed().Round(time.Millisecond).String(),
		Log:           log,
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	for _, f := range result.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		r.Failures = append(r.Failures, Failure{Iteration: f.Iteration, Step: f.Step, Message: msg})
	}
	return r
}

// Write marshals r to path, creating parent directories as needed.
func Write(path string, r Report) error {
	data, err := yaml.Marshal(&r)
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	// Write to temp, then rename
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write run report: %w", err)
	}

	return nil
}
