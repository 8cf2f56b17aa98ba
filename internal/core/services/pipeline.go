package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driving"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driving.PipelineRunner = (*Pipeline)(nil)

// StageRunner is one executable pipeline stage.
type StageRunner interface {
	// Stage returns the stage's canonical name.
	Stage() string

	// Run executes the stage. The returned error is a configuration or
	// infrastructure failure and aborts the pipeline; per-record
	// failures are reported in the status instead.
	Run(ctx context.Context) (driving.StageStatus, error)
}

// Pipeline sequences stage runners in canonical order.
type Pipeline struct {
	runners map[string]StageRunner
}

// NewPipeline creates a pipeline over the given runners. Callers register
// only the stages they intend to run; requesting an unregistered stage is
// an error at Run time.
func NewPipeline(runners ...StageRunner) *Pipeline {
	m := make(map[string]StageRunner, len(runners))
	for _, r := range runners {
		m[r.Stage()] = r
	}
	return &Pipeline{runners: m}
}

// Run executes the named stages in pipeline order, regardless of the order
// they were requested in. It stops at the first stage-level error and
// returns the statuses of the stages that completed.
func (p *Pipeline) Run(ctx context.Context, stages []string) ([]driving.StageStatus, error) {
	if len(stages) == 0 {
		stages = driving.AllStages
	}

	requested := make(map[string]bool, len(stages))
	for _, name := range stages {
		if !validStage(name) {
			return nil, fmt.Errorf("%w: unknown stage %q", domain.ErrInvalidInput, name)
		}
		requested[name] = true
	}

	runID := uuid.NewString()
	logger.Info("Pipeline run %s: stages %v", runID, stages)
	start := time.Now()

	var statuses []driving.StageStatus
	for _, name := range driving.AllStages {
		if !requested[name] {
			continue
		}

		runner, ok := p.runners[name]
		if !ok {
			return statuses, fmt.Errorf("%w: stage %q not configured", domain.ErrInvalidInput, name)
		}

		logger.Info("Stage %s starting", name)
		status, err := runner.Run(ctx)
		statuses = append(statuses, status)
		if err != nil {
			return statuses, fmt.Errorf("stage %s: %w", name, err)
		}
	}

	logger.Info("Pipeline run %s finished in %s", runID, time.Since(start).Round(time.Millisecond))
	return statuses, nil
}

func validStage(name string) bool {
	for _, s := range driving.AllStages {
		if s == name {
			return true
		}
	}
	return false
}
