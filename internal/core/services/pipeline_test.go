package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driving"
)

// mockStage implements StageRunner, recording runs in a shared log.
type mockStage struct {
	name string
	err  error
	log  *[]string
}

func (m *mockStage) Stage() string { return m.name }

func (m *mockStage) Run(_ context.Context) (driving.StageStatus, error) {
	*m.log = append(*m.log, m.name)
	return driving.StageStatus{Stage: m.name, Processed: 1}, m.err
}

func TestPipeline_RunsRequestedStagesInCanonicalOrder(t *testing.T) {
	var log []string
	p := NewPipeline(
		&mockStage{name: driving.StageParse, log: &log},
		&mockStage{name: driving.StageDiscover, log: &log},
		&mockStage{name: driving.StageEnrich, log: &log},
	)

	// Requested out of order; executed in pipeline order.
	statuses, err := p.Run(context.Background(), []string{driving.StageEnrich, driving.StageDiscover, driving.StageParse})
	require.NoError(t, err)

	assert.Equal(t, []string{driving.StageDiscover, driving.StageParse, driving.StageEnrich}, log)
	require.Len(t, statuses, 3)
	assert.Equal(t, driving.StageDiscover, statuses[0].Stage)
}

func TestPipeline_UnknownStageRejected(t *testing.T) {
	p := NewPipeline()
	_, err := p.Run(context.Background(), []string{"transmogrify"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPipeline_UnconfiguredStageRejected(t *testing.T) {
	var log []string
	p := NewPipeline(&mockStage{name: driving.StageDiscover, log: &log})

	_, err := p.Run(context.Background(), []string{driving.StageIngest})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPipeline_StopsAtFirstStageError(t *testing.T) {
	var log []string
	p := NewPipeline(
		&mockStage{name: driving.StageDiscover, log: &log},
		&mockStage{name: driving.StageParse, log: &log, err: errors.New("index unreadable")},
		&mockStage{name: driving.StageEnrich, log: &log},
	)

	statuses, err := p.Run(context.Background(), []string{driving.StageDiscover, driving.StageParse, driving.StageEnrich})
	require.Error(t, err)

	assert.Equal(t, []string{driving.StageDiscover, driving.StageParse}, log)
	// The failed stage's status is still reported.
	assert.Len(t, statuses, 2)
}

func TestPipeline_EmptyRequestRunsEverythingConfigured(t *testing.T) {
	var log []string
	runners := make([]StageRunner, 0, len(driving.AllStages))
	for _, name := range driving.AllStages {
		runners = append(runners, &mockStage{name: name, log: &log})
	}
	p := NewPipeline(runners...)

	statuses, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, driving.AllStages, log)
	assert.Len(t, statuses, len(driving.AllStages))
}
