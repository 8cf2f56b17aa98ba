// Package driving provides interfaces for primary (inbound) adapters.
package driving

import "context"

// Stage names accepted by the pipeline runner.
const (
	StageDiscover  = "discover"
	StageParse     = "parse"
	StageEnrich    = "enrich"
	StageVectorize = "vectorize"
	StageIngest    = "ingest"
)

// AllStages lists every stage in execution order.
var AllStages = []string{StageDiscover, StageParse, StageEnrich, StageVectorize, StageIngest}

// StageStatus summarises one stage's run.
type StageStatus struct {
	Stage     string
	Processed int
	Skipped   int
	Failed    int
}

// PipelineRunner executes a requested subset of stages sequentially.
type PipelineRunner interface {
	// Run executes the named stages in pipeline order and returns their
	// statuses. A configuration error aborts before the failing stage
	// starts; per-record failures never do.
	Run(ctx context.Context, stages []string) ([]StageStatus, error)
}
