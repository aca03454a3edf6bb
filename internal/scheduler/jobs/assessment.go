package jobs

import (
	"context"
	"fmt"

	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/internal/observability"
	"github.com/donsko1/DNS-case/internal/pipelineconfig"
	"github.com/donsko1/DNS-case/internal/s2_assessment"
	"github.com/donsko1/DNS-case/internal/scheduler"
	"github.com/donsko1/DNS-case/pkg/logger"
)

// AssessmentJob grades the aggregated table. It runs after data_processing succeeds.
type AssessmentJob struct {
	assessor *s2_assessment.Assessor
	rules    *pipelineconfig.Holder
	logger   *logger.Logger
}

// NewAssessmentJob creates a new assessment job
func NewAssessmentJob(store contracts.Store, rules *pipelineconfig.Holder, log *logger.Logger) *AssessmentJob {
	return &AssessmentJob{
		assessor: s2_assessment.NewAssessor(store, store, log),
		rules:    rules,
		logger:   log,
	}
}

// Name returns the job name
func (j *AssessmentJob) Name() string {
	return contracts.StageAssessment.String()
}

// Schedule is empty: the job is chained, not on cron
func (j *AssessmentJob) Schedule() string {
	return ""
}

// DependsOn returns the upstream stage
func (j *AssessmentJob) DependsOn() []string {
	upstream := contracts.StageAssessment.Upstream()
	names := make([]string, len(upstream))
	for i, stage := range upstream {
		names[i] = stage.String()
	}
	return names
}

// Run executes S2 with the rules current at start
func (j *AssessmentJob) Run(ctx context.Context) error {
	cfg := j.rules.Current()
	hash, err := pipelineconfig.Hash(cfg)
	if err != nil {
		return fmt.Errorf("hash config: %w", err)
	}

	log := j.logger.WithRun(scheduler.RunIDFromContext(ctx), j.Name()).WithField("config_hash", hash)
	log.Info("Starting assessment")

	result, assessment, err := j.assessor.Run(ctx, RulesFrom(cfg))
	if err != nil {
		return err
	}
	observability.RecordRows(cfg.Tables.Results, result.OutputCount)
	observability.RecordGrades(assessment.Counts)

	log.WithCounts(result.InputCount, result.OutputCount).
		WithField("baselines", len(assessment.Baselines)).
		Info("Assessment completed")
	return nil
}

// RulesFrom maps the pipeline config onto S2 grading rules
func RulesFrom(cfg *pipelineconfig.Config) s2_assessment.Rules {
	return s2_assessment.Rules{
		MinSoldForGrade:    cfg.Assessment.MinSoldForGrade,
		MinSoldForBaseline: cfg.Assessment.MinSoldForBaseline,
	}
}
