package jobs

import (
	"context"
	"fmt"

	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/internal/observability"
	"github.com/donsko1/DNS-case/internal/pipelineconfig"
	"github.com/donsko1/DNS-case/internal/s1_aggregation"
	"github.com/donsko1/DNS-case/internal/scheduler"
	"github.com/donsko1/DNS-case/pkg/logger"
)

// DataProcessingJob builds the aggregated table from the source tables
// ⭐ SSOT: data_processing 스케줄은 이 Job에서만
type DataProcessingJob struct {
	aggregator *s1_aggregation.Aggregator
	rules      *pipelineconfig.Holder
	logger     *logger.Logger
}

// NewDataProcessingJob creates a new data processing job
func NewDataProcessingJob(store contracts.Store, rules *pipelineconfig.Holder, log *logger.Logger) *DataProcessingJob {
	return &DataProcessingJob{
		aggregator: s1_aggregation.NewAggregator(store, store, log),
		rules:      rules,
		logger:     log,
	}
}

// Name returns the job name
func (j *DataProcessingJob) Name() string {
	return contracts.StageAggregation.String()
}

// Schedule returns the cron schedule from the pipeline config (15:00 daily by default)
func (j *DataProcessingJob) Schedule() string {
	return j.rules.Current().Schedule.Cron
}

// Run executes S1 with the rules current at start
func (j *DataProcessingJob) Run(ctx context.Context) error {
	cfg := j.rules.Current()
	hash, err := pipelineconfig.Hash(cfg)
	if err != nil {
		return fmt.Errorf("hash config: %w", err)
	}

	log := j.logger.WithRun(scheduler.RunIDFromContext(ctx), j.Name()).WithField("config_hash", hash)
	log.Info("Starting aggregation")

	result, err := j.aggregator.Run(ctx, s1_aggregation.Config{
		TargetCategory: cfg.Aggregation.TargetCategory,
		WindowYears:    cfg.Aggregation.WindowYears,
	})
	if err != nil {
		return err
	}
	observability.RecordRows(cfg.Tables.Aggregated, result.OutputCount)

	log.WithCounts(result.InputCount, result.OutputCount).Info("Aggregation completed")
	return nil
}
