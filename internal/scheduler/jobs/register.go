package jobs

import (
	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/internal/pipelineconfig"
	"github.com/donsko1/DNS-case/internal/scheduler"
	"github.com/donsko1/DNS-case/pkg/logger"
)

// Register adds the pipeline jobs in dependency order:
// data_processing (cron) >> assessment (chained)
func Register(s *scheduler.Scheduler, store contracts.Store, rules *pipelineconfig.Holder, log *logger.Logger) error {
	if err := s.AddJob(NewDataProcessingJob(store, rules, log)); err != nil {
		return err
	}
	return s.AddJob(NewAssessmentJob(store, rules, log))
}
