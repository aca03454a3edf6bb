package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/donsko1/DNS-case/internal/api"
	"github.com/donsko1/DNS-case/internal/observability"
	"github.com/donsko1/DNS-case/internal/pipelineconfig"
	"github.com/donsko1/DNS-case/internal/scheduler"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작 (매일 15:00 data_processing >> assessment)
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행
  status  - 작업 실행 상태 조회

Example:
  go run ./cmd/quality scheduler start
  go run ./cmd/quality scheduler list
  go run ./cmd/quality scheduler run assessment`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 파이프라인 작업을 스케줄합니다.

등록되는 작업:
- data_processing: schedule.cron (기본 매일 15:00)
- assessment: data_processing 성공 직후 실행

pipeline config 파일이 바뀌면 다시 읽어 다음 실행부터 적용합니다.
METRICS_ENABLED=true 이면 METRICS_PORT 에서 /metrics 를 제공합니다.

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Long: `작업 하나를 즉시 실행합니다 (--chain 이면 후속 작업까지).

assessment 는 data_processing 의 마지막 실행이 실패로 기록되어 있으면 거부됩니다.`,
		Args: cobra.ExactArgs(1),
		RunE: runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		RunE:  showStatus,
	}

	runWithChain bool
	statusLimit  int
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)

	schedulerRunCmd.Flags().BoolVar(&runWithChain, "chain", false, "run dependent jobs after success")
	schedulerStatusCmd.Flags().IntVar(&statusLimit, "limit", 5, "recorded completions to show per job (Redis)")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	// Hot reload of the business rules
	if a.rulesPath != "" {
		go func() {
			err := pipelineconfig.Watch(ctx, a.rulesPath, a.log, func(cfg *pipelineconfig.Config) {
				a.applyRules(cfg)
				observability.RecordConfigReload(true)
			}, func(error) {
				observability.RecordConfigReload(false)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.WithError(err).Error("Pipeline config watcher stopped")
			}
		}()
	}

	// Metrics endpoint
	var metricsServer *api.Server
	if a.cfg.MetricsEnabled {
		metricsServer = api.New("metrics", a.cfg.MetricsPort, api.NewMetricsRouter(a.healthCheck()), 15*time.Second, a.log)
		go func() {
			if err := metricsServer.Start(); err != nil {
				a.log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	a.sched.Start()

	PrintHeader("Quality Pipeline Scheduler")
	for _, jobName := range a.sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	for _, root := range a.sched.Roots() {
		if next, ok := a.sched.NextRun(root); ok {
			PrintKeyValue("Next run", next.Format("2006-01-02 15:04:05"), 10)
		}
	}
	PrintSuccess("Scheduler started, press Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	a.sched.Stop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			a.log.WithError(err).Warn("Metrics server shutdown failed")
		}
	}
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	stats := a.sched.GetJobStats()
	widths := []int{16, 16, 16}
	PrintTableHeader([]string{"JOB", "SCHEDULE", "DEPENDS ON"}, widths)
	for _, name := range a.sched.GetAllJobs() {
		s := stats[name]
		schedule, deps := s.Schedule, "-"
		if schedule == "" {
			schedule = "(chained)"
		}
		if len(s.DependsOn) > 0 {
			deps = fmt.Sprint(s.DependsOn)
		}
		PrintTableRow([]string{name, schedule, deps}, widths)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	fmt.Printf("Running job: %s\n\n", jobName)

	if runWithChain {
		results, err := a.sched.RunChain(ctx, jobName)
		PrintJobResults(results)
		return err
	}

	result, err := a.sched.RunJob(ctx, jobName)
	if result.JobName != "" {
		PrintJobResults([]scheduler.JobResult{result})
	}
	return err
}

func showStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	if !a.redis.Enabled() {
		PrintWarning("Redis is disabled: run history is kept per process only (REDIS_ENABLED=true to share it)")
	}

	for _, name := range a.sched.GetAllJobs() {
		fmt.Printf("📊 %s\n", name)

		last, err := a.status.LastCompletion(ctx, name)
		if err != nil {
			return err
		}
		if last == nil {
			fmt.Println("   no recorded run")
			fmt.Println()
			continue
		}
		PrintKeyValue("Last run", last.RunID, 10)
		PrintKeyValue("Status", last.Status, 10)
		PrintKeyValue("Finished", formatTime(&last.FinishedAt), 10)
		if last.Error != "" {
			PrintKeyValue("Error", last.Error, 10)
		}

		history, err := a.status.History(ctx, name, statusLimit)
		if err != nil {
			return err
		}
		failures := 0
		for _, c := range history {
			if !c.Succeeded() {
				failures++
			}
		}
		PrintKeyValue("Recent", fmt.Sprintf("%d runs, %d failed", len(history), failures), 10)
		fmt.Println()
	}

	return nil
}
