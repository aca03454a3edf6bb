package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// runCmd runs the whole pipeline once
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "파이프라인 1회 실행",
	Long: `data_processing >> assessment 체인을 즉시 한 번 실행합니다.

data_processing 이 실패하면 assessment 는 실행되지 않습니다.
실패한 작업은 pipeline config 의 retries/retry_delay 에 따라 재시도됩니다.

Example:
  go run ./cmd/quality run
  go run ./cmd/quality run --data-dir ./data`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	PrintHeader("Quality Pipeline Run")
	PrintKeyValue("Storage", a.cfg.StorageBackend, 10)
	PrintKeyValue("Category", a.rules.Current().Aggregation.TargetCategory, 10)
	PrintKeyValue("Started", time.Now().Format("2006-01-02 15:04:05"), 10)
	PrintSeparator()

	for _, root := range a.sched.Roots() {
		results, err := a.sched.RunChain(ctx, root)
		PrintJobResults(results)
		if err != nil {
			return fmt.Errorf("pipeline failed: %w", err)
		}
	}

	fmt.Println()
	PrintSuccess("Pipeline completed")
	return nil
}
