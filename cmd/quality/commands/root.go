package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	pipelineConfigPath string
	dataDir            string
	verbose            bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quality",
	Short: "상품 품질 등급 파이프라인",
	Long: `Product Quality Grading Pipeline CLI

판매/불량 데이터로 상품별 불량률을 집계하고 품질 등급을 부여합니다.
2단계 파이프라인: data_processing (S1) >> assessment (S2)

Usage:
  go run ./cmd/quality [command]

Examples:
  go run ./cmd/quality run
  go run ./cmd/quality scheduler start
  go run ./cmd/quality api
  go run ./cmd/quality data-check`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&pipelineConfigPath, "pipeline-config", "", "pipeline rules YAML (default: $PIPELINE_CONFIG or built-in rules)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "CSV data directory (default: $DATA_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs)")
}
