package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/donsko1/DNS-case/internal/api"
	"github.com/donsko1/DNS-case/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- 집계/등급 결과 조회 엔드포인트 제공
- 파이프라인 수동 실행 트리거 제공 (TRIGGER_RATE_LIMIT 간격 제한)

Endpoints:
  GET  /health                          - Health check
  GET  /metrics                         - Prometheus metrics
  GET  /api/quality/results[?grade=]    - 등급 결과
  GET  /api/quality/results/{productID} - 상품 하나의 등급
  GET  /api/quality/aggregated          - 집계 결과 (df_with_percent)
  GET  /api/quality/summary             - 등급 분포와 상품별 기준값
  GET  /api/pipeline/jobs               - 작업 통계
  POST /api/pipeline/run                - 파이프라인 1회 실행

Example:
  go run ./cmd/quality api
  go run ./cmd/quality api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: $PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Quality Pipeline API Server ===")

	a, err := newApp(context.Background())
	if err != nil {
		return fmt.Errorf("init api: %w", err)
	}
	defer a.close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	a.log.WithFields(map[string]interface{}{
		"port":    a.cfg.Port,
		"env":     a.cfg.Env,
		"storage": a.cfg.StorageBackend,
	}).Info("Initializing API server")

	router := api.NewRouter(
		handlers.NewQualityHandler(a.store, a.rules, a.log),
		handlers.NewPipelineHandler(a.sched, a.log),
		api.NewTriggerLimiter(a.cfg.TriggerRateLimit),
		a.healthCheck(),
		a.log,
	)

	// POST /api/pipeline/run answers after the chain finishes
	server := api.New("api", a.cfg.Port, router, 10*time.Minute, a.log)

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	a.log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /metrics")
	fmt.Println("  GET  /api/quality/results")
	fmt.Println("  GET  /api/quality/results/{productID}")
	fmt.Println("  GET  /api/quality/aggregated")
	fmt.Println("  GET  /api/quality/summary")
	fmt.Println("  GET  /api/pipeline/jobs")
	fmt.Println("  POST /api/pipeline/run")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
