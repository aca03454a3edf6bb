package commands

import (
	"context"
	"fmt"

	"github.com/donsko1/DNS-case/internal/api"
	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/internal/jobstatus"
	"github.com/donsko1/DNS-case/internal/observability"
	"github.com/donsko1/DNS-case/internal/pipelineconfig"
	"github.com/donsko1/DNS-case/internal/scheduler"
	"github.com/donsko1/DNS-case/internal/scheduler/jobs"
	"github.com/donsko1/DNS-case/internal/storage"
	"github.com/donsko1/DNS-case/pkg/config"
	"github.com/donsko1/DNS-case/pkg/logger"
	"github.com/donsko1/DNS-case/pkg/redis"
)

// app bundles the dependencies every command builds the same way
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	rulesPath string
	rules     *pipelineconfig.Holder
	store     contracts.Store
	redis     *redis.Client
	status    *jobstatus.Store
	sched     *scheduler.Scheduler
}

// newApp loads config, logger, rules, storage, Redis and the scheduler with
// the pipeline jobs registered
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load pipeline rules
	a := &app{cfg: cfg, log: log, rulesPath: cfg.PipelineConfig}
	if pipelineConfigPath != "" {
		a.rulesPath = pipelineConfigPath
	}
	rules := pipelineconfig.Default()
	if a.rulesPath != "" {
		if rules, err = pipelineconfig.Load(a.rulesPath); err != nil {
			return nil, fmt.Errorf("load pipeline config %s: %w", a.rulesPath, err)
		}
	}
	a.rules = pipelineconfig.NewHolder(rules)

	hash, err := pipelineconfig.Hash(rules)
	if err != nil {
		return nil, fmt.Errorf("hash pipeline config: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"path":        a.rulesPath,
		"config_hash": hash,
		"category":    rules.Aggregation.TargetCategory,
	}).Info("Pipeline config loaded")

	// 4. Open storage
	if a.store, err = storage.Open(ctx, cfg, rules, log); err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	// 5. Connect to Redis (optional completion signals)
	if a.redis, err = redis.New(ctx, cfg); err != nil {
		a.close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.status = jobstatus.New(a.redis)

	// 6. Create scheduler and register jobs
	opts := []scheduler.Option{
		scheduler.WithRetries(rules.Schedule.Retries, rules.Schedule.RetryDelayDuration()),
		scheduler.WithObserver(observability.JobObserver{}),
	}
	if a.redis.Enabled() {
		opts = append(opts, scheduler.WithRecorder(a.status))
	}
	a.sched = scheduler.New(log, opts...)
	if err := jobs.Register(a.sched, a.store, a.rules, log); err != nil {
		a.close()
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	return a, nil
}

// applyRules makes a reloaded config effective: jobs read it on their next
// run, the scheduler takes the new cron expression and retry policy
func (a *app) applyRules(cfg *pipelineconfig.Config) {
	if cfg.Tables != a.rules.Current().Tables {
		a.log.Warn("Table names changed in pipeline config, restart to apply them")
	}
	a.rules.Replace(cfg)
	a.sched.SetRetries(cfg.Schedule.Retries, cfg.Schedule.RetryDelayDuration())
	for _, root := range a.sched.Roots() {
		if err := a.sched.Reschedule(root, cfg.Schedule.Cron); err != nil {
			a.log.WithError(err).WithField("job", root).Error("Failed to apply new schedule")
		}
	}
}

// healthCheck pings the database when the backend has one. CSV has nothing to ping.
func (a *app) healthCheck() api.HealthCheck {
	pinger, ok := a.store.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return pinger.Ping
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
