package pipelineconfig

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donsko1/DNS-case/pkg/logger"
)

func TestLoad_ShippedConfig(t *testing.T) {
	path := "../../config/pipeline.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Товар", cfg.Aggregation.TargetCategory)
	assert.Equal(t, 1, cfg.Aggregation.WindowYears)
	assert.Equal(t, int64(100), cfg.Assessment.MinSoldForGrade)
	assert.Equal(t, "df_with_percent", cfg.Tables.Aggregated)
	assert.Equal(t, time.Minute, cfg.Schedule.RetryDelayDuration())

	// 기본값과 동일해야 함
	want, _ := Hash(Default())
	got, _ := Hash(cfg)
	assert.Equal(t, want, got)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
aggregation:
  target_category: Item
assessment:
  min_sold_for_grade: 50
`))
	require.NoError(t, err)

	assert.Equal(t, "Item", cfg.Aggregation.TargetCategory)
	assert.Equal(t, int64(50), cfg.Assessment.MinSoldForGrade)
	// untouched sections keep defaults
	assert.Equal(t, int64(100), cfg.Assessment.MinSoldForBaseline)
	assert.Equal(t, "0 0 15 * * *", cfg.Schedule.Cron)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte(`
aggregation:
  target_categroy: Item
`))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"default is valid", func(*Config) {}, ""},
		{"empty category", func(c *Config) { c.Aggregation.TargetCategory = "  " }, "aggregation.target_category"},
		{"zero window", func(c *Config) { c.Aggregation.WindowYears = 0 }, "aggregation.window_years"},
		{"negative grade threshold", func(c *Config) { c.Assessment.MinSoldForGrade = -1 }, "assessment.min_sold_for_grade"},
		{"negative baseline threshold", func(c *Config) { c.Assessment.MinSoldForBaseline = -5 }, "assessment.min_sold_for_baseline"},
		{"missing table", func(c *Config) { c.Tables.Sales = "" }, "tables.sales"},
		{"table with extension", func(c *Config) { c.Tables.Results = "result.csv" }, "tables.results"},
		{"duplicate table", func(c *Config) { c.Tables.Results = "df_with_percent" }, "tables.results"},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every day" }, "schedule.cron"},
		{"five field cron", func(c *Config) { c.Schedule.Cron = "00 15 * * *" }, "schedule.cron"},
		{"negative retries", func(c *Config) { c.Schedule.Retries = -1 }, "schedule.retries"},
		{"bad retry delay", func(c *Config) { c.Schedule.RetryDelay = "soon" }, "schedule.retry_delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var verr ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestHash_Deterministic(t *testing.T) {
	h1, err := Hash(Default())
	require.NoError(t, err)
	h2, _ := Hash(Default())
	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)

	changed := Default()
	changed.Aggregation.TargetCategory = "Услуга"
	h3, _ := Hash(changed)
	assert.NotEqual(t, h1, h3)
}

func TestHolder(t *testing.T) {
	h := NewHolder(Default())
	assert.Equal(t, "Товар", h.Current().Aggregation.TargetCategory)

	next := Default()
	next.Aggregation.TargetCategory = "Item"
	h.Replace(next)
	assert.Equal(t, "Item", h.Current().Aggregation.TargetCategory)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aggregation:\n  target_category: A\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, logger.NewWithWriter(io.Discard, "error"), func(cfg *Config) {
			select {
			case changes <- cfg:
			default:
			}
		}, nil)
	}()

	// invalid content must not be delivered
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("aggregation:\n  window_years: 0\n"), 0o644)
		_ = os.WriteFile(path, []byte("aggregation:\n  target_category: B\n"), 0o644)
		select {
		case cfg := <-changes:
			return cfg.Aggregation.TargetCategory == "B"
		default:
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
