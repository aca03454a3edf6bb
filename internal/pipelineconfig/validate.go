package pipelineconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// cronParser matches the scheduler's cron.WithSeconds() parser
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Aggregation ===
	if strings.TrimSpace(cfg.Aggregation.TargetCategory) == "" {
		return ValidationError{"aggregation.target_category", "required"}
	}
	if cfg.Aggregation.WindowYears < 1 {
		return ValidationError{"aggregation.window_years", "must be >= 1"}
	}

	// === Assessment ===
	if cfg.Assessment.MinSoldForGrade < 0 {
		return ValidationError{"assessment.min_sold_for_grade", "must be >= 0"}
	}
	if cfg.Assessment.MinSoldForBaseline < 0 {
		return ValidationError{"assessment.min_sold_for_baseline", "must be >= 0"}
	}

	// === Tables ===
	tables := map[string]string{
		"tables.products":   cfg.Tables.Products,
		"tables.sales":      cfg.Tables.Sales,
		"tables.aggregated": cfg.Tables.Aggregated,
		"tables.results":    cfg.Tables.Results,
	}
	seen := make(map[string]string, len(tables))
	for _, field := range []string{"tables.products", "tables.sales", "tables.aggregated", "tables.results"} {
		name := tables[field]
		if name == "" {
			return ValidationError{field, "required"}
		}
		if strings.ContainsAny(name, `/\.`) {
			return ValidationError{field, "must be a bare name without path or extension"}
		}
		if other, dup := seen[name]; dup {
			return ValidationError{field, fmt.Sprintf("duplicates %s", other)}
		}
		seen[name] = field
	}

	// === Schedule ===
	if _, err := cronParser.Parse(cfg.Schedule.Cron); err != nil {
		return ValidationError{"schedule.cron", err.Error()}
	}
	if cfg.Schedule.Retries < 0 {
		return ValidationError{"schedule.retries", "must be >= 0"}
	}
	d, err := time.ParseDuration(cfg.Schedule.RetryDelay)
	if err != nil {
		return ValidationError{"schedule.retry_delay", err.Error()}
	}
	if d < 0 {
		return ValidationError{"schedule.retry_delay", "must be >= 0"}
	}

	return nil
}
