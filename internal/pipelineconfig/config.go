package pipelineconfig

import "time"

// Config는 품질 등급 파이프라인의 업무 규칙 전체
type Config struct {
	Aggregation Aggregation `yaml:"aggregation" json:"aggregation"`
	Assessment  Assessment  `yaml:"assessment" json:"assessment"`
	Tables      Tables      `yaml:"tables" json:"tables"`
	Schedule    Schedule    `yaml:"schedule" json:"schedule"`
}

// Aggregation S1: 집계 규칙
type Aggregation struct {
	TargetCategory string `yaml:"target_category" json:"target_category"`
	WindowYears    int    `yaml:"window_years" json:"window_years"`
}

// Assessment S2: 등급 규칙
type Assessment struct {
	// sold < MinSoldForGrade → insufficient data
	MinSoldForGrade int64 `yaml:"min_sold_for_grade" json:"min_sold_for_grade"`
	// sold > MinSoldForBaseline (and percent > 0) → baseline 계산 대상
	MinSoldForBaseline int64 `yaml:"min_sold_for_baseline" json:"min_sold_for_baseline"`
}

// Tables names the four datasets. For the csv backend these are file names
// under DATA_DIR, for postgres they are table names in the quality schema.
type Tables struct {
	Products   string `yaml:"products" json:"products"`
	Sales      string `yaml:"sales" json:"sales"`
	Aggregated string `yaml:"aggregated" json:"aggregated"`
	Results    string `yaml:"results" json:"results"`
}

// Schedule holds the trigger cadence and whole-stage retry policy
type Schedule struct {
	Cron       string `yaml:"cron" json:"cron"` // with seconds: "0 0 15 * * *"
	Retries    int    `yaml:"retries" json:"retries"`
	RetryDelay string `yaml:"retry_delay" json:"retry_delay"`
}

// RetryDelayDuration parses RetryDelay. Validate guarantees it parses.
func (s Schedule) RetryDelayDuration() time.Duration {
	d, err := time.ParseDuration(s.RetryDelay)
	if err != nil {
		return time.Minute
	}
	return d
}

// Default returns the rules the pipeline ships with
func Default() *Config {
	return &Config{
		Aggregation: Aggregation{
			TargetCategory: "Товар",
			WindowYears:    1,
		},
		Assessment: Assessment{
			MinSoldForGrade:    100,
			MinSoldForBaseline: 100,
		},
		Tables: Tables{
			Products:   "dim_product",
			Sales:      "sales",
			Aggregated: "df_with_percent",
			Results:    "result",
		},
		Schedule: Schedule{
			Cron:       "0 0 15 * * *",
			Retries:    1,
			RetryDelay: "1m",
		},
	}
}
