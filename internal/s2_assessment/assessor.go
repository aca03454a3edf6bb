package s2_assessment

import (
	"context"
	"fmt"
	"sort"

	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/pkg/logger"
)

// Rules holds grading thresholds
type Rules struct {
	MinSoldForGrade    int64 `yaml:"min_sold_for_grade"`    // sold < 이 값 → insufficient data
	MinSoldForBaseline int64 `yaml:"min_sold_for_baseline"` // sold > 이 값 → baseline 대상
}

// DefaultRules returns the thresholds the grading rule was defined with
func DefaultRules() Rules {
	return Rules{MinSoldForGrade: 100, MinSoldForBaseline: 100}
}

// Assessment is the S2 output with the baselines it was graded against
type Assessment struct {
	Results    []contracts.ResultRecord
	Baselines  map[string]contracts.Baseline
	Counts     map[contracts.Grade]int
	Qualifying int
}

// BaselineList returns the baselines ordered by product name
func (a *Assessment) BaselineList() []contracts.Baseline {
	list := make([]contracts.Baseline, 0, len(a.Baselines))
	for _, b := range a.Baselines {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Grade classifies one aggregated row against its product's baseline.
//
// Order matters: low volume wins over everything, and only the mean is
// compared. A nil baseline (product never qualified) grades as good quality.
func Grade(row contracts.AggregatedRecord, baseline *contracts.Baseline, rules Rules) contracts.Grade {
	if row.Sold < rules.MinSoldForGrade {
		return contracts.GradeInsufficientData
	}
	if baseline != nil && row.PercentDefects.GreaterThan(baseline.Mean) {
		return contracts.GradePoorQuality
	}
	return contracts.GradeGoodQuality
}

// Assess is the pure S2 computation: baselines from the qualifying subset,
// then a grade for every row of the full aggregated set, in input order
func Assess(rows []contracts.AggregatedRecord, rules Rules) *Assessment {
	a := &Assessment{
		Results:   make([]contracts.ResultRecord, 0, len(rows)),
		Baselines: ComputeBaselines(rows, rules.MinSoldForBaseline),
		Counts:    make(map[contracts.Grade]int, len(contracts.Grades)),
	}

	for _, row := range rows {
		if Qualifies(row, rules.MinSoldForBaseline) {
			a.Qualifying++
		}

		var baseline *contracts.Baseline
		if name := row.ProductName(); name != "" {
			if b, ok := a.Baselines[name]; ok {
				baseline = &b
			}
		}

		grade := Grade(row, baseline, rules)
		a.Counts[grade]++
		a.Results = append(a.Results, contracts.ResultRecord{
			ProductID:      row.ProductID,
			PercentDefects: row.PercentDefects,
			Grade:          grade,
		})
	}

	return a
}

// Assessor runs the assessment stage
type Assessor struct {
	source contracts.AggregatedStore
	sink   contracts.ResultStore
	logger *logger.Logger
}

// NewAssessor creates a new Assessor
func NewAssessor(source contracts.AggregatedStore, sink contracts.ResultStore, log *logger.Logger) *Assessor {
	return &Assessor{
		source: source,
		sink:   sink,
		logger: log,
	}
}

// Run reads the persisted S1 output, grades it and replaces the result table
// ⭐ SSOT: S2 등급 산정
func (s *Assessor) Run(ctx context.Context, rules Rules) (*contracts.StageResult, *Assessment, error) {
	rows, err := s.source.LoadAggregated(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load aggregated: %w", err)
	}

	assessment := Assess(rows, rules)

	if err := s.sink.SaveResults(ctx, assessment.Results); err != nil {
		return nil, nil, fmt.Errorf("save results: %w", err)
	}

	if len(assessment.Baselines) == 0 && len(rows) > 0 {
		s.logger.Warn("No product qualified for a baseline, every graded row falls back to good quality")
	}

	result := &contracts.StageResult{
		Stage:       contracts.StageAssessment,
		InputCount:  len(rows),
		OutputCount: len(assessment.Results),
		Metadata: map[string]string{
			"qualifying": fmt.Sprint(assessment.Qualifying),
			"baselines":  fmt.Sprint(len(assessment.Baselines)),
		},
	}
	for grade, n := range assessment.Counts {
		result.Metadata[string(grade)] = fmt.Sprint(n)
	}

	s.logger.WithFields(map[string]interface{}{
		"rows":              len(rows),
		"qualifying":        assessment.Qualifying,
		"baselines":         len(assessment.Baselines),
		"insufficient_data": assessment.Counts[contracts.GradeInsufficientData],
		"poor_quality":      assessment.Counts[contracts.GradePoorQuality],
		"good_quality":      assessment.Counts[contracts.GradeGoodQuality],
	}).Info("Assessment persisted")

	return result, assessment, nil
}
