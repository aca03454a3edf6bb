package contracts

// Pipeline Stage 정의 (SSOT)
// 로그, 메트릭, 스케줄러 Job 이름은 모두 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   S1 (data_processing) → S2 (assessment)
//   sales + dim_product  →  df_with_percent  →  result

// Stage represents a pipeline stage
type Stage string

const (
	// StageAggregation S1: 판매/불량 집계
	// 책임: 12개월 윈도우, 상품별 합계, 카테고리 필터, 불량률 계산
	// 위치: internal/s1_aggregation/
	StageAggregation Stage = "data_processing"

	// StageAssessment S2: 품질 등급 산정
	// 책임: 상품별 기준값(median/mean/mode), 등급 부여
	// 위치: internal/s2_assessment/
	StageAssessment Stage = "assessment"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S1", "S2")
func (s Stage) ShortName() string {
	switch s {
	case StageAggregation:
		return "S1"
	case StageAssessment:
		return "S2"
	default:
		return "UNKNOWN"
	}
}

// Upstream returns the stages that must succeed before s may run
func (s Stage) Upstream() []Stage {
	switch s {
	case StageAssessment:
		return []Stage{StageAggregation}
	default:
		return nil
	}
}

// AllStages returns all pipeline stages in execution order
func AllStages() []Stage {
	return []Stage{
		StageAggregation,
		StageAssessment,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// StageResult summarizes one stage execution
type StageResult struct {
	Stage       Stage             `json:"stage"`
	InputCount  int               `json:"input_count"`
	OutputCount int               `json:"output_count"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
