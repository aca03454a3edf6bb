package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is one row of the product dimension table
type Product struct {
	ID   string `json:"fk_product"`
	Name string `json:"product"`
	Type string `json:"type"`
}

// Sale is one row of the sales fact table
type Sale struct {
	ProductID string    `json:"fk_product"`
	Date      time.Time `json:"date"`
	Sold      int64     `json:"solds"`
	Defects   int64     `json:"defects_entry_period_sale"`
}

// AggregatedRecord is one output row of the aggregation stage (S1 → S2)
// ⭐ SSOT: S1 → S2 집계 결과 전달
type AggregatedRecord struct {
	ProductID      string          `json:"fk_product"`
	Sold           int64           `json:"solds"`
	Defects        int64           `json:"defects_entry_period_sale"`
	Name           *string         `json:"product"` // nil = 차원 테이블에 없음
	PercentDefects decimal.Decimal `json:"percent_defects"`
}

// ProductName returns the product name, or "" when the name is missing
func (r AggregatedRecord) ProductName() string {
	if r.Name == nil {
		return ""
	}
	return *r.Name
}

// Baseline holds per-product central tendency of defect percentage
type Baseline struct {
	Name   string          `json:"product"`
	Median decimal.Decimal `json:"median"`
	Mean   decimal.Decimal `json:"mean"`
	Mode   decimal.Decimal `json:"mode"`
	Count  int             `json:"count"`
}

// ResultRecord is one output row of the assessment stage
type ResultRecord struct {
	ProductID      string          `json:"fk_product"`
	PercentDefects decimal.Decimal `json:"percent_defects"`
	Grade          Grade           `json:"grade"`
}

// Grade is the final quality classification of a product
type Grade string

const (
	GradeInsufficientData Grade = "insufficient data"
	GradePoorQuality      Grade = "poor quality"
	GradeGoodQuality      Grade = "good quality"
)

// Grades lists every grade in reporting order
var Grades = []Grade{GradeInsufficientData, GradePoorQuality, GradeGoodQuality}

// IsValid reports whether g is one of the known grades
func (g Grade) IsValid() bool {
	switch g {
	case GradeInsufficientData, GradePoorQuality, GradeGoodQuality:
		return true
	default:
		return false
	}
}

// String returns the grade label
func (g Grade) String() string {
	return string(g)
}
