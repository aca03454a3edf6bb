package contracts

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestGrade_IsValid(t *testing.T) {
	tests := []struct {
		grade Grade
		want  bool
	}{
		{GradeInsufficientData, true},
		{GradePoorQuality, true},
		{GradeGoodQuality, true},
		{Grade("excellent"), false},
		{Grade(""), false},
		{Grade("Good Quality"), false},
	}

	for _, tt := range tests {
		if got := tt.grade.IsValid(); got != tt.want {
			t.Errorf("Grade(%q).IsValid() = %v, want %v", tt.grade, got, tt.want)
		}
	}
}

func TestGrades_Order(t *testing.T) {
	want := []string{"insufficient data", "poor quality", "good quality"}
	if len(Grades) != len(want) {
		t.Fatalf("Grades has %d entries, want %d", len(Grades), len(want))
	}
	for i, g := range Grades {
		if g.String() != want[i] {
			t.Errorf("Grades[%d] = %q, want %q", i, g, want[i])
		}
	}
}

func TestAggregatedRecord_ProductName(t *testing.T) {
	name := "Чайник"
	if got := (AggregatedRecord{Name: &name}).ProductName(); got != name {
		t.Errorf("ProductName() = %q, want %q", got, name)
	}
	if got := (AggregatedRecord{}).ProductName(); got != "" {
		t.Errorf("ProductName() with nil name = %q, want empty", got)
	}
}

func TestResultRecord_JSON(t *testing.T) {
	r := ResultRecord{
		ProductID:      "1001",
		PercentDefects: decimal.RequireFromString("2.5"),
		Grade:          GradePoorQuality,
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	s := string(data)
	for _, want := range []string{`"fk_product":"1001"`, `"grade":"poor quality"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s does not contain %s", s, want)
		}
	}
}
