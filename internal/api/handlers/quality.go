package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/internal/pipelineconfig"
	"github.com/donsko1/DNS-case/internal/s2_assessment"
	"github.com/donsko1/DNS-case/pkg/logger"
)

// QualityReader is the read side of the pipeline tables
type QualityReader interface {
	contracts.AggregatedStore
	contracts.ResultStore
}

// QualityHandler serves the persisted aggregation and grades
// ⭐ SSOT: 품질 결과 조회 API는 여기서만
type QualityHandler struct {
	store  QualityReader
	rules  *pipelineconfig.Holder
	logger *logger.Logger
}

// NewQualityHandler creates a new quality handler
func NewQualityHandler(store QualityReader, rules *pipelineconfig.Holder, log *logger.Logger) *QualityHandler {
	return &QualityHandler{
		store:  store,
		rules:  rules,
		logger: log,
	}
}

// ResultItem is one graded product
type ResultItem struct {
	ProductID      string      `json:"productId"`
	PercentDefects json.Number `json:"percentDefects"`
	Grade          string      `json:"grade"`
}

// AggregatedItem is one row of the aggregated table
type AggregatedItem struct {
	ProductID      string      `json:"productId"`
	Product        *string     `json:"product"`
	Sold           int64       `json:"solds"`
	Defects        int64       `json:"defects"`
	PercentDefects json.Number `json:"percentDefects"`
}

// BaselineItem is the statistics of one product name
type BaselineItem struct {
	Product string      `json:"product"`
	Median  json.Number `json:"median"`
	Mean    json.Number `json:"mean"`
	Mode    json.Number `json:"mode"`
	Count   int         `json:"count"`
}

// Summary is the assessment overview
type Summary struct {
	Rows       int            `json:"rows"`
	Qualifying int            `json:"qualifying"`
	Grades     map[string]int `json:"grades"`
	Baselines  []BaselineItem `json:"baselines"`
}

// GetResults returns the graded products
// GET /api/quality/results?grade=poor%20quality
func (h *QualityHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	grade := r.URL.Query().Get("grade")
	if grade != "" && !contracts.Grade(grade).IsValid() {
		respondError(w, http.StatusBadRequest, "unknown grade: "+grade)
		return
	}

	rows, err := h.store.LoadResults(r.Context())
	if err != nil {
		h.respondLoadError(w, "results", err)
		return
	}

	items := make([]ResultItem, 0, len(rows))
	for _, row := range rows {
		if grade != "" && row.Grade.String() != grade {
			continue
		}
		items = append(items, toResultItem(row))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(items),
		"items": items,
	})
}

// GetResult returns the grade rows of one product
// GET /api/quality/results/{productID}
func (h *QualityHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productID"]

	rows, err := h.store.LoadResults(r.Context())
	if err != nil {
		h.respondLoadError(w, "results", err)
		return
	}

	// 차원 테이블 중복 시 같은 상품이 여러 행일 수 있음
	items := make([]ResultItem, 0, 1)
	for _, row := range rows {
		if row.ProductID == productID {
			items = append(items, toResultItem(row))
		}
	}
	if len(items) == 0 {
		respondError(w, http.StatusNotFound, "product not graded: "+productID)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"productId": productID,
		"items":     items,
	})
}

// GetAggregated returns the aggregated table
// GET /api/quality/aggregated
func (h *QualityHandler) GetAggregated(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.LoadAggregated(r.Context())
	if err != nil {
		h.respondLoadError(w, "aggregated", err)
		return
	}

	items := make([]AggregatedItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, AggregatedItem{
			ProductID:      row.ProductID,
			Product:        row.Name,
			Sold:           row.Sold,
			Defects:        row.Defects,
			PercentDefects: percent(row.PercentDefects),
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(items),
		"items": items,
	})
}

// GetSummary grades the persisted aggregation with the current rules and
// returns counts and per-product baselines
// GET /api/quality/summary
func (h *QualityHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.LoadAggregated(r.Context())
	if err != nil {
		h.respondLoadError(w, "aggregated", err)
		return
	}

	cfg := h.rules.Current()
	assessment := s2_assessment.Assess(rows, s2_assessment.Rules{
		MinSoldForGrade:    cfg.Assessment.MinSoldForGrade,
		MinSoldForBaseline: cfg.Assessment.MinSoldForBaseline,
	})

	summary := Summary{
		Rows:       len(rows),
		Qualifying: assessment.Qualifying,
		Grades:     make(map[string]int, len(contracts.Grades)),
		Baselines:  make([]BaselineItem, 0, len(assessment.Baselines)),
	}
	for _, g := range contracts.Grades {
		summary.Grades[g.String()] = assessment.Counts[g]
	}
	for _, b := range assessment.BaselineList() {
		summary.Baselines = append(summary.Baselines, BaselineItem{
			Product: b.Name,
			Median:  json.Number(b.Median.String()),
			Mean:    json.Number(b.Mean.String()),
			Mode:    json.Number(b.Mode.String()),
			Count:   b.Count,
		})
	}

	respondJSON(w, http.StatusOK, summary)
}

func (h *QualityHandler) respondLoadError(w http.ResponseWriter, table string, err error) {
	if errors.Is(err, contracts.ErrSourceUnavailable) {
		respondError(w, http.StatusNotFound, table+" not available yet, run the pipeline first")
		return
	}
	h.logger.WithError(err).WithField("table", table).Error("Failed to load table")
	respondError(w, http.StatusInternalServerError, "failed to load "+table)
}

func toResultItem(r contracts.ResultRecord) ResultItem {
	return ResultItem{
		ProductID:      r.ProductID,
		PercentDefects: percent(r.PercentDefects),
		Grade:          r.Grade.String(),
	}
}
