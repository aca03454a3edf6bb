package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/internal/s1_aggregation"
)

// dataCheckCmd represents the data check command
var dataCheckCmd = &cobra.Command{
	Use:   "data-check",
	Short: "원천 데이터 상태 확인",
	Long: `dim_product / sales 원천 테이블 상태를 확인합니다.

확인 항목:
- 상품 수, 카테고리별 분포
- 판매 행 수, 날짜 범위, 집계 윈도우
- 차원 테이블에 없는 판매 상품
- 집계/등급 결과 테이블 존재 여부

Example:
  go run ./cmd/quality data-check
  go run ./cmd/quality data-check --data-dir ./data`,
	RunE: runDataCheck,
}

func init() {
	rootCmd.AddCommand(dataCheckCmd)
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	PrintHeader("Quality Pipeline Data Check")
	PrintKeyValue("Storage", a.cfg.StorageBackend, 12)
	fmt.Println()

	products, err := a.store.LoadProducts(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	sales, err := a.store.LoadSales(ctx)
	if err != nil {
		return fmt.Errorf("load sales: %w", err)
	}

	rules := a.rules.Current()
	checkProducts(products, rules.Aggregation.TargetCategory)
	checkSales(products, sales, rules.Aggregation.WindowYears)
	checkOutputs(ctx, a.store)

	return nil
}

func checkProducts(products []contracts.Product, category string) {
	fmt.Println("📋 상품 차원 테이블")
	PrintSeparator()

	byType := make(map[string]int)
	for _, p := range products {
		byType[p.Type]++
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	PrintKeyValue("Products", fmt.Sprintf("%d", len(products)), 12)
	for _, t := range types {
		label := t
		if label == "" {
			label = "(empty)"
		}
		marker := ""
		if t == category {
			marker = "  ← target"
		}
		fmt.Printf("  %-20s %6d%s\n", label, byType[t], marker)
	}
	if byType[category] == 0 {
		PrintWarning(fmt.Sprintf("no products of category %q, aggregation output will be empty", category))
	}
	fmt.Println()
}

func checkSales(products []contracts.Product, sales []contracts.Sale, windowYears int) {
	fmt.Println("📈 판매 테이블")
	PrintSeparator()

	PrintKeyValue("Rows", fmt.Sprintf("%d", len(sales)), 12)
	latest, ok := s1_aggregation.LatestSaleDate(sales)
	if !ok {
		PrintWarning("no dated sales rows")
		fmt.Println()
		return
	}

	earliest := latest
	start := s1_aggregation.WindowStart(latest, windowYears)
	inWindow := 0
	for _, s := range sales {
		if s.Date.Before(earliest) {
			earliest = s.Date
		}
		if s1_aggregation.InWindow(s.Date, start) {
			inWindow++
		}
	}

	PrintKeyValue("Earliest", earliest.Format("2006-01-02"), 12)
	PrintKeyValue("Latest", latest.Format("2006-01-02"), 12)
	PrintKeyValue("Window", fmt.Sprintf("%s ~ %s (%d rows)", start.Format("2006-01-02"), latest.Format("2006-01-02"), inWindow), 12)

	known := make(map[string]struct{}, len(products))
	for _, p := range products {
		known[p.ID] = struct{}{}
	}
	unknown := make(map[string]struct{})
	for _, s := range sales {
		if _, ok := known[s.ProductID]; !ok {
			unknown[s.ProductID] = struct{}{}
		}
	}
	if len(unknown) > 0 {
		PrintWarning(fmt.Sprintf("%d product(s) in sales are missing from the product table and will be dropped", len(unknown)))
	}
	fmt.Println()
}

func checkOutputs(ctx context.Context, store contracts.Store) {
	fmt.Println("🗂  결과 테이블")
	PrintSeparator()

	if rows, err := store.LoadAggregated(ctx); err != nil {
		PrintKeyValue("Aggregated", "not available ("+err.Error()+")", 12)
	} else {
		PrintKeyValue("Aggregated", fmt.Sprintf("%d rows", len(rows)), 12)
	}

	results, err := store.LoadResults(ctx)
	if err != nil {
		PrintKeyValue("Results", "not available ("+err.Error()+")", 12)
		return
	}
	counts := make(map[contracts.Grade]int)
	for _, r := range results {
		counts[r.Grade]++
	}
	PrintKeyValue("Results", fmt.Sprintf("%d rows", len(results)), 12)
	for _, g := range contracts.Grades {
		fmt.Printf("  %-20s %6d\n", g, counts[g])
	}
}
