package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donsko1/DNS-case/internal/storage/csvstore"
	"github.com/donsko1/DNS-case/internal/storage/pgstore"
	"github.com/donsko1/DNS-case/pkg/config"
)

// importCmd loads CSV source tables into PostgreSQL
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "CSV 원천 데이터를 PostgreSQL로 적재",
	Long: `dim_product.csv / sales.csv 를 읽어 PostgreSQL 원천 테이블을 교체합니다.

STORAGE_BACKEND=postgres 에서만 동작합니다.
두 테이블은 하나의 트랜잭션으로 교체되며, 실패하면 기존 데이터가 유지됩니다.

Example:
  STORAGE_BACKEND=postgres go run ./cmd/quality import --from ./data`,
	RunE: runImport,
}

var importFrom string

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importFrom, "from", "", "CSV directory to import (default: $DATA_DIR)")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	target, ok := a.store.(*pgstore.Store)
	if !ok {
		return fmt.Errorf("import requires STORAGE_BACKEND=%s (got %s)", config.BackendPostgres, a.cfg.StorageBackend)
	}

	dir := importFrom
	if dir == "" {
		dir = a.cfg.DataDir
	}
	source := csvstore.New(dir, a.rules.Current().Tables, a.log)

	products, err := source.LoadProducts(ctx)
	if err != nil {
		return fmt.Errorf("read products: %w", err)
	}
	sales, err := source.LoadSales(ctx)
	if err != nil {
		return fmt.Errorf("read sales: %w", err)
	}

	if err := target.ImportSources(ctx, products, sales); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	a.log.WithFields(map[string]interface{}{
		"dir":      dir,
		"products": len(products),
		"sales":    len(sales),
	}).Info("Sources imported")

	PrintHeader("Import")
	PrintKeyValue("From", dir, 10)
	PrintKeyValue("Products", fmt.Sprintf("%d", len(products)), 10)
	PrintKeyValue("Sales", fmt.Sprintf("%d", len(sales)), 10)
	PrintSuccess("Import completed")
	return nil
}
