package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tajerhq/tajer-backend/pkg/migrate"
)

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestCatalogMigrationGuardsInventory(t *testing.T) {
	content := readMigration(t, "*_create_catalog.sql")

	checks := []string{
		"CREATE TABLE inventory_items",
		"CHECK (stock_qty >= 0 AND reserved_qty >= 0 AND available_qty >= 0)",
		"CHECK (available_qty = stock_qty - reserved_qty)",
		"DROP TABLE IF EXISTS inventory_items",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCouponMigrationGuardsUsage(t *testing.T) {
	content := readMigration(t, "*_create_coupons.sql")

	checks := []string{
		"CREATE TABLE coupons",
		"CHECK (usage_limit IS NULL OR used_count <= usage_limit)",
		"CREATE UNIQUE INDEX idx_coupons_code",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrderMigrationSnapshotsTotals(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"CREATE UNIQUE INDEX idx_orders_order_number",
		"line_tax     numeric(12,2) NOT NULL",
		"CREATE UNIQUE INDEX idx_shipments_order_id",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
