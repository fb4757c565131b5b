// integrity-check запускает batch-прогон проверок согласованности поверх
// PostgreSQL-хранилища: осиротевшие позиции заказов, расхождения денежных
// агрегатов, отрицательные остатки, несогласованный ledger. По умолчанию
// только отчитывается; с флагом -repair чинит исправимые находки.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/audit"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/integrity"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/ledger"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/orders"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/postgres"
)

const defaultTimeout = 2 * time.Minute

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	var (
		dsn        string
		repair     bool
		asJSON     bool
		categories string
		timeout    time.Duration
	)

	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: FULFILLMENT_POSTGRES_DSN)")
	flag.BoolVar(&repair, "repair", false, "repair fixable findings; default is report-only")
	flag.BoolVar(&asJSON, "json", false, "print the report as JSON")
	flag.StringVar(&categories, "categories", "", "comma-separated list of known category ids; empty disables the catalog check")
	flag.DurationVar(&timeout, "timeout", defaultTimeout, "overall run timeout")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("FULFILLMENT_POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("FULFILLMENT_POSTGRES_DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	report, err := runCheck(ctx, store, parseCategories(categories), repair)
	if err != nil {
		fail("integrity check failed: %v", err)
	}

	if err := printReport(os.Stdout, report, asJSON); err != nil {
		fail("print report: %v", err)
	}
}

// runCheck собирает checker поверх переданного хранилища и выполняет один
// прогон. Вынесен из main, чтобы тестироваться на memory-хранилище.
func runCheck(ctx context.Context, store domain.Store, knownCategories []string, repair bool) (integrity.Report, error) {
	logger := log.WithField("component", "integrity-check-cli")

	checker := integrity.New(
		store,
		newStaticCatalog(knownCategories),
		orders.NewRecalculator(logger),
		ledger.New(logger),
		audit.New(logger, "integrity-check"),
		logger,
	)
	return checker.Run(ctx, repair)
}

func parseCategories(raw string) []string {
	chunks := strings.Split(raw, ",")
	categories := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if category := strings.TrimSpace(chunk); category != "" {
			categories = append(categories, category)
		}
	}
	return categories
}

// staticCatalog заменяет внешний каталог в batch-контексте. Без списка
// категорий проверка каталога нейтральна: любая категория считается
// существующей.
type staticCatalog struct {
	known map[string]bool
}

func newStaticCatalog(categories []string) *staticCatalog {
	known := make(map[string]bool, len(categories))
	for _, category := range categories {
		known[category] = true
	}
	return &staticCatalog{known: known}
}

func (c *staticCatalog) ProductInfo(string) (domain.ProductInfo, error) {
	return domain.ProductInfo{}, domain.ErrNotFound
}

func (c *staticCatalog) CategoryExists(categoryID string) (bool, error) {
	if len(c.known) == 0 {
		return true, nil
	}
	return c.known[categoryID], nil
}

func printReport(w io.Writer, report integrity.Report, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	if _, err := fmt.Fprintf(w, "integrity check at %s: findings=%d repaired=%d\n",
		report.CheckedAt.Format(time.RFC3339), len(report.Findings), report.Repaired); err != nil {
		return err
	}
	for _, finding := range report.Findings {
		if _, err := fmt.Fprintf(w, "  [%s] %s %s: %s (count=%d)\n",
			finding.Severity, finding.Check, finding.Entity, finding.Description, finding.Count); err != nil {
			return err
		}
	}
	return nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
