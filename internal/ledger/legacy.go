package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lengolf/ledger-api/internal/database"
	"github.com/shopspring/decimal"
)

// legacyDateLayouts are the two date formats that occur in legacy
// extracts. Anything else is a typed parse failure, never a guess.
var legacyDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
}

// LegacyStore defines the DB methods needed by the legacy extract loader.
// Satisfied by *database.Queries.
type LegacyStore interface {
	ListLegacyStaging(ctx context.Context) ([]database.LegacyStagingRow, error)
	ListLatestLegacyCorrections(ctx context.Context) ([]database.LegacyCorrection, error)
	ListLegacyProductMap(ctx context.Context) ([]database.LegacyProductMap, error)
}

// LegacyLoader normalizes heterogeneous legacy staging rows into
// ledger-ready candidates.
type LegacyLoader struct {
	store   LegacyStore
	vatRate decimal.Decimal
}

// NewLegacyLoader creates a LegacyLoader with the given VAT rate
// (e.g. 0.07 for 7% VAT-inclusive pricing).
func NewLegacyLoader(store LegacyStore, vatRate decimal.Decimal) *LegacyLoader {
	return &LegacyLoader{store: store, vatRate: vatRate}
}

// Load reads all staged extract rows and produces candidates. Rows with
// a missing receipt number or an unparseable date are skipped and
// counted, never defaulted.
func (l *LegacyLoader) Load(ctx context.Context) (*LoadResult, error) {
	rows, err := l.store.ListLegacyStaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("list legacy staging: %w", err)
	}

	corrections, err := l.store.ListLatestLegacyCorrections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list legacy corrections: %w", err)
	}
	overlay := make(map[string]string, len(corrections))
	for _, c := range corrections {
		overlay[c.ReceiptNumber] = c.CorrectedCustomerName
	}

	mappings, err := l.store.ListLegacyProductMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("list legacy product map: %w", err)
	}
	productMap := make(map[string]database.LegacyProductMap, len(mappings))
	for _, m := range mappings {
		productMap[m.LegacyName] = m
	}

	result := &LoadResult{}
	lineCounters := make(map[string]int32)

	for _, row := range rows {
		result.Processed++

		cand, err := l.normalize(row, overlay, productMap)
		if err != nil {
			result.Skipped++
			log.Printf("legacy loader: skipped staging row %d: %v", row.ID, err)
			continue
		}

		// Staging rows carry no line identity; assign an ordinal per
		// receipt in staging order so the business key stays unique.
		lineCounters[cand.ReceiptNumber]++
		cand.LineNumber = lineCounters[cand.ReceiptNumber]

		result.Candidates = append(result.Candidates, *cand)
	}

	return result, nil
}

func (l *LegacyLoader) normalize(
	row database.LegacyStagingRow,
	overlay map[string]string,
	productMap map[string]database.LegacyProductMap,
) (*Candidate, error) {
	receipt := strings.TrimSpace(row.ReceiptNumber.String)
	if !row.ReceiptNumber.Valid || receipt == "" {
		return nil, ErrMissingReceipt
	}

	saleDate, err := ParseLegacyDate(row.DateText.String)
	if err != nil {
		return nil, err
	}

	// Latest manual correction for this receipt wins over the raw name.
	customer := strings.TrimSpace(row.CustomerName.String)
	if corrected, ok := overlay[receipt]; ok {
		customer = corrected
	}

	// Exact product name keeps itself; otherwise the configured legacy
	// mapping resolves it. Unmapped names pass through uncategorized.
	product := strings.TrimSpace(row.ProductName.String)
	category := ""
	if m, ok := productMap[product]; ok {
		product = m.ProductName
		category = m.Category.String
	}

	quantity := numericToDecimal(row.Quantity)
	unitPrice := numericToDecimal(row.UnitPrice)
	gross := unitPrice.Mul(quantity).Round(2)
	net, vat := splitVAT(gross, l.vatRate)

	return &Candidate{
		ReceiptNumber: receipt,
		SaleDate:      saleDate,
		CustomerName:  customer,
		ProductName:   product,
		Category:      category,
		Quantity:      quantity,
		GrossAmount:   gross,
		NetAmount:     net,
		VATAmount:     vat,
		ProfitAmount:  net,
	}, nil
}

// ParseLegacyDate parses a legacy extract date string, trying each known
// layout in order. Returns ErrUnparseableDate (wrapped with the input)
// when no layout matches; callers must skip the row, not substitute a
// default.
func ParseLegacyDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty date string", ErrUnparseableDate)
	}
	for _, layout := range legacyDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, s)
}
