package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lingxian-cart/internal/domain"
)

type CatalogWriter interface {
	UpsertMerchant(ctx context.Context, m domain.Merchant) (*domain.Merchant, error)
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}

// CSVImporter reads product rows keyed by merchant name and upserts them.
// Columns: merchant, merchant_logo, name, image, price, stock, status.
type CSVImporter struct {
	reader  *csv.Reader
	catalog CatalogWriter
	logger  *zap.Logger

	merchantIDs map[string]string
}

func NewCSVImporter(r io.Reader, catalog CatalogWriter, logger *zap.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVImporter{
		reader:      csvr,
		catalog:     catalog,
		logger:      logger,
		merchantIDs: make(map[string]string),
	}
}

type csvRow struct {
	line         int
	Merchant     string
	MerchantLogo string
	Name         string
	Image        string
	Price        decimal.Decimal
	Stock        int
	Status       int
}

// Run imports every row and returns the number of products written.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"merchant", "name", "price"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing column %q", required)
		}
	}

	imported := 0
	line := 1
	for {
		record, err := i.reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}
		if blank(record) {
			continue
		}

		row, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", line, err)
		}
		row.line = line
		if err := i.save(ctx, row); err != nil {
			return imported, err
		}
		imported++
	}
	i.logger.Info("catalog import finished", zap.Int("products", imported), zap.Int("merchants", len(i.merchantIDs)))
	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	merchantID, ok := i.merchantIDs[row.Merchant]
	if !ok || row.MerchantLogo != "" {
		m, err := i.catalog.UpsertMerchant(ctx, domain.Merchant{Name: row.Merchant, Logo: row.MerchantLogo})
		if err != nil {
			return fmt.Errorf("row %d: upsert merchant %q: %w", row.line, row.Merchant, err)
		}
		merchantID = m.ID
		i.merchantIDs[row.Merchant] = merchantID
	}

	_, err := i.catalog.Upsert(ctx, domain.Product{
		MerchantID: merchantID,
		Name:       row.Name,
		Image:      row.Image,
		Price:      row.Price,
		Stock:      row.Stock,
		Status:     row.Status,
	})
	if err != nil {
		return fmt.Errorf("row %d: upsert product %q: %w", row.line, row.Name, err)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (*csvRow, error) {
	row := &csvRow{
		Merchant:     pick(record, index, "merchant"),
		MerchantLogo: pick(record, index, "merchant_logo"),
		Name:         pick(record, index, "name"),
		Image:        pick(record, index, "image"),
		Status:       domain.ProductOnShelf,
	}
	if row.Merchant == "" || row.Name == "" {
		return nil, errors.New("merchant and name are required")
	}

	price, err := decimal.NewFromString(pick(record, index, "price"))
	if err != nil {
		return nil, fmt.Errorf("invalid price for %q: %w", row.Name, err)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("negative price for %q", row.Name)
	}
	row.Price = price.Round(2)

	if raw := pick(record, index, "stock"); raw != "" {
		stock, err := strconv.Atoi(raw)
		if err != nil || stock < 0 {
			return nil, fmt.Errorf("invalid stock %q for %q", raw, row.Name)
		}
		row.Stock = stock
	}

	switch strings.ToLower(pick(record, index, "status")) {
	case "", "1", "on", "on_shelf":
	case "0", "off", "off_shelf":
		row.Status = domain.ProductOffShelf
	default:
		return nil, fmt.Errorf("invalid status for %q", row.Name)
	}
	return row, nil
}

func pick(record []string, index map[string]int, key string) string {
	i, ok := index[key]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
