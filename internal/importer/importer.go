package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"commerce-backoffice/internal/domain"
	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads catalog CSV files and inserts or updates products by SKU.
// Required columns are sku, name and price; discountPrice, stock and status
// are optional. Prices are decimal amounts in the store currency.
type CSVImporter struct {
	reader   *csv.Reader
	products ProductWriter
}

func NewCSVImporter(r io.Reader, products ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:   csvr,
		products: products,
	}
}

// Run parses every row and upserts it. It stops at the first bad row and
// reports how many rows were imported before it.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"sku", "name", "price"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing column %q", required)
		}
	}

	imported := 0
	for line := 2; ; line++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		if blank(record) {
			continue
		}

		p, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := i.products.Upsert(ctx, p); err != nil {
			return imported, fmt.Errorf("line %d: upsert product %q: %w", line, p.SKU, err)
		}
		imported++
	}
	return imported, nil
}

func parseRow(record []string, index map[string]int) (domain.Product, error) {
	p := domain.Product{
		SKU:    pick(record, index, "sku"),
		Name:   pick(record, index, "name"),
		Status: domain.ProductStatus(strings.ToLower(pick(record, index, "status"))),
	}
	if p.SKU == "" || p.Name == "" {
		return p, errors.New("sku and name are required")
	}

	var err error
	if p.PriceCents, err = cents(pick(record, index, "price")); err != nil {
		return p, fmt.Errorf("price: %w", err)
	}
	if raw := pick(record, index, "discountPrice"); raw != "" {
		if p.DiscountPriceCents, err = cents(raw); err != nil {
			return p, fmt.Errorf("discountPrice: %w", err)
		}
	}
	if raw := pick(record, index, "stock"); raw != "" {
		if p.Stock, err = strconv.Atoi(raw); err != nil || p.Stock < 0 {
			return p, fmt.Errorf("stock must be a non-negative integer, got %q", raw)
		}
	}
	return p, nil
}

// cents converts a decimal amount such as "19.99" to 1999.
func cents(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("value required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("must not be negative, got %s", raw)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
