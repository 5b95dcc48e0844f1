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

	"storefront/internal/domain"
	"storefront/internal/logging"
)

// ProductWriter creates catalog products. backend.ProductsAPI satisfies it.
type ProductWriter interface {
	Create(ctx context.Context, in domain.ProductInput) (domain.Product, error)
}

// CSVImporter reads catalog CSV files and pushes each product to the backend.
//
// Columns: name,category,price,image,description,specs,inStock. Specs are
// separated by ';'. A row with no name but an image adds that image to the
// product above it.
type CSVImporter struct {
	reader *csv.Reader
	writer ProductWriter
	logger *zap.Logger
}

func NewCSVImporter(r io.Reader, writer ProductWriter, logger *zap.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	logger = logging.OrNop(logger)
	return &CSVImporter{
		reader: csvr,
		writer: writer,
		logger: logger,
	}
}

type csvRow struct {
	line        int
	Name        string
	Category    string
	Price       string
	Images      []string
	Description string
	Specs       []string
	InStock     string
}

// Run parses CSV rows and creates products in file order.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["name"]; !ok {
		return 0, errors.New("missing name column")
	}

	var (
		current  *csvRow
		imported int
		line     = 1
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		row := parseRow(record, index)
		if row == nil {
			continue
		}
		row.line = line

		if row.Name != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		// Continuation rows (images) belong to the current product.
		if current != nil && len(row.Images) > 0 {
			current.Images = append(current.Images, row.Images...)
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	in, err := row.input()
	if err != nil {
		return fmt.Errorf("line %d: %w", row.line, err)
	}
	p, err := i.writer.Create(ctx, in)
	if err != nil {
		return fmt.Errorf("create product %q: %w", row.Name, err)
	}
	i.logger.Debug("product imported", zap.Int64("id", p.ID), zap.String("name", p.Name))
	return nil
}

func (r *csvRow) input() (domain.ProductInput, error) {
	if r.Category == "" {
		return domain.ProductInput{}, fmt.Errorf("product %q has no category", r.Name)
	}
	price, err := decimal.NewFromString(r.Price)
	if err != nil || !price.IsPositive() {
		return domain.ProductInput{}, fmt.Errorf("product %q has invalid price %q", r.Name, r.Price)
	}
	inStock := true
	if r.InStock != "" {
		inStock, err = strconv.ParseBool(r.InStock)
		if err != nil {
			return domain.ProductInput{}, fmt.Errorf("product %q has invalid inStock %q", r.Name, r.InStock)
		}
	}
	in := domain.ProductInput{
		Name:        r.Name,
		Category:    r.Category,
		Price:       price,
		Description: r.Description,
		Specs:       r.Specs,
		InStock:     inStock,
	}
	if len(r.Images) > 0 {
		in.Image = r.Images[0]
		in.Images = r.Images
	}
	return in, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	name := pick(record, index, "name")
	image := pick(record, index, "image")
	if name == "" && image == "" {
		return nil
	}

	row := &csvRow{
		Name:        name,
		Category:    pick(record, index, "category"),
		Price:       pick(record, index, "price"),
		Description: pick(record, index, "description"),
		InStock:     pick(record, index, "inStock"),
	}
	if image != "" {
		row.Images = []string{image}
	}
	for _, s := range strings.Split(pick(record, index, "specs"), ";") {
		if s = strings.TrimSpace(s); s != "" {
			row.Specs = append(row.Specs, s)
		}
	}
	return row
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
