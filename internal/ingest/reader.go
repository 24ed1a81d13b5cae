package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// Kind names the type of rows a source file carries.
type Kind string

const (
	KindSales    Kind = "sales"
	KindReceipts Kind = "receipts"
	KindStock    Kind = "stock"
)

var (
	ErrUnknownKind   = errors.New("unknown file kind")
	ErrUnsupported   = errors.New("unsupported file type")
	ErrMissingColumn = errors.New("missing required column")
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindSales, "ventas":
		return KindSales, nil
	case KindReceipts, "receipt", "recepciones":
		return KindReceipts, nil
	case KindStock, "inventory", "inventario":
		return KindStock, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// DetectKind infers the kind from the parent directory or the file name
// prefix, e.g. "sales/2024-01.csv" or "receipts_january.xlsx".
func DetectKind(path string) (Kind, error) {
	if k, err := ParseKind(filepath.Base(filepath.Dir(path))); err == nil {
		return k, nil
	}
	name := strings.ToLower(filepath.Base(path))
	for _, sep := range []string{"_", "-", "."} {
		if prefix, _, ok := strings.Cut(name, sep); ok {
			if k, err := ParseKind(prefix); err == nil {
				return k, nil
			}
		}
	}
	return "", fmt.Errorf("%w: cannot infer from %s", ErrUnknownKind, path)
}

// IsSupported reports whether the file extension is one ingest can read.
func IsSupported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Batch is the decoded content of one file. Only the slice matching Kind is set.
type Batch struct {
	Kind     Kind
	Sales    []domain.SalesRecord
	Receipts []domain.StockReceipt
	Stock    []domain.ProductStock
	Rows     int
	Skipped  int
}

// Len is the number of accepted rows.
func (b *Batch) Len() int {
	switch b.Kind {
	case KindSales:
		return len(b.Sales)
	case KindReceipts:
		return len(b.Receipts)
	case KindStock:
		return len(b.Stock)
	}
	return 0
}

// Products counts distinct products in the batch.
func (b *Batch) Products() int {
	seen := make(map[string]struct{})
	for _, r := range b.Sales {
		seen[r.Product] = struct{}{}
	}
	for _, r := range b.Receipts {
		seen[r.Product] = struct{}{}
	}
	for _, r := range b.Stock {
		seen[r.Product] = struct{}{}
	}
	return len(seen)
}

// SetSource tags every sales and receipt row with the file it came from.
func (b *Batch) SetSource(source string) {
	for i := range b.Sales {
		b.Sales[i].SourceFile = source
	}
	for i := range b.Receipts {
		b.Receipts[i].SourceFile = source
	}
}

// ReadFile opens path and decodes it according to its extension.
func ReadFile(path string, kind Kind) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return Read(f, filepath.Base(path), kind)
}

// Read decodes r as CSV or XLSX based on the extension of filename.
func Read(r io.Reader, filename string, kind Kind) (*Batch, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ReadCSV(r, kind)
	case ".xlsx":
		return ReadXLSX(r, kind)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filename)
	}
}

func ReadCSV(r io.Reader, kind Kind) (*Batch, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	return decode(kind, header, func() ([]string, error) {
		record, err := reader.Read()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		return record, err
	})
}

// ReadXLSX decodes the first sheet of a workbook. Cells are read raw so date
// cells arrive as Excel serials regardless of their display format.
func ReadXLSX(r io.Reader, kind Kind) (*Batch, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheets[0], err)
	}
	defer rows.Close()

	next := func() ([]string, error) {
		if !rows.Next() {
			if err := rows.Error(); err != nil {
				return nil, fmt.Errorf("error iterating rows: %w", err)
			}
			return nil, io.EOF
		}
		return rows.Columns(excelize.Options{RawCellValue: true})
	}

	header, err := next()
	if err != nil {
		return nil, fmt.Errorf("failed to read xlsx header: %w", err)
	}
	return decode(kind, header, next)
}

func decode(kind Kind, header []string, next func() ([]string, error)) (*Batch, error) {
	dec, err := newDecoder(kind, header)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Kind: kind}
	for {
		record, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if blank(record) {
			continue
		}

		batch.Rows++
		if err := dec.decode(record, batch); err != nil {
			batch.Skipped++
			log.Debug().Err(err).Int("row", batch.Rows+1).Str("kind", string(kind)).Msg("Skipping row")
		}
	}
	return batch, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

type decoder struct {
	kind       Kind
	idxDate    int
	idxProduct int
	idxQty     int
}

func newDecoder(kind Kind, header []string) (*decoder, error) {
	d := &decoder{kind: kind, idxDate: -1, idxProduct: colIndex(header, productColumns)}

	required := map[string]int{"product": d.idxProduct}
	switch kind {
	case KindSales:
		d.idxDate = colIndex(header, dateColumns)
		d.idxQty = colIndex(header, salesQtyColumns)
		required["date"], required["quantity"] = d.idxDate, d.idxQty
	case KindReceipts:
		d.idxDate = colIndex(header, dateColumns)
		d.idxQty = colIndex(header, recvQtyColumns)
		required["date"], required["quantity"] = d.idxDate, d.idxQty
	case KindStock:
		d.idxQty = colIndex(header, stockColumns)
		required["current_stock"] = d.idxQty
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	for _, name := range []string{"date", "product", "quantity", "current_stock"} {
		if idx, ok := required[name]; ok && idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return d, nil
}

func (d *decoder) decode(record []string, batch *Batch) error {
	product := cell(record, d.idxProduct)
	if product == "" {
		return fmt.Errorf("empty product")
	}
	qty := quantity(cell(record, d.idxQty))

	if d.kind == KindStock {
		batch.Stock = append(batch.Stock, domain.ProductStock{Product: product, CurrentStock: qty})
		return nil
	}

	date, err := parseDate(cell(record, d.idxDate))
	if err != nil {
		return err
	}
	switch d.kind {
	case KindSales:
		batch.Sales = append(batch.Sales, domain.SalesRecord{Date: date, Product: product, Quantity: qty})
	case KindReceipts:
		batch.Receipts = append(batch.Receipts, domain.StockReceipt{Date: date, Product: product, Quantity: qty})
	}
	return nil
}
