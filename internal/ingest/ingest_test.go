package ingest

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestReadCSVSales(t *testing.T) {
	data := "Fecha,Producto,Cantidad Vendida\n" +
		"2024-01-01,Tomate,\"1,200\"\n" +
		"02/01/2024,Cebolla,3.5\n" +
		",Tomate,4\n" +
		"2024-01-03,,4\n" +
		"2024-01-03,Tomate,abc\n" +
		",,\n"

	batch, err := ReadCSV(strings.NewReader(data), KindSales)
	require.NoError(t, err)

	assert.Equal(t, 5, batch.Rows)
	assert.Equal(t, 2, batch.Skipped)
	require.Len(t, batch.Sales, 3)
	assert.Equal(t, domain.SalesRecord{Date: jan1, Product: "Tomate", Quantity: 1200}, batch.Sales[0])
	assert.Equal(t, domain.SalesRecord{Date: jan1.AddDate(0, 0, 1), Product: "Cebolla", Quantity: 3.5}, batch.Sales[1])
	assert.Equal(t, domain.SalesRecord{Date: jan1.AddDate(0, 0, 2), Product: "Tomate", Quantity: 0}, batch.Sales[2])
	assert.Equal(t, 3, batch.Len())
	assert.Equal(t, 2, batch.Products())
}

func TestReadCSVCoercesBadQuantitiesToZero(t *testing.T) {
	data := "date,product,quantity_sold\n" +
		"2024-01-01,sku,n/a\n" +
		"2024-01-02,sku,5\n" +
		"2024-01-03,sku,-4\n" +
		"2024-01-04,sku,NaN\n"

	batch, err := ReadCSV(strings.NewReader(data), KindSales)
	require.NoError(t, err)
	assert.Zero(t, batch.Skipped)
	require.Len(t, batch.Sales, 4)
	assert.Equal(t, jan1, batch.Sales[0].Date)

	quantities := make([]float64, len(batch.Sales))
	for i, s := range batch.Sales {
		quantities[i] = s.Quantity
	}
	assert.Equal(t, []float64{0, 5, 0, 0}, quantities)

	stock, err := ReadCSV(strings.NewReader("product,current_stock\na,unknown\nb,-2\n"), KindStock)
	require.NoError(t, err)
	assert.Equal(t, []domain.ProductStock{{Product: "a", CurrentStock: 0}, {Product: "b", CurrentStock: 0}}, stock.Stock)
}

func TestReadCSVReceiptsAndStock(t *testing.T) {
	receipts, err := ReadCSV(strings.NewReader("date,product,quantity_received\n2024-01-01T08:30:00Z,a,50\n"), KindReceipts)
	require.NoError(t, err)
	require.Len(t, receipts.Receipts, 1)
	assert.Equal(t, jan1, receipts.Receipts[0].Date)
	assert.Equal(t, 50.0, receipts.Receipts[0].Quantity)

	stock, err := ReadCSV(strings.NewReader("\ufeffProducto,Stock Actual\na,12\nb,0\n"), KindStock)
	require.NoError(t, err)
	assert.Equal(t, []domain.ProductStock{{Product: "a", CurrentStock: 12}, {Product: "b", CurrentStock: 0}}, stock.Stock)
}

func TestReadCSVMissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("date,product\n2024-01-01,a\n"), KindSales)
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = ReadCSV(strings.NewReader("date,product,qty\n"), Kind("bogus"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Date", "Product", "Qty"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{45292, "a", 12.5}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"2024-01-02", "b", 3}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	batch, err := Read(bytes.NewReader(buf.Bytes()), "upload.XLSX", KindSales)
	require.NoError(t, err)

	require.Len(t, batch.Sales, 2)
	assert.Equal(t, domain.SalesRecord{Date: jan1, Product: "a", Quantity: 12.5}, batch.Sales[0])
	assert.Equal(t, jan1.AddDate(0, 0, 1), batch.Sales[1].Date)
}

func TestReadUnsupported(t *testing.T) {
	_, err := Read(strings.NewReader(""), "notes.txt", KindSales)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, IsSupported("notes.txt"))
	assert.True(t, IsSupported("a.CSV"))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-01-01", want: jan1},
		{in: "2024/01/01", want: jan1},
		{in: "01-01-2024", want: jan1},
		{in: "20240101", want: jan1},
		{in: "45292", want: jan1},
		{in: "2024-01-01 23:59:59", want: jan1},
		{in: "", wantErr: true},
		{in: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectKind(t *testing.T) {
	tests := map[string]Kind{
		"data/sales/2024-01.csv":      KindSales,
		"receipts_january.xlsx":       KindReceipts,
		"/tmp/ventas/export.csv":      KindSales,
		"inventory-2024-01-01.csv":    KindStock,
		"downloads/stock.csv":         KindStock,
		"uploads/recepciones/feb.csv": KindReceipts,
	}
	for path, want := range tests {
		got, err := DetectKind(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := DetectKind("misc/file.csv")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestNormalizeColumnName(t *testing.T) {
	assert.Equal(t, "cantidadvendida", normalizeColumnName(" Cantidad_Vendida "))
	assert.Equal(t, "qtysold", normalizeColumnName("Qty. Sold"))
	assert.Equal(t, -1, colIndex([]string{"a", "b"}, []string{"c"}))
	assert.Equal(t, 1, colIndex([]string{"Quantity", "Quantity Sold"}, salesQtyColumns))
}
