package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"invoicemail/internal"
	"invoicemail/internal/util"
)

var (
	leadingColumns  = []string{"orderNumber", "totalAmount"}
	trailingColumns = []string{"itemCode", "name", "price", "quantity"}
)

// ExportColumns returns the header row for rows: order fields, then every
// passthrough name in first-seen order, then item fields.
func ExportColumns(rows []internal.ExportRow) []string {
	headers := append([]string{}, leadingColumns...)
	seen := map[string]struct{}{}
	for _, row := range rows {
		for _, field := range row.Passthrough {
			if _, ok := seen[field.Name]; ok {
				continue
			}
			seen[field.Name] = struct{}{}
			headers = append(headers, field.Name)
		}
	}
	return append(headers, trailingColumns...)
}

func ExportRowsToXLSX(rows []internal.ExportRow, source, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := util.SheetName(source)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headers := ExportColumns(rows)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	passthroughCols := headers[len(leadingColumns) : len(headers)-len(trailingColumns)]
	for i, row := range rows {
		r := i + 2
		col := 0
		set := func(value any) {
			col++
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(row.OrderNumber)
		set(row.TotalAmount)
		for _, name := range passthroughCols {
			set(passthroughValue(row.Passthrough, name))
		}
		set(row.ItemCode)
		set(row.Name)
		set(row.Price)
		set(row.Quantity)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// WriteJSONSnapshot writes records as an indented JSON array. Field order is
// fixed by the struct definitions.
func WriteJSONSnapshot(records []internal.InvoiceRecord, outputPath string) error {
	out := make([]internal.InvoiceRecord, len(records))
	for i, r := range records {
		if r.Items == nil {
			r.Items = []internal.LineItem{}
		}
		out[i] = r
	}
	blob, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, append(blob, '\n'), 0o644)
}

// DefaultExportPaths mirrors the invoices_<source>.{json,xlsx} naming.
func DefaultExportPaths(outputDir, source string) (jsonPath, xlsxPath string) {
	base := filepath.Join(outputDir, "invoices_"+util.Slug(source))
	return base + ".json", base + ".xlsx"
}

func passthroughValue(fields []internal.PassthroughField, name string) string {
	for _, f := range fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}
