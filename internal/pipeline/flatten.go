package pipeline

import "invoicemail/internal"

// Flatten joins every line item with its parent record. Output follows record
// order, then item order; records without items contribute no rows.
func Flatten(records []internal.InvoiceRecord) []internal.ExportRow {
	rows := make([]internal.ExportRow, 0, countItems(records))
	for _, record := range records {
		for _, item := range record.Items {
			rows = append(rows, internal.ExportRow{
				OrderNumber: record.OrderNumber,
				TotalAmount: record.TotalAmount,
				Passthrough: record.Passthrough,
				LineItem:    item,
			})
		}
	}
	return rows
}

func countItems(records []internal.InvoiceRecord) int {
	n := 0
	for _, r := range records {
		n += len(r.Items)
	}
	return n
}
