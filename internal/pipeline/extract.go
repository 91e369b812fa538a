package pipeline

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"invoicemail/internal"
	"invoicemail/internal/config"
	"invoicemail/internal/util"
)

var (
	totalPattern    = regexp.MustCompile(`(?i)Total:[\s\x{00A0}]*\$([\d,.]+)`)
	orderTagPattern = regexp.MustCompile(`(?i)Order#\s*(\d+)`)
	digitPattern    = regexp.MustCompile(`\d`)
)

// Positional layout of an invoice line-item row. The cell at index 2 is not read.
const (
	cellItemCode = 0
	cellName     = 1
	cellPrice    = 3
	cellQuantity = 4

	minLineItemCells = 5
)

// Extractor turns an invoice email body into an InvoiceRecord. The zero value
// uses the subject line verbatim as the order number. It holds no state
// between calls and is safe for concurrent use.
type Extractor struct {
	OrderNumbers config.OrderNumberMode
}

func NewExtractor(mode config.OrderNumberMode) Extractor {
	return Extractor{OrderNumbers: mode}
}

// Extract runs the default Extractor.
func Extract(html, subject string) internal.InvoiceRecord {
	return Extractor{}.Extract(html, subject)
}

// Extract never fails: missing data comes back as a "N/A" total and an empty
// item list.
func (e Extractor) Extract(html, subject string) internal.InvoiceRecord {
	record := internal.InvoiceRecord{
		OrderNumber: e.OrderNumber(subject),
		TotalAmount: internal.NotAvailable,
		Items:       []internal.LineItem{},
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return record
	}

	record.TotalAmount = extractTotal(doc.Find("body").Text())
	record.Items = extractLineItems(doc)
	return record
}

func (e Extractor) OrderNumber(subject string) string {
	switch e.OrderNumbers {
	case config.OrderNumberTag:
		return orderNumberFromTag(subject)
	default:
		return orderNumberFromSubject(subject)
	}
}

func orderNumberFromSubject(subject string) string {
	if subject == "" {
		return internal.NotAvailable
	}
	return subject
}

func orderNumberFromTag(subject string) string {
	m := orderTagPattern.FindStringSubmatch(subject)
	if len(m) < 2 {
		return internal.NotAvailable
	}
	return m[1]
}

// extractTotal takes the first "Total: $..." in text. "Subtotal:" also
// matches, so whichever label comes first in the document wins.
func extractTotal(text string) string {
	m := totalPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return internal.NotAvailable
	}
	amount := util.StripThousands(m[1])
	if !digitPattern.MatchString(amount) {
		return internal.NotAvailable
	}
	return amount
}

func extractLineItems(doc *goquery.Document) []internal.LineItem {
	items := []internal.LineItem{}
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := rowCells(row)
		if !hasLineItemShape(cells) {
			return
		}
		item := lineItemFromCells(cells)
		if !isValidLineItem(item) {
			return
		}
		items = append(items, item)
	})
	return items
}

func rowCells(row *goquery.Selection) []string {
	cells := []string{}
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(cell.Text()))
	})
	return cells
}

// hasLineItemShape is the column-count predicate.
func hasLineItemShape(cells []string) bool {
	return len(cells) >= minLineItemCells
}

func lineItemFromCells(cells []string) internal.LineItem {
	return internal.LineItem{
		ItemCode: cells[cellItemCode],
		Name:     cells[cellName],
		Price:    parsePrice(cells[cellPrice]),
		Quantity: parseQuantity(cells[cellQuantity]),
	}
}

// isValidLineItem is the field-validity predicate. Zero price or quantity
// means the row is dropped, not recorded as zero.
func isValidLineItem(item internal.LineItem) bool {
	return item.ItemCode != "" && item.Name != "" && item.Price > 0 && item.Quantity > 0
}

func parsePrice(text string) float64 {
	text = strings.TrimPrefix(strings.TrimSpace(text), "$")
	return util.ParseLeadingFloat(text)
}

func parseQuantity(text string) int {
	return util.ParseLeadingInt(text)
}
