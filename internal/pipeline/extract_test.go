package pipeline

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicemail/internal"
	"invoicemail/internal/config"
)

func row(cells ...string) string {
	var b strings.Builder
	b.WriteString("<tr>")
	for _, c := range cells {
		b.WriteString("<td>" + c + "</td>")
	}
	b.WriteString("</tr>")
	return b.String()
}

func table(rows ...string) string {
	return "<table>" + strings.Join(rows, "") + "</table>"
}

func page(body string) string {
	return "<html><body>" + body + "</body></html>"
}

func TestExtractNeverFailsOnJunk(t *testing.T) {
	inputs := []string{
		"",
		"just some text",
		"<<<>>></table></tr><td>",
		page("<p>No tables here.</p>"),
		page("<table><tr><td>A1</td>"),
		"\x00\xff\xfe<table>",
	}
	for _, in := range inputs {
		rec := Extract(in, "subj")
		assert.Equal(t, internal.NotAvailable, rec.TotalAmount, "input %q", in)
		assert.NotNil(t, rec.Items)
		assert.Empty(t, rec.Items, "input %q", in)
		assert.Equal(t, "subj", rec.OrderNumber)
	}
}

func TestExtractOrderNumberPassthrough(t *testing.T) {
	html := page(table(row("A1", "Widget", "x", "$1", "1")))

	assert.Equal(t, internal.NotAvailable, Extract(html, "").OrderNumber)
	assert.Equal(t, "SomeSubject", Extract(html, "SomeSubject").OrderNumber)
	assert.Equal(t, "Invoice for Order# 42", Extract(html, "Invoice for Order# 42").OrderNumber)
}

func TestExtractOrderNumberTagMode(t *testing.T) {
	e := NewExtractor(config.OrderNumberTag)
	cases := []struct {
		subject string
		want    string
	}{
		{"Invoice for Order# 100234", "100234"},
		{"order#77 shipped", "77"},
		{"ORDER#   9", "9"},
		{"Your invoice", internal.NotAvailable},
		{"", internal.NotAvailable},
		{"Order #12", internal.NotAvailable},
	}
	for _, tc := range cases {
		t.Run(tc.subject, func(t *testing.T) {
			assert.Equal(t, tc.want, e.Extract("", tc.subject).OrderNumber)
		})
	}
}

func TestExtractLineItem(t *testing.T) {
	rec := Extract(page(table(row("A1", "Widget", "ignored", "$12.50", "3"))), "s")
	require.Len(t, rec.Items, 1)
	assert.Equal(t, internal.LineItem{ItemCode: "A1", Name: "Widget", Price: 12.5, Quantity: 3}, rec.Items[0])
}

func TestExtractDropsZeroAndEmptyFields(t *testing.T) {
	html := page(table(
		row("A1", "Widget", "", "$0.00", "3"),
		row("A2", "Gadget", "", "$5.00", "0"),
		row("", "Nameless", "", "$5.00", "1"),
		row("A4", "   ", "", "$5.00", "1"),
		row("A5", "Bad price", "", "call us", "1"),
		row("A6", "Bad qty", "", "$5", "many"),
		row("A7", "Keeper", "", "$5", "2"),
	))
	rec := Extract(html, "s")
	require.Len(t, rec.Items, 1)
	assert.Equal(t, "A7", rec.Items[0].ItemCode)
}

func TestExtractRequiresFiveCells(t *testing.T) {
	html := page(table(
		row("A1", "Widget", "x", "$12.50"),
		row("A2", "Wider", "x", "$2", "4", "extra", "more"),
	))
	rec := Extract(html, "s")
	require.Len(t, rec.Items, 1)
	assert.Equal(t, internal.LineItem{ItemCode: "A2", Name: "Wider", Price: 2, Quantity: 4}, rec.Items[0])
}

func TestExtractPreservesDocumentOrderAcrossTables(t *testing.T) {
	html := page(
		table(row("Z9", "Last alphabetically", "", "$1", "1")) +
			"<div><p>between</p></div>" +
			table(
				row("Subtotal", "", "", "", ""),
				row("A1", "First alphabetically", "", "$2", "2"),
			) +
			table(row("Footer", "Contact us", "", "$ 3.00 ", " 1 ")),
	)
	rec := Extract(html, "s")
	codes := make([]string, 0, len(rec.Items))
	for _, it := range rec.Items {
		codes = append(codes, it.ItemCode)
	}
	assert.Equal(t, []string{"Z9", "A1", "Footer"}, codes)
	assert.Equal(t, 3.0, rec.Items[2].Price)
}

func TestExtractPriceAndQuantityParsing(t *testing.T) {
	cases := []struct {
		name      string
		price     string
		qty       string
		wantPrice float64
		wantQty   int
		wantItem  bool
	}{
		{name: "plain", price: "12.50", qty: "3", wantPrice: 12.5, wantQty: 3, wantItem: true},
		{name: "dollar and spaces", price: "  $7.25  ", qty: " 2 ", wantPrice: 7.25, wantQty: 2, wantItem: true},
		{name: "trailing text", price: "$4.00 USD", qty: "5 pcs", wantPrice: 4, wantQty: 5, wantItem: true},
		{name: "decimal quantity truncates", price: "$1", qty: "2.9", wantPrice: 1, wantQty: 2, wantItem: true},
		{name: "thousands separator stops price", price: "$1,299.00", qty: "1", wantPrice: 1, wantQty: 1, wantItem: true},
		{name: "negative price", price: "-$5", qty: "1", wantItem: false},
		{name: "negative quantity", price: "$5", qty: "-1", wantItem: false},
		{name: "zero price", price: "$0.00", qty: "1", wantItem: false},
		{name: "zero quantity", price: "$3", qty: "0", wantItem: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := Extract(page(table(row("C1", "Thing", "", tc.price, tc.qty))), "s")
			if !tc.wantItem {
				assert.Empty(t, rec.Items)
				return
			}
			require.Len(t, rec.Items, 1)
			assert.Equal(t, tc.wantPrice, rec.Items[0].Price)
			assert.Equal(t, tc.wantQty, rec.Items[0].Quantity)
		})
	}
}

func TestExtractTotal(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "thousands", body: "<p>Total: $1,234.56</p>", want: "1234.56"},
		{name: "millions", body: "<p>TOTAL:$1,234,567.00</p>", want: "1234567.00"},
		{name: "split cells", body: table(row("Total:", "$99.10")), want: "99.10"},
		{name: "newline between", body: "<p>total:\n   $5</p>", want: "5"},
		{name: "nbsp between", body: "<p>Total:&nbsp;$1,234.56</p>", want: "1234.56"},
		{name: "nbsp and space", body: "<p>Total: &nbsp;$5.00</p>", want: "5.00"},
		{name: "nbsp in next cell", body: "<table><tr><td>Total:</td><td>&nbsp;$77.25</td></tr></table>", want: "77.25"},
		{name: "first match wins", body: "<p>Subtotal: $10.00</p><p>Total: $12.00</p>", want: "10.00"},
		{name: "missing label", body: "<p>Amount due $50.00</p>", want: internal.NotAvailable},
		{name: "missing colon", body: "<p>Total $50.00</p>", want: internal.NotAvailable},
		{name: "missing dollar", body: "<p>Total: 50.00</p>", want: internal.NotAvailable},
		{name: "no digits", body: "<p>Total: $,</p>", want: internal.NotAvailable},
		{name: "outside body ignored", body: "", want: internal.NotAvailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			html := "<html><head><title>Total: $1.00</title></head><body>" + tc.body + "</body></html>"
			assert.Equal(t, tc.want, Extract(html, "s").TotalAmount)
		})
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	html := page(table(
		row("A1", "Widget", "", "$12.50", "3"),
		row("B2", "Bracket", "", "$3", "4"),
	) + "<p>Total: $49.50</p>")

	first := Extract(html, "Invoice 1")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Extract(html, "Invoice 1"))
	}
}

func TestHasLineItemShape(t *testing.T) {
	assert.False(t, hasLineItemShape(nil))
	assert.False(t, hasLineItemShape([]string{"a", "b", "c", "d"}))
	assert.True(t, hasLineItemShape([]string{"a", "b", "c", "d", "e"}))
	assert.True(t, hasLineItemShape([]string{"", "", "", "", "", ""}))
}

func TestIsValidLineItem(t *testing.T) {
	valid := internal.LineItem{ItemCode: "A1", Name: "Widget", Price: 0.01, Quantity: 1}
	assert.True(t, isValidLineItem(valid))

	for name, mutate := range map[string]func(*internal.LineItem){
		"no code":  func(it *internal.LineItem) { it.ItemCode = "" },
		"no name":  func(it *internal.LineItem) { it.Name = "" },
		"no price": func(it *internal.LineItem) { it.Price = 0 },
		"no qty":   func(it *internal.LineItem) { it.Quantity = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			it := valid
			mutate(&it)
			assert.False(t, isValidLineItem(it))
		})
	}
}

func TestRowCellsUsesTdOnly(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page(
		"<table><tr><th>Code</th><td> A1 </td><td>\n Widget\n</td></tr></table>",
	)))
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "Widget"}, rowCells(doc.Find("tr").First()))
}
