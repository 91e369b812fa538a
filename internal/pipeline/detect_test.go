package pipeline

import "testing"

func TestDetectInvoice(t *testing.T) {
	cases := []struct {
		name    string
		subject string
		html    string
		want    bool
	}{
		{name: "invoice with table", subject: "Invoice #55", html: "<table><tr><td>Total: $1</td></tr></table>", want: true},
		{name: "table only", subject: "hello", html: "<table><tr><td>Item</td><td>Qty</td><td>Price</td></tr></table>", want: true},
		{name: "subject only", subject: "Your order receipt", html: "<p>thanks</p>", want: true},
		{name: "no html", subject: "Invoice", html: "", want: false},
		{name: "chatter", subject: "Lunch?", html: "<p>see you</p>", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectInvoice(tc.subject, tc.html)
			if got.IsInvoice != tc.want {
				t.Fatalf("got %+v want invoice=%v", got, tc.want)
			}
			if got.Score < 0 || got.Score > 1 {
				t.Fatalf("score out of range: %v", got.Score)
			}
		})
	}
}
