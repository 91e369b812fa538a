package pipeline

import "strings"

type DetectResult struct {
	IsInvoice bool
	Score     float64
	Reason    string
}

var (
	subjectKeywords = []string{"invoice", "order", "receipt", "bill"}
	bodyKeywords    = []string{"total:", "qty", "quantity", "price", "item"}
)

const invoiceThreshold = 0.45

// DetectInvoice scores how likely a mail is to carry an HTML invoice.
func DetectInvoice(subject, html string) DetectResult {
	subject = strings.ToLower(subject)
	html = strings.ToLower(html)

	if strings.TrimSpace(html) == "" {
		return DetectResult{Reason: "no_html_body"}
	}

	score := 0.0
	for _, kw := range subjectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.3
		}
	}
	for _, kw := range bodyKeywords {
		if strings.Contains(html, kw) {
			score += 0.1
		}
	}
	if strings.Contains(html, "<table") {
		score += 0.25
	}
	if score > 1 {
		score = 1
	}

	isInvoice := score >= invoiceThreshold
	reason := "rules_negative"
	if isInvoice {
		reason = "rules_positive"
	}

	return DetectResult{IsInvoice: isInvoice, Score: score, Reason: reason}
}
