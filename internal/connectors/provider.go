package connectors

import (
	"context"
	"fmt"
	"strings"

	"invoicemail/internal"
	"invoicemail/internal/config"
	gmailconnector "invoicemail/internal/connectors/gmail"
	imapconnector "invoicemail/internal/connectors/imap"
)

func New(ctx context.Context, cfg config.Config, provider string) (MailConnector, error) {
	switch NormalizeProvider(provider) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func NormalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

// DefaultRequest builds the fetch request used when the caller gives no
// explicit query. Gmail gets the configured search; IMAP takes all unseen.
func DefaultRequest(cfg config.Config, provider, label string, max int) internal.FetchRequest {
	req := internal.FetchRequest{Label: label, Max: max}
	if NormalizeProvider(provider) == "gmail" {
		req.Query = cfg.GmailQuery
	}
	return req
}
