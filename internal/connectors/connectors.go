package connectors

import (
	"context"

	"invoicemail/internal"
)

type MailConnector interface {
	FetchInbox(ctx context.Context, req internal.FetchRequest) ([]internal.FetchedMailMessage, error)
}
