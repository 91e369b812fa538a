package internal

// NotAvailable marks an order-level value that could not be found.
const NotAvailable = "N/A"

type EmailStatus string

const (
	StatusFetched   EmailStatus = "fetched"
	StatusProcessed EmailStatus = "processed"
	StatusSkipped   EmailStatus = "skipped"
	StatusFailed    EmailStatus = "failed"
	StatusExported  EmailStatus = "exported"
)

type LineItem struct {
	ItemCode string  `json:"itemCode"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// PassthroughField is an order-level value attached by the caller for export.
// It is never part of the JSON snapshot.
type PassthroughField struct {
	Name  string
	Value string
}

type InvoiceRecord struct {
	OrderNumber string     `json:"orderNumber"`
	TotalAmount string     `json:"totalAmount"`
	Items       []LineItem `json:"items"`

	Passthrough []PassthroughField `json:"-"`
}

// HasTotal reports whether a total amount was found in the source document.
func (r InvoiceRecord) HasTotal() bool {
	return r.TotalAmount != "" && r.TotalAmount != NotAvailable
}

type ExportRow struct {
	OrderNumber string
	TotalAmount string
	Passthrough []PassthroughField
	LineItem
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// FetchRequest narrows what a connector pulls from the mailbox.
type FetchRequest struct {
	Label string
	Query string
	Max   int
}
