package pipeline

import (
	"golang.org/x/sync/errgroup"

	"invoicemail/internal"
)

type ExtractInput struct {
	HTML        string
	Subject     string
	Passthrough []internal.PassthroughField
}

// ExtractAll runs Extract over inputs with at most workers goroutines. The
// result at index i always belongs to inputs[i].
func (e Extractor) ExtractAll(inputs []ExtractInput, workers int) []internal.InvoiceRecord {
	out := make([]internal.InvoiceRecord, len(inputs))
	if workers <= 0 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range inputs {
		i := i
		g.Go(func() error {
			record := e.Extract(inputs[i].HTML, inputs[i].Subject)
			record.Passthrough = inputs[i].Passthrough
			out[i] = record
			return nil
		})
	}
	_ = g.Wait()
	return out
}
