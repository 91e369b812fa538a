package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"invoicemail/internal"
)

// ExtractFromFiles reads each input as an HTML body, or as a raw message when
// it ends in .eml, and extracts one record per file. subject overrides the
// message subject when set.
func (e Extractor) ExtractFromFiles(paths []string, subject string, workers int) ([]internal.InvoiceRecord, error) {
	inputs := make([]ExtractInput, 0, len(paths))
	for _, path := range paths {
		blob, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		input := ExtractInput{
			HTML:        string(blob),
			Subject:     subject,
			Passthrough: []internal.PassthroughField{{Name: "file", Value: filepath.Base(path)}},
		}
		if strings.EqualFold(filepath.Ext(path), ".eml") {
			html, mailSubject, err := ReadInvoiceMail(blob)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			input.HTML = html
			if input.Subject == "" {
				input.Subject = mailSubject
			}
		}
		inputs = append(inputs, input)
	}
	return e.ExtractAll(inputs, workers), nil
}
