package pipeline

import (
	"time"

	"github.com/rs/zerolog/log"

	"invoicemail/internal"
	"invoicemail/internal/config"
	"invoicemail/internal/storage"
)

type ExportService struct {
	db  *storage.DB
	cfg config.Config
}

func NewExportService(db *storage.DB, cfg config.Config) *ExportService {
	return &ExportService{db: db, cfg: cfg}
}

type ExportResult struct {
	Records  int
	Rows     int
	JSONPath string
	XLSXPath string
}

// ExportAll writes every processed or previously exported invoice to a JSON
// snapshot and an xlsx sheet, then marks the newly included emails exported.
// Empty paths fall back to the defaults under OutputDir.
func (s *ExportService) ExportAll(provider, jsonPath, xlsxPath string) (ExportResult, error) {
	defJSON, defXLSX := DefaultExportPaths(s.cfg.OutputDir, s.cfg.InvoiceSource)
	if jsonPath == "" {
		jsonPath = defJSON
	}
	if xlsxPath == "" {
		xlsxPath = defXLSX
	}

	records, emailIDs, err := s.db.ListInvoices(storage.InvoiceFilter{
		Provider: provider,
		Statuses: []internal.EmailStatus{internal.StatusProcessed, internal.StatusExported},
	})
	if err != nil {
		return ExportResult{}, err
	}

	if err := WriteJSONSnapshot(records, jsonPath); err != nil {
		return ExportResult{}, err
	}
	rows := Flatten(records)
	if err := ExportRowsToXLSX(rows, s.cfg.InvoiceSource, xlsxPath); err != nil {
		return ExportResult{}, err
	}

	for _, id := range emailIDs {
		if err := s.db.UpdateEmailStatus(id, internal.StatusExported); err != nil {
			return ExportResult{}, err
		}
	}
	_ = s.db.SetMetadata("export.last_run", time.Now().UTC().Format(time.RFC3339))

	log.Info().Int("records", len(records)).Int("rows", len(rows)).Str("json", jsonPath).Str("xlsx", xlsxPath).Msg("export complete")
	return ExportResult{Records: len(records), Rows: len(rows), JSONPath: jsonPath, XLSXPath: xlsxPath}, nil
}
