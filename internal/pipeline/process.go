package pipeline

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/rs/zerolog/log"

	"invoicemail/internal"
	"invoicemail/internal/config"
	"invoicemail/internal/storage"
	"invoicemail/internal/util"
)

type ProcessingService struct {
	db        *storage.DB
	cfg       config.Config
	extractor Extractor
}

func NewProcessingService(db *storage.DB, cfg config.Config) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg, extractor: NewExtractor(cfg.OrderNumberMode)}
}

type ProcessResult struct {
	EmailID int
	Status  internal.EmailStatus
	Items   int
}

type BatchResult struct {
	Processed int
	Skipped   int
	Failed    int
	Items     int
}

func (s *ProcessingService) ProcessByProviderMessageID(provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(email)
}

// ProcessPending extracts invoices from fetched emails. A failing email is
// marked failed and the batch moves on.
func (s *ProcessingService) ProcessPending(limit int, provider string) (BatchResult, error) {
	pending, err := s.db.ListEmailsByStatus(internal.StatusFetched, provider, limit)
	if err != nil {
		return BatchResult{}, err
	}

	var out BatchResult
	for i, email := range pending {
		log.Info().Int("n", i+1).Int("of", len(pending)).Str("messageId", email.MessageID).Msg("processing email")

		res, err := s.ProcessEmail(email)
		if err != nil {
			out.Failed++
			log.Warn().Err(err).Int("emailId", email.ID).Msg("email processing failed")
			if err := s.db.UpdateEmailStatus(email.ID, internal.StatusFailed); err != nil {
				return out, err
			}
			continue
		}
		switch res.Status {
		case internal.StatusSkipped:
			out.Skipped++
		default:
			out.Processed++
			out.Items += res.Items
		}
	}
	return out, nil
}

func (s *ProcessingService) ProcessEmail(email internal.EmailRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("read raw mail %s: %w", email.RawRef, err)
	}

	html, subject, err := ReadInvoiceMail(raw)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("parse mime: %w", err)
	}
	subject = util.FirstNonEmpty(subject, email.Subject)

	if err := s.db.ClearInvoice(email.ID); err != nil {
		return ProcessResult{}, err
	}

	detect := DetectInvoice(subject, html)
	record := s.extractor.Extract(html, subject)
	if !detect.IsInvoice && hasInvoiceContent(record) {
		log.Debug().Int("emailId", email.ID).Float64("score", detect.Score).Msg("low detector score; keeping extracted invoice")
		detect.IsInvoice = true
	}
	if !detect.IsInvoice {
		log.Warn().Int("emailId", email.ID).Str("reason", detect.Reason).Float64("score", detect.Score).Msg("not an invoice; skipping")
		if err := s.db.UpdateEmailStatus(email.ID, internal.StatusSkipped); err != nil {
			return ProcessResult{}, err
		}
		_ = s.db.InsertRun(traceID(), email.ID, map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}, map[string]int{"items": 0})
		return ProcessResult{EmailID: email.ID, Status: internal.StatusSkipped}, nil
	}

	if _, err := s.db.ReplaceInvoice(email.ID, record); err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.UpdateEmailStatus(email.ID, internal.StatusProcessed); err != nil {
		return ProcessResult{}, err
	}

	hasTotal := 0
	if record.HasTotal() {
		hasTotal = 1
	}
	_ = s.db.InsertRun(traceID(), email.ID, map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}, map[string]int{"items": len(record.Items), "hasTotal": hasTotal})
	log.Debug().Int("emailId", email.ID).Str("orderNumber", record.OrderNumber).Str("total", record.TotalAmount).Int("items", len(record.Items)).Msg("invoice extracted")

	return ProcessResult{EmailID: email.ID, Status: internal.StatusProcessed, Items: len(record.Items)}, nil
}

// hasInvoiceContent reports whether extraction found a total or a line item.
func hasInvoiceContent(record internal.InvoiceRecord) bool {
	return record.HasTotal() || len(record.Items) > 0
}

// ReadInvoiceMail returns the decoded HTML body and subject of a raw message.
func ReadInvoiceMail(raw []byte) (string, string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return "", "", err
	}
	return env.HTML, env.GetHeader("Subject"), nil
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
