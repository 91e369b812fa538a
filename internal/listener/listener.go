package listener

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"invoicemail/internal/config"
	"invoicemail/internal/connectors"
	"invoicemail/internal/pipeline"
	"invoicemail/internal/storage"
)

type Service struct {
	db  *storage.DB
	cfg config.Config

	newConnector func(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error)
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg, newConnector: connectors.New}
}

type CycleResult struct {
	Fetched   int
	Stored    int
	Processed int
	Skipped   int
	Failed    int
	Exported  int
}

// Run polls the configured provider until ctx is cancelled. A failed cycle
// is logged and retried on the next tick.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	for {
		if _, err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("listener cycle failed")
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider := connectors.NormalizeProvider(s.cfg.MailListenerProvider)
	conn, err := s.newConnector(ctx, s.cfg, provider)
	if err != nil {
		return CycleResult{}, err
	}

	fetch := connectors.NewFetchService(s.db, s.cfg.RawMailDir, conn)
	req := connectors.DefaultRequest(s.cfg, provider, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	fetched, err := fetch.FetchAndStore(ctx, req)
	if err != nil {
		return CycleResult{}, err
	}

	batch, err := pipeline.NewProcessingService(s.db, s.cfg).ProcessPending(s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return CycleResult{}, err
	}

	out := CycleResult{
		Fetched:   fetched.Fetched,
		Stored:    fetched.Stored,
		Processed: batch.Processed,
		Skipped:   batch.Skipped,
		Failed:    batch.Failed,
	}

	if s.cfg.MailListenerAutoExport && batch.Processed > 0 {
		exported, err := pipeline.NewExportService(s.db, s.cfg).ExportAll(provider, "", "")
		if err != nil {
			return out, err
		}
		out.Exported = exported.Records
	}

	log.Info().
		Str("provider", provider).
		Int("fetched", out.Fetched).
		Int("stored", out.Stored).
		Int("processed", out.Processed).
		Int("skipped", out.Skipped).
		Int("failed", out.Failed).
		Int("exported", out.Exported).
		Msg("listener cycle done")
	return out, nil
}
