package connectors

import (
	"context"

	"github.com/rs/zerolog/log"

	"invoicemail/internal"
	"invoicemail/internal/storage"
)

type FetchService struct {
	db        *storage.DB
	connector MailConnector
	store     *MailStoreService
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector) *FetchService {
	return &FetchService{
		db:        db,
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, req internal.FetchRequest) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, req)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for i, msg := range messages {
		row, err := s.store.Store(msg)
		if err != nil {
			return FetchResult{Fetched: len(messages), Stored: stored}, err
		}
		stored++
		log.Debug().Int("n", i+1).Int("of", len(messages)).Int("emailId", row.ID).Str("messageId", msg.MessageID).Msg("stored message")
	}

	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}
