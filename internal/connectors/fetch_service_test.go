package connectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicemail/internal"
	"invoicemail/internal/storage"
)

type stubConnector struct {
	messages []internal.FetchedMailMessage
	err      error
	got      internal.FetchRequest
}

func (s *stubConnector) FetchInbox(_ context.Context, req internal.FetchRequest) ([]internal.FetchedMailMessage, error) {
	s.got = req
	return s.messages, s.err
}

func TestFetchAndStore(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	raw := []byte("Subject: Invoice\r\n\r\nhello")
	conn := &stubConnector{messages: []internal.FetchedMailMessage{
		{Provider: "gmail", MessageID: "<1@x>", Subject: "Invoice", Raw: raw},
		{Provider: "gmail", MessageID: "<2@x>", Subject: "Invoice copy", Raw: raw},
	}}
	rawDir := filepath.Join(tmp, "raw")
	svc := NewFetchService(db, rawDir, conn)

	req := internal.FetchRequest{Label: "INBOX", Query: "subject:invoice", Max: 5}
	res, err := svc.FetchAndStore(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 2, Stored: 2}, res)
	assert.Equal(t, req, conn.got)

	entries, err := os.ReadDir(rawDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "identical content is stored once")

	rows, err := db.ListEmailsByStatus(internal.StatusFetched, "", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFetchAndStoreConnectorError(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer db.Close()

	svc := NewFetchService(db, t.TempDir(), &stubConnector{err: errors.New("quota")})
	_, err = svc.FetchAndStore(context.Background(), internal.FetchRequest{Max: 1})
	assert.EqualError(t, err, "quota")
}
