package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"invoicemail/internal"
	"invoicemail/internal/storage"
)

// MailStoreService keeps raw messages on disk, content-addressed by sha256
// and fanned out by the first two hex digits.
type MailStoreService struct {
	db      *storage.DB
	baseDir string
}

func NewMailStoreService(db *storage.DB, rawMailDir string) *MailStoreService {
	return &MailStoreService{db: db, baseDir: rawMailDir}
}

// Store saves msg.Raw unless an identical message is already on disk, then
// records the email. A known message keeps its processing status.
func (s *MailStoreService) Store(msg internal.FetchedMailMessage) (internal.EmailRow, error) {
	if len(msg.Raw) == 0 {
		return internal.EmailRow{}, fmt.Errorf("message %s has no raw content", msg.MessageID)
	}

	sum := sha256.Sum256(msg.Raw)
	digest := hex.EncodeToString(sum[:])
	rawRef := s.RawPath(digest)

	if err := writeOnce(rawRef, msg.Raw); err != nil {
		return internal.EmailRow{}, fmt.Errorf("store raw message %s: %w", msg.MessageID, err)
	}

	return s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, digest, rawRef, internal.StatusFetched)
}

func (s *MailStoreService) RawPath(digest string) string {
	return filepath.Join(s.baseDir, digest[:2], digest+".eml")
}

// writeOnce creates path with blob via a temp file and rename, so readers
// never see a partial message.
func writeOnce(path string, blob []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".incoming-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
