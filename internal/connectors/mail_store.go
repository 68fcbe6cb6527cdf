package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"sitestock/internal"
	"sitestock/internal/storage"
)

const (
	StatusFetched   = "fetched"
	StatusDuplicate = "duplicate"
)

// MailStore files raw messages under <dir>/<provider>/<hash prefix>/ and
// indexes them for intake. Suppliers often resend the same delivery note
// under a new Message-ID; such a copy is indexed as a duplicate so the note
// is imported once.
type MailStore struct {
	db  *storage.DB
	dir string
}

type StoredMessage struct {
	Email internal.EmailRow
	// DuplicateOf is the id of the message with the same content, or 0.
	DuplicateOf int
}

func NewMailStore(db *storage.DB, dir string) *MailStore {
	return &MailStore{db: db, dir: dir}
}

func (s *MailStore) Store(msg internal.FetchedMailMessage) (StoredMessage, error) {
	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])

	rawPath, err := s.writeRaw(msg.Provider, hash, msg.Raw)
	if err != nil {
		return StoredMessage{}, err
	}

	status := StatusFetched
	original, err := s.db.GetEmailByHash(hash, msg.MessageID)
	if err != nil {
		return StoredMessage{}, err
	}
	if original != nil {
		status = StatusDuplicate
	}

	email, err := s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, status)
	if err != nil {
		return StoredMessage{}, err
	}
	stored := StoredMessage{Email: email}
	if original != nil {
		stored.DuplicateOf = original.ID
	}
	return stored, nil
}

func (s *MailStore) writeRaw(provider, hash string, raw []byte) (string, error) {
	dir := filepath.Join(s.dir, provider, hash[:2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, hash+".eml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}
	return path, os.WriteFile(path, raw, 0o644)
}
