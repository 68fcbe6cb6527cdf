package connectors

import (
	"github.com/rs/zerolog"

	"sitestock/internal/storage"
)

type FetchService struct {
	db        *storage.DB
	connector MailConnector
	store     *MailStore
	log       zerolog.Logger
}

type FetchResult struct {
	Fetched    int
	New        int
	Known      int
	Duplicates int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log zerolog.Logger) *FetchService {
	return &FetchService{
		db:        db,
		connector: connector,
		store:     NewMailStore(db, rawMailDir),
		log:       log,
	}
}

// FetchAndStore saves unseen messages for later processing. A message that
// is already indexed keeps its status; a resent copy of an indexed message
// is stored as a duplicate and never processed.
func (s *FetchService) FetchAndStore(mailbox string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchUnseen(mailbox, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		existing, err := s.db.GetEmailByProviderMessageID(msg.Provider, msg.MessageID)
		if err != nil {
			return res, err
		}
		stored, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		switch {
		case existing != nil:
			res.Known++
		case stored.DuplicateOf != 0:
			res.Duplicates++
			s.log.Info().Str("messageId", msg.MessageID).Int("duplicateOf", stored.DuplicateOf).Msg("same note received again")
		default:
			res.New++
			s.log.Debug().Str("messageId", msg.MessageID).Str("subject", msg.Subject).Msg("stored message")
		}
	}

	s.log.Info().Str("mailbox", mailbox).Int("fetched", res.Fetched).Int("new", res.New).Int("duplicates", res.Duplicates).Msg("mailbox fetched")
	return res, nil
}
