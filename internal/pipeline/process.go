package pipeline

import (
	"fmt"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sitestock/internal"
	"sitestock/internal/config"
	"sitestock/internal/match"
	"sitestock/internal/storage"
	"sitestock/internal/util"
)

const RunKind = "intake"

type IntakeService struct {
	db  *storage.DB
	cfg config.Config
	log zerolog.Logger
	now func() time.Time
}

func NewIntakeService(db *storage.DB, cfg config.Config, log zerolog.Logger) *IntakeService {
	return &IntakeService{db: db, cfg: cfg, log: log, now: time.Now}
}

type ImportRequest struct {
	ProjectID  int
	Items      []internal.NoteItem
	NoteRef    string
	Supplier   string
	ReceivedAt string
}

type ImportResult struct {
	Lines     int
	Matched   int
	Unmatched int
	Skipped   int
}

// Import writes one ledger row per delivery line. Lines are matched to the
// project's planned materials with the shipment threshold; unmatched lines
// are kept without a material id. Importing the same NoteRef again replaces
// the rows written the first time, and a failed write keeps them.
func (s *IntakeService) Import(req ImportRequest) (ImportResult, error) {
	start := s.now()
	if _, err := s.db.MustProject(req.ProjectID); err != nil {
		return ImportResult{}, err
	}
	materials, err := s.db.ListMaterials(req.ProjectID)
	if err != nil {
		return ImportResult{}, err
	}

	byKey := map[string]internal.MaterialRecord{}
	names := make([]string, 0, len(materials))
	for _, m := range materials {
		key := util.NormalizeName(m.Name)
		if _, ok := byKey[key]; ok {
			continue
		}
		byKey[key] = m
		names = append(names, key)
	}
	matcher := match.NewMatcher(names, s.cfg.ShipmentMatchThreshold)

	receivedAt := req.ReceivedAt
	if receivedAt == "" {
		receivedAt = s.now().UTC().Format("2006-01-02")
	}

	res := ImportResult{}
	shipments := []internal.Shipment{}
	for _, line := range NormalizeItems(req.Items) {
		if line.Qty == nil || *line.Qty <= 0 || line.Key == "" {
			res.Skipped++
			continue
		}

		shipment := internal.Shipment{
			ProjectID:    req.ProjectID,
			MaterialName: util.CollapseSpaces(util.DerefString(line.Name)),
			Qty:          *line.Qty,
			Unit:         util.DerefString(line.Unit),
			ReceivedAt:   receivedAt,
			Supplier:     req.Supplier,
			Source:       line.Source,
			RawLine:      line.RawLine,
			NoteRef:      req.NoteRef,
		}
		if shipment.MaterialName == "" {
			shipment.MaterialName = line.RawLine
		}

		if best := matcher.Best(line.Key); best.OK {
			m := byKey[best.Name]
			shipment.MaterialID = util.IntPtr(m.ID)
			shipment.MaterialName = m.Name
			shipment.MatchScore = best.Score
			if shipment.Unit == "" {
				shipment.Unit = m.Unit
			}
			res.Matched++
		} else {
			res.Unmatched++
		}

		shipments = append(shipments, shipment)
	}

	written, err := s.db.ReplaceNoteShipments(req.ProjectID, req.NoteRef, shipments)
	if err != nil {
		return ImportResult{}, err
	}
	res.Lines = written

	if err := s.db.InsertRun(internal.RunLog{
		TraceID:   uuid.NewString(),
		Kind:      RunKind,
		ProjectID: req.ProjectID,
		Ref:       req.NoteRef,
		Status:    "ok",
		Timings:   map[string]float64{"totalMs": float64(s.now().Sub(start).Milliseconds())},
		Counts:    map[string]int{"lines": res.Lines, "matched": res.Matched, "unmatched": res.Unmatched, "skipped": res.Skipped},
	}); err != nil {
		s.log.Error().Err(err).Str("note", req.NoteRef).Msg("record intake run")
	}
	s.log.Info().
		Int("project", req.ProjectID).
		Str("note", req.NoteRef).
		Int("lines", res.Lines).
		Int("matched", res.Matched).
		Int("unmatched", res.Unmatched).
		Int("skipped", res.Skipped).
		Msg("delivery note imported")

	return res, nil
}

type ProcessResult struct {
	EmailID int
	IsNote  bool
	Import  ImportResult
}

func (s *IntakeService) ProcessByProviderMessageID(provider, messageID string, projectID int) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(email, projectID)
}

func (s *IntakeService) ProcessPending(limit int, projectID int) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	processedLines := 0
	for _, email := range pending {
		res, err := s.ProcessEmail(email, projectID)
		if err != nil {
			return processedEmails, processedLines, err
		}
		processedEmails++
		processedLines += res.Import.Lines
	}
	return processedEmails, processedLines, nil
}

// ProcessEmail imports a stored message as a delivery note for projectID.
// Messages that do not look like delivery notes are marked skipped.
func (s *IntakeService) ProcessEmail(email internal.EmailRow, projectID int) (ProcessResult, error) {
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	note, err := ExtractNoteFromRaw(raw)
	if err != nil {
		return ProcessResult{}, err
	}

	detect := DetectDeliveryNote(firstNonEmpty(note.Subject, email.Subject), note.Text, note.HTML, note.AttachmentNames)
	if !detect.IsNote || len(note.Items) == 0 {
		s.log.Debug().Int("email", email.ID).Int("score", detect.Score).Strs("signals", detect.Signals).Msg("not a delivery note")
		if err := s.db.UpdateEmailStatus(email.ID, "skipped"); err != nil {
			return ProcessResult{}, err
		}
		return ProcessResult{EmailID: email.ID}, nil
	}

	imported, err := s.Import(ImportRequest{
		ProjectID:  projectID,
		Items:      note.Items,
		NoteRef:    fmt.Sprintf("mail:%s:%s", email.Provider, email.MessageID),
		Supplier:   senderName(firstNonEmpty(note.From, email.Sender)),
		ReceivedAt: receivedDate(firstNonEmpty(email.ReceivedAt, note.Date)),
	})
	if err != nil {
		_ = s.db.UpdateEmailStatus(email.ID, "error")
		return ProcessResult{}, err
	}

	if err := s.db.UpdateEmailStatus(email.ID, "processed"); err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{EmailID: email.ID, IsNote: true, Import: imported}, nil
}

func senderName(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return strings.TrimSpace(from)
	}
	if addr.Name != "" {
		return addr.Name
	}
	return addr.Address
}

// receivedDate reduces an RFC 3339 or RFC 5322 timestamp to its date.
func receivedDate(value string) string {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02")
	}
	if t, err := mail.ParseDate(value); err == nil {
		return t.UTC().Format("2006-01-02")
	}
	if len(value) >= 10 {
		return value[:10]
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
