package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"sitestock/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS projects (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS materials (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  projectId INTEGER NOT NULL,
  name TEXT NOT NULL,
  unit TEXT NOT NULL DEFAULT '',
  plannedQty REAL NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(projectId, name),
  FOREIGN KEY(projectId) REFERENCES projects(id)
);

CREATE TABLE IF NOT EXISTS shipments (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  projectId INTEGER NOT NULL,
  materialId INTEGER,
  materialName TEXT NOT NULL,
  qty REAL NOT NULL CHECK (qty > 0),
  unit TEXT NOT NULL DEFAULT '',
  receivedAt TEXT NOT NULL,
  supplier TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL,
  rawLine TEXT NOT NULL DEFAULT '',
  matchScore INTEGER NOT NULL DEFAULT 0,
  noteRef TEXT NOT NULL DEFAULT '',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(projectId) REFERENCES projects(id),
  FOREIGN KEY(materialId) REFERENCES materials(id)
);
CREATE INDEX IF NOT EXISTS idx_shipments_project ON shipments(projectId);
CREATE INDEX IF NOT EXISTS idx_shipments_noteRef ON shipments(noteRef);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);
CREATE INDEX IF NOT EXISTS idx_emails_hash ON emails(hash);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  kind TEXT NOT NULL,
  projectId INTEGER,
  ref TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) CreateProject(name string) (internal.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return internal.Project{}, errors.New("project name is empty")
	}
	result, err := d.conn.Exec(`INSERT INTO projects (name) VALUES (?)`, name)
	if err != nil {
		return internal.Project{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return internal.Project{}, err
	}
	p, err := d.GetProject(int(id))
	if err != nil {
		return internal.Project{}, err
	}
	if p == nil {
		return internal.Project{}, errors.New("failed to create project")
	}
	return *p, nil
}

func (d *DB) GetProject(id int) (*internal.Project, error) {
	var p internal.Project
	err := d.conn.QueryRow(`SELECT id, name, createdAt FROM projects WHERE id = ?`, id).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) MustProject(id int) (internal.Project, error) {
	p, err := d.GetProject(id)
	if err != nil {
		return internal.Project{}, err
	}
	if p == nil {
		return internal.Project{}, fmt.Errorf("project not found: id=%d", id)
	}
	return *p, nil
}

func (d *DB) ListProjects() ([]internal.Project, error) {
	rows, err := d.conn.Query(`SELECT id, name, createdAt FROM projects ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Project
	for rows.Next() {
		var p internal.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertMaterials writes plan rows for a project. A material with a name the
// project already has keeps its id and takes the new unit and quantity.
func (d *DB) UpsertMaterials(projectID int, materials []internal.MaterialRecord) (int, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO materials (projectId, name, unit, plannedQty)
VALUES (?, ?, ?, ?)
ON CONFLICT(projectId, name) DO UPDATE SET
  unit=excluded.unit,
  plannedQty=excluded.plannedQty,
  updatedAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	n := 0
	for _, m := range materials {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			continue
		}
		if _, err := stmt.Exec(projectID, name, strings.TrimSpace(m.Unit), m.PlannedQty); err != nil {
			return 0, err
		}
		n++
	}

	return n, tx.Commit()
}

// ListMaterials returns the plan of a project in insertion order.
func (d *DB) ListMaterials(projectID int) ([]internal.MaterialRecord, error) {
	rows, err := d.conn.Query(`
SELECT id, projectId, name, unit, plannedQty
FROM materials WHERE projectId = ? ORDER BY id ASC
`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.MaterialRecord
	for rows.Next() {
		var m internal.MaterialRecord
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Unit, &m.PlannedQty); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (d *DB) PlannedMaterials(projectID int) ([]internal.PlannedMaterial, error) {
	materials, err := d.ListMaterials(projectID)
	if err != nil {
		return nil, err
	}
	out := make([]internal.PlannedMaterial, 0, len(materials))
	for _, m := range materials {
		out = append(out, m.Planned())
	}
	return out, nil
}

// ReplaceNoteShipments writes the ledger rows of one delivery note. Rows
// written earlier under the same non-empty noteRef are removed in the same
// transaction, so a failed write leaves the previous import in place.
func (d *DB) ReplaceNoteShipments(projectID int, noteRef string, shipments []internal.Shipment) (int, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if noteRef != "" {
		if _, err := tx.Exec(`DELETE FROM shipments WHERE projectId = ? AND noteRef = ?`, projectID, noteRef); err != nil {
			return 0, err
		}
	}

	stmt, err := tx.Prepare(`
INSERT INTO shipments (projectId, materialId, materialName, qty, unit, receivedAt, supplier, source, rawLine, matchScore, noteRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, s := range shipments {
		if _, err := stmt.Exec(projectID, s.MaterialID, s.MaterialName, s.Qty, s.Unit, s.ReceivedAt, s.Supplier, string(s.Source), s.RawLine, s.MatchScore, noteRef); err != nil {
			return 0, fmt.Errorf("write shipment %d of note %q: %w", i+1, noteRef, err)
		}
	}

	return len(shipments), tx.Commit()
}

func (d *DB) ListShipments(projectID int) ([]internal.Shipment, error) {
	rows, err := d.conn.Query(`
SELECT id, projectId, materialId, materialName, qty, unit, receivedAt, supplier, source, rawLine, matchScore, noteRef
FROM shipments WHERE projectId = ? ORDER BY receivedAt ASC, id ASC
`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Shipment
	for rows.Next() {
		var s internal.Shipment
		var source string
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.MaterialID, &s.MaterialName, &s.Qty, &s.Unit, &s.ReceivedAt, &s.Supplier, &source, &s.RawLine, &s.MatchScore, &s.NoteRef); err != nil {
			return nil, err
		}
		s.Source = internal.ShipmentSource(source)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

const emailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

func scanEmail(scan func(dest ...any) error) (internal.EmailRow, error) {
	var row internal.EmailRow
	var subject, sender, receivedAt sql.NullString
	err := scan(&row.ID, &row.Provider, &row.MessageID, &subject, &sender, &receivedAt, &row.Hash, &row.Status, &row.RawRef)
	row.Subject = subject.String
	row.Sender = sender.String
	row.ReceivedAt = receivedAt.String
	return row, err
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetEmailByHash returns the earliest message indexed with the given content
// hash under a different message id, or nil.
func (d *DB) GetEmailByHash(hash, exceptMessageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE hash = ? AND messageId <> ? ORDER BY id ASC LIMIT 1`, hash, exceptMessageID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetEmailByID(id int) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`SELECT `+emailColumns+` FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		row, err := scanEmail(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) InsertRun(run internal.RunLog) error {
	timingsJSON, _ := json.Marshal(run.Timings)
	countsJSON, _ := json.Marshal(run.Counts)
	var projectID *int
	if run.ProjectID > 0 {
		projectID = &run.ProjectID
	}
	_, err := d.conn.Exec(`
INSERT INTO runs (traceId, kind, projectId, ref, status, timingsJson, countsJson)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, run.TraceID, run.Kind, projectID, run.Ref, run.Status, string(timingsJSON), string(countsJSON))
	return err
}

// ListRuns returns the most recent runs of a project, newest first.
func (d *DB) ListRuns(projectID, limit int) ([]internal.RunLog, error) {
	rows, err := d.conn.Query(`
SELECT traceId, kind, COALESCE(projectId, 0), ref, status, timingsJson, countsJson, createdAt
FROM runs WHERE projectId = ? ORDER BY id DESC LIMIT ?
`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunLog
	for rows.Next() {
		var run internal.RunLog
		var timingsJSON, countsJSON string
		if err := rows.Scan(&run.TraceID, &run.Kind, &run.ProjectID, &run.Ref, &run.Status, &timingsJSON, &countsJSON, &run.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(timingsJSON), &run.Timings)
		_ = json.Unmarshal([]byte(countsJSON), &run.Counts)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func stockURLKey(projectID int) string {
	return "stock_url:" + strconv.Itoa(projectID)
}

// LastStockURL returns the stock sheet reference saved for a project, or ""
// when none was saved.
func (d *DB) LastStockURL(projectID int) (string, error) {
	v, err := d.GetMetadata(stockURLKey(projectID))
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

func (d *DB) SetLastStockURL(projectID int, url string) error {
	return d.SetMetadata(stockURLKey(projectID), strings.TrimSpace(url))
}
