package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rfidmonitor/internal/config"
)

const recordColumns = `id, code, device, antenna, read_at, synced`

// matchColumns lists the columns GetByMatch may filter on.
var matchColumns = map[string]struct{}{
	"id":      {},
	"code":    {},
	"device":  {},
	"antenna": {},
	"synced":  {},
}

// ErrUnknownColumn is returned by GetByMatch for columns outside the whitelist.
var ErrUnknownColumn = errors.New("unknown column")

// Store manages tag reads backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the record database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert stores rec and sets its ID. A zero ReadAt is stamped with the
// current time.
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	if rec.ReadAt.IsZero() {
		rec.ReadAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rfid_records (code, device, antenna, read_at, synced) VALUES (?, ?, ?, ?, ?)`,
		rec.Code,
		rec.Device,
		rec.Antenna,
		rec.ReadAt.UTC().Format(time.RFC3339Nano),
		boolToInt(rec.Synced),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// Update persists changes to an existing record.
func (s *Store) Update(ctx context.Context, rec *Record) error {
	return updateRecord(ctx, s.db, rec)
}

// UpdateList persists several records in one transaction.
func (s *Store) UpdateList(ctx context.Context, records []*Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range records {
		if err := updateRecord(ctx, tx, rec); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit updates: %w", err)
	}
	return nil
}

// MarkSynced flags the given records as delivered.
func (s *Store) MarkSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE rfid_records SET synced = 1 WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rfid_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// GetByID fetches a record, returning nil when it does not exist.
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM rfid_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// GetAll returns every record ordered by id.
func (s *Store) GetAll(ctx context.Context) ([]*Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM rfid_records ORDER BY id`)
}

// GetByMatch returns records whose column equals value.
func (s *Store) GetByMatch(ctx context.Context, column string, value any) ([]*Record, error) {
	column = strings.ToLower(strings.TrimSpace(column))
	if _, ok := matchColumns[column]; !ok {
		return nil, fmt.Errorf("match %q: %w", column, ErrUnknownColumn)
	}
	if b, ok := value.(bool); ok {
		value = boolToInt(b)
	}
	return s.query(ctx, `SELECT `+recordColumns+` FROM rfid_records WHERE `+column+` = ? ORDER BY id`, value)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateRecord(ctx context.Context, db execer, rec *Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	if rec.ID == 0 {
		return fmt.Errorf("%w: update requires an id", ErrInvalidRecord)
	}
	_, err := db.ExecContext(ctx,
		`UPDATE rfid_records SET code = ?, device = ?, antenna = ?, read_at = ?, synced = ? WHERE id = ?`,
		rec.Code,
		rec.Device,
		rec.Antenna,
		rec.ReadAt.UTC().Format(time.RFC3339Nano),
		boolToInt(rec.Synced),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update record %d: %w", rec.ID, err)
	}
	return nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		rec       Record
		readAtRaw string
		synced    int64
	)
	if err := scanner.Scan(&rec.ID, &rec.Code, &rec.Device, &rec.Antenna, &readAtRaw, &synced); err != nil {
		return nil, err
	}
	readAt, err := time.Parse(time.RFC3339Nano, readAtRaw)
	if err != nil {
		return nil, fmt.Errorf("parse read_at %q: %w", readAtRaw, err)
	}
	rec.ReadAt = readAt
	rec.Synced = synced != 0
	return &rec, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
