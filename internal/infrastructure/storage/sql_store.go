package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
	"ThreatScanner/pkg/logger"
)

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	// DialectPostgres uses lib/pq with $n placeholders.
	DialectPostgres Dialect = "postgres"
	// DialectSQLite uses modernc.org/sqlite with ? placeholders.
	DialectSQLite Dialect = "sqlite"
)

const slotTable = domain.SlotNamespace

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps dialect and filesystem in package state.
var migrateMu sync.Mutex

// SQLStore persists slots into a relational table, one row per occupied slot.
type SQLStore struct {
	db         *sql.DB
	dialect    Dialect
	builder    sq.StatementBuilderType
	migrateLog *log.Logger
}

var _ ports.SlotStore = (*SQLStore)(nil)

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	builder := sq.StatementBuilder
	switch dialect {
	case DialectPostgres:
		builder = builder.PlaceholderFormat(sq.Dollar)
	case DialectSQLite:
		builder = builder.PlaceholderFormat(sq.Question)
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	return &SQLStore{
		db:         db,
		dialect:    dialect,
		builder:    builder,
		migrateLog: logger.New("migrate"),
	}, nil
}

// OpenSQLStore opens the database, verifies connectivity and applies migrations.
func OpenSQLStore(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	driver := string(dialect)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if dialect == DialectSQLite {
		// a single connection keeps in-memory databases shared and serializes writers
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	store, err := NewSQLStore(db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Migrate applies the embedded schema migrations.
func (s *SQLStore) Migrate(ctx context.Context) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(s.migrateLog)
	gooseDialect := "postgres"
	if s.dialect == DialectSQLite {
		gooseDialect = "sqlite3"
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// ApplySlots writes the batch inside one transaction; any failure rolls every write back.
// Rows whose slot is not part of the batch are removed in the same transaction.
func (s *SQLStore) ApplySlots(ctx context.Context, writes []domain.SlotWrite) (err error) {
	if s.db == nil {
		return fmt.Errorf("sql store is not configured")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	keys := make([]string, 0, len(writes))
	for _, w := range writes {
		keys = append(keys, w.Key)
		query, args, buildErr := s.statementFor(w)
		if buildErr != nil {
			return fmt.Errorf("build statement for %s: %w", w.Key, buildErr)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("write slot %s: %w", w.Key, err)
		}
	}

	query, args, buildErr := s.builder.Delete(slotTable).Where(sq.NotEq{"slot": keys}).ToSql()
	if buildErr != nil {
		return fmt.Errorf("build stale slot delete: %w", buildErr)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear stale slots: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit slots: %w", err)
	}
	return nil
}

func (s *SQLStore) statementFor(w domain.SlotWrite) (string, []interface{}, error) {
	if w.Record == nil {
		return s.builder.Delete(slotTable).Where(sq.Eq{"slot": w.Key}).ToSql()
	}

	document, err := json.Marshal(w.Record)
	if err != nil {
		return "", nil, fmt.Errorf("encode record: %w", err)
	}
	return s.builder.Insert(slotTable).
		Columns("slot", "threat_id", "category", "severity", "document", "updated_at").
		Values(w.Key, w.Record.ID, string(w.Record.Category), w.Record.Severity, string(document),
			w.Record.UpdatedAt.UTC().Format(time.RFC3339Nano)).
		Suffix(`ON CONFLICT (slot) DO UPDATE SET
			threat_id = EXCLUDED.threat_id,
			category = EXCLUDED.category,
			severity = EXCLUDED.severity,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
}

// LoadSlots reads every occupied slot ordered by key.
func (s *SQLStore) LoadSlots(ctx context.Context) ([]domain.Slot, error) {
	if s.db == nil {
		return nil, nil
	}

	query, args, err := s.builder.Select("slot", "document").From(slotTable).OrderBy("slot").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}

	var slots []domain.Slot
	for rows.Next() {
		var key, document string
		if err := rows.Scan(&key, &document); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		var rec domain.ThreatRecord
		if err := json.Unmarshal([]byte(document), &rec); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("decode slot %s: %w", key, err)
		}
		slots = append(slots, domain.Slot{Key: key, Record: &rec})
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return slots, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
