package sqlite

import (
	"codeberg.org/miketth/xkbtray/pkg/historystore/sqlite/migrations"
	"codeberg.org/miketth/xkbtray/pkg/xkbtray"
	"context"
	"database/sql"
	"fmt"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"time"
)

type SwitchStore struct {
	db *sql.DB
}

func NewSwitchStore(filename string, log *zap.SugaredLogger) (*SwitchStore, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := migrations.Migrate(db, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SwitchStore{db: db}, nil
}

func (s *SwitchStore) Close() error {
	return s.db.Close()
}

func (s *SwitchStore) RecordSwitch(ctx context.Context, sw xkbtray.Switch) error {
	_, err := s.db.ExecContext(ctx,
		`insert into switches (at_nanos, idx, label) values (?, ?, ?)`,
		sw.At.UnixNano(), sw.Index, sw.Label)
	if err != nil {
		return fmt.Errorf("sqlite insert: %w", err)
	}

	return nil
}

// RecentSwitches returns up to limit switches, newest first. A limit of
// zero or less returns all of them.
func (s *SwitchStore) RecentSwitches(ctx context.Context, limit int) ([]xkbtray.Switch, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`select at_nanos, idx, label from switches order by at_nanos desc, id desc limit ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite select: %w", err)
	}
	defer rows.Close()

	var switches []xkbtray.Switch
	for rows.Next() {
		var (
			nanos int64
			sw    xkbtray.Switch
		)
		if err := rows.Scan(&nanos, &sw.Index, &sw.Label); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		sw.At = time.Unix(0, nanos)
		switches = append(switches, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite rows: %w", err)
	}

	return switches, nil
}

// SchemaVersion is the applied migration version.
func (s *SwitchStore) SchemaVersion() (uint, error) {
	return migrations.Version(s.db)
}

// Schema returns the statements that create the current schema.
func (s *SwitchStore) Schema(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select sql from sqlite_master where sql is not null order by type desc, name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite select schema: %w", err)
	}
	defer rows.Close()

	var statements []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		statements = append(statements, stmt)
	}

	return statements, rows.Err()
}
