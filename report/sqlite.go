package report

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Sink 结果输出
type Sink interface {
	Write(ctx context.Context, run Run, t Table) error
	Close(ctx context.Context) error
}

// SQLiteSink 单写连接，写操作串行
type SQLiteSink struct {
	conn    *sql.DB
	writeMu sync.Mutex
	runs    map[string]struct{}
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteSink, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	log.Infof("connected to SQLite database: %s", path)
	return &SQLiteSink{conn: conn, runs: make(map[string]struct{})}, nil
}

func (s *SQLiteSink) Write(ctx context.Context, run Run, t Table) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, ok := s.runs[run.ID]; !ok {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO runs (run_id, mode, source, created_utc) VALUES (?, ?, ?, ?)",
			run.ID, run.Mode, run.Source, run.CreatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO result_cells (run_id, table_name, row_idx, col_idx, col_name, value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, table_name, row_idx, col_idx) DO UPDATE SET
			col_name = excluded.col_name,
			value = excluded.value`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, row := range t.Rows {
		for j, v := range row {
			if _, err := stmt.ExecContext(ctx, run.ID, t.Name, i, j, t.Header[j], v); err != nil {
				return fmt.Errorf("failed to insert %s row %d: %w", t.Name, i, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.runs[run.ID] = struct{}{}
	log.Debugf("wrote %d rows of %s for run %s", t.Len(), t.Name, run.ID)
	return nil
}

// ReadTable 读回某次运行的结果表
func (s *SQLiteSink) ReadTable(ctx context.Context, runID, name string) (Table, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT row_idx, col_idx, col_name, value FROM result_cells
		WHERE run_id = ? AND table_name = ?
		ORDER BY row_idx, col_idx`, runID, name)
	if err != nil {
		return Table{}, fmt.Errorf("failed to query %s: %w", name, err)
	}
	defer rows.Close()
	t := Table{Name: name}
	for rows.Next() {
		var row, col int
		var colName, value string
		if err := rows.Scan(&row, &col, &colName, &value); err != nil {
			return Table{}, err
		}
		if row == 0 {
			t.Header = append(t.Header, colName)
		}
		for len(t.Rows) <= row {
			t.Rows = append(t.Rows, nil)
		}
		t.Rows[row] = append(t.Rows[row], value)
	}
	return t, rows.Err()
}

func (s *SQLiteSink) Close(context.Context) error {
	return s.conn.Close()
}
