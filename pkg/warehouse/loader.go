// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/velodata/funnelgen/pkg/log"
)

// Load modes.
const (
	ModeFull        = "full"        // drop and recreate each table
	ModeIncremental = "incremental" // create if missing, append rows
)

const defaultInsertBatch = 1000

// Open connects to MySQL. The DSN is in go-sql-driver format, e.g.
// "user:pass@tcp(localhost:3306)/funnelgen". parseTime is forced on so
// DATE/DATETIME columns scan into time.Time.
func Open(dsn string) (*sql.DB, error) {
	if !strings.Contains(dsn, "parseTime") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "parseTime=true"
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// Loader bulk-inserts warehouse tables into MySQL.
type Loader struct {
	db        *sql.DB
	mode      string
	batchSize int
	log       log.Logger

	// ShowProgress draws a terminal progress bar per table.
	ShowProgress bool
}

// NewLoader creates a loader. mode is ModeFull or ModeIncremental.
func NewLoader(db *sql.DB, mode string, logger log.Logger) *Loader {
	if mode != ModeIncremental {
		mode = ModeFull
	}
	return &Loader{db: db, mode: mode, batchSize: defaultInsertBatch, log: logger}
}

// Load writes every table. In full mode each table is dropped and
// recreated first; in incremental mode rows are appended.
func (l *Loader) Load(ctx context.Context, tables []Table) error {
	for _, t := range tables {
		if err := l.loadTable(ctx, t); err != nil {
			return fmt.Errorf("load %s: %w", t.Name, err)
		}
	}
	return nil
}

func (l *Loader) loadTable(ctx context.Context, t Table) error {
	start := time.Now()

	if l.mode == ModeFull {
		if _, err := l.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+t.Name); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	create := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n%s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci",
		t.Name, t.DDL)
	if _, err := l.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	var bar *progressbar.ProgressBar
	if l.ShowProgress {
		bar = progressbar.NewOptions(len(t.Rows),
			progressbar.OptionSetDescription(t.Name),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionClearOnFinish(),
		)
	}

	for offset := 0; offset < len(t.Rows); offset += l.batchSize {
		end := offset + l.batchSize
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		if err := l.insertBatch(ctx, t, t.Rows[offset:end]); err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Add(end - offset)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	l.log.Info("table loaded",
		zap.String("table", t.Name),
		zap.String("mode", l.mode),
		zap.Int("rows", len(t.Rows)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (l *Loader) insertBatch(ctx context.Context, t Table, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	placeholder := "(" + strings.Repeat("?,", len(t.Columns)-1) + "?)"
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(t.Name)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(t.Columns, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(t.Columns))
	for i, row := range rows {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(placeholder)
		for _, v := range row {
			args = append(args, v)
		}
	}

	if _, err := l.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}
