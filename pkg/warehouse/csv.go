// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package warehouse

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/velodata/funnelgen/pkg/log"
)

// utf8BOM prefixes every export so spreadsheet tools decode the Chinese
// headers correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Exporter writes warehouse tables as CSV files into one directory.
type Exporter struct {
	dir string
	log log.Logger
}

// NewExporter creates an exporter rooted at dir. The directory is
// created on first export.
func NewExporter(dir string, logger log.Logger) *Exporter {
	return &Exporter{dir: dir, log: logger}
}

// Export writes every table. Existing files are overwritten.
func (e *Exporter) Export(tables []Table) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	for _, t := range tables {
		if err := e.writeTable(t); err != nil {
			return err
		}
		e.log.Info("table exported",
			zap.String("file", t.CSVName()),
			zap.Int("rows", len(t.Rows)))
	}
	return nil
}

func (e *Exporter) writeTable(t Table) error {
	path := filepath.Join(e.dir, t.CSVName())
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", t.CSVName(), err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return fmt.Errorf("write %s: %w", t.CSVName(), err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		return fmt.Errorf("write %s header: %w", t.CSVName(), err)
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s row: %w", t.CSVName(), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", t.CSVName(), err)
	}
	return f.Close()
}
