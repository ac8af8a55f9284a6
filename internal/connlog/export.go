package connlog

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// Export returns every entry, newest first, as indented JSON.
func (l *Logger) Export() (string, error) {
	raw, err := json.MarshalIndent(l.GetLogs(Filter{}), "", "  ")
	if err != nil {
		return "", fmt.Errorf("connlog: export: %w", err)
	}
	return string(raw), nil
}

const exportSheet = "Logs"

var exportHeader = []any{"Time", "Level", "Category", "Message", "Duration (ms)", "Metadata", "Details"}

// ExportXLSX writes every entry, newest first, as a single-sheet workbook.
func (l *Logger) ExportXLSX(w io.Writer) error {
	entries := l.GetLogs(Filter{})

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("connlog: rename sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("connlog: write header: %w", err)
	}

	for i, e := range entries {
		var duration any
		if e.Duration != nil {
			duration = *e.Duration
		}
		row := []any{
			e.Timestamp.Format(time.RFC3339Nano),
			string(e.Level),
			string(e.Category),
			e.Message,
			duration,
			jsonCell(e.Metadata),
			jsonCell(e.Details),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("connlog: cell name: %w", err)
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("connlog: write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("connlog: write workbook: %w", err)
	}
	return nil
}

func jsonCell(v any) string {
	if v == nil {
		return ""
	}
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return ""
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
