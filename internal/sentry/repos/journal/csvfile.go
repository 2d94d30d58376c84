package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// TimeLayout is the timestamp format of every journal file.
const TimeLayout = "2006-01-02 15:04:05"

// appendRow writes row to the CSV file at path, creating the file (with header)
// and its directory when needed.
func appendRow(path string, header, row []string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat journal: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write journal header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write journal row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// readRows returns every data row of the CSV file at path, skipping the header
// when its first cell matches header[0]. A missing file has no rows.
func readRows(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read journal %s: %w", path, err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 && rows[0][0] == header[0] {
		rows = rows[1:]
	}
	return rows, nil
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
