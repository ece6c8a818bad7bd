package application

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/embedlab/powergate/internal/domain/model"
)

// maxChartRows caps the rolling chart window: the lab's bar chart becomes
// unreadable past this many entries, so the oldest rows fall off.
const maxChartRows = 25

// HistoryWindow maintains the rolling CSV of recent measurements that feeds
// the lab's bar chart. Each row is "date,shortsha,author,mean_amps", newest
// last. The file lives in the work directory and is republished after every
// successful measurement.
type HistoryWindow struct {
	path string
}

// NewHistoryWindow creates a HistoryWindow persisting to the given file path.
func NewHistoryWindow(path string) *HistoryWindow {
	return &HistoryWindow{path: path}
}

// Path returns the CSV file path, for publishing after Append.
func (h *HistoryWindow) Path() string { return h.path }

// Append adds a row for the given run and rewrites the file, dropping the
// oldest rows beyond the window cap.
func (h *HistoryWindow) Append(rec model.RunRecord, meanAmps float64) error {
	rows, err := h.read()
	if err != nil {
		return err
	}

	rows = append(rows, []string{
		rec.StartedAt.UTC().Format(time.DateOnly),
		rec.ShortSHA(),
		rec.TriggeredBy,
		strconv.FormatFloat(meanAmps, 'f', 4, 64),
	})
	if len(rows) > maxChartRows {
		rows = rows[len(rows)-maxChartRows:]
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("render history csv: %w", err)
	}

	if err := os.WriteFile(h.path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write history csv: %w", err)
	}
	return nil
}

// read loads the current window, tolerating a missing file (first run).
func (h *HistoryWindow) read() ([][]string, error) {
	f, err := os.Open(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 4
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read history csv: %w", err)
	}
	return rows, nil
}
