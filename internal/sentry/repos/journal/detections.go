package journal

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haukened/url-sentry/internal/sentry/common/clock"
	"github.com/haukened/url-sentry/internal/sentry/common/log"
	"github.com/haukened/url-sentry/internal/sentry/domain"
)

var detectionHeader = []string{"Timestamp", "URL", "Result", "Verdict", "ID"}

// Detection is one journaled classification.
type Detection struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	URL       string         `json:"url"`
	Result    string         `json:"result"`
	Verdict   domain.Verdict `json:"verdict"`
}

// Filter narrows a detection listing by verdict.
type Filter string

const (
	FilterAll     Filter = ""
	FilterSafe    Filter = "safe"
	FilterFraud   Filter = "fraud"
	FilterBlocked Filter = "blocked"
)

// ParseFilter accepts "", "all", "total", "safe", "fraud" and "blocked", case-insensitively.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterAll, FilterSafe, FilterFraud, FilterBlocked:
		return f, nil
	case "all", "total":
		return FilterAll, nil
	default:
		return "", fmt.Errorf("unsupported filter: %q", s)
	}
}

func (f Filter) match(v domain.Verdict) bool {
	switch f {
	case FilterSafe:
		return v == domain.VerdictSafe
	case FilterFraud:
		return v == domain.VerdictFraud
	case FilterBlocked:
		return v == domain.VerdictAlreadyBlocked
	default:
		return true
	}
}

// DayCount is the number of detections per verdict on one calendar day.
type DayCount struct {
	Date    string `json:"date"`
	Safe    int    `json:"safe"`
	Fraud   int    `json:"fraud"`
	Blocked int    `json:"blocked"`
}

// Stats summarizes the detection journal.
type Stats struct {
	Total   int        `json:"total"`
	Safe    int        `json:"safe"`
	Fraud   int        `json:"fraud"`
	Blocked int        `json:"blocked"`
	Daily   []DayCount `json:"daily"`
}

// Detections is the append-only CSV log of classifications.
type Detections struct {
	mu     sync.Mutex
	path   string
	clock  clock.Clock
	logger log.Logger
}

// NewDetections returns a journal writing to path.
func NewDetections(path string, clk clock.Clock, logger log.Logger) *Detections {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Detections{path: path, clock: clk, logger: logger}
}

// Record appends res to the journal and returns the stored entry.
func (d *Detections) Record(res domain.ClassificationResult) (Detection, error) {
	det := Detection{
		ID:        uuid.NewString(),
		Timestamp: d.clock.Now(),
		URL:       res.URL,
		Result:    res.String(),
		Verdict:   res.Verdict,
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	row := []string{det.Timestamp.Format(TimeLayout), det.URL, det.Result, det.Verdict.String(), det.ID}
	if err := appendRow(d.path, detectionHeader, row); err != nil {
		return Detection{}, err
	}
	return det, nil
}

// List returns detections latest first, keeping only the most recent entry per URL.
func (d *Detections) List(filter Filter) ([]Detection, error) {
	all, err := d.readAll()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(all))
	out := make([]Detection, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		det := all[i]
		if _, dup := seen[det.URL]; dup {
			continue
		}
		seen[det.URL] = struct{}{}
		if filter.match(det.Verdict) {
			out = append(out, det)
		}
	}
	return out, nil
}

// Stats counts every journaled detection by verdict, overall and per day.
// Days are in ascending order.
func (d *Detections) Stats() (Stats, error) {
	all, err := d.readAll()
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	days := map[string]*DayCount{}
	for _, det := range all {
		day := det.Timestamp.Format("2006-01-02")
		dc, ok := days[day]
		if !ok {
			dc = &DayCount{Date: day}
			days[day] = dc
		}
		switch det.Verdict {
		case domain.VerdictSafe:
			st.Safe++
			dc.Safe++
		case domain.VerdictFraud:
			st.Fraud++
			dc.Fraud++
		case domain.VerdictAlreadyBlocked:
			st.Blocked++
			dc.Blocked++
		}
		st.Total++
	}

	st.Daily = make([]DayCount, 0, len(days))
	for _, dc := range days {
		st.Daily = append(st.Daily, *dc)
	}
	sort.Slice(st.Daily, func(i, j int) bool { return st.Daily[i].Date < st.Daily[j].Date })
	return st, nil
}

func (d *Detections) readAll() ([]Detection, error) {
	d.mu.Lock()
	rows, err := readRows(d.path, detectionHeader)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]Detection, 0, len(rows))
	for i, row := range rows {
		if len(row) < 3 {
			d.logger.Warn(map[string]any{"path": d.path, "row": i + 1}, "skipping short journal row")
			continue
		}
		det := Detection{
			Timestamp: parseTime(row[0]),
			URL:       row[1],
			Result:    row[2],
		}
		v, err := verdictOf(row)
		if err != nil {
			d.logger.Warn(map[string]any{"path": d.path, "row": i + 1, "error": err}, "skipping journal row")
			continue
		}
		det.Verdict = v
		if len(row) >= 5 {
			det.ID = row[4]
		}
		out = append(out, det)
	}
	return out, nil
}

// verdictOf reads the verdict column, falling back to the display text for rows
// written in the older four-column layout.
func verdictOf(row []string) (domain.Verdict, error) {
	if len(row) >= 4 {
		if v, err := domain.ParseVerdict(row[3]); err == nil {
			return v, nil
		}
	}
	result := strings.ToLower(row[2])
	switch {
	case strings.Contains(result, "blocked"):
		return domain.VerdictAlreadyBlocked, nil
	case strings.Contains(result, "fraud"):
		return domain.VerdictFraud, nil
	case strings.Contains(result, "safe"):
		return domain.VerdictSafe, nil
	case strings.Contains(result, "undefined url"):
		return domain.VerdictInvalidFormat, nil
	default:
		return 0, fmt.Errorf("unrecognized result %q", row[2])
	}
}
