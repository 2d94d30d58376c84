package journal

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/haukened/url-sentry/internal/sentry/common/clock"
)

// ErrInvalidReport is returned when a report is missing a field or has a malformed email.
var ErrInvalidReport = errors.New("invalid report")

var reportHeader = []string{"Timestamp", "URL", "User Name", "User Email"}

// Report is a user's request that an administrator block a URL.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
}

// Reports is the CSV log of block requests.
type Reports struct {
	mu       sync.Mutex
	path     string
	clock    clock.Clock
	validate *validator.Validate
}

// NewReports returns a report log writing to path.
func NewReports(path string, clk clock.Clock) *Reports {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Reports{
		path:     path,
		clock:    clk,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Submit validates r, stamps it with the current time and appends it.
func (s *Reports) Submit(r Report) (Report, error) {
	r.URL = strings.TrimSpace(r.URL)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	if err := s.validate.Struct(&r); err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	r.Timestamp = s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	row := []string{r.Timestamp.Format(TimeLayout), r.URL, r.Name, r.Email}
	if err := appendRow(s.path, reportHeader, row); err != nil {
		return Report{}, err
	}
	return r, nil
}

// List returns every report, latest first.
func (s *Reports) List() ([]Report, error) {
	s.mu.Lock()
	rows, err := readRows(s.path, reportHeader)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]Report, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 4 {
			continue
		}
		out = append(out, Report{Timestamp: parseTime(row[0]), URL: row[1], Name: row[2], Email: row[3]})
	}
	return out, nil
}
