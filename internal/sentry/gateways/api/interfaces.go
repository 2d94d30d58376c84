package api

import (
	"context"

	"github.com/haukened/url-sentry/internal/sentry/domain"
	"github.com/haukened/url-sentry/internal/sentry/repos/blocklist"
	"github.com/haukened/url-sentry/internal/sentry/repos/journal"
)

// Classifier is the classification service behind the classify routes.
type Classifier interface {
	Classify(ctx context.Context, url string) domain.ClassificationResult
	ClassifyBatch(ctx context.Context, urls []string, limit int) []domain.ClassificationResult
}

// Blocklist is the administrative view of the blocklist.
type Blocklist interface {
	Add(name string) error
	Remove(name string) error
	List() ([]string, error)
	Stats() blocklist.RepoStats
}

// Detections journals classifications for the dashboard routes.
type Detections interface {
	Record(res domain.ClassificationResult) (journal.Detection, error)
	List(filter journal.Filter) ([]journal.Detection, error)
	Stats() (journal.Stats, error)
}

// Reports stores user requests to block a URL.
type Reports interface {
	Submit(r journal.Report) (journal.Report, error)
	List() ([]journal.Report, error)
}
