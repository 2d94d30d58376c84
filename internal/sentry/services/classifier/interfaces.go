package classifier

import (
	"context"

	"github.com/haukened/url-sentry/internal/sentry/domain"
)

// Blocklist answers whether an operator has explicitly blocked a domain.
type Blocklist interface {
	Contains(name string) bool
}

// ExtensionTable is the ordered table of trusted suffixes.
type ExtensionTable interface {
	// Lookup returns the first entry, in table order, that name ends with.
	Lookup(name string) (domain.ExtensionEntry, bool)
	// HasSuffix reports whether s ends with any trusted suffix.
	HasSuffix(s string) bool
}

// LivenessChecker reports whether a host currently resolves.
type LivenessChecker interface {
	IsLive(ctx context.Context, host string) bool
}

// Predictor is a pre-trained binary classifier; 1 means fraudulent.
type Predictor interface {
	Predict(x domain.FeatureVector) int
}
