package classifier

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/haukened/url-sentry/internal/sentry/common/log"
	"github.com/haukened/url-sentry/internal/sentry/domain"
)

// DefaultBatchLimit caps concurrent classifications in ClassifyBatch when no limit is given.
const DefaultBatchLimit = 8

// Classifier decides whether a URL is blocked, safe or fraudulent.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	blocklist  Blocklist
	extensions ExtensionTable
	liveness   LivenessChecker
	forest     Predictor
	svm        Predictor
	logger     log.Logger
}

// Options wires a Classifier to its collaborators. All but Logger are required.
type Options struct {
	Blocklist  Blocklist
	Extensions ExtensionTable
	Liveness   LivenessChecker
	Forest     Predictor
	SVM        Predictor
	Logger     log.Logger
}

// New creates a Classifier, returning an error if a required collaborator is missing.
func New(opts Options) (*Classifier, error) {
	switch {
	case opts.Blocklist == nil:
		return nil, fmt.Errorf("classifier: blocklist is required")
	case opts.Extensions == nil:
		return nil, fmt.Errorf("classifier: extension table is required")
	case opts.Liveness == nil:
		return nil, fmt.Errorf("classifier: liveness checker is required")
	case opts.Forest == nil || opts.SVM == nil:
		return nil, fmt.Errorf("classifier: both predictors are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Classifier{
		blocklist:  opts.Blocklist,
		extensions: opts.Extensions,
		liveness:   opts.Liveness,
		forest:     opts.Forest,
		svm:        opts.SVM,
		logger:     opts.Logger,
	}, nil
}

// Classify returns the verdict for rawURL. Each tier short-circuits the ones after it:
// blocklist, then trusted suffix with liveness, then the learned models.
// It never fails; unresolvable hosts are signal, not errors.
func (c *Classifier) Classify(ctx context.Context, rawURL string) domain.ClassificationResult {
	// Lookups are bounded by the checker timeout, not by the caller.
	ctx = context.WithoutCancel(ctx)

	url := strings.ToLower(strings.TrimSpace(rawURL))
	parsed := domain.ParseURL(url)
	name := parsed.Domain

	var res domain.ClassificationResult
	switch {
	case !parsed.ValidFormat():
		res = domain.InvalidFormat(url, name)
	case c.blocklist.Contains(name):
		res = domain.AlreadyBlocked(url, name)
	default:
		res = c.classifyUnblocked(ctx, url, name)
	}

	c.logger.Debug(map[string]any{
		"url":     url,
		"domain":  name,
		"verdict": res.Verdict.String(),
		"reason":  res.Reason.String(),
	}, "url classified")
	return res
}

func (c *Classifier) classifyUnblocked(ctx context.Context, url, name string) domain.ClassificationResult {
	if entry, ok := c.extensions.Lookup(name); ok {
		if c.liveness.IsLive(ctx, name) {
			return domain.Safe(url, name, domain.ReasonTrustedExtension, &entry)
		}
		return domain.Fraud(url, name, domain.ReasonDeadDomain, &entry)
	}

	x := c.ExtractFeatures(ctx, url)
	rf := c.forest.Predict(x)
	svm := c.svm.Predict(x)
	tld := c.TLDHeuristic(ctx, url)

	c.logger.Debug(map[string]any{
		"url":      url,
		"features": x.Map(),
		"forest":   rf,
		"svm":      svm,
		"tld":      tld,
	}, "learned fallback evaluated")

	if rf == 1 || svm == 1 || tld == 1 {
		return domain.Fraud(url, name, domain.ReasonUnknownExtension, nil)
	}
	return domain.Safe(url, name, domain.ReasonMLModel, nil)
}

// ExtractFeatures computes the model input for rawURL. Everything except the last
// feature is syntactic; the last one is TLDHeuristic and may hit the network.
func (c *Classifier) ExtractFeatures(ctx context.Context, rawURL string) domain.FeatureVector {
	url := strings.ToLower(rawURL)

	var x domain.FeatureVector
	x[domain.FeatureURLLength] = float64(utf8.RuneCountInString(url))
	x[domain.FeatureHasHTTPS] = flag(strings.Contains(url, "https"))
	x[domain.FeatureDotCount] = float64(strings.Count(url, "."))
	x[domain.FeatureHasAtSymbol] = flag(strings.Contains(url, "@"))
	x[domain.FeatureHasDoubleSlashAfterScheme] = flag(strings.Contains(afterRunes(url, 8), "//"))
	x[domain.FeatureHasHyphen] = flag(strings.Contains(url, "-"))
	x[domain.FeatureDigitCount] = float64(countDigits(url))
	x[domain.FeatureTLDHeuristic] = float64(c.TLDHeuristic(ctx, url))
	return x
}

// TLDHeuristic returns 0 for URLs ending in a trusted suffix without any lookup.
// Otherwise it returns 0 if the URL's domain resolves and 1 if it does not.
func (c *Classifier) TLDHeuristic(ctx context.Context, rawURL string) int {
	url := strings.ToLower(rawURL)
	if c.extensions.HasSuffix(url) {
		return 0
	}
	if c.liveness.IsLive(ctx, domain.ParseURL(url).Domain) {
		return 0
	}
	return 1
}

// ClassifyBatch classifies urls concurrently, at most limit at a time, and returns
// the results in input order.
func (c *Classifier) ClassifyBatch(ctx context.Context, urls []string, limit int) []domain.ClassificationResult {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	results := make([]domain.ClassificationResult, len(urls))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = c.Classify(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// afterRunes returns s without its first n code points.
func afterRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[i:]
		}
		n--
	}
	return ""
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
