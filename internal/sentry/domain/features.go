package domain

// FeatureCount is the length of the vector the learned classifiers were trained on.
const FeatureCount = 8

// Feature indices. The order is part of the model contract and must never change.
const (
	FeatureURLLength = iota
	FeatureHasHTTPS
	FeatureDotCount
	FeatureHasAtSymbol
	FeatureHasDoubleSlashAfterScheme
	FeatureHasHyphen
	FeatureDigitCount
	FeatureTLDHeuristic
)

// FeatureVector is the fixed-length numeric input of the learned classifiers.
type FeatureVector [FeatureCount]float64

var featureNames = [FeatureCount]string{
	"url_length",
	"has_https",
	"dot_count",
	"has_at_symbol",
	"has_double_slash_after_scheme",
	"has_hyphen",
	"digit_count",
	"tld_heuristic_flag",
}

// FeatureName returns the stable name of feature i, or "" when i is out of range.
func FeatureName(i int) string {
	if i < 0 || i >= FeatureCount {
		return ""
	}
	return featureNames[i]
}

// Map returns the vector keyed by feature name, for logging.
func (v FeatureVector) Map() map[string]float64 {
	out := make(map[string]float64, FeatureCount)
	for i, name := range featureNames {
		out[name] = v[i]
	}
	return out
}
