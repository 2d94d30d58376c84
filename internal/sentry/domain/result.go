package domain

import (
	"encoding/json"
	"fmt"
)

// Verdict is the top-level outcome of a classification.
type Verdict uint8

const (
	VerdictInvalidFormat Verdict = iota
	VerdictAlreadyBlocked
	VerdictSafe
	VerdictFraud
)

// String returns a stable, lowercase identifier for the verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictInvalidFormat:
		return "invalid_format"
	case VerdictAlreadyBlocked:
		return "blocked"
	case VerdictSafe:
		return "safe"
	case VerdictFraud:
		return "fraud"
	default:
		return fmt.Sprintf("Verdict(%d)", v)
	}
}

// ParseVerdict is the inverse of Verdict.String.
func ParseVerdict(s string) (Verdict, error) {
	switch s {
	case "invalid_format":
		return VerdictInvalidFormat, nil
	case "blocked":
		return VerdictAlreadyBlocked, nil
	case "safe":
		return VerdictSafe, nil
	case "fraud":
		return VerdictFraud, nil
	default:
		return 0, fmt.Errorf("unsupported verdict: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Verdict) UnmarshalText(b []byte) error {
	parsed, err := ParseVerdict(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Reason records which rule produced a Safe or Fraud verdict.
type Reason uint8

const (
	ReasonNone Reason = iota
	// ReasonTrustedExtension: suffix in the reputation table and the domain resolves.
	ReasonTrustedExtension
	// ReasonDeadDomain: suffix in the reputation table but the domain does not resolve.
	ReasonDeadDomain
	// ReasonUnknownExtension: learned fallback flagged the URL.
	ReasonUnknownExtension
	// ReasonMLModel: learned fallback found nothing suspicious.
	ReasonMLModel
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTrustedExtension:
		return "trusted_extension"
	case ReasonDeadDomain:
		return "dead_domain"
	case ReasonUnknownExtension:
		return "unknown_extension"
	case ReasonMLModel:
		return "ml_model"
	default:
		return fmt.Sprintf("Reason(%d)", r)
	}
}

// ClassificationResult is the value returned for every classification call.
// Extension is set only for the trusted-extension and dead-domain reasons.
type ClassificationResult struct {
	URL       string
	Domain    string
	Verdict   Verdict
	Reason    Reason
	Extension *ExtensionEntry
}

// InvalidFormat builds the result for input that fails the syntactic check.
func InvalidFormat(url, domain string) ClassificationResult {
	return ClassificationResult{URL: url, Domain: domain, Verdict: VerdictInvalidFormat}
}

// AlreadyBlocked builds the result for a blocklisted domain.
func AlreadyBlocked(url, domain string) ClassificationResult {
	return ClassificationResult{URL: url, Domain: domain, Verdict: VerdictAlreadyBlocked}
}

// Safe builds a Safe result. ext may be nil.
func Safe(url, domain string, reason Reason, ext *ExtensionEntry) ClassificationResult {
	return ClassificationResult{URL: url, Domain: domain, Verdict: VerdictSafe, Reason: reason, Extension: ext}
}

// Fraud builds a Fraud result. ext may be nil.
func Fraud(url, domain string, reason Reason, ext *ExtensionEntry) ClassificationResult {
	return ClassificationResult{URL: url, Domain: domain, Verdict: VerdictFraud, Reason: reason, Extension: ext}
}

// IsFraud reports whether the verdict is Fraud.
func (r ClassificationResult) IsFraud() bool { return r.Verdict == VerdictFraud }

// String renders the human-readable annotation shown to users and written to the journal.
func (r ClassificationResult) String() string {
	switch r.Verdict {
	case VerdictInvalidFormat:
		return "Undefined URL – Please provide a valid URL."
	case VerdictAlreadyBlocked:
		return "Already Blocked"
	case VerdictSafe:
		if r.Reason == ReasonTrustedExtension && r.Extension != nil {
			return fmt.Sprintf("Safe (%s)", r.Extension)
		}
		return "Safe (ML Model)"
	case VerdictFraud:
		if r.Reason == ReasonDeadDomain && r.Extension != nil {
			return fmt.Sprintf("Fraud (Dead Domain with Safe Extension: %s)", r.Extension)
		}
		return "Fraud (Unknown Extension)"
	default:
		return r.Verdict.String()
	}
}

type resultJSON struct {
	URL     string `json:"url"`
	Domain  string `json:"domain"`
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
	Suffix  string `json:"suffix,omitempty"`
	Label   string `json:"label,omitempty"`
	Message string `json:"message"`
}

// MarshalJSON implements json.Marshaler.
func (r ClassificationResult) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		URL:     r.URL,
		Domain:  r.Domain,
		Verdict: r.Verdict.String(),
		Reason:  r.Reason.String(),
		Message: r.String(),
	}
	if r.Extension != nil {
		out.Suffix = r.Extension.Suffix
		out.Label = r.Extension.Label
	}
	return json.Marshal(out)
}
