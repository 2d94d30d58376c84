package model

import (
	"fmt"
	"math"

	"github.com/haukened/url-sentry/internal/sentry/domain"
)

// Kernel names accepted in an SVC artifact.
const (
	KernelLinear = "linear"
	KernelRBF    = "rbf"
	KernelPoly   = "poly"
)

// SVC is a binary support vector classifier in dual form:
//
//	decision(x) = sum_i dual_coef[i] * K(sv[i], x) + intercept
//
// A positive decision predicts class 1.
type SVC struct {
	Kernel         string      `json:"kernel"`
	SupportVectors [][]float64 `json:"support_vectors"`
	DualCoef       []float64   `json:"dual_coef"`
	Intercept      float64     `json:"intercept"`
	Gamma          float64     `json:"gamma"`
	Coef0          float64     `json:"coef0"`
	Degree         int         `json:"degree"`
}

// Predict returns 1 when the decision function is positive, otherwise 0.
func (s *SVC) Predict(x domain.FeatureVector) int {
	if s.Decision(x) > 0 {
		return 1
	}
	return 0
}

// Decision evaluates the signed distance of x from the separating hyperplane.
func (s *SVC) Decision(x domain.FeatureVector) float64 {
	sum := s.Intercept
	for i, sv := range s.SupportVectors {
		sum += s.DualCoef[i] * s.kernel(sv, x)
	}
	return sum
}

func (s *SVC) kernel(sv []float64, x domain.FeatureVector) float64 {
	switch s.Kernel {
	case KernelRBF:
		var d float64
		for i, v := range sv {
			diff := v - x[i]
			d += diff * diff
		}
		return math.Exp(-s.Gamma * d)
	case KernelPoly:
		return math.Pow(s.Gamma*dot(sv, x)+s.Coef0, float64(s.Degree))
	default:
		return dot(sv, x)
	}
}

func dot(sv []float64, x domain.FeatureVector) float64 {
	var d float64
	for i, v := range sv {
		d += v * x[i]
	}
	return d
}

func (s *SVC) validate() error {
	switch s.Kernel {
	case KernelLinear, KernelRBF, KernelPoly:
	default:
		return fmt.Errorf("%w: unsupported kernel %q", ErrInvalidArtifact, s.Kernel)
	}
	if len(s.SupportVectors) == 0 {
		return fmt.Errorf("%w: no support vectors", ErrInvalidArtifact)
	}
	if len(s.DualCoef) != len(s.SupportVectors) {
		return fmt.Errorf("%w: %d dual coefficients for %d support vectors", ErrInvalidArtifact, len(s.DualCoef), len(s.SupportVectors))
	}
	for i, sv := range s.SupportVectors {
		if len(sv) != domain.FeatureCount {
			return fmt.Errorf("%w: support vector %d has %d features, want %d", ErrInvalidArtifact, i, len(sv), domain.FeatureCount)
		}
	}
	if s.Kernel == KernelPoly && s.Degree < 1 {
		return fmt.Errorf("%w: poly kernel needs degree >= 1", ErrInvalidArtifact)
	}
	if s.Kernel != KernelLinear && s.Gamma <= 0 {
		return fmt.Errorf("%w: %s kernel needs gamma > 0", ErrInvalidArtifact, s.Kernel)
	}
	return nil
}
