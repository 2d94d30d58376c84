package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/haukened/url-sentry/internal/sentry/domain"
)

// ErrInvalidArtifact is returned when a model artifact cannot be used for prediction.
var ErrInvalidArtifact = errors.New("invalid model artifact")

const (
	KindRandomForest = "random_forest"
	KindSVC          = "svc"
)

// Predictor is a pre-trained binary classifier over the URL feature vector.
type Predictor interface {
	Predict(x domain.FeatureVector) int
}

type envelope struct {
	Kind      string `json:"kind"`
	NFeatures int    `json:"n_features"`
}

// Decode reads a JSON model artifact and returns the predictor it describes.
func Decode(r io.Reader) (Predictor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if env.NFeatures != domain.FeatureCount {
		return nil, fmt.Errorf("%w: n_features is %d, want %d", ErrInvalidArtifact, env.NFeatures, domain.FeatureCount)
	}

	switch env.Kind {
	case KindRandomForest:
		var f Forest
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
		}
		if err := f.validate(); err != nil {
			return nil, err
		}
		return &f, nil
	case KindSVC:
		var s SVC
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
		}
		if err := s.validate(); err != nil {
			return nil, err
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidArtifact, env.Kind)
	}
}

// Load decodes the model artifact at path.
func Load(path string) (Predictor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model artifact: %w", err)
	}
	defer f.Close()

	p, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
