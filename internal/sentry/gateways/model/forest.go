package model

import (
	"fmt"

	"github.com/haukened/url-sentry/internal/sentry/domain"
)

// Node is one split or leaf of a decision tree. A leaf has Left and Right set to -1.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

// Tree is a decision tree whose root is Nodes[0].
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a random forest classifier. Each tree votes with the class
// distribution of the leaf a sample lands in; the averaged distribution's
// argmax is the prediction.
type Forest struct {
	Classes int    `json:"n_classes"`
	Trees   []Tree `json:"trees"`
}

func (n Node) leaf() bool { return n.Left < 0 && n.Right < 0 }

// Predict returns the predicted class, 0 or 1. Ties go to class 0.
func (f *Forest) Predict(x domain.FeatureVector) int {
	probs := make([]float64, f.Classes)
	for _, t := range f.Trees {
		leaf := t.leafFor(x)
		var total float64
		for _, v := range leaf.Value {
			total += v
		}
		if total == 0 {
			continue
		}
		for c, v := range leaf.Value {
			probs[c] += v / total
		}
	}

	best := 0
	for c := 1; c < len(probs); c++ {
		if probs[c] > probs[best] {
			best = c
		}
	}
	return best
}

func (t Tree) leafFor(x domain.FeatureVector) Node {
	i := 0
	for {
		n := t.Nodes[i]
		if n.leaf() {
			return n
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (f *Forest) validate() error {
	if f.Classes != 2 {
		return fmt.Errorf("%w: forest must be binary, got %d classes", ErrInvalidArtifact, f.Classes)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: forest has no trees", ErrInvalidArtifact)
	}
	for ti, t := range f.Trees {
		if err := t.validate(f.Classes); err != nil {
			return fmt.Errorf("%w: tree %d: %v", ErrInvalidArtifact, ti, err)
		}
	}
	return nil
}

// validate checks every index is in range and that children always point forward,
// which rules out cycles.
func (t Tree) validate(classes int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("no nodes")
	}
	for i, n := range t.Nodes {
		if n.leaf() {
			if len(n.Value) != classes {
				return fmt.Errorf("node %d: leaf has %d class counts, want %d", i, len(n.Value), classes)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= domain.FeatureCount {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}
