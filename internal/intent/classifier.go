package intent

import (
	"fmt"
	"math"

	"github.com/samber/oops"

	"schedbot/internal/domain"
)

// Category is one intent label with its exemplar phrases and their
// precomputed prototype embeddings. Declaration order is the tie-break order.
type Category struct {
	Name       string      `yaml:"name" json:"name"`
	Phrases    []string    `yaml:"phrases,omitempty" json:"phrases,omitempty"`
	Prototypes [][]float32 `yaml:"prototypes" json:"prototypes"`
}

type Classifier struct {
	categories []Category
	dim        int
}

func NewClassifier(categories []Category) (*Classifier, error) {
	dim, err := validate(categories)
	if err != nil {
		return nil, err
	}
	return &Classifier{categories: categories, dim: dim}, nil
}

func (c *Classifier) Dimensions() int {
	return c.dim
}

func (c *Classifier) Labels() []string {
	out := make([]string, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, cat.Name)
	}
	return out
}

// Classify scores query against every category and returns the category with
// the strictly greatest mean cosine similarity. Exact ties keep the category
// declared first. An empty category set yields an empty label.
func (c *Classifier) Classify(query []float32) (string, domain.IntentScore, error) {
	scores := make(domain.IntentScore, len(c.categories))
	if len(c.categories) == 0 {
		return "", scores, nil
	}
	if len(query) != c.dim {
		return "", nil, oops.
			In("intent").
			With("query_dim", len(query), "prototype_dim", c.dim).
			Wrapf(domain.ErrInvalidConfiguration, "query embedding has dimension %d, prototypes have %d", len(query), c.dim)
	}

	best := ""
	bestScore := math.Inf(-1)
	for _, cat := range c.categories {
		var sum float64
		for _, proto := range cat.Prototypes {
			sim, err := CosineSimilarity(query, proto)
			if err != nil {
				return "", nil, err
			}
			sum += sim
		}
		mean := sum / float64(len(cat.Prototypes))
		scores[cat.Name] = mean
		if best == "" || mean > bestScore {
			best = cat.Name
			bestScore = mean
		}
	}
	return best, scores, nil
}

// Classify is the one-shot form of Classifier.Classify.
func Classify(query []float32, categories []Category) (string, domain.IntentScore, error) {
	c, err := NewClassifier(categories)
	if err != nil {
		return "", nil, err
	}
	return c.Classify(query)
}

// CosineSimilarity returns a value in [-1, 1]. A zero vector is orthogonal to
// everything.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d: %w", len(a), len(b), domain.ErrInvalidConfiguration)
	}

	var dot, aMag, bMag float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		aMag += x * x
		bMag += y * y
	}
	if aMag == 0 || bMag == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag)), nil
}

func validate(categories []Category) (int, error) {
	dim := 0
	seen := make(map[string]struct{}, len(categories))
	for i, cat := range categories {
		errb := oops.In("intent").With("category", cat.Name, "index", i)
		if cat.Name == "" {
			return 0, errb.Wrapf(domain.ErrInvalidConfiguration, "category #%d has no name", i)
		}
		if _, dup := seen[cat.Name]; dup {
			return 0, errb.Wrapf(domain.ErrInvalidConfiguration, "category %q declared twice", cat.Name)
		}
		seen[cat.Name] = struct{}{}

		if len(cat.Prototypes) == 0 {
			return 0, errb.Wrapf(domain.ErrInvalidConfiguration, "category %q has no prototypes", cat.Name)
		}
		for j, proto := range cat.Prototypes {
			if dim == 0 {
				dim = len(proto)
				if dim == 0 {
					return 0, errb.Wrapf(domain.ErrInvalidConfiguration, "category %q prototype #%d is empty", cat.Name, j)
				}
			}
			if len(proto) != dim {
				return 0, errb.Wrapf(domain.ErrInvalidConfiguration,
					"category %q prototype #%d has dimension %d, want %d", cat.Name, j, len(proto), dim)
			}
		}
	}
	return dim, nil
}
