package intent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"schedbot/internal/domain"
)

// Catalog is the on-disk form of the category set. Version only grows; the
// registry refuses to go back to an older one.
type Catalog struct {
	Version    int64      `yaml:"version"`
	Model      string     `yaml:"model,omitempty"`
	Categories []Category `yaml:"categories"`
}

type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// DefaultPhrases is the exemplar set the prototypes are built from, in
// tie-break order.
func DefaultPhrases() []Category {
	return []Category{
		{Name: domain.IntentGreeting, Phrases: []string{
			"Hi.",
			"What's up.",
			"Good day.",
			"Hello.",
			"Yo.",
		}},
		{Name: domain.IntentSuggestion, Phrases: []string{
			"How about next Monday at 3 PM?",
			"Can we meet on Friday morning?",
			"Is Wednesday at 10 o'clock good for you?",
			"Let's schedule it for Tuesday afternoon.",
			"I'm available this Thursday at 2 PM, does that work?",
		}},
		{Name: domain.IntentAvailabilityRequest, Phrases: []string{
			"When are you free to meet?",
			"What times do you have open?",
			"Can you suggest a suitable time?",
			"Tell me your available slots.",
			"Do you have time this week?",
		}},
		{Name: domain.IntentConfirmation, Phrases: []string{
			"Sounds good.",
			"Sure.",
			"Yeah.",
			"Yes.",
			"That time works for me.",
			"I'm okay with the proposed schedule.",
			"Yes, let's lock in that time.",
			"I agree with your time suggestion.",
			"That schedule is perfect for me.",
		}},
		{Name: domain.IntentRescheduling, Phrases: []string{
			"Can we move it to a different day?",
			"I need to reschedule our meeting.",
			"That time doesn't work for me, how about another?",
			"Is it possible to change the meeting time?",
			"I have to push our meeting to a later time.",
		}},
	}
}

// BuildCatalog embeds each category's phrases with one batch call per
// category. Categories keep their order.
func BuildCatalog(ctx context.Context, embedder BatchEmbedder, version int64, model string, phrases []Category) (Catalog, error) {
	out := Catalog{Version: version, Model: model, Categories: make([]Category, 0, len(phrases))}
	for _, cat := range phrases {
		texts := make([]string, 0, len(cat.Phrases))
		for _, p := range cat.Phrases {
			if p = strings.TrimSpace(p); p != "" {
				texts = append(texts, p)
			}
		}
		if len(texts) == 0 {
			return Catalog{}, oops.In("intent").With("category", cat.Name).
				Wrapf(domain.ErrInvalidConfiguration, "category %q has no phrases", cat.Name)
		}

		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return Catalog{}, fmt.Errorf("embed category %q: %w", cat.Name, err)
		}
		if len(vectors) != len(texts) {
			return Catalog{}, fmt.Errorf("embed category %q: got %d vectors for %d phrases", cat.Name, len(vectors), len(texts))
		}
		out.Categories = append(out.Categories, Category{Name: cat.Name, Phrases: texts, Prototypes: vectors})
	}

	if _, err := validate(out.Categories); err != nil {
		return Catalog{}, err
	}
	return out, nil
}

func ParseCatalog(raw []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, oops.In("intent").Wrapf(domain.ErrInvalidConfiguration, "decode catalog: %v", err)
	}
	// The classifier tolerates an empty set; a catalog file may not.
	if len(c.Categories) == 0 {
		return Catalog{}, oops.In("intent").Wrapf(domain.ErrInvalidConfiguration, "catalog has no categories")
	}
	if _, err := validate(c.Categories); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// ParsePhrases reads a phrase-only catalog, the input of BuildCatalog.
// Prototypes, if present, are ignored.
func ParsePhrases(raw []byte) ([]Category, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, oops.In("intent").Wrapf(domain.ErrInvalidConfiguration, "decode phrases: %v", err)
	}
	if len(c.Categories) == 0 {
		return nil, oops.In("intent").Wrapf(domain.ErrInvalidConfiguration, "phrase catalog has no categories")
	}
	seen := make(map[string]bool, len(c.Categories))
	out := make([]Category, 0, len(c.Categories))
	for _, cat := range c.Categories {
		name := strings.TrimSpace(cat.Name)
		if name == "" || seen[name] {
			return nil, oops.In("intent").With("category", cat.Name).
				Wrapf(domain.ErrInvalidConfiguration, "empty or duplicate category name %q", cat.Name)
		}
		seen[name] = true
		out = append(out, Category{Name: name, Phrases: cat.Phrases})
	}
	return out, nil
}

func LoadCatalog(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := ParseCatalog(raw)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func SaveCatalog(path string, c Catalog) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write catalog %s: %w", path, err)
	}
	return nil
}

func (c Catalog) Dimensions() int {
	for _, cat := range c.Categories {
		for _, p := range cat.Prototypes {
			return len(p)
		}
	}
	return 0
}
