package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"schedbot/internal/config"
	"schedbot/internal/intent"
	"schedbot/internal/llm"
	"schedbot/internal/nlp"
)

func main() {
	config.LoadDotEnv()
	if err := newRootCmd(embedderFromEnv).Execute(); err != nil {
		os.Exit(1)
	}
}

// embedderFactory returns the embedder to build with and the model name to
// stamp into the catalog.
type embedderFactory func() (intent.BatchEmbedder, string, error)

func embedderFromEnv() (intent.BatchEmbedder, string, error) {
	cfg, err := config.LoadCatalogBuilderConfig()
	if err != nil {
		return nil, "", err
	}
	if cfg.EmbedURL != "" {
		return nlp.NewEmbedClient(cfg.EmbedURL, cfg.NLPAPIKey, cfg.NLPTimeout), "embed-service", nil
	}
	e := llm.NewEmbedder(llm.Config(cfg.LLM))
	return e, e.Model(), nil
}

func newRootCmd(embedders embedderFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "catalog-builder",
		Short:         "Build and inspect intent prototype catalogs",
		SilenceUsage:  true,
	}
	root.AddCommand(newBuildCmd(embedders), newInspectCmd(), newClassifyCmd(embedders))
	return root
}

func newBuildCmd(embedders embedderFactory) *cobra.Command {
	var (
		out     string
		phrases string
		version int64
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed the phrase catalog and write prototype vectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			categories := intent.DefaultPhrases()
			if phrases != "" {
				c, err := loadPhrases(phrases)
				if err != nil {
					return err
				}
				categories = c
			}

			embedder, model, err := embedders()
			if err != nil {
				return err
			}
			c, err := intent.BuildCatalog(cmd.Context(), embedder, version, model, categories)
			if err != nil {
				return err
			}
			if err := intent.SaveCatalog(out, c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: version=%d model=%s categories=%d dim=%d\n",
				out, c.Version, c.Model, len(c.Categories), c.Dimensions())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "catalog.yaml", "catalog file to write")
	cmd.Flags().StringVar(&phrases, "phrases", "", "YAML file with categories and phrases (default: built-in catalog)")
	cmd.Flags().Int64Var(&version, "version", 1, "catalog version stamped into the file")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <catalog.yaml>",
		Short: "Print categories, prototype counts and dimension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := intent.LoadCatalog(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "version=%d model=%s dim=%d\n", c.Version, c.Model, c.Dimensions())
			for _, cat := range c.Categories {
				fmt.Fprintf(w, "%-22s prototypes=%d\n", cat.Name, len(cat.Prototypes))
			}
			return nil
		},
	}
}

func newClassifyCmd(embedders embedderFactory) *cobra.Command {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "classify <text>",
		Short: "Embed text and score it against a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := intent.LoadCatalog(catalogPath)
			if err != nil {
				return err
			}
			embedder, _, err := embedders()
			if err != nil {
				return err
			}
			vectors, err := embedder.EmbedBatch(cmd.Context(), []string{args[0]})
			if err != nil {
				return err
			}
			if len(vectors) != 1 {
				return fmt.Errorf("embedder returned %d vectors for 1 text", len(vectors))
			}
			label, scores, err := intent.Classify(vectors[0], c.Categories)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "intent=%s\n", label)
			for _, cat := range c.Categories {
				fmt.Fprintf(w, "%-22s %.4f\n", cat.Name, scores[cat.Name])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&catalogPath, "catalog", "c", "catalog.yaml", "catalog file to score against")
	return cmd
}

func loadPhrases(path string) ([]intent.Category, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phrases %s: %w", path, err)
	}
	return intent.ParsePhrases(raw)
}
