package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"lawgpt/internal/config"
	"lawgpt/internal/helper"
	"lawgpt/internal/index"
	"lawgpt/internal/ingest"
	"lawgpt/internal/metrics"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the index from the PDF dataset",
	Long:  "Walk the dataset directory, chunk and embed every PDF page and replace the index",
	Args:  cobra.NoArgs,
	RunE:  runIngest,
}

var (
	quickProfile bool
	datasetPath  string
)

func init() {
	ingestCmd.Flags().BoolVar(&quickProfile, "quick", false, "Use the quick chunking profile (smaller chunks, capped pages per document)")
	ingestCmd.Flags().StringVar(&datasetPath, "dataset", "", "Dataset root (overrides dataset.path)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	metrics.Register()

	profileName := config.ProfileStandard
	if quickProfile {
		profileName = config.ProfileQuick
	}
	profile, err := cfg.Chunking.Profile(profileName)
	if err != nil {
		return err
	}
	root := cfg.Dataset.Path
	if datasetPath != "" {
		root = datasetPath
	}

	embedder, closeEmbedder, err := buildEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEmbedder()

	backend, err := index.Open(cfg.Index)
	if err != nil {
		return err
	}
	defer backend.Close()

	pipeline := ingest.NewPipeline(embedder, backend, ingest.Options{
		Profile:           profileName,
		Chunking:          profile,
		EmbeddingProvider: cfg.Embedding.Provider,
		EmbeddingModel:    cfg.Embedding.Model,
		BatchSize:         cfg.Embedding.BatchSize,
	})
	report, err := pipeline.Run(ctx, root)
	if report != nil {
		helper.PrettyPrint(os.Stdout, report)
	}
	return err
}
