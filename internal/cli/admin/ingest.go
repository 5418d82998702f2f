package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/doku-labs/dokuchat/internal/config"
	"github.com/doku-labs/dokuchat/internal/database"
	"github.com/doku-labs/dokuchat/internal/embedding"
	"github.com/doku-labs/dokuchat/internal/ingest"
	"github.com/doku-labs/dokuchat/internal/store"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Build the corpus collection from a markdown directory",
		Long:  "Process *.md files under dir (default DOKUCHAT_CORPUS_DIR), embed the chunks and persist them as the configured collection",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIngest,
	}

	cmd.Flags().Bool("rebuild", false, "Delete the existing collection before ingesting")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dir := cfg.CorpusDir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no corpus directory: pass one as an argument or set DOKUCHAT_CORPUS_DIR")
	}

	if !cfg.HasEmbedding() {
		return fmt.Errorf("embedding model not configured: set DOKUCHAT_EMBEDDING_ENDPOINT and DOKUCHAT_EMBEDDING_MODEL")
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	vectorStore := store.New(pool)

	if rebuild, _ := cmd.Flags().GetBool("rebuild"); rebuild {
		if err := vectorStore.DeleteCollection(ctx, cfg.Collection); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
		log.Printf("collection %q deleted", cfg.Collection)
	}

	processor := ingest.NewProcessor(ingest.Options{
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		EnableChunking: cfg.EnableChunking,
	})
	docs, err := processor.ProcessDirectory(ctx, dir)
	if err != nil {
		return fmt.Errorf("failed to process corpus directory: %w", err)
	}
	log.Printf("processed %s: %d chunks", dir, len(docs))

	embedder, err := embedding.NewClient(embedding.Config{
		Endpoint:  cfg.EmbeddingEndpoint,
		Model:     cfg.EmbeddingModel,
		APIKey:    cfg.EmbeddingAPIKey,
		MaxTokens: cfg.EmbeddingMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding client: %w", err)
	}

	indexer := ingest.NewIndexer(embedder, vectorStore)
	stats, err := indexer.BuildCollection(ctx, cfg.Collection, docs)
	if err != nil {
		return fmt.Errorf("failed to build collection: %w", err)
	}

	log.Printf("collection %q: %d chunks total, %d persisted, %d batches skipped",
		cfg.Collection, stats.Total, stats.Added, stats.SkippedBatches)
	return nil
}
