package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/doku-labs/dokuchat/internal/api/handlers"
	"github.com/doku-labs/dokuchat/internal/config"
	"github.com/doku-labs/dokuchat/internal/database"
	"github.com/doku-labs/dokuchat/internal/embedding"
	"github.com/doku-labs/dokuchat/internal/ingest"
	"github.com/doku-labs/dokuchat/internal/lexical"
	"github.com/doku-labs/dokuchat/internal/llm"
	"github.com/doku-labs/dokuchat/internal/pipeline"
	"github.com/doku-labs/dokuchat/internal/retriever"
	"github.com/doku-labs/dokuchat/internal/rewrite"
	"github.com/doku-labs/dokuchat/internal/server"
	"github.com/doku-labs/dokuchat/internal/store"
	"github.com/doku-labs/dokuchat/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the answering daemon",
		Long:  "Start the dokuchat HTTP daemon on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.LogStatus()

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	vectorStore := store.New(pool)

	var embedder *embedding.Client
	if cfg.HasEmbedding() {
		embedder, err = embedding.NewClient(embedding.Config{
			Endpoint:  cfg.EmbeddingEndpoint,
			Model:     cfg.EmbeddingModel,
			APIKey:    cfg.EmbeddingAPIKey,
			MaxTokens: cfg.EmbeddingMaxTokens,
		})
		if err != nil {
			return fmt.Errorf("failed to create embedding client: %w", err)
		}
	} else {
		log.Println("embedding model not configured, retrieval disabled")
	}

	// Build the lexical index and, when the collection is empty, the
	// semantic one too, from the configured corpus directory.
	var lexicalIndex *lexical.Index
	if cfg.CorpusDir != "" {
		processor := ingest.NewProcessor(ingest.Options{
			ChunkSize:      cfg.ChunkSize,
			ChunkOverlap:   cfg.ChunkOverlap,
			EnableChunking: cfg.EnableChunking,
		})
		docs, err := processor.ProcessDirectory(ctx, cfg.CorpusDir)
		if err != nil {
			return fmt.Errorf("failed to process corpus directory: %w", err)
		}
		log.Printf("corpus: %d chunks from %s", len(docs), cfg.CorpusDir)

		lexicalIndex = lexical.NewIndex()
		for i, doc := range docs {
			lexicalIndex.Add(fmt.Sprintf("%s-%d", cfg.Collection, i), doc)
		}

		if embedder != nil {
			count, err := vectorStore.Count(ctx, cfg.Collection)
			if err != nil {
				return fmt.Errorf("failed to count collection: %w", err)
			}
			if count == 0 {
				log.Printf("collection %q is empty, building it", cfg.Collection)
				indexer := ingest.NewIndexer(embedder, vectorStore)
				stats, err := indexer.BuildCollection(ctx, cfg.Collection, docs)
				if err != nil {
					return fmt.Errorf("failed to build collection: %w", err)
				}
				log.Printf("collection %q built: %d added, %d batches skipped",
					cfg.Collection, stats.Added, stats.SkippedBatches)
			} else {
				log.Printf("collection %q already holds %d chunks, reusing it", cfg.Collection, count)
			}
		}
	}

	registry := llm.NewRegistry()
	var queryRewriter pipeline.QueryRewriter
	if cfg.HasChatAgent() {
		agentCfg := llm.AgentConfig{
			Endpoint:    cfg.ChatEndpoint,
			Model:       cfg.ChatModel,
			APIKey:      cfg.ChatAPIKey,
			Temperature: float32(cfg.Temperature),
			Timeout:     time.Duration(cfg.ChatTimeoutSec) * time.Second,
			MaxRetries:  cfg.ChatMaxRetries,
		}

		synthesizerAgent, err := llm.NewClient(agentCfg)
		if err != nil {
			return fmt.Errorf("failed to create synthesizer agent: %w", err)
		}
		registry.Register(llm.AgentSynthesizer, synthesizerAgent)

		rewriterAgent, err := llm.NewClient(agentCfg)
		if err != nil {
			return fmt.Errorf("failed to create rewriter agent: %w", err)
		}
		registry.Register(llm.AgentRewriter, rewriterAgent)
		queryRewriter = rewrite.New(rewriterAgent, cfg.RewriterTurns)
	} else {
		log.Println("chat agent not configured, answers will report it")
	}

	var queryEmbedder retriever.QueryEmbedder
	if embedder != nil {
		queryEmbedder = embedder
	}
	var lexicalSearcher retriever.LexicalSearcher
	if lexicalIndex != nil {
		lexicalSearcher = lexicalIndex
	}

	hybrid := retriever.New(queryEmbedder, vectorStore, lexicalSearcher, retriever.Options{
		Collection: cfg.Collection,
		K:          cfg.RetrievalK,
		Threshold:  cfg.SimilarityThreshold,
	})

	orchestrator := pipeline.New(queryRewriter, hybrid, registry, pipeline.Options{
		ContextMaxChars: cfg.ContextMaxChars,
	})

	router := server.NewRouter(server.RouterConfig{
		AskHandler: handlers.NewAskHandler(orchestrator),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
