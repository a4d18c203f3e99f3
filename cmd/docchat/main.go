package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"docchat/internal/config"
	"docchat/internal/embedding"
	"docchat/internal/extract"
	"docchat/internal/generate"
	"docchat/internal/ingest"
	"docchat/internal/query"
	"docchat/internal/retriever"
	"docchat/internal/scanner"
	"docchat/internal/store/pgstore"
	"docchat/internal/vectorindex"
	"docchat/internal/worker"
)

var (
	configPath string
	category   string
	language   string
	streamMode bool
	limit      int
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	root := &cobra.Command{
		Use:   "docchat",
		Short: "Document ingestion and retrieval-augmented question answering",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "Path to the config file")

	ingestCmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest and process a single document",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}
	ingestCmd.Flags().StringVar(&category, "category", "general", "Category label")
	ingestCmd.Flags().StringVar(&language, "language", "", "Language tag (hr or en)")

	queryCmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Answer a question from the ingested documents",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().StringVar(&category, "category", "", "Restrict retrieval to a category")
	queryCmd.Flags().StringVar(&language, "language", "hr", "Language tag (hr or en)")
	queryCmd.Flags().BoolVar(&streamMode, "stream", false, "Stream the answer token by token")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent query history",
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries")

	root.AddCommand(
		ingestCmd,
		queryCmd,
		historyCmd,
		&cobra.Command{
			Use:   "scan",
			Short: "Scan the documents folder and process new files",
			RunE:  runScan,
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Watch the documents folder and ingest new files as they appear",
			RunE:  runWatch,
		},
		&cobra.Command{
			Use:   "delete <document-id>",
			Short: "Delete a document and its chunks",
			Args:  cobra.ExactArgs(1),
			RunE:  runDelete,
		},
		&cobra.Command{
			Use:   "feedback <query-id> <score>",
			Short: "Attach a feedback score to an answered query",
			Args:  cobra.ExactArgs(2),
			RunE:  runFeedback,
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the service objects constructed once at startup and passed to
// every component that needs them.
type app struct {
	cfg      *config.Config
	store    *pgstore.Store
	embedder *embedding.Service
	pipeline *ingest.Pipeline
	queries  *query.Service
	pool     *worker.Pool
}

func newApp(ctx context.Context, needEmbedder bool) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	st := pgstore.Connect(&cfg.Database)
	if err := st.Init(ctx); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, store: st}
	if !needEmbedder {
		// history and feedback only touch the store, no model clients
		a.queries = query.NewService(st, nil, nil, nil, cfg.RAG.DefaultLanguage)
		return a, nil
	}

	a.embedder, err = embedding.New(ctx, &cfg.Embedding)
	if err != nil {
		return nil, err
	}

	var index *vectorindex.Index
	if cfg.VectorIndex.Enabled {
		index, err = vectorindex.Open(&cfg.VectorIndex, cfg.RAG.MaxChunks, cfg.RAG.SimilarityThreshold)
		if err != nil {
			return nil, err
		}
	}

	a.pipeline = ingest.NewPipeline(st, extract.New(), a.embedder, index, nil, ingest.Options{
		ChunkSizeWords:   cfg.RAG.ChunkSize,
		ChunkOverlapWord: cfg.RAG.ChunkOverlap,
		DefaultLanguage:  cfg.RAG.DefaultLanguage,
		DocumentsPath:    cfg.Documents.Path,
		MaxFileSize:      cfg.Documents.MaxFileSize,
	})

	generator, err := generate.New(&cfg.Inference, cfg.RAG.DefaultLanguage)
	if err != nil {
		return nil, err
	}

	var ret query.Retriever
	if index != nil {
		ret = index
	} else {
		ret = retriever.New(st, cfg.RAG.MaxChunks, cfg.RAG.SimilarityThreshold)
	}
	a.queries = query.NewService(st, a.embedder, ret, generator, cfg.RAG.DefaultLanguage)

	a.pool, err = worker.NewPool(a.pipeline, worker.Options{
		PoolSize:      cfg.Worker.PoolSize,
		MaxRetries:    cfg.Worker.MaxRetries,
		RetryBackoff:  cfg.Worker.RetryBackoff(),
		SoftTimeLimit: cfg.Worker.SoftTimeLimit(),
		HardTimeLimit: cfg.Worker.HardTimeLimit(),
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Release()
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Closing store failed")
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	content, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	result := a.pipeline.Ingest(ctx, ingest.Input{
		Content:  content,
		Filename: filepath.Base(args[0]),
		Category: category,
		Language: language,
	})
	if result.Status == ingest.StatusFailed {
		return result.Err
	}
	if result.Status == ingest.StatusDuplicate {
		fmt.Printf("Document already exists: %s\n", result.DocumentID)
		return nil
	}

	processed := a.pipeline.Process(ctx, result.DocumentID)
	if processed.Err != nil {
		return processed.Err
	}
	fmt.Printf("Document %s processed (%d chunks)\n", processed.DocumentID, processed.Chunks)
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	if streamMode {
		for fragment := range a.queries.Stream(ctx, args[0], language, category) {
			fmt.Print(fragment)
		}
		fmt.Println()
		return nil
	}

	resp, err := a.queries.Process(ctx, args[0], language, category)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n\n", resp.Answer)
	for _, src := range resp.Sources {
		fmt.Printf("  source: %s (chunk %d, similarity %.3f)\n", src.Filename, src.ChunkIndex, src.Similarity)
	}
	fmt.Printf("  latency: %dms\n", resp.LatencyMs)
	return nil
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	sc := scanner.New(a.pipeline, a.pool, a.cfg.Documents.Path)
	created, err := sc.Scan(ctx)
	if err != nil {
		return err
	}
	a.pool.Wait()
	fmt.Printf("Scanned documents folder, %d new documents\n", created)
	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	sc := scanner.New(a.pipeline, a.pool, a.cfg.Documents.Path)
	if err := sc.Watch(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.pipeline.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("Document deleted")
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.queries.History(ctx, limit)
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Printf("[%s] (%s, %dms) %s\n", rec.CreatedAt.Format(time.RFC3339), rec.Language, rec.LatencyMs, rec.QueryText)
	}
	return nil
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	score, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("score must be an integer: %w", err)
	}
	if err := a.queries.Feedback(ctx, args[0], score); err != nil {
		return err
	}
	fmt.Println("Feedback submitted")
	return nil
}
