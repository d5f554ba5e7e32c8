// Command kbindex builds the knowledge base file consumed by coachd: it
// cleans and chunks the source material, embeds every chunk, and writes the
// passages with their vectors to a JSON file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	logpkg "github.com/mindfit/coachd/internal/logger"
	"github.com/mindfit/coachd/internal/metrics"
	"github.com/mindfit/coachd/internal/passage"
	"github.com/mindfit/coachd/internal/segment"
	openaiTransport "github.com/mindfit/coachd/internal/transport/openai"
)

func main() {
	var (
		inputs      = flag.String("in", "knowledge_base.txt", "comma-separated source text files")
		out         = flag.String("out", "embeddings.json", "output passage file")
		chunkSize   = flag.Int("chunk-size", segment.DefaultChunkSize, "fallback window size in words")
		markerLabel = flag.String("marker-label", "Week", "structural header label")
		boilerplate = flag.String("boilerplate", "", "comma-separated phrases to strip before chunking")
		delay       = flag.Duration("delay", passage.DefaultThrottle, "pause between embedding calls")
		model       = flag.String("model", "text-embedding-ada-002", "embedding model")
		baseURL     = flag.String("base-url", "", "OpenAI-compatible API base URL")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	// .env is optional; real deployments pass the key via the environment
	_ = godotenv.Load()

	level := ""
	if *verbose {
		level = "debug"
	}
	logger, err := logpkg.New("local", level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Fatal("OPENAI_API_KEY is not set")
	}

	metrics.RegisterAIMetrics()

	documents, err := readDocuments(strings.Split(*inputs, ","))
	if err != nil {
		logger.Fatal("Failed to read source files", zap.Error(err))
	}

	segmenter := segment.New(*chunkSize).WithMarkerLabel(*markerLabel)
	if *boilerplate != "" {
		segmenter = segmenter.WithBoilerplate(strings.Split(*boilerplate, ","))
	}

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:  apiKey,
		BaseURL: *baseURL,
		Model:   *model,
		Timeout: 30 * time.Second,
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder := passage.NewBuilder(segmenter, embedder, logger).WithThrottle(*delay)

	start := time.Now()
	passages, err := builder.Build(ctx, documents)
	if err != nil {
		logger.Fatal("Failed to build passages", zap.Error(err))
	}

	if err := passage.Save(*out, passages); err != nil {
		logger.Fatal("Failed to write output", zap.Error(err))
	}

	logger.Info("Knowledge base built",
		zap.String("out", *out),
		zap.Int("passages", len(passages)),
		zap.Duration("took", time.Since(start)),
	)
}

func readDocuments(paths []string) ([]string, error) {
	documents := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		documents = append(documents, string(data))
	}
	return documents, nil
}
