package main

import (
	"fmt"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"kbrag/internal/chunker"
	completion "kbrag/internal/completion/openai"
	"kbrag/internal/config"
	"kbrag/internal/corpus"
	"kbrag/internal/domain"
	"kbrag/internal/embedding"
	embedopenai "kbrag/internal/embedding/openai"
	"kbrag/internal/llm"
	"kbrag/internal/service"
	"kbrag/internal/summarizer"
	"kbrag/internal/vectorstore"
	"kbrag/internal/vectorstore/file"
	"kbrag/internal/vectorstore/sqlite"
)

// components holds the collaborators shared by the subcommands.
type components struct {
	cfg     *config.AppConfig
	log     *slog.Logger
	api     *openai.Client
	store   vectorstore.Storage
	cache   summarizer.Cache
	closers []io.Closer
}

// newComponents opens the configured store. The API client is only created
// when withAPI is set, so offline commands work without a key.
func newComponents(cfg *config.AppConfig, log *slog.Logger, withAPI bool) (*components, error) {
	c := &components{cfg: cfg, log: log}
	switch cfg.Store.Type {
	case "file", "":
		c.store = file.NewStore(cfg.Store.Path(cfg.Store.IndexFile), cfg.Store.Path(cfg.Store.PassagesFile))
		c.cache = summarizer.OpenFileCache(cfg.Store.Path(cfg.Store.SummaryCacheFile), log)
	case "sqlite":
		st, err := sqlite.Open(cfg.Store.Path(cfg.Store.SQLitePath))
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		c.store = st
		c.cache = st.SummaryCache()
		c.closers = append(c.closers, st)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Store.Type)
	}
	if withAPI {
		api, err := llm.NewClient(cfg.LLM)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.api = api
	}
	return c, nil
}

func (c *components) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *components) embedder() *embedding.Batcher {
	client := embedopenai.NewClient(c.api, embedopenai.Config{
		Model:      c.cfg.Embedder.Model,
		MaxRetries: c.cfg.LLM.MaxRetries,
	})
	return embedding.NewBatcher(client, c.cfg.Embedder.BatchSize, c.cfg.Embedder.Concurrency, c.log)
}

func (c *components) completer() *completion.Client {
	return completion.NewClient(c.api, completion.Config{
		Model:      c.cfg.Completion.Model,
		MaxRetries: c.cfg.LLM.MaxRetries,
	})
}

func (c *components) summarizer() (*summarizer.Summarizer, error) {
	var engine summarizer.Engine
	switch c.cfg.Summarizer.Type {
	case "llm", "":
		engine = summarizer.NewLLMEngine(c.completer(), c.cfg.Completion.Temperature)
	case "extractive":
		engine = summarizer.NewFrequencyEngine(c.cfg.Summarizer.MaxSentences)
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", c.cfg.Summarizer.Type)
	}
	return summarizer.New(engine, c.cache, summarizer.Options{
		SegmentSize:   c.cfg.Summarizer.SegmentSize,
		Lookback:      c.cfg.Summarizer.Lookback,
		FallbackChars: c.cfg.Summarizer.FallbackChars,
	}, c.log), nil
}

func (c *components) builder() (*service.Builder, error) {
	sum, err := c.summarizer()
	if err != nil {
		return nil, err
	}
	return service.NewBuilder(
		corpus.NewLoader(c.cfg.Corpus.Extensions, c.log),
		sum,
		chunker.NewDelimiterChunker(c.cfg.Chunker.MaxSize, c.cfg.Chunker.Overlap),
		c.embedder(),
		c.store,
		c.log,
	), nil
}

func (c *components) retriever() *service.Retriever {
	var emb domain.Embedder
	if c.api != nil {
		emb = c.embedder()
	}
	return service.NewRetriever(c.store, emb, c.cfg.Retrieval.CacheIndex)
}

func (c *components) answerer(r *service.Retriever) *service.Answerer {
	return service.NewAnswerer(r, c.completer(), c.cfg.Retrieval.TopK, c.cfg.Completion.Temperature)
}
